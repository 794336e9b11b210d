package store

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tomrodww/ai-guessing-game/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&StoryModel{}, &PhraseModel{}, &SessionModel{}, &QuestionLogModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// SaveStory upserts a story and replaces its phrase set in one transaction.
// Phrase replacement only matters for re-seeding; live phrases never change.
func (s *GormStore) SaveStory(story domain.Story) error {
	model, phrases, err := storyToModel(story)
	if err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "context", "solution", "hints", "active", "updated_at"}),
		}).Create(&model).Error; err != nil {
			return err
		}
		if err := tx.Delete(&PhraseModel{}, "story_id = ?", story.ID).Error; err != nil {
			return err
		}
		if len(phrases) == 0 {
			return nil
		}
		return tx.Create(&phrases).Error
	})
}

// GetStory retrieves a story with its phrases in order.
func (s *GormStore) GetStory(id string) (domain.Story, bool, error) {
	var model StoryModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Story{}, false, nil
		}
		return domain.Story{}, false, err
	}
	var phrases []PhraseModel
	if err := s.db.Order("order_index ASC").Find(&phrases, "story_id = ?", id).Error; err != nil {
		return domain.Story{}, false, err
	}
	story, err := storyFromModel(model, phrases)
	if err != nil {
		return domain.Story{}, false, err
	}
	return story, true, nil
}

// ListActiveStories returns active stories with phrases, oldest first.
func (s *GormStore) ListActiveStories() ([]domain.Story, error) {
	var models []StoryModel
	if err := s.db.Where("active = ?", true).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Story, 0, len(models))
	for _, m := range models {
		var phrases []PhraseModel
		if err := s.db.Order("order_index ASC").Find(&phrases, "story_id = ?", m.ID).Error; err != nil {
			return nil, err
		}
		story, err := storyFromModel(m, phrases)
		if err != nil {
			return nil, err
		}
		res = append(res, story)
	}
	return res, nil
}

// CreateSession inserts a fresh session record.
func (s *GormStore) CreateSession(session domain.Session) error {
	model, err := sessionToModel(session)
	if err != nil {
		return err
	}
	return s.db.Create(&model).Error
}

// GetSession retrieves a session.
func (s *GormStore) GetSession(id string) (domain.Session, bool, error) {
	var model SessionModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Session{}, false, nil
		}
		return domain.Session{}, false, err
	}
	session, err := sessionFromModel(model)
	if err != nil {
		return domain.Session{}, false, err
	}
	return session, true, nil
}

// SaveTurn writes the session snapshot and optional log entry atomically.
func (s *GormStore) SaveTurn(session domain.Session, entry *domain.QuestionLogEntry) error {
	model, err := sessionToModel(session)
	if err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&model).Error; err != nil {
			return err
		}
		if entry == nil {
			return nil
		}
		logModel := logToModel(*entry)
		return tx.Create(&logModel).Error
	})
}

// ListDiscoveries returns log entries for a session/story in creation order.
func (s *GormStore) ListDiscoveries(sessionID, storyID string) ([]domain.QuestionLogEntry, error) {
	var models []QuestionLogModel
	if err := s.db.
		Where("session_id = ? AND story_id = ?", sessionID, storyID).
		Order("created_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.QuestionLogEntry, 0, len(models))
	for _, m := range models {
		res = append(res, logFromModel(m))
	}
	return res, nil
}

func storyToModel(story domain.Story) (StoryModel, []PhraseModel, error) {
	hints, err := json.Marshal(story.Hints)
	if err != nil {
		return StoryModel{}, nil, err
	}
	phrases := make([]PhraseModel, 0, len(story.Phrases))
	for _, p := range story.Phrases {
		phrases = append(phrases, PhraseModel{
			ID:      p.ID,
			StoryID: story.ID,
			Order:   p.Order,
			Text:    p.Text,
		})
	}
	return StoryModel{
		ID:        story.ID,
		Title:     story.Title,
		Context:   story.Context,
		Solution:  story.Solution,
		Hints:     datatypes.JSON(hints),
		Active:    story.Active,
		CreatedAt: story.CreatedAt,
		UpdatedAt: story.UpdatedAt,
	}, phrases, nil
}

func storyFromModel(m StoryModel, phraseModels []PhraseModel) (domain.Story, error) {
	var hints []string
	if len(m.Hints) > 0 {
		if err := json.Unmarshal(m.Hints, &hints); err != nil {
			return domain.Story{}, fmt.Errorf("decode hints for story %s: %w", m.ID, err)
		}
	}
	phrases := make([]domain.Phrase, 0, len(phraseModels))
	for _, p := range phraseModels {
		phrases = append(phrases, domain.Phrase{
			ID:      p.ID,
			StoryID: p.StoryID,
			Order:   p.Order,
			Text:    p.Text,
		})
	}
	return domain.Story{
		ID:        m.ID,
		Title:     m.Title,
		Context:   m.Context,
		Solution:  m.Solution,
		Phrases:   phrases,
		Hints:     hints,
		Active:    m.Active,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}, nil
}

func sessionToModel(session domain.Session) (SessionModel, error) {
	discovered, err := json.Marshal(emptyNotNil(session.Discovered))
	if err != nil {
		return SessionModel{}, err
	}
	hints, err := json.Marshal(emptyIntsNotNil(session.UnlockedHints))
	if err != nil {
		return SessionModel{}, err
	}
	return SessionModel{
		ID:            session.ID,
		StoryID:       session.StoryID,
		Coins:         session.Coins,
		Discovered:    datatypes.JSON(discovered),
		UnlockedHints: datatypes.JSON(hints),
		Status:        string(session.Status),
		CreatedAt:     session.CreatedAt,
		UpdatedAt:     session.UpdatedAt,
	}, nil
}

func sessionFromModel(m SessionModel) (domain.Session, error) {
	var discovered []string
	if len(m.Discovered) > 0 {
		if err := json.Unmarshal(m.Discovered, &discovered); err != nil {
			return domain.Session{}, fmt.Errorf("decode discovered set for session %s: %w", m.ID, err)
		}
	}
	var hints []int
	if len(m.UnlockedHints) > 0 {
		if err := json.Unmarshal(m.UnlockedHints, &hints); err != nil {
			return domain.Session{}, fmt.Errorf("decode hint set for session %s: %w", m.ID, err)
		}
	}
	return domain.Session{
		ID:            m.ID,
		StoryID:       m.StoryID,
		Coins:         m.Coins,
		Discovered:    discovered,
		UnlockedHints: hints,
		Status:        domain.SessionStatus(m.Status),
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}, nil
}

func logToModel(entry domain.QuestionLogEntry) QuestionLogModel {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return QuestionLogModel{
		ID:          entry.ID,
		SessionID:   entry.SessionID,
		StoryID:     entry.StoryID,
		Question:    entry.Question,
		Verdict:     string(entry.Verdict),
		PhraseID:    entry.PhraseID,
		Explanation: entry.Explanation,
		CreatedAt:   createdAt,
	}
}

func logFromModel(m QuestionLogModel) domain.QuestionLogEntry {
	return domain.QuestionLogEntry{
		ID:          m.ID,
		SessionID:   m.SessionID,
		StoryID:     m.StoryID,
		Question:    m.Question,
		Verdict:     domain.Verdict(m.Verdict),
		PhraseID:    m.PhraseID,
		Explanation: m.Explanation,
		CreatedAt:   m.CreatedAt,
	}
}

// emptyNotNil keeps JSON columns as [] instead of null.
func emptyNotNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func emptyIntsNotNil(in []int) []int {
	if in == nil {
		return []int{}
	}
	return in
}
