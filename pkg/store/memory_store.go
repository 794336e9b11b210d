package store

import (
	"sync"

	"github.com/tomrodww/ai-guessing-game/pkg/domain"
)

// MemoryStore keeps all state in-process. Used in tests and for local runs
// without a database.
type MemoryStore struct {
	mu       sync.RWMutex
	stories  map[string]domain.Story
	order    []string
	sessions map[string]domain.Session
	log      []domain.QuestionLogEntry
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		stories:  make(map[string]domain.Story),
		sessions: make(map[string]domain.Session),
	}
}

// SaveStory stores or replaces a story and tracks insertion order.
func (m *MemoryStore) SaveStory(story domain.Story) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.stories[story.ID]; !exists {
		m.order = append(m.order, story.ID)
	}
	m.stories[story.ID] = story
	return nil
}

// GetStory retrieves a story by id.
func (m *MemoryStore) GetStory(id string) (domain.Story, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	story, ok := m.stories[id]
	return story, ok, nil
}

// ListActiveStories returns active stories in insertion order.
func (m *MemoryStore) ListActiveStories() ([]domain.Story, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Story, 0, len(m.order))
	for _, id := range m.order {
		if story, ok := m.stories[id]; ok && story.Active {
			res = append(res, story)
		}
	}
	return res, nil
}

// CreateSession inserts a fresh session record.
func (m *MemoryStore) CreateSession(session domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
	return nil
}

// GetSession retrieves a session by id.
func (m *MemoryStore) GetSession(id string) (domain.Session, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[id]
	return session, ok, nil
}

// SaveTurn replaces the session snapshot and appends the optional log entry.
func (m *MemoryStore) SaveTurn(session domain.Session, entry *domain.QuestionLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
	if entry != nil {
		m.log = append(m.log, *entry)
	}
	return nil
}

// ListDiscoveries returns log entries for a session/story in append order.
func (m *MemoryStore) ListDiscoveries(sessionID, storyID string) ([]domain.QuestionLogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []domain.QuestionLogEntry
	for _, entry := range m.log {
		if entry.SessionID == sessionID && entry.StoryID == storyID {
			res = append(res, entry)
		}
	}
	return res, nil
}
