package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomrodww/ai-guessing-game/pkg/domain"
	"github.com/tomrodww/ai-guessing-game/pkg/oracle"
	"github.com/tomrodww/ai-guessing-game/pkg/store"
)

const (
	defaultMaxQuestionLen   = 300
	defaultMinQuestionWords = 2
)

// Config holds dependencies and tunables for the core application.
type Config struct {
	Store  store.Store
	Oracle oracle.Oracle
	// MaxQuestionLen caps question length in characters; MinQuestionWords is
	// the minimum word count. Zero means the default.
	MaxQuestionLen   int
	MinQuestionWords int
}

// App wires the session lifecycle manager, the discovery state machine and
// the oracle adapter together. All session mutations serialize through a
// per-session lock.
type App struct {
	store            store.Store
	oracle           oracle.Oracle
	locks            *sessionLocks
	maxQuestionLen   int
	minQuestionWords int
}

// New constructs the application core.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store required")
	}
	if cfg.Oracle == nil {
		return nil, fmt.Errorf("oracle required")
	}
	maxLen := cfg.MaxQuestionLen
	if maxLen <= 0 {
		maxLen = defaultMaxQuestionLen
	}
	minWords := cfg.MinQuestionWords
	if minWords <= 0 {
		minWords = defaultMinQuestionWords
	}
	return &App{
		store:            cfg.Store,
		oracle:           cfg.Oracle,
		locks:            newSessionLocks(),
		maxQuestionLen:   maxLen,
		minQuestionWords: minWords,
	}, nil
}

// AskResult summarizes one evaluated question back to the player.
type AskResult struct {
	Verdict     domain.Verdict `json:"verdict"`
	Explanation string         `json:"explanation,omitempty"`
	Discovered  *domain.Phrase `json:"discoveredPhrase,omitempty"`
	CoinsEarned int            `json:"coinsEarned,omitempty"`
	Coins       int            `json:"coins"`
	// BlockCompleted reports that this turn closed a discovery unit.
	BlockCompleted bool `json:"blockCompleted,omitempty"`
	StoryCompleted bool `json:"storyCompleted,omitempty"`
}

// HintResult is the outcome of a hint unlock.
type HintResult struct {
	Coins         int    `json:"coins"`
	UnlockedHints []int  `json:"unlockedHints"`
	Hint          string `json:"hint"`
}

// RevealResult is the outcome of a paid phrase reveal.
type RevealResult struct {
	Coins           int            `json:"coins"`
	PhrasesRevealed int            `json:"phrasesRevealedCount"`
	Phrase          *domain.Phrase `json:"phrase,omitempty"`
	StoryCompleted  bool           `json:"storyCompleted,omitempty"`
}

// ListStories returns active stories.
func (a *App) ListStories() ([]domain.Story, error) {
	stories, err := a.store.ListActiveStories()
	if err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}
	return stories, nil
}

// GetStory returns one story by id.
func (a *App) GetStory(id string) (domain.Story, error) {
	story, ok, err := a.store.GetStory(id)
	if err != nil {
		return domain.Story{}, fmt.Errorf("load story: %w", err)
	}
	if !ok {
		return domain.Story{}, ErrStoryNotFound
	}
	return story, nil
}

// CreateStory validates and persists a new story. Phrase orders must form a
// dense 1..N sequence and a story needs at least one phrase.
func (a *App) CreateStory(story domain.Story) (domain.Story, error) {
	if strings.TrimSpace(story.Title) == "" {
		return domain.Story{}, fmt.Errorf("story title required")
	}
	if strings.TrimSpace(story.Context) == "" {
		return domain.Story{}, fmt.Errorf("story context required")
	}
	if strings.TrimSpace(story.Solution) == "" {
		return domain.Story{}, fmt.Errorf("story solution required")
	}
	if len(story.Phrases) == 0 {
		return domain.Story{}, fmt.Errorf("story needs at least one phrase")
	}
	sort.Slice(story.Phrases, func(i, j int) bool {
		return story.Phrases[i].Order < story.Phrases[j].Order
	})
	for i := range story.Phrases {
		if story.Phrases[i].Order != i+1 {
			return domain.Story{}, fmt.Errorf("phrase orders must form a dense 1..%d sequence", len(story.Phrases))
		}
		if strings.TrimSpace(story.Phrases[i].Text) == "" {
			return domain.Story{}, fmt.Errorf("phrase %d has empty text", i+1)
		}
	}
	if story.ID == "" {
		story.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if story.CreatedAt.IsZero() {
		story.CreatedAt = now
	}
	story.UpdatedAt = now
	for i := range story.Phrases {
		if story.Phrases[i].ID == "" {
			story.Phrases[i].ID = uuid.NewString()
		}
		story.Phrases[i].StoryID = story.ID
	}
	if err := a.store.SaveStory(story); err != nil {
		return domain.Story{}, fmt.Errorf("save story: %w", err)
	}
	return story, nil
}

// StartSession always creates a fresh session for the story; a restart never
// resumes prior coin or discovery state.
func (a *App) StartSession(storyID string) (domain.Session, error) {
	story, ok, err := a.store.GetStory(storyID)
	if err != nil {
		return domain.Session{}, fmt.Errorf("load story: %w", err)
	}
	if !ok || !story.Active {
		return domain.Session{}, ErrStoryNotFound
	}
	now := time.Now().UTC()
	session := domain.Session{
		ID:            uuid.NewString(),
		StoryID:       story.ID,
		Coins:         StartingCoins,
		Discovered:    []string{},
		UnlockedHints: []int{},
		Status:        domain.SessionActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := a.store.CreateSession(session); err != nil {
		return domain.Session{}, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// GetSessionState returns the current session snapshot.
func (a *App) GetSessionState(sessionID string) (domain.Session, error) {
	session, ok, err := a.store.GetSession(sessionID)
	if err != nil {
		return domain.Session{}, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return domain.Session{}, ErrSessionNotFound
	}
	return session, nil
}

// AskQuestion runs the full question-evaluation protocol: validate the text,
// check affordability, consult the oracle with only undiscovered phrases,
// interpret the verdict and apply it to the session.
func (a *App) AskQuestion(ctx context.Context, sessionID, storyID, question string) (AskResult, error) {
	mu := a.locks.lock(sessionID)
	defer mu.Unlock()

	session, ok, err := a.store.GetSession(sessionID)
	if err != nil {
		return AskResult{}, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return AskResult{}, ErrSessionNotFound
	}
	if storyID != "" && storyID != session.StoryID {
		return AskResult{}, ErrStoryNotFound
	}
	if session.Status != domain.SessionActive {
		return AskResult{}, ErrSessionCompleted
	}

	// Cheap local validation runs before any coin deduction and before the
	// expensive oracle call. Rejections answer as irrelevant, free of charge.
	if reason, ok := a.validQuestion(question); !ok {
		return AskResult{
			Verdict:     domain.VerdictIrrelevant,
			Explanation: reason,
			Coins:       session.Coins,
		}, nil
	}
	if session.Coins < QuestionCost {
		return AskResult{}, ErrInsufficientCoins
	}

	story, ok, err := a.store.GetStory(session.StoryID)
	if err != nil {
		return AskResult{}, fmt.Errorf("load story: %w", err)
	}
	if !ok {
		return AskResult{}, ErrStoryNotFound
	}

	// Discovered phrases are never offered back as match candidates.
	candidates := make([]domain.Phrase, 0, len(story.Phrases))
	for _, p := range story.Phrases {
		if !session.HasDiscovered(p.ID) {
			candidates = append(candidates, p)
		}
	}

	raw := a.oracle.Evaluate(ctx, question, story.Context, candidates)
	result := Interpret(raw, candidates)

	outcome, err := applyQuestion(&session, story, result)
	if err != nil {
		return AskResult{}, err
	}

	entry := domain.QuestionLogEntry{
		ID:          uuid.NewString(),
		SessionID:   session.ID,
		StoryID:     story.ID,
		Question:    question,
		Verdict:     result.Verdict,
		Explanation: result.Explanation,
		CreatedAt:   time.Now().UTC(),
	}
	if outcome.Discovered != nil {
		entry.PhraseID = outcome.Discovered.ID
	}
	if err := a.store.SaveTurn(session, &entry); err != nil {
		return AskResult{}, fmt.Errorf("save turn: %w", err)
	}

	return AskResult{
		Verdict:        result.Verdict,
		Explanation:    result.Explanation,
		Discovered:     outcome.Discovered,
		CoinsEarned:    outcome.CoinsEarned,
		Coins:          session.Coins,
		BlockCompleted: outcome.Discovered != nil,
		StoryCompleted: outcome.StoryCompleted,
	}, nil
}

// UnlockHint charges the escalating hint price and unlocks the hint text.
// Replaying an already-unlocked index returns the current state unchanged.
func (a *App) UnlockHint(sessionID string, index int) (HintResult, error) {
	mu := a.locks.lock(sessionID)
	defer mu.Unlock()

	session, ok, err := a.store.GetSession(sessionID)
	if err != nil {
		return HintResult{}, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return HintResult{}, ErrSessionNotFound
	}
	story, ok, err := a.store.GetStory(session.StoryID)
	if err != nil {
		return HintResult{}, fmt.Errorf("load story: %w", err)
	}
	if !ok {
		return HintResult{}, ErrStoryNotFound
	}

	switch err := applyHintUnlock(&session, story, index); err {
	case nil:
		if err := a.store.SaveTurn(session, nil); err != nil {
			return HintResult{}, fmt.Errorf("save session: %w", err)
		}
	case ErrHintUnlocked:
		// Idempotent replay: absorb and return the unchanged state.
	default:
		return HintResult{}, err
	}

	return HintResult{
		Coins:         session.Coins,
		UnlockedHints: session.UnlockedHints,
		Hint:          story.Hints[index],
	}, nil
}

// RevealPhrase is the paid skip action. Replaying a reveal for an already
// discovered phrase returns the current state unchanged.
func (a *App) RevealPhrase(sessionID, phraseID string) (RevealResult, error) {
	mu := a.locks.lock(sessionID)
	defer mu.Unlock()

	session, ok, err := a.store.GetSession(sessionID)
	if err != nil {
		return RevealResult{}, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return RevealResult{}, ErrSessionNotFound
	}
	story, ok, err := a.store.GetStory(session.StoryID)
	if err != nil {
		return RevealResult{}, fmt.Errorf("load story: %w", err)
	}
	if !ok {
		return RevealResult{}, ErrStoryNotFound
	}

	outcome, err := applyReveal(&session, story, phraseID)
	switch err {
	case nil:
		entry := domain.QuestionLogEntry{
			ID:          uuid.NewString(),
			SessionID:   session.ID,
			StoryID:     story.ID,
			Verdict:     domain.VerdictYes,
			PhraseID:    phraseID,
			Explanation: "revealed by player",
			CreatedAt:   time.Now().UTC(),
		}
		if err := a.store.SaveTurn(session, &entry); err != nil {
			return RevealResult{}, fmt.Errorf("save turn: %w", err)
		}
	case ErrPhraseDiscovered:
		// Idempotent replay: absorb and return the unchanged state.
	default:
		return RevealResult{}, err
	}

	return RevealResult{
		Coins:           session.Coins,
		PhrasesRevealed: len(session.Discovered),
		Phrase:          outcome.Discovered,
		StoryCompleted:  outcome.StoryCompleted,
	}, nil
}

// RevealedPhrases lists the phrases this session has uncovered, derived from
// the session-tagged question log, in story order.
func (a *App) RevealedPhrases(sessionID, storyID string) ([]domain.Phrase, error) {
	session, ok, err := a.store.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return nil, ErrSessionNotFound
	}
	if storyID == "" {
		storyID = session.StoryID
	}
	if storyID != session.StoryID {
		return nil, ErrStoryNotFound
	}
	story, ok, err := a.store.GetStory(storyID)
	if err != nil {
		return nil, fmt.Errorf("load story: %w", err)
	}
	if !ok {
		return nil, ErrStoryNotFound
	}
	entries, err := a.store.ListDiscoveries(sessionID, storyID)
	if err != nil {
		return nil, fmt.Errorf("list discoveries: %w", err)
	}
	seen := make(map[string]bool)
	phrases := make([]domain.Phrase, 0, len(entries))
	for _, entry := range entries {
		if entry.Verdict != domain.VerdictYes || entry.PhraseID == "" || seen[entry.PhraseID] {
			continue
		}
		if phrase, ok := story.PhraseByID(entry.PhraseID); ok {
			seen[phrase.ID] = true
			phrases = append(phrases, phrase)
		}
	}
	sort.Slice(phrases, func(i, j int) bool { return phrases[i].Order < phrases[j].Order })
	return phrases, nil
}

// validQuestion applies the boundary checks that must precede the oracle.
func (a *App) validQuestion(question string) (string, bool) {
	trimmed := strings.TrimSpace(question)
	if trimmed == "" {
		return "Ask a yes/no question about the story.", false
	}
	if len([]rune(trimmed)) > a.maxQuestionLen {
		return fmt.Sprintf("Questions are limited to %d characters.", a.maxQuestionLen), false
	}
	if len(strings.Fields(trimmed)) < a.minQuestionWords {
		return "That question is too short to evaluate.", false
	}
	return "", true
}
