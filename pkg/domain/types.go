package domain

import "time"

// Verdict is the canonical classification of a player question after the
// oracle's raw output has been interpreted.
type Verdict string

const (
	VerdictYes        Verdict = "yes"
	VerdictNo         Verdict = "no"
	VerdictIrrelevant Verdict = "irrelevant"
)

// SessionStatus tracks the session state machine. Completed is terminal.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
)

// Story is an immutable content unit: a hidden narrative decomposed into
// ordered phrases the player uncovers one by one. Solution, phrases and
// hints are never serialized to players directly.
type Story struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Context   string    `json:"context"`
	Solution  string    `json:"-"`
	Phrases   []Phrase  `json:"-"`
	Hints     []string  `json:"-"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PhraseByID returns the phrase with the given id.
func (s Story) PhraseByID(id string) (Phrase, bool) {
	for _, p := range s.Phrases {
		if p.ID == id {
			return p, true
		}
	}
	return Phrase{}, false
}

// Phrase is an atomic fact belonging to exactly one story. Its text is the
// ground truth the oracle matches against and never changes after creation.
type Phrase struct {
	ID      string `json:"id"`
	StoryID string `json:"storyId"`
	Order   int    `json:"order"`
	Text    string `json:"text"`
}

// Session is the mutable state of one playthrough. The discovered-phrase set
// and unlocked-hint set only ever grow.
type Session struct {
	ID            string        `json:"id"`
	StoryID       string        `json:"storyId"`
	Coins         int           `json:"coins"`
	Discovered    []string      `json:"discovered"`
	UnlockedHints []int         `json:"unlockedHints"`
	Status        SessionStatus `json:"status"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// HasDiscovered reports whether the phrase id is already in the discovered set.
func (s Session) HasDiscovered(phraseID string) bool {
	for _, id := range s.Discovered {
		if id == phraseID {
			return true
		}
	}
	return false
}

// HasHint reports whether the hint index is already unlocked.
func (s Session) HasHint(index int) bool {
	for _, i := range s.UnlockedHints {
		if i == index {
			return true
		}
	}
	return false
}

// EvaluationResult is the interpreter's canonical view of one question.
// It is transient: applied to a session and logged, never stored on its own.
type EvaluationResult struct {
	Verdict     Verdict `json:"verdict"`
	PhraseID    string  `json:"phraseId,omitempty"`
	Explanation string  `json:"explanation,omitempty"`
	// Partial marks a true statement that did not pin down a specific phrase.
	Partial bool `json:"partial,omitempty"`
}

// QuestionLogEntry records one evaluated question (or a paid reveal) for a
// session. Ownership is tagged with the session id directly rather than
// inferred from timestamps.
type QuestionLogEntry struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"sessionId"`
	StoryID     string    `json:"storyId"`
	Question    string    `json:"question"`
	Verdict     Verdict   `json:"verdict"`
	PhraseID    string    `json:"phraseId,omitempty"`
	Explanation string    `json:"explanation,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}
