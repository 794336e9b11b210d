package app

import "errors"

var (
	// ErrStoryNotFound indicates an unknown or inactive story id.
	ErrStoryNotFound = errors.New("story not found")
	// ErrSessionNotFound indicates an unknown session id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionCompleted rejects mutations on a finished session.
	ErrSessionCompleted = errors.New("session already completed")
	// ErrInsufficientCoins rejects paid actions the balance cannot cover.
	ErrInsufficientCoins = errors.New("insufficient coins")
	// ErrHintUnlocked is raised at the state-machine boundary for a hint
	// index that is already unlocked; the session-facing API absorbs it.
	ErrHintUnlocked = errors.New("hint already unlocked")
	// ErrUnknownHint rejects hint indexes outside the story's hint list.
	ErrUnknownHint = errors.New("unknown hint index")
	// ErrUnknownPhrase rejects phrase ids not belonging to the story.
	ErrUnknownPhrase = errors.New("unknown phrase")
	// ErrPhraseDiscovered is raised at the state-machine boundary for a
	// phrase already in the discovered set; the session-facing API absorbs it.
	ErrPhraseDiscovered = errors.New("phrase already discovered")
)
