package store

import "github.com/tomrodww/ai-guessing-game/pkg/domain"

// Store defines persistence for stories, sessions and the question log.
type Store interface {
	// stories
	SaveStory(domain.Story) error
	GetStory(id string) (domain.Story, bool, error)
	ListActiveStories() ([]domain.Story, error)

	// sessions
	CreateSession(domain.Session) error
	GetSession(id string) (domain.Session, bool, error)
	// SaveTurn persists a session snapshot and, when entry is non-nil, the
	// question-log entry produced by the same operation. Both writes land
	// atomically or not at all.
	SaveTurn(session domain.Session, entry *domain.QuestionLogEntry) error

	// question log
	ListDiscoveries(sessionID, storyID string) ([]domain.QuestionLogEntry, error)
}
