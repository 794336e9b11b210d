package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type StoryModel struct {
	ID        string `gorm:"primaryKey"`
	Title     string `gorm:"not null"`
	Context   string `gorm:"not null"`
	Solution  string `gorm:"not null"`
	Hints     datatypes.JSON
	Active    bool      `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type PhraseModel struct {
	ID      string `gorm:"primaryKey"`
	StoryID string `gorm:"not null;index"`
	Order   int    `gorm:"not null;column:order_index"`
	Text    string `gorm:"not null"`
}

type SessionModel struct {
	ID            string `gorm:"primaryKey"`
	StoryID       string `gorm:"not null;index"`
	Coins         int    `gorm:"not null"`
	Discovered    datatypes.JSON
	UnlockedHints datatypes.JSON
	Status        string    `gorm:"not null"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

type QuestionLogModel struct {
	ID          string `gorm:"primaryKey"`
	SessionID   string `gorm:"not null;index"`
	StoryID     string `gorm:"not null;index"`
	Question    string `gorm:"not null"`
	Verdict     string `gorm:"not null"`
	PhraseID    string
	Explanation string
	CreatedAt   time.Time `gorm:"not null;index"`
}
