package db

import (
	"time"

	"gorm.io/datatypes"
)

type Session struct {
	ID            uint           `gorm:"primaryKey"`
	Code          string         `gorm:"size:12;uniqueIndex;not null"`
	Status        string         `gorm:"size:32;not null"`
	Categories    datatypes.JSON `gorm:"not null"`
	RoundDuration int            `gorm:"not null"`
	TotalRounds   int            `gorm:"not null;default:1"`
	CurrentRound  int            `gorm:"not null;default:1"`
	CurrentLetter string         `gorm:"size:1"`
	CreatedAt     time.Time      `gorm:"not null"`
	UpdatedAt     time.Time      `gorm:"not null"`
	Participants  []Participant
	Submissions   []Submission
	Events        []Event
}

type Participant struct {
	ID         uint      `gorm:"primaryKey"`
	SessionID  uint      `gorm:"index;not null;uniqueIndex:idx_participants_session_name"`
	PlayerID   string    `gorm:"size:36;not null"`
	Name       string    `gorm:"size:64;not null;uniqueIndex:idx_participants_session_name"`
	IsHost     bool      `gorm:"not null;default:false"`
	TotalScore int       `gorm:"not null;default:0"`
	JoinedAt   time.Time `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

type Submission struct {
	ID            uint           `gorm:"primaryKey"`
	SessionID     uint           `gorm:"index;not null;uniqueIndex:idx_submissions_session_round_participant"`
	ParticipantID uint           `gorm:"not null;uniqueIndex:idx_submissions_session_round_participant"`
	Round         int            `gorm:"not null;uniqueIndex:idx_submissions_session_round_participant"`
	Letter        string         `gorm:"size:1;not null"`
	Answers       datatypes.JSON `gorm:"not null"`
	Score         int            `gorm:"not null;default:0"`
	SubmittedAt   time.Time      `gorm:"not null"`
	CreatedAt     time.Time      `gorm:"not null"`
	UpdatedAt     time.Time      `gorm:"not null"`
}

type Event struct {
	ID        uint           `gorm:"primaryKey"`
	SessionID uint           `gorm:"index;not null"`
	Type      string         `gorm:"size:48;not null"`
	Payload   datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time      `gorm:"not null"`
}
