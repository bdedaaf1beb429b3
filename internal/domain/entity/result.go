package entity

import (
	"time"
)

// SessionResult представляет итог одной завершенной сессии викторины.
// Отмененные сессии не архивируются.
type SessionResult struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	SessionID     string    `gorm:"size:36;not null;uniqueIndex" json:"session_id"`
	QuizID        uint      `gorm:"not null;index" json:"quiz_id"`
	ParticipantID string    `gorm:"size:64;not null;index" json:"participant_id"`
	DisplayName   string    `gorm:"size:50;not null;default:''" json:"display_name"`
	Score         int       `gorm:"not null;default:0" json:"score"`
	CorrectCount  int       `gorm:"not null;default:0" json:"correct_count"`
	TotalCount    int       `gorm:"not null;default:0" json:"total_count"`
	Rank          int       `gorm:"not null;default:0;index:idx_quiz_rank" json:"rank"`
	CompletedAt   time.Time `gorm:"not null" json:"completed_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (SessionResult) TableName() string {
	return "session_results"
}
