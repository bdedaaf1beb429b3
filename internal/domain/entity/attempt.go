package entity

import (
	"time"
)

// Исходы попытки ответа
const (
	AttemptOutcomeAnswered = "answered"
	AttemptOutcomeTimedOut = "timed_out"
)

// AttemptRecord представляет заархивированную попытку ответа на вопрос
// в рамках сессии. Уникальный индекс (session_id, question_id) дублирует
// на уровне хранилища инвариант движка "одна попытка на вопрос".
type AttemptRecord struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	SessionID string `gorm:"size:36;not null;index;uniqueIndex:idx_session_question" json:"session_id"`
	QuizID    uint   `gorm:"not null;index" json:"quiz_id"`

	QuestionID uint `gorm:"not null;uniqueIndex:idx_session_question" json:"question_id"`

	// SelectedOption равен nil при таймауте без выбора
	SelectedOption *int `json:"selected_option"`

	IsCorrect      bool      `gorm:"not null" json:"is_correct"`
	ResponseTimeMs int64     `gorm:"not null" json:"response_time_ms"`
	Outcome        string    `gorm:"size:20;not null" json:"outcome"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (AttemptRecord) TableName() string {
	return "session_attempts"
}
