package entity

import (
	"time"
)

// Значения по умолчанию для таймингов викторины
const (
	DefaultTimeLimitMs   = 30000
	DefaultRevealDelayMs = 2000
)

// Режимы прохождения викторины
const (
	QuizModeSolo = "solo"
	QuizModeLive = "live"
)

// Quiz представляет определение викторины: упорядоченный банк вопросов
// и тайминги прохождения. Сессии создаются поверх определения и в базе
// не живут - архивируются только их итоги.
type Quiz struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Title         string     `gorm:"size:100;not null" json:"title"`
	Description   string     `gorm:"size:500;not null;default:''" json:"description"`
	TimeLimitMs   int        `gorm:"not null;default:30000" json:"time_limit_ms"`
	RevealDelayMs int        `gorm:"not null;default:2000" json:"reveal_delay_ms"`
	QuestionCount int        `gorm:"not null;default:0" json:"question_count"`
	Questions     []Question `gorm:"foreignKey:QuizID" json:"questions,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Quiz) TableName() string {
	return "quizzes"
}

// TimeLimit возвращает лимит времени на вопрос как Duration
func (q *Quiz) TimeLimit() time.Duration {
	if q.TimeLimitMs <= 0 {
		return DefaultTimeLimitMs * time.Millisecond
	}
	return time.Duration(q.TimeLimitMs) * time.Millisecond
}

// RevealDelay возвращает паузу показа правильного ответа как Duration
func (q *Quiz) RevealDelay() time.Duration {
	if q.RevealDelayMs < 0 {
		return DefaultRevealDelayMs * time.Millisecond
	}
	return time.Duration(q.RevealDelayMs) * time.Millisecond
}

// HasQuestions проверяет, есть ли у викторины вопросы
func (q *Quiz) HasQuestions() bool {
	return len(q.Questions) > 0
}
