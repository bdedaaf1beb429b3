package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Форматы текста вопроса. Явный тег вместо распознавания разметки регулярками.
const (
	PromptFormatPlain = "plain"
	PromptFormatMath  = "math"
)

// Option представляет вариант ответа внутри вопроса
type Option struct {
	ID        int    `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// OptionArray - пользовательский тип для хранения вариантов в JSONB
type OptionArray []Option

// Scan реализует интерфейс sql.Scanner для OptionArray
// Используется GORM для чтения JSONB данных из базы
func (o *OptionArray) Scan(value interface{}) error {
	// Обработка NULL значений из базы данных
	if value == nil {
		*o = OptionArray{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to unmarshal JSONB value: expected []byte")
	}

	if len(bytes) == 0 {
		*o = OptionArray{}
		return nil
	}

	return json.Unmarshal(bytes, o)
}

// Value реализует интерфейс driver.Valuer для OptionArray
// Используется GORM для записи OptionArray в JSONB в базе
func (o OptionArray) Value() (driver.Value, error) {
	if len(o) == 0 {
		return []byte("[]"), nil // Возвращаем пустой JSON массив вместо null
	}
	return json.Marshal(o)
}

// Question представляет вопрос банка вопросов
type Question struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	QuizID       uint        `gorm:"not null;index" json:"quiz_id"`
	Prompt       string      `gorm:"size:500;not null" json:"prompt"`
	PromptFormat string      `gorm:"size:10;not null;default:'plain'" json:"prompt_format"`
	Options      OptionArray `gorm:"type:jsonb;not null" json:"options"`
	PointValue   int         `gorm:"not null;default:1" json:"point_value"`
	Hint         string      `gorm:"size:500;not null;default:''" json:"hint,omitempty"`
	Explanation  string      `gorm:"size:1000;not null;default:''" json:"explanation,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Question) TableName() string {
	return "questions"
}

// IsCorrect проверяет, является ли выбранный вариант правильным
func (q *Question) IsCorrect(optionID int) bool {
	for _, opt := range q.Options {
		if opt.ID == optionID {
			return opt.IsCorrect
		}
	}
	return false
}

// IsValidOption проверяет, принадлежит ли вариант вопросу
func (q *Question) IsValidOption(optionID int) bool {
	for _, opt := range q.Options {
		if opt.ID == optionID {
			return true
		}
	}
	return false
}

// OptionsCount возвращает количество вариантов ответа
func (q *Question) OptionsCount() int {
	return len(q.Options)
}

// CorrectOptionIDs возвращает ID правильных вариантов
func (q *Question) CorrectOptionIDs() []int {
	ids := make([]int, 0, 1)
	for _, opt := range q.Options {
		if opt.IsCorrect {
			ids = append(ids, opt.ID)
		}
	}
	return ids
}
