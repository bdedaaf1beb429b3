package engine

import (
	"fmt"
	"math/rand"
)

// Ограничения на количество вариантов ответа в вопросе
const (
	MinOptionsPerQuestion = 2
	MaxOptionsPerQuestion = 6
)

// PromptFormat определяет формат текста вопроса.
// Явный тег вместо распознавания разметки регулярками.
type PromptFormat string

const (
	PromptFormatPlain PromptFormat = "plain"
	PromptFormatMath  PromptFormat = "math"
)

// Option представляет вариант ответа. Неизменяем после создания вопроса.
type Option struct {
	// ID уникален в пределах вопроса
	ID int

	Text string

	// IsCorrect фиксирован независимо от порядка показа
	IsCorrect bool
}

// Question представляет вопрос викторины. Создается один раз при
// конструировании сессии из банка вопросов и далее не изменяется.
type Question struct {
	ID          uint
	Prompt      string
	Format      PromptFormat
	Options     []Option
	PointValue  int
	Hint        string
	Explanation string
}

// Validate проверяет инвариант вопроса: 2-6 вариантов, уникальные ID
// вариантов, хотя бы один правильный, положительная стоимость.
func (q *Question) Validate() error {
	if len(q.Options) < MinOptionsPerQuestion || len(q.Options) > MaxOptionsPerQuestion {
		return fmt.Errorf("question #%d: options count must be between %d and %d, got %d",
			q.ID, MinOptionsPerQuestion, MaxOptionsPerQuestion, len(q.Options))
	}
	if q.PointValue <= 0 {
		return fmt.Errorf("question #%d: point value must be positive, got %d", q.ID, q.PointValue)
	}
	if q.Format != PromptFormatPlain && q.Format != PromptFormatMath {
		return fmt.Errorf("question #%d: unknown prompt format %q", q.ID, q.Format)
	}

	seen := make(map[int]bool, len(q.Options))
	correct := 0
	for _, opt := range q.Options {
		if seen[opt.ID] {
			return fmt.Errorf("question #%d: duplicate option id %d", q.ID, opt.ID)
		}
		seen[opt.ID] = true
		if opt.IsCorrect {
			correct++
		}
	}
	if correct == 0 {
		return fmt.Errorf("question #%d: at least one option must be correct", q.ID)
	}
	return nil
}

// HasOption проверяет, принадлежит ли вариант вопросу.
func (q *Question) HasOption(optionID int) bool {
	for _, opt := range q.Options {
		if opt.ID == optionID {
			return true
		}
	}
	return false
}

// IsCorrect проверяет, является ли выбранный вариант правильным.
func (q *Question) IsCorrect(optionID int) bool {
	for _, opt := range q.Options {
		if opt.ID == optionID {
			return opt.IsCorrect
		}
	}
	return false
}

// CorrectOptionIDs возвращает ID правильных вариантов (мульти-вариант — больше одного).
func (q *Question) CorrectOptionIDs() []int {
	ids := make([]int, 0, 1)
	for _, opt := range q.Options {
		if opt.IsCorrect {
			ids = append(ids, opt.ID)
		}
	}
	return ids
}

// ShuffledOptions возвращает копию вариантов в случайном порядке показа.
// Правильность привязана к ID варианта и от порядка не зависит.
func (q *Question) ShuffledOptions(rng *rand.Rand) []Option {
	shuffled := make([]Option, len(q.Options))
	copy(shuffled, q.Options)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled
}

// ValidateBank проверяет весь банк вопросов перед созданием сессии.
func ValidateBank(questions []Question) error {
	if len(questions) == 0 {
		return ErrEmptyQuestionBank
	}
	seen := make(map[uint]bool, len(questions))
	for i := range questions {
		q := &questions[i]
		if seen[q.ID] {
			return fmt.Errorf("duplicate question id %d in bank", q.ID)
		}
		seen[q.ID] = true
		if err := q.Validate(); err != nil {
			return err
		}
	}
	return nil
}
