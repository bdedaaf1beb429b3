package repository

import (
	"github.com/Tutor-DA/quiz-api/internal/domain/entity"
)

// QuizRepository определяет методы для работы с определениями викторин
type QuizRepository interface {
	Create(quiz *entity.Quiz) error
	GetByID(id uint) (*entity.Quiz, error)
	// GetWithQuestions возвращает викторину вместе с упорядоченным банком вопросов
	GetWithQuestions(id uint) (*entity.Quiz, error)
	Update(quiz *entity.Quiz) error
	// IncrementQuestionCount атомарно увеличивает question_count на delta
	IncrementQuestionCount(quizID uint, delta int) error
	List(limit, offset int) ([]entity.Quiz, error)
	Delete(id uint) error
}
