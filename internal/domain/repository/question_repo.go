package repository

import (
	"github.com/Tutor-DA/quiz-api/internal/domain/entity"
)

// QuestionRepository определяет методы для работы с банком вопросов
type QuestionRepository interface {
	Create(question *entity.Question) error
	// CreateBatch вставляет пачку вопросов одной операцией (импорт из xlsx)
	CreateBatch(questions []entity.Question) error
	GetByID(id uint) (*entity.Question, error)
	// GetByQuizID возвращает вопросы викторины в порядке их ID
	GetByQuizID(quizID uint) ([]entity.Question, error)
	Update(question *entity.Question) error
	Delete(id uint) error
}
