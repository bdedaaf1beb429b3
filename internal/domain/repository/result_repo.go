package repository

import (
	"github.com/Tutor-DA/quiz-api/internal/domain/entity"
)

// ResultRepository определяет методы для архивирования итогов сессий
type ResultRepository interface {
	// SaveAttempt вставляет попытку. Возвращает ErrDuplicateAttempt,
	// если попытка для пары (сессия, вопрос) уже заархивирована -
	// уникальный индекс БД дублирует инвариант леджера движка.
	SaveAttempt(attempt *entity.AttemptRecord) error
	GetSessionAttempts(sessionID string) ([]entity.AttemptRecord, error)

	SaveResult(result *entity.SessionResult) error
	GetSessionResult(sessionID string) (*entity.SessionResult, error)
	GetQuizResults(quizID uint, limit, offset int) ([]entity.SessionResult, int64, error)
	GetAllQuizResults(quizID uint) ([]entity.SessionResult, error)
	// CalculateRanks пересчитывает и сохраняет ранги всех итогов викторины
	CalculateRanks(quizID uint) error
}
