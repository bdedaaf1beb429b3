package postgres

import (
	"errors"
	"log"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/Tutor-DA/quiz-api/internal/domain/entity"
	"github.com/Tutor-DA/quiz-api/internal/domain/repository"
	apperrors "github.com/Tutor-DA/quiz-api/internal/pkg/errors"
)

// Код ошибки PostgreSQL для нарушения уникального индекса
const pgUniqueViolation = "23505"

// ResultRepo реализует repository.ResultRepository
type ResultRepo struct {
	db *gorm.DB
}

// NewResultRepo создает новый репозиторий результатов
func NewResultRepo(db *gorm.DB) *ResultRepo {
	return &ResultRepo{db: db}
}

// SaveAttempt вставляет попытку. Нарушение уникального индекса
// (session_id, question_id) транслируется в ErrDuplicateAttempt:
// хранилище дублирует инвариант леджера "одна попытка на вопрос".
func (r *ResultRepo) SaveAttempt(attempt *entity.AttemptRecord) error {
	if err := r.db.Create(attempt).Error; err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation {
			return repository.ErrDuplicateAttempt
		}
		return err
	}
	return nil
}

// GetSessionAttempts возвращает попытки сессии в порядке записи
func (r *ResultRepo) GetSessionAttempts(sessionID string) ([]entity.AttemptRecord, error) {
	var attempts []entity.AttemptRecord
	err := r.db.Where("session_id = ?", sessionID).Order("id").Find(&attempts).Error
	return attempts, err
}

// SaveResult сохраняет итог завершенной сессии
func (r *ResultRepo) SaveResult(result *entity.SessionResult) error {
	return r.db.Create(result).Error
}

// GetSessionResult возвращает итог сессии
func (r *ResultRepo) GetSessionResult(sessionID string) (*entity.SessionResult, error) {
	var result entity.SessionResult
	err := r.db.Where("session_id = ?", sessionID).First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}

// GetQuizResults возвращает страницу итогов викторины по рангу
func (r *ResultRepo) GetQuizResults(quizID uint, limit, offset int) ([]entity.SessionResult, int64, error) {
	var results []entity.SessionResult
	var total int64

	if err := r.db.Model(&entity.SessionResult{}).Where("quiz_id = ?", quizID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.Where("quiz_id = ?", quizID).
		Order("rank ASC, score DESC, completed_at ASC").
		Limit(limit).Offset(offset).
		Find(&results).Error
	if err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

// GetAllQuizResults возвращает все итоги викторины (экспорт в xlsx)
func (r *ResultRepo) GetAllQuizResults(quizID uint) ([]entity.SessionResult, error) {
	var results []entity.SessionResult
	err := r.db.Where("quiz_id = ?", quizID).
		Order("rank ASC, score DESC, completed_at ASC").
		Find(&results).Error
	return results, err
}

// CalculateRanks вычисляет и сохраняет ранги всех итогов викторины, используя SQL.
// Ничьи по счету разрешаются в пользу того, кто завершил сессию раньше.
func (r *ResultRepo) CalculateRanks(quizID uint) error {
	sql := `
	WITH RankedResults AS (
	    SELECT
	        id,
	        RANK() OVER (ORDER BY score DESC, completed_at ASC, session_id ASC) as calculated_rank
	    FROM session_results
	    WHERE quiz_id = ?
	)
	UPDATE session_results sr
	SET rank = rr.calculated_rank
	FROM RankedResults rr
	WHERE sr.id = rr.id AND sr.quiz_id = ?;`

	if err := r.db.Exec(sql, quizID, quizID).Error; err != nil {
		log.Printf("[ResultRepo] Ошибка пересчета рангов для викторины #%d: %v", quizID, err)
		return err
	}
	return nil
}
