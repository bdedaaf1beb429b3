package service

import (
	"fmt"
	"log"
	"time"

	"github.com/Tutor-DA/quiz-api/internal/domain/entity"
	"github.com/Tutor-DA/quiz-api/internal/domain/repository"
	apperrors "github.com/Tutor-DA/quiz-api/internal/pkg/errors"
)

// Время жизни кеша итогового лидерборда викторины
const resultsCacheTTL = 2 * time.Minute

// QuizStatistics - агрегированная статистика по заархивированным
// итогам викторины
type QuizStatistics struct {
	QuizID           uint    `json:"quiz_id"`
	SessionCount     int     `json:"session_count"`
	AverageScore     float64 `json:"average_score"`
	HighestScore     int     `json:"highest_score"`
	AverageCorrect  float64 `json:"average_correct"`
	PerfectSessions int     `json:"perfect_sessions"`
}

// ResultService предоставляет доступ к заархивированным итогам сессий
type ResultService struct {
	resultRepo repository.ResultRepository
	cacheRepo  repository.CacheRepository
}

// NewResultService создает новый сервис результатов
func NewResultService(
	resultRepo repository.ResultRepository,
	cacheRepo repository.CacheRepository,
) *ResultService {
	return &ResultService{
		resultRepo: resultRepo,
		cacheRepo:  cacheRepo,
	}
}

// GetSessionResult возвращает итог завершенной сессии
func (s *ResultService) GetSessionResult(sessionID string) (*entity.SessionResult, error) {
	return s.resultRepo.GetSessionResult(sessionID)
}

// GetSessionAttempts возвращает заархивированные попытки сессии
// в порядке вопросов
func (s *ResultService) GetSessionAttempts(sessionID string) ([]entity.AttemptRecord, error) {
	return s.resultRepo.GetSessionAttempts(sessionID)
}

// GetQuizResults возвращает страницу итогового лидерборда викторины.
// Первая страница кешируется в Redis: именно ее запрашивают чаще всего.
func (s *ResultService) GetQuizResults(quizID uint, page, pageSize int) ([]entity.SessionResult, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	cacheKey := fmt.Sprintf("results:quiz:%d:page:%d:size:%d", quizID, page, pageSize)
	if page == 1 {
		var cached struct {
			Results []entity.SessionResult `json:"results"`
			Total   int64                  `json:"total"`
		}
		if err := s.cacheRepo.GetJSON(cacheKey, &cached); err == nil {
			return cached.Results, cached.Total, nil
		}
	}

	offset := (page - 1) * pageSize
	results, total, err := s.resultRepo.GetQuizResults(quizID, pageSize, offset)
	if err != nil {
		return nil, 0, err
	}

	if page == 1 {
		payload := struct {
			Results []entity.SessionResult `json:"results"`
			Total   int64                  `json:"total"`
		}{Results: results, Total: total}
		if err := s.cacheRepo.SetJSON(cacheKey, payload, resultsCacheTTL); err != nil {
			log.Printf("[ResultService] Ошибка кеширования результатов викторины ID=%d: %v", quizID, err)
		}
	}

	return results, total, nil
}

// GetAllQuizResults возвращает все итоги викторины без пагинации (экспорт)
func (s *ResultService) GetAllQuizResults(quizID uint) ([]entity.SessionResult, error) {
	return s.resultRepo.GetAllQuizResults(quizID)
}

// CalculateQuizStatistics считает агрегированную статистику викторины
// по заархивированным итогам
func (s *ResultService) CalculateQuizStatistics(quizID uint) (*QuizStatistics, error) {
	results, err := s.resultRepo.GetAllQuizResults(quizID)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("no results for quiz %d: %w", quizID, apperrors.ErrNotFound)
	}

	stats := &QuizStatistics{QuizID: quizID, SessionCount: len(results)}
	totalScore := 0
	totalCorrect := 0
	for _, r := range results {
		totalScore += r.Score
		totalCorrect += r.CorrectCount
		if r.Score > stats.HighestScore {
			stats.HighestScore = r.Score
		}
		if r.TotalCount > 0 && r.CorrectCount == r.TotalCount {
			stats.PerfectSessions++
		}
	}
	stats.AverageScore = float64(totalScore) / float64(len(results))
	stats.AverageCorrect = float64(totalCorrect) / float64(len(results))

	return stats, nil
}
