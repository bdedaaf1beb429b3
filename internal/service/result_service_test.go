package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Tutor-DA/quiz-api/internal/domain/entity"
	apperrors "github.com/Tutor-DA/quiz-api/internal/pkg/errors"
)

func sampleResults() []entity.SessionResult {
	now := time.Now()
	return []entity.SessionResult{
		{SessionID: "s1", QuizID: 1, ParticipantID: "user-1", Score: 5, CorrectCount: 5, TotalCount: 5, Rank: 1, CompletedAt: now},
		{SessionID: "s2", QuizID: 1, ParticipantID: "user-2", Score: 3, CorrectCount: 3, TotalCount: 5, Rank: 2, CompletedAt: now},
		{SessionID: "s3", QuizID: 1, ParticipantID: "user-3", Score: 1, CorrectCount: 1, TotalCount: 5, Rank: 3, CompletedAt: now},
	}
}

func TestResultService_GetQuizResults_CacheMiss(t *testing.T) {
	resultRepo := new(MockResultRepository)
	cacheRepo := new(MockCacheRepository)
	svc := NewResultService(resultRepo, cacheRepo)

	cacheRepo.On("GetJSON", mock.Anything, mock.Anything).Return(apperrors.ErrNotFound)
	resultRepo.On("GetQuizResults", uint(1), 20, 0).Return(sampleResults(), int64(3), nil)
	cacheRepo.On("SetJSON", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	results, total, err := svc.GetQuizResults(1, 1, 20)

	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, results, 3)
	assert.Equal(t, 1, results[0].Rank)

	// Первая страница кладется в кеш
	cacheRepo.AssertCalled(t, "SetJSON", mock.Anything, mock.Anything, mock.Anything)
}

func TestResultService_GetQuizResults_SecondPageSkipsCache(t *testing.T) {
	resultRepo := new(MockResultRepository)
	cacheRepo := new(MockCacheRepository)
	svc := NewResultService(resultRepo, cacheRepo)

	resultRepo.On("GetQuizResults", uint(1), 20, 20).Return([]entity.SessionResult{}, int64(3), nil)

	_, _, err := svc.GetQuizResults(1, 2, 20)

	require.NoError(t, err)
	cacheRepo.AssertNotCalled(t, "GetJSON", mock.Anything, mock.Anything)
	cacheRepo.AssertNotCalled(t, "SetJSON", mock.Anything, mock.Anything, mock.Anything)
}

func TestResultService_GetQuizResults_NormalizesPaging(t *testing.T) {
	resultRepo := new(MockResultRepository)
	cacheRepo := new(MockCacheRepository)
	svc := NewResultService(resultRepo, cacheRepo)

	cacheRepo.On("GetJSON", mock.Anything, mock.Anything).Return(apperrors.ErrNotFound)
	resultRepo.On("GetQuizResults", uint(1), 20, 0).Return([]entity.SessionResult{}, int64(0), nil)
	cacheRepo.On("SetJSON", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, _, err := svc.GetQuizResults(1, -3, 500)

	require.NoError(t, err)
	resultRepo.AssertCalled(t, "GetQuizResults", uint(1), 20, 0)
}

func TestResultService_CalculateQuizStatistics(t *testing.T) {
	resultRepo := new(MockResultRepository)
	cacheRepo := new(MockCacheRepository)
	svc := NewResultService(resultRepo, cacheRepo)

	resultRepo.On("GetAllQuizResults", uint(1)).Return(sampleResults(), nil)

	stats, err := svc.CalculateQuizStatistics(1)

	require.NoError(t, err)
	assert.Equal(t, 3, stats.SessionCount)
	assert.Equal(t, 5, stats.HighestScore)
	assert.InDelta(t, 3.0, stats.AverageScore, 0.001)
	assert.InDelta(t, 3.0, stats.AverageCorrect, 0.001)
	assert.Equal(t, 1, stats.PerfectSessions)
}

func TestResultService_CalculateQuizStatistics_NoResults(t *testing.T) {
	resultRepo := new(MockResultRepository)
	cacheRepo := new(MockCacheRepository)
	svc := NewResultService(resultRepo, cacheRepo)

	resultRepo.On("GetAllQuizResults", uint(9)).Return([]entity.SessionResult{}, nil)

	_, err := svc.CalculateQuizStatistics(9)

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
