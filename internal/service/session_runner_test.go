package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Tutor-DA/quiz-api/internal/domain/entity"
	"github.com/Tutor-DA/quiz-api/internal/engine"
	apperrors "github.com/Tutor-DA/quiz-api/internal/pkg/errors"
)

// testQuiz возвращает викторину с двумя вопросами и короткой паузой
// показа ответа, чтобы авто-переходы в тестах не тянулись секундами
func testQuiz() *entity.Quiz {
	return &entity.Quiz{
		ID:            1,
		Title:         "Дроби",
		TimeLimitMs:   5000,
		RevealDelayMs: 20,
		QuestionCount: 2,
		Questions: []entity.Question{
			{ID: 10, QuizID: 1, Prompt: "2+2?", PromptFormat: entity.PromptFormatPlain, Options: validOptions(), PointValue: 1},
			{ID: 11, QuizID: 1, Prompt: "2*2?", PromptFormat: entity.PromptFormatPlain, Options: validOptions(), PointValue: 2},
		},
	}
}

func newTestRunner(t *testing.T) (*SessionRunner, *MockQuizRepository, *MockResultRepository, *MockCacheRepository, *recordingPublisher) {
	t.Helper()
	quizRepo := new(MockQuizRepository)
	resultRepo := new(MockResultRepository)
	cacheRepo := new(MockCacheRepository)
	publisher := newRecordingPublisher()
	runner := NewSessionRunner(quizRepo, resultRepo, cacheRepo, publisher)
	return runner, quizRepo, resultRepo, cacheRepo, publisher
}

// ====================================================================
// Запуск сессии
// ====================================================================

func TestSessionRunner_StartSession(t *testing.T) {
	runner, quizRepo, _, _, publisher := newTestRunner(t)
	quizRepo.On("GetWithQuestions", uint(1)).Return(testQuiz(), nil)

	sessionID, err := runner.StartSession(1, "user-1", "Айгерим")

	require.NoError(t, err)
	require.NotEmpty(t, sessionID)
	assert.Equal(t, 1, runner.ActiveSessionCount())

	// Первый вопрос опубликован сразу, без флагов правильности
	event, ok := publisher.lastOfType(EventQuestion)
	require.True(t, ok)
	assert.Equal(t, sessionID, event.RoomID)
	payload := event.Data.(map[string]interface{})
	assert.Equal(t, uint(10), payload["question_id"])
	options := payload["options"].([]optionView)
	require.Len(t, options, 3)

	snapshot, err := runner.GetSnapshot(sessionID)
	require.NoError(t, err)
	assert.Equal(t, engine.StateQuestionActive, snapshot.State)

	require.NoError(t, runner.CancelSession(sessionID, "user-1"))
}

func TestSessionRunner_StartSession_QuizNotFound(t *testing.T) {
	runner, quizRepo, _, _, _ := newTestRunner(t)
	quizRepo.On("GetWithQuestions", uint(42)).Return(nil, apperrors.ErrNotFound)

	_, err := runner.StartSession(42, "user-1", "Айгерим")

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Equal(t, 0, runner.ActiveSessionCount())
}

func TestSessionRunner_StartSession_EmptyBank(t *testing.T) {
	runner, quizRepo, _, _, _ := newTestRunner(t)
	quiz := &entity.Quiz{ID: 2, Title: "Пустая"}
	quizRepo.On("GetWithQuestions", uint(2)).Return(quiz, nil)

	_, err := runner.StartSession(2, "user-1", "Айгерим")

	assert.ErrorIs(t, err, ErrQuizHasNoQuestions)
}

// ====================================================================
// Прохождение сессии до конца
// ====================================================================

func TestSessionRunner_FullFlow(t *testing.T) {
	runner, quizRepo, resultRepo, cacheRepo, publisher := newTestRunner(t)
	quizRepo.On("GetWithQuestions", uint(1)).Return(testQuiz(), nil)
	resultRepo.On("SaveAttempt", mock.AnythingOfType("*entity.AttemptRecord")).Return(nil)
	resultRepo.On("SaveResult", mock.AnythingOfType("*entity.SessionResult")).Return(nil)
	resultRepo.On("CalculateRanks", uint(1)).Return(nil)
	cacheRepo.On("SetJSON", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	sessionID, err := runner.StartSession(1, "user-1", "Айгерим")
	require.NoError(t, err)

	// Отвечаем правильно на первый вопрос
	require.NoError(t, runner.SubmitAnswer(sessionID, "user-1", 2))

	reveal, ok := publisher.lastOfType(EventAnswerReveal)
	require.True(t, ok)
	revealData := reveal.Data.(map[string]interface{})
	assert.Equal(t, true, revealData["is_correct"])
	assert.Equal(t, 1, revealData["running_score"])

	// Авто-переход активирует второй вопрос
	require.Eventually(t, func() bool {
		return publisher.countByType(EventQuestion) == 2
	}, 2*time.Second, 5*time.Millisecond)

	// Отвечаем неправильно на второй
	require.NoError(t, runner.SubmitAnswer(sessionID, "user-1", 1))

	// Сессия завершается, итог архивируется
	require.Eventually(t, func() bool {
		return publisher.countByType(EventFinish) == 1
	}, 2*time.Second, 5*time.Millisecond)

	finish, _ := publisher.lastOfType(EventFinish)
	finishData := finish.Data.(map[string]interface{})
	assert.Equal(t, 1, finishData["final_score"])
	assert.Equal(t, 1, finishData["correct_count"])
	assert.Equal(t, 2, finishData["total_count"])

	// Завершенная сессия убрана из реестра активных
	require.Eventually(t, func() bool {
		return runner.ActiveSessionCount() == 0
	}, time.Second, 5*time.Millisecond)

	resultRepo.AssertNumberOfCalls(t, "SaveAttempt", 2)
	resultRepo.AssertNumberOfCalls(t, "SaveResult", 1)
	resultRepo.AssertCalled(t, "CalculateRanks", uint(1))

	// Лидерборд викторины учитывает только правильные ответы
	entries := runner.Leaderboard(1)
	require.Len(t, entries, 1)
	assert.Equal(t, "user-1", entries[0].ParticipantID)
	assert.Equal(t, 1, entries[0].Score)
}

// ====================================================================
// Права доступа и поздние ответы
// ====================================================================

func TestSessionRunner_SubmitAnswer_WrongParticipant(t *testing.T) {
	runner, quizRepo, _, _, _ := newTestRunner(t)
	quizRepo.On("GetWithQuestions", uint(1)).Return(testQuiz(), nil)

	sessionID, err := runner.StartSession(1, "user-1", "Айгерим")
	require.NoError(t, err)
	defer runner.CancelSession(sessionID, "user-1")

	err = runner.SubmitAnswer(sessionID, "user-2", 2)
	assert.ErrorIs(t, err, ErrNotSessionOwner)
}

func TestSessionRunner_SubmitAnswer_UnknownSession(t *testing.T) {
	runner, _, _, _, _ := newTestRunner(t)

	err := runner.SubmitAnswer("no-such-session", "user-1", 2)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionRunner_SubmitAnswer_InvalidOption(t *testing.T) {
	runner, quizRepo, resultRepo, cacheRepo, _ := newTestRunner(t)
	quizRepo.On("GetWithQuestions", uint(1)).Return(testQuiz(), nil)
	resultRepo.On("SaveAttempt", mock.Anything).Return(nil)
	cacheRepo.On("SetJSON", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	sessionID, err := runner.StartSession(1, "user-1", "Айгерим")
	require.NoError(t, err)
	defer runner.CancelSession(sessionID, "user-1")

	// Чужой вариант отклоняется, вопрос остается активным
	err = runner.SubmitAnswer(sessionID, "user-1", 99)
	assert.ErrorIs(t, err, engine.ErrInvalidOption)

	snapshot, err := runner.GetSnapshot(sessionID)
	require.NoError(t, err)
	assert.Equal(t, engine.StateQuestionActive, snapshot.State)
}

// ====================================================================
// Отмена
// ====================================================================

func TestSessionRunner_CancelSession(t *testing.T) {
	runner, quizRepo, resultRepo, _, publisher := newTestRunner(t)
	quizRepo.On("GetWithQuestions", uint(1)).Return(testQuiz(), nil)

	sessionID, err := runner.StartSession(1, "user-1", "Айгерим")
	require.NoError(t, err)

	require.NoError(t, runner.CancelSession(sessionID, "user-1"))

	assert.Equal(t, 1, publisher.countByType(EventCancelled))
	assert.Equal(t, 0, runner.ActiveSessionCount())

	// Отмененная сессия не архивируется
	resultRepo.AssertNotCalled(t, "SaveResult", mock.Anything)

	// Повторные операции над отмененной сессией - ошибка "не найдена"
	err = runner.SubmitAnswer(sessionID, "user-1", 2)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionRunner_Shutdown(t *testing.T) {
	runner, quizRepo, _, _, publisher := newTestRunner(t)
	quizRepo.On("GetWithQuestions", uint(1)).Return(testQuiz(), nil)

	_, err := runner.StartSession(1, "user-1", "Айгерим")
	require.NoError(t, err)
	_, err = runner.StartSession(1, "user-2", "Бекзат")
	require.NoError(t, err)

	runner.Shutdown()

	assert.Equal(t, 0, runner.ActiveSessionCount())
	assert.Equal(t, 2, publisher.countByType(EventCancelled))
}

// ====================================================================
// Лидерборд и состояния подключения
// ====================================================================

func TestSessionRunner_LeaderboardAcrossSessions(t *testing.T) {
	runner, quizRepo, resultRepo, cacheRepo, _ := newTestRunner(t)
	quizRepo.On("GetWithQuestions", uint(1)).Return(testQuiz(), nil)
	resultRepo.On("SaveAttempt", mock.Anything).Return(nil)
	cacheRepo.On("SetJSON", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	first, err := runner.StartSession(1, "user-1", "Айгерим")
	require.NoError(t, err)
	second, err := runner.StartSession(1, "user-2", "Бекзат")
	require.NoError(t, err)

	// user-1 отвечает правильно, user-2 неправильно
	require.NoError(t, runner.SubmitAnswer(first, "user-1", 2))
	require.NoError(t, runner.SubmitAnswer(second, "user-2", 1))

	entries := runner.Leaderboard(1)
	require.Len(t, entries, 2)
	assert.Equal(t, "user-1", entries[0].ParticipantID)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, "user-2", entries[1].ParticipantID)
	assert.Equal(t, 2, entries[1].Rank)

	runner.CancelSession(first, "user-1")
	runner.CancelSession(second, "user-2")
}

func TestSessionRunner_SetConnectionState(t *testing.T) {
	runner, quizRepo, _, _, _ := newTestRunner(t)
	quizRepo.On("GetWithQuestions", uint(1)).Return(testQuiz(), nil)

	sessionID, err := runner.StartSession(1, "user-1", "Айгерим")
	require.NoError(t, err)
	defer runner.CancelSession(sessionID, "user-1")

	runner.SetConnectionState(1, "user-1", engine.ConnectionStateReconnecting)

	entries := runner.Leaderboard(1)
	require.Len(t, entries, 1)
	// Обрыв связи не трогает счет
	assert.Equal(t, 0, entries[0].Score)
}
