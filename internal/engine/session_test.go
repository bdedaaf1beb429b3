package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Тестовый подписчик
// ============================================================================

// recorder накапливает события сессии. Вызывается под блокировкой сессии,
// поэтому сам в сессию не ходит - только пишет в свои поля.
type recorder struct {
	mu sync.Mutex

	questionIndexes []int
	ticks           int
	revealed        []Attempt
	completedCount  int
	finalScore      int
	finalAttempts   []Attempt
	cancelledCount  int
}

func (r *recorder) OnQuestionChanged(_ Question, index, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.questionIndexes = append(r.questionIndexes, index)
}

func (r *recorder) OnTick(_ uint, _ int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks++
}

func (r *recorder) OnAnswerRevealed(attempt Attempt, _ []int, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revealed = append(r.revealed, attempt)
}

func (r *recorder) OnSessionCompleted(finalScore int, attempts []Attempt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completedCount++
	r.finalScore = finalScore
	r.finalAttempts = attempts
}

func (r *recorder) OnCancelled() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelledCount++
}

func (r *recorder) snapshot() recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	return recorder{
		questionIndexes: append([]int(nil), r.questionIndexes...),
		ticks:           r.ticks,
		revealed:        append([]Attempt(nil), r.revealed...),
		completedCount:  r.completedCount,
		finalScore:      r.finalScore,
		finalAttempts:   append([]Attempt(nil), r.finalAttempts...),
		cancelledCount:  r.cancelledCount,
	}
}

// ============================================================================
// Хелперы
// ============================================================================

// testQuestions создает банк из count вопросов по 3 варианта,
// правильный вариант везде ID=2, стоимость points.
func testQuestions(count, points int) []Question {
	questions := make([]Question, 0, count)
	for i := 1; i <= count; i++ {
		questions = append(questions, Question{
			ID:     uint(i),
			Prompt: "Вопрос",
			Format: PromptFormatPlain,
			Options: []Option{
				{ID: 1, Text: "A"},
				{ID: 2, Text: "B", IsCorrect: true},
				{ID: 3, Text: "C"},
			},
			PointValue: points,
		})
	}
	return questions
}

// fastConfig - конфигурация с короткими таймингами для тестов.
func fastConfig() Config {
	return Config{
		PerQuestionTimeLimit: 500 * time.Millisecond,
		RevealDelay:          10 * time.Millisecond,
		TickInterval:         20 * time.Millisecond,
		AutoAdvance:          true,
	}
}

// waitForQuestion ждет активации вопроса с указанным индексом.
func waitForQuestion(t *testing.T, s *Session, index int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return s.State() == StateQuestionActive && s.CurrentIndex() == index
	}, 2*time.Second, 5*time.Millisecond, "вопрос %d не активировался", index)
}

// currentEpoch читает эпоху сессии (для симуляции устаревших колбэков таймера).
func currentEpoch(s *Session) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// ============================================================================
// Конструирование и запуск
// ============================================================================

func TestSession_EmptyBankRejected(t *testing.T) {
	_, err := NewSession("s1", nil, fastConfig(), nil)
	assert.ErrorIs(t, err, ErrEmptyQuestionBank)
}

func TestSession_DoubleStartRejected(t *testing.T) {
	session, err := NewSession("s1", testQuestions(1, 1), fastConfig(), nil)
	require.NoError(t, err)
	defer session.Cancel()

	require.NoError(t, session.Start())
	assert.ErrorIs(t, session.Start(), ErrSessionAlreadyStarted)
}

func TestSession_SubmitBeforeStart(t *testing.T) {
	session, err := NewSession("s1", testQuestions(1, 1), fastConfig(), nil)
	require.NoError(t, err)

	assert.ErrorIs(t, session.SubmitAnswer(2), ErrSessionNotStarted)
	assert.ErrorIs(t, session.Advance(), ErrSessionNotStarted)
}

// ============================================================================
// Полное прохождение
// ============================================================================

// Сценарий: участник отвечает правильно на все вопросы в срок.
func TestSession_AllCorrectCompletes(t *testing.T) {
	rec := &recorder{}
	session, err := NewSession("s1", testQuestions(3, 5), fastConfig(), rec)
	require.NoError(t, err)

	require.NoError(t, session.Start())
	for i := 0; i < 3; i++ {
		waitForQuestion(t, session, i)
		require.NoError(t, session.SubmitAnswer(2))
	}

	require.Eventually(t, func() bool {
		return session.State() == StateCompleted
	}, 2*time.Second, 5*time.Millisecond)

	snap := session.Snapshot()
	assert.Equal(t, 15, snap.Score, "счет = сумма стоимостей правильных ответов")
	require.Len(t, snap.Attempts, 3, "по одной попытке на каждый вопрос")
	for i, attempt := range snap.Attempts {
		assert.Equal(t, uint(i+1), attempt.QuestionID, "попытки в порядке вопросов")
		assert.Equal(t, OutcomeAnswered, attempt.Outcome)
		assert.True(t, attempt.IsCorrect)
	}
	assert.False(t, snap.CompletedAt.IsZero())

	events := rec.snapshot()
	assert.Equal(t, []int{0, 1, 2}, events.questionIndexes)
	assert.Equal(t, 1, events.completedCount)
	assert.Equal(t, 15, events.finalScore)
	assert.Equal(t, 0, events.cancelledCount)
}

// Сценарий: участник не отвечает на вопрос - таймаут фиксируется,
// сессия продвигается дальше сама.
func TestSession_TimeoutAdvancesAutomatically(t *testing.T) {
	cfg := fastConfig()
	cfg.PerQuestionTimeLimit = 60 * time.Millisecond

	rec := &recorder{}
	session, err := NewSession("s1", testQuestions(2, 1), cfg, rec)
	require.NoError(t, err)

	require.NoError(t, session.Start())

	// Первый вопрос: правильный ответ
	waitForQuestion(t, session, 0)
	require.NoError(t, session.SubmitAnswer(2))

	// Второй вопрос: молчим до истечения таймера
	require.Eventually(t, func() bool {
		return session.State() == StateCompleted
	}, 2*time.Second, 5*time.Millisecond)

	attempts := session.Attempts()
	require.Len(t, attempts, 2)
	assert.Equal(t, OutcomeTimedOut, attempts[1].Outcome)
	assert.Nil(t, attempts[1].SelectedOptionID)
	assert.False(t, attempts[1].IsCorrect)
	assert.Equal(t, 1, session.Score())
}

func TestSession_InvalidOptionRejected(t *testing.T) {
	session, err := NewSession("s1", testQuestions(1, 1), fastConfig(), nil)
	require.NoError(t, err)
	defer session.Cancel()

	require.NoError(t, session.Start())
	waitForQuestion(t, session, 0)

	assert.ErrorIs(t, session.SubmitAnswer(99), ErrInvalidOption)
	// Ошибочная отправка ничего не записывает
	assert.Empty(t, session.Attempts())
}

// ============================================================================
// Гонка "таймер против ответа"
// ============================================================================

// Ответ успевает первым, опоздавшее истечение таймера гасится леджером.
func TestSession_SubmitThenLateExpiry(t *testing.T) {
	cfg := fastConfig()
	cfg.AutoAdvance = false
	cfg.PerQuestionTimeLimit = time.Minute

	session, err := NewSession("s1", testQuestions(1, 3), cfg, nil)
	require.NoError(t, err)

	require.NoError(t, session.Start())
	epoch := currentEpoch(session)

	require.NoError(t, session.SubmitAnswer(2))

	// Симулируем колбэк истечения, уже стоявший в очереди до отмены таймера
	session.onTimerExpired(epoch)

	attempts := session.Attempts()
	require.Len(t, attempts, 1, "ровно одна попытка независимо от порядка событий")
	assert.Equal(t, OutcomeAnswered, attempts[0].Outcome)
	assert.Equal(t, 3, session.Score(), "очки начислены один раз")

	// Повторная отправка после фиксации - молчаливый no-op
	require.NoError(t, session.SubmitAnswer(2))
	assert.Len(t, session.Attempts(), 1)
	assert.Equal(t, 3, session.Score())
}

// Истечение успевает первым, поздний тап участника гасится леджером.
func TestSession_ExpireThenLateSubmit(t *testing.T) {
	cfg := fastConfig()
	cfg.AutoAdvance = false
	cfg.PerQuestionTimeLimit = time.Minute

	session, err := NewSession("s1", testQuestions(1, 3), cfg, nil)
	require.NoError(t, err)

	require.NoError(t, session.Start())
	session.onTimerExpired(currentEpoch(session))

	require.NoError(t, session.SubmitAnswer(2), "поздний тап не ошибка, а no-op")

	attempts := session.Attempts()
	require.Len(t, attempts, 1)
	assert.Equal(t, OutcomeTimedOut, attempts[0].Outcome)
	assert.Equal(t, 0, session.Score())
}

// Колбэк истечения с чужой эпохой (от предыдущего вопроса) инертен.
func TestSession_StaleEpochExpiryDropped(t *testing.T) {
	cfg := fastConfig()
	cfg.AutoAdvance = false
	cfg.PerQuestionTimeLimit = time.Minute

	session, err := NewSession("s1", testQuestions(2, 1), cfg, nil)
	require.NoError(t, err)

	require.NoError(t, session.Start())
	staleEpoch := currentEpoch(session)

	require.NoError(t, session.SubmitAnswer(2))
	require.NoError(t, session.Advance())
	waitForQuestion(t, session, 1)

	// Опоздавшее истечение первого вопроса не должно записать таймаут второму
	session.onTimerExpired(staleEpoch)
	assert.Len(t, session.Attempts(), 1)
	assert.Equal(t, StateQuestionActive, session.State())
}

// ============================================================================
// Ручной переход
// ============================================================================

func TestSession_ManualAdvance(t *testing.T) {
	cfg := fastConfig()
	cfg.AutoAdvance = false
	cfg.PerQuestionTimeLimit = time.Minute

	session, err := NewSession("s1", testQuestions(2, 1), cfg, nil)
	require.NoError(t, err)

	require.NoError(t, session.Start())

	// Advance до фиксации ответа запрещен
	assert.ErrorIs(t, session.Advance(), ErrQuestionNotRevealed)

	require.NoError(t, session.SubmitAnswer(1))
	assert.Equal(t, StateQuestionRevealed, session.State())

	require.NoError(t, session.Advance())
	assert.Equal(t, StateQuestionActive, session.State())
	assert.Equal(t, 1, session.CurrentIndex())

	require.NoError(t, session.SubmitAnswer(2))
	require.NoError(t, session.Advance())
	assert.Equal(t, StateCompleted, session.State())

	// Индекс не выходит за границы и не убывает
	assert.Equal(t, 1, session.CurrentIndex())
}

// ============================================================================
// Отмена
// ============================================================================

// Отмена посреди вопроса: session-completed не приходит никогда,
// даже после истечения исходного таймера.
func TestSession_CancelSuppressesAllEvents(t *testing.T) {
	cfg := fastConfig()
	cfg.PerQuestionTimeLimit = 50 * time.Millisecond

	rec := &recorder{}
	session, err := NewSession("s1", testQuestions(1, 1), cfg, rec)
	require.NoError(t, err)

	require.NoError(t, session.Start())
	require.NoError(t, session.Cancel())
	assert.Equal(t, StateCancelled, session.State())

	// Даем реальному таймеру истечь
	time.Sleep(150 * time.Millisecond)

	events := rec.snapshot()
	assert.Equal(t, 1, events.cancelledCount)
	assert.Equal(t, 0, events.completedCount, "session-completed после отмены не эмитится")
	assert.Empty(t, events.revealed)
	assert.Empty(t, session.Attempts())
}

func TestSession_CancelDuringRevealStopsAdvance(t *testing.T) {
	cfg := fastConfig()
	cfg.RevealDelay = 80 * time.Millisecond

	rec := &recorder{}
	session, err := NewSession("s1", testQuestions(2, 1), cfg, rec)
	require.NoError(t, err)

	require.NoError(t, session.Start())
	waitForQuestion(t, session, 0)
	require.NoError(t, session.SubmitAnswer(2))

	// Отмена в течение паузы показа: авто-переход должен стать инертным
	require.NoError(t, session.Cancel())
	time.Sleep(200 * time.Millisecond)

	events := rec.snapshot()
	assert.Equal(t, []int{0}, events.questionIndexes, "второй вопрос не активировался")
	assert.Equal(t, StateCancelled, session.State())
}

func TestSession_TerminalOperationsRejected(t *testing.T) {
	session, err := NewSession("s1", testQuestions(1, 1), fastConfig(), nil)
	require.NoError(t, err)

	require.NoError(t, session.Start())
	require.NoError(t, session.Cancel())

	assert.ErrorIs(t, session.SubmitAnswer(2), ErrSessionTerminated)
	assert.ErrorIs(t, session.Advance(), ErrSessionTerminated)
	assert.ErrorIs(t, session.Cancel(), ErrSessionTerminated)
	assert.ErrorIs(t, session.Start(), ErrSessionTerminated)
}

// ============================================================================
// Инварианты счета
// ============================================================================

// Счет всегда равен сумме стоимостей правильных попыток в леджере.
func TestSession_ScoreMatchesLedger(t *testing.T) {
	cfg := fastConfig()
	cfg.AutoAdvance = false
	cfg.PerQuestionTimeLimit = time.Minute

	session, err := NewSession("s1", testQuestions(5, 2), cfg, nil)
	require.NoError(t, err)
	require.NoError(t, session.Start())

	// Чередуем правильные (ID=2) и неправильные (ID=1) ответы
	answers := []int{2, 1, 2, 1, 2}
	for i, optionID := range answers {
		require.NoError(t, session.SubmitAnswer(optionID))
		if i < len(answers)-1 {
			require.NoError(t, session.Advance())
		}
	}
	require.NoError(t, session.Advance())
	require.Equal(t, StateCompleted, session.State())

	expected := 0
	for _, attempt := range session.Attempts() {
		if attempt.IsCorrect {
			expected += 2
		}
	}
	assert.Equal(t, expected, session.Score())
	assert.Equal(t, 6, session.Score())
}
