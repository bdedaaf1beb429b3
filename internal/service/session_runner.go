package service

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Tutor-DA/quiz-api/internal/domain/entity"
	"github.com/Tutor-DA/quiz-api/internal/domain/repository"
	"github.com/Tutor-DA/quiz-api/internal/engine"
)

// Время жизни кеша лидерборда в Redis
const leaderboardCacheTTL = 10 * time.Minute

// EventPublisher доставляет события сессии подключенным клиентам.
// Реализуется WebSocket-менеджером, в тестах подменяется моком.
type EventPublisher interface {
	BroadcastEventToSession(sessionID string, eventType string, data interface{}) error
}

// Типы событий, публикуемых раннером
const (
	EventQuestion          = "quiz:question"
	EventTimer             = "quiz:timer"
	EventAnswerReveal      = "quiz:answer_reveal"
	EventFinish            = "quiz:finish"
	EventCancelled         = "quiz:cancelled"
	EventLeaderboardUpdate = "leaderboard:update"
)

// SessionRunner управляет живыми сессиями движка поверх определений викторин.
// Сессии существуют только в памяти процесса, в БД архивируются их попытки
// и итоговые результаты. Лидерборд ведется по каждой викторине и охватывает
// все ее сессии.
type SessionRunner struct {
	quizRepo   repository.QuizRepository
	resultRepo repository.ResultRepository
	cacheRepo  repository.CacheRepository
	publisher  EventPublisher

	// tickInterval перекрывает engine.DefaultTickInterval, если задан
	tickInterval time.Duration

	mu       sync.RWMutex
	sessions map[string]*runningSession
	boards   map[uint]*engine.Leaderboard
}

// runningSession связывает сессию движка с участником и викториной
type runningSession struct {
	id            string
	quizID        uint
	participantID string
	displayName   string
	session       *engine.Session
	startedAt     time.Time
}

// NewSessionRunner создает новый раннер сессий
func NewSessionRunner(
	quizRepo repository.QuizRepository,
	resultRepo repository.ResultRepository,
	cacheRepo repository.CacheRepository,
	publisher EventPublisher,
) *SessionRunner {
	return &SessionRunner{
		quizRepo:   quizRepo,
		resultRepo: resultRepo,
		cacheRepo:  cacheRepo,
		publisher:  publisher,
		sessions:   make(map[string]*runningSession),
		boards:     make(map[uint]*engine.Leaderboard),
	}
}

// SetTickInterval задает периодичность тиков таймера для новых сессий.
// Вызывается при старте приложения, до запуска первой сессии.
func (r *SessionRunner) SetTickInterval(interval time.Duration) {
	if interval > 0 {
		r.tickInterval = interval
	}
}

// StartSession создает и запускает сессию для участника.
// Первый вопрос активируется сразу, его таймер начинает тикать.
func (r *SessionRunner) StartSession(quizID uint, participantID, displayName string) (string, error) {
	quiz, err := r.quizRepo.GetWithQuestions(quizID)
	if err != nil {
		return "", err
	}
	if !quiz.HasQuestions() {
		return "", fmt.Errorf("%w: quiz ID=%d", ErrQuizHasNoQuestions, quizID)
	}

	questions := ToEngineQuestions(quiz.Questions)
	tick := r.tickInterval
	if tick <= 0 {
		tick = engine.DefaultTickInterval
	}
	config := engine.Config{
		PerQuestionTimeLimit: quiz.TimeLimit(),
		RevealDelay:          quiz.RevealDelay(),
		TickInterval:         tick,
		AutoAdvance:          true,
	}

	sessionID := uuid.New().String()
	sub := &sessionSubscriber{
		runner:        r,
		sessionID:     sessionID,
		quizID:        quizID,
		participantID: participantID,
		displayName:   displayName,
		timeLimitMs:   quiz.TimeLimitMs,
	}

	session, err := engine.NewSession(sessionID, questions, config, sub)
	if err != nil {
		return "", err
	}

	rs := &runningSession{
		id:            sessionID,
		quizID:        quizID,
		participantID: participantID,
		displayName:   displayName,
		session:       session,
		startedAt:     time.Now(),
	}

	r.mu.Lock()
	r.sessions[sessionID] = rs
	r.boardLocked(quizID).Register(participantID, displayName)
	r.mu.Unlock()

	if err := session.Start(); err != nil {
		r.remove(sessionID)
		return "", err
	}

	log.Printf("[SessionRunner] Сессия %s запущена: викторина ID=%d, участник %s, вопросов %d",
		sessionID, quizID, participantID, len(questions))
	return sessionID, nil
}

// SubmitAnswer фиксирует ответ участника на текущий вопрос сессии.
// Поздний ответ, проигравший таймеру, молча поглощается: исход вопроса
// уже записан, для клиента это не ошибка.
func (r *SessionRunner) SubmitAnswer(sessionID, participantID string, optionID int) error {
	rs, err := r.get(sessionID)
	if err != nil {
		return err
	}
	if rs.participantID != participantID {
		return ErrNotSessionOwner
	}

	err = rs.session.SubmitAnswer(optionID)
	if errors.Is(err, engine.ErrDuplicateAnswer) {
		log.Printf("[SessionRunner] Поздний ответ в сессии %s отброшен: вопрос уже закрыт", sessionID)
		return nil
	}
	return err
}

// Advance переводит сессию к следующему вопросу.
// Нужен только при выключенном авто-переходе.
func (r *SessionRunner) Advance(sessionID, participantID string) error {
	rs, err := r.get(sessionID)
	if err != nil {
		return err
	}
	if rs.participantID != participantID {
		return ErrNotSessionOwner
	}
	return rs.session.Advance()
}

// CancelSession отменяет сессию. Прогресс не архивируется.
func (r *SessionRunner) CancelSession(sessionID, participantID string) error {
	rs, err := r.get(sessionID)
	if err != nil {
		return err
	}
	if rs.participantID != participantID {
		return ErrNotSessionOwner
	}
	return rs.session.Cancel()
}

// GetSnapshot возвращает консистентный срез состояния сессии
func (r *SessionRunner) GetSnapshot(sessionID string) (engine.Snapshot, error) {
	rs, err := r.get(sessionID)
	if err != nil {
		return engine.Snapshot{}, err
	}
	return rs.session.Snapshot(), nil
}

// SetConnectionState помечает состояние подключения участника в лидерборде
// викторины. Счет при этом не трогается: обрыв связи не обнуляет прогресс.
func (r *SessionRunner) SetConnectionState(quizID uint, participantID string, state engine.ConnectionState) {
	r.mu.Lock()
	board := r.boardLocked(quizID)
	r.mu.Unlock()

	board.SetConnectionState(participantID, state)
}

// Leaderboard возвращает текущий срез живого лидерборда викторины
func (r *SessionRunner) Leaderboard(quizID uint) []engine.LeaderboardEntry {
	r.mu.Lock()
	board := r.boardLocked(quizID)
	r.mu.Unlock()

	return board.Rank()
}

// ActiveSessionCount возвращает количество активных сессий
func (r *SessionRunner) ActiveSessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Shutdown отменяет все активные сессии (graceful shutdown процесса)
func (r *SessionRunner) Shutdown() {
	r.mu.RLock()
	active := make([]*runningSession, 0, len(r.sessions))
	for _, rs := range r.sessions {
		active = append(active, rs)
	}
	r.mu.RUnlock()

	for _, rs := range active {
		if err := rs.session.Cancel(); err != nil && !errors.Is(err, engine.ErrSessionTerminated) {
			log.Printf("[SessionRunner] Ошибка отмены сессии %s при остановке: %v", rs.id, err)
		}
	}
	log.Printf("[SessionRunner] Остановлен, отменено сессий: %d", len(active))
}

// get возвращает сессию по ID. Указатель копируется под блокировкой,
// дальнейшие вызовы движка идут без нее: колбэки подписчика берут
// блокировку раннера повторно.
func (r *SessionRunner) get(sessionID string) (*runningSession, error) {
	r.mu.RLock()
	rs, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return rs, nil
}

// remove убирает сессию из реестра активных
func (r *SessionRunner) remove(sessionID string) {
	r.mu.Lock()
	delete(r.sessions, sessionID)
	r.mu.Unlock()
}

// boardLocked возвращает лидерборд викторины, создавая его при первом
// обращении. Вызывается под r.mu.
func (r *SessionRunner) boardLocked(quizID uint) *engine.Leaderboard {
	board, ok := r.boards[quizID]
	if !ok {
		board = engine.NewLeaderboard()
		r.boards[quizID] = board
	}
	return board
}

// leaderboardCacheKey - ключ кеша лидерборда викторины в Redis
func leaderboardCacheKey(quizID uint) string {
	return fmt.Sprintf("leaderboard:quiz:%d", quizID)
}

// QuizRoomID - идентификатор комнаты наблюдателей викторины.
// В нее подписываются клиенты, следящие за живым лидербордом,
// не проходя викторину сами.
func QuizRoomID(quizID uint) string {
	return fmt.Sprintf("quiz:%d", quizID)
}

// ====================================================================
// Подписчик событий движка
// ====================================================================

// sessionSubscriber транслирует события сессии движка в WebSocket-события
// и архивирует попытки и итоги в БД. Колбэки приходят последовательно,
// под блокировкой сессии, поэтому prevScore не нуждается в синхронизации.
type sessionSubscriber struct {
	runner        *SessionRunner
	sessionID     string
	quizID        uint
	participantID string
	displayName   string
	timeLimitMs   int

	prevScore    int
	correctCount int
}

// optionView - вариант ответа без флага правильности.
// Правильные варианты уходят клиенту только в quiz:answer_reveal.
type optionView struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

func (s *sessionSubscriber) OnQuestionChanged(question engine.Question, index, total int) {
	options := make([]optionView, 0, len(question.Options))
	for _, opt := range question.Options {
		options = append(options, optionView{ID: opt.ID, Text: opt.Text})
	}

	s.publish(EventQuestion, map[string]interface{}{
		"question_id":   question.ID,
		"prompt":        question.Prompt,
		"prompt_format": string(question.Format),
		"options":       options,
		"point_value":   question.PointValue,
		"hint":          question.Hint,
		"index":         index,
		"total":         total,
		"time_limit_ms": s.timeLimitMs,
	})
}

func (s *sessionSubscriber) OnTick(questionID uint, remainingMs int64) {
	s.publish(EventTimer, map[string]interface{}{
		"question_id":  questionID,
		"remaining_ms": remainingMs,
	})
}

func (s *sessionSubscriber) OnAnswerRevealed(attempt engine.Attempt, correctOptionIDs []int, runningScore int) {
	pointValue := runningScore - s.prevScore
	s.prevScore = runningScore
	if attempt.IsCorrect {
		s.correctCount++
	}

	// Архивируем попытку. Дубликат означает повторную доставку, не ошибку:
	// уникальный индекс БД дублирует инвариант леджера движка.
	record := &entity.AttemptRecord{
		SessionID:      s.sessionID,
		QuizID:         s.quizID,
		QuestionID:     attempt.QuestionID,
		SelectedOption: attempt.SelectedOptionID,
		IsCorrect:      attempt.IsCorrect,
		ResponseTimeMs: attempt.ResponseTimeMs,
		Outcome:        string(attempt.Outcome),
	}
	if err := s.runner.resultRepo.SaveAttempt(record); err != nil && !errors.Is(err, repository.ErrDuplicateAttempt) {
		log.Printf("[SessionRunner] Ошибка архивирования попытки (сессия %s, вопрос %d): %v",
			s.sessionID, attempt.QuestionID, err)
	}

	s.publish(EventAnswerReveal, map[string]interface{}{
		"question_id":        attempt.QuestionID,
		"selected_option":    attempt.SelectedOptionID,
		"is_correct":         attempt.IsCorrect,
		"correct_option_ids": correctOptionIDs,
		"outcome":            string(attempt.Outcome),
		"response_time_ms":   attempt.ResponseTimeMs,
		"running_score":      runningScore,
	})

	// Обновляем живой лидерборд викторины и рассылаем срез
	s.runner.mu.Lock()
	board := s.runner.boardLocked(s.quizID)
	s.runner.mu.Unlock()
	board.OnAnswerRevealed(s.participantID, attempt, pointValue)

	entries := board.Rank()
	update := map[string]interface{}{
		"quiz_id": s.quizID,
		"entries": entries,
	}
	s.publish(EventLeaderboardUpdate, update)
	// Наблюдатели викторины получают тот же срез в свою комнату
	s.publishTo(QuizRoomID(s.quizID), EventLeaderboardUpdate, update)

	if err := s.runner.cacheRepo.SetJSON(leaderboardCacheKey(s.quizID), entries, leaderboardCacheTTL); err != nil {
		log.Printf("[SessionRunner] Ошибка кеширования лидерборда викторины ID=%d: %v", s.quizID, err)
	}
}

func (s *sessionSubscriber) OnSessionCompleted(finalScore int, attempts []engine.Attempt) {
	result := &entity.SessionResult{
		SessionID:     s.sessionID,
		QuizID:        s.quizID,
		ParticipantID: s.participantID,
		DisplayName:   s.displayName,
		Score:         finalScore,
		CorrectCount:  s.correctCount,
		TotalCount:    len(attempts),
		CompletedAt:   time.Now(),
	}
	if err := s.runner.resultRepo.SaveResult(result); err != nil {
		log.Printf("[SessionRunner] Ошибка архивирования итога сессии %s: %v", s.sessionID, err)
	} else if err := s.runner.resultRepo.CalculateRanks(s.quizID); err != nil {
		log.Printf("[SessionRunner] Ошибка пересчета рангов викторины ID=%d: %v", s.quizID, err)
	}

	s.publish(EventFinish, map[string]interface{}{
		"session_id":    s.sessionID,
		"final_score":   finalScore,
		"correct_count": s.correctCount,
		"total_count":   len(attempts),
	})

	s.runner.remove(s.sessionID)
	log.Printf("[SessionRunner] Сессия %s завершена: счет %d, правильных %d из %d",
		s.sessionID, finalScore, s.correctCount, len(attempts))
}

func (s *sessionSubscriber) OnCancelled() {
	s.publish(EventCancelled, map[string]interface{}{
		"session_id": s.sessionID,
	})
	s.runner.remove(s.sessionID)
	log.Printf("[SessionRunner] Сессия %s отменена", s.sessionID)
}

func (s *sessionSubscriber) publish(eventType string, data interface{}) {
	s.publishTo(s.sessionID, eventType, data)
}

func (s *sessionSubscriber) publishTo(roomID, eventType string, data interface{}) {
	if s.runner.publisher == nil {
		return
	}
	if err := s.runner.publisher.BroadcastEventToSession(roomID, eventType, data); err != nil {
		log.Printf("[SessionRunner] Ошибка публикации события %s в комнату %s: %v", eventType, roomID, err)
	}
}
