package engine

import (
	"log"
	"sync"
	"time"
)

// State описывает состояние конечного автомата сессии.
type State string

const (
	StateNotStarted       State = "not_started"
	StateQuestionActive   State = "question_active"
	StateQuestionRevealed State = "question_revealed"
	StateCompleted        State = "completed"
	StateCancelled        State = "cancelled"
)

// IsTerminal сообщает, является ли состояние терминальным.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// Config содержит настройки сессии.
type Config struct {
	// PerQuestionTimeLimit - лимит времени на один вопрос
	PerQuestionTimeLimit time.Duration

	// RevealDelay - пауза показа правильного ответа перед переходом
	// к следующему вопросу. Чистая пейсинг-задержка, на корректность
	// не влияет и отменяема.
	RevealDelay time.Duration

	// TickInterval - периодичность тиков таймера вопроса
	TickInterval time.Duration

	// AutoAdvance - переходить к следующему вопросу автоматически
	// по истечении RevealDelay. При false переход делает
	// презентационный слой вызовом Advance.
	AutoAdvance bool
}

// DefaultConfig возвращает конфигурацию сессии по умолчанию.
func DefaultConfig() Config {
	return Config{
		PerQuestionTimeLimit: 30 * time.Second,
		RevealDelay:          2 * time.Second,
		TickInterval:         DefaultTickInterval,
		AutoAdvance:          true,
	}
}

// Session - конечный автомат одной попытки прохождения упорядоченной
// последовательности вопросов: NotStarted -> QuestionActive ->
// QuestionRevealed -> (QuestionActive | Completed), с терминальным
// Cancelled из любого нетерминального состояния.
//
// Все операции и колбэки таймера сериализуются мьютексом, поэтому
// "истечение таймера" и "ответ участника" никогда не перемежаются
// посреди перехода. Единственная логическая гонка - порядок этих двух
// событий - разрешается отклонением дубликата в леджере: выигрывает
// первая запись, вторая молча отбрасывается.
//
// Устаревшие колбэки (таймер отмененного вопроса, авто-переход после
// Cancel) отсекаются по номеру эпохи, который растет при каждой
// активации вопроса и при отмене.
type Session struct {
	mu sync.Mutex

	id        string
	questions []Question
	config    Config
	sub       Subscriber

	state        State
	currentIndex int
	ledger       *Ledger
	score        int
	epoch        uint64

	timer             *Timer
	questionStartedAt time.Time
	startedAt         time.Time
	completedAt       time.Time
}

// Snapshot - консистентный срез состояния сессии для презентационного слоя.
type Snapshot struct {
	ID           string
	State        State
	CurrentIndex int
	Total        int
	Score        int
	Attempts     []Attempt
	StartedAt    time.Time
	CompletedAt  time.Time
}

// NewSession создает сессию над банком вопросов. Банк валидируется целиком;
// пустой банк - ошибка ErrEmptyQuestionBank.
// sub может быть nil, тогда события никуда не доставляются.
func NewSession(id string, questions []Question, config Config, sub Subscriber) (*Session, error) {
	if err := ValidateBank(questions); err != nil {
		return nil, err
	}
	if config.PerQuestionTimeLimit <= 0 {
		config.PerQuestionTimeLimit = DefaultConfig().PerQuestionTimeLimit
	}
	if config.TickInterval <= 0 {
		config.TickInterval = DefaultTickInterval
	}
	if sub == nil {
		sub = NopSubscriber{}
	}

	// Копируем банк: сессия владеет своим неизменяемым порядком вопросов
	bank := make([]Question, len(questions))
	copy(bank, questions)

	return &Session{
		id:        id,
		questions: bank,
		config:    config,
		sub:       sub,
		state:     StateNotStarted,
		ledger:    NewLedger(),
	}, nil
}

// ID возвращает идентификатор сессии.
func (s *Session) ID() string {
	return s.id
}

// Start активирует первый вопрос и запускает его таймер.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.IsTerminal() {
		return ErrSessionTerminated
	}
	if s.state != StateNotStarted {
		return ErrSessionAlreadyStarted
	}

	s.startedAt = time.Now()
	s.activateQuestion(0)
	return nil
}

// SubmitAnswer фиксирует выбор варианта для текущего активного вопроса.
// Повторная отправка (в том числе проигравшая гонку с истечением таймера)
// не является ошибкой и молча игнорируется.
func (s *Session) SubmitAnswer(optionID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.IsTerminal() {
		return ErrSessionTerminated
	}
	if s.state == StateNotStarted {
		return ErrSessionNotStarted
	}

	question := &s.questions[s.currentIndex]
	if !question.HasOption(optionID) {
		return ErrInvalidOption
	}

	s.timer.Cancel()

	selected := optionID
	attempt := Attempt{
		QuestionID:       question.ID,
		SelectedOptionID: &selected,
		IsCorrect:        question.IsCorrect(optionID),
		ResponseTimeMs:   time.Since(s.questionStartedAt).Milliseconds(),
		Outcome:          OutcomeAnswered,
	}
	s.recordAttempt(question, attempt)
	return nil
}

// Advance переводит сессию от раскрытого вопроса к следующему вопросу
// или к завершению. Вызывается презентационным слоем либо внутренним
// авто-переходом по истечении паузы показа.
func (s *Session) Advance() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.IsTerminal() {
		return ErrSessionTerminated
	}
	if s.state == StateNotStarted {
		return ErrSessionNotStarted
	}
	if s.state != StateQuestionRevealed {
		return ErrQuestionNotRevealed
	}

	s.advanceLocked()
	return nil
}

// Cancel отменяет сессию из любого нетерминального состояния: активный
// таймер останавливается, события больше не доставляются,
// session-completed не эмитится.
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.IsTerminal() {
		return ErrSessionTerminated
	}

	if s.timer != nil {
		s.timer.Cancel()
	}
	// Рост эпохи делает инертными все уже запланированные колбэки
	s.epoch++
	s.state = StateCancelled

	log.Printf("[Session] Сессия %s отменена на вопросе %d", s.id, s.currentIndex+1)
	s.sub.OnCancelled()
	return nil
}

// State возвращает текущее состояние сессии.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Score возвращает текущую сумму очков за правильные попытки.
func (s *Session) Score() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.score
}

// CurrentIndex возвращает 0-based индекс текущего вопроса.
func (s *Session) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentIndex
}

// Attempts возвращает записанные попытки в порядке вопросов.
func (s *Session) Attempts() []Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Attempts()
}

// Snapshot возвращает консистентный срез состояния.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:           s.id,
		State:        s.state,
		CurrentIndex: s.currentIndex,
		Total:        len(s.questions),
		Score:        s.score,
		Attempts:     s.ledger.Attempts(),
		StartedAt:    s.startedAt,
		CompletedAt:  s.completedAt,
	}
}

// activateQuestion активирует вопрос с индексом index: новая эпоха,
// новый таймер, событие question-changed. Вызывается под блокировкой.
func (s *Session) activateQuestion(index int) {
	s.epoch++
	epoch := s.epoch

	s.currentIndex = index
	s.state = StateQuestionActive
	s.questionStartedAt = time.Now()

	question := s.questions[index]

	s.timer = NewTimer(s.config.TickInterval,
		func(remaining time.Duration) { s.onTick(epoch, question.ID, remaining) },
		func() { s.onTimerExpired(epoch) },
	)
	if err := s.timer.Start(s.config.PerQuestionTimeLimit); err != nil {
		// Свежесозданный таймер не может быть запущен - это бы означало
		// нарушение владения таймером внутри самой сессии
		log.Printf("[Session] Сессия %s: не удалось запустить таймер вопроса #%d: %v", s.id, question.ID, err)
	}

	s.sub.OnQuestionChanged(question, index, len(s.questions))
}

// onTick доставляет тик таймера, если вопрос той же эпохи все еще активен.
func (s *Session) onTick(epoch uint64, questionID uint, remaining time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch || s.state != StateQuestionActive {
		return
	}
	s.sub.OnTick(questionID, remaining.Milliseconds())
}

// onTimerExpired фиксирует таймаут текущего вопроса. Колбэк другой эпохи
// (другой вопрос, отмененная сессия) отбрасывается; проигранная гонка
// с SubmitAnswer гасится отклонением дубликата в леджере, а не проверкой
// состояния - у дубликата один источник истины.
func (s *Session) onTimerExpired(epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch {
		return
	}

	question := &s.questions[s.currentIndex]
	attempt := Attempt{
		QuestionID:       question.ID,
		SelectedOptionID: nil,
		IsCorrect:        false,
		ResponseTimeMs:   s.config.PerQuestionTimeLimit.Milliseconds(),
		Outcome:          OutcomeTimedOut,
	}
	s.recordAttempt(question, attempt)
}

// recordAttempt записывает попытку в леджер и при успехе выполняет переход
// QuestionActive -> QuestionRevealed. Вызывается под блокировкой двумя
// конкурирующими писателями: путем ответа и путем истечения таймера.
// Сессия намеренно не держит собственный флаг "отвечено": единственный
// источник истины о дубликате - леджер.
func (s *Session) recordAttempt(question *Question, attempt Attempt) {
	if err := s.ledger.Record(attempt); err != nil {
		// Проигранная гонка таймер/ответ: попытка уже есть, молча выходим
		return
	}

	if attempt.IsCorrect {
		s.score += question.PointValue
	}
	s.state = StateQuestionRevealed

	s.sub.OnAnswerRevealed(attempt, question.CorrectOptionIDs(), s.score)

	if s.config.AutoAdvance {
		s.scheduleAutoAdvance()
	}
}

// scheduleAutoAdvance планирует переход к следующему вопросу после паузы
// показа. Колбэк проверяет эпоху и состояние: отмена сессии или ручной
// Advance в течение паузы делают его инертным.
func (s *Session) scheduleAutoAdvance() {
	epoch := s.epoch
	time.AfterFunc(s.config.RevealDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.epoch != epoch || s.state != StateQuestionRevealed {
			return
		}
		s.advanceLocked()
	})
}

// advanceLocked выполняет сам переход. Вызывается под блокировкой.
func (s *Session) advanceLocked() {
	next := s.currentIndex + 1
	if next < len(s.questions) {
		s.activateQuestion(next)
		return
	}

	s.epoch++
	s.state = StateCompleted
	s.completedAt = time.Now()

	log.Printf("[Session] Сессия %s завершена: %d вопросов, счет %d", s.id, len(s.questions), s.score)
	s.sub.OnSessionCompleted(s.score, s.ledger.Attempts())
}
