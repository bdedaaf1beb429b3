package engine

// Outcome описывает исход попытки ответа на вопрос.
type Outcome string

const (
	// OutcomeAnswered - участник выбрал вариант до истечения таймера
	OutcomeAnswered Outcome = "answered"

	// OutcomeTimedOut - время вышло без выбора варианта
	OutcomeTimedOut Outcome = "timed_out"
)

// Attempt представляет зафиксированный исход одного вопроса в рамках сессии.
// Создается ровно один раз на вопрос.
type Attempt struct {
	QuestionID uint

	// SelectedOptionID равен nil при таймауте без выбора
	SelectedOptionID *int

	IsCorrect      bool
	ResponseTimeMs int64
	Outcome        Outcome
}

// Ledger - однописательный append-only журнал попыток: не более одной
// попытки на вопрос. Повторная запись отклоняется, а не перезаписывается.
// Именно это отклонение разрешает гонку "истечение таймера против позднего
// нажатия": из двух конкурирующих записей выживает первая.
//
// Леджер принадлежит ровно одной сессии и синхронизируется ее мьютексом,
// собственной блокировки не имеет.
type Ledger struct {
	attempts map[uint]Attempt
	order    []uint
}

// NewLedger создает пустой журнал попыток.
func NewLedger() *Ledger {
	return &Ledger{
		attempts: make(map[uint]Attempt),
	}
}

// Record вставляет попытку для attempt.QuestionID.
// Возвращает ErrDuplicateAnswer, если попытка для вопроса уже записана.
func (l *Ledger) Record(attempt Attempt) error {
	if _, exists := l.attempts[attempt.QuestionID]; exists {
		return ErrDuplicateAnswer
	}
	l.attempts[attempt.QuestionID] = attempt
	l.order = append(l.order, attempt.QuestionID)
	return nil
}

// Get возвращает попытку для вопроса или false, если ответа еще нет.
func (l *Ledger) Get(questionID uint) (Attempt, bool) {
	attempt, ok := l.attempts[questionID]
	return attempt, ok
}

// Attempts возвращает копию попыток в порядке записи (== порядку вопросов).
func (l *Ledger) Attempts() []Attempt {
	out := make([]Attempt, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.attempts[id])
	}
	return out
}

// Len возвращает количество записанных попыток.
func (l *Ledger) Len() int {
	return len(l.order)
}
