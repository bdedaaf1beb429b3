package engine

// Subscriber получает события сессии. Реализуется презентационным слоем
// (WebSocket-раннер, опрос по HTTP, тестовый харнес).
//
// Колбэки вызываются последовательно, под внутренней блокировкой сессии:
// порядок событий строго соответствует порядку переходов состояний, и ни
// одно событие не приходит после Cancelled. Из колбэка нельзя вызывать
// операции той же сессии.
type Subscriber interface {
	// OnQuestionChanged вызывается при активации вопроса (включая первый).
	// index - 0-based, total - общее число вопросов.
	OnQuestionChanged(question Question, index, total int)

	// OnTick вызывается раз в интервал тика активного вопроса.
	OnTick(questionID uint, remainingMs int64)

	// OnAnswerRevealed вызывается после фиксации попытки, вместе с
	// правильными вариантами и текущим счетом.
	OnAnswerRevealed(attempt Attempt, correctOptionIDs []int, runningScore int)

	// OnSessionCompleted вызывается один раз при завершении всех вопросов.
	// attempts упорядочены по порядку вопросов.
	OnSessionCompleted(finalScore int, attempts []Attempt)

	// OnCancelled вызывается один раз при отмене сессии.
	// После него никаких событий не будет.
	OnCancelled()
}

// NopSubscriber - подписчик, игнорирующий все события.
// Удобен как встраиваемая база для частичных реализаций в тестах.
type NopSubscriber struct{}

func (NopSubscriber) OnQuestionChanged(Question, int, int)     {}
func (NopSubscriber) OnTick(uint, int64)                       {}
func (NopSubscriber) OnAnswerRevealed(Attempt, []int, int)     {}
func (NopSubscriber) OnSessionCompleted(int, []Attempt)        {}
func (NopSubscriber) OnCancelled()                             {}
