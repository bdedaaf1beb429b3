package engine

import "errors"

// Ошибки использования (ошибки вызывающей стороны) и ошибки жизненного цикла.
// Гонка "таймер против ответа" ошибкой не является: она разрешается
// через ErrDuplicateAnswer леджера и гасится сессией молча.
var (
	// ErrEmptyQuestionBank возвращается при попытке запустить сессию без вопросов.
	ErrEmptyQuestionBank = errors.New("question bank is empty")

	// ErrInvalidOption возвращается, когда выбранный вариант не принадлежит текущему вопросу.
	ErrInvalidOption = errors.New("option does not belong to the current question")

	// ErrTimerAlreadyRunning возвращается при запуске уже активного таймера.
	ErrTimerAlreadyRunning = errors.New("timer is already running")

	// ErrDuplicateAnswer возвращается леджером при повторной записи ответа на вопрос.
	// Единственный механизм защиты от двойного учета очков.
	ErrDuplicateAnswer = errors.New("attempt already recorded for this question")

	// ErrSessionTerminated возвращается при вызове операций на завершенной
	// или отмененной сессии. Ловит устаревшие колбэки UI.
	ErrSessionTerminated = errors.New("session is terminated")

	// ErrSessionNotStarted возвращается при операциях над сессией до Start.
	ErrSessionNotStarted = errors.New("session is not started")

	// ErrSessionAlreadyStarted возвращается при повторном вызове Start.
	ErrSessionAlreadyStarted = errors.New("session is already started")

	// ErrQuestionNotRevealed возвращается при вызове Advance, пока вопрос еще активен.
	ErrQuestionNotRevealed = errors.New("current question is not revealed yet")
)
