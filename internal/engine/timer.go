package engine

import (
	"sync"
	"time"
)

// DefaultTickInterval - периодичность тиков обратного отсчета
const DefaultTickInterval = 1 * time.Second

// Timer - отменяемый обратный отсчет для одного вопроса. Принадлежит
// сессии на время жизни вопроса: один активный отсчет, тики раз в
// интервал с оставшимся временем и ровно одно событие истечения, после
// которого таймер считается остановленным.
//
// Колбэки вызываются из горутины таймера; их сериализацию с остальными
// операциями обеспечивает владелец (мьютекс сессии). Опоздавший колбэк
// уже отмененного отсчета отбрасывается владельцем по номеру эпохи.
type Timer struct {
	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	interval time.Duration

	onTick   func(remaining time.Duration)
	onExpire func()
}

// NewTimer создает таймер с указанными колбэками тика и истечения.
// Нулевой interval заменяется на DefaultTickInterval.
func NewTimer(interval time.Duration, onTick func(remaining time.Duration), onExpire func()) *Timer {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Timer{
		interval: interval,
		onTick:   onTick,
		onExpire: onExpire,
	}
}

// Start запускает обратный отсчет на duration.
// Возвращает ErrTimerAlreadyRunning, если отсчет уже активен.
func (t *Timer) Start(duration time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return ErrTimerAlreadyRunning
	}
	t.running = true
	t.stopCh = make(chan struct{})

	go t.run(time.Now().Add(duration), t.stopCh)
	return nil
}

// Cancel останавливает отсчет досрочно. Идемпотентен: отмена
// неактивного таймера не является ошибкой.
func (t *Timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return
	}
	t.running = false
	close(t.stopCh)
}

// IsRunning сообщает, активен ли отсчет.
func (t *Timer) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// run крутит тикер до дедлайна или отмены.
func (t *Timer) run(deadline time.Time, stopCh chan struct{}) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	// Отдельный таймер на точный момент дедлайна: тики с шагом interval
	// могут не попасть в него ровно
	expire := time.NewTimer(time.Until(deadline))
	defer expire.Stop()

	for {
		select {
		case <-ticker.C:
			remaining := time.Until(deadline)
			if remaining <= 0 {
				// Истечение обработает ветка expire
				continue
			}
			if t.onTick != nil {
				t.onTick(remaining)
			}

		case <-expire.C:
			t.markStopped(stopCh)
			if t.onExpire != nil {
				t.onExpire()
			}
			return

		case <-stopCh:
			return
		}
	}
}

// markStopped переводит таймер в остановленное состояние после истечения,
// если он не был отменен раньше.
func (t *Timer) markStopped(stopCh chan struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	// Сравниваем канал: Cancel мог уже остановить этот запуск
	if t.running && t.stopCh == stopCh {
		t.running = false
	}
}
