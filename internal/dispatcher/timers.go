package dispatcher

import (
	"sync"
	"time"
)

// Timers in-process таймеры авто-отмены по booking_id. Таймер лишь
// снижает задержку: источником истины остается confirm_deadline в БД,
// и просроченные дедлайны добирает периодическая проверка диспетчера.
type Timers struct {
	mu     sync.Mutex
	timers map[int64]*time.Timer
}

// NewTimers создает пустой набор таймеров
func NewTimers() *Timers {
	return &Timers{timers: make(map[int64]*time.Timer)}
}

// Arm взводит таймер бронирования; уже взведенный перевзводится
func (t *Timers) Arm(bookingID int64, d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if old, ok := t.timers[bookingID]; ok {
		old.Stop()
	}
	t.timers[bookingID] = time.AfterFunc(d, func() {
		t.Disarm(bookingID)
		fn()
	})
}

// Disarm снимает таймер бронирования, если он взведен
func (t *Timers) Disarm(bookingID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if timer, ok := t.timers[bookingID]; ok {
		timer.Stop()
		delete(t.timers, bookingID)
	}
}

// StopAll снимает все таймеры; вызывается при остановке диспетчера
func (t *Timers) StopAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
}

// Len возвращает число взведенных таймеров
func (t *Timers) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.timers)
}
