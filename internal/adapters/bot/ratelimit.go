package bot

import (
	"sync"
	"time"
)

const (
	// minGap — минимальный интервал между командами одного пользователя.
	minGap = 2 * time.Second
	// windowSize и windowLimit — скользящее окно частоты команд.
	windowSize  = time.Minute
	windowLimit = 15
	// blockFor — срок блокировки за превышение окна.
	blockFor = 24 * time.Hour
)

type limiterKey struct {
	chatID int64
	userID int64
}

// Limiter отсекает флуд командами. Состояние живёт в памяти процесса:
// бот одиночный, а потеря счётчиков при рестарте безвредна.
type Limiter struct {
	mu      sync.Mutex
	now     func() time.Time
	last    map[limiterKey]time.Time
	window  map[limiterKey][]time.Time
	blocked map[limiterKey]time.Time
}

// NewLimiter создаёт ограничитель.
func NewLimiter() *Limiter {
	return &Limiter{
		now:     time.Now,
		last:    make(map[limiterKey]time.Time),
		window:  make(map[limiterKey][]time.Time),
		blocked: make(map[limiterKey]time.Time),
	}
}

// Allow сообщает, можно ли обработать команду пользователя. Слишком
// частые команды молча отбрасываются, систематический флуд блокирует
// пару (чат, пользователь) на сутки.
func (l *Limiter) Allow(chatID, userID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := limiterKey{chatID: chatID, userID: userID}
	now := l.now()

	if until, ok := l.blocked[key]; ok {
		if now.Before(until) {
			return false
		}
		delete(l.blocked, key)
	}

	if last, ok := l.last[key]; ok && now.Sub(last) < minGap {
		return false
	}

	window := l.window[key]
	cutoff := now.Add(-windowSize)
	kept := window[:0]
	for _, t := range window {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	l.window[key] = kept

	if len(kept) > windowLimit {
		l.blocked[key] = now.Add(blockFor)
		delete(l.window, key)
		return false
	}

	l.last[key] = now
	return true
}

// Reset сбрасывает все счётчики и блокировки. Вызывается ночным
// планировщиком.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.last = make(map[limiterKey]time.Time)
	l.window = make(map[limiterKey][]time.Time)
	l.blocked = make(map[limiterKey]time.Time)
}
