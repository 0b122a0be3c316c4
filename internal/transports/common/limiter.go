package common

import (
	"math"
	"sync"
	"time"
)

// RateLimiter ограничивает число вызовов на ключ за окно.
// Окно скользящее: счетчик прошлого окна учитывается с весом оставшейся доли,
// поэтому на ключ хранится два числа, а не журнал отметок времени.
type RateLimiter struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	counters  map[string]*windowCounter
	lastSweep time.Time
}

type windowCounter struct {
	start time.Time
	prev  int
	cur   int
}

// NewRateLimiter создает limiter на limit вызовов за window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Second
	}
	return &RateLimiter{limit: limit, window: window, counters: make(map[string]*windowCounter)}
}

// Allow учитывает вызов и сообщает, укладывается ли он в лимит.
func (l *RateLimiter) Allow(key string, now time.Time) bool {
	ok, _ := l.Reserve(key, now)
	return ok
}

// Reserve учитывает вызов, если он укладывается в лимит.
// Иначе вызов не учитывается и возвращается время до ближайшего свободного слота.
func (l *RateLimiter) Reserve(key string, now time.Time) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)
	c, ok := l.counters[key]
	if !ok {
		c = &windowCounter{start: now}
		l.counters[key] = c
	}
	c.advance(now, l.window)

	elapsed := now.Sub(c.start)
	if elapsed < 0 {
		elapsed = 0
	}
	used := float64(c.prev)*(1-float64(elapsed)/float64(l.window)) + float64(c.cur)
	if used+1 > float64(l.limit) {
		return false, l.wait(c, elapsed)
	}
	c.cur++
	return true, 0
}

// advance сдвигает окно счетчика так, чтобы now попадал в текущее окно.
func (c *windowCounter) advance(now time.Time, window time.Duration) {
	if now.Before(c.start) {
		return
	}
	switch n := now.Sub(c.start) / window; {
	case n == 1:
		c.prev, c.cur = c.cur, 0
		c.start = c.start.Add(window)
	case n > 1:
		c.prev, c.cur = 0, 0
		c.start = c.start.Add(n * window)
	}
}

// wait считает, когда вес прошлого окна упадет достаточно для еще одного вызова.
func (l *RateLimiter) wait(c *windowCounter, elapsed time.Duration) time.Duration {
	free := float64(l.limit - 1)
	w := float64(l.window)
	var d float64
	if float64(c.cur) > free {
		// текущее окно заполнено: ждем его конца и затухания его же счетчика
		d = (w - float64(elapsed)) + w*(1-free/float64(c.cur))
	} else {
		d = w*(1-(free-float64(c.cur))/float64(c.prev)) - float64(elapsed)
	}
	return time.Duration(math.Max(math.Ceil(d), float64(time.Millisecond)))
}

// sweep удаляет ключи, которые не использовались два окна и больше.
func (l *RateLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	l.lastSweep = now
	for key, c := range l.counters {
		if now.Sub(c.start) >= 2*l.window {
			delete(l.counters, key)
		}
	}
}

// Len возвращает число отслеживаемых ключей.
func (l *RateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.counters)
}
