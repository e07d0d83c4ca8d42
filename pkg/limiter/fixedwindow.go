package limiter

import (
	"math"
	"sync"
	"time"
)

// Decision is the outcome of a single admission check.
type Decision struct {
	Allowed       bool
	RetryAfterSec int
}

type window struct {
	start time.Time
	ttl   time.Duration
	count int
}

// FixedWindow is a process-local fixed window counter keyed by an
// arbitrary string, usually "scope:client-ip". It is safe for
// concurrent use.
type FixedWindow struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time

	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewFixedWindow creates an empty limiter.
func NewFixedWindow() *FixedWindow {
	return &FixedWindow{
		windows: make(map[string]*window),
		now:     time.Now,
		done:    make(chan struct{}),
	}
}

// Check counts one call for key. The first call opens a window of the
// given length. Once limit calls were admitted inside the window every
// further call is denied until the window expires.
func (l *FixedWindow) Check(key string, limit int, length time.Duration) Decision {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || !now.Before(w.start.Add(w.ttl)) {
		l.windows[key] = &window{start: now, ttl: length, count: 1}
		if limit < 1 {
			return Decision{Allowed: false, RetryAfterSec: retryAfter(length)}
		}
		return Decision{Allowed: true}
	}

	if w.count >= limit {
		return Decision{RetryAfterSec: retryAfter(w.start.Add(w.ttl).Sub(now))}
	}

	w.count++

	return Decision{Allowed: true}
}

// Sweep drops every expired window.
func (l *FixedWindow) Sweep() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, w := range l.windows {
		if !now.Before(w.start.Add(w.ttl)) {
			delete(l.windows, key)
			removed++
		}
	}

	return removed
}

// Len returns the number of tracked keys.
func (l *FixedWindow) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// StartJanitor sweeps expired windows every interval until Stop is called.
func (l *FixedWindow) StartJanitor(interval time.Duration) {
	if interval <= 0 {
		return
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-l.done:
				return
			case <-ticker.C:
				l.Sweep()
			}
		}
	}()
}

// Stop terminates the janitor.
func (l *FixedWindow) Stop() {
	l.stopOnce.Do(func() {
		close(l.done)
	})
	l.wg.Wait()
}

func retryAfter(d time.Duration) int {
	sec := int(math.Ceil(d.Seconds()))
	if sec < 1 {
		return 1
	}
	return sec
}
