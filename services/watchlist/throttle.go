package watchlist

import (
	"log"
	"sync"
	"time"

	"twowatch/internal/docstore"
)

const defaultThrottleWindow = 30 * time.Second

// LogThrottle suppresses repeated log lines for the same operation and error code.
type LogThrottle struct {
	mu         sync.Mutex
	window     time.Duration
	now        func() time.Time
	last       map[string]time.Time
	suppressed map[string]int
}

// NewLogThrottle creates a throttle; a non-positive window falls back to 30s.
func NewLogThrottle(window time.Duration) *LogThrottle {
	if window <= 0 {
		window = defaultThrottleWindow
	}
	return &LogThrottle{
		window:     window,
		now:        time.Now,
		last:       make(map[string]time.Time),
		suppressed: make(map[string]int),
	}
}

// Allow reports whether a line for (op, code) may be logged now, and how many identical lines
// were dropped since the last one that was allowed.
func (t *LogThrottle) Allow(op string, code docstore.Code) (bool, int) {
	key := op + "|" + string(code)
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if last, ok := t.last[key]; ok && now.Sub(last) < t.window {
		t.suppressed[key]++
		return false, 0
	}

	dropped := t.suppressed[key]
	delete(t.suppressed, key)
	t.last[key] = now
	return true, dropped
}

// Printf logs the formatted line unless an identical (op, code) line was logged inside the window.
func (t *LogThrottle) Printf(op string, code docstore.Code, format string, args ...any) {
	ok, dropped := t.Allow(op, code)
	if !ok {
		return
	}
	if dropped > 0 {
		format += " (%d similar suppressed)"
		args = append(args, dropped)
	}
	log.Printf(format, args...)
}
