package logging

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"
)

// Throttle lets a caller emit at most one message per key per interval. Suppressed
// messages are counted and reported with the next message that gets through.
type Throttle struct {
	mu       sync.Mutex
	clk      clock.Clock
	interval time.Duration
	keys     map[string]*throttleState
}

type throttleState struct {
	limiter    *rate.Limiter
	suppressed int
}

// NewThrottle returns a Throttle with the given interval. A nil clock means wall time.
func NewThrottle(interval time.Duration, clk clock.Clock) *Throttle {
	if clk == nil {
		clk = clock.New()
	}
	return &Throttle{clk: clk, interval: interval, keys: map[string]*throttleState{}}
}

// Do calls fn unless a call for key already went through within the interval. fn receives
// how many calls were suppressed since the last one that ran.
func (t *Throttle) Do(key string, fn func(suppressed int)) {
	t.mu.Lock()
	state, ok := t.keys[key]
	if !ok {
		limit := rate.Inf
		if t.interval > 0 {
			limit = rate.Every(t.interval)
		}
		state = &throttleState{limiter: rate.NewLimiter(limit, 1)}
		t.keys[key] = state
	}
	if !state.limiter.AllowN(t.clk.Now(), 1) {
		state.suppressed++
		t.mu.Unlock()
		return
	}
	suppressed := state.suppressed
	state.suppressed = 0
	t.mu.Unlock()
	fn(suppressed)
}

// Errorw logs through logger at most once per interval for the given key.
func (t *Throttle) Errorw(logger Logger, key, msg string, keysAndValues ...interface{}) {
	t.Do(key, func(suppressed int) {
		if suppressed > 0 {
			keysAndValues = append(keysAndValues, "suppressed", suppressed)
		}
		logger.Errorw(msg, keysAndValues...)
	})
}
