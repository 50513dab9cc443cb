package dispatch

import (
	"sync"
	"time"

	"notify-dispatch/internal/observability/metrics"
)

// RetryScheduler owns the in-process timers that re-enter deferred and
// retrying deliveries.
//
// Timers live only in memory. When the process dies, records whose
// timers were lost stay in pending or pending_retry until the
// maintenance sweep fails them; delivery records deliberately carry no
// payload, so there is nothing to replay from.
type RetryScheduler struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

// NewRetryScheduler returns an empty scheduler ready for use.
func NewRetryScheduler() *RetryScheduler {
	return &RetryScheduler{timers: make(map[string]*time.Timer)}
}

// Schedule arms a timer that calls fn after delay. A key holds at most
// one armed timer; scheduling the same key again replaces the previous
// timer. fn runs on the timer goroutine without the scheduler lock held,
// so it may schedule again.
func (s *RetryScheduler) Schedule(key string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if prev, ok := s.timers[key]; ok {
		prev.Stop()
	}

	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		s.mu.Lock()
		// Only remove the entry if it still belongs to this timer; a
		// concurrent Schedule for the same key may have replaced it.
		if s.timers[key] == t {
			delete(s.timers, key)
		}
		active := len(s.timers)
		s.mu.Unlock()

		metrics.SetRetryTimersActive(active)
		fn()
	})
	s.timers[key] = t

	metrics.SetRetryTimersActive(len(s.timers))
}

// Active returns the number of armed timers.
func (s *RetryScheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop disarms every timer and rejects further scheduling. It does not
// wait for callbacks already running.
func (s *RetryScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for key, t := range s.timers {
		t.Stop()
		delete(s.timers, key)
	}
	metrics.SetRetryTimersActive(0)
}
