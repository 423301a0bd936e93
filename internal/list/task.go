package list

import (
	"sync"
	"time"
)

// scheduler is the single deferred-work primitive the controller uses for
// input debouncing: scheduling a new task cancels the previous one.
type scheduler struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
}

func newScheduler(delay time.Duration) *scheduler {
	return &scheduler{delay: delay}
}

// Schedule runs fn after the delay, replacing any pending task.
func (s *scheduler) Schedule(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, fn)
}

// Cancel drops any pending task.
func (s *scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
