package game

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Scheduler issues at most one pending phase deadline per key and fires a
// callback when it elapses. Deadlines are cancellable; a cancelled or
// superseded deadline never fires its callback. Backed by clockwork so
// tests can drive it with a fake clock.
type Scheduler struct {
	clock clockwork.Clock

	mu     sync.Mutex
	timers map[string]*scheduled
	gen    uint64
}

type scheduled struct {
	timer clockwork.Timer
	gen   uint64
}

func NewScheduler(clock clockwork.Clock) *Scheduler {
	return &Scheduler{
		clock:  clock,
		timers: make(map[string]*scheduled),
	}
}

func (s *Scheduler) Now() time.Time { return s.clock.Now() }

// Schedule arms a deadline for key, replacing any pending one. fire runs
// in its own goroutine once the deadline elapses, unless Cancel or a
// newer Schedule for the same key wins first.
func (s *Scheduler) Schedule(key string, d time.Duration, fire func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.timers[key]; ok {
		prev.timer.Stop()
	}
	s.gen++
	gen := s.gen
	entry := &scheduled{gen: gen}
	entry.timer = s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		cur, ok := s.timers[key]
		live := ok && cur.gen == gen
		if live {
			delete(s.timers, key)
		}
		s.mu.Unlock()
		if live {
			fire()
		}
	})
	s.timers[key] = entry
}

// Cancel discards the pending deadline for key, if any.
func (s *Scheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.timers[key]; ok {
		entry.timer.Stop()
		delete(s.timers, key)
	}
}
