package workers

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/habitflow/sync-engine/internal/core/domain"
)

const DebounceDelay = 2 * time.Second

type SnapshotPusher interface {
	Push(ctx context.Context) error
}

// PushScheduler coalesces local mutations into a single debounced remote
// push. Auth state is only checked when the timer fires.
type PushScheduler struct {
	auth   domain.AuthProvider
	pusher SnapshotPusher
	delay  time.Duration

	mu       sync.Mutex
	timer    *time.Timer
	inFlight bool
}

func NewPushScheduler(auth domain.AuthProvider, pusher SnapshotPusher) *PushScheduler {
	return &PushScheduler{
		auth:   auth,
		pusher: pusher,
		delay:  DebounceDelay,
	}
}

func NewPushSchedulerWithDelay(auth domain.AuthProvider, pusher SnapshotPusher, delay time.Duration) *PushScheduler {
	s := NewPushScheduler(auth, pusher)
	s.delay = delay
	return s
}

func (s *PushScheduler) Schedule() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, s.fire)
}

func (s *PushScheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *PushScheduler) fire() {
	s.mu.Lock()
	s.timer = nil
	if s.inFlight {
		// Re-arm instead of piling up concurrent pushes.
		s.timer = time.AfterFunc(s.delay, s.fire)
		s.mu.Unlock()
		return
	}
	s.inFlight = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
	}()

	ctx := context.Background()

	user, err := s.auth.GetUser(ctx)
	if err != nil {
		log.Printf("[scheduler] resolve user failed: %v", err)
		return
	}
	if user == nil {
		return
	}

	if err := s.pusher.Push(ctx); err != nil {
		log.Printf("[scheduler] background push failed: %v", err)
	}
}
