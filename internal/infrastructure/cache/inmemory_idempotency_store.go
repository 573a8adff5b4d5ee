package cache

import (
	"context"
	"sync"
	"time"

	"github.com/fieldservice/backend/internal/domain/shared"
)

const defaultSweepInterval = 5 * time.Minute

// InMemoryIdempotencyStore holds Idempotency-Key claims for a single server
// process. Expired claims are dropped on access and by a background sweep.
type InMemoryIdempotencyStore struct {
	mu     sync.Mutex
	claims map[string]time.Time // key -> expiry
	clock  func() time.Time

	stop context.CancelFunc
	done chan struct{}
}

// NewInMemoryIdempotencyStore starts a store sweeping every interval.
// A non-positive interval means five minutes.
func NewInMemoryIdempotencyStore(interval time.Duration) *InMemoryIdempotencyStore {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &InMemoryIdempotencyStore{
		claims: make(map[string]time.Time),
		clock:  time.Now,
		stop:   cancel,
		done:   make(chan struct{}),
	}
	go s.sweepEvery(ctx, interval)
	return s
}

func (s *InMemoryIdempotencyStore) MarkProcessed(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	if exp, held := s.claims[key]; held && exp.After(now) {
		return false, nil
	}
	s.claims[key] = now.Add(ttl)
	return true, nil
}

func (s *InMemoryIdempotencyStore) Forget(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.claims, key)
	s.mu.Unlock()
	return nil
}

// Close stops the sweeper and waits for it. Repeated calls are no-ops.
func (s *InMemoryIdempotencyStore) Close() error {
	s.stop()
	<-s.done
	return nil
}

func (s *InMemoryIdempotencyStore) sweepEvery(ctx context.Context, interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep drops expired claims and reports how many it removed
func (s *InMemoryIdempotencyStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now, removed := s.clock(), 0
	for key, exp := range s.claims {
		if !exp.After(now) {
			delete(s.claims, key)
			removed++
		}
	}
	return removed
}

// Size counts held claims. Expired ones count until swept.
func (s *InMemoryIdempotencyStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.claims)
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
