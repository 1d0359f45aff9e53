package payments

import (
	"context"
	"log"
	"time"
)

const sweepBatch = 100

type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Sweeper finishes cart clears that verify could not complete. With a Locker, only one
// instance sweeps per interval; the lock is left to expire rather than released.
type Sweeper struct {
	svc      *Service
	lock     Locker
	interval time.Duration
}

func NewSweeper(svc *Service, lock Locker, interval time.Duration) *Sweeper {
	return &Sweeper{svc: svc, lock: lock, interval: interval}
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass and returns how many carts were cleared.
func (s *Sweeper) Sweep(ctx context.Context) int {
	if s.lock != nil {
		ok, err := s.lock.TryLock(ctx, "cart-sweep", s.interval)
		if err != nil {
			log.Println("Cart sweep lock error:", err)
			return 0
		}
		if !ok {
			return 0
		}
	}

	n, err := s.svc.ReconcileCartClears(ctx, s.svc.now().Add(-s.interval), sweepBatch)
	if err != nil {
		log.Println("Cart sweep error:", err)
		return n
	}
	if n > 0 {
		log.Printf("Cart sweep cleared %d carts\n", n)
	}
	return n
}
