package mirror

import (
	"context"
	"sync"
	"time"
)

// Schedule runs a function immediately and then on every interval until
// cancelled. Each run gets its own goroutine so a slow run never delays the
// ticker; callers guard against overlap themselves.
type Schedule struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// StartSchedule begins running fn.
func StartSchedule(ctx context.Context, interval time.Duration, fn func(ctx context.Context)) *Schedule {
	ctx, cancel := context.WithCancel(ctx)
	s := &Schedule{cancel: cancel}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.fire(ctx, fn)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.fire(ctx, fn)
			}
		}
	}()
	return s
}

func (s *Schedule) fire(ctx context.Context, fn func(ctx context.Context)) {
	if ctx.Err() != nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(ctx)
	}()
}

// Cancel stops future runs and waits for in-flight runs to return.
func (s *Schedule) Cancel() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
	s.wg.Wait()
}
