package generator

import (
	"context"
	"time"
)

// bucket is a token-bucket limiter capping generation calls per second.
// A nil bucket never blocks; Stop ends the refill goroutine.
type bucket struct {
	tokens chan struct{}
	stopCh chan struct{}
}

func newBucket(rps float64, burst int) *bucket {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	b := &bucket{
		tokens: make(chan struct{}, burst),
		stopCh: make(chan struct{}),
	}
	for i := 0; i < burst; i++ {
		b.tokens <- struct{}{}
	}
	period := time.Duration(float64(time.Second) / rps)
	if period <= 0 {
		period = time.Millisecond
	}
	ticker := time.NewTicker(period)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				select {
				case b.tokens <- struct{}{}:
				default:
					// bucket full
				}
			case <-b.stopCh:
				return
			}
		}
	}()
	return b
}

func (b *bucket) acquire(ctx context.Context) error {
	if b == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.stopCh:
		return context.Canceled
	case <-b.tokens:
		return nil
	}
}

func (b *bucket) stop() {
	if b == nil {
		return
	}
	close(b.stopCh)
}
