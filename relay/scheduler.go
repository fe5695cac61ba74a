package relay

import (
	"context"
	"time"

	logger "github.com/sirupsen/logrus"
)

// Scheduler feeds host block numbers to the relay, one at a time. A block
// arriving while an invocation runs waits, invocations never overlap
// within one process.
type Scheduler struct {
	relay  *Relay
	blocks <-chan uint64
}

func NewScheduler(relay *Relay, blocks <-chan uint64) *Scheduler {
	return &Scheduler{relay: relay, blocks: blocks}
}

// The Big Loop!
func (s *Scheduler) Loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case n, ok := <-s.blocks:
			if !ok {
				logger.Info("relay: host block feed closed")
				return nil
			}
			s.relay.OnBlock(ctx, n)
		}
	}
}

// NewTickerBlockSource emits increasing block numbers starting at start,
// one per interval, until ctx is done. It stands in for a host chain's
// block import notifications.
func NewTickerBlockSource(ctx context.Context, interval time.Duration, start uint64) <-chan uint64 {
	ch := make(chan uint64)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		n := start
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case ch <- n:
					n++
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch
}
