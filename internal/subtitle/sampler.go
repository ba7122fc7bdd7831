package subtitle

import (
	"context"
	"iter"
	"time"
)

const DefaultThrottle = 100 * time.Millisecond

// Sampler forwards caption snapshots at most once per interval. A snapshot
// that arrives too early is held and delivered when the interval elapses,
// replaced by any newer one in the meantime. Empty snapshots are dropped.
// Repeats are forwarded: whether a repeat matters depends on the consumer's
// state, which may have been reset since the last delivery.
type Sampler struct {
	interval time.Duration
}

func NewSampler(interval time.Duration) *Sampler {
	if interval < 0 {
		interval = 0
	}
	return &Sampler{interval: interval}
}

// Run drains snapshots until ctx is done or the sequence ends, calling emit
// from the calling goroutine. A held snapshot is still delivered after the
// sequence ends.
func (s *Sampler) Run(ctx context.Context, snapshots iter.Seq[string], emit func(string)) {
	in := make(chan string)
	go func() {
		defer close(in)
		for snap := range snapshots {
			select {
			case in <- snap:
			case <-ctx.Done():
				return
			}
		}
	}()

	var (
		lastEmit   time.Time
		pending    string
		hasPending bool
		timer      *time.Timer
		timerC     <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	deliver := func(text string) {
		lastEmit = time.Now()
		emit(text)
	}

	for {
		if in == nil && !hasPending {
			return
		}

		select {
		case <-ctx.Done():
			return

		case snap, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			if snap == "" {
				continue
			}
			wait := s.interval - time.Since(lastEmit)
			if wait <= 0 && !hasPending {
				deliver(snap)
				continue
			}
			pending, hasPending = snap, true
			if timerC == nil {
				if wait < 0 {
					wait = 0
				}
				timer = time.NewTimer(wait)
				timerC = timer.C
			}

		case <-timerC:
			timerC = nil
			if hasPending {
				hasPending = false
				deliver(pending)
			}
		}
	}
}
