package subtitle

import (
	"bufio"
	"context"
	"io"
	"iter"
	"strings"
	"sync"
	"time"
)

// JoinSegments concatenates visible caption segments in rendering order with
// single spaces, skipping blank ones.
func JoinSegments(segments []string) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if seg = strings.TrimSpace(seg); seg != "" {
			parts = append(parts, seg)
		}
	}
	return strings.Join(parts, " ")
}

// Scripted replays a fixed list of snapshots, optionally spaced by Interval.
type Scripted struct {
	Snapshots []string
	Interval  time.Duration
}

func (s Scripted) Observe(ctx context.Context) iter.Seq[string] {
	return func(yield func(string) bool) {
		for i, snap := range s.Snapshots {
			if i > 0 && s.Interval > 0 && !sleep(ctx, s.Interval) {
				return
			}
			if ctx.Err() != nil || !yield(snap) {
				return
			}
		}
	}
}

// LineSource reads one snapshot per line. Tab-separated fields on a line are
// treated as separate caption segments. It cannot be restarted once the
// reader is drained.
type LineSource struct {
	r io.Reader
}

func NewLineSource(r io.Reader) *LineSource {
	return &LineSource{r: r}
}

func (s *LineSource) Observe(ctx context.Context) iter.Seq[string] {
	return func(yield func(string) bool) {
		scanner := bufio.NewScanner(s.r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			if ctx.Err() != nil {
				return
			}
			if !yield(JoinSegments(strings.Split(scanner.Text(), "\t"))) {
				return
			}
		}
	}
}

// Feed is a push-driven Source. Only the newest unread snapshot is kept;
// a reader that falls behind skips intermediate ones.
type Feed struct {
	ch   chan string
	done chan struct{}
	once sync.Once
}

func NewFeed() *Feed {
	return &Feed{
		ch:   make(chan string, 1),
		done: make(chan struct{}),
	}
}

// Push offers a snapshot. It never blocks and reports false once the feed
// is closed.
func (f *Feed) Push(text string) bool {
	for {
		select {
		case <-f.done:
			return false
		default:
		}
		select {
		case f.ch <- text:
			return true
		default:
			select {
			case <-f.ch:
			default:
			}
		}
	}
}

func (f *Feed) Close() {
	f.once.Do(func() { close(f.done) })
}

func (f *Feed) Observe(ctx context.Context) iter.Seq[string] {
	return func(yield func(string) bool) {
		for {
			select {
			case <-ctx.Done():
				return
			case <-f.done:
				return
			case text := <-f.ch:
				if !yield(text) {
					return
				}
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
