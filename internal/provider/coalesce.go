package provider

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

const DefaultCoalesceTimeout = 10 * time.Second

// Coalescer shares one upstream call between concurrent identical requests
// from different sessions. The per-session in-flight guard lives in the
// pipeline; this one only spans sessions.
//
// The shared call is detached from the caller that started it and bounded
// by its own timeout. Each caller stops waiting when its own ctx is done.
type Coalescer struct {
	next    Translator
	timeout time.Duration
	group   singleflight.Group
}

func NewCoalescer(next Translator, timeout time.Duration) *Coalescer {
	if timeout <= 0 {
		timeout = DefaultCoalesceTimeout
	}
	return &Coalescer{next: next, timeout: timeout}
}

func (c *Coalescer) Translate(ctx context.Context, req Request) (Result, error) {
	key := strings.Join([]string{req.SourceLang, req.TargetLang, req.Text}, "\x00")
	ch := c.group.DoChan(key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.next.Translate(callCtx, req)
	})

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Result{}, res.Err
		}
		return res.Val.(Result), nil
	}
}
