package provider

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	failing := TranslatorFunc(func(ctx context.Context, req Request) (Result, error) {
		calls.Add(1)
		return Result{}, NewError(ErrNetwork, "down")
	})

	b := NewBreaker("test", failing, 2, time.Hour)
	for i := 0; i < 2; i++ {
		_, err := b.Translate(context.Background(), Request{Text: "x", TargetLang: "de"})
		require.True(t, IsErrorType(err, ErrNetwork))
	}

	_, err := b.Translate(context.Background(), Request{Text: "x", TargetLang: "de"})
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrUnavailable))
	assert.EqualValues(t, 2, calls.Load())
	assert.Equal(t, "open", b.State())
}

func TestBreaker_PassesResults(t *testing.T) {
	ok := TranslatorFunc(func(ctx context.Context, req Request) (Result, error) {
		return Result{Text: "hallo", SourceLang: "en"}, nil
	})

	b := NewBreaker("test", ok, 0, 0)
	res, err := b.Translate(context.Background(), Request{Text: "hello", TargetLang: "de"})
	require.NoError(t, err)
	assert.Equal(t, Result{Text: "hallo", SourceLang: "en"}, res)
	assert.Equal(t, "closed", b.State())
}

func TestCoalescer_SharesConcurrentCalls(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	slow := TranslatorFunc(func(ctx context.Context, req Request) (Result, error) {
		calls.Add(1)
		entered <- struct{}{}
		<-release
		return Result{Text: "T:" + req.Text}, nil
	})

	c := NewCoalescer(slow, time.Second)
	req := Request{Text: "same", SourceLang: AutoDetect, TargetLang: "de"}

	var wg sync.WaitGroup
	results := make([]Result, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = c.Translate(context.Background(), req)
	}()
	<-entered

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], _ = c.Translate(context.Background(), req)
	}()
	// Give the second caller time to join the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, "T:same", results[0].Text)
	assert.Equal(t, "T:same", results[1].Text)
}

func TestCoalescer_FirstCallerCancelDoesNotFailOthers(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	slow := TranslatorFunc(func(ctx context.Context, req Request) (Result, error) {
		calls.Add(1)
		entered <- struct{}{}
		select {
		case <-release:
			return Result{Text: "T:" + req.Text}, nil
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	})

	c := NewCoalescer(slow, time.Second)
	req := Request{Text: "same", SourceLang: AutoDetect, TargetLang: "de"}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Translate(firstCtx, req)
		firstErr <- err
	}()
	<-entered

	second := make(chan Result, 1)
	secondErr := make(chan error, 1)
	go func() {
		res, err := c.Translate(context.Background(), req)
		second <- res
		secondErr <- err
	}()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	assert.Equal(t, "T:same", (<-second).Text)
	require.NoError(t, <-secondErr)
	assert.EqualValues(t, 1, calls.Load())
}

func TestCoalescer_SharedCallHasOwnTimeout(t *testing.T) {
	stuck := TranslatorFunc(func(ctx context.Context, req Request) (Result, error) {
		<-ctx.Done()
		return Result{}, ctx.Err()
	})

	c := NewCoalescer(stuck, 50*time.Millisecond)
	_, err := c.Translate(context.Background(), Request{Text: "x", TargetLang: "de"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
