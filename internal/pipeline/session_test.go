package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/live-sub-translator/internal/provider"
	"github.com/MimeLyc/live-sub-translator/internal/settings"
	"github.com/MimeLyc/live-sub-translator/internal/subtitle"
)

type reply struct {
	res provider.Result
	err error
}

type call struct {
	req   provider.Request
	reply chan reply
}

func (c call) succeed(text string) {
	c.reply <- reply{res: provider.Result{Text: text, SourceLang: "en"}}
}

func (c call) fail(err error) {
	c.reply <- reply{err: err}
}

// gatedTranslator blocks every call until the test answers it.
type gatedTranslator struct {
	calls chan call
}

func newGatedTranslator() *gatedTranslator {
	return &gatedTranslator{calls: make(chan call, 16)}
}

func (g *gatedTranslator) Translate(ctx context.Context, req provider.Request) (provider.Result, error) {
	c := call{req: req, reply: make(chan reply, 1)}
	g.calls <- c
	select {
	case r := <-c.reply:
		return r.res, r.err
	case <-ctx.Done():
		return provider.Result{}, ctx.Err()
	}
}

func (g *gatedTranslator) next(t *testing.T) call {
	t.Helper()
	select {
	case c := <-g.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("expected a provider call")
		return call{}
	}
}

func (g *gatedTranslator) none(t *testing.T, within time.Duration) {
	t.Helper()
	select {
	case c := <-g.calls:
		t.Fatalf("unexpected provider call for %q", c.req.Text)
	case <-time.After(within):
	}
}

type recordingRenderer struct {
	mu           sync.Mutex
	originals    []string
	translations []subtitle.Displayed
	visibility   []bool
	clears       int
	configured   []settings.Settings
}

func (r *recordingRenderer) ShowOriginal(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.originals = append(r.originals, text)
}

func (r *recordingRenderer) ShowTranslation(d subtitle.Displayed) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.translations = append(r.translations, d)
}

func (r *recordingRenderer) SetVisible(visible bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.visibility = append(r.visibility, visible)
}

func (r *recordingRenderer) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clears++
}

func (r *recordingRenderer) Configure(s settings.Settings) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configured = append(r.configured, s)
}

func (r *recordingRenderer) Originals() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.originals...)
}

func (r *recordingRenderer) Translations() []subtitle.Displayed {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]subtitle.Displayed(nil), r.translations...)
}

func (r *recordingRenderer) Visible() (bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.visibility) == 0 {
		return false, false
	}
	return r.visibility[len(r.visibility)-1], true
}

func (r *recordingRenderer) Clears() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clears
}

func testOptions() Options {
	o := DefaultOptions()
	o.DebounceDelay = 30 * time.Millisecond
	o.RateInterval = 0
	return o
}

func startSession(t *testing.T, opts ...Option) (*Session, *gatedTranslator, *recordingRenderer) {
	t.Helper()
	tr := newGatedTranslator()
	r := &recordingRenderer{}
	s := NewSession(tr, r, append([]Option{WithOptions(testOptions())}, opts...)...)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-s.Done()
	})
	return s, tr, r
}

func waitTranslations(t *testing.T, r *recordingRenderer, n int) []subtitle.Displayed {
	t.Helper()
	require.Eventually(t, func() bool { return len(r.Translations()) >= n }, 2*time.Second, 5*time.Millisecond)
	return r.Translations()
}

func waitIdle(t *testing.T, s *Session) Status {
	t.Helper()
	var st Status
	require.Eventually(t, func() bool {
		var err error
		st, err = s.Status()
		return err == nil && len(st.State.Pending) == 0
	}, 2*time.Second, 5*time.Millisecond)
	return st
}

func TestSession_SequenceFencing(t *testing.T) {
	s, tr, r := startSession(t)

	s.RequestTranslation("Hello")
	first := tr.next(t)
	s.RequestTranslation("Hello there")
	second := tr.next(t)

	second.succeed("你好那里")
	got := waitTranslations(t, r, 1)
	assert.Equal(t, "你好那里", got[0].Translated)
	assert.EqualValues(t, 2, got[0].Seq)

	first.succeed("你好")
	st := waitIdle(t, s)

	require.Len(t, r.Translations(), 1, "older result must not be displayed")
	assert.Equal(t, "Hello there", st.State.LastTranslatedText)
	assert.EqualValues(t, 2, st.State.LatestSeq)
	// the stale result is still cached
	assert.Equal(t, 2, st.CacheSize)
}

func TestSession_DeduplicatesInFlightText(t *testing.T) {
	s, tr, r := startSession(t)

	s.RequestTranslation("X")
	s.RequestTranslation("X")
	c := tr.next(t)
	tr.none(t, 50*time.Millisecond)

	c.succeed("x!")
	got := waitTranslations(t, r, 1)
	assert.Equal(t, "x!", got[0].Translated)
	assert.EqualValues(t, 2, got[0].Seq)
}

func TestSession_RateLimitDelaysNotDrops(t *testing.T) {
	opts := testOptions()
	opts.RateInterval = 200 * time.Millisecond
	s, tr, r := startSession(t, WithOptions(opts))

	s.RequestTranslation("first")
	tr.next(t).succeed("one")
	shown := waitTranslations(t, r, 1)[0].Timestamp

	s.RequestTranslation("second")
	tr.none(t, 100*time.Millisecond)

	c := tr.next(t)
	assert.Equal(t, "second", c.req.Text)
	assert.GreaterOrEqual(t, time.Since(shown), 190*time.Millisecond)

	c.succeed("two")
	got := waitTranslations(t, r, 2)
	assert.Equal(t, "two", got[1].Translated)
}

func TestSession_NewerRequestReplacesHeldRetry(t *testing.T) {
	opts := testOptions()
	opts.RateInterval = 150 * time.Millisecond
	s, tr, r := startSession(t, WithOptions(opts))

	s.RequestTranslation("a")
	tr.next(t).succeed("A")
	waitTranslations(t, r, 1)

	s.RequestTranslation("b")
	s.RequestTranslation("c")

	c := tr.next(t)
	assert.Equal(t, "c", c.req.Text)
	tr.none(t, 200*time.Millisecond)
}

func TestSession_CacheHitIsSynchronous(t *testing.T) {
	s, tr, r := startSession(t)

	s.RequestTranslation("Hello  World")
	tr.next(t).succeed("你好世界")
	waitTranslations(t, r, 1)

	s.RequestTranslation(" hello world ")
	got := waitTranslations(t, r, 2)
	tr.none(t, 50*time.Millisecond)

	assert.Equal(t, "你好世界", got[1].Translated)
	assert.Equal(t, " hello world ", got[1].Original)
	assert.EqualValues(t, 2, got[1].Seq)
}

func TestSession_FailureReleasesInFlight(t *testing.T) {
	s, tr, r := startSession(t)

	s.RequestTranslation("flaky")
	tr.next(t).fail(provider.NewError(provider.ErrNetwork, "boom"))
	waitIdle(t, s)
	assert.Empty(t, r.Translations())

	s.RequestTranslation("flaky")
	tr.next(t).succeed("ok")
	waitTranslations(t, r, 1)
}

func TestSession_ObserveDebouncesAppends(t *testing.T) {
	s, tr, r := startSession(t)

	s.Observe("Hello")
	s.Observe("Hello world")
	s.Observe("Hello world again")

	c := tr.next(t)
	assert.Equal(t, "Hello world again", c.req.Text)
	tr.none(t, 60*time.Millisecond)

	assert.Equal(t, []string{"Hello"}, r.Originals(), "appends must not refresh the original line")
	visible, ok := r.Visible()
	assert.True(t, ok && visible)

	c.succeed("你好世界")
	waitTranslations(t, r, 1)
}

func TestSession_NewSentenceRefreshes(t *testing.T) {
	s, tr, r := startSession(t)

	s.Observe("Hello there my friend")
	tr.next(t).succeed("a")
	waitTranslations(t, r, 1)

	s.Observe("Hi")
	c := tr.next(t)
	assert.Equal(t, "Hi", c.req.Text)
	assert.Equal(t, []string{"Hello there my friend", "Hi"}, r.Originals())
	c.succeed("嗨")
	waitTranslations(t, r, 2)
}

func TestSession_OverlongTranslatesImmediately(t *testing.T) {
	opts := testOptions()
	opts.DebounceDelay = time.Hour
	s, tr, r := startSession(t, WithOptions(opts))

	base := strings.TrimSpace(strings.Repeat("stream words ", 12))
	current := base + " " + strings.TrimSpace(strings.Repeat("more ", 12))
	s.Observe(base)
	s.Observe(current)

	c := tr.next(t)
	assert.LessOrEqual(t, utf8.RuneCountInString(c.req.Text), 200)
	assert.True(t, strings.HasSuffix(current, c.req.Text))
	assert.True(t, strings.HasPrefix(c.req.Text, "stream") || strings.HasPrefix(c.req.Text, "words"))

	originals := r.Originals()
	require.Len(t, originals, 2)
	assert.Equal(t, c.req.Text, originals[1])
}

func TestSession_FirstContentOverCapTranslatesNow(t *testing.T) {
	opts := testOptions()
	opts.DebounceDelay = time.Hour
	s, tr, _ := startSession(t, WithOptions(opts))

	long := strings.TrimSpace(strings.Repeat("caption ", 40))
	s.Observe(long)

	c := tr.next(t)
	assert.Equal(t, long, c.req.Text)
}

func TestSession_GatedWhilePausedOrAd(t *testing.T) {
	s, tr, r := startSession(t)

	s.SetPaused(true)
	s.Observe("ignored")
	tr.none(t, 60*time.Millisecond)
	assert.Empty(t, r.Originals())

	s.SetPaused(false)
	s.SetAdPlaying(true)
	s.Observe("still ignored")
	tr.none(t, 60*time.Millisecond)
	assert.Empty(t, r.Originals())

	s.SetAdPlaying(false)
	s.Observe("shown")
	require.Eventually(t, func() bool { return len(r.Originals()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestSession_AdHidesAndRestores(t *testing.T) {
	s, tr, r := startSession(t)

	s.Observe("Hello")
	tr.next(t).succeed("你好")
	waitTranslations(t, r, 1)

	s.SetAdPlaying(true)
	st, err := s.Status()
	require.NoError(t, err)
	assert.False(t, st.Visible)

	s.SetAdPlaying(false)
	st, err = s.Status()
	require.NoError(t, err)
	assert.True(t, st.Visible)
}

func TestSession_ClosedOverlayStaysHidden(t *testing.T) {
	closed := settings.Default()
	closed.IsClosed = true
	s, tr, r := startSession(t, WithSettings(closed))

	s.Observe("Hello")
	tr.next(t).succeed("你好")
	waitTranslations(t, r, 1)

	_, ok := r.Visible()
	assert.False(t, ok, "a closed overlay is never shown")

	reopened := closed
	reopened.IsClosed = false
	s.UpdateSettings(reopened)
	st, err := s.Status()
	require.NoError(t, err)
	assert.True(t, st.Visible)
}

func TestSession_DisableResets(t *testing.T) {
	s, tr, r := startSession(t)

	s.Observe("Hello")
	tr.next(t).succeed("你好")
	waitTranslations(t, r, 1)

	s.RequestTranslation("late")
	late := tr.next(t)

	off := settings.Default()
	off.Enabled = false
	s.UpdateSettings(off)

	st, err := s.Status()
	require.NoError(t, err)
	assert.Equal(t, 1, r.Clears())
	assert.False(t, st.Visible)
	assert.Zero(t, st.CacheSize)
	assert.Empty(t, st.State.Pending)
	assert.Empty(t, st.State.LastOriginalText)
	assert.EqualValues(t, 2, st.State.Seq, "counters stay monotonic")

	late.succeed("太晚")
	s.Observe("ignored while disabled")
	tr.none(t, 60*time.Millisecond)

	st, err = s.Status()
	require.NoError(t, err)
	assert.Len(t, r.Translations(), 1)
	assert.Zero(t, st.CacheSize)
	assert.Equal(t, []string{"Hello"}, r.Originals())
}

func TestSession_StatusReportsScheduledRequest(t *testing.T) {
	opts := testOptions()
	opts.DebounceDelay = 300 * time.Millisecond
	s, tr, _ := startSession(t, WithOptions(opts))

	s.Observe("Hello world")
	st, err := s.Status()
	require.NoError(t, err)
	assert.True(t, st.Scheduled, "debounced request should be reported")

	c := tr.next(t)
	st, err = s.Status()
	require.NoError(t, err)
	assert.False(t, st.Scheduled)
	c.succeed("你好世界")
}

func TestSession_ReenableShowsSameCaptionAgain(t *testing.T) {
	s, tr, r := startSession(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	feed := subtitle.NewFeed()
	defer feed.Close()
	go subtitle.NewSampler(0).Run(ctx, feed.Observe(ctx), s.Observe)

	feed.Push("Hello world")
	tr.next(t).succeed("你好世界")
	waitTranslations(t, r, 1)

	off := settings.Default()
	off.Enabled = false
	s.UpdateSettings(off)
	feed.Push("Hello world")
	_, err := s.Status()
	require.NoError(t, err)

	s.UpdateSettings(settings.Default())
	feed.Push("Hello world")

	c := tr.next(t)
	assert.Equal(t, "Hello world", c.req.Text)
	c.succeed("你好世界")
	waitTranslations(t, r, 2)

	assert.Equal(t, []string{"Hello world", "Hello world"}, r.Originals())
	st, err := s.Status()
	require.NoError(t, err)
	assert.True(t, st.Visible)
	assert.Equal(t, "Hello world", st.State.LastOriginalText)
}

func TestSession_TargetChangeClearsCacheAndDropsOldResults(t *testing.T) {
	s, tr, r := startSession(t)

	s.RequestTranslation("one")
	tr.next(t).succeed("一")
	waitTranslations(t, r, 1)

	s.RequestTranslation("two")
	pending := tr.next(t)

	ja := settings.Default()
	ja.TargetLang = "ja"
	s.UpdateSettings(ja)

	pending.succeed("二")
	st := waitIdle(t, s)
	assert.Zero(t, st.CacheSize)
	assert.Len(t, r.Translations(), 1)

	s.RequestTranslation("one")
	c := tr.next(t)
	assert.Equal(t, "ja", c.req.TargetLang)
}

func TestSession_HideAfterIdle(t *testing.T) {
	opts := testOptions()
	opts.HideAfterIdle = 50 * time.Millisecond
	s, tr, r := startSession(t, WithOptions(opts))

	s.Observe("Hello")
	tr.next(t).succeed("你好")
	waitTranslations(t, r, 1)

	require.Eventually(t, func() bool {
		st, err := s.Status()
		return err == nil && !st.Visible
	}, time.Second, 5*time.Millisecond)
}

func TestSession_ClosedSessionRejectsCalls(t *testing.T) {
	s := NewSession(newGatedTranslator(), &recordingRenderer{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	assert.True(t, errors.Is(<-done, context.Canceled))

	_, err := s.Status()
	assert.ErrorIs(t, err, ErrClosed)
	s.Observe("no panic")
}
