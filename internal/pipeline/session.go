// Package pipeline turns caption snapshots into rendered translations. All
// session state is owned by one goroutine running Session.Run; the exported
// methods only post work to it.
package pipeline

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/MimeLyc/live-sub-translator/internal/cache"
	"github.com/MimeLyc/live-sub-translator/internal/provider"
	"github.com/MimeLyc/live-sub-translator/internal/segment"
	"github.com/MimeLyc/live-sub-translator/internal/settings"
	"github.com/MimeLyc/live-sub-translator/internal/subtitle"
	"github.com/MimeLyc/live-sub-translator/pkg/log"
)

var ErrClosed = errors.New("session closed")

// State is a copy of the subtitle bookkeeping.
type State struct {
	LastOriginalText   string   `json:"last_original_text"`
	LastTranslatedText string   `json:"last_translated_text"`
	Seq                uint64   `json:"seq"`
	LatestSeq          uint64   `json:"latest_seq"`
	Pending            []string `json:"pending"`
}

type Status struct {
	State     State               `json:"state"`
	Displayed *subtitle.Displayed `json:"displayed,omitempty"`
	Settings  settings.Settings   `json:"settings"`
	Paused    bool                `json:"paused"`
	AdPlaying bool                `json:"ad_playing"`
	Visible   bool                `json:"visible"`
	CacheSize int                 `json:"cache_size"`
	// Scheduled is set while a debounced or rate-deferred request is waiting
	// to be issued.
	Scheduled bool                `json:"scheduled"`
}

type Session struct {
	translator provider.Translator
	renderer   subtitle.Renderer
	opts       Options
	logger     *log.Logger

	events chan func()
	done   chan struct{}

	// Everything below is owned by the Run goroutine. latestText is the text
	// requested under state.LatestSeq.
	ctx        context.Context
	cache      *cache.Cache
	settings   settings.Settings
	state      State
	latestText string
	pending    map[string]uint64
	displayed  *subtitle.Displayed
	paused     bool
	adPlaying  bool
	visible    bool

	debounce  timerSlot
	rateRetry timerSlot
	idle      timerSlot
}

func NewSession(tr provider.Translator, r subtitle.Renderer, opts ...Option) *Session {
	s := &Session{
		translator: tr,
		renderer:   r,
		opts:       DefaultOptions(),
		logger:     log.GetLogger(),
		events:     make(chan func(), 64),
		done:       make(chan struct{}),
		settings:   settings.Default(),
		pending:    make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = cache.New()
	}
	return s
}

// Run processes events until ctx is done. It must be called exactly once.
func (s *Session) Run(ctx context.Context) error {
	s.ctx = ctx
	defer close(s.done)
	defer func() {
		s.debounce.stop()
		s.rateRetry.stop()
		s.idle.stop()
	}()

	s.renderer.Configure(s.settings)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-s.events:
			fn()
		}
	}
}

// Done is closed after Run returns.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) post(fn func()) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.events <- fn:
		return true
	case <-s.done:
		return false
	}
}

// do runs fn on the loop and waits for it.
func (s *Session) do(fn func()) error {
	finished := make(chan struct{})
	if !s.post(func() {
		fn()
		close(finished)
	}) {
		return ErrClosed
	}
	select {
	case <-finished:
		return nil
	case <-s.done:
		return ErrClosed
	}
}

// Observe feeds one raw caption snapshot.
func (s *Session) Observe(text string) {
	s.post(func() { s.observe(text) })
}

// RequestTranslation translates text outside the segmentation path, for
// example a caption the user explicitly asked for.
func (s *Session) RequestTranslation(text string) {
	s.post(func() {
		if !s.settings.Enabled || text == "" {
			return
		}
		s.requestTranslation(text)
	})
}

// UpdateSettings replaces the settings snapshot and reacts to what changed.
func (s *Session) UpdateSettings(next settings.Settings) {
	s.post(func() { s.applySettings(next) })
}

func (s *Session) SetPaused(paused bool) {
	s.post(func() {
		if s.paused != paused {
			s.logger.Debug("playback paused=%v", paused)
		}
		s.paused = paused
	})
}

// SetAdPlaying hides the overlay while an ad plays and restores it afterwards
// unless the user closed it.
func (s *Session) SetAdPlaying(playing bool) {
	s.post(func() {
		if s.adPlaying == playing {
			return
		}
		s.adPlaying = playing
		if playing {
			s.logger.Info("ad started, hiding overlay")
			s.setVisible(false)
			return
		}
		s.logger.Info("ad ended")
		s.show()
	})
}

func (s *Session) Status() (Status, error) {
	var st Status
	err := s.do(func() {
		st = Status{
			State:     s.snapshotState(),
			Settings:  s.settings,
			Paused:    s.paused,
			AdPlaying: s.adPlaying,
			Visible:   s.visible,
			CacheSize: s.cache.Len(),
			Scheduled: s.debounce.active() || s.rateRetry.active(),
		}
		if s.displayed != nil {
			d := *s.displayed
			st.Displayed = &d
		}
	})
	return st, err
}

// PurgeCache drops expired cache entries and reports how many went.
func (s *Session) PurgeCache() (int, error) {
	var n int
	err := s.do(func() { n = s.cache.Purge() })
	return n, err
}

func (s *Session) snapshotState() State {
	st := s.state
	st.Pending = make([]string, 0, len(s.pending))
	for text := range s.pending {
		st.Pending = append(st.Pending, text)
	}
	sort.Strings(st.Pending)
	return st
}

func (s *Session) observe(text string) {
	if text == "" || !s.settings.Enabled || s.paused || s.adPlaying {
		return
	}

	d := segment.Decide(s.state.LastOriginalText, text, s.opts.MaxCaptionLength)
	if d.Kind == segment.Unchanged {
		return
	}
	if s.logger.Enabled(log.LevelDebug) {
		s.logger.Debug("caption %s refresh=%v now=%v debounce=%v retry=%v: %q",
			d.Kind, d.Refresh, d.TranslateNow, s.debounce.active(), s.rateRetry.active(), d.Text)
	}

	if d.ResetGuard {
		s.state.LastTranslatedText = ""
	}
	s.state.LastOriginalText = d.Text

	if d.Refresh {
		s.renderer.ShowOriginal(d.Text)
		s.show()
	}

	if d.TranslateNow {
		s.debounce.stop()
		if d.Text == s.state.LastTranslatedText {
			s.logger.Debug("already translated, skipping: %q", d.Text)
			return
		}
		s.requestTranslation(d.Text)
		return
	}

	pendingText := d.Text
	s.schedule(&s.debounce, s.opts.DebounceDelay, func() {
		if pendingText == s.state.LastOriginalText {
			s.requestTranslation(pendingText)
		}
	})
}

func (s *Session) requestTranslation(text string) {
	s.state.Seq++
	seq := s.state.Seq
	s.state.LatestSeq = seq
	s.latestText = text
	// A held retry belongs to an older sequence and can no longer win.
	s.rateRetry.stop()

	target := s.settings.TargetLang
	if cached, ok := s.cache.Get(s.opts.SourceLang, target, text); ok {
		s.logger.Debug("cache hit [seq=%d]", seq)
		s.deliver(seq, text, cached, "")
		return
	}

	if _, inFlight := s.pending[text]; inFlight {
		s.logger.Debug("already in flight [seq=%d]: %q", seq, text)
		return
	}

	if s.displayed != nil && s.opts.RateInterval > 0 {
		if wait := s.opts.RateInterval - time.Since(s.displayed.Timestamp); wait > 0 {
			s.logger.Debug("rate limited [seq=%d], retry in %s", seq, wait)
			s.schedule(&s.rateRetry, wait, func() { s.requestTranslation(text) })
			return
		}
	}

	s.pending[text] = seq
	req := provider.Request{
		Text:       text,
		SourceLang: s.opts.SourceLang,
		TargetLang: target,
	}
	ctx := s.ctx
	timeout := s.opts.RequestTimeout
	go func() {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		res, err := s.translator.Translate(callCtx, req)
		s.post(func() { s.complete(seq, req, res, err) })
	}()
}

func (s *Session) complete(seq uint64, req provider.Request, res provider.Result, err error) {
	if owner, ok := s.pending[req.Text]; ok && owner == seq {
		delete(s.pending, req.Text)
	}
	if err != nil {
		s.logger.Warn("translation failed [seq=%d]: %v", seq, err)
		return
	}
	if !s.settings.Enabled || req.TargetLang != s.settings.TargetLang {
		s.logger.Debug("dropping result for outdated settings [seq=%d]", seq)
		return
	}

	s.cache.Set(req.SourceLang, req.TargetLang, req.Text, res.Text)
	if seq != s.state.LatestSeq {
		// A newer request for the same text was folded into this call.
		if req.Text != s.latestText {
			s.logger.Debug("discarding stale translation [seq=%d, latest=%d]", seq, s.state.LatestSeq)
			return
		}
		seq = s.state.LatestSeq
	}
	s.deliver(seq, req.Text, res.Text, res.SourceLang)
}

func (s *Session) deliver(seq uint64, original, translated, sourceLang string) {
	if sourceLang == "" {
		sourceLang = provider.DetectLanguage(original)
	}
	d := subtitle.Displayed{
		Original:   original,
		Translated: translated,
		Timestamp:  time.Now(),
		Seq:        seq,
		SourceLang: sourceLang,
	}
	s.displayed = &d
	s.state.LastTranslatedText = original
	s.renderer.ShowTranslation(d)
	s.show()

	if s.opts.HideAfterIdle > 0 {
		s.schedule(&s.idle, s.opts.HideAfterIdle, func() {
			s.logger.Debug("idle, hiding overlay")
			s.setVisible(false)
		})
	}
}

func (s *Session) applySettings(next settings.Settings) {
	prev := s.settings
	changed := settings.Changed(prev, next)
	if len(changed) == 0 {
		return
	}
	s.settings = next
	s.logger.Info("settings changed: %v", changed)
	s.renderer.Configure(next)

	if prev.TargetLang != next.TargetLang {
		s.cache.Clear()
	}
	if prev.Enabled && !next.Enabled {
		s.reset()
	}
	if prev.IsClosed != next.IsClosed {
		if next.IsClosed {
			s.setVisible(false)
		} else {
			s.show()
		}
	}
}

// reset drops everything a disabled session must not carry over. Sequence
// counters stay monotonic so late results are still fenced.
func (s *Session) reset() {
	s.debounce.stop()
	s.rateRetry.stop()
	s.idle.stop()

	s.state.LastOriginalText = ""
	s.state.LastTranslatedText = ""
	s.renderer.Clear()
	s.cache.Clear()
	s.pending = make(map[string]uint64)
	s.setVisible(false)
}

func (s *Session) show() {
	if s.settings.IsClosed || s.adPlaying || !s.settings.Enabled {
		return
	}
	s.setVisible(true)
}

func (s *Session) setVisible(visible bool) {
	if s.visible == visible {
		return
	}
	s.visible = visible
	s.renderer.SetVisible(visible)
}
