package pipeline

import (
	"time"

	"github.com/MimeLyc/live-sub-translator/internal/cache"
	"github.com/MimeLyc/live-sub-translator/internal/provider"
	"github.com/MimeLyc/live-sub-translator/internal/segment"
	"github.com/MimeLyc/live-sub-translator/internal/settings"
	"github.com/MimeLyc/live-sub-translator/pkg/log"
)

const (
	DefaultDebounceDelay  = 300 * time.Millisecond
	DefaultRateInterval   = 1000 * time.Millisecond
	DefaultRequestTimeout = 10 * time.Second
)

// Options are the timing and sizing knobs of a session.
type Options struct {
	// SourceLang is sent to the provider and used in cache keys.
	SourceLang       string
	DebounceDelay    time.Duration
	RateInterval     time.Duration
	MaxCaptionLength int
	// HideAfterIdle hides the overlay when no translation was displayed for
	// this long. Zero disables it.
	HideAfterIdle  time.Duration
	RequestTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		SourceLang:       provider.AutoDetect,
		DebounceDelay:    DefaultDebounceDelay,
		RateInterval:     DefaultRateInterval,
		MaxCaptionLength: segment.DefaultMaxLength,
		RequestTimeout:   DefaultRequestTimeout,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SourceLang == "" {
		o.SourceLang = d.SourceLang
	}
	if o.DebounceDelay < 0 {
		o.DebounceDelay = 0
	}
	if o.RateInterval < 0 {
		o.RateInterval = 0
	}
	if o.MaxCaptionLength <= 0 {
		o.MaxCaptionLength = d.MaxCaptionLength
	}
	if o.HideAfterIdle < 0 {
		o.HideAfterIdle = 0
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = d.RequestTimeout
	}
	return o
}

type Option func(*Session)

func WithOptions(o Options) Option {
	return func(s *Session) {
		s.opts = o.withDefaults()
	}
}

// WithCache shares a cache instance with the session. The session must be
// its only user.
func WithCache(c *cache.Cache) Option {
	return func(s *Session) {
		if c != nil {
			s.cache = c
		}
	}
}

func WithSettings(st settings.Settings) Option {
	return func(s *Session) {
		s.settings = st
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}
