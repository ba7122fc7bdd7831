// Package subtitle models the caption side of a session: where raw caption
// snapshots come from and where rendered subtitles go.
package subtitle

import (
	"context"
	"iter"
	"time"

	"github.com/MimeLyc/live-sub-translator/internal/settings"
)

// Displayed is the last (original, translated, seq) triple rendered. It is
// replaced wholesale on each accepted update.
type Displayed struct {
	Original   string    `json:"original"`
	Translated string    `json:"translated"`
	Timestamp  time.Time `json:"timestamp"`
	Seq        uint64    `json:"seq"`
	SourceLang string    `json:"source_lang,omitempty"`
}

// Renderer is the overlay sink. Calls arrive from a single goroutine.
type Renderer interface {
	ShowOriginal(text string)
	ShowTranslation(d Displayed)
	SetVisible(visible bool)
	Clear()
	Configure(s settings.Settings)
}

// Source yields raw caption snapshots. The sequence is lazy and ends when ctx
// is done or the underlying input is exhausted; calling Observe again restarts
// observation.
type Source interface {
	Observe(ctx context.Context) iter.Seq[string]
}
