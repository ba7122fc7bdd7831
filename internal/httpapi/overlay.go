package httpapi

import (
	"sync"

	"github.com/MimeLyc/live-sub-translator/internal/settings"
	"github.com/MimeLyc/live-sub-translator/internal/subtitle"
)

const (
	EventOriginal    = "original"
	EventTranslation = "translation"
	EventVisibility  = "visibility"
	EventClear       = "clear"
	EventSettings    = "settings"
)

const subscriberBuffer = 32

// Event is one overlay update sent to stream subscribers.
type Event struct {
	Name string
	Data any
}

// Overlay is a subtitle.Renderer that fans out to SSE subscribers and keeps
// enough state to bring a new subscriber up to date.
type Overlay struct {
	mu        sync.Mutex
	subs      map[chan Event]struct{}
	settings  *settings.Settings
	original  string
	displayed *subtitle.Displayed
	visible   bool
}

func NewOverlay() *Overlay {
	return &Overlay{subs: make(map[chan Event]struct{})}
}

func (o *Overlay) ShowOriginal(text string) {
	o.mu.Lock()
	o.original = text
	o.mu.Unlock()
	o.publish(Event{Name: EventOriginal, Data: map[string]string{"text": text}})
}

func (o *Overlay) ShowTranslation(d subtitle.Displayed) {
	o.mu.Lock()
	o.displayed = &d
	o.mu.Unlock()
	o.publish(Event{Name: EventTranslation, Data: d})
}

func (o *Overlay) SetVisible(visible bool) {
	o.mu.Lock()
	o.visible = visible
	o.mu.Unlock()
	o.publish(Event{Name: EventVisibility, Data: map[string]bool{"visible": visible}})
}

func (o *Overlay) Clear() {
	o.mu.Lock()
	o.original = ""
	o.displayed = nil
	o.mu.Unlock()
	o.publish(Event{Name: EventClear, Data: map[string]any{}})
}

func (o *Overlay) Configure(s settings.Settings) {
	o.mu.Lock()
	o.settings = &s
	o.mu.Unlock()
	o.publish(Event{Name: EventSettings, Data: s})
}

// Subscribe returns a channel of future events and the events needed to
// reproduce the current overlay. Call cancel when done. The channel is closed
// if the subscriber falls too far behind; subscribing again yields a fresh
// replay.
func (o *Overlay) Subscribe() (<-chan Event, []Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	o.mu.Lock()
	o.subs[ch] = struct{}{}
	replay := make([]Event, 0, 4)
	if o.settings != nil {
		replay = append(replay, Event{Name: EventSettings, Data: *o.settings})
	}
	if o.original != "" {
		replay = append(replay, Event{Name: EventOriginal, Data: map[string]string{"text": o.original}})
	}
	if o.displayed != nil {
		replay = append(replay, Event{Name: EventTranslation, Data: *o.displayed})
	}
	replay = append(replay, Event{Name: EventVisibility, Data: map[string]bool{"visible": o.visible}})
	o.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.subs, ch)
			o.mu.Unlock()
		})
	}
	return ch, replay, cancel
}

func (o *Overlay) Subscribers() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.subs)
}

// publish never blocks the session loop. A subscriber whose buffer is full
// is dropped and its channel closed rather than left with a gap.
func (o *Overlay) publish(ev Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for ch := range o.subs {
		select {
		case ch <- ev:
		default:
			delete(o.subs, ch)
			close(ch)
		}
	}
}
