// Package settings holds the per-profile user preferences snapshot and the
// pure reducer that applies a single key change to it.
package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
)

const (
	KeyEnabled               = "enabled"
	KeyTargetLang            = "targetLang"
	KeyShowOriginal          = "showOriginal"
	KeyHideOriginalSubtitles = "hideOriginalSubtitles"
	KeyTextAlign             = "textAlign"
	KeyTranslatedFontSize    = "translatedFontSize"
	KeyPosition              = "position"
	KeyIsClosed              = "isClosed"
	KeyUILanguage            = "uiLanguage"
)

var (
	ErrUnknownKey   = errors.New("unknown setting")
	ErrInvalidValue = errors.New("invalid setting value")
)

var (
	textAligns  = []string{"left", "center", "right"}
	fontSizes   = []string{"small", "medium", "large"}
	uiLanguages = []string{"en", "zh-CN", "zh-TW"}
)

type Position struct {
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

type Settings struct {
	Enabled               bool     `json:"enabled"`
	TargetLang            string   `json:"targetLang"`
	ShowOriginal          bool     `json:"showOriginal"`
	HideOriginalSubtitles bool     `json:"hideOriginalSubtitles"`
	TextAlign             string   `json:"textAlign"`
	TranslatedFontSize    string   `json:"translatedFontSize"`
	Position              Position `json:"position"`
	IsClosed              bool     `json:"isClosed"`
	UILanguage            string   `json:"uiLanguage"`
}

// Default returns the settings a fresh profile starts with.
func Default() Settings {
	return Settings{
		Enabled:            true,
		TargetLang:         "zh-CN",
		TextAlign:          "left",
		TranslatedFontSize: "medium",
		Position:           Position{Bottom: 120, Left: 0},
		UILanguage:         "en",
	}
}

// Keys lists every known key in a stable order.
func Keys() []string {
	return []string{
		KeyEnabled,
		KeyTargetLang,
		KeyShowOriginal,
		KeyHideOriginalSubtitles,
		KeyTextAlign,
		KeyTranslatedFontSize,
		KeyPosition,
		KeyIsClosed,
		KeyUILanguage,
	}
}

func IsKnownKey(key string) bool {
	for _, k := range Keys() {
		if k == key {
			return true
		}
	}
	return false
}

func (s Settings) Validate() error {
	if err := ValidateLanguage(s.TargetLang); err != nil {
		return err
	}
	if !oneOf(s.TextAlign, textAligns) {
		return fmt.Errorf("%w: textAlign must be one of %s", ErrInvalidValue, strings.Join(textAligns, ", "))
	}
	if !oneOf(s.TranslatedFontSize, fontSizes) {
		return fmt.Errorf("%w: translatedFontSize must be one of %s", ErrInvalidValue, strings.Join(fontSizes, ", "))
	}
	if !oneOf(s.UILanguage, uiLanguages) {
		return fmt.Errorf("%w: uiLanguage must be one of %s", ErrInvalidValue, strings.Join(uiLanguages, ", "))
	}
	return nil
}

// ValidateLanguage accepts any well-formed BCP 47 tag.
func ValidateLanguage(tag string) error {
	if strings.TrimSpace(tag) == "" {
		return fmt.Errorf("%w: targetLang is required", ErrInvalidValue)
	}
	if _, err := language.Parse(tag); err != nil {
		return fmt.Errorf("%w: targetLang %q: %v", ErrInvalidValue, tag, err)
	}
	return nil
}

// ApplyChange returns s with key set to the JSON-encoded value. s itself is
// never modified. A position value may be partial; missing fields keep their
// current value.
func ApplyChange(s Settings, key string, value json.RawMessage) (Settings, error) {
	next := s
	var err error

	switch key {
	case KeyEnabled:
		err = decodeStrict(value, &next.Enabled)
	case KeyShowOriginal:
		err = decodeStrict(value, &next.ShowOriginal)
	case KeyHideOriginalSubtitles:
		err = decodeStrict(value, &next.HideOriginalSubtitles)
	case KeyIsClosed:
		err = decodeStrict(value, &next.IsClosed)
	case KeyTargetLang:
		err = decodeStrict(value, &next.TargetLang)
	case KeyTextAlign:
		err = decodeStrict(value, &next.TextAlign)
	case KeyTranslatedFontSize:
		err = decodeStrict(value, &next.TranslatedFontSize)
	case KeyUILanguage:
		err = decodeStrict(value, &next.UILanguage)
	case KeyPosition:
		err = decodeStrict(value, &next.Position)
	default:
		return s, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	if err != nil {
		return s, fmt.Errorf("%w: %s: %v", ErrInvalidValue, key, err)
	}

	if err := next.Validate(); err != nil {
		return s, err
	}
	return next, nil
}

// FromValues builds settings from stored raw values layered over Default.
// Unknown keys are ignored so older rows never block loading.
func FromValues(values map[string]json.RawMessage) (Settings, error) {
	s := Default()
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if !IsKnownKey(k) {
			continue
		}
		next, err := ApplyChange(s, k, values[k])
		if err != nil {
			return Default(), err
		}
		s = next
	}
	return s, nil
}

// Value returns the JSON encoding of a single key.
func (s Settings) Value(key string) (json.RawMessage, error) {
	var v any
	switch key {
	case KeyEnabled:
		v = s.Enabled
	case KeyTargetLang:
		v = s.TargetLang
	case KeyShowOriginal:
		v = s.ShowOriginal
	case KeyHideOriginalSubtitles:
		v = s.HideOriginalSubtitles
	case KeyTextAlign:
		v = s.TextAlign
	case KeyTranslatedFontSize:
		v = s.TranslatedFontSize
	case KeyPosition:
		v = s.Position
	case KeyIsClosed:
		v = s.IsClosed
	case KeyUILanguage:
		v = s.UILanguage
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return json.Marshal(v)
}

// Changed lists the keys whose values differ between a and b.
func Changed(a, b Settings) []string {
	var keys []string
	for _, k := range Keys() {
		av, _ := a.Value(k)
		bv, _ := b.Value(k)
		if !bytes.Equal(av, bv) {
			keys = append(keys, k)
		}
	}
	return keys
}

func decodeStrict(raw json.RawMessage, dst any) error {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return errors.New("value is required")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
