package provider

import (
	"github.com/abadojack/whatlanggo"
)

const minDetectConfidence = 0.3

// DetectLanguage returns the ISO 639-1 code of text, or "" when detection is
// not confident enough.
func DetectLanguage(text string) string {
	info := whatlanggo.Detect(text)
	if info.Confidence < minDetectConfidence {
		return ""
	}
	return info.Lang.Iso6391()
}
