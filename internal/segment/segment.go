// Package segment decides how a new caption observation relates to the
// previous one: whether the displayed original text refreshes, whether the
// text is translated at once or after a quiet period, and what text is
// handed to translation.
package segment

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxLength is the caption length, in characters, above which text is
// truncated and translated immediately.
const DefaultMaxLength = 200

type Kind int

const (
	Unchanged Kind = iota
	FirstContent
	NewSentence
	Overlong
	Unrelated
	Append
)

func (k Kind) String() string {
	switch k {
	case Unchanged:
		return "unchanged"
	case FirstContent:
		return "first"
	case NewSentence:
		return "new-sentence"
	case Overlong:
		return "overlong"
	case Unrelated:
		return "unrelated"
	case Append:
		return "append"
	default:
		return "unknown"
	}
}

type Decision struct {
	Kind Kind
	// Text is the caption to track and translate. Truncated for Overlong.
	Text string
	// Refresh shows Text as the original line right away.
	Refresh bool
	// TranslateNow skips the debounce.
	TranslateNow bool
	// ResetGuard clears the already-translated text so a shorter repeat is
	// not skipped.
	ResetGuard bool
}

// Decide classifies current against previous. Rules are checked in order and
// the first match wins. Lengths count characters, not bytes.
func Decide(previous, current string, maxLength int) Decision {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	curLen := utf8.RuneCountInString(current)

	switch {
	case current == previous:
		return Decision{Kind: Unchanged, Text: current}
	case previous == "":
		return Decision{
			Kind:         FirstContent,
			Text:         current,
			Refresh:      true,
			TranslateNow: curLen > maxLength,
		}
	case curLen < utf8.RuneCountInString(previous):
		return Decision{
			Kind:       NewSentence,
			Text:       current,
			Refresh:    true,
			ResetGuard: true,
		}
	case curLen > maxLength:
		return Decision{
			Kind:         Overlong,
			Text:         Truncate(current, maxLength),
			Refresh:      true,
			TranslateNow: true,
		}
	case !strings.Contains(current, previous):
		return Decision{Kind: Unrelated, Text: current, Refresh: true}
	default:
		return Decision{Kind: Append, Text: current}
	}
}
