package segment

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Truncate keeps the tail of text within maxLength characters. It prefers the
// longest trailing run of whole sentences; when even the last sentence is too
// long it cuts on the trailing word boundary instead. A single word longer
// than maxLength is the only case that is cut mid-word.
func Truncate(text string, maxLength int) string {
	text = strings.TrimSpace(text)
	if maxLength <= 0 || utf8.RuneCountInString(text) <= maxLength {
		return text
	}

	runes := []rune(text)
	for _, start := range sentenceStarts(runes) {
		candidate := strings.TrimSpace(string(runes[start:]))
		if candidate != "" && utf8.RuneCountInString(candidate) <= maxLength {
			return candidate
		}
	}
	return trailingWords(runes, maxLength)
}

// sentenceStarts returns the rune offsets where sentences begin, in ascending
// order. A sentence ends at . ! or ? followed by whitespace, or at a newline.
func sentenceStarts(runes []rune) []int {
	starts := []int{0}
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		terminal := r == '\n' ||
			((r == '.' || r == '!' || r == '?') && i+1 < len(runes) && unicode.IsSpace(runes[i+1]))
		if !terminal {
			continue
		}
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		if j < len(runes) && j != starts[len(starts)-1] {
			starts = append(starts, j)
		}
		i = j - 1
	}
	return starts
}

func trailingWords(runes []rune, maxLength int) string {
	cut := len(runes) - maxLength
	tail := runes[cut:]
	if !unicode.IsSpace(runes[cut-1]) && !unicode.IsSpace(tail[0]) {
		idx := strings.IndexFunc(string(tail), unicode.IsSpace)
		if idx >= 0 {
			tail = []rune(string(tail)[idx:])
		}
	}
	return strings.TrimSpace(string(tail))
}
