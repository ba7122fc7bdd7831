package segment

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecide(t *testing.T) {
	long := strings.Repeat("word ", 50) // 250 chars

	tests := []struct {
		name         string
		previous     string
		current      string
		kind         Kind
		refresh      bool
		translateNow bool
		resetGuard   bool
	}{
		{
			name:     "unchanged",
			previous: "Hello there",
			current:  "Hello there",
			kind:     Unchanged,
		},
		{
			name:    "first content",
			current: "Hello",
			kind:    FirstContent,
			refresh: true,
		},
		{
			name:         "first content over the cap translates now",
			current:      long,
			kind:         FirstContent,
			refresh:      true,
			translateNow: true,
		},
		{
			name:       "shorter text is a new sentence",
			previous:   "Hello there my friend",
			current:    "Hi",
			kind:       NewSentence,
			refresh:    true,
			resetGuard: true,
		},
		{
			name:         "overlong growth",
			previous:     "word word",
			current:      long,
			kind:         Overlong,
			refresh:      true,
			translateNow: true,
		},
		{
			name:     "unrelated content",
			previous: "The weather",
			current:  "Breaking news now",
			kind:     Unrelated,
			refresh:  true,
		},
		{
			name:     "append does not refresh",
			previous: "The weather",
			current:  "The weather today",
			kind:     Append,
		},
		{
			name:     "previous in the middle still counts as append",
			previous: "weather",
			current:  "The weather today",
			kind:     Append,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.previous, tt.current, DefaultMaxLength)
			assert.Equal(t, tt.kind, got.Kind)
			assert.Equal(t, tt.refresh, got.Refresh, "refresh")
			assert.Equal(t, tt.translateNow, got.TranslateNow, "translateNow")
			assert.Equal(t, tt.resetGuard, got.ResetGuard, "resetGuard")
		})
	}
}

func TestDecide_OverlongTruncatesOnWordBoundary(t *testing.T) {
	var b strings.Builder
	for i := 0; b.Len() < 300; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString("caption")
		b.WriteString(strings.Repeat("x", i%5))
	}
	current := b.String()[:300]
	current = strings.TrimRight(current, " ")

	got := Decide("caption", current, DefaultMaxLength)
	require.Equal(t, Overlong, got.Kind)
	assert.True(t, got.TranslateNow)
	assert.LessOrEqual(t, utf8.RuneCountInString(got.Text), DefaultMaxLength)
	assert.True(t, strings.HasSuffix(current, got.Text))

	cut := len(current) - len(got.Text)
	assert.Equal(t, byte(' '), current[cut-1], "text must start at a word boundary")
}

func TestDecide_CountsCharactersNotBytes(t *testing.T) {
	previous := strings.Repeat("字", 150)
	current := previous + strings.Repeat("字", 40) // 190 chars, 570 bytes

	got := Decide(previous, current, DefaultMaxLength)
	assert.Equal(t, Append, got.Kind)
}

func TestTruncate_PrefersSentences(t *testing.T) {
	first := strings.Repeat("a", 120) + "."
	second := "Second sentence here!"
	third := "And the third one?"
	text := first + " " + second + " " + third

	got := Truncate(text, 60)
	assert.Equal(t, second+" "+third, got)
}

func TestTruncate_NewlineIsBoundary(t *testing.T) {
	text := strings.Repeat("b", 80) + "\nshort tail line"

	assert.Equal(t, "short tail line", Truncate(text, 40))
}

func TestTruncate_LastSentenceTooLongFallsBackToWords(t *testing.T) {
	last := strings.TrimSpace(strings.Repeat("lorem ipsum ", 30))
	text := "Intro. " + last

	got := Truncate(text, 50)
	assert.LessOrEqual(t, utf8.RuneCountInString(got), 50)
	assert.True(t, strings.HasSuffix(text, got))
	assert.True(t, strings.HasPrefix(got, "lorem") || strings.HasPrefix(got, "ipsum"))
}

func TestTruncate_ShortTextUntouched(t *testing.T) {
	assert.Equal(t, "hello there", Truncate("  hello there ", 200))
}

func TestTruncate_SingleHugeWord(t *testing.T) {
	text := strings.Repeat("z", 300)

	got := Truncate(text, 200)
	assert.Equal(t, 200, utf8.RuneCountInString(got))
}

func TestSentenceStarts_DecimalIsNotSentenceEnd(t *testing.T) {
	runes := []rune("Costs 3.50 dollars. Next one!  Last")

	assert.Equal(t, []int{0, 20, 31}, sentenceStarts(runes))
}
