package subtitle

import (
	"context"
	"iter"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinSegments(t *testing.T) {
	assert.Equal(t, "Hello there friend", JoinSegments([]string{" Hello ", "", "there", "  ", "friend\n"}))
	assert.Equal(t, "", JoinSegments(nil))
}

func TestScripted_Observe(t *testing.T) {
	src := Scripted{Snapshots: []string{"a", "a b", "c"}}

	got := slices.Collect(src.Observe(context.Background()))
	assert.Equal(t, []string{"a", "a b", "c"}, got)

	// restartable
	assert.Equal(t, got, slices.Collect(src.Observe(context.Background())))
}

func TestScripted_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := Scripted{Snapshots: []string{"a", "b", "c"}, Interval: time.Hour}

	var got []string
	for snap := range src.Observe(ctx) {
		got = append(got, snap)
		cancel()
	}
	assert.Equal(t, []string{"a"}, got)
}

func TestLineSource_JoinsTabSegments(t *testing.T) {
	src := NewLineSource(strings.NewReader("first line\nsecond\t part \n\n"))

	got := slices.Collect(src.Observe(context.Background()))
	assert.Equal(t, []string{"first line", "second part", ""}, got)
}

func TestFeed_KeepsNewestUnread(t *testing.T) {
	f := NewFeed()
	require.True(t, f.Push("one"))
	require.True(t, f.Push("two"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	next, stop := iter.Pull(f.Observe(ctx))
	defer stop()
	got, ok := next()
	require.True(t, ok)
	assert.Equal(t, "two", got)

	f.Close()
	assert.False(t, f.Push("three"))
	_, ok = next()
	assert.False(t, ok)
}
