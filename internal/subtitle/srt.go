package subtitle

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"iter"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Cue is one timed SRT block.
type Cue struct {
	Index int
	Start time.Duration
	End   time.Duration
	Text  string
}

type srtState int

const (
	stateIndex srtState = iota
	stateTime
	stateText
)

var srtTimeRe = regexp.MustCompile(`(\d{2}):(\d{2}):(\d{2})[,.](\d{3})\s*-->\s*(\d{2}):(\d{2}):(\d{2})[,.](\d{3})`)

// ParseSRT reads SRT cues. Multi-line cue text is joined with single spaces
// the way a caption region concatenates its lines.
func ParseSRT(r io.Reader) ([]Cue, error) {
	var cues []Cue
	scanner := bufio.NewScanner(r)

	current := Cue{}
	state := stateIndex
	var textLines []string

	flush := func() {
		if len(textLines) > 0 {
			current.Text = JoinSegments(textLines)
			cues = append(cues, current)
		}
		current = Cue{}
		textLines = nil
	}

	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))

		switch state {
		case stateIndex:
			if line == "" {
				continue
			}
			index, err := strconv.Atoi(line)
			if err != nil {
				continue
			}
			current.Index = index
			state = stateTime

		case stateTime:
			if line == "" {
				continue
			}
			start, end, err := parseSRTTime(line)
			if err != nil {
				return nil, fmt.Errorf("cue %d: %w", current.Index, err)
			}
			current.Start = start
			current.End = end
			state = stateText

		case stateText:
			if line == "" {
				flush()
				state = stateIndex
				continue
			}
			textLines = append(textLines, line)
		}
	}
	if state == stateText {
		flush()
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read subtitles: %w", err)
	}
	return cues, nil
}

func parseSRTTime(s string) (time.Duration, time.Duration, error) {
	m := srtTimeRe.FindStringSubmatch(s)
	if len(m) != 9 {
		return 0, 0, fmt.Errorf("invalid time format: %s", s)
	}
	toDuration := func(h, min, sec, ms string) time.Duration {
		hv, _ := strconv.Atoi(h)
		mv, _ := strconv.Atoi(min)
		sv, _ := strconv.Atoi(sec)
		msv, _ := strconv.Atoi(ms)
		return time.Duration(hv)*time.Hour +
			time.Duration(mv)*time.Minute +
			time.Duration(sv)*time.Second +
			time.Duration(msv)*time.Millisecond
	}
	return toDuration(m[1], m[2], m[3], m[4]), toDuration(m[5], m[6], m[7], m[8]), nil
}

// CueSource replays cues as a live caption region would show them: each cue
// grows word by word across its duration. Speed scales playback; values <= 0
// mean real time.
type CueSource struct {
	Cues  []Cue
	Speed float64
}

func (s CueSource) Observe(ctx context.Context) iter.Seq[string] {
	speed := s.Speed
	if speed <= 0 {
		speed = 1
	}
	scale := func(d time.Duration) time.Duration {
		return time.Duration(float64(d) / speed)
	}

	return func(yield func(string) bool) {
		started := time.Now()
		for _, cue := range s.Cues {
			words := strings.Fields(cue.Text)
			if len(words) == 0 {
				continue
			}
			step := (cue.End - cue.Start) / time.Duration(len(words))
			for i := range words {
				at := scale(cue.Start + step*time.Duration(i))
				if wait := at - time.Since(started); wait > 0 && !sleep(ctx, wait) {
					return
				}
				if ctx.Err() != nil || !yield(strings.Join(words[:i+1], " ")) {
					return
				}
			}
		}
	}
}
