package pipeline

import "time"

// timerSlot holds at most one pending timer for a concern. Rescheduling or
// stopping invalidates the previous timer even if it already fired and its
// callback is queued on the loop.
type timerSlot struct {
	t   *time.Timer
	gen uint64
}

func (ts *timerSlot) stop() {
	if ts.t != nil {
		ts.t.Stop()
		ts.t = nil
	}
	ts.gen++
}

func (ts *timerSlot) active() bool {
	return ts.t != nil
}

// schedule replaces whatever is held in slot with fn after d. fn runs on the
// session loop.
func (s *Session) schedule(slot *timerSlot, d time.Duration, fn func()) {
	slot.stop()
	gen := slot.gen
	slot.t = time.AfterFunc(d, func() {
		s.post(func() {
			if slot.gen != gen {
				return
			}
			slot.t = nil
			fn()
		})
	})
}
