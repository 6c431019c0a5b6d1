package timeline

import "time"

// Pace is the rhythm of a reveal: how long a speaker is shown composing, and
// the gap before the next speaker starts.
type Pace struct {
	Typing time.Duration
	Pause  time.Duration
}

// Stage receives the two halves of each reveal step.
type Stage[T any] struct {
	// Composing marks item's speaker as typing.
	Composing func(item T)
	// Deliver clears the composing mark and appends item.
	Deliver func(item T)
}

// Reveal schedules queue onto tl starting startAt from now. Each item is
// shown composing, delivered pace.Typing later, then followed by pace.Pause.
// onComplete, when non-nil, runs at the cursor after the last pause. The
// returned duration is that completion offset.
func Reveal[T any](tl *Timeline, pace Pace, queue []T, startAt time.Duration, stage Stage[T], onComplete func()) time.Duration {
	base := tl.Now()
	cursor := startAt
	for _, item := range queue {
		item := item
		if stage.Composing != nil {
			tl.At(base.Add(cursor), func() { stage.Composing(item) })
		}
		cursor += pace.Typing
		if stage.Deliver != nil {
			tl.At(base.Add(cursor), func() { stage.Deliver(item) })
		}
		cursor += pace.Pause
	}
	if onComplete != nil {
		tl.At(base.Add(cursor), onComplete)
	}
	return cursor
}
