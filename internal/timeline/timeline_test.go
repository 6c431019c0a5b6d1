package timeline

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

func TestTimelineRunsInDueOrder(t *testing.T) {
	clock := NewManual(epoch)
	tl := New(clock)
	var got []string
	tl.After(300*time.Millisecond, func() { got = append(got, "c") })
	tl.After(100*time.Millisecond, func() { got = append(got, "a") })
	tl.After(200*time.Millisecond, func() { got = append(got, "b") })

	clock.Advance(150 * time.Millisecond)
	assert.Equal(t, []string{"a"}, got)

	clock.Advance(time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Zero(t, tl.Pending())
}

func TestTimelineBreaksTiesBySchedulingOrder(t *testing.T) {
	clock := NewManual(epoch)
	tl := New(clock)
	var got []int
	for i := 0; i < 5; i++ {
		i := i
		tl.After(500*time.Millisecond, func() { got = append(got, i) })
	}
	clock.Advance(500 * time.Millisecond)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestTimelineRunsCallbacksScheduledByCallbacks(t *testing.T) {
	clock := NewManual(epoch)
	tl := New(clock)
	var got []string
	tl.After(100*time.Millisecond, func() {
		got = append(got, "first")
		tl.After(0, func() { got = append(got, "immediate") })
		tl.After(100*time.Millisecond, func() { got = append(got, "chained") })
	})
	clock.Advance(150 * time.Millisecond)
	assert.Equal(t, []string{"first", "immediate"}, got)
	clock.Advance(100 * time.Millisecond)
	assert.Equal(t, []string{"first", "immediate", "chained"}, got)
}

func TestTimelineCancel(t *testing.T) {
	clock := NewManual(epoch)
	tl := New(clock)
	ran := false
	h := tl.After(time.Second, func() { ran = true })
	require.True(t, h.Valid())
	assert.True(t, tl.Cancel(h))
	assert.False(t, tl.Cancel(h))
	clock.Advance(2 * time.Second)
	assert.False(t, ran)
}

func TestTimelineCloseCancelsEverything(t *testing.T) {
	clock := NewManual(epoch)
	tl := New(clock)
	count := 0
	for i := 1; i <= 10; i++ {
		tl.After(time.Duration(i)*100*time.Millisecond, func() { count++ })
	}
	clock.Advance(250 * time.Millisecond)
	require.Equal(t, 2, count)

	tl.Close()
	assert.True(t, tl.Closed())
	assert.Zero(t, tl.Pending())
	clock.Advance(5 * time.Second)
	assert.Equal(t, 2, count)

	h := tl.After(time.Millisecond, func() { count++ })
	assert.False(t, h.Valid())
	clock.Advance(time.Second)
	assert.Equal(t, 2, count)
}

func TestTimelineCloseFromCallbackStopsDrain(t *testing.T) {
	clock := NewManual(epoch)
	tl := New(clock)
	var got []string
	tl.After(100*time.Millisecond, func() {
		got = append(got, "closer")
		tl.Close()
	})
	tl.After(100*time.Millisecond, func() { got = append(got, "after-close") })
	clock.Advance(time.Second)
	assert.Equal(t, []string{"closer"}, got)
}

func TestTimelineWithSystemClock(t *testing.T) {
	tl := New(nil)
	defer tl.Close()
	var (
		mu  sync.Mutex
		got []int
	)
	done := make(chan struct{})
	tl.After(20*time.Millisecond, func() {
		mu.Lock()
		got = append(got, 2)
		mu.Unlock()
		close(done)
	})
	tl.After(5*time.Millisecond, func() {
		mu.Lock()
		got = append(got, 1)
		mu.Unlock()
	})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeline never fired")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2}, got)
}

func TestRevealSchedulesComposingThenDeliver(t *testing.T) {
	clock := NewManual(epoch)
	tl := New(clock)
	var events []string
	stage := Stage[string]{
		Composing: func(s string) { events = append(events, "typing:"+s) },
		Deliver:   func(s string) { events = append(events, "append:"+s) },
	}
	pace := Pace{Typing: 1400 * time.Millisecond, Pause: 700 * time.Millisecond}
	completed := false
	end := Reveal(tl, pace, []string{"alice", "bob"}, 800*time.Millisecond, stage, func() { completed = true })
	assert.Equal(t, 800*time.Millisecond+2*(2100*time.Millisecond), end)

	clock.Advance(799 * time.Millisecond)
	assert.Empty(t, events)

	clock.Advance(time.Millisecond)
	assert.Equal(t, []string{"typing:alice"}, events)

	clock.Advance(1400 * time.Millisecond)
	assert.Equal(t, []string{"typing:alice", "append:alice"}, events)

	clock.Advance(700 * time.Millisecond)
	assert.Equal(t, []string{"typing:alice", "append:alice", "typing:bob"}, events)
	assert.False(t, completed)

	clock.Advance(2100 * time.Millisecond)
	assert.Equal(t, []string{"typing:alice", "append:alice", "typing:bob", "append:bob"}, events)
	assert.True(t, completed)
}

func TestRevealEmptyQueueCompletesAtStart(t *testing.T) {
	clock := NewManual(epoch)
	tl := New(clock)
	completed := false
	end := Reveal(tl, Pace{Typing: time.Second}, []int(nil), 400*time.Millisecond, Stage[int]{}, func() { completed = true })
	assert.Equal(t, 400*time.Millisecond, end)
	clock.Advance(400 * time.Millisecond)
	assert.True(t, completed)
}

func TestManualClockDoesNotFireOnRegistration(t *testing.T) {
	clock := NewManual(epoch)
	fired := false
	clock.AfterFunc(0, func() { fired = true })
	assert.False(t, fired)
	assert.Equal(t, 1, clock.Pending())
	clock.Advance(0)
	assert.True(t, fired)
	assert.Equal(t, epoch, clock.Now())
}
