// Package timeline schedules delayed callbacks for a single session and
// cancels all of them at teardown.
//
// Callbacks run one at a time in (due time, scheduling order). A Timeline
// keeps a single clock timer armed for its earliest entry and drains every
// due entry serially when it fires, so two callbacks due at the same instant
// never race.
package timeline

import (
	"container/heap"
	"sync"
	"time"
)

// Handle identifies a scheduled callback.
type Handle struct {
	id uint64
}

// Valid reports whether the handle refers to a scheduled entry.
func (h Handle) Valid() bool { return h.id != 0 }

// Timeline owns every callback scheduled for one session.
type Timeline struct {
	clock Clock

	// runMu serializes drains; mu guards the queue and is never held while a
	// callback runs.
	runMu sync.Mutex
	mu    sync.Mutex
	items entryHeap
	index map[uint64]*entry
	seq   uint64
	timer Timer
	armed time.Time

	closed bool
}

// New returns a Timeline driven by clock (the wall clock when nil).
func New(clock Clock) *Timeline {
	if clock == nil {
		clock = System()
	}
	return &Timeline{
		clock: clock,
		index: map[uint64]*entry{},
	}
}

// Now reads the timeline's clock.
func (t *Timeline) Now() time.Time {
	return t.clock.Now()
}

// After schedules fn to run d from now.
func (t *Timeline) After(d time.Duration, fn func()) Handle {
	return t.At(t.clock.Now().Add(d), fn)
}

// At schedules fn for an absolute instant. Instants in the past run on the
// next drain.
func (t *Timeline) At(due time.Time, fn func()) Handle {
	if fn == nil {
		return Handle{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return Handle{}
	}
	t.seq++
	e := &entry{id: t.seq, due: due, fn: fn}
	heap.Push(&t.items, e)
	t.index[e.id] = e
	if t.items[0] == e {
		t.armLocked()
	}
	return Handle{id: e.id}
}

// Cancel removes a pending callback. It reports false when the callback has
// already run, was cancelled, or the timeline is closed.
func (t *Timeline) Cancel(h Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.index[h.id]
	if !ok {
		return false
	}
	heap.Remove(&t.items, e.pos)
	delete(t.index, h.id)
	return true
}

// Pending reports the number of callbacks waiting to run.
func (t *Timeline) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}

// Close cancels every pending callback and rejects new ones. A callback that
// is already running is allowed to finish.
func (t *Timeline) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.items = nil
	t.index = map[uint64]*entry{}
}

// Closed reports whether Close has been called.
func (t *Timeline) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *Timeline) armLocked() {
	if len(t.items) == 0 {
		return
	}
	due := t.items[0].due
	if t.timer != nil {
		if due.Equal(t.armed) {
			return
		}
		t.timer.Stop()
	}
	t.armed = due
	t.timer = t.clock.AfterFunc(due.Sub(t.clock.Now()), t.drain)
}

func (t *Timeline) drain() {
	t.runMu.Lock()
	defer t.runMu.Unlock()
	for {
		t.mu.Lock()
		if t.closed || len(t.items) == 0 {
			if t.timer != nil {
				t.timer.Stop()
				t.timer = nil
			}
			t.mu.Unlock()
			return
		}
		next := t.items[0]
		if next.due.After(t.clock.Now()) {
			t.armLocked()
			t.mu.Unlock()
			return
		}
		heap.Pop(&t.items)
		delete(t.index, next.id)
		t.mu.Unlock()
		next.fn()
	}
}

type entry struct {
	id  uint64
	due time.Time
	fn  func()
	pos int
}

type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if !h[i].due.Equal(h[j].due) {
		return h[i].due.Before(h[j].due)
	}
	return h[i].id < h[j].id
}

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].pos = i
	h[j].pos = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.pos = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	e.pos = -1
	return e
}
