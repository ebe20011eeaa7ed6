// Package sim implements the discrete-event scheduler that drives the
// simulated clock shared by every csmaca component: a priority queue
// of (time, callback) tuples with FIFO tie-breaking and cancelable
// timer handles.
package sim

import (
	"container/heap"
	"fmt"
	"time"
)

// Clock is simulated time measured as a duration since the start of the
// run. Using time.Duration rather than time.Time keeps arithmetic exact
// and avoids any dependency on the wall clock, which matters for
// run-to-run determinism.
type Clock = time.Duration

// EventHandle identifies a scheduled callback so it can be canceled.
// Canceling checks the handle's generation against the event's live
// generation and no-ops if stale.
type EventHandle struct {
	id         uint64
	generation uint64
}

// Valid reports whether h was issued by Schedule (the zero EventHandle
// is not). It stays true after the event fires or is canceled; it does
// not report whether the event is still pending.
func (h EventHandle) Valid() bool { return h.id != 0 }

type event struct {
	time       Clock
	seq        uint64
	generation uint64
	id         uint64
	canceled   bool
	fn         func()
}

// eventQueue implements container/heap ordered by (time, seq) so that
// events scheduled for the same instant fire in FIFO insertion order.
type eventQueue []*event

func (q eventQueue) Len() int { return len(q) }
func (q eventQueue) Less(i, j int) bool {
	if q[i].time != q[j].time {
		return q[i].time < q[j].time
	}
	return q[i].seq < q[j].seq
}
func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *eventQueue) Push(x any)   { *q = append(*q, x.(*event)) }
func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return e
}

// Scheduler is the cooperative, single-threaded discrete-event engine.
// All state mutation in csmaca happens from inside a callback running
// on the Scheduler, so none of it needs locking.
type Scheduler struct {
	now      Clock
	queue    eventQueue
	nextSeq  uint64
	nextID   uint64
	byID     map[uint64]*event
}

// NewScheduler returns an empty scheduler with Now() == 0.
func NewScheduler() *Scheduler {
	return &Scheduler{byID: make(map[uint64]*event)}
}

// Now returns the current simulated time.
func (s *Scheduler) Now() Clock { return s.now }

// Schedule arms fn to run after delay, relative to Now(). A negative
// delay would place the event in the past, which is an invariant
// violation, so it panics.
func (s *Scheduler) Schedule(delay time.Duration, fn func()) EventHandle {
	if delay < 0 {
		panic(fmt.Sprintf("sim: refusing to schedule event %s in the past", delay))
	}
	s.nextID++
	s.nextSeq++
	e := &event{
		time:       s.now + delay,
		seq:        s.nextSeq,
		generation: 1,
		id:         s.nextID,
		fn:         fn,
	}
	s.byID[e.id] = e
	heap.Push(&s.queue, e)
	return EventHandle{id: e.id, generation: e.generation}
}

// Cancel marks the event referred to by h as canceled. Canceling a
// stale or already-fired handle is a no-op.
func (s *Scheduler) Cancel(h EventHandle) {
	e, ok := s.byID[h.id]
	if !ok || e.generation != h.generation {
		return
	}
	e.canceled = true
	delete(s.byID, h.id)
}

// Pending reports whether the scheduler has any events left to run.
func (s *Scheduler) Pending() bool { return len(s.queue) > 0 }

// NextTime returns the time of the next pending event (ignoring
// already-canceled ones) and whether one exists.
func (s *Scheduler) NextTime() (Clock, bool) {
	for len(s.queue) > 0 {
		top := s.queue[0]
		if top.canceled {
			heap.Pop(&s.queue)
			continue
		}
		return top.time, true
	}
	return 0, false
}

// Step runs exactly the next pending (non-canceled) event, advancing Now
// to its scheduled time, and reports whether an event ran.
func (s *Scheduler) Step() bool {
	for len(s.queue) > 0 {
		e := heap.Pop(&s.queue).(*event)
		if e.canceled {
			continue
		}
		delete(s.byID, e.id)
		s.now = e.time
		e.fn()
		return true
	}
	return false
}

// Run runs, in order, every pending event scheduled at or before until
// and then sets the clock to until, also when the queue empties
// earlier.
func (s *Scheduler) Run(until Clock) {
	for {
		t, ok := s.NextTime()
		if !ok || t > until {
			s.now = until
			return
		}
		s.Step()
	}
}

// RunAll drains every pending event, including ones scheduled by other
// events while running. Used by tests that want the simulation to reach
// quiescence rather than a fixed horizon.
func (s *Scheduler) RunAll() {
	for s.Step() {
	}
}
