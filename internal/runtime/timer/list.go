// Package timer implements the engine's timer list: a doubly-linked,
// delta-ordered sequence of pending transactions, aged in O(k) for k expired
// entries rather than O(n) in the list length.
//
// The list does not know what a transaction context is; it manages anything
// implementing Entry. internal/engine's Context implements Entry so the
// timer list and the FSM stay decoupled, matching the source's description
// of timer linkage as "weak references" owned by whoever holds the list
// head (spec.md §3).
package timer

import (
	"errors"
	"sync"
	"time"
)

// Entry is anything that can be tracked on a timer list. Implementations
// embed a State and return a pointer to it.
type Entry interface {
	TimerState() *State
}

// State is the mutable timer linkage embedded in an Entry. deltaMS is the
// remaining time relative to the predecessor (the head's delta is the
// absolute remainder), per spec.md §3/§4.1.
type State struct {
	prev, next Entry
	deltaMS    int64
	linked     bool
}

// Linked reports whether the owning Entry is currently on a list.
func (s *State) Linked() bool { return s.linked }

// List is a single shared, mutex-guarded timer list. Spec.md §5 calls for
// exactly one lock held only for insert/remove/age; State.prev/next readers
// outside that lock would race, so every accessor takes the List's lock.
type List struct {
	mu   sync.Mutex
	head Entry
}

// New returns an empty timer list.
func New() *List { return &List{} }

// Insert places e onto the list so that its total remaining time equals ms,
// preserving the invariant that the sum of deltas from head to any node
// equals that node's real remaining time (spec.md §4.1).
func (l *List) Insert(e Entry, ms int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.insertLocked(e, ms)
}

func (l *List) insertLocked(e Entry, ms int64) {
	st := e.TimerState()
	if st.linked {
		l.removeLocked(e)
	}

	if l.head == nil {
		st.prev, st.next = nil, nil
		st.deltaMS = ms
		st.linked = true
		l.head = e
		return
	}

	var prev Entry
	cur := l.head
	remaining := ms
	for cur != nil {
		curSt := cur.TimerState()
		if remaining < curSt.deltaMS {
			break
		}
		remaining -= curSt.deltaMS
		prev = cur
		cur = curSt.next
	}

	st.deltaMS = remaining
	st.prev = prev
	st.next = cur
	st.linked = true

	if cur != nil {
		cur.TimerState().deltaMS -= remaining
		cur.TimerState().prev = e
	}
	if prev != nil {
		prev.TimerState().next = e
	} else {
		l.head = e
	}
}

// Remove unlinks e, folding its delta into its successor so later nodes'
// absolute deadlines are unaffected (spec.md §4.1).
func (l *List) Remove(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.removeLocked(e)
}

func (l *List) removeLocked(e Entry) {
	st := e.TimerState()
	if !st.linked {
		return
	}
	if st.next != nil {
		st.next.TimerState().deltaMS += st.deltaMS
		st.next.TimerState().prev = st.prev
	}
	if st.prev != nil {
		st.prev.TimerState().next = st.next
	} else {
		l.head = st.next
	}
	st.prev, st.next = nil, nil
	st.deltaMS = 0
	st.linked = false
}

// RemoveSafe removes e only if it is actually linked (idempotent), per
// spec.md §4.1. After RemoveSafe, e.TimerState()'s prev/next are nil.
func (l *List) RemoveSafe(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := e.TimerState()
	if !st.linked {
		return
	}
	l.removeLocked(e)
}

// Age subtracts delta (milliseconds) from the head, detaching and returning,
// in order, every entry whose accumulated deadline has reached zero or
// below. The remaining list keeps every invariant: deltas still sum to each
// node's true remaining time, and every surviving node has strictly
// positive remaining time.
func (l *List) Age(deltaMS int64) []Entry {
	if deltaMS <= 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	var expired []Entry
	remaining := deltaMS
	for l.head != nil {
		st := l.head.TimerState()
		if st.deltaMS > remaining {
			st.deltaMS -= remaining
			break
		}
		remaining -= st.deltaMS
		e := l.head
		next := st.next
		st.prev, st.next = nil, nil
		st.deltaMS = 0
		st.linked = false
		l.head = next
		if next != nil {
			next.TimerState().prev = nil
		}
		expired = append(expired, e)
	}
	return expired
}

// Len walks the list under lock; intended for tests and diagnostics, not
// the hot path.
func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for cur := l.head; cur != nil; cur = cur.TimerState().next {
		n++
	}
	return n
}

// ErrInvalidTick is returned by HandleExpired when delta is not positive.
var ErrInvalidTick = errors.New("timer: tick delta must be positive")

// HandleExpired implements spec.md §4.2: age the list by delta, and for
// each expired entry, invoke stop under no list lock (Age has already
// released it) so stop is free to re-enqueue the entry for further
// processing without risking a re-entrant lock on the list.
func HandleExpired(delta time.Duration, l *List, stop func(Entry)) error {
	if delta <= 0 {
		return ErrInvalidTick
	}
	if l == nil {
		return errors.New("timer: nil list")
	}
	expired := l.Age(delta.Milliseconds())
	for _, e := range expired {
		stop(e)
	}
	return nil
}
