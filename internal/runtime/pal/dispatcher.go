package pal

import (
	"sync"
	"time"

	"github.com/pubnub/pntx/internal/result"
	"github.com/pubnub/pntx/internal/runtime/concurrency"
)

// QueueNotifier is the production pal.Notifier: readiness callbacks arriving
// on several NetSocket goroutines at once (one per in-flight connect/send/
// read) push the Context back onto a bounded lock-free ring buffer, and a
// single dispatcher goroutine drains it and calls Step. This is exactly the
// many-producers/one-consumer shape the teacher's own
// internal/runtime/concurrency.MPMCQueue (Vyukov's algorithm) exists for; the
// teacher never wires that queue into a consumer itself, so this is the
// first concrete use of it rather than an adaptation of existing wiring.
type QueueNotifier struct {
	q        *concurrency.MPMCQueue[Runnable]
	outcomes chan Outcome

	stop    chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup
}

// Outcome is one terminal transaction result published through TransOutcome.
type Outcome struct {
	Result        result.Result
	TerminalState string
}

// NewQueueNotifier starts a dispatcher goroutine draining a ring buffer of
// the given capacity (rounded up to a power of two by MPMCQueue) and
// publishing terminal outcomes on a channel of the given buffer size.
func NewQueueNotifier(queueCapacity uint64, outcomeBuffer int) *QueueNotifier {
	n := &QueueNotifier{
		q:        concurrency.NewMPMCQueue[Runnable](queueCapacity),
		outcomes: make(chan Outcome, outcomeBuffer),
		stop:     make(chan struct{}),
	}
	n.wg.Add(1)
	go n.dispatch()
	return n
}

// dispatch drains the ring buffer with the same adaptive-backoff idiom as
// the teacher's goPoller.watch: start at a short poll interval and back off
// under sustained idleness rather than busy-spinning or adding a second
// synchronization primitive just to get a wake signal.
func (n *QueueNotifier) dispatch() {
	defer n.wg.Done()
	var r Runnable
	interval := time.Millisecond
	const maxInterval = 20 * time.Millisecond
	for {
		select {
		case <-n.stop:
			return
		default:
		}
		if n.q.Dequeue(&r) {
			r.RunStep()
			interval = time.Millisecond
			continue
		}
		select {
		case <-n.stop:
			return
		case <-time.After(interval):
		}
		if interval < maxInterval {
			interval *= 2
			if interval > maxInterval {
				interval = maxInterval
			}
		}
	}
}

// EnqueueForProcessing pushes r for the dispatcher goroutine to run. It
// never runs r inline, unlike pal.FakeNotifier's synchronous contract, so it
// always returns +1 (pending) on success or -1 if the ring buffer is full.
func (n *QueueNotifier) EnqueueForProcessing(r Runnable) int {
	if n.q.Enqueue(r) {
		return 1
	}
	return -1
}

// RequeueForProcessing is used by stop() paths that cannot tolerate losing
// the teardown step; it retries the bounded push rather than reporting
// failure, since there is no caller left to retry on its behalf.
func (n *QueueNotifier) RequeueForProcessing(r Runnable) {
	for !n.q.Enqueue(r) {
	}
}

// TransOutcome publishes a transaction's terminal result. The send is
// non-blocking: a full outcomes channel means the consumer has fallen
// behind, and dropping here rather than blocking keeps the dispatcher
// goroutine free to keep draining other contexts' Steps.
func (n *QueueNotifier) TransOutcome(res result.Result, terminalState string) {
	select {
	case n.outcomes <- Outcome{Result: res, TerminalState: terminalState}:
	default:
	}
}

// Outcomes returns the channel terminal outcomes are published on.
func (n *QueueNotifier) Outcomes() <-chan Outcome { return n.outcomes }

// Close stops the dispatcher goroutine and waits for it to exit.
func (n *QueueNotifier) Close() {
	n.stopped.Do(func() { close(n.stop) })
	n.wg.Wait()
}
