package pal

import (
	"sync"
	"testing"
	"time"

	"github.com/pubnub/pntx/internal/result"
)

type countingRunnable struct {
	mu   sync.Mutex
	runs int
}

func (r *countingRunnable) RunStep() {
	r.mu.Lock()
	r.runs++
	r.mu.Unlock()
}

func (r *countingRunnable) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs
}

func TestQueueNotifierDrainsFromMultipleProducers(t *testing.T) {
	n := NewQueueNotifier(16, 1)
	defer n.Close()

	r := &countingRunnable{}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n.EnqueueForProcessing(r)
		}()
	}
	wg.Wait()

	deadline := time.Now().Add(time.Second)
	for r.count() < 8 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := r.count(); got != 8 {
		t.Fatalf("RunStep count = %d, want 8", got)
	}
}

func TestQueueNotifierPublishesOutcome(t *testing.T) {
	n := NewQueueNotifier(4, 1)
	defer n.Close()

	n.TransOutcome(result.OK, "IDLE")

	select {
	case o := <-n.Outcomes():
		if o.Result != result.OK || o.TerminalState != "IDLE" {
			t.Fatalf("Outcome = %+v, want {OK IDLE}", o)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for outcome")
	}
}

func TestQueueNotifierOutcomeDropsWhenConsumerIsSlow(t *testing.T) {
	n := NewQueueNotifier(4, 1)
	defer n.Close()

	n.TransOutcome(result.OK, "IDLE")
	n.TransOutcome(result.Timeout, "KEEP_ALIVE_IDLE")

	o := <-n.Outcomes()
	if o.Result != result.OK {
		t.Fatalf("first Outcome = %+v, want OK (second publish dropped, channel full)", o)
	}
}
