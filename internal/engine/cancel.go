package engine

import (
	"github.com/pubnub/pntx/internal/engine/parser"
	"github.com/pubnub/pntx/internal/runtime/timer"
)

// Cancel implements spec.md §4.4 "Cancellation": stop(ctx, outcome). It is
// the user-initiated cancel path and the path the timer-expiry handler
// drives with Timeout.
func (c *Context) Cancel(outcome Result) {
	c.mu.Lock()
	c.lastResult = outcome

	switch c.state {
	case StateWaitCancel, StateWaitCancelClose:
		c.mu.Unlock()
		return
	case StateNull:
		c.logger.Warn("stop called on a context with no socket", "result", outcome.String())
		c.mu.Unlock()
		return
	case StateIdle:
		c.trans = parser.NoTransaction
		c.mu.Unlock()
		c.notifier.TransOutcome(outcome, "IDLE")
		return
	case StateKeepAliveIdle:
		c.trans = parser.NoTransaction
		fallthrough
	default:
		c.state = StateWaitCancel
		c.mu.Unlock()
		c.notifier.RequeueForProcessing(c)
	}
}

func (c *Context) stepWaitCancel() bool {
	if c.socket.Close(c.handle) > 0 {
		c.state = StateWaitCancelClose
		return false
	}
	c.socket.Forget(c.handle)
	c.state = StateIdle
	c.notifier.TransOutcome(c.lastResult, "IDLE")
	return false
}

func (c *Context) stepWaitCancelClose() bool {
	if !c.socket.Closed(c.handle) {
		return false
	}
	c.socket.Forget(c.handle)
	c.state = StateIdle
	c.notifier.TransOutcome(c.lastResult, "IDLE")
	return false
}

// CancelEntry adapts Context.Cancel to timer.HandleExpired's stop
// callback, which deals only in timer.Entry (spec.md §4.2).
func CancelEntry(outcome Result) func(timer.Entry) {
	return func(e timer.Entry) {
		if ctx, ok := e.(*Context); ok {
			ctx.Cancel(outcome)
		}
	}
}
