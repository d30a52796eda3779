package engine

import "github.com/pubnub/pntx/internal/errs"

// outcomeDetectedWithCause is outcomeDetected plus a diagnostic cause
// attached for logs and the diagnostics CLI — see Context.lastErr.
func (c *Context) outcomeDetectedWithCause(res Result, cause *errs.StandardError) bool {
	c.lastErr = cause
	c.logger.Warn(cause.Error(), "category", string(cause.Category), "code", cause.Code)
	return c.outcomeDetected(res)
}

// outcomeDetected implements spec.md §4.4 "Outcome and close": it records
// the transaction's single terminal Result and decides, via
// shouldKeepAlive, whether the connection is retained or torn down. It
// reports whether the caller should re-dispatch immediately.
func (c *Context) outcomeDetected(res Result) bool {
	c.lastResult = res

	if c.shouldKeepAlive(res) {
		c.socket.LostSocket(c.handle)
		c.keepAlive.Count++
		c.proxyST.RetryAfterClose = false
		c.state = StateKeepAliveIdle
		c.notifier.TransOutcome(res, "KEEP_ALIVE_IDLE")
		return false
	}
	return c.closeConnection()
}

// shouldKeepAlive implements spec.md §4.4's should_keep_alive predicate:
// enabled, no close flag, under the request-count ceiling, under the
// connection-age ceiling, and res is not in the forces-close set.
func (c *Context) shouldKeepAlive(res Result) bool {
	ka := &c.keepAlive
	if !ka.Enabled || ka.ShouldClose {
		return false
	}
	if ka.Max > 0 && ka.Count+1 >= ka.Max {
		return false
	}
	if ka.expired() {
		return false
	}
	return !forcesClose(res)
}

// closeConnection asks the PAL to close the socket (spec.md §4.4): an
// immediate close either retries (if a proxy retry is pending) or
// publishes the outcome with terminal state IDLE; a pending close
// transitions to WAIT_CLOSE / KEEP_ALIVE_WAIT_CLOSE to be resumed by a
// later readiness event.
func (c *Context) closeConnection() bool {
	if c.socket.Close(c.handle) > 0 {
		if c.proxyST.RetryAfterClose {
			c.state = StateKeepAliveWaitClose
		} else {
			c.state = StateWaitClose
		}
		return false
	}
	return c.finishClose(false)
}

func (c *Context) finishClose(keepAliveVariant bool) bool {
	if c.proxyST.RetryAfterClose {
		c.proxyST.RetryAfterClose = false
		c.state = StateRetry
		return true
	}
	c.socket.Forget(c.handle)
	if keepAliveVariant {
		c.state = StateReady
		return false
	}
	c.state = StateIdle
	c.notifier.TransOutcome(c.lastResult, "IDLE")
	return false
}

// stepWaitClose polls pal.Closed for either teardown variant (spec.md
// §4.4 "WAIT_CLOSE ... KEEP_ALIVE_WAIT_CLOSE is analogous").
func (c *Context) stepWaitClose(keepAliveVariant bool) bool {
	if !c.socket.Closed(c.handle) {
		return false
	}
	return c.finishClose(keepAliveVariant)
}
