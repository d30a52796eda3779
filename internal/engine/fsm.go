package engine

import (
	"time"

	"github.com/pubnub/pntx/internal/errs"
	"github.com/pubnub/pntx/internal/runtime/pal"
)

// Step is the FSM driver contract (spec.md §4.4): it runs a loop-and-match
// over ctx.state, advancing through as many states as need no further I/O
// before returning. It is safe to call re-entrantly from a readiness
// callback or a timer tick; two calls for the same Context never
// interleave because both take mu.
func (c *Context) Step() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.stepOnce() {
	}
}

// stepOnce advances the state machine by (at most) one state transition
// and reports whether the caller should immediately re-dispatch. Returning
// false means either: the next state needs an I/O readiness event the
// caller doesn't have yet, or this step already terminated the
// transaction.
func (c *Context) stepOnce() bool {
	switch c.state {
	case StateNull, StateIdle, StateKeepAliveIdle:
		return false

	case StateRetry:
		return c.stepRetry()

	case StateReady:
		return c.stepReady()
	case StateWaitDNSSend:
		return c.stepWaitDNSSend()
	case StateWaitDNSRcv:
		return c.stepWaitDNSRcv()
	case StateWaitConnect:
		return c.stepWaitConnect()
	case StateConnected:
		return c.stepConnected()

	case StateTXGet, StateTXScheme, StateTXHost, StateTXPortNum,
		StateTXPath, StateTXVer, StateTXProxyAuthorization, StateTXOrigin,
		StateTXFinHead:
		return c.stepRequestEmission()

	case StateRXHTTPVer, StateRXHeaders, StateRXHeaderLine:
		return c.stepResponseHeaders()
	case StateRXBody, StateRXBodyWait:
		return c.stepResponseBody()
	case StateRXChunkLen, StateRXChunkLenLine, StateRXBodyChunk, StateRXBodyChunkWait:
		return c.stepResponseChunked()

	case StateWaitClose:
		return c.stepWaitClose(false)
	case StateKeepAliveWaitClose:
		return c.stepWaitClose(true)
	case StateWaitCancel:
		return c.stepWaitCancel()
	case StateWaitCancelClose:
		return c.stepWaitCancelClose()

	case StateKeepAliveReady:
		return false

	default:
		return c.outcomeDetected(InternalError)
	}
}

func (c *Context) stepRetry() bool {
	c.proxyST.RetryAfterClose = false
	c.httpCode = 0
	c.httpBufLen = 0
	c.httpReply = c.httpReply[:0]
	c.httpContentLen = 0
	c.httpChunked = false
	c.dataCompressed = EncodingNone
	c.state = StateReady
	return true
}

// unexpectedPALResponse reports INTERNAL_ERROR, per spec.md §7
// "INTERNAL_ERROR is used when the FSM observes a PAL response impossible
// for the current state."
func (c *Context) unexpectedPALResponse(got int) bool {
	return c.outcomeDetectedWithCause(InternalError, errs.UnexpectedPALResponse(c.state.String(), got))
}

// stepReady starts resolution and registers the new handle for readiness
// notification exactly once, the way PBS_READY's single pbntf_got_socket
// call does: every later re-entry into the resolve states (WAIT_DNS_SEND,
// WAIT_DNS_RCV) polls the same handle without registering it again.
func (c *Context) stepReady() bool {
	handle, outcome := c.socket.ResolveAndConnect(c.origin)
	c.handle = handle

	var i int
	switch outcome {
	case pal.SendWouldBlock:
		i = c.socket.GotSocket(c.handle)
		c.state = StateWaitDNSSend
	case pal.Sent, pal.RcvWouldBlock:
		i = c.socket.GotSocket(c.handle)
		c.state = StateWaitDNSRcv
		c.socket.WatchInEvents(c.handle)
	case pal.ConnectWouldBlock:
		i = c.socket.GotSocket(c.handle)
		c.state = StateWaitConnect
	case pal.ConnectSuccess:
		i = c.socket.GotSocket(c.handle)
		c.state = StateConnected
	default:
		return c.outcomeDetectedWithCause(AddrResolutionFailed, errs.AddrResolutionFailed(c.origin, nil))
	}

	switch {
	case i == 0:
		return true
	case i < 0:
		return c.outcomeDetectedWithCause(ConnectFailed, errs.ConnectFailed(c.origin, nil))
	default:
		return false
	}
}

func (c *Context) stepWaitDNSSend() bool {
	switch outcome := c.socket.CheckResolvAndConnect(c.handle); outcome {
	case pal.SendWouldBlock:
		return false
	case pal.Sent, pal.RcvWouldBlock:
		c.state = StateWaitDNSRcv
		c.socket.WatchInEvents(c.handle)
		return false
	case pal.ConnectWouldBlock:
		c.socket.UpdateSocket(c.handle)
		c.state = StateWaitConnect
		return false
	case pal.ConnectSuccess:
		c.socket.UpdateSocket(c.handle)
		c.state = StateConnected
		return true
	default:
		c.socket.UpdateSocket(c.handle)
		return c.outcomeDetectedWithCause(AddrResolutionFailed, errs.AddrResolutionFailed(c.origin, nil))
	}
}

func (c *Context) stepWaitDNSRcv() bool {
	switch outcome := c.socket.CheckResolvAndConnect(c.handle); outcome {
	case pal.SendWouldBlock, pal.Sent:
		return c.unexpectedPALResponse(int(outcome))
	case pal.RcvWouldBlock:
		return false
	case pal.ConnectWouldBlock:
		c.socket.UpdateSocket(c.handle)
		c.state = StateWaitConnect
		c.socket.WatchOutEvents(c.handle)
		return false
	case pal.ConnectSuccess:
		c.socket.UpdateSocket(c.handle)
		c.state = StateConnected
		c.socket.WatchOutEvents(c.handle)
		return true
	default:
		c.socket.UpdateSocket(c.handle)
		return c.outcomeDetectedWithCause(AddrResolutionFailed, errs.AddrResolutionFailed(c.origin, nil))
	}
}

func (c *Context) stepWaitConnect() bool {
	switch outcome := c.socket.CheckConnect(c.handle); outcome {
	case pal.ConnectSuccess:
		c.state = StateConnected
		return true
	case pal.ConnectFailedResult:
		return c.outcomeDetectedWithCause(ConnectFailed, errs.ConnectFailed(c.origin, nil))
	case pal.ConnectWouldBlock, pal.SendWouldBlock, pal.RcvWouldBlock:
		c.socket.WatchOutEvents(c.handle)
		return false
	default:
		return c.unexpectedPALResponse(int(outcome))
	}
}

func (c *Context) stepConnected() bool {
	if c.keepAlive.Connected.IsZero() {
		c.keepAlive.Connected = time.Now()
	}
	c.state = StateTXGet
	return true
}
