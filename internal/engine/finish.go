package engine

import (
	"github.com/pubnub/pntx/internal/codec/gzipbody"
	"github.com/pubnub/pntx/internal/errs"
	"github.com/pubnub/pntx/internal/proxy"
)

// finish implements the 5-step Finalization sequence (spec.md §4.4
// "Finalization"). It returns true when Step should keep going in the same
// call: after a successful CONNECT the GET flow is replayed at once from
// StateConnected over the tunneled socket, and a close that completes
// immediately with a retry armed moves on to StateRetry. It returns false
// once an outcome has been published or a close is still pending.
func (c *Context) finish() bool {
	if c.proxyST.Active() {
		switch c.proxyST.HandleFinish(c.httpCode) {
		case proxy.Error:
			return c.outcomeDetectedWithCause(HTTPError, errs.ProxyTunnelFailed(c.httpCode))
		case proxy.Retry:
			// retryAfterClose is armed only when the connection must close
			// before the replay: the GET then runs on a fresh connection once
			// the close completes. When the connection stays open the GET is
			// replayed in place with the flag clear, so the close that follows
			// the tunneled reply publishes that reply's outcome.
			if c.keepAlive.ShouldClose {
				c.proxyST.RetryAfterClose = true
				return c.closeConnection()
			}
			c.resetForRetryInsideTunnel()
			return true
		case proxy.Passthrough:
			// fall through to gzip/parse/outcome below
		}
	}

	if c.dataCompressed == EncodingGzip {
		decoded, err := gzipbody.Decompress(c.httpReply)
		if err != nil {
			return c.outcomeDetectedWithCause(IOError, errs.GzipError(err))
		}
		c.httpReply = decoded
	}

	res := c.parsers.Parse(c.trans, c.httpReply)
	if res == OK && c.httpCode/100 != 2 {
		res = HTTPError
	}

	return c.outcomeDetected(res)
}

// resetForRetryInsideTunnel implements the CONNECT-tunnel branch of
// Finalization step 1: the 2xx CONNECT response is discarded and the full
// GET flow is replayed over the same, now-tunneled socket (spec.md §4.4,
// S6). Resetting http_content_len/http_chunked here (not just http_code)
// is the behavior S6 pins down for the "pre/post-tunnel saved path" Open
// Question (spec.md §9).
func (c *Context) resetForRetryInsideTunnel() {
	c.httpCode = 0
	c.httpBufLen = 0
	c.httpReply = c.httpReply[:0]
	c.httpContentLen = 0
	c.httpChunked = false
	c.dataCompressed = EncodingNone
	c.state = StateConnected
}
