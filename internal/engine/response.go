package engine

import (
	"strconv"
	"strings"

	"github.com/pubnub/pntx/internal/errs"
	"github.com/pubnub/pntx/internal/proxy"
	"github.com/pubnub/pntx/internal/runtime/pal"
)

// chunkTrailLength is CHUNK_TRAIL_LENGTH (spec.md §6 Constants): the
// trailing CRLF counted into content_length while decoding a chunk.
const chunkTrailLength = 2

// maxReplySize bounds growReply; exceeding it maps to ReplyTooBig
// (spec.md §7 "Buffer-growth failures map to REPLY_TOO_BIG").
const maxReplySize = 64 << 20

// pollLine starts (if not already started) a line read and reports its
// current status, clearing the in-progress flag once the line either
// completes or errors.
func (c *Context) pollLine() pal.LineResult {
	if !c.lineStarted {
		c.socket.StartReadLine(c.handle)
		c.lineStarted = true
	}
	status := c.socket.LineReadStatus(c.handle)
	if status != pal.LineInProgress {
		c.lineStarted = false
	}
	return status
}

func (c *Context) growReply(n int) bool {
	if n < 0 || n > maxReplySize {
		return false
	}
	if cap(c.httpReply) < n {
		grown := make([]byte, len(c.httpReply), n)
		copy(grown, c.httpReply)
		c.httpReply = grown
	}
	return true
}

func (c *Context) stepResponseHeaders() bool {
	switch c.state {
	case StateRXHTTPVer:
		status := c.pollLine()
		switch status {
		case pal.LineInProgress:
			return false
		case pal.LineOK:
			return c.handleStatusLine(string(c.socket.LineBytes(c.handle)))
		default:
			return c.outcomeDetected(IOError)
		}

	default: // StateRXHeaders, StateRXHeaderLine
		status := c.pollLine()
		switch status {
		case pal.LineInProgress:
			return false
		case pal.LineTooLong:
			// Known limitation (spec.md §9 Open Question): an over-long
			// header is silently skipped, which can hide Content-Length.
			c.logger.Warn("skipping header line exceeding buffer capacity", "bufMax", c.bufMax)
			c.state = StateRXHeaderLine
			return true
		case pal.LineOK:
			return c.handleHeaderLine(string(c.socket.LineBytes(c.handle)))
		default:
			return c.outcomeDetected(IOError)
		}
	}
}

func (c *Context) handleStatusLine(line string) bool {
	if len(line) < len("HTTP/1.x ddd") || !strings.HasPrefix(line, "HTTP/1.") {
		return c.outcomeDetectedWithCause(IOError, errs.MalformedStatusLine(line))
	}
	sp := strings.IndexByte(line, ' ')
	if sp < 0 || sp+4 > len(line) {
		return c.outcomeDetectedWithCause(IOError, errs.MalformedStatusLine(line))
	}
	code, err := strconv.Atoi(line[sp+1 : sp+4])
	if err != nil {
		return c.outcomeDetectedWithCause(IOError, errs.MalformedStatusLine(line))
	}
	c.httpCode = code
	c.httpContentLen = 0
	c.httpChunked = false
	c.state = StateRXHeaders
	return true
}

func (c *Context) handleHeaderLine(line string) bool {
	if line == "" {
		switch {
		case c.httpChunked:
			c.state = StateRXChunkLen
			return true
		case c.httpContentLen == 0 && c.midConnectHandshake():
			return c.finish()
		case c.httpContentLen == 0:
			return c.outcomeDetectedWithCause(IOError, errs.MissingBodyLength())
		default:
			c.httpBufLen = 0
			c.state = StateRXBody
			return true
		}
	}

	switch {
	case strings.HasPrefix(line, "Transfer-Encoding: chunked"):
		c.httpChunked = true
	case strings.HasPrefix(line, "Content-Length: "):
		n, err := strconv.Atoi(strings.TrimSpace(line[len("Content-Length: "):]))
		if err != nil {
			return c.outcomeDetected(IOError)
		}
		if !c.growReply(n) {
			return c.outcomeDetectedWithCause(ReplyTooBig, errs.ReplyTooBig(n))
		}
		c.httpContentLen = n
	case strings.HasPrefix(line, "Connection: close"):
		c.keepAlive.ShouldClose = true
	case strings.HasPrefix(line, "Content-Encoding: gzip"):
		c.dataCompressed = EncodingGzip
	default:
		c.proxyST.HandleResponseHeader(line)
	}
	c.state = StateRXHeaderLine
	return true
}

func (c *Context) midConnectHandshake() bool {
	return c.proxyST.Type == proxy.HTTPConnect && !c.proxyST.TunnelEstablished
}

func (c *Context) stepResponseBody() bool {
	remaining := c.httpContentLen - c.httpBufLen
	if remaining <= 0 {
		return c.finish()
	}
	if !c.readStarted {
		c.socket.StartRead(c.handle, remaining)
		c.readStarted = true
		c.state = StateRXBodyWait
	}
	switch c.socket.ReadStatus(c.handle) {
	case pal.ReadInProgress:
		return false
	case pal.ReadOK:
		data := c.socket.ReadBytes(c.handle)
		c.httpReply = append(c.httpReply, data...)
		c.httpBufLen += len(data)
		c.readStarted = false
		if c.httpBufLen >= c.httpContentLen {
			return c.finish()
		}
		c.state = StateRXBody
		return true
	default:
		return c.outcomeDetected(IOError)
	}
}

func (c *Context) stepResponseChunked() bool {
	switch c.state {
	case StateRXChunkLen:
		c.state = StateRXChunkLenLine
		return true

	case StateRXChunkLenLine:
		status := c.pollLine()
		switch status {
		case pal.LineInProgress:
			return false
		case pal.LineOK:
			line := strings.TrimSpace(string(c.socket.LineBytes(c.handle)))
			n, err := strconv.ParseInt(line, 16, 64)
			if err != nil {
				return c.outcomeDetected(IOError)
			}
			if n == 0 {
				return c.finish()
			}
			c.httpContentLen = int(n) + chunkTrailLength
			c.httpBufLen = 0
			c.state = StateRXBodyChunk
			return true
		default:
			return c.outcomeDetected(IOError)
		}

	default: // StateRXBodyChunk, StateRXBodyChunkWait
		remaining := c.httpContentLen - c.httpBufLen
		if remaining <= 0 {
			c.readStarted = false
			c.state = StateRXChunkLen
			return true
		}
		if !c.readStarted {
			c.socket.StartRead(c.handle, remaining)
			c.readStarted = true
			c.state = StateRXBodyChunkWait
		}
		switch c.socket.ReadStatus(c.handle) {
		case pal.ReadInProgress:
			return false
		case pal.ReadOK:
			data := c.socket.ReadBytes(c.handle)
			c.readStarted = false
			chunkLen := c.httpContentLen - chunkTrailLength
			if c.httpBufLen < chunkLen {
				take := chunkLen - c.httpBufLen
				if take > len(data) {
					take = len(data)
				}
				c.httpReply = append(c.httpReply, data[:take]...)
			}
			c.httpBufLen += len(data)
			c.state = StateRXBodyChunk
			return true
		default:
			return c.outcomeDetected(IOError)
		}
	}
}
