package engine

import (
	"github.com/pubnub/pntx/internal/proxy"
	"github.com/pubnub/pntx/internal/runtime/pal"
	"github.com/pubnub/pntx/internal/version"
)

// emission staging: each TX_* state emits a contiguous literal via the PAL
// send primitives, polling send_status until complete (spec.md §4.4
// "Request emission").
func (c *Context) stepRequestEmission() bool {
	literal, next := c.emissionLiteral(c.state)
	return c.trySend(next, literal)
}

// emissionLiteral returns the literal to emit for state and the state to
// advance to once it is fully sent, branching on proxy mode exactly as
// spec.md §4.4 describes the three request sequences.
func (c *Context) emissionLiteral(state State) (string, State) {
	connectPhase := c.proxyST.Type == proxy.HTTPConnect && !c.proxyST.TunnelEstablished

	switch state {
	case StateTXGet:
		if connectPhase {
			return "CONNECT ", StateTXScheme
		}
		return "GET ", StateTXScheme

	case StateTXScheme:
		switch {
		case connectPhase:
			return "", StateTXHost
		case c.proxyST.Type == proxy.HTTPGet:
			c.savedPath = c.path
			return "http://", StateTXHost
		default:
			return "", StateTXPath
		}

	case StateTXHost:
		if connectPhase {
			return c.origin, StateTXPortNum
		}
		return c.origin, StateTXPath

	case StateTXPortNum:
		return ":80", StateTXVer

	case StateTXPath:
		if c.proxyST.Type == proxy.HTTPGet {
			return c.savedPath, StateTXVer
		}
		return c.path, StateTXVer

	case StateTXVer:
		if connectPhase {
			return " HTTP/1.1\r\nHost: " + c.origin + ":80\r\n", StateTXProxyAuthorization
		}
		return " HTTP/1.1\r\nHost: ", StateTXOrigin

	case StateTXOrigin:
		if c.proxyST.Type == proxy.HTTPGet {
			return c.origin, StateTXProxyAuthorization
		}
		return c.origin, StateTXFinHead

	case StateTXProxyAuthorization:
		return proxy.BuildGetProxyHeader(c.proxyST.Credentials), StateTXFinHead

	case StateTXFinHead:
		if connectPhase {
			return "\r\n", StateRXHTTPVer
		}
		return c.finalHeaderLiteral(), StateRXHTTPVer

	default:
		return "", state
	}
}

func (c *Context) finalHeaderLiteral() string {
	lit := "\r\nUser-Agent: " + c.userAgentOrDefault() + "\r\n"
	if c.acceptGzip {
		lit += "Accept-Encoding: gzip\r\n"
	}
	lit += "\r\n"
	return lit
}

func (c *Context) userAgentOrDefault() string {
	if c.userAgent != "" {
		return c.userAgent
	}
	return version.UserAgent()
}

// trySend drives one PAL send primitive to completion, advancing to next
// on success. It reports whether the caller should re-dispatch
// immediately (true) or wait for write-readiness / has already torn down
// (false).
func (c *Context) trySend(next State, literal string) bool {
	if c.awaitingSend {
		switch c.socket.SendStatus(c.handle) {
		case pal.SendComplete:
			c.awaitingSend = false
			c.state = next
			return true
		case pal.SendPending:
			return false
		default:
			return c.outcomeDetected(IOError)
		}
	}

	switch c.socket.SendStr(c.handle, literal) {
	case pal.SendComplete:
		c.state = next
		return true
	case pal.SendPending:
		c.awaitingSend = true
		c.socket.WatchOutEvents(c.handle)
		return false
	default:
		return c.outcomeDetected(IOError)
	}
}
