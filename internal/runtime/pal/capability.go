// Package pal declares the platform-abstraction-layer capability set the
// transaction FSM is written against (spec.md §6). The FSM core never
// touches a socket, a DNS resolver or a readiness queue directly; it only
// ever calls through Socket and Notifier. This package owns no sockets
// itself — Handle is opaque, and concrete backends (netpal, fakepal) decide
// what a Handle actually is.
package pal

import "github.com/pubnub/pntx/internal/result"

// Handle identifies one connection's PAL-side state to Socket calls. The
// FSM stores whatever Handle ResolveAndConnect returns and passes it back
// unchanged on every subsequent call for that transaction.
type Handle interface{}

// ConnResult is the outcome of a connect-phase Socket call.
type ConnResult int

const (
	SendWouldBlock ConnResult = iota
	Sent
	RcvWouldBlock
	ConnectWouldBlock
	ConnectSuccess
	ConnectFailedResult
)

// SendResult is the outcome of a send-phase Socket call.
type SendResult int

const (
	SendError SendResult = iota - 1
	SendComplete
	SendPending
)

// LineResult is the outcome of a line-oriented read.
type LineResult int

const (
	LineOK LineResult = iota
	LineInProgress
	LineTooLong
	LineOtherError
)

// ReadResult is the outcome of a bulk read.
type ReadResult int

const (
	ReadOK ReadResult = iota
	ReadInProgress
	ReadOtherError
)

// Socket is the non-blocking socket capability set required of any PAL
// implementation (spec.md §6).
type Socket interface {
	ResolveAndConnect(origin string) (Handle, ConnResult)
	CheckResolvAndConnect(h Handle) ConnResult
	CheckConnect(h Handle) ConnResult

	// GotSocket registers h for readiness notification: -1 failure,
	// 0 immediate, +1 pending.
	GotSocket(h Handle) int
	UpdateSocket(h Handle)
	Forget(h Handle)
	LostSocket(h Handle)

	WatchInEvents(h Handle)
	WatchOutEvents(h Handle)

	SendLiteralStr(h Handle, s string) SendResult
	SendStr(h Handle, s string) SendResult
	SendStatus(h Handle) SendResult

	StartReadLine(h Handle)
	LineReadStatus(h Handle) LineResult
	// LineBytes returns the most recently completed line, without its CRLF
	// terminator. Valid only immediately after LineReadStatus == LineOK or
	// LineTooLong. This and ReadBytes stand in for the source's shared
	// http_buf pointer: Go has no safe way to hand the FSM a raw buffer
	// pointer owned by the PAL, so the PAL instead hands back a slice.
	LineBytes(h Handle) []byte

	StartRead(h Handle, n int)
	ReadStatus(h Handle) ReadResult
	ReadLen(h Handle) int
	// ReadBytes returns the bytes accepted by the most recent ReadStatus ==
	// ReadOK call.
	ReadBytes(h Handle) []byte

	// Close returns >0 while the close is pending, <=0 once it is done.
	Close(h Handle) int
	Closed(h Handle) bool
}

// Runnable is anything the notifier can hand back to the scheduler for
// further processing — in practice, *engine.Context via its Step method.
type Runnable interface {
	RunStep()
}

// Notifier is the scheduler-facing capability set (spec.md §6).
type Notifier interface {
	// EnqueueForProcessing returns -1 on internal error, 0 if r was
	// processed immediately (caller may retry inline), +1 if r is now
	// waiting for a future readiness/timer event.
	EnqueueForProcessing(r Runnable) int
	// RequeueForProcessing is used by stop() to schedule teardown
	// processing without blocking the caller.
	RequeueForProcessing(r Runnable)
	// TransOutcome publishes the single terminal outcome of a transaction
	// to user code. terminalState is either "IDLE" or "KEEP_ALIVE_IDLE".
	TransOutcome(res result.Result, terminalState string)
}
