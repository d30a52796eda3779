package pal

import (
	"bytes"
	"sync"

	"github.com/pubnub/pntx/internal/result"
)

// FakeSocket is a deterministic, in-memory Socket implementation used by
// internal/engine's own test suite to drive the specification's seed
// scenarios without a real network. Tests script a connect outcome per
// origin and feed bytes to simulate a peer's responses; the FSM under test
// never knows the difference.
type FakeSocket struct {
	mu      sync.Mutex
	conns   map[Handle]*fakeConn
	nextID  int
	connect map[string]ConnResult // per-origin scripted connect outcome
	bufMax  int
}

type fakeConn struct {
	mu sync.Mutex

	origin string
	closed bool

	sendWouldBlockOnce bool
	sent               bytes.Buffer

	recv    bytes.Buffer
	lineBuf []byte
	readLen int
	readBuf []byte
}

// NewFakeSocket returns a FakeSocket whose line buffer capacity is bufMax,
// mirroring BUF_MAX (spec.md §6).
func NewFakeSocket(bufMax int) *FakeSocket {
	return &FakeSocket{
		conns:   make(map[Handle]*fakeConn),
		connect: make(map[string]ConnResult),
		bufMax:  bufMax,
	}
}

// ScriptConnect arranges for ResolveAndConnect(origin) to return outcome.
// Defaults to ConnectSuccess when unscripted.
func (f *FakeSocket) ScriptConnect(origin string, outcome ConnResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connect[origin] = outcome
}

// Feed appends bytes to h's inbound stream, simulating peer data arrival.
func (f *FakeSocket) Feed(h Handle, data []byte) {
	c := f.conn(h)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recv.Write(data)
}

// Sent returns everything the FSM has written to h so far.
func (f *FakeSocket) Sent(h Handle) []byte {
	c := f.conn(h)
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.sent.Bytes()...)
}

// ForceSendWouldBlock makes the next SendStatus call on h report SendPending
// exactly once, for exercising the would-block/yield path.
func (f *FakeSocket) ForceSendWouldBlock(h Handle) {
	c := f.conn(h)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendWouldBlockOnce = true
}

func (f *FakeSocket) conn(h Handle) *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conns[h]
}

func (f *FakeSocket) ResolveAndConnect(origin string) (Handle, ConnResult) {
	f.mu.Lock()
	outcome, scripted := f.connect[origin]
	if !scripted {
		outcome = ConnectSuccess
	}
	f.nextID++
	id := f.nextID
	f.mu.Unlock()

	if outcome != ConnectSuccess {
		return nil, outcome
	}

	c := &fakeConn{origin: origin}
	f.mu.Lock()
	f.conns[id] = c
	f.mu.Unlock()
	return id, ConnectSuccess
}

func (f *FakeSocket) CheckResolvAndConnect(h Handle) ConnResult { return ConnectSuccess }
func (f *FakeSocket) CheckConnect(h Handle) ConnResult          { return ConnectSuccess }

func (f *FakeSocket) GotSocket(h Handle) int { return 0 }
func (f *FakeSocket) UpdateSocket(h Handle)  {}
func (f *FakeSocket) Forget(h Handle)        {}
func (f *FakeSocket) LostSocket(h Handle)    {}

func (f *FakeSocket) WatchInEvents(h Handle)  {}
func (f *FakeSocket) WatchOutEvents(h Handle) {}

func (f *FakeSocket) SendLiteralStr(h Handle, s string) SendResult { return f.SendStr(h, s) }

func (f *FakeSocket) SendStr(h Handle, s string) SendResult {
	c := f.conn(h)
	if c == nil {
		return SendError
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendWouldBlockOnce {
		c.sendWouldBlockOnce = false
		return SendPending
	}
	c.sent.WriteString(s)
	return SendComplete
}

// SendStatus always reports completion in the fake: SendStr/SendLiteralStr
// already performed the write (or returned SendPending themselves), so a
// caller polling SendStatus after a non-pending send sees SendComplete.
func (f *FakeSocket) SendStatus(h Handle) SendResult {
	if f.conn(h) == nil {
		return SendError
	}
	return SendComplete
}

func (f *FakeSocket) StartReadLine(h Handle) {}

func (f *FakeSocket) LineReadStatus(h Handle) LineResult {
	c := f.conn(h)
	if c == nil {
		return LineOtherError
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	data := c.recv.Bytes()
	idx := bytes.Index(data, []byte("\r\n"))
	if idx < 0 {
		if f.bufMax > 0 && len(data) > f.bufMax {
			return LineTooLong
		}
		return LineInProgress
	}
	if f.bufMax > 0 && idx > f.bufMax {
		c.lineBuf = append([]byte(nil), data[:idx]...)
		c.recv.Next(idx + 2)
		return LineTooLong
	}
	c.lineBuf = append([]byte(nil), data[:idx]...)
	c.recv.Next(idx + 2)
	return LineOK
}

func (f *FakeSocket) LineBytes(h Handle) []byte {
	c := f.conn(h)
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lineBuf
}

func (f *FakeSocket) StartRead(h Handle, n int) {
	c := f.conn(h)
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readLen = n
}

func (f *FakeSocket) ReadStatus(h Handle) ReadResult {
	c := f.conn(h)
	if c == nil {
		return ReadOtherError
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.readLen == 0 {
		c.readBuf = nil
		return ReadOK
	}
	if c.recv.Len() < c.readLen {
		return ReadInProgress
	}
	c.readBuf = make([]byte, c.readLen)
	_, _ = c.recv.Read(c.readBuf)
	return ReadOK
}

func (f *FakeSocket) ReadLen(h Handle) int {
	c := f.conn(h)
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.readBuf)
}

func (f *FakeSocket) ReadBytes(h Handle) []byte {
	c := f.conn(h)
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readBuf
}

func (f *FakeSocket) Close(h Handle) int {
	c := f.conn(h)
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return 0
}

func (f *FakeSocket) Closed(h Handle) bool {
	c := f.conn(h)
	if c == nil {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// FakeNotifier runs everything synchronously and records every delivered
// outcome for test assertions.
type FakeNotifier struct {
	mu       sync.Mutex
	Outcomes []Outcome
}

func NewFakeNotifier() *FakeNotifier { return &FakeNotifier{} }

func (n *FakeNotifier) EnqueueForProcessing(r Runnable) int {
	r.RunStep()
	return 0
}

func (n *FakeNotifier) RequeueForProcessing(r Runnable) {
	r.RunStep()
}

func (n *FakeNotifier) TransOutcome(res result.Result, terminalState string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Outcomes = append(n.Outcomes, Outcome{Result: res, TerminalState: terminalState})
}

// Last returns the most recently recorded outcome, or the zero value if
// none has been delivered yet.
func (n *FakeNotifier) Last() (Outcome, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.Outcomes) == 0 {
		return Outcome{}, false
	}
	return n.Outcomes[len(n.Outcomes)-1], true
}
