package engine

import (
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/pubnub/pntx/internal/engine/parser"
	"github.com/pubnub/pntx/internal/errs"
	"github.com/pubnub/pntx/internal/proxy"
	"github.com/pubnub/pntx/internal/runtime/pal"
	"github.com/pubnub/pntx/internal/runtime/timer"
)

// KeepAlive is the connection-reuse accounting portion of a Context
// (spec.md §3 "keep_alive" field).
type KeepAlive struct {
	Enabled     bool
	Count       int
	Max         int
	Timeout     time.Duration
	Connected   time.Time
	ShouldClose bool
}

func (k *KeepAlive) expired() bool {
	return k.Timeout > 0 && !k.Connected.IsZero() && time.Since(k.Connected) >= k.Timeout
}

// Options configures one Context at construction.
type Options struct {
	Socket     pal.Socket
	Notifier   pal.Notifier
	Parsers    *parser.Table
	Origin     string
	BufMax     int
	AcceptGzip bool
	UserAgent  string
	KeepAlive  KeepAlive
	Proxy      proxy.State
	Logger     hclog.Logger
}

// Context is the central entity of the engine: one per concurrently
// in-flight HTTP transaction (spec.md §3). Every mutable field is guarded
// by mu, the per-context monitor.
type Context struct {
	mu sync.Mutex

	timerState timer.State

	state State
	trans parser.Kind

	lastResult Result
	// lastErr carries the diagnostic cause behind lastResult, when the
	// failing path recorded one. It never replaces lastResult — trans_outcome
	// still only ever publishes the Result — but gives logs and the
	// diagnostics CLI something more specific than a bare code.
	lastErr *errs.StandardError

	httpCode int
	// httpBufLen tracks bytes of the current body (or chunk) accepted so
	// far; the PAL owns the actual scratch/line buffer and hands back
	// slices directly via LineBytes/ReadBytes (see capability.go).
	httpBufLen     int
	httpReply      []byte // growable accumulated body
	httpContentLen int
	httpChunked    bool
	dataCompressed BodyEncoding

	keepAlive KeepAlive
	proxyST   proxy.State

	origin    string
	path      string
	savedPath string

	handle   pal.Handle
	socket   pal.Socket
	notifier pal.Notifier
	parsers  *parser.Table

	bufMax     int
	acceptGzip bool
	userAgent  string

	awaitingSend bool
	lineStarted  bool
	readStarted  bool

	logger hclog.Logger
}

// NewContext allocates a Context and immediately enters IDLE, matching
// spec.md §3 "Lifecycle": "a context is created externally (allocator),
// enters IDLE, is driven through the FSM by events, returns to IDLE on
// terminal outcomes". NULL is reserved for a context whose socket has been
// torn down by something other than the normal outcome path (spec.md §3:
// "state == NULL implies no socket is registered"); Cancel still handles it
// defensively, but construction never produces it.
func NewContext(opts Options) *Context {
	if opts.Logger == nil {
		opts.Logger = hclog.NewNullLogger()
	}
	bufMax := opts.BufMax
	if bufMax <= 0 {
		bufMax = 8192
	}
	return &Context{
		state:      StateIdle,
		socket:     opts.Socket,
		notifier:   opts.Notifier,
		parsers:    opts.Parsers,
		origin:     opts.Origin,
		bufMax:     bufMax,
		acceptGzip: opts.AcceptGzip,
		userAgent:  opts.UserAgent,
		keepAlive:  opts.KeepAlive,
		proxyST:    opts.Proxy,
		logger:     opts.Logger,
	}
}

// TimerState implements timer.Entry so a Context can be linked onto a
// timer.List without the list package knowing anything about transactions.
func (c *Context) TimerState() *timer.State { return &c.timerState }

// RunStep implements pal.Runnable: the notifier hands Contexts back to the
// scheduler as Runnable values so pal need not import engine.
func (c *Context) RunStep() { c.Step() }

// LastResult reports the most recently recorded outcome.
func (c *Context) LastResult() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastResult
}

// LastError returns the diagnostic cause behind LastResult, or nil when the
// transaction ended (or hasn't yet ended) without one attached.
func (c *Context) LastError() *errs.StandardError {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// HTTPCode reports the most recently parsed status code.
func (c *Context) HTTPCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.httpCode
}

// HTTPReply returns the accumulated, decoded response body.
func (c *Context) HTTPReply() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]byte, len(c.httpReply))
	copy(out, c.httpReply)
	return out
}

// Handle exposes the PAL handle assigned at connect time, for diagnostics
// and for tests driving a fakepal.FakeSocket directly.
func (c *Context) Handle() pal.Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle
}

// State reports the context's current FSM state.
func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CanStartTransaction reports whether Start may be called (spec.md §4.4
// Cancellation: "can_start_transaction(ctx) returns true exactly in {IDLE,
// KEEP_ALIVE_IDLE}").
func (c *Context) CanStartTransaction() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateIdle || c.state == StateKeepAliveIdle
}

// Start begins a new transaction of the given kind against path, entering
// the resolve/connect phase for a fresh connection or, from
// KEEP_ALIVE_IDLE, re-entering request emission directly on the reused
// socket.
func (c *Context) Start(kind parser.Kind, path string) bool {
	c.mu.Lock()
	if c.state != StateIdle && c.state != StateKeepAliveIdle {
		c.mu.Unlock()
		return false
	}
	c.trans = kind
	c.path = path
	c.httpCode = 0
	c.httpBufLen = 0
	c.httpReply = c.httpReply[:0]
	c.httpContentLen = 0
	c.httpChunked = false
	c.dataCompressed = EncodingNone
	c.lastErr = nil
	reuse := c.state == StateKeepAliveIdle

	if reuse {
		c.state = StateConnected
	} else {
		c.state = StateReady
	}
	c.mu.Unlock()

	c.notifier.EnqueueForProcessing(c)
	return true
}
