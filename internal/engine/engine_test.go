package engine

import (
	"testing"
	"time"

	"github.com/pubnub/pntx/internal/engine/parser"
	"github.com/pubnub/pntx/internal/proxy"
	"github.com/pubnub/pntx/internal/result"
	"github.com/pubnub/pntx/internal/runtime/pal"
	"github.com/pubnub/pntx/internal/runtime/timer"
)

func newTestContext(sock *pal.FakeSocket, notifier *pal.FakeNotifier, opts Options) *Context {
	opts.Socket = sock
	opts.Notifier = notifier
	if opts.Parsers == nil {
		opts.Parsers = parser.DefaultTable()
	}
	if opts.Origin == "" {
		opts.Origin = "example.com"
	}
	return NewContext(opts)
}

// S1 — simple GET, content-length.
func TestS1SimpleGetContentLength(t *testing.T) {
	sock := pal.NewFakeSocket(4096)
	notifier := pal.NewFakeNotifier()
	ctx := newTestContext(sock, notifier, Options{KeepAlive: KeepAlive{Enabled: true, Max: 10}})

	ctx.Start(parser.Generic, "/p")
	sock.Feed(ctx.Handle(), []byte("HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhello"))
	ctx.Step()

	if got := ctx.LastResult(); got != result.OK {
		t.Fatalf("LastResult = %v, want OK", got)
	}
	if got := ctx.HTTPCode(); got != 200 {
		t.Fatalf("HTTPCode = %d, want 200", got)
	}
	if got := string(ctx.HTTPReply()); got != "hello" {
		t.Fatalf("HTTPReply = %q, want %q", got, "hello")
	}
	if got := ctx.State(); got != StateKeepAliveIdle {
		t.Fatalf("State = %v, want KEEP_ALIVE_IDLE", got)
	}
	last, ok := notifier.Last()
	if !ok || last.TerminalState != "KEEP_ALIVE_IDLE" {
		t.Fatalf("notifier outcome = %+v, ok=%v, want terminal KEEP_ALIVE_IDLE", last, ok)
	}
}

// S2 — chunked transfer-encoding.
func TestS2Chunked(t *testing.T) {
	sock := pal.NewFakeSocket(4096)
	notifier := pal.NewFakeNotifier()
	ctx := newTestContext(sock, notifier, Options{})

	ctx.Start(parser.Generic, "/p")
	sock.Feed(ctx.Handle(), []byte("HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nhello\r\n0\r\n\r\n"))
	ctx.Step()

	if got := ctx.LastResult(); got != result.OK {
		t.Fatalf("LastResult = %v, want OK", got)
	}
	if got := string(ctx.HTTPReply()); got != "hello" {
		t.Fatalf("HTTPReply = %q, want %q", got, "hello")
	}
}

// S3 — non-2xx response still delivers the body.
func TestS3NonTwoXX(t *testing.T) {
	sock := pal.NewFakeSocket(4096)
	notifier := pal.NewFakeNotifier()
	ctx := newTestContext(sock, notifier, Options{})

	ctx.Start(parser.Generic, "/p")
	sock.Feed(ctx.Handle(), []byte("HTTP/1.1 500 X\r\nContent-Length: 2\r\n\r\nNO"))
	ctx.Step()

	if got := ctx.LastResult(); got != result.HTTPError {
		t.Fatalf("LastResult = %v, want HTTPError", got)
	}
	if got := string(ctx.HTTPReply()); got != "NO" {
		t.Fatalf("HTTPReply = %q, want %q", got, "NO")
	}
	if got := ctx.HTTPCode(); got != 500 {
		t.Fatalf("HTTPCode = %d, want 500", got)
	}
}

// S4 — connect failure.
func TestS4ConnectFailure(t *testing.T) {
	sock := pal.NewFakeSocket(4096)
	notifier := pal.NewFakeNotifier()
	ctx := newTestContext(sock, notifier, Options{Origin: "down.example.com", KeepAlive: KeepAlive{Enabled: true, Max: 10}})
	sock.ScriptConnect("down.example.com", pal.ConnectFailedResult)

	ctx.Start(parser.Generic, "/p")

	if got := ctx.LastResult(); got != result.AddrResolutionFailed {
		t.Fatalf("LastResult = %v, want AddrResolutionFailed", got)
	}
	last, ok := notifier.Last()
	if !ok || last.TerminalState != "IDLE" {
		t.Fatalf("notifier outcome = %+v, ok=%v, want terminal IDLE", last, ok)
	}
	if got := ctx.State(); got != StateIdle {
		t.Fatalf("State = %v, want IDLE", got)
	}
}

// S5 — timer expiry.
func TestS5TimerExpiry(t *testing.T) {
	sock := pal.NewFakeSocket(4096)
	notifier := pal.NewFakeNotifier()
	ctx := newTestContext(sock, notifier, Options{})

	ctx.Start(parser.Generic, "/p") // leaves ctx waiting in RX_HTTP_VER, nothing fed

	list := timer.New()
	list.Insert(ctx, 1000)

	expired := list.Age(1500)
	if len(expired) != 1 || expired[0] != timer.Entry(ctx) {
		t.Fatalf("Age(1500) = %v, want [ctx]", expired)
	}

	CancelEntry(result.Timeout)(expired[0])

	if got := ctx.LastResult(); got != result.Timeout {
		t.Fatalf("LastResult = %v, want Timeout", got)
	}
	last, ok := notifier.Last()
	if !ok || last.Result != result.Timeout || last.TerminalState != "IDLE" {
		t.Fatalf("notifier outcome = %+v, ok=%v, want Timeout/IDLE", last, ok)
	}
}

// S6 — CONNECT tunnel then GET replay over the tunnel.
func TestS6ConnectTunnel(t *testing.T) {
	sock := pal.NewFakeSocket(4096)
	notifier := pal.NewFakeNotifier()
	ctx := newTestContext(sock, notifier, Options{
		Proxy: proxy.State{Type: proxy.HTTPConnect},
	})

	ctx.Start(parser.Generic, "/p")
	h := ctx.Handle()

	// First exchange: the CONNECT handshake.
	sock.Feed(h, []byte("HTTP/1.1 200 Connection Established\r\n\r\n"))
	ctx.Step()

	if !ctx.proxyST.TunnelEstablished {
		t.Fatal("tunnel not established after 2xx CONNECT response")
	}
	if got := ctx.State(); got != StateRXHTTPVer {
		t.Fatalf("State after tunnel established = %v, want RX_HTTP_VER (GET replayed)", got)
	}

	// Second exchange: the real GET, now flowing through the tunnel.
	sock.Feed(h, []byte("HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhello"))
	ctx.Step()

	if got := ctx.LastResult(); got != result.OK {
		t.Fatalf("LastResult = %v, want OK", got)
	}
	if got := string(ctx.HTTPReply()); got != "hello" {
		t.Fatalf("HTTPReply = %q, want %q", got, "hello")
	}
}

func TestKeepAliveMaxClosesAfterLimit(t *testing.T) {
	sock := pal.NewFakeSocket(4096)
	notifier := pal.NewFakeNotifier()
	ctx := newTestContext(sock, notifier, Options{KeepAlive: KeepAlive{Enabled: true, Max: 1}})

	ctx.Start(parser.Generic, "/p")
	sock.Feed(ctx.Handle(), []byte("HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nhi"))
	ctx.Step()

	if got := ctx.State(); got != StateIdle {
		t.Fatalf("State = %v, want IDLE once keep-alive Max is reached", got)
	}
}

func TestConnectionCloseHeaderForcesClose(t *testing.T) {
	sock := pal.NewFakeSocket(4096)
	notifier := pal.NewFakeNotifier()
	ctx := newTestContext(sock, notifier, Options{KeepAlive: KeepAlive{Enabled: true, Max: 10}})

	ctx.Start(parser.Generic, "/p")
	sock.Feed(ctx.Handle(), []byte("HTTP/1.1 200 OK\r\nContent-Length: 2\r\nConnection: close\r\n\r\nhi"))
	ctx.Step()

	if got := ctx.State(); got != StateIdle {
		t.Fatalf("State = %v, want IDLE after Connection: close", got)
	}
}

func TestOverlongHeaderIsSkippedNotFatal(t *testing.T) {
	sock := pal.NewFakeSocket(32)
	notifier := pal.NewFakeNotifier()
	ctx := newTestContext(sock, notifier, Options{BufMax: 32})

	ctx.Start(parser.Generic, "/p")
	sock.Feed(ctx.Handle(), []byte(
		"HTTP/1.1 200 OK\r\nX-Too-Long-Header-Name: some value that exceeds the buffer\r\nContent-Length: 2\r\n\r\nok"))
	ctx.Step()

	if got := ctx.LastResult(); got != result.OK {
		t.Fatalf("LastResult = %v, want OK (long header skipped, parsing continues)", got)
	}
	if got := string(ctx.HTTPReply()); got != "ok" {
		t.Fatalf("HTTPReply = %q, want %q", got, "ok")
	}
}

func TestCancelWhileWaitingForResponsePublishesOutcome(t *testing.T) {
	sock := pal.NewFakeSocket(4096)
	notifier := pal.NewFakeNotifier()
	ctx := newTestContext(sock, notifier, Options{})

	ctx.Start(parser.Generic, "/p")
	ctx.Cancel(result.Cancelled)

	if got := ctx.State(); got != StateIdle {
		t.Fatalf("State = %v, want IDLE after cancel completes", got)
	}
	last, ok := notifier.Last()
	if !ok || last.Result != result.Cancelled || last.TerminalState != "IDLE" {
		t.Fatalf("notifier outcome = %+v, ok=%v, want Cancelled/IDLE", last, ok)
	}
}

func TestCancelIsNoOpWhenAlreadyCancelling(t *testing.T) {
	sock := pal.NewFakeSocket(4096)
	notifier := pal.NewFakeNotifier()
	ctx := newTestContext(sock, notifier, Options{})
	ctx.Start(parser.Generic, "/p")

	ctx.state = StateWaitCancel // simulate an in-flight cancel without exporting a setter
	ctx.Cancel(result.Cancelled)

	if got := ctx.State(); got != StateWaitCancel {
		t.Fatalf("State = %v, want WAIT_CANCEL unchanged (no-op)", got)
	}
}

func TestCanStartTransactionOnlyFromIdleStates(t *testing.T) {
	sock := pal.NewFakeSocket(4096)
	notifier := pal.NewFakeNotifier()
	ctx := newTestContext(sock, notifier, Options{})

	if !ctx.CanStartTransaction() {
		t.Fatal("fresh IDLE context should allow starting a transaction")
	}
	ctx.Start(parser.Generic, "/p")
	if ctx.CanStartTransaction() {
		t.Fatal("mid-flight context should not allow starting a transaction")
	}
}

func TestMalformedStatusLineRecordsDiagnosticCause(t *testing.T) {
	sock := pal.NewFakeSocket(4096)
	notifier := pal.NewFakeNotifier()
	ctx := newTestContext(sock, notifier, Options{})

	ctx.Start(parser.Generic, "/p")
	sock.Feed(ctx.Handle(), []byte("NOT HTTP AT ALL\r\n"))
	ctx.Step()

	if got := ctx.LastResult(); got != result.IOError {
		t.Fatalf("LastResult = %v, want IOError", got)
	}
	cause := ctx.LastError()
	if cause == nil || cause.Code != "MALFORMED_STATUS_LINE" {
		t.Fatalf("LastError = %+v, want code MALFORMED_STATUS_LINE", cause)
	}
}

func TestKeepAliveTimeoutForcesClose(t *testing.T) {
	sock := pal.NewFakeSocket(4096)
	notifier := pal.NewFakeNotifier()
	ctx := newTestContext(sock, notifier, Options{
		KeepAlive: KeepAlive{Enabled: true, Max: 100, Timeout: time.Nanosecond},
	})

	ctx.Start(parser.Generic, "/p")
	time.Sleep(time.Millisecond)
	sock.Feed(ctx.Handle(), []byte("HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nhi"))
	ctx.Step()

	if got := ctx.State(); got != StateIdle {
		t.Fatalf("State = %v, want IDLE once keep-alive age exceeds Timeout", got)
	}
}
