package pal

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pubnub/pntx/internal/runtime/asyncio"
)

// NetSocket is the real-socket pal.Socket backend: one TCP connection per
// Handle, dialed and read/written from background goroutines so the FSM's
// poll-style capability calls (CheckConnect, LineReadStatus, ReadStatus,
// ...) never block. Go gives no portable way to poll a socket for
// readiness without either raw syscalls or a goroutine per operation; this
// follows the teacher's own "portability-first baseline" choice in
// internal/runtime/asyncio's goPoller rather than reaching for epoll/kqueue
// directly, and reuses that same poller to arm readiness watches.
type NetSocket struct {
	mu          sync.Mutex
	conns       map[int]*netConn
	nextID      int
	dialTimeout time.Duration
	poller      asyncio.Poller
}

// NewNetSocket returns a NetSocket whose dials time out after dialTimeout
// (0 disables the timeout, matching net.Dialer's zero value).
func NewNetSocket(dialTimeout time.Duration) *NetSocket {
	p := asyncio.NewDefaultPoller()
	_ = p.Start(context.Background())
	return &NetSocket{
		conns:       make(map[int]*netConn),
		dialTimeout: dialTimeout,
		poller:      p,
	}
}

// Shutdown stops the underlying poller. Call once the NetSocket is no longer
// in use by any Context.
func (s *NetSocket) Shutdown() error { return s.poller.Stop() }

type netConn struct {
	mu sync.Mutex

	conn   net.Conn
	reader *bufio.Reader
	closed bool

	dialDone bool
	dialErr  error

	sendDone    bool
	sendErr     error
	sendPending bool

	lineDone bool
	lineBuf  []byte
	lineErr  error

	readDone bool
	readWant int
	readBuf  []byte
	readErr  error
}

func (s *NetSocket) get(h Handle) *netConn {
	id, ok := h.(int)
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns[id]
}

// ResolveAndConnect parses origin as host[:port] (defaulting to port 80,
// the only port the request-emission literal in TX_PORT_NUM ever targets —
// this engine speaks plain HTTP/1.1, never TLS, per this repo's Non-goals)
// and dials it on a background goroutine.
func (s *NetSocket) ResolveAndConnect(origin string) (Handle, ConnResult) {
	addr := origin
	if !strings.Contains(addr, ":") {
		addr = net.JoinHostPort(addr, "80")
	}

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	nc := &netConn{}
	s.conns[id] = nc
	s.mu.Unlock()

	go func() {
		d := net.Dialer{Timeout: s.dialTimeout}
		conn, err := d.Dial("tcp", addr)
		nc.mu.Lock()
		defer nc.mu.Unlock()
		if err != nil {
			nc.dialErr = err
		} else {
			nc.conn = conn
			nc.reader = bufio.NewReaderSize(conn, 4096)
		}
		nc.dialDone = true
	}()

	return id, ConnectWouldBlock
}

func (s *NetSocket) CheckResolvAndConnect(h Handle) ConnResult { return s.CheckConnect(h) }

func (s *NetSocket) CheckConnect(h Handle) ConnResult {
	nc := s.get(h)
	if nc == nil {
		return ConnectFailedResult
	}
	nc.mu.Lock()
	defer nc.mu.Unlock()
	if !nc.dialDone {
		return ConnectWouldBlock
	}
	if nc.dialErr != nil {
		return ConnectFailedResult
	}
	return ConnectSuccess
}

// GotSocket confirms h names a live, tracked attempt; -1 only when the
// handle is unknown (already closed or never issued). ResolveAndConnect's
// dial runs on its own goroutine and always reports ConnectWouldBlock
// immediately, so nc.conn is routinely still nil the instant this is
// called — waiting on it here would mean every connection attempt failed
// before the dial even finished.
func (s *NetSocket) GotSocket(h Handle) int {
	nc := s.get(h)
	if nc == nil {
		return -1
	}
	return 0
}

func (s *NetSocket) UpdateSocket(h Handle) {}

// Forget releases the bookkeeping for a handle whose close has already run
// to completion (Close/Close0 already tore the net.Conn down); it does not
// touch the connection itself.
func (s *NetSocket) Forget(h Handle) {
	id, ok := h.(int)
	if !ok {
		return
	}
	s.mu.Lock()
	delete(s.conns, id)
	s.mu.Unlock()
}

// LostSocket stops watching a still-open connection for readiness, for a
// handle being retained across a keep-alive idle period: the connection
// itself is left intact for the next transaction to reuse.
func (s *NetSocket) LostSocket(h Handle) {
	nc := s.get(h)
	if nc == nil || nc.conn == nil {
		return
	}
	_ = s.poller.Deregister(nc.conn)
}

func (s *NetSocket) WatchInEvents(h Handle) {
	nc := s.get(h)
	if nc == nil || nc.conn == nil {
		return
	}
	_ = s.poller.Register(nc.conn, []asyncio.EventType{asyncio.Readable}, func(asyncio.Event) {})
}

func (s *NetSocket) WatchOutEvents(h Handle) {
	nc := s.get(h)
	if nc == nil || nc.conn == nil {
		return
	}
	_ = s.poller.Register(nc.conn, []asyncio.EventType{asyncio.Writable}, func(asyncio.Event) {})
}

func (s *NetSocket) SendLiteralStr(h Handle, str string) SendResult { return s.SendStr(h, str) }

func (s *NetSocket) SendStr(h Handle, str string) SendResult {
	nc := s.get(h)
	if nc == nil || nc.conn == nil {
		return SendError
	}
	nc.mu.Lock()
	if nc.sendPending {
		nc.mu.Unlock()
		return SendPending
	}
	nc.sendPending = true
	nc.sendDone = false
	nc.mu.Unlock()

	go func() {
		_, err := nc.conn.Write([]byte(str))
		nc.mu.Lock()
		nc.sendErr = err
		nc.sendDone = true
		nc.sendPending = false
		nc.mu.Unlock()
	}()
	return SendPending
}

func (s *NetSocket) SendStatus(h Handle) SendResult {
	nc := s.get(h)
	if nc == nil {
		return SendError
	}
	nc.mu.Lock()
	defer nc.mu.Unlock()
	if !nc.sendDone {
		return SendPending
	}
	if nc.sendErr != nil {
		return SendError
	}
	return SendComplete
}

func (s *NetSocket) StartReadLine(h Handle) {
	nc := s.get(h)
	if nc == nil || nc.conn == nil {
		return
	}
	nc.mu.Lock()
	if nc.lineDone {
		nc.mu.Unlock()
		return
	}
	nc.mu.Unlock()

	go func() {
		line, err := nc.reader.ReadString('\n')
		nc.mu.Lock()
		nc.lineBuf = []byte(strings.TrimRight(line, "\r\n"))
		nc.lineErr = err
		nc.lineDone = true
		nc.mu.Unlock()
	}()
}

func (s *NetSocket) LineReadStatus(h Handle) LineResult {
	nc := s.get(h)
	if nc == nil {
		return LineOtherError
	}
	nc.mu.Lock()
	defer nc.mu.Unlock()
	if !nc.lineDone {
		return LineInProgress
	}
	nc.lineDone = false
	if nc.lineErr != nil {
		return LineOtherError
	}
	return LineOK
}

func (s *NetSocket) LineBytes(h Handle) []byte {
	nc := s.get(h)
	if nc == nil {
		return nil
	}
	nc.mu.Lock()
	defer nc.mu.Unlock()
	return nc.lineBuf
}

func (s *NetSocket) StartRead(h Handle, n int) {
	nc := s.get(h)
	if nc == nil || nc.conn == nil {
		return
	}
	nc.mu.Lock()
	if nc.readDone && nc.readWant == n {
		nc.mu.Unlock()
		return
	}
	nc.readWant = n
	nc.readDone = false
	nc.mu.Unlock()

	go func() {
		buf := make([]byte, n)
		_, err := readFull(nc.reader, buf)
		nc.mu.Lock()
		nc.readBuf = buf
		nc.readErr = err
		nc.readDone = true
		nc.mu.Unlock()
	}()
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (s *NetSocket) ReadStatus(h Handle) ReadResult {
	nc := s.get(h)
	if nc == nil {
		return ReadOtherError
	}
	nc.mu.Lock()
	defer nc.mu.Unlock()
	if !nc.readDone {
		return ReadInProgress
	}
	if nc.readErr != nil {
		return ReadOtherError
	}
	return ReadOK
}

func (s *NetSocket) ReadLen(h Handle) int {
	nc := s.get(h)
	if nc == nil {
		return 0
	}
	nc.mu.Lock()
	defer nc.mu.Unlock()
	return len(nc.readBuf)
}

func (s *NetSocket) ReadBytes(h Handle) []byte {
	nc := s.get(h)
	if nc == nil {
		return nil
	}
	nc.mu.Lock()
	defer nc.mu.Unlock()
	return nc.readBuf
}

func (s *NetSocket) Close(h Handle) int {
	return s.Close0(h)
}

// Close0 is the body of Close: it deregisters and closes the connection
// unconditionally and always reports the close as done (0). LostSocket
// does not use it; that path leaves the connection open.
func (s *NetSocket) Close0(h Handle) int {
	nc := s.get(h)
	if nc == nil {
		return 0
	}
	nc.mu.Lock()
	defer nc.mu.Unlock()
	if nc.closed {
		return 0
	}
	nc.closed = true
	if nc.conn != nil {
		_ = s.poller.Deregister(nc.conn)
		_ = nc.conn.Close()
	}
	return 0
}

func (s *NetSocket) Closed(h Handle) bool {
	nc := s.get(h)
	if nc == nil {
		return true
	}
	nc.mu.Lock()
	defer nc.mu.Unlock()
	return nc.closed
}

// PortOf splits a literal host:port pair the way TX_PORT_NUM/TX_HOST build
// it, for callers (the proxy CONNECT builder, diagnostics) that need the
// numeric port back out.
func PortOf(hostport string) (string, int) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport, 80
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = 80
	}
	return host, port
}
