package engine

// State is one node of the transaction FSM's ~30-state graph (spec.md
// §4.4). Grouped exactly as the specification groups them.
type State int

const (
	// Control
	StateNull State = iota
	StateIdle
	StateReady
	StateRetry

	// Resolve/Connect
	StateWaitDNSSend
	StateWaitDNSRcv
	StateWaitConnect
	StateConnected

	// Request emission
	StateTXGet
	StateTXScheme
	StateTXHost
	StateTXPortNum
	StateTXPath
	StateTXVer
	StateTXProxyAuthorization
	StateTXOrigin
	StateTXFinHead

	// Response reception
	StateRXHTTPVer
	StateRXHeaders
	StateRXHeaderLine
	StateRXBody
	StateRXBodyWait
	StateRXChunkLen
	StateRXChunkLenLine
	StateRXBodyChunk
	StateRXBodyChunkWait

	// Teardown
	StateWaitClose
	StateWaitCancel
	StateWaitCancelClose

	// Keep-alive
	StateKeepAliveIdle
	StateKeepAliveReady
	StateKeepAliveWaitClose
)

func (s State) String() string {
	switch s {
	case StateNull:
		return "NULL"
	case StateIdle:
		return "IDLE"
	case StateReady:
		return "READY"
	case StateRetry:
		return "RETRY"
	case StateWaitDNSSend:
		return "WAIT_DNS_SEND"
	case StateWaitDNSRcv:
		return "WAIT_DNS_RCV"
	case StateWaitConnect:
		return "WAIT_CONNECT"
	case StateConnected:
		return "CONNECTED"
	case StateTXGet:
		return "TX_GET"
	case StateTXScheme:
		return "TX_SCHEME"
	case StateTXHost:
		return "TX_HOST"
	case StateTXPortNum:
		return "TX_PORT_NUM"
	case StateTXPath:
		return "TX_PATH"
	case StateTXVer:
		return "TX_VER"
	case StateTXProxyAuthorization:
		return "TX_PROXY_AUTHORIZATION"
	case StateTXOrigin:
		return "TX_ORIGIN"
	case StateTXFinHead:
		return "TX_FIN_HEAD"
	case StateRXHTTPVer:
		return "RX_HTTP_VER"
	case StateRXHeaders:
		return "RX_HEADERS"
	case StateRXHeaderLine:
		return "RX_HEADER_LINE"
	case StateRXBody:
		return "RX_BODY"
	case StateRXBodyWait:
		return "RX_BODY_WAIT"
	case StateRXChunkLen:
		return "RX_CHUNK_LEN"
	case StateRXChunkLenLine:
		return "RX_CHUNK_LEN_LINE"
	case StateRXBodyChunk:
		return "RX_BODY_CHUNK"
	case StateRXBodyChunkWait:
		return "RX_BODY_CHUNK_WAIT"
	case StateWaitClose:
		return "WAIT_CLOSE"
	case StateWaitCancel:
		return "WAIT_CANCEL"
	case StateWaitCancelClose:
		return "WAIT_CANCEL_CLOSE"
	case StateKeepAliveIdle:
		return "KEEP_ALIVE_IDLE"
	case StateKeepAliveReady:
		return "KEEP_ALIVE_READY"
	case StateKeepAliveWaitClose:
		return "KEEP_ALIVE_WAIT_CLOSE"
	default:
		return "UNKNOWN_STATE"
	}
}

// BodyEncoding is the data_compressed field (spec.md §3).
type BodyEncoding int

const (
	EncodingNone BodyEncoding = iota
	EncodingGzip
)
