package engine

import "github.com/pubnub/pntx/internal/result"

// Result is re-exported from internal/result so call sites inside the
// engine package can write engine.OK, engine.IOError, etc., while pal and
// timer consumers that must not import engine still share the same type.
type Result = result.Result

const (
	Started              = result.Started
	OK                    = result.OK
	Timeout               = result.Timeout
	Aborted               = result.Aborted
	Cancelled             = result.Cancelled
	IOError               = result.IOError
	HTTPError             = result.HTTPError
	AddrResolutionFailed  = result.AddrResolutionFailed
	ConnectFailed         = result.ConnectFailed
	ConnectionTimeout     = result.ConnectionTimeout
	ReplyTooBig           = result.ReplyTooBig
	InternalError         = result.InternalError
	InProgress            = result.InProgress
	TxBuffTooSmall        = result.TxBuffTooSmall
)

func forcesClose(r Result) bool { return result.ForcesClose(r) }
