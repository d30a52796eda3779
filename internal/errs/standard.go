// Package errs provides the standardized diagnostic error shape used across
// the engine: a category, a stable code, a message, free-form context and
// the calling function, so operators get more than a bare Result value.
package errs

import (
	"fmt"
	"runtime"
)

// Category groups causes by the subsystem that raised them.
type Category string

const (
	CategoryNetwork  Category = "NETWORK"
	CategoryProtocol Category = "PROTOCOL"
	CategoryProxy    Category = "PROXY"
	CategoryCodec    Category = "CODEC"
	CategoryInternal Category = "INTERNAL"
)

// StandardError is the diagnostic cause optionally attached to a non-OK
// engine.Result. It never replaces the Result value delivered to
// trans_outcome; it exists purely for logs and the diagnostics CLI.
type StandardError struct {
	Category Category
	Code     string
	Message  string
	Context  map[string]interface{}
	Caller   string
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("[%s:%s] %s (caller: %s)", e.Category, e.Code, e.Message, e.Caller)
}

// New creates a StandardError, capturing the immediate caller for context.
func New(category Category, code, message string, context map[string]interface{}) *StandardError {
	pc, _, _, ok := runtime.Caller(1)
	caller := "unknown"
	if ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			caller = fn.Name()
		}
	}
	return &StandardError{
		Category: category,
		Code:     code,
		Message:  message,
		Context:  context,
		Caller:   caller,
	}
}

// Network-category constructors.

func AddrResolutionFailed(origin string, cause error) *StandardError {
	return New(CategoryNetwork, "ADDR_RESOLUTION_FAILED",
		fmt.Sprintf("could not resolve %q", origin),
		map[string]interface{}{"origin": origin, "cause": causeString(cause)})
}

func ConnectFailed(origin string, cause error) *StandardError {
	return New(CategoryNetwork, "CONNECT_FAILED",
		fmt.Sprintf("could not connect to %q", origin),
		map[string]interface{}{"origin": origin, "cause": causeString(cause)})
}

func IOError(state string, cause error) *StandardError {
	return New(CategoryNetwork, "IO_ERROR",
		fmt.Sprintf("I/O failure in state %s", state),
		map[string]interface{}{"state": state, "cause": causeString(cause)})
}

// Protocol-category constructors.

func MalformedStatusLine(line string) *StandardError {
	return New(CategoryProtocol, "MALFORMED_STATUS_LINE",
		"status line did not begin with HTTP/1.",
		map[string]interface{}{"line": line})
}

func MissingBodyLength() *StandardError {
	return New(CategoryProtocol, "MISSING_BODY_LENGTH",
		"response carried neither Content-Length nor chunked transfer-encoding",
		nil)
}

func ReplyTooBig(wanted int) *StandardError {
	return New(CategoryProtocol, "REPLY_TOO_BIG",
		fmt.Sprintf("reply buffer could not grow to %d bytes", wanted),
		map[string]interface{}{"wanted": wanted})
}

// Proxy-category constructors.

func ProxyTunnelFailed(code int) *StandardError {
	return New(CategoryProxy, "PROXY_TUNNEL_FAILED",
		fmt.Sprintf("CONNECT tunnel rejected with status %d", code),
		map[string]interface{}{"http_code": code})
}

// Codec-category constructors.

func GzipError(cause error) *StandardError {
	return New(CategoryCodec, "GZIP_ERROR",
		"gzip decompression of response body failed",
		map[string]interface{}{"cause": causeString(cause)})
}

// Internal-category constructors.

func UnexpectedPALResponse(state string, got int) *StandardError {
	return New(CategoryInternal, "UNEXPECTED_PAL_RESPONSE",
		fmt.Sprintf("PAL returned a response impossible for state %s", state),
		map[string]interface{}{"state": state, "got": got})
}

func causeString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
