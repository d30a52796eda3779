// Package parser implements the Protocol Parser Table (spec.md §4.3): a
// static dispatch table mapping a transaction kind to the function that
// turns a completed HTTP body into a domain result code.
package parser

import "github.com/pubnub/pntx/internal/result"

// Kind selects which parser a Context's completed body is routed to.
type Kind int

const (
	Publish Kind = iota
	Subscribe
	Presence
	History
	Generic
	kindCount
)

// NoTransaction marks a Context that has no transaction kind selected,
// e.g. immediately after Cancel clears trans in IDLE/KEEP_ALIVE_IDLE
// (spec.md §4.4 Cancellation). Table.Parse routes it to Guard like any
// other out-of-range Kind.
const NoTransaction Kind = -1

func (k Kind) String() string {
	switch k {
	case Publish:
		return "PUBLISH"
	case Subscribe:
		return "SUBSCRIBE"
	case Presence:
		return "PRESENCE"
	case History:
		return "HISTORY"
	case Generic:
		return "GENERIC"
	default:
		return "UNKNOWN_KIND"
	}
}

// Func parses a NUL-terminated-equivalent response body and reports the
// domain result. It never sees the HTTP status code directly: the caller
// (engine finish step) maps non-2xx codes to HTTPError itself, per spec.md
// §4.4 Finalization step 4 — the parser only reports whether the body
// itself was well formed.
type Func func(body []byte) result.Result

// Table is a fixed-size array of Func, one slot per Kind, built once by
// NewTable and consulted exactly once per transaction at body completion.
type Table [kindCount]Func

// Guard is installed in any slot NewTable's caller leaves unset. It stands
// in for the source's unreachable default case: reaching it means the FSM
// routed a transaction kind nothing registered a parser for.
func Guard(_ []byte) result.Result { return result.InternalError }

// NewTable builds a Table from the given registrations. Every slot starts
// as Guard, so a kind with no registration dispatches to Guard instead of
// failing construction; NewTable panics only on an out-of-range kind or a
// nil Func (spec.md §4.3, §9 "static dispatch table").
func NewTable(reg map[Kind]Func) *Table {
	var t Table
	for i := range t {
		t[i] = Guard
	}
	for k, fn := range reg {
		if k < 0 || int(k) >= len(t) {
			panic("parser: registration for out-of-range kind")
		}
		if fn == nil {
			panic("parser: nil Func registered")
		}
		t[k] = fn
	}
	for _, fn := range t {
		if fn == nil {
			panic("parser: unset slot after construction")
		}
	}
	return &t
}

// Parse dispatches body to the parser registered for kind.
func (t *Table) Parse(kind Kind, body []byte) result.Result {
	if kind < 0 || int(kind) >= len(t) {
		return Guard(body)
	}
	return t[kind](body)
}

// DefaultTable returns the table used when a caller has no domain-specific
// parsing needs beyond "body arrived, status code decides the outcome" —
// every slot passes the body through unexamined.
func DefaultTable() *Table {
	passthrough := func(_ []byte) result.Result { return result.OK }
	return NewTable(map[Kind]Func{
		Publish:   passthrough,
		Subscribe: passthrough,
		Presence:  passthrough,
		History:   passthrough,
		Generic:   passthrough,
	})
}
