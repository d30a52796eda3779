package parser

import (
	"testing"

	"github.com/pubnub/pntx/internal/result"
)

func TestUnregisteredSlotFallsBackToGuard(t *testing.T) {
	tbl := NewTable(map[Kind]Func{
		Publish: func(b []byte) result.Result { return result.OK },
	})
	if got := tbl.Parse(Subscribe, nil); got != result.InternalError {
		t.Fatalf("Parse(Subscribe) = %v, want InternalError via Guard", got)
	}
}

func TestRegisteredSlotDispatches(t *testing.T) {
	tbl := NewTable(map[Kind]Func{
		Publish: func(b []byte) result.Result {
			if len(b) == 0 {
				return result.HTTPError
			}
			return result.OK
		},
	})
	if got := tbl.Parse(Publish, []byte("[1,\"Sent\"]")); got != result.OK {
		t.Fatalf("Parse(Publish, body) = %v, want OK", got)
	}
	if got := tbl.Parse(Publish, nil); got != result.HTTPError {
		t.Fatalf("Parse(Publish, nil) = %v, want HTTPError", got)
	}
}

func TestNewTablePanicsOnNilFunc(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on nil Func registration")
		}
	}()
	NewTable(map[Kind]Func{Publish: nil})
}

func TestDefaultTableCoversEveryKind(t *testing.T) {
	tbl := DefaultTable()
	for _, k := range []Kind{Publish, Subscribe, Presence, History, Generic} {
		if got := tbl.Parse(k, []byte("ok")); got != result.OK {
			t.Errorf("Parse(%s) = %v, want OK", k, got)
		}
	}
}

func TestOutOfRangeKindUsesGuard(t *testing.T) {
	tbl := DefaultTable()
	if got := tbl.Parse(Kind(99), nil); got != result.InternalError {
		t.Fatalf("Parse(out-of-range) = %v, want InternalError", got)
	}
}
