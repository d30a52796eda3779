package gzipbody

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func compress(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write([]byte(s)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func TestDecompressRoundTrips(t *testing.T) {
	want := "hello, gzip body"
	got, err := Decompress(compress(t, want))
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if string(got) != want {
		t.Fatalf("Decompress = %q, want %q", got, want)
	}
}

func TestDecompressRejectsTruncatedStream(t *testing.T) {
	full := compress(t, "a body long enough to truncate meaningfully")
	truncated := full[:len(full)-4]
	if _, err := Decompress(truncated); err == nil {
		t.Fatal("Decompress(truncated) returned no error")
	}
}

func TestDecompressRejectsGarbage(t *testing.T) {
	if _, err := Decompress([]byte("not gzip at all")); err == nil {
		t.Fatal("Decompress(garbage) returned no error")
	}
}
