// Package gzipbody wraps gzip decompression for the single call site the
// transaction FSM needs at body-completion time (spec.md §4.4 Finalization
// step 2). It uses klauspost/compress/gzip, a drop-in for compress/gzip
// retrieved widely across the example pack, rather than the standard
// library package directly.
package gzipbody

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"
)

// Decompress returns body's gzip-decoded contents. A truncated or
// malformed stream is reported as an error; the caller must discard the
// partially-read buffer rather than deliver it (spec.md §8 supplemental
// property).
func Decompress(body []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return out, nil
}
