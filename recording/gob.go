package recording

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// encodeGob is the Go-idiomatic analogue of the source framework's
// bincode serialization: deterministic byte output for a fixed set of
// registered concrete types, used both for frame metadata and for each
// node's own output/state encoding inside a generated frame builder.
func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("recording: gob encode: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeGob(data []byte, out any) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(out); err != nil {
		return fmt.Errorf("recording: gob decode: %w", err)
	}
	return nil
}

// Encode gob-encodes a single value, appending to nothing — exported for
// generated frame-builder code that appends one node's outputs or private
// state to the scratch buffer described in §4.7 steps 1-3.
func Encode(v any) ([]byte, error) { return encodeGob(v) }

// Decode gob-decodes data into out, the inverse of Encode — used by a
// replay driver to deserialize cross-cycler/historic/perception inputs
// and per-node state directly from a recorded frame.
func Decode(data []byte, out any) error { return decodeGob(data, out) }
