package observability

import "github.com/fieldcore/cyclerd/recording"

// encodeBinary serializes a value for the binary channel, reusing the
// same gob encoding the recording sink uses so a subscriber's binary
// decoder and a replay driver's frame decoder share one wire format.
func encodeBinary(v any) ([]byte, error) {
	return recording.Encode(v)
}
