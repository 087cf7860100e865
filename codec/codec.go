// Package codec turns cached values into the opaque bytes a tplcache store keeps.
//
// A Codec may fail in either direction. tplcache never surfaces those failures
// to callers: a failed Encode drops the write and a failed Decode is a miss.
package codec

import "fmt"

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// Error records which codec failed and in which direction.
type Error struct {
	Codec string // "json", "msgpack", ...
	Op    string // "encode" or "decode"
	Err   error
}

func (e *Error) Error() string { return fmt.Sprintf("codec %s: %s: %v", e.Codec, e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

func encodeErr(name string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Codec: name, Op: "encode", Err: err}
}

func decodeErr(name string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Codec: name, Op: "decode", Err: err}
}
