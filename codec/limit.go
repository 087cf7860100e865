package codec

import "fmt"

// Limit wraps another codec and bounds payload sizes in both directions.
// A limit <= 0 disables that check.
//
// MaxEncode keeps oversized values out of a bounded store; MaxDecode protects
// readers of a shared backend from oversized inputs.
type Limit[V any] struct {
	Inner     Codec[V]
	MaxEncode int
	MaxDecode int
}

func (c Limit[V]) Encode(v V) ([]byte, error) {
	b, err := c.Inner.Encode(v)
	if err != nil {
		return nil, err
	}
	if c.MaxEncode > 0 && len(b) > c.MaxEncode {
		return nil, encodeErr("limit", fmt.Errorf("payload too large: %d > %d", len(b), c.MaxEncode))
	}
	return b, nil
}

func (c Limit[V]) Decode(b []byte) (V, error) {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		var zero V
		return zero, decodeErr("limit", fmt.Errorf("payload too large: %d > %d", len(b), c.MaxDecode))
	}
	return c.Inner.Decode(b)
}
