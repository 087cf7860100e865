package wire

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"
)

func TestBucketRoundTrip(t *testing.T) {
	b, err := EncodeBucket("abc123", []byte("compiled"))
	if err != nil {
		t.Fatalf("EncodeBucket: %v", err)
	}
	cs, code, err := DecodeBucket(b)
	if err != nil {
		t.Fatalf("DecodeBucket: %v", err)
	}
	if cs != "abc123" || string(code) != "compiled" {
		t.Fatalf("got checksum=%q code=%q", cs, code)
	}
}

func TestBucketEmptyCode(t *testing.T) {
	b, _ := EncodeBucket("", nil)
	cs, code, err := DecodeBucket(b)
	if err != nil || cs != "" || len(code) != 0 {
		t.Fatalf("empty bucket: cs=%q code=%q err=%v", cs, code, err)
	}
}

func TestDecodeBucketRejectsTrailing(t *testing.T) {
	b, _ := EncodeBucket("cs", []byte("x"))
	b = append(b, 0xDE, 0xAD)
	if _, _, err := DecodeBucket(b); err == nil {
		t.Fatalf("DecodeBucket should reject trailing bytes")
	}
}

func TestDecodeBucketRejectsForeignBytes(t *testing.T) {
	for name, b := range map[string][]byte{
		"empty":   nil,
		"short":   []byte("TPL"),
		"magic":   []byte("CASC\x01\x00\x00\x00\x00\x00\x00"),
		"version": append(append([]byte{}, magic4[:]...), 9, 0, 0, 0, 0, 0, 0),
	} {
		if _, _, err := DecodeBucket(b); err != ErrCorrupt {
			t.Fatalf("%s: expected ErrCorrupt, got %v", name, err)
		}
	}
}

func TestDecodeBucketTruncated(t *testing.T) {
	b, _ := EncodeBucket("checksum", []byte("code"))
	for i := 0; i < len(b); i++ {
		if _, _, err := DecodeBucket(b[:i]); err == nil {
			t.Fatalf("truncated frame of %d bytes decoded", i)
		}
	}
}

// A bogus code length must fail cleanly, not allocate.
func TestDecodeBucketFakeLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.Write([]byte{0, 0}) // no checksum
	var u4 [4]byte
	binary.BigEndian.PutUint32(u4[:], ^uint32(0))
	buf.Write(u4[:])

	if _, _, err := DecodeBucket(buf.Bytes()); err == nil {
		t.Fatalf("DecodeBucket should fail on oversized code length")
	}
}

func TestEncodeBucketChecksumLimit(t *testing.T) {
	if _, err := EncodeBucket(strings.Repeat("c", 0x10000), nil); err == nil {
		t.Fatalf("EncodeBucket should reject checksum > 0xFFFF")
	}
	if _, err := EncodeBucket(strings.Repeat("c", 0xFFFF), nil); err != nil {
		t.Fatalf("boundary checksum length should encode: %v", err)
	}
}
