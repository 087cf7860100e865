package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const version byte = 1

var (
	ErrCorrupt = errors.New("tplcache: corrupt bucket")
	magic4     = [...]byte{'T', 'P', 'L', 'B'}
)

const maxChecksumLen = 0xFFFF

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Bucket: magic(4) | ver(1) | csLen(u16 be) | checksum(csLen) | codeLen(u32 be) | code(codeLen)
func EncodeBucket(checksum string, code []byte) ([]byte, error) {
	if len(checksum) > maxChecksumLen {
		return nil, errors.New("tplcache: checksum too long")
	}
	var buf bytes.Buffer
	buf.Grow(4 + 1 + 2 + len(checksum) + 4 + len(code))

	buf.Write(magic4[:])
	buf.WriteByte(version)

	var u2 [2]byte
	var u4 [4]byte

	binary.BigEndian.PutUint16(u2[:], uint16(len(checksum)))
	buf.Write(u2[:])
	buf.WriteString(checksum)

	binary.BigEndian.PutUint32(u4[:], uint32(len(code)))
	buf.Write(u4[:])
	buf.Write(code)
	return buf.Bytes(), nil
}

// DecodeBucket rejects bad magic, unknown versions, short frames and trailing bytes.
// The returned code aliases b.
func DecodeBucket(b []byte) (checksum string, code []byte, err error) {
	const hdr = 4 + 1 + 2
	if len(b) < hdr || !hasMagic(b) || b[4] != version {
		return "", nil, ErrCorrupt
	}
	off := 5

	csLen := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2
	if csLen > len(b)-off {
		return "", nil, ErrCorrupt
	}
	checksum = string(b[off : off+csLen])
	off += csLen

	if off+4 > len(b) {
		return "", nil, ErrCorrupt
	}
	codeLen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if codeLen < 0 || codeLen != len(b)-off { // strict framing: no trailing bytes
		return "", nil, ErrCorrupt
	}
	return checksum, b[off:], nil
}
