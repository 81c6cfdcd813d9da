package common

import "errors"

// MaxVarintLen64 is the longest encoding of a 64-bit value.
const MaxVarintLen64 = 10

var (
	// ErrTruncated is returned when the input ends inside a varint.
	ErrTruncated = errors.New("varint truncated")
	// ErrOverflow is returned when a varint does not fit in 64 bits.
	ErrOverflow = errors.New("varint overflows 64 bits")
)

// UvarintLen returns the number of bytes PutUvarint writes for x.
func UvarintLen(x uint64) int {
	n := 1
	for x >= 0x80 {
		x >>= 7
		n++
	}
	return n
}

// PutUvarint writes x into dst and returns the bytes written.
// dst must hold at least UvarintLen(x) bytes.
func PutUvarint(dst []byte, x uint64) int {
	i := 0
	for x >= 0x80 {
		dst[i] = byte(x) | 0x80
		x >>= 7
		i++
	}
	dst[i] = byte(x)
	return i + 1
}

// WriteVarUintTo appends varint-encoded x to dst using a small stack scratch.
func WriteVarUintTo(dst []byte, x uint64) []byte {
	var scratch [MaxVarintLen64]byte
	n := PutUvarint(scratch[:], x)
	return append(dst, scratch[:n]...)
}

// ReadVarUint decodes a varint from b returning value and bytes consumed.
func ReadVarUint(b []byte) (uint64, int, error) {
	var x uint64
	var s uint
	for i, c := range b {
		if i == MaxVarintLen64 {
			return 0, 0, ErrOverflow
		}
		if i == MaxVarintLen64-1 && c > 1 {
			return 0, 0, ErrOverflow
		}
		x |= uint64(c&0x7F) << s
		if c&0x80 == 0 {
			return x, i + 1, nil
		}
		s += 7
	}
	return 0, 0, ErrTruncated
}

// MaxUint returns the largest value representable in bits (1..64).
func MaxUint(bits uint) uint64 {
	if bits >= 64 {
		return ^uint64(0)
	}
	return 1<<bits - 1
}
