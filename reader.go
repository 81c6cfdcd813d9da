package zcodec

import "github.com/Hennzau/zenoh-codec/internal/common"

// Reader is a bounded read cursor over a caller-owned buffer.
// It never reads outside its window; running out of bytes yields ErrCouldNotRead.
type Reader struct {
	buf []byte
}

// Mark is a saved Reader position.
type Mark struct {
	buf []byte
}

// NewReader returns a Reader whose window is all of b.
func NewReader(b []byte) Reader {
	return Reader{buf: b}
}

// Remaining reports the unread bytes left in the window.
func (r *Reader) Remaining() int { return len(r.buf) }

// CanRead reports whether at least one byte is left.
func (r *Reader) CanRead() bool { return len(r.buf) > 0 }

// Mark saves the current position.
func (r *Reader) Mark() Mark { return Mark{buf: r.buf} }

// Rewind restores a position saved by Mark on the same Reader.
func (r *Reader) Rewind(m Mark) { r.buf = m.buf }

// PeekU8 returns the next byte without consuming it.
func (r *Reader) PeekU8() (uint8, error) {
	if len(r.buf) == 0 {
		return 0, ErrCouldNotRead
	}
	return r.buf[0], nil
}

// ReadU8 consumes one byte.
func (r *Reader) ReadU8() (uint8, error) {
	if len(r.buf) == 0 {
		return 0, ErrCouldNotRead
	}
	b := r.buf[0]
	r.buf = r.buf[1:]
	return b, nil
}

// Read consumes n bytes and returns them without copying.
func (r *Reader) Read(n int) ([]byte, error) {
	if n < 0 || n > len(r.buf) {
		return nil, ErrCouldNotRead
	}
	b := r.buf[:n:n]
	r.buf = r.buf[n:]
	return b, nil
}

// ReadInto copies up to len(dst) bytes into dst and returns the count.
// A read that would copy nothing fails.
func (r *Reader) ReadInto(dst []byte) (int, error) {
	n := copy(dst, r.buf)
	if n == 0 {
		return 0, ErrCouldNotRead
	}
	r.buf = r.buf[n:]
	return n, nil
}

// Sub carves the next n bytes into an independent Reader and advances past them.
func (r *Reader) Sub(n int) (Reader, error) {
	b, err := r.Read(n)
	if err != nil {
		return Reader{}, err
	}
	return Reader{buf: b}, nil
}

// ReadUvarint consumes an unsigned LEB128 varint.
func (r *Reader) ReadUvarint() (uint64, error) {
	x, n, err := common.ReadVarUint(r.buf)
	if err != nil {
		if err == common.ErrTruncated {
			return 0, ErrCouldNotRead
		}
		return 0, ErrCouldNotParse
	}
	r.buf = r.buf[n:]
	return x, nil
}

// ReadUint consumes an unsigned integer of the given bit width: one raw byte
// for 8 bits, a varint otherwise. Values wider than bits fail to parse.
func (r *Reader) ReadUint(bits uint) (uint64, error) {
	if bits == 8 {
		b, err := r.ReadU8()
		return uint64(b), err
	}
	x, err := r.ReadUvarint()
	if err != nil {
		return 0, err
	}
	if x > common.MaxUint(bits) {
		return 0, ErrCouldNotParse
	}
	return x, nil
}

// ReadLen consumes a platform-width length and checks it fits the window.
func (r *Reader) ReadLen() (int, error) {
	x, err := r.ReadUvarint()
	if err != nil {
		return 0, err
	}
	if x > uint64(len(r.buf)) {
		return 0, ErrCouldNotRead
	}
	return int(x), nil
}
