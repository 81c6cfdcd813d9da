package zcodec

import "github.com/Hennzau/zenoh-codec/internal/common"

// Writer is a bounded write sink over a caller-owned buffer.
// It never writes outside its window; running out of room yields ErrCouldNotWrite.
type Writer struct {
	buf []byte
	n   int
}

// NewWriter returns a Writer whose window is all of buf.
func NewWriter(buf []byte) Writer {
	return Writer{buf: buf}
}

// Remaining reports the free bytes left in the window.
func (w *Writer) Remaining() int { return len(w.buf) - w.n }

// Len reports the bytes written so far.
func (w *Writer) Len() int { return w.n }

// Bytes returns the written part of the window.
func (w *Writer) Bytes() []byte { return w.buf[:w.n] }

// WriteU8 writes one byte.
func (w *Writer) WriteU8(b uint8) error {
	if w.n >= len(w.buf) {
		return ErrCouldNotWrite
	}
	w.buf[w.n] = b
	w.n++
	return nil
}

// Write copies as much of src as fits and returns the count.
// An empty src is a no-op; a full window fails.
func (w *Writer) Write(src []byte) (int, error) {
	if len(src) == 0 {
		return 0, nil
	}
	n := copy(w.buf[w.n:], src)
	if n == 0 {
		return 0, ErrCouldNotWrite
	}
	w.n += n
	return n, nil
}

// WriteExact writes all of src or fails.
func (w *Writer) WriteExact(src []byte) error {
	n, err := w.Write(src)
	if err != nil {
		return err
	}
	if n < len(src) {
		return ErrCouldNotWrite
	}
	return nil
}

// WriteString writes all bytes of s or fails.
func (w *Writer) WriteString(s string) error {
	if len(s) == 0 {
		return nil
	}
	if len(s) > w.Remaining() {
		return ErrCouldNotWrite
	}
	w.n += copy(w.buf[w.n:], s)
	return nil
}

// WriteSlot lends fn a region of n bytes and keeps the prefix fn reports as written.
func (w *Writer) WriteSlot(n int, fn func([]byte) int) ([]byte, error) {
	if n < 0 || n > w.Remaining() {
		return nil, ErrCouldNotWrite
	}
	written := fn(w.buf[w.n : w.n+n])
	if written < 0 || written > n {
		return nil, ErrCouldNotWrite
	}
	slot := w.buf[w.n : w.n+written]
	w.n += written
	return slot, nil
}

// Sub reserves the next n bytes as an independent Writer and advances past them.
// The caller must fill the child exactly; see Full.
func (w *Writer) Sub(n int) (Writer, error) {
	if n < 0 || n > w.Remaining() {
		return Writer{}, ErrCouldNotWrite
	}
	sub := Writer{buf: w.buf[w.n : w.n+n : w.n+n]}
	w.n += n
	return sub, nil
}

// Full reports whether the whole window has been written.
func (w *Writer) Full() bool { return w.n == len(w.buf) }

// WriteUvarint writes x as an unsigned LEB128 varint.
func (w *Writer) WriteUvarint(x uint64) error {
	if common.UvarintLen(x) > w.Remaining() {
		return ErrCouldNotWrite
	}
	w.n += common.PutUvarint(w.buf[w.n:], x)
	return nil
}

// WriteUint writes x with the width rule of ReadUint.
func (w *Writer) WriteUint(bits uint, x uint64) error {
	if bits == 8 {
		return w.WriteU8(uint8(x))
	}
	return w.WriteUvarint(x)
}

// UvarintLen returns the encoded size of x as a varint.
func UvarintLen(x uint64) int { return common.UvarintLen(x) }

// UintLen returns the encoded size of x for the given bit width.
func UintLen(bits uint, x uint64) int {
	if bits == 8 {
		return 1
	}
	return common.UvarintLen(x)
}
