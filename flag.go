package zcodec

import "encoding/binary"

// Flag markers declare a flag token packing presence and size bits of the
// fields declared after it. The type selects the token width.
type (
	Flag8  struct{}
	Flag16 struct{}
	Flag32 struct{}
	Flag64 struct{}
)

// flagAlloc hands out flag bits from the most significant end.
type flagAlloc struct {
	width uint8
	used  uint8
}

func (a *flagAlloc) take(n uint8) (shift uint8, ok bool) {
	if int(a.used)+int(n) > int(a.width) {
		return 0, false
	}
	a.used += n
	return a.width - a.used, true
}

// flagBytes is the on-wire size of a flag token.
func flagBytes(width uint8) int { return int(width) / 8 }

func putFlag(w *Writer, width uint8, v uint64) error {
	var scratch [8]byte
	binary.LittleEndian.PutUint64(scratch[:], v)
	return w.WriteExact(scratch[:flagBytes(width)])
}

func readFlag(r *Reader, width uint8) (uint64, error) {
	b, err := r.Read(flagBytes(width))
	if err != nil {
		return 0, err
	}
	var scratch [8]byte
	copy(scratch[:], b)
	return binary.LittleEndian.Uint64(scratch[:]), nil
}
