package zcodec

import (
	"reflect"

	"github.com/Hennzau/zenoh-codec/internal/common"
)

// Len returns the exact number of bytes Encode writes for v.
func (l *Layout) Len(v any) (int, error) {
	rv, err := l.value(v)
	if err != nil {
		return 0, err
	}
	return l.len(rv), nil
}

// Encode writes v into w.
func (l *Layout) Encode(w *Writer, v any) error {
	rv, err := l.value(v)
	if err != nil {
		return err
	}
	return l.encode(w, rv)
}

func (l *Layout) value(v any) (reflect.Value, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return reflect.Value{}, ErrNotStruct
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return reflect.Value{}, ErrNotStruct
	}
	if rv.Type() != l.typ {
		return reflect.Value{}, ErrUnsupported
	}
	return rv, nil
}

func (l *Layout) len(rv reflect.Value) int {
	n := 0
	for _, f := range l.fields {
		switch f.kind {
		case kindHeader:
			n++
			continue
		case kindFlag:
			n += flagBytes(l.flagWidth)
			continue
		case kindExtBlock:
			if f.presence == PresencePrefixed {
				n++
			}
			for _, e := range l.extList {
				if ev, ok := e.emitted(rv); ok {
					n += 1 + e.extLen(ev)
				}
			}
			continue
		}
		if f.slotField {
			continue
		}
		fv := rv.Field(f.index)
		if f.optional {
			if f.presence == PresencePrefixed {
				n++
			}
			if fv.IsNil() {
				continue
			}
			fv = fv.Elem()
		}
		pl := f.payloadLen(fv)
		if f.size == SizePrefixed {
			n += common.UvarintLen(uint64(pl))
		}
		n += pl
	}
	return n
}

func (f *field) payloadLen(fv reflect.Value) int {
	switch f.kind {
	case kindU8:
		return 1
	case kindUint:
		return common.UvarintLen(fv.Uint())
	case kindArray:
		return f.arrayLen
	case kindBytes, kindString:
		return fv.Len()
	case kindRecord:
		return f.nested.len(fv)
	}
	return 0
}

// emitted returns the extension value when it goes on the wire: optional
// extensions when set, the others when they differ from their default.
func (f *field) emitted(rv reflect.Value) (reflect.Value, bool) {
	fv := rv.Field(f.index)
	if f.optional {
		if fv.IsNil() {
			return reflect.Value{}, false
		}
		return fv.Elem(), true
	}
	if reflect.DeepEqual(fv.Interface(), f.def.Interface()) {
		return reflect.Value{}, false
	}
	return fv, true
}

func (f *field) extLen(ev reflect.Value) int {
	switch f.nested.kind {
	case ExtU64:
		return common.UvarintLen(ev.Field(f.nested.fields[0].index).Uint())
	case ExtNested:
		n := f.nested.len(ev)
		return common.UvarintLen(uint64(n)) + n
	}
	return 0
}

func (l *Layout) emittedCount(rv reflect.Value) int {
	n := 0
	for _, e := range l.extList {
		if _, ok := e.emitted(rv); ok {
			n++
		}
	}
	return n
}

// storedSize maps a payload length onto the value kept in flag or header bits.
func (f *field) storedSize(n int) (uint64, error) {
	if f.size.nonEmpty() {
		if n == 0 {
			return 0, ErrFieldExceedsReservedSize
		}
		n--
	}
	if uint64(n) > common.MaxUint(uint(f.sizeBits)) {
		return 0, ErrFieldExceedsReservedSize
	}
	return uint64(n), nil
}

// prepare computes the header byte and flag token before anything is written.
func (l *Layout) prepare(rv reflect.Value) (uint8, uint64, error) {
	var hdr uint8
	var flag uint64
	if l.header != nil {
		hdr = l.header.Base()
	}
	for _, f := range l.fields {
		switch f.kind {
		case kindHeader, kindFlag:
			continue
		case kindExtBlock:
			if l.emittedCount(rv) > 0 {
				hdr, flag = f.markPresent(hdr, flag)
			}
			continue
		}
		fv := rv.Field(f.index)
		if f.slotField {
			x := fv.Uint()
			if x > uint64(f.slot.Max()) {
				return 0, 0, fieldErr(l, f, ErrFieldExceedsReservedSize)
			}
			hdr = f.slot.Put(hdr, uint8(x))
			continue
		}
		if f.optional {
			if fv.IsNil() {
				continue
			}
			hdr, flag = f.markPresent(hdr, flag)
			fv = fv.Elem()
		}
		if !f.size.inFlag() && !f.size.inHeader() {
			continue
		}
		stored, err := f.storedSize(f.payloadLen(fv))
		if err != nil {
			return 0, 0, fieldErr(l, f, err)
		}
		if f.size.inFlag() {
			flag |= stored << f.sizeShift
		} else {
			hdr = f.sizeSlot.Put(hdr, uint8(stored))
		}
	}
	return hdr, flag, nil
}

func (f *field) markPresent(hdr uint8, flag uint64) (uint8, uint64) {
	switch f.presence {
	case PresenceHeader:
		hdr |= f.presSlot.Mask
	case PresenceFlag:
		flag |= 1 << f.presShift
	}
	return hdr, flag
}

func (l *Layout) encode(w *Writer, rv reflect.Value) error {
	hdr, flag, err := l.prepare(rv)
	if err != nil {
		return err
	}
	for _, f := range l.fields {
		switch f.kind {
		case kindHeader:
			err = w.WriteU8(hdr)
		case kindFlag:
			err = putFlag(w, l.flagWidth, flag)
		case kindExtBlock:
			err = l.encodeExts(w, rv, f)
		default:
			err = l.encodeField(w, f, rv.Field(f.index))
		}
		if err != nil {
			return fieldErr(l, f, err)
		}
	}
	return nil
}

func (l *Layout) encodeField(w *Writer, f *field, fv reflect.Value) error {
	if f.slotField {
		return nil
	}
	if f.optional {
		present := !fv.IsNil()
		if f.presence == PresencePrefixed {
			var b uint8
			if present {
				b = 1
			}
			if err := w.WriteU8(b); err != nil {
				return err
			}
		}
		if !present {
			return nil
		}
		fv = fv.Elem()
	}
	if f.size == SizeNone || f.size == SizeDeduced {
		return f.encodePayload(w, fv)
	}
	n := f.payloadLen(fv)
	if f.size == SizePrefixed {
		if err := w.WriteUvarint(uint64(n)); err != nil {
			return err
		}
	}
	sub, err := w.Sub(n)
	if err != nil {
		return err
	}
	if err := f.encodePayload(&sub, fv); err != nil {
		return err
	}
	if !sub.Full() {
		return ErrCouldNotWrite
	}
	return nil
}

func (f *field) encodePayload(w *Writer, fv reflect.Value) error {
	switch f.kind {
	case kindU8:
		return w.WriteU8(uint8(fv.Uint()))
	case kindUint:
		return w.WriteUvarint(fv.Uint())
	case kindArray:
		if fv.CanAddr() {
			return w.WriteExact(fv.Bytes())
		}
		for i := 0; i < f.arrayLen; i++ {
			if err := w.WriteU8(uint8(fv.Index(i).Uint())); err != nil {
				return err
			}
		}
		return nil
	case kindBytes:
		return w.WriteExact(fv.Bytes())
	case kindString:
		return w.WriteString(fv.String())
	case kindRecord:
		return f.nested.encode(w, fv)
	}
	return ErrUnsupported
}

func (l *Layout) encodeExts(w *Writer, rv reflect.Value, blk *field) error {
	left := l.emittedCount(rv)
	if blk.presence == PresencePrefixed {
		var b uint8
		if left > 0 {
			b = 1
		}
		if err := w.WriteU8(b); err != nil {
			return err
		}
	}
	for _, e := range l.extList {
		ev, ok := e.emitted(rv)
		if !ok {
			continue
		}
		left--
		if err := e.encodeExt(w, ev, left > 0); err != nil {
			return fieldErr(l, e, err)
		}
	}
	return nil
}

func (f *field) encodeExt(w *Writer, ev reflect.Value, more bool) error {
	h := ExtHeader{ID: f.extID, Kind: f.nested.kind, Mandatory: f.mandatory, More: more}
	if err := w.WriteU8(h.Byte()); err != nil {
		return err
	}
	switch f.nested.kind {
	case ExtU64:
		return w.WriteUvarint(ev.Field(f.nested.fields[0].index).Uint())
	case ExtNested:
		n := f.nested.len(ev)
		if err := w.WriteUvarint(uint64(n)); err != nil {
			return err
		}
		sub, err := w.Sub(n)
		if err != nil {
			return err
		}
		if err := f.nested.encode(&sub, ev); err != nil {
			return err
		}
		if !sub.Full() {
			return ErrCouldNotWrite
		}
	}
	return nil
}
