package zcodec

import (
	"reflect"
	"unicode/utf8"
	"unsafe"

	"github.com/Hennzau/zenoh-codec/internal/common"
)

// Decode reads a record from r into out, which must be a non-nil pointer to
// the layout's type.
func (l *Layout) Decode(r *Reader, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return ErrNotStructPtr
	}
	rv = rv.Elem()
	if rv.Type() != l.typ {
		return ErrUnsupported
	}
	return l.decode(r, rv)
}

func (l *Layout) decode(r *Reader, rv reflect.Value) error {
	var hdr uint8
	var flag uint64
	for _, f := range l.fields {
		var err error
		switch f.kind {
		case kindHeader:
			if hdr, err = r.ReadU8(); err == nil {
				err = l.header.Check(hdr)
			}
		case kindFlag:
			flag, err = readFlag(r, l.flagWidth)
		case kindExtBlock:
			err = l.decodeExts(r, rv, f, hdr, flag)
		default:
			err = l.decodeField(r, f, rv.Field(f.index), hdr, flag)
		}
		if err != nil {
			return fieldErr(l, f, err)
		}
	}
	return nil
}

func (f *field) present(r *Reader, hdr uint8, flag uint64) (bool, error) {
	switch f.presence {
	case PresencePrefixed:
		b, err := r.ReadU8()
		if err != nil {
			return false, err
		}
		if b > 1 {
			return false, ErrCouldNotParse
		}
		return b == 1, nil
	case PresenceFlag:
		return flag>>f.presShift&1 == 1, nil
	case PresenceHeader:
		return hdr&f.presSlot.Mask != 0, nil
	}
	return true, nil
}

func (l *Layout) decodeField(r *Reader, f *field, fv reflect.Value, hdr uint8, flag uint64) error {
	if f.slotField {
		fv.SetUint(uint64(f.slot.Get(hdr)))
		return f.validate(fv)
	}
	if !f.optional {
		return f.decodeSized(r, fv, hdr, flag)
	}
	ok, err := f.present(r, hdr, flag)
	if err != nil {
		return err
	}
	if !ok {
		fv.Set(reflect.Zero(fv.Type()))
		return nil
	}
	p := reflect.New(f.elem)
	if err := f.decodeSized(r, p.Elem(), hdr, flag); err != nil {
		return err
	}
	fv.Set(p)
	return nil
}

func (f *field) validate(fv reflect.Value) error {
	var v Validator
	switch {
	case f.validator:
		v = fv.Interface().(Validator)
	case f.validatorPtr && fv.CanAddr():
		v = fv.Addr().Interface().(Validator)
	default:
		return nil
	}
	if !v.Valid() {
		return ErrCouldNotParse
	}
	return nil
}

func (f *field) decodeSized(r *Reader, fv reflect.Value, hdr uint8, flag uint64) error {
	var n uint64
	switch {
	case f.size == SizePrefixed:
		m, err := r.ReadLen()
		if err != nil {
			return err
		}
		n = uint64(m)
	case f.size.inFlag():
		n = flag >> f.sizeShift & common.MaxUint(uint(f.sizeBits))
	case f.size.inHeader():
		n = uint64(f.sizeSlot.Get(hdr))
	default:
		return f.decodePayload(r, fv)
	}
	if f.size.nonEmpty() {
		if n >= uint64(r.Remaining()) {
			return ErrCouldNotRead
		}
		n++
	}
	if n > uint64(r.Remaining()) {
		return ErrCouldNotRead
	}
	sub, err := r.Sub(int(n))
	if err != nil {
		return err
	}
	return f.decodePayload(&sub, fv)
}

func (f *field) decodePayload(r *Reader, fv reflect.Value) error {
	switch f.kind {
	case kindU8, kindUint:
		x, err := r.ReadUint(f.bits)
		if err != nil {
			return err
		}
		fv.SetUint(x)
	case kindArray:
		b, err := r.Read(f.arrayLen)
		if err != nil {
			return err
		}
		if fv.Type().Elem() == byteType {
			reflect.Copy(fv, reflect.ValueOf(b))
			return nil
		}
		for i, c := range b {
			fv.Index(i).SetUint(uint64(c))
		}
	case kindBytes:
		b, _ := r.Read(r.Remaining())
		switch {
		case len(b) == 0:
			b = nil
		case f.copyBytes:
			b = append([]byte(nil), b...)
		}
		fv.SetBytes(b)
	case kindString:
		b, _ := r.Read(r.Remaining())
		if !utf8.Valid(b) {
			return ErrCouldNotParse
		}
		if f.unsafeStrings && len(b) > 0 {
			fv.SetString(unsafe.String(&b[0], len(b)))
		} else {
			fv.SetString(string(b))
		}
	case kindRecord:
		return f.nested.decode(r, fv)
	default:
		return ErrUnsupported
	}
	return nil
}

func (l *Layout) decodeExts(r *Reader, rv reflect.Value, blk *field, hdr uint8, flag uint64) error {
	for _, e := range l.extList {
		fv := rv.Field(e.index)
		fv.Set(reflect.Zero(fv.Type()))
		if e.defaulter {
			fv.Addr().Interface().(Defaulter).SetDefault()
		}
	}
	more, err := blk.present(r, hdr, flag)
	if err != nil {
		return err
	}
	for more {
		h, err := ReadExtHeader(r)
		if err != nil {
			return err
		}
		more = h.More
		e := l.exts[h.ID]
		if e == nil {
			if h.Mandatory {
				return ErrMissingMandatoryExtension
			}
			if err := SkipExt(r, h.Kind); err != nil {
				return err
			}
			continue
		}
		if err := e.decodeExt(r, h, rv.Field(e.index)); err != nil {
			return fieldErr(l, e, err)
		}
	}
	return nil
}

func (f *field) decodeExt(r *Reader, h ExtHeader, fv reflect.Value) error {
	if h.Kind != f.nested.kind {
		return ErrCouldNotParse
	}
	p := reflect.New(f.elem)
	switch h.Kind {
	case ExtU64:
		nf := f.nested.fields[0]
		x, err := r.ReadUvarint()
		if err != nil {
			return err
		}
		if x > common.MaxUint(nf.bits) {
			return ErrCouldNotParse
		}
		p.Elem().Field(nf.index).SetUint(x)
	case ExtNested:
		n, err := r.ReadLen()
		if err != nil {
			return err
		}
		sub, err := r.Sub(n)
		if err != nil {
			return err
		}
		if err := f.nested.decode(&sub, p.Elem()); err != nil {
			return err
		}
	}
	if f.optional {
		fv.Set(p)
	} else {
		fv.Set(p.Elem())
	}
	return nil
}
