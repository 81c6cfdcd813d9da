package zcodec

import "reflect"

// ExtBlock is the marker that opens a record's trailing extension section.
// Its tag carries the presence flavour of the whole block, e.g.
//
//	_ zcodec.ExtBlock `zenoh:"presence=header(Z)"`
//
// Every field after it must be an extension (`zenoh:"ext=ID"`).
type ExtBlock struct{}

// Defaulter is implemented (on the pointer) by extension types whose default
// is not the zero value. A non-optional extension equal to its default is
// left off the wire.
type Defaulter interface {
	SetDefault()
}

// ExtKind classifies an extension payload.
type ExtKind uint8

const (
	ExtUnit   ExtKind = 0b00 << 5
	ExtU64    ExtKind = 0b01 << 5
	ExtNested ExtKind = 0b10 << 5
)

func (k ExtKind) String() string {
	switch k {
	case ExtUnit:
		return "unit"
	case ExtU64:
		return "u64"
	case ExtNested:
		return "nested"
	}
	return "invalid"
}

const (
	extIDMask    = 0b0000_1111
	extMandatory = 0b0001_0000
	extKindMask  = 0b0110_0000
	extMore      = 0b1000_0000

	// MaxExtID is the largest extension id.
	MaxExtID = extIDMask
)

// ExtHeader is the control byte that precedes every extension payload.
type ExtHeader struct {
	ID        uint8
	Kind      ExtKind
	Mandatory bool
	More      bool
}

// Byte packs h into its wire form.
func (h ExtHeader) Byte() uint8 {
	b := h.ID&extIDMask | uint8(h.Kind)&extKindMask
	if h.Mandatory {
		b |= extMandatory
	}
	if h.More {
		b |= extMore
	}
	return b
}

// DecodeExtHeader unpacks a control byte. The unused kind pattern fails to parse.
func DecodeExtHeader(b uint8) (ExtHeader, error) {
	kind := ExtKind(b & extKindMask)
	if kind != ExtUnit && kind != ExtU64 && kind != ExtNested {
		return ExtHeader{}, ErrCouldNotParse
	}
	return ExtHeader{
		ID:        b & extIDMask,
		Kind:      kind,
		Mandatory: b&extMandatory != 0,
		More:      b&extMore != 0,
	}, nil
}

// ReadExtHeader consumes and unpacks a control byte.
func ReadExtHeader(r *Reader) (ExtHeader, error) {
	b, err := r.ReadU8()
	if err != nil {
		return ExtHeader{}, err
	}
	return DecodeExtHeader(b)
}

// SkipExt discards the payload of an extension whose control byte has been read.
func SkipExt(r *Reader, kind ExtKind) error {
	switch kind {
	case ExtUnit:
		return nil
	case ExtU64:
		_, err := r.ReadUvarint()
		return err
	case ExtNested:
		n, err := r.ReadLen()
		if err != nil {
			return err
		}
		_, err = r.Read(n)
		return err
	}
	return ErrCouldNotParse
}

// Classify returns the extension kind of a record value or type.
func Classify(v any) (ExtKind, error) {
	t, ok := v.(reflect.Type)
	if !ok {
		t = reflect.TypeOf(v)
	}
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return 0, ErrNotStruct
	}
	l, err := Compile(t, Options{})
	if err != nil {
		return 0, err
	}
	return l.kind, nil
}

// classify is total: no fields is Unit, a single plain unsigned integer is
// U64, anything else is Nested.
func classify(l *Layout) ExtKind {
	switch l.declared {
	case 0:
		return ExtUnit
	case 1:
		if len(l.fields) == 1 {
			f := l.fields[0]
			if !f.optional && !f.slotField && (f.kind == kindU8 || f.kind == kindUint) {
				return ExtU64
			}
		}
	}
	return ExtNested
}
