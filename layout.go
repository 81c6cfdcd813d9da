package zcodec

import (
	"fmt"
	"math/bits"
	"reflect"
)

type fieldKind uint8

const (
	kindHeader fieldKind = iota
	kindFlag
	kindExtBlock
	kindU8
	kindUint
	kindArray
	kindBytes
	kindString
	kindRecord
)

var (
	headerType    = reflect.TypeOf(Header{})
	flag8Type     = reflect.TypeOf(Flag8{})
	flag16Type    = reflect.TypeOf(Flag16{})
	flag32Type    = reflect.TypeOf(Flag32{})
	flag64Type    = reflect.TypeOf(Flag64{})
	extBlockType  = reflect.TypeOf(ExtBlock{})
	byteType      = reflect.TypeOf(byte(0))
	validatorType = reflect.TypeOf((*Validator)(nil)).Elem()

	flagWidths = map[reflect.Type]uint8{flag8Type: 8, flag16Type: 16, flag32Type: 32, flag64Type: 64}
)

// Validator is implemented by header-slot types that accept only some of the
// values their bits can hold. Decoding an invalid value fails to parse.
type Validator interface {
	Valid() bool
}

// field is one resolved struct field.
type field struct {
	name     string
	index    int
	kind     fieldKind
	bits     uint // integer width
	arrayLen int
	optional bool
	elem     reflect.Type // pointee for optional fields
	nested   *Layout

	size      SizeFlavor
	sizeShift uint8
	sizeBits  uint8
	sizeSlot  Slot

	presence  PresenceFlavor
	presShift uint8
	presSlot  Slot

	slotField    bool // value lives in a header slot
	slot         Slot
	validator    bool
	validatorPtr bool

	extID     uint8
	mandatory bool
	def       reflect.Value // compared against on encode, never handed out
	defaulter bool

	unsafeStrings bool
	copyBytes     bool
}

// Layout is the compiled wire plan of one record type. It is immutable and
// safe for concurrent use.
type Layout struct {
	typ       reflect.Type
	name      string
	header    *HeaderLayout
	flagWidth uint8
	fields    []*field // wire order, extensions excluded
	block     *field
	exts      [MaxExtID + 1]*field
	extList   []*field
	declared  int
	deduced   bool
	kind      ExtKind
	compiling bool
}

// Type returns the record type.
func (l *Layout) Type() reflect.Type { return l.typ }

// Header returns the header layout, or nil when the record has no header.
func (l *Layout) Header() *HeaderLayout { return l.header }

// FlagWidth returns the flag token width in bits, or 0 without a flag.
func (l *Layout) FlagWidth() int { return int(l.flagWidth) }

// Kind returns the extension kind of the record.
func (l *Layout) Kind() ExtKind { return l.kind }

// Extensions lists the declared extension ids in declaration order.
func (l *Layout) Extensions() []ExtInfo {
	out := make([]ExtInfo, 0, len(l.extList))
	for _, e := range l.extList {
		out = append(out, ExtInfo{
			Field:     e.name,
			ID:        e.extID,
			Kind:      e.nested.kind,
			Mandatory: e.mandatory,
			Optional:  e.optional,
		})
	}
	return out
}

// ExtInfo describes a declared extension.
type ExtInfo struct {
	Field     string
	ID        uint8
	Kind      ExtKind
	Mandatory bool
	Optional  bool
}

// Compile resolves the layout of record type t. Invalid schemas are reported
// as *SchemaError.
func Compile(t reflect.Type, opts Options) (*Layout, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, ErrNotStruct
	}
	c := &compiler{opts: opts, seen: make(map[reflect.Type]*Layout)}
	return c.compile(t)
}

type compiler struct {
	opts Options
	seen map[reflect.Type]*Layout
}

func (c *compiler) tag(t reflect.Type, sf reflect.StructField) string {
	if c.opts.Tags != nil {
		if s, ok := c.opts.Tags.Tag(t, sf); ok {
			return s
		}
	}
	return sf.Tag.Get(TagName)
}

func typeName(t reflect.Type) string {
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}

func (c *compiler) compile(t reflect.Type) (*Layout, error) {
	if l, ok := c.seen[t]; ok {
		return l, nil
	}
	l := &Layout{typ: t, name: typeName(t), compiling: true}
	c.seen[t] = l

	fail := func(field, format string, args ...any) error {
		delete(c.seen, t)
		return &SchemaError{Record: l.name, Field: field, Reason: fmt.Sprintf(format, args...)}
	}

	var flags *flagAlloc
	used := make(map[string]bool)

	// slot resolves a dynamic header slot and claims it.
	slot := func(name string) (Slot, error) {
		if l.header == nil {
			return Slot{}, fmt.Errorf("header slot %s used without a header", name)
		}
		s, ok := l.header.Slot(name)
		if !ok {
			return Slot{}, fmt.Errorf("header has no slot %s", name)
		}
		if s.Fixed {
			return Slot{}, fmt.Errorf("header slot %s is fixed", name)
		}
		if used[name] {
			return Slot{}, fmt.Errorf("header slot %s used twice", name)
		}
		used[name] = true
		return s, nil
	}

	// presence resolves the presence flavour of an optional field or the block.
	presence := func(f *field, spec FieldSpec) error {
		f.presence = spec.Presence
		switch spec.Presence {
		case PresenceFlag:
			if flags == nil {
				return fmt.Errorf("flag presence without a flag")
			}
			shift, ok := flags.take(1)
			if !ok {
				return fmt.Errorf("flag bits exhausted")
			}
			f.presShift = shift
		case PresenceHeader:
			s, err := slot(spec.PresSlot)
			if err != nil {
				return err
			}
			if s.Width != 1 {
				return fmt.Errorf("presence slot %s must be 1 bit wide", s.Name)
			}
			f.presSlot = s
		}
		return nil
	}

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		spec, err := ParseTag(c.tag(t, sf))
		if err != nil {
			return nil, fail(sf.Name, "%v", err)
		}
		if spec.Skip {
			continue
		}
		ft := sf.Type

		switch ft {
		case headerType:
			if l.declared != 0 {
				return nil, fail(sf.Name, "header must be the first field")
			}
			if spec.Header == "" {
				return nil, fail(sf.Name, "header has no grammar")
			}
			h, err := ParseHeader(spec.Header)
			if err != nil {
				return nil, fail(sf.Name, "%v", err)
			}
			l.header = h
			l.declared++
			l.fields = append(l.fields, &field{name: sf.Name, index: i, kind: kindHeader})
			continue
		case flag8Type, flag16Type, flag32Type, flag64Type:
			if flags != nil {
				return nil, fail(sf.Name, "more than one flag")
			}
			width := flagWidths[ft]
			flags = &flagAlloc{width: width}
			l.flagWidth = width
			l.declared++
			l.fields = append(l.fields, &field{name: sf.Name, index: i, kind: kindFlag})
			continue
		case extBlockType:
			if l.block != nil {
				return nil, fail(sf.Name, "more than one extension block")
			}
			if spec.Presence == PresenceNone {
				return nil, fail(sf.Name, "extension block needs a presence flavour")
			}
			f := &field{name: sf.Name, index: i, kind: kindExtBlock}
			if err := presence(f, spec); err != nil {
				return nil, fail(sf.Name, "%v", err)
			}
			l.block = f
			l.declared++
			l.fields = append(l.fields, f)
			continue
		}

		if !sf.IsExported() {
			continue
		}
		l.declared++
		if l.block != nil && !spec.Ext {
			return nil, fail(sf.Name, "only extensions may follow the extension block")
		}
		if spec.Ext && l.block == nil {
			return nil, fail(sf.Name, "extension declared before the extension block")
		}

		f := &field{
			name:          sf.Name,
			index:         i,
			elem:          ft,
			unsafeStrings: c.opts.UnsafeStrings,
			copyBytes:     c.opts.CopyBytes,
		}
		if ft.Kind() == reflect.Pointer {
			f.optional = true
			f.elem = ft.Elem()
		}
		if !f.resolveKind() {
			return nil, fail(sf.Name, "unsupported type %s", ft)
		}

		if spec.Ext {
			if spec.Size != SizeNone || spec.Presence != PresenceNone || spec.Header != "" {
				return nil, fail(sf.Name, "extensions take no size, presence or header attributes")
			}
			if f.kind != kindRecord {
				return nil, fail(sf.Name, "extension must be a record")
			}
			if spec.ExtID > MaxExtID {
				return nil, fail(sf.Name, "extension id %d out of range", spec.ExtID)
			}
			if l.exts[spec.ExtID] != nil {
				return nil, fail(sf.Name, "extension id %d declared twice", spec.ExtID)
			}
			nested, err := c.compile(f.elem)
			if err != nil {
				return nil, err
			}
			if nested.compiling {
				return nil, fail(sf.Name, "recursive extension %s", nested.name)
			}
			f.nested = nested
			f.extID = spec.ExtID
			f.mandatory = spec.Mandatory
			if !f.optional {
				def := reflect.New(f.elem)
				if d, ok := def.Interface().(Defaulter); ok {
					d.SetDefault()
					f.defaulter = true
				}
				f.def = def.Elem()
			}
			l.exts[f.extID] = f
			l.extList = append(l.extList, f)
			continue
		}

		if spec.Header != "" {
			if f.optional || (f.kind != kindU8 && f.kind != kindUint) {
				return nil, fail(sf.Name, "header-valued field must be a plain unsigned integer")
			}
			if spec.Size != SizeNone || spec.Presence != PresenceNone {
				return nil, fail(sf.Name, "header-valued field takes no size or presence")
			}
			s, err := slot(spec.Header)
			if err != nil {
				return nil, fail(sf.Name, "%v", err)
			}
			f.slotField = true
			f.slot = s
			f.validator = f.elem.Implements(validatorType)
			f.validatorPtr = !f.validator && reflect.PointerTo(f.elem).Implements(validatorType)
			l.fields = append(l.fields, f)
			continue
		}

		if f.optional {
			if spec.Presence == PresenceNone {
				return nil, fail(sf.Name, "optional field needs a presence flavour")
			}
			if err := presence(f, spec); err != nil {
				return nil, fail(sf.Name, "%v", err)
			}
		} else if spec.Presence != PresenceNone {
			return nil, fail(sf.Name, "presence on a non-optional field")
		}

		switch f.kind {
		case kindU8, kindUint, kindArray:
			if spec.Size != SizeNone {
				return nil, fail(sf.Name, "%s has a fixed or self-delimiting size", f.elem)
			}
		case kindBytes, kindString:
			if spec.Size == SizeNone {
				return nil, fail(sf.Name, "%s needs a size flavour", f.elem)
			}
		case kindRecord:
			nested, err := c.compile(f.elem)
			if err != nil {
				return nil, err
			}
			if spec.Size == SizeNone && (nested.compiling || nested.deduced) {
				return nil, fail(sf.Name, "record %s needs a size flavour", nested.name)
			}
			if spec.Size.nonEmpty() && !nested.compiling && nested.declared == 0 {
				return nil, fail(sf.Name, "record %s is always empty", nested.name)
			}
			f.nested = nested
		}

		f.size = spec.Size
		switch {
		case spec.Size == SizeDeduced:
			if l.deduced {
				return nil, fail(sf.Name, "more than one deduced field")
			}
			l.deduced = true
		case spec.Size.inFlag():
			if flags == nil {
				return nil, fail(sf.Name, "flag size without a flag")
			}
			if spec.SizeBits == 0 {
				return nil, fail(sf.Name, "flag size needs at least one bit")
			}
			shift, ok := flags.take(spec.SizeBits)
			if !ok {
				return nil, fail(sf.Name, "flag bits exhausted")
			}
			f.sizeShift = shift
			f.sizeBits = spec.SizeBits
		case spec.Size.inHeader():
			s, err := slot(spec.SizeSlot)
			if err != nil {
				return nil, fail(sf.Name, "%v", err)
			}
			f.sizeSlot = s
			f.sizeBits = s.Width
		}
		l.fields = append(l.fields, f)
	}

	if l.deduced {
		last := l.fields[len(l.fields)-1]
		if last.size != SizeDeduced {
			return nil, fail(last.name, "deduced field must be the last field")
		}
	}
	l.kind = classify(l)
	l.compiling = false
	return l, nil
}

// resolveKind maps the field's value type onto a wire kind.
func (f *field) resolveKind() bool {
	t := f.elem
	switch t.Kind() {
	case reflect.Uint8:
		f.kind, f.bits = kindU8, 8
	case reflect.Uint16:
		f.kind, f.bits = kindUint, 16
	case reflect.Uint32:
		f.kind, f.bits = kindUint, 32
	case reflect.Uint64:
		f.kind, f.bits = kindUint, 64
	case reflect.Uint:
		f.kind, f.bits = kindUint, bits.UintSize
	case reflect.Array:
		if t.Elem().Kind() != reflect.Uint8 {
			return false
		}
		f.kind, f.arrayLen = kindArray, t.Len()
	case reflect.Slice:
		if t.Elem().Kind() != reflect.Uint8 {
			return false
		}
		f.kind = kindBytes
	case reflect.String:
		f.kind = kindString
	case reflect.Struct:
		switch t {
		case headerType, flag8Type, flag16Type, flag32Type, flag64Type, extBlockType:
			return false
		}
		f.kind = kindRecord
	default:
		return false
	}
	return true
}
