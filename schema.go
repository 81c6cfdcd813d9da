package zcodec

// SizeFlavor is how a variable-length field communicates its length.
type SizeFlavor uint8

const (
	SizeNone SizeFlavor = iota
	SizePrefixed
	SizeDeduced
	SizeNonEmptyFlag
	SizeMaybeEmptyFlag
	SizeNonEmptyHeader
	SizeMaybeEmptyHeader
)

func (s SizeFlavor) String() string {
	switch s {
	case SizeNone:
		return "none"
	case SizePrefixed:
		return "prefixed"
	case SizeDeduced:
		return "deduced"
	case SizeNonEmptyFlag:
		return "flag"
	case SizeMaybeEmptyFlag:
		return "eflag"
	case SizeNonEmptyHeader:
		return "header"
	case SizeMaybeEmptyHeader:
		return "eheader"
	}
	return "unknown"
}

func (s SizeFlavor) inFlag() bool   { return s == SizeNonEmptyFlag || s == SizeMaybeEmptyFlag }
func (s SizeFlavor) inHeader() bool { return s == SizeNonEmptyHeader || s == SizeMaybeEmptyHeader }
func (s SizeFlavor) nonEmpty() bool { return s == SizeNonEmptyFlag || s == SizeNonEmptyHeader }

// PresenceFlavor is how an optional field communicates whether it is present.
type PresenceFlavor uint8

const (
	PresenceNone PresenceFlavor = iota
	PresencePrefixed
	PresenceFlag
	PresenceHeader
)

func (p PresenceFlavor) String() string {
	switch p {
	case PresenceNone:
		return "none"
	case PresencePrefixed:
		return "prefixed"
	case PresenceFlag:
		return "flag"
	case PresenceHeader:
		return "header"
	}
	return "unknown"
}

// FieldSpec is the declared schema of one field before resolution.
type FieldSpec struct {
	Size      SizeFlavor
	SizeBits  uint8  // flag flavours
	SizeSlot  string // header flavours
	Presence  PresenceFlavor
	PresSlot  string // header presence
	Header    string // grammar on a Header marker, slot name on a header-valued field
	Ext       bool
	ExtID     uint8
	Mandatory bool
	Skip      bool
}
