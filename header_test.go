package zcodec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHeader(t *testing.T) {
	h, err := ParseHeader("ID:4=0xA|I:2|U:2")
	require.NoError(t, err)
	require.Len(t, h.Slots(), 3)
	require.Equal(t, uint8(0xA0), h.Base())

	id, ok := h.Slot("ID")
	require.True(t, ok)
	require.Equal(t, Slot{Name: "ID", Width: 4, Shift: 4, Mask: 0xF0, Fixed: true, Value: 0xA}, id)

	u, ok := h.Slot("U")
	require.True(t, ok)
	require.Equal(t, uint8(0x03), u.Mask)
	require.Equal(t, uint8(3), u.Max())

	c, ok := h.Const("ID")
	require.True(t, ok)
	require.Equal(t, uint8(0xA), c)
	_, ok = h.Const("I")
	require.False(t, ok)

	b := h.Base()
	b = mustSlot(t, h, "I").Put(b, 2)
	b = u.Put(b, 2)
	require.Equal(t, uint8(0xAA), b)
	require.Equal(t, uint8(2), mustSlot(t, h, "I").Get(b))

	require.True(t, h.Match(0xAF))
	require.NoError(t, h.Check(0xA0))
	require.ErrorIs(t, h.Check(0x5A), ErrCouldNotParse)
}

func TestParseHeaderDefaults(t *testing.T) {
	h, err := ParseHeader("Z|N|M|ID:5=0x1D")
	require.NoError(t, err)
	z := mustSlot(t, h, "Z")
	require.Equal(t, uint8(1), z.Width)
	require.Equal(t, uint8(0x80), z.Mask)
	require.Equal(t, uint8(0x1D), h.Base())
	require.Equal(t, "Z|N|M|ID:5=0x1D", h.Grammar())
}

func TestParseHeaderErrors(t *testing.T) {
	for _, grammar := range []string{
		"",
		"A|A",
		"A:5|B:4",
		"A:0",
		"A:9",
		":3",
		"ID:2=0x4",
		"ID:2=zz",
	} {
		_, err := ParseHeader(grammar)
		require.Error(t, err, grammar)
	}
}

func TestParseTag(t *testing.T) {
	cases := []struct {
		tag  string
		want FieldSpec
	}{
		{"", FieldSpec{}},
		{"-", FieldSpec{Skip: true}},
		{"size=prefixed", FieldSpec{Size: SizePrefixed}},
		{"size=deduced", FieldSpec{Size: SizeDeduced}},
		{"size=flag(3)", FieldSpec{Size: SizeNonEmptyFlag, SizeBits: 3}},
		{"size=eflag(4)", FieldSpec{Size: SizeMaybeEmptyFlag, SizeBits: 4}},
		{"size=flag(2),maybe_empty", FieldSpec{Size: SizeMaybeEmptyFlag, SizeBits: 2}},
		{"size=header(S)", FieldSpec{Size: SizeNonEmptyHeader, SizeSlot: "S"}},
		{"presence=header(A), size=header(S), maybe_empty",
			FieldSpec{Size: SizeMaybeEmptyHeader, SizeSlot: "S", Presence: PresenceHeader, PresSlot: "A"}},
		{"presence=flag", FieldSpec{Presence: PresenceFlag}},
		{"presence=prefixed", FieldSpec{Presence: PresencePrefixed}},
		{"header=ID:4=0xA|I:2|U:2", FieldSpec{Header: "ID:4=0xA|I:2|U:2"}},
		{"ext=0x2,mandatory", FieldSpec{Ext: true, ExtID: 2, Mandatory: true}},
	}
	for _, c := range cases {
		got, err := ParseTag(c.tag)
		require.NoError(t, err, c.tag)
		require.Equal(t, c.want, got, c.tag)
	}

	for _, bad := range []string{
		"size=sideways",
		"size=flag(x)",
		"size=header()",
		"presence=maybe",
		"maybe_empty",
		"size=prefixed,maybe_empty",
		"ext=zz",
		"colour=red",
		"mandatory",
		"size=prefixed,mandatory",
		"presence=flag,presence=prefixed",
		"size=prefixed,size=deduced",
		"ext=1,ext=2",
	} {
		_, err := ParseTag(bad)
		require.Error(t, err, bad)
	}
}

func mustSlot(t *testing.T, h *HeaderLayout, name string) Slot {
	t.Helper()
	s, ok := h.Slot(name)
	require.True(t, ok, name)
	return s
}
