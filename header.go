package zcodec

import (
	"fmt"
	"strconv"
	"strings"
)

// Header is the marker type that declares a record's header byte. It must be
// the first field and carries the slot grammar in its tag, e.g.
//
//	_ zcodec.Header `zenoh:"header=ID:4=0xA|I:2|U:2"`
type Header struct{}

// Slot is one named bit range of a header byte.
type Slot struct {
	Name  string
	Width uint8
	Shift uint8
	Mask  uint8
	Fixed bool
	Value uint8 // constant for fixed slots
}

// Get extracts the slot from a header byte.
func (s Slot) Get(b uint8) uint8 { return (b & s.Mask) >> s.Shift }

// Put returns b with the slot set to v. v must fit the slot.
func (s Slot) Put(b, v uint8) uint8 { return b&^s.Mask | (v<<s.Shift)&s.Mask }

// Max is the largest value the slot holds.
func (s Slot) Max() uint8 { return s.Mask >> s.Shift }

// HeaderLayout is a parsed header grammar. Slots are laid out from the most
// significant bit down in declaration order.
type HeaderLayout struct {
	grammar string
	slots   []Slot
	base    uint8
	fixed   uint8 // mask of all fixed slots
}

// ParseHeader parses a grammar such as "Z|E|T:3|ID:3=0x3". Each slot is
// NAME[:WIDTH][=CONST]; the width defaults to 1 and widths sum to at most 8.
func ParseHeader(grammar string) (*HeaderLayout, error) {
	h := &HeaderLayout{grammar: grammar}
	if strings.TrimSpace(grammar) == "" {
		return nil, fmt.Errorf("empty header grammar")
	}
	used := 0
	for _, part := range strings.Split(grammar, "|") {
		part = strings.TrimSpace(part)
		name, rest, hasConst := strings.Cut(part, "=")
		name, widthStr, hasWidth := strings.Cut(name, ":")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("header slot %q has no name", part)
		}
		if _, dup := h.Slot(name); dup {
			return nil, fmt.Errorf("header slot %s declared twice", name)
		}
		width := 1
		if hasWidth {
			w, err := strconv.Atoi(strings.TrimSpace(widthStr))
			if err != nil || w < 1 || w > 8 {
				return nil, fmt.Errorf("header slot %s has invalid width %q", name, widthStr)
			}
			width = w
		}
		used += width
		if used > 8 {
			return nil, fmt.Errorf("header slots use %d bits, more than 8", used)
		}
		shift := uint8(8 - used)
		s := Slot{
			Name:  name,
			Width: uint8(width),
			Shift: shift,
			Mask:  uint8((1<<width - 1) << shift),
		}
		if hasConst {
			v, err := strconv.ParseUint(strings.TrimSpace(rest), 0, 8)
			if err != nil || v > uint64(s.Max()) {
				return nil, fmt.Errorf("header slot %s constant %q does not fit %d bits", name, rest, width)
			}
			s.Fixed = true
			s.Value = uint8(v)
			h.base = s.Put(h.base, s.Value)
			h.fixed |= s.Mask
		}
		h.slots = append(h.slots, s)
	}
	return h, nil
}

// Grammar returns the source grammar.
func (h *HeaderLayout) Grammar() string { return h.grammar }

// Slots returns the slots in declaration order.
func (h *HeaderLayout) Slots() []Slot { return h.slots }

// Slot looks a slot up by name.
func (h *HeaderLayout) Slot(name string) (Slot, bool) {
	for _, s := range h.slots {
		if s.Name == name {
			return s, true
		}
	}
	return Slot{}, false
}

// Base is the header byte with every fixed slot set and every dynamic slot clear.
func (h *HeaderLayout) Base() uint8 { return h.base }

// Const returns the constant of a fixed slot.
func (h *HeaderLayout) Const(name string) (uint8, bool) {
	s, ok := h.Slot(name)
	if !ok || !s.Fixed {
		return 0, false
	}
	return s.Value, true
}

// Match reports whether b carries this layout's fixed slot values.
func (h *HeaderLayout) Match(b uint8) bool { return b&h.fixed == h.base }

// Check validates the fixed slots of b.
func (h *HeaderLayout) Check(b uint8) error {
	if !h.Match(b) {
		return ErrCouldNotParse
	}
	return nil
}
