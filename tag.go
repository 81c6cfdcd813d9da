package zcodec

import (
	"fmt"
	"strconv"
	"strings"
)

// TagName is the struct tag key holding field attributes.
const TagName = "zenoh"

// ParseTag parses field attributes, e.g.
//
//	size=prefixed
//	presence=header(A),size=header(S),maybe_empty
//	presence=flag,size=flag(4)
//	header=I
//	ext=0x2,mandatory
func ParseTag(tag string) (FieldSpec, error) {
	var spec FieldSpec
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return spec, nil
	}
	if tag == "-" {
		spec.Skip = true
		return spec, nil
	}
	maybeEmpty := false
	seen := make(map[string]bool, 4)
	for _, item := range strings.Split(tag, ",") {
		item = strings.TrimSpace(item)
		key, val, _ := strings.Cut(item, "=")
		if seen[key] {
			return spec, fmt.Errorf("attribute %q given twice", key)
		}
		seen[key] = true
		switch key {
		case "size":
			fn, arg := splitCall(val)
			switch fn {
			case "prefixed", "plain":
				spec.Size = SizePrefixed
			case "deduced", "remain":
				spec.Size = SizeDeduced
			case "none":
				spec.Size = SizeNone
			case "flag", "eflag":
				n, err := strconv.ParseUint(arg, 0, 8)
				if err != nil {
					return spec, fmt.Errorf("size %s needs a bit count, got %q", fn, arg)
				}
				spec.Size = SizeNonEmptyFlag
				if fn == "eflag" {
					spec.Size = SizeMaybeEmptyFlag
				}
				spec.SizeBits = uint8(n)
			case "header":
				if arg == "" {
					return spec, fmt.Errorf("size header needs a slot name")
				}
				spec.Size = SizeNonEmptyHeader
				spec.SizeSlot = arg
			default:
				return spec, fmt.Errorf("unknown size flavour %q", val)
			}
		case "presence":
			fn, arg := splitCall(val)
			switch fn {
			case "prefixed", "plain":
				spec.Presence = PresencePrefixed
			case "flag":
				spec.Presence = PresenceFlag
			case "header":
				if arg == "" {
					return spec, fmt.Errorf("presence header needs a slot name")
				}
				spec.Presence = PresenceHeader
				spec.PresSlot = arg
			default:
				return spec, fmt.Errorf("unknown presence flavour %q", val)
			}
		case "maybe_empty":
			maybeEmpty = true
		case "header":
			if val == "" {
				return spec, fmt.Errorf("header needs a slot or grammar")
			}
			spec.Header = val
		case "ext":
			id, err := strconv.ParseUint(val, 0, 8)
			if err != nil {
				return spec, fmt.Errorf("invalid ext id %q", val)
			}
			spec.Ext = true
			spec.ExtID = uint8(id)
		case "mandatory":
			spec.Mandatory = true
		default:
			return spec, fmt.Errorf("unknown attribute %q", item)
		}
	}
	if spec.Mandatory && !spec.Ext {
		return spec, fmt.Errorf("mandatory applies to extensions only")
	}
	if maybeEmpty {
		switch spec.Size {
		case SizeNonEmptyFlag:
			spec.Size = SizeMaybeEmptyFlag
		case SizeNonEmptyHeader:
			spec.Size = SizeMaybeEmptyHeader
		case SizeMaybeEmptyFlag:
		default:
			return spec, fmt.Errorf("maybe_empty needs a flag or header size")
		}
	}
	return spec, nil
}

// splitCall splits "header(S)" into "header" and "S".
func splitCall(s string) (string, string) {
	s = strings.TrimSpace(s)
	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return s, ""
	}
	return s[:open], strings.TrimSpace(s[open+1 : len(s)-1])
}
