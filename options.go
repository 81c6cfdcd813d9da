package zcodec

import "reflect"

// Options controls decoding behaviour.
type Options struct {
	// UnsafeStrings decodes string fields without copying; the strings alias
	// the input buffer, which must stay alive and unmodified while they are used.
	UnsafeStrings bool

	// CopyBytes copies []byte fields out of the input buffer. By default they
	// alias it.
	CopyBytes bool

	// Tags overrides the zenoh struct tag as the source of field attributes.
	Tags TagSource
}

// TagSource supplies field attributes in struct tag syntax. Marker fields
// are passed too; they are usually named "_" and told apart by type.
type TagSource interface {
	// Tag returns the attributes of field f in record type t.
	Tag(t reflect.Type, f reflect.StructField) (string, bool)
}
