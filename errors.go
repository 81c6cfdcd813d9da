package zcodec

import (
	"errors"
	"fmt"
)

// Wire errors. Every encode or decode call fails fast on the first one.
var (
	ErrCouldNotRead              = errors.New("zcodec: could not read")
	ErrCouldNotWrite             = errors.New("zcodec: could not write")
	ErrCouldNotParse             = errors.New("zcodec: could not parse")
	ErrFieldExceedsReservedSize  = errors.New("zcodec: field exceeds reserved size")
	ErrMissingMandatoryExtension = errors.New("zcodec: missing mandatory extension")
)

// API errors.
var (
	ErrNotStruct     = errors.New("zcodec: expected struct")
	ErrNotStructPtr  = errors.New("zcodec: expected pointer to struct")
	ErrUnsupported   = errors.New("zcodec: unsupported type")
	ErrInvalidSchema = errors.New("zcodec: invalid schema")
)

// SchemaError reports a record type that can never be encoded or decoded.
type SchemaError struct {
	Record string
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("zcodec: invalid schema %s: %s", e.Record, e.Reason)
	}
	return fmt.Sprintf("zcodec: invalid schema %s.%s: %s", e.Record, e.Field, e.Reason)
}

func (e *SchemaError) Unwrap() error { return ErrInvalidSchema }

// FieldError attaches the record and field being processed to a wire error.
type FieldError struct {
	Record string
	Field  string
	Err    error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s.%s: %v", e.Record, e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

func fieldErr(l *Layout, f *field, err error) error {
	if err == nil {
		return nil
	}
	var fe *FieldError
	if errors.As(err, &fe) {
		// keep the innermost path
		return err
	}
	return &FieldError{Record: l.name, Field: f.name, Err: err}
}
