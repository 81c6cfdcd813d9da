package zcodec

import (
	"reflect"
	"sync"
)

// Codec encodes and decodes records, caching one compiled Layout per type.
// It is safe for concurrent use.
type Codec struct {
	Opts Options

	mu   sync.RWMutex
	plan map[reflect.Type]*plan
}

type plan struct {
	layout *Layout
	err    error
}

// New returns a Codec using opts.
func New(opts Options) *Codec {
	return &Codec{
		Opts: opts,
		plan: make(map[reflect.Type]*plan),
	}
}

var std = New(Options{})

func (c *Codec) getPlan(t reflect.Type) *plan {
	c.mu.RLock()
	if p, ok := c.plan[t]; ok {
		c.mu.RUnlock()
		return p
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check
	if p, ok := c.plan[t]; ok {
		return p
	}
	l, err := Compile(t, c.Opts)
	p := &plan{layout: l, err: err}
	c.plan[t] = p
	return p
}

// Layout returns the compiled layout of v's type. v may be a record value,
// a pointer to one, or a reflect.Type.
func (c *Codec) Layout(v any) (*Layout, error) {
	t, ok := v.(reflect.Type)
	if !ok {
		t = reflect.TypeOf(v)
	}
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, ErrNotStruct
	}
	p := c.getPlan(t)
	return p.layout, p.err
}

// Len returns the encoded size of v.
func (c *Codec) Len(v any) (int, error) {
	l, err := c.Layout(v)
	if err != nil {
		return 0, err
	}
	return l.Len(v)
}

// Encode writes v to the start of buf and returns the number of bytes written.
// A buffer that is too small fails with ErrCouldNotWrite.
func (c *Codec) Encode(buf []byte, v any) (int, error) {
	w := NewWriter(buf)
	if err := c.EncodeTo(&w, v); err != nil {
		return 0, err
	}
	return w.Len(), nil
}

// EncodeTo writes v into w.
func (c *Codec) EncodeTo(w *Writer, v any) error {
	l, err := c.Layout(v)
	if err != nil {
		return err
	}
	return l.Encode(w, v)
}

// Marshal returns the encoding of v in a buffer of exactly Len(v) bytes.
func (c *Codec) Marshal(v any) ([]byte, error) {
	return c.Append(nil, v)
}

// Append appends the encoding of v to dst.
func (c *Codec) Append(dst []byte, v any) ([]byte, error) {
	l, err := c.Layout(v)
	if err != nil {
		return dst, err
	}
	rv, err := l.value(v)
	if err != nil {
		return dst, err
	}
	n := l.len(rv)
	start := len(dst)
	if cap(dst)-start < n {
		grown := make([]byte, start, start+n)
		copy(grown, dst)
		dst = grown
	}
	w := NewWriter(dst[start : start+n])
	if err := l.encode(&w, rv); err != nil {
		return dst, err
	}
	if !w.Full() {
		return dst, ErrCouldNotWrite
	}
	return dst[:start+n], nil
}

// Decode reads one record from data into out, which must be a non-nil
// pointer to a record. Trailing bytes are left unread; use DecodeFrom to
// learn how many were consumed.
func (c *Codec) Decode(data []byte, out any) error {
	r := NewReader(data)
	return c.DecodeFrom(&r, out)
}

// DecodeFrom reads one record from r into out.
func (c *Codec) DecodeFrom(r *Reader, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return ErrNotStructPtr
	}
	l, err := c.Layout(rv.Type())
	if err != nil {
		return err
	}
	return l.Decode(r, out)
}

// Marshal encodes v with the default codec.
func Marshal(v any) ([]byte, error) { return std.Marshal(v) }

// Unmarshal decodes data into out with the default codec.
func Unmarshal(data []byte, out any) error { return std.Decode(data, out) }

// Len returns the encoded size of v with the default codec.
func Len(v any) (int, error) { return std.Len(v) }
