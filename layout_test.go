package zcodec

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

type emptyRec struct{}

type recursive struct {
	Val  uint8
	Next *recursive `zenoh:"presence=prefixed,size=prefixed"`
}

type badRecursive struct {
	Next *badRecursive `zenoh:"presence=prefixed"`
}

type kindByte uint8

func (k kindByte) Valid() bool { return k < 3 }

type validated struct {
	_    Header   `zenoh:"header=K:4|X:4=0x0"`
	Kind kindByte `zenoh:"header=K"`
}

func TestSchemaErrors(t *testing.T) {
	cases := map[string]any{
		"header not first": struct {
			A uint8
			_ Header `zenoh:"header=A"`
		}{},
		"header without grammar": struct {
			_ Header
		}{},
		"string without size": struct {
			S string
		}{},
		"size on integer": struct {
			N uint16 `zenoh:"size=prefixed"`
		}{},
		"optional without presence": struct {
			N *uint16
		}{},
		"presence on required": struct {
			N uint16 `zenoh:"presence=prefixed"`
		}{},
		"mandatory outside extension": struct {
			N uint16 `zenoh:"mandatory"`
		}{},
		"presence given twice": struct {
			_ Flag8
			N *uint16 `zenoh:"presence=flag,presence=prefixed"`
		}{},
		"deduced not last": struct {
			A []byte `zenoh:"size=deduced"`
			B uint8
		}{},
		"deduced before ext block": struct {
			A []byte   `zenoh:"size=deduced"`
			_ ExtBlock `zenoh:"presence=prefixed"`
		}{},
		"two deduced": struct {
			A []byte `zenoh:"size=deduced"`
			B []byte `zenoh:"size=deduced"`
		}{},
		"slot used twice": struct {
			_ Header `zenoh:"header=A|S:3"`
			X *uint8 `zenoh:"presence=header(A)"`
			Y *uint8 `zenoh:"presence=header(A)"`
		}{},
		"fixed slot": struct {
			_ Header `zenoh:"header=A=1"`
			X *uint8 `zenoh:"presence=header(A)"`
		}{},
		"wide presence slot": struct {
			_ Header `zenoh:"header=A:2"`
			X *uint8 `zenoh:"presence=header(A)"`
		}{},
		"missing slot": struct {
			_ Header `zenoh:"header=A"`
			X uint8  `zenoh:"header=B"`
		}{},
		"slot without header": struct {
			X uint8 `zenoh:"header=B"`
		}{},
		"flag size without flag": struct {
			S string `zenoh:"size=flag(3)"`
		}{},
		"flag presence without flag": struct {
			S *uint8 `zenoh:"presence=flag"`
		}{},
		"flag exhausted": struct {
			_ Flag8
			A string `zenoh:"size=flag(5)"`
			B string `zenoh:"size=flag(4)"`
		}{},
		"zero flag bits": struct {
			_ Flag8
			A string `zenoh:"size=eflag(0)"`
		}{},
		"two flags": struct {
			_ Flag8
			_ Flag16
		}{},
		"non-empty empty record": struct {
			_ Flag8
			E emptyRec `zenoh:"size=flag(2)"`
		}{},
		"deduced nested without size": struct {
			T tailMsg
		}{},
		"ext before block": struct {
			Q qos `zenoh:"ext=1"`
		}{},
		"field after block": struct {
			_ ExtBlock `zenoh:"presence=prefixed"`
			N uint8
		}{},
		"block without presence": struct {
			_ ExtBlock
		}{},
		"duplicate ext id": struct {
			_ ExtBlock `zenoh:"presence=prefixed"`
			A qos      `zenoh:"ext=1"`
			B stamp    `zenoh:"ext=1"`
		}{},
		"ext id out of range": struct {
			_ ExtBlock `zenoh:"presence=prefixed"`
			A qos      `zenoh:"ext=16"`
		}{},
		"ext not a record": struct {
			_ ExtBlock `zenoh:"presence=prefixed"`
			A uint8    `zenoh:"ext=1"`
		}{},
		"ext with size": struct {
			_ ExtBlock `zenoh:"presence=prefixed"`
			A qos      `zenoh:"ext=1,size=prefixed"`
		}{},
		"unsupported type": struct {
			F float64
		}{},
		"signed integer": struct {
			I int32
		}{},
		"bad tag": struct {
			A uint8 `zenoh:"colour=red"`
		}{},
		"recursive without size": badRecursive{},
	}
	for name, v := range cases {
		_, err := Compile(reflect.TypeOf(v), Options{})
		require.ErrorIs(t, err, ErrInvalidSchema, name)
		var se *SchemaError
		require.ErrorAs(t, err, &se, name)
	}
}

func TestCompileRecursive(t *testing.T) {
	v := recursive{Val: 1, Next: &recursive{Val: 2, Next: &recursive{Val: 3}}}
	data, err := Marshal(v)
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x01, 0x05, 0x02, 0x01, 0x02, 0x03, 0x00}, data)
	require.Equal(t, v, roundTrip(t, v))
}

func TestCachedSchemaError(t *testing.T) {
	type bad struct{ S string }
	c := New(Options{})
	_, err1 := c.Marshal(bad{})
	_, err2 := c.Len(bad{})
	require.ErrorIs(t, err1, ErrInvalidSchema)
	require.Same(t, err1, err2)
}

func TestSkippedFields(t *testing.T) {
	type msg struct {
		A      uint8
		hidden string
		B      string `zenoh:"-"`
		C      uint8
	}
	data, err := Marshal(msg{A: 1, hidden: "x", B: "y", C: 2})
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2}, data)
}

func TestValidator(t *testing.T) {
	var out validated
	require.NoError(t, Unmarshal([]byte{0x20}, &out))
	require.Equal(t, kindByte(2), out.Kind)
	require.ErrorIs(t, Unmarshal([]byte{0x30}, &out), ErrCouldNotParse)
	require.ErrorIs(t, Unmarshal([]byte{0x21}, &out), ErrCouldNotParse)
}

type tagTable map[string]string

func (m tagTable) Tag(t reflect.Type, f reflect.StructField) (string, bool) {
	s, ok := m[t.Name()+"."+f.Name]
	return s, ok
}

func TestTagSource(t *testing.T) {
	type plain struct {
		Key  string
		Rest []byte
	}
	c := New(Options{Tags: tagTable{
		"plain.Key":  "size=prefixed",
		"plain.Rest": "size=deduced",
	}})
	data, err := c.Marshal(plain{Key: "k", Rest: []byte{7}})
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 'k', 7}, data)

	_, err = Marshal(plain{})
	require.ErrorIs(t, err, ErrInvalidSchema)
}
