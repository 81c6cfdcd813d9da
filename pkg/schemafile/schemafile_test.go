package schemafile

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	zcodec "github.com/Hennzau/zenoh-codec"
	"github.com/stretchr/testify/require"
)

const doc = `
records:
  Push:
    header: "Z|N|ID:6=0x1D"
    extensions: header(Z)
    fields:
      Key: size=prefixed
      Suffix: presence=header(N),size=prefixed
      QoS: ext=1
  Prio:
    fields: {}
`

type Prio struct{ Level uint8 }

type Push struct {
	_      zcodec.Header
	Key    string
	Suffix *string
	_      zcodec.ExtBlock
	QoS    Prio
}

func TestParse(t *testing.T) {
	s, err := Parse([]byte(doc))
	require.NoError(t, err)
	require.Equal(t, []string{"Prio", "Push"}, s.Names())

	rec, ok := s.Record("Push")
	require.True(t, ok)
	require.Equal(t, "Z|N|ID:6=0x1D", rec.Header)
	require.Equal(t, "size=prefixed", rec.Fields["Key"])
}

func TestSetAsTagSource(t *testing.T) {
	s, err := Parse([]byte(doc))
	require.NoError(t, err)
	c := s.Codec(zcodec.Options{})

	suffix := "x"
	v := Push{Key: "k", Suffix: &suffix, QoS: Prio{Level: 3}}
	data, err := c.Marshal(v)
	require.NoError(t, err)
	// Z and N set over ID 0x1D, prefixed key and suffix, then one U64 extension
	require.Equal(t, []byte{0xDD, 0x01, 'k', 0x01, 'x', 0x21, 0x03}, data)

	var out Push
	require.NoError(t, c.Decode(data, &out))
	require.Equal(t, v, out)

	// without the file the bare structs are not valid records
	_, err = zcodec.Marshal(v)
	require.ErrorIs(t, err, zcodec.ErrInvalidSchema)
}

func TestParseErrors(t *testing.T) {
	for name, bad := range map[string]string{
		"yaml":        "records: [",
		"unknown key": "records:\n  A:\n    colour: red\n",
		"header":      "records:\n  A:\n    header: \"A:9\"\n",
		"extensions":  "records:\n  A:\n    extensions: sometimes\n",
		"field":       "records:\n  A:\n    fields:\n      B: size=sideways\n",
	} {
		_, err := Parse([]byte(bad))
		require.Error(t, err, name)
	}
}

func TestLoadAndMarshal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	s, err := Load(path)
	require.NoError(t, err)

	out, err := s.Marshal()
	require.NoError(t, err)
	again, err := Parse(out)
	require.NoError(t, err)
	require.Equal(t, s.Names(), again.Names())
	rec, _ := again.Record("Push")
	require.Equal(t, "header(Z)", rec.Extensions)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestEmptyDocument(t *testing.T) {
	s, err := Parse([]byte("records: {}\n"))
	require.NoError(t, err)
	require.Empty(t, s.Names())
	_, ok := s.Tag(reflect.TypeOf(Push{}), reflect.StructField{Name: "Key"})
	require.False(t, ok)
}
