// Package schemafile describes record layouts in YAML instead of struct tags.
//
//	records:
//	  Push:
//	    header: "Z|N|ID:6=0x1D"
//	    extensions: header(Z)
//	    fields:
//	      Key: size=prefixed
//	      Suffix: presence=header(N),size=prefixed
//	      QoS: ext=1
//
// A Set implements zcodec.TagSource. Records are matched by Go type name;
// types the file does not mention keep their struct tags.
package schemafile

import (
	"bytes"
	"fmt"
	"os"
	"reflect"
	"sort"

	zcodec "github.com/Hennzau/zenoh-codec"
	"gopkg.in/yaml.v3"
)

// Record is the YAML description of one record type.
type Record struct {
	Header     string            `yaml:"header,omitempty"`
	Extensions string            `yaml:"extensions,omitempty"` // presence of the extension block
	Fields     map[string]string `yaml:"fields,omitempty"`
}

type file struct {
	Records map[string]Record `yaml:"records"`
}

// Set is a parsed schema file.
type Set struct {
	records map[string]Record
}

var (
	headerType   = reflect.TypeOf(zcodec.Header{})
	extBlockType = reflect.TypeOf(zcodec.ExtBlock{})
)

// Load reads and parses a schema file.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse parses and validates a schema document. Unknown keys are rejected.
func Parse(data []byte) (*Set, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f file
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("schemafile: %w", err)
	}
	s := &Set{records: f.Records}
	if s.records == nil {
		s.records = make(map[string]Record)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Set) validate() error {
	for _, name := range s.Names() {
		rec := s.records[name]
		if rec.Header != "" {
			if _, err := zcodec.ParseHeader(rec.Header); err != nil {
				return fmt.Errorf("schemafile: %s header: %w", name, err)
			}
		}
		if rec.Extensions != "" {
			if _, err := zcodec.ParseTag("presence=" + rec.Extensions); err != nil {
				return fmt.Errorf("schemafile: %s extensions: %w", name, err)
			}
		}
		for field, tag := range rec.Fields {
			if _, err := zcodec.ParseTag(tag); err != nil {
				return fmt.Errorf("schemafile: %s.%s: %w", name, field, err)
			}
		}
	}
	return nil
}

// Names lists the described records in sorted order.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.records))
	for name := range s.records {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Record returns the description of a record.
func (s *Set) Record(name string) (Record, bool) {
	rec, ok := s.records[name]
	return rec, ok
}

// Tag implements zcodec.TagSource.
func (s *Set) Tag(t reflect.Type, f reflect.StructField) (string, bool) {
	rec, ok := s.records[t.Name()]
	if !ok {
		return "", false
	}
	switch f.Type {
	case headerType:
		if rec.Header == "" {
			return "", false
		}
		return "header=" + rec.Header, true
	case extBlockType:
		if rec.Extensions == "" {
			return "", false
		}
		return "presence=" + rec.Extensions, true
	}
	tag, ok := rec.Fields[f.Name]
	return tag, ok
}

// Codec returns a codec reading field attributes from s.
func (s *Set) Codec(opts zcodec.Options) *zcodec.Codec {
	opts.Tags = s
	return zcodec.New(opts)
}

// Marshal renders s back to YAML.
func (s *Set) Marshal() ([]byte, error) {
	return yaml.Marshal(file{Records: s.records})
}
