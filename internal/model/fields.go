package model

import (
	"bytes"
	"encoding/json"

	"github.com/rotisserie/eris"
)

// Field is one key/value pair of an ordered JSON object.
type Field struct {
	Key   string
	Value any
}

// Fields marshals to a JSON object whose keys keep slice order, so report
// sections with configured columns serialize identically on every run.
type Fields []Field

// MarshalJSON implements json.Marshaler.
func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, fld := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(fld.Key)
		if err != nil {
			return nil, eris.Wrapf(err, "model: marshal key %s", fld.Key)
		}
		val, err := json.Marshal(fld.Value)
		if err != nil {
			return nil, eris.Wrapf(err, "model: marshal value for %s", fld.Key)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Get returns the value stored under key.
func (f Fields) Get(key string) (any, bool) {
	for _, fld := range f {
		if fld.Key == key {
			return fld.Value, true
		}
	}
	return nil, false
}
