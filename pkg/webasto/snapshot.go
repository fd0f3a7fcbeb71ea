// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package webasto

import (
	"bytes"
	"encoding/json"
	"iter"
)

// Field is one decoded key/value pair
type Field struct {
	Key   string
	Value Value
}

// Snapshot is the latest known device state: an insertion-ordered mapping of
// field name to Value. Keys are never removed.
//
// A Snapshot obtained from Clone shares nothing with its source.
type Snapshot struct {
	keys   []string
	values map[string]Value
}

// NewSnapshot returns an empty snapshot
func NewSnapshot() Snapshot {
	return Snapshot{values: make(map[string]Value)}
}

// Len returns the number of known fields
func (s Snapshot) Len() int {
	return len(s.keys)
}

// Get returns the value stored under key
func (s Snapshot) Get(key string) (Value, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Keys returns the field names in first-seen order
func (s Snapshot) Keys() []string {
	keys := make([]string, len(s.keys))
	copy(keys, s.keys)
	return keys
}

// All iterates fields in first-seen order
func (s Snapshot) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		for _, k := range s.keys {
			if !yield(k, s.values[k]) {
				return
			}
		}
	}
}

// Merge applies decoded fields: new keys are appended, existing keys are
// overwritten. It returns the number of fields whose value changed.
func (s *Snapshot) Merge(fields []Field) int {
	if s.values == nil {
		s.values = make(map[string]Value, len(fields))
	}
	changed := 0
	for _, f := range fields {
		old, exists := s.values[f.Key]
		if !exists {
			s.keys = append(s.keys, f.Key)
		}
		if !exists || !old.Equal(f.Value) {
			changed++
		}
		s.values[f.Key] = f.Value
	}
	return changed
}

// Clone returns a deep copy
func (s Snapshot) Clone() Snapshot {
	c := Snapshot{
		keys:   make([]string, len(s.keys)),
		values: make(map[string]Value, len(s.values)),
	}
	copy(c.keys, s.keys)
	for k, v := range s.values {
		c.values[k] = v
	}
	return c
}

// Map returns the snapshot as plain Go values
func (s Snapshot) Map() map[string]any {
	m := make(map[string]any, len(s.values))
	for k, v := range s.values {
		m[k] = v.Interface()
	}
	return m
}

// MarshalJSON encodes the snapshot as a JSON object, keeping field order
func (s Snapshot) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range s.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := s.values[k].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
