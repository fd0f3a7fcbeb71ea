// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package webasto

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Kind identifies which scalar a Value carries
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindNull // reported as JSON null
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindNull:
		return "null"
	default:
		return "invalid"
	}
}

// Value is a scalar reported by the controller. The zero Value is invalid.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
}

func Bool(b bool) Value       { return Value{kind: KindBool, b: b} }
func Int(i int64) Value       { return Value{kind: KindInt, i: i} }
func Float(f float64) Value   { return Value{kind: KindFloat, f: f} }
func String(s string) Value   { return Value{kind: KindString, s: s} }
func Null() Value             { return Value{kind: KindNull} }
func (v Value) Kind() Kind    { return v.kind }
func (v Value) IsValid() bool { return v.kind != KindInvalid }
func (v Value) IsNull() bool  { return v.kind == KindNull }

// AsBool returns the boolean payload
func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// AsInt returns the integer payload
func (v Value) AsInt() (int64, bool) {
	return v.i, v.kind == KindInt
}

// AsString returns the string payload
func (v Value) AsString() (string, bool) {
	return v.s, v.kind == KindString
}

// Float64 converts numeric and boolean values to float64. Strings are parsed;
// ok is false when no numeric interpretation exists.
func (v Value) Float64() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	case KindBool:
		if v.b {
			return 1, true
		}
		return 0, true
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Truthy interprets the value as an on/off state the way the controller's
// flags are reported: booleans as-is, non-zero numbers, and the strings
// true/1/on/yes (case-insensitive).
func (v Value) Truthy() (bool, bool) {
	switch v.kind {
	case KindBool:
		return v.b, true
	case KindInt:
		return v.i != 0, true
	case KindFloat:
		return v.f != 0, true
	case KindString:
		switch strings.ToLower(strings.TrimSpace(v.s)) {
		case "true", "1", "on", "yes":
			return true, true
		}
		return false, true
	default:
		return false, false
	}
}

// Interface returns the payload as a plain Go value (nil for null or invalid)
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	default:
		return nil
	}
}

// String renders the value for display
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindString:
		return v.s
	case KindNull:
		return "null"
	default:
		return "<invalid>"
	}
}

// MarshalJSON encodes the value as its natural JSON scalar
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// Equal reports whether both values have the same kind and payload
func (v Value) Equal(o Value) bool {
	return v == o
}
