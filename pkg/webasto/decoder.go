// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package webasto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Decode errors. Use errors.Is to check for these.
var (
	ErrEmptyFrame        = errors.New("webasto: empty frame")
	ErrUnrecognizedFrame = errors.New("webasto: unrecognized frame")
)

// Format identifies the protocol generation a frame was encoded with
type Format uint8

const (
	FormatUnknown Format = iota
	FormatJSON
	FormatLegacy
)

// String returns the format name
func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatLegacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// Frame is the result of decoding one inbound text frame
type Frame struct {
	Format Format
	Fields []Field
}

// DecodeError carries the frame that could not be decoded
type DecodeError struct {
	Frame string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode frame %q: %v", Abbreviate(e.Frame, 64), e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decode parses one inbound frame.
//
// JSON objects are tried first. When the object carries a nested object under
// "settings", the nested entries are the field set; otherwise the top-level
// entries are. Frames that are not JSON but start with CURRENT_SETTINGS: are
// parsed as legacy key=value lists. Anything else yields a *DecodeError
// wrapping ErrUnrecognizedFrame.
func Decode(raw string) (Frame, error) {
	if strings.TrimSpace(raw) == "" {
		return Frame{}, &DecodeError{Frame: raw, Err: ErrEmptyFrame}
	}

	fields, jsonErr := decodeJSON(raw)
	if jsonErr == nil {
		return Frame{Format: FormatJSON, Fields: fields}, nil
	}

	if strings.HasPrefix(raw, LegacySettingsPrefix) {
		return Frame{
			Format: FormatLegacy,
			Fields: decodeLegacy(raw[len(LegacySettingsPrefix):]),
		}, nil
	}

	return Frame{}, &DecodeError{
		Frame: raw,
		Err:   fmt.Errorf("%w: %w", ErrUnrecognizedFrame, jsonErr),
	}
}

// jsonEntry is one member of a JSON object, value still encoded
type jsonEntry struct {
	key string
	raw json.RawMessage
}

func decodeJSON(raw string) ([]Field, error) {
	entries, err := readObject([]byte(raw))
	if err != nil {
		return nil, err
	}

	// Settings arrive wrapped, status arrives at the top level
	for _, e := range entries {
		if e.key == settingsKey && isObject(e.raw) {
			nested, err := readObject(e.raw)
			if err != nil {
				return nil, fmt.Errorf("settings: %w", err)
			}
			entries = nested
			break
		}
	}

	fields := make([]Field, 0, len(entries))
	for _, e := range entries {
		v, ok := jsonValue(e.raw)
		if !ok {
			continue
		}
		fields = append(fields, Field{Key: e.key, Value: v})
	}
	return fields, nil
}

// readObject decodes a JSON object into its members, preserving order
func readObject(data []byte) ([]jsonEntry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected JSON object, got %v", tok)
	}

	var entries []jsonEntry
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("value of %q: %w", key, err)
		}
		entries = append(entries, jsonEntry{key: key, raw: raw})
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after JSON object")
	}
	return entries, nil
}

func isObject(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && t[0] == '{'
}

// jsonValue converts one encoded JSON value. null becomes a Null value so it
// replaces whatever the field held before. Arrays and objects are kept as
// compact JSON text.
func jsonValue(raw json.RawMessage) (Value, bool) {
	t := bytes.TrimSpace(raw)
	if len(t) == 0 {
		return Value{}, false
	}

	switch t[0] {
	case 'n':
		return Null(), true
	case 't':
		return Bool(true), true
	case 'f':
		return Bool(false), true
	case '"':
		var s string
		if err := json.Unmarshal(t, &s); err != nil {
			return Value{}, false
		}
		return String(s), true
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, t); err != nil {
			return String(string(t)), true
		}
		return String(buf.String()), true
	default:
		return jsonNumber(string(t)), true
	}
}

func jsonNumber(s string) Value {
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Int(i)
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return String(s)
	}
	return Float(f)
}

// decodeLegacy parses the body of a CURRENT_SETTINGS: frame
func decodeLegacy(body string) []Field {
	var fields []Field
	for _, pair := range strings.Split(body, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		fields = append(fields, Field{Key: key, Value: coerceLegacy(strings.TrimSpace(value))})
	}
	return fields
}

// coerceLegacy applies the legacy typing rule: a decimal point means float,
// otherwise try an integer, and fall back to the trimmed string.
func coerceLegacy(v string) Value {
	if strings.Contains(v, ".") {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return Float(f)
		}
		return String(v)
	}
	if i, err := strconv.ParseInt(v, 10, 64); err == nil {
		return Int(i)
	}
	return String(v)
}

// Abbreviate shortens s to at most n runes for log output
func Abbreviate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
