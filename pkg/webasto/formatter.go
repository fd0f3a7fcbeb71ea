// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package webasto

import (
	"fmt"
	"strings"
	"time"
)

// FormatFrame formats one received frame and its decode result into a
// human-readable block
func FormatFrame(ts time.Time, raw string, frame Frame, decodeErr error) string {
	timestamp := ts.Format("15:04:05.000")

	if decodeErr != nil {
		return fmt.Sprintf("[%s] UNDECODABLE len=%d\n  Error: %v\n", timestamp, len(raw), decodeErr)
	}

	result := fmt.Sprintf("[%s] %s len=%d fields=%d\n",
		timestamp, strings.ToUpper(frame.Format.String()), len(raw), len(frame.Fields))
	result += FormatFields(frame.Fields)
	return result
}

// FormatFields formats decoded fields one per line
func FormatFields(fields []Field) string {
	if len(fields) == 0 {
		return "  (no fields)\n"
	}

	width := 0
	for _, f := range fields {
		if len(f.Key) > width {
			width = len(f.Key)
		}
	}

	var b strings.Builder
	for _, f := range fields {
		fmt.Fprintf(&b, "  %-*s = %s (%s)\n", width, f.Key, FormatValue(f.Value), f.Value.Kind())
	}
	return b.String()
}

// FormatSnapshot renders a snapshot as key=value lines in field order
func FormatSnapshot(s Snapshot) string {
	if s.Len() == 0 {
		return "(empty snapshot)\n"
	}
	var b strings.Builder
	for k, v := range s.All() {
		fmt.Fprintf(&b, "%s=%s\n", k, FormatValue(v))
	}
	return b.String()
}

// FormatValue renders a value, quoting strings that would otherwise be ambiguous
func FormatValue(v Value) string {
	if s, ok := v.AsString(); ok {
		if s == "" || strings.ContainsAny(s, " =,\t\n") {
			return fmt.Sprintf("%q", s)
		}
		return s
	}
	return v.String()
}
