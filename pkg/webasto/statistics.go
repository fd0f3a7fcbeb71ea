// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package webasto

import (
	"errors"
	"fmt"
	"time"
)

// Statistics tracks frame, command and connection counters
type Statistics struct {
	StartTime     time.Time
	LastFrameTime time.Time

	// Frame counters
	TotalFrames  uint64
	JSONFrames   uint64
	LegacyFrames uint64
	DecodeErrors uint64
	EmptyFrames  uint64
	FieldsMerged uint64

	// Session counters
	Connects          uint64
	ReconnectAttempts uint64
	CommandsSent      uint64
	CommandFailures   uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{StartTime: now}
}

// Update records the outcome of decoding one frame
func (s *Statistics) Update(frame Frame, decodeErr error) {
	s.TotalFrames++
	s.LastFrameTime = time.Now()

	if decodeErr != nil {
		if errors.Is(decodeErr, ErrEmptyFrame) {
			s.EmptyFrames++
		}
		s.DecodeErrors++
		return
	}

	switch frame.Format {
	case FormatJSON:
		s.JSONFrames++
	case FormatLegacy:
		s.LegacyFrames++
	}
	s.FieldsMerged += uint64(len(frame.Fields))
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.ErrorRate = float64(s.DecodeErrors) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var jsonPercent, legacyPercent, errorPercent float64
	if s.TotalFrames > 0 {
		jsonPercent = float64(s.JSONFrames) * 100.0 / float64(s.TotalFrames)
		legacyPercent = float64(s.LegacyFrames) * 100.0 / float64(s.TotalFrames)
		errorPercent = float64(s.DecodeErrors) * 100.0 / float64(s.TotalFrames)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("JSON Frames:     %8d (%.1f%%)\n", s.JSONFrames, jsonPercent)
	if s.LegacyFrames > 0 {
		result += fmt.Sprintf("Legacy Frames:   %8d (%.1f%%)\n", s.LegacyFrames, legacyPercent)
	}
	if s.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d (%.1f%%)\n", s.DecodeErrors, errorPercent)
		if s.EmptyFrames > 0 {
			result += fmt.Sprintf("  Empty Frames:     %5d\n", s.EmptyFrames)
		}
	}
	result += fmt.Sprintf("Fields Merged:   %8d\n", s.FieldsMerged)
	result += fmt.Sprintf("Connects:        %8d\n", s.Connects)
	if s.ReconnectAttempts > 0 {
		result += fmt.Sprintf("Reconnects:      %8d\n", s.ReconnectAttempts)
	}
	result += fmt.Sprintf("Commands Sent:   %8d\n", s.CommandsSent)
	if s.CommandFailures > 0 {
		result += fmt.Sprintf("Command Errors:  %8d\n", s.CommandFailures)
	}
	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = Statistics{StartTime: time.Now()}
}
