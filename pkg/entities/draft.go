// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package entities

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/Thermoquad/webastostat/pkg/webasto"
)

// Errors returned by Draft and Press
var (
	ErrUnknownEntity  = errors.New("entities: unknown entity")
	ErrOutOfRange     = errors.New("entities: value out of range")
	ErrMissingSetting = errors.New("entities: setting value unknown")
	ErrNotSent        = errors.New("entities: command not sent")
)

// Draft holds setting values edited locally but not yet saved to the
// controller. Saving combines the draft with the last reported settings.
type Draft struct {
	mu     sync.Mutex
	values map[string]int64
}

// NewDraft returns an empty draft
func NewDraft() *Draft {
	return &Draft{values: make(map[string]int64)}
}

// Set records a pending value for setting key. The value must lie within the
// setting's range and is truncated to an integer, which is all the firmware
// accepts.
func (d *Draft) Set(key string, value float64) error {
	e, ok := Lookup(KindNumber, key)
	if !ok {
		return fmt.Errorf("%w: number %q", ErrUnknownEntity, key)
	}
	if math.IsNaN(value) || value < e.Min || value > e.Max {
		return fmt.Errorf("%w: %s=%v not in [%v, %v]", ErrOutOfRange, key, value, e.Min, e.Max)
	}

	d.mu.Lock()
	d.values[key] = int64(value)
	d.mu.Unlock()
	return nil
}

// Get returns the pending value for key
func (d *Draft) Get(key string) (int64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.values[key]
	return v, ok
}

// Values returns a copy of all pending values
func (d *Draft) Values() map[string]int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]int64, len(d.values))
	for k, v := range d.values {
		out[k] = v
	}
	return out
}

// Len returns the number of pending values
func (d *Draft) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.values)
}

// Clear discards all pending values
func (d *Draft) Clear() {
	d.mu.Lock()
	clear(d.values)
	d.mu.Unlock()
}

// Apply overlays pending values onto states produced by States, so
// frontends show edits before they are saved
func (d *Draft) Apply(states map[string]any) {
	for k, v := range d.Values() {
		states[k] = float64(v)
	}
}

// SaveCommand builds the SET: command covering every setting in catalogue
// order. Each value comes from the draft or, failing that, from the
// snapshot. If any setting is unknown nothing is built.
func (d *Draft) SaveCommand(s webasto.Snapshot) (string, error) {
	pending := d.Values()

	var settings []webasto.Setting
	var missing []string
	for _, e := range OfKind(KindNumber) {
		if v, ok := pending[e.Key]; ok {
			settings = append(settings, webasto.Setting{Key: e.Field, Value: v})
			continue
		}
		raw, ok := s.Get(e.Field)
		if !ok {
			missing = append(missing, e.Key)
			continue
		}
		f, ok := e.NumberValue(raw)
		if !ok {
			missing = append(missing, e.Key)
			continue
		}
		settings = append(settings, webasto.Setting{Key: e.Field, Value: int64(f)})
	}

	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrMissingSetting, strings.Join(missing, ", "))
	}
	return webasto.BuildSetCommand(settings)
}

// Commander sends raw commands to the controller
type Commander interface {
	SendCommand(cmd string) bool
}

// Press performs the button identified by key. The save button sends the
// draft's SET: command and clears the draft once sent.
func Press(c Commander, key string, d *Draft, s webasto.Snapshot) (string, error) {
	e, ok := Lookup(KindButton, key)
	if !ok {
		return "", fmt.Errorf("%w: button %q", ErrUnknownEntity, key)
	}

	cmd := e.Command
	if key == KeySaveSettings {
		if d == nil {
			d = NewDraft()
		}
		var err error
		if cmd, err = d.SaveCommand(s); err != nil {
			return "", err
		}
	}

	if !c.SendCommand(cmd) {
		return cmd, fmt.Errorf("%w: %s", ErrNotSent, cmd)
	}
	if key == KeySaveSettings {
		d.Clear()
	}
	return cmd, nil
}
