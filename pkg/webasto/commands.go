// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package webasto

import (
	"errors"
	"strconv"
	"strings"
)

// Commands understood by the controller firmware. The transport sends any
// string verbatim; these are the ones the firmware acts on.
const (
	CmdGetSettings          = "GET_SETTINGS"
	CmdEnter                = "ENTER" // toggles burning
	CmdUp                   = "UP"
	CmdDown                 = "DOWN"
	CmdFuelPump             = "FP"
	CmdClearFail            = "CF"
	CmdResetSettings        = "RESET_SETTINGS"
	CmdResetWifi            = "RESET_WIFI"
	CmdRebootESP            = "REBOOT_ESP"
	CmdResetFuelConsumption = "RESET_FUEL_CONSUMPTION"
	CmdLogOn                = "LOG_ON"
	CmdLogOff               = "LOG_OFF"
)

// ErrInvalidSetting is returned by BuildSetCommand for unusable keys
var ErrInvalidSetting = errors.New("webasto: invalid setting")

// Setting is one key=value pair of a SET: command
type Setting struct {
	Key   string
	Value int64
}

// BuildSetCommand formats settings as "SET:k=v,k=v,..." in the given order.
// Keys must be non-empty and must not contain ',', '=' or ':'.
func BuildSetCommand(settings []Setting) (string, error) {
	if len(settings) == 0 {
		return "", errors.Join(ErrInvalidSetting, errors.New("no settings"))
	}

	var b strings.Builder
	b.WriteString(setCommandPrefix)
	for i, s := range settings {
		if s.Key == "" || strings.ContainsAny(s.Key, ",=: ") {
			return "", errors.Join(ErrInvalidSetting, errors.New("bad key "+strconv.Quote(s.Key)))
		}
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s.Key)
		b.WriteByte('=')
		b.WriteString(strconv.FormatInt(s.Value, 10))
	}
	return b.String(), nil
}

// ParseSetCommand is the inverse of BuildSetCommand. It is used to echo
// pending settings back to operators and by tests.
func ParseSetCommand(cmd string) ([]Setting, error) {
	body, ok := strings.CutPrefix(cmd, setCommandPrefix)
	if !ok {
		return nil, errors.Join(ErrInvalidSetting, errors.New("missing SET: prefix"))
	}
	var out []Setting
	for _, pair := range strings.Split(body, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, errors.Join(ErrInvalidSetting, errors.New("bad pair "+strconv.Quote(pair)))
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, errors.Join(ErrInvalidSetting, err)
		}
		out = append(out, Setting{Key: key, Value: n})
	}
	return out, nil
}
