package protocol

import (
	"errors"
	"fmt"
	"sort"
)

// Built-in code profiles. Firmware revisions disagree on which motor owns which code,
// so the mapping is chosen per device.
const (
	ProfileFamaV1 = "fama-v1"
	ProfileFamaV2 = "fama-v2"

	DefaultProfile = ProfileFamaV1
)

// ErrUnknownProfile is returned by Profile for names that are not built in.
var ErrUnknownProfile = errors.New("unknown code profile")

// CodeTable maps every command to its single-byte wire code.
type CodeTable map[Command]byte

var profiles = map[string]CodeTable{
	ProfileFamaV1: {
		Motor1Open:  0x01,
		Motor1Close: 0x02,
		Motor2Open:  0x03,
		Motor2Close: 0x04,
		BothOpen:    0x05,
		BothClose:   0x06,
		Stop:        0x07,
	},
	ProfileFamaV2: {
		Motor1Open:  0x03,
		Motor1Close: 0x04,
		Motor2Open:  0x01,
		Motor2Close: 0x02,
		BothOpen:    0x05,
		BothClose:   0x06,
		Stop:        0x07,
	},
}

// Profile returns a copy of the named built-in code table.
func Profile(name string) (CodeTable, error) {
	table, ok := profiles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownProfile, name, ProfileNames())
	}
	return table.Clone(), nil
}

// ProfileNames lists the built-in profiles, sorted.
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns an independent copy of the table.
func (t CodeTable) Clone() CodeTable {
	out := make(CodeTable, len(t))
	for cmd, code := range t {
		out[cmd] = code
	}
	return out
}

// With returns a copy of the table with the given overrides applied.
func (t CodeTable) With(overrides map[Command]byte) CodeTable {
	out := t.Clone()
	for cmd, code := range overrides {
		out[cmd] = code
	}
	return out
}

// Validate checks that every command has a code and that no two commands share one.
func (t CodeTable) Validate() error {
	seen := make(map[byte]Command, len(t))
	for _, cmd := range allCommands {
		code, ok := t[cmd]
		if !ok {
			return fmt.Errorf("code table: missing code for %s", cmd)
		}
		if other, dup := seen[code]; dup {
			return fmt.Errorf("code table: %s and %s share code 0x%02X", other, cmd, code)
		}
		seen[code] = cmd
	}
	for cmd := range t {
		if !cmd.Valid() {
			return fmt.Errorf("code table: %w: %d", ErrUnknownCommand, int(cmd))
		}
	}
	return nil
}

// Code returns the wire code for cmd.
func (t CodeTable) Code(cmd Command) (byte, error) {
	code, ok := t[cmd]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCommand, cmd)
	}
	return code, nil
}

// Encode builds the frame for cmd.
func (t CodeTable) Encode(cmd Command) (Frame, error) {
	code, err := t.Code(cmd)
	if err != nil {
		return Frame{}, err
	}
	return Encode(code), nil
}

// Decode maps a wire code back to its command.
func (t CodeTable) Decode(code byte) (Command, bool) {
	for cmd, c := range t {
		if c == code {
			return cmd, true
		}
	}
	return 0, false
}
