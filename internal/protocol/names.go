package protocol

import (
	"fmt"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Commands returns the command name table in presentation order.
func Commands() *orderedmap.OrderedMap[string, Command] {
	om := orderedmap.New[string, Command]()
	for _, cmd := range allCommands {
		om.Set(cmd.String(), cmd)
	}
	return om
}

// ParseCommand resolves a command name. Matching is case-insensitive and accepts
// dashes in place of underscores ("motor1-open").
func ParseCommand(name string) (Command, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	if cmd, ok := Commands().Get(key); ok {
		return cmd, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
}
