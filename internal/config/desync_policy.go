package config

import (
	"fmt"
	"strings"
)

// DesyncPolicy controls recovery from an oversized frame header.
type DesyncPolicy int

const (
	// DesyncDiscard drops the buffered bytes and keeps reading, hoping a
	// later read starts on a frame boundary.
	DesyncDiscard DesyncPolicy = iota

	// DesyncTerminate stops the session and reports the desync to the
	// delegate as a termination.
	DesyncTerminate
)

func (p DesyncPolicy) String() string {
	switch p {
	case DesyncDiscard:
		return "discard"
	case DesyncTerminate:
		return "terminate"
	default:
		return fmt.Sprintf("DesyncPolicy(%d)", int(p))
	}
}

// ParseDesyncPolicy maps a policy name to its value.
//
// Accepted aliases:
//   - "drop", "" -> DesyncDiscard
//   - "fatal", "stop" -> DesyncTerminate
func ParseDesyncPolicy(name string) (DesyncPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "discard", "drop":
		return DesyncDiscard, nil
	case "terminate", "fatal", "stop":
		return DesyncTerminate, nil
	default:
		return DesyncDiscard, fmt.Errorf("unknown desync policy %q", name)
	}
}
