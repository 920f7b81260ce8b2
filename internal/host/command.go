package host

import (
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/wagiedev/nativemsg-go/internal/config"
)

// BuildArgs returns the argument vector for the host process.
// UIArgs are appended only when showUI is true.
func BuildArgs(options *config.Options, showUI bool) []string {
	args := make([]string, 0, len(options.Args)+len(options.UIArgs))
	args = append(args, options.Args...)

	if showUI {
		args = append(args, options.UIArgs...)
	}

	return args
}

// BuildEnvironment constructs the environment for the host process.
// Overrides are appended after the inherited environment in key order, so
// they win on duplicate keys.
func BuildEnvironment(options *config.Options) []string {
	env := os.Environ()

	for _, key := range slices.Sorted(maps.Keys(options.Env)) {
		env = append(env, fmt.Sprintf("%s=%s", key, options.Env[key]))
	}

	return env
}
