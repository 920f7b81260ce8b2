package host

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"

	"github.com/wagiedev/nativemsg-go/internal/errors"
)

// DefaultSearchNames are looked up in PATH when no names are configured.
var DefaultSearchNames = []string{"desktop_proxy"}

// DefaultCommonPaths are tried after PATH when no paths are configured.
var DefaultCommonPaths = []string{
	"/Applications/Bitwarden.app/Contents/MacOS/desktop_proxy",
	"/opt/Bitwarden/desktop_proxy",
	"/usr/lib/bitwarden/desktop_proxy",
}

// Config holds configuration for host discovery.
type Config struct {
	// ExecutablePath is an explicit path that skips every other lookup.
	ExecutablePath string

	// SearchNames are executable names looked up in PATH.
	SearchNames []string

	// CommonPaths are absolute paths tried after PATH.
	CommonPaths []string

	// Logger is an optional logger for discovery operations.
	// If nil, a no-op logger is used.
	Logger *slog.Logger
}

// Discoverer locates the host executable.
type Discoverer interface {
	// Discover returns the path of the host executable or a
	// *errors.HostNotFoundError listing every location tried.
	Discover(ctx context.Context) (string, error)
}

type discoverer struct {
	cfg *Config
	log *slog.Logger
}

// Compile-time verification that discoverer implements Discoverer.
var _ Discoverer = (*discoverer)(nil)

// NewDiscoverer creates a new host discoverer with the given configuration.
func NewDiscoverer(cfg *Config) Discoverer {
	if cfg == nil {
		cfg = &Config{}
	}

	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &discoverer{
		cfg: cfg,
		log: log,
	}
}

// Discover locates the host executable.
func (d *discoverer) Discover(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	d.log.Debug("Discovering native messaging host")

	if d.cfg.ExecutablePath != "" {
		d.log.Debug("Using explicit host path", "path", d.cfg.ExecutablePath)

		if _, err := os.Stat(d.cfg.ExecutablePath); err == nil {
			return d.cfg.ExecutablePath, nil
		}

		return "", &errors.HostNotFoundError{SearchedPaths: []string{d.cfg.ExecutablePath}}
	}

	names, paths := d.cfg.SearchNames, d.cfg.CommonPaths
	if len(names) == 0 && len(paths) == 0 {
		names, paths = DefaultSearchNames, DefaultCommonPaths
	}

	searched := make([]string, 0, len(names)+len(paths))

	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			d.log.Debug("Found host in PATH", "name", name, "path", path)

			return path, nil
		}

		searched = append(searched, "$PATH/"+name)
	}

	for _, path := range paths {
		searched = append(searched, path)

		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			d.log.Debug("Found host at common path", "path", path)

			return path, nil
		}
	}

	d.log.Warn("Native messaging host not found", "searched_paths", searched)

	return "", &errors.HostNotFoundError{SearchedPaths: searched}
}
