//go:build integration

package integration

import (
	"errors"
	"os"
	"testing"

	nativemsg "github.com/wagiedev/nativemsg-go"
)

// envHostPath names an installed native messaging host to test against.
const envHostPath = "NATIVEMSG_HOST_PATH"

// hostOptions returns options for the installed host, skipping the test when
// none is configured.
func hostOptions(t *testing.T, extra ...nativemsg.Option) []nativemsg.Option {
	t.Helper()

	path := os.Getenv(envHostPath)
	if path == "" {
		t.Skipf("%s not set", envHostPath)
	}

	return append([]nativemsg.Option{nativemsg.WithExecutablePath(path)}, extra...)
}

// skipIfHostNotInstalled skips the test if the error indicates the host is not found.
func skipIfHostNotInstalled(t *testing.T, err error) {
	t.Helper()

	if _, ok := errors.AsType[*nativemsg.HostNotFoundError](err); ok {
		t.Skip("native messaging host not installed")
	}
}
