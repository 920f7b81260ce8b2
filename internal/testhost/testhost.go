// Package testhost turns a test binary into a native messaging host.
//
// Test packages that spawn real processes call Main from TestMain. When the
// NATIVEMSG_TEST_HOST environment variable is set, Main runs the requested
// host behaviour and exits instead of returning:
//
//	func TestMain(m *testing.M) {
//	    testhost.Main()
//	    os.Exit(m.Run())
//	}
package testhost

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/wagiedev/nativemsg-go/internal/frame"
)

// EnvMode selects the host behaviour.
const EnvMode = "NATIVEMSG_TEST_HOST"

// Host behaviours.
const (
	// ModeEcho writes every received frame back unchanged.
	ModeEcho = "echo"
	// ModeTrickle echoes frames one byte per write.
	ModeTrickle = "trickle"
	// ModeGarbage writes an oversized header first, then echoes.
	ModeGarbage = "garbage"
	// ModeExit writes to stderr and exits with code 3 without reading.
	ModeExit = "exit"
	// ModeGreetAndExit writes a single "bye" frame and exits cleanly.
	ModeGreetAndExit = "greet-exit"
	// ModeSilent reads until EOF and never replies.
	ModeSilent = "silent"
)

// ExitCode is the status used by ModeExit.
const ExitCode = 3

// Command returns the executable, arguments and environment that start
// the current test binary as a host in the given mode.
func Command(mode string) (path string, args []string, env map[string]string) {
	return os.Args[0], []string{"-test.run=^$"}, map[string]string{EnvMode: mode}
}

// Main runs the host if EnvMode is set and never returns in that case.
func Main() {
	mode := os.Getenv(EnvMode)
	if mode == "" {
		return
	}

	os.Exit(run(mode, os.Stdin, os.Stdout, os.Stderr))
}

func run(mode string, in io.Reader, out io.Writer, errOut io.Writer) int {
	switch mode {
	case ModeExit:
		fmt.Fprintln(errOut, "host failed: keychain unavailable")

		return ExitCode

	case ModeGreetAndExit:
		if err := frame.WriteFrame(out, []byte("bye")); err != nil {
			return 1
		}

		return 0

	case ModeSilent:
		_, _ = io.Copy(io.Discard, in)

		return 0

	case ModeGarbage:
		if _, err := out.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF, 'j', 'u', 'n', 'k'}); err != nil {
			return 1
		}

		return echo(in, out, false)

	case ModeTrickle:
		return echo(in, out, true)

	case ModeEcho:
		return echo(in, out, false)

	default:
		fmt.Fprintf(errOut, "unknown test host mode %q\n", mode)

		return 2
	}
}

func echo(in io.Reader, out io.Writer, trickle bool) int {
	acc := frame.NewAccumulator(frame.DefaultMaxFrameSize)
	reader := bufio.NewReader(in)
	buf := make([]byte, 4096)

	for {
		n, err := reader.Read(buf)
		if n > 0 {
			frames, ferr := acc.Append(buf[:n])
			if ferr != nil {
				return 1
			}

			for _, f := range frames {
				if werr := writeBack(out, f, trickle); werr != nil {
					return 1
				}
			}
		}

		if err == io.EOF {
			return 0
		}

		if err != nil {
			return 1
		}
	}
}

func writeBack(out io.Writer, payload []byte, trickle bool) error {
	if !trickle {
		return frame.WriteFrame(out, payload)
	}

	for _, b := range frame.Encode(payload) {
		if _, err := out.Write([]byte{b}); err != nil {
			return err
		}
	}

	return nil
}
