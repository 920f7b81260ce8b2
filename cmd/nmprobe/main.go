// nmprobe launches a native messaging host and exchanges frames with it
// from the terminal.
//
// Each line read from stdin is sent as one frame. Each frame received from
// the host is printed as one line on stdout. The probe exits when stdin
// closes, or with status 1 when the host exits on its own.
//
// Settings can come from a TOML file (--config) and are overridden by
// flags.
package main

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	nativemsg "github.com/wagiedev/nativemsg-go"
)

// errHostExited is returned when the host terminates without being asked to.
var errHostExited = stderrors.New("host exited")

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(argv []string) error {
	cfg, err := parseFlags(argv)
	if err != nil {
		if stderrors.Is(err, pflag.ErrHelp) {
			return nil
		}

		return err
	}

	level := slog.LevelWarn
	if cfg.Verbose {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()

	if cfg.MetricsAddr != "" {
		server := serveMetrics(logger, cfg.MetricsAddr, registry)

		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			_ = server.Shutdown(shutdownCtx)
		}()
	}

	terminated := make(chan error, 1)
	out := bufio.NewWriter(os.Stdout)

	delegate := nativemsg.DelegateFuncs{
		OnMessage: func(data []byte) {
			_, _ = out.Write(data)
			_ = out.WriteByte('\n')
			_ = out.Flush()
		},
		OnTerminated: func(err error) {
			terminated <- err
		},
	}

	opts := append(cfg.options(),
		nativemsg.WithLogger(logger),
		nativemsg.WithDelegate(delegate),
		nativemsg.WithMetricsRegisterer(registry),
		nativemsg.WithStderr(func(line string) {
			logger.Info("host stderr", "line", line)
		}),
	)

	comm := nativemsg.NewCommunicator(opts...)
	defer comm.Close()

	if cfg.ShowUI {
		err = comm.StartWithUI(ctx)
	} else {
		err = comm.Start(ctx)
	}

	if err != nil {
		return err
	}

	lines := make(chan []byte)
	readErr := make(chan error, 1)

	go readLines(os.Stdin, lines, readErr)

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-terminated:
			if err != nil {
				return fmt.Errorf("%w: %w", errHostExited, err)
			}

			return errHostExited

		case err := <-readErr:
			return err

		case line, ok := <-lines:
			if !ok {
				// Give in-flight replies a moment before shutting down.
				time.Sleep(200 * time.Millisecond)

				return nil
			}

			if err := comm.Send(ctx, line); err != nil {
				return err
			}
		}
	}
}

func parseFlags(argv []string) (probeConfig, error) {
	var (
		configPath   string
		host         string
		args         []string
		maxFrameSize int
		desync       string
		metricsAddr  string
		showUI       bool
		verbose      bool
	)

	flagSet := pflag.NewFlagSet("nmprobe", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to a TOML config file")
	flagSet.StringVar(&host, "host", "", "path to the host executable")
	flagSet.StringArrayVar(&args, "arg", nil, "host argument (repeatable)")
	flagSet.IntVar(&maxFrameSize, "max-frame-size", 0, "largest accepted frame in bytes (default 200000)")
	flagSet.StringVar(&desync, "desync", "", "reaction to an oversized frame: discard or terminate")
	flagSet.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	flagSet.BoolVar(&showUI, "show-ui", false, "start the host with its UI arguments")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	if err := flagSet.Parse(argv); err != nil {
		return probeConfig{}, err
	}

	if rest := flagSet.Args(); len(rest) > 0 {
		return probeConfig{}, fmt.Errorf("unexpected argument: %s", rest[0])
	}

	cfg := defaultProbeConfig()

	if configPath != "" {
		var err error

		cfg, err = loadProbeConfig(configPath, cfg)
		if err != nil {
			return probeConfig{}, err
		}
	}

	if flagSet.Changed("host") {
		cfg.Host = host
	}

	if flagSet.Changed("arg") {
		cfg.Args = args
	}

	if flagSet.Changed("max-frame-size") {
		cfg.MaxFrameSize = maxFrameSize
	}

	if flagSet.Changed("desync") {
		policy, err := nativemsg.ParseDesyncPolicy(desync)
		if err != nil {
			return probeConfig{}, err
		}

		cfg.Desync = policy
	}

	if flagSet.Changed("metrics-addr") {
		cfg.MetricsAddr = metricsAddr
	}

	if flagSet.Changed("show-ui") {
		cfg.ShowUI = showUI
	}

	cfg.Verbose = verbose

	return cfg, nil
}

func serveMetrics(logger *slog.Logger, addr string, registry *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "addr", addr, "error", err)
		}
	}()

	logger.Info("Serving metrics", "addr", addr)

	return server
}

func readLines(f *os.File, lines chan<- []byte, errs chan<- error) {
	defer close(lines)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		lines <- append([]byte(nil), scanner.Bytes()...)
	}

	if err := scanner.Err(); err != nil {
		errs <- fmt.Errorf("read stdin: %w", err)
	}
}
