package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	nativemsg "github.com/wagiedev/nativemsg-go"
)

type fileConfig struct {
	Host         string            `toml:"host"`
	SearchNames  []string          `toml:"search_names"`
	Args         []string          `toml:"args"`
	UIArgs       []string          `toml:"ui_args"`
	Env          map[string]string `toml:"env"`
	Cwd          string            `toml:"cwd"`
	MaxFrameSize int               `toml:"max_frame_size"`
	StopTimeout  string            `toml:"stop_timeout"`
	Desync       string            `toml:"desync"`
	MetricsAddr  string            `toml:"metrics_addr"`
	ShowUI       bool              `toml:"show_ui"`
}

// probeConfig is the merged result of defaults, config file and flags.
type probeConfig struct {
	Host         string
	SearchNames  []string
	Args         []string
	UIArgs       []string
	Env          map[string]string
	Cwd          string
	MaxFrameSize int
	StopTimeout  time.Duration
	Desync       nativemsg.DesyncPolicy
	MetricsAddr  string
	ShowUI       bool
	Verbose      bool
}

func defaultProbeConfig() probeConfig {
	return probeConfig{
		StopTimeout: 2 * time.Second,
		Desync:      nativemsg.DesyncDiscard,
	}
}

func loadProbeConfig(path string, cfg probeConfig) (probeConfig, error) {
	var raw fileConfig

	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return probeConfig{}, fmt.Errorf("load probe config: %w", err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return probeConfig{}, fmt.Errorf("load probe config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("host") {
		cfg.Host = strings.TrimSpace(raw.Host)
	}

	if meta.IsDefined("search_names") {
		cfg.SearchNames = normalizeList(raw.SearchNames)
	}

	if meta.IsDefined("args") {
		cfg.Args = raw.Args
	}

	if meta.IsDefined("ui_args") {
		cfg.UIArgs = raw.UIArgs
	}

	if meta.IsDefined("env") {
		cfg.Env = raw.Env
	}

	if meta.IsDefined("cwd") {
		cfg.Cwd = strings.TrimSpace(raw.Cwd)
	}

	if meta.IsDefined("max_frame_size") {
		if raw.MaxFrameSize < 0 {
			return probeConfig{}, fmt.Errorf("max_frame_size must not be negative, got %d", raw.MaxFrameSize)
		}

		cfg.MaxFrameSize = raw.MaxFrameSize
	}

	if meta.IsDefined("stop_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.StopTimeout))
		if err != nil {
			return probeConfig{}, fmt.Errorf("parse stop_timeout: %w", err)
		}

		cfg.StopTimeout = d
	}

	if meta.IsDefined("desync") {
		policy, err := nativemsg.ParseDesyncPolicy(raw.Desync)
		if err != nil {
			return probeConfig{}, err
		}

		cfg.Desync = policy
	}

	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}

	if meta.IsDefined("show_ui") {
		cfg.ShowUI = raw.ShowUI
	}

	return cfg, nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))

	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}

		out = append(out, v)
	}

	return out
}

func (c probeConfig) options() []nativemsg.Option {
	opts := []nativemsg.Option{
		nativemsg.WithArgs(c.Args...),
		nativemsg.WithUIArgs(c.UIArgs...),
		nativemsg.WithMaxFrameSize(c.MaxFrameSize),
		nativemsg.WithStopTimeout(c.StopTimeout),
		nativemsg.WithDesyncPolicy(c.Desync),
	}

	if c.Host != "" {
		opts = append(opts, nativemsg.WithExecutablePath(c.Host))
	}

	if len(c.SearchNames) > 0 {
		opts = append(opts, nativemsg.WithSearchNames(c.SearchNames...))
	}

	if len(c.Env) > 0 {
		opts = append(opts, nativemsg.WithEnv(c.Env))
	}

	if c.Cwd != "" {
		opts = append(opts, nativemsg.WithCwd(c.Cwd))
	}

	return opts
}
