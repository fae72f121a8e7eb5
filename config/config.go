// Copyright (c) 2026 the msgbroker authors.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package config loads the msgbrokerd process configuration
// (SPEC_FULL.md §11): flags, an optional YAML file, and environment
// overrides (loaded via a .env file through godotenv), with precedence
// flags > env > YAML file > built-in defaults. Library packages
// (wire, transport, broker, dispatch, queue) never read flags or env
// themselves — this is the only place process configuration lives,
// mirroring the teacher's Options-driven, no-global-state libraries.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/nexusmq/msgbroker/netaddr"
)

// Config holds everything cmd/msgbrokerd needs to start the broker.
type Config struct {
	ListenAddr  string        `yaml:"listen_addr"`
	ListenPort  int           `yaml:"listen_port"`
	PollTimeout time.Duration `yaml:"poll_timeout"`
	MaxFieldLen int           `yaml:"max_field_len"`
	LogLevel    string        `yaml:"log_level"`
}

// Defaults returns the built-in configuration baseline.
func Defaults() Config {
	return Config{
		ListenAddr:  "::1",
		ListenPort:  9000,
		PollTimeout: 200 * time.Millisecond,
		MaxFieldLen: 0, // 0 means wire.DefaultMaxFieldLen downstream.
		LogLevel:    "info",
	}
}

// fileConfig mirrors Config but with every field optional, so a YAML
// file only needs to set what it wants to override.
type fileConfig struct {
	ListenAddr  *string `yaml:"listen_addr"`
	ListenPort  *int    `yaml:"listen_port"`
	PollTimeout *string `yaml:"poll_timeout"`
	MaxFieldLen *int    `yaml:"max_field_len"`
	LogLevel    *string `yaml:"log_level"`
}

// Flags are msgbrokerd's command-line flags, parsed separately from
// Load so callers (and tests) can supply their own flag.FlagSet.
type Flags struct {
	ConfigFile  string
	ListenAddr  string
	ListenPort  int
	PollTimeout time.Duration
	LogLevel    string
}

// ParseFlags registers and parses msgbrokerd's flags against fs using
// args, matching the teacher pack's cmd/*/main.go convention of a
// dedicated flag-parsing entry point.
func ParseFlags(fs *flag.FlagSet, args []string) (Flags, error) {
	var f Flags
	fs.StringVar(&f.ConfigFile, "config", "", "path to a YAML config file")
	fs.StringVar(&f.ListenAddr, "listen-addr", "", "IPv6 literal to listen on")
	fs.IntVar(&f.ListenPort, "listen-port", 0, "TCP port to listen on")
	fs.DurationVar(&f.PollTimeout, "poll-timeout", 0, "readiness poll timeout per tick")
	fs.StringVar(&f.LogLevel, "log-level", "", "zap log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return Flags{}, fmt.Errorf("config: parse flags: %w", err)
	}
	return f, nil
}

// Load resolves the effective Config: it loads .env (if present) for
// process environment, applies the YAML file named by flags.ConfigFile
// (if any), then overlays environment variables, then flags, on top of
// Defaults(). Precedence is flags > env > YAML file > defaults.
func Load(flags Flags) (Config, error) {
	_ = godotenv.Load() // .env is optional; missing file is not an error.

	cfg := Defaults()

	if flags.ConfigFile != "" {
		fc, err := loadFile(flags.ConfigFile)
		if err != nil {
			return Config{}, err
		}
		applyFile(&cfg, fc)
	}

	applyEnv(&cfg)
	applyFlags(&cfg, flags)

	if _, err := netaddr.FromString(cfg.ListenAddr); err != nil {
		return Config{}, fmt.Errorf("config: listen_addr %q: %w", cfg.ListenAddr, err)
	}
	return cfg, nil
}

func loadFile(path string) (fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fileConfig{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return fc, nil
}

func applyFile(cfg *Config, fc fileConfig) {
	if fc.ListenAddr != nil {
		cfg.ListenAddr = *fc.ListenAddr
	}
	if fc.ListenPort != nil {
		cfg.ListenPort = *fc.ListenPort
	}
	if fc.PollTimeout != nil {
		if d, err := time.ParseDuration(*fc.PollTimeout); err == nil {
			cfg.PollTimeout = d
		}
	}
	if fc.MaxFieldLen != nil {
		cfg.MaxFieldLen = *fc.MaxFieldLen
	}
	if fc.LogLevel != nil {
		cfg.LogLevel = *fc.LogLevel
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("MSGBROKER_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("MSGBROKER_LISTEN_PORT"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.ListenPort)
	}
	if v := os.Getenv("MSGBROKER_POLL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.PollTimeout = d
		}
	}
	if v := os.Getenv("MSGBROKER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

func applyFlags(cfg *Config, f Flags) {
	if f.ListenAddr != "" {
		cfg.ListenAddr = f.ListenAddr
	}
	if f.ListenPort != 0 {
		cfg.ListenPort = f.ListenPort
	}
	if f.PollTimeout != 0 {
		cfg.PollTimeout = f.PollTimeout
	}
	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}
}
