// Package config defines the runtime configuration for gorc: which
// role runs, where it listens or connects, and how messages are framed
// and compressed.
package config

import (
	"fmt"
	"net"
	"time"

	"gorc/internal/codec"
	rcerr "gorc/internal/errors"
	"gorc/internal/framer"
)

// Config holds every tuneable for a single gorc process.
type Config struct {
	// ── Role ─────────────────────────────────────────────────────────
	Console  bool // operator side instead of agent
	Listen   bool // console: wait for a calling-back agent (agents always listen unless Callback)
	Callback bool // agent: dial out instead of listening

	// ── Connection ───────────────────────────────────────────────────
	Host    string
	Port    int
	NoDNS   bool
	Timeout time.Duration // dial timeout
	Retries int           // connection attempts for outbound modes

	// ── Protocol ─────────────────────────────────────────────────────
	Framing   string
	ChunkSize int
	Level     string // compression level; empty selects the role default

	// ── Execution ────────────────────────────────────────────────────
	SyncExec    bool
	ExecTimeout time.Duration
	Workers     int

	// ── Output ───────────────────────────────────────────────────────
	Verbose    int
	ConfigFile string

	portFromFile bool
}

// Default returns a Config populated with the defaults.
func Default() *Config {
	return &Config{
		Port:      DefaultPort,
		Timeout:   DefaultConnTimeout,
		Retries:   DefaultRetries,
		Framing:   DefaultFraming,
		ChunkSize: DefaultChunkSize,
		Workers:   DefaultWorkers,
	}
}

// Dials reports whether this configuration opens an outbound
// connection.
func (c *Config) Dials() bool {
	if c.Console {
		return !c.Listen
	}
	return c.Callback
}

// ModeName describes the selected mode for logs.
func (c *Config) ModeName() string {
	switch {
	case c.Console && c.Listen:
		return "console (listen)"
	case c.Console:
		return "console (connect)"
	case c.Callback:
		return "agent (callback)"
	default:
		return "agent (listen)"
	}
}

// BindHost returns the host a listening mode binds to.
func (c *Config) BindHost() string {
	if c.Host == "" {
		return DefaultListenHost
	}
	return c.Host
}

// CompressionLevel resolves Level, falling back to the role default.
func (c *Config) CompressionLevel() (codec.Level, error) {
	level := c.Level
	if level == "" {
		level = DefaultAgentLevel
		if c.Console {
			level = DefaultConsoleLevel
		}
	}
	return codec.ParseLevel(level)
}

// FramingKind resolves Framing.
func (c *Config) FramingKind() (framer.Kind, error) {
	return framer.ParseKind(c.Framing)
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
// Failures are *errors.ConfigError values carrying the exit code the
// process reports.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return &rcerr.ConfigError{
			Field:   "port",
			Value:   c.Port,
			Message: "missing or out of range 1-65535",
			Hint:    "set -p <port>, GORC_PORT or P",
			Code:    rcerr.ExitPortInvalid,
		}
	}

	if c.Listen && c.Callback {
		return &rcerr.ConfigError{
			Field:   "callback",
			Message: "cannot listen and call back at the same time",
			Hint:    "drop -l or -C",
			Code:    rcerr.ExitUsage,
		}
	}
	if c.Dials() {
		if c.Host == "" {
			hint := "set -i <address> or GORC_HOST"
			if c.Callback {
				hint = "set -i <address>, GORC_HOST or I"
			}
			return &rcerr.ConfigError{
				Field:   "host",
				Message: "an address to connect to is required",
				Hint:    hint,
				Code:    rcerr.ExitAddressMissing,
			}
		}
		if c.NoDNS && net.ParseIP(c.Host) == nil {
			return &rcerr.ConfigError{
				Field:   "host",
				Value:   c.Host,
				Message: "not an IP address",
				Hint:    "DNS lookups are disabled with -n; pass a literal address",
				Code:    rcerr.ExitAddressInvalid,
			}
		}
	}

	if _, err := c.FramingKind(); err != nil {
		return &rcerr.ConfigError{Field: "framing", Value: c.Framing, Message: err.Error()}
	}
	if _, err := c.CompressionLevel(); err != nil {
		return &rcerr.ConfigError{
			Field:   "level",
			Value:   c.Level,
			Message: err.Error(),
			Hint:    "use default, best, speed, none or 0-9",
		}
	}
	if c.ChunkSize < 1 || c.ChunkSize > MaxChunkSize {
		return &rcerr.ConfigError{
			Field:   "chunk-size",
			Value:   c.ChunkSize,
			Message: fmt.Sprintf("must be between 1 and %d", MaxChunkSize),
			Hint:    fmt.Sprintf("peers must agree on the chunk size; the default is %d", DefaultChunkSize),
		}
	}
	if c.Retries < 1 {
		return &rcerr.ConfigError{Field: "retries", Value: c.Retries, Message: "must be at least 1"}
	}
	if c.Workers < 1 {
		return &rcerr.ConfigError{Field: "workers", Value: c.Workers, Message: "must be at least 1"}
	}
	if c.ExecTimeout < 0 {
		return &rcerr.ConfigError{Field: "exec-timeout", Value: c.ExecTimeout, Message: "must not be negative"}
	}
	return nil
}
