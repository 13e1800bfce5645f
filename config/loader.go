package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Config file  (file.go)
//   4. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the GORC_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).  The single-letter
// variables I, P and C are the legacy deployment interface: I is the
// callback address, P the port, and C (any value) selects callback
// mode.

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  This should be called BEFORE
// CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	loadLegacyEnv(cfg)

	if v := os.Getenv("GORC_HOST"); v != "" {
		cfg.Host = v
	}
	if v, ok := envPort("GORC_PORT"); ok {
		cfg.Port = v
	}
	if envBool("GORC_LISTEN") {
		cfg.Listen = true
	}
	if envBool("GORC_CALLBACK") {
		cfg.Callback = true
	}
	if envBool("GORC_CONSOLE") {
		cfg.Console = true
	}
	if envBool("GORC_NO_DNS") {
		cfg.NoDNS = true
	}
	if v := envInt("GORC_RETRIES"); v > 0 {
		cfg.Retries = v
	}

	if v := os.Getenv("GORC_FRAMING"); v != "" {
		cfg.Framing = v
	}
	if v := envInt("GORC_CHUNK_SIZE"); v > 0 {
		cfg.ChunkSize = v
	}
	if v := os.Getenv("GORC_LEVEL"); v != "" {
		cfg.Level = v
	}

	if envBool("GORC_SYNC_EXEC") {
		cfg.SyncExec = true
	}
	if v, ok := envDuration("GORC_EXEC_TIMEOUT"); ok {
		cfg.ExecTimeout = v
	}
	if v := envInt("GORC_WORKERS"); v > 0 {
		cfg.Workers = v
	}

	if v := envInt("GORC_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
}

// loadLegacyEnv applies I, P and C.  The legacy callback address is
// never resolved, so it must be a literal IP.  C without P leaves the
// port unset unless the config file named one, so validation reports
// ExitPortInvalid instead of calling back to the default port.
func loadLegacyEnv(cfg *Config) {
	port, havePort := envPort("P")
	if _, ok := os.LookupEnv("C"); ok {
		cfg.Callback = true
		if v := os.Getenv("I"); v != "" {
			cfg.Host = v
			cfg.NoDNS = true
		}
		if !havePort && !cfg.portFromFile {
			cfg.Port = 0
		}
	}
	if havePort {
		cfg.Port = port
	}
}

// ConfigPathFromEnv returns the config file named by GORC_CONFIG.
func ConfigPathFromEnv() string {
	return os.Getenv("GORC_CONFIG")
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// envPort returns the port in key.  A set but unparsable value yields
// -1 so that validation reports it instead of silently using the
// default.
func envPort(key string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return -1, true
	}
	return n, true
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

// envDuration accepts a Go duration ("1m30s") or whole seconds.
func envDuration(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	d, err := parseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}

func parseDuration(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return secondsDuration(n), nil
	}
	return time.ParseDuration(v)
}

func secondsDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
