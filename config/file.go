package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	rcerr "gorc/internal/errors"
)

// fileConfig maps gorc.toml keys.  Durations are strings ("30s") or
// whole seconds.
type fileConfig struct {
	Console     bool   `toml:"console"`
	Listen      bool   `toml:"listen"`
	Callback    bool   `toml:"callback"`
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	NoDNS       bool   `toml:"no_dns"`
	Timeout     string `toml:"timeout"`
	Retries     int    `toml:"retries"`
	Framing     string `toml:"framing"`
	ChunkSize   int    `toml:"chunk_size"`
	Level       string `toml:"level"`
	SyncExec    bool   `toml:"sync_exec"`
	ExecTimeout string `toml:"exec_timeout"`
	Workers     int    `toml:"workers"`
	Verbose     int    `toml:"verbose"`
}

// LoadFile overlays the keys present in the TOML file at path onto
// cfg.  Keys absent from the file leave cfg untouched.
func LoadFile(path string, cfg *Config) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return &rcerr.ConfigError{
			Field:   "config",
			Value:   path,
			Message: fmt.Sprintf("unknown key %q", undecoded[0].String()),
		}
	}

	if meta.IsDefined("console") {
		cfg.Console = raw.Console
	}
	if meta.IsDefined("listen") {
		cfg.Listen = raw.Listen
	}
	if meta.IsDefined("callback") {
		cfg.Callback = raw.Callback
	}
	if meta.IsDefined("host") {
		cfg.Host = strings.TrimSpace(raw.Host)
	}
	if meta.IsDefined("port") {
		cfg.Port = raw.Port
		cfg.portFromFile = true
	}
	if meta.IsDefined("no_dns") {
		cfg.NoDNS = raw.NoDNS
	}
	if meta.IsDefined("timeout") {
		d, err := parseDuration(strings.TrimSpace(raw.Timeout))
		if err != nil {
			return &rcerr.ConfigError{Field: "timeout", Value: raw.Timeout, Message: err.Error()}
		}
		cfg.Timeout = d
	}
	if meta.IsDefined("retries") {
		cfg.Retries = raw.Retries
	}
	if meta.IsDefined("framing") {
		cfg.Framing = strings.TrimSpace(raw.Framing)
	}
	if meta.IsDefined("chunk_size") {
		cfg.ChunkSize = raw.ChunkSize
	}
	if meta.IsDefined("level") {
		cfg.Level = strings.TrimSpace(raw.Level)
	}
	if meta.IsDefined("sync_exec") {
		cfg.SyncExec = raw.SyncExec
	}
	if meta.IsDefined("exec_timeout") {
		d, err := parseDuration(strings.TrimSpace(raw.ExecTimeout))
		if err != nil {
			return &rcerr.ConfigError{Field: "exec-timeout", Value: raw.ExecTimeout, Message: err.Error()}
		}
		cfg.ExecTimeout = d
	}
	if meta.IsDefined("workers") {
		cfg.Workers = raw.Workers
	}
	if meta.IsDefined("verbose") {
		cfg.Verbose = raw.Verbose
	}
	cfg.ConfigFile = path
	return nil
}
