package config

import (
	"time"

	"gorc/util"
)

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, config file parsing, and environment variable
// loading.

const (
	// DefaultPort is used when neither flag, env nor file names one.
	DefaultPort = 12345

	// DefaultListenHost is the bind address for listening modes.
	DefaultListenHost = "0.0.0.0"

	// DefaultFraming is the wire-compatible chunk heuristic.
	DefaultFraming = "chunked"

	// DefaultChunkSize is the read unit C of the chunk heuristic.
	DefaultChunkSize = util.DefaultChunkSize

	// MaxChunkSize bounds --chunk-size.
	MaxChunkSize = 1 << 20

	// DefaultAgentLevel is the compression level replies are sent with.
	DefaultAgentLevel = "default"

	// DefaultConsoleLevel is the compression level commands are sent with.
	DefaultConsoleLevel = "best"

	// DefaultConnTimeout is the TCP connection timeout.
	DefaultConnTimeout = 30 * time.Second

	// DefaultRetries is the number of connection attempts for outbound
	// modes.
	DefaultRetries = 1

	// DefaultRetryDelay is the initial delay between connection attempts.
	DefaultRetryDelay = time.Second

	// DefaultWorkers limits how many commands run at the same time.
	DefaultWorkers = 16
)
