// Package cmd wires up the CLI flags and dispatches to the selected
// gorc mode.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"gorc/config"
	"gorc/internal/core"
	rcerr "gorc/internal/errors"
	"gorc/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X gorc/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// stdout receives --version and --dry-run output.
var stdout io.Writer = os.Stdout //nolint:gochecknoglobals

// actions holds the flags that do not belong in config.Config.
type actions struct {
	help    bool
	version bool
	dryRun  bool
	usage   func()
}

// Execute parses args and runs the selected gorc mode.  With no
// arguments gorc runs as an agent listening on the default port.
func Execute(ctx context.Context, args []string) error {
	cfg, act, err := parse(args)
	if err != nil {
		return err
	}
	if act.help {
		act.usage()
		return nil
	}
	if act.version {
		fmt.Fprintf(stdout, "gorc %s\n", version)
		return nil
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}

	// ── build components ─────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)
	if cfg.ConfigFile != "" {
		logger.Verbose("loaded %s", cfg.ConfigFile)
	}

	mode, err := core.Build(cfg, logger)
	if err != nil {
		return err
	}
	if act.dryRun {
		printPlan(stdout, cfg)
		return nil
	}

	logger.Verbose("starting %s", cfg.ModeName())
	return mode.Run(ctx)
}

// parse resolves the configuration from defaults, the TOML file, the
// environment and finally the command line.
func parse(args []string) (*config.Config, *actions, error) {
	base := config.Default()

	// ── config file ──────────────────────────────────────────────
	path := configPath(args)
	if path == "" {
		path = config.ConfigPathFromEnv()
	}
	if path != "" {
		if err := config.LoadFile(path, base); err != nil {
			return nil, nil, err
		}
	}

	// ── environment ──────────────────────────────────────────────
	config.LoadFromEnv(base)

	// ── flags ────────────────────────────────────────────────────
	cfg := *base
	act := &actions{}
	fs := flag.NewFlagSet("gorc", flag.ContinueOnError)
	fs.SortFlags = false

	// role
	fs.BoolVar(&cfg.Console, "console", base.Console, "Run the operator console instead of the agent")
	fs.BoolVarP(&cfg.Listen, "listen", "l", base.Listen, "Listen for a connection (console: wait for a callback)")
	fs.BoolVarP(&cfg.Callback, "callback", "C", base.Callback, "Agent: connect out to a waiting console")

	// connection
	fs.StringVarP(&cfg.Host, "host", "i", base.Host, "Address to connect to, or to bind when listening")
	fs.IntVarP(&cfg.Port, "port", "p", base.Port, "Port number")
	fs.BoolVarP(&cfg.NoDNS, "no-dns", "n", base.NoDNS, "Numeric-only, no DNS resolution")
	fs.DurationVarP(&cfg.Timeout, "timeout", "w", base.Timeout, "Connect timeout")
	fs.IntVar(&cfg.Retries, "retries", base.Retries, "Connection attempts for outbound modes")

	// protocol
	fs.StringVar(&cfg.Framing, "framing", base.Framing, "Message framing: chunked or length")
	fs.IntVar(&cfg.ChunkSize, "chunk-size", base.ChunkSize, "Read unit of the chunk framing (peers must agree)")
	fs.StringVar(&cfg.Level, "level", base.Level, "Compression level: default, best, speed, none or 0-9")

	// execution
	fs.BoolVar(&cfg.SyncExec, "sync-exec", base.SyncExec, "Run commands on the event loop (one at a time)")
	fs.DurationVar(&cfg.ExecTimeout, "exec-timeout", base.ExecTimeout, "Kill commands running longer than this (0 = no limit)")
	fs.IntVar(&cfg.Workers, "workers", base.Workers, "Commands allowed to run at the same time")

	// output
	fs.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.StringVar(&cfg.ConfigFile, "config", base.ConfigFile, "TOML configuration file (env GORC_CONFIG)")
	fs.BoolVar(&act.dryRun, "dry-run", false, "Validate the configuration and print the plan")
	fs.BoolVar(&act.version, "version", false, "Print version and exit")
	fs.BoolVarP(&act.help, "help", "h", false, "Show this help")

	act.usage = func() { printUsage(fs) }
	fs.Usage = act.usage

	if err := fs.Parse(args); err != nil {
		return nil, nil, rcerr.Exit(rcerr.ExitUsage, err)
	}
	if fs.NArg() > 0 {
		return nil, nil, rcerr.Exit(rcerr.ExitUsage,
			fmt.Errorf("unexpected argument %q (use -i and -p for the address)", fs.Arg(0)))
	}
	if !fs.Changed("verbose") {
		cfg.Verbose = base.Verbose
	}
	return &cfg, act, nil
}

// ── helpers ──────────────────────────────────────────────────────────

// configPath finds --config before the full parse, so that the file
// can supply the flag defaults.
func configPath(args []string) string {
	for i, arg := range args {
		if arg == "--" {
			return ""
		}
		if v, ok := strings.CutPrefix(arg, "--config="); ok {
			return v
		}
		if arg == "--config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func printPlan(w io.Writer, cfg *config.Config) {
	level, _ := cfg.CompressionLevel()
	address := util.FormatAddr(cfg.Host, cfg.Port)
	if !cfg.Dials() {
		address = util.FormatAddr(cfg.BindHost(), cfg.Port)
	}
	fmt.Fprintf(w, "mode:      %s\n", cfg.ModeName())
	fmt.Fprintf(w, "address:   %s\n", address)
	fmt.Fprintf(w, "framing:   %s (chunk %d)\n", cfg.Framing, cfg.ChunkSize)
	fmt.Fprintf(w, "level:     %s\n", level)
	if !cfg.Console {
		exec := fmt.Sprintf("%d workers", cfg.Workers)
		if cfg.SyncExec {
			exec = "synchronous"
		}
		if cfg.ExecTimeout > 0 {
			exec += fmt.Sprintf(", timeout %s", cfg.ExecTimeout)
		}
		fmt.Fprintf(w, "exec:      %s\n", exec)
	}
	if cfg.Dials() {
		fmt.Fprintf(w, "connect:   timeout %s, %d attempt(s)\n", cfg.Timeout, cfg.Retries)
	}
	if cfg.ConfigFile != "" {
		fmt.Fprintf(w, "config:    %s\n", cfg.ConfigFile)
	}
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `gorc %s - compressed remote-command channel

Usage:
  gorc [options]                              Agent, listen for consoles
  gorc -C -i <address> -p <port>              Agent, call back to a console
  gorc --console -i <address> -p <port>       Console, connect to an agent
  gorc --console -l -p <port>                 Console, wait for a callback

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Environment:
  GORC_HOST, GORC_PORT, GORC_LISTEN, GORC_CALLBACK, GORC_CONSOLE, GORC_NO_DNS,
  GORC_RETRIES, GORC_FRAMING, GORC_CHUNK_SIZE, GORC_LEVEL, GORC_SYNC_EXEC,
  GORC_EXEC_TIMEOUT, GORC_WORKERS, GORC_VERBOSE, GORC_CONFIG
  Legacy: C (callback mode), I (callback address), P (port)

Control verbs sent from the console:
  quit, exit                                  Close this session
  kill                                        Stop the agent (exit status 9)

Examples:
  gorc -p 4444 -v                             Agent on port 4444
  gorc --console -i 10.0.0.5 -p 4444          Operate that agent
  C=1 I=10.0.0.9 P=4444 gorc                  Agent calling back to 10.0.0.9
`)
}
