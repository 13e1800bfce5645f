// gorc - a compressed remote-command channel: an agent that runs the
// commands it receives and a console that sends them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gorc/cmd"
	rcerr "gorc/internal/errors"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)

	err := cmd.Execute(ctx, os.Args[1:])
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "gorc: %v\n", err)
		os.Exit(rcerr.CodeOf(err))
	}
}
