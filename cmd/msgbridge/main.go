// Command msgbridge is a local HTTP proxy exposing the Anthropic Messages
// API to client tools, translating requests to whichever upstream dialect
// the configured provider speaks.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/northlake-dev/msgbridge/cmd/msgbridge/commands"
)

// Exit codes per spec.md §6: 0 normal shutdown, 1 bind failure, 2
// configuration error.
const (
	exitOK          = 0
	exitBindFailure = 1
	exitConfigError = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := commands.Execute(ctx, os.Args)
	if err == nil {
		os.Exit(exitOK)
	}

	fmt.Fprintln(os.Stderr, err)

	var netErr *net.OpError
	if errors.As(err, &netErr) {
		os.Exit(exitBindFailure)
	}
	os.Exit(exitConfigError)
}
