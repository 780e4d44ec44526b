package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
)

// errPartialSend means the document was processed but at least one
// recipient's mail failed. It exits with status 2 so wrappers can retry.
var errPartialSend = errors.New("partial send")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := rootCmd.ExecuteContext(ctx)
	switch {
	case err == nil:
	case errors.Is(err, errPartialSend):
		os.Exit(2)
	default:
		os.Exit(1)
	}
}
