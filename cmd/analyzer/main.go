package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	err := newRootCmd().ExecuteContext(ctx)
	shutdownSystem()
	if err != nil {
		// errRunFailed has already been reported on the console.
		if !errors.Is(err, errRunFailed) {
			fmt.Fprintf(os.Stderr, "❌ Error: %v\n", err)
		}
		cancel()
		os.Exit(1)
	}
}
