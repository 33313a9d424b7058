package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/x/term"
)

func main() {
	os.Exit(run())
}

func run() int {
	root := newRootCmd()

	// fang renders styled help and errors; skip it when output is piped so
	// reports stay plain.
	if !term.IsTerminal(os.Stdout.Fd()) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if err := root.ExecuteContext(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return exitCode(err)
		}
		return 0
	}
	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		return exitCode(err)
	}
	return 0
}

// exitCode maps strict-mode failures to 2 and everything else to 1.
func exitCode(err error) int {
	if errors.Is(err, errStackErrors) {
		return 2
	}
	return 1
}
