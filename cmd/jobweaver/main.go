package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"jobweaver/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := cli.DefaultApp()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitInternalError)
	}

	result, err := cli.Run(ctx, app, os.Args[1:])
	if err != nil {
		var invErr *cli.InvocationError
		if errors.As(err, &invErr) {
			fmt.Fprintf(os.Stderr, "%s\nRun 'jobweaver --help' for usage.\n", invErr.Message)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
	}
	stop()
	os.Exit(result.ExitCode)
}
