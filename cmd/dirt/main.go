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
	var ctx, stop = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	var a = newApp(os.Stdout, os.Stderr)
	var err = newRootCmd(a).ExecuteContext(ctx)
	a.close()
	stop()

	if err != nil {
		var exitErr *ExitError
		if !errors.As(err, &exitErr) {
			exitErr = &ExitError{Code: exitFailure, Message: "error", Err: err}
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", exitErr)
		os.Exit(exitErr.Code)
	}
}
