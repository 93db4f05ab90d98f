package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"road-orienteer/internal/cli"
)

func main() {
	if err := run(os.Stdout, os.Args[1:]); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run parses args and executes the command, writing reports to out
func run(out io.Writer, args []string) error {
	cmd, shouldExit, err := cli.Parse(args, out)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	switch cmd.Name {
	case cli.CommandServe:
		return runServe(cmd)
	}

	// An interrupt stops the search; the best route found so far is still reported
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd.Name {
	case cli.CommandImport:
		return runImport(ctx, out, cmd)
	case cli.CommandSolve:
		return runSolve(ctx, out, cmd)
	}
	return &cli.ExitError{Code: 2, Message: "unknown command " + cmd.Name}
}
