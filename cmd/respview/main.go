package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// version is set at build time.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(exitCodeForError(err))
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return runServeCommand(ctx, nil)
	}
	switch args[0] {
	case "serve":
		return runServeCommand(ctx, args[1:])
	case "devices":
		return runDevicesCommand(args[1:], stdout)
	case "version", "--version", "-v":
		fmt.Fprintf(stdout, "respview %s\n", version)
		return nil
	case "help", "--help", "-h":
		printUsage(stdout)
		return nil
	default:
		printUsage(os.Stderr)
		return usageError(fmt.Errorf("unknown command %q", args[0]))
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `Usage: respview <command> [flags]

Commands:
  serve     run the mirror server (default)
  devices   list device presets
  version   print the version`)
}
