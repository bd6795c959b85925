// Admin Console - command-line client for the admin REST backend.
//
// The console keeps one authenticated session on disk (or in Redis), refreshes
// it transparently when the backend rejects an access token, and decides
// locally which admin actions the signed-in user may take.
//
//	console [-config path] <command> [flags]
//
// Run `console help` for the command list.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Exit codes.
const (
	exitError  = 1
	exitDenied = 2
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, errDenied) {
			if err != errDenied {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
			os.Exit(exitDenied)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}
}

// run parses the global flags and dispatches one command.
//
// Parameters:
//   - ctx: Cancelled on interrupt
//   - args: Command line without the program name
//   - stdout: Command results
//   - stderr: Diagnostics and the login hint
//
// Returns:
//   - error: nil on success; errDenied when a `can` check fails
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	global := newFlagSet("console", stderr)
	configPath := global.String("config", "", "configuration file (default $CONSOLE_CONFIG or configs/console.yaml)")
	if ok, err := parseFlags(global, args); !ok {
		return err
	}

	rest := global.Args()
	if len(rest) == 0 {
		printUsage(stderr)
		return errors.New("no command given")
	}

	name, cmdArgs := rest[0], rest[1:]
	switch name {
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	case "version":
		fmt.Fprintf(stdout, "console %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	cmd, ok := commands[name]
	if !ok {
		printUsage(stderr)
		return fmt.Errorf("unknown command %q", name)
	}

	a, err := setup(ctx, *configPath, stderr)
	if err != nil {
		return err
	}
	defer a.close()

	return cmd.run(ctx, a, cmdArgs, stdout)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: console [-config path] <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	for _, name := range commandOrder {
		fmt.Fprintf(w, "  %-12s %s\n", name, commands[name].summary)
	}
	fmt.Fprintf(w, "  %-12s %s\n", "version", "print the build version")
}
