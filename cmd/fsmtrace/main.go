// Command fsmtrace extracts FSM state-tag traces from compiled binaries.
//
//	fsmtrace extract [flags] -in BIN -out TRACE
//	fsmtrace batch   [flags] -config FILE | -out-dir DIR BIN...
//	fsmtrace check   [flags] -policy FILE INPUT
//	fsmtrace inspect [flags] [-i] [-policy FILE] INPUT
//
// Diagnostics and logs are written to stderr.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/wippyai/fsm-trace/errors"
)

const (
	exitFailure   = 1
	exitUsage     = 2
	exitContainer = 3
	exitSection   = 4
	exitTruncated = 5
	exitPolicy    = 6
	exitBatch     = 7
)

// ExitError carries a specific exit code.
type ExitError struct {
	Message string
	Code    int
}

func (e *ExitError) Error() string {
	return e.Message
}

func usageError(format string, args ...any) *ExitError {
	return &ExitError{Code: exitUsage, Message: fmt.Sprintf(format, args...)}
}

// exitCode maps an error returned by run to the process exit status.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	switch errors.KindOf(err) {
	case errors.KindContainerUnsupported:
		return exitContainer
	case errors.KindSectionNotFound:
		return exitSection
	case errors.KindTruncatedSection:
		return exitTruncated
	}
	return exitFailure
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		if msg := err.Error(); msg != "" {
			fmt.Fprintln(os.Stderr, "fsmtrace:", msg)
		}
		os.Exit(exitCode(err))
	}
}

type command struct {
	run     func(ctx context.Context, args []string, stdout, stderr io.Writer) error
	summary string
}

var commands = map[string]command{
	"extract": {runExtract, "extract one binary to a trace stream"},
	"batch":   {runBatch, "extract many binaries concurrently"},
	"check":   {runCheck, "check a trace against an FSM policy"},
	"inspect": {runInspect, "print the records and diagnostics of a binary or stream"},
}

var commandOrder = []string{"extract", "batch", "check", "inspect"}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		printUsage(stderr)
		return &ExitError{Code: exitUsage}
	}
	switch args[0] {
	case "-h", "-help", "--help", "help":
		printUsage(stderr)
		return nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		printUsage(stderr)
		return usageError("unknown command %q", args[0])
	}
	return cmd.run(ctx, args[1:], stdout, stderr)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: fsmtrace <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, name := range commandOrder {
		fmt.Fprintf(w, "  %-8s %s\n", name, commands[name].summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'fsmtrace <command> -h' for command flags.")
}
