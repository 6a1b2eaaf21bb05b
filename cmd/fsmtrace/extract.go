package main

import (
	"context"
	"io"

	"github.com/wippyai/fsm-trace/config"
	"github.com/wippyai/fsm-trace/errors"
	"github.com/wippyai/fsm-trace/extract"
)

// stdoutPath selects standard output as the stream destination.
const stdoutPath = "-"

func runExtract(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, common := newFlagSet("extract", "[flags] -in BIN [-out TRACE] | BIN [TRACE]", stderr)
	in := fs.String("in", "", "Input binary")
	out := fs.String("out", "", "Output trace stream, - for stdout (default: BIN with a .fsmt extension)")
	if err := parse(fs, args); err != nil {
		return err
	}
	opts, err := common.options()
	if err != nil {
		return err
	}
	log, err := common.setupLogging(stderr)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	input, output := *in, *out
	rest := fs.Args()
	if input == "" && len(rest) > 0 {
		input, rest = rest[0], rest[1:]
	}
	if output == "" && len(rest) > 0 {
		output, rest = rest[0], rest[1:]
	}
	if len(rest) > 0 {
		return usageError("unexpected arguments: %v", rest)
	}
	if input == "" {
		return usageError("missing input binary (-in)")
	}
	if output == "" {
		output = config.DefaultOutput(input)
	}

	p := newPrinter(stderr)
	res, err := extract.Extract(ctx, input, opts)
	if res != nil {
		p.diagnostics(input, res.Report.All())
	}
	if err != nil {
		return err
	}

	if output == stdoutPath {
		if _, err := stdout.Write(res.Stream); err != nil {
			return errors.IO(stdoutPath, "write stream", err)
		}
	} else if err := extract.WriteStream(output, res.Stream); err != nil {
		return err
	}
	p.success("%s: %d records -> %s", input, len(res.Records), output)
	return nil
}
