package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	fsmtrace "github.com/wippyai/fsm-trace"
	"github.com/wippyai/fsm-trace/extract"
	"github.com/wippyai/fsm-trace/locate"
	"github.com/wippyai/fsm-trace/stream"
)

// commonFlags are accepted by every command.
type commonFlags struct {
	logLevel *string
	section  *string
	format   *string
	checksum *string
}

func newFlagSet(name, usage string, stderr io.Writer) (*flag.FlagSet, *commonFlags) {
	fs := flag.NewFlagSet("fsmtrace "+name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: fsmtrace %s %s\n\nFlags:\n", name, usage)
		fs.PrintDefaults()
	}

	c := &commonFlags{
		logLevel: fs.String("log-level", "error", "Log level: debug, info, warn or error"),
		section:  fs.String("section", fsmtrace.DefaultSectionName, "Metadata section name"),
		format:   fs.String("format", "auto", "Container format: auto, elf, macho, wasm or raw"),
		checksum: fs.String("checksum", "crc32", "Stream checksum: crc32, sum or none"),
	}
	return fs, c
}

// parse parses args and converts flag errors to usage errors. A help request
// returns errHelp.
func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return errHelp
		}
		return &ExitError{Code: exitUsage}
	}
	return nil
}

var errHelp = &ExitError{Code: 0}

func (c *commonFlags) options() (extract.Options, error) {
	format, err := locate.ParseFormat(*c.format)
	if err != nil {
		return extract.Options{}, usageError("%v", err)
	}
	sum, err := stream.ParseChecksum(*c.checksum)
	if err != nil {
		return extract.Options{}, usageError("%v", err)
	}
	if *c.section == "" {
		return extract.Options{}, usageError("-section must not be empty")
	}
	return extract.Options{Section: *c.section, Format: format, Checksum: sum}, nil
}

// setupLogging installs a console logger on stderr for the pipeline packages.
func (c *commonFlags) setupLogging(stderr io.Writer) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(*c.logLevel))
	if err != nil {
		return nil, usageError("invalid -log-level %q: must be debug, info, warn or error", *c.logLevel)
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(stderr), level)
	log := zap.New(core)

	locate.SetLogger(log.Named("locate"))
	extract.SetLogger(log.Named("extract"))
	return log, nil
}
