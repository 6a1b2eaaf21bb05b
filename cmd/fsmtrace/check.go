package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/fsm-trace/policy"
)

func runCheck(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, common := newFlagSet("check", "[flags] -policy FILE INPUT", stderr)
	policyPath := fs.String("policy", "", "FSM policy file (HCL or JSON)")
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

	if *policyPath == "" {
		return usageError("missing -policy")
	}
	if fs.NArg() != 1 {
		return usageError("expected exactly one INPUT, got %d", fs.NArg())
	}
	input := fs.Arg(0)

	pol, err := policy.Load(*policyPath)
	if err != nil {
		return err
	}

	p := newPrinter(stderr)
	tr, err := loadTrace(ctx, input, opts)
	if tr != nil {
		p.diagnostics(input, tr.report.All())
	}
	if err != nil {
		return err
	}

	tags := tr.tags()
	path := strings.Join(pol.Names(tags), " -> ")
	violations := pol.Check(tags)
	log.Debug("policy checked",
		zap.String("input", input),
		zap.String("policy", pol.Path),
		zap.Int("tags", len(tags)),
		zap.Int("violations", len(violations)))

	if len(violations) == 0 {
		fmt.Fprintln(stdout, "FSM CHECK PASS")
		fmt.Fprintln(stdout, "Tag trace:", path)
		return nil
	}

	p.failure("FSM CHECK FAIL")
	for _, v := range violations {
		fmt.Fprintf(stderr, "  - %s: %s\n", v.Kind, v)
	}
	fmt.Fprintln(stderr, "Tag trace:", path)
	return &ExitError{Code: exitPolicy, Message: fmt.Sprintf("%d policy violations", len(violations))}
}
