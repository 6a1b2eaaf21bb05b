package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/wippyai/fsm-trace/policy"
)

func runInspect(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, common := newFlagSet("inspect", "[flags] [-i] [-policy FILE] INPUT", stderr)
	policyPath := fs.String("policy", "", "FSM policy file used to name states")
	interactive := fs.Bool("i", false, "Browse records interactively")
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

	if fs.NArg() != 1 {
		return usageError("expected exactly one INPUT, got %d", fs.NArg())
	}
	input := fs.Arg(0)

	var pol *policy.Policy
	if *policyPath != "" {
		if pol, err = policy.Load(*policyPath); err != nil {
			return err
		}
	}

	tr, loadErr := loadTrace(ctx, input, opts)
	if tr == nil {
		return loadErr
	}

	if *interactive {
		if err := runInteractive(tr, pol); err != nil {
			return err
		}
		return loadErr
	}

	newPrinter(stderr).diagnostics(input, tr.report.All())
	if err := printRecords(stdout, tr, pol); err != nil {
		return err
	}
	return loadErr
}

func printRecords(w io.Writer, tr *trace, pol *policy.Policy) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	source := "section"
	if tr.fromStream {
		source = "stream"
	}
	fmt.Fprintf(tw, "# %s: %d records (%s offsets)\n", tr.path, len(tr.records), source)
	fmt.Fprintln(tw, "INDEX\tOFFSET\tTAG\tDECIMAL\tSTATE")
	for i, r := range tr.records {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%d\t%s\n", i, r.Offset, r.Tag, uint32(r.Tag), stateName(pol, r.Tag))
	}
	return tw.Flush()
}
