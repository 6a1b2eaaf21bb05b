package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"

	fsmtrace "github.com/wippyai/fsm-trace"
	"github.com/wippyai/fsm-trace/config"
	"github.com/wippyai/fsm-trace/extract"
	"github.com/wippyai/fsm-trace/policy"
)

func runBatch(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, common := newFlagSet("batch", "[flags] -config FILE | -out-dir DIR BIN...", stderr)
	cfgPath := fs.String("config", "", "HCL batch configuration")
	outDir := fs.String("out-dir", "", "Directory for trace streams of the BIN arguments")
	workers := fs.Int("workers", runtime.GOMAXPROCS(0), "Concurrent extractions")
	timeout := fs.Duration("timeout", 0, "Per-binary timeout, 0 for none")
	policyPath := fs.String("policy", "", "FSM policy every extracted trace must satisfy")
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

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	var (
		jobs    []extract.Job
		bopts   extract.BatchOptions
		polPath = *policyPath
	)
	switch {
	case *cfgPath != "" && fs.NArg() > 0:
		return usageError("-config and BIN arguments are mutually exclusive")
	case *cfgPath != "":
		cfg, err := config.Load(*cfgPath)
		if err != nil {
			return err
		}
		overrideConfig(cfg, set, opts, *workers, *timeout)
		jobs, bopts = cfg.ExtractJobs(), cfg.BatchOptions()
		if !set["policy"] {
			polPath = cfg.Policy
		}
		log.Debug("loaded batch config", zap.String("path", cfg.Path), zap.Int("jobs", len(jobs)))
	case fs.NArg() > 0:
		if *outDir == "" {
			return usageError("BIN arguments need -out-dir")
		}
		jobs, err = jobsFromArgs(fs.Args(), *outDir, opts)
		if err != nil {
			return err
		}
		bopts = extract.BatchOptions{Workers: *workers, RunTimeout: *timeout}
	default:
		return usageError("nothing to do: give -config FILE or -out-dir DIR BIN...")
	}
	if bopts.Workers < 1 {
		return usageError("-workers must be at least 1")
	}

	var pol *policy.Policy
	if polPath != "" {
		if pol, err = policy.Load(polPath); err != nil {
			return err
		}
	}

	p := newPrinter(stderr)
	failed := 0
	for _, r := range extract.Batch(ctx, jobs, bopts) {
		if r.Result != nil {
			p.diagnostics(r.Job.Input, r.Result.Report.All())
		}
		if r.Err != nil {
			failed++
			p.failure("FAIL %s: %v", r.Job.Name, r.Err)
			continue
		}
		if pol != nil && !checkJob(p, pol, r) {
			failed++
			continue
		}
		p.success("ok   %s: %d records -> %s (%s)", r.Job.Name, len(r.Result.Records), r.Job.Output, r.Elapsed.Round(time.Millisecond))
	}

	if failed > 0 {
		return &ExitError{Code: exitBatch, Message: fmt.Sprintf("%d of %d jobs failed", failed, len(jobs))}
	}
	return nil
}

// checkJob checks the trace of a successful job against pol and prints the
// violations under a FAIL line. The stream has already been written.
func checkJob(p *printer, pol *policy.Policy, r extract.JobResult) bool {
	tags := fsmtrace.Tags(r.Result.Records)
	violations := pol.Check(tags)
	if len(violations) == 0 {
		return true
	}
	p.failure("FAIL %s: %d policy violations", r.Job.Name, len(violations))
	for _, v := range violations {
		fmt.Fprintf(p.w, "  - %s: %s\n", v.Kind, v)
	}
	p.note("  trace: %s", strings.Join(pol.Names(tags), " -> "))
	return false
}

// overrideConfig applies flags given explicitly on the command line over
// the configuration file.
func overrideConfig(cfg *config.Config, set map[string]bool, opts extract.Options, workers int, timeout time.Duration) {
	if set["section"] {
		cfg.Section = opts.Section
	}
	if set["format"] {
		cfg.Format = opts.Format
	}
	if set["checksum"] {
		cfg.Checksum = opts.Checksum
	}
	if set["workers"] {
		cfg.Workers = workers
	}
	if set["timeout"] {
		cfg.Timeout = timeout
	}
}

func jobsFromArgs(bins []string, outDir string, opts extract.Options) ([]extract.Job, error) {
	jobs := make([]extract.Job, len(bins))
	owner := make(map[string]string, len(bins))
	for i, bin := range bins {
		out := filepath.Join(outDir, filepath.Base(config.DefaultOutput(bin)))
		if prev, dup := owner[out]; dup {
			return nil, usageError("%s and %s would both write %s", prev, bin, out)
		}
		owner[out] = bin
		jobs[i] = extract.Job{Name: bin, Input: bin, Output: out, Options: opts}
	}
	return jobs, nil
}
