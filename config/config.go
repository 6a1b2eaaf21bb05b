// Package config loads batch extraction settings from an HCL file.
//
//	section  = ".fsm_trace"
//	format   = "auto"
//	checksum = "crc32"
//	workers  = 4
//	timeout  = "30s"
//	policy   = "fsm.hcl"
//
//	job "boot" {
//	  input  = "build/boot.elf"
//	  output = "${env.OUT_DIR}/boot.fsmt"
//	}
//
// Expressions may reference the process environment as env.NAME. Relative
// paths resolve against the directory holding the file. When policy is set,
// every extracted trace is checked against it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	fsmtrace "github.com/wippyai/fsm-trace"
	"github.com/wippyai/fsm-trace/errors"
	"github.com/wippyai/fsm-trace/extract"
	"github.com/wippyai/fsm-trace/locate"
	"github.com/wippyai/fsm-trace/stream"
)

// StreamExt replaces the input extension when a job names no output.
const StreamExt = ".fsmt"

// DefaultOutput returns the stream path used for input when none is given.
func DefaultOutput(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + StreamExt
}

// Config is a validated batch configuration.
type Config struct {
	Path     string
	Section  string
	Policy   string
	Jobs     []Job
	Timeout  time.Duration
	Workers  int
	Format   locate.Format
	Checksum stream.Checksum
}

// Job is one named input binary and its stream destination.
type Job struct {
	Name   string
	Input  string
	Output string
}

type fileRoot struct {
	Section  *string   `hcl:"section,optional"`
	Format   *string   `hcl:"format,optional"`
	Checksum *string   `hcl:"checksum,optional"`
	Workers  *int      `hcl:"workers,optional"`
	Timeout  *string   `hcl:"timeout,optional"`
	Policy   *string   `hcl:"policy,optional"`
	Jobs     []*hclJob `hcl:"job,block"`
}

type hclJob struct {
	Name   string  `hcl:"name,label"`
	Input  string  `hcl:"input"`
	Output *string `hcl:"output,optional"`
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.IO(path, "read config", err)
	}
	return Parse(src, path)
}

// Parse decodes src as the configuration file filename. Relative paths are
// resolved against filename's directory.
func Parse(src []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, errors.InvalidConfig(filename, "parse", diags)
	}

	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, EvalContext(), &root); diags.HasErrors() {
		return nil, errors.InvalidConfig(filename, "decode", diags)
	}

	cfg := &Config{
		Path:    filename,
		Section: fsmtrace.DefaultSectionName,
		Workers: runtime.GOMAXPROCS(0),
	}
	if err := cfg.apply(&root); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) apply(root *fileRoot) error {
	invalid := func(format string, args ...any) error {
		return errors.InvalidConfig(c.Path, fmt.Sprintf(format, args...), nil)
	}

	if root.Section != nil {
		if *root.Section == "" {
			return invalid("section must not be empty")
		}
		c.Section = *root.Section
	}
	if root.Format != nil {
		f, err := locate.ParseFormat(*root.Format)
		if err != nil {
			return errors.InvalidConfig(c.Path, "format", err)
		}
		c.Format = f
	}
	if root.Checksum != nil {
		sum, err := stream.ParseChecksum(*root.Checksum)
		if err != nil {
			return errors.InvalidConfig(c.Path, "checksum", err)
		}
		c.Checksum = sum
	}
	if root.Workers != nil {
		if *root.Workers < 1 {
			return invalid("workers must be at least 1, got %d", *root.Workers)
		}
		c.Workers = *root.Workers
	}
	if root.Timeout != nil {
		d, err := time.ParseDuration(*root.Timeout)
		if err != nil {
			return errors.InvalidConfig(c.Path, "timeout", err)
		}
		if d < 0 {
			return invalid("timeout must not be negative")
		}
		c.Timeout = d
	}
	if root.Policy != nil && *root.Policy != "" {
		c.Policy = c.resolve(*root.Policy)
	}

	if len(root.Jobs) == 0 {
		return invalid("no job blocks")
	}
	seen := make(map[string]bool, len(root.Jobs))
	for _, j := range root.Jobs {
		if seen[j.Name] {
			return invalid("duplicate job %q", j.Name)
		}
		seen[j.Name] = true
		if j.Input == "" {
			return invalid("job %q: input must not be empty", j.Name)
		}

		job := Job{Name: j.Name, Input: c.resolve(j.Input)}
		if j.Output != nil && *j.Output != "" {
			job.Output = c.resolve(*j.Output)
		} else {
			job.Output = DefaultOutput(job.Input)
		}
		c.Jobs = append(c.Jobs, job)
	}
	return nil
}

func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(c.Path), p)
}

// Options returns the per-run extraction options.
func (c *Config) Options() extract.Options {
	return extract.Options{Section: c.Section, Format: c.Format, Checksum: c.Checksum}
}

// BatchOptions returns the worker pool bounds.
func (c *Config) BatchOptions() extract.BatchOptions {
	return extract.BatchOptions{Workers: c.Workers, RunTimeout: c.Timeout}
}

// ExtractJobs converts the configured jobs for extract.Batch.
func (c *Config) ExtractJobs() []extract.Job {
	opts := c.Options()
	out := make([]extract.Job, len(c.Jobs))
	for i, j := range c.Jobs {
		out[i] = extract.Job{Name: j.Name, Input: j.Input, Output: j.Output, Options: opts}
	}
	return out
}

// EvalContext exposes the process environment to expressions as env.NAME.
func EvalContext() *hcl.EvalContext {
	vars := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			continue
		}
		vars[name] = cty.StringVal(value)
	}

	env := cty.MapValEmpty(cty.String)
	if len(vars) > 0 {
		env = cty.MapVal(vars)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": env},
	}
}
