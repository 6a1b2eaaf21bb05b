package config_test

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/wippyai/fsm-trace/config"
	"github.com/wippyai/fsm-trace/errors"
	"github.com/wippyai/fsm-trace/locate"
	"github.com/wippyai/fsm-trace/stream"
)

func TestParseFull(t *testing.T) {
	t.Setenv("FSMT_OUT", "/srv/traces")
	src := `
section  = ".fsm_alt"
format   = "elf"
checksum = "sum"
workers  = 3
timeout  = "1m30s"
policy   = "fsm.hcl"

job "boot" {
  input  = "build/boot.elf"
  output = "${env.FSMT_OUT}/boot.fsmt"
}

job "app" {
  input = "/abs/app.elf"
}
`
	cfg, err := config.Parse([]byte(src), "/work/batch.hcl")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.Section != ".fsm_alt" || cfg.Format != locate.FormatELF || cfg.Checksum != stream.ChecksumSum {
		t.Errorf("got section %q format %s checksum %s", cfg.Section, cfg.Format, cfg.Checksum)
	}
	if cfg.Workers != 3 || cfg.Timeout != 90*time.Second {
		t.Errorf("got workers %d timeout %s", cfg.Workers, cfg.Timeout)
	}
	if cfg.Policy != filepath.Join("/work", "fsm.hcl") {
		t.Errorf("policy = %q", cfg.Policy)
	}

	want := []config.Job{
		{Name: "boot", Input: filepath.Join("/work", "build/boot.elf"), Output: "/srv/traces/boot.fsmt"},
		{Name: "app", Input: "/abs/app.elf", Output: "/abs/app.fsmt"},
	}
	if len(cfg.Jobs) != len(want) {
		t.Fatalf("got %d jobs, want %d", len(cfg.Jobs), len(want))
	}
	for i := range want {
		if cfg.Jobs[i] != want[i] {
			t.Errorf("job %d = %+v, want %+v", i, cfg.Jobs[i], want[i])
		}
	}

	jobs := cfg.ExtractJobs()
	if jobs[0].Options.Section != ".fsm_alt" || jobs[1].Options.Checksum != stream.ChecksumSum {
		t.Errorf("job options not propagated: %+v", jobs[0].Options)
	}
	if b := cfg.BatchOptions(); b.Workers != 3 || b.RunTimeout != 90*time.Second {
		t.Errorf("batch options = %+v", b)
	}
}

func TestParseDefaults(t *testing.T) {
	cfg, err := config.Parse([]byte(`job "a" { input = "a.elf" }`), "batch.hcl")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Section != ".fsm_trace" {
		t.Errorf("section = %q", cfg.Section)
	}
	if cfg.Format != locate.FormatAuto || cfg.Checksum != stream.ChecksumCRC32 {
		t.Errorf("format %s checksum %s", cfg.Format, cfg.Checksum)
	}
	if cfg.Workers != runtime.GOMAXPROCS(0) || cfg.Timeout != 0 || cfg.Policy != "" {
		t.Errorf("workers %d timeout %s policy %q", cfg.Workers, cfg.Timeout, cfg.Policy)
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"syntax", `job "a" {`, "parse"},
		{"no jobs", `workers = 2`, "no job blocks"},
		{"duplicate job", `
job "a" { input = "a.elf" }
job "a" { input = "b.elf" }`, "duplicate job"},
		{"empty input", `job "a" { input = "" }`, "input must not be empty"},
		{"zero workers", `
workers = 0
job "a" { input = "a.elf" }`, "workers must be at least 1"},
		{"bad format", `
format = "pe"
job "a" { input = "a.elf" }`, "format"},
		{"bad checksum", `
checksum = "md5"
job "a" { input = "a.elf" }`, "checksum"},
		{"bad timeout", `
timeout = "soon"
job "a" { input = "a.elf" }`, "timeout"},
		{"unknown attribute", `
threads = 2
job "a" { input = "a.elf" }`, "decode"},
		{"unset env", `job "a" { input = env.FSMT_SURELY_UNSET_VARIABLE }`, "decode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tt.src), "batch.hcl")
			if errors.KindOf(err) != errors.KindInvalidConfig {
				t.Fatalf("expected invalid_config, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "batch.hcl")
	if err := os.WriteFile(path, []byte(`job "fw" { input = "fw.elf" }`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Jobs[0].Input != filepath.Join(dir, "fw.elf") || cfg.Jobs[0].Output != filepath.Join(dir, "fw.fsmt") {
		t.Errorf("job = %+v", cfg.Jobs[0])
	}

	if _, err := config.Load(filepath.Join(dir, "missing.hcl")); errors.KindOf(err) != errors.KindIO {
		t.Errorf("expected io error, got %v", err)
	}
}
