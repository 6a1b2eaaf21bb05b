package extract_test

import (
	"bytes"
	"context"
	"debug/elf"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	fsmtrace "github.com/wippyai/fsm-trace"
	"github.com/wippyai/fsm-trace/diag"
	"github.com/wippyai/fsm-trace/errors"
	"github.com/wippyai/fsm-trace/extract"
	"github.com/wippyai/fsm-trace/internal/testbin"
	"github.com/wippyai/fsm-trace/locate"
	"github.com/wippyai/fsm-trace/stream"
)

func elfWith(t *testing.T, words ...uint32) string {
	t.Helper()
	bin := testbin.ELF64(
		testbin.ELFSection{Name: ".text", Data: []byte{0x13, 0, 0, 0}, Type: elf.SHT_PROGBITS, Align: 4},
		testbin.TagSection(fsmtrace.DefaultSectionName, testbin.Words(words...)),
	)
	return testbin.WriteFile(t, "fw.elf", bin)
}

func TestExtractSentinel(t *testing.T) {
	res, err := extract.Extract(context.Background(), elfWith(t, 1, 0, 3), extract.Options{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.State != diag.StateDone {
		t.Errorf("state = %s, want done", res.State)
	}
	want := []fsmtrace.RawRecord{{Offset: 0, Tag: 1}, {Offset: 4, Tag: 0}, {Offset: 8, Tag: 3}}
	if len(res.Records) != len(want) {
		t.Fatalf("got %d records, want %d", len(res.Records), len(want))
	}
	for i := range want {
		if res.Records[i] != want[i] {
			t.Errorf("record %d = %+v, want %+v", i, res.Records[i], want[i])
		}
	}

	ds := res.Report.All()
	if len(ds) != 1 || ds[0].Kind != diag.KindSentinelTagObserved || ds[0].Offset != 4 {
		t.Errorf("diagnostics = %v, want one SentinelTagObserved at 4", ds)
	}
	if res.Report.HasFatal() {
		t.Error("advisory must not be fatal")
	}

	s, err := stream.Decode(res.Stream, stream.ChecksumCRC32)
	if err != nil {
		t.Fatalf("decode stream: %v", err)
	}
	if got := fmt.Sprint(s.Tags); got != fmt.Sprint([]fsmtrace.StateTag{1, 0, 3}) {
		t.Errorf("stream tags = %s", got)
	}
}

func TestExtractEmpty(t *testing.T) {
	res, err := extract.Extract(context.Background(), elfWith(t), extract.Options{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Report.Len() != 0 {
		t.Errorf("diagnostics = %v", res.Report.All())
	}
	if len(res.Stream) != stream.Size(0) {
		t.Errorf("stream length = %d, want %d", len(res.Stream), stream.Size(0))
	}
}

func TestExtractTruncated(t *testing.T) {
	path := testbin.WriteFile(t, "trace.raw", []byte{1, 0, 0, 0, 2, 0, 0})
	res, err := extract.Extract(context.Background(), path, extract.Options{Format: locate.FormatRaw})
	if !errors.Is(err, errors.ErrTruncatedSection) {
		t.Fatalf("expected TruncatedSection, got %v", err)
	}
	if res == nil {
		t.Fatal("failed run should still report")
	}
	if res.Stream != nil {
		t.Errorf("truncated run produced a stream of %d bytes", len(res.Stream))
	}
	if res.State != diag.StateFailed {
		t.Errorf("state = %s, want failed", res.State)
	}
	if len(res.Records) != 1 || res.Records[0].Tag != 1 {
		t.Errorf("partial records = %+v", res.Records)
	}
	d, ok := res.Report.Fatal()
	if !ok || d.Kind != diag.KindTruncatedSection || d.Offset != 4 {
		t.Errorf("fatal = %v, %v", d, ok)
	}
	if n := res.Report.Count(diag.KindTruncatedSection); n != 1 {
		t.Errorf("TruncatedSection reported %d times", n)
	}
}

func TestExtractSectionNotFound(t *testing.T) {
	bin := testbin.ELF64(testbin.ELFSection{Name: ".text", Type: elf.SHT_PROGBITS, Align: 4})
	path := testbin.WriteFile(t, "fw.elf", bin)

	res, err := extract.Extract(context.Background(), path, extract.Options{})
	if !errors.Is(err, errors.ErrSectionNotFound) {
		t.Fatalf("expected SectionNotFound, got %v", err)
	}
	if d, ok := res.Report.Fatal(); !ok || d.Kind != diag.KindSectionNotFound {
		t.Errorf("fatal = %v, %v", d, ok)
	}
	if res.Section != nil || res.Stream != nil {
		t.Error("failed locate must not leave a section or stream")
	}
}

func TestExtractMergedPartTruncated(t *testing.T) {
	bin := testbin.ELF64(
		testbin.TagSection(fsmtrace.DefaultSectionName, []byte{1, 0, 0, 0, 2, 0}),
		testbin.TagSection(fsmtrace.DefaultSectionName, []byte{3, 0}),
	)
	path := testbin.WriteFile(t, "fw.elf", bin)

	// 8 bytes in total, but each input section is misaligned on its own.
	_, err := extract.Extract(context.Background(), path, extract.Options{})
	if !errors.Is(err, errors.ErrTruncatedSection) {
		t.Fatalf("expected TruncatedSection, got %v", err)
	}
}

func TestExtractMerged(t *testing.T) {
	bin := testbin.ELF64(
		testbin.TagSection(fsmtrace.DefaultSectionName, testbin.Words(1, 2)),
		testbin.TagSection(fsmtrace.DefaultSectionName, testbin.Words(3)),
	)
	path := testbin.WriteFile(t, "fw.elf", bin)

	res, err := extract.Extract(context.Background(), path, extract.Options{Checksum: stream.ChecksumSum})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Report.Count(diag.KindMergedSections) != 1 {
		t.Errorf("diagnostics = %v", res.Report.All())
	}
	s, err := stream.Decode(res.Stream, stream.ChecksumSum)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if fmt.Sprint(s.Tags) != fmt.Sprint([]fsmtrace.StateTag{1, 2, 3}) {
		t.Errorf("tags = %v", s.Tags)
	}
}

func TestExtractDeterministic(t *testing.T) {
	path := elfWith(t, 0x10, 0x20, 0x30)
	a, err := extract.Extract(context.Background(), path, extract.Options{})
	if err != nil {
		t.Fatal(err)
	}
	b, err := extract.Extract(context.Background(), path, extract.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Stream, b.Stream) {
		t.Error("two runs over the same binary produced different streams")
	}
}

func TestExtractCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := extract.Extract(ctx, elfWith(t, 1), extract.Options{})
	if errors.KindOf(err) != errors.KindCanceled {
		t.Fatalf("expected canceled, got %v", err)
	}
	if res.State != diag.StateFailed {
		t.Errorf("state = %s", res.State)
	}
}

func TestBatchMatchesSequential(t *testing.T) {
	var jobs []extract.Job
	for i := range 16 {
		bin := testbin.ELF64(testbin.TagSection(fsmtrace.DefaultSectionName, testbin.Words(uint32(i+1), 0, uint32(i+100))))
		path := testbin.WriteFile(t, fmt.Sprintf("fw%02d.elf", i), bin)
		jobs = append(jobs, extract.Job{Name: filepath.Base(path), Input: path})
	}

	results := extract.Batch(context.Background(), jobs, extract.BatchOptions{Workers: 4})
	if len(results) != len(jobs) {
		t.Fatalf("got %d results, want %d", len(results), len(jobs))
	}
	for i, r := range results {
		if r.Err != nil {
			t.Fatalf("job %d: %v", i, r.Err)
		}
		if r.Job.Input != jobs[i].Input {
			t.Errorf("result %d is for %s, want %s", i, r.Job.Input, jobs[i].Input)
		}
		seq, err := extract.Extract(context.Background(), jobs[i].Input, extract.Options{})
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(seq.Stream, r.Result.Stream) {
			t.Errorf("job %d: concurrent stream differs from sequential", i)
		}
		if r.Result.Report.Count(diag.KindSentinelTagObserved) != 1 {
			t.Errorf("job %d: diagnostics = %v", i, r.Result.Report.All())
		}
	}
}

func TestBatchIsolatesFailures(t *testing.T) {
	out := t.TempDir()
	good := elfWith(t, 1, 2)
	bad := testbin.WriteFile(t, "script.sh", []byte("#!/bin/sh\n"))
	missing := filepath.Join(t.TempDir(), "missing.elf")

	jobs := []extract.Job{
		{Name: "bad", Input: bad, Output: filepath.Join(out, "bad.fsmt")},
		{Name: "good", Input: good, Output: filepath.Join(out, "good.fsmt")},
		{Name: "missing", Input: missing},
	}
	results := extract.Batch(context.Background(), jobs, extract.BatchOptions{Workers: 2, RunTimeout: time.Minute})

	if !errors.Is(results[0].Err, errors.ErrContainerUnsupported) {
		t.Errorf("bad: %v", results[0].Err)
	}
	if results[1].Err != nil {
		t.Fatalf("good: %v", results[1].Err)
	}
	if errors.KindOf(results[2].Err) != errors.KindIO {
		t.Errorf("missing: %v", results[2].Err)
	}

	data, err := os.ReadFile(filepath.Join(out, "good.fsmt"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.Equal(data, results[1].Result.Stream) {
		t.Error("written stream differs from result")
	}
	if _, err := os.Stat(filepath.Join(out, "bad.fsmt")); !os.IsNotExist(err) {
		t.Errorf("failed job left an output file: %v", err)
	}
}

func TestWriteStreamReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "trace.fsmt")
	if err := extract.WriteStream(path, []byte("old")); err != nil {
		t.Fatal(err)
	}
	if err := extract.WriteStream(path, []byte("new")); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil || string(got) != "new" {
		t.Errorf("got %q, %v", got, err)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %d entries", len(entries))
	}
}

func TestWriteStreamMode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not portable")
	}
	path := filepath.Join(t.TempDir(), "trace.fsmt")
	if err := extract.WriteStream(path, []byte("data")); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != extract.StreamMode {
		t.Errorf("mode = %v, want %v", info.Mode().Perm(), extract.StreamMode)
	}
}
