// Package extract runs the extraction pipeline for one binary or many.
//
// A run locates the metadata section, decodes it into records and encodes
// the trace stream, each stage consuming its predecessor's whole output. A
// fatal diagnostic stops the run before encoding and no stream is returned;
// advisory diagnostics are returned alongside the complete stream.
package extract

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	fsmtrace "github.com/wippyai/fsm-trace"
	"github.com/wippyai/fsm-trace/diag"
	"github.com/wippyai/fsm-trace/errors"
	"github.com/wippyai/fsm-trace/locate"
	"github.com/wippyai/fsm-trace/record"
	"github.com/wippyai/fsm-trace/stream"
)

// Options configures one extraction run.
type Options struct {
	// Section is the ELF-style section name; empty selects .fsm_trace.
	Section  string
	Format   locate.Format
	Checksum stream.Checksum
}

// Result is the outcome of a run. Stream is set only when State is Done;
// after a TruncatedSection, Records holds the whole records before the
// trailing bytes and must not be encoded.
type Result struct {
	Report  *diag.Report
	Section *locate.Section
	Path    string
	Records []fsmtrace.RawRecord
	Stream  []byte
	State   diag.State
}

// Extract runs the pipeline over the binary at path.
//
// On a fatal condition the returned error carries the failing kind and the
// Result still reports the diagnostics and the state the run failed in.
func Extract(ctx context.Context, path string, opts Options) (*Result, error) {
	log := Logger().With(zap.String("path", path))
	run := diag.NewRun()
	res := &Result{Path: path, Report: diag.NewReport()}

	fail := func(err error) (*Result, error) {
		if d, ok := diag.FromError(err); ok && !res.Report.HasFatal() {
			res.Report.Add(d)
		}
		if ferr := run.Fail(errors.KindOf(err)); ferr != nil {
			return nil, ferr
		}
		res.State = run.State()
		log.Debug("extraction failed", zap.Error(err))
		return res, fmt.Errorf("extract %s: %w", path, err)
	}

	sec, err := locate.Locate(ctx, path, locate.Options{Name: opts.Section, Format: opts.Format})
	if err != nil {
		return fail(err)
	}
	res.Section = sec
	res.Report.Add(sec.Diagnostics...)
	if err := run.Advance(diag.StateLocated); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return fail(errors.Canceled(errors.PhaseDecode, path, err))
	}
	decoded, err := record.DecodeParts(sec.Data, spans(sec.Parts))
	if decoded != nil {
		// Kept on truncation so callers can inspect what did decode.
		res.Records = decoded.Records
		res.Report.Add(decoded.Diagnostics...)
	}
	if err != nil {
		return fail(err)
	}
	if err := run.Advance(diag.StateDecoded); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return fail(errors.Canceled(errors.PhaseEncode, path, err))
	}
	data, err := stream.Encode(res.Records, opts.Checksum)
	if err != nil {
		return fail(err)
	}
	if err := run.Advance(diag.StateEncoded); err != nil {
		return nil, err
	}

	res.Stream = data
	if err := run.Advance(diag.StateDone); err != nil {
		return nil, err
	}
	res.State = run.State()

	for _, d := range res.Report.Advisories() {
		log.Warn("advisory diagnostic", zap.Object("diagnostic", d))
	}
	log.Debug("extraction done",
		zap.Stringer("format", sec.Format),
		zap.Int("records", len(res.Records)),
		zap.Int("stream_bytes", len(data)),
		zap.Stringer("checksum", opts.Checksum))
	return res, nil
}

func spans(parts []locate.Part) []record.Span {
	out := make([]record.Span, len(parts))
	for i, p := range parts {
		out[i] = record.Span{Offset: p.Offset, Size: p.Size}
	}
	return out
}
