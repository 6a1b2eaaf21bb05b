// Package record decodes the bytes of a metadata section into the ordered
// sequence of state-tag records.
//
// The section is a flat concatenation of 4-byte little-endian words, one per
// tag, in the order the linker laid them out. That order is program order
// within a single translation unit; across units it depends on how the
// linker merged the input sections and is best effort only.
package record

import (
	"fmt"

	fsmtrace "github.com/wippyai/fsm-trace"
	"github.com/wippyai/fsm-trace/diag"
	"github.com/wippyai/fsm-trace/errors"
	"github.com/wippyai/fsm-trace/internal/binary"
)

// Span is a contiguous region of a merged section that came from one
// input section.
type Span struct {
	Offset int64
	Size   int64
}

// Result holds decoded records and the diagnostics raised while decoding.
type Result struct {
	Records     []fsmtrace.RawRecord
	Diagnostics []diag.Diagnostic
}

// Decode decodes data as a single span.
func Decode(data []byte) (*Result, error) {
	return DecodeParts(data, []Span{{Offset: 0, Size: int64(len(data))}})
}

// DecodeParts decodes each span of data independently. Record offsets are
// relative to the start of data. The spans must cover data contiguously from
// offset 0 to len(data); anything else is an invalid_input error.
//
// A span whose size is not a multiple of 4 stops decoding with a fatal
// TruncatedSection: the returned Result holds the records decoded before the
// trailing bytes (plus the fatal diagnostic) and the error is non-nil. Callers
// must not encode a truncated result.
func DecodeParts(data []byte, parts []Span) (*Result, error) {
	res := &Result{}
	if err := checkSpans(data, parts); err != nil {
		return nil, err
	}

	for _, p := range parts {
		if err := decodeSpan(data[p.Offset:p.Offset+p.Size], p.Offset, res); err != nil {
			return res, err
		}
	}
	return res, nil
}

func decodeSpan(span []byte, base int64, res *Result) error {
	whole := len(span) - len(span)%fsmtrace.RecordSize
	r := binary.NewReader(span[:whole])

	for r.Len() > 0 {
		off := base + int64(r.Position())
		word, err := r.ReadU32LE()
		if err != nil {
			return r.WrapError("record", err)
		}
		tag := fsmtrace.StateTag(word)
		if tag.IsSentinel() {
			res.Diagnostics = append(res.Diagnostics, diag.Diagnostic{
				Kind:     diag.KindSentinelTagObserved,
				Offset:   off,
				Expected: "non-zero state tag",
				Observed: tag.String(),
			})
		}
		res.Records = append(res.Records, fsmtrace.RawRecord{Offset: off, Tag: tag})
	}

	if whole != len(span) {
		err := errors.TruncatedSection(base+int64(whole), len(span))
		err.Detail = fmt.Sprintf("%d trailing bytes", len(span)-whole)
		res.Diagnostics = append(res.Diagnostics, diag.Diagnostic{
			Kind:     diag.KindTruncatedSection,
			Offset:   err.Offset,
			Expected: err.Expected,
			Observed: err.Observed,
			Detail:   err.Detail,
		})
		return err
	}
	return nil
}

// checkSpans requires parts to tile data exactly, in order, so no section
// byte is skipped.
func checkSpans(data []byte, parts []Span) error {
	var end int64
	for i, p := range parts {
		if p.Offset != end || p.Size < 0 || p.Offset+p.Size > int64(len(data)) {
			return errors.New(errors.PhaseDecode, errors.KindInvalidInput).
				Offset(p.Offset).
				Detail("span %d [%d, %d) does not continue at %d in section of %d bytes", i, p.Offset, p.Offset+p.Size, end, len(data)).
				Build()
		}
		end = p.Offset + p.Size
	}
	if end != int64(len(data)) {
		return errors.New(errors.PhaseDecode, errors.KindInvalidInput).
			Offset(end).
			Detail("spans cover %d of %d section bytes", end, len(data)).
			Build()
	}
	return nil
}
