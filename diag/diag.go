// Package diag collects structural anomalies found while extracting a trace
// and tracks the state of one extraction run.
//
// Every anomaly is a Diagnostic classified as fatal or advisory by its Kind.
// A fatal diagnostic ends the run before encoding; advisories travel with the
// successful result so callers can log them or reject the trace by their own
// policy. Nothing here escalates an advisory.
package diag

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"

	"github.com/wippyai/fsm-trace/errors"
)

// Severity classifies a diagnostic.
type Severity int

const (
	Advisory Severity = iota
	Fatal
)

func (s Severity) String() string {
	if s == Fatal {
		return "fatal"
	}
	return "advisory"
}

// Kind names an anomaly.
type Kind string

const (
	KindContainerUnsupported Kind = "ContainerFormatUnsupported"
	KindSectionNotFound      Kind = "SectionNotFound"
	KindTruncatedSection     Kind = "TruncatedSection"
	KindMergedSections       Kind = "MergedSections"
	KindSentinelTagObserved  Kind = "SentinelTagObserved"
	KindSectionAttributes    Kind = "SectionAttributes"
)

var fatalKinds = map[Kind]errors.Kind{
	KindContainerUnsupported: errors.KindContainerUnsupported,
	KindSectionNotFound:      errors.KindSectionNotFound,
	KindTruncatedSection:     errors.KindTruncatedSection,
}

// Severity returns the fixed classification of k.
func (k Kind) Severity() Severity {
	if _, ok := fatalKinds[k]; ok {
		return Fatal
	}
	return Advisory
}

// ErrorKind returns the error kind a fatal diagnostic fails the run with.
func (k Kind) ErrorKind() (errors.Kind, bool) {
	ek, ok := fatalKinds[k]
	return ek, ok
}

// NoOffset marks a diagnostic that does not refer to a byte position.
const NoOffset int64 = -1

// Diagnostic is one anomaly attached to an extraction run.
type Diagnostic struct {
	Kind     Kind
	Expected string
	Observed string
	Detail   string
	// Offset is relative to the start of the metadata section, or NoOffset.
	Offset int64
}

// Severity returns the classification of the diagnostic's kind.
func (d Diagnostic) Severity() Severity {
	return d.Kind.Severity()
}

func (d Diagnostic) String() string {
	var b strings.Builder
	b.WriteString(d.Severity().String())
	b.WriteString(": ")
	b.WriteString(string(d.Kind))
	if d.Offset != NoOffset {
		fmt.Fprintf(&b, " at offset %d", d.Offset)
	}
	if d.Expected != "" || d.Observed != "" {
		fmt.Fprintf(&b, " (expected %s, observed %s)", orDash(d.Expected), orDash(d.Observed))
	}
	if d.Detail != "" {
		b.WriteString(": ")
		b.WriteString(d.Detail)
	}
	return b.String()
}

// MarshalLogObject lets diagnostics be logged with zap.Object.
func (d Diagnostic) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("kind", string(d.Kind))
	enc.AddString("severity", d.Severity().String())
	if d.Offset != NoOffset {
		enc.AddInt64("offset", d.Offset)
	}
	if d.Expected != "" {
		enc.AddString("expected", d.Expected)
	}
	if d.Observed != "" {
		enc.AddString("observed", d.Observed)
	}
	if d.Detail != "" {
		enc.AddString("detail", d.Detail)
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// FromError converts a fatal pipeline error into its diagnostic.
// It returns false for errors that are not one of the fatal extraction kinds.
func FromError(err error) (Diagnostic, bool) {
	var e *errors.Error
	if !errors.As(err, &e) {
		return Diagnostic{}, false
	}
	for k, ek := range fatalKinds {
		if e.Kind != ek {
			continue
		}
		d := Diagnostic{
			Kind:     k,
			Expected: e.Expected,
			Observed: e.Observed,
			Detail:   e.Detail,
			Offset:   NoOffset,
		}
		if e.HasOffset {
			d.Offset = e.Offset
		}
		if d.Detail == "" && e.Cause != nil {
			d.Detail = e.Cause.Error()
		}
		return d, true
	}
	return Diagnostic{}, false
}
