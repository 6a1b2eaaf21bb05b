package errors

import (
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"
)

// Phase indicates which pipeline stage produced the error
type Phase string

const (
	PhaseLocate   Phase = "locate"   // container parsing, section lookup
	PhaseDecode   Phase = "decode"   // section bytes to records
	PhaseEncode   Phase = "encode"   // records to trace stream
	PhaseStream   Phase = "stream"   // trace stream parsing
	PhaseValidate Phase = "validate" // run state and diagnostics
	PhaseConfig   Phase = "config"   // HCL configuration
	PhaseCheck    Phase = "check"    // FSM policy evaluation
	PhaseIO       Phase = "io"       // file access
)

// Kind categorizes the error
type Kind string

const (
	KindContainerUnsupported Kind = "container_unsupported"
	KindSectionNotFound      Kind = "section_not_found"
	KindTruncatedSection     Kind = "truncated_section"
	KindInvalidStream        Kind = "invalid_stream"
	KindChecksumMismatch     Kind = "checksum_mismatch"
	KindInvalidConfig        Kind = "invalid_config"
	KindInvalidPolicy        Kind = "invalid_policy"
	KindInvalidState         Kind = "invalid_state"
	KindInvalidInput         Kind = "invalid_input"
	KindIO                   Kind = "io"
	KindCanceled             Kind = "canceled"
)

// Sentinels for the fatal extraction kinds. They match any phase.
var (
	ErrContainerUnsupported = &Error{Kind: KindContainerUnsupported}
	ErrSectionNotFound      = &Error{Kind: KindSectionNotFound}
	ErrTruncatedSection     = &Error{Kind: KindTruncatedSection}
)

// Error is the structured error type used throughout the pipeline
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	Path     string
	Expected string
	Observed string
	Detail   string
	Offset   int64
	// HasOffset distinguishes offset zero from no offset.
	HasOffset bool
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Path != "" {
		b.WriteString(" in ")
		b.WriteString(e.Path)
	}

	if e.HasOffset {
		b.WriteString(" at offset ")
		b.WriteString(strconv.FormatInt(e.Offset, 10))
	}

	if e.Expected != "" || e.Observed != "" {
		b.WriteString(": ")
		if e.Expected != "" && e.Observed != "" {
			b.WriteString("expected ")
			b.WriteString(e.Expected)
			b.WriteString(", observed ")
			b.WriteString(e.Observed)
		} else if e.Expected != "" {
			b.WriteString("expected ")
			b.WriteString(e.Expected)
		} else {
			b.WriteString("observed ")
			b.WriteString(e.Observed)
		}
	}

	if e.Detail != "" {
		if e.Expected != "" || e.Observed != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target without a phase matches on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == "" {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = u.Unwrap()
	}
	return ""
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the file path the error refers to
func (b *Builder) Path(path string) *Builder {
	b.err.Path = path
	return b
}

// Offset sets the byte offset of the anomaly
func (b *Builder) Offset(off int64) *Builder {
	b.err.Offset = off
	b.err.HasOffset = true
	return b
}

// Expected sets the expected value description
func (b *Builder) Expected(s string) *Builder {
	b.err.Expected = s
	return b
}

// Observed sets the observed value description
func (b *Builder) Observed(s string) *Builder {
	b.err.Observed = s
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// ContainerUnsupported creates an error for a binary whose container cannot be parsed
func ContainerUnsupported(path, detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLocate,
		Kind:   KindContainerUnsupported,
		Path:   path,
		Detail: detail,
		Cause:  cause,
	}
}

// SectionNotFound creates an error for a binary lacking the metadata section
func SectionNotFound(path, section string) *Error {
	return &Error{
		Phase:  PhaseLocate,
		Kind:   KindSectionNotFound,
		Path:   path,
		Detail: fmt.Sprintf("section %q not found", section),
		Value:  section,
	}
}

// TruncatedSection creates an error for section bytes that do not split into whole records.
// offset is where the trailing bytes begin, length is the length of the span being decoded.
func TruncatedSection(offset int64, length int) *Error {
	return &Error{
		Phase:     PhaseDecode,
		Kind:      KindTruncatedSection,
		Offset:    offset,
		HasOffset: true,
		Expected:  "length multiple of 4",
		Observed:  fmt.Sprintf("%d bytes", length),
		Value:     length,
	}
}

// InvalidStream creates a trace stream framing error
func InvalidStream(offset int64, expected, observed string) *Error {
	return &Error{
		Phase:     PhaseStream,
		Kind:      KindInvalidStream,
		Offset:    offset,
		HasOffset: true,
		Expected:  expected,
		Observed:  observed,
	}
}

// ChecksumMismatch creates a trace stream integrity error
func ChecksumMismatch(offset int64, want, got uint32) *Error {
	return &Error{
		Phase:     PhaseStream,
		Kind:      KindChecksumMismatch,
		Offset:    offset,
		HasOffset: true,
		Expected:  fmt.Sprintf("0x%08x", want),
		Observed:  fmt.Sprintf("0x%08x", got),
	}
}

// InvalidConfig creates a configuration error
func InvalidConfig(path, detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseConfig,
		Kind:   KindInvalidConfig,
		Path:   path,
		Detail: detail,
		Cause:  cause,
	}
}

// InvalidPolicy creates an FSM policy definition error
func InvalidPolicy(path, detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseCheck,
		Kind:   KindInvalidPolicy,
		Path:   path,
		Detail: detail,
		Cause:  cause,
	}
}

// InvalidState creates an error for an illegal run state transition
func InvalidState(from, to string) *Error {
	return &Error{
		Phase:  PhaseValidate,
		Kind:   KindInvalidState,
		Detail: fmt.Sprintf("illegal transition %s -> %s", from, to),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// IO wraps a file access failure
func IO(path, op string, cause error) *Error {
	return &Error{
		Phase:  PhaseIO,
		Kind:   KindIO,
		Path:   path,
		Detail: op,
		Cause:  cause,
	}
}

// Canceled wraps a context cancellation observed between pipeline stages
func Canceled(phase Phase, path string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindCanceled,
		Path:   path,
		Detail: "run canceled",
		Cause:  cause,
	}
}
