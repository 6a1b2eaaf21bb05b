// Package errors provides structured error types for the fsm-trace pipeline.
//
// Errors are categorized by Phase (which pipeline stage failed) and Kind
// (error category). The Error type carries the byte offset of the anomaly
// when one is known, the expected and observed values, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDecode, errors.KindTruncatedSection).
//		Offset(4).
//		Expected("multiple of 4 bytes").
//		Observed("7 bytes").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.SectionNotFound(path, ".fsm_trace")
//	err := errors.TruncatedSection(4, 7)
//
// All errors implement the standard error interface and support errors.Is/As.
// The fatal pipeline kinds also have sentinel values that match on Kind alone:
//
//	if errors.Is(err, errors.ErrSectionNotFound) { ... }
package errors
