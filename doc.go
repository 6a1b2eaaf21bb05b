// Package fsmtrace extracts FSM state-transition tags from compiled firmware
// binaries and encodes them as the canonical trace stream consumed by a
// hardware FSM checker.
//
// Firmware annotates code points with a two-channel marker: a human-readable
// assembler comment and a 4-byte little-endian state ID pushed into the
// `.fsm_trace` section. This module reads only the second channel.
//
// # Architecture Overview
//
//	fsmtrace/           Root package with StateTag and RawRecord
//	├── locate/         Section Locator: ELF, Mach-O, Wasm and raw containers
//	├── record/         Record Decoder: section bytes to ordered records
//	├── stream/         Trace Encoder and stream reader ("FSMT" v1 frames)
//	├── diag/           Diagnostics report and run state machine
//	├── extract/        Pipeline orchestration and concurrent batches
//	├── policy/         FSM policy files and trace checking
//	├── config/         HCL batch configuration
//	├── errors/         Structured error types
//	└── cmd/fsmtrace/   Command line tool
//
// # Quick Start
//
//	res, err := extract.Extract(ctx, "build/fw.elf", extract.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, d := range res.Report.Advisories() {
//	    log.Println(d)
//	}
//	os.WriteFile("fw.fsmt", res.Stream, 0o644)
//
// # Ordering
//
// Records keep the byte order of the section. Within one translation unit
// that is program order as compiled. When tags come from several object
// files the order after linking is whatever the linker's section merging
// produced; no stronger ordering is claimed.
package fsmtrace
