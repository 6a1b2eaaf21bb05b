package main

import (
	"context"
	"fmt"
	"os"

	fsmtrace "github.com/wippyai/fsm-trace"
	"github.com/wippyai/fsm-trace/diag"
	"github.com/wippyai/fsm-trace/errors"
	"github.com/wippyai/fsm-trace/extract"
	"github.com/wippyai/fsm-trace/locate"
	"github.com/wippyai/fsm-trace/stream"
)

// trace is a tag sequence read from a stream file or extracted from a binary.
type trace struct {
	report *diag.Report
	path   string
	// records of a stream carry offsets within the stream file.
	records    []fsmtrace.RawRecord
	fromStream bool
}

func (t *trace) tags() []fsmtrace.StateTag {
	return fsmtrace.Tags(t.records)
}

// loadTrace reads path as a trace stream when the format is auto and the
// file starts with the stream magic, and extracts it as a binary otherwise. A failed extraction returns
// the partial trace together with the error.
func loadTrace(ctx context.Context, path string, opts extract.Options) (*trace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.IO(path, "read input", err)
	}

	if opts.Format == locate.FormatAuto && stream.IsStream(data) {
		s, err := stream.Decode(data, opts.Checksum)
		if err != nil {
			return nil, fmt.Errorf("read stream %s: %w", path, err)
		}
		t := &trace{path: path, report: diag.NewReport(), fromStream: true}
		for i, tag := range s.Tags {
			t.records = append(t.records, fsmtrace.RawRecord{
				Offset: int64(stream.HeaderSize + i*fsmtrace.RecordSize),
				Tag:    tag,
			})
		}
		return t, nil
	}

	res, err := extract.Extract(ctx, path, opts)
	if res == nil {
		return nil, err
	}
	return &trace{path: path, report: res.Report, records: res.Records}, err
}
