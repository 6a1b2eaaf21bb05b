// Package stream implements the canonical trace-stream format consumed by the
// hardware FSM checker.
//
// Layout (all integers little-endian):
//
//	offset  size  field
//	0       4     magic "FSMT"
//	4       1     format version (1)
//	5       3     reserved, zero
//	8       4     record count N
//	12      4*N   state tag words in extraction order
//	12+4N   4     checksum over bytes [8, 12+4N), zero when disabled
//
// Encoding is a pure function of the tag sequence and checksum mode, so the
// same records always produce byte-identical streams. The encoder never
// reorders, deduplicates or filters tags.
package stream

import (
	"fmt"
	"io"
	"math"

	fsmtrace "github.com/wippyai/fsm-trace"
	"github.com/wippyai/fsm-trace/errors"
	"github.com/wippyai/fsm-trace/internal/binary"
)

const (
	// Magic opens every stream.
	Magic = "FSMT"
	// Version is the current format version.
	Version uint8 = 1
	// HeaderSize covers magic, version, reserved bytes and count.
	HeaderSize = 12
	// TrailerSize is the checksum word.
	TrailerSize = 4
)

// Stream is a parsed trace stream.
type Stream struct {
	Tags     []fsmtrace.StateTag
	Checksum uint32
	Version  uint8
}

// Size returns the encoded length of a stream carrying n tags.
func Size(n int) int {
	return HeaderSize + fsmtrace.RecordSize*n + TrailerSize
}

// Encode renders records as a trace stream.
func Encode(records []fsmtrace.RawRecord, sum Checksum) ([]byte, error) {
	return EncodeTags(fsmtrace.Tags(records), sum)
}

// EncodeTags renders a tag sequence as a trace stream.
func EncodeTags(tags []fsmtrace.StateTag, sum Checksum) ([]byte, error) {
	if _, ok := checksumNames[sum]; !ok {
		return nil, errors.InvalidInput(errors.PhaseEncode, fmt.Sprintf("unknown checksum mode %d", int(sum)))
	}
	if uint64(len(tags)) > math.MaxUint32 {
		return nil, errors.New(errors.PhaseEncode, errors.KindInvalidInput).
			Expected(fmt.Sprintf("at most %d records", uint32(math.MaxUint32))).
			Observed(fmt.Sprintf("%d records", len(tags))).
			Build()
	}

	w := binary.NewWriter()
	w.WriteBytes([]byte(Magic))
	w.Byte(Version)
	w.WriteZeros(3)
	w.WriteU32LE(uint32(len(tags)))
	for _, t := range tags {
		w.WriteU32LE(uint32(t))
	}
	w.WriteU32LE(sum.compute(w.Bytes()[8:]))
	return w.Bytes(), nil
}

// Encoder writes trace streams to an io.Writer.
type Encoder struct {
	w   io.Writer
	sum Checksum
}

// NewEncoder returns an encoder writing to w with the given checksum mode.
func NewEncoder(w io.Writer, sum Checksum) *Encoder {
	return &Encoder{w: w, sum: sum}
}

// Encode writes one complete stream for records.
func (e *Encoder) Encode(records []fsmtrace.RawRecord) (int64, error) {
	data, err := Encode(records, e.sum)
	if err != nil {
		return 0, err
	}
	n, err := e.w.Write(data)
	if err != nil {
		return int64(n), fmt.Errorf("write trace stream: %w", err)
	}
	return int64(n), nil
}

// IsStream reports whether data starts with the stream magic.
func IsStream(data []byte) bool {
	return len(data) >= len(Magic) && string(data[:len(Magic)]) == Magic
}

// Decode parses and verifies a trace stream produced with checksum mode sum.
// With ChecksumNone the checksum word must be zero.
func Decode(data []byte, sum Checksum) (*Stream, error) {
	if _, ok := checksumNames[sum]; !ok {
		return nil, errors.InvalidInput(errors.PhaseStream, fmt.Sprintf("unknown checksum mode %d", int(sum)))
	}
	if len(data) < Size(0) {
		return nil, errors.InvalidStream(0, fmt.Sprintf("at least %d bytes", Size(0)), fmt.Sprintf("%d bytes", len(data)))
	}

	r := binary.NewReader(data)
	magic, _ := r.ReadBytes(len(Magic))
	if string(magic) != Magic {
		return nil, errors.InvalidStream(0, fmt.Sprintf("magic %q", Magic), fmt.Sprintf("%q", magic))
	}

	version, _ := r.ReadByte()
	if version != Version {
		return nil, errors.InvalidStream(4, fmt.Sprintf("version %d", Version), fmt.Sprintf("version %d", version))
	}

	reserved, _ := r.ReadBytes(3)
	for i, b := range reserved {
		if b != 0 {
			return nil, errors.InvalidStream(int64(5+i), "reserved byte 0x00", fmt.Sprintf("0x%02x", b))
		}
	}

	count, _ := r.ReadU32LE()
	if want := uint64(Size(0)) + 4*uint64(count); uint64(len(data)) != want {
		return nil, errors.New(errors.PhaseStream, errors.KindInvalidStream).
			Offset(8).
			Expected(fmt.Sprintf("%d bytes for %d records", want, count)).
			Observed(fmt.Sprintf("%d bytes", len(data))).
			Build()
	}

	s := &Stream{Version: version, Tags: make([]fsmtrace.StateTag, count)}
	for i := range s.Tags {
		word, err := r.ReadU32LE()
		if err != nil {
			return nil, r.WrapError("tag", err)
		}
		s.Tags[i] = fsmtrace.StateTag(word)
	}

	trailerAt := r.Position()
	s.Checksum, _ = r.ReadU32LE()
	if want := sum.compute(data[8:trailerAt]); want != s.Checksum {
		return nil, errors.ChecksumMismatch(int64(trailerAt), want, s.Checksum)
	}
	return s, nil
}
