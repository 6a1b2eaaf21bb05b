package fsmtrace

import "fmt"

// DefaultSectionName is the metadata section the tag emitter writes to.
const DefaultSectionName = ".fsm_trace"

// RecordSize is the size in bytes of one embedded record.
const RecordSize = 4

// StateTag identifies one FSM state as understood by the hardware checker.
type StateTag uint32

// SentinelTag is reserved as "no tag" and is never emitted for a real state.
const SentinelTag StateTag = 0

// IsSentinel reports whether t is the reserved sentinel value.
func (t StateTag) IsSentinel() bool {
	return t == SentinelTag
}

func (t StateTag) String() string {
	return fmt.Sprintf("0x%08x", uint32(t))
}

// RawRecord is one decoded 4-byte span of the metadata section.
type RawRecord struct {
	// Offset is relative to the start of the (possibly merged) section.
	Offset int64
	Tag    StateTag
}

// Tags returns the tag values of records in order.
func Tags(records []RawRecord) []StateTag {
	tags := make([]StateTag, len(records))
	for i, r := range records {
		tags[i] = r.Tag
	}
	return tags
}
