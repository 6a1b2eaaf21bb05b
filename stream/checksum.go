package stream

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"strings"
)

// Checksum selects the integrity word written after the tag words.
type Checksum int

const (
	// ChecksumCRC32 is CRC-32 (IEEE) over the count and tag words.
	ChecksumCRC32 Checksum = iota
	// ChecksumNone writes a zero checksum word.
	ChecksumNone
	// ChecksumSum is the wrapping uint32 sum of the little-endian words
	// covering the count and tag words.
	ChecksumSum
)

var checksumNames = map[Checksum]string{
	ChecksumCRC32: "crc32",
	ChecksumNone:  "none",
	ChecksumSum:   "sum",
}

func (c Checksum) String() string {
	if s, ok := checksumNames[c]; ok {
		return s
	}
	return fmt.Sprintf("checksum(%d)", int(c))
}

// ParseChecksum parses "crc32", "none" or "sum". The empty string selects crc32.
func ParseChecksum(s string) (Checksum, error) {
	switch strings.ToLower(s) {
	case "", "crc32":
		return ChecksumCRC32, nil
	case "none":
		return ChecksumNone, nil
	case "sum":
		return ChecksumSum, nil
	}
	return 0, fmt.Errorf("unknown checksum %q (want crc32, sum or none)", s)
}

// compute returns the checksum of covered, which is bytes [8, 12+4N) of a
// stream and therefore always a multiple of 4 bytes long.
func (c Checksum) compute(covered []byte) uint32 {
	switch c {
	case ChecksumCRC32:
		return crc32.ChecksumIEEE(covered)
	case ChecksumSum:
		var sum uint32
		for i := 0; i+4 <= len(covered); i += 4 {
			sum += binary.LittleEndian.Uint32(covered[i:])
		}
		return sum
	}
	return 0
}
