package locate

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// Format is a binary container format.
type Format int

const (
	// FormatAuto detects ELF, Mach-O or Wasm from the magic number.
	FormatAuto Format = iota
	FormatELF
	FormatMachO
	FormatWasm
	// FormatRaw treats the whole file as section contents. Never detected.
	FormatRaw
)

var formatNames = [...]string{
	FormatAuto:  "auto",
	FormatELF:   "elf",
	FormatMachO: "macho",
	FormatWasm:  "wasm",
	FormatRaw:   "raw",
}

func (f Format) String() string {
	if f < 0 || int(f) >= len(formatNames) {
		return fmt.Sprintf("format(%d)", int(f))
	}
	return formatNames[f]
}

// ParseFormat parses a format name. The empty string selects auto.
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(s)
	if s == "" {
		return FormatAuto, nil
	}
	for i, name := range formatNames {
		if name == s {
			return Format(i), nil
		}
	}
	return 0, fmt.Errorf("unknown container format %q (want auto, elf, macho, wasm or raw)", s)
}

const (
	machoMagic32 = 0xfeedface
	machoMagic64 = 0xfeedfacf
	machoFat     = 0xcafebabe
)

var (
	elfMagic  = []byte{0x7f, 'E', 'L', 'F'}
	wasmMagic = []byte{0x00, 'a', 's', 'm'}
)

// errFatMachO marks universal binaries during detection.
var errFatMachO = errors.New("universal Mach-O binaries are not supported")

// detect identifies the container from its first bytes.
func detect(head []byte) (Format, error) {
	if len(head) < 4 {
		return 0, fmt.Errorf("file too short to identify (%d bytes)", len(head))
	}
	switch {
	case bytes.Equal(head[:4], elfMagic):
		return FormatELF, nil
	case bytes.Equal(head[:4], wasmMagic):
		return FormatWasm, nil
	}
	le := binary.LittleEndian.Uint32(head)
	be := binary.BigEndian.Uint32(head)
	for _, m := range []uint32{le, be} {
		switch m {
		case machoMagic32, machoMagic64:
			return FormatMachO, nil
		}
	}
	if be == machoFat {
		return 0, errFatMachO
	}
	return 0, fmt.Errorf("unrecognized magic %x", head[:4])
}

// MachOName maps an ELF-style section name to its Mach-O spelling:
// a leading "." becomes "__" and the result is cut to 16 bytes.
func MachOName(name string) string {
	if strings.HasPrefix(name, ".") {
		name = "__" + name[1:]
	}
	if len(name) > 16 {
		name = name[:16]
	}
	return name
}
