// Package testbin builds small container files carrying tag sections, standing
// in for a compiler and linker in tests.
package testbin

import (
	"debug/elf"
	"debug/macho"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	ibinary "github.com/wippyai/fsm-trace/internal/binary"
)

// Words encodes tags as consecutive little-endian words, the way the tag
// emitter lays them out.
func Words(tags ...uint32) []byte {
	out := make([]byte, 0, 4*len(tags))
	for _, t := range tags {
		out = binary.LittleEndian.AppendUint32(out, t)
	}
	return out
}

// WriteFile writes data into a fresh temp dir and returns its path.
func WriteFile(t testing.TB, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

// ELFSection describes one section of an ELF fixture.
type ELFSection struct {
	Name  string
	Data  []byte
	Type  elf.SectionType
	Flags elf.SectionFlag
	Align uint64
}

// TagSection returns an ELF section with the tag emitter's attributes.
func TagSection(name string, data []byte) ELFSection {
	return ELFSection{
		Name:  name,
		Data:  data,
		Type:  elf.SHT_PROGBITS,
		Flags: elf.SHF_ALLOC,
		Align: 4,
	}
}

// ELF64 builds a little-endian 64-bit RISC-V relocatable object.
func ELF64(sections ...ELFSection) []byte {
	return buildELF(elf.ELFCLASS64, binary.LittleEndian, sections)
}

// ELF32 builds a 32-bit relocatable object with the given byte order.
func ELF32(order binary.ByteOrder, sections ...ELFSection) []byte {
	return buildELF(elf.ELFCLASS32, order, sections)
}

func buildELF(class elf.Class, order binary.ByteOrder, sections []ELFSection) []byte {
	is64 := class == elf.ELFCLASS64
	ehsize, shentsize := 52, 40
	if is64 {
		ehsize, shentsize = 64, 64
	}

	// Section name string table: "\0" then each name.
	shstrtab := []byte{0}
	nameOff := make([]uint32, len(sections)+1)
	for i, s := range sections {
		nameOff[i] = uint32(len(shstrtab))
		shstrtab = append(append(shstrtab, s.Name...), 0)
	}
	nameOff[len(sections)] = uint32(len(shstrtab))
	shstrtab = append(append(shstrtab, ".shstrtab"...), 0)

	body := ibinary.NewWriter()
	body.WriteZeros(ehsize)

	offsets := make([]int, len(sections))
	for i, s := range sections {
		body.Align(int(max(s.Align, 1)))
		offsets[i] = body.Len()
		if s.Type != elf.SHT_NOBITS {
			body.WriteBytes(s.Data)
		}
	}
	strOff := body.Len()
	body.WriteBytes(shstrtab)
	body.Align(8)
	shoff := body.Len()

	type hdr struct {
		name, typ               uint32
		flags, off, size, align uint64
	}
	headers := []hdr{{}}
	for i, s := range sections {
		headers = append(headers, hdr{
			name:  nameOff[i],
			typ:   uint32(s.Type),
			flags: uint64(s.Flags),
			off:   uint64(offsets[i]),
			size:  uint64(len(s.Data)),
			align: s.Align,
		})
	}
	headers = append(headers, hdr{
		name:  nameOff[len(sections)],
		typ:   uint32(elf.SHT_STRTAB),
		off:   uint64(strOff),
		size:  uint64(len(shstrtab)),
		align: 1,
	})

	for _, h := range headers {
		if is64 {
			body.WriteAny(order, elf.Section64{
				Name: h.name, Type: h.typ, Flags: h.flags,
				Off: h.off, Size: h.size, Addralign: h.align,
			})
		} else {
			body.WriteAny(order, elf.Section32{
				Name: h.name, Type: h.typ, Flags: uint32(h.flags),
				Off: uint32(h.off), Size: uint32(h.size), Addralign: uint32(h.align),
			})
		}
	}

	ident := [elf.EI_NIDENT]byte{
		0:              0x7f,
		1:              'E',
		2:              'L',
		3:              'F',
		elf.EI_CLASS:   byte(class),
		elf.EI_VERSION: byte(elf.EV_CURRENT),
	}
	if order == binary.BigEndian {
		ident[elf.EI_DATA] = byte(elf.ELFDATA2MSB)
	} else {
		ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	}

	head := ibinary.NewWriter()
	if is64 {
		head.WriteAny(order, elf.Header64{
			Ident:     ident,
			Type:      uint16(elf.ET_REL),
			Machine:   uint16(elf.EM_RISCV),
			Version:   uint32(elf.EV_CURRENT),
			Shoff:     uint64(shoff),
			Ehsize:    uint16(ehsize),
			Shentsize: uint16(shentsize),
			Shnum:     uint16(len(headers)),
			Shstrndx:  uint16(len(headers) - 1),
		})
	} else {
		head.WriteAny(order, elf.Header32{
			Ident:     ident,
			Type:      uint16(elf.ET_REL),
			Machine:   uint16(elf.EM_ARM),
			Version:   uint32(elf.EV_CURRENT),
			Shoff:     uint32(shoff),
			Ehsize:    uint16(ehsize),
			Shentsize: uint16(shentsize),
			Shnum:     uint16(len(headers)),
			Shstrndx:  uint16(len(headers) - 1),
		})
	}

	out := body.Bytes()
	copy(out, head.Bytes())
	return out
}

// SectionZerofill is the Mach-O S_ZEROFILL section type.
const SectionZerofill = 0x1

// MachOSection describes one section of a Mach-O fixture.
type MachOSection struct {
	Name    string
	Segment string
	Data    []byte
	// Align is a power of two exponent, as stored in the file.
	Align uint32
	Flags uint32
}

// MachO64 builds a little-endian arm64 Mach-O object with one segment
// holding every section.
func MachO64(sections ...MachOSection) []byte {
	const (
		headerSize  = 32
		segmentSize = 72
		sectionSize = 80
	)
	cmdsz := segmentSize + sectionSize*len(sections)
	dataStart := headerSize + cmdsz

	data := ibinary.NewWriter()
	offsets := make([]int, len(sections))
	for i, s := range sections {
		data.Align(1 << s.Align)
		offsets[i] = dataStart + data.Len()
		if s.Flags&0xff != SectionZerofill {
			data.WriteBytes(s.Data)
		}
	}

	w := ibinary.NewWriter()
	w.WriteAny(binary.LittleEndian, macho.FileHeader{
		Magic:  macho.Magic64,
		Cpu:    macho.CpuArm64,
		SubCpu: 0,
		Type:   macho.TypeObj,
		Ncmd:   1,
		Cmdsz:  uint32(cmdsz),
	})
	w.WriteU32LE(0) // reserved

	w.WriteAny(binary.LittleEndian, macho.Segment64{
		Cmd:     macho.LoadCmdSegment64,
		Len:     uint32(cmdsz),
		Memsz:   uint64(data.Len()),
		Offset:  uint64(dataStart),
		Filesz:  uint64(data.Len()),
		Maxprot: 7,
		Prot:    7,
		Nsect:   uint32(len(sections)),
	})
	for i, s := range sections {
		sh := macho.Section64{
			Addr:   uint64(offsets[i] - dataStart),
			Size:   uint64(len(s.Data)),
			Offset: uint32(offsets[i]),
			Align:  s.Align,
			Flags:  s.Flags,
		}
		if s.Flags&0xff == SectionZerofill {
			sh.Offset = 0
		}
		copy(sh.Name[:], s.Name)
		copy(sh.Seg[:], s.Segment)
		w.WriteAny(binary.LittleEndian, sh)
	}
	w.WriteBytes(data.Bytes())
	return w.Bytes()
}

// CustomSection is one Wasm custom section.
type CustomSection struct {
	Name string
	Data []byte
}

// Wasm builds a WebAssembly module holding only custom sections.
func Wasm(sections ...CustomSection) []byte {
	w := ibinary.NewWriter()
	w.WriteBytes([]byte{0x00, 'a', 's', 'm'})
	w.WriteU32LE(1)
	for _, s := range sections {
		payload := ibinary.NewWriter()
		payload.WriteName(s.Name)
		payload.WriteBytes(s.Data)

		w.Byte(0) // custom section id
		w.WriteU32(uint32(payload.Len()))
		w.WriteBytes(payload.Bytes())
	}
	return w.Bytes()
}
