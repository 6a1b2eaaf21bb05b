// Package locate finds the tag metadata section inside a compiled binary.
//
// ELF and Mach-O objects are read through debug/elf and debug/macho, Wasm
// modules through wazero with custom sections retained, and raw flat
// binaries are taken whole. When more than one section carries the name the
// parts are concatenated in container order, which is the order the linker
// emitted them, and a MergedSections advisory is recorded.
package locate

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	fsmtrace "github.com/wippyai/fsm-trace"
	"github.com/wippyai/fsm-trace/diag"
	"github.com/wippyai/fsm-trace/errors"
)

// Options controls section lookup.
type Options struct {
	// Name is the ELF-style section name. Empty selects fsmtrace.DefaultSectionName.
	Name   string
	Format Format
}

func (o Options) name() string {
	if o.Name == "" {
		return fsmtrace.DefaultSectionName
	}
	return o.Name
}

// Part is one input section contributing to a located section.
type Part struct {
	// Index is the section's index in the container's own section table.
	Index int
	// Offset and Size locate the part inside Section.Data.
	Offset int64
	Size   int64
	// Align is the byte alignment recorded in the container, 0 if unknown.
	Align uint64
}

// Section is the located metadata section of one binary.
type Section struct {
	Name        string
	Data        []byte
	Parts       []Part
	Diagnostics []diag.Diagnostic
	Format      Format
}

// Merged reports whether the section was assembled from several parts.
func (s *Section) Merged() bool {
	return len(s.Parts) > 1
}

// Locate opens path read-only and returns its metadata section. The file is
// closed before Locate returns.
func Locate(ctx context.Context, path string, opts Options) (*Section, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Canceled(errors.PhaseLocate, path, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.IO(path, "open binary", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, errors.IO(path, "stat binary", err)
	}

	sec, err := LocateReader(ctx, f, st.Size(), opts)
	if err != nil {
		if e, ok := err.(*errors.Error); ok && e.Path == "" {
			e.Path = path
		}
		return nil, err
	}

	Logger().Debug("located section",
		zap.String("path", path),
		zap.Stringer("format", sec.Format),
		zap.String("section", sec.Name),
		zap.Int("parts", len(sec.Parts)),
		zap.Int("bytes", len(sec.Data)))
	return sec, nil
}

// LocateReader locates the metadata section in the size bytes of r.
func LocateReader(ctx context.Context, r io.ReaderAt, size int64, opts Options) (*Section, error) {
	format := opts.Format
	if format == FormatAuto {
		head := make([]byte, min(size, 8))
		if _, err := r.ReadAt(head, 0); err != nil && err != io.EOF {
			return nil, errors.IO("", "read header", err)
		}
		detected, err := detect(head)
		if err != nil {
			return nil, errors.ContainerUnsupported("", "cannot identify container", err)
		}
		format = detected
	}

	name := opts.name()
	c := &collector{name: name, format: format}

	var err error
	switch format {
	case FormatELF:
		err = locateELF(r, c)
	case FormatMachO:
		c.name = MachOName(name)
		err = locateMachO(r, c)
	case FormatWasm:
		err = locateWasm(ctx, r, size, c)
	case FormatRaw:
		err = locateRaw(r, size, c)
	default:
		return nil, errors.InvalidInput(errors.PhaseLocate, fmt.Sprintf("unknown format %s", format))
	}
	if err != nil {
		return nil, err
	}
	return c.finish()
}

// collector concatenates matching parts in container order.
type collector struct {
	sec    Section
	name   string
	format Format
}

func (c *collector) add(index int, data []byte, align uint64) {
	c.sec.Parts = append(c.sec.Parts, Part{
		Index:  index,
		Offset: int64(len(c.sec.Data)),
		Size:   int64(len(data)),
		Align:  align,
	})
	c.sec.Data = append(c.sec.Data, data...)
}

// offset is where the next part will start, used to anchor attribute diagnostics.
func (c *collector) offset() int64 {
	return int64(len(c.sec.Data))
}

func (c *collector) attribute(index int, expected, observed string) {
	c.sec.Diagnostics = append(c.sec.Diagnostics, diag.Diagnostic{
		Kind:     diag.KindSectionAttributes,
		Offset:   c.offset(),
		Expected: expected,
		Observed: observed,
		Detail:   fmt.Sprintf("%s section index %d", c.format, index),
	})
}

func (c *collector) finish() (*Section, error) {
	if len(c.sec.Parts) == 0 {
		return nil, errors.SectionNotFound("", c.name)
	}
	c.sec.Name = c.name
	c.sec.Format = c.format
	if n := len(c.sec.Parts); n > 1 {
		c.sec.Diagnostics = append(c.sec.Diagnostics, diag.Diagnostic{
			Kind:     diag.KindMergedSections,
			Offset:   diag.NoOffset,
			Expected: "1 section",
			Observed: fmt.Sprintf("%d sections", n),
			Detail:   "parts concatenated in link order; cross-unit ordering is best effort",
		})
	}
	if c.sec.Data == nil {
		c.sec.Data = []byte{}
	}
	sec := c.sec
	return &sec, nil
}

func locateRaw(r io.ReaderAt, size int64, c *collector) error {
	data, err := io.ReadAll(io.NewSectionReader(r, 0, size))
	if err != nil {
		return errors.IO("", "read raw binary", err)
	}
	c.add(0, data, 0)
	return nil
}
