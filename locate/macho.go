package locate

import (
	"debug/macho"
	"fmt"
	"io"

	"github.com/wippyai/fsm-trace/errors"
)

const (
	machoSectionType = 0xff
	machoZerofill    = 0x1
)

func locateMachO(r io.ReaderAt, c *collector) error {
	f, err := macho.NewFile(r)
	if err != nil {
		return errors.ContainerUnsupported("", "parse Mach-O", err)
	}

	for i, s := range f.Sections {
		if s.Name != c.name {
			continue
		}

		// Align is stored as a power of two.
		if s.Align < 2 {
			c.attribute(i, "alignment multiple of 4", fmt.Sprintf("alignment %d", uint64(1)<<s.Align))
		}
		if s.Flags&machoSectionType == machoZerofill {
			c.attribute(i, "regular section", "zero-fill section")
			c.add(i, nil, uint64(1)<<s.Align)
			continue
		}

		data, err := s.Data()
		if err != nil {
			return errors.ContainerUnsupported("", fmt.Sprintf("read Mach-O section %s,%s", s.Seg, s.Name), err)
		}
		c.add(i, data, uint64(1)<<s.Align)
	}
	return nil
}
