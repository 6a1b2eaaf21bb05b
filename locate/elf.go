package locate

import (
	"debug/elf"
	"fmt"
	"io"

	"github.com/wippyai/fsm-trace/errors"
)

func locateELF(r io.ReaderAt, c *collector) error {
	f, err := elf.NewFile(r)
	if err != nil {
		return errors.ContainerUnsupported("", "parse ELF", err)
	}

	for i, s := range f.Sections {
		if s.Name != c.name {
			continue
		}

		if s.Type != elf.SHT_PROGBITS {
			c.attribute(i, elf.SHT_PROGBITS.String(), s.Type.String())
		}
		if s.Addralign%4 != 0 {
			c.attribute(i, "alignment multiple of 4", fmt.Sprintf("alignment %d", s.Addralign))
		}

		if s.Type == elf.SHT_NOBITS {
			c.add(i, nil, s.Addralign)
			continue
		}
		data, err := s.Data()
		if err != nil {
			return errors.ContainerUnsupported("", fmt.Sprintf("read ELF section %d", i), err)
		}
		c.add(i, data, s.Addralign)
	}
	return nil
}
