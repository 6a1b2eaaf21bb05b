package locate

import (
	"context"
	"io"

	"github.com/tetratelabs/wazero"

	"github.com/wippyai/fsm-trace/errors"
)

// locateWasm reads tags from custom sections. The module is compiled, never
// instantiated.
func locateWasm(ctx context.Context, r io.ReaderAt, size int64, c *collector) error {
	data, err := io.ReadAll(io.NewSectionReader(r, 0, size))
	if err != nil {
		return errors.IO("", "read wasm module", err)
	}

	cfg := wazero.NewRuntimeConfigInterpreter().WithCustomSections(true)
	rt := wazero.NewRuntimeWithConfig(ctx, cfg)
	defer rt.Close(ctx)

	compiled, err := rt.CompileModule(ctx, data)
	if err != nil {
		if ctx.Err() != nil {
			return errors.Canceled(errors.PhaseLocate, "", ctx.Err())
		}
		return errors.ContainerUnsupported("", "compile wasm module", err)
	}
	defer compiled.Close(ctx)

	for i, cs := range compiled.CustomSections() {
		if cs.Name() != c.name {
			continue
		}
		// Custom sections carry no alignment.
		c.add(i, cs.Data(), 0)
	}
	return nil
}
