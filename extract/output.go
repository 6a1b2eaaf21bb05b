package extract

import (
	"os"
	"path/filepath"

	"github.com/wippyai/fsm-trace/errors"
)

// StreamMode is the permission of written trace streams.
const StreamMode os.FileMode = 0o644

// WriteStream writes data to path atomically: readers see either the old
// file or the complete new stream.
func WriteStream(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.IO(path, "create output directory", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.IO(path, "create temp file", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(StreamMode); err != nil {
		tmp.Close()
		return errors.IO(path, "set stream mode", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.IO(path, "write stream", err)
	}
	if err := tmp.Close(); err != nil {
		return errors.IO(path, "close stream", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.IO(path, "rename stream", err)
	}
	return nil
}
