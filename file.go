package goimx

import (
	"os"

	"github.com/edsrzf/mmap-go"
)

// ParseFile memory-maps path read-only and parses it as a boot image,
// avoiding a full-file copy for large application payloads (spec §3.9
// ambient stack).
func ParseFile(path string, hint Hint, opts Options) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer m.Unmap()

	return Parse(m, hint, opts)
}

// ExportFile serializes img and writes it to path.
func (img *Image) ExportFile(path string) error {
	buf, err := img.Export()
	if err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0644)
}
