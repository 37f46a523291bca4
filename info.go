package goimx

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// Info renders a human-readable summary of the image, in the spirit of the
// per-segment size reporting boot-image tooling usually prints on unpack.
func (img *Image) Info() string {
	var b strings.Builder
	fmt.Fprintf(&b, "variant:     %s\n", img.Variant)
	fmt.Fprintf(&b, "start addr:  0x%08x\n", img.StartAddr)
	fmt.Fprintf(&b, "ivt.self:    0x%08x\n", img.IVT.Self)
	fmt.Fprintf(&b, "ivt.entry:   0x%08x\n", img.IVT.Entry)
	fmt.Fprintf(&b, "bdt.length:  %s\n", humanize.Bytes(uint64(img.BDT.Length)))

	if img.DCD != nil {
		n, _ := img.DCD.Size()
		fmt.Fprintf(&b, "dcd:         %s, %d command(s)\n", humanize.Bytes(uint64(n)), len(img.DCD.Commands))
	}
	if img.CSF != nil {
		fmt.Fprintf(&b, "csf:         %s\n", humanize.Bytes(uint64(img.CSF.Len())))
	}
	if len(img.App) > 0 {
		fmt.Fprintf(&b, "app:         %s\n", humanize.Bytes(uint64(len(img.App))))
	}
	for _, c := range img.Cores {
		fmt.Fprintf(&b, "core %-8s 0x%08x  %s\n", c.Name, c.LoadAddr, humanize.Bytes(uint64(len(c.Data))))
	}
	return b.String()
}
