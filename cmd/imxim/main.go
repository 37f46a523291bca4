// Command imxim packs and unpacks i.MX/Vybrid boot images.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/molejar/goimx"
	"github.com/molejar/goimx/dcd"
)

func Usage() {
	fmt.Fprintf(os.Stderr, `imxim - i.MX/Vybrid boot image tool

Usage: %s <action> [args...]

Supported actions:
  info <image>
    Parse <image> (auto-detecting its container variant) and print a
    human-readable summary of its IVT, BDT, DCD and CSF segments.

  pack <variant> <start_addr> <app> <outimage> [dcd.txt]
    Build a v2/v2b image from <app> at <start_addr>, optionally running
    the DCD program in [dcd.txt] before the application starts. variant
    is one of: v2, v2b.

  unpack <image> <outapp>
    Parse <image> and write its application payload to <outapp>.
`, os.Args[0])
	os.Exit(1)
}

func parseVariant(s string) (goimx.Variant, error) {
	switch s {
	case "v2":
		return goimx.V2, nil
	case "v2b":
		return goimx.V2B, nil
	case "v3a":
		return goimx.V3A, nil
	case "v3b":
		return goimx.V3B, nil
	default:
		return 0, fmt.Errorf("unknown variant %q", s)
	}
}

func Main(args []string) {
	if len(args) < 2 {
		Usage()
	}
	action := strings.TrimLeft(args[1], "-")

	switch action {
	case "info":
		if len(args) != 3 {
			Usage()
		}
		buf, err := os.ReadFile(args[2])
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
		img, err := goimx.Parse(buf, goimx.AutoHint(), goimx.Options{})
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
		fmt.Print(img.Info())

	case "pack":
		if len(args) < 5 {
			Usage()
		}
		variant, err := parseVariant(args[2])
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
		start, err := strconv.ParseUint(args[3], 0, 32)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error: bad start address:", err)
			os.Exit(1)
		}
		app, err := os.ReadFile(args[4])
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
		app, err = goimx.Decompress(app)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
		if len(args) < 6 {
			Usage()
		}
		outfile := args[5]

		var program *dcd.Program
		if len(args) > 6 {
			text, err := os.ReadFile(args[6])
			if err != nil {
				fmt.Fprintln(os.Stderr, "Error:", err)
				os.Exit(1)
			}
			p, err := dcd.ParseText(string(text))
			if err != nil {
				fmt.Fprintln(os.Stderr, "Error:", err)
				os.Exit(1)
			}
			program = &p
		}

		img, err := goimx.Build(variant, uint32(start), app, program, nil, goimx.Options{})
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
		out, err := img.Export()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
		if err := os.WriteFile(outfile, out, 0644); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}

	case "unpack":
		if len(args) != 4 {
			Usage()
		}
		buf, err := os.ReadFile(args[2])
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
		img, err := goimx.Parse(buf, goimx.AutoHint(), goimx.Options{})
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
		if err := os.WriteFile(args[3], img.App, 0644); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}

	default:
		Usage()
	}
}

func main() {
	Main(os.Args)
}
