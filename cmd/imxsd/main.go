// Command imxsd drives a target's ROM Serial Download Protocol loader over
// USB-HID. Raw HID transport is out of this module's scope (spec §1):
// openTransport below is the single seam a real build wires a concrete HID
// backend into.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/molejar/goimx/sdp"
)

func Usage() {
	fmt.Fprintf(os.Stderr, `imxsd - Serial Download Protocol client

Usage: %s <action> [args...]

Supported actions:
  wreg <vid:pid> <addr> <value> [format]
    Write <value> to register <addr>. format is one of 8, 16, 32
    (default 32).

  rreg <vid:pid> <addr> [format]
    Read and print the register at <addr>.

  wfile <vid:pid> <addr> <file>
    Transfer <file> to <addr> and wait for the ROM's status report.

  jump <vid:pid> <addr>
    Transfer execution to <addr>.
`, os.Args[0])
	os.Exit(1)
}

// openTransport is where a real build plugs in a concrete USB-HID backend;
// this module deliberately ships none (spec §1).
func openTransport(vidPid string) (sdp.Transport, sdp.Profile, error) {
	return nil, sdp.Profile{}, fmt.Errorf("imxsd: no HID transport backend compiled in for device %q", vidPid)
}

func parseUint32(s string) uint32 {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error: bad number:", err)
		os.Exit(1)
	}
	return uint32(v)
}

func parseFormat(s string) sdp.Format {
	switch s {
	case "", "32":
		return sdp.Format32
	case "16":
		return sdp.Format16
	case "8":
		return sdp.Format8
	default:
		fmt.Fprintln(os.Stderr, "Error: unsupported format", s)
		os.Exit(1)
		return 0
	}
}

func Main(args []string) {
	if len(args) < 2 {
		Usage()
	}
	action := strings.TrimLeft(args[1], "-")
	if len(args) < 3 {
		Usage()
	}

	tp, profile, err := openTransport(args[2])
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	client := sdp.New(tp, profile)
	ctx := context.Background()

	switch action {
	case "wreg":
		if len(args) < 5 {
			Usage()
		}
		format := "32"
		if len(args) > 5 {
			format = args[5]
		}
		if err := client.WriteRegister(ctx, parseUint32(args[3]), parseUint32(args[4]), parseFormat(format)); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}

	case "rreg":
		if len(args) < 4 {
			Usage()
		}
		format := "32"
		if len(args) > 4 {
			format = args[4]
		}
		v, err := client.ReadRegister(ctx, parseUint32(args[3]), parseFormat(format), 1)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
		fmt.Printf("0x%08x\n", v[0])

	case "wfile":
		if len(args) != 5 {
			Usage()
		}
		data, err := os.ReadFile(args[4])
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
		if err := client.WriteFile(ctx, parseUint32(args[3]), data); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}

	case "jump":
		if len(args) != 4 {
			Usage()
		}
		if err := client.Jump(ctx, parseUint32(args[3])); err != nil {
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
