// Command imxsb runs a Smart-Boot recipe against a target's SDP loader.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/molejar/goimx/sdp"
	"github.com/molejar/goimx/smartboot"
)

func Usage() {
	fmt.Fprintf(os.Stderr, `imxsb - Smart-Boot recipe runner

Usage: %s run <recipe.smx>

Runs every BODY instruction in <recipe.smx> against the device the HID
transport backend opens (the HEAD section's CHIP is not consulted),
resolving DATA file references relative to the recipe's own directory.
`, os.Args[0])
	os.Exit(1)
}

// openTransport is where a real build plugs in a concrete USB-HID backend
// (spec §1 scopes raw HID transport out of this module).
func openTransport() (sdp.Transport, sdp.Profile, error) {
	return nil, sdp.Profile{}, fmt.Errorf("imxsb: no HID transport backend compiled in")
}

// fileReader resolves a segment's FILE path relative to the recipe's own
// directory (spec §4.4).
func fileReader(baseDir string) func(string) ([]byte, error) {
	return func(path string) ([]byte, error) {
		full := path
		if !filepath.IsAbs(path) {
			full = filepath.Join(baseDir, path)
		}
		return os.ReadFile(full)
	}
}

func Main(args []string) {
	if len(args) < 2 {
		Usage()
	}
	action := strings.TrimLeft(args[1], "-")
	if action != "run" || len(args) != 3 {
		Usage()
	}

	text, err := os.ReadFile(args[2])
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	recipe, err := smartboot.ParseRecipe(string(text))
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	prog, err := smartboot.ParseCmds(recipe.Body.Cmds)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	resolver := smartboot.NewResolver(recipe.Data, fileReader(filepath.Dir(args[2])))

	tp, profile, err := openTransport()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	client := sdp.New(tp, profile)
	in := &smartboot.Interpreter{Client: client, Resolver: resolver}
	if err := in.Run(context.Background(), prog); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func main() {
	Main(os.Args)
}
