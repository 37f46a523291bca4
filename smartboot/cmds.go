package smartboot

import (
	"strconv"
	"strings"

	"github.com/molejar/goimx/sdp"
)

// Instruction is the tagged-union discriminant for one BODY CMDS line
// (spec §4.4): WREG writes a register, WDCD/WIMG transfer a DCD or image
// blob named in DATA, SDCD tells the ROM to skip the DCD header already
// applied to the most recently written IMX image, and JRUN jumps to an
// address or to a named IMX segment's IVT self address.
type Instruction interface {
	instrTag() string
}

// WReg writes value to addr with the given access format.
type WReg struct {
	Addr   uint32
	Value  uint32
	Format sdp.Format
}

func (WReg) instrTag() string { return "WREG" }

// WDcd transfers the DCD program named DataKey. Addr is nil when the
// recipe omitted an address, in which case the DataKey segment's own ADDR
// applies (spec §4.4).
type WDcd struct {
	DataKey string
	Addr    *uint32
}

func (WDcd) instrTag() string { return "WDCD" }

// WImg transfers the image blob named DataKey. Addr is nil when the
// recipe omitted an address, in which case the DataKey segment's own ADDR
// applies (spec §4.4).
type WImg struct {
	DataKey string
	Addr    *uint32
}

func (WImg) instrTag() string { return "WIMG" }

// SDcd tells the ROM to skip re-applying the DCD of the most recently
// written IMX image; it carries no argument (spec §4.4).
type SDcd struct{}

func (SDcd) instrTag() string { return "SDCD" }

// JRun jumps to Addr, or if DataKey is set, to the IVT self address of the
// named IMX data segment (spec §4.4: "JRUN (address | imx_data_name)").
type JRun struct {
	Addr    *uint32
	DataKey string
}

func (JRun) instrTag() string { return "JRUN" }

// Program is an ordered Smart-Boot instruction sequence.
type Program struct {
	Instructions []Instruction
}

func parseAddr(tok string) (uint32, error) {
	v, err := strconv.ParseUint(tok, 0, 32)
	return uint32(v), err
}

func formatFromWidth(bytes int) (sdp.Format, error) {
	switch bytes {
	case 1:
		return sdp.Format8, nil
	case 2:
		return sdp.Format16, nil
	case 4:
		return sdp.Format32, nil
	default:
		return 0, newErr(KindMalformedRecipe, "unsupported register width %d bytes", bytes)
	}
}

// optionalAddr parses tok as an address, returning nil when tok is empty
// (the address-defaults-to-segment-ADDR case, spec §4.4).
func optionalAddr(tok string) (*uint32, error) {
	if tok == "" {
		return nil, nil
	}
	v, err := parseAddr(tok)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ParseCmds decodes the BODY CMDS textual program (spec §4.4). Variable
// substitution is expected to have already run (ParseRecipe does this).
func ParseCmds(text string) (Program, error) {
	var p Program
	for lineNo, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "WREG":
			if len(fields) != 4 {
				return Program{}, newErr(KindMalformedRecipe, "line %d: WREG needs bytes address value", lineNo+1)
			}
			width, err := strconv.Atoi(fields[1])
			if err != nil {
				return Program{}, newErr(KindMalformedRecipe, "line %d: bad byte width: %v", lineNo+1, err)
			}
			format, err := formatFromWidth(width)
			if err != nil {
				return Program{}, newErr(KindMalformedRecipe, "line %d: %v", lineNo+1, err)
			}
			addr, err := parseAddr(fields[2])
			if err != nil {
				return Program{}, newErr(KindMalformedRecipe, "line %d: bad address: %v", lineNo+1, err)
			}
			value, err := parseAddr(fields[3])
			if err != nil {
				return Program{}, newErr(KindMalformedRecipe, "line %d: bad value: %v", lineNo+1, err)
			}
			p.Instructions = append(p.Instructions, WReg{Addr: addr, Value: value, Format: format})

		case "WDCD":
			if len(fields) < 2 || len(fields) > 3 {
				return Program{}, newErr(KindMalformedRecipe, "line %d: WDCD needs a data key and optional address", lineNo+1)
			}
			var tok string
			if len(fields) == 3 {
				tok = fields[2]
			}
			addr, err := optionalAddr(tok)
			if err != nil {
				return Program{}, newErr(KindMalformedRecipe, "line %d: bad address: %v", lineNo+1, err)
			}
			p.Instructions = append(p.Instructions, WDcd{DataKey: fields[1], Addr: addr})

		case "WIMG":
			if len(fields) < 2 || len(fields) > 3 {
				return Program{}, newErr(KindMalformedRecipe, "line %d: WIMG needs a data key and optional address", lineNo+1)
			}
			var tok string
			if len(fields) == 3 {
				tok = fields[2]
			}
			addr, err := optionalAddr(tok)
			if err != nil {
				return Program{}, newErr(KindMalformedRecipe, "line %d: bad address: %v", lineNo+1, err)
			}
			p.Instructions = append(p.Instructions, WImg{DataKey: fields[1], Addr: addr})

		case "SDCD":
			if len(fields) != 1 {
				return Program{}, newErr(KindMalformedRecipe, "line %d: SDCD takes no argument", lineNo+1)
			}
			p.Instructions = append(p.Instructions, SDcd{})

		case "JRUN":
			if len(fields) != 2 {
				return Program{}, newErr(KindMalformedRecipe, "line %d: JRUN needs an address or data name", lineNo+1)
			}
			if addr, err := parseAddr(fields[1]); err == nil {
				p.Instructions = append(p.Instructions, JRun{Addr: &addr})
			} else {
				p.Instructions = append(p.Instructions, JRun{DataKey: fields[1]})
			}

		default:
			return Program{}, newErr(KindUnknownInstruction, "line %d: %q", lineNo+1, fields[0])
		}
	}
	return p, nil
}
