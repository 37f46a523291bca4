package dcd

import (
	"fmt"
	"strconv"
	"strings"
)

// writeOpNames maps every textual spelling (canonical and implicit, per
// spec §9's open question) to a WriteOp.
var writeOpNames = map[string]WriteOp{
	"WriteValue":    WriteValue,
	"WRITE_VALUE":   WriteValue,
	"WriteClear":    WriteClear,
	"WRITE_CLEAR":   WriteClear,
	"ClearBitmask":  ClearBitmask,
	"CLEAR_BITMASK": ClearBitmask,
	"SetBitmask":    SetBitmask,
	"SET_BITMASK":   SetBitmask,
}

var checkOpNames = map[string]CheckOp{
	"CheckAllClear": AllClear,
	"CHECK_ALL_CLEAR": AllClear,
	"CheckAllSet":     AllSet,
	"CHECK_ALL_SET":   AllSet,
	"CheckAnyClear":   AnyClear,
	"CHECK_ANY_CLEAR": AnyClear,
	"CheckAnySet":     AnySet,
	"CHECK_ANY_SET":   AnySet,
}

// canonical spelling used on emit, per DESIGN.md's Open Question decision.
var writeOpCanon = map[WriteOp]string{
	WriteValue:   "WriteValue",
	WriteClear:   "WriteClear",
	ClearBitmask: "ClearBitmask",
	SetBitmask:   "SetBitmask",
}

var checkOpCanon = map[CheckOp]string{
	AllClear: "CheckAllClear",
	AllSet:   "CheckAllSet",
	AnyClear: "CheckAnyClear",
	AnySet:   "CheckAnySet",
}

// parseNumber accepts hex (0x…), binary (0b…), octal (0…) and decimal
// literals, per spec §4.1.
func parseNumber(tok string) (uint64, error) {
	return strconv.ParseUint(tok, 0, 64)
}

// joinContinuations collapses trailing-backslash line continuations before
// splitting into logical lines (spec §4.1).
func joinContinuations(text string) []string {
	rawLines := strings.Split(text, "\n")
	var logical []string
	var cur strings.Builder
	for _, l := range rawLines {
		trimmed := strings.TrimRight(l, "\r")
		if strings.HasSuffix(trimmed, "\\") {
			cur.WriteString(strings.TrimSuffix(trimmed, "\\"))
			cur.WriteString(" ")
			continue
		}
		cur.WriteString(trimmed)
		logical = append(logical, cur.String())
		cur.Reset()
	}
	if cur.Len() > 0 {
		logical = append(logical, cur.String())
	}
	return logical
}

// ParseText decodes a DCD program from its line-oriented textual form
// (spec §4.1). Consecutive WriteData lines sharing the same op and width
// are coalesced into a single WriteData command, matching how the binary
// form groups entries (spec §8 scenario 1).
func ParseText(text string) (Program, error) {
	var prog Program
	var pending *WriteData

	flush := func() {
		if pending != nil {
			prog.Commands = append(prog.Commands, *pending)
			pending = nil
		}
	}

	for lineNo, line := range joinContinuations(text) {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		fields := strings.Fields(trimmed)
		keyword := fields[0]

		if op, ok := writeOpNames[keyword]; ok {
			if len(fields) != 4 {
				return Program{}, newErr(KindMalformedHeader, "line %d: expected 'op width addr value'", lineNo+1)
			}
			width, err := strconv.Atoi(fields[1])
			if err != nil {
				return Program{}, newErr(KindInvalidWidth, "line %d: %v", lineNo+1, err)
			}
			addr, err := parseNumber(fields[2])
			if err != nil {
				return Program{}, newErr(KindMalformedHeader, "line %d: bad address: %v", lineNo+1, err)
			}
			val, err := parseNumber(fields[3])
			if err != nil {
				return Program{}, newErr(KindMalformedHeader, "line %d: bad value: %v", lineNo+1, err)
			}
			if uint32(addr)%uint32(width) != 0 {
				return Program{}, newErr(KindBadAlignment, "line %d: address 0x%x not aligned to width %d", lineNo+1, addr, width)
			}
			entry := Entry{Addr: uint32(addr), Value: uint32(val)}
			if pending != nil && pending.Op == op && pending.Width == width {
				pending.Entries = append(pending.Entries, entry)
			} else {
				flush()
				pending = &WriteData{Op: op, Width: width, Entries: []Entry{entry}}
			}
			continue
		}

		flush()

		if op, ok := checkOpNames[keyword]; ok {
			if len(fields) != 4 && len(fields) != 5 {
				return Program{}, newErr(KindMalformedHeader, "line %d: expected 'op width addr mask [count]'", lineNo+1)
			}
			width, err := strconv.Atoi(fields[1])
			if err != nil {
				return Program{}, newErr(KindInvalidWidth, "line %d: %v", lineNo+1, err)
			}
			addr, err := parseNumber(fields[2])
			if err != nil {
				return Program{}, newErr(KindMalformedHeader, "line %d: bad address: %v", lineNo+1, err)
			}
			mask, err := parseNumber(fields[3])
			if err != nil {
				return Program{}, newErr(KindMalformedHeader, "line %d: bad mask: %v", lineNo+1, err)
			}
			if uint32(addr)%uint32(width) != 0 {
				return Program{}, newErr(KindBadAlignment, "line %d: address 0x%x not aligned to width %d", lineNo+1, addr, width)
			}
			cd := CheckData{Op: op, Width: width, Addr: uint32(addr), Mask: uint32(mask)}
			if len(fields) == 5 {
				count, err := parseNumber(fields[4])
				if err != nil {
					return Program{}, newErr(KindMalformedHeader, "line %d: bad count: %v", lineNo+1, err)
				}
				c := uint32(count)
				cd.Count = &c
			}
			prog.Commands = append(prog.Commands, cd)
			continue
		}

		switch keyword {
		case "Nop", "NOP":
			prog.Commands = append(prog.Commands, Nop{})
		case "Unlock", "UNLOCK":
			if len(fields) < 2 {
				return Program{}, newErr(KindUnknownEngine, "line %d: missing engine name", lineNo+1)
			}
			eng, err := EngineByName(fields[1])
			if err != nil {
				return Program{}, fmt.Errorf("line %d: %w", lineNo+1, err)
			}
			values := make([]uint32, 0, len(fields)-2)
			for _, tok := range fields[2:] {
				v, err := parseNumber(tok)
				if err != nil {
					return Program{}, newErr(KindMalformedHeader, "line %d: bad unlock value: %v", lineNo+1, err)
				}
				values = append(values, uint32(v))
			}
			prog.Commands = append(prog.Commands, Unlock{Engine: eng, Values: values})
		default:
			return Program{}, newErr(KindUnknownCommandTag, "line %d: %q", lineNo+1, keyword)
		}
	}
	flush()
	return prog, nil
}

// ExportText encodes the program to its canonical textual form (spec
// §4.1). Output always uses the canonical spelling regardless of which
// spelling was accepted on parse (spec §9 open question).
func (p Program) ExportText() string {
	var b strings.Builder
	for _, c := range p.Commands {
		switch cmd := c.(type) {
		case WriteData:
			for _, e := range cmd.Entries {
				fmt.Fprintf(&b, "%s %d 0x%08X 0x%08X\n", writeOpCanon[cmd.Op], cmd.Width, e.Addr, e.Value)
			}
		case CheckData:
			if cmd.Count != nil {
				fmt.Fprintf(&b, "%s %d 0x%08X 0x%08X %d\n", checkOpCanon[cmd.Op], cmd.Width, cmd.Addr, cmd.Mask, *cmd.Count)
			} else {
				fmt.Fprintf(&b, "%s %d 0x%08X 0x%08X\n", checkOpCanon[cmd.Op], cmd.Width, cmd.Addr, cmd.Mask)
			}
		case Nop:
			b.WriteString("Nop\n")
		case Unlock:
			fmt.Fprintf(&b, "Unlock %s", cmd.Engine)
			for _, v := range cmd.Values {
				fmt.Fprintf(&b, " 0x%08X", v)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
