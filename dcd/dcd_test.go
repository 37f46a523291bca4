package dcd_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/molejar/goimx/dcd"
)

const sampleText = `WriteValue 4 0x30340004 0x4F400005
WriteValue 4 0x30391000 0x00000002
WriteValue 4 0x307A0000 0x01040001
CheckAnyClear 4 0x307900C4 0x00000001
`

// TestTextToBinaryLength is spec §8 scenario 1: the four-line program
// round-trips to a binary blob of exactly 44 bytes.
func TestTextToBinaryLength(t *testing.T) {
	prog, err := dcd.ParseText(sampleText)
	if err != nil {
		t.Fatalf("ParseText: %v", err)
	}
	if len(prog.Commands) != 2 {
		t.Fatalf("expected 2 coalesced commands, got %d", len(prog.Commands))
	}
	bin, err := prog.ExportBinary()
	if err != nil {
		t.Fatalf("ExportBinary: %v", err)
	}
	if len(bin) != 44 {
		t.Fatalf("expected 44 bytes, got %d", len(bin))
	}
}

func TestBinaryRoundTrip(t *testing.T) {
	prog, err := dcd.ParseText(sampleText)
	if err != nil {
		t.Fatalf("ParseText: %v", err)
	}
	bin, err := prog.ExportBinary()
	if err != nil {
		t.Fatalf("ExportBinary: %v", err)
	}
	reparsed, err := dcd.ParseBinary(bin)
	if err != nil {
		t.Fatalf("ParseBinary: %v", err)
	}
	if diff := cmp.Diff(prog, reparsed); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
	bin2, err := reparsed.ExportBinary()
	if err != nil {
		t.Fatalf("ExportBinary (2nd): %v", err)
	}
	if diff := cmp.Diff(bin, bin2); diff != "" {
		t.Fatalf("re-exported bytes differ:\n%s", diff)
	}
}

func TestTextRoundTrip(t *testing.T) {
	prog, err := dcd.ParseText(sampleText)
	if err != nil {
		t.Fatalf("ParseText: %v", err)
	}
	emitted := prog.ExportText()
	reparsed, err := dcd.ParseText(emitted)
	if err != nil {
		t.Fatalf("ParseText(emitted): %v", err)
	}
	if diff := cmp.Diff(prog, reparsed); diff != "" {
		t.Fatalf("text round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestImplicitAndCanonicalSpellingsAgree(t *testing.T) {
	implicit := "WRITE_VALUE 4 0x30340004 0x4F400005\n"
	canonical := "WriteValue 4 0x30340004 0x4F400005\n"

	a, err := dcd.ParseText(implicit)
	if err != nil {
		t.Fatalf("ParseText(implicit): %v", err)
	}
	b, err := dcd.ParseText(canonical)
	if err != nil {
		t.Fatalf("ParseText(canonical): %v", err)
	}
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("spellings should parse identically (-implicit +canonical):\n%s", diff)
	}
	if a.ExportText() != canonical {
		t.Fatalf("emit should canonicalize: got %q want %q", a.ExportText(), canonical)
	}
}

func TestOversizeSegmentBoundary(t *testing.T) {
	// Build a program whose binary form is exactly MaxSegmentSize (1768)
	// bytes: header(4) + writeData header(4) + N*8 == 1768 => N = 220.
	const n = (dcd.MaxSegmentSize - 8) / 8
	entries := make([]dcd.Entry, n)
	for i := range entries {
		entries[i] = dcd.Entry{Addr: uint32(i * 4), Value: uint32(i)}
	}
	prog := dcd.Program{Commands: []dcd.Command{dcd.WriteData{Op: dcd.WriteValue, Width: 4, Entries: entries}}}
	bin, err := prog.ExportBinary()
	if err != nil {
		t.Fatalf("ExportBinary at boundary: %v", err)
	}
	if len(bin) != dcd.MaxSegmentSize {
		t.Fatalf("expected exactly %d bytes, got %d", dcd.MaxSegmentSize, len(bin))
	}

	over := prog
	overEntries := append(append([]dcd.Entry{}, entries...), dcd.Entry{Addr: uint32(n * 4), Value: 0})
	over.Commands = []dcd.Command{dcd.WriteData{Op: dcd.WriteValue, Width: 4, Entries: overEntries}}
	if _, err := over.ExportBinary(); err == nil {
		t.Fatal("expected OversizeSegment error one entry over the boundary")
	} else if !cmp.Equal(err.(*dcd.Error).Kind, dcd.KindOversizeSegment) {
		t.Fatalf("expected OversizeSegment, got %v", err)
	}
}

func TestBadAlignment(t *testing.T) {
	prog := dcd.Program{Commands: []dcd.Command{
		dcd.WriteData{Op: dcd.WriteValue, Width: 4, Entries: []dcd.Entry{{Addr: 0x1001, Value: 1}}},
	}}
	if _, err := prog.ExportBinary(); err == nil {
		t.Fatal("expected BadAlignment error")
	}
}

func TestUnknownCommandTag(t *testing.T) {
	if _, err := dcd.ParseText("Frobnicate 4 0x0 0x0\n"); err == nil {
		t.Fatal("expected UnknownCommandTag error")
	}
}

func TestUnlockRoundTrip(t *testing.T) {
	prog := dcd.Program{Commands: []dcd.Command{
		dcd.Unlock{Engine: dcd.EngineSNVS, Values: []uint32{0x1, 0x2}},
	}}
	bin, err := prog.ExportBinary()
	if err != nil {
		t.Fatalf("ExportBinary: %v", err)
	}
	reparsed, err := dcd.ParseBinary(bin)
	if err != nil {
		t.Fatalf("ParseBinary: %v", err)
	}
	if diff := cmp.Diff(prog, reparsed); diff != "" {
		t.Fatalf("unlock round trip mismatch:\n%s", diff)
	}
}
