package hexfile_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/molejar/goimx/hexfile"
)

func TestSRecordRoundTrip(t *testing.T) {
	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i)
	}
	entry := uint32(0x87800000)
	rec := hexfile.Record{Base: 0x87800000, Data: data, Entry: &entry}

	text := hexfile.ExportSRecords(rec, 16)
	reparsed, err := hexfile.ParseSRecords(text, false)
	if err != nil {
		t.Fatalf("ParseSRecords: %v", err)
	}
	if diff := cmp.Diff(rec.Data, reparsed.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
	if reparsed.Base != rec.Base {
		t.Fatalf("base = 0x%x, want 0x%x", reparsed.Base, rec.Base)
	}
	if reparsed.Entry == nil || *reparsed.Entry != entry {
		t.Fatalf("entry mismatch: got %v, want 0x%x", reparsed.Entry, entry)
	}
}

func TestIntelHexRoundTripAcrossSegment(t *testing.T) {
	data := make([]byte, 70000) // crosses a 64KiB boundary
	for i := range data {
		data[i] = byte(i % 251)
	}
	rec := hexfile.Record{Base: 0x00010000, Data: data}

	text := hexfile.ExportIntelHex(rec, 16)
	reparsed, err := hexfile.ParseIntelHex(text, false)
	if err != nil {
		t.Fatalf("ParseIntelHex: %v", err)
	}
	if diff := cmp.Diff(rec.Data, reparsed.Data); diff != "" {
		t.Fatalf("data mismatch across segment boundary")
	}
	if reparsed.Base != rec.Base {
		t.Fatalf("base = 0x%x, want 0x%x", reparsed.Base, rec.Base)
	}
}

func TestIntelHexChecksumMismatch(t *testing.T) {
	// count=4, addr=0x0000, type=data, payload 01 02 03 04, checksum
	// deliberately wrong (correct value is 0xF2).
	bad := ":0400000001020304FF\n"
	if _, err := hexfile.ParseIntelHex(bad, false); err == nil {
		t.Fatal("expected ChecksumMismatch error")
	} else if err.(*hexfile.Error).Kind != hexfile.KindChecksumMismatch {
		t.Fatalf("unexpected kind: %v", err)
	}
}

func TestLengthMismatchOnGap(t *testing.T) {
	// S1 count=4 addr=0x0000 data=AA checksum=51, then S1 count=4
	// addr=0x0010 data=BB checksum=30: leaves a gap from 0x0001-0x000F.
	text := "S1040000AA51\nS1040010BB30\n"
	if _, err := hexfile.ParseSRecords(text, false); err == nil {
		t.Fatal("expected LengthMismatch for a gap in the address range")
	} else if err.(*hexfile.Error).Kind != hexfile.KindLengthMismatch {
		t.Fatalf("unexpected kind: %v", err)
	}
}
