package goimx

import "encoding/binary"

// BdtSize is the on-disk size of the Boot Data Table (spec §3.4).
const BdtSize = 12

// BDT is the Boot Data Table: image base address, total length, and the
// plugin flag (spec §3.4).
type BDT struct {
	Start  uint32
	Length uint32
	Plugin uint32 // 0 or 1
}

// ParseBDT decodes a BDT from the front of buf.
func ParseBDT(buf []byte) (BDT, error) {
	if len(buf) < BdtSize {
		return BDT{}, newErr(KindLengthMismatch, "bdt needs %d bytes, got %d", BdtSize, len(buf))
	}
	le := binary.LittleEndian
	return BDT{
		Start:  le.Uint32(buf[0:4]),
		Length: le.Uint32(buf[4:8]),
		Plugin: le.Uint32(buf[8:12]),
	}, nil
}

// Bytes encodes the BDT to its wire form.
func (b BDT) Bytes() []byte {
	buf := make([]byte, BdtSize)
	le := binary.LittleEndian
	le.PutUint32(buf[0:4], b.Start)
	le.PutUint32(buf[4:8], b.Length)
	le.PutUint32(buf[8:12], b.Plugin)
	return buf
}
