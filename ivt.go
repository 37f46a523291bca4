package goimx

import "encoding/binary"

// IVT tag values recognized at candidate scan offsets during Parse.
const (
	IvtTagV2 uint8 = 0xD1
	IvtTagV3 uint8 = 0xDD
)

// IvtSizeV2 is the on-disk size of a v2/v2b IVT (spec §3.3).
const IvtSizeV2 = 32

// IvtSizeV3 is the on-disk size of a v3 IVT: the v2 layout plus one
// trailing word, which is written as zero. The next-IVT pointer itself is
// carried in the word that is reserved in v2 (IVT.Ext, bytes 28..31).
const IvtSizeV3 = IvtSizeV2 + 4

// IVT is the Image Vector Table: the fixed-layout header identifying an
// image's entry point and its sub-segments (spec §3.3).
type IVT struct {
	Header   Header
	Entry    uint32
	Reserved uint32
	DCD      uint32 // 0 if absent
	BootData uint32
	Self     uint32
	CSF      uint32 // 0 if absent
	Ext      uint32 // reserved in v2, next-IVT pointer in v3
}

// size returns the on-disk IVT size for the v2 (v3=false) or v3 (v3=true)
// layout; callers pass v3 explicitly from the variant being built or
// parsed, since the wire layout alone doesn't distinguish it.
func (v IVT) size(v3 bool) int {
	if v3 {
		return IvtSizeV3
	}
	return IvtSizeV2
}

// ParseIVT decodes an IVT from buf. v3 selects the extended (next-IVT
// pointer) layout.
func ParseIVT(buf []byte, v3 bool) (IVT, error) {
	hdr, err := ParseHeader(buf)
	if err != nil {
		return IVT{}, err
	}
	need := (IVT{}).size(v3)
	if len(buf) < need {
		return IVT{}, newErr(KindLengthMismatch, "ivt needs %d bytes, got %d", need, len(buf))
	}
	le := binary.LittleEndian
	ivt := IVT{
		Header:   hdr,
		Entry:    le.Uint32(buf[4:8]),
		Reserved: le.Uint32(buf[8:12]),
		DCD:      le.Uint32(buf[12:16]),
		BootData: le.Uint32(buf[16:20]),
		Self:     le.Uint32(buf[20:24]),
		CSF:      le.Uint32(buf[24:28]),
		Ext:      le.Uint32(buf[28:32]),
	}
	return ivt, nil
}

// Bytes encodes the IVT to its wire form. v3 selects the extended layout.
func (v IVT) Bytes(v3 bool) []byte {
	buf := make([]byte, v.size(v3))
	copy(buf[0:4], v.Header.Bytes())
	le := binary.LittleEndian
	le.PutUint32(buf[4:8], v.Entry)
	le.PutUint32(buf[8:12], v.Reserved)
	le.PutUint32(buf[12:16], v.DCD)
	le.PutUint32(buf[16:20], v.BootData)
	le.PutUint32(buf[20:24], v.Self)
	le.PutUint32(buf[24:28], v.CSF)
	if v3 {
		le.PutUint32(buf[28:32], v.Ext)
	}
	return buf
}

// Validate checks the IVT invariants from spec §3.3: self must equal
// imageStart + ivtOffset, and every non-zero pointer must land within
// [imageStart, imageStart+length).
func (v IVT) Validate(imageStart uint32, ivtOffset uint32, length uint32) error {
	if v.Self != imageStart+ivtOffset {
		return newErr(KindInvalidPointer, "ivt.self=0x%x != image_start+ivt_offset=0x%x", v.Self, imageStart+ivtOffset)
	}
	end := imageStart + length
	inRange := func(p uint32) bool { return p == 0 || (p >= imageStart && p < end) }
	if !inRange(v.DCD) {
		return newErr(KindInvalidPointer, "ivt.dcd=0x%x out of range", v.DCD)
	}
	if !inRange(v.BootData) {
		return newErr(KindInvalidPointer, "ivt.boot_data=0x%x out of range", v.BootData)
	}
	if !inRange(v.CSF) {
		return newErr(KindInvalidPointer, "ivt.csf=0x%x out of range", v.CSF)
	}
	return nil
}
