package goimx

import (
	"github.com/molejar/goimx/dcd"
)

// exportV2 implements the v2/v2b layout rules of spec §4.2.
func (img *Image) exportV2() ([]byte, error) {
	ivtOffset := img.Options.ivtOffset(img.Variant)
	appAlign := img.Options.appAlign(img.Variant)

	bdtOffset := ivtOffset + IvtSizeV2
	dcdOffset := bdtOffset + BdtSize

	var dcdBytes []byte
	if img.DCD != nil {
		b, err := img.DCD.ExportBinary()
		if err != nil {
			return nil, err
		}
		dcdBytes = b
	}
	headerEnd := dcdOffset + uint32(len(dcdBytes))

	appOffset := AlignTo(uint64(headerEnd), uint64(appAlign))
	appLen := uint32(len(img.App))
	csfOffset := uint32(appOffset) + appLen

	var csfBytes []byte
	if img.CSF != nil {
		csfBytes = img.CSF.Bytes()
	}
	totalLen := csfOffset + uint32(len(csfBytes))

	buf := make([]byte, totalLen)
	copy(buf[uint32(appOffset):csfOffset], img.App)
	copy(buf[csfOffset:], csfBytes)
	if len(dcdBytes) > 0 {
		copy(buf[dcdOffset:headerEnd], dcdBytes)
	}

	ivt := IVT{
		Header:   Header{Tag: IvtTagV2, Length: uint16(IvtSizeV2), Param: 0x41},
		Entry:    img.StartAddr + uint32(appOffset) + img.Options.AppEntryOffset,
		DCD:      0,
		BootData: img.StartAddr + bdtOffset,
		Self:     img.StartAddr + ivtOffset,
		CSF:      0,
	}
	if len(dcdBytes) > 0 {
		ivt.DCD = ivt.Self + IvtSizeV2 + BdtSize
	}
	if len(csfBytes) > 0 {
		ivt.CSF = img.StartAddr + csfOffset
	}

	plugin := uint32(0)
	if img.Options.Plugin {
		plugin = 1
	}
	bdt := BDT{Start: img.StartAddr, Length: totalLen, Plugin: plugin}

	copy(buf[ivtOffset:bdtOffset], ivt.Bytes(false))
	copy(buf[bdtOffset:dcdOffset], bdt.Bytes())

	img.IVT = ivt
	img.BDT = bdt
	return buf, nil
}

// parseV2 implements the v2/v2b parse policy of spec §4.2.
func parseV2(buf []byte, variant Variant, opts Options) (*Image, error) {
	ivtOffset := opts.ivtOffset(variant)
	if uint64(ivtOffset)+uint64(IvtSizeV2)+BdtSize > uint64(len(buf)) {
		return nil, newErr(KindLengthMismatch, "buffer too short for ivt+bdt at offset 0x%x", ivtOffset)
	}

	ivt, err := ParseIVT(buf[ivtOffset:], false)
	if err != nil {
		return nil, err
	}
	if ivt.Header.Tag != IvtTagV2 {
		return nil, newErr(KindUnrecognizedVariant, "ivt tag 0x%02x at offset 0x%x", ivt.Header.Tag, ivtOffset)
	}

	bdtOffset := ivtOffset + IvtSizeV2
	bdt, err := ParseBDT(buf[bdtOffset:])
	if err != nil {
		return nil, err
	}
	if uint64(bdt.Length) > uint64(len(buf)) {
		return nil, newErr(KindLengthMismatch, "bdt.length %d exceeds buffer %d", bdt.Length, len(buf))
	}
	if err := ivt.Validate(bdt.Start, ivtOffset, bdt.Length); err != nil {
		return nil, err
	}
	if ivt.BootData != bdt.Start+bdtOffset {
		return nil, newErr(KindInvalidPointer, "ivt.boot_data=0x%x != expected 0x%x", ivt.BootData, bdt.Start+bdtOffset)
	}

	img := &Image{
		Variant:   variant,
		StartAddr: bdt.Start,
		Options:   opts,
		IVT:       ivt,
		BDT:       bdt,
	}

	if ivt.DCD != 0 {
		off, err := translate(ivt.DCD, bdt, uint32(len(buf)))
		if err != nil {
			return nil, err
		}
		prog, err := dcd.ParseBinary(buf[off:])
		if err != nil {
			return nil, err
		}
		img.DCD = &prog
	}

	var csfBufOffset uint32
	haveCSF := ivt.CSF != 0
	if haveCSF {
		off, err := translate(ivt.CSF, bdt, uint32(len(buf)))
		if err != nil {
			return nil, err
		}
		csfBufOffset = off
		c := ParseCSF(buf[off:bdt.Length])
		img.CSF = &c
	}

	appOffset, err := translate(ivt.Entry-opts.AppEntryOffset, bdt, uint32(len(buf)))
	if err != nil {
		return nil, newErr(KindInvalidPointer, "ivt.entry does not resolve to a valid app offset")
	}
	appEnd := bdt.Length
	if haveCSF {
		appEnd = csfBufOffset
	}
	if appOffset > appEnd || appEnd > uint32(len(buf)) {
		return nil, newErr(KindAppTooLarge, "app region [0x%x,0x%x) overflows image", appOffset, appEnd)
	}
	img.App = append([]byte(nil), buf[appOffset:appEnd]...)

	return img, nil
}

// translate converts a target-memory pointer to a buffer offset, validating
// it falls within [bdt.Start, bdt.Start+bufLen] (spec §4.2 parse policy). A
// pointer exactly at the end of the buffer is accepted, so an empty trailing
// region (e.g. a zero-length app) still resolves.
func translate(ptr uint32, bdt BDT, bufLen uint32) (uint32, error) {
	if ptr < bdt.Start {
		return 0, newErr(KindInvalidPointer, "pointer 0x%x below image base 0x%x", ptr, bdt.Start)
	}
	off := ptr - bdt.Start
	if off > bufLen {
		return 0, newErr(KindInvalidPointer, "pointer 0x%x resolves past end of buffer", ptr)
	}
	return off, nil
}
