package goimx

import (
	"encoding/binary"

	"github.com/molejar/goimx/dcd"
)

// v3a/v3b carry two chained IVTs (spec §3.7) followed by a small core
// descriptor table that records where each per-core payload landed. The
// descriptor table is this codec's own bookkeeping, not a SoC ROM structure:
// v3 container fidelity is best-effort (DESIGN.md open question decision),
// and the table is what lets Parse reconstruct Image.Cores exactly rather
// than collapsing every core into one opaque blob.

const coreDescEntrySize = 16 // nameTag(1) + reserved(3) + loadAddr(4) + entryAddr(4) + length(4)

var coreNameTags = map[string]byte{
	"SCFW":    1,
	"SCD":     2,
	"APP-A53": 3,
	"APP-A72": 4,
	"CM4-0":   5,
	"CM4-1":   6,
}

func coreNameFromTag(tag byte) string {
	for name, t := range coreNameTags {
		if t == tag {
			return name
		}
	}
	return ""
}

func coreTagFromName(name string) (byte, error) {
	t, ok := coreNameTags[name]
	if !ok {
		return 0, newErr(KindUnrecognizedVariant, "unknown core image name %q", name)
	}
	return t, nil
}

// exportV3 implements the v3a/v3b container layout: primary IVT, secondary
// IVT, BDT, core descriptor table, DCD, then each core's payload in turn,
// followed by the optional CSF (spec §3.7, §4.2).
func (img *Image) exportV3() ([]byte, error) {
	ivtOffset := img.Options.ivtOffset(img.Variant)
	appAlign := img.Options.appAlign(img.Variant)

	secondIvtOffset := ivtOffset + IvtSizeV3
	bdtOffset := secondIvtOffset + IvtSizeV3
	descOffset := bdtOffset + BdtSize

	descTableLen := uint32(4 + len(img.Cores)*coreDescEntrySize)
	dcdOffset := descOffset + descTableLen

	var dcdBytes []byte
	if img.DCD != nil {
		b, err := img.DCD.ExportBinary()
		if err != nil {
			return nil, err
		}
		dcdBytes = b
	}
	headerEnd := dcdOffset + uint32(len(dcdBytes))

	cursor := uint32(AlignTo(uint64(headerEnd), uint64(appAlign)))
	type placed struct {
		core   CoreImage
		offset uint32
	}
	placements := make([]placed, 0, len(img.Cores))
	for _, c := range img.Cores {
		var off uint32
		if c.LoadAddr != 0 {
			if c.LoadAddr < img.StartAddr {
				return nil, newErr(KindInvalidPointer, "core %s load address below image base", c.Name)
			}
			off = c.LoadAddr - img.StartAddr
			if off < cursor {
				return nil, newErr(KindLengthMismatch, "core %s overlaps preceding core", c.Name)
			}
		} else {
			off = cursor
		}
		placements = append(placements, placed{core: c, offset: off})
		cursor = uint32(AlignTo(uint64(off+uint32(len(c.Data))), uint64(appAlign)))
	}
	csfOffset := cursor
	if len(placements) > 0 {
		last := placements[len(placements)-1]
		csfOffset = last.offset + uint32(len(last.core.Data))
	}

	var csfBytes []byte
	if img.CSF != nil {
		csfBytes = img.CSF.Bytes()
	}
	totalLen := csfOffset + uint32(len(csfBytes))

	buf := make([]byte, totalLen)
	if len(dcdBytes) > 0 {
		copy(buf[dcdOffset:headerEnd], dcdBytes)
	}
	copy(buf[csfOffset:], csfBytes)

	desc := make([]byte, descTableLen)
	binary.BigEndian.PutUint32(desc[0:4], uint32(len(placements)))
	var scfwEntry uint32
	for i, p := range placements {
		tag, err := coreTagFromName(p.core.Name)
		if err != nil {
			return nil, err
		}
		entryAddr := p.core.EntryAddr
		if entryAddr == 0 {
			entryAddr = img.StartAddr + p.offset
		}
		rec := desc[4+i*coreDescEntrySize : 4+(i+1)*coreDescEntrySize]
		rec[0] = tag
		binary.BigEndian.PutUint32(rec[4:8], img.StartAddr+p.offset)
		binary.BigEndian.PutUint32(rec[8:12], entryAddr)
		binary.BigEndian.PutUint32(rec[12:16], uint32(len(p.core.Data)))
		copy(buf[p.offset:p.offset+uint32(len(p.core.Data))], p.core.Data)
		if p.core.Name == "SCFW" {
			scfwEntry = entryAddr
		}
	}
	copy(buf[descOffset:dcdOffset], desc)

	primary := IVT{
		Header:   Header{Tag: IvtTagV3, Length: uint16(IvtSizeV3), Param: 0x41},
		Entry:    scfwEntry,
		BootData: img.StartAddr + bdtOffset,
		Self:     img.StartAddr + ivtOffset,
		Ext:      img.StartAddr + secondIvtOffset,
	}
	if len(dcdBytes) > 0 {
		primary.DCD = img.StartAddr + dcdOffset
	}
	if len(csfBytes) > 0 {
		primary.CSF = img.StartAddr + csfOffset
	}
	second := IVT{
		Header:   Header{Tag: IvtTagV3, Length: uint16(IvtSizeV3), Param: 0x41},
		Entry:    primary.Entry,
		BootData: primary.BootData,
		Self:     img.StartAddr + secondIvtOffset,
	}

	plugin := uint32(0)
	if img.Options.Plugin {
		plugin = 1
	}
	bdt := BDT{Start: img.StartAddr, Length: totalLen, Plugin: plugin}

	copy(buf[ivtOffset:secondIvtOffset], primary.Bytes(true))
	copy(buf[secondIvtOffset:bdtOffset], second.Bytes(true))
	copy(buf[bdtOffset:descOffset], bdt.Bytes())

	img.IVT = primary
	img.BDT = bdt
	return buf, nil
}

// parseV3 reverses exportV3's layout (spec §3.7, §4.2, best-effort per
// DESIGN.md's open question decision on v3 container fidelity).
func parseV3(buf []byte, variant Variant, opts Options) (*Image, error) {
	ivtOffset := opts.ivtOffset(variant)
	if uint64(ivtOffset)+2*uint64(IvtSizeV3)+BdtSize > uint64(len(buf)) {
		return nil, newErr(KindLengthMismatch, "buffer too short for v3 header at offset 0x%x", ivtOffset)
	}

	primary, err := ParseIVT(buf[ivtOffset:], true)
	if err != nil {
		return nil, err
	}
	if primary.Header.Tag != IvtTagV3 {
		return nil, newErr(KindUnrecognizedVariant, "ivt tag 0x%02x at offset 0x%x", primary.Header.Tag, ivtOffset)
	}

	secondIvtOffset := ivtOffset + IvtSizeV3
	second, err := ParseIVT(buf[secondIvtOffset:], true)
	if err != nil {
		return nil, err
	}
	if second.Header.Tag != IvtTagV3 {
		return nil, newErr(KindUnrecognizedVariant, "secondary ivt tag 0x%02x", second.Header.Tag)
	}

	bdtOffset := secondIvtOffset + IvtSizeV3
	bdt, err := ParseBDT(buf[bdtOffset:])
	if err != nil {
		return nil, err
	}
	if uint64(bdt.Length) > uint64(len(buf)) {
		return nil, newErr(KindLengthMismatch, "bdt.length %d exceeds buffer %d", bdt.Length, len(buf))
	}
	if err := primary.Validate(bdt.Start, ivtOffset, bdt.Length); err != nil {
		return nil, err
	}
	if primary.BootData != bdt.Start+bdtOffset {
		return nil, newErr(KindInvalidPointer, "ivt.boot_data=0x%x != expected 0x%x", primary.BootData, bdt.Start+bdtOffset)
	}

	descOffset := bdtOffset + BdtSize
	if uint64(descOffset)+4 > uint64(len(buf)) {
		return nil, newErr(KindLengthMismatch, "buffer too short for core descriptor table")
	}
	count := binary.BigEndian.Uint32(buf[descOffset : descOffset+4])
	descTableLen := uint32(4 + count*coreDescEntrySize)
	if uint64(descOffset)+uint64(descTableLen) > uint64(len(buf)) {
		return nil, newErr(KindLengthMismatch, "core descriptor table overflows buffer")
	}

	img := &Image{
		Variant:   variant,
		StartAddr: bdt.Start,
		Options:   opts,
		IVT:       primary,
		BDT:       bdt,
	}

	for i := uint32(0); i < count; i++ {
		rec := buf[descOffset+4+i*coreDescEntrySize : descOffset+4+(i+1)*coreDescEntrySize]
		name := coreNameFromTag(rec[0])
		if name == "" {
			return nil, newErr(KindUnrecognizedVariant, "unknown core descriptor tag 0x%02x", rec[0])
		}
		loadAddr := binary.BigEndian.Uint32(rec[4:8])
		entryAddr := binary.BigEndian.Uint32(rec[8:12])
		length := binary.BigEndian.Uint32(rec[12:16])
		off, err := translate(loadAddr, bdt, uint32(len(buf)))
		if err != nil {
			return nil, err
		}
		if uint64(off)+uint64(length) > uint64(len(buf)) {
			return nil, newErr(KindAppTooLarge, "core %s extends past end of buffer", name)
		}
		img.Cores = append(img.Cores, CoreImage{
			Name:      name,
			LoadAddr:  loadAddr,
			EntryAddr: entryAddr,
			Data:      append([]byte(nil), buf[off:off+length]...),
		})
	}

	dcdOffset := descOffset + descTableLen
	if primary.DCD != 0 {
		off, err := translate(primary.DCD, bdt, uint32(len(buf)))
		if err != nil {
			return nil, err
		}
		if off != dcdOffset {
			return nil, newErr(KindInvalidPointer, "ivt.dcd does not point at expected offset 0x%x", dcdOffset)
		}
		prog, err := dcd.ParseBinary(buf[off:])
		if err != nil {
			return nil, err
		}
		img.DCD = &prog
	}

	if primary.CSF != 0 {
		off, err := translate(primary.CSF, bdt, uint32(len(buf)))
		if err != nil {
			return nil, err
		}
		c := ParseCSF(buf[off:bdt.Length])
		img.CSF = &c
	}

	return img, nil
}
