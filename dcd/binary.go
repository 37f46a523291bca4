package dcd

import (
	"encoding/binary"
)

// header is the shared {tag, length, param} record primitive (spec §3.2),
// big-endian length, used by the outer DCD header and every command record.
type header struct {
	Tag    uint8
	Length uint16
	Param  uint8
}

func parseHeader(buf []byte) (header, error) {
	if len(buf) < 4 {
		return header{}, newErr(KindMalformedHeader, "need 4 bytes, got %d", len(buf))
	}
	return header{
		Tag:    buf[0],
		Length: binary.BigEndian.Uint16(buf[1:3]),
		Param:  buf[3],
	}, nil
}

func (h header) bytes() []byte {
	buf := make([]byte, 4)
	buf[0] = h.Tag
	binary.BigEndian.PutUint16(buf[1:3], h.Length)
	buf[3] = h.Param
	return buf
}

// ParseBinary decodes a DCD segment from its on-disk binary form (spec
// §4.1). x must start with the outer DCD header; bytes beyond the length
// that header declares are ignored.
func ParseBinary(x []byte) (Program, error) {
	outer, err := parseHeader(x)
	if err != nil {
		return Program{}, err
	}
	if outer.Tag != tagDCD {
		return Program{}, newErr(KindMalformedHeader, "expected dcd tag 0x%02x, got 0x%02x", tagDCD, outer.Tag)
	}
	total := int(outer.Length)
	if total > MaxSegmentSize {
		return Program{}, newErr(KindOversizeSegment, "%d bytes", total)
	}
	if total < 4 || total > len(x) {
		return Program{}, newErr(KindMalformedHeader, "declared length %d exceeds buffer %d", total, len(x))
	}

	prog := Program{Version: outer.Param}
	off := 4
	for off < total {
		if off+4 > total {
			return Program{}, newErr(KindMalformedHeader, "truncated record header at offset %d", off)
		}
		rh, err := parseHeader(x[off:total])
		if err != nil {
			return Program{}, err
		}
		recLen := int(rh.Length)
		if recLen < 4 || off+recLen > total {
			return Program{}, newErr(KindMalformedHeader, "record length %d invalid at offset %d", recLen, off)
		}
		payload := x[off+4 : off+recLen]

		switch rh.Tag {
		case tagWriteData:
			cmd, err := parseWriteData(rh.Param, payload)
			if err != nil {
				return Program{}, err
			}
			prog.Commands = append(prog.Commands, cmd)
		case tagCheckData:
			cmd, err := parseCheckData(rh.Param, payload)
			if err != nil {
				return Program{}, err
			}
			prog.Commands = append(prog.Commands, cmd)
		case tagNop:
			prog.Commands = append(prog.Commands, Nop{})
		case tagUnlock:
			cmd, err := parseUnlock(rh.Param, payload)
			if err != nil {
				return Program{}, err
			}
			prog.Commands = append(prog.Commands, cmd)
		default:
			return Program{}, newErr(KindUnknownCommandTag, "0x%02x", rh.Tag)
		}
		off += recLen
	}
	return prog, nil
}

func parseWriteData(param uint8, payload []byte) (WriteData, error) {
	op := WriteOp((param >> 3) & 0x3)
	if op > SetBitmask {
		return WriteData{}, newErr(KindInvalidOps, "write op code %d", op)
	}
	width, err := widthFromCode(param & 0x07)
	if err != nil {
		return WriteData{}, err
	}
	if len(payload)%8 != 0 {
		return WriteData{}, newErr(KindMalformedHeader, "write data payload %d not a multiple of 8", len(payload))
	}
	var entries []Entry
	for i := 0; i+8 <= len(payload); i += 8 {
		addr := binary.BigEndian.Uint32(payload[i : i+4])
		val := binary.BigEndian.Uint32(payload[i+4 : i+8])
		if addr%uint32(width) != 0 {
			return WriteData{}, newErr(KindBadAlignment, "address 0x%x not aligned to width %d", addr, width)
		}
		entries = append(entries, Entry{Addr: addr, Value: val})
	}
	return WriteData{Op: op, Width: width, Entries: entries}, nil
}

func parseCheckData(param uint8, payload []byte) (CheckData, error) {
	op := CheckOp((param >> 3) & 0x3)
	if op > AnySet {
		return CheckData{}, newErr(KindInvalidOps, "check op code %d", op)
	}
	width, err := widthFromCode(param & 0x07)
	if err != nil {
		return CheckData{}, err
	}
	if len(payload) != 8 && len(payload) != 12 {
		return CheckData{}, newErr(KindMalformedHeader, "check data payload must be 8 or 12 bytes, got %d", len(payload))
	}
	addr := binary.BigEndian.Uint32(payload[0:4])
	mask := binary.BigEndian.Uint32(payload[4:8])
	if addr%uint32(width) != 0 {
		return CheckData{}, newErr(KindBadAlignment, "address 0x%x not aligned to width %d", addr, width)
	}
	cd := CheckData{Op: op, Width: width, Addr: addr, Mask: mask}
	if len(payload) == 12 {
		count := binary.BigEndian.Uint32(payload[8:12])
		cd.Count = &count
	}
	return cd, nil
}

func parseUnlock(param uint8, payload []byte) (Unlock, error) {
	eng := Engine(param)
	if _, ok := engineNames[eng]; !ok {
		return Unlock{}, newErr(KindUnknownEngine, "code %d", param)
	}
	if len(payload)%4 != 0 {
		return Unlock{}, newErr(KindMalformedHeader, "unlock payload %d not a multiple of 4", len(payload))
	}
	var values []uint32
	for i := 0; i+4 <= len(payload); i += 4 {
		values = append(values, binary.BigEndian.Uint32(payload[i:i+4]))
	}
	return Unlock{Engine: eng, Values: values}, nil
}

// ExportBinary encodes the program to its on-disk binary form (spec §4.1).
func (p Program) ExportBinary() ([]byte, error) {
	body, err := p.exportCommands()
	if err != nil {
		return nil, err
	}
	total := 4 + len(body)
	if total > MaxSegmentSize {
		return nil, newErr(KindOversizeSegment, "%d bytes", total)
	}
	outer := header{Tag: tagDCD, Length: uint16(total), Param: p.Version}
	return append(outer.bytes(), body...), nil
}

func (p Program) exportCommands() ([]byte, error) {
	var out []byte
	for _, c := range p.Commands {
		var rec []byte
		var err error
		switch cmd := c.(type) {
		case WriteData:
			rec, err = exportWriteData(cmd)
		case CheckData:
			rec, err = exportCheckData(cmd)
		case Nop:
			rec = header{Tag: tagNop, Length: 4}.bytes()
		case Unlock:
			rec, err = exportUnlock(cmd)
		default:
			err = newErr(KindUnknownCommandTag, "%T", c)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec...)
	}
	return out, nil
}

func exportWriteData(cmd WriteData) ([]byte, error) {
	if cmd.Op > SetBitmask || cmd.Op < 0 {
		return nil, newErr(KindInvalidOps, "write op %d", cmd.Op)
	}
	wc, err := widthCode(cmd.Width)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, 0, len(cmd.Entries)*8)
	for _, e := range cmd.Entries {
		if e.Addr%uint32(cmd.Width) != 0 {
			return nil, newErr(KindBadAlignment, "address 0x%x not aligned to width %d", e.Addr, cmd.Width)
		}
		b := make([]byte, 8)
		binary.BigEndian.PutUint32(b[0:4], e.Addr)
		binary.BigEndian.PutUint32(b[4:8], e.Value)
		payload = append(payload, b...)
	}
	param := (uint8(cmd.Op) << 3) | wc
	hdr := header{Tag: tagWriteData, Length: uint16(4 + len(payload)), Param: param}
	return append(hdr.bytes(), payload...), nil
}

func exportCheckData(cmd CheckData) ([]byte, error) {
	if cmd.Op > AnySet || cmd.Op < 0 {
		return nil, newErr(KindInvalidOps, "check op %d", cmd.Op)
	}
	wc, err := widthCode(cmd.Width)
	if err != nil {
		return nil, err
	}
	if cmd.Addr%uint32(cmd.Width) != 0 {
		return nil, newErr(KindBadAlignment, "address 0x%x not aligned to width %d", cmd.Addr, cmd.Width)
	}
	payload := make([]byte, 8, 12)
	binary.BigEndian.PutUint32(payload[0:4], cmd.Addr)
	binary.BigEndian.PutUint32(payload[4:8], cmd.Mask)
	if cmd.Count != nil {
		cb := make([]byte, 4)
		binary.BigEndian.PutUint32(cb, *cmd.Count)
		payload = append(payload, cb...)
	}
	param := (uint8(cmd.Op) << 3) | wc
	hdr := header{Tag: tagCheckData, Length: uint16(4 + len(payload)), Param: param}
	return append(hdr.bytes(), payload...), nil
}

func exportUnlock(cmd Unlock) ([]byte, error) {
	if _, ok := engineNames[cmd.Engine]; !ok {
		return nil, newErr(KindUnknownEngine, "code %d", cmd.Engine)
	}
	payload := make([]byte, 0, len(cmd.Values)*4)
	for _, v := range cmd.Values {
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, v)
		payload = append(payload, b...)
	}
	hdr := header{Tag: tagUnlock, Length: uint16(4 + len(payload)), Param: uint8(cmd.Engine)}
	return append(hdr.bytes(), payload...), nil
}

// Size reports the exported byte size of the program without allocating
// the final buffer twice; used by callers that need to reserve space.
func (p Program) Size() (int, error) {
	body, err := p.exportCommands()
	if err != nil {
		return 0, err
	}
	return 4 + len(body), nil
}
