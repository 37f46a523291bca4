package goimx

import (
	"encoding/binary"
)

// HeaderSize is the on-disk size of the shared {tag, length, param} record
// header used by the IVT, the DCD segment and every DCD command record
// (spec §3.2).
const HeaderSize = 4

// Header is the recurring 4-byte tag/length/param record header. Length is
// the full header-inclusive byte count of the record it introduces, and is
// carried big-endian (network order) on the wire, inherited from the SoC
// ROM's tag-length-param convention.
type Header struct {
	Tag    uint8
	Length uint16
	Param  uint8
}

// ParseHeader decodes a 4-byte header from the front of buf.
func ParseHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, newErr(KindLengthMismatch, "header needs %d bytes, got %d", HeaderSize, len(buf))
	}
	return Header{
		Tag:    buf[0],
		Length: binary.BigEndian.Uint16(buf[1:3]),
		Param:  buf[3],
	}, nil
}

// Bytes encodes the header to its 4-byte wire form.
func (h Header) Bytes() []byte {
	buf := make([]byte, HeaderSize)
	buf[0] = h.Tag
	binary.BigEndian.PutUint16(buf[1:3], h.Length)
	buf[3] = h.Param
	return buf
}
