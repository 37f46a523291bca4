package goimx

// CSF is the Code Signing File: opaque-to-this-codec authentication
// metadata (spec §3.6). Bytes are preserved verbatim; no signing or
// verification is performed.
type CSF struct {
	Raw []byte
}

// csfLength inspects the leading {tag,length,param} record of buf (if any)
// to determine how many trailing bytes belong to the CSF, per spec §4.2's
// parse policy: "CSF is captured as a raw slice ending at either
// ivt.csf + first_csf_header.length or EOF."
func csfLength(buf []byte) int {
	if len(buf) < HeaderSize {
		return len(buf)
	}
	hdr, err := ParseHeader(buf)
	if err != nil || int(hdr.Length) == 0 || int(hdr.Length) > len(buf) {
		return len(buf)
	}
	return int(hdr.Length)
}

// ParseCSF captures the CSF region starting at buf[0], consuming through
// the end of its first command record's declared length, or EOF.
func ParseCSF(buf []byte) CSF {
	if len(buf) == 0 {
		return CSF{}
	}
	n := csfLength(buf)
	raw := make([]byte, n)
	copy(raw, buf[:n])
	return CSF{Raw: raw}
}

// Bytes returns the CSF's verbatim byte representation.
func (c CSF) Bytes() []byte {
	return c.Raw
}

// Len reports the CSF's byte length (0 if absent).
func (c CSF) Len() int {
	return len(c.Raw)
}
