package hexfile

// Record is a decoded, linearized memory image: Data starting at address
// Base, with Entry set if the source file named a start/execution address.
type Record struct {
	Base  uint32
	Data  []byte
	Entry *uint32
}

type chunk struct {
	addr uint32
	data []byte
}

// linearize merges address-tagged chunks into a single contiguous Record.
// If allowGaps is false, any address range not covered by a chunk, or any
// overlap between chunks, raises LengthMismatch (spec §4.4's "reject
// non-contiguous ranges unless override").
func linearize(chunks []chunk, entry *uint32, allowGaps bool) (Record, error) {
	if len(chunks) == 0 {
		return Record{}, nil
	}
	minAddr := chunks[0].addr
	maxEnd := chunks[0].addr + uint32(len(chunks[0].data))
	for _, c := range chunks[1:] {
		if c.addr < minAddr {
			minAddr = c.addr
		}
		end := c.addr + uint32(len(c.data))
		if end > maxEnd {
			maxEnd = end
		}
	}

	buf := make([]byte, maxEnd-minAddr)
	covered := make([]bool, len(buf))
	for _, c := range chunks {
		off := c.addr - minAddr
		for i, b := range c.data {
			if covered[int(off)+i] {
				return Record{}, newErr(KindLengthMismatch, "overlapping data at address 0x%x", c.addr+uint32(i))
			}
			covered[int(off)+i] = true
			buf[int(off)+i] = b
		}
	}
	if !allowGaps {
		for i, ok := range covered {
			if !ok {
				return Record{}, newErr(KindLengthMismatch, "gap in address range at 0x%x", minAddr+uint32(i))
			}
		}
	}
	return Record{Base: minAddr, Data: buf, Entry: entry}, nil
}
