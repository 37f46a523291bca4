package goimx

// Variant is the closed set of boot-image container generations this codec
// understands (spec §3.7).
type Variant int

const (
	// V2 covers the v6/v7 and RT family: single IVT, DCD inline, one
	// application payload.
	V2 Variant = iota
	// V2B covers v8M: the v2 layout with different default offsets and
	// alignment.
	V2B
	// V3A covers v8QXP: two chained IVTs, optional SCFW/SCD, and one
	// application image per core (A53, CM4-0, CM4-1).
	V3A
	// V3B covers v8QM: like V3A plus a second A-core cluster (A72).
	V3B
)

func (v Variant) String() string {
	switch v {
	case V2:
		return "v2"
	case V2B:
		return "v2b"
	case V3A:
		return "v3a"
	case V3B:
		return "v3b"
	default:
		return "unknown"
	}
}

func (v Variant) isV3() bool {
	return v == V3A || v == V3B
}

// Hint selects which variant Parse should assume, or Auto to scan for a
// self-consistent IVT+BDT at the candidate offsets (spec §4.2).
type Hint struct {
	Variant Variant
	Auto    bool
}

// AutoHint requests variant auto-detection.
func AutoHint() Hint { return Hint{Auto: true} }

// VariantHint pins Parse to a specific container generation.
func VariantHint(v Variant) Hint { return Hint{Variant: v} }

// defaultIvtOffset returns spec §4.2's per-variant default ivt_offset.
func defaultIvtOffset(v Variant) uint32 {
	switch v {
	case V2:
		return 0x400
	case V2B:
		// v8M: distinct default offset/alignment (spec §3.7).
		return 0x1000
	default:
		return 0x400
	}
}

// defaultAppAlign returns the default alignment of the application payload
// from the image base (spec §3.7: "typically 0x1000").
func defaultAppAlign(v Variant) uint32 {
	switch v {
	case V2B:
		return 0x2000
	default:
		return 0x1000
	}
}

// scanOffsets are the candidate IVT offsets auto-detection probes (spec
// §4.2); no offsets between them are tried.
var scanOffsets = []uint32{0x0, 0x400, 0x1000}
