package goimx

import (
	"github.com/molejar/goimx/dcd"
)

// Options configures Build and Parse (spec §4.2).
type Options struct {
	// IvtOffset overrides the variant's default ivt_offset; 0 means use
	// the variant default.
	IvtOffset uint32
	// AppAlign overrides the variant's default application alignment; 0
	// means use the variant default.
	AppAlign uint32
	// AppEntryOffset is added to the application's load address to form
	// ivt.entry (spec §4.2, default 0).
	AppEntryOffset uint32
	// Step is an auto-detection scan granularity (default 256). Parse does
	// not consult it: auto-detection probes only the fixed candidate
	// offsets in scanOffsets.
	Step uint32
	// Plugin marks the image as a plugin image (BDT.Plugin, spec §3.4).
	Plugin bool
}

func (o Options) ivtOffset(v Variant) uint32 {
	if o.IvtOffset != 0 {
		return o.IvtOffset
	}
	return defaultIvtOffset(v)
}

func (o Options) appAlign(v Variant) uint32 {
	if o.AppAlign != 0 {
		return o.AppAlign
	}
	return defaultAppAlign(v)
}

func (o Options) step() uint32 {
	if o.Step != 0 {
		return o.Step
	}
	return 256
}

// CoreImage is one per-core application payload within a v3 container
// (spec §3.7): SCFW, SCD, APP-A53, APP-A72, CM4-0, CM4-1.
type CoreImage struct {
	Name      string
	LoadAddr  uint32
	EntryAddr uint32
	Data      []byte
}

// Image is the in-memory, mutable-until-export boot-image value (spec
// §3.7). Fields are free to mutate until Export is called; Export returns
// an immutable byte buffer and never retains a reference to caller-owned
// input slices beyond the call.
type Image struct {
	Variant   Variant
	StartAddr uint32
	Options   Options

	// v2/v2b
	App []byte

	// v3a/v3b
	Cores []CoreImage

	DCD *dcd.Program
	CSF *CSF

	// Populated by Parse/Export: the decoded/encoded IVT and BDT.
	IVT IVT
	BDT BDT
}

// Build constructs an Image from its constituents (spec §4.2). For v2/v2b,
// app is the single application payload. For v3a/v3b, use BuildV3 instead.
func Build(variant Variant, startAddr uint32, app []byte, program *dcd.Program, csf *CSF, opts Options) (*Image, error) {
	if variant.isV3() {
		return nil, newErr(KindUnrecognizedVariant, "use BuildV3 for %s", variant)
	}
	img := &Image{
		Variant:   variant,
		StartAddr: startAddr,
		Options:   opts,
		App:       app,
		DCD:       program,
		CSF:       csf,
	}
	return img, nil
}

// BuildV3 constructs a v3a/v3b Image from its per-core constituents (spec
// §3.7, §4.2).
func BuildV3(variant Variant, startAddr uint32, cores []CoreImage, program *dcd.Program, csf *CSF, opts Options) (*Image, error) {
	if !variant.isV3() {
		return nil, newErr(KindUnrecognizedVariant, "use Build for %s", variant)
	}
	hasSCFW := false
	for _, c := range cores {
		if c.Name == "SCFW" {
			hasSCFW = true
		}
	}
	if !hasSCFW {
		return nil, newErr(KindMissingRequiredSegment, "v3 image requires an SCFW core image")
	}
	return &Image{
		Variant:   variant,
		StartAddr: startAddr,
		Options:   opts,
		Cores:     cores,
		DCD:       program,
		CSF:       csf,
	}, nil
}

// Export serializes the image to its byte-exact on-disk form (spec §4.2,
// §8). parse(bytes).export() == bytes for any well-formed image of the same
// variant (spec §8).
func (img *Image) Export() ([]byte, error) {
	if img.Variant.isV3() {
		return img.exportV3()
	}
	return img.exportV2()
}

// Parse recognizes the container variant and decodes bytes into an Image
// (spec §4.2). If hint.Auto is set, Parse scans candidate offsets for a
// self-consistent IVT+BDT; otherwise hint.Variant pins the layout.
func Parse(buf []byte, hint Hint, opts Options) (*Image, error) {
	if hint.Auto {
		return parseAuto(buf, opts)
	}
	if hint.Variant.isV3() {
		return parseV3(buf, hint.Variant, opts)
	}
	return parseV2(buf, hint.Variant, opts)
}

// parseAuto probes the candidate IVT offsets named by spec §4.2 for a
// self-consistent IVT+BDT, trying each known variant at each offset.
func parseAuto(buf []byte, opts Options) (*Image, error) {
	candidates := []Variant{V2, V2B, V3A, V3B}
	for _, off := range scanOffsets {
		if uint64(off)+IvtSizeV2 > uint64(len(buf)) {
			continue
		}
		for _, v := range candidates {
			img, err := tryParseAt(buf, v, off, opts)
			if err == nil {
				return img, nil
			}
		}
	}
	return nil, newErr(KindUnrecognizedVariant, "no self-consistent IVT+BDT found")
}

func tryParseAt(buf []byte, v Variant, ivtOffset uint32, opts Options) (*Image, error) {
	o := opts
	o.IvtOffset = ivtOffset
	if v.isV3() {
		return parseV3(buf, v, o)
	}
	return parseV2(buf, v, o)
}
