package smartboot

import (
	"encoding/hex"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/molejar/goimx"
	"github.com/molejar/goimx/dcd"
)

// SegmentType is the closed set of DATA segment kinds (spec §4.4).
type SegmentType string

const (
	SegDCD SegmentType = "DCD"
	SegFDT SegmentType = "FDT" // reserved; resolved like BIN, no FDT-specific handling
	SegIMX SegmentType = "IMX"
	SegURI SegmentType = "URI"
	SegUEI SegmentType = "UEI"
	SegBIN SegmentType = "BIN"
)

// IMXCompose builds a v2/v2b IMX image from other named DATA segments
// instead of loading a finished .imx file (spec §4.4: "IMX with DATA
// supports a sub-mapping {STADDR, OFFSET, DCDSEG, APPSEG}").
type IMXCompose struct {
	StartAddr string `yaml:"STADDR"`
	Offset    string `yaml:"OFFSET"`
	DCDSeg    string `yaml:"DCDSEG"`
	AppSeg    string `yaml:"APPSEG"`
}

// DataSegment is one entry of the recipe's DATA map (spec §4.4).
type DataSegment struct {
	Type    SegmentType
	Desc    string
	Addr    string
	File    string
	Inline  string
	Compose *IMXCompose
	Patch   *PatchSpec
}

// UnmarshalYAML decodes a DATA entry, resolving DATA's dual role: a plain
// scalar (inline blob data) for most segment types, or a mapping (the IMX
// sub-composition) when TYPE is IMX and no finished image is supplied.
func (d *DataSegment) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Type  SegmentType `yaml:"TYPE"`
		Desc  string      `yaml:"DESC"`
		Addr  string      `yaml:"ADDR"`
		File  string      `yaml:"FILE"`
		Data  yaml.Node   `yaml:"DATA"`
		Patch *PatchSpec  `yaml:"PATCH"`
	}
	if err := node.Decode(&raw); err != nil {
		return newErr(KindMalformedRecipe, "%v", err)
	}

	d.Type = raw.Type
	if d.Type == "" {
		d.Type = SegBIN
	}
	d.Desc = raw.Desc
	d.Addr = raw.Addr
	d.File = raw.File
	d.Patch = raw.Patch

	switch raw.Data.Kind {
	case 0:
		// no DATA key present; FILE must supply the bytes
	case yaml.MappingNode:
		var compose IMXCompose
		if err := raw.Data.Decode(&compose); err != nil {
			return newErr(KindMalformedRecipe, "DATA sub-mapping: %v", err)
		}
		d.Compose = &compose
	default:
		var s string
		if err := raw.Data.Decode(&s); err != nil {
			return newErr(KindMalformedRecipe, "DATA: %v", err)
		}
		d.Inline = s
	}

	if d.File == "" && d.Inline == "" && d.Compose == nil {
		return newErr(KindMalformedRecipe, "segment %q: DATA or FILE required", d.Desc)
	}
	return nil
}

// substituteStrings runs Substitute over every {{ name }}-bearing field of
// a segment (spec §4.4: "substitution is performed on string values in
// DATA ... before interpretation").
func (d *DataSegment) substituteStrings(vars map[string]string) error {
	fields := []*string{&d.Addr, &d.File, &d.Inline}
	if d.Compose != nil {
		fields = append(fields, &d.Compose.StartAddr, &d.Compose.Offset, &d.Compose.DCDSeg, &d.Compose.AppSeg)
	}
	if d.Patch != nil {
		fields = append(fields, &d.Patch.Mark, &d.Patch.Eval)
	}
	for _, f := range fields {
		resolved, err := Substitute(*f, vars)
		if err != nil {
			return err
		}
		*f = resolved
	}
	return nil
}

// Resolver materializes DATA segments into ready-to-transfer blobs and, for
// IMX segments, the decoded/composed Image behind them — resolving
// DCDSEG/APPSEG references and applying environment patches lazily, once
// per segment (spec §4.4).
type Resolver struct {
	Segments map[string]DataSegment
	// ReadFile loads a segment's FILE path. Loading files from disk is an
	// external collaborator's concern (spec §3.9 ambient stack); the
	// orchestrator core only decides which files to read, not how.
	ReadFile func(path string) ([]byte, error)

	blobs  map[string][]byte
	images map[string]*goimx.Image
}

// NewResolver constructs a Resolver over segs, using readFile to load any
// segment's FILE path.
func NewResolver(segs map[string]DataSegment, readFile func(string) ([]byte, error)) *Resolver {
	return &Resolver{
		Segments: segs,
		ReadFile: readFile,
		blobs:    make(map[string][]byte),
		images:   make(map[string]*goimx.Image),
	}
}

func parseHexUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	return uint32(v), err
}

// Addr returns segment name's declared ADDR, for CMDS instructions that
// omit an explicit address (spec §4.4: "if omitted, the referenced data
// segment's ADDR is used").
func (r *Resolver) Addr(name string) (uint32, error) {
	s, ok := r.Segments[name]
	if !ok {
		return 0, newErr(KindUnknownSegmentRef, "unknown data segment %q", name)
	}
	if s.Addr == "" {
		return 0, newErr(KindMalformedRecipe, "segment %q has no ADDR and command gave none", name)
	}
	v, err := parseHexUint32(s.Addr)
	if err != nil {
		return 0, newErr(KindMalformedRecipe, "segment %q: bad ADDR %q: %v", name, s.Addr, err)
	}
	return v, nil
}

// Blob resolves name to its raw transferable bytes, loading, composing and
// patching it on first reference and caching the result thereafter.
func (r *Resolver) Blob(name string) ([]byte, error) {
	if b, ok := r.blobs[name]; ok {
		return b, nil
	}
	s, ok := r.Segments[name]
	if !ok {
		return nil, newErr(KindUnknownSegmentRef, "unknown data segment %q", name)
	}

	var buf []byte
	switch {
	case s.Compose != nil:
		img, err := r.buildIMX(name, s)
		if err != nil {
			return nil, err
		}
		exported, err := img.Export()
		if err != nil {
			return nil, newErr(KindMalformedRecipe, "segment %q: %v", name, err)
		}
		r.images[name] = img
		buf = exported
	case s.File != "":
		raw, err := r.ReadFile(s.File)
		if err != nil {
			return nil, newErr(KindMissingData, "segment %q: %v", name, err)
		}
		dec, err := goimx.Decompress(raw)
		if err != nil {
			return nil, newErr(KindMalformedRecipe, "segment %q: %v", name, err)
		}
		buf = dec
	default:
		dec, err := hex.DecodeString(strings.TrimSpace(s.Inline))
		if err != nil {
			return nil, newErr(KindMalformedRecipe, "segment %q: inline DATA: %v", name, err)
		}
		buf = dec
	}

	if (s.Type == SegIMX || s.Type == SegURI) && s.Patch != nil {
		buf = append([]byte(nil), buf...)
		if err := ApplyEnvPatch(buf, *s.Patch); err != nil {
			return nil, newErr(KindMalformedRecipe, "segment %q: %v", name, err)
		}
	}
	if s.Type == SegIMX && s.Compose == nil {
		if img, err := goimx.Parse(buf, goimx.AutoHint(), goimx.Options{}); err == nil {
			r.images[name] = img
		}
	}

	r.blobs[name] = buf
	return buf, nil
}

func (r *Resolver) buildIMX(name string, s DataSegment) (*goimx.Image, error) {
	c := s.Compose
	startAddr, err := parseHexUint32(c.StartAddr)
	if err != nil {
		return nil, newErr(KindMalformedRecipe, "segment %q: bad STADDR %q: %v", name, c.StartAddr, err)
	}

	var opts goimx.Options
	if c.Offset != "" {
		off, err := parseHexUint32(c.Offset)
		if err != nil {
			return nil, newErr(KindMalformedRecipe, "segment %q: bad OFFSET %q: %v", name, c.Offset, err)
		}
		opts.AppAlign = off
	}

	var program *dcd.Program
	if c.DCDSeg != "" {
		dcdBlob, err := r.Blob(c.DCDSeg)
		if err != nil {
			return nil, err
		}
		prog, err := dcd.ParseBinary(dcdBlob)
		if err != nil {
			return nil, newErr(KindMalformedRecipe, "segment %q: DCDSEG %q: %v", name, c.DCDSeg, err)
		}
		program = &prog
	}

	if c.AppSeg == "" {
		return nil, newErr(KindMalformedRecipe, "segment %q: IMX composition needs APPSEG", name)
	}
	appBlob, err := r.Blob(c.AppSeg)
	if err != nil {
		return nil, err
	}

	img, err := goimx.Build(goimx.V2, startAddr, appBlob, program, nil, opts)
	if err != nil {
		return nil, newErr(KindMalformedRecipe, "segment %q: %v", name, err)
	}
	return img, nil
}

// ImageSelf returns the IVT self pointer of a resolved IMX segment, for
// JRUN <imx_data_name> (spec §4.4).
func (r *Resolver) ImageSelf(name string) (uint32, error) {
	if _, err := r.Blob(name); err != nil {
		return 0, err
	}
	img, ok := r.images[name]
	if !ok {
		return 0, newErr(KindMalformedRecipe, "segment %q is not an IMX image", name)
	}
	return img.IVT.Self, nil
}
