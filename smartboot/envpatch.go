package smartboot

import (
	"bytes"
	"os"
	"strings"

	mmap "github.com/edsrzf/mmap-go"
)

// PatchMode selects how EVAL entries are merged into an embedded
// environment-variable region (spec §4.4).
type PatchMode string

const (
	PatchDisabled PatchMode = "disabled"
	PatchMerge    PatchMode = "merge"
	PatchReplace  PatchMode = "replace"
)

// PatchSpec is the environment-patching sub-spec an IMX/URI data segment
// may carry (spec §4.4): it mutates the environment-variable region
// embedded in the segment's bytes, starting at the first occurrence of
// Mark.
type PatchSpec struct {
	Mode PatchMode `yaml:"MODE"`
	Mark string    `yaml:"MARK"`
	Eval string    `yaml:"EVAL"`
}

func (p PatchSpec) mark() string {
	if p.Mark == "" {
		return "bootdelay="
	}
	return p.Mark
}

// parseEval splits EVAL's "k = v" lines into an ordered key/value list.
func parseEval(eval string) [][2]string {
	var out [][2]string
	for _, line := range strings.Split(eval, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		kv := strings.SplitN(line, "=", 2)
		if len(kv) != 2 {
			continue
		}
		out = append(out, [2]string{strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1])})
	}
	return out
}

// parseEnvRegion splits a NUL- or newline-delimited "k=v" block, the same
// layout U-Boot stores its environment in.
func parseEnvRegion(region string) [][2]string {
	var out [][2]string
	for _, line := range strings.FieldsFunc(region, func(r rune) bool { return r == 0 || r == '\n' }) {
		kv := strings.SplitN(line, "=", 2)
		if len(kv) != 2 {
			continue
		}
		out = append(out, [2]string{kv[0], kv[1]})
	}
	return out
}

func mergeEnv(existing, overrides [][2]string) [][2]string {
	out := append([][2]string(nil), existing...)
	for _, ov := range overrides {
		found := false
		for i := range out {
			if out[i][0] == ov[0] {
				out[i][1] = ov[1]
				found = true
				break
			}
		}
		if !found {
			out = append(out, ov)
		}
	}
	return out
}

func renderEnv(entries [][2]string) string {
	var b strings.Builder
	for _, kv := range entries {
		b.WriteString(kv[0])
		b.WriteByte('=')
		b.WriteString(kv[1])
		b.WriteByte(0)
	}
	return b.String()
}

// ApplyEnvPatch rewrites the environment region inside buf starting at the
// first occurrence of spec.Mark, in place (spec §4.4). merge keeps
// existing "k=v" entries and only overrides/appends the ones EVAL names;
// replace discards the region's existing entries outright. Neither mode
// grows buf — like the teacher's HexPatch, the patched region never
// exceeds the space the original bytes reserved for it.
func ApplyEnvPatch(buf []byte, spec PatchSpec) error {
	if spec.Mode == "" || spec.Mode == PatchDisabled {
		return nil
	}
	mark := []byte(spec.mark())
	idx := bytes.Index(buf, mark)
	if idx < 0 {
		return newErr(KindMalformedRecipe, "env patch mark %q not found", spec.mark())
	}
	regionEnd := idx
	for regionEnd < len(buf) && buf[regionEnd] != 0xFF {
		regionEnd++
	}
	region := buf[idx:regionEnd]

	overrides := parseEval(spec.Eval)
	var rendered string
	switch spec.Mode {
	case PatchReplace:
		rendered = renderEnv(overrides)
	case PatchMerge:
		rendered = renderEnv(mergeEnv(parseEnvRegion(string(region)), overrides))
	default:
		return newErr(KindMalformedRecipe, "unknown patch mode %q", spec.Mode)
	}
	if len(rendered) > len(region) {
		return newErr(KindMalformedRecipe, "env patch: rendered %d bytes exceeds region capacity %d", len(rendered), len(region))
	}
	copy(region, rendered)
	for i := len(rendered); i < len(region); i++ {
		region[i] = 0
	}
	return nil
}

// ApplyEnvPatchFile mmaps path read/write and applies spec to it in place,
// the same mmap-backed patch technique as the teacher's patch.go HexPatch.
func ApplyEnvPatchFile(path string, spec PatchSpec) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	m, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		return err
	}
	defer m.Unmap()

	if err := ApplyEnvPatch(m, spec); err != nil {
		return err
	}
	return m.Flush()
}
