package smartboot

import "gopkg.in/yaml.v3"

// Recipe is the parsed form of a ".smx"/".yml" Smart-Boot document (spec
// §3.9, §4.4): a HEAD describing the target, VARS available for
// {{ name }} substitution, DATA describing the segments the BODY refers
// to by key, and a BODY holding the instruction program text.
type Recipe struct {
	Head Head                   `yaml:"HEAD"`
	Vars map[string]string      `yaml:"VARS"`
	Data map[string]DataSegment `yaml:"DATA"`
	Body Body                   `yaml:"BODY"`
}

// Head names the recipe and its target chip (spec §4.4).
type Head struct {
	Name string `yaml:"NAME"`
	Desc string `yaml:"DESC"`
	Chip string `yaml:"CHIP"`
}

// Body carries the instruction program as line-oriented text, same as the
// DCD textual form (spec §4.4).
type Body struct {
	Cmds string `yaml:"CMDS"`
}

// ParseRecipe decodes a recipe document and resolves {{ var }} references
// in both DATA values and the CMDS text against VARS (spec §4.4).
func ParseRecipe(text string) (Recipe, error) {
	var r Recipe
	if err := yaml.Unmarshal([]byte(text), &r); err != nil {
		return Recipe{}, newErr(KindMalformedRecipe, "%v", err)
	}
	for k, seg := range r.Data {
		if err := seg.substituteStrings(r.Vars); err != nil {
			return Recipe{}, err
		}
		r.Data[k] = seg
	}
	resolvedCmds, err := Substitute(r.Body.Cmds, r.Vars)
	if err != nil {
		return Recipe{}, err
	}
	r.Body.Cmds = resolvedCmds
	return r, nil
}
