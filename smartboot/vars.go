package smartboot

import (
	"regexp"
)

var varRef = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}`)

// Substitute replaces every {{ name }} reference in text with vars[name],
// failing closed on any reference vars doesn't cover (spec §4.4).
func Substitute(text string, vars map[string]string) (string, error) {
	var firstErr error
	out := varRef.ReplaceAllStringFunc(text, func(m string) string {
		name := varRef.FindStringSubmatch(m)[1]
		v, ok := vars[name]
		if !ok {
			if firstErr == nil {
				firstErr = newErr(KindUnresolvedVariable, "%q", name)
			}
			return m
		}
		return v
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}
