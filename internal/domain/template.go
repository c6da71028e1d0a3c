package domain

import (
	"sort"
	"strings"
)

// Substitute replaces each {{name}} in script with values[name].
// Placeholders without a value are left as they are. Keys are applied in
// sorted order; a value that itself contains {{...}} may be expanded by a
// later key.
func Substitute(script string, values map[string]string) string {
	if len(values) == 0 {
		return script
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		script = strings.ReplaceAll(script, "{{"+k+"}}", values[k])
	}
	return script
}
