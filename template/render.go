package template

import "strings"

// Render substitutes {placeholder} tokens in the template body with the
// supplied values. Unknown placeholders are left untouched so the
// reviewer sees what still needs filling in.
func Render(t Template, vars map[string]string) string {
	if len(vars) == 0 {
		return t.Body
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(t.Body)
}
