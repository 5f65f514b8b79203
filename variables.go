package pvinstall

import (
	"bytes"
	"path/filepath"
	"strings"
	"text/template"
)

type StringMap map[string]string

// ExpandVariables takes a string with template variables like {{.var}} and
// expands them with the given map. Invalid templates and lookup errors leave
// the string unchanged, so a stray brace in a message can never abort an
// install.
func ExpandVariables(str string, variables StringMap) string {
	functions := template.FuncMap{
		"upper":   strings.ToUpper,
		"lower":   strings.ToLower,
		"trim":    func(input string) string { return strings.Trim(input, " \r\n\t") },
		"base":    filepath.Base,
		"native":  filepath.FromSlash,
		"replace": func(from, to, input string) string { return strings.ReplaceAll(input, from, to) },
	}
	templ, err := template.New("").Funcs(functions).Parse(str)
	if err != nil {
		return str
	}
	var buf bytes.Buffer
	if err := templ.Execute(&buf, variables); err != nil {
		return str
	}
	return buf.String()
}

// MergeVariables combines several variable maps into a single one. Duplicate
// keys are overridden by the value in the last map which has the key.
func MergeVariables(varMaps ...StringMap) StringMap {
	merged := make(StringMap)
	for _, vars := range varMaps {
		for k, v := range vars {
			merged[k] = v
		}
	}
	return merged
}
