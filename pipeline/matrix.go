package pipeline

import (
	"fmt"
	"strings"
)

// Entry is one expanded matrix combination.
type Entry struct {
	Language string
	Version  string
	Env      map[string]string
}

// Matrix expands the pipeline's version list into matrix entries, in file
// order. Each entry carries the global env lines plus the runner's own
// PVCI_LANGUAGE and PVCI_VERSION markers, which always win over file env.
func (p *Pipeline) Matrix() []Entry {
	entries := make([]Entry, 0, len(p.Versions))
	for _, version := range p.Versions {
		env := make(map[string]string, len(p.Env.Global)+2)
		for _, line := range p.Env.Global {
			if key, value, ok := parseEnvLine(line); ok {
				env[key] = value
			}
		}
		env["PVCI_LANGUAGE"] = p.Language
		env["PVCI_VERSION"] = version
		entries = append(entries, Entry{
			Language: p.Language,
			Version:  version,
			Env:      env,
		})
	}
	return entries
}

// Environ merges the entry's env on top of a base environment. Base entries
// keep their position; entry values override or append.
func (e Entry) Environ(base []string) []string {
	environ := make([]string, 0, len(base)+len(e.Env))
	seen := make(map[string]bool, len(base))
	for _, line := range base {
		key, _, ok := parseEnvLine(line)
		if ok {
			if value, overridden := e.Env[key]; overridden {
				line = key + "=" + value
			}
			seen[key] = true
		}
		environ = append(environ, line)
	}
	for key, value := range e.Env {
		if !seen[key] {
			environ = append(environ, key+"="+value)
		}
	}
	return environ
}

// Name identifies the entry in logs and reports, e.g. "python 3.6".
func (e Entry) Name() string {
	return fmt.Sprintf("%s %s", e.Language, e.Version)
}

func parseEnvLine(line string) (key, value string, ok bool) {
	key, value, ok = strings.Cut(line, "=")
	if !ok || strings.TrimSpace(key) == "" {
		return "", "", false
	}
	return strings.TrimSpace(key), value, true
}
