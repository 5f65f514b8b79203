package pvinstall

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	rice "github.com/GeertJohan/go.rice"
)

var (
	resourceBox  *rice.Box
	boxOpenOnce  sync.Once
	boxOpenError error
)

// openBox opens the embedded resource box. For go.rice's 'append' mode to
// work, the call to FindBox() has to be with a literal string parameter.
func openBox() error {
	boxOpenOnce.Do(func() {
		resourceBox, boxOpenError = rice.FindBox("resources")
	})
	return boxOpenError
}

// GetResource returns the contents of a single named file from the resource
// box.
func GetResource(name string) (string, error) {
	if err := openBox(); err != nil {
		return "", err
	}
	text, err := resourceBox.String(name)
	if err != nil {
		return "", fmt.Errorf("resource %q not found", name)
	}
	return text, nil
}

// MustGetResource is GetResource for resources that are compiled in and must
// exist, like the default config.
func MustGetResource(name string) string {
	text, err := GetResource(name)
	if err != nil {
		panic(err)
	}
	return text
}

// GetResourceFiltered walks a directory inside the resource box and returns
// the contents of all files whose path matches the given filter, keyed by
// path.
func GetResourceFiltered(dir string, filter *regexp.Regexp) (map[string]string, error) {
	if err := openBox(); err != nil {
		return nil, err
	}
	contents := make(map[string]string)
	err := resourceBox.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !filter.MatchString(filepath.ToSlash(path)) {
			return nil
		}
		text, err := resourceBox.String(path)
		if err != nil {
			return err
		}
		contents[filepath.ToSlash(path)] = text
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("resource dir %q not walkable: %w", dir, err)
	}
	return contents, nil
}

// MustGetResourceFiltered panics when the box itself is broken, but an empty
// result is fine.
func MustGetResourceFiltered(dir string, filter *regexp.Regexp) map[string]string {
	contents, err := GetResourceFiltered(dir, filter)
	if err != nil {
		panic(err)
	}
	return contents
}
