// Package discovery finds test binaries to run.
package discovery

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultPatterns matches gtest binaries built with the usual naming.
var DefaultPatterns = []string{"*_test"}

// ErrBadPattern is returned for a malformed glob.
var ErrBadPattern = errors.New("bad pattern")

// Find returns the executable regular files below dir that match any of the
// patterns. Patterns use doublestar syntax and are relative to dir, so
// "**/*_test" descends into subdirectories. Paths are slash separated,
// relative to dir, sorted and unique.
func Find(dir string, patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	fsys := os.DirFS(dir)
	seen := make(map[string]bool)
	var found []string

	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("%w: %q", ErrBadPattern, pattern)
		}
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, fmt.Errorf("matching %q: %w", pattern, err)
		}
		for _, m := range matches {
			if seen[m] {
				continue
			}
			ok, err := isExecutable(fsys, m)
			if err != nil {
				return nil, err
			}
			if ok {
				seen[m] = true
				found = append(found, m)
			}
		}
	}

	slices.Sort(found)
	return found, nil
}

// Resolve checks binaries given explicitly. Each must be an executable file
// inside dir; paths are returned relative to dir.
func Resolve(dir string, binaries []string) ([]string, error) {
	fsys := os.DirFS(dir)
	out := make([]string, 0, len(binaries))
	for _, b := range binaries {
		rel := filepath.ToSlash(filepath.Clean(b))
		if !fs.ValidPath(rel) {
			return nil, fmt.Errorf("%s: must be a relative path inside %s", b, dir)
		}
		ok, err := isExecutable(fsys, rel)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b, err)
		}
		if !ok {
			return nil, fmt.Errorf("%s: not an executable file", b)
		}
		if !slices.Contains(out, rel) {
			out = append(out, rel)
		}
	}
	return out, nil
}

func isExecutable(fsys fs.FS, name string) (bool, error) {
	info, err := fs.Stat(fsys, name)
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0, nil
}
