// Package pathresolver resolves a filesystem path that may contain "link
// files" -- plain files whose contents are a relative (or absolute) path --
// into a concrete directory. This lets SIT modules live outside the
// repository (spec.md §4.3).
package pathresolver

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrNotFound is returned when a path prefix does not exist on disk.
var ErrNotFound = errors.New("pathresolver: not found")

// maxDepth bounds link-file recursion; link files must not form cycles, and
// bounding the depth is how this implementation detects one (spec.md §4.3).
const maxDepth = 64

// ResolveDir resolves path, following link files, to a concrete directory.
func ResolveDir(path string) (string, error) {
	return resolveDir(path, 0)
}

func resolveDir(path string, depth int) (string, error) {
	if depth > maxDepth {
		return "", errors.New("pathresolver: link file cycle (or excessively deep chain) detected")
	}

	info, err := os.Stat(path)
	if err == nil {
		if info.IsDir() {
			return path, nil
		}
		return resolveLinkFile(path, depth)
	}

	// Any stat failure (missing path, or a non-directory component earlier
	// in path making the whole thing unstatable) falls through to
	// component-wise walking, matching the original's is_dir()/is_file()
	// both-false routing.
	return resolveByPrefix(path, depth)
}

func resolveLinkFile(path string, depth int) (string, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	s := string(contents)
	if runtime.GOOS == "windows" {
		s = strings.ReplaceAll(s, "/", "\\")
	}
	target := strings.TrimSpace(s)
	joined := filepath.Join(filepath.Dir(path), target)
	return resolveDir(joined, depth+1)
}

// resolveByPrefix walks path component by component. It is only reached
// when path as a whole cannot be stat'ed (a missing component, or a link
// file somewhere in the middle of it). Every component except the last is,
// if present, resolved recursively (so a link file or directory anywhere
// along the middle of the path is dereferenced); the final component is
// only checked for existence and is returned as-is, whatever it is -- a
// directory, a plain file, or a link file left un-dereferenced. A link file
// passed as the whole path (e.g. ".../modules/foo") stats successfully and
// is dereferenced by resolveDir before this walk is ever reached.
func resolveByPrefix(path string, depth int) (string, error) {
	clean := filepath.Clean(path)
	parts := strings.Split(clean, string(filepath.Separator))
	if len(parts) > 0 && parts[0] == "" && filepath.IsAbs(clean) {
		parts[0] = string(filepath.Separator)
	}
	if len(parts) == 0 {
		return "", ErrNotFound
	}

	if _, err := os.Lstat(parts[0]); err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", err
	}

	total := len(parts)
	rebuilt, err := resolveDir(parts[0], depth+1)
	if err != nil {
		return "", err
	}

	for i := 1; i < total; i++ {
		rebuilt = filepath.Join(rebuilt, parts[i])
		last := i == total-1

		_, statErr := os.Lstat(rebuilt)
		exists := statErr == nil
		if statErr != nil && !os.IsNotExist(statErr) {
			return "", statErr
		}

		if !exists {
			return "", ErrNotFound
		}
		if !last {
			rebuilt, err = resolveDir(rebuilt, depth+1)
			if err != nil {
				return "", err
			}
		}
	}
	return rebuilt, nil
}
