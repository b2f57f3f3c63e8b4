// Package queryconfig enumerates SIT's named filter/query expressions: a
// per-repository sidecar file (e.g. `.items/queries/<name>`, a plain text
// file whose content is the expression) takes priority over a name->
// expression map loaded from a YAML config file. Grounded on
// original_source/sit-core/src/cfg.rs's JMESPathConfig and the
// get_named_expression lookup used by sit/src/command_items.rs,
// command_records.rs and command_reduce.rs. The core itself never compiles
// or evaluates an expression (that's the out-of-scope external query
// layer, spec.md §1); this package only locates the expression text.
package queryconfig

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v2"
)

// Set is a named collection of filter and query expressions, the Go
// equivalent of sit-core's JMESPathConfig, loaded from a YAML sidecar file
// rather than the repository's spec-mandated JSON config.json.
type Set struct {
	Filters map[string]string `yaml:"filters"`
	Queries map[string]string `yaml:"queries"`
}

// IsEmpty reports whether neither Filters nor Queries has any entries.
func (s Set) IsEmpty() bool {
	return len(s.Filters) == 0 && len(s.Queries) == 0
}

// Load reads a Set from a YAML file at path. A missing file is not an
// error: it returns an empty Set, matching JMESPathConfig's #[derive(Default)].
func Load(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Set{}, nil
		}
		return Set{}, err
	}
	var s Set
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Set{}, err
	}
	return s, nil
}

// Resolve looks up a named expression the way get_named_expression does:
// first as a sidecar file repoPath/sidecarDir/name (its content, trimmed, is
// the expression), then by name in fallback. The second return value is
// false if name was found in neither place.
func Resolve(repoPath, sidecarDir, name string, fallback map[string]string) (string, bool) {
	sidecarPath := filepath.Join(repoPath, filepath.FromSlash(sidecarDir), name)
	if data, err := os.ReadFile(sidecarPath); err == nil {
		return strings.TrimSpace(string(data)), true
	}
	if expr, ok := fallback[name]; ok {
		return expr, true
	}
	return "", false
}

// List returns the names available under repoPath/sidecarDir, sorted, for
// callers (e.g. a `--help`-style listing) that want to enumerate what named
// expressions exist without resolving any of them.
func List(repoPath, sidecarDir string) ([]string, error) {
	dir := filepath.Join(repoPath, filepath.FromSlash(sidecarDir))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
