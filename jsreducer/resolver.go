package jsreducer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// moduleResolver implements the sandboxed require(id) semantics of
// spec.md §4.7: a script may only require() files that live under the
// directory it was itself discovered in (its own reducers/ root, or a
// module's reducers/ root), never anything outside that tree and never by
// absolute path. Grounded on
// original_source/sit-core/src/reducers/duktape.rs's mod_search, which
// tracks the same kind of allow-list (there called `Duktape.paths`) and
// resolves relative to the file currently executing.
type moduleResolver struct {
	// allowedRoots is the set of directories reducer scripts were
	// discovered under; require() targets must resolve inside whichever
	// root contains the currently executing file.
	allowedRoots []string
	// stack is the currently-executing file, one entry per nested
	// require() call; require() resolves relative to its top.
	stack []string
}

func newModuleResolver() *moduleResolver {
	return &moduleResolver{}
}

func (m *moduleResolver) addRoot(root string) {
	for _, r := range m.allowedRoots {
		if r == root {
			return
		}
	}
	m.allowedRoots = append(m.allowedRoots, root)
}

func (m *moduleResolver) push(file string) { m.stack = append(m.stack, file) }

func (m *moduleResolver) pop() { m.stack = m.stack[:len(m.stack)-1] }

func (m *moduleResolver) currentFile() string {
	if len(m.stack) == 0 {
		return ""
	}
	return m.stack[len(m.stack)-1]
}

// resolve maps a require(id) call to the absolute path of the file it
// names, enforcing the allow-list. It never dereferences pathresolver link
// files: scripted reducers require() literal sibling files, not module
// trees.
func (m *moduleResolver) resolve(id string) (string, error) {
	current := m.currentFile()
	if current == "" {
		return "", fmt.Errorf("require called with no executing script on the stack")
	}

	var root string
	for _, r := range m.allowedRoots {
		if strings.HasPrefix(current, r+string(filepath.Separator)) || current == r {
			root = r
			break
		}
	}
	if root == "" {
		return "", fmt.Errorf("matching path not found for %s", current)
	}

	if filepath.IsAbs(id) {
		return "", fmt.Errorf("cannot resolve module id: %s", id)
	}

	target := filepath.Clean(filepath.Join(filepath.Dir(current), filepath.FromSlash(id)))
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("cannot resolve module id: %s", id)
	}

	info, err := os.Stat(target)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("module not found: %s", id)
	}
	return target, nil
}
