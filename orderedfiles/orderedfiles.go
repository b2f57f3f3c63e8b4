// Package orderedfiles implements SIT's canonicalizing file container: it
// sorts a set of named byte streams lexicographically by normalized name
// and streams them through a hasher (and optionally a side-effect sink) in
// that deterministic order. This is the basis of record content-addressing
// (spec.md §4.2).
package orderedfiles

import (
	"io"
	"sort"
	"strings"

	"github.com/sit-fyi/sit-sub000/digest"
)

// File is a named byte stream. Names are forward-slash-separated relative
// paths; backslashes are rewritten to forward slashes before hashing so
// records built on different operating systems with identical semantic
// contents hash identically.
type File struct {
	Name   string
	Reader io.Reader
}

// normalizedName returns Name with backslashes rewritten to forward
// slashes, per spec.md §4.2.
func (f File) normalizedName() string {
	return strings.ReplaceAll(f.Name, "\\", "/")
}

// OrderedFiles is a collection of files sorted by normalized name. The only
// ways to construct one (New, Add, Without) all preserve the sort, so a
// caller can never observe an unordered view.
type OrderedFiles struct {
	files []File
}

// New sorts files lexicographically by normalized name. Duplicate names are
// NOT deduplicated -- the caller is responsible for not producing a file
// set with duplicate names, since which duplicate wins is unspecified.
func New(files []File) OrderedFiles {
	sorted := make([]File, len(files))
	copy(sorted, files)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].normalizedName() < sorted[j].normalizedName()
	})
	return OrderedFiles{files: sorted}
}

// Files returns the files in canonical order. The returned slice must not
// be mutated by the caller.
func (o OrderedFiles) Files() []File {
	return o.files
}

// Len returns the number of files.
func (o OrderedFiles) Len() int {
	return len(o.files)
}

// ChunkFunc is invoked once a file has begun hashing (the return value of
// FileFunc); the token it returns is threaded through successive calls for
// that file's chunks, enabling a single pass that both hashes and persists
// a record's content. A final call with an empty chunk marks the end of
// the file's data (mirroring the original implementation's trailing
// zero-length read).
type ChunkFunc func(token interface{}, chunk []byte) (interface{}, error)

// FileFunc is invoked once per file, before any of its chunks are read,
// and returns the token passed to the first ChunkFunc call for that file.
type FileFunc func(name string) (interface{}, error)

const chunkSize = 4096

// HashAnd streams the ordered files through hasher while also invoking
// onFile/onChunk, allowing a single read pass to both hash and persist a
// record (spec.md §4.2's hash_and).
func (o OrderedFiles) HashAnd(hasher digest.Hasher, onFile FileFunc, onChunk ChunkFunc) error {
	buf := make([]byte, chunkSize)
	for _, f := range o.files {
		name := f.normalizedName()
		hasher.Update([]byte(name))

		token, err := onFile(name)
		if err != nil {
			return err
		}

		for {
			n, readErr := f.Reader.Read(buf)
			if n > 0 {
				hasher.Update(buf[:n])
				token, err = onChunk(token, buf[:n])
				if err != nil {
					return err
				}
			}
			if readErr == io.EOF {
				// Mirror the original's trailing empty-chunk call so
				// implementations of onChunk can detect end-of-file
				// without a sentinel return value.
				if _, err := onChunk(token, nil); err != nil {
					return err
				}
				break
			}
			if readErr != nil {
				return readErr
			}
			if n == 0 {
				if _, err := onChunk(token, nil); err != nil {
					return err
				}
				break
			}
		}
	}
	return nil
}

// Hash streams the ordered files through hasher without any side effects.
func (o OrderedFiles) Hash(hasher digest.Hasher) error {
	return o.HashAnd(hasher, func(string) (interface{}, error) {
		return nil, nil
	}, func(token interface{}, chunk []byte) (interface{}, error) {
		return token, nil
	})
}

// Add merges two ordered views by name, returning a new ordered view. This
// is the union operation from spec.md §4.2's algebra.
func (o OrderedFiles) Add(other OrderedFiles) OrderedFiles {
	merged := make([]File, 0, len(o.files)+len(other.files))
	merged = append(merged, o.files...)
	merged = append(merged, other.files...)
	return New(merged)
}

// Without removes every file with the given name, returning a new ordered
// view. This is the subtraction operation from spec.md §4.2's algebra.
func (o OrderedFiles) Without(name string) OrderedFiles {
	remaining := make([]File, 0, len(o.files))
	for _, f := range o.files {
		if f.normalizedName() != name {
			remaining = append(remaining, f)
		}
	}
	return OrderedFiles{files: remaining}
}
