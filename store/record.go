package store

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sit-fyi/sit-sub000/digest"
	"github.com/sit-fyi/sit-sub000/orderedfiles"
)

// Record is the capability every record-like value exposes: an identity
// (raw + encoded digest) and an iterator over its files. spec.md §9 notes
// the source's generic `{hash, encoded_hash, file_iter, id}` capability set;
// Go models that as this interface with three implementations below:
// on-disk (concrete), filtered (lazy subset), and dynamic (rehashed).
type Record interface {
	// Hash returns the record's raw digest.
	Hash() digest.Digest
	// EncodedHash returns the record's directory name / textual identity.
	EncodedHash() string
	// Files iterates the record's files in unspecified order.
	Files() ([]RecordFile, error)
	// File returns the content of a single named file, or ErrNotFound.
	File(name string) ([]byte, error)
	// HasType reports whether the record carries a `.type/<typ>` tag.
	HasType(typ string) bool
}

// RecordFile is one (name, content) pair read from a record.
type RecordFile struct {
	Name    string
	Content []byte
}

// onDiskRecord is a Record backed by a directory under records/<hash>.
type onDiskRecord struct {
	repo *Repository
	hash digest.Digest
	path string
}

func (r *onDiskRecord) Hash() digest.Digest { return r.hash }

func (r *onDiskRecord) EncodedHash() string {
	return r.repo.encoding.Encode(r.hash)
}

func (r *onDiskRecord) Files() ([]RecordFile, error) {
	var files []RecordFile
	err := filepath.Walk(r.path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(r.path, p)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		content, err := readFileEmptyAware(p, info)
		if err != nil {
			return err
		}
		files = append(files, RecordFile{Name: name, Content: content})
		return nil
	})
	if err != nil {
		return nil, IOError{Op: "reading record " + r.EncodedHash(), Err: err}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

func (r *onDiskRecord) File(name string) ([]byte, error) {
	p := filepath.Join(r.path, filepath.FromSlash(name))
	info, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, IOError{Op: "stat " + name, Err: err}
	}
	return readFileEmptyAware(p, info)
}

func (r *onDiskRecord) HasType(typ string) bool {
	_, err := os.Stat(filepath.Join(r.path, ".type", typ))
	return err == nil
}

// readFileEmptyAware returns an empty (non-nil) slice for zero-length
// files without attempting any zero-copy/mmap path, per spec.md §9's
// callout that mapping a zero-length file is undefined on some platforms.
func readFileEmptyAware(path string, info os.FileInfo) ([]byte, error) {
	if info.Size() == 0 {
		return []byte{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, IOError{Op: "reading " + path, Err: err}
	}
	return data, nil
}

// filteredRecord presents a lazily filtered subset of an underlying
// record's files, without rehashing -- used by container views that expose
// only part of a record's content while keeping its original identity.
type filteredRecord struct {
	underlying Record
	keep       func(name string) bool
}

// NewFilteredRecord wraps a record so that Files/File only see names for
// which keep returns true. The identity (Hash/EncodedHash) is unchanged:
// this is a *view*, not a new record.
func NewFilteredRecord(r Record, keep func(name string) bool) Record {
	return &filteredRecord{underlying: r, keep: keep}
}

func (f *filteredRecord) Hash() digest.Digest    { return f.underlying.Hash() }
func (f *filteredRecord) EncodedHash() string    { return f.underlying.EncodedHash() }
func (f *filteredRecord) HasType(typ string) bool {
	if !f.keep(".type/" + typ) {
		return false
	}
	return f.underlying.HasType(typ)
}

func (f *filteredRecord) Files() ([]RecordFile, error) {
	all, err := f.underlying.Files()
	if err != nil {
		return nil, err
	}
	var kept []RecordFile
	for _, file := range all {
		if f.keep(file.Name) {
			kept = append(kept, file)
		}
	}
	return kept, nil
}

func (f *filteredRecord) File(name string) ([]byte, error) {
	if !f.keep(name) {
		return nil, ErrNotFound
	}
	return f.underlying.File(name)
}

// dynamicRecord is a record view over a derived (filtered/mutated) file set
// whose digest is recomputed on demand rather than read from disk -- spec.md
// §4.4's "Dynamic rehashing", used by the (out-of-core) signing flow: the
// signature is computed over the dynamic digest of the record with
// .signature excluded, then the file is added and the record relocated to
// the directory named by the post-signature digest.
type dynamicRecord struct {
	repo  *Repository
	files orderedfiles.OrderedFiles
}

// NewDynamicRecord builds a record view over an explicit, in-memory file
// set, hashed with the repository's configured algorithm.
func NewDynamicRecord(repo *Repository, files orderedfiles.OrderedFiles) (Record, error) {
	return &dynamicRecord{repo: repo, files: files}, nil
}

func (d *dynamicRecord) Hash() digest.Digest {
	h, err := d.repo.config.HashingAlgorithm.NewHasher()
	if err != nil {
		// The algorithm was already validated at repository-open time.
		panic(err)
	}
	_ = d.files.Hash(h)
	return h.Finalize()
}

func (d *dynamicRecord) EncodedHash() string {
	return d.repo.encoding.Encode(d.Hash())
}

func (d *dynamicRecord) Files() ([]RecordFile, error) {
	var out []RecordFile
	for _, f := range d.files.Files() {
		content, err := io.ReadAll(f.Reader)
		if err != nil {
			return nil, IOError{Op: "reading dynamic record file " + f.Name, Err: err}
		}
		out = append(out, RecordFile{Name: f.Name, Content: content})
	}
	return out, nil
}

func (d *dynamicRecord) File(name string) ([]byte, error) {
	files, err := d.Files()
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if f.Name == name {
			return f.Content, nil
		}
	}
	return nil, ErrNotFound
}

func (d *dynamicRecord) HasType(typ string) bool {
	_, err := d.File(".type/" + typ)
	return err == nil
}

// WithAddedFile returns a new dynamic record view with name/content added
// (or replacing an existing file of that name).
func WithAddedFile(r Record, repo *Repository, name string, content []byte) (Record, error) {
	var existing orderedfiles.OrderedFiles
	if dr, ok := r.(*dynamicRecord); ok {
		existing = dr.files
	} else {
		files, err := r.Files()
		if err != nil {
			return nil, err
		}
		var ofiles []orderedfiles.File
		for _, f := range files {
			ofiles = append(ofiles, orderedfiles.File{Name: f.Name, Reader: strings.NewReader(string(f.Content))})
		}
		existing = orderedfiles.New(ofiles)
	}
	added := existing.Without(name).Add(orderedfiles.New([]orderedfiles.File{
		{Name: name, Reader: strings.NewReader(string(content))},
	}))
	return &dynamicRecord{repo: repo, files: added}, nil
}

// WithoutFile returns a new dynamic record view with name removed.
func WithoutFile(r Record, repo *Repository, name string) (Record, error) {
	files, err := r.Files()
	if err != nil {
		return nil, err
	}
	var ofiles []orderedfiles.File
	for _, f := range files {
		if f.Name == name {
			continue
		}
		ofiles = append(ofiles, orderedfiles.File{Name: f.Name, Reader: strings.NewReader(string(f.Content))})
	}
	return &dynamicRecord{repo: repo, files: orderedfiles.New(ofiles)}, nil
}
