// Package store implements SIT's record store: an on-disk, content-addressed,
// DAG-structured container of immutable records (spec.md §4.4), the
// container abstraction shared by the repository and legacy per-item
// containers (§4.5), and the dangling-record bookkeeping that drives
// parent-linking.
package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/sit-fyi/sit-sub000/digest"
	"github.com/sit-fyi/sit-sub000/orderedfiles"
	"github.com/sit-fyi/sit-sub000/pathresolver"
	"github.com/sit-fyi/sit-sub000/sitcontext"
)

const (
	recordsDirName   = "records"
	reducersDirName  = "reducers"
	modulesDirName   = "modules"
	itemsDirName     = "items"
	prevFilePrefix   = ".prev"
	scratchDirPrefix = "sit-scratch-"
)

// Repository is the top-level container for all of SIT's artifacts: records,
// configuration, reducers, and modules (spec.md §6 on-disk layout).
type Repository struct {
	path     string
	config   Config
	encoding digest.Encoding

	// checkIntegrity, when true (the default), causes enumeration and
	// lookup to silently drop records whose digest doesn't match their
	// directory name. Disabling it is an explicit opt-out used by repair
	// operations (spec.md §4.4).
	checkIntegrity bool
}

// Init creates a new repository at path with the given config, failing with
// ErrAlreadyExists if one is already there.
func Init(ctx context.Context, path string, cfg Config) (*Repository, error) {
	sitcontext.GetLogger(ctx).WithField("path", path).Debug("initializing repository")
	if _, err := os.Stat(filepath.Join(path, configFileName)); err == nil {
		return nil, ErrAlreadyExists
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, IOError{Op: "creating repository directory", Err: err}
	}
	if err := os.MkdirAll(filepath.Join(path, recordsDirName), 0o755); err != nil {
		return nil, IOError{Op: "creating records directory", Err: err}
	}
	if err := saveConfig(path, cfg); err != nil {
		return nil, err
	}
	return Open(ctx, path)
}

// Open opens an existing repository, validating its config version and
// instantiating the configured hashing algorithm and encoding.
func Open(ctx context.Context, path string) (*Repository, error) {
	sitcontext.GetLogger(ctx).WithField("path", path).Debug("opening repository")
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, err
	}
	enc, err := digest.EncodingByName(cfg.Encoding)
	if err != nil {
		return nil, err
	}
	// Validate the hashing algorithm is instantiable now, so later failures
	// happen at open time rather than deep in a hot path.
	if _, err := cfg.HashingAlgorithm.NewHasher(); err != nil {
		return nil, err
	}
	return &Repository{
		path:           path,
		config:         cfg,
		encoding:       enc,
		checkIntegrity: true,
	}, nil
}

// Path returns the repository's root directory.
func (r *Repository) Path() string { return r.path }

// Config returns the repository's configuration.
func (r *Repository) Config() Config { return r.config }

// SetIntegrityCheck toggles the integrity-check enumeration mode (spec.md
// §4.4). It is on by default; repair/rebuild tooling (out of core scope)
// turns it off to see every record regardless of tampering.
func (r *Repository) SetIntegrityCheck(enabled bool) { r.checkIntegrity = enabled }

func (r *Repository) recordsPath() string { return filepath.Join(r.path, recordsDirName) }

func (r *Repository) modulesPath() string { return filepath.Join(r.path, modulesDirName) }

func (r *Repository) itemsPath() string { return filepath.Join(r.path, itemsDirName) }

// ReducerSourceRoots returns the repository's own reducers/ directory (if
// present) followed by every module's reducers/ directory, in that order --
// the source-file discovery list spec.md §4.7 hands to the scripted reducer
// host.
func (r *Repository) ReducerSourceRoots() ([]string, error) {
	var roots []string
	reducers := filepath.Join(r.path, reducersDirName)
	if info, err := os.Stat(reducers); err == nil && info.IsDir() {
		roots = append(roots, reducers)
	}
	modules, err := r.ModuleIter()
	if err != nil {
		return nil, err
	}
	for _, m := range modules {
		reducers := filepath.Join(m, reducersDirName)
		if info, err := os.Stat(reducers); err == nil && info.IsDir() {
			roots = append(roots, reducers)
		}
	}
	return roots, nil
}

// ModuleIter resolves every entry under modules/ to a concrete directory,
// following link files via pathresolver. Modules contribute additional
// reducers/, cli/, web/ trees (spec.md §6).
func (r *Repository) ModuleIter() ([]string, error) {
	entries, err := os.ReadDir(r.modulesPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, IOError{Op: "reading modules directory", Err: err}
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	dirs := make([]string, 0, len(names))
	for _, name := range names {
		resolved, err := resolveModuleDir(filepath.Join(r.modulesPath(), name))
		if err != nil {
			return nil, err
		}
		dirs = append(dirs, resolved)
	}
	return dirs, nil
}

// ---- record creation ----

// NewRecordFile is a caller-supplied (name, content) pair for NewRecord.
type NewRecordFile struct {
	Name   string
	Reader io.Reader
}

// NewRecord implements the creation protocol of spec.md §4.4: collect
// files, optionally append `.prev/<parent>` edges to every dangling record,
// order and hash the result in a single pass while writing into a scratch
// directory on the same filesystem, then atomically rename the scratch
// directory into place under the encoded digest. Renaming into an existing
// name is treated as ErrAlreadyExists being reconciled: duplicate content
// collapses to the record that's already there.
func (r *Repository) NewRecord(ctx context.Context, files []NewRecordFile, linkParents bool) (Record, error) {
	return r.newRecordIn(ctx, r.recordsPath(), files, linkParents, nil)
}

// newRecordIn implements record creation scoped to an arbitrary records/
// directory, so the legacy per-item container (store/item.go) can share
// this logic with the whole-repository container.
func (r *Repository) newRecordIn(ctx context.Context, recordsPath string, files []NewRecordFile, linkParents bool, scopeRecords func() ([]Record, error)) (Record, error) {
	var ofiles []orderedfiles.File
	for _, f := range files {
		ofiles = append(ofiles, orderedfiles.File{Name: f.Name, Reader: f.Reader})
	}

	if linkParents {
		list := scopeRecords
		if list == nil {
			list = func() ([]Record, error) { return r.danglingRecords(recordsPath) }
		}
		dangling, err := list()
		if err != nil {
			return nil, err
		}
		for _, d := range dangling {
			ofiles = append(ofiles, orderedfiles.File{
				Name:   prevFilePrefix + "/" + d.EncodedHash(),
				Reader: emptyReader{},
			})
		}
	}

	ordered := orderedfiles.New(ofiles)

	scratch, err := os.MkdirTemp(recordsPath, scratchDirPrefix)
	if err != nil {
		return nil, IOError{Op: "creating scratch directory", Err: err}
	}

	hasher, err := r.config.HashingAlgorithm.NewHasher()
	if err != nil {
		return nil, err
	}

	err = ordered.HashAnd(hasher,
		func(name string) (interface{}, error) {
			dest := filepath.Join(scratch, filepath.FromSlash(name))
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return nil, err
			}
			f, err := os.Create(dest)
			if err != nil {
				return nil, err
			}
			return f, nil
		},
		func(token interface{}, chunk []byte) (interface{}, error) {
			f := token.(*os.File)
			if len(chunk) > 0 {
				if _, err := f.Write(chunk); err != nil {
					return nil, err
				}
				return f, nil
			}
			return f, f.Close()
		},
	)
	if err != nil {
		return nil, IOError{Op: "writing record content", Err: err}
	}

	hash := hasher.Finalize()
	encoded := r.encoding.Encode(hash)
	finalPath := filepath.Join(recordsPath, encoded)

	if err := os.Rename(scratch, finalPath); err != nil {
		if os.IsExist(err) {
			// Duplicate content: the record already exists. Clean up the
			// scratch directory; this is a no-op from the caller's point
			// of view, not an error.
			_ = os.RemoveAll(scratch)
			sitcontext.GetLogger(ctx).WithField("record", encoded).Debug("record already exists, reconciled")
			return &onDiskRecord{repo: r, hash: hash, path: finalPath}, nil
		}
		return nil, IOError{Op: "renaming record into place", Err: err}
	}

	sitcontext.GetLogger(ctx).WithField("record", encoded).Debug("created record")
	return &onDiskRecord{repo: r, hash: hash, path: finalPath}, nil
}

type emptyReader struct{}

func (emptyReader) Read([]byte) (int, error) { return 0, io.EOF }

func bytesReader(b []byte) io.Reader { return bytes.NewReader(b) }

// ---- enumeration ----

// RecordIter returns the repository's records grouped into topological
// layers, per spec.md §4.4: layer 0 is every record with no `.prev/`
// entries; layer N+1 is every record whose `.prev/` set is entirely
// contained in the union of layers 0..N. Iteration stops when a layer is
// empty. Integrity-failing records are silently dropped when
// checkIntegrity is enabled (the default).
func (r *Repository) RecordIter() ([][]Record, error) {
	return r.recordLayers(r.recordsPath())
}

func (r *Repository) recordLayers(recordsPath string) ([][]Record, error) {
	entries, err := os.ReadDir(recordsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, IOError{Op: "reading records directory", Err: err}
	}

	all := map[string]*onDiskRecord{}
	parents := map[string][]string{}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		hash, err := r.encoding.Decode(name)
		if err != nil {
			continue // not a valid record directory name; ignore
		}
		path := filepath.Join(recordsPath, name)
		rec := &onDiskRecord{repo: r, hash: hash, path: path}
		if r.checkIntegrity && !r.isIntact(rec) {
			continue
		}
		all[name] = rec
		parents[name] = readPrevEdges(path)
	}

	return layerRecords(all, parents), nil
}

// layerRecords groups records into topological layers by their .prev edges,
// breaking ties within a layer by sorting siblings by encoded digest for
// deterministic ordering (spec.md §4.6/§5).
func layerRecords(all map[string]*onDiskRecord, parents map[string][]string) [][]Record {
	seen := map[string]bool{}
	var layers [][]Record

	for {
		var layerNames []string
		for name, ps := range parents {
			if seen[name] {
				continue
			}
			ready := true
			for _, p := range ps {
				if !seen[p] {
					ready = false
					break
				}
			}
			if ready {
				layerNames = append(layerNames, name)
			}
		}
		if len(layerNames) == 0 {
			break
		}
		sort.Strings(layerNames)
		layer := make([]Record, 0, len(layerNames))
		for _, name := range layerNames {
			layer = append(layer, all[name])
			seen[name] = true
		}
		layers = append(layers, layer)
	}
	return layers
}

func readPrevEdges(recordPath string) []string {
	prevDir := filepath.Join(recordPath, prevFilePrefix)
	entries, err := os.ReadDir(prevDir)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// danglingRecords returns every record in recordsPath that currently has no
// children: the set `.prev/` links get appended to when link_parents is
// true. spec.md §9/§5 documents this computation as racing with concurrent
// record creation by design; see DESIGN.md's Open Question entry.
func (r *Repository) danglingRecords(recordsPath string) ([]Record, error) {
	layers, err := r.recordLayers(recordsPath)
	if err != nil {
		return nil, err
	}
	if len(layers) == 0 {
		return nil, nil
	}
	referenced := map[string]bool{}
	all := map[string]Record{}
	for _, layer := range layers {
		for _, rec := range layer {
			all[rec.EncodedHash()] = rec
		}
	}
	for _, layer := range layers {
		for _, rec := range layer {
			for _, p := range readPrevEdges(recordPathOf(rec)) {
				referenced[p] = true
			}
		}
	}
	var dangling []Record
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !referenced[name] {
			dangling = append(dangling, all[name])
		}
	}
	return dangling, nil
}

func recordPathOf(r Record) string {
	if odr, ok := r.(*onDiskRecord); ok {
		return odr.path
	}
	return ""
}

// RecordByHash looks up a single record by its encoded digest, honoring the
// integrity-check mode.
func (r *Repository) RecordByHash(encoded string) (Record, error) {
	hash, err := r.encoding.Decode(encoded)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(r.recordsPath(), encoded)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, IOError{Op: "stat record", Err: err}
	}
	rec := &onDiskRecord{repo: r, hash: hash, path: path}
	if r.checkIntegrity && !r.isIntact(rec) {
		return nil, ErrNotFound
	}
	return rec, nil
}

// IsIntact recomputes a record's digest from its on-disk files and compares
// it to the directory name, per spec.md §4.4.
func (r *Repository) IsIntact(rec Record) bool {
	odr, ok := rec.(*onDiskRecord)
	if !ok {
		return true // dynamic/filtered views have no stored identity to betray
	}
	return r.isIntact(odr)
}

func (r *Repository) isIntact(rec *onDiskRecord) bool {
	hasher, err := r.config.HashingAlgorithm.NewHasher()
	if err != nil {
		return false
	}
	files, err := rec.Files()
	if err != nil {
		return false
	}
	var ofiles []orderedfiles.File
	for _, f := range files {
		ofiles = append(ofiles, orderedfiles.File{Name: f.Name, Reader: bytesReader(f.Content)})
	}
	if err := orderedfiles.New(ofiles).Hash(hasher); err != nil {
		return false
	}
	return hasher.Finalize().Equal(rec.hash)
}

// Relocate recomputes a record's digest from its current on-disk contents
// and, if it differs from the directory name (e.g. after a `.signature`
// file was added post-hoc by an external signer), renames the directory to
// match -- spec.md §4.4's dynamic-rehash-then-relocate signing flow.
func (r *Repository) Relocate(rec Record) (Record, error) {
	odr, ok := rec.(*onDiskRecord)
	if !ok {
		return nil, fmt.Errorf("store: Relocate requires an on-disk record")
	}
	hasher, err := r.config.HashingAlgorithm.NewHasher()
	if err != nil {
		return nil, err
	}
	files, err := odr.Files()
	if err != nil {
		return nil, err
	}
	var ofiles []orderedfiles.File
	for _, f := range files {
		ofiles = append(ofiles, orderedfiles.File{Name: f.Name, Reader: bytesReader(f.Content)})
	}
	if err := orderedfiles.New(ofiles).Hash(hasher); err != nil {
		return nil, err
	}
	newHash := hasher.Finalize()
	if newHash.Equal(odr.hash) {
		return rec, nil
	}
	newPath := filepath.Join(filepath.Dir(odr.path), r.encoding.Encode(newHash))
	if err := os.Rename(odr.path, newPath); err != nil {
		return nil, IOError{Op: "relocating record after rehash", Err: err}
	}
	return &onDiskRecord{repo: r, hash: newHash, path: newPath}, nil
}

// NewItemID mints a fresh identifier using the repository's configured
// generator (UUIDv4 is the only supported scheme, per
// original_source/sit-core/src/id.rs).
func (r *Repository) NewItemID() string {
	return uuid.New().String()
}

// resolveModuleDir dereferences a modules/<name> entry to its concrete
// directory, following link files via pathresolver (spec.md §4.3/§6).
func resolveModuleDir(path string) (string, error) {
	resolved, err := pathresolver.ResolveDir(path)
	if err != nil {
		return "", fmt.Errorf("store: resolving module directory %s: %w", path, err)
	}
	return resolved, nil
}
