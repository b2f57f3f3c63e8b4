package store

import "context"

// Container is the capability shared by the whole-repository record store
// and the legacy per-item container (spec.md §4.5): create records, iterate
// them in topological layers, and reduce over them with a reducer. Callers
// that only need to walk one item's history (the pre-DAG, single-chain
// model) and callers walking the full repository DAG go through the same
// interface.
type Container interface {
	// NewRecord creates a record with the given files, optionally linking
	// it as a child of every currently-dangling record in this container's
	// scope.
	NewRecord(ctx context.Context, files []NewRecordFile, linkParents bool) (Record, error)

	// RecordIter returns every record in this container's scope, grouped
	// into topological layers (parents strictly before children).
	RecordIter() ([][]Record, error)

	// FixedRoots returns the records (if any) this container was pinned
	// to by NewFixedRootsContainer, restricting ReduceWithReducer to the
	// subgraph reachable from them. A nil/empty result means "whole
	// container".
	FixedRoots() []Record

	// ReduceWithReducer folds reducer over every record this container's
	// RecordIter exposes, in topological order, starting from initial.
	ReduceWithReducer(ctx context.Context, reducer Reducer, initial State) (State, error)

	// InitializeState returns the empty state a fresh reduction over this
	// container starts from.
	InitializeState() State
}

// fixedRootsContainer wraps a Container, restricting RecordIter to the
// subgraph reachable (forward, through children) from a fixed set of root
// records -- spec.md §4.5's subgraph reduction, used when a reducer should
// only see one item's history out of a whole-repository container.
type fixedRootsContainer struct {
	inner Container
	roots []Record
}

// NewFixedRootsContainer restricts inner to the subgraph rooted at roots.
func NewFixedRootsContainer(inner Container, roots []Record) Container {
	return &fixedRootsContainer{inner: inner, roots: roots}
}

func (f *fixedRootsContainer) NewRecord(ctx context.Context, files []NewRecordFile, linkParents bool) (Record, error) {
	return f.inner.NewRecord(ctx, files, linkParents)
}

func (f *fixedRootsContainer) FixedRoots() []Record { return f.roots }

// InitializeState delegates to the wrapped container so any
// container-supplied seed fields (e.g. Item's id) survive fixed-roots
// scoping.
func (f *fixedRootsContainer) InitializeState() State { return f.inner.InitializeState() }

func (f *fixedRootsContainer) ReduceWithReducer(ctx context.Context, reducer Reducer, initial State) (State, error) {
	return reduceContainer(ctx, f, reducer, initial)
}

func (f *fixedRootsContainer) RecordIter() ([][]Record, error) {
	all, err := f.inner.RecordIter()
	if err != nil {
		return nil, err
	}
	if len(f.roots) == 0 {
		return all, nil
	}

	rootSet := map[string]bool{}
	for _, r := range f.roots {
		rootSet[r.EncodedHash()] = true
	}

	reachable := map[string]bool{}
	for _, layer := range all {
		for _, rec := range layer {
			if rootSet[rec.EncodedHash()] {
				reachable[rec.EncodedHash()] = true
			}
		}
	}
	// Propagate reachability forward through layers: a record is reachable
	// if any of its .prev edges names an already-reachable record.
	for _, layer := range all {
		for _, rec := range layer {
			if reachable[rec.EncodedHash()] {
				continue
			}
			for _, p := range readPrevEdges(recordPathOf(rec)) {
				if reachable[p] {
					reachable[rec.EncodedHash()] = true
					break
				}
			}
		}
	}

	var filtered [][]Record
	for _, layer := range all {
		var kept []Record
		for _, rec := range layer {
			if reachable[rec.EncodedHash()] {
				kept = append(kept, rec)
			}
		}
		if len(kept) > 0 {
			filtered = append(filtered, kept)
		}
	}
	return filtered, nil
}

// repositoryContainer adapts *Repository to Container for the
// whole-repository scope.
type repositoryContainer struct {
	repo *Repository
}

// AsContainer exposes the repository's records/ tree as a Container.
func (r *Repository) AsContainer() Container {
	return &repositoryContainer{repo: r}
}

func (c *repositoryContainer) NewRecord(ctx context.Context, files []NewRecordFile, linkParents bool) (Record, error) {
	return c.repo.NewRecord(ctx, files, linkParents)
}

func (c *repositoryContainer) RecordIter() ([][]Record, error) {
	return c.repo.RecordIter()
}

func (c *repositoryContainer) FixedRoots() []Record { return nil }

func (c *repositoryContainer) InitializeState() State { return initializeState() }

func (c *repositoryContainer) ReduceWithReducer(ctx context.Context, reducer Reducer, initial State) (State, error) {
	return reduceContainer(ctx, c, reducer, initial)
}
