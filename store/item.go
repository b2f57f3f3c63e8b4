package store

import (
	"context"
	"os"
	"path/filepath"
)

// Item is the legacy (pre-whole-repository-DAG) container: a single chain
// of records rooted at items/<id>, kept for repositories that predate
// spec.md §4.4's unification of issues and records into one store. Grounded
// on original_source/sit-core/src/issue.rs and item.rs.
type Item struct {
	repo *Repository
	id   string
	path string
}

// NewItem creates a new item with a freshly minted id.
func (r *Repository) NewItem() (*Item, error) {
	id := r.NewItemID()
	path := filepath.Join(r.itemsPath(), id)
	if err := os.MkdirAll(filepath.Join(path, recordsDirName), 0o755); err != nil {
		return nil, IOError{Op: "creating item directory", Err: err}
	}
	return &Item{repo: r, id: id, path: path}, nil
}

// Item looks up an existing item by id.
func (r *Repository) Item(id string) (*Item, error) {
	path := filepath.Join(r.itemsPath(), id)
	if info, err := os.Stat(path); err != nil || !info.IsDir() {
		return nil, ErrNotFound
	}
	return &Item{repo: r, id: id, path: path}, nil
}

// ItemIter lists every item id under items/, sorted for determinism.
func (r *Repository) ItemIter() ([]*Item, error) {
	entries, err := os.ReadDir(r.itemsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, IOError{Op: "reading items directory", Err: err}
	}
	items := make([]*Item, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		items = append(items, &Item{repo: r, id: e.Name(), path: filepath.Join(r.itemsPath(), e.Name())})
	}
	return items, nil
}

// ID returns the item's identifier.
func (i *Item) ID() string { return i.id }

func (i *Item) recordsPath() string { return filepath.Join(i.path, recordsDirName) }

// NewRecord creates a record scoped to this item's own records/ tree.
func (i *Item) NewRecord(ctx context.Context, files []NewRecordFile, linkParents bool) (Record, error) {
	return i.repo.newRecordIn(ctx, i.recordsPath(), files, linkParents, func() ([]Record, error) {
		return i.repo.danglingRecords(i.recordsPath())
	})
}

// RecordIter returns this item's records in topological layers.
func (i *Item) RecordIter() ([][]Record, error) {
	return i.repo.recordLayers(i.recordsPath())
}

// FixedRoots is always empty for an Item: its scope is already the whole
// chain rooted at its own records/ directory.
func (i *Item) FixedRoots() []Record { return nil }

// InitializeState seeds the reduction state with this item's id, matching
// original_source/sit-core/src/issue.rs's IssueReduction::reduce_with_reducer
// ("Will insert issue's id into the initial state").
func (i *Item) InitializeState() State {
	state := initializeState()
	state["id"] = i.id
	return state
}

func (i *Item) ReduceWithReducer(ctx context.Context, reducer Reducer, initial State) (State, error) {
	return reduceContainer(ctx, i, reducer, initial)
}

var _ Container = (*Item)(nil)
