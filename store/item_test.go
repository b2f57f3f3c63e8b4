package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewItemAndLookup(t *testing.T) {
	repo := newRepo(t)
	item, err := repo.NewItem()
	require.NoError(t, err)
	assert.NotEmpty(t, item.ID())

	found, err := repo.Item(item.ID())
	require.NoError(t, err)
	assert.Equal(t, item.ID(), found.ID())
}

func TestItemLookupMissing(t *testing.T) {
	repo := newRepo(t)
	_, err := repo.Item("does-not-exist")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestItemRecordIterIsScopedToItsOwnChain(t *testing.T) {
	repo := newRepo(t)
	itemA, err := repo.NewItem()
	require.NoError(t, err)
	itemB, err := repo.NewItem()
	require.NoError(t, err)

	recA, err := itemA.NewRecord(context.Background(), []NewRecordFile{nf(".type/SummaryChanged", "a")}, true)
	require.NoError(t, err)
	recB, err := itemB.NewRecord(context.Background(), []NewRecordFile{nf(".type/SummaryChanged", "b")}, true)
	require.NoError(t, err)

	layersA, err := itemA.RecordIter()
	require.NoError(t, err)
	require.Len(t, layersA, 1)
	assert.Equal(t, recA.EncodedHash(), layersA[0][0].EncodedHash())

	layersB, err := itemB.RecordIter()
	require.NoError(t, err)
	require.Len(t, layersB, 1)
	assert.Equal(t, recB.EncodedHash(), layersB[0][0].EncodedHash())
}

func TestItemInitializeStateSeedsID(t *testing.T) {
	repo := newRepo(t)
	item, err := repo.NewItem()
	require.NoError(t, err)

	state := item.InitializeState()
	assert.Equal(t, item.ID(), state["id"])
	assert.Equal(t, []interface{}{}, state["errors"])
}

func TestItemIterListsAllItems(t *testing.T) {
	repo := newRepo(t)
	_, err := repo.NewItem()
	require.NoError(t, err)
	_, err = repo.NewItem()
	require.NoError(t, err)

	items, err := repo.ItemIter()
	require.NoError(t, err)
	assert.Len(t, items, 2)
}
