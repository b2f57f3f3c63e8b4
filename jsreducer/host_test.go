package jsreducer

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sit-fyi/sit-sub000/reduce"
	"github.com/sit-fyi/sit-sub000/store"
)

func newTestRepo(t *testing.T) *store.Repository {
	t.Helper()
	repo, err := store.Init(context.Background(), t.TempDir(), store.DefaultConfig())
	require.NoError(t, err)
	return repo
}

func writeScript(t *testing.T, dir, name, source string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(source), 0o644))
}

func newRecord(t *testing.T, repo *store.Repository, files map[string][]byte) store.Record {
	t.Helper()
	var nf []store.NewRecordFile
	for name, content := range files {
		nf = append(nf, store.NewRecordFile{Name: name, Reader: bytes.NewReader(content)})
	}
	rec, err := repo.NewRecord(context.Background(), nf, true)
	require.NoError(t, err)
	return rec
}

func TestUndefinedResultKeepsPreviousState(t *testing.T) {
	repo := newTestRepo(t)
	reducers := filepath.Join(repo.Path(), "reducers")
	writeScript(t, reducers, "2.js", "module.exports = function(state, record) {  }")
	writeScript(t, reducers, "1.js", "module.exports = function(state, record) { return {test: true} }")

	newRecord(t, repo, map[string][]byte{".type/SummaryChanged": {}, "text": []byte("Title")})

	roots, err := repo.ReducerSourceRoots()
	require.NoError(t, err)
	host, err := NewHost(context.Background(), roots)
	require.NoError(t, err)

	container := repo.AsContainer()
	state, err := reduce.Reduce(context.Background(), container, host, container.InitializeState())
	require.NoError(t, err)
	assert.Equal(t, true, state["test"])
}

func TestMistypedResultIsCaptured(t *testing.T) {
	repo := newTestRepo(t)
	reducers := filepath.Join(repo.Path(), "reducers")
	writeScript(t, reducers, "reducer.js", "module.exports = function(state, record) { return 1 }")

	newRecord(t, repo, map[string][]byte{".type/SummaryChanged": {}, "text": []byte("Title")})

	roots, err := repo.ReducerSourceRoots()
	require.NoError(t, err)
	host, err := NewHost(context.Background(), roots)
	require.NoError(t, err)

	container := repo.AsContainer()
	state, err := reduce.Reduce(context.Background(), container, host, container.InitializeState())
	require.NoError(t, err)
	errs := state["errors"].([]interface{})
	require.Len(t, errs, 1)
	errObj := errs[0].(map[string]string)
	assert.Equal(t, "TypeError: invalid return value 1, expected an object", errObj["error"])
}

func TestRecordHashIsExposed(t *testing.T) {
	repo := newTestRepo(t)
	reducers := filepath.Join(repo.Path(), "reducers")
	writeScript(t, reducers, "reducer.js", `module.exports = function(state, record) { return {"hello": record.hash}; }`)

	rec := newRecord(t, repo, map[string][]byte{".type/SummaryChanged": {}, "text": []byte("Title")})

	roots, err := repo.ReducerSourceRoots()
	require.NoError(t, err)
	host, err := NewHost(context.Background(), roots)
	require.NoError(t, err)

	container := repo.AsContainer()
	state, err := reduce.Reduce(context.Background(), container, host, container.InitializeState())
	require.NoError(t, err)
	assert.Equal(t, rec.EncodedHash(), state["hello"])
}

func TestRecordContentsViaTextDecoder(t *testing.T) {
	repo := newTestRepo(t)
	reducers := filepath.Join(repo.Path(), "reducers")
	writeScript(t, reducers, "reducer.js", `module.exports = function(state, record) { return {"hello": new TextDecoder('utf-8').decode(record.files.text)}; }`)

	newRecord(t, repo, map[string][]byte{".type/SummaryChanged": {}, "text": []byte("Title")})

	roots, err := repo.ReducerSourceRoots()
	require.NoError(t, err)
	host, err := NewHost(context.Background(), roots)
	require.NoError(t, err)

	container := repo.AsContainer()
	state, err := reduce.Reduce(context.Background(), container, host, container.InitializeState())
	require.NoError(t, err)
	assert.Equal(t, "Title", state["hello"])
}

func TestReducerStateIsPersistentAcrossRecords(t *testing.T) {
	repo := newTestRepo(t)
	reducers := filepath.Join(repo.Path(), "reducers")
	writeScript(t, reducers, "reducer.js", `module.exports = function() {
		if (this.counter === undefined) { this.counter = 1; } else { this.counter++; }
		return {"hello": this.counter};
	}`)

	newRecord(t, repo, map[string][]byte{".type/SummaryChanged": {}})
	newRecord(t, repo, map[string][]byte{".type/SummaryChanged": {}})
	newRecord(t, repo, map[string][]byte{".type/SummaryChanged": {}})

	roots, err := repo.ReducerSourceRoots()
	require.NoError(t, err)
	host, err := NewHost(context.Background(), roots)
	require.NoError(t, err)

	container := repo.AsContainer()
	state, err := reduce.Reduce(context.Background(), container, host, container.InitializeState())
	require.NoError(t, err)
	assert.EqualValues(t, 3, state["hello"])
}

func TestModuleReducersAreDiscovered(t *testing.T) {
	repo := newTestRepo(t)
	writeScript(t, filepath.Join(repo.Path(), "reducers"), "reducer1.js",
		`module.exports = function(state) { return Object.assign({"hello": 1}, state); }`)
	writeScript(t, filepath.Join(repo.Path(), "modules", "test", "reducers"), "reducer2.js",
		`module.exports = function(state) { return Object.assign({"bye": 2}, state); }`)

	newRecord(t, repo, map[string][]byte{".type/SummaryChanged": {}})

	roots, err := repo.ReducerSourceRoots()
	require.NoError(t, err)
	host, err := NewHost(context.Background(), roots)
	require.NoError(t, err)

	container := repo.AsContainer()
	state, err := reduce.Reduce(context.Background(), container, host, container.InitializeState())
	require.NoError(t, err)
	assert.EqualValues(t, 1, state["hello"])
	assert.EqualValues(t, 2, state["bye"])
}

func TestModuleExportNonFunctionFails(t *testing.T) {
	repo := newTestRepo(t)
	reducers := filepath.Join(repo.Path(), "reducers")
	writeScript(t, reducers, "reducer.js", "module.exports = 'hello'")

	roots, err := repo.ReducerSourceRoots()
	require.NoError(t, err)
	_, err = NewHost(context.Background(), roots)
	require.Error(t, err)
	var compileErr CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.Contains(t, compileErr.Error(), "module.exports should export a function")
}

func TestRequireResolvesSiblingModule(t *testing.T) {
	repo := newTestRepo(t)
	reducers := filepath.Join(repo.Path(), "reducers")
	writeScript(t, reducers, "reducer.js", `module.exports = require("reducer/index.js");`)
	writeScript(t, filepath.Join(reducers, "reducer"), "index.js",
		`module.exports = function(state, record) { return {"hello": record.hash}; }`)

	rec := newRecord(t, repo, map[string][]byte{".type/SummaryChanged": {}})

	roots, err := repo.ReducerSourceRoots()
	require.NoError(t, err)
	host, err := NewHost(context.Background(), roots)
	require.NoError(t, err)

	container := repo.AsContainer()
	state, err := reduce.Reduce(context.Background(), container, host, container.InitializeState())
	require.NoError(t, err)
	assert.Equal(t, rec.EncodedHash(), state["hello"])
}

func TestRequireEscapingAllowedRootFails(t *testing.T) {
	repo := newTestRepo(t)
	reducers := filepath.Join(repo.Path(), "reducers")
	writeScript(t, reducers, "reducer.js", `module.exports = require("../reducer.js");`)
	writeScript(t, repo.Path(), "reducer.js", `module.exports = function() {};`)

	roots, err := repo.ReducerSourceRoots()
	require.NoError(t, err)
	_, err = NewHost(context.Background(), roots)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot resolve module id")
}

func TestRequireNotFoundFails(t *testing.T) {
	repo := newTestRepo(t)
	reducers := filepath.Join(repo.Path(), "reducers")
	writeScript(t, reducers, "reducer.js", `module.exports = require("reducer/index.js");`)

	roots, err := repo.ReducerSourceRoots()
	require.NoError(t, err)
	_, err = NewHost(context.Background(), roots)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "module not found")
}

func TestAstralPlaneRuneSurvivesStepRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	reducers := filepath.Join(repo.Path(), "reducers")
	writeScript(t, reducers, "reducer.js", `module.exports = function(state, record) { return {"hello": record.hash + "\u{1F389}"}; }`)

	rec := newRecord(t, repo, map[string][]byte{".type/SummaryChanged": {}})

	roots, err := repo.ReducerSourceRoots()
	require.NoError(t, err)
	host, err := NewHost(context.Background(), roots)
	require.NoError(t, err)

	container := repo.AsContainer()
	state, err := reduce.Reduce(context.Background(), container, host, container.InitializeState())
	require.NoError(t, err)
	assert.Equal(t, rec.EncodedHash()+"\U0001F389", state["hello"])
}

func TestHostCloneIsIndependentAfterFirstStep(t *testing.T) {
	repo := newTestRepo(t)
	reducers := filepath.Join(repo.Path(), "reducers")
	writeScript(t, reducers, "reducer.js", `
	var a = 1;
	module.exports = function() {
		if (this.counter === undefined) { this.counter = a; } else { this.counter++; }
		return {"hello": this.counter};
	};`)

	newRecord(t, repo, map[string][]byte{".type/SummaryChanged": {}})

	roots, err := repo.ReducerSourceRoots()
	require.NoError(t, err)
	host, err := NewHost(context.Background(), roots)
	require.NoError(t, err)

	clone1 := host.Clone()
	clone2 := host.Clone()

	container := repo.AsContainer()
	state1, err := reduce.Reduce(context.Background(), container, clone1, container.InitializeState())
	require.NoError(t, err)

	newRecord(t, repo, map[string][]byte{".type/SummaryChanged": {}})
	state2, err := reduce.Reduce(context.Background(), container, clone2, container.InitializeState())
	require.NoError(t, err)

	assert.EqualValues(t, 1, state1["hello"])
	assert.EqualValues(t, 2, state2["hello"])
}
