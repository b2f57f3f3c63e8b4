// Package jsreducer is SIT's scripted reducer host: it discovers reducer
// scripts (from a repository's own reducers/ directory plus every module's
// reducers/ directory), compiles each as a `function(module){...}`-wrapped
// CommonJS-ish module, and runs them as a reduce.Reducer chain with
// per-script persistent state and per-script error isolation (spec.md
// §4.7). Grounded on
// original_source/sit-core/src/reducers/duktape.rs, adapted from a single
// Duktape heap embedded via cgo to a single goja.Runtime embedded as a
// pure-Go dependency -- the Scripted Reducer Host design note in spec.md
// §9 calls this substitution out explicitly.
package jsreducer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/dop251/goja"

	"github.com/sit-fyi/sit-sub000/reduce"
	"github.com/sit-fyi/sit-sub000/sitcontext"
	"github.com/sit-fyi/sit-sub000/store"
)

// CompileError is returned by NewHost when a reducer script fails to
// compile, load (module.exports assignment throws), or doesn't export a
// function.
type CompileError struct {
	File string
	Err  error
}

func (e CompileError) Error() string {
	return fmt.Sprintf("jsreducer: %s: %v", e.File, e.Err)
}

func (e CompileError) Unwrap() error { return e.Err }

// scriptReducer is one compiled reducer script: its own persistent `this`
// state object, carried across every record it processes until Reset.
type scriptReducer struct {
	file     string
	source   string
	fn       goja.Callable
	this     *goja.Object
	disabled bool
}

// Host runs every discovered reducer script against each record in a
// single shared goja.Runtime (mirroring the original's single Duktape
// heap), so require()'d submodules and top-level scripts can exchange
// values freely.
type Host struct {
	vm       *goja.Runtime
	resolver *moduleResolver
	reducers []*scriptReducer
}

// NewHost discovers and compiles every *.js file directly inside each of
// sourceRoots (a repository's reducers/ directory followed by every
// module's reducers/ directory, as returned by
// store.Repository.ReducerSourceRoots), in sorted order for determinism.
func NewHost(ctx context.Context, sourceRoots []string) (*Host, error) {
	logger := sitcontext.GetLogger(ctx)
	h := &Host{
		vm:       goja.New(),
		resolver: newModuleResolver(),
	}
	registerTextDecoder(h.vm)

	var files []string
	for _, root := range sourceRoots {
		h.resolver.addRoot(root)
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, fmt.Errorf("jsreducer: reading %s: %w", root, err)
		}
		for _, e := range entries {
			if e.IsDir() || filepath.Ext(e.Name()) != ".js" {
				continue
			}
			files = append(files, filepath.Join(root, e.Name()))
		}
	}
	sort.Strings(files)
	logger.Debugf("discovered %d reducer script(s) across %d root(s)", len(files), len(sourceRoots))

	h.vm.Set("require", h.requireFunc())

	for _, file := range files {
		source, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("jsreducer: reading %s: %w", file, err)
		}
		sr, err := h.compile(file, string(source))
		if err != nil {
			return nil, err
		}
		logger.WithField("script", file).Debug("compiled reducer script")
		h.reducers = append(h.reducers, sr)
	}
	return h, nil
}

// compile wraps source as `function (module) { ... }`, runs it once with a
// fresh module/module.exports pair (the "load_module" step), and requires
// the result be a function.
func (h *Host) compile(file, source string) (*scriptReducer, error) {
	wrapped := "(function (module) {\n" + source + "\n})"

	h.resolver.push(file)
	defer h.resolver.pop()

	val, err := h.vm.RunString(wrapped)
	if err != nil {
		return nil, CompileError{File: file, Err: err}
	}
	fn, ok := goja.AssertFunction(val)
	if !ok {
		return nil, CompileError{File: file, Err: fmt.Errorf("source did not compile to a function")}
	}

	module := h.vm.NewObject()
	exports := h.vm.NewObject()
	_ = module.Set("exports", exports)

	if _, err := fn(goja.Undefined(), module); err != nil {
		return nil, CompileError{File: file, Err: err}
	}

	exported := module.Get("exports")
	reducerFn, ok := goja.AssertFunction(exported)
	if !ok {
		return nil, CompileError{File: file, Err: fmt.Errorf("module.exports should export a function")}
	}

	return &scriptReducer{
		file:   file,
		source: source,
		fn:     reducerFn,
		this:   h.vm.NewObject(),
	}, nil
}

// requireFunc implements the require(id) global every compiled script
// sees, resolved through h.resolver and compiled into the same runtime so
// the returned module.exports value is usable by the requiring script.
func (h *Host) requireFunc() func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		id := call.Argument(0).String()
		target, err := h.resolver.resolve(id)
		if err != nil {
			panic(h.vm.ToValue(err.Error()))
		}
		source, err := os.ReadFile(target)
		if err != nil {
			panic(h.vm.ToValue(fmt.Sprintf("module not found: %s", id)))
		}
		sr, err := h.compile(target, string(source))
		if err != nil {
			panic(h.vm.ToValue(err.Error()))
		}
		return h.vm.ToValue(sr.fn)
	}
}

// Step runs every non-disabled reducer script against rec in discovery
// order, threading state through all of them. A script that throws or
// returns a value that isn't an object or undefined is disabled for every
// subsequent record (its error is recorded in state["errors"]), but the
// rest of the chain still runs for the record that triggered the error --
// see DESIGN.md's Open Question entry on this deliberate divergence from
// the original's abort-the-whole-chain behavior.
func (h *Host) Step(ctx context.Context, rec store.Record, state reduce.State) (reduce.State, error) {
	logger := sitcontext.GetLogger(ctx)
	for _, sr := range h.reducers {
		if sr.disabled {
			continue
		}

		logger.WithField("script", sr.file).WithField("record", rec.EncodedHash()).Debug("running reducer script")

		recordVal, err := h.buildRecordValue(rec)
		if err != nil {
			return state, err
		}
		stateVal := h.vm.ToValue(map[string]interface{}(state))

		result, callErr := sr.fn(sr.this, stateVal, recordVal)
		if callErr != nil {
			sr.disabled = true
			logger.WithField("script", sr.file).WithError(callErr).Warn("reducer script disabled after error")
			state = appendScriptError(state, sr.file, callErr.Error())
			continue
		}

		if goja.IsUndefined(result) {
			continue
		}

		exported := result.Export()
		asMap, ok := exported.(map[string]interface{})
		if !ok {
			sr.disabled = true
			message := fmt.Sprintf("TypeError: invalid return value %v, expected an object", exported)
			logger.WithField("script", sr.file).Warn("reducer script disabled: " + message)
			state = appendScriptError(state, sr.file, message)
			continue
		}
		state = reduce.State(asMap)
	}
	return state, nil
}

// Reset clears every script's persistent `this` state and re-enables any
// script that had been disabled by a prior error, so the same Host can
// drive a fresh reduction from scratch.
func (h *Host) Reset() {
	for _, sr := range h.reducers {
		sr.this = h.vm.NewObject()
		sr.disabled = false
	}
}

// Clone returns an independent Host with its own goja.Runtime, recompiling
// every script's source and transferring each script's persistent state
// across via a JSON round-trip -- the same strategy the original's Clone
// uses to fan a reduction out across parallel workers without sharing a
// single interpreter heap.
func (h *Host) Clone() reduce.Reducer {
	clone := &Host{
		vm:       goja.New(),
		resolver: newModuleResolver(),
	}
	registerTextDecoder(clone.vm)
	for _, root := range h.resolver.allowedRoots {
		clone.resolver.addRoot(root)
	}
	clone.vm.Set("require", clone.requireFunc())

	for _, sr := range h.reducers {
		newSR, err := clone.compile(sr.file, sr.source)
		if err != nil {
			// The source already compiled once; a second compile of the
			// same text cannot fail.
			panic(err)
		}
		if stateJSON, err := jsonStringify(h.vm, sr.this); err == nil {
			var decoded map[string]interface{}
			if json.Unmarshal([]byte(stateJSON), &decoded) == nil {
				newSR.this = clone.vm.NewObject()
				for k, v := range decoded {
					_ = newSR.this.Set(k, v)
				}
			}
		}
		newSR.disabled = sr.disabled
		clone.reducers = append(clone.reducers, newSR)
	}
	return clone
}

// buildRecordValue marshals a store.Record into the `{hash, files}` shape
// reducer scripts see: files as a name -> ArrayBuffer map, with empty files
// as zero-length buffers rather than any mmap'd view (spec.md §9).
func (h *Host) buildRecordValue(rec store.Record) (*goja.Object, error) {
	files, err := rec.Files()
	if err != nil {
		return nil, err
	}
	filesObj := h.vm.NewObject()
	for _, f := range files {
		_ = filesObj.Set(f.Name, h.vm.ToValue(h.vm.NewArrayBuffer(f.Content)))
	}

	obj := h.vm.NewObject()
	_ = obj.Set("hash", rec.EncodedHash())
	_ = obj.Set("files", filesObj)
	return obj, nil
}

func jsonStringify(vm *goja.Runtime, obj *goja.Object) (string, error) {
	jsonGlobal := vm.Get("JSON")
	if jsonGlobal == nil {
		return "{}", nil
	}
	stringify, ok := goja.AssertFunction(jsonGlobal.ToObject(vm).Get("stringify"))
	if !ok {
		return "{}", nil
	}
	val, err := stringify(jsonGlobal, obj)
	if err != nil {
		return "{}", err
	}
	return val.String(), nil
}

func appendScriptError(state reduce.State, file, message string) reduce.State {
	const key = "errors"
	var errs []interface{}
	if existing, ok := state[key].([]interface{}); ok {
		errs = existing
	}
	errs = append(errs, map[string]string{"file": file, "error": message})
	out := state.Clone()
	out[key] = errs
	return out
}
