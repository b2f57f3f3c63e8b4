// Package reduce is the public entry point to SIT's reduction engine: fold
// a chain of Reducers over a record container's DAG to produce a single
// accumulated state (spec.md §4.6). The walk itself lives on
// store.Container/store.Reducer so the store package can satisfy its own
// Container.ReduceWithReducer method without importing this package back;
// this package just gives callers a conventional, discoverable name for it.
package reduce

import (
	"context"

	"github.com/sit-fyi/sit-sub000/store"
)

// Reducer is a single step in a reduction chain.
type Reducer = store.Reducer

// State is the accumulated, JSON-shaped reduction state.
type State = store.State

// Reduce folds reducer over every record in container, in topological
// order, starting from initial.
func Reduce(ctx context.Context, container store.Container, reducer Reducer, initial State) (State, error) {
	return container.ReduceWithReducer(ctx, reducer, initial)
}

// InitializeState returns the empty state a fresh reduction starts from.
func InitializeState(container store.Container) State {
	return container.InitializeState()
}

// chainedReducer runs a fixed sequence of Reducers against each record in
// turn, threading state through all of them before moving to the next
// record -- spec.md §4.6/§4.7's reducer chain (built-in core reducers
// followed by every discovered scripted reducer, in discovery order).
type chainedReducer struct {
	reducers []Reducer
}

// Chain composes reducers into a single Reducer that runs each of them, in
// order, against every record.
func Chain(reducers ...Reducer) Reducer {
	return &chainedReducer{reducers: reducers}
}

func (c *chainedReducer) Step(ctx context.Context, rec store.Record, state State) (State, error) {
	for _, r := range c.reducers {
		next, err := r.Step(ctx, rec, state)
		if err != nil {
			state = appendChainError(state, rec, err)
			continue
		}
		state = next
	}
	return state, nil
}

func (c *chainedReducer) Reset() {
	for _, r := range c.reducers {
		r.Reset()
	}
}

func (c *chainedReducer) Clone() Reducer {
	cloned := make([]Reducer, len(c.reducers))
	for i, r := range c.reducers {
		cloned[i] = r.Clone()
	}
	return &chainedReducer{reducers: cloned}
}

// appendChainError records one chained sub-reducer's failure without
// aborting the rest of the chain, matching the per-reducer error recovery
// store.reduceContainer already applies at the whole-record level (spec.md
// §4.6).
func appendChainError(state State, rec store.Record, err error) State {
	const key = "errors"
	var errs []interface{}
	if existing, ok := state[key].([]interface{}); ok {
		errs = existing
	}
	errs = append(errs, map[string]string{"record": rec.EncodedHash(), "error": err.Error()})
	out := state.Clone()
	out[key] = errs
	return out
}
