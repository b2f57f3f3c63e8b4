package store

import (
	"context"
	"sort"

	"github.com/sit-fyi/sit-sub000/sitcontext"
)

// State is the reducer's accumulated state, threaded through every Step
// call. It is kept as a generic JSON-shaped map (rather than a concrete
// struct) because scripted reducers populate and read arbitrary keys;
// Go-native reducers (reduce/core) use type assertions on the keys they
// own.
type State map[string]interface{}

// Clone returns a shallow copy of state: the top-level keys are copied into
// a new map, while nested maps and slices are shared with s, so setting a
// key on the copy leaves s unchanged.
func (s State) Clone() State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Reducer is a single step in a reduction chain: given a record and the
// state accumulated so far, it returns the next state. Reset clears any
// internal per-chain state (used between independent reductions over the
// same Reducer instance); Clone returns an independent copy so a reduction
// can run concurrently across items (spec.md §4.6/§4.7).
type Reducer interface {
	Step(ctx context.Context, rec Record, state State) (State, error)
	Reset()
	Clone() Reducer
}

// errorsKey is the state key reserved for per-reducer error capture
// (spec.md §4.6): a failing reducer's error is appended here and the
// reduction continues rather than aborting.
const errorsKey = "errors"

// ReducerError describes one reducer's failure to process one record,
// recorded rather than raised so the rest of the reduction can proceed.
type ReducerError struct {
	Record string `json:"record"`
	Error  string `json:"error"`
}

// reduceContainer runs reducer over every record in c, visited in
// topological layer order with deterministic sibling ordering (RecordIter
// already guarantees both), folding into state. A reducer error for one
// record is appended to state["errors"] and does not stop the walk.
func reduceContainer(ctx context.Context, c Container, reducer Reducer, state State) (State, error) {
	layers, err := c.RecordIter()
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = State{}
	}
	logger := sitcontext.GetLogger(ctx)
	for _, layer := range layers {
		for _, rec := range layer {
			logger.WithField("record", rec.EncodedHash()).Debug("reducing record")
			next, err := reducer.Step(ctx, rec, state)
			if err != nil {
				logger.WithField("record", rec.EncodedHash()).WithError(err).Warn("reducer recovered from error")
				state = appendReducerError(state, rec, err)
				continue
			}
			state = next
		}
	}
	return state, nil
}

func appendReducerError(state State, rec Record, err error) State {
	var errs []interface{}
	if existing, ok := state[errorsKey].([]interface{}); ok {
		errs = existing
	}
	errs = append(errs, ReducerError{Record: rec.EncodedHash(), Error: err.Error()})
	out := state.Clone()
	out[errorsKey] = errs
	return out
}

// initializeState returns the empty state a fresh reduction starts from.
func initializeState() State {
	return State{errorsKey: []interface{}{}}
}

// sortRecordsByHash is the deterministic sibling tie-break used wherever a
// set of records needs a stable order beyond what RecordIter already
// provides (spec.md §4.6).
func sortRecordsByHash(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].EncodedHash() < records[j].EncodedHash()
	})
}
