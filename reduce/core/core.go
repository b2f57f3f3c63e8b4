// Package core implements SIT's built-in reducer chain: the handful of
// record types every issue tracker needs regardless of any scripted
// reducer a repository adds on top (spec.md §4.6/§4.7). Grounded 1:1 on
// original_source/sit-core/src/reducers/core.rs.
package core

import (
	"context"
	"strings"

	"github.com/sit-fyi/sit-sub000/reduce"
	"github.com/sit-fyi/sit-sub000/store"
)

func readTextFile(rec store.Record, name string) string {
	content, err := rec.File(name)
	if err != nil {
		return ""
	}
	return string(content)
}

// SummaryReducer sets state["summary"] from the latest SummaryChanged
// record's "text" file.
type SummaryReducer struct{}

func (SummaryReducer) Step(_ context.Context, rec store.Record, state reduce.State) (reduce.State, error) {
	if !rec.HasType("SummaryChanged") {
		return state, nil
	}
	out := state.Clone()
	out["summary"] = strings.TrimSpace(readTextFile(rec, "text"))
	return out, nil
}

func (SummaryReducer) Reset()                {}
func (SummaryReducer) Clone() reduce.Reducer { return SummaryReducer{} }

// DetailsReducer sets state["details"] from the latest DetailsChanged
// record's "text" file. Unlike SummaryReducer it does not trim whitespace,
// matching the original's asymmetry between the two.
type DetailsReducer struct{}

func (DetailsReducer) Step(_ context.Context, rec store.Record, state reduce.State) (reduce.State, error) {
	if !rec.HasType("DetailsChanged") {
		return state, nil
	}
	out := state.Clone()
	out["details"] = readTextFile(rec, "text")
	return out, nil
}

func (DetailsReducer) Reset()                {}
func (DetailsReducer) Clone() reduce.Reducer { return DetailsReducer{} }

// ClosureReducer tracks state["state"] ("open"/"closed") from Closed and
// Reopened records, defaulting to "open" the first time it sees any
// record at all.
type ClosureReducer struct{}

func (ClosureReducer) Step(_ context.Context, rec store.Record, state reduce.State) (reduce.State, error) {
	out := state.Clone()
	if _, ok := out["state"]; !ok {
		out["state"] = "open"
	}
	switch {
	case rec.HasType("Closed"):
		out["state"] = "closed"
	case rec.HasType("Reopened"):
		out["state"] = "open"
	}
	return out, nil
}

func (ClosureReducer) Reset()                {}
func (ClosureReducer) Clone() reduce.Reducer { return ClosureReducer{} }

// Comment is one entry appended to state["comments"] by CommentedReducer.
type Comment struct {
	Text      string `json:"text"`
	Authors   string `json:"authors"`
	Timestamp string `json:"timestamp"`
}

// CommentedReducer appends a Comment to state["comments"] for every
// Commented record, initializing the key to an empty list on first use so
// callers can always range over it without a nil check.
type CommentedReducer struct{}

func (CommentedReducer) Step(_ context.Context, rec store.Record, state reduce.State) (reduce.State, error) {
	out := state.Clone()
	comments, _ := out["comments"].([]interface{})
	if comments == nil {
		comments = []interface{}{}
	}
	if rec.HasType("Commented") {
		comments = append(comments, Comment{
			Text:      readTextFile(rec, "text"),
			Authors:   readTextFile(rec, ".authors"),
			Timestamp: readTextFile(rec, ".timestamp"),
		})
	}
	out["comments"] = comments
	return out, nil
}

func (CommentedReducer) Reset()                {}
func (CommentedReducer) Clone() reduce.Reducer { return CommentedReducer{} }

// MergeRequestedReducer appends the encoded hash of every MergeRequested
// record to state["merge_requests"].
type MergeRequestedReducer struct{}

func (MergeRequestedReducer) Step(_ context.Context, rec store.Record, state reduce.State) (reduce.State, error) {
	out := state.Clone()
	requests, _ := out["merge_requests"].([]interface{})
	if requests == nil {
		requests = []interface{}{}
	}
	if rec.HasType("MergeRequested") {
		requests = append(requests, rec.EncodedHash())
	}
	out["merge_requests"] = requests
	return out, nil
}

func (MergeRequestedReducer) Reset()                {}
func (MergeRequestedReducer) Clone() reduce.Reducer { return MergeRequestedReducer{} }

// BasicIssueReducer combines MergeRequestedReducer, CommentedReducer,
// ClosureReducer, SummaryReducer and DetailsReducer into the chain every
// issue gets for free, matching the original's BasicIssueReducer
// composition order.
func BasicIssueReducer() reduce.Reducer {
	return reduce.Chain(
		MergeRequestedReducer{},
		CommentedReducer{},
		ClosureReducer{},
		SummaryReducer{},
		DetailsReducer{},
	)
}
