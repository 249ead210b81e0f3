package mapper

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/peteski22/erpbridge/internal/erp"
)

// Action is the outcome of pushing one entity.
type Action string

const (
	// ActionCreated means a new ERP record was created.
	ActionCreated Action = "created"

	// ActionExists means the entity was already linked to an ERP record.
	ActionExists Action = "exists"

	// ActionFailed means the push failed.
	ActionFailed Action = "failed"

	// ActionSkipped means a best-effort step was skipped without error.
	ActionSkipped Action = "skipped"

	// ActionUpdated means an existing ERP record was updated.
	ActionUpdated Action = "updated"
)

// Result is the outcome of pushing one entity.
type Result struct {
	// Action is what happened.
	Action Action `json:"action"`

	// Data is the ERP record, when one was read or written.
	Data erp.Record `json:"data,omitempty"`

	// Err is the failure cause.
	Err error `json:"-"`

	// Error is the failure message.
	Error string `json:"error,omitempty"`

	// Item names the entity (local id or ERP name).
	Item string `json:"item"`

	// Success is false only for failed pushes.
	Success bool `json:"success"`
}

// Created reports a newly created ERP record.
func Created(item string, rec erp.Record) Result {
	return Result{Action: ActionCreated, Data: rec, Item: item, Success: true}
}

// Exists reports an entity that was already linked.
func Exists(item string, rec erp.Record) Result {
	return Result{Action: ActionExists, Data: rec, Item: item, Success: true}
}

// Failed reports a failed push.
func Failed(item string, err error) Result {
	return Result{Action: ActionFailed, Err: err, Error: err.Error(), Item: item}
}

// Skipped reports a best-effort step that was not performed.
func Skipped(item string, err error) Result {
	r := Result{Action: ActionSkipped, Item: item, Success: true}
	if err != nil {
		r.Err = err
		r.Error = err.Error()
	}
	return r
}

// Updated reports an updated ERP record.
func Updated(item string, rec erp.Record) Result {
	return Result{Action: ActionUpdated, Data: rec, Item: item, Success: true}
}

// SyncEach runs push for every item with at most limit calls in flight.
// Results keep the input order, and one failure never stops the others.
func SyncEach[T any](ctx context.Context, limit int, items []T, push func(context.Context, T) Result) []Result {
	results := make([]Result, len(items))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			results[i] = push(ctx, item)
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// Count returns how many results have the given action.
func Count(results []Result, action Action) int {
	n := 0
	for _, r := range results {
		if r.Action == action {
			n++
		}
	}
	return n
}
