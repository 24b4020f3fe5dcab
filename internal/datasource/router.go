package datasource

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/reportdsl/pkg/preview"
)

// Router dispatches a data source to the executor registered for its kind.
type Router struct {
	executors map[preview.Kind]preview.Executor
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{executors: make(map[preview.Kind]preview.Executor)}
}

// Handle registers ex for kind. A nil executor is ignored.
func (r *Router) Handle(kind preview.Kind, ex preview.Executor) *Router {
	if ex != nil {
		r.executors[kind] = ex
	}
	return r
}

// Has reports whether an executor is registered for kind.
func (r *Router) Has(kind preview.Kind) bool {
	_, ok := r.executors[kind]
	return ok
}

// Execute implements preview.Executor.
func (r *Router) Execute(ctx context.Context, ds preview.DataSource, values map[string]any) (*preview.Result, error) {
	ex, ok := r.executors[ds.Kind]
	if !ok {
		return nil, fmt.Errorf("no %q data source configured", ds.Kind)
	}
	return ex.Execute(ctx, ds, values)
}

var _ preview.Executor = (*Router)(nil)
