package preview

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// DefaultLimit caps the rows returned by a preview.
const DefaultLimit = 100

// Kind identifies how a data source produces rows.
type Kind string

// Kind constants.
const (
	KindSQL     Kind = "sql"
	KindScript  Kind = "script"
	KindBackend Kind = "backend"
)

// DataSource describes what a preview executes.
type DataSource struct {
	Kind   Kind   `json:"kind"`
	Query  string `json:"query,omitempty"`
	Script string `json:"script,omitempty"`
	// Name identifies the report or data source for logging and remote backends.
	Name string `json:"name,omitempty"`
}

// Executor runs a data source with typed parameter values.
type Executor interface {
	Execute(ctx context.Context, ds DataSource, values map[string]any) (*Result, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, ds DataSource, values map[string]any) (*Result, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, ds DataSource, values map[string]any) (*Result, error) {
	return f(ctx, ds, values)
}

// Config holds bridge configuration.
type Config struct {
	// Executor runs the data source (required)
	Executor Executor
	// Limit caps returned rows; zero means DefaultLimit, negative means no cap
	Limit int
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Bridge runs previews one at a time and classifies their results.
type Bridge struct {
	executor Executor
	limit    int
	logger   *slog.Logger
	inFlight atomic.Bool
}

// NewBridge creates a preview bridge.
func NewBridge(cfg Config) *Bridge {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	limit := cfg.Limit
	if limit == 0 {
		limit = DefaultLimit
	}
	return &Bridge{executor: cfg.Executor, limit: limit, logger: logger}
}

// RunPreview executes ds with the given values and classifies the result.
//
// A benign "no rows" payload returns an empty Result with TotalRows 0. A
// genuine ERROR_MESSAGE payload or an executor failure returns an
// *ExecutionError. A call made while another preview is running returns a
// *BusyError without executing anything. There is no retry.
func (b *Bridge) RunPreview(ctx context.Context, ds DataSource, values map[string]any) (*Result, error) {
	if !b.inFlight.CompareAndSwap(false, true) {
		return nil, &BusyError{}
	}
	defer b.inFlight.Store(false)

	logger := b.logger.With("preview_id", uuid.NewString(), "kind", ds.Kind, "name", ds.Name)
	logger.Debug("running preview", "parameters", len(values))

	start := time.Now()
	res, err := b.executor.Execute(ctx, ds, values)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		logger.Warn("preview execution failed", "error", err)
		return nil, &ExecutionError{Message: err.Error(), Cause: err}
	}
	if res == nil {
		res = &Result{}
	}
	res.IsPreview = true
	if res.ExecutionTimeMillis == 0 {
		res.ExecutionTimeMillis = elapsed
	}

	switch outcome, msg := Classify(res); outcome {
	case OutcomeError:
		logger.Warn("preview returned an error payload", "message", msg)
		return nil, &ExecutionError{Message: msg}

	case OutcomeEmpty:
		logger.Debug("preview found no rows")
		res.ReportColumnNames = []string{}
		res.ReportData = []map[string]any{}
		res.TotalRows = 0
		return res, nil
	}

	if res.ReportColumnNames == nil {
		res.ReportColumnNames = []string{}
	}
	if res.ReportData == nil {
		res.ReportData = []map[string]any{}
	}
	if res.TotalRows < len(res.ReportData) {
		res.TotalRows = len(res.ReportData)
	}
	if b.limit > 0 && len(res.ReportData) > b.limit {
		res.ReportData = res.ReportData[:b.limit]
	}

	logger.Debug("preview complete", "rows", len(res.ReportData), "total_rows", res.TotalRows, "ms", res.ExecutionTimeMillis)
	return res, nil
}

// Busy reports whether a preview is running.
func (b *Bridge) Busy() bool {
	return b.inFlight.Load()
}
