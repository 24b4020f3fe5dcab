package datasource

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/reportdsl/internal/starlark"
	"github.com/leapstack-labs/reportdsl/pkg/preview"
)

// ScriptExecutor runs Starlark data-source scripts.
type ScriptExecutor struct {
	sql      *SQLExecutor
	target   *starlark.TargetInfo
	maxSteps uint64
	logger   *slog.Logger
}

// ScriptConfig holds ScriptExecutor configuration.
type ScriptConfig struct {
	// SQL backs the query() builtin (optional; without it query() is undefined)
	SQL *SQLExecutor
	// Target is exposed to scripts as "target" (optional)
	Target *starlark.TargetInfo
	// MaxSteps bounds a script run; zero uses the interpreter default
	MaxSteps uint64
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// NewScriptExecutor creates a script executor.
func NewScriptExecutor(cfg ScriptConfig) *ScriptExecutor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ScriptExecutor{sql: cfg.SQL, target: cfg.Target, maxSteps: cfg.MaxSteps, logger: logger}
}

// Execute runs ds.Script with values bound to "params".
func (e *ScriptExecutor) Execute(ctx context.Context, ds preview.DataSource, values map[string]any) (*preview.Result, error) {
	if ds.Script == "" {
		return nil, fmt.Errorf("data source %q has no script", ds.Name)
	}
	name := ds.Name
	if name == "" {
		name = "datasource.star"
	}

	ec := &starlark.ExecutionContext{
		Params:   values,
		Target:   e.target,
		MaxSteps: e.maxSteps,
		Logger:   e.logger,
	}
	if e.sql != nil {
		ec.Query = e.sql.Query
	}

	out, err := ec.Run(ctx, name, ds.Script)
	if err != nil {
		return nil, err
	}
	return &preview.Result{
		ReportColumnNames: out.Columns,
		ReportData:        out.Rows,
		TotalRows:         len(out.Rows),
	}, nil
}
