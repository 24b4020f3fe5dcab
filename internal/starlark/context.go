package starlark

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// fileOptions allow top-level loops and reassignment, which data-source
// scripts commonly need to build their rows.
var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
}

// ExecutionContext holds what a data-source script runs with.
type ExecutionContext struct {
	// Params are the validated parameter values, exposed as "params".
	Params map[string]any

	// Target describes the database behind Query, exposed as "target".
	Target *TargetInfo

	// Query backs the query() builtin. Nil leaves query() undefined.
	Query QueryFunc

	// MaxSteps bounds execution; zero means DefaultMaxSteps.
	MaxSteps uint64

	Logger *slog.Logger
}

// Output is what a script produced.
type Output struct {
	Columns []string
	Rows    []map[string]any
}

// Run executes the script source and reads back its rows and columns.
// When the script does not assign columns they are taken from the keys of
// the first row, in insertion order.
func (ec *ExecutionContext) Run(ctx context.Context, filename, src string) (*Output, error) {
	logger := ec.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	maxSteps := ec.MaxSteps
	if maxSteps == 0 {
		maxSteps = DefaultMaxSteps
	}

	params, err := ParamsToStarlark(ec.Params)
	if err != nil {
		return nil, &ScriptError{File: filename, Message: fmt.Sprintf("params: %v", err)}
	}

	thread, stop := newThread(ctx, filename, logger, maxSteps)
	defer stop()

	globals, err := starlark.ExecFileOptions(fileOptions, thread, filename, src, Predeclared(ctx, params, ec.Target, ec.Query))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, newScriptError(filename, err)
	}

	return readOutput(filename, globals)
}

func readOutput(filename string, globals starlark.StringDict) (*Output, error) {
	rowsVal, ok := globals["rows"]
	if !ok {
		return nil, &ScriptError{File: filename, Message: "script must assign 'rows'"}
	}
	list, ok := rowsVal.(*starlark.List)
	if !ok {
		return nil, &ScriptError{File: filename, Message: fmt.Sprintf("'rows' must be a list of dicts, got %s", rowsVal.Type())}
	}

	out := &Output{Rows: make([]map[string]any, 0, list.Len())}
	for i := 0; i < list.Len(); i++ {
		dict, ok := list.Index(i).(*starlark.Dict)
		if !ok {
			return nil, &ScriptError{File: filename, Message: fmt.Sprintf("rows[%d] must be a dict, got %s", i, list.Index(i).Type())}
		}
		if i == 0 {
			out.Columns = dictKeys(dict)
		}
		row, err := ToGo(dict)
		if err != nil {
			return nil, &ScriptError{File: filename, Message: fmt.Sprintf("rows[%d]: %v", i, err)}
		}
		out.Rows = append(out.Rows, row.(map[string]any))
	}

	if colsVal, ok := globals["columns"]; ok && colsVal != starlark.None {
		cols, err := ToGo(colsVal)
		if err != nil {
			return nil, &ScriptError{File: filename, Message: fmt.Sprintf("columns: %v", err)}
		}
		items, ok := cols.([]any)
		if !ok {
			return nil, &ScriptError{File: filename, Message: "'columns' must be a list of strings"}
		}
		out.Columns = make([]string, 0, len(items))
		for _, c := range items {
			s, ok := c.(string)
			if !ok {
				return nil, &ScriptError{File: filename, Message: "'columns' must be a list of strings"}
			}
			out.Columns = append(out.Columns, s)
		}
	}
	if out.Columns == nil {
		out.Columns = []string{}
	}
	return out, nil
}

// ScriptError is a failure while running a data-source script.
type ScriptError struct {
	File    string
	Line    int
	Message string
}

func (e *ScriptError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

func newScriptError(filename string, err error) *ScriptError {
	se := &ScriptError{File: filename, Message: err.Error()}

	var evalErr *starlark.EvalError
	var syntaxErr syntax.Error
	var resolveErrs resolve.ErrorList
	switch {
	case errors.As(err, &evalErr):
		se.Message = evalErr.Msg
		for i := 0; i < len(evalErr.CallStack); i++ {
			if line := evalErr.CallStack.At(i).Pos.Line; line > 0 {
				se.Line = int(line)
				break
			}
		}
	case errors.As(err, &syntaxErr):
		se.Message = syntaxErr.Msg
		se.Line = int(syntaxErr.Pos.Line)
	case errors.As(err, &resolveErrs) && len(resolveErrs) > 0:
		se.Message = resolveErrs[0].Msg
		se.Line = int(resolveErrs[0].Pos.Line)
	}
	return se
}
