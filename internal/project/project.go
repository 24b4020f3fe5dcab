// Package project dispatches DSL scripts to their dialect projector and
// collects diagnostics for script checking.
package project

import (
	"errors"
	"fmt"

	"github.com/leapstack-labs/reportdsl/pkg/chart"
	"github.com/leapstack-labs/reportdsl/pkg/dsl"
	"github.com/leapstack-labs/reportdsl/pkg/params"
	"github.com/leapstack-labs/reportdsl/pkg/pivot"
	"github.com/leapstack-labs/reportdsl/pkg/tabulator"
)

// Project converts a parsed tree into the typed configuration of dialect d:
// []params.ParameterSpec, *tabulator.Config, *chart.Config or *pivot.Config.
func Project(d dsl.Dialect, tree *dsl.Tree) (any, error) {
	switch d {
	case dsl.DialectParameters:
		specs, err := params.Project(tree)
		if err != nil {
			return nil, err
		}
		if specs == nil {
			specs = []params.ParameterSpec{}
		}
		return specs, nil
	case dsl.DialectTabulator:
		return tabulator.Project(tree)
	case dsl.DialectChart:
		return chart.Project(tree)
	case dsl.DialectPivot:
		return pivot.Project(tree)
	default:
		return nil, fmt.Errorf("unknown dialect %q", d)
	}
}

// ProjectScript parses script and projects it as dialect d.
func ProjectScript(d dsl.Dialect, script string) (any, error) {
	tree, err := dsl.Parse(script)
	if err != nil {
		return nil, err
	}
	return Project(d, tree)
}

// Severity grades a diagnostic.
type Severity string

// Severity constants.
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic is one finding about a script.
type Diagnostic struct {
	Severity Severity     `json:"severity"`
	Message  string       `json:"message"`
	Pos      dsl.Position `json:"pos"`
}

func (d Diagnostic) String() string {
	if d.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", d.Severity, d.Pos.Line, d.Pos.Column, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Severity, d.Message)
}

// Report is the outcome of checking one script.
type Report struct {
	Path        string       `json:"path,omitempty"`
	Dialect     dsl.Dialect  `json:"dialect,omitempty"`
	Config      any          `json:"config,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// HasErrors reports whether any diagnostic is an error.
func (r *Report) HasErrors() bool {
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Check parses and projects script. The dialect is taken from the script's
// first recognized top-level block; hint, usually derived from the file
// name, is used when the script has none and is compared otherwise.
func Check(path, script string, hint dsl.Dialect) *Report {
	r := &Report{Path: path, Diagnostics: []Diagnostic{}}

	tree, err := dsl.Parse(script)
	if err != nil {
		r.add(SeverityError, err)
		return r
	}
	if tree.IsEmpty() {
		r.Dialect = hint
		r.warn(dsl.Position{}, "script is empty")
		return r
	}

	detected, ok := tree.DetectDialect()
	switch {
	case ok && hint != "" && detected != hint:
		r.warn(tree.Root.Statements[0].Pos, fmt.Sprintf("file name suggests %s but script declares %s", hint, detected))
		r.Dialect = detected
	case ok:
		r.Dialect = detected
	case hint != "":
		r.Dialect = hint
	default:
		r.Diagnostics = append(r.Diagnostics, Diagnostic{
			Severity: SeverityError,
			Message:  "no reportParameters, tabulator, chart or pivotTable block found",
			Pos:      tree.Root.Statements[0].Pos,
		})
		return r
	}

	r.lintTopLevel(tree)

	cfg, err := Project(r.Dialect, tree)
	if err != nil {
		r.add(SeverityError, err)
		return r
	}
	r.Config = cfg
	return r
}

// lintTopLevel warns about top-level statements the projector ignores.
func (r *Report) lintTopLevel(tree *dsl.Tree) {
	seen := make(map[string]bool)
	for _, st := range tree.Root.Statements {
		if st.Name == string(r.Dialect) {
			if seen[st.Name] {
				r.warn(st.Pos, fmt.Sprintf("duplicate '%s' block; the last one is used", st.Name))
			}
			seen[st.Name] = true
			continue
		}
		if _, known := dsl.ParseDialect(st.Name); known && st.Body != nil {
			r.warn(st.Pos, fmt.Sprintf("'%s' block ignored in a %s script", st.Name, r.Dialect))
			continue
		}
		r.warn(st.Pos, fmt.Sprintf("unknown top-level statement '%s' ignored", st.Name))
	}
}

func (r *Report) warn(pos dsl.Position, msg string) {
	r.Diagnostics = append(r.Diagnostics, Diagnostic{Severity: SeverityWarning, Message: msg, Pos: pos})
}

func (r *Report) add(sev Severity, err error) {
	d := Diagnostic{Severity: sev, Message: err.Error()}
	var synErr *dsl.SyntaxError
	var semErr *dsl.SemanticError
	switch {
	case errors.As(err, &synErr):
		d.Pos = synErr.Pos
		d.Message = synErr.Message
	case errors.As(err, &semErr):
		d.Pos = semErr.Pos
		d.Message = semErr.Message
	}
	r.Diagnostics = append(r.Diagnostics, d)
}
