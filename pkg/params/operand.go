package params

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/leapstack-labs/reportdsl/pkg/dsl"
)

// ISO layouts used for resolved date and datetime values.
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02T15:04:05"
)

// Operand is a default value or a constraint bound: either a literal or a
// symbolic expression resolved when the value is needed.
type Operand struct {
	Literal any         `json:"literal,omitempty"`
	Expr    *Expression `json:"expression,omitempty"`
}

// ExprKind tags a symbolic expression.
type ExprKind string

// ExprKind constants. Unrecognized expressions are kept as ExprOpaque.
const (
	ExprToday  ExprKind = "today"  // LocalDate.now()
	ExprNow    ExprKind = "now"    // LocalDateTime.now(), new Date()
	ExprDate   ExprKind = "date"   // LocalDate.parse('...'), LocalDate.of(y, m, d)
	ExprRef    ExprKind = "ref"    // another parameter's current value
	ExprOpaque ExprKind = "opaque" // anything else
)

// Expression is a symbolic value such as "today minus 30 days" or a
// reference to another parameter, optionally followed by date arithmetic.
type Expression struct {
	Kind     ExprKind   `json:"kind"`
	Source   string     `json:"source"`
	Ref      string     `json:"ref,omitempty"`
	Base     string     `json:"base,omitempty"`
	DateTime bool       `json:"dateTime,omitempty"`
	Steps    []DateStep `json:"steps,omitempty"`
}

// DateStep is one date arithmetic call. Unit is days, weeks, months, years,
// hours, minutes, seconds or dayOfMonth; Set replaces the unit instead of adding.
type DateStep struct {
	Unit string `json:"unit"`
	N    int    `json:"n"`
	Set  bool   `json:"set,omitempty"`
}

// Resolve evaluates the operand at time now against the sibling values.
// It reports false when the value cannot be determined: an opaque expression,
// or a reference to a parameter that has no value yet.
func (o *Operand) Resolve(now time.Time, siblings map[string]any) (any, bool) {
	if o == nil {
		return nil, false
	}
	if o.Expr == nil {
		return o.Literal, o.Literal != nil
	}
	return o.Expr.Resolve(now, siblings)
}

// Resolve evaluates the expression. See Operand.Resolve.
func (e *Expression) Resolve(now time.Time, siblings map[string]any) (any, bool) {
	switch e.Kind {
	case ExprToday:
		t := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		return applySteps(t, e.Steps).Format(DateLayout), true

	case ExprNow:
		return applySteps(now, e.Steps).Format(DateTimeLayout), true

	case ExprDate:
		t, err := dateparse.ParseIn(e.Base, time.UTC)
		if err != nil {
			return nil, false
		}
		return formatTemporal(applySteps(t, e.Steps), e.DateTime), true

	case ExprRef:
		v, ok := siblings[e.Ref]
		if !ok || isEmpty(v) {
			return nil, false
		}
		if len(e.Steps) == 0 {
			return v, true
		}
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		t, err := dateparse.ParseIn(s, time.UTC)
		if err != nil {
			return nil, false
		}
		return formatTemporal(applySteps(t, e.Steps), len(s) > len(DateLayout)), true

	default:
		return nil, false
	}
}

func formatTemporal(t time.Time, withTime bool) string {
	if withTime {
		return t.Format(DateTimeLayout)
	}
	return t.Format(DateLayout)
}

func applySteps(t time.Time, steps []DateStep) time.Time {
	for _, s := range steps {
		switch s.Unit {
		case "days":
			t = t.AddDate(0, 0, s.N)
		case "weeks":
			t = t.AddDate(0, 0, 7*s.N)
		case "months":
			t = t.AddDate(0, s.N, 0)
		case "years":
			t = t.AddDate(s.N, 0, 0)
		case "hours":
			t = t.Add(time.Duration(s.N) * time.Hour)
		case "minutes":
			t = t.Add(time.Duration(s.N) * time.Minute)
		case "seconds":
			t = t.Add(time.Duration(s.N) * time.Second)
		case "dayOfMonth":
			t = time.Date(t.Year(), t.Month(), s.N, t.Hour(), t.Minute(), t.Second(), 0, t.Location())
		}
	}
	return t
}

// stepUnits maps date arithmetic method suffixes to step units.
var stepUnits = map[string]string{
	"Days":    "days",
	"Weeks":   "weeks",
	"Months":  "months",
	"Years":   "years",
	"Hours":   "hours",
	"Minutes": "minutes",
	"Seconds": "seconds",
}

// classify turns a parsed value into an operand. ids holds every parameter id
// declared in the script so bare identifiers can be recognized as references.
func classify(v dsl.Value, ids map[string]bool) *Operand {
	switch v := v.(type) {
	case nil, *dsl.Null:
		return nil
	case *dsl.Symbol:
		if ids[v.Name] {
			return &Operand{Expr: &Expression{Kind: ExprRef, Source: v.Source(), Ref: v.Name}}
		}
		return &Operand{Expr: &Expression{Kind: ExprOpaque, Source: v.Source()}}
	case *dsl.Expr:
		return &Operand{Expr: classifyExpr(v, ids)}
	case *dsl.Closure:
		return &Operand{Expr: &Expression{Kind: ExprOpaque, Source: v.Source()}}
	default:
		return &Operand{Literal: dsl.Interface(v)}
	}
}

func classifyExpr(e *dsl.Expr, ids map[string]bool) *Expression {
	opaque := &Expression{Kind: ExprOpaque, Source: e.Source()}
	chain := e.Chain

	// java.time.LocalDate.now() and LocalDate.now() are the same call.
	for len(chain) > 2 && !chain[0].Invoked && (chain[0].Name == "java" || chain[0].Name == "time" || chain[0].Name == "util") {
		chain = chain[1:]
	}

	out := &Expression{Source: e.Source()}
	var rest []dsl.Call
	switch {
	case e.New && len(chain) >= 1 && chain[0].Name == "Date" && chain[0].Invoked && len(chain[0].Args) == 0:
		out.Kind, out.DateTime = ExprNow, true
		rest = chain[1:]

	case !e.New && len(chain) >= 2 && (chain[0].Name == "LocalDate" || chain[0].Name == "LocalDateTime") && !chain[0].Invoked:
		out.DateTime = chain[0].Name == "LocalDateTime"
		head := chain[1]
		switch {
		case head.Name == "now" && head.Invoked && len(head.Args) == 0:
			out.Kind = ExprToday
			if out.DateTime {
				out.Kind = ExprNow
			}
		case head.Name == "parse" && len(head.Args) == 1:
			s, ok := head.Args[0].(*dsl.String)
			if !ok {
				return opaque
			}
			out.Kind, out.Base = ExprDate, s.Value
		case head.Name == "of" && len(head.Args) >= 3:
			base, ok := dateOf(head.Args)
			if !ok {
				return opaque
			}
			out.Kind, out.Base = ExprDate, base
		default:
			return opaque
		}
		rest = chain[2:]

	case !e.New && len(chain) >= 1 && !chain[0].Invoked && ids[chain[0].Name]:
		out.Kind, out.Ref = ExprRef, chain[0].Name
		rest = chain[1:]

	default:
		return opaque
	}

	for _, call := range rest {
		step, ok := dateStep(call)
		if !ok {
			return opaque
		}
		out.Steps = append(out.Steps, step)
	}
	return out
}

func dateOf(args []dsl.Value) (string, bool) {
	var parts [3]int
	for i := 0; i < 3; i++ {
		n, ok := dsl.AsInt(args[i])
		if !ok {
			return "", false
		}
		parts[i] = n
	}
	t := time.Date(parts[0], time.Month(parts[1]), parts[2], 0, 0, 0, 0, time.UTC)
	return t.Format(DateLayout), true
}

// dateStep recognizes plusDays(n), minusMonths(n), withDayOfMonth(n) and the
// Groovy Date shorthands plus(n) and minus(n), which count days.
func dateStep(call dsl.Call) (DateStep, bool) {
	if !call.Invoked || len(call.Args) != 1 || len(call.Kwargs) != 0 {
		return DateStep{}, false
	}
	n, ok := dsl.AsInt(call.Args[0])
	if !ok {
		return DateStep{}, false
	}

	switch call.Name {
	case "plus":
		return DateStep{Unit: "days", N: n}, true
	case "minus":
		return DateStep{Unit: "days", N: -n}, true
	case "withDayOfMonth":
		return DateStep{Unit: "dayOfMonth", N: n, Set: true}, true
	}

	for prefix, sign := range map[string]int{"plus": 1, "minus": -1} {
		if suffix, ok := strings.CutPrefix(call.Name, prefix); ok {
			if unit, ok := stepUnits[suffix]; ok {
				return DateStep{Unit: unit, N: sign * n}, true
			}
		}
	}
	return DateStep{}, false
}
