// Package preview runs trial executions of report data sources and classifies
// their results.
//
// The execution backend reports failures inside the normal result shape: a
// result whose only column is ERROR_MESSAGE carries the error text in its single
// row. One such message is not a failure at all. When the backend found no rows
// to burst it answers with the "no burst tokens" message, which is treated as
// an empty successful result.
package preview

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// ErrorColumn is the sentinel column name of an error payload.
const ErrorColumn = "ERROR_MESSAGE"

// NoRowsPhrase marks an error payload that actually means "no rows".
//
// TODO: replace the phrase match with a structured status code once the
// backend protocol carries one.
const NoRowsPhrase = "no burst tokens were provided or fetched for the document"

// Result is the wire shape of a preview execution.
type Result struct {
	ReportColumnNames   []string         `json:"reportColumnNames"`
	ReportData          []map[string]any `json:"reportData"`
	ExecutionTimeMillis int64            `json:"executionTimeMillis"`
	IsPreview           bool             `json:"isPreview"`
	TotalRows           int              `json:"totalRows"`
}

// Outcome classifies a Result.
type Outcome int

// Outcome constants.
const (
	OutcomeSuccess Outcome = iota
	OutcomeEmpty
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeEmpty:
		return "empty"
	case OutcomeError:
		return "error"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// folded returns the case-folded form of s. A Caser is stateful, so each
// call gets its own.
func folded(s string) string {
	return cases.Fold().String(s)
}

// Classify inspects a result for the ERROR_MESSAGE sentinel. For OutcomeError
// it also returns the backend's message.
func Classify(r *Result) (Outcome, string) {
	if r == nil || len(r.ReportColumnNames) != 1 || folded(r.ReportColumnNames[0]) != folded(ErrorColumn) {
		return OutcomeSuccess, ""
	}

	msg := errorMessage(r)
	if strings.Contains(folded(msg), folded(NoRowsPhrase)) {
		return OutcomeEmpty, ""
	}
	return OutcomeError, msg
}

// errorMessage returns the text of the sentinel row, looking the column up
// case-insensitively.
func errorMessage(r *Result) string {
	if len(r.ReportData) == 0 {
		return ""
	}
	for k, v := range r.ReportData[0] {
		if folded(k) == folded(r.ReportColumnNames[0]) {
			if v == nil {
				return ""
			}
			return fmt.Sprint(v)
		}
	}
	return ""
}
