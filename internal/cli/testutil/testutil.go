// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"regexp"
	"testing"

	"github.com/leapstack-labs/reportdsl/internal/testutil"
)

// SalesParameters is the parameters script of the test project's sales report.
const SalesParameters = `reportParameters {
    parameter(id: 'region', type: String, label: 'Region', defaultValue: 'EU', ui: [control: 'select', options: ['EU', 'US']])
    parameter(id: 'minAmount', type: Integer, defaultValue: 100, constraints: [required: true, min: 0, max: 10000])
}
`

// SalesChart is the chart script of the test project's sales report.
const SalesChart = `chart {
    type 'bar'
    labelField 'region'
    series { field 'amount'; label 'Amount' }
}
`

// SalesCSV is the sales fixture table.
const SalesCSV = `region,amount
EU,300
EU,50
US,200
US,700
`

// SetupTestProject creates a temporary project with a config file, the
// sales report scripts and a CSV fixture, and returns its root. History is
// kept in a file under the project.
func SetupTestProject(t *testing.T) string {
	t.Helper()
	return testutil.ConfigDir(t, map[string]string{
		"reportdsl.yaml": `config_dir: config
state_path: .reportdsl/history.db
target:
  type: duckdb
preview:
  limit: 10
`,
		"config/reports/sales/sales-parameters-config.groovy": SalesParameters,
		"config/reports/sales/sales-chart-config.groovy":      SalesChart,
		"testdata/sales.csv": SalesCSV,
		"queries/sales.sql":  "SELECT region, amount FROM sales WHERE region = :region AND amount >= :minAmount ORDER BY amount DESC\n",
		"queries/sales.star": "rows = [{\"region\": params[\"region\"], \"floor\": params[\"minAmount\"]}]\ncolumns = [\"region\", \"floor\"]\n",
	})
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// AssertNoANSI fails if s contains terminal escape sequences.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("output contains ANSI escape codes: %q", s)
	}
}
