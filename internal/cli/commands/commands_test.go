package commands

import (
	"bytes"
	"errors"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/reportdsl/pkg/dsl"
)

func TestCommandMetadata(t *testing.T) {
	tests := []struct {
		name  string
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{name: "parse", cmd: NewParseCommand(), use: "parse <dialect> <file>"},
		{name: "check", cmd: NewCheckCommand(), use: "check [file...]", flags: []string{"watch"}},
		{name: "params", cmd: NewParamsCommand(), use: "params <file>", flags: []string{"set", "options"}},
		{
			name:  "preview",
			cmd:   NewPreviewCommand(),
			use:   "preview <parameters-file>",
			flags: []string{"query", "script", "backend", "name", "set", "load", "limit"},
		},
		{name: "serve", cmd: NewServeCommand(), use: "serve", flags: []string{"port", "no-watch", "offline", "load"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short, "Short should not be empty")
			assert.NotEmpty(t, tt.cmd.Example, "Example should not be empty")
			for _, flag := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(flag), "flag %q should exist", flag)
			}
		})
	}
}

func TestNewScriptsCommand(t *testing.T) {
	cmd := NewScriptsCommand()

	assert.Equal(t, "scripts", cmd.Use)
	assert.Equal(t, []string{"script"}, cmd.Aliases)

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.ElementsMatch(t, []string{"list", "show", "save", "history", "restore"}, names)

	save, _, err := cmd.Find([]string{"save"})
	require.NoError(t, err)
	for _, flag := range []string{"report", "kind", "force"} {
		assert.NotNil(t, save.Flags().Lookup(flag), "flag %q should exist", flag)
	}
	history, _, err := cmd.Find([]string{"history"})
	require.NoError(t, err)
	assert.NotNil(t, history.Flags().Lookup("prune"))
}

func TestNewVersionCommand(t *testing.T) {
	tests := []struct {
		name    string
		version string
		wantOut []string
	}{
		{name: "release", version: "1.2.3", wantOut: []string{"reportdsl v1.2.3", "commit abc123", "built today"}},
		{name: "dev", version: "dev", wantOut: []string{"reportdsl vdev"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewVersionCommand(tt.version, "abc123", "today")
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetArgs([]string{})

			require.NoError(t, cmd.Execute())
			for _, want := range tt.wantOut {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestParseKeyValues(t *testing.T) {
	tests := []struct {
		name    string
		items   []string
		want    map[string]string
		wantErr string
	}{
		{name: "empty", items: nil, want: map[string]string{}},
		{name: "pairs", items: []string{"region=EU", "topN=5"}, want: map[string]string{"region": "EU", "topN": "5"}},
		{name: "value keeps equals", items: []string{"expr=a=b"}, want: map[string]string{"expr": "a=b"}},
		{name: "empty value", items: []string{"region="}, want: map[string]string{"region": ""}},
		{name: "trims key", items: []string{" region =EU"}, want: map[string]string{"region": "EU"}},
		{name: "missing equals", items: []string{"region"}, wantErr: `invalid --set "region" (want key=value)`},
		{name: "missing key", items: []string{"=EU"}, wantErr: `invalid --set "=EU" (want key=value)`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseKeyValues("--set", tt.items)
			if tt.wantErr != "" {
				require.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReportNameFromFile(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{path: "config/reports/sales/sales-parameters-config.groovy", want: "sales"},
		{path: "sales-parameters-config.groovy", want: "sales"},
		{path: "monthly-totals-parameters-config.groovy", want: "monthly-totals"},
		{path: "params.groovy", want: "params"},
		{path: "-parameters-config.groovy", want: "-parameters-config"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, reportNameFromFile(tt.path))
		})
	}
}

func TestRenderRows(t *testing.T) {
	cols := []string{"region", "amount"}
	rows := []map[string]any{
		{"region": "EU", "amount": 300},
		{"region": `West, "new"`, "amount": nil},
	}

	tests := []struct {
		format string
		want   []string
	}{
		{format: "csv", want: []string{"region,amount\n", "EU,300\n", `"West, ""new""",NULL`}},
		{format: "md", want: []string{"| region | amount |", "| --- | --- |", "| EU | 300 |"}},
		{format: "json", want: []string{`"region": "EU"`, `"amount": null`}},
		{format: "table", want: []string{"REGION", "AMOUNT", "EU", "NULL", "(2 rows)"}},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, renderRows(&buf, tt.format, cols, rows))
			for _, want := range tt.want {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestRenderRowsEmpty(t *testing.T) {
	for _, format := range []string{"table", "md"} {
		var buf bytes.Buffer
		require.NoError(t, renderRows(&buf, format, []string{"a"}, nil))
		assert.Equal(t, "(0 rows)\n", buf.String(), format)
	}
}

func TestDescribeDSLError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "syntax",
			err:  &dsl.SyntaxError{Pos: dsl.Position{Line: 3, Column: 7}, Message: "unexpected '}'"},
			want: "chart.groovy:3:7: syntax error: unexpected '}'",
		},
		{
			name: "semantic with position",
			err:  &dsl.SemanticError{Pos: dsl.Position{Line: 2, Column: 5}, Dialect: dsl.DialectChart, Message: "series needs a field"},
			want: "chart.groovy:2:5: series needs a field",
		},
		{
			name: "semantic without position",
			err:  &dsl.SemanticError{Dialect: dsl.DialectChart, Message: "no chart block"},
			want: "chart.groovy: no chart block",
		},
		{
			name: "other",
			err:  errors.New("boom"),
			want: "chart.groovy: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.EqualError(t, describeDSLError("chart.groovy", tt.err), tt.want)
		})
	}
}
