package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/reportdsl/internal/project"
	"github.com/leapstack-labs/reportdsl/pkg/dsl"
)

// NewParseCommand creates the parse command.
func NewParseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <dialect> <file>",
		Short: "Parse a DSL script and print its configuration as JSON",
		Long: `Parse a script in one of the report DSL dialects and print the typed
configuration it describes.

Dialects: parameters, tabulator, chart, pivot`,
		Example: `  reportdsl parse parameters reports/sales/sales-parameters-config.groovy
  reportdsl parse chart - < chart.groovy`,
		Args: cobra.ExactArgs(2),
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return []string{"parameters", "tabulator", "chart", "pivot"}, cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveDefault
		},
		RunE: runParse,
	}
}

func runParse(cmd *cobra.Command, args []string) error {
	d, ok := dsl.ParseDialect(args[0])
	if !ok {
		return fmt.Errorf("unknown dialect %q (want parameters, tabulator, chart or pivot)", args[0])
	}
	text, err := readInput(cmd, args[1])
	if err != nil {
		return err
	}

	cfg, err := project.ProjectScript(d, text)
	if err != nil {
		return describeDSLError(args[1], err)
	}
	return renderJSON(cmd.OutOrStdout(), cfg)
}

// readInput reads a file, or stdin for "-".
func readInput(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

// describeDSLError prefixes a DSL error with the file position.
func describeDSLError(path string, err error) error {
	var synErr *dsl.SyntaxError
	var semErr *dsl.SemanticError
	switch {
	case errors.As(err, &synErr):
		return fmt.Errorf("%s:%d:%d: syntax error: %s", path, synErr.Pos.Line, synErr.Pos.Column, synErr.Message)
	case errors.As(err, &semErr) && semErr.Pos.IsValid():
		return fmt.Errorf("%s:%d:%d: %s", path, semErr.Pos.Line, semErr.Pos.Column, semErr.Message)
	case errors.As(err, &semErr):
		return fmt.Errorf("%s: %s", path, semErr.Message)
	default:
		return fmt.Errorf("%s: %w", path, err)
	}
}
