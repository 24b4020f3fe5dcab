package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/reportdsl/internal/datasource"
	"github.com/leapstack-labs/reportdsl/pkg/params"
)

// ParamsOptions holds options for the params command.
type ParamsOptions struct {
	Set     []string
	Options bool
}

// NewParamsCommand creates the params command.
func NewParamsCommand() *cobra.Command {
	opts := &ParamsOptions{}

	cmd := &cobra.Command{
		Use:   "params <file>",
		Short: "Show a parameter form and validate values against it",
		Long: `Build a fresh form from a reportParameters script, resolving defaults as
of now, and print its fields. Values given with --set are coerced and
validated against the form; the command fails when any value is invalid.`,
		Example: `  reportdsl params sales-parameters-config.groovy
  reportdsl params sales-parameters-config.groovy --set topN=5 --set region=EU
  reportdsl params sales-parameters-config.groovy --options -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParams(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Set, "set", nil, "Submit a value as id=value (repeatable)")
	cmd.Flags().BoolVar(&opts.Options, "options", false, "Resolve query-backed select options against the target")
	return cmd
}

// paramsOutput is the JSON shape of the params command.
type paramsOutput struct {
	Form   *params.Form             `json:"form"`
	Values map[string]any           `json:"values,omitempty"`
	Errors []params.ValidationError `json:"errors,omitempty"`
}

func runParams(cmd *cobra.Command, path string, opts *ParamsOptions) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	text, err := readInput(cmd, path)
	if err != nil {
		return err
	}
	specs, err := params.ProjectScript(text)
	if err != nil {
		return describeDSLError(path, err)
	}
	raw, err := parseKeyValues("--set", opts.Set)
	if err != nil {
		return err
	}

	form := params.NewForm(specs, time.Now())
	if opts.Options {
		_, sqlExec, cleanup, err := cc.OpenBackends(ctx, Backends{Database: true})
		if err != nil {
			return err
		}
		defer cleanup()
		values := form.Values()
		for k, v := range raw {
			values[k] = v
		}
		if err := datasource.LoadOptions(ctx, sqlExec, specs, values); err != nil {
			return err
		}
	}

	out := paramsOutput{Form: form}
	var res params.Result
	if len(raw) > 0 {
		res = form.Submit(toAny(raw))
		out.Values = res.Values
		out.Errors = res.Errors
	}

	if cc.Cfg.Output == "json" {
		if err := renderJSON(cc.Out, out); err != nil {
			return err
		}
	} else {
		renderForm(cc.Out, form, res.Values)
		if len(res.Errors) > 0 {
			_, _ = fmt.Fprintln(cc.Out)
			renderValidationErrors(cc.Out, res.Errors)
		}
	}

	if len(res.Errors) > 0 {
		return fmt.Errorf("%d invalid parameter values", len(res.Errors))
	}
	return nil
}

func renderForm(w io.Writer, form *params.Form, submitted map[string]any) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := table.Row{"ID", "Label", "Type", "Control", "Required", "Default"}
	if submitted != nil {
		header = append(header, "Value")
	}
	t.AppendHeader(header)

	for _, f := range form.Fields {
		required := ""
		if f.Constraints.Required {
			required = "yes"
		}
		row := table.Row{f.ID, f.DisplayName(), f.Type, f.UI.Control, required, formatFieldValue(f.Value)}
		if submitted != nil {
			row = append(row, formatFieldValue(submitted[f.ID]))
		}
		t.AppendRow(row)

		if f.UI.Options != nil {
			for _, o := range f.UI.Options.Items {
				t.AppendRow(table.Row{"", fmt.Sprintf("  option %v", o.Value), o.Label})
			}
			if f.UI.Options.IsQuery() && len(f.UI.Options.Items) == 0 {
				t.AppendRow(table.Row{"", "  options from query", ""})
			}
		}
	}
	t.Render()
}

func renderValidationErrors(w io.Writer, errs []params.ValidationError) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Parameter", "Rule", "Message"})
	for _, e := range errs {
		t.AppendRow(table.Row{e.ParameterID, e.Rule, e.Message})
	}
	t.Render()
}

func formatFieldValue(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

// parseKeyValues parses key=value flag items.
func parseKeyValues(flag string, items []string) (map[string]string, error) {
	out := make(map[string]string, len(items))
	for _, item := range items {
		k, v, ok := strings.Cut(item, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid %s %q (want key=value)", flag, item)
		}
		out[k] = v
	}
	return out, nil
}

func toAny(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
