package commands

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/reportdsl/pkg/params"
	"github.com/leapstack-labs/reportdsl/pkg/preview"
)

// PreviewOptions holds options for the preview command.
type PreviewOptions struct {
	Query   string
	Script  string
	Backend bool
	Name    string
	Set     []string
	Load    []string
	Limit   int
}

// NewPreviewCommand creates the preview command.
func NewPreviewCommand() *cobra.Command {
	opts := &PreviewOptions{}

	cmd := &cobra.Command{
		Use:   "preview <parameters-file>",
		Short: "Run a trial execution of a report data source",
		Long: `Validate parameter values against a reportParameters script, then run a
data source with the coerced values and print the first rows.

The data source is one of:
  --query FILE    SQL run against the configured target; :name and ${name}
                  placeholders bind parameter values
  --script FILE   Starlark script that assigns rows (and optionally columns)
  --backend       the remote execution backend at preview.backend_url

--load table=file.csv loads CSV fixtures into the target first.`,
		Example: `  reportdsl preview sales-parameters-config.groovy --query sales.sql --set region=EU
  reportdsl preview sales-parameters-config.groovy --script sales.star --load sales=testdata/sales.csv
  reportdsl preview sales-parameters-config.groovy --backend --name sales -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreview(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.Query, "query", "", "SQL file to run")
	cmd.Flags().StringVar(&opts.Script, "script", "", "Starlark file to run")
	cmd.Flags().BoolVar(&opts.Backend, "backend", false, "Run on the remote execution backend")
	cmd.Flags().StringVar(&opts.Name, "name", "", "Report name sent to the backend (default: from the file name)")
	cmd.Flags().StringArrayVar(&opts.Set, "set", nil, "Parameter value as id=value (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Load, "load", nil, "Load a CSV fixture as table=file.csv (repeatable)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Maximum rows to show (default: preview.limit)")
	cmd.MarkFlagsMutuallyExclusive("query", "script", "backend")
	cmd.MarkFlagsOneRequired("query", "script", "backend")
	return cmd
}

func runPreview(cmd *cobra.Command, path string, opts *PreviewOptions) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if opts.Limit != 0 {
		cfg := *cc.Cfg
		pc := *cfg.Preview
		pc.Limit = opts.Limit
		cfg.Preview = &pc
		cc.Cfg = &cfg
	}

	ds, err := previewDataSource(cmd, path, opts)
	if err != nil {
		return err
	}
	if ds.Kind == preview.KindBackend && cc.Cfg.Preview.BackendURL == "" {
		return errors.New("--backend needs preview.backend_url to be configured")
	}

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
	fixtures, err := parseKeyValues("--load", opts.Load)
	if err != nil {
		return err
	}

	res := params.NewForm(specs, time.Now()).Submit(toAny(raw))
	if !res.OK() {
		renderValidationErrors(cc.Err, res.Errors)
		return fmt.Errorf("%d invalid parameter values", len(res.Errors))
	}

	router, _, cleanup, err := cc.OpenBackends(ctx, Backends{
		Database: ds.Kind != preview.KindBackend,
		Fixtures: fixtures,
	})
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := cc.NewBridge(router).RunPreview(ctx, ds, res.Values)
	if err != nil {
		var execErr *preview.ExecutionError
		if errors.As(err, &execErr) {
			return fmt.Errorf("preview failed: %s", execErr.Message)
		}
		return err
	}

	if cc.Cfg.Output == "json" {
		return renderJSON(cc.Out, result)
	}
	if err := renderRows(cc.Out, cc.Cfg.Output, result.ReportColumnNames, result.ReportData); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cc.Err, "showing %d of %d rows (%d ms)\n", len(result.ReportData), result.TotalRows, result.ExecutionTimeMillis)
	return nil
}

func previewDataSource(cmd *cobra.Command, path string, opts *PreviewOptions) (preview.DataSource, error) {
	name := opts.Name
	if name == "" {
		name = reportNameFromFile(path)
	}
	switch {
	case opts.Query != "":
		q, err := readInput(cmd, opts.Query)
		if err != nil {
			return preview.DataSource{}, err
		}
		return preview.DataSource{Kind: preview.KindSQL, Query: q, Name: name}, nil
	case opts.Script != "":
		s, err := readInput(cmd, opts.Script)
		if err != nil {
			return preview.DataSource{}, err
		}
		return preview.DataSource{Kind: preview.KindScript, Script: s, Name: name}, nil
	case opts.Backend:
		return preview.DataSource{Kind: preview.KindBackend, Name: name}, nil
	default:
		return preview.DataSource{}, errors.New("one of --query, --script or --backend is required")
	}
}

// reportNameFromFile turns sales-parameters-config.groovy into sales.
func reportNameFromFile(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if i := strings.Index(base, "-parameters-config"); i > 0 {
		return base[:i]
	}
	return base
}
