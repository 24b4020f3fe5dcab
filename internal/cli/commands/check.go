package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/reportdsl/internal/project"
	"github.com/leapstack-labs/reportdsl/internal/store"
	"github.com/leapstack-labs/reportdsl/internal/watch"
)

// CheckOptions holds options for the check command.
type CheckOptions struct {
	Watch bool
}

// NewCheckCommand creates the check command.
func NewCheckCommand() *cobra.Command {
	opts := &CheckOptions{}

	cmd := &cobra.Command{
		Use:   "check [file...]",
		Short: "Parse scripts and report diagnostics",
		Long: `Parse every given script, or every script under config_dir when none are
given. The dialect comes from the script's top-level block and is compared
with the one its file name suggests.

With --watch the config directory is watched and changed scripts are
checked again until interrupted.`,
		Example: `  reportdsl check
  reportdsl check reports/sales/sales-chart-config.groovy
  reportdsl check --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Re-check scripts when they change")
	return cmd
}

func runCheck(cmd *cobra.Command, args []string, opts *CheckOptions) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	styles := NewStyles(cc.Out)

	var reports []*project.Report
	if len(args) == 0 {
		reports, err = checkConfigDir(ctx, cc)
	} else {
		reports, err = checkFiles(args)
	}
	if err != nil {
		return err
	}

	failed, err := printReports(cc.Out, styles, cc.Cfg.Output, reports)
	if err != nil {
		return err
	}

	if opts.Watch {
		return watchScripts(ctx, cc, styles)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scripts have errors", failed, len(reports))
	}
	return nil
}

func checkConfigDir(ctx context.Context, cc *CommandContext) ([]*project.Report, error) {
	fs := store.NewFileStore(store.Config{Root: cc.Cfg.ConfigDir, Logger: cc.Logger})
	scripts, err := fs.ListScripts(ctx)
	if err != nil {
		return nil, err
	}
	reports := make([]*project.Report, 0, len(scripts))
	for _, s := range scripts {
		text, err := fs.LoadScript(ctx, s.Path)
		if err != nil {
			return nil, err
		}
		hint, _ := store.DialectOf(s.Path)
		reports = append(reports, project.Check(s.Path, text, hint))
	}
	return reports, nil
}

func checkFiles(paths []string) ([]*project.Report, error) {
	reports := make([]*project.Report, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		hint, _ := store.DialectOf(filepath.ToSlash(p))
		reports = append(reports, project.Check(p, string(data), hint))
	}
	return reports, nil
}

// printReports writes reports and returns how many have errors.
func printReports(w io.Writer, styles *Styles, format string, reports []*project.Report) (int, error) {
	failed := 0
	warnings := 0
	for _, r := range reports {
		if r.HasErrors() {
			failed++
		}
		for _, d := range r.Diagnostics {
			if d.Severity == project.SeverityWarning {
				warnings++
			}
		}
	}

	if format == "json" {
		return failed, renderJSON(w, reports)
	}

	for _, r := range reports {
		printReport(w, styles, r)
	}
	summary := fmt.Sprintf("%d scripts checked, %d with errors, %d warnings", len(reports), failed, warnings)
	if failed > 0 {
		_, _ = fmt.Fprintln(w, styles.Error.Render(summary))
	} else {
		_, _ = fmt.Fprintln(w, styles.Muted.Render(summary))
	}
	return failed, nil
}

func watchScripts(ctx context.Context, cc *CommandContext, styles *Styles) error {
	root := cc.Cfg.ConfigDir
	_, _ = fmt.Fprintln(cc.Err, styles.Muted.Render("watching "+root+" (Ctrl+C to stop)"))

	w := watch.New(watch.Config{
		Root:   root,
		Logger: cc.Logger,
		OnChange: func(_ context.Context, paths []string) {
			reports := make([]*project.Report, 0, len(paths))
			for _, p := range paths {
				data, err := os.ReadFile(p)
				if err != nil {
					cc.Logger.Warn("failed to read changed script", slog.String("path", p), slog.String("error", err.Error()))
					continue
				}
				rel, err := filepath.Rel(root, p)
				if err != nil {
					rel = p
				}
				rel = filepath.ToSlash(rel)
				hint, _ := store.DialectOf(rel)
				reports = append(reports, project.Check(rel, string(data), hint))
			}
			if len(reports) > 0 {
				_, _ = printReports(cc.Out, styles, cc.Cfg.Output, reports)
			}
		},
	})
	return w.Run(ctx)
}
