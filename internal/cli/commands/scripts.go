package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/reportdsl/internal/project"
	"github.com/leapstack-labs/reportdsl/internal/store"
	"github.com/leapstack-labs/reportdsl/pkg/dsl"
)

// NewScriptsCommand creates the scripts command group.
func NewScriptsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "scripts",
		Aliases: []string{"script"},
		Short:   "Manage report scripts in the config directory",
		Long: `List, show and save report scripts under config_dir.

Scripts live at reports/<report>/<report>-<kind>-config.groovy where kind is
parameters, tabulator, chart or pivot. Every save is recorded in the script
history unless state_path is "none".`,
	}

	cmd.AddCommand(newScriptsListCommand())
	cmd.AddCommand(newScriptsShowCommand())
	cmd.AddCommand(newScriptsSaveCommand())
	cmd.AddCommand(newScriptsHistoryCommand())
	cmd.AddCommand(newScriptsRestoreCommand())
	return cmd
}

func newScriptsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List scripts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			fs := store.NewFileStore(store.Config{Root: cc.Cfg.ConfigDir, Logger: cc.Logger})
			scripts, err := fs.ListScripts(cmd.Context())
			if err != nil {
				return err
			}
			if cc.Cfg.Output == "json" {
				return renderJSON(cc.Out, scripts)
			}
			rows := make([]map[string]any, len(scripts))
			for i, s := range scripts {
				rows[i] = map[string]any{"path": s.Path, "report": s.Report, "dialect": string(s.Dialect), "size": s.Size}
			}
			return renderRows(cc.Out, cc.Cfg.Output, []string{"path", "report", "dialect", "size"}, rows)
		},
	}
}

func newScriptsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <path>",
		Short: "Print a script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			fs := store.NewFileStore(store.Config{Root: cc.Cfg.ConfigDir, Logger: cc.Logger})
			text, err := fs.LoadScript(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = io.WriteString(cc.Out, text)
			return err
		},
	}
}

func newScriptsSaveCommand() *cobra.Command {
	var (
		report string
		kind   string
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "save [path] <file|->",
		Short: "Check a script and save it into the config directory",
		Long: `Check a script and save it into the config directory. The destination is
either given as a path relative to config_dir or derived from --report and
--kind. Scripts with errors are refused unless --force is set.`,
		Example: `  reportdsl scripts save reports/sales/sales-chart-config.groovy chart.groovy
  reportdsl scripts save --report sales --kind chart - < chart.groovy`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			src := args[len(args)-1]
			dest := ""
			if len(args) == 2 {
				dest = args[0]
			} else {
				if report == "" || kind == "" {
					return errors.New("give a destination path or both --report and --kind")
				}
				d, ok := dsl.ParseDialect(kind)
				if !ok {
					return fmt.Errorf("unknown kind %q", kind)
				}
				if dest, err = store.ScriptPath(report, d); err != nil {
					return err
				}
			}

			text, err := readInput(cmd, src)
			if err != nil {
				return err
			}
			hint, _ := store.DialectOf(dest)
			checked := project.Check(dest, text, hint)
			if len(checked.Diagnostics) > 0 {
				printReport(cc.Err, NewStyles(cc.Err), checked)
			}
			if checked.HasErrors() && !force {
				return fmt.Errorf("%s has errors; use --force to save anyway", dest)
			}

			fs, cleanup, err := cc.OpenStore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			rev, err := fs.SaveScript(ctx, dest, text)
			if err != nil {
				return err
			}
			if rev != nil {
				_, _ = fmt.Fprintf(cc.Out, "saved %s (revision %s)\n", dest, rev.ID)
			} else {
				_, _ = fmt.Fprintf(cc.Out, "saved %s\n", dest)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&report, "report", "", "Report name for the destination path")
	cmd.Flags().StringVar(&kind, "kind", "", "Script kind: parameters, tabulator, chart or pivot")
	cmd.Flags().BoolVar(&force, "force", false, "Save even when the script has errors")
	return cmd
}

func newScriptsHistoryCommand() *cobra.Command {
	var prune int
	cmd := &cobra.Command{
		Use:   "history <path>",
		Short: "List saved revisions of a script, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			fs, cleanup, err := cc.OpenStore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()
			h := fs.History()
			if h == nil {
				return errors.New("script history is disabled")
			}

			if cmd.Flags().Changed("prune") {
				n, err := h.Prune(ctx, args[0], prune)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cc.Err, "pruned %d revisions\n", n)
			}

			revs, err := h.List(ctx, args[0])
			if err != nil {
				return err
			}
			if cc.Cfg.Output == "json" {
				return renderJSON(cc.Out, revs)
			}
			t := table.NewWriter()
			t.SetOutputMirror(cc.Out)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"ID", "Dialect", "Size", "Saved"})
			for _, r := range revs {
				t.AppendRow(table.Row{r.ID, r.Dialect, r.Size, r.CreatedAt.Local().Format("2006-01-02 15:04:05")})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().IntVar(&prune, "prune", 0, "Delete all but the newest N revisions first")
	return cmd
}

func newScriptsRestoreCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <revision-id>",
		Short: "Write a saved revision back to its script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			fs, cleanup, err := cc.OpenStore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			rev, err := fs.Restore(ctx, args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cc.Out, "restored %s from %s (new revision %s)\n", rev.Path, args[0], rev.ID)
			return nil
		},
	}
}
