package commands

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/reportdsl/internal/datasource"
	"github.com/leapstack-labs/reportdsl/internal/server"
	"github.com/leapstack-labs/reportdsl/pkg/preview"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Port     int
	NoWatch  bool
	Offline  bool
	Fixtures []string
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API used by the configuration UI",
		Long: `Start the HTTP API used by the configuration UI. It projects scripts,
builds and validates parameter forms, runs previews, stores scripts and
streams check results for changed scripts on /api/events.

Unless --offline is set the configured target is connected for sql and
script previews and for query-backed select options.`,
		Example: `  reportdsl serve
  reportdsl serve --port 9000 --no-watch
  reportdsl serve --load sales=testdata/sales.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Port, "port", "p", 0, "Port to listen on (default: server.port)")
	cmd.Flags().BoolVar(&opts.NoWatch, "no-watch", false, "Do not watch scripts for changes")
	cmd.Flags().BoolVar(&opts.Offline, "offline", false, "Do not connect the target database")
	cmd.Flags().StringArrayVar(&opts.Fixtures, "load", nil, "Load a CSV fixture as table=file.csv (repeatable)")
	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	fixtures, err := parseKeyValues("--load", opts.Fixtures)
	if err != nil {
		return err
	}

	fs, closeStore, err := cc.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	router, sqlExec, closeBackends, err := cc.OpenBackends(ctx, Backends{
		Database: !opts.Offline,
		Fixtures: fixtures,
	})
	if err != nil {
		return err
	}
	defer closeBackends()

	var bridge *preview.Bridge
	if router.Has(preview.KindSQL) || router.Has(preview.KindBackend) {
		bridge = cc.NewBridge(router)
	}
	var options datasource.NamedQuerier
	if sqlExec != nil {
		options = sqlExec
	}

	port := cc.Cfg.Server.Port
	if opts.Port != 0 {
		port = opts.Port
	}
	watch := cc.Cfg.Server.Watch && !opts.NoWatch

	cc.Logger.Info("serving config directory",
		slog.String("config_dir", fs.Root()),
		slog.Bool("watch", watch),
		slog.Bool("history", fs.History() != nil))

	srv := server.New(server.Config{
		Store:   fs,
		Preview: bridge,
		Options: options,
		Port:    port,
		Watch:   watch,
		Logger:  cc.Logger,
	})
	return srv.Serve(ctx)
}
