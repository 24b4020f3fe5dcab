package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/reportdsl/internal/cli/config"
	"github.com/leapstack-labs/reportdsl/internal/datasource"
	"github.com/leapstack-labs/reportdsl/internal/store"
	"github.com/leapstack-labs/reportdsl/pkg/adapter"
	"github.com/leapstack-labs/reportdsl/pkg/preview"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg    *config.Config
	Logger *slog.Logger
	Out    io.Writer
	Err    io.Writer
}

// NewCommandContext collects the config and logger stored by the root
// command. A command run on its own gets the defaults.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := config.GetConfig(ctx)
	if cfg == nil {
		var err error
		if cfg, err = config.LoadConfig("", nil); err != nil {
			return nil, err
		}
	}
	return &CommandContext{
		Cfg:    cfg,
		Logger: config.GetLogger(ctx),
		Out:    cmd.OutOrStdout(),
		Err:    cmd.ErrOrStderr(),
	}, nil
}

// OpenStore opens the script store over config_dir, with history unless
// state_path is "none". The returned cleanup must be called.
func (c *CommandContext) OpenStore(ctx context.Context) (*store.FileStore, func(), error) {
	var history *store.HistoryStore
	if c.Cfg.StatePath != config.NoHistory && c.Cfg.StatePath != "" {
		if c.Cfg.StatePath != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(c.Cfg.StatePath), 0o750); err != nil {
				return nil, nil, fmt.Errorf("failed to create state directory: %w", err)
			}
		}
		h, err := store.OpenHistory(ctx, c.Cfg.StatePath, c.Logger)
		if err != nil {
			return nil, nil, err
		}
		history = h
	}

	fs := store.NewFileStore(store.Config{Root: c.Cfg.ConfigDir, History: history, Logger: c.Logger})
	cleanup := func() {
		if history != nil {
			_ = history.Close()
		}
	}
	return fs, cleanup, nil
}

// Backends selects what OpenBackends wires.
type Backends struct {
	// Database connects the configured target for sql and script sources.
	Database bool
	// Fixtures are table=csv files loaded into the target after connecting.
	Fixtures map[string]string
}

// OpenBackends builds the preview executor. The router always serves
// backend previews when preview.backend_url is set; sql and script previews
// need the database. The SQL executor is returned for query-backed options
// and is nil without a database.
func (c *CommandContext) OpenBackends(ctx context.Context, b Backends) (*datasource.Router, *datasource.SQLExecutor, func(), error) {
	router := datasource.NewRouter()
	cleanup := func() {}

	if url := c.Cfg.Preview.BackendURL; url != "" {
		router.Handle(preview.KindBackend, preview.NewHTTPExecutor(url, c.Cfg.Preview.Timeout))
	}
	if !b.Database {
		return router, nil, cleanup, nil
	}

	a, err := c.connect(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	cleanup = func() { _ = a.Close() }

	if err := datasource.LoadFixtures(ctx, a, b.Fixtures); err != nil {
		cleanup()
		return nil, nil, nil, err
	}

	sqlExec := datasource.NewSQLExecutor(datasource.SQLConfig{
		Adapter: a,
		Limit:   c.Cfg.Preview.Limit,
		Logger:  c.Logger,
	})
	router.Handle(preview.KindSQL, sqlExec)
	router.Handle(preview.KindScript, datasource.NewScriptExecutor(datasource.ScriptConfig{
		SQL:    sqlExec,
		Target: c.Cfg.Target.TargetInfo(),
		Logger: c.Logger,
	}))
	return router, sqlExec, cleanup, nil
}

func (c *CommandContext) connect(ctx context.Context) (adapter.Adapter, error) {
	t := c.Cfg.Target
	c.Logger.Debug("connecting to target",
		slog.String("type", t.Type),
		slog.String("database", t.Database))
	if c.Cfg.Preview.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Cfg.Preview.Timeout)
		defer cancel()
	}
	return datasource.Open(ctx, t.AdapterConfig(), c.Logger)
}

// NewBridge wraps ex in a preview bridge using the configured limit.
func (c *CommandContext) NewBridge(ex preview.Executor) *preview.Bridge {
	return preview.NewBridge(preview.Config{
		Executor: ex,
		Limit:    c.Cfg.Preview.Limit,
		Logger:   c.Logger,
	})
}
