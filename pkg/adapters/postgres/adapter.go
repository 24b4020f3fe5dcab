// Package postgres provides a PostgreSQL adapter for running report previews.
package postgres

import (
	"cmp"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/leapstack-labs/reportdsl/pkg/adapter"
)

// applicationName is reported to the server in pg_stat_activity.
const applicationName = "reportdsl-preview"

// Adapter runs previews against PostgreSQL through the pgx stdlib driver.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a PostgreSQL adapter. A nil logger discards output.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger, Style: adapter.PlaceholderDollar},
	}
}

// DialectName returns the SQL dialect for this adapter.
func (a *Adapter) DialectName() string {
	return "postgres"
}

// Connect opens the database and checks it answers. The configured schema
// becomes the search_path so unqualified fixture tables resolve.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	connCfg, err := pgx.ParseConfig(buildPostgresDSN(cfg))
	if err != nil {
		return fmt.Errorf("invalid postgres connection settings: %w", err)
	}
	connCfg.RuntimeParams["application_name"] = applicationName
	if cfg.Schema != "" {
		connCfg.RuntimeParams["search_path"] = cfg.Schema
	}

	a.Logger.Debug("connecting to postgres",
		slog.String("host", connCfg.Host),
		slog.Int("port", int(connCfg.Port)),
		slog.String("database", connCfg.Database))

	db := stdlib.OpenDB(*connCfg)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	a.DB = db
	a.Cfg = cfg
	return nil
}

// buildPostgresDSN renders cfg as a libpq keyword/value string. Options other
// than sslmode are passed through in key order.
func buildPostgresDSN(cfg adapter.Config) string {
	parts := []string{
		"host=" + dsnValue(cmp.Or(cfg.Host, "localhost")),
		"port=" + strconv.Itoa(cmp.Or(cfg.Port, 5432)),
		"dbname=" + dsnValue(cfg.Database),
		"sslmode=" + dsnValue(cmp.Or(cfg.Options["sslmode"], "disable")),
	}
	if cfg.Username != "" {
		parts = append(parts, "user="+dsnValue(cfg.Username))
	}
	if cfg.Password != "" {
		parts = append(parts, "password="+dsnValue(cfg.Password))
	}
	for _, k := range slices.Sorted(maps.Keys(cfg.Options)) {
		if k != "sslmode" {
			parts = append(parts, k+"="+dsnValue(cfg.Options[k]))
		}
	}
	return strings.Join(parts, " ")
}

var dsnEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// dsnValue quotes v when libpq would otherwise split or misread it.
func dsnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	return "'" + dsnEscaper.Replace(v) + "'"
}

// LoadCSV replaces table with the contents of a CSV file. The header row
// names the columns and every column is TEXT; rows are sent with COPY.
func (a *Adapter) LoadCSV(ctx context.Context, table string, path string) error {
	if a.DB == nil {
		return errors.New("database connection not established")
	}

	header, records, err := readCSV(path)
	if err != nil {
		return err
	}
	ident := tableIdentifier(table)

	defs := make([]string, len(header))
	for i, col := range header {
		defs[i] = pgx.Identifier{col}.Sanitize() + " TEXT"
	}
	if _, err := a.DB.ExecContext(ctx, "DROP TABLE IF EXISTS "+ident.Sanitize()); err != nil {
		return fmt.Errorf("failed to drop %s: %w", table, err)
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", ident.Sanitize(), strings.Join(defs, ", "))
	if _, err := a.DB.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("failed to create %s: %w", table, err)
	}

	conn, err := a.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	return conn.Raw(func(driverConn any) error {
		pgxConn, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", driverConn)
		}
		n, err := pgxConn.Conn().CopyFrom(ctx, ident, header, pgx.CopyFromRows(records))
		if err != nil {
			return fmt.Errorf("failed to copy rows into %s: %w", table, err)
		}
		a.Logger.Debug("loaded fixture", slog.String("table", table), slog.Int64("rows", n))
		return nil
	})
}

// tableIdentifier splits an optionally schema-qualified table name.
func tableIdentifier(table string) pgx.Identifier {
	return pgx.Identifier(strings.Split(table, "."))
}

// readCSV returns the header and the data rows of a CSV file. Empty cells
// become NULL.
func readCSV(path string) ([]string, [][]any, error) {
	f, err := os.Open(path) //nolint:gosec // fixture path comes from the command line
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	var records [][]any
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		row := make([]any, len(rec))
		for i, v := range rec {
			if v != "" {
				row[i] = v
			}
		}
		records = append(records, row)
	}
	return header, records, nil
}

var _ adapter.Adapter = (*Adapter)(nil)
