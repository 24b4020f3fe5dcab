package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

//go:embed migrations/*.sql
var migrations embed.FS

// Revision is one saved version of a script.
type Revision struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Dialect   string    `json:"dialect,omitempty"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
	// Content is only filled by Get.
	Content string `json:"content,omitempty"`
}

// HistoryStore records script revisions in SQLite.
type HistoryStore struct {
	db     *sql.DB
	path   string
	now    func() time.Time
	logger *slog.Logger
}

// OpenHistory opens (creating if needed) the revision database at path and
// migrates it. Use ":memory:" for a throwaway store.
func OpenHistory(ctx context.Context, path string, logger *slog.Logger) (*HistoryStore, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// Each connection to :memory: is its own database.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}

	h := &HistoryStore{db: db, path: path, now: time.Now, logger: logger}
	if err := h.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Debug("history store opened", slog.String("path", path))
	return h, nil
}

func (h *HistoryStore) migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, h.db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Version returns the applied migration version.
func (h *HistoryStore) Version(ctx context.Context) (int64, error) {
	return goose.GetDBVersionContext(ctx, h.db)
}

// Close closes the database.
func (h *HistoryStore) Close() error {
	if h.db != nil {
		return h.db.Close()
	}
	return nil
}

// Record stores content as a new revision of path.
func (h *HistoryStore) Record(ctx context.Context, path, dialect, content string) (*Revision, error) {
	rev := &Revision{
		ID:        uuid.NewString(),
		Path:      path,
		Dialect:   dialect,
		Size:      len(content),
		CreatedAt: h.now().UTC(),
	}
	_, err := h.db.ExecContext(ctx,
		`INSERT INTO script_revisions (id, path, dialect, content, size, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rev.ID, rev.Path, rev.Dialect, content, rev.Size, rev.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record revision: %w", err)
	}
	h.logger.Debug("recorded script revision", slog.String("path", path), slog.String("revision", rev.ID))
	return rev, nil
}

// List returns the revisions of path, newest first, without content.
func (h *HistoryStore) List(ctx context.Context, path string) ([]Revision, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT id, path, dialect, size, created_at FROM script_revisions WHERE path = ? ORDER BY created_at DESC, rowid DESC`,
		path,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list revisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	revs := []Revision{}
	for rows.Next() {
		var r Revision
		if err := rows.Scan(&r.ID, &r.Path, &r.Dialect, &r.Size, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan revision: %w", err)
		}
		revs = append(revs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating revisions: %w", err)
	}
	return revs, nil
}

// Get returns a revision with its content.
func (h *HistoryStore) Get(ctx context.Context, id string) (*Revision, error) {
	var r Revision
	err := h.db.QueryRowContext(ctx,
		`SELECT id, path, dialect, content, size, created_at FROM script_revisions WHERE id = ?`,
		id,
	).Scan(&r.ID, &r.Path, &r.Dialect, &r.Content, &r.Size, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Kind: "revision", Name: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get revision: %w", err)
	}
	return &r, nil
}

// Prune keeps the newest keep revisions of path and deletes the rest.
// It returns the number of deleted revisions.
func (h *HistoryStore) Prune(ctx context.Context, path string, keep int) (int64, error) {
	res, err := h.db.ExecContext(ctx, `
		DELETE FROM script_revisions
		WHERE path = ? AND id NOT IN (
			SELECT id FROM script_revisions WHERE path = ?
			ORDER BY created_at DESC, rowid DESC LIMIT ?
		)`, path, path, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune revisions: %w", err)
	}
	return res.RowsAffected()
}
