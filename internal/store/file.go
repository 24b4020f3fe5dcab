// Package store persists DSL scripts and configuration documents under a
// config directory and keeps a revision history of saved scripts.
package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/leapstack-labs/reportdsl/pkg/dsl"
	"gopkg.in/yaml.v3"
)

// ScriptExt is the extension of DSL script files.
const ScriptExt = ".groovy"

// NotFoundError is returned when a script, document or revision does not exist.
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Name)
}

// PathError is returned for paths that escape the config directory.
type PathError struct {
	Path string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("path %q is outside the config directory", e.Path)
}

// Script describes a script file found under the config directory.
type Script struct {
	// Path is slash-separated and relative to the config directory.
	Path    string      `json:"path"`
	Report  string      `json:"report"`
	Dialect dsl.Dialect `json:"dialect,omitempty"`
	Size    int64       `json:"size"`
}

// Config holds FileStore configuration.
type Config struct {
	// Root is the config directory (required)
	Root string
	// History records a revision on every SaveScript (optional)
	History *HistoryStore
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// FileStore reads and writes scripts and documents under a root directory.
type FileStore struct {
	root    string
	history *HistoryStore
	logger  *slog.Logger
}

// NewFileStore creates a store rooted at cfg.Root.
func NewFileStore(cfg Config) *FileStore {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &FileStore{root: cfg.Root, history: cfg.History, logger: logger}
}

// Root returns the config directory.
func (s *FileStore) Root() string {
	return s.root
}

// History returns the revision store, or nil when history is disabled.
func (s *FileStore) History() *HistoryStore {
	return s.history
}

var dialectFiles = map[dsl.Dialect]string{
	dsl.DialectParameters: "parameters",
	dsl.DialectTabulator:  "tabulator",
	dsl.DialectChart:      "chart",
	dsl.DialectPivot:      "pivot",
}

// ScriptPath returns the conventional relative path of a report's script
// for dialect d: reports/{name}/{name}-{kind}-config.groovy.
func ScriptPath(report string, d dsl.Dialect) (string, error) {
	kind, ok := dialectFiles[d]
	if !ok {
		return "", fmt.Errorf("unknown dialect %q", d)
	}
	if report == "" || strings.ContainsAny(report, `/\`) || report == "." || report == ".." {
		return "", fmt.Errorf("invalid report name %q", report)
	}
	return "reports/" + report + "/" + report + "-" + kind + "-config" + ScriptExt, nil
}

// DialectOf infers a script's dialect from its file name.
func DialectOf(path string) (dsl.Dialect, bool) {
	base := strings.TrimSuffix(filepath.Base(path), ScriptExt)
	for d, kind := range dialectFiles {
		if strings.HasSuffix(base, "-"+kind+"-config") {
			return d, true
		}
	}
	return "", false
}

func (s *FileStore) resolve(rel string) (string, error) {
	clean := filepath.FromSlash(rel)
	if !filepath.IsLocal(clean) {
		return "", &PathError{Path: rel}
	}
	return filepath.Join(s.root, clean), nil
}

// LoadScript returns the text of the script at rel.
func (s *FileStore) LoadScript(_ context.Context, rel string) (string, error) {
	data, err := s.read("script", rel)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SaveScript writes text to rel, creating directories as needed, and
// records a revision when history is enabled.
func (s *FileStore) SaveScript(ctx context.Context, rel, text string) (*Revision, error) {
	if err := s.write(rel, []byte(text)); err != nil {
		return nil, err
	}
	s.logger.Info("saved script", slog.String("path", rel), slog.Int("bytes", len(text)))

	if s.history == nil {
		return nil, nil
	}
	d, _ := DialectOf(rel)
	rev, err := s.history.Record(ctx, filepath.ToSlash(rel), string(d), text)
	if err != nil {
		return nil, err
	}
	return rev, nil
}

// Restore writes the content of revision id back to its path. The restore
// itself is recorded as a new revision.
func (s *FileStore) Restore(ctx context.Context, id string) (*Revision, error) {
	if s.history == nil {
		return nil, errors.New("script history is disabled")
	}
	rev, err := s.history.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.SaveScript(ctx, rev.Path, rev.Content)
}

// LoadConfigDocument decodes the YAML document at rel into out.
func (s *FileStore) LoadConfigDocument(_ context.Context, rel string, out any) error {
	data, err := s.read("document", rel)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", rel, err)
	}
	return nil
}

// SaveConfigDocument encodes doc as YAML and writes it to rel.
func (s *FileStore) SaveConfigDocument(_ context.Context, rel string, doc any) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", rel, err)
	}
	return s.write(rel, data)
}

// ListScripts returns every script under the config directory, sorted by path.
func (s *FileStore) ListScripts(_ context.Context) ([]Script, error) {
	scripts := []Script{}
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != s.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ScriptExt {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		sc := Script{Path: filepath.ToSlash(rel), Report: reportName(rel), Size: info.Size()}
		sc.Dialect, _ = DialectOf(rel)
		scripts = append(scripts, sc)
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return scripts, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list scripts: %w", err)
	}
	sort.Slice(scripts, func(i, j int) bool { return scripts[i].Path < scripts[j].Path })
	return scripts, nil
}

// reportName is the directory holding a script under reports/, if any.
func reportName(rel string) string {
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) >= 3 && parts[0] == "reports" {
		return parts[1]
	}
	return ""
}

func (s *FileStore) read(kind, rel string) ([]byte, error) {
	path, err := s.resolve(rel)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &NotFoundError{Kind: kind, Name: rel}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", rel, err)
	}
	return data, nil
}

// write replaces the file at rel via a temp file and rename so readers never
// see a partial script.
func (s *FileStore) write(rel string, data []byte) error {
	path, err := s.resolve(rel)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", rel, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", rel, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", rel, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write %s: %w", rel, err)
	}
	return nil
}
