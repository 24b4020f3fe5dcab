package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/leapstack-labs/reportdsl/internal/project"
)

// renderRows writes rows in the given output format.
func renderRows(w io.Writer, format string, cols []string, rows []map[string]any) error {
	switch format {
	case "json":
		return renderJSON(w, rows)
	case "csv":
		return renderCSV(w, cols, rows)
	case "md", "markdown":
		return renderMarkdown(w, cols, rows)
	default:
		return renderTable(w, cols, rows)
	}
}

func renderTable(w io.Writer, cols []string, rows []map[string]any) error {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(cols))
	for i, col := range cols {
		header[i] = col
	}
	t.AppendHeader(header)

	for _, r := range rows {
		row := make(table.Row, len(cols))
		for i, col := range cols {
			row[i] = formatValue(r[col])
		}
		t.AppendRow(row)
	}

	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(rows))
	return nil
}

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderCSV(w io.Writer, cols []string, rows []map[string]any) error {
	header := make([]string, len(cols))
	for i, col := range cols {
		header[i] = escapeCSV(col)
	}
	_, _ = fmt.Fprintln(w, strings.Join(header, ","))

	for _, r := range rows {
		values := make([]string, len(cols))
		for i, col := range cols {
			values[i] = escapeCSV(formatValue(r[col]))
		}
		_, _ = fmt.Fprintln(w, strings.Join(values, ","))
	}
	return nil
}

func renderMarkdown(w io.Writer, cols []string, rows []map[string]any) error {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(cols, " | "))
	seps := make([]string, len(cols))
	for i := range seps {
		seps[i] = "---"
	}
	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(seps, " | "))

	for _, r := range rows {
		values := make([]string, len(cols))
		for i, col := range cols {
			values[i] = strings.ReplaceAll(formatValue(r[col]), "|", `\|`)
		}
		_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(values, " | "))
	}
	return nil
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}

func escapeCSV(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}

// Styles colors diagnostic output. Colors are dropped when the writer is
// not a terminal.
type Styles struct {
	Error   lipgloss.Style
	Warning lipgloss.Style
	Success lipgloss.Style
	Muted   lipgloss.Style
	Path    lipgloss.Style
}

// NewStyles creates styles for w.
func NewStyles(w io.Writer) *Styles {
	r := lipgloss.NewRenderer(w)
	return &Styles{
		Error:   r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Warning: r.NewStyle().Foreground(lipgloss.Color("11")),
		Success: r.NewStyle().Foreground(lipgloss.Color("10")),
		Muted:   r.NewStyle().Foreground(lipgloss.Color("8")),
		Path:    r.NewStyle().Bold(true),
	}
}

func getSeverityStyle(styles *Styles, sev project.Severity) lipgloss.Style {
	switch sev {
	case project.SeverityError:
		return styles.Error
	case project.SeverityWarning:
		return styles.Warning
	default:
		return styles.Muted
	}
}

// printReport writes one script's diagnostics as path:line:col lines.
func printReport(w io.Writer, styles *Styles, r *project.Report) {
	if len(r.Diagnostics) == 0 {
		_, _ = fmt.Fprintf(w, "%s %s\n", styles.Path.Render(r.Path), styles.Success.Render("ok ("+string(r.Dialect)+")"))
		return
	}
	for _, d := range r.Diagnostics {
		loc := r.Path
		if d.Pos.IsValid() {
			loc = fmt.Sprintf("%s:%d:%d", r.Path, d.Pos.Line, d.Pos.Column)
		}
		sev := getSeverityStyle(styles, d.Severity).Render(string(d.Severity))
		_, _ = fmt.Fprintf(w, "%s: %s: %s\n", styles.Path.Render(loc), sev, d.Message)
	}
}
