// Package formatter renders query results and command output for the terminal.
package formatter

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/kyleking/timesheet-sql/internal/cache"
	apperrors "github.com/kyleking/timesheet-sql/internal/errors"
	"github.com/kyleking/timesheet-sql/internal/nameindex"
	"github.com/kyleking/timesheet-sql/internal/query"
	"github.com/kyleking/timesheet-sql/internal/schema"
	"github.com/kyleking/timesheet-sql/internal/storage"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatTable    OutputFormat = "table"
	FormatJSON     OutputFormat = "json"
	FormatCSV      OutputFormat = "csv"
	FormatMarkdown OutputFormat = "markdown"
)

// ParseFormat validates a --format value
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case FormatTable, "":
		return FormatTable, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatMarkdown, "md":
		return FormatMarkdown, nil
	default:
		return "", apperrors.Newf(apperrors.ErrTypeValidation, "unknown output format %q", s).
			WithSuggestion("Use one of: table, json, csv, markdown")
	}
}

// Formatter handles command output formatting
type Formatter struct{}

// NewFormatter creates a new formatter instance
func NewFormatter() *Formatter {
	return &Formatter{}
}

// FormatResult renders the rows of an executed statement
func (f *Formatter) FormatResult(result storage.Result, format OutputFormat) (string, error) {
	if format == FormatJSON {
		return f.toJSON(result)
	}

	if !result.Success {
		return "Error: " + result.Error, nil
	}

	t := f.newTable()

	header := make(table.Row, len(result.Columns))
	for i, col := range result.Columns {
		header[i] = col
	}

	t.AppendHeader(header)

	for _, values := range result.Rows {
		row := make(table.Row, len(values))
		for i, v := range values {
			row[i] = formatValue(v)
		}

		t.AppendRow(row)
	}

	switch format {
	case FormatCSV:
		return t.RenderCSV(), nil
	case FormatMarkdown:
		return t.RenderMarkdown(), nil
	}

	if len(result.Rows) == 0 {
		return "(0 rows)", nil
	}

	return fmt.Sprintf("%s\n(%s)", t.Render(), pluralize(len(result.Rows), "row")), nil
}

// FormatTranslation renders the generated SQL, optionally preceded by how the
// question was read
func (f *Formatter) FormatTranslation(tr *query.Translation, explain bool) string {
	if !explain {
		return tr.SQL
	}

	var b strings.Builder

	fmt.Fprintf(&b, "Question:    %s\n", tr.Question)
	fmt.Fprintf(&b, "Aggregation: %s\n", tr.Intent.Aggregation)

	sel := tr.Intent.Select
	if sel == "" {
		sel = "*"
	}

	fmt.Fprintf(&b, "Select:      %s\n", sel)

	if len(tr.Intent.Filters) == 0 {
		b.WriteString("Filters:     -\n")
	} else {
		t := f.newTable()
		t.AppendHeader(table.Row{"#", "Column", "Op", "Value", "Source", "Match"})

		for i, filter := range tr.Intent.Filters {
			t.AppendRow(table.Row{i + 1, filter.Column, string(filter.Op), f.filterValue(filter), filter.Source, f.filterMatch(filter)})
		}

		b.WriteString("Filters:\n")
		b.WriteString(t.Render())
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\n%s", tr.SQL)

	return b.String()
}

// FormatTranslationJSON renders a translation as indented JSON
func (f *Formatter) FormatTranslationJSON(tr *query.Translation) (string, error) {
	return f.toJSON(tr)
}

// RenderJSON renders any command output as indented JSON
func (f *Formatter) RenderJSON(v any) (string, error) {
	return f.toJSON(v)
}

func (f *Formatter) filterValue(filter query.Filter) string {
	if filter.Value.Kind == query.ValueColumn {
		return schema.QuoteIdent(filter.Value.Text)
	}

	return query.QuoteLiteral(filter.Value.Text)
}

func (f *Formatter) filterMatch(filter query.Filter) string {
	if filter.Source != query.SourceName {
		return "-"
	}

	if !filter.Confident {
		return fmt.Sprintf("%.3f (kept %q)", filter.Score, filter.Query)
	}

	return fmt.Sprintf("%.3f (from %q)", filter.Score, filter.Query)
}

// FormatMatch renders one name lookup
func (f *Formatter) FormatMatch(entity nameindex.Entity, m nameindex.Match, threshold float64) string {
	verdict := "below threshold, query kept as-is"
	if m.Confident {
		verdict = "match"
	}

	name := m.Name
	if name == "" {
		name = "-"
	}

	lines := []string{
		fmt.Sprintf("Entity:    %s", entity),
		fmt.Sprintf("Query:     %s", m.Query),
		fmt.Sprintf("Nearest:   %s", name),
		fmt.Sprintf("Score:     %.4f (threshold %.2f)", m.Score, threshold),
		fmt.Sprintf("Result:    %s (%s)", m.Value(), verdict),
	}

	return strings.Join(lines, "\n")
}

// FormatColumns lists the catalog with the phrases that resolve to each column
func (f *Formatter) FormatColumns(catalog *schema.Catalog, keywords schema.KeywordMap) string {
	phrases := make(map[string][]string)
	for _, kw := range keywords {
		phrases[kw.Column] = append(phrases[kw.Column], kw.Phrase)
	}

	t := f.newTable()
	t.AppendHeader(table.Row{"#", "Column", "Type", "Keywords"})

	for i, col := range catalog.Columns() {
		kw := strings.Join(phrases[col.Name], ", ")
		if kw == "" {
			kw = "-"
		}

		t.AppendRow(table.Row{i + 1, col.Name, col.Type, kw})
	}

	return t.Render()
}

// FormatStats renders database statistics and recent loads
func (f *Formatter) FormatStats(stats *storage.Stats, history []storage.LoadInfo) string {
	var lines []string

	lines = append(lines, "Table: "+stats.Table)

	if stats.TableExists {
		lines = append(lines, fmt.Sprintf("Rows: %d", stats.Rows))
		lines = append(lines, fmt.Sprintf("Columns: %d", stats.Columns))
	} else {
		lines = append(lines, "Rows: - (no data loaded)")
	}

	lines = append(lines, "Loads: "+strconv.FormatInt(stats.Loads, 10))

	if stats.LastLoadedAt != nil {
		lines = append(lines, "Last load: "+stats.LastLoadedAt.Local().Format(time.DateTime))
	}

	if stats.DatabaseSize > 0 {
		lines = append(lines, "Database size: "+formatBytes(stats.DatabaseSize))
	}

	if stats.LatestSchemaVersion > 0 {
		lines = append(lines, fmt.Sprintf("Schema: v%d of v%d", stats.SchemaVersion, stats.LatestSchemaVersion))
	}

	out := strings.Join(lines, "\n")

	if len(history) == 0 {
		return out
	}

	t := f.newTable()
	t.AppendHeader(table.Row{"Loaded", "Rows", "Duration", "Source"})

	for _, load := range history {
		t.AppendRow(table.Row{
			load.LoadedAt.Local().Format(time.DateTime),
			load.Rows,
			load.Duration.Round(time.Millisecond),
			load.Source,
		})
	}

	return out + "\n\n" + t.Render()
}

// FormatCacheStats summarizes the embedding cache
func (f *Formatter) FormatCacheStats(directory string, stats *cache.Stats) string {
	lines := []string{
		"Embedding cache: " + directory,
		fmt.Sprintf("Cached vectors: %d (%s)", stats.TotalEntries, formatBytes(stats.TotalSize)),
	}

	if stats.Hits+stats.Misses > 0 {
		lines = append(lines, fmt.Sprintf("Hit rate: %.0f%% (%d hits, %d misses)",
			stats.HitRate*100, stats.Hits, stats.Misses))
	}

	return strings.Join(lines, "\n")
}

func (f *Formatter) newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)

	return t
}

func (f *Formatter) toJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode output: %w", err)
	}

	return string(data), nil
}

// formatValue renders a single cell
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case string:
		return val
	default:
		return fmt.Sprintf("%v", v)
	}
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}

	return fmt.Sprintf("%d %ss", n, noun)
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}

	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
