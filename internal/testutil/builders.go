package testutil

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/kyleking/timesheet-sql/internal/schema"
)

// Row is one timesheet line keyed by column name
type Row map[string]string

// RowOption is a functional option for configuring test rows
type RowOption func(Row)

// WithProject sets the project id, name and manager
func WithProject(id, name, manager string) RowOption {
	return func(r Row) {
		r[schema.ColProjectID] = id
		r[schema.ColProjectName] = name
		r[schema.ColProjectManager] = manager
	}
}

// WithResource sets the resource id, name and hourly rate
func WithResource(id, name, rate string) RowOption {
	return func(r Row) {
		r[schema.ColResourceID] = id
		r[schema.ColResourceName] = name
		r[schema.ColResourceRate] = rate
	}
}

// WithHours sets the posted hours
func WithHours(hours string) RowOption {
	return func(r Row) {
		r[schema.ColPostedHours] = hours
	}
}

// WithDates sets the actual date, posted date and financial period
func WithDates(actual, posted, period string) RowOption {
	return func(r Row) {
		r[schema.ColActualDate] = actual
		r[schema.ColPostedDate] = posted
		r[schema.ColFinancialPeriod] = period
	}
}

// WithColumn sets an arbitrary column
func WithColumn(column, value string) RowOption {
	return func(r Row) {
		r[column] = value
	}
}

// NewTestRow creates a row with sensible defaults and applies any provided options
func NewTestRow(opts ...RowOption) Row {
	row := Row{
		schema.ColProjectFinancialLocation:  "Hyderabad",
		schema.ColProjectID:                 TestProjectID,
		schema.ColProjectName:               TestProjectName,
		schema.ColProjectManager:            TestProjectManager,
		schema.ColResourceName:              TestResourceName,
		schema.ColResourceID:                TestResourceID,
		schema.ColResourceFinancialLocation: "Hyderabad",
		schema.ColPostedHours:               TestPostedHours,
		schema.ColProjectTaskName:           "Development",
		schema.ColProjectTaskID:             "T-01",
		schema.ColActualDate:                TestActualDate,
		schema.ColPostedDate:                TestPostedDate,
		schema.ColFinancialPeriod:           TestPeriod,
		schema.ColResourceFinancialDept:     "Engineering",
		schema.ColProjectFinancialDept:      "Delivery",
		schema.ColProjectClass:              "Billable",
		schema.ColTimesheetWeekActual:       "2025-W45",
		schema.ColTimesheetWeekPosted:       "2025-W45",
		schema.ColResourceRate:              TestResourceRate,
		schema.ColProjectRate:               "70",
		schema.ColResourcePrimaryRole:       "Engineer",
		schema.ColResourceProjectRole:       "Developer",
		schema.ColResourceCurrency:          "USD",
	}

	for _, opt := range opts {
		opt(row)
	}

	return row
}

// WriteTimesheetCSV writes rows under the full timesheet header and returns the path
func WriteTimesheetCSV(t *testing.T, rows ...Row) string {
	t.Helper()

	header := schema.Timesheet().Names()
	path := filepath.Join(t.TempDir(), "timesheet.csv")

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create fixture: %v", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		t.Fatalf("failed to write header: %v", err)
	}

	for _, row := range rows {
		record := make([]string, len(header))
		for i, col := range header {
			record[i] = row[col]
		}

		if err := w.Write(record); err != nil {
			t.Fatalf("failed to write row: %v", err)
		}
	}

	w.Flush()

	if err := w.Error(); err != nil {
		t.Fatalf("failed to flush fixture: %v", err)
	}

	return path
}

// SampleRows is a small dataset covering two projects and three resources
func SampleRows() []Row {
	return []Row{
		NewTestRow(),
		NewTestRow(WithHours("6.5"), WithDates("2025-11-04", "2025-11-06", "2025-11")),
		NewTestRow(
			WithResource("HY_RR_02", "Karthik Subramanian", "48"),
			WithDates("2025-10-28", "2025-10-30", "2025-10"),
		),
		NewTestRow(
			WithProject("PRJ-0002", "Ledger Migration", "Daniel O'Brien"),
			WithResource("HY_RR_03", "Anika Verma", "62.5"),
			WithHours("4"),
		),
	}
}
