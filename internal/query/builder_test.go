package query

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kyleking/timesheet-sql/internal/errors"
	"github.com/kyleking/timesheet-sql/internal/schema"
)

func newTestBuilder(t *testing.T) *Builder {
	t.Helper()

	b, err := NewBuilder(schema.Timesheet(), schema.TimesheetRoles(), "sample_table")
	require.NoError(t, err)

	return b
}

func TestBuildAggregations(t *testing.T) {
	b := newTestBuilder(t)

	tests := []struct {
		name   string
		intent Intent
		want   string
	}{
		{
			name:   "unset defaults to list of all columns",
			intent: Intent{},
			want:   "SELECT *\nFROM sample_table;",
		},
		{
			name:   "list with projection",
			intent: Intent{Aggregation: AggregationList, Select: schema.ColResourceName},
			want:   "SELECT \"Resource Name\"\nFROM sample_table;",
		},
		{
			name:   "count rows",
			intent: Intent{Aggregation: AggregationCount},
			want:   "SELECT COUNT(*) AS cnt\nFROM sample_table;",
		},
		{
			name:   "count distinct column",
			intent: Intent{Aggregation: AggregationCount, Select: schema.ColResourceID},
			want:   "SELECT COUNT(DISTINCT \"Resource ID\") AS cnt\nFROM sample_table;",
		},
		{
			name:   "count distinct days",
			intent: Intent{Aggregation: AggregationCountDistinctDays},
			want:   "SELECT COUNT(DISTINCT \"Actual Date\") AS days\nFROM sample_table;",
		},
		{
			name:   "sum defaults to posted hours",
			intent: Intent{Aggregation: AggregationSum},
			want:   "SELECT SUM(\"Posted Hours\") AS total\nFROM sample_table;",
		},
		{
			name:   "select single",
			intent: Intent{Aggregation: AggregationSelectSingle},
			want:   "SELECT DISTINCT \"Project Manager\"\nFROM sample_table;",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.Build(&tt.intent)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildFiltersJoinedWithAnd(t *testing.T) {
	b := newTestBuilder(t)

	got, err := b.Build(&Intent{
		Aggregation: AggregationCountDistinctDays,
		Select:      schema.ColActualDate,
		Filters: []Filter{
			{Column: schema.ColResourceID, Op: OpEq, Value: Literal("HY_RR_01")},
			{Column: schema.ColPostedDate, Op: OpGt, Value: ColumnRef(schema.ColActualDate)},
			{Column: schema.ColResourceRate, Op: OpGe, Value: Literal("40.5")},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "SELECT COUNT(DISTINCT \"Actual Date\") AS days\n"+
		"FROM sample_table\n"+
		"WHERE \"Resource ID\" = 'HY_RR_01' AND \"Posted Date\" > \"Actual Date\" AND \"Resource Rate\" >= '40.5';", got)
}

func TestBuildNumericFilterOnTextColumnCasts(t *testing.T) {
	b, err := NewBuilder(textRateCatalog(t), schema.TimesheetRoles(), "sample_table")
	require.NoError(t, err)

	intent := &Intent{
		Aggregation: AggregationList,
		Filters: []Filter{
			{Column: schema.ColResourceRate, Op: OpGt, Value: Literal("50"), Source: SourceNumeric},
			{Column: schema.ColPostedHours, Op: OpLe, Value: Literal("8"), Source: SourceNumeric},
		},
	}

	got, err := b.Build(intent)
	require.NoError(t, err)

	assert.Equal(t, "SELECT *\nFROM sample_table\n"+
		"WHERE TRY_CAST(\"Resource Rate\" AS DOUBLE) > '50' AND \"Posted Hours\" <= '8';", got)
}

func TestQuoteLiteral(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"50", "'50'"},
		{"HY_RR_01", "'HY_RR_01'"},
		{"2025-11", "'2025-11'"},
		{"Project A", "'Project A'"},
		{"O'Brien", "'O''Brien'"},
		{"", "''"},
		{"x' OR '1'='1", "'x'' OR ''1''=''1'"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, QuoteLiteral(tt.in), tt.in)
	}
}

func TestBuildQuotedLookingLiteralStaysLiteral(t *testing.T) {
	b := newTestBuilder(t)

	// a literal shaped like an identifier must not be emitted as one
	got, err := b.Build(&Intent{Filters: []Filter{
		{Column: schema.ColProjectName, Op: OpEq, Value: Literal(`"Project Manager"`)},
	}})
	require.NoError(t, err)
	assert.Contains(t, got, `"Project Name" = '"Project Manager"'`)
}

func TestBuildValidationErrors(t *testing.T) {
	b := newTestBuilder(t)

	tests := []struct {
		name   string
		intent *Intent
		msg    string
	}{
		{"nil intent", nil, "intent is nil"},
		{"unknown select", &Intent{Select: "Salary"}, "unknown column"},
		{"unknown filter column", &Intent{Filters: []Filter{{Column: "Salary", Op: OpEq, Value: Literal("1")}}}, "unknown column"},
		{"unknown column reference", &Intent{Filters: []Filter{
			{Column: schema.ColPostedDate, Op: OpGt, Value: ColumnRef("1; DROP TABLE sample_table")},
		}}, "unknown column"},
		{"bad operator", &Intent{Filters: []Filter{{Column: schema.ColResourceRate, Op: "LIKE", Value: Literal("1")}}}, "unsupported operator"},
		{"bad value kind", &Intent{Filters: []Filter{{Column: schema.ColResourceRate, Op: OpEq, Value: Value{Kind: 7}}}}, "unknown value kind"},
		{"sum of text", &Intent{Aggregation: AggregationSum, Select: schema.ColProjectName}, "non-numeric"},
		{"unknown aggregation", &Intent{Aggregation: "median"}, "unknown aggregation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Build(tt.intent)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
			assert.ErrorContains(t, err, tt.msg)
		})
	}
}

func TestNewBuilderRejectsBadTable(t *testing.T) {
	_, err := NewBuilder(schema.Timesheet(), schema.TimesheetRoles(), "sample_table; DROP TABLE x")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))

	b, err := NewBuilder(schema.Timesheet(), schema.TimesheetRoles(), "timesheets_2025")
	require.NoError(t, err)
	assert.Equal(t, "timesheets_2025", b.Table())
}

type sqlToken struct {
	kind string // literal, ident, other
	text string
}

// scanSQL splits a statement into string literals, quoted identifiers and
// everything else, decoding doubled quotes. It fails on an unterminated token.
func scanSQL(sql string) ([]sqlToken, error) {
	var (
		tokens []sqlToken
		other  strings.Builder
	)

	flush := func() {
		if other.Len() > 0 {
			tokens = append(tokens, sqlToken{kind: "other", text: other.String()})
			other.Reset()
		}
	}

	for i := 0; i < len(sql); i++ {
		c := sql[i]
		if c != '\'' && c != '"' {
			other.WriteByte(c)
			continue
		}

		flush()

		kind := "literal"
		if c == '"' {
			kind = "ident"
		}

		var body strings.Builder

		closed := false

		for i++; i < len(sql); i++ {
			if sql[i] != c {
				body.WriteByte(sql[i])
				continue
			}

			if i+1 < len(sql) && sql[i+1] == c {
				body.WriteByte(c)
				i++

				continue
			}

			closed = true

			break
		}

		if !closed {
			return nil, fmt.Errorf("unterminated %s starting in %q", kind, sql)
		}

		tokens = append(tokens, sqlToken{kind: kind, text: body.String()})
	}

	flush()

	return tokens, nil
}

func TestBuildLiteralBoundariesSurviveCraftedInput(t *testing.T) {
	b := newTestBuilder(t)

	payloads := []string{
		"O'Brien",
		"x' OR '1'='1",
		"'; DROP TABLE sample_table; --",
		"''",
		"a''b'",
		`" OR "Project Name" = "`,
		"tab\tnewline\n'quote",
	}

	for _, payload := range payloads {
		t.Run(payload, func(t *testing.T) {
			sql, err := b.Build(&Intent{
				Aggregation: AggregationList,
				Filters: []Filter{
					{Column: schema.ColResourceName, Op: OpEq, Value: Literal(payload)},
					{Column: schema.ColFinancialPeriod, Op: OpEq, Value: Literal("2025-11")},
				},
			})
			require.NoError(t, err)

			tokens, err := scanSQL(sql)
			require.NoError(t, err)

			var literals []string

			for _, tok := range tokens {
				if tok.kind == "literal" {
					literals = append(literals, tok.text)
				}
			}

			assert.Equal(t, []string{payload, "2025-11"}, literals, "each value is exactly one literal")

			last := tokens[len(tokens)-1]
			assert.Equal(t, sqlToken{kind: "other", text: ";"}, last, "statement ends after the final literal")
			assert.Equal(t, 1, strings.Count(strings.Join(otherTexts(tokens), ""), ";"), "no statement break outside literals")
		})
	}
}

func otherTexts(tokens []sqlToken) []string {
	var out []string

	for _, tok := range tokens {
		if tok.kind == "other" {
			out = append(out, tok.text)
		}
	}

	return out
}
