package query

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kyleking/timesheet-sql/internal/errors"
	"github.com/kyleking/timesheet-sql/internal/logging"
	"github.com/kyleking/timesheet-sql/internal/nameindex"
	"github.com/kyleking/timesheet-sql/internal/schema"
)

func newTestTranslator(t *testing.T, set *nameindex.Set, logger *logging.Logger) *Translator {
	t.Helper()

	resolver := schema.NewResolver(schema.Timesheet(), schema.TimesheetKeywords())

	parser, err := NewParser(resolver, schema.TimesheetRoles(), nameindex.NewHolder(set), logger)
	require.NoError(t, err)

	return NewTranslator(parser, newTestBuilder(t), logger)
}

func TestTranslateEndToEnd(t *testing.T) {
	tr := newTestTranslator(t, ngramSet(t), nil)

	tests := []struct {
		question string
		want     string
	}{
		{
			"total posted hours for project A in 2025-11",
			"SELECT SUM(\"Posted Hours\") AS total\nFROM sample_table\nWHERE \"Financial Period (Posted Date)\" = '2025-11';",
		},
		{
			"list all entries where resource rate is greater than 50",
			"SELECT *\nFROM sample_table\nWHERE \"Resource Rate\" > '50';",
		},
		{
			"for how many days the resource logged hours for a date later than the actual date for the resource with ID HY_RR_01",
			"SELECT COUNT(DISTINCT \"Actual Date\") AS days\nFROM sample_table\n" +
				"WHERE \"Resource ID\" = 'HY_RR_01' AND \"Posted Date\" > \"Actual Date\";",
		},
		{
			"Who is the project manager of Ramyashree Raghavarapu?",
			"SELECT DISTINCT \"Project Manager\"\nFROM sample_table\nWHERE \"Resource Name\" = 'Ramyashree Raghavarapu';",
		},
		{
			"how many resources are there?",
			"SELECT COUNT(DISTINCT \"Resource ID\") AS cnt\nFROM sample_table;",
		},
		{
			"show me all the data for project B",
			"SELECT *\nFROM sample_table;",
		},
	}

	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			got, err := tr.Translate(context.Background(), tt.question)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.SQL)
			assert.Equal(t, tt.question, got.Question)
		})
	}
}

func TestTranslateEntityIDAlwaysPresent(t *testing.T) {
	tr := newTestTranslator(t, ngramSet(t), nil)

	questions := []string{
		"show rows for HY_RR_01",
		"total posted hours HY_RR_01 in 2025-11",
		"how many days HY_RR_01 logged after the actual date",
		"who is the project manager for HY_RR_01",
		"HY_RR_01",
	}

	for _, q := range questions {
		got, err := tr.Translate(context.Background(), q)
		require.NoError(t, err)
		assert.Contains(t, got.SQL, `"Resource ID" = 'HY_RR_01'`, q)
	}
}

func TestTranslateAssignsRequestID(t *testing.T) {
	var buf bytes.Buffer

	logger := logging.NewLoggerTo(&buf, logging.DebugLevel, "text")
	tr := newTestTranslator(t, nil, logger)

	first, err := tr.Translate(context.Background(), "list entries")
	require.NoError(t, err)

	second, err := tr.Translate(context.Background(), "list entries")
	require.NoError(t, err)

	_, err = uuid.Parse(first.RequestID)
	require.NoError(t, err)
	assert.NotEqual(t, first.RequestID, second.RequestID)
	assert.Equal(t, first.SQL, second.SQL, "translation is deterministic")

	assert.Contains(t, buf.String(), "request_id="+first.RequestID)
	assert.Contains(t, buf.String(), "Parsed question")
}

func TestTranslateRejectsEmptyQuestion(t *testing.T) {
	tr := newTestTranslator(t, nil, nil)

	_, err := tr.Translate(context.Background(), "   ")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
	assert.NotEmpty(t, apperrors.GetSuggestions(err))
}
