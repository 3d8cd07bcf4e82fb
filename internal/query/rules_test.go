package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregationRulesFirstHitWins(t *testing.T) {
	tests := []struct {
		text string
		want Aggregation
	}{
		{"how many days did she work", AggregationCountDistinctDays},
		{"number of days logged late", AggregationCountDistinctDays},
		{"how many entries are there", AggregationCount},
		{"count the rows for project a", AggregationCount},
		{"number of projects", AggregationCount},
		{"total hours for project a", AggregationSum},
		{"sum of posted hours", AggregationSum},
		{"amount billed in 2025-11", AggregationSum},
		{"list entries for 2025-11", AggregationList},
		{"show rows for hy_rr_01", AggregationList},
		{"display everything", AggregationList},
		{"who is the manager of project a", AggregationSelectSingle},
		{"who's the manager of project a", AggregationSelectSingle},
		{"what is the project class of project a", AggregationSelectSingle},
		{"hello there", AggregationNone},
		{"account details", AggregationNone},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, _, ok := matchAggregation(tt.text)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want != AggregationNone, ok)
		})
	}
}

func TestAggregationPriorityOrder(t *testing.T) {
	// each text carries triggers of several categories; the earliest rule wins
	tests := []struct {
		text string
		want Aggregation
	}{
		{"how many days in total", AggregationCountDistinctDays},
		{"show the total count", AggregationCount},
		{"list the total hours", AggregationSum},
		{"what is the list", AggregationList},
	}

	for _, tt := range tests {
		got, _, _ := matchAggregation(tt.text)
		assert.Equal(t, tt.want, got, tt.text)
	}

	kinds := make([]Aggregation, len(aggregationRules))
	for i, r := range aggregationRules {
		kinds[i] = r.kind
	}

	assert.Equal(t, []Aggregation{
		AggregationCountDistinctDays,
		AggregationCount,
		AggregationSum,
		AggregationList,
		AggregationSelectSingle,
	}, kinds)
}

func TestSubjectPhrase(t *testing.T) {
	tests := []struct {
		rest string
		want string
	}{
		{" posted hours for project a in 2025-11", "posted hours"},
		{" distinct resources are there?", "resources"},
		{" the project manager of ramya", "project manager"},
		{" resource financial department head name", "resource financial department"},
		{" the", ""},
		{" a b", ""},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, subjectPhrase(tt.rest), tt.rest)
	}
}

func TestTrailingName(t *testing.T) {
	tests := []struct {
		text string
		want string
		ok   bool
	}{
		{"Who is the project manager of Ramyashree Raghavarapu?", "Ramyashree Raghavarapu", true},
		{"number of days of Project A", "Project A", true},
		{"who is the manager of O'Brien-Smith ?", "O'Brien-Smith", true},
		{"number of entries", "", false},
		{"list of HY_RR_01", "", false},
		{"manager of the project, please", "", false},
		{"Manager OF project b", "project b", true},
		{"profile of", "", false},
	}

	for _, tt := range tests {
		got, ok := trailingName(tt.text)
		assert.Equal(t, tt.ok, ok, tt.text)
		assert.Equal(t, tt.want, got, tt.text)
	}
}

func TestFinancialPeriod(t *testing.T) {
	tests := []struct {
		text string
		want string
		ok   bool
	}{
		{"hours in 2025-11", "2025-11", true},
		{"hours on 2025-11-03", "2025-11", true},
		{"hours on 2025-11-03 for 2025-10", "2025-11", true},
		{"period 2025-13", "", false},
		{"period 2025-00", "", false},
		{"for November 2025", "2025-11", true},
		{"for sept 2024", "2024-09", true},
		{"for Dec. 2023", "2023-12", true},
		{"2025-11 and march 2024", "2025-11", true},
		{"may be later", "", false},
		{"november", "", false},
	}

	for _, tt := range tests {
		got, ok := financialPeriod(tt.text)
		assert.Equal(t, tt.ok, ok, tt.text)
		assert.Equal(t, tt.want, got, tt.text)
	}
}

func TestNumericPattern(t *testing.T) {
	pattern := buildNumericPattern([]string{"resource rate", "posted hours"})
	require.NotNil(t, pattern)

	tests := []struct {
		text string
		want [][]string // phrase, op, number
	}{
		{"resource rate >= 40", [][]string{{"resource rate", ">=", "40"}}},
		{"resource rate>40", [][]string{{"resource rate", ">", "40"}}},
		{"resource rate is at least 40.5", [][]string{{"resource rate", "at least", "40.5"}}},
		{"where resource rate is greater than or equal to 60", [][]string{{"resource rate", "greater than or equal to", "60"}}},
		{"posted hours under 4", [][]string{{"posted hours", "under", "4"}}},
		{"posted hours > 2 and resource rate < 100", [][]string{
			{"posted hours", ">", "2"},
			{"resource rate", "<", "100"},
		}},
		{"resource rate is 50", nil},
		{"resource rate greater than fifty", nil},
	}

	for _, tt := range tests {
		var got [][]string
		for _, m := range pattern.FindAllStringSubmatch(tt.text, -1) {
			got = append(got, m[1:])
		}

		assert.Equal(t, tt.want, got, tt.text)
	}

	assert.Nil(t, buildNumericPattern(nil))
}

func TestLookupComparison(t *testing.T) {
	op, ok := lookupComparison("greater  than")
	require.True(t, ok)
	assert.Equal(t, OpGt, op)

	op, ok = lookupComparison("at most")
	require.True(t, ok)
	assert.Equal(t, OpLe, op)

	_, ok = lookupComparison("roughly")
	assert.False(t, ok)
}
