// Package query turns a natural-language question about the timesheet table
// into a typed Intent and renders that Intent as a single SQL statement.
package query

import (
	"fmt"
	"strings"
)

// Aggregation is the shape of the SELECT list
type Aggregation string

const (
	AggregationNone              Aggregation = ""
	AggregationCountDistinctDays Aggregation = "count-distinct-days"
	AggregationCount             Aggregation = "count"
	AggregationSum               Aggregation = "sum"
	AggregationList              Aggregation = "list"
	AggregationSelectSingle      Aggregation = "select-single"
)

func (a Aggregation) String() string {
	if a == AggregationNone {
		return "unset"
	}

	return string(a)
}

// Op is a comparison operator allowed in a filter
type Op string

const (
	OpEq Op = "="
	OpGt Op = ">"
	OpGe Op = ">="
	OpLt Op = "<"
	OpLe Op = "<="
)

// Valid reports whether o is one of the known operators
func (o Op) Valid() bool {
	switch o {
	case OpEq, OpGt, OpGe, OpLt, OpLe:
		return true
	default:
		return false
	}
}

// ValueKind separates literal values from column references on the right of a filter
type ValueKind int

const (
	ValueLiteral ValueKind = iota
	ValueColumn
)

func (k ValueKind) String() string {
	if k == ValueColumn {
		return "column"
	}

	return "literal"
}

// Value is the right-hand side of a filter
type Value struct {
	Kind ValueKind `json:"kind"`
	Text string    `json:"text"`
}

// Literal creates a literal value
func Literal(text string) Value {
	return Value{Kind: ValueLiteral, Text: text}
}

// ColumnRef creates a column-valued right-hand side
func ColumnRef(column string) Value {
	return Value{Kind: ValueColumn, Text: column}
}

// FilterSource records which rule produced a filter
type FilterSource string

const (
	SourceEntityID FilterSource = "entity-id"
	SourceName     FilterSource = "name"
	SourceTemporal FilterSource = "temporal"
	SourcePeriod   FilterSource = "period"
	SourceNumeric  FilterSource = "numeric"
)

// Filter is one `column op value` condition
type Filter struct {
	Column string       `json:"column"`
	Op     Op           `json:"op"`
	Value  Value        `json:"value"`
	Source FilterSource `json:"source"`

	// Set on name filters only
	Query     string  `json:"query,omitempty"`
	Score     float64 `json:"score,omitempty"`
	Confident bool    `json:"confident,omitempty"`
}

func (f Filter) String() string {
	if f.Value.Kind == ValueColumn {
		return fmt.Sprintf("%s %s [%s]", f.Column, f.Op, f.Value.Text)
	}

	return fmt.Sprintf("%s %s %q", f.Column, f.Op, f.Value.Text)
}

// Intent is the structured reading of a question
type Intent struct {
	Aggregation Aggregation `json:"aggregation"`
	// Select is the projected column; empty means * for list and COUNT(*) for count
	Select  string   `json:"select,omitempty"`
	Filters []Filter `json:"filters"`
	Raw     string   `json:"raw"`
}

// Summary renders the intent on one line for logs and --explain output
func (i *Intent) Summary() string {
	var b strings.Builder

	fmt.Fprintf(&b, "aggregation=%s", i.Aggregation)

	if i.Select != "" {
		fmt.Fprintf(&b, " select=%q", i.Select)
	}

	for _, f := range i.Filters {
		fmt.Fprintf(&b, " filter=(%s)", f)
	}

	return b.String()
}
