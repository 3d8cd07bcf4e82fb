package query

import (
	"regexp"
	"strings"

	apperrors "github.com/kyleking/timesheet-sql/internal/errors"
	"github.com/kyleking/timesheet-sql/internal/schema"
)

// Builder renders Intents as SQL against one table. Every identifier it emits
// is checked against the catalog first.
//
// Literals are inlined with quote doubling rather than bound as parameters.
// Callers executing the output against untrusted input should prefer a
// parameterized path.
type Builder struct {
	catalog *schema.Catalog
	roles   schema.Roles
	table   string
}

// NewBuilder creates a builder for table, which must be a plain identifier
func NewBuilder(catalog *schema.Catalog, roles schema.Roles, table string) (*Builder, error) {
	if !schema.ValidTableName(table) {
		return nil, apperrors.Newf(apperrors.ErrTypeValidation, "invalid table name %q", table).
			WithSuggestion("Table names may contain only letters, digits and underscores")
	}

	if err := roles.Validate(catalog); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrTypeValidation, "column roles do not fit the catalog")
	}

	return &Builder{catalog: catalog, roles: roles, table: table}, nil
}

// Table returns the table the builder targets
func (b *Builder) Table() string {
	return b.table
}

var bareLiteral = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// QuoteLiteral renders s as a single-quoted SQL string literal
func QuoteLiteral(s string) string {
	if bareLiteral.MatchString(s) {
		return "'" + s + "'"
	}

	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Build renders intent as one statement ending in a semicolon
func (b *Builder) Build(intent *Intent) (string, error) {
	if intent == nil {
		return "", apperrors.New(apperrors.ErrTypeValidation, "intent is nil")
	}

	selectList, err := b.selectList(intent)
	if err != nil {
		return "", err
	}

	where := make([]string, 0, len(intent.Filters))

	for i, f := range intent.Filters {
		clause, err := b.filterClause(f)
		if err != nil {
			return "", apperrors.Wrapf(err, apperrors.ErrTypeValidation, "filter %d", i+1)
		}

		where = append(where, clause)
	}

	var sb strings.Builder

	sb.WriteString("SELECT ")
	sb.WriteString(selectList)
	sb.WriteString("\nFROM ")
	sb.WriteString(b.table)

	if len(where) > 0 {
		sb.WriteString("\nWHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}

	sb.WriteString(";")

	return sb.String(), nil
}

func (b *Builder) selectList(intent *Intent) (string, error) {
	switch intent.Aggregation {
	case AggregationCountDistinctDays:
		col, err := b.column(intent.Select, b.roles.ActualDate)
		if err != nil {
			return "", err
		}

		return "COUNT(DISTINCT " + col + ") AS days", nil

	case AggregationCount:
		if intent.Select == "" {
			return "COUNT(*) AS cnt", nil
		}

		col, err := b.column(intent.Select, "")
		if err != nil {
			return "", err
		}

		return "COUNT(DISTINCT " + col + ") AS cnt", nil

	case AggregationSum:
		name := intent.Select
		if name == "" {
			name = b.roles.PostedHours
		}

		if b.catalog.Has(name) && !b.catalog.IsNumeric(name) {
			return "", apperrors.Newf(apperrors.ErrTypeValidation, "cannot sum non-numeric column %q", name)
		}

		col, err := b.column(name, "")
		if err != nil {
			return "", err
		}

		return "SUM(" + col + ") AS total", nil

	case AggregationSelectSingle:
		col, err := b.column(intent.Select, b.roles.ProjectManager)
		if err != nil {
			return "", err
		}

		return "DISTINCT " + col, nil

	case AggregationList, AggregationNone:
		if intent.Select == "" {
			return "*", nil
		}

		return b.column(intent.Select, "")

	default:
		return "", apperrors.Newf(apperrors.ErrTypeValidation, "unknown aggregation %q", intent.Aggregation)
	}
}

// column quotes name, or fallback when name is empty, after checking the catalog
func (b *Builder) column(name, fallback string) (string, error) {
	if name == "" {
		name = fallback
	}

	if !b.catalog.Has(name) {
		return "", apperrors.Newf(apperrors.ErrTypeValidation, "unknown column %q", name)
	}

	return schema.QuoteIdent(name), nil
}

func (b *Builder) filterClause(f Filter) (string, error) {
	lhs, err := b.column(f.Column, "")
	if err != nil {
		return "", err
	}

	if f.Source == SourceNumeric && !b.catalog.IsNumeric(f.Column) {
		lhs = "TRY_CAST(" + lhs + " AS DOUBLE)"
	}

	if !f.Op.Valid() {
		return "", apperrors.Newf(apperrors.ErrTypeValidation, "unsupported operator %q", f.Op)
	}

	var rhs string

	switch f.Value.Kind {
	case ValueColumn:
		if rhs, err = b.column(f.Value.Text, ""); err != nil {
			return "", err
		}
	case ValueLiteral:
		rhs = QuoteLiteral(f.Value.Text)
	default:
		return "", apperrors.Newf(apperrors.ErrTypeValidation, "unknown value kind %d", f.Value.Kind)
	}

	return lhs + " " + string(f.Op) + " " + rhs, nil
}
