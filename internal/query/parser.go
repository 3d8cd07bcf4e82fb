package query

import (
	"context"
	"regexp"
	"sort"
	"strings"

	apperrors "github.com/kyleking/timesheet-sql/internal/errors"
	"github.com/kyleking/timesheet-sql/internal/logging"
	"github.com/kyleking/timesheet-sql/internal/nameindex"
	"github.com/kyleking/timesheet-sql/internal/schema"
)

// IndexSource hands out the name index set used for one parse.
// *nameindex.Holder satisfies it.
type IndexSource interface {
	Load() *nameindex.Set
}

// Parser reads questions into Intents using fixed rules over the catalog
type Parser struct {
	catalog  *schema.Catalog
	roles    schema.Roles
	resolver *schema.Resolver
	names    IndexSource
	numeric  numericRule
	logger   *logging.Logger
}

type numericRule struct {
	pattern *regexp.Regexp
	columns map[string]string
}

// NewParser creates a parser over the resolver's catalog. names may be nil, in
// which case "of <name>" clauses pass through unresolved.
func NewParser(resolver *schema.Resolver, roles schema.Roles, names IndexSource, logger *logging.Logger) (*Parser, error) {
	catalog := resolver.Catalog()

	if err := roles.Validate(catalog); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrTypeValidation, "column roles do not fit the catalog")
	}

	if names == nil {
		names = nameindex.NewHolder(nil)
	}

	if logger == nil {
		logger = logging.Discard()
	}

	return &Parser{
		catalog:  catalog,
		roles:    roles,
		resolver: resolver,
		names:    names,
		numeric:  newNumericRule(catalog, roles),
		logger:   logger,
	}, nil
}

// newNumericRule collects the phrases naming the rate and hours role columns.
// They are registered whatever type the catalog inferred; the builder casts
// non-numeric columns. Longer phrases come first so "resource rate" is
// preferred over "rate".
func newNumericRule(catalog *schema.Catalog, roles schema.Roles) numericRule {
	columns := make(map[string]string)

	for _, col := range []string{roles.ResourceRate, roles.PostedHours} {
		if catalog.Has(col) {
			columns[strings.ToLower(col)] = col
		}
	}

	phrases := make([]string, 0, len(columns))
	for p := range columns {
		phrases = append(phrases, p)
	}

	sort.Slice(phrases, func(i, j int) bool {
		if len(phrases[i]) != len(phrases[j]) {
			return len(phrases[i]) > len(phrases[j])
		}

		return phrases[i] < phrases[j]
	})

	return numericRule{pattern: buildNumericPattern(phrases), columns: columns}
}

// Parse reads text into an Intent. Every rule runs independently and filters
// are appended in rule order. Only a failing name lookup is an error.
func (p *Parser) Parse(ctx context.Context, text string) (*Intent, error) {
	raw := strings.TrimSpace(text)
	normalized := strings.NewReplacer("’", "'", "‘", "'").Replace(raw)
	lower := strings.ToLower(normalized)

	intent := &Intent{Raw: raw, Filters: []Filter{}}

	p.detectAggregation(intent, lower)
	p.extractEntityID(intent, normalized)

	if err := p.extractName(ctx, intent, normalized); err != nil {
		return nil, err
	}

	p.extractTemporal(intent, lower)
	p.extractPeriod(intent, normalized)
	p.extractNumeric(intent, lower)

	return intent, nil
}

func (p *Parser) detectAggregation(intent *Intent, lower string) {
	kind, end, ok := matchAggregation(lower)
	if !ok {
		return
	}

	intent.Aggregation = kind
	subject := subjectPhrase(lower[end:])

	switch kind {
	case AggregationCountDistinctDays:
		intent.Select = p.roles.ActualDate
	case AggregationCount:
		intent.Select = p.countColumn(subject)
	case AggregationSum:
		intent.Select = p.sumColumn(subject)
	case AggregationSelectSingle:
		intent.Select = p.singleColumn(subject)
	}
}

// countColumn picks the column counted distinctly. Names count by their ids;
// numeric columns and unknown subjects count rows.
func (p *Parser) countColumn(subject string) string {
	col, ok := p.resolver.Resolve(subject)
	if !ok {
		return ""
	}

	switch col {
	case p.roles.ResourceName:
		return p.roles.ResourceID
	case p.roles.ProjectName:
		return p.roles.ProjectID
	}

	if p.catalog.IsNumeric(col) {
		return ""
	}

	return col
}

func (p *Parser) sumColumn(subject string) string {
	if col, ok := p.resolver.Resolve(subject); ok && p.catalog.IsNumeric(col) {
		return col
	}

	return p.roles.PostedHours
}

func (p *Parser) singleColumn(subject string) string {
	if col, ok := p.resolver.Resolve(subject); ok {
		return col
	}

	return p.roles.ProjectManager
}

func (p *Parser) extractEntityID(intent *Intent, text string) {
	if m := entityIDPattern.FindStringSubmatch(text); m != nil {
		intent.Filters = append(intent.Filters, Filter{
			Column: p.roles.ResourceID,
			Op:     OpEq,
			Value:  Literal(m[1]),
			Source: SourceEntityID,
		})
	}
}

// extractName resolves a trailing "of <name>" against both name indexes. The
// filter goes to whichever entity scores higher; project wins ties.
func (p *Parser) extractName(ctx context.Context, intent *Intent, text string) error {
	name, ok := trailingName(text)
	if !ok {
		return nil
	}

	set := p.names.Load()

	project, err := set.Nearest(ctx, nameindex.EntityProject, name)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.ErrTypeEmbedding, "failed to resolve project name %q", name)
	}

	resource, err := set.Nearest(ctx, nameindex.EntityResource, name)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.ErrTypeEmbedding, "failed to resolve resource name %q", name)
	}

	winner, column := project, p.roles.ProjectName
	if resource.Score > project.Score {
		winner, column = resource, p.roles.ResourceName
	}

	p.logger.WithFields(map[string]any{
		"name":           name,
		"project":        project.Name,
		"project_score":  project.Score,
		"resource":       resource.Name,
		"resource_score": resource.Score,
		"column":         column,
		"confident":      winner.Confident,
	}).Debug("Resolved entity name")

	intent.Filters = append(intent.Filters, Filter{
		Column:    column,
		Op:        OpEq,
		Value:     Literal(winner.Value()),
		Source:    SourceName,
		Query:     name,
		Score:     winner.Score,
		Confident: winner.Confident,
	})

	return nil
}

func (p *Parser) extractTemporal(intent *Intent, lower string) {
	if temporalPattern.MatchString(lower) {
		intent.Filters = append(intent.Filters, Filter{
			Column: p.roles.PostedDate,
			Op:     OpGt,
			Value:  ColumnRef(p.roles.ActualDate),
			Source: SourceTemporal,
		})
	}
}

func (p *Parser) extractPeriod(intent *Intent, text string) {
	if period, ok := financialPeriod(text); ok {
		intent.Filters = append(intent.Filters, Filter{
			Column: p.roles.FinancialPeriod,
			Op:     OpEq,
			Value:  Literal(period),
			Source: SourcePeriod,
		})
	}
}

func (p *Parser) extractNumeric(intent *Intent, lower string) {
	if p.numeric.pattern == nil {
		return
	}

	for _, m := range p.numeric.pattern.FindAllStringSubmatch(lower, -1) {
		column, ok := p.numeric.columns[m[1]]
		if !ok {
			continue
		}

		op, ok := lookupComparison(m[2])
		if !ok {
			continue
		}

		intent.Filters = append(intent.Filters, Filter{
			Column: column,
			Op:     op,
			Value:  Literal(m[3]),
			Source: SourceNumeric,
		})
	}
}
