package schema

import (
	"regexp"
	"strings"
)

// Keyword maps a lowercase phrase onto a catalog column
type Keyword struct {
	Phrase string
	Column string
}

// KeywordMap is ordered; substring matching walks it front to back, so more
// specific phrases are listed before the single words they contain.
type KeywordMap []Keyword

// TimesheetKeywords is the vocabulary for the timesheet catalog
func TimesheetKeywords() KeywordMap {
	return KeywordMap{
		{"project manager", ColProjectManager},
		{"project name", ColProjectName},
		{"project id", ColProjectID},
		{"project class", ColProjectClass},
		{"resource name", ColResourceName},
		{"resource id", ColResourceID},
		{"resource rate", ColResourceRate},
		{"posted hours", ColPostedHours},
		{"posted date", ColPostedDate},
		{"actual date", ColActualDate},
		{"financial period", ColFinancialPeriod},
		{"manager", ColProjectManager},
		{"project", ColProjectName},
		{"resource", ColResourceName},
	}
}

// Resolver turns free-text phrases into catalog columns
type Resolver struct {
	catalog  *Catalog
	exact    map[string]string
	keywords KeywordMap
	tokens   [][]string
}

var wordPattern = regexp.MustCompile(`[a-z0-9]+`)

func tokenize(s string) []string {
	return wordPattern.FindAllString(strings.ToLower(s), -1)
}

// NewResolver binds a keyword map to a catalog. Keywords pointing at columns the
// catalog does not have are dropped.
func NewResolver(catalog *Catalog, keywords KeywordMap) *Resolver {
	r := &Resolver{
		catalog: catalog,
		exact:   make(map[string]string, len(keywords)),
	}

	for _, kw := range keywords {
		phrase := strings.ToLower(strings.TrimSpace(kw.Phrase))
		if phrase == "" || !catalog.Has(kw.Column) {
			continue
		}

		if _, seen := r.exact[phrase]; !seen {
			r.exact[phrase] = kw.Column
			r.keywords = append(r.keywords, Keyword{Phrase: phrase, Column: kw.Column})
		}
	}

	for _, name := range catalog.Names() {
		r.tokens = append(r.tokens, tokenize(name))
	}

	return r
}

// Catalog returns the catalog the resolver validates against
func (r *Resolver) Catalog() *Catalog {
	return r.catalog
}

// Resolve returns the column a phrase refers to. Rules, first hit wins: exact
// keyword, substring either way in keyword order, then any shared word with a
// column name in catalog order.
func (r *Resolver) Resolve(phrase string) (string, bool) {
	p := strings.ToLower(strings.TrimSpace(phrase))
	if p == "" {
		return "", false
	}

	if col, ok := r.exact[p]; ok {
		return col, true
	}

	for _, kw := range r.keywords {
		if strings.Contains(p, kw.Phrase) || strings.Contains(kw.Phrase, p) {
			return kw.Column, true
		}
	}

	words := tokenize(p)
	if len(words) == 0 {
		return "", false
	}

	wordSet := make(map[string]struct{}, len(words))
	for _, w := range words {
		wordSet[w] = struct{}{}
	}

	for i, colWords := range r.tokens {
		for _, w := range colWords {
			if _, ok := wordSet[w]; ok {
				return r.catalog.columns[i].Name, true
			}
		}
	}

	return "", false
}
