package query

import (
	"regexp"
	"strings"
	"unicode"
)

// aggregationRule pairs a trigger pattern with the aggregation it selects.
// Rules are tried in table order against the lowercased question and the
// first hit wins.
type aggregationRule struct {
	kind    Aggregation
	pattern *regexp.Regexp
}

var aggregationRules = []aggregationRule{
	{AggregationCountDistinctDays, regexp.MustCompile(`\bhow many days\b|\bnumber of days\b`)},
	{AggregationCount, regexp.MustCompile(`\bhow many\b|\bcount\b|\bnumber of\b`)},
	{AggregationSum, regexp.MustCompile(`\btotal of\b|\btotal\b|\bsum of\b|\bsum\b|\bamount of\b|\bamount\b`)},
	{AggregationList, regexp.MustCompile(`\blist\b|\bshow rows\b|\bshow\b|\bdisplay\b`)},
	{AggregationSelectSingle, regexp.MustCompile(`\bwho is\b|\bwho's\b|\bwhat is\b`)},
}

// matchAggregation returns the first matching rule and the end offset of its trigger
func matchAggregation(lower string) (Aggregation, int, bool) {
	for _, rule := range aggregationRules {
		if loc := rule.pattern.FindStringIndex(lower); loc != nil {
			return rule.kind, loc[1], true
		}
	}

	return AggregationNone, 0, false
}

var (
	entityIDPattern = regexp.MustCompile(`\b([A-Z]{1,5}_[A-Z]{1,5}_[0-9]{1,5})\b`)

	ofPattern       = regexp.MustCompile(`(?i)\bof\s+`)
	nameTailPattern = regexp.MustCompile(`^([A-Za-z0-9 '\-]+?)\s*[?.!]?\s*$`)

	temporalPattern = regexp.MustCompile(`\blater than\b|\bafter\b`)

	periodPattern    = regexp.MustCompile(`\b(\d{4})-(0[1-9]|1[0-2])\b`)
	monthYearPattern = regexp.MustCompile(
		`(?i)\b(january|february|march|april|may|june|july|august|september|october|november|december|` +
			`jan|feb|mar|apr|jun|jul|aug|sep|sept|oct|nov|dec)\.?\s+(\d{4})\b`)

	numberPattern = `(\d+(?:\.\d+)?)`
)

var monthNumbers = map[string]string{
	"january": "01", "jan": "01",
	"february": "02", "feb": "02",
	"march": "03", "mar": "03",
	"april": "04", "apr": "04",
	"may": "05",
	"june": "06", "jun": "06",
	"july": "07", "jul": "07",
	"august": "08", "aug": "08",
	"september": "09", "sep": "09", "sept": "09",
	"october": "10", "oct": "10",
	"november": "11", "nov": "11",
	"december": "12", "dec": "12",
}

// comparisonWords is ordered so that longer phrases are tried first
var comparisonWords = []struct {
	phrase string
	op     Op
}{
	{"greater than or equal to", OpGe},
	{"more than or equal to", OpGe},
	{"less than or equal to", OpLe},
	{"no less than", OpGe},
	{"no more than", OpLe},
	{"at least", OpGe},
	{"at most", OpLe},
	{"greater than", OpGt},
	{"more than", OpGt},
	{"higher than", OpGt},
	{"exceeds", OpGt},
	{"above", OpGt},
	{"over", OpGt},
	{"less than", OpLt},
	{"lower than", OpLt},
	{"fewer than", OpLt},
	{"below", OpLt},
	{"under", OpLt},
	{"equal to", OpEq},
	{"equals", OpEq},
	{">=", OpGe},
	{"<=", OpLe},
	{">", OpGt},
	{"<", OpLt},
	{"=", OpEq},
}

func lookupComparison(phrase string) (Op, bool) {
	phrase = strings.Join(strings.Fields(phrase), " ")
	for _, c := range comparisonWords {
		if c.phrase == phrase {
			return c.op, true
		}
	}

	return "", false
}

// buildNumericPattern matches `<column phrase> [is] <comparison> <number>` for
// the given column phrases. Returns nil when there are none.
func buildNumericPattern(phrases []string) *regexp.Regexp {
	if len(phrases) == 0 {
		return nil
	}

	quotedPhrases := make([]string, len(phrases))
	for i, p := range phrases {
		quotedPhrases[i] = regexp.QuoteMeta(p)
	}

	ops := make([]string, len(comparisonWords))
	for i, c := range comparisonWords {
		ops[i] = strings.ReplaceAll(regexp.QuoteMeta(c.phrase), " ", `\s+`)
	}

	return regexp.MustCompile(`\b(` + strings.Join(quotedPhrases, "|") + `)\b` +
		`(?:\s+(?:is|was|are|were))?\s*(` + strings.Join(ops, "|") + `)\s*` + numberPattern + `\b`)
}

// Words that end the subject phrase following an aggregation trigger
var subjectStopWords = map[string]struct{}{
	"are": {}, "is": {}, "was": {}, "were": {}, "for": {}, "of": {}, "in": {}, "on": {},
	"where": {}, "with": {}, "by": {}, "who": {}, "that": {}, "which": {}, "did": {},
	"does": {}, "do": {}, "has": {}, "have": {}, "had": {}, "logged": {}, "worked": {},
	"there": {}, "per": {}, "from": {}, "to": {}, "than": {}, "during": {}, "at": {},
	"and": {}, "under": {}, "since": {}, "between": {}, "when": {}, "after": {},
	"before": {}, "against": {}, "across": {}, "charged": {}, "billed": {},
}

// Words skipped before the subject phrase starts
var subjectLeadingWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "all": {}, "distinct": {}, "unique": {}, "of": {},
	"me": {}, "my": {}, "our": {}, "different": {},
}

const maxSubjectWords = 3

// subjectPhrase extracts the noun phrase right after an aggregation trigger,
// such as "posted hours" in "total posted hours for project a"
func subjectPhrase(rest string) string {
	words := strings.FieldsFunc(rest, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})

	i := 0
	for i < len(words) {
		if _, skip := subjectLeadingWords[words[i]]; !skip {
			break
		}
		i++
	}

	var phrase []string

	for ; i < len(words) && len(phrase) < maxSubjectWords; i++ {
		if _, stop := subjectStopWords[words[i]]; stop {
			break
		}

		phrase = append(phrase, words[i])
	}

	joined := strings.Join(phrase, " ")
	if len(joined) < 3 {
		return ""
	}

	return joined
}

// Words that own a following "of", as in "number of" or "total of"
var triggerOwnedOf = map[string]struct{}{
	"number": {}, "total": {}, "sum": {}, "amount": {}, "count": {}, "all": {},
}

// trailingName returns the name in a trailing `of <name>` clause. An "of" that
// belongs to an aggregation phrase is skipped.
func trailingName(text string) (string, bool) {
	for _, loc := range ofPattern.FindAllStringIndex(text, -1) {
		before := strings.Fields(strings.ToLower(text[:loc[0]]))
		if len(before) > 0 {
			if _, owned := triggerOwnedOf[before[len(before)-1]]; owned {
				continue
			}
		}

		m := nameTailPattern.FindStringSubmatch(text[loc[1]:])
		if m == nil {
			continue
		}

		if name := strings.TrimSpace(m[1]); name != "" {
			return name, true
		}
	}

	return "", false
}

// financialPeriod finds the first YYYY-MM period in text. A full date such as
// 2025-11-03 yields its month. A month name with a year is accepted when no
// numeric period is present.
func financialPeriod(text string) (string, bool) {
	if m := periodPattern.FindStringSubmatch(text); m != nil {
		return m[1] + "-" + m[2], true
	}

	if m := monthYearPattern.FindStringSubmatch(text); m != nil {
		return m[2] + "-" + monthNumbers[strings.ToLower(m[1])], true
	}

	return "", false
}
