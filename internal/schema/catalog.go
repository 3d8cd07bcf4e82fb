// Package schema holds the fixed column catalog of the timesheet table and the
// phrase-to-column resolution used when reading questions.
package schema

import (
	"fmt"
	"regexp"
	"strings"
)

// Column is a single catalog entry
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Catalog is an ordered, immutable list of the table's columns
type Catalog struct {
	columns []Column
	index   map[string]int
}

// NewCatalog builds a catalog preserving declaration order. Duplicate or empty
// column names are rejected.
func NewCatalog(columns []Column) (*Catalog, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("catalog must contain at least one column")
	}

	c := &Catalog{
		columns: make([]Column, len(columns)),
		index:   make(map[string]int, len(columns)),
	}

	for i, col := range columns {
		if col.Name == "" {
			return nil, fmt.Errorf("column %d has an empty name", i)
		}

		if _, dup := c.index[col.Name]; dup {
			return nil, fmt.Errorf("duplicate column %q", col.Name)
		}

		c.columns[i] = Column{Name: col.Name, Type: strings.ToUpper(col.Type)}
		c.index[col.Name] = i
	}

	return c, nil
}

// MustCatalog is NewCatalog for static declarations
func MustCatalog(columns []Column) *Catalog {
	c, err := NewCatalog(columns)
	if err != nil {
		panic(err)
	}

	return c
}

// Has reports whether name is a catalog column
func (c *Catalog) Has(name string) bool {
	_, ok := c.index[name]
	return ok
}

// Column returns the named column
func (c *Catalog) Column(name string) (Column, bool) {
	i, ok := c.index[name]
	if !ok {
		return Column{}, false
	}

	return c.columns[i], true
}

// Columns returns a copy of the columns in declaration order
func (c *Catalog) Columns() []Column {
	out := make([]Column, len(c.columns))
	copy(out, c.columns)

	return out
}

// Names returns the column names in declaration order
func (c *Catalog) Names() []string {
	names := make([]string, len(c.columns))
	for i, col := range c.columns {
		names[i] = col.Name
	}

	return names
}

// Len returns the number of columns
func (c *Catalog) Len() int {
	return len(c.columns)
}

var numericTypes = []string{
	"DOUBLE", "FLOAT", "REAL", "DECIMAL", "NUMERIC",
	"INTEGER", "BIGINT", "SMALLINT", "TINYINT", "HUGEINT", "UBIGINT", "UINTEGER",
}

// IsNumeric reports whether the named column holds numbers
func (c *Catalog) IsNumeric(name string) bool {
	col, ok := c.Column(name)
	if !ok {
		return false
	}

	for _, t := range numericTypes {
		if strings.HasPrefix(col.Type, t) {
			return true
		}
	}

	return false
}

// QuoteIdent renders name as a double-quoted SQL identifier
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidTableName reports whether name can be emitted unquoted as a table name
func ValidTableName(name string) bool {
	return tableNamePattern.MatchString(name)
}
