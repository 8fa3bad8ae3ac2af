// Package dataset holds the in-memory feature table that flows into the
// preprocessing pipeline, its schema, and the column typer.
package dataset

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabsearch/pkg/errors"
)

// Kind is the declared scalar type of a column.
type Kind int

const (
	// Float columns hold float64 values; NaN marks a missing cell.
	Float Kind = iota
	// String columns hold categorical values with a validity mask.
	String
	// Int columns are accepted by the table but rejected by TypeColumns.
	Int
	// Bool columns are accepted by the table but rejected by TypeColumns.
	Bool
)

func (k Kind) String() string {
	switch k {
	case Float:
		return "float"
	case String:
		return "string"
	case Int:
		return "int"
	case Bool:
		return "bool"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Column is one named column of a Table. Exactly one of the value slices is
// populated, matching Kind.
type Column struct {
	Name string
	Kind Kind

	Floats  []float64
	Strings []string
	// Valid marks present cells of a String column. A nil mask means every
	// cell is present.
	Valid []bool
	Ints  []int64
	Bools []bool
}

// FloatColumn creates a Float column. Use math.NaN() for missing cells.
func FloatColumn(name string, values []float64) *Column {
	return &Column{Name: name, Kind: Float, Floats: values}
}

// StringColumn creates a String column. valid may be nil when no cell is missing.
func StringColumn(name string, values []string, valid []bool) *Column {
	return &Column{Name: name, Kind: String, Strings: values, Valid: valid}
}

// IntColumn creates an Int column.
func IntColumn(name string, values []int64) *Column {
	return &Column{Name: name, Kind: Int, Ints: values}
}

// BoolColumn creates a Bool column.
func BoolColumn(name string, values []bool) *Column {
	return &Column{Name: name, Kind: Bool, Bools: values}
}

// Len returns the number of cells.
func (c *Column) Len() int {
	switch c.Kind {
	case Float:
		return len(c.Floats)
	case String:
		return len(c.Strings)
	case Int:
		return len(c.Ints)
	case Bool:
		return len(c.Bools)
	default:
		return 0
	}
}

// IsMissing reports whether cell i is missing. Int and Bool cells are never missing.
func (c *Column) IsMissing(i int) bool {
	switch c.Kind {
	case Float:
		return math.IsNaN(c.Floats[i])
	case String:
		return c.Valid != nil && !c.Valid[i]
	default:
		return false
	}
}

// Text renders cell i as text, for row identifiers. Missing cells render empty.
func (c *Column) Text(i int) string {
	if c.IsMissing(i) {
		return ""
	}
	switch c.Kind {
	case Float:
		return fmt.Sprintf("%v", c.Floats[i])
	case String:
		return c.Strings[i]
	case Int:
		return fmt.Sprintf("%d", c.Ints[i])
	case Bool:
		return fmt.Sprintf("%t", c.Bools[i])
	default:
		return ""
	}
}

func (c *Column) subset(rows []int) *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	switch c.Kind {
	case Float:
		out.Floats = make([]float64, len(rows))
		for i, r := range rows {
			out.Floats[i] = c.Floats[r]
		}
	case String:
		out.Strings = make([]string, len(rows))
		for i, r := range rows {
			out.Strings[i] = c.Strings[r]
		}
		if c.Valid != nil {
			out.Valid = make([]bool, len(rows))
			for i, r := range rows {
				out.Valid[i] = c.Valid[r]
			}
		}
	case Int:
		out.Ints = make([]int64, len(rows))
		for i, r := range rows {
			out.Ints[i] = c.Ints[r]
		}
	case Bool:
		out.Bools = make([]bool, len(rows))
		for i, r := range rows {
			out.Bools[i] = c.Bools[r]
		}
	}
	return out
}

// Table is an ordered set of equally long named columns. Tables are treated
// as immutable once built; Drop and Subset return new tables.
type Table struct {
	columns []*Column
	index   map[string]int
	rows    int
}

// NewTable builds a table. Column names must be unique and every column must
// have the same length.
func NewTable(columns ...*Column) (*Table, error) {
	t := &Table{index: make(map[string]int, len(columns))}
	for i, c := range columns {
		if c == nil {
			return nil, errors.NewValueError("dataset.NewTable", fmt.Sprintf("column %d is nil", i))
		}
		if _, dup := t.index[c.Name]; dup {
			return nil, errors.NewValueError("dataset.NewTable", fmt.Sprintf("duplicate column %q", c.Name))
		}
		if c.Kind == String && c.Valid != nil && len(c.Valid) != len(c.Strings) {
			return nil, errors.NewDimensionError("dataset.NewTable", len(c.Strings), len(c.Valid), 0)
		}
		if i == 0 {
			t.rows = c.Len()
		} else if c.Len() != t.rows {
			return nil, errors.NewDimensionError("dataset.NewTable", t.rows, c.Len(), 0)
		}
		t.index[c.Name] = i
		t.columns = append(t.columns, c)
	}
	return t, nil
}

// MustNewTable is NewTable for fixtures; it panics on error.
func MustNewTable(columns ...*Column) *Table {
	t, err := NewTable(columns...)
	if err != nil {
		panic(err)
	}
	return t
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int { return t.rows }

// NumCols returns the number of columns.
func (t *Table) NumCols() int { return len(t.columns) }

// Names returns the column names in table order.
func (t *Table) Names() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Columns returns the columns in table order.
func (t *Table) Columns() []*Column {
	out := make([]*Column, len(t.columns))
	copy(out, t.columns)
	return out
}

// Column looks a column up by name.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.columns[i], true
}

// Has reports whether the table has a column called name.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Drop returns a table without the named columns. Names that are not present
// are ignored, so an inference table without a label column can be passed
// through the same code path as the training table.
func (t *Table) Drop(names ...string) *Table {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	out := &Table{index: make(map[string]int, len(t.columns)), rows: t.rows}
	for _, c := range t.columns {
		if drop[c.Name] {
			continue
		}
		out.index[c.Name] = len(out.columns)
		out.columns = append(out.columns, c)
	}
	return out
}

// Subset returns a table holding the given rows, in the given order.
func (t *Table) Subset(rows []int) *Table {
	out := &Table{index: make(map[string]int, len(t.columns)), rows: len(rows)}
	for i, c := range t.columns {
		out.index[c.Name] = i
		out.columns = append(out.columns, c.subset(rows))
	}
	return out
}

// Schema returns the (name, kind) pairs of the table in column order.
func (t *Table) Schema() Schema {
	s := make(Schema, len(t.columns))
	for i, c := range t.columns {
		s[i] = Field{Name: c.Name, Kind: c.Kind}
	}
	return s
}

// LabelValues returns the named binary label column as a vector. Every value
// must be 0 or 1; missing labels are rejected.
func (t *Table) LabelValues(name string) (*mat.VecDense, error) {
	c, ok := t.Column(name)
	if !ok {
		return nil, errors.NewValidationError("label_column", "column not found", name)
	}
	if t.rows == 0 {
		return nil, errors.ErrEmptyData
	}
	y := make([]float64, t.rows)
	for i := 0; i < t.rows; i++ {
		var v float64
		switch c.Kind {
		case Float:
			v = c.Floats[i]
		case Int:
			v = float64(c.Ints[i])
		case Bool:
			if c.Bools[i] {
				v = 1
			}
		default:
			return nil, errors.NewValidationError(name, "label column must be numeric", c.Kind.String())
		}
		if v != 0 && v != 1 {
			return nil, errors.NewValidationError(name, fmt.Sprintf("label at row %d must be 0 or 1", i), v)
		}
		y[i] = v
	}
	return mat.NewVecDense(t.rows, y), nil
}

// MissingCount is the number of missing cells of one column.
type MissingCount struct {
	Column string
	Count  int
}

// MissingCounts returns the number of missing cells per column in table order.
func (t *Table) MissingCounts() []MissingCount {
	out := make([]MissingCount, len(t.columns))
	for i, c := range t.columns {
		n := 0
		for r := 0; r < t.rows; r++ {
			if c.IsMissing(r) {
				n++
			}
		}
		out[i] = MissingCount{Column: c.Name, Count: n}
	}
	return out
}
