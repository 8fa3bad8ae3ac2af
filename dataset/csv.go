package dataset

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/tabsearch/pkg/errors"
)

// DefaultMissingTokens are the cell values read as missing.
var DefaultMissingTokens = []string{"", "NA", "NaN", "nan", "null"}

type csvOptions struct {
	stringColumns map[string]bool
	kinds         map[string]Kind
	missing       map[string]bool
}

// CSVOption configures LoadCSV.
type CSVOption func(*csvOptions)

// WithStringColumns forces the named columns to be read as String even if all
// of their cells parse as numbers. Use it for row identifiers.
func WithStringColumns(names ...string) CSVOption {
	return func(o *csvOptions) {
		for _, n := range names {
			o.stringColumns[n] = true
		}
	}
}

// WithSchema pins the columns named in schema to their kind instead of
// inferring it from the cells. Load an inference table with the training
// schema so an all-missing or numeric-looking String column stays String.
// A pinned Float column with a non-numeric cell is an error.
func WithSchema(schema Schema) CSVOption {
	return func(o *csvOptions) {
		for _, f := range schema {
			o.kinds[f.Name] = f.Kind
		}
	}
}

// WithMissingTokens replaces DefaultMissingTokens.
func WithMissingTokens(tokens ...string) CSVOption {
	return func(o *csvOptions) {
		o.missing = make(map[string]bool, len(tokens))
		for _, tok := range tokens {
			o.missing[tok] = true
		}
	}
}

// LoadCSV reads a table with a header row. A column is Float when every
// non-missing cell parses as a float, String otherwise.
func LoadCSV(r io.Reader, opts ...CSVOption) (*Table, error) {
	o := &csvOptions{stringColumns: map[string]bool{}, kinds: map[string]Kind{}}
	WithMissingTokens(DefaultMissingTokens...)(o)
	for _, opt := range opts {
		opt(o)
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "dataset.LoadCSV: read")
	}
	if len(records) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "dataset.LoadCSV: no header row")
	}

	header := records[0]
	rows := records[1:]
	columns := make([]*Column, len(header))
	for j, name := range header {
		name = strings.TrimSpace(name)
		cells := make([]string, len(rows))
		for i, rec := range rows {
			cells[i] = strings.TrimSpace(rec[j])
		}
		if columns[j], err = o.column(name, cells); err != nil {
			return nil, err
		}
	}
	return NewTable(columns...)
}

// LoadCSVFile is LoadCSV on a file path.
func LoadCSVFile(path string, opts ...CSVOption) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "dataset.LoadCSVFile: open %s", path)
	}
	defer f.Close()

	t, err := LoadCSV(f, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "dataset.LoadCSVFile: %s", path)
	}
	return t, nil
}

func (o *csvOptions) column(name string, cells []string) (*Column, error) {
	kind, pinned := o.kinds[name]
	switch {
	case o.stringColumns[name] || (pinned && kind == String):
	case pinned && kind == Float:
		values, ok := o.parseFloats(cells)
		if !ok {
			return nil, errors.NewValueError("dataset.LoadCSV", "column "+strconv.Quote(name)+" must be numeric to match the schema")
		}
		return FloatColumn(name, values), nil
	default:
		if values, ok := o.parseFloats(cells); ok {
			return FloatColumn(name, values), nil
		}
	}

	valid := make([]bool, len(cells))
	values := make([]string, len(cells))
	for i, cell := range cells {
		if o.missing[cell] {
			continue
		}
		values[i] = cell
		valid[i] = true
	}
	return StringColumn(name, values, valid), nil
}

func (o *csvOptions) parseFloats(cells []string) ([]float64, bool) {
	values := make([]float64, len(cells))
	for i, cell := range cells {
		if o.missing[cell] {
			values[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, false
		}
		values[i] = v
	}
	return values, true
}
