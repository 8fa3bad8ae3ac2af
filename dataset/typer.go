package dataset

import (
	"github.com/YuminosukeSato/tabsearch/pkg/errors"
)

// TypeColumns partitions the columns of t into numeric (Float) and categorical
// (String) names, each in table order. Every column lands in exactly one set.
// Any other kind fails with an UnsupportedColumnTypeError.
//
// Drop the label and identifier columns before typing.
func TypeColumns(t *Table) (numeric, categorical []string, err error) {
	for _, c := range t.columns {
		switch c.Kind {
		case Float:
			numeric = append(numeric, c.Name)
		case String:
			categorical = append(categorical, c.Name)
		default:
			return nil, nil, errors.NewUnsupportedColumnTypeError(c.Name, c.Kind.String())
		}
	}
	return numeric, categorical, nil
}
