package dataset

import (
	"github.com/YuminosukeSato/tabsearch/pkg/errors"
)

// Field is one (name, kind) entry of a Schema.
type Field struct {
	Name string
	Kind Kind
}

// Schema is the ordered column signature of a table.
type Schema []Field

// Names returns the field names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// Lookup returns the kind of the named field.
func (s Schema) Lookup(name string) (Kind, bool) {
	for _, f := range s {
		if f.Name == name {
			return f.Kind, true
		}
	}
	return 0, false
}

// Diff compares other against s. Column order is not significant.
func (s Schema) Diff(other Schema) (missing, unexpected, kindChanged []string) {
	theirs := make(map[string]Kind, len(other))
	for _, f := range other {
		theirs[f.Name] = f.Kind
	}
	ours := make(map[string]bool, len(s))
	for _, f := range s {
		ours[f.Name] = true
		k, ok := theirs[f.Name]
		switch {
		case !ok:
			missing = append(missing, f.Name)
		case k != f.Kind:
			kindChanged = append(kindChanged, f.Name)
		}
	}
	for _, f := range other {
		if !ours[f.Name] {
			unexpected = append(unexpected, f.Name)
		}
	}
	return missing, unexpected, kindChanged
}

// Check returns a SchemaMismatchError if other differs from s.
func (s Schema) Check(other Schema) error {
	missing, unexpected, kindChanged := s.Diff(other)
	if len(missing) == 0 && len(unexpected) == 0 && len(kindChanged) == 0 {
		return nil
	}
	return errors.NewSchemaMismatchError(missing, unexpected, kindChanged)
}

// CheckSubset returns a SchemaMismatchError if other lacks a field of s or
// declares one with another kind. Extra columns in other are allowed.
func (s Schema) CheckSubset(other Schema) error {
	missing, _, kindChanged := s.Diff(other)
	if len(missing) == 0 && len(kindChanged) == 0 {
		return nil
	}
	return errors.NewSchemaMismatchError(missing, nil, kindChanged)
}
