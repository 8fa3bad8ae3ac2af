package dataset

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/tabsearch/pkg/errors"
)

func fixture(t *testing.T) *Table {
	t.Helper()
	table, err := NewTable(
		StringColumn("id", []string{"a", "b", "c", "d"}, nil),
		FloatColumn("age", []float64{21, math.NaN(), 35, 40}),
		StringColumn("city", []string{"Tokyo", "", "Osaka", "Tokyo"}, []bool{true, false, true, true}),
		FloatColumn("match", []float64{0, 1, 1, 0}),
	)
	require.NoError(t, err)
	return table
}

func TestNewTable(t *testing.T) {
	tests := []struct {
		name    string
		columns []*Column
		wantErr bool
	}{
		{"empty", nil, false},
		{"consistent", []*Column{FloatColumn("a", []float64{1, 2}), StringColumn("b", []string{"x", "y"}, nil)}, false},
		{"length mismatch", []*Column{FloatColumn("a", []float64{1, 2}), FloatColumn("b", []float64{1})}, true},
		{"duplicate name", []*Column{FloatColumn("a", []float64{1}), FloatColumn("a", []float64{2})}, true},
		{"mask mismatch", []*Column{StringColumn("a", []string{"x", "y"}, []bool{true})}, true},
		{"nil column", []*Column{nil}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTable(tt.columns...)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTypeColumns(t *testing.T) {
	features := fixture(t).Drop("id", "match")

	numeric, categorical, err := TypeColumns(features)
	require.NoError(t, err)
	assert.Equal(t, []string{"age"}, numeric)
	assert.Equal(t, []string{"city"}, categorical)
}

func TestTypeColumns_PartitionIsComplete(t *testing.T) {
	table := MustNewTable(
		StringColumn("s1", []string{"x"}, nil),
		FloatColumn("f1", []float64{1}),
		StringColumn("s2", []string{"y"}, nil),
		FloatColumn("f2", []float64{2}),
	)
	numeric, categorical, err := TypeColumns(table)
	require.NoError(t, err)

	seen := map[string]int{}
	for _, n := range append(append([]string{}, numeric...), categorical...) {
		seen[n]++
	}
	assert.Len(t, seen, table.NumCols())
	for name, count := range seen {
		assert.Equal(t, 1, count, name)
	}
	assert.Equal(t, []string{"f1", "f2"}, numeric)
	assert.Equal(t, []string{"s1", "s2"}, categorical)
}

func TestTypeColumns_Unsupported(t *testing.T) {
	tests := []struct {
		name   string
		column *Column
		kind   string
	}{
		{"int", IntColumn("visits", []int64{1, 2}), "int"},
		{"bool", BoolColumn("member", []bool{true, false}), "bool"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := MustNewTable(FloatColumn("age", []float64{1, 2}), tt.column)
			_, _, err := TypeColumns(table)
			require.Error(t, err)

			var unsupported *errors.UnsupportedColumnTypeError
			require.True(t, errors.As(err, &unsupported))
			assert.Equal(t, tt.column.Name, unsupported.Column)
			assert.Equal(t, tt.kind, unsupported.Kind)
		})
	}
}

func TestTable_DropAndSubset(t *testing.T) {
	table := fixture(t)

	dropped := table.Drop("match", "not-there")
	assert.Equal(t, []string{"id", "age", "city"}, dropped.Names())
	assert.Equal(t, 4, dropped.NumRows())
	assert.Equal(t, 4, table.NumCols(), "Drop does not modify the receiver")

	sub := table.Subset([]int{3, 1})
	assert.Equal(t, 2, sub.NumRows())
	city, ok := sub.Column("city")
	require.True(t, ok)
	assert.Equal(t, "Tokyo", city.Strings[0])
	assert.True(t, city.IsMissing(1))
	age, _ := sub.Column("age")
	assert.Equal(t, 40.0, age.Floats[0])
	assert.True(t, math.IsNaN(age.Floats[1]))
}

func TestTable_LabelValues(t *testing.T) {
	y, err := fixture(t).LabelValues("match")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 1, 0}, y.RawVector().Data)

	bad := MustNewTable(FloatColumn("match", []float64{0, 2}))
	_, err = bad.LabelValues("match")
	var validation *errors.ValidationError
	assert.True(t, errors.As(err, &validation))

	_, err = fixture(t).LabelValues("nope")
	assert.Error(t, err)

	_, err = MustNewTable(FloatColumn("match", []float64{0, math.NaN()})).LabelValues("match")
	assert.Error(t, err, "missing labels are rejected")

	boolLabels, err := MustNewTable(BoolColumn("match", []bool{true, false})).LabelValues("match")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, boolLabels.RawVector().Data)
}

func TestTable_MissingCounts(t *testing.T) {
	counts := fixture(t).MissingCounts()
	assert.Equal(t, []MissingCount{
		{Column: "id", Count: 0},
		{Column: "age", Count: 1},
		{Column: "city", Count: 1},
		{Column: "match", Count: 0},
	}, counts)
}

func TestSchema_Check(t *testing.T) {
	train := fixture(t).Drop("match").Schema()

	assert.NoError(t, train.Check(fixture(t).Drop("match").Schema()))

	reordered := MustNewTable(
		StringColumn("city", []string{"x"}, nil),
		FloatColumn("age", []float64{1}),
		StringColumn("id", []string{"1"}, nil),
	)
	assert.NoError(t, train.Check(reordered.Schema()), "column order is not significant")

	drifted := MustNewTable(
		StringColumn("id", []string{"1"}, nil),
		StringColumn("age", []string{"young"}, nil),
		FloatColumn("income", []float64{1}),
	)
	err := train.Check(drifted.Schema())
	var mismatch *errors.SchemaMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, []string{"city"}, mismatch.Missing)
	assert.Equal(t, []string{"income"}, mismatch.Unexpected)
	assert.Equal(t, []string{"age"}, mismatch.KindChanged)

	assert.NoError(t, train.CheckSubset(fixture(t).Schema()), "extra columns are allowed by CheckSubset")
}

func TestLoadCSV(t *testing.T) {
	input := strings.Join([]string{
		"id,age,city,match",
		"1,21,Tokyo,0",
		"2,NA,,1",
		"3,35.5,Osaka,1",
	}, "\n")

	table, err := LoadCSV(strings.NewReader(input), WithStringColumns("id"))
	require.NoError(t, err)
	assert.Equal(t, 3, table.NumRows())
	assert.Equal(t, Schema{
		{Name: "id", Kind: String},
		{Name: "age", Kind: Float},
		{Name: "city", Kind: String},
		{Name: "match", Kind: Float},
	}, table.Schema())

	age, _ := table.Column("age")
	assert.True(t, age.IsMissing(1))
	assert.Equal(t, 35.5, age.Floats[2])

	city, _ := table.Column("city")
	assert.True(t, city.IsMissing(1))
	assert.Equal(t, "Osaka", city.Text(2))

	id, _ := table.Column("id")
	assert.Equal(t, "2", id.Text(1))
}

func TestLoadCSV_Errors(t *testing.T) {
	_, err := LoadCSV(strings.NewReader(""))
	assert.True(t, errors.Is(err, errors.ErrEmptyData))

	_, err = LoadCSV(strings.NewReader("a,b\n1\n"))
	assert.Error(t, err, "ragged rows are rejected by the csv reader")
}

func TestLoadCSV_WithSchema(t *testing.T) {
	train := Schema{
		{Name: "id", Kind: String},
		{Name: "age", Kind: Float},
		{Name: "city", Kind: String},
	}

	tests := []struct {
		name  string
		input string
	}{
		{"all cells empty", "id,age,city\n100,31,\n101,44,\n102,,\n"},
		{"numeric looking", "id,age,city\n100,31,7\n101,44,8\n102,,NA\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inferred, err := LoadCSV(strings.NewReader(tt.input), WithStringColumns("id"))
			require.NoError(t, err)
			kind, _ := inferred.Schema().Lookup("city")
			assert.Equal(t, Float, kind)

			table, err := LoadCSV(strings.NewReader(tt.input), WithSchema(train))
			require.NoError(t, err)
			assert.Equal(t, train, table.Schema())
			assert.NoError(t, train.Check(table.Schema()))

			city, _ := table.Column("city")
			assert.True(t, city.IsMissing(2))
			age, _ := table.Column("age")
			assert.True(t, age.IsMissing(2))
		})
	}
}

func TestLoadCSV_WithSchemaRejectsText(t *testing.T) {
	schema := Schema{{Name: "age", Kind: Float}}
	_, err := LoadCSV(strings.NewReader("age\n31\nold\n"), WithSchema(schema))
	require.Error(t, err)
	var valueErr *errors.ValueError
	assert.True(t, errors.As(err, &valueErr))
}
