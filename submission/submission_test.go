package submission

import (
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabsearch/dataset"
	"github.com/YuminosukeSato/tabsearch/pipeline"
	"github.com/YuminosukeSato/tabsearch/pkg/errors"
	"github.com/YuminosukeSato/tabsearch/preprocessing"
	"github.com/YuminosukeSato/tabsearch/sklearn/linear_model"
)

func fitted(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	age := []float64{22, 35, math.NaN(), 41, 19, 50, 33, 27, 28, 45}
	city := []string{"a", "b", "a", "b", "a", "b", "a", "b", "a", "b"}
	valid := make([]bool, len(city))
	for i := range valid {
		valid[i] = true
	}
	tbl := dataset.MustNewTable(dataset.FloatColumn("age", age), dataset.StringColumn("city", city, valid))
	y := mat.NewVecDense(10, []float64{0, 1, 0, 1, 0, 1, 0, 1, 0, 1})
	ct, err := preprocessing.NewColumnTransformerForTable(tbl)
	require.NoError(t, err)
	p := pipeline.New(ct, linear_model.NewLogisticRegression(linear_model.WithLRSolver(linear_model.SolverSAG)))
	require.NoError(t, p.Fit(tbl, y))
	return p
}

func inference(cols ...*dataset.Column) *dataset.Table {
	return dataset.MustNewTable(cols...)
}

func TestPredict(t *testing.T) {
	p := fitted(t)
	test := inference(
		dataset.IntColumn("id", []int64{7, 8, 9}),
		dataset.StringColumn("city", []string{"b", "a", "zz"}, []bool{true, true, true}),
		dataset.FloatColumn("age", []float64{30, math.NaN(), 60}),
	)
	recs, err := Predict(p, test, "id")
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "7", recs[0].ID)
	assert.Equal(t, "9", recs[2].ID)
	for _, r := range recs {
		assert.GreaterOrEqual(t, r.Probability, 0.0)
		assert.LessOrEqual(t, r.Probability, 1.0)
	}
}

func TestPredict_SchemaMismatch(t *testing.T) {
	p := fitted(t)
	tests := []struct {
		name  string
		table *dataset.Table
		check func(t *testing.T, e *errors.SchemaMismatchError)
	}{
		{
			name: "missing column",
			table: inference(
				dataset.IntColumn("id", []int64{1}),
				dataset.FloatColumn("age", []float64{30}),
			),
			check: func(t *testing.T, e *errors.SchemaMismatchError) {
				assert.Equal(t, []string{"city"}, e.Missing)
			},
		},
		{
			name: "unexpected column",
			table: inference(
				dataset.IntColumn("id", []int64{1}),
				dataset.FloatColumn("age", []float64{30}),
				dataset.StringColumn("city", []string{"a"}, []bool{true}),
				dataset.FloatColumn("income", []float64{1}),
			),
			check: func(t *testing.T, e *errors.SchemaMismatchError) {
				assert.Equal(t, []string{"income"}, e.Unexpected)
			},
		},
		{
			name: "kind changed",
			table: inference(
				dataset.IntColumn("id", []int64{1}),
				dataset.StringColumn("age", []string{"old"}, []bool{true}),
				dataset.StringColumn("city", []string{"a"}, []bool{true}),
			),
			check: func(t *testing.T, e *errors.SchemaMismatchError) {
				assert.Equal(t, []string{"age"}, e.KindChanged)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Predict(p, tt.table, "id")
			var serr *errors.SchemaMismatchError
			require.True(t, errors.As(err, &serr))
			tt.check(t, serr)
		})
	}
}

func TestPredict_Errors(t *testing.T) {
	p := fitted(t)
	test := inference(dataset.FloatColumn("age", []float64{1}), dataset.StringColumn("city", []string{"a"}, []bool{true}))
	_, err := Predict(p, test, "id")
	var verr *errors.ValidationError
	assert.True(t, errors.As(err, &verr))

	_, err = Predict(p.Clone(), test, "age")
	var nerr *errors.NotFittedError
	assert.True(t, errors.As(err, &nerr))
}

func TestWriter_CSVSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results")
	sink := CSVSink{Dir: dir, Prefix: "RandomSearch"}
	w := NewWriter(sink, "id", "match")

	loc, err := w.Write("LR", []Record{{ID: "1", Probability: 0.25}, {ID: "2", Probability: 0.5}})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "RandomSearchLR.csv"), loc)

	f, err := os.Open(loc)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"id", "match"}, {"1", "0.25"}, {"2", "0.5"}}, rows)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	info, err := os.Stat(loc)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}
