package pipeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabsearch/core/model"
	"github.com/YuminosukeSato/tabsearch/dataset"
	"github.com/YuminosukeSato/tabsearch/pkg/errors"
	"github.com/YuminosukeSato/tabsearch/preprocessing"
	"github.com/YuminosukeSato/tabsearch/sklearn/linear_model"
)

func table() (*dataset.Table, *mat.VecDense) {
	ages := []float64{22, 35, math.NaN(), 41, 19, 50, 33, math.NaN(), 28, 45}
	cities := []string{"a", "b", "a", "b", "a", "b", "", "b", "a", "b"}
	valid := []bool{true, true, true, true, true, true, false, true, true, true}
	y := mat.NewVecDense(10, []float64{0, 1, 0, 1, 0, 1, 0, 1, 0, 1})
	return dataset.MustNewTable(
		dataset.FloatColumn("age", ages),
		dataset.StringColumn("city", cities, valid),
	), y
}

func newPipeline(t *testing.T) *Pipeline {
	t.Helper()
	tbl, _ := table()
	ct, err := preprocessing.NewColumnTransformerForTable(tbl)
	require.NoError(t, err)
	return New(ct, linear_model.NewLogisticRegression(linear_model.WithLRSolver(linear_model.SolverSAG)))
}

func TestPipeline_FitPredict(t *testing.T) {
	p := newPipeline(t)
	tbl, y := table()
	require.NoError(t, p.Fit(tbl, y))
	assert.True(t, p.IsFitted())

	proba, err := p.PredictProba(tbl)
	require.NoError(t, err)
	require.Equal(t, 10, proba.Len())
	for i := 0; i < proba.Len(); i++ {
		assert.GreaterOrEqual(t, proba.AtVec(i), 0.0)
		assert.LessOrEqual(t, proba.AtVec(i), 1.0)
	}
	// city "b" は常に陽性
	assert.Greater(t, proba.AtVec(1), proba.AtVec(0))
}

func TestPipeline_Params(t *testing.T) {
	p := newPipeline(t)
	params := p.GetParams()
	assert.Equal(t, "mean", params["preprocessor__num__imputer__strategy"])
	assert.Equal(t, 1.0, params["classifier__C"])

	require.NoError(t, p.SetParams(map[string]interface{}{
		"preprocessor__num__imputer__strategy": "median",
		"classifier__C":                        0.5,
	}))
	params = p.GetParams()
	assert.Equal(t, "median", params["preprocessor__num__imputer__strategy"])
	assert.Equal(t, 0.5, params["classifier__C"])

	var verr *errors.ValidationError
	err := p.SetParams(map[string]interface{}{"regressor__alpha": 1})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "regressor__alpha", verr.ParamName)

	assert.Error(t, p.SetParams(map[string]interface{}{"classifier__solver": "newton-cg"}))
}

func TestPipeline_CloneIsIndependent(t *testing.T) {
	template := newPipeline(t)
	a := template.Clone()
	b := template.Clone()
	require.NoError(t, a.SetParams(map[string]interface{}{"classifier__C": 0.1}))

	assert.Equal(t, 1.0, template.GetParams()["classifier__C"])
	assert.Equal(t, 1.0, b.GetParams()["classifier__C"])

	tbl, y := table()
	require.NoError(t, a.Fit(tbl, y))
	assert.False(t, template.IsFitted())
	assert.False(t, template.Preprocessor().IsFitted())
	assert.False(t, b.IsFitted())
}

func TestPipeline_RefitRejected(t *testing.T) {
	p := newPipeline(t)
	tbl, y := table()
	require.NoError(t, p.Fit(tbl, y))
	err := p.Fit(tbl, y)
	assert.True(t, errors.Is(err, errors.ErrAlreadyFitted))
	assert.Error(t, p.SetParams(map[string]interface{}{"classifier__C": 2.0}))
}

func TestPipeline_Errors(t *testing.T) {
	p := newPipeline(t)
	tbl, y := table()

	_, err := p.PredictProba(tbl)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	err = p.Fit(tbl, mat.NewVecDense(3, nil))
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))

	require.NoError(t, p.Fit(tbl, y))
	_, err = p.PredictProba(tbl.Drop("city"))
	var schema *errors.SchemaMismatchError
	assert.True(t, errors.As(err, &schema))
}

type panicky struct{ model.Classifier }

func (panicky) Fit(X, y mat.Matrix) error { panic("boom") }

func TestPipeline_PanicBecomesError(t *testing.T) {
	tbl, y := table()
	ct, err := preprocessing.NewColumnTransformerForTable(tbl)
	require.NoError(t, err)
	p := New(ct, panicky{linear_model.NewLogisticRegression()})

	err = p.Fit(tbl, y)
	var pe *errors.PanicError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "boom", pe.PanicValue)
	assert.False(t, p.IsFitted())
}
