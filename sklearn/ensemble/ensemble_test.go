package ensemble

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabsearch/core/model"
	"github.com/YuminosukeSato/tabsearch/pkg/errors"
)

// blobs returns n rows where the label is 1 iff x0 + x1 > 0, plus a noise column.
func blobs(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 3, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		a := math.Sin(float64(i)*1.7) * 2
		b := math.Cos(float64(i)*0.9) * 2
		X.Set(i, 0, a)
		X.Set(i, 1, b)
		X.Set(i, 2, float64(i%5))
		if a+b > 0 {
			y.Set(i, 0, 1)
		}
	}
	return X, y
}

func accuracy(t *testing.T, c interface {
	PredictProba(mat.Matrix) (mat.Matrix, error)
}, X, y mat.Matrix) float64 {
	t.Helper()
	proba, err := c.PredictProba(X)
	require.NoError(t, err)
	n, _ := X.Dims()
	correct := 0
	for i := 0; i < n; i++ {
		p := proba.At(i, 1)
		require.GreaterOrEqual(t, p, 0.0)
		require.LessOrEqual(t, p, 1.0)
		require.InDelta(t, 1.0, proba.At(i, 0)+p, 1e-12)
		if (p >= 0.5) == (y.At(i, 0) == 1) {
			correct++
		}
	}
	return float64(correct) / float64(n)
}

func TestGradientBoostingClassifier_Fit(t *testing.T) {
	X, y := blobs(120)
	gb := NewGradientBoostingClassifier(WithNEstimators(30), WithBoostingMaxDepth(3), WithBoostingRandomState(1))
	require.NoError(t, gb.Fit(X, y))

	assert.Equal(t, 30, gb.NTrees())
	assert.GreaterOrEqual(t, accuracy(t, gb, X, y), 0.9)

	imp := gb.FeatureImportances()
	require.Len(t, imp, 3)
	assert.Greater(t, imp[0]+imp[1], imp[2])
}

func TestGradientBoostingClassifier_Defaults(t *testing.T) {
	p := NewGradientBoostingClassifier().Params()
	assert.Equal(t, 0.3, p.LearningRate)
	assert.Equal(t, 1.0, p.MinChildWeight)
	assert.Equal(t, 1.0, p.Lambda)
	assert.Equal(t, ObjectiveBinaryLogistic, p.Objective)
}

func TestGradientBoostingClassifier_Subsample(t *testing.T) {
	X, y := blobs(80)
	opts := []BoostingOption{WithNEstimators(10), WithSubsample(0.7), WithBoostingRandomState(9)}
	a := NewGradientBoostingClassifier(opts...)
	b := NewGradientBoostingClassifier(opts...)
	require.NoError(t, a.Fit(X, y))
	require.NoError(t, b.Fit(X, y))

	pa, err := a.PredictProba(X)
	require.NoError(t, err)
	pb, err := b.PredictProba(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(pa, pb))
}

func TestGradientBoostingClassifier_SetParams(t *testing.T) {
	gb := NewGradientBoostingClassifier()
	require.NoError(t, gb.SetParams(map[string]interface{}{
		"n_estimators": 150,
		"max_depth":    10,
		"random_state": 1,
	}))
	assert.Equal(t, 150, gb.GetParams()["n_estimators"])
	assert.Equal(t, 10, gb.GetParams()["max_depth"])

	var verr *errors.ValidationError
	err := gb.SetParams(map[string]interface{}{"objective": "reg:squarederror"})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "objective", verr.ParamName)

	err = gb.SetParams(map[string]interface{}{"subsample": 1.5})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, 150, gb.GetParams()["n_estimators"], "failed SetParams leaves params untouched")

	var c model.Classifier = gb.Clone()
	assert.Equal(t, gb.GetParams(), c.GetParams())
}

func TestGradientBoostingClassifier_SingleClass(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := mat.NewDense(4, 1, []float64{1, 1, 1, 1})
	gb := NewGradientBoostingClassifier(WithNEstimators(5))
	require.NoError(t, gb.Fit(X, y))

	proba, err := gb.PredictProba(X)
	require.NoError(t, err)
	assert.Greater(t, proba.At(0, 1), 0.5)
}

func TestGradientBoostingClassifier_Errors(t *testing.T) {
	gb := NewGradientBoostingClassifier()
	_, err := gb.PredictProba(mat.NewDense(1, 1, nil))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	err = gb.Fit(mat.NewDense(2, 1, []float64{1, 2}), mat.NewDense(2, 1, []float64{0, 3}))
	assert.ErrorContains(t, err, "labels must be 0 or 1")
}

func TestRandomForestClassifier_Fit(t *testing.T) {
	X, y := blobs(120)
	rf := NewRandomForestClassifier(WithForestNEstimators(25), WithForestMaxDepth(8), WithForestRandomState(1), WithForestNJobs(4))
	require.NoError(t, rf.Fit(X, y))
	assert.GreaterOrEqual(t, accuracy(t, rf, X, y), 0.9)

	imp := rf.FeatureImportances()
	require.Len(t, imp, 3)
	assert.InDelta(t, 1.0, imp[0]+imp[1]+imp[2], 1e-9)
}

func TestRandomForestClassifier_DeterministicAcrossWorkers(t *testing.T) {
	X, y := blobs(60)
	a := NewRandomForestClassifier(WithForestNEstimators(12), WithForestRandomState(3), WithForestNJobs(1))
	b := NewRandomForestClassifier(WithForestNEstimators(12), WithForestRandomState(3), WithForestNJobs(4))
	require.NoError(t, a.Fit(X, y))
	require.NoError(t, b.Fit(X, y))

	pa, err := a.PredictProba(X)
	require.NoError(t, err)
	pb, err := b.PredictProba(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(pa, pb))
}

func TestRandomForestClassifier_Params(t *testing.T) {
	rf := NewRandomForestClassifier()
	params := rf.GetParams()
	assert.Equal(t, "gini", params["criterion"])
	assert.Equal(t, "sqrt", params["max_features"])
	assert.Equal(t, true, params["bootstrap"])

	require.NoError(t, rf.SetParams(map[string]interface{}{"n_estimators": 190, "max_depth": 15}))
	assert.Equal(t, 190, rf.GetParams()["n_estimators"])

	assert.Error(t, rf.SetParams(map[string]interface{}{"n_estimators": 0}))
	assert.Error(t, rf.SetParams(map[string]interface{}{"max_features": "half"}))
	assert.Error(t, rf.SetParams(map[string]interface{}{"min_samples_split": 1}))

	c := rf.Clone()
	assert.Equal(t, rf.GetParams(), c.GetParams())
	_, err := c.PredictProba(mat.NewDense(1, 3, nil))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
}
