package neighbors

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabsearch/pkg/errors"
)

func grid(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		a := math.Sin(float64(i) * 2.3)
		b := math.Cos(float64(i) * 1.1)
		X.Set(i, 0, a)
		X.Set(i, 1, b)
		if a > b {
			y.Set(i, 0, 1)
		}
	}
	return X, y
}

func TestKNeighborsClassifier_AlgorithmsAgree(t *testing.T) {
	X, y := grid(90)
	queries, _ := grid(130)

	var want mat.Matrix
	for _, alg := range []string{AlgorithmBrute, AlgorithmKDTree, AlgorithmBallTree, AlgorithmAuto} {
		for _, w := range []string{WeightsUniform, WeightsDistance} {
			t.Run(alg+"/"+w, func(t *testing.T) {
				c := NewKNeighborsClassifier(WithNNeighbors(7), WithAlgorithm(alg), WithWeights(w), WithLeafSize(4), WithNJobs(3))
				require.NoError(t, c.Fit(X, y))
				proba, err := c.PredictProba(queries)
				require.NoError(t, err)

				ref := NewKNeighborsClassifier(WithNNeighbors(7), WithAlgorithm(AlgorithmBrute), WithWeights(w))
				require.NoError(t, ref.Fit(X, y))
				want, err = ref.PredictProba(queries)
				require.NoError(t, err)
				assert.True(t, mat.EqualApprox(want, proba, 1e-12))
			})
		}
	}
}

func TestKNeighborsClassifier_Uniform(t *testing.T) {
	X := mat.NewDense(5, 1, []float64{0, 1, 2, 10, 11})
	y := mat.NewDense(5, 1, []float64{0, 0, 1, 1, 1})
	c := NewKNeighborsClassifier(WithNNeighbors(3))
	require.NoError(t, c.Fit(X, y))

	proba, err := c.PredictProba(mat.NewDense(2, 1, []float64{0.4, 10.5}))
	require.NoError(t, err)
	assert.InDelta(t, 1.0/3, proba.At(0, 1), 1e-12)
	assert.InDelta(t, 1.0, proba.At(1, 1), 1e-12)

	pred, err := c.Predict(mat.NewDense(1, 1, []float64{0.4}))
	require.NoError(t, err)
	assert.Equal(t, 0.0, pred.At(0, 0))
}

func TestKNeighborsClassifier_DistanceWeights(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{0, 1, 3})
	y := mat.NewDense(3, 1, []float64{1, 0, 0})
	c := NewKNeighborsClassifier(WithNNeighbors(2), WithWeights(WeightsDistance))
	require.NoError(t, c.Fit(X, y))

	// 距離 0.5 と 0.5 → 等重み
	proba, err := c.PredictProba(mat.NewDense(2, 1, []float64{0.5, 1}))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, proba.At(0, 1), 1e-12)
	// 完全一致の近傍だけが票を持つ
	assert.InDelta(t, 0.0, proba.At(1, 1), 1e-12)
}

func TestKNeighborsClassifier_TooManyNeighbors(t *testing.T) {
	X, y := grid(20)
	c := NewKNeighborsClassifier(WithNNeighbors(70))
	err := c.Fit(X, y)
	var verr *errors.ValueError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Message, "n_neighbors = 70")
}

func TestKNeighborsClassifier_AutoAlgorithm(t *testing.T) {
	X, y := grid(40)
	c := NewKNeighborsClassifier(WithNNeighbors(3))
	require.NoError(t, c.Fit(X, y))
	assert.Equal(t, AlgorithmKDTree, c.FitAlgorithm())

	c = NewKNeighborsClassifier(WithNNeighbors(25))
	require.NoError(t, c.Fit(X, y))
	assert.Equal(t, AlgorithmBrute, c.FitAlgorithm())
}

func TestKNeighborsClassifier_Params(t *testing.T) {
	c := NewKNeighborsClassifier()
	assert.Equal(t, 30, c.GetParams()["leaf_size"])

	require.NoError(t, c.SetParams(map[string]interface{}{
		"n_neighbors": 100,
		"weights":     "distance",
		"algorithm":   "ball_tree",
	}))
	assert.Equal(t, 100, c.GetParams()["n_neighbors"])
	assert.Equal(t, c.GetParams(), c.Clone().GetParams())

	assert.Error(t, c.SetParams(map[string]interface{}{"algorithm": "lsh"}))
	assert.Error(t, c.SetParams(map[string]interface{}{"n_neighbors": 0}))
	assert.Error(t, c.SetParams(map[string]interface{}{"metric": "manhattan"}))

	_, err := NewKNeighborsClassifier().PredictProba(mat.NewDense(1, 2, nil))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
}
