package neural_network

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabsearch/core/model"
	"github.com/YuminosukeSato/tabsearch/pkg/errors"
)

func twoBlobs(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		c := -1.5
		if i%2 == 1 {
			c = 1.5
			y.Set(i, 0, 1)
		}
		X.Set(i, 0, c+0.5*math.Sin(float64(i)))
		X.Set(i, 1, c+0.5*math.Cos(float64(i)*1.3))
	}
	return X, y
}

func silenceWarnings(t *testing.T) {
	errors.SetWarningHandler(func(error) {})
	t.Cleanup(func() { errors.SetWarningHandler(func(error) {}) })
}

func TestMLPClassifier_Fit(t *testing.T) {
	silenceWarnings(t)
	tests := []struct {
		solver     string
		activation string
		hidden     []int
	}{
		{SolverAdam, ActivationReLU, []int{16}},
		{SolverAdam, ActivationTanh, []int{8, 8}},
		{SolverSGD, ActivationLogistic, []int{10}},
		{SolverSGD, ActivationReLU, []int{12, 6}},
	}
	for _, tt := range tests {
		t.Run(tt.solver+"/"+tt.activation, func(t *testing.T) {
			X, y := twoBlobs(60)
			m := NewMLPClassifier(
				WithSolver(tt.solver),
				WithActivation(tt.activation),
				WithHiddenLayerSizes(tt.hidden...),
				WithLearningRateInit(0.01),
				WithMaxIter(300),
				WithRandomState(1),
			)
			require.NoError(t, m.Fit(X, y))
			assert.Greater(t, m.NIter(), 0)

			proba, err := m.PredictProba(X)
			require.NoError(t, err)
			correct := 0
			for i := 0; i < 60; i++ {
				p := proba.At(i, 1)
				require.GreaterOrEqual(t, p, 0.0)
				require.LessOrEqual(t, p, 1.0)
				assert.InDelta(t, 1.0, proba.At(i, 0)+p, 1e-12)
				if (p >= 0.5) == (y.At(i, 0) == 1) {
					correct++
				}
			}
			assert.GreaterOrEqual(t, correct, 57)
		})
	}
}

func TestMLPClassifier_Deterministic(t *testing.T) {
	silenceWarnings(t)
	X, y := twoBlobs(40)
	a := NewMLPClassifier(WithHiddenLayerSizes(5), WithMaxIter(20), WithRandomState(7))
	b := NewMLPClassifier(WithHiddenLayerSizes(5), WithMaxIter(20), WithRandomState(7))
	require.NoError(t, a.Fit(X, y))
	require.NoError(t, b.Fit(X, y))
	assert.Equal(t, a.Loss(), b.Loss())
}

func TestMLPClassifier_ConvergenceWarning(t *testing.T) {
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	t.Cleanup(func() { errors.SetWarningHandler(func(error) {}) })

	X, y := twoBlobs(20)
	m := NewMLPClassifier(WithMaxIter(2))
	require.NoError(t, m.Fit(X, y))
	require.Len(t, warnings, 1)
	var cw *errors.ConvergenceWarning
	require.True(t, errors.As(warnings[0], &cw))
	assert.Equal(t, 2, cw.Iterations)
}

func TestMLPClassifier_Params(t *testing.T) {
	m := NewMLPClassifier()
	assert.Equal(t, []int{100}, m.GetParams()["hidden_layer_sizes"])

	require.NoError(t, m.SetParams(map[string]interface{}{
		"hidden_layer_sizes": []int{100, 150},
		"activation":         "tanh",
		"solver":             "sgd",
		"batch_size":         "auto",
	}))
	params := m.GetParams()
	assert.Equal(t, []int{100, 150}, params["hidden_layer_sizes"])
	assert.Equal(t, "tanh", params["activation"])

	var c model.Classifier = m.Clone()
	assert.Equal(t, params, c.GetParams())

	assert.Error(t, m.SetParams(map[string]interface{}{"activation": "softmax"}))
	assert.Error(t, m.SetParams(map[string]interface{}{"hidden_layer_sizes": []int{}}))
	assert.Error(t, m.SetParams(map[string]interface{}{"solver": "lbfgs"}))
}

func TestMLPClassifier_Errors(t *testing.T) {
	m := NewMLPClassifier()
	_, err := m.PredictProba(mat.NewDense(1, 2, nil))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	err = m.Fit(mat.NewDense(2, 2, nil), mat.NewDense(2, 1, []float64{0, 5}))
	assert.ErrorContains(t, err, "labels must be 0 or 1")
}
