// Package neighbors implements a k-nearest-neighbors classifier with brute
// force, k-d tree and ball tree neighbor search.
package neighbors

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabsearch/core/model"
	"github.com/YuminosukeSato/tabsearch/core/parallel"
	"github.com/YuminosukeSato/tabsearch/pkg/errors"
)

// Neighbor weighting schemes.
const (
	WeightsUniform  = "uniform"
	WeightsDistance = "distance"
)

// Neighbor search algorithms.
const (
	AlgorithmAuto     = "auto"
	AlgorithmBallTree = "ball_tree"
	AlgorithmKDTree   = "kd_tree"
	AlgorithmBrute    = "brute"
)

// KNeighborsClassifier votes among the k closest training rows by Euclidean
// distance. It is compatible with scikit-learn's KNeighborsClassifier for
// labels {0, 1}.
type KNeighborsClassifier struct {
	state *model.StateManager

	nNeighbors int
	weights    string
	algorithm  string
	leafSize   int
	nJobs      int

	labels []float64
	index  searcher
	fitAlg string
}

// Option is a functional option for KNeighborsClassifier.
type Option func(*KNeighborsClassifier)

// WithNNeighbors sets k.
func WithNNeighbors(k int) Option {
	return func(c *KNeighborsClassifier) { c.nNeighbors = k }
}

// WithWeights sets the weighting scheme ("uniform" or "distance").
func WithWeights(w string) Option {
	return func(c *KNeighborsClassifier) { c.weights = w }
}

// WithAlgorithm sets the neighbor search algorithm.
func WithAlgorithm(a string) Option {
	return func(c *KNeighborsClassifier) { c.algorithm = a }
}

// WithLeafSize sets the leaf size of the ball tree.
func WithLeafSize(n int) Option {
	return func(c *KNeighborsClassifier) { c.leafSize = n }
}

// WithNJobs sets the number of goroutines answering queries. <= 0 means one per CPU.
func WithNJobs(n int) Option {
	return func(c *KNeighborsClassifier) { c.nJobs = n }
}

// NewKNeighborsClassifier creates a classifier with sklearn defaults.
func NewKNeighborsClassifier(opts ...Option) *KNeighborsClassifier {
	c := &KNeighborsClassifier{
		state:      model.NewStateManager("KNeighborsClassifier"),
		nNeighbors: 5,
		weights:    WeightsUniform,
		algorithm:  AlgorithmAuto,
		leafSize:   30,
		nJobs:      1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fit stores the training rows and builds the search index. It fails when
// n_neighbors exceeds the number of training rows.
func (c *KNeighborsClassifier) Fit(X, y mat.Matrix) error {
	rows, cols := X.Dims()
	yRows, yCols := y.Dims()
	if rows != yRows {
		return errors.NewDimensionError("KNeighborsClassifier.Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("KNeighborsClassifier.Fit", 1, yCols, 1)
	}
	if c.nNeighbors < 1 {
		return errors.NewValidationError("n_neighbors", "must be >= 1", c.nNeighbors)
	}
	if c.nNeighbors > rows {
		return errors.NewValueError("KNeighborsClassifier.Fit",
			fmt.Sprintf("expected n_neighbors <= n_samples_fit, but n_neighbors = %d, n_samples_fit = %d", c.nNeighbors, rows))
	}

	data := make([][]float64, rows)
	c.labels = make([]float64, rows)
	for i := range data {
		data[i] = mat.Row(nil, i, X)
		v := y.At(i, 0)
		if v != 0 && v != 1 {
			return errors.NewValueError("KNeighborsClassifier.Fit", fmt.Sprintf("labels must be 0 or 1, got %v", v))
		}
		c.labels[i] = v
	}

	c.fitAlg = c.resolveAlgorithm(rows, cols)
	switch c.fitAlg {
	case AlgorithmKDTree:
		c.index = newKDIndex(data)
	case AlgorithmBallTree:
		c.index = newBallIndex(data, c.leafSize)
	default:
		c.index = &bruteIndex{rows: data}
	}
	c.state.SetFitted(cols, rows)
	return nil
}

// resolveAlgorithm picks the search structure for "auto" the way sklearn
// does: brute force for high-dimensional data or when k is at least half
// the training set, a k-d tree otherwise.
func (c *KNeighborsClassifier) resolveAlgorithm(rows, cols int) string {
	if c.algorithm != AlgorithmAuto {
		return c.algorithm
	}
	if cols > 15 || c.nNeighbors >= rows/2 {
		return AlgorithmBrute
	}
	return AlgorithmKDTree
}

// FitAlgorithm returns the search algorithm chosen by the last Fit.
func (c *KNeighborsClassifier) FitAlgorithm() string {
	return c.fitAlg
}

// positive returns the weighted share of positive neighbors for one query.
func (c *KNeighborsClassifier) positive(q []float64) float64 {
	ns := c.index.search(q, c.nNeighbors)
	if c.weights == WeightsDistance {
		// 距離0の近傍があればそれらだけで多数決する
		exact, exactPos := 0.0, 0.0
		for _, n := range ns {
			if n.dist == 0 {
				exact++
				exactPos += c.labels[n.idx]
			}
		}
		if exact > 0 {
			return exactPos / exact
		}
		total, pos := 0.0, 0.0
		for _, n := range ns {
			w := 1 / n.dist
			total += w
			pos += w * c.labels[n.idx]
		}
		return pos / total
	}
	pos := 0.0
	for _, n := range ns {
		pos += c.labels[n.idx]
	}
	return pos / float64(len(ns))
}

// PredictProba returns an n×2 matrix of [P(y=0), P(y=1)].
func (c *KNeighborsClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := c.state.RequireFitted("PredictProba"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := c.state.RequireFeatures("KNeighborsClassifier.PredictProba", cols); err != nil {
		return nil, err
	}
	out := mat.NewDense(rows, 2, nil)
	parallel.ParallelizeWithThreshold(rows, 64, c.nJobs, func(start, end int) {
		q := make([]float64, cols)
		for i := start; i < end; i++ {
			mat.Row(q, i, X)
			p := c.positive(q)
			out.Set(i, 0, 1-p)
			out.Set(i, 1, p)
		}
	})
	return out, nil
}

// Predict returns the majority label among the neighbors.
func (c *KNeighborsClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := c.PredictProba(X)
	if err != nil {
		return nil, err
	}
	rows, _ := proba.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		if proba.At(i, 1) > proba.At(i, 0) {
			out.Set(i, 0, 1)
		}
	}
	return out, nil
}

// GetParams returns the classifier hyperparameters.
func (c *KNeighborsClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_neighbors": c.nNeighbors,
		"weights":     c.weights,
		"algorithm":   c.algorithm,
		"leaf_size":   c.leafSize,
		"metric":      "euclidean",
		"n_jobs":      c.nJobs,
	}
}

// SetParams sets the classifier hyperparameters.
func (c *KNeighborsClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "n_neighbors":
			c.nNeighbors, err = model.ParamPositiveInt(key, value)
		case "weights":
			c.weights, err = model.ParamChoice(key, value, WeightsUniform, WeightsDistance)
		case "algorithm":
			c.algorithm, err = model.ParamChoice(key, value, AlgorithmAuto, AlgorithmBallTree, AlgorithmKDTree, AlgorithmBrute)
		case "leaf_size":
			c.leafSize, err = model.ParamPositiveInt(key, value)
		case "metric":
			_, err = model.ParamChoice(key, value, "euclidean")
		case "n_jobs":
			c.nJobs, err = model.ParamInt(key, value)
		default:
			err = errors.NewValidationError(key, "unknown parameter for KNeighborsClassifier", value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clone returns an unfitted copy with the same hyperparameters.
func (c *KNeighborsClassifier) Clone() model.Classifier {
	return &KNeighborsClassifier{
		state:      model.NewStateManager("KNeighborsClassifier"),
		nNeighbors: c.nNeighbors,
		weights:    c.weights,
		algorithm:  c.algorithm,
		leafSize:   c.leafSize,
		nJobs:      c.nJobs,
	}
}
