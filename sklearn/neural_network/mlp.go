// Package neural_network implements a multi-layer perceptron classifier for
// binary labels, trained with minibatch sgd or adam on the log loss.
package neural_network

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabsearch/core/model"
	"github.com/YuminosukeSato/tabsearch/pkg/errors"
	"github.com/YuminosukeSato/tabsearch/pkg/log"
)

// MLPClassifier is a feed-forward network with a single logistic output
// unit, compatible with scikit-learn's MLPClassifier for labels {0, 1}.
type MLPClassifier struct {
	state  *model.StateManager
	logger log.Logger

	hiddenLayerSizes []int
	activation       string
	solver           string
	alpha            float64
	batchSize        int // 0 means min(200, n_samples)
	learningRateInit float64
	maxIter          int
	tol              float64
	nIterNoChange    int
	momentum         float64
	randomState      uint64

	weights []*mat.Dense
	biases  [][]float64
	loss_   float64
	nIter_  int
}

// Option is a functional option for MLPClassifier.
type Option func(*MLPClassifier)

// WithHiddenLayerSizes sets the width of each hidden layer.
func WithHiddenLayerSizes(sizes ...int) Option {
	return func(m *MLPClassifier) { m.hiddenLayerSizes = append([]int(nil), sizes...) }
}

// WithActivation sets the hidden layer activation.
func WithActivation(a string) Option {
	return func(m *MLPClassifier) { m.activation = a }
}

// WithSolver sets the optimizer ("sgd" or "adam").
func WithSolver(s string) Option {
	return func(m *MLPClassifier) { m.solver = s }
}

// WithAlpha sets the L2 penalty.
func WithAlpha(alpha float64) Option {
	return func(m *MLPClassifier) { m.alpha = alpha }
}

// WithBatchSize sets the minibatch size. Zero means min(200, n_samples).
func WithBatchSize(n int) Option {
	return func(m *MLPClassifier) { m.batchSize = n }
}

// WithLearningRateInit sets the step size.
func WithLearningRateInit(lr float64) Option {
	return func(m *MLPClassifier) { m.learningRateInit = lr }
}

// WithMaxIter sets the maximum number of epochs.
func WithMaxIter(n int) Option {
	return func(m *MLPClassifier) { m.maxIter = n }
}

// WithTol sets the loss improvement tolerance for stopping.
func WithTol(tol float64) Option {
	return func(m *MLPClassifier) { m.tol = tol }
}

// WithRandomState sets the seed for weight initialization and shuffling.
func WithRandomState(seed uint64) Option {
	return func(m *MLPClassifier) { m.randomState = seed }
}

// NewMLPClassifier creates a classifier with sklearn defaults.
func NewMLPClassifier(opts ...Option) *MLPClassifier {
	m := &MLPClassifier{
		state:            model.NewStateManager("MLPClassifier"),
		logger:           log.GetLoggerWithName("neural_network.mlp"),
		hiddenLayerSizes: []int{100},
		activation:       ActivationReLU,
		solver:           SolverAdam,
		alpha:            1e-4,
		learningRateInit: 1e-3,
		maxIter:          200,
		tol:              1e-4,
		nIterNoChange:    10,
		momentum:         0.9,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MLPClassifier) validate() error {
	if len(m.hiddenLayerSizes) == 0 {
		return errors.NewValidationError("hidden_layer_sizes", "must not be empty", m.hiddenLayerSizes)
	}
	for _, s := range m.hiddenLayerSizes {
		if s < 1 {
			return errors.NewValidationError("hidden_layer_sizes", "entries must be >= 1", m.hiddenLayerSizes)
		}
	}
	switch {
	case m.maxIter < 1:
		return errors.NewValidationError("max_iter", "must be >= 1", m.maxIter)
	case m.learningRateInit <= 0:
		return errors.NewValidationError("learning_rate_init", "must be positive", m.learningRateInit)
	case m.alpha < 0:
		return errors.NewValidationError("alpha", "must be >= 0", m.alpha)
	case m.batchSize < 0:
		return errors.NewValidationError("batch_size", "must be >= 0", m.batchSize)
	}
	return nil
}

// Fit trains the network on X and binary labels y (n×1).
func (m *MLPClassifier) Fit(X, y mat.Matrix) error {
	if err := m.validate(); err != nil {
		return err
	}
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples != yRows {
		return errors.NewDimensionError("MLPClassifier.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("MLPClassifier.Fit", 1, yCols, 1)
	}
	if nSamples == 0 {
		return errors.NewValueError("MLPClassifier.Fit", "no samples")
	}
	labels := make([]float64, nSamples)
	for i := range labels {
		v := y.At(i, 0)
		if v != 0 && v != 1 {
			return errors.NewValueError("MLPClassifier.Fit", fmt.Sprintf("labels must be 0 or 1, got %v", v))
		}
		labels[i] = v
	}

	rng := rand.New(rand.NewPCG(m.randomState, 0x94d049bb133111eb))
	m.initialize(nFeatures, rng)
	params, grads := m.flatParams()

	var opt optimizer
	switch m.solver {
	case SolverSGD:
		opt = newSGD(params, m.learningRateInit, m.momentum)
	case SolverAdam:
		opt = newAdam(params, m.learningRateInit)
	default:
		return errors.NewValidationError("solver", "must be sgd or adam", m.solver)
	}

	batch := m.batchSize
	if batch == 0 {
		batch = 200
	}
	batch = min(batch, nSamples)

	Xd := mat.DenseCopyOf(X)
	order := make([]int, nSamples)
	for i := range order {
		order[i] = i
	}
	best := math.Inf(1)
	noImprove := 0
	converged := false

	for epoch := 0; epoch < m.maxIter; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		total := 0.0
		for start := 0; start < nSamples; start += batch {
			idx := order[start:min(start+batch, nSamples)]
			Xb := mat.NewDense(len(idx), nFeatures, nil)
			yb := make([]float64, len(idx))
			for k, i := range idx {
				Xb.SetRow(k, Xd.RawRowView(i))
				yb[k] = labels[i]
			}
			total += m.backprop(Xb, yb, grads) * float64(len(idx))
			opt.step(params, grads)
		}
		m.loss_ = total / float64(nSamples)
		m.nIter_ = epoch + 1
		if err := errors.CheckScalar("MLPClassifier.Fit", m.loss_, m.nIter_); err != nil {
			return err
		}

		if m.loss_ > best-m.tol {
			noImprove++
		} else {
			noImprove = 0
		}
		best = math.Min(best, m.loss_)
		if noImprove > m.nIterNoChange {
			converged = true
			break
		}
	}

	m.logger.Debug("mlp training finished",
		log.ModelNameKey, "MLPClassifier",
		log.IterationsKey, m.nIter_,
		log.LossKey, m.loss_,
		log.ConvergedKey, converged,
	)
	if !converged {
		errors.Warn(errors.NewConvergenceWarning("MLPClassifier("+m.solver+")", m.nIter_,
			"maximum iterations reached and the optimization hasn't converged yet"))
	}

	m.state.SetFitted(nFeatures, nSamples)
	return nil
}

// initialize draws Glorot uniform weights.
func (m *MLPClassifier) initialize(nFeatures int, rng *rand.Rand) {
	sizes := append(append([]int{nFeatures}, m.hiddenLayerSizes...), 1)
	factor := 6.0
	if m.activation == ActivationLogistic {
		factor = 2.0
	}
	m.weights = make([]*mat.Dense, len(sizes)-1)
	m.biases = make([][]float64, len(sizes)-1)
	for l := 0; l < len(sizes)-1; l++ {
		fanIn, fanOut := sizes[l], sizes[l+1]
		bound := math.Sqrt(factor / float64(fanIn+fanOut))
		w := make([]float64, fanIn*fanOut)
		for i := range w {
			w[i] = (2*rng.Float64() - 1) * bound
		}
		b := make([]float64, fanOut)
		for i := range b {
			b[i] = (2*rng.Float64() - 1) * bound
		}
		m.weights[l] = mat.NewDense(fanIn, fanOut, w)
		m.biases[l] = b
	}
}

// flatParams returns flat views of every weight and bias slice, and
// gradient buffers of the same shapes.
func (m *MLPClassifier) flatParams() (params, grads [][]float64) {
	for l, w := range m.weights {
		params = append(params, w.RawMatrix().Data, m.biases[l])
	}
	return params, zerosLike(params)
}

// forward returns the activations of every layer, input first.
func (m *MLPClassifier) forward(X mat.Matrix) []*mat.Dense {
	acts := []*mat.Dense{mat.DenseCopyOf(X)}
	last := len(m.weights) - 1
	for l, w := range m.weights {
		var z mat.Dense
		z.Mul(acts[l], w)
		b := m.biases[l]
		z.Apply(func(_, j int, v float64) float64 {
			if l == last {
				return errors.Sigmoid(v + b[j])
			}
			return activate(m.activation, v+b[j])
		}, &z)
		acts = append(acts, &z)
	}
	return acts
}

// backprop fills grads for one minibatch and returns its regularized loss.
func (m *MLPClassifier) backprop(Xb *mat.Dense, yb []float64, grads [][]float64) float64 {
	acts := m.forward(Xb)
	n := float64(len(yb))
	out := acts[len(acts)-1]

	loss := 0.0
	delta := mat.NewDense(len(yb), 1, nil)
	for i, y := range yb {
		p := errors.ClipValue(out.At(i, 0), 1e-15, 1-1e-15)
		loss -= y*math.Log(p) + (1-y)*math.Log(1-p)
		delta.Set(i, 0, (out.At(i, 0)-y)/n)
	}
	loss /= n
	sq := 0.0
	for _, w := range m.weights {
		for _, v := range w.RawMatrix().Data {
			sq += v * v
		}
	}
	loss += 0.5 * m.alpha * sq / n

	for l := len(m.weights) - 1; l >= 0; l-- {
		rows, cols := m.weights[l].Dims()
		gw := mat.NewDense(rows, cols, grads[2*l])
		gw.Mul(acts[l].T(), delta)
		gw.Add(gw, scaled(m.alpha/n, m.weights[l]))

		gb := grads[2*l+1]
		for j := range gb {
			gb[j] = mat.Sum(delta.ColView(j))
		}

		if l > 0 {
			var next mat.Dense
			next.Mul(delta, m.weights[l].T())
			a := acts[l]
			next.Apply(func(i, j int, v float64) float64 {
				return v * derivative(m.activation, a.At(i, j))
			}, &next)
			delta = &next
		}
	}
	return loss
}

func scaled(f float64, a mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Scale(f, a)
	return &out
}

// PredictProba returns an n×2 matrix of [P(y=0), P(y=1)].
func (m *MLPClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := m.state.RequireFitted("PredictProba"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := m.state.RequireFeatures("MLPClassifier.PredictProba", cols); err != nil {
		return nil, err
	}
	acts := m.forward(X)
	last := acts[len(acts)-1]
	out := mat.NewDense(rows, 2, nil)
	for i := 0; i < rows; i++ {
		p := last.At(i, 0)
		out.Set(i, 0, 1-p)
		out.Set(i, 1, p)
	}
	return out, nil
}

// Predict returns 0/1 labels thresholded at probability 0.5.
func (m *MLPClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := m.PredictProba(X)
	if err != nil {
		return nil, err
	}
	rows, _ := proba.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		if proba.At(i, 1) >= 0.5 {
			out.Set(i, 0, 1)
		}
	}
	return out, nil
}

// Loss returns the training loss of the last epoch.
func (m *MLPClassifier) Loss() float64 { return m.loss_ }

// NIter returns the number of epochs run by Fit.
func (m *MLPClassifier) NIter() int { return m.nIter_ }

// GetParams returns the network hyperparameters.
func (m *MLPClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"hidden_layer_sizes": append([]int(nil), m.hiddenLayerSizes...),
		"activation":         m.activation,
		"solver":             m.solver,
		"alpha":              m.alpha,
		"batch_size":         m.batchSize,
		"learning_rate_init": m.learningRateInit,
		"max_iter":           m.maxIter,
		"tol":                m.tol,
		"n_iter_no_change":   m.nIterNoChange,
		"momentum":           m.momentum,
		"random_state":       m.randomState,
	}
}

// SetParams sets the network hyperparameters.
func (m *MLPClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "hidden_layer_sizes":
			m.hiddenLayerSizes, err = model.ParamIntSlice(key, value)
		case "activation":
			m.activation, err = model.ParamChoice(key, value, ActivationLogistic, ActivationTanh, ActivationReLU, ActivationIdentity)
		case "solver":
			m.solver, err = model.ParamChoice(key, value, SolverSGD, SolverAdam)
		case "alpha":
			m.alpha, err = model.ParamFloat(key, value)
		case "batch_size":
			if s, ok := value.(string); ok && s == "auto" {
				m.batchSize = 0
				continue
			}
			m.batchSize, err = model.ParamPositiveInt(key, value)
		case "learning_rate_init":
			m.learningRateInit, err = model.ParamFloat(key, value)
		case "max_iter":
			m.maxIter, err = model.ParamPositiveInt(key, value)
		case "tol":
			m.tol, err = model.ParamFloat(key, value)
		case "n_iter_no_change":
			m.nIterNoChange, err = model.ParamPositiveInt(key, value)
		case "momentum":
			m.momentum, err = model.ParamFloat(key, value)
		case "random_state":
			m.randomState, err = model.ParamSeed(key, value)
		default:
			err = errors.NewValidationError(key, "unknown parameter for MLPClassifier", value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clone returns an unfitted copy with the same hyperparameters.
func (m *MLPClassifier) Clone() model.Classifier {
	c := *m
	c.state = model.NewStateManager("MLPClassifier")
	c.hiddenLayerSizes = append([]int(nil), m.hiddenLayerSizes...)
	c.weights, c.biases = nil, nil
	c.loss_, c.nIter_ = 0, 0
	return &c
}
