package linear_model

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabsearch/core/model"
	"github.com/YuminosukeSato/tabsearch/pkg/errors"
	"github.com/YuminosukeSato/tabsearch/pkg/log"
)

// Solvers supported by LogisticRegression.
const (
	SolverGD   = "gd"   // full-batch gradient descent with a decaying step
	SolverSAG  = "sag"  // stochastic average gradient
	SolverSAGA = "saga" // SAG variant with a proximal step, supports l1
)

// Penalties supported by LogisticRegression.
const (
	PenaltyL2   = "l2"
	PenaltyL1   = "l1"
	PenaltyNone = "none"
)

// LogisticRegression is a binary logistic regression classifier compatible
// with scikit-learn's LogisticRegression for labels {0, 1}.
type LogisticRegression struct {
	state  *model.StateManager
	logger log.Logger

	// Hyperparameters
	penalty      string  // Regularization: "l2", "l1", "none"
	C            float64 // Inverse regularization strength (1/alpha)
	fitIntercept bool
	solver       string
	maxIter      int // epochs for sag/saga, iterations for gd
	tol          float64
	randomState  uint64

	// Model parameters
	coef_      []float64
	intercept_ float64
	nIter_     int
}

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a new LogisticRegression classifier
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager("LogisticRegression"),
		logger:       log.GetLoggerWithName("linear_model.logistic"),
		penalty:      PenaltyL2,
		C:            1.0,
		fitIntercept: true,
		solver:       SolverGD,
		maxIter:      100,
		tol:          1e-4,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// WithLRPenalty sets the regularization type
func WithLRPenalty(penalty string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.penalty = penalty
	}
}

// WithLRC sets the inverse regularization strength
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.C = c
	}
}

// WithLogisticFitIntercept sets whether to fit intercept
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.fitIntercept = fit
	}
}

// WithLRSolver sets the optimization solver
func WithLRSolver(solver string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.solver = solver
	}
}

// WithLRMaxIter sets the maximum number of iterations
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.maxIter = maxIter
	}
}

// WithLRTol sets the tolerance for stopping criteria
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.tol = tol
	}
}

// WithLRRandomState sets the seed used to shuffle samples in sag and saga
func WithLRRandomState(seed uint64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.randomState = seed
	}
}

func (lr *LogisticRegression) validate() error {
	if lr.C <= 0 {
		return errors.NewValidationError("C", "must be positive", lr.C)
	}
	if lr.maxIter <= 0 {
		return errors.NewValidationError("max_iter", "must be positive", lr.maxIter)
	}
	if lr.penalty == PenaltyL1 && lr.solver != SolverSAGA {
		return errors.NewValueError("LogisticRegression.Fit",
			fmt.Sprintf("solver %s supports only 'l2' or 'none' penalties, got l1 penalty", lr.solver))
	}
	return nil
}

// Fit trains the model on X and binary labels y (n×1).
func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	if err := lr.validate(); err != nil {
		return err
	}
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples != yRows {
		return errors.NewDimensionError("LogisticRegression.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("LogisticRegression.Fit", 1, yCols, 1)
	}
	labels, err := binaryLabels("LogisticRegression.Fit", y)
	if err != nil {
		return err
	}

	lr.coef_ = make([]float64, nFeatures)
	lr.intercept_ = 0
	switch lr.solver {
	case SolverGD:
		lr.fitGD(X, labels)
	case SolverSAG, SolverSAGA:
		lr.fitSAG(X, labels)
	default:
		return errors.NewValidationError("solver", "must be one of gd, sag, saga", lr.solver)
	}
	if err := errors.CheckScalar("LogisticRegression.Fit", floats.Sum(lr.coef_)+lr.intercept_, lr.nIter_); err != nil {
		return err
	}

	lr.state.SetFitted(nFeatures, nSamples)
	return nil
}

// fitGD fits with full-batch gradient descent
func (lr *LogisticRegression) fitGD(X mat.Matrix, y []float64) {
	nSamples, nFeatures := X.Dims()
	lambda := lr.alpha(nSamples)
	gradWeights := make([]float64, nFeatures)
	row := make([]float64, nFeatures)

	for iter := 0; iter < lr.maxIter; iter++ {
		for j := range gradWeights {
			gradWeights[j] = 0
		}
		gradIntercept := 0.0
		for i := 0; i < nSamples; i++ {
			mat.Row(row, i, X)
			residual := errors.Sigmoid(floats.Dot(row, lr.coef_)+lr.intercept_) - y[i]
			gradIntercept += residual
			floats.AddScaled(gradWeights, residual, row)
		}
		floats.Scale(1/float64(nSamples), gradWeights)
		gradIntercept /= float64(nSamples)
		if lr.penalty == PenaltyL2 {
			floats.AddScaled(gradWeights, lambda, lr.coef_)
		}

		learningRate := 1.0 / (1.0 + 0.1*float64(iter))
		floats.AddScaled(lr.coef_, -learningRate, gradWeights)
		if lr.fitIntercept {
			lr.intercept_ -= learningRate * gradIntercept
		}
		lr.nIter_ = iter + 1

		maxGrad := math.Max(math.Abs(gradIntercept), floats.Norm(gradWeights, math.Inf(1)))
		if maxGrad < lr.tol {
			return
		}
	}
	lr.warnNotConverged()
}

// fitSAG fits with the stochastic average gradient method. With saga, the
// update uses the unbiased SAGA estimate followed by a proximal step for l1.
func (lr *LogisticRegression) fitSAG(X mat.Matrix, y []float64) {
	nSamples, nFeatures := X.Dims()
	rows := make([][]float64, nSamples)
	maxSquaredSum := 0.0
	for i := range rows {
		rows[i] = mat.Row(nil, i, X)
		maxSquaredSum = math.Max(maxSquaredSum, floats.Dot(rows[i], rows[i]))
	}

	alpha := lr.alpha(nSamples)
	l2 := 0.0
	if lr.penalty == PenaltyL2 {
		l2 = alpha
	}
	intercept := 0.0
	if lr.fitIntercept {
		intercept = 1
	}
	lipschitz := 0.25*(maxSquaredSum+intercept) + l2
	step := 1 / lipschitz
	if lr.solver == SolverSAGA {
		step = 1 / (2*lipschitz + math.Min(2*float64(nSamples)*l2, lipschitz))
	}

	rng := rand.New(rand.NewPCG(lr.randomState, lr.randomState))
	memory := make([]float64, nSamples)
	seen := make([]bool, nSamples)
	nSeen := 0
	sumGrad := make([]float64, nFeatures)
	sumGradIntercept := 0.0
	prev := make([]float64, nFeatures)

	for epoch := 0; epoch < lr.maxIter; epoch++ {
		copy(prev, lr.coef_)
		for k := 0; k < nSamples; k++ {
			i := rng.IntN(nSamples)
			if !seen[i] {
				seen[i] = true
				nSeen++
			}
			residual := errors.Sigmoid(floats.Dot(rows[i], lr.coef_)+lr.intercept_) - y[i]
			delta := residual - memory[i]
			memory[i] = residual

			if lr.solver == SolverSAGA {
				for j, x := range rows[i] {
					g := delta*x + sumGrad[j]/float64(nSamples) + l2*lr.coef_[j]
					sumGrad[j] += delta * x
					lr.coef_[j] -= step * g
					if lr.penalty == PenaltyL1 {
						lr.coef_[j] = softThreshold(lr.coef_[j], step*alpha)
					}
				}
				if lr.fitIntercept {
					g := delta + sumGradIntercept/float64(nSamples)
					sumGradIntercept += delta
					lr.intercept_ -= step * g
				}
				continue
			}

			floats.AddScaled(sumGrad, delta, rows[i])
			for j := range lr.coef_ {
				lr.coef_[j] -= step * (sumGrad[j]/float64(nSeen) + l2*lr.coef_[j])
			}
			if lr.fitIntercept {
				sumGradIntercept += delta
				lr.intercept_ -= step * sumGradIntercept / float64(nSeen)
			}
		}
		lr.nIter_ = epoch + 1

		// sklearn の停止条件: max|Δw| / max|w| < tol
		maxWeight, maxChange := 0.0, 0.0
		for j, w := range lr.coef_ {
			maxWeight = math.Max(maxWeight, math.Abs(w))
			maxChange = math.Max(maxChange, math.Abs(w-prev[j]))
		}
		if maxWeight == 0 || maxChange/maxWeight < lr.tol {
			return
		}
	}
	lr.warnNotConverged()
}

// alpha is the per-sample regularization strength 1/(C·n).
func (lr *LogisticRegression) alpha(nSamples int) float64 {
	if lr.penalty == PenaltyNone {
		return 0
	}
	return 1.0 / (lr.C * float64(nSamples))
}

func (lr *LogisticRegression) warnNotConverged() {
	lr.logger.Debug("logistic regression hit max_iter",
		log.ModelNameKey, "LogisticRegression",
		log.IterationsKey, lr.nIter_,
		log.ConvergedKey, false,
	)
	errors.Warn(errors.NewConvergenceWarning("LogisticRegression("+lr.solver+")", lr.nIter_, "the coef_ did not converge"))
}

func softThreshold(w, t float64) float64 {
	switch {
	case w > t:
		return w - t
	case w < -t:
		return w + t
	default:
		return 0
	}
}

// binaryLabels extracts y as 0/1 floats and requires both classes.
func binaryLabels(op string, y mat.Matrix) ([]float64, error) {
	n, _ := y.Dims()
	labels := make([]float64, n)
	var pos int
	for i := 0; i < n; i++ {
		v := y.At(i, 0)
		if v != 0 && v != 1 {
			return nil, errors.NewValueError(op, fmt.Sprintf("labels must be 0 or 1, got %v", v))
		}
		labels[i] = v
		pos += int(v)
	}
	if pos == 0 || pos == n {
		return nil, errors.NewValueError(op, "this solver needs samples of at least 2 classes in the data")
	}
	return labels, nil
}

func (lr *LogisticRegression) decision(X mat.Matrix, method string) ([]float64, error) {
	if err := lr.state.RequireFitted(method); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if err := lr.state.RequireFeatures("LogisticRegression."+method, nFeatures); err != nil {
		return nil, err
	}
	out := make([]float64, nSamples)
	row := make([]float64, nFeatures)
	for i := range out {
		mat.Row(row, i, X)
		out[i] = floats.Dot(row, lr.coef_) + lr.intercept_
	}
	return out, nil
}

// Predict makes 0/1 predictions for input data
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	z, err := lr.decision(X, "Predict")
	if err != nil {
		return nil, err
	}
	predictions := mat.NewDense(len(z), 1, nil)
	for i, v := range z {
		if errors.Sigmoid(v) >= 0.5 {
			predictions.Set(i, 0, 1)
		}
	}
	return predictions, nil
}

// PredictProba returns an n×2 matrix of [P(y=0), P(y=1)]
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	z, err := lr.decision(X, "PredictProba")
	if err != nil {
		return nil, err
	}
	probas := mat.NewDense(len(z), 2, nil)
	for i, v := range z {
		p := errors.Sigmoid(v)
		probas.Set(i, 0, 1-p)
		probas.Set(i, 1, p)
	}
	return probas, nil
}

// Score returns the mean accuracy on the given test data and labels
func (lr *LogisticRegression) Score(X, y mat.Matrix) float64 {
	predictions, err := lr.Predict(X)
	if err != nil {
		return 0.0
	}
	nSamples, _ := X.Dims()
	correct := 0
	for i := 0; i < nSamples; i++ {
		if predictions.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(nSamples)
}

// Coef returns a copy of the fitted coefficients.
func (lr *LogisticRegression) Coef() []float64 {
	return append([]float64(nil), lr.coef_...)
}

// Intercept returns the fitted intercept.
func (lr *LogisticRegression) Intercept() float64 {
	return lr.intercept_
}

// NIter returns the number of iterations (epochs for sag/saga) run by Fit.
func (lr *LogisticRegression) NIter() int {
	return lr.nIter_
}

// GetParams returns the model hyperparameters
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"penalty":       lr.penalty,
		"C":             lr.C,
		"fit_intercept": lr.fitIntercept,
		"random_state":  lr.randomState,
		"solver":        lr.solver,
		"max_iter":      lr.maxIter,
		"tol":           lr.tol,
	}
}

// SetParams sets the model hyperparameters
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "penalty":
			lr.penalty, err = model.ParamChoice(key, value, PenaltyL2, PenaltyL1, PenaltyNone)
		case "C":
			lr.C, err = model.ParamFloat(key, value)
		case "fit_intercept":
			lr.fitIntercept, err = model.ParamBool(key, value)
		case "random_state":
			lr.randomState, err = model.ParamSeed(key, value)
		case "solver":
			lr.solver, err = model.ParamChoice(key, value, SolverGD, SolverSAG, SolverSAGA)
		case "max_iter":
			lr.maxIter, err = model.ParamInt(key, value)
		case "tol":
			lr.tol, err = model.ParamFloat(key, value)
		default:
			err = errors.NewValidationError(key, "unknown parameter for LogisticRegression", value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clone returns an unfitted copy with the same hyperparameters.
func (lr *LogisticRegression) Clone() model.Classifier {
	return &LogisticRegression{
		state:        model.NewStateManager("LogisticRegression"),
		logger:       lr.logger,
		penalty:      lr.penalty,
		C:            lr.C,
		fitIntercept: lr.fitIntercept,
		solver:       lr.solver,
		maxIter:      lr.maxIter,
		tol:          lr.tol,
		randomState:  lr.randomState,
	}
}
