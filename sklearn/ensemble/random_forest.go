package ensemble

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabsearch/core/model"
	"github.com/YuminosukeSato/tabsearch/core/parallel"
	"github.com/YuminosukeSato/tabsearch/pkg/errors"
	"github.com/YuminosukeSato/tabsearch/sklearn/tree"
)

// RandomForestClassifier averages the class probabilities of decision trees
// grown on bootstrap samples with a random feature subset per split.
type RandomForestClassifier struct {
	state *model.StateManager

	nEstimators     int
	criterion       string
	maxDepth        int // <= 0 means unlimited
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     string
	bootstrap       bool
	nJobs           int
	randomState     uint64

	estimators []*tree.DecisionTreeClassifier
}

// ForestOption is a functional option for RandomForestClassifier.
type ForestOption func(*RandomForestClassifier)

// WithForestNEstimators sets the number of trees.
func WithForestNEstimators(n int) ForestOption {
	return func(rf *RandomForestClassifier) { rf.nEstimators = n }
}

// WithForestMaxDepth sets the maximum depth of each tree.
func WithForestMaxDepth(depth int) ForestOption {
	return func(rf *RandomForestClassifier) { rf.maxDepth = depth }
}

// WithForestCriterion sets the split criterion.
func WithForestCriterion(criterion string) ForestOption {
	return func(rf *RandomForestClassifier) { rf.criterion = criterion }
}

// WithForestMaxFeatures sets the per-split feature subset rule.
func WithForestMaxFeatures(maxFeatures string) ForestOption {
	return func(rf *RandomForestClassifier) { rf.maxFeatures = maxFeatures }
}

// WithBootstrap toggles bootstrap resampling.
func WithBootstrap(bootstrap bool) ForestOption {
	return func(rf *RandomForestClassifier) { rf.bootstrap = bootstrap }
}

// WithForestNJobs sets the number of goroutines growing trees. <= 0 means one per CPU.
func WithForestNJobs(n int) ForestOption {
	return func(rf *RandomForestClassifier) { rf.nJobs = n }
}

// WithForestRandomState sets the seed.
func WithForestRandomState(seed uint64) ForestOption {
	return func(rf *RandomForestClassifier) { rf.randomState = seed }
}

// NewRandomForestClassifier creates a forest with sklearn defaults.
func NewRandomForestClassifier(opts ...ForestOption) *RandomForestClassifier {
	rf := &RandomForestClassifier{
		state:           model.NewStateManager("RandomForestClassifier"),
		nEstimators:     100,
		criterion:       tree.CriterionGini,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     tree.MaxFeaturesSqrt,
		bootstrap:       true,
		nJobs:           1,
	}
	for _, opt := range opts {
		opt(rf)
	}
	return rf
}

// Fit grows the forest on X and binary labels y (n×1).
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) error {
	if rf.nEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be >= 1", rf.nEstimators)
	}
	rows, cols := X.Dims()
	yRows, yCols := y.Dims()
	if rows != yRows {
		return errors.NewDimensionError("RandomForestClassifier.Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("RandomForestClassifier.Fit", 1, yCols, 1)
	}
	Xd := mat.DenseCopyOf(X)
	labels := make([]float64, rows)
	for i := range labels {
		labels[i] = y.At(i, 0)
	}

	// 木ごとのシードは事前に引くのでスケジューリング順に依存しない
	rng := rand.New(rand.NewPCG(rf.randomState, 0x2545f4914f6cdd1d))
	seeds := make([]uint64, rf.nEstimators)
	for i := range seeds {
		seeds[i] = rng.Uint64()
	}

	estimators := make([]*tree.DecisionTreeClassifier, rf.nEstimators)
	errs := make([]error, rf.nEstimators)
	parallel.Parallelize(rf.nEstimators, rf.nJobs, func(start, end int) {
		for k := start; k < end; k++ {
			errs[k] = errors.SafeExecute("RandomForestClassifier.Fit", func() error {
				dt := tree.NewDecisionTreeClassifier(
					tree.WithCriterion(rf.criterion),
					tree.WithMaxDepth(rf.maxDepth),
					tree.WithMinSamplesSplit(rf.minSamplesSplit),
					tree.WithMinSamplesLeaf(rf.minSamplesLeaf),
					tree.WithMaxFeatures(rf.maxFeatures),
					tree.WithRandomState(seeds[k]),
				)
				estimators[k] = dt
				return dt.FitWeighted(Xd, labels, rf.sampleWeights(rows, seeds[k]))
			})
		}
	})
	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	rf.estimators = estimators
	rf.state.SetFitted(cols, rows)
	return nil
}

// sampleWeights draws a bootstrap sample as per-row counts.
func (rf *RandomForestClassifier) sampleWeights(n int, seed uint64) []float64 {
	w := make([]float64, n)
	if !rf.bootstrap {
		for i := range w {
			w[i] = 1
		}
		return w
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	for i := 0; i < n; i++ {
		w[rng.IntN(n)]++
	}
	return w
}

// PredictProba returns the mean of the trees' [P(y=0), P(y=1)].
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := rf.state.RequireFitted("PredictProba"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := rf.state.RequireFeatures("RandomForestClassifier.PredictProba", cols); err != nil {
		return nil, err
	}
	out := mat.NewDense(rows, 2, nil)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, X)
		p := 0.0
		for _, est := range rf.estimators {
			p += est.ProbaRow(row)
		}
		p /= float64(len(rf.estimators))
		out.Set(i, 0, 1-p)
		out.Set(i, 1, p)
	}
	return out, nil
}

// Predict returns the class with the highest mean probability.
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := rf.PredictProba(X)
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

// FeatureImportances returns the mean of the trees' normalized importances.
func (rf *RandomForestClassifier) FeatureImportances() []float64 {
	if len(rf.estimators) == 0 {
		return nil
	}
	var out []float64
	for _, est := range rf.estimators {
		imp := est.GetFeatureImportances()
		if out == nil {
			out = make([]float64, len(imp))
		}
		for j, v := range imp {
			out[j] += v / float64(len(rf.estimators))
		}
	}
	return out
}

// GetParams returns the forest hyperparameters.
func (rf *RandomForestClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      rf.nEstimators,
		"criterion":         rf.criterion,
		"max_depth":         rf.maxDepth,
		"min_samples_split": rf.minSamplesSplit,
		"min_samples_leaf":  rf.minSamplesLeaf,
		"max_features":      rf.maxFeatures,
		"bootstrap":         rf.bootstrap,
		"n_jobs":            rf.nJobs,
		"random_state":      rf.randomState,
	}
}

// SetParams sets the forest hyperparameters.
func (rf *RandomForestClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "n_estimators":
			rf.nEstimators, err = model.ParamPositiveInt(key, value)
		case "criterion":
			rf.criterion, err = model.ParamChoice(key, value, tree.CriterionGini, tree.CriterionEntropy)
		case "max_depth":
			rf.maxDepth, err = model.ParamInt(key, value)
		case "min_samples_split":
			rf.minSamplesSplit, err = model.ParamInt(key, value)
			if err == nil && rf.minSamplesSplit < 2 {
				err = errors.NewValidationError(key, "must be >= 2", value)
			}
		case "min_samples_leaf":
			rf.minSamplesLeaf, err = model.ParamPositiveInt(key, value)
		case "max_features":
			rf.maxFeatures, err = model.ParamChoice(key, value, tree.MaxFeaturesAll, tree.MaxFeaturesSqrt, tree.MaxFeaturesLog2)
		case "bootstrap":
			rf.bootstrap, err = model.ParamBool(key, value)
		case "n_jobs":
			rf.nJobs, err = model.ParamInt(key, value)
		case "random_state":
			rf.randomState, err = model.ParamSeed(key, value)
		default:
			err = errors.NewValidationError(key, "unknown parameter for RandomForestClassifier", value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clone returns an unfitted copy with the same hyperparameters.
func (rf *RandomForestClassifier) Clone() model.Classifier {
	c := *rf
	c.state = model.NewStateManager("RandomForestClassifier")
	c.estimators = nil
	return &c
}
