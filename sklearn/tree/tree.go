// Package tree implements a CART decision tree classifier for binary labels.
// RandomForestClassifier grows its members with FitWeighted.
package tree

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabsearch/core/model"
	"github.com/YuminosukeSato/tabsearch/pkg/errors"
)

// Split criteria.
const (
	CriterionGini    = "gini"
	CriterionEntropy = "entropy"
)

// max_features settings understood by the tree.
const (
	MaxFeaturesAll  = "all"
	MaxFeaturesSqrt = "sqrt"
	MaxFeaturesLog2 = "log2"
)

type node struct {
	feature   int // -1 for a leaf
	threshold float64
	left      int
	right     int
	value     float64 // weighted fraction of positive samples
	weight    float64
	depth     int
}

// DecisionTreeClassifier is a binary CART classifier compatible with
// scikit-learn's DecisionTreeClassifier for labels {0, 1}.
type DecisionTreeClassifier struct {
	state *model.StateManager

	criterion       string
	maxDepth        int // <= 0 means unlimited
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     string
	randomState     uint64

	nodes               []node
	featureImportances_ []float64
	nClasses_           int
}

// Option is a functional option for DecisionTreeClassifier.
type Option func(*DecisionTreeClassifier)

// NewDecisionTreeClassifier creates a new DecisionTreeClassifier.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		state:           model.NewStateManager("DecisionTreeClassifier"),
		criterion:       CriterionGini,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     MaxFeaturesAll,
		nClasses_:       2,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

// WithCriterion sets the impurity criterion ("gini" or "entropy").
func WithCriterion(criterion string) Option {
	return func(dt *DecisionTreeClassifier) { dt.criterion = criterion }
}

// WithMaxDepth sets the maximum depth. Zero or a negative value means unlimited.
func WithMaxDepth(depth int) Option {
	return func(dt *DecisionTreeClassifier) { dt.maxDepth = depth }
}

// WithMinSamplesSplit sets the minimum number of samples required to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum number of samples in each leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesLeaf = n }
}

// WithMaxFeatures sets how many features are considered per split.
func WithMaxFeatures(maxFeatures string) Option {
	return func(dt *DecisionTreeClassifier) { dt.maxFeatures = maxFeatures }
}

// WithRandomState sets the seed for feature sampling.
func WithRandomState(seed uint64) Option {
	return func(dt *DecisionTreeClassifier) { dt.randomState = seed }
}

// Fit builds the tree from X and binary labels y (n×1).
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	nSamples, _ := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples != yRows {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", 1, yCols, 1)
	}
	labels := make([]float64, nSamples)
	for i := range labels {
		labels[i] = y.At(i, 0)
	}
	return dt.FitWeighted(X, labels, nil)
}

// FitWeighted builds the tree with per-sample weights. Rows with zero weight
// are ignored; nil weights means every row counts once. Bootstrap resampling
// passes the draw counts as weights.
func (dt *DecisionTreeClassifier) FitWeighted(X mat.Matrix, y, weights []float64) error {
	if err := dt.validate(); err != nil {
		return err
	}
	nSamples, nFeatures := X.Dims()
	if nSamples == 0 {
		return errors.NewValueError("DecisionTreeClassifier.Fit", "no samples")
	}
	for _, v := range y {
		if v != 0 && v != 1 {
			return errors.NewValueError("DecisionTreeClassifier.Fit", fmt.Sprintf("labels must be 0 or 1, got %v", v))
		}
	}
	if weights == nil {
		weights = make([]float64, nSamples)
		for i := range weights {
			weights[i] = 1
		}
	}

	b := &builder{
		dt:          dt,
		X:           mat.DenseCopyOf(X),
		y:           y,
		w:           weights,
		nFeatures:   nFeatures,
		maxFeatures: dt.resolveMaxFeatures(nFeatures),
		rng:         rand.New(rand.NewPCG(dt.randomState, 0x9e3779b97f4a7c15)),
		importances: make([]float64, nFeatures),
	}
	idx := make([]int, 0, nSamples)
	for i, w := range weights {
		if w > 0 {
			idx = append(idx, i)
		}
	}
	dt.nodes = dt.nodes[:0]
	b.total = b.sumWeight(idx)
	b.grow(idx, 0)

	total := 0.0
	for _, v := range b.importances {
		total += v
	}
	if total > 0 {
		for i := range b.importances {
			b.importances[i] /= total
		}
	}
	dt.featureImportances_ = b.importances
	dt.state.SetFitted(nFeatures, nSamples)
	return nil
}

func (dt *DecisionTreeClassifier) validate() error {
	if dt.criterion != CriterionGini && dt.criterion != CriterionEntropy {
		return errors.NewValidationError("criterion", "must be gini or entropy", dt.criterion)
	}
	if dt.minSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be >= 2", dt.minSamplesSplit)
	}
	if dt.minSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be >= 1", dt.minSamplesLeaf)
	}
	return nil
}

func (dt *DecisionTreeClassifier) resolveMaxFeatures(nFeatures int) int {
	var k int
	switch dt.maxFeatures {
	case MaxFeaturesSqrt:
		k = int(math.Sqrt(float64(nFeatures)))
	case MaxFeaturesLog2:
		k = int(math.Log2(float64(nFeatures)))
	default:
		k = nFeatures
	}
	return max(1, min(k, nFeatures))
}

type builder struct {
	dt          *DecisionTreeClassifier
	X           *mat.Dense
	y           []float64
	w           []float64
	nFeatures   int
	maxFeatures int
	rng         *rand.Rand
	importances []float64
	total       float64
}

func (b *builder) sumWeight(idx []int) float64 {
	s := 0.0
	for _, i := range idx {
		s += b.w[i]
	}
	return s
}

func (b *builder) impurity(pos, total float64) float64 {
	if total == 0 {
		return 0
	}
	p := pos / total
	if b.dt.criterion == CriterionEntropy {
		h := 0.0
		for _, q := range []float64{p, 1 - p} {
			if q > 0 {
				h -= q * math.Log2(q)
			}
		}
		return h
	}
	return 2 * p * (1 - p)
}

// grow appends the subtree for idx and returns its node index.
func (b *builder) grow(idx []int, depth int) int {
	weight, pos := 0.0, 0.0
	for _, i := range idx {
		weight += b.w[i]
		pos += b.w[i] * b.y[i]
	}
	id := len(b.dt.nodes)
	b.dt.nodes = append(b.dt.nodes, node{feature: -1, value: pos / weight, weight: weight, depth: depth})

	imp := b.impurity(pos, weight)
	if imp == 0 || weight < float64(b.dt.minSamplesSplit) ||
		(b.dt.maxDepth > 0 && depth >= b.dt.maxDepth) {
		return id
	}

	feature, threshold, gain, ok := b.bestSplit(idx, imp, weight, pos)
	if !ok {
		return id
	}
	var left, right []int
	for _, i := range idx {
		if b.X.At(i, feature) <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	b.importances[feature] += weight / b.total * gain

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	n := &b.dt.nodes[id]
	n.feature, n.threshold, n.left, n.right = feature, threshold, l, r
	return id
}

// bestSplit scans the sampled features for the split with the largest
// impurity decrease. A valid split is taken even when it does not decrease
// impurity, as sklearn does; only pure nodes stop early.
func (b *builder) bestSplit(idx []int, parentImp, weight, pos float64) (int, float64, float64, bool) {
	features := b.rng.Perm(b.nFeatures)[:b.maxFeatures]
	if b.maxFeatures == b.nFeatures {
		sort.Ints(features)
	}
	minLeaf := float64(b.dt.minSamplesLeaf)
	bestFeature, bestThreshold, bestGain := -1, 0.0, math.Inf(-1)
	sorted := make([]int, len(idx))

	for _, f := range features {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, c int) bool {
			return b.X.At(sorted[a], f) < b.X.At(sorted[c], f)
		})
		leftW, leftPos := 0.0, 0.0
		for k := 0; k < len(sorted)-1; k++ {
			i := sorted[k]
			leftW += b.w[i]
			leftPos += b.w[i] * b.y[i]
			cur, next := b.X.At(i, f), b.X.At(sorted[k+1], f)
			if cur == next {
				continue
			}
			rightW := weight - leftW
			if leftW < minLeaf || rightW < minLeaf {
				continue
			}
			child := leftW/weight*b.impurity(leftPos, leftW) + rightW/weight*b.impurity(pos-leftPos, rightW)
			if gain := parentImp - child; gain > bestGain+1e-12 {
				bestFeature, bestThreshold, bestGain = f, (cur+next)/2, gain
			}
		}
	}
	return bestFeature, bestThreshold, bestGain, bestFeature >= 0
}

// ProbaRow returns P(y=1) for a single feature row.
func (dt *DecisionTreeClassifier) ProbaRow(row []float64) float64 {
	n := dt.nodes[0]
	for n.feature >= 0 {
		if row[n.feature] <= n.threshold {
			n = dt.nodes[n.left]
		} else {
			n = dt.nodes[n.right]
		}
	}
	return n.value
}

func (dt *DecisionTreeClassifier) positive(X mat.Matrix, method string) ([]float64, error) {
	if err := dt.state.RequireFitted(method); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if err := dt.state.RequireFeatures("DecisionTreeClassifier."+method, nFeatures); err != nil {
		return nil, err
	}
	out := make([]float64, nSamples)
	row := make([]float64, nFeatures)
	for i := range out {
		mat.Row(row, i, X)
		out[i] = dt.ProbaRow(row)
	}
	return out, nil
}

// Predict returns the majority class of the leaf reached by each row.
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	p, err := dt.positive(X, "Predict")
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(len(p), 1, nil)
	for i, v := range p {
		if v > 0.5 {
			out.Set(i, 0, 1)
		}
	}
	return out, nil
}

// PredictProba returns an n×2 matrix of [P(y=0), P(y=1)] leaf frequencies.
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	p, err := dt.positive(X, "PredictProba")
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(len(p), 2, nil)
	for i, v := range p {
		out.Set(i, 0, 1-v)
		out.Set(i, 1, v)
	}
	return out, nil
}

// Score returns the mean accuracy on the given data.
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0
	}
	n, _ := X.Dims()
	correct := 0
	for i := 0; i < n; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(n)
}

// GetFeatureImportances returns the normalized impurity decrease per feature.
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	return append([]float64(nil), dt.featureImportances_...)
}

// GetDepth returns the depth of the deepest leaf.
func (dt *DecisionTreeClassifier) GetDepth() int {
	depth := 0
	for _, n := range dt.nodes {
		depth = max(depth, n.depth)
	}
	return depth
}

// GetNLeaves returns the number of leaves.
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	leaves := 0
	for _, n := range dt.nodes {
		if n.feature < 0 {
			leaves++
		}
	}
	return leaves
}

// GetParams returns the tree hyperparameters.
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         dt.criterion,
		"max_depth":         dt.maxDepth,
		"min_samples_split": dt.minSamplesSplit,
		"min_samples_leaf":  dt.minSamplesLeaf,
		"max_features":      dt.maxFeatures,
		"random_state":      dt.randomState,
	}
}

// SetParams sets the tree hyperparameters.
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "criterion":
			dt.criterion, err = model.ParamChoice(key, value, CriterionGini, CriterionEntropy)
		case "max_depth":
			dt.maxDepth, err = model.ParamInt(key, value)
		case "min_samples_split":
			dt.minSamplesSplit, err = model.ParamInt(key, value)
		case "min_samples_leaf":
			dt.minSamplesLeaf, err = model.ParamPositiveInt(key, value)
		case "max_features":
			dt.maxFeatures, err = model.ParamChoice(key, value, MaxFeaturesAll, MaxFeaturesSqrt, MaxFeaturesLog2)
		case "random_state":
			dt.randomState, err = model.ParamSeed(key, value)
		default:
			err = errors.NewValidationError(key, "unknown parameter for DecisionTreeClassifier", value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clone returns an unfitted copy with the same hyperparameters.
func (dt *DecisionTreeClassifier) Clone() model.Classifier {
	c := NewDecisionTreeClassifier()
	c.criterion = dt.criterion
	c.maxDepth = dt.maxDepth
	c.minSamplesSplit = dt.minSamplesSplit
	c.minSamplesLeaf = dt.minSamplesLeaf
	c.maxFeatures = dt.maxFeatures
	c.randomState = dt.randomState
	return c
}
