package ensemble

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabsearch/core/model"
	"github.com/YuminosukeSato/tabsearch/pkg/errors"
	"github.com/YuminosukeSato/tabsearch/pkg/log"
)

// ObjectiveBinaryLogistic is the only supported boosting objective.
const ObjectiveBinaryLogistic = "binary:logistic"

// BoostingParams contains the gradient boosting hyperparameters, named after
// their XGBoost counterparts.
type BoostingParams struct {
	NEstimators     int     `json:"n_estimators"`
	MaxDepth        int     `json:"max_depth"`
	LearningRate    float64 `json:"learning_rate"`
	MinChildWeight  float64 `json:"min_child_weight"`
	Lambda          float64 `json:"reg_lambda"`
	Gamma           float64 `json:"gamma"`
	Subsample       float64 `json:"subsample"`
	ColsampleByTree float64 `json:"colsample_bytree"`
	Objective       string  `json:"objective"`
	Seed            uint64  `json:"random_state"`
}

// DefaultBoostingParams returns the XGBoost defaults.
func DefaultBoostingParams() BoostingParams {
	return BoostingParams{
		NEstimators:     100,
		MaxDepth:        6,
		LearningRate:    0.3,
		MinChildWeight:  1,
		Lambda:          1,
		Subsample:       1,
		ColsampleByTree: 1,
		Objective:       ObjectiveBinaryLogistic,
	}
}

func (p BoostingParams) validate() error {
	switch {
	case p.NEstimators < 1:
		return errors.NewValidationError("n_estimators", "must be >= 1", p.NEstimators)
	case p.MaxDepth < 0:
		return errors.NewValidationError("max_depth", "must be >= 0", p.MaxDepth)
	case p.LearningRate <= 0:
		return errors.NewValidationError("learning_rate", "must be positive", p.LearningRate)
	case p.MinChildWeight < 0:
		return errors.NewValidationError("min_child_weight", "must be >= 0", p.MinChildWeight)
	case p.Lambda < 0:
		return errors.NewValidationError("reg_lambda", "must be >= 0", p.Lambda)
	case p.Gamma < 0:
		return errors.NewValidationError("gamma", "must be >= 0", p.Gamma)
	case p.Subsample <= 0 || p.Subsample > 1:
		return errors.NewValidationError("subsample", "must be in (0, 1]", p.Subsample)
	case p.ColsampleByTree <= 0 || p.ColsampleByTree > 1:
		return errors.NewValidationError("colsample_bytree", "must be in (0, 1]", p.ColsampleByTree)
	case p.Objective != ObjectiveBinaryLogistic:
		return errors.NewValidationError("objective", "must be "+ObjectiveBinaryLogistic, p.Objective)
	}
	return nil
}

// boostNode is a node of a regression tree fitted to gradients.
type boostNode struct {
	feature   int // -1 for a leaf
	threshold float64
	left      int
	right     int
	value     float64
	gain      float64
}

type boostTree struct {
	nodes []boostNode
}

func (t *boostTree) predictRow(row []float64) float64 {
	i := 0
	for t.nodes[i].feature >= 0 {
		if row[t.nodes[i].feature] <= t.nodes[i].threshold {
			i = t.nodes[i].left
		} else {
			i = t.nodes[i].right
		}
	}
	return t.nodes[i].value
}

// GradientBoostingClassifier is a binary gradient boosted tree classifier
// that follows XGBoost's exact greedy algorithm: second-order gradients of
// the logistic loss, L2-regularized leaf weights and min_child_weight on the
// hessian sum.
type GradientBoostingClassifier struct {
	state  *model.StateManager
	logger log.Logger
	params BoostingParams

	trees     []boostTree
	baseScore float64
	gains     []float64
}

// BoostingOption is a functional option for GradientBoostingClassifier.
type BoostingOption func(*BoostingParams)

// WithNEstimators sets the number of boosting rounds.
func WithNEstimators(n int) BoostingOption {
	return func(p *BoostingParams) { p.NEstimators = n }
}

// WithBoostingMaxDepth sets the maximum tree depth. Zero means unlimited.
func WithBoostingMaxDepth(depth int) BoostingOption {
	return func(p *BoostingParams) { p.MaxDepth = depth }
}

// WithLearningRate sets the shrinkage applied to each tree.
func WithLearningRate(eta float64) BoostingOption {
	return func(p *BoostingParams) { p.LearningRate = eta }
}

// WithMinChildWeight sets the minimum hessian sum of a child.
func WithMinChildWeight(w float64) BoostingOption {
	return func(p *BoostingParams) { p.MinChildWeight = w }
}

// WithLambda sets the L2 regularization on leaf weights.
func WithLambda(lambda float64) BoostingOption {
	return func(p *BoostingParams) { p.Lambda = lambda }
}

// WithSubsample sets the row sampling ratio per tree.
func WithSubsample(ratio float64) BoostingOption {
	return func(p *BoostingParams) { p.Subsample = ratio }
}

// WithBoostingRandomState sets the seed for row and column sampling.
func WithBoostingRandomState(seed uint64) BoostingOption {
	return func(p *BoostingParams) { p.Seed = seed }
}

// NewGradientBoostingClassifier creates a classifier with XGBoost defaults.
func NewGradientBoostingClassifier(opts ...BoostingOption) *GradientBoostingClassifier {
	params := DefaultBoostingParams()
	for _, opt := range opts {
		opt(&params)
	}
	return &GradientBoostingClassifier{
		state:  model.NewStateManager("GradientBoostingClassifier"),
		logger: log.GetLoggerWithName("ensemble.gradient_boosting"),
		params: params,
	}
}

// Params returns a copy of the hyperparameters.
func (gb *GradientBoostingClassifier) Params() BoostingParams {
	return gb.params
}

// trainer holds the per-fit working state.
type trainer struct {
	p          BoostingParams
	X          *mat.Dense
	y          []float64
	gradients  []float64
	hessians   []float64
	margin     []float64
	orderedIdx [][]int // rows sorted by each feature
	inNode     []bool
	features   []int
	gains      []float64
}

// Fit trains the ensemble on X and binary labels y (n×1).
func (gb *GradientBoostingClassifier) Fit(X, y mat.Matrix) error {
	if err := gb.params.validate(); err != nil {
		return err
	}
	rows, cols := X.Dims()
	yRows, yCols := y.Dims()
	if rows != yRows {
		return errors.NewDimensionError("GradientBoostingClassifier.Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("GradientBoostingClassifier.Fit", 1, yCols, 1)
	}
	if rows == 0 {
		return errors.NewValueError("GradientBoostingClassifier.Fit", "no samples")
	}

	t := &trainer{
		p:         gb.params,
		X:         mat.DenseCopyOf(X),
		y:         make([]float64, rows),
		gradients: make([]float64, rows),
		hessians:  make([]float64, rows),
		margin:    make([]float64, rows),
		inNode:    make([]bool, rows),
		gains:     make([]float64, cols),
	}
	for i := range t.y {
		v := y.At(i, 0)
		if v != 0 && v != 1 {
			return errors.NewValueError("GradientBoostingClassifier.Fit", fmt.Sprintf("labels must be 0 or 1, got %v", v))
		}
		t.y[i] = v
	}

	// Create sorted indices for each feature
	t.orderedIdx = make([][]int, cols)
	for j := 0; j < cols; j++ {
		indices := make([]int, rows)
		for i := range indices {
			indices[i] = i
		}
		feature := j
		sort.SliceStable(indices, func(a, b int) bool {
			return t.X.At(indices[a], feature) < t.X.At(indices[b], feature)
		})
		t.orderedIdx[j] = indices
	}

	// base_score 0.5 は margin 0 に相当する
	gb.baseScore = 0
	rng := rand.New(rand.NewPCG(gb.params.Seed, 0xda3e39cb94b95bdb))
	gb.trees = make([]boostTree, 0, gb.params.NEstimators)

	for iter := 0; iter < gb.params.NEstimators; iter++ {
		t.calculateGradients()
		sample := t.sampleRows(rng)
		t.sampleFeatures(rng, cols)

		tree := boostTree{}
		t.buildNode(&tree, sample, 0)
		gb.trees = append(gb.trees, tree)

		row := make([]float64, cols)
		for i := range t.margin {
			mat.Row(row, i, t.X)
			t.margin[i] += gb.params.LearningRate * tree.predictRow(row)
		}

		if iter%10 == 0 && gb.logger.Enabled(context.Background(), log.LevelDebug) {
			gb.logger.Debug("boosting progress",
				log.IterationsKey, iter,
				log.LossKey, t.loss(),
			)
		}
	}
	if err := errors.CheckMatrix("GradientBoostingClassifier.Fit", mat.NewVecDense(rows, t.margin), rows, 1, len(gb.trees)); err != nil {
		return err
	}

	gb.gains = t.gains
	gb.state.SetFitted(cols, rows)
	return nil
}

// calculateGradients computes the logistic loss gradient and hessian at the
// current margin.
func (t *trainer) calculateGradients() {
	for i, m := range t.margin {
		p := errors.Sigmoid(m)
		t.gradients[i] = p - t.y[i]
		t.hessians[i] = math.Max(p*(1-p), 1e-16)
	}
}

func (t *trainer) loss() float64 {
	loss := 0.0
	for i, m := range t.margin {
		p := errors.ClipValue(errors.Sigmoid(m), 1e-15, 1-1e-15)
		loss -= t.y[i]*math.Log(p) + (1-t.y[i])*math.Log(1-p)
	}
	return loss / float64(len(t.margin))
}

func (t *trainer) sampleRows(rng *rand.Rand) []int {
	n := len(t.y)
	if t.p.Subsample >= 1 {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	k := max(1, int(math.Round(t.p.Subsample*float64(n))))
	idx := rng.Perm(n)[:k]
	sort.Ints(idx)
	return idx
}

func (t *trainer) sampleFeatures(rng *rand.Rand, cols int) {
	if t.p.ColsampleByTree >= 1 {
		t.features = t.features[:0]
		for j := 0; j < cols; j++ {
			t.features = append(t.features, j)
		}
		return
	}
	k := max(1, int(math.Round(t.p.ColsampleByTree*float64(cols))))
	t.features = rng.Perm(cols)[:k]
	sort.Ints(t.features)
}

// buildNode recursively builds tree nodes
func (t *trainer) buildNode(tree *boostTree, indices []int, depth int) int {
	nodeIdx := len(tree.nodes)
	sumGrad, sumHess := 0.0, 0.0
	for _, i := range indices {
		sumGrad += t.gradients[i]
		sumHess += t.hessians[i]
	}
	tree.nodes = append(tree.nodes, boostNode{feature: -1, value: t.leafValue(sumGrad, sumHess)})

	if t.p.MaxDepth > 0 && depth >= t.p.MaxDepth {
		return nodeIdx
	}
	feature, threshold, gain, ok := t.findBestSplit(indices, sumGrad, sumHess)
	if !ok || gain <= t.p.Gamma {
		return nodeIdx
	}
	t.gains[feature] += gain

	var leftIndices, rightIndices []int
	for _, i := range indices {
		if t.X.At(i, feature) <= threshold {
			leftIndices = append(leftIndices, i)
		} else {
			rightIndices = append(rightIndices, i)
		}
	}
	leftChild := t.buildNode(tree, leftIndices, depth+1)
	rightChild := t.buildNode(tree, rightIndices, depth+1)

	n := &tree.nodes[nodeIdx]
	n.feature, n.threshold, n.left, n.right, n.gain = feature, threshold, leftChild, rightChild, gain
	return nodeIdx
}

// findBestSplit scans each feature in presorted order, restricted to the
// rows of the current node.
func (t *trainer) findBestSplit(indices []int, totalGrad, totalHess float64) (int, float64, float64, bool) {
	for _, i := range indices {
		t.inNode[i] = true
	}
	defer func() {
		for _, i := range indices {
			t.inNode[i] = false
		}
	}()

	bestFeature, bestThreshold, bestGain := -1, 0.0, 0.0
	for _, feature := range t.features {
		leftGrad, leftHess := 0.0, 0.0
		prev := -1
		for _, i := range t.orderedIdx[feature] {
			if !t.inNode[i] {
				continue
			}
			if prev >= 0 {
				cur, last := t.X.At(i, feature), t.X.At(prev, feature)
				rightHess := totalHess - leftHess
				if cur != last && leftHess >= t.p.MinChildWeight && rightHess >= t.p.MinChildWeight {
					gain := t.splitGain(leftGrad, leftHess, totalGrad-leftGrad, rightHess, totalGrad, totalHess)
					if gain > bestGain {
						bestFeature, bestThreshold, bestGain = feature, (cur+last)/2, gain
					}
				}
			}
			leftGrad += t.gradients[i]
			leftHess += t.hessians[i]
			prev = i
		}
	}
	return bestFeature, bestThreshold, bestGain, bestFeature >= 0
}

// splitGain is the XGBoost structure score improvement of a split.
func (t *trainer) splitGain(leftGrad, leftHess, rightGrad, rightHess, totalGrad, totalHess float64) float64 {
	lambda := t.p.Lambda
	leftScore := (leftGrad * leftGrad) / (leftHess + lambda)
	rightScore := (rightGrad * rightGrad) / (rightHess + lambda)
	totalScore := (totalGrad * totalGrad) / (totalHess + lambda)
	return 0.5 * (leftScore + rightScore - totalScore)
}

// leafValue is the optimal leaf weight with L2 regularization.
func (t *trainer) leafValue(sumGrad, sumHess float64) float64 {
	return -sumGrad / (sumHess + t.p.Lambda + 1e-10)
}

// DecisionFunction returns the raw margin for each row.
func (gb *GradientBoostingClassifier) DecisionFunction(X mat.Matrix) ([]float64, error) {
	if err := gb.state.RequireFitted("DecisionFunction"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := gb.state.RequireFeatures("GradientBoostingClassifier.DecisionFunction", cols); err != nil {
		return nil, err
	}
	out := make([]float64, rows)
	row := make([]float64, cols)
	for i := range out {
		mat.Row(row, i, X)
		m := gb.baseScore
		for k := range gb.trees {
			m += gb.params.LearningRate * gb.trees[k].predictRow(row)
		}
		out[i] = m
	}
	return out, nil
}

// PredictProba returns an n×2 matrix of [P(y=0), P(y=1)].
func (gb *GradientBoostingClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	margins, err := gb.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(len(margins), 2, nil)
	for i, m := range margins {
		p := errors.Sigmoid(m)
		out.Set(i, 0, 1-p)
		out.Set(i, 1, p)
	}
	return out, nil
}

// Predict returns 0/1 labels thresholded at probability 0.5.
func (gb *GradientBoostingClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	margins, err := gb.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(len(margins), 1, nil)
	for i, m := range margins {
		if m >= 0 {
			out.Set(i, 0, 1)
		}
	}
	return out, nil
}

// FeatureImportances returns the total split gain per feature, normalized to sum to 1.
func (gb *GradientBoostingClassifier) FeatureImportances() []float64 {
	out := append([]float64(nil), gb.gains...)
	total := 0.0
	for _, g := range out {
		total += g
	}
	if total > 0 {
		for i := range out {
			out[i] /= total
		}
	}
	return out
}

// NTrees returns the number of fitted trees.
func (gb *GradientBoostingClassifier) NTrees() int {
	return len(gb.trees)
}

// GetParams returns the hyperparameters by their XGBoost names.
func (gb *GradientBoostingClassifier) GetParams() map[string]interface{} {
	p := gb.params
	return map[string]interface{}{
		"n_estimators":     p.NEstimators,
		"max_depth":        p.MaxDepth,
		"learning_rate":    p.LearningRate,
		"min_child_weight": p.MinChildWeight,
		"reg_lambda":       p.Lambda,
		"gamma":            p.Gamma,
		"subsample":        p.Subsample,
		"colsample_bytree": p.ColsampleByTree,
		"objective":        p.Objective,
		"random_state":     p.Seed,
	}
}

// SetParams sets hyperparameters by their XGBoost names.
func (gb *GradientBoostingClassifier) SetParams(params map[string]interface{}) error {
	p := gb.params
	for key, value := range params {
		var err error
		switch key {
		case "n_estimators":
			p.NEstimators, err = model.ParamPositiveInt(key, value)
		case "max_depth":
			p.MaxDepth, err = model.ParamInt(key, value)
		case "learning_rate", "eta":
			p.LearningRate, err = model.ParamFloat(key, value)
		case "min_child_weight":
			p.MinChildWeight, err = model.ParamFloat(key, value)
		case "reg_lambda", "lambda":
			p.Lambda, err = model.ParamFloat(key, value)
		case "gamma":
			p.Gamma, err = model.ParamFloat(key, value)
		case "subsample":
			p.Subsample, err = model.ParamFloat(key, value)
		case "colsample_bytree":
			p.ColsampleByTree, err = model.ParamFloat(key, value)
		case "objective":
			p.Objective, err = model.ParamChoice(key, value, ObjectiveBinaryLogistic)
		case "random_state", "seed":
			p.Seed, err = model.ParamSeed(key, value)
		default:
			err = errors.NewValidationError(key, "unknown parameter for GradientBoostingClassifier", value)
		}
		if err != nil {
			return err
		}
	}
	if err := p.validate(); err != nil {
		return err
	}
	gb.params = p
	return nil
}

// Clone returns an unfitted copy with the same hyperparameters.
func (gb *GradientBoostingClassifier) Clone() model.Classifier {
	return &GradientBoostingClassifier{
		state:  model.NewStateManager("GradientBoostingClassifier"),
		logger: gb.logger,
		params: gb.params,
	}
}
