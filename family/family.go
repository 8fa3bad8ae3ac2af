// Package family maps the closed set of model family names to their
// pipelines and default search spaces.
package family

import (
	"sort"
	"strings"

	"github.com/YuminosukeSato/tabsearch/core/model"
	"github.com/YuminosukeSato/tabsearch/model_selection"
	"github.com/YuminosukeSato/tabsearch/pipeline"
	"github.com/YuminosukeSato/tabsearch/pkg/errors"
	"github.com/YuminosukeSato/tabsearch/preprocessing"
	"github.com/YuminosukeSato/tabsearch/sklearn/ensemble"
	"github.com/YuminosukeSato/tabsearch/sklearn/linear_model"
	"github.com/YuminosukeSato/tabsearch/sklearn/neighbors"
	"github.com/YuminosukeSato/tabsearch/sklearn/neural_network"
)

// Name identifies a model family.
type Name string

const (
	XGB Name = "XGB"
	LR  Name = "LR"
	RF  Name = "RF"
	KNN Name = "KNN"
	MLP Name = "MLP"
)

// All returns every family in the default run order.
func All() []Name {
	return []Name{XGB, LR, RF, KNN, MLP}
}

// Parse converts a configured family name. Matching is case-insensitive.
func Parse(s string) (Name, error) {
	n := Name(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range All() {
		if n == known {
			return n, nil
		}
	}
	return "", errors.NewValidationError("families", "unknown family, must be one of XGB, LR, RF, KNN, MLP", s)
}

func (n Name) String() string { return string(n) }

// classifier builds the family's classifier with its structural defaults.
// These are fixed and not part of the search space.
func classifier(name Name, seed uint64) (model.Classifier, error) {
	switch name {
	case XGB:
		return ensemble.NewGradientBoostingClassifier(
			ensemble.WithLearningRate(0.3),
			ensemble.WithMinChildWeight(1),
			ensemble.WithLambda(1),
			ensemble.WithBoostingRandomState(seed),
		), nil
	case LR:
		return linear_model.NewLogisticRegression(
			linear_model.WithLRSolver(linear_model.SolverSAG),
			linear_model.WithLRMaxIter(600),
			linear_model.WithLRTol(0.005),
			linear_model.WithLogisticFitIntercept(true),
			linear_model.WithLRRandomState(seed),
		), nil
	case RF:
		return ensemble.NewRandomForestClassifier(
			ensemble.WithForestCriterion("gini"),
			ensemble.WithBootstrap(true),
			ensemble.WithForestMaxFeatures("sqrt"),
			ensemble.WithForestRandomState(seed),
		), nil
	case KNN:
		return neighbors.NewKNeighborsClassifier(
			neighbors.WithLeafSize(30),
		), nil
	case MLP:
		return neural_network.NewMLPClassifier(
			neural_network.WithMaxIter(600),
			neural_network.WithLearningRateInit(0.01),
			neural_network.WithAlpha(1e-4),
			neural_network.WithRandomState(seed),
		), nil
	default:
		return nil, errors.NewValidationError("family", "unknown family", string(name))
	}
}

// New returns an unfitted pipeline for the family. The preprocessor template
// is cloned, so one template can serve every family.
func New(name Name, preprocessor *preprocessing.ColumnTransformer, seed uint64) (*pipeline.Pipeline, error) {
	if preprocessor == nil {
		return nil, errors.NewValidationError("preprocessor", "must not be nil", nil)
	}
	clf, err := classifier(name, seed)
	if err != nil {
		return nil, err
	}
	return pipeline.New(preprocessor.Clone(), clf), nil
}

// Tunables returns the step-prefixed parameter names the family's pipeline
// accepts, sorted.
func Tunables(name Name) ([]string, error) {
	p, err := New(name, preprocessing.NewColumnTransformer(nil, nil), 0)
	if err != nil {
		return nil, err
	}
	params := p.GetParams()
	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)
	return names, nil
}

// ValidateSpace checks an override space against the family: every key must
// be a tunable of the pipeline and every representative value of every
// distribution must be accepted by SetParams on a throwaway clone.
func ValidateSpace(name Name, space model_selection.ParamSpace) error {
	if err := space.Validate(); err != nil {
		return err
	}
	tunables, err := Tunables(name)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(tunables))
	for _, t := range tunables {
		known[t] = true
	}
	template, err := New(name, preprocessing.NewColumnTransformer(nil, nil), 0)
	if err != nil {
		return err
	}
	for _, key := range space.Keys() {
		if !known[key] {
			return errors.NewValidationError(key, "not a tunable parameter of family "+string(name), nil)
		}
		for _, v := range space[key].Endpoints() {
			if err := template.Clone().SetParams(map[string]interface{}{key: v}); err != nil {
				return errors.Wrapf(err, "%s: search space", name)
			}
		}
	}
	return nil
}
