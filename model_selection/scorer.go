package model_selection

import (
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabsearch/metrics"
	"github.com/YuminosukeSato/tabsearch/pkg/errors"
)

// ScoreFunc scores positive-class probabilities against 0/1 labels.
// Higher is better.
type ScoreFunc func(yTrue, proba *mat.VecDense) (float64, error)

// Scorer is a named ScoreFunc.
type Scorer struct {
	Name  string
	Score ScoreFunc
}

var scorers = map[string]ScoreFunc{
	"roc_auc": metrics.AUC,
	"neg_log_loss": func(yTrue, proba *mat.VecDense) (float64, error) {
		loss, err := metrics.BinaryLogLoss(yTrue, proba)
		return -loss, err
	},
	"accuracy": func(yTrue, proba *mat.VecDense) (float64, error) {
		return metrics.Accuracy(yTrue, metrics.Threshold(proba))
	},
}

// GetScorer looks up a scorer by its sklearn name.
func GetScorer(name string) (Scorer, error) {
	fn, ok := scorers[name]
	if !ok {
		return Scorer{}, errors.NewValidationError("scoring", "must be one of "+strings.Join(ScorerNames(), ", "), name)
	}
	return Scorer{Name: name, Score: fn}, nil
}

// ScorerNames returns the supported scorer names.
func ScorerNames() []string {
	names := make([]string, 0, len(scorers))
	for n := range scorers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
