package model_selection

import (
	"time"

	"github.com/YuminosukeSato/tabsearch/pipeline"
)

// TrialResult records one sampled configuration and its cross-validation
// outcome. Err is a TrialFitError when any fold failed; the scores are then
// unset.
type TrialResult struct {
	Index       int
	Params      Params
	FoldScores  []float64
	MeanScore   float64
	StdScore    float64
	Err         error
	FitDuration time.Duration
}

// SearchResult is the outcome of one family's search. Accessors return copies.
type SearchResult struct {
	family         string
	scoring        string
	bestIndex      int
	bestParams     Params
	bestScore      float64
	bestFoldScores []float64
	bestEstimator  *pipeline.Pipeline
	trials         []TrialResult
}

// consider folds one successful trial into the running best. A higher mean
// wins; equal means keep the lower trial index, so the outcome does not
// depend on the order trials finish.
func (r *SearchResult) consider(index int, mean float64) {
	if r.bestIndex < 0 || mean > r.bestScore || (mean == r.bestScore && index < r.bestIndex) {
		r.bestIndex = index
		r.bestScore = mean
	}
}

// Family returns the model family name.
func (r *SearchResult) Family() string { return r.family }

// Scoring returns the scorer name.
func (r *SearchResult) Scoring() string { return r.scoring }

// BestIndex returns the trial index of the best configuration.
func (r *SearchResult) BestIndex() int { return r.bestIndex }

// BestParams returns the best configuration.
func (r *SearchResult) BestParams() Params { return r.bestParams.Clone() }

// BestScore returns the best mean cross-validation score.
func (r *SearchResult) BestScore() float64 { return r.bestScore }

// BestFoldScores returns the per-fold scores of the best trial.
func (r *SearchResult) BestFoldScores() []float64 {
	return append([]float64(nil), r.bestFoldScores...)
}

// BestEstimator returns the best configuration refitted on the full table,
// or nil when refit was disabled.
func (r *SearchResult) BestEstimator() *pipeline.Pipeline { return r.bestEstimator }

// Trials returns the trial log in trial order.
func (r *SearchResult) Trials() []TrialResult {
	out := make([]TrialResult, len(r.trials))
	for i, t := range r.trials {
		t.Params = t.Params.Clone()
		t.FoldScores = append([]float64(nil), t.FoldScores...)
		out[i] = t
	}
	return out
}

// Failed returns how many trials failed.
func (r *SearchResult) Failed() int {
	n := 0
	for _, t := range r.trials {
		if t.Err != nil {
			n++
		}
	}
	return n
}
