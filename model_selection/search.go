package model_selection

import (
	"context"
	"hash/fnv"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/tabsearch/core/parallel"
	"github.com/YuminosukeSato/tabsearch/dataset"
	"github.com/YuminosukeSato/tabsearch/pkg/errors"
	"github.com/YuminosukeSato/tabsearch/pkg/log"
	"github.com/YuminosukeSato/tabsearch/pipeline"
)

// RandomizedSearchCV evaluates NIter configurations drawn independently from
// a ParamSpace by cross-validation, keeps the best by mean score and refits
// it on the full training table.
type RandomizedSearchCV struct {
	family    string
	estimator *pipeline.Pipeline
	space     ParamSpace
	nIter     int
	cv        Splitter
	scorer    Scorer
	seed      uint64
	workers   int
	refit     bool
	logger    log.Logger
	progress  func(done, total int)
}

// SearchOption is a functional option for RandomizedSearchCV.
type SearchOption func(*RandomizedSearchCV) error

// WithNIter sets the number of sampled configurations.
func WithNIter(n int) SearchOption {
	return func(s *RandomizedSearchCV) error {
		if n < 1 {
			return errors.NewValidationError("n_iter", "must be >= 1", n)
		}
		s.nIter = n
		return nil
	}
}

// WithCV sets the cross-validation splitter.
func WithCV(cv Splitter) SearchOption {
	return func(s *RandomizedSearchCV) error {
		if cv == nil || cv.NSplits() < 2 {
			return errors.NewValidationError("cv", "splitter needs at least 2 folds", cv)
		}
		s.cv = cv
		return nil
	}
}

// WithScoring selects the scorer by name.
func WithScoring(name string) SearchOption {
	return func(s *RandomizedSearchCV) error {
		scorer, err := GetScorer(name)
		if err != nil {
			return err
		}
		s.scorer = scorer
		return nil
	}
}

// WithSeed sets the run seed. The sampling stream is derived from the seed
// and the family name.
func WithSeed(seed uint64) SearchOption {
	return func(s *RandomizedSearchCV) error {
		s.seed = seed
		return nil
	}
}

// WithWorkers bounds the number of concurrent fold evaluations. <= 0 means one per CPU.
func WithWorkers(n int) SearchOption {
	return func(s *RandomizedSearchCV) error {
		s.workers = n
		return nil
	}
}

// WithRefit toggles refitting the best configuration on the full table.
func WithRefit(refit bool) SearchOption {
	return func(s *RandomizedSearchCV) error {
		s.refit = refit
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) SearchOption {
	return func(s *RandomizedSearchCV) error {
		s.logger = l
		return nil
	}
}

// WithProgress registers a callback invoked after every finished fold job.
// It may be called from several goroutines, one call at a time.
func WithProgress(fn func(done, total int)) SearchOption {
	return func(s *RandomizedSearchCV) error {
		s.progress = fn
		return nil
	}
}

// NewRandomizedSearchCV creates a search over space for the estimator
// template. Defaults: 10 iterations, shuffled stratified 5-fold, roc_auc,
// 2 workers, refit.
func NewRandomizedSearchCV(family string, estimator *pipeline.Pipeline, space ParamSpace, opts ...SearchOption) (*RandomizedSearchCV, error) {
	if estimator == nil {
		return nil, errors.NewValidationError("estimator", "must not be nil", nil)
	}
	if err := space.Validate(); err != nil {
		return nil, err
	}
	rocAUC, _ := GetScorer("roc_auc")
	s := &RandomizedSearchCV{
		family:    family,
		estimator: estimator,
		space:     space.Clone(),
		nIter:     10,
		scorer:    rocAUC,
		seed:      1,
		workers:   2,
		refit:     true,
		logger:    log.GetLoggerWithName("model_selection.search"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.cv == nil {
		s.cv = NewStratifiedKFold(5, true, s.seed)
	}
	s.logger = s.logger.With(log.FamilyKey, family)
	return s, nil
}

// Candidates draws the configurations Fit will evaluate, in trial order.
// Draws happen up front from a stream seeded by (seed, family), so worker
// scheduling cannot change them.
func (s *RandomizedSearchCV) Candidates() []Params {
	h := fnv.New64a()
	h.Write([]byte(s.family))
	rng := rand.New(rand.NewPCG(s.seed, h.Sum64()))
	out := make([]Params, s.nIter)
	for i := range out {
		out[i] = s.space.Sample(rng)
	}
	return out
}

// foldJob is the outcome of one (trial, fold) evaluation.
type foldJob struct {
	score    float64
	err      error
	duration time.Duration
}

// Fit runs the search on t with labels y.
func (s *RandomizedSearchCV) Fit(ctx context.Context, t *dataset.Table, y *mat.VecDense) (*SearchResult, error) {
	if y == nil || y.Len() != t.NumRows() {
		got := 0
		if y != nil {
			got = y.Len()
		}
		return nil, errors.NewDimensionError("RandomizedSearchCV.Fit", t.NumRows(), got, 0)
	}
	folds, err := s.cv.Split(y)
	if err != nil {
		return nil, err
	}
	candidates := s.Candidates()
	k := len(folds)
	total := s.nIter * k

	s.logger.Info("search started",
		log.TrialsKey, s.nIter,
		log.FoldsKey, k,
		log.ScoringKey, s.scorer.Name,
		log.WorkersKey, parallel.Workers(s.workers),
		log.SamplesKey, t.NumRows(),
	)

	jobs := make([]foldJob, total)
	failed := make([]atomic.Bool, s.nIter)
	var (
		mu   sync.Mutex
		done int
	)
	err = parallel.ForEach(ctx, total, s.workers, func(ctx context.Context, j int) error {
		trial, fold := j/k, j%k
		// 同じ試行の別foldが失敗していれば残りは評価しない
		if !failed[trial].Load() {
			start := time.Now()
			score, err := s.evaluate(candidates[trial], t, y, folds[fold])
			jobs[j] = foldJob{score: score, err: err, duration: time.Since(start)}
			if err != nil {
				failed[trial].Store(true)
			} else {
				s.logger.Debug("fold scored",
					log.TrialKey, trial,
					log.FoldKey, fold,
					log.ScoreKey, score,
				)
			}
		}
		mu.Lock()
		done++
		if s.progress != nil {
			s.progress(done, total)
		}
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "%s: search interrupted", s.family)
	}

	result := &SearchResult{family: s.family, scoring: s.scorer.Name, bestIndex: -1}
	var lastErr error
	for trial := 0; trial < s.nIter; trial++ {
		tr := TrialResult{Index: trial, Params: candidates[trial].Clone()}
		for fold := 0; fold < k; fold++ {
			job := jobs[trial*k+fold]
			tr.FitDuration += job.duration
			if job.err != nil && tr.Err == nil {
				tr.Err = errors.NewTrialFitError(s.family, trial, candidates[trial], job.err)
			}
			tr.FoldScores = append(tr.FoldScores, job.score)
		}
		if tr.Err == nil && failed[trial].Load() {
			tr.Err = errors.NewTrialFitError(s.family, trial, candidates[trial], errors.New("fold skipped after failure"))
		}
		if tr.Err != nil {
			lastErr = tr.Err
			tr.FoldScores = nil
			s.logger.Warn("trial failed, skipping",
				log.TrialKey, trial,
				log.ParamsKey, tr.Params.String(),
				tr.Err,
			)
		} else {
			tr.MeanScore, tr.StdScore = stat.PopMeanStdDev(tr.FoldScores, nil)
			s.logger.Debug("trial finished",
				log.TrialKey, trial,
				log.ParamsKey, tr.Params.String(),
				log.ScoreKey, tr.MeanScore,
			)
			result.consider(trial, tr.MeanScore)
		}
		result.trials = append(result.trials, tr)
	}

	if result.bestIndex < 0 {
		return nil, errors.NewNoViableConfigurationError(s.family, s.nIter, lastErr)
	}
	best := result.trials[result.bestIndex]
	result.bestParams = best.Params.Clone()
	result.bestScore = best.MeanScore
	result.bestFoldScores = append([]float64(nil), best.FoldScores...)

	if s.refit {
		p := s.estimator.Clone()
		if err := p.SetParams(best.Params); err != nil {
			return nil, err
		}
		if err := p.Fit(t, y); err != nil {
			return nil, errors.Wrapf(err, "%s: refit of best configuration failed", s.family)
		}
		result.bestEstimator = p
	}

	s.logger.Info("search finished",
		log.BestScoreKey, result.bestScore,
		log.BestParamsKey, result.bestParams.String(),
		log.FailedKey, result.Failed(),
	)
	return result, nil
}

// evaluate fits a private clone of the template with params on the training
// rows of fold and scores the held-out rows.
func (s *RandomizedSearchCV) evaluate(params Params, t *dataset.Table, y *mat.VecDense, fold Fold) (float64, error) {
	var score float64
	err := errors.SafeExecute("RandomizedSearchCV.evaluate", func() error {
		p := s.estimator.Clone()
		if err := p.SetParams(params); err != nil {
			return err
		}
		if err := p.Fit(t.Subset(fold.TrainIndices), subsetVec(y, fold.TrainIndices)); err != nil {
			return err
		}
		proba, err := p.PredictProba(t.Subset(fold.TestIndices))
		if err != nil {
			return err
		}
		score, err = s.scorer.Score(subsetVec(y, fold.TestIndices), proba)
		return err
	})
	return score, err
}

func subsetVec(v *mat.VecDense, rows []int) *mat.VecDense {
	out := mat.NewVecDense(len(rows), nil)
	for i, r := range rows {
		out.SetVec(i, v.AtVec(r))
	}
	return out
}
