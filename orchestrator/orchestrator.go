// Package orchestrator runs the randomized search for every configured model
// family in turn, writes one submission per successful family and collects
// the outcomes into a report.
package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabsearch/config"
	"github.com/YuminosukeSato/tabsearch/dataset"
	"github.com/YuminosukeSato/tabsearch/family"
	"github.com/YuminosukeSato/tabsearch/model_selection"
	"github.com/YuminosukeSato/tabsearch/pkg/errors"
	"github.com/YuminosukeSato/tabsearch/pkg/log"
	"github.com/YuminosukeSato/tabsearch/preprocessing"
	"github.com/YuminosukeSato/tabsearch/report"
	"github.com/YuminosukeSato/tabsearch/submission"
)

// ProgressFunc receives per-family fold job progress.
type ProgressFunc func(name family.Name, done, total int)

// Orchestrator runs families sequentially. A family failure is recorded in
// the report and never stops the next family.
type Orchestrator struct {
	cfg      config.Config
	families []family.Name
	spaces   map[family.Name]model_selection.ParamSpace
	writer   *submission.Writer
	logger   log.Logger
	progress ProgressFunc
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithWriter sets the submission writer. Without one, submissions are
// written as CSV files under the configured results directory.
func WithWriter(w *submission.Writer) Option {
	return func(o *Orchestrator) { o.writer = w }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(o *Orchestrator) { o.progress = fn }
}

// New validates cfg and resolves every family's search space up front.
func New(cfg config.Config, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	families, err := cfg.FamilyNames()
	if err != nil {
		return nil, err
	}
	o := &Orchestrator{
		cfg:      cfg,
		families: families,
		spaces:   make(map[family.Name]model_selection.ParamSpace, len(families)),
		logger:   log.GetLoggerWithName("orchestrator"),
	}
	for _, n := range families {
		space, err := cfg.SearchSpace(n)
		if err != nil {
			return nil, err
		}
		o.spaces[n] = space
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.writer == nil {
		sink := submission.CSVSink{Dir: cfg.Results.Dir, Prefix: cfg.Results.Prefix}
		o.writer = submission.NewWriter(sink, cfg.IDColumn, cfg.LabelColumn)
	}
	return o, nil
}

// Run searches every family on train and, when test is non-nil, writes a
// submission of the refitted best pipeline's probabilities for test.
// The returned error is non-nil only for run-fatal conditions: a missing or
// malformed label column or an unsupported column type. Per-family failures
// are in the report.
func (o *Orchestrator) Run(ctx context.Context, train, test *dataset.Table) (*report.Report, error) {
	runID := uuid.NewString()
	logger := o.logger.With(log.RunIDKey, runID)
	rep := &report.Report{RunID: runID, Seed: o.cfg.Seed}

	y, err := train.LabelValues(o.cfg.LabelColumn)
	if err != nil {
		return nil, err
	}
	features := train.Drop(o.cfg.IDColumn, o.cfg.LabelColumn)
	preprocessor, err := preprocessing.NewColumnTransformerForTable(features)
	if err != nil {
		return nil, err
	}

	logger.Info("run started",
		log.SamplesKey, features.NumRows(),
		log.NumericKey, len(preprocessor.NumericColumns()),
		log.CategoricalKey, len(preprocessor.CategoricalColumns()),
		log.RandomSeedKey, o.cfg.Seed,
	)
	for _, mc := range features.MissingCounts() {
		if mc.Count > 0 {
			logger.Info("missing values", log.ColumnKey, mc.Column, log.MissingKey, mc.Count)
		}
	}

	for _, name := range o.families {
		start := time.Now()
		outcome := o.runFamily(ctx, logger.With(log.FamilyKey, name.String()), name, preprocessor, features, y, test)
		outcome.Duration = time.Since(start)
		rep.Add(outcome)
	}

	logger.Info("run finished",
		"succeeded", len(rep.Succeeded()),
		"failed", len(rep.Failed()),
	)
	return rep, nil
}

func (o *Orchestrator) runFamily(
	ctx context.Context,
	logger log.Logger,
	name family.Name,
	preprocessor *preprocessing.ColumnTransformer,
	features *dataset.Table,
	y *mat.VecDense,
	test *dataset.Table,
) report.FamilyOutcome {
	outcome := report.FamilyOutcome{Family: name.String()}
	fail := func(err error) report.FamilyOutcome {
		outcome.Err = err
		logger.Error("family failed", log.ErrorKindKey, errors.Kind(err), err)
		return outcome
	}
	if err := ctx.Err(); err != nil {
		return fail(errors.Wrapf(err, "%s: not started", name))
	}

	template, err := family.New(name, preprocessor, o.cfg.Seed)
	if err != nil {
		return fail(err)
	}
	opts := []model_selection.SearchOption{
		model_selection.WithNIter(o.cfg.NIter),
		model_selection.WithCV(model_selection.NewStratifiedKFold(o.cfg.CV, true, o.cfg.Seed)),
		model_selection.WithScoring(o.cfg.Scoring),
		model_selection.WithSeed(o.cfg.Seed),
		model_selection.WithWorkers(o.cfg.Workers),
		model_selection.WithLogger(logger),
	}
	if o.progress != nil {
		opts = append(opts, model_selection.WithProgress(func(done, total int) {
			o.progress(name, done, total)
		}))
	}
	search, err := model_selection.NewRandomizedSearchCV(name.String(), template, o.spaces[name], opts...)
	if err != nil {
		return fail(err)
	}
	result, err := search.Fit(ctx, features, y)
	if err != nil {
		return fail(err)
	}
	outcome.Result = result

	if test == nil {
		return outcome
	}
	records, err := submission.Predict(result.BestEstimator(), test.Drop(o.cfg.LabelColumn), o.cfg.IDColumn)
	if err != nil {
		return fail(err)
	}
	path, err := o.writer.Write(name.String(), records)
	if err != nil {
		return fail(err)
	}
	outcome.OutputPath = path
	return outcome
}
