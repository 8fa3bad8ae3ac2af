package log

// Model and operation context.
const (
	// ModelNameKey identifies the estimator type, e.g. "RandomForestClassifier".
	ModelNameKey = "model.name"

	// ComponentKey identifies the component emitting the record.
	ComponentKey = "ml.component"

	// OperationKey is the estimator operation: "fit", "predict_proba", "transform".
	OperationKey = "ml.operation"

	// PhaseKey is the lifecycle phase: "preprocessing", "search", "refit", "submission".
	PhaseKey = "ml.phase"
)

// Data shape.
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
	ColumnKey   = "data.column"
	// MissingKey counts missing cells of a column.
	MissingKey     = "data.missing"
	NumericKey     = "data.numeric_columns"
	CategoricalKey = "data.categorical_columns"
	BatchSizeKey   = "data.batch_size"
)

// Search progress.
const (
	RunIDKey      = "search.run_id"
	FamilyKey     = "search.family"
	TrialKey      = "search.trial"
	TrialsKey     = "search.n_iter"
	FoldKey       = "search.fold"
	FoldsKey      = "search.cv"
	ParamsKey     = "search.params"
	ScoreKey      = "search.score"
	BestScoreKey  = "search.best_score"
	BestParamsKey = "search.best_params"
	ScoringKey    = "search.scoring"
	WorkersKey    = "search.workers"
	FailedKey     = "search.failed_trials"
)

// Metrics and timing.
const (
	DurationMsKey = "perf.duration_ms"
	LossKey       = "metrics.loss"
	IterationsKey = "metrics.iterations"
	ConvergedKey  = "metrics.converged"
)

// Configuration and output.
const (
	RandomSeedKey = "config.random_seed"
	ConfigPathKey = "config.path"
	OutputPathKey = "output.path"
	RowsKey       = "output.rows"
)

// Error context.
const (
	ErrorKey     = "error"
	ErrorKindKey = "error.kind"
)

// Standard attribute values.
const (
	OperationFit          = "fit"
	OperationPredictProba = "predict_proba"
	OperationTransform    = "transform"
	OperationScore        = "score"

	PhasePreprocessing = "preprocessing"
	PhaseSearch        = "search"
	PhaseRefit         = "refit"
	PhaseSubmission    = "submission"
)
