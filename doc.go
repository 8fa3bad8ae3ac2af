// Package tabsearch searches hyperparameters of tabular binary classifiers,
// one model family at a time, and writes a submission per family.
//
// A run types the training columns (float columns are numeric, string
// columns categorical), builds a preprocessing ColumnTransformer (imputer and
// scaler for numeric columns, "missing" fill and one-hot encoding for
// categorical columns), and for each family draws configurations from its
// search space, scores them by stratified k-fold ROC-AUC and refits the best.
//
// # Families
//
//   - XGB: gradient boosted trees (sklearn/ensemble)
//   - LR: logistic regression (sklearn/linear_model)
//   - RF: random forest (sklearn/ensemble)
//   - KNN: k-nearest neighbors (sklearn/neighbors)
//   - MLP: multi-layer perceptron (sklearn/neural_network)
//
// # Quick Start
//
//	train, _ := dataset.LoadCSVFile("train.csv", dataset.WithStringColumns("id"))
//	test, _ := dataset.LoadCSVFile("test.csv", dataset.WithStringColumns("id"))
//
//	cfg := config.Default()
//	cfg.Families = []string{"LR", "RF"}
//
//	o, err := orchestrator.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	rep, err := o.Run(ctx, train, test)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	rep.WriteSummary(os.Stdout)
//
// or from the command line:
//
//	tabsearch --n-iter 10 --cv 5 --progress train.csv test.csv
//
// # Packages
//
//   - dataset: typed tables, CSV loading, schemas
//   - preprocessing: imputers, StandardScaler, OneHotEncoder, ColumnTransformer
//   - pipeline: preprocessor + classifier with step-prefixed parameters
//   - family: family names, pipelines with structural defaults, default search spaces
//   - model_selection: KFold, StratifiedKFold, distributions, scorers, RandomizedSearchCV
//   - orchestrator: runs families in turn and collects a report
//   - submission: (id, probability) records and CSV output
//   - config: YAML configuration
//   - report: run summary and trial score plots
//   - core/model, core/parallel, pkg/errors, pkg/log: shared infrastructure
//
// # Reproducibility
//
// Every stochastic step takes its seed from the run seed: sampling (seeded
// per family), fold shuffling and model-internal randomness. Trials are
// evaluated concurrently, but draws happen up front and the best trial is
// chosen by (highest mean score, lowest trial index), so results do not
// depend on the number of workers.
package tabsearch
