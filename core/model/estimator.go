// Package model defines the estimator contracts shared by preprocessing stages,
// classifiers and the search machinery.
package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// ProbabilisticPredictor はクラス確率を出力するモデルのインターフェース
type ProbabilisticPredictor interface {
	// PredictProba は各クラスの確率を n×2 行列で返す (列1が陽性クラス)
	PredictProba(X mat.Matrix) (mat.Matrix, error)
}

// ParamGetter exposes an estimator's hyperparameters by their sklearn names.
type ParamGetter interface {
	GetParams() map[string]interface{}
}

// ParamSetter updates hyperparameters by their sklearn names. Unknown names
// and out-of-range values are rejected with a ValidationError.
type ParamSetter interface {
	SetParams(params map[string]interface{}) error
}

// Classifier is a binary classifier usable as the final step of a pipeline.
// Labels are 0 and 1; PredictProba column 1 is P(y=1).
type Classifier interface {
	Fitter
	ProbabilisticPredictor
	ParamGetter
	ParamSetter

	// Clone returns an unfitted copy with the same hyperparameters.
	Clone() Classifier
}
