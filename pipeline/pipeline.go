// Package pipeline chains the column-wise preprocessing with a binary
// classifier and routes sklearn-style step-prefixed parameters to them.
package pipeline

import (
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabsearch/core/model"
	"github.com/YuminosukeSato/tabsearch/dataset"
	"github.com/YuminosukeSato/tabsearch/pkg/errors"
	"github.com/YuminosukeSato/tabsearch/preprocessing"
)

// Step names used as parameter prefixes, e.g. "classifier__n_estimators".
const (
	PreprocessorStep = "preprocessor"
	ClassifierStep   = "classifier"
)

// Pipeline is a (ColumnTransformer, Classifier) pair fitted as one unit.
//
// An unfitted Pipeline is a template: the search clones it for every fold so
// that each fit owns private copies of both steps.
type Pipeline struct {
	state        *model.StateManager
	preprocessor *preprocessing.ColumnTransformer
	classifier   model.Classifier
}

// New creates a pipeline from its two steps. The steps are used as given,
// not copied.
func New(preprocessor *preprocessing.ColumnTransformer, classifier model.Classifier) *Pipeline {
	return &Pipeline{
		state:        model.NewStateManager("Pipeline"),
		preprocessor: preprocessor,
		classifier:   classifier,
	}
}

// Preprocessor returns the preprocessing step.
func (p *Pipeline) Preprocessor() *preprocessing.ColumnTransformer {
	return p.preprocessor
}

// Classifier returns the classifier step.
func (p *Pipeline) Classifier() model.Classifier {
	return p.classifier
}

// Schema returns the feature columns the pipeline consumes.
func (p *Pipeline) Schema() dataset.Schema {
	return p.preprocessor.InputSchema()
}

// IsFitted reports whether Fit has completed.
func (p *Pipeline) IsFitted() bool {
	return p.state.IsFitted()
}

// Fit learns the preprocessing statistics from t and trains the classifier
// on the transformed matrix. Panics inside either step are returned as
// PanicError.
func (p *Pipeline) Fit(t *dataset.Table, y *mat.VecDense) error {
	if err := p.state.RequireUnfitted(); err != nil {
		return err
	}
	if y == nil || y.Len() != t.NumRows() {
		got := 0
		if y != nil {
			got = y.Len()
		}
		return errors.NewDimensionError("Pipeline.Fit", t.NumRows(), got, 0)
	}
	err := errors.SafeExecute("Pipeline.Fit", func() error {
		X, err := p.preprocessor.FitTransform(t)
		if err != nil {
			return err
		}
		return p.classifier.Fit(X, y)
	})
	if err != nil {
		return err
	}
	p.state.SetFitted(len(p.preprocessor.FeatureNames()), t.NumRows())
	return nil
}

// PredictProba returns P(y=1) for every row of t, in row order, using the
// frozen preprocessing statistics.
func (p *Pipeline) PredictProba(t *dataset.Table) (*mat.VecDense, error) {
	if err := p.state.RequireFitted("PredictProba"); err != nil {
		return nil, err
	}
	var out *mat.VecDense
	err := errors.SafeExecute("Pipeline.PredictProba", func() error {
		X, err := p.preprocessor.Transform(t)
		if err != nil {
			return err
		}
		proba, err := p.classifier.PredictProba(X)
		if err != nil {
			return err
		}
		rows, cols := proba.Dims()
		if cols != 2 {
			return errors.NewDimensionError("Pipeline.PredictProba", 2, cols, 1)
		}
		out = mat.NewVecDense(rows, nil)
		for i := 0; i < rows; i++ {
			out.SetVec(i, proba.At(i, 1))
		}
		return errors.CheckMatrix("Pipeline.PredictProba", out, rows, 1, 0)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetParams returns every step parameter under its "<step>__" prefix.
func (p *Pipeline) GetParams() map[string]interface{} {
	params := map[string]interface{}{}
	for k, v := range p.preprocessor.GetParams() {
		params[PreprocessorStep+"__"+k] = v
	}
	for k, v := range p.classifier.GetParams() {
		params[ClassifierStep+"__"+k] = v
	}
	return params
}

// SetParams routes "<step>__<param>" keys to the step they name. It must be
// called before Fit, on a clone rather than a shared template.
func (p *Pipeline) SetParams(params map[string]interface{}) error {
	if err := p.state.RequireUnfitted(); err != nil {
		return err
	}
	pre := map[string]interface{}{}
	clf := map[string]interface{}{}
	for key, value := range params {
		step, name, ok := strings.Cut(key, "__")
		switch {
		case ok && step == PreprocessorStep:
			pre[name] = value
		case ok && step == ClassifierStep:
			clf[name] = value
		default:
			return errors.NewValidationError(key, "expected preprocessor__ or classifier__ prefix", value)
		}
	}
	if len(pre) > 0 {
		if err := p.preprocessor.SetParams(pre); err != nil {
			return err
		}
	}
	if len(clf) > 0 {
		if err := p.classifier.SetParams(clf); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns an unfitted pipeline with copies of both steps.
func (p *Pipeline) Clone() *Pipeline {
	return New(p.preprocessor.Clone(), p.classifier.Clone())
}
