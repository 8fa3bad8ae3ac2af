package preprocessing

import (
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabsearch/core/model"
	"github.com/YuminosukeSato/tabsearch/dataset"
	"github.com/YuminosukeSato/tabsearch/pkg/errors"
	"github.com/YuminosukeSato/tabsearch/pkg/log"
)

// Step names used in parameter keys, e.g. "num__imputer__strategy".
const (
	NumericStep     = "num"
	CategoricalStep = "cat"
)

// ColumnTransformer turns a dataset.Table into a feature matrix: the numeric
// block (SimpleImputer then StandardScaler) first, then the categorical block
// (StringImputer then OneHotEncoder), each in typed-column order.
//
// A ColumnTransformer is fitted once. Unfitted instances act as templates:
// Clone them and fit the clone.
type ColumnTransformer struct {
	state  *model.StateManager
	logger log.Logger

	numeric     []string
	categorical []string

	NumImputer *SimpleImputer
	Scaler     *StandardScaler
	CatImputer *StringImputer
	Encoder    *OneHotEncoder

	schema dataset.Schema
}

// NewColumnTransformer creates an unfitted transformer over the typed columns
// returned by dataset.TypeColumns.
func NewColumnTransformer(numeric, categorical []string) *ColumnTransformer {
	return &ColumnTransformer{
		state:       model.NewStateManager("ColumnTransformer"),
		logger:      log.GetLoggerWithName("preprocessing"),
		numeric:     append([]string(nil), numeric...),
		categorical: append([]string(nil), categorical...),
		NumImputer:  NewSimpleImputer(StrategyMean),
		Scaler:      NewStandardScalerDefault(),
		CatImputer:  NewStringImputer(),
		Encoder:     NewOneHotEncoder(),
	}
}

// NewColumnTransformerForTable types the columns of t and builds a transformer over them.
func NewColumnTransformerForTable(t *dataset.Table) (*ColumnTransformer, error) {
	numeric, categorical, err := dataset.TypeColumns(t)
	if err != nil {
		return nil, err
	}
	return NewColumnTransformer(numeric, categorical), nil
}

// NumericColumns returns the numeric input columns.
func (ct *ColumnTransformer) NumericColumns() []string {
	return append([]string(nil), ct.numeric...)
}

// CategoricalColumns returns the categorical input columns.
func (ct *ColumnTransformer) CategoricalColumns() []string {
	return append([]string(nil), ct.categorical...)
}

// InputSchema returns the (name, kind) pairs the transformer consumes.
func (ct *ColumnTransformer) InputSchema() dataset.Schema {
	s := make(dataset.Schema, 0, len(ct.numeric)+len(ct.categorical))
	for _, n := range ct.numeric {
		s = append(s, dataset.Field{Name: n, Kind: dataset.Float})
	}
	for _, n := range ct.categorical {
		s = append(s, dataset.Field{Name: n, Kind: dataset.String})
	}
	return s
}

// IsFitted reports whether Fit has completed.
func (ct *ColumnTransformer) IsFitted() bool {
	return ct.state.IsFitted()
}

// GetParams returns the parameters of every stage, keyed "<block>__<stage>__<param>".
func (ct *ColumnTransformer) GetParams() map[string]interface{} {
	params := map[string]interface{}{}
	prefixed := func(prefix string, p map[string]interface{}) {
		for k, v := range p {
			params[prefix+"__"+k] = v
		}
	}
	prefixed(NumericStep+"__imputer", ct.NumImputer.GetParams())
	prefixed(NumericStep+"__scaler", ct.Scaler.GetParams())
	prefixed(CategoricalStep+"__imputer", ct.CatImputer.GetParams())
	prefixed(CategoricalStep+"__encoder", ct.Encoder.GetParams())
	return params
}

// SetParams routes "<block>__<stage>__<param>" keys to the stage they name.
// Parameters can only be changed before Fit.
func (ct *ColumnTransformer) SetParams(params map[string]interface{}) error {
	if err := ct.state.RequireUnfitted(); err != nil {
		return err
	}
	for key, value := range params {
		parts := strings.SplitN(key, "__", 3)
		if len(parts) != 3 {
			return errors.NewValidationError(key, "expected <block>__<stage>__<param>", value)
		}
		p := map[string]interface{}{parts[2]: value}
		var err error
		switch parts[0] + "__" + parts[1] {
		case NumericStep + "__imputer":
			err = ct.NumImputer.SetParams(p)
		case NumericStep + "__scaler":
			err = ct.Scaler.SetParams(p)
		case CategoricalStep + "__imputer":
			err = ct.CatImputer.SetParams(p)
		case CategoricalStep + "__encoder":
			err = ct.Encoder.SetParams(p)
		default:
			err = errors.NewValidationError(key, "unknown preprocessing step", value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clone returns an unfitted transformer with the same columns and parameters.
func (ct *ColumnTransformer) Clone() *ColumnTransformer {
	return &ColumnTransformer{
		state:       model.NewStateManager("ColumnTransformer"),
		logger:      ct.logger,
		numeric:     ct.numeric,
		categorical: ct.categorical,
		NumImputer:  ct.NumImputer.Clone(),
		Scaler:      ct.Scaler.Clone(),
		CatImputer:  ct.CatImputer.Clone(),
		Encoder:     ct.Encoder.Clone(),
	}
}

// Fit learns the statistics of every stage from t. A second Fit fails with a
// ValueError so that held-out rows can never reach the fitted statistics.
func (ct *ColumnTransformer) Fit(t *dataset.Table) error {
	if err := ct.state.RequireUnfitted(); err != nil {
		return err
	}
	if len(ct.numeric)+len(ct.categorical) == 0 {
		return errors.NewModelError("ColumnTransformer.Fit", "no feature columns", errors.ErrEmptyData)
	}
	if t.NumRows() == 0 {
		return errors.NewModelError("ColumnTransformer.Fit", "empty data", errors.ErrEmptyData)
	}
	schema := ct.InputSchema()
	if err := schema.CheckSubset(t.Schema()); err != nil {
		return err
	}

	if len(ct.numeric) > 0 {
		filled, err := ct.NumImputer.FitTransform(numericBlock(t, ct.numeric))
		if err != nil {
			return errors.Wrap(err, "ColumnTransformer.Fit: numeric imputer")
		}
		if err := ct.Scaler.Fit(filled); err != nil {
			return errors.Wrap(err, "ColumnTransformer.Fit: scaler")
		}
	}
	if len(ct.categorical) > 0 {
		X, valid := categoricalBlock(t, ct.categorical)
		if err := ct.CatImputer.Fit(X, valid); err != nil {
			return errors.Wrap(err, "ColumnTransformer.Fit: categorical imputer")
		}
		filled, err := ct.CatImputer.Transform(X, valid)
		if err != nil {
			return err
		}
		if err := ct.Encoder.Fit(filled); err != nil {
			return errors.Wrap(err, "ColumnTransformer.Fit: encoder")
		}
	}

	ct.schema = schema
	ct.state.SetFitted(ct.width(), t.NumRows())
	ct.logger.Debug("column transformer fitted",
		log.SamplesKey, t.NumRows(),
		log.NumericKey, len(ct.numeric),
		log.CategoricalKey, len(ct.categorical),
		log.FeaturesKey, ct.width(),
	)
	return nil
}

func (ct *ColumnTransformer) width() int {
	w := len(ct.numeric)
	if len(ct.categorical) > 0 {
		w += ct.Encoder.Width()
	}
	return w
}

// Transform applies the frozen statistics to t. The table must carry every
// fitted column with its fitted kind; other columns are ignored.
func (ct *ColumnTransformer) Transform(t *dataset.Table) (*mat.Dense, error) {
	if err := ct.state.RequireFitted("Transform"); err != nil {
		return nil, err
	}
	if err := ct.schema.CheckSubset(t.Schema()); err != nil {
		return nil, err
	}
	n := t.NumRows()
	if n == 0 {
		return nil, errors.NewModelError("ColumnTransformer.Transform", "empty data", errors.ErrEmptyData)
	}

	out := mat.NewDense(n, ct.width(), nil)
	numWidth := len(ct.numeric)
	if numWidth > 0 {
		filled, err := ct.NumImputer.Transform(numericBlock(t, ct.numeric))
		if err != nil {
			return nil, err
		}
		scaled, err := ct.Scaler.Transform(filled)
		if err != nil {
			return nil, err
		}
		out.Slice(0, n, 0, numWidth).(*mat.Dense).Copy(scaled)
	}
	if len(ct.categorical) > 0 {
		X, valid := categoricalBlock(t, ct.categorical)
		filled, err := ct.CatImputer.Transform(X, valid)
		if err != nil {
			return nil, err
		}
		if err := ct.Encoder.check("ColumnTransformer.Transform", filled); err != nil {
			return nil, err
		}
		ct.Encoder.TransformInto(out, numWidth, filled)
	}

	r, c := out.Dims()
	if err := errors.CheckMatrix("ColumnTransformer.Transform", out, r, c, 0); err != nil {
		return nil, err
	}
	return out, nil
}

// FitTransform fits on t and transforms it.
func (ct *ColumnTransformer) FitTransform(t *dataset.Table) (*mat.Dense, error) {
	if err := ct.Fit(t); err != nil {
		return nil, err
	}
	return ct.Transform(t)
}

// FeatureNames returns "num__<col>" and "cat__<col>_<category>" names in
// output order. It is only meaningful after Fit.
func (ct *ColumnTransformer) FeatureNames() []string {
	names := make([]string, 0, ct.width())
	for _, n := range ct.numeric {
		names = append(names, NumericStep+"__"+n)
	}
	if len(ct.categorical) > 0 && ct.Encoder.state.IsFitted() {
		for _, n := range ct.Encoder.FeatureNames(ct.categorical) {
			names = append(names, CategoricalStep+"__"+n)
		}
	}
	return names
}

func numericBlock(t *dataset.Table, names []string) *mat.Dense {
	n := t.NumRows()
	X := mat.NewDense(n, len(names), nil)
	for j, name := range names {
		c, _ := t.Column(name)
		X.SetCol(j, c.Floats)
	}
	return X
}

func categoricalBlock(t *dataset.Table, names []string) ([][]string, [][]bool) {
	n := t.NumRows()
	X := make([][]string, n)
	valid := make([][]bool, n)
	cols := make([]*dataset.Column, len(names))
	for j, name := range names {
		cols[j], _ = t.Column(name)
	}
	for i := 0; i < n; i++ {
		X[i] = make([]string, len(names))
		valid[i] = make([]bool, len(names))
		for j, c := range cols {
			X[i][j] = c.Strings[i]
			valid[i][j] = !c.IsMissing(i)
		}
	}
	return X, valid
}
