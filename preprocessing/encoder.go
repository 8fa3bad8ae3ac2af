package preprocessing

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabsearch/core/model"
	"github.com/YuminosukeSato/tabsearch/pkg/errors"
)

// Unknown category handling.
const (
	HandleUnknownIgnore = "ignore"
	HandleUnknownError  = "error"
)

// OneHotEncoder emits one indicator column per (column, category) pair. The
// vocabulary of each column is the sorted set of values seen at Fit time and
// never grows afterwards. With HandleUnknown "ignore", an unseen value yields
// an all-zero block for its column.
type OneHotEncoder struct {
	state *model.StateManager

	HandleUnknown string

	// Categories は列ごとの語彙（辞書順）
	Categories [][]string
	lookup     []map[string]int
	offsets    []int
	width      int
}

// NewOneHotEncoder creates an encoder that ignores unknown categories.
func NewOneHotEncoder() *OneHotEncoder {
	return &OneHotEncoder{
		state:         model.NewStateManager("OneHotEncoder"),
		HandleUnknown: HandleUnknownIgnore,
	}
}

// Fit learns the vocabulary of each column of the row-major X. X must not
// contain missing cells; run a StringImputer first.
func (e *OneHotEncoder) Fit(X [][]string) error {
	if err := e.state.RequireUnfitted(); err != nil {
		return err
	}
	if len(X) == 0 || len(X[0]) == 0 {
		return errors.NewModelError("OneHotEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	c := len(X[0])

	e.Categories = make([][]string, c)
	e.lookup = make([]map[string]int, c)
	e.offsets = make([]int, c)
	width := 0
	for j := 0; j < c; j++ {
		seen := map[string]bool{}
		for _, row := range X {
			if len(row) != c {
				return errors.NewDimensionError("OneHotEncoder.Fit", c, len(row), 1)
			}
			seen[row[j]] = true
		}
		cats := make([]string, 0, len(seen))
		for v := range seen {
			cats = append(cats, v)
		}
		sort.Strings(cats)

		e.Categories[j] = cats
		e.lookup[j] = make(map[string]int, len(cats))
		for k, v := range cats {
			e.lookup[j][v] = k
		}
		e.offsets[j] = width
		width += len(cats)
	}
	e.width = width

	e.state.SetFitted(c, len(X))
	return nil
}

// Width returns the number of output columns.
func (e *OneHotEncoder) Width() int {
	return e.width
}

// Transform encodes X into an n×Width matrix.
func (e *OneHotEncoder) Transform(X [][]string) (*mat.Dense, error) {
	if err := e.state.RequireFitted("Transform"); err != nil {
		return nil, err
	}
	if len(X) == 0 {
		return nil, errors.NewModelError("OneHotEncoder.Transform", "empty data", errors.ErrEmptyData)
	}

	if err := e.check("OneHotEncoder.Transform", X); err != nil {
		return nil, err
	}

	out := mat.NewDense(len(X), e.width, nil)
	e.TransformInto(out, 0, X)
	return out, nil
}

// check rejects rows of the wrong width and, with HandleUnknown "error",
// categories not seen during Fit.
func (e *OneHotEncoder) check(op string, X [][]string) error {
	for i, row := range X {
		if err := e.state.RequireFeatures(op, len(row)); err != nil {
			return err
		}
		if e.HandleUnknown != HandleUnknownError {
			continue
		}
		for j, v := range row {
			if _, ok := e.lookup[j][v]; !ok {
				return errors.NewValueError(op,
					fmt.Sprintf("found unknown category %q in column %d during transform (row %d)", v, j, i))
			}
		}
	}
	return nil
}

// TransformInto writes the indicators of X into dst starting at column offset.
// Unknown values leave their block at zero. dst must be zeroed.
func (e *OneHotEncoder) TransformInto(dst *mat.Dense, offset int, X [][]string) {
	for i, row := range X {
		for j, v := range row {
			if j >= len(e.lookup) {
				break
			}
			if k, ok := e.lookup[j][v]; ok {
				dst.Set(i, offset+e.offsets[j]+k, 1)
			}
		}
	}
}

// FeatureNames returns "<input>_<category>" for every output column.
func (e *OneHotEncoder) FeatureNames(inputs []string) []string {
	names := make([]string, 0, e.width)
	for j, cats := range e.Categories {
		for _, v := range cats {
			names = append(names, inputs[j]+"_"+v)
		}
	}
	return names
}

// GetParams returns the encoder's hyperparameters.
func (e *OneHotEncoder) GetParams() map[string]interface{} {
	return map[string]interface{}{"handle_unknown": e.HandleUnknown}
}

// SetParams accepts "handle_unknown" (ignore|error).
func (e *OneHotEncoder) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "handle_unknown":
			v, ok := value.(string)
			if !ok || (v != HandleUnknownIgnore && v != HandleUnknownError) {
				return errors.NewValidationError("handle_unknown", "must be ignore or error", value)
			}
			e.HandleUnknown = v
		default:
			return errors.NewValidationError(key, "unknown parameter for OneHotEncoder", value)
		}
	}
	return nil
}

// Clone returns an unfitted encoder with the same hyperparameters.
func (e *OneHotEncoder) Clone() *OneHotEncoder {
	out := NewOneHotEncoder()
	out.HandleUnknown = e.HandleUnknown
	return out
}
