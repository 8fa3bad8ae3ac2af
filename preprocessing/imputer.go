package preprocessing

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/tabsearch/core/model"
	"github.com/YuminosukeSato/tabsearch/pkg/errors"
)

// Imputation strategies.
const (
	StrategyMean         = "mean"
	StrategyMedian       = "median"
	StrategyConstant     = "constant"
	StrategyMostFrequent = "most_frequent"
)

// DefaultFillToken is the constant used for missing categorical cells.
const DefaultFillToken = "missing"

// SimpleImputer fills NaN cells of numeric columns with a per-column
// statistic learned at Fit time. The strategy is a hyperparameter
// ("strategy") so that a search can tune it.
type SimpleImputer struct {
	state *model.StateManager

	Strategy  string
	FillValue float64 // used by the constant strategy

	// Statistics は列ごとの補完値
	Statistics []float64
}

var _ model.Transformer = (*SimpleImputer)(nil)

// NewSimpleImputer creates a numeric imputer with the given strategy.
func NewSimpleImputer(strategy string) *SimpleImputer {
	return &SimpleImputer{
		state:    model.NewStateManager("SimpleImputer"),
		Strategy: strategy,
	}
}

// SetParams accepts "strategy" (mean|median|constant) and "fill_value".
func (s *SimpleImputer) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "strategy":
			v, ok := value.(string)
			if !ok || (v != StrategyMean && v != StrategyMedian && v != StrategyConstant) {
				return errors.NewValidationError("strategy", "must be one of mean, median, constant", value)
			}
			s.Strategy = v
		case "fill_value":
			v, ok := toFloat(value)
			if !ok {
				return errors.NewValidationError("fill_value", "must be a number", value)
			}
			s.FillValue = v
		default:
			return errors.NewValidationError(key, "unknown parameter for SimpleImputer", value)
		}
	}
	return nil
}

// GetParams returns the imputer's hyperparameters.
func (s *SimpleImputer) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"strategy":   s.Strategy,
		"fill_value": s.FillValue,
	}
}

// Fit computes the fill value of every column over its non-NaN cells. A column
// without any observed value is filled with 0.
func (s *SimpleImputer) Fit(X mat.Matrix) error {
	if err := s.state.RequireUnfitted(); err != nil {
		return err
	}
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("SimpleImputer.Fit", "empty data", errors.ErrEmptyData)
	}

	stats := make([]float64, c)
	observed := make([]float64, 0, r)
	for j := 0; j < c; j++ {
		observed = observed[:0]
		for i := 0; i < r; i++ {
			if v := X.At(i, j); !math.IsNaN(v) {
				observed = append(observed, v)
			}
		}
		switch {
		case s.Strategy == StrategyConstant:
			stats[j] = s.FillValue
		case len(observed) == 0:
			stats[j] = 0
		case s.Strategy == StrategyMean:
			stats[j] = stat.Mean(observed, nil)
		case s.Strategy == StrategyMedian:
			stats[j] = median(observed)
		default:
			return errors.NewValidationError("strategy", "must be one of mean, median, constant", s.Strategy)
		}
	}

	s.Statistics = stats
	s.state.SetFitted(c, r)
	return nil
}

// Transform replaces NaN cells with the fitted statistic.
func (s *SimpleImputer) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.state.RequireFitted("Transform"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := s.state.RequireFeatures("SimpleImputer.Transform", c); err != nil {
		return nil, err
	}

	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		if math.IsNaN(v) {
			return s.Statistics[j]
		}
		return v
	}, X)
	return result, nil
}

// FitTransform fits on X and fills it.
func (s *SimpleImputer) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// Clone returns an unfitted imputer with the same hyperparameters.
func (s *SimpleImputer) Clone() *SimpleImputer {
	out := NewSimpleImputer(s.Strategy)
	out.FillValue = s.FillValue
	return out
}

// median sorts a copy of x. An even count yields the midpoint of the two
// central values.
func median(x []float64) float64 {
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// StringImputer fills missing categorical cells. The constant strategy uses
// FillValue ("missing" by default); most_frequent uses the column mode, ties
// broken by the lexicographically smallest value.
type StringImputer struct {
	state *model.StateManager

	Strategy  string
	FillValue string

	Statistics []string
}

// NewStringImputer creates a constant-strategy imputer filling with DefaultFillToken.
func NewStringImputer() *StringImputer {
	return &StringImputer{
		state:     model.NewStateManager("StringImputer"),
		Strategy:  StrategyConstant,
		FillValue: DefaultFillToken,
	}
}

// SetParams accepts "strategy" (constant|most_frequent) and "fill_value".
func (s *StringImputer) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "strategy":
			v, ok := value.(string)
			if !ok || (v != StrategyConstant && v != StrategyMostFrequent) {
				return errors.NewValidationError("strategy", "must be one of constant, most_frequent", value)
			}
			s.Strategy = v
		case "fill_value":
			v, ok := value.(string)
			if !ok {
				return errors.NewValidationError("fill_value", "must be a string", value)
			}
			s.FillValue = v
		default:
			return errors.NewValidationError(key, "unknown parameter for StringImputer", value)
		}
	}
	return nil
}

// GetParams returns the imputer's hyperparameters.
func (s *StringImputer) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"strategy":   s.Strategy,
		"fill_value": s.FillValue,
	}
}

// Fit learns the fill value of each column. X is row-major; valid[i][j] is
// false for a missing cell.
func (s *StringImputer) Fit(X [][]string, valid [][]bool) error {
	if err := s.state.RequireUnfitted(); err != nil {
		return err
	}
	if len(X) == 0 || len(X[0]) == 0 {
		return errors.NewModelError("StringImputer.Fit", "empty data", errors.ErrEmptyData)
	}
	c := len(X[0])

	stats := make([]string, c)
	for j := 0; j < c; j++ {
		if s.Strategy == StrategyConstant {
			stats[j] = s.FillValue
			continue
		}
		counts := map[string]int{}
		for i := range X {
			if valid[i][j] {
				counts[X[i][j]]++
			}
		}
		best, bestCount := s.FillValue, 0
		for v, n := range counts {
			if n > bestCount || (n == bestCount && v < best) {
				best, bestCount = v, n
			}
		}
		stats[j] = best
	}

	s.Statistics = stats
	s.state.SetFitted(c, len(X))
	return nil
}

// Transform returns a filled copy of X.
func (s *StringImputer) Transform(X [][]string, valid [][]bool) ([][]string, error) {
	if err := s.state.RequireFitted("Transform"); err != nil {
		return nil, err
	}
	out := make([][]string, len(X))
	for i, row := range X {
		if err := s.state.RequireFeatures("StringImputer.Transform", len(row)); err != nil {
			return nil, err
		}
		out[i] = make([]string, len(row))
		for j, v := range row {
			if valid[i][j] {
				out[i][j] = v
			} else {
				out[i][j] = s.Statistics[j]
			}
		}
	}
	return out, nil
}

// Clone returns an unfitted imputer with the same hyperparameters.
func (s *StringImputer) Clone() *StringImputer {
	out := NewStringImputer()
	out.Strategy = s.Strategy
	out.FillValue = s.FillValue
	return out
}

func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}
