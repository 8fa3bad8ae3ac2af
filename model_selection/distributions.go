package model_selection

import (
	"fmt"
	"math"
	"math/rand/v2"
	"reflect"
	"sort"
	"strings"

	"github.com/YuminosukeSato/tabsearch/pkg/errors"
)

// Distribution is one tunable parameter's sampling rule. The concrete kinds
// are Categorical, IntRange, FloatRange and LogUniformRange.
type Distribution interface {
	// Sample draws one value.
	Sample(rng *rand.Rand) any
	// Contains reports whether v could have been drawn.
	Contains(v any) bool
	// Endpoints returns representative legal values: every candidate of a
	// Categorical, the bounds of a range.
	Endpoints() []any
	// Validate checks that the distribution is well formed.
	Validate(param string) error
	String() string
}

// Categorical draws uniformly from a fixed candidate list.
type Categorical struct {
	Values []any
}

// NewCategorical builds a Categorical from its candidates.
func NewCategorical(values ...any) Categorical {
	return Categorical{Values: values}
}

func (c Categorical) Sample(rng *rand.Rand) any {
	return copyValue(c.Values[rng.IntN(len(c.Values))])
}

func (c Categorical) Contains(v any) bool {
	for _, cand := range c.Values {
		if reflect.DeepEqual(cand, v) {
			return true
		}
	}
	return false
}

func (c Categorical) Endpoints() []any { return c.Values }

func (c Categorical) Validate(param string) error {
	if len(c.Values) == 0 {
		return errors.NewValidationError(param, "categorical distribution needs at least one value", c.Values)
	}
	return nil
}

func (c Categorical) String() string {
	parts := make([]string, len(c.Values))
	for i, v := range c.Values {
		parts[i] = fmt.Sprint(v)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// IntRange draws an integer in [Low, High], uniformly or, with Log, uniformly
// in log space.
type IntRange struct {
	Low, High int
	Log       bool
}

func (r IntRange) Sample(rng *rand.Rand) any {
	if r.Log {
		lo, hi := math.Log(float64(r.Low)), math.Log(float64(r.High)+1)
		v := int(math.Floor(math.Exp(lo + rng.Float64()*(hi-lo))))
		return min(max(v, r.Low), r.High)
	}
	return r.Low + rng.IntN(r.High-r.Low+1)
}

func (r IntRange) Contains(v any) bool {
	n, ok := v.(int)
	return ok && n >= r.Low && n <= r.High
}

func (r IntRange) Endpoints() []any { return []any{r.Low, r.High} }

func (r IntRange) Validate(param string) error {
	if r.Low > r.High {
		return errors.NewValidationError(param, "int range low must be <= high", r)
	}
	if r.Log && r.Low < 1 {
		return errors.NewValidationError(param, "log int range needs low >= 1", r)
	}
	return nil
}

func (r IntRange) String() string {
	if r.Log {
		return fmt.Sprintf("logint[%d, %d]", r.Low, r.High)
	}
	return fmt.Sprintf("int[%d, %d]", r.Low, r.High)
}

// FloatRange draws uniformly from [Low, High).
type FloatRange struct {
	Low, High float64
}

func (r FloatRange) Sample(rng *rand.Rand) any {
	return r.Low + rng.Float64()*(r.High-r.Low)
}

func (r FloatRange) Contains(v any) bool {
	f, ok := v.(float64)
	return ok && f >= r.Low && f <= r.High
}

func (r FloatRange) Endpoints() []any { return []any{r.Low, r.High} }

func (r FloatRange) Validate(param string) error {
	if !(r.Low <= r.High) {
		return errors.NewValidationError(param, "float range low must be <= high", r)
	}
	return nil
}

func (r FloatRange) String() string { return fmt.Sprintf("uniform[%g, %g)", r.Low, r.High) }

// LogUniformRange draws from [Low, High) uniformly in log space.
type LogUniformRange struct {
	Low, High float64
}

func (r LogUniformRange) Sample(rng *rand.Rand) any {
	lo, hi := math.Log(r.Low), math.Log(r.High)
	return math.Exp(lo + rng.Float64()*(hi-lo))
}

func (r LogUniformRange) Contains(v any) bool {
	f, ok := v.(float64)
	return ok && f >= r.Low && f <= r.High
}

func (r LogUniformRange) Endpoints() []any { return []any{r.Low, r.High} }

func (r LogUniformRange) Validate(param string) error {
	if !(r.Low > 0 && r.Low <= r.High) {
		return errors.NewValidationError(param, "log-uniform range needs 0 < low <= high", r)
	}
	return nil
}

func (r LogUniformRange) String() string { return fmt.Sprintf("loguniform[%g, %g)", r.Low, r.High) }

// copyValue keeps sampled slices from aliasing the candidate list.
func copyValue(v any) any {
	if s, ok := v.([]int); ok {
		return append([]int(nil), s...)
	}
	return v
}

// Params is one sampled configuration, keyed by step-prefixed parameter name.
type Params map[string]any

// Clone returns a copy of p.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = copyValue(v)
	}
	return out
}

// Keys returns the parameter names in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String renders p as "k=v" pairs in key order.
func (p Params) String() string {
	parts := make([]string, 0, len(p))
	for _, k := range p.Keys() {
		parts = append(parts, fmt.Sprintf("%s=%v", k, p[k]))
	}
	return strings.Join(parts, " ")
}

// ParamSpace maps each tunable parameter to its distribution.
type ParamSpace map[string]Distribution

// Keys returns the parameter names in sorted order.
func (s ParamSpace) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate checks every distribution. An empty space is rejected.
func (s ParamSpace) Validate() error {
	if len(s) == 0 {
		return errors.NewValidationError("param_distributions", "must not be empty", s)
	}
	for _, k := range s.Keys() {
		if s[k] == nil {
			return errors.NewValidationError(k, "distribution is nil", nil)
		}
		if err := s[k].Validate(k); err != nil {
			return err
		}
	}
	return nil
}

// Sample draws one configuration. Keys are visited in sorted order so the
// draw depends only on rng.
func (s ParamSpace) Sample(rng *rand.Rand) Params {
	p := make(Params, len(s))
	for _, k := range s.Keys() {
		p[k] = s[k].Sample(rng)
	}
	return p
}

// Check reports whether every key of p is in the space and every value lies
// in its distribution.
func (s ParamSpace) Check(p Params) error {
	for _, k := range p.Keys() {
		d, ok := s[k]
		if !ok {
			return errors.NewValidationError(k, "parameter is not in the search space", p[k])
		}
		if !d.Contains(p[k]) {
			return errors.NewValidationError(k, "value outside "+d.String(), p[k])
		}
	}
	return nil
}

// Clone returns a shallow copy of s; distributions are immutable values.
func (s ParamSpace) Clone() ParamSpace {
	out := make(ParamSpace, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
