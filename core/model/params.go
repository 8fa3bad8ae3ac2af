package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/tabsearch/pkg/errors"
)

// パラメータ変換ヘルパー
//
// SetParams receives values from three sources: Go callers, the search
// distributions, and YAML overrides. YAML decodes whole numbers as int and
// everything else as float64 or string, so numeric setters accept any of them.

// ParamFloat converts value to float64.
func ParamFloat(name string, value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, errors.NewValidationError(name, "must be a number", value)
		}
		return f, nil
	}
	return 0, errors.NewValidationError(name, "must be a number", value)
}

// ParamInt converts value to int. Floats must be integral.
func ParamInt(name string, value interface{}) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case uint64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, errors.NewValidationError(name, "must be an integer", value)
		}
		return int(v), nil
	}
	return 0, errors.NewValidationError(name, "must be an integer", value)
}

// ParamPositiveInt converts value to an int >= 1.
func ParamPositiveInt(name string, value interface{}) (int, error) {
	n, err := ParamInt(name, value)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, errors.NewValidationError(name, "must be >= 1", value)
	}
	return n, nil
}

// ParamSeed converts value to a non-negative random seed.
func ParamSeed(name string, value interface{}) (uint64, error) {
	if v, ok := value.(uint64); ok {
		return v, nil
	}
	n, err := ParamInt(name, value)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.NewValidationError(name, "must be non-negative", value)
	}
	return uint64(n), nil
}

// ParamBool converts value to bool.
func ParamBool(name string, value interface{}) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b, nil
		}
	}
	return false, errors.NewValidationError(name, "must be a boolean", value)
}

// ParamChoice converts value to a string and checks it is one of allowed.
func ParamChoice(name string, value interface{}, allowed ...string) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", errors.NewValidationError(name, "must be a string", value)
	}
	for _, a := range allowed {
		if s == a {
			return s, nil
		}
	}
	return "", errors.NewValidationError(name, "must be one of "+strings.Join(allowed, ", "), value)
}

// ParamIntSlice converts value to a non-empty []int of positive entries.
// A bare integer is treated as a one-element tuple, so both 100 and
// [100, 150] are accepted for hidden_layer_sizes.
func ParamIntSlice(name string, value interface{}) ([]int, error) {
	var out []int
	switch v := value.(type) {
	case []int:
		out = append(out, v...)
	case []interface{}:
		for _, item := range v {
			n, err := ParamInt(name, item)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
	default:
		n, err := ParamInt(name, value)
		if err != nil {
			return nil, errors.NewValidationError(name, "must be an integer tuple", value)
		}
		out = []int{n}
	}
	if len(out) == 0 {
		return nil, errors.NewValidationError(name, "must not be empty", value)
	}
	for _, n := range out {
		if n < 1 {
			return nil, errors.NewValidationError(name, "entries must be >= 1", value)
		}
	}
	return out, nil
}

// FormatIntSlice renders a layer tuple the way sklearn prints it: (100,) or (100, 150).
func FormatIntSlice(v []int) string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.Itoa(n)
	}
	if len(parts) == 1 {
		return "(" + parts[0] + ",)"
	}
	return fmt.Sprintf("(%s)", strings.Join(parts, ", "))
}
