package errors

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// UnsupportedColumnTypeError is returned when a feature column is declared with
// a type that is neither floating-point nor string. It is fatal for the run.
type UnsupportedColumnTypeError struct {
	Column string
	Kind   string
}

func (e *UnsupportedColumnTypeError) Error() string {
	return fmt.Sprintf("tabsearch: column %q has unsupported type %s (want float or string)", e.Column, e.Kind)
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *UnsupportedColumnTypeError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("column", e.Column).
		Str("kind", e.Kind).
		Str("type", "UnsupportedColumnTypeError")
}

// NewUnsupportedColumnTypeError creates an UnsupportedColumnTypeError with a stack trace.
func NewUnsupportedColumnTypeError(column, kind string) error {
	return errors.WithStack(&UnsupportedColumnTypeError{Column: column, Kind: kind})
}

// SchemaMismatchError is returned when an inference table does not carry the
// column schema a pipeline was trained on.
type SchemaMismatchError struct {
	Missing     []string // columns of the training schema absent from the table
	Unexpected  []string // columns of the table absent from the training schema
	KindChanged []string // columns present in both with a different declared type
}

func (e *SchemaMismatchError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ","))
	}
	if len(e.Unexpected) > 0 {
		parts = append(parts, "unexpected "+strings.Join(e.Unexpected, ","))
	}
	if len(e.KindChanged) > 0 {
		parts = append(parts, "type changed "+strings.Join(e.KindChanged, ","))
	}
	return fmt.Sprintf("tabsearch: schema mismatch: %s", strings.Join(parts, "; "))
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *SchemaMismatchError) MarshalZerologObject(event *zerolog.Event) {
	event.Strs("missing", e.Missing).
		Strs("unexpected", e.Unexpected).
		Strs("kind_changed", e.KindChanged).
		Str("type", "SchemaMismatchError")
}

// NewSchemaMismatchError creates a SchemaMismatchError with a stack trace.
// The column lists are sorted so the message is stable.
func NewSchemaMismatchError(missing, unexpected, kindChanged []string) error {
	sort.Strings(missing)
	sort.Strings(unexpected)
	sort.Strings(kindChanged)
	return errors.WithStack(&SchemaMismatchError{
		Missing:     missing,
		Unexpected:  unexpected,
		KindChanged: kindChanged,
	})
}

// TrialFitError reports that one sampled configuration could not be fitted or
// scored. The search loop logs it and moves on to the next trial.
type TrialFitError struct {
	Family string
	Trial  int
	Params map[string]interface{}
	Err    error
}

func (e *TrialFitError) Error() string {
	return fmt.Sprintf("tabsearch: %s: trial %d failed with params %v: %v", e.Family, e.Trial, e.Params, e.Err)
}

func (e *TrialFitError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *TrialFitError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("family", e.Family).
		Int("trial", e.Trial).
		Interface("params", e.Params).
		Str("cause", fmt.Sprint(e.Err)).
		Str("type", "TrialFitError")
}

// NewTrialFitError creates a TrialFitError with a stack trace.
func NewTrialFitError(family string, trial int, params map[string]interface{}, err error) error {
	return errors.WithStack(&TrialFitError{Family: family, Trial: trial, Params: params, Err: err})
}

// NoViableConfigurationError reports that every trial of a family failed.
// It is fatal for that family only.
type NoViableConfigurationError struct {
	Family  string
	Trials  int
	LastErr error
}

func (e *NoViableConfigurationError) Error() string {
	return fmt.Sprintf("tabsearch: %s: no viable configuration among %d trials: %v", e.Family, e.Trials, e.LastErr)
}

func (e *NoViableConfigurationError) Unwrap() error {
	return e.LastErr
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *NoViableConfigurationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("family", e.Family).
		Int("trials", e.Trials).
		Str("last_error", fmt.Sprint(e.LastErr)).
		Str("type", "NoViableConfigurationError")
}

// NewNoViableConfigurationError creates a NoViableConfigurationError with a stack trace.
func NewNoViableConfigurationError(family string, trials int, lastErr error) error {
	return errors.WithStack(&NoViableConfigurationError{Family: family, Trials: trials, LastErr: lastErr})
}

// Kind names the error taxonomy entry of err, for run summaries.
// Unknown errors are reported as "Error".
func Kind(err error) string {
	var (
		unsupported *UnsupportedColumnTypeError
		schema      *SchemaMismatchError
		noViable    *NoViableConfigurationError
		trial       *TrialFitError
		validation  *ValidationError
		notFitted   *NotFittedError
		panicErr    *PanicError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &unsupported):
		return "UnsupportedColumnTypeError"
	case errors.As(err, &schema):
		return "SchemaMismatchError"
	case errors.As(err, &noViable):
		return "NoViableConfigurationError"
	case errors.As(err, &trial):
		return "TrialFitError"
	case errors.As(err, &validation):
		return "ValidationError"
	case errors.As(err, &notFitted):
		return "NotFittedError"
	case errors.As(err, &panicErr):
		return "PanicError"
	default:
		return "Error"
	}
}
