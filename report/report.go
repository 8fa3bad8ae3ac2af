// Package report summarizes an orchestration run: which families succeeded,
// their best configuration and where their submission went, and which
// families failed with which error kind.
package report

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/YuminosukeSato/tabsearch/model_selection"
	"github.com/YuminosukeSato/tabsearch/pkg/errors"
)

// FamilyOutcome is the result of one family. Exactly one of Result or Err
// describes the outcome; a family whose search succeeded but whose
// submission failed carries both.
type FamilyOutcome struct {
	Family     string
	Result     *model_selection.SearchResult
	OutputPath string
	Err        error
	Duration   time.Duration
}

// Succeeded reports whether the family produced a submission.
func (o FamilyOutcome) Succeeded() bool {
	return o.Err == nil && o.Result != nil
}

// ErrorKind names the error taxonomy entry of Err.
func (o FamilyOutcome) ErrorKind() string {
	return errors.Kind(o.Err)
}

// Report is the outcome of one run, families in run order.
type Report struct {
	RunID    string
	Seed     uint64
	Families []FamilyOutcome
}

// Add appends a family outcome.
func (r *Report) Add(o FamilyOutcome) {
	r.Families = append(r.Families, o)
}

// Succeeded returns the families that produced a submission.
func (r *Report) Succeeded() []FamilyOutcome {
	var out []FamilyOutcome
	for _, o := range r.Families {
		if o.Succeeded() {
			out = append(out, o)
		}
	}
	return out
}

// Failed returns the families that did not.
func (r *Report) Failed() []FamilyOutcome {
	var out []FamilyOutcome
	for _, o := range r.Families {
		if !o.Succeeded() {
			out = append(out, o)
		}
	}
	return out
}

// OK reports whether at least one family succeeded.
func (r *Report) OK() bool {
	return len(r.Succeeded()) > 0
}

// WriteSummary renders the report as an aligned table.
func (r *Report) WriteSummary(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "run %s (seed %d)\n", r.RunID, r.Seed)
	fmt.Fprintln(tw, "FAMILY\tSTATUS\tBEST SCORE\tFAILED TRIALS\tDETAIL")
	for _, o := range r.Families {
		switch {
		case o.Succeeded():
			fmt.Fprintf(tw, "%s\tok\t%.5f\t%d\t%s %s\n",
				o.Family, o.Result.BestScore(), o.Result.Failed(), o.OutputPath, o.Result.BestParams())
		case o.Result != nil:
			fmt.Fprintf(tw, "%s\t%s\t%.5f\t%d\t%v\n",
				o.Family, o.ErrorKind(), o.Result.BestScore(), o.Result.Failed(), o.Err)
		default:
			fmt.Fprintf(tw, "%s\t%s\t-\t-\t%v\n", o.Family, o.ErrorKind(), o.Err)
		}
	}
	return tw.Flush()
}
