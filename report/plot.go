package report

import (
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/tabsearch/pkg/errors"
)

// SavePlot draws one box per family over the mean CV scores of its
// successful trials and saves it to path. The format follows the file
// extension (.png, .svg, .pdf).
func (r *Report) SavePlot(path string) error {
	p := plot.New()
	p.Title.Text = "Randomized search: mean CV score per trial"
	p.Y.Label.Text = "score"

	var names []string
	for _, o := range r.Families {
		if o.Result == nil {
			continue
		}
		var scores plotter.Values
		scoring := o.Result.Scoring()
		for _, t := range o.Result.Trials() {
			if t.Err == nil {
				scores = append(scores, t.MeanScore)
			}
		}
		if len(scores) == 0 {
			continue
		}
		box, err := plotter.NewBoxPlot(vg.Points(20), float64(len(names)), scores)
		if err != nil {
			return errors.Wrapf(err, "%s: box plot", o.Family)
		}
		p.Add(box)
		names = append(names, o.Family)
		p.Y.Label.Text = scoring
	}
	if len(names) == 0 {
		return errors.New("report: no successful trials to plot")
	}
	p.NominalX(names...)

	if err := p.Save(vg.Length(len(names)+2)*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "save plot %s", path)
	}
	return nil
}
