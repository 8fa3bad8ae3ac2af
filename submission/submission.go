// Package submission turns a fitted pipeline's predictions on an inference
// table into (id, probability) records and persists them.
package submission

import (
	"github.com/YuminosukeSato/tabsearch/dataset"
	"github.com/YuminosukeSato/tabsearch/pipeline"
	"github.com/YuminosukeSato/tabsearch/pkg/errors"
)

// Record is one submission row.
type Record struct {
	ID          string
	Probability float64
}

// Predict scores every row of t with p. The id column is set aside; the
// remaining columns must match the pipeline's training schema exactly (names
// and kinds, in any order), otherwise a SchemaMismatchError is returned.
// Records come back in input row order.
func Predict(p *pipeline.Pipeline, t *dataset.Table, idColumn string) ([]Record, error) {
	if p == nil || !p.IsFitted() {
		return nil, errors.NewNotFittedError("Pipeline", "Predict")
	}
	ids, ok := t.Column(idColumn)
	if !ok {
		return nil, errors.NewValidationError("id_column", "column not found in inference table", idColumn)
	}
	features := t.Drop(idColumn)
	if err := p.Schema().Check(features.Schema()); err != nil {
		return nil, err
	}
	proba, err := p.PredictProba(features)
	if err != nil {
		return nil, err
	}
	records := make([]Record, t.NumRows())
	for i := range records {
		records[i] = Record{ID: ids.Text(i), Probability: proba.AtVec(i)}
	}
	return records, nil
}
