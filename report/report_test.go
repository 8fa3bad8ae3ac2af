package report

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabsearch/dataset"
	"github.com/YuminosukeSato/tabsearch/family"
	"github.com/YuminosukeSato/tabsearch/model_selection"
	"github.com/YuminosukeSato/tabsearch/pkg/errors"
	"github.com/YuminosukeSato/tabsearch/preprocessing"
)

func searchResult(t *testing.T) *model_selection.SearchResult {
	t.Helper()
	n := 30
	x := make([]float64, n)
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		label := float64(i % 2)
		y.SetVec(i, label)
		x[i] = label + float64(i%3)*0.4
	}
	tbl := dataset.MustNewTable(dataset.FloatColumn("x", x))
	ct, err := preprocessing.NewColumnTransformerForTable(tbl)
	require.NoError(t, err)
	template, err := family.New(family.LR, ct, 1)
	require.NoError(t, err)
	space, err := family.DefaultSpace(family.LR)
	require.NoError(t, err)
	search, err := model_selection.NewRandomizedSearchCV("LR", template, space,
		model_selection.WithNIter(3), model_selection.WithCV(model_selection.NewStratifiedKFold(3, true, 1)))
	require.NoError(t, err)
	res, err := search.Fit(context.Background(), tbl, y)
	require.NoError(t, err)
	return res
}

func TestReport_Summary(t *testing.T) {
	rep := &Report{RunID: "run-1", Seed: 1}
	rep.Add(FamilyOutcome{Family: "LR", Result: searchResult(t), OutputPath: "out/RandomSearchLR.csv"})
	rep.Add(FamilyOutcome{Family: "KNN", Err: errors.NewNoViableConfigurationError("KNN", 3, errors.New("boom"))})

	assert.True(t, rep.OK())
	require.Len(t, rep.Succeeded(), 1)
	require.Len(t, rep.Failed(), 1)
	assert.Equal(t, "NoViableConfigurationError", rep.Failed()[0].ErrorKind())

	var buf bytes.Buffer
	require.NoError(t, rep.WriteSummary(&buf))
	out := buf.String()
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "out/RandomSearchLR.csv")
	assert.Contains(t, out, "NoViableConfigurationError")
}

func TestReport_AllFailed(t *testing.T) {
	rep := &Report{}
	rep.Add(FamilyOutcome{Family: "MLP", Err: errors.New("x")})
	assert.False(t, rep.OK())
	assert.Error(t, rep.SavePlot(filepath.Join(t.TempDir(), "scores.png")))
}

func TestReport_SavePlot(t *testing.T) {
	rep := &Report{}
	rep.Add(FamilyOutcome{Family: "LR", Result: searchResult(t)})
	path := filepath.Join(t.TempDir(), "scores.png")
	require.NoError(t, rep.SavePlot(path))
	assert.FileExists(t, path)
}
