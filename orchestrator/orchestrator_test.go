package orchestrator

import (
	"bytes"
	"context"
	"encoding/csv"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/tabsearch/config"
	"github.com/YuminosukeSato/tabsearch/dataset"
	"github.com/YuminosukeSato/tabsearch/family"
	"github.com/YuminosukeSato/tabsearch/model_selection"
	"github.com/YuminosukeSato/tabsearch/pkg/errors"
	"github.com/YuminosukeSato/tabsearch/pkg/log"
)

// tables は {age: float, city: string, match: {0,1}} の学習表 (age の約10%が欠損) と
// id 付きの推論表を作る。
func tables(n, nTest int) (train, test *dataset.Table) {
	rng := rand.New(rand.NewPCG(21, 22))
	cities := []string{"tokyo", "osaka", "nagoya"}
	ids := make([]int64, n)
	age := make([]float64, n)
	city := make([]string, n)
	valid := make([]bool, n)
	label := make([]float64, n)
	for i := 0; i < n; i++ {
		ids[i] = int64(i)
		y := float64(rng.IntN(2))
		label[i] = y
		age[i] = 30 + 10*y + rng.NormFloat64()*5
		if i%10 == 3 {
			age[i] = math.NaN()
		}
		city[i] = cities[rng.IntN(3)]
		valid[i] = true
	}
	train = dataset.MustNewTable(
		dataset.IntColumn("id", ids),
		dataset.FloatColumn("age", age),
		dataset.StringColumn("city", city, valid),
		dataset.FloatColumn("match", label),
	)

	testIDs := make([]int64, nTest)
	testAge := make([]float64, nTest)
	testCity := make([]string, nTest)
	testValid := make([]bool, nTest)
	for i := 0; i < nTest; i++ {
		testIDs[i] = int64(1000 + i)
		testAge[i] = 25 + float64(i)
		testCity[i] = cities[i%3]
		testValid[i] = i%4 != 0
	}
	test = dataset.MustNewTable(
		dataset.IntColumn("id", testIDs),
		dataset.StringColumn("city", testCity, testValid),
		dataset.FloatColumn("age", testAge),
	)
	return train, test
}

func baseConfig(t *testing.T, families ...string) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.NIter = 3
	cfg.CV = 5
	cfg.Seed = 42
	cfg.Families = families
	cfg.Results.Dir = t.TempDir()
	return cfg
}

func TestRun_LogisticRegressionEndToEnd(t *testing.T) {
	train, test := tables(100, 12)
	cfg := baseConfig(t, "LR")

	var mu sync.Mutex
	last := 0
	o, err := New(cfg, WithProgress(func(name family.Name, done, total int) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, family.LR, name)
		assert.Equal(t, 15, total)
		last = max(last, done)
	}))
	require.NoError(t, err)

	rep, err := o.Run(context.Background(), train, test)
	require.NoError(t, err)
	require.True(t, rep.OK())
	require.Len(t, rep.Families, 1)
	assert.NotEmpty(t, rep.RunID)
	assert.Equal(t, 15, last)

	lr := rep.Families[0]
	require.NoError(t, lr.Err)
	assert.GreaterOrEqual(t, lr.Result.BestScore(), 0.0)
	assert.LessOrEqual(t, lr.Result.BestScore(), 1.0)
	for _, tr := range lr.Result.Trials() {
		if tr.Err == nil {
			assert.LessOrEqual(t, tr.MeanScore, lr.Result.BestScore())
		}
	}

	assert.Equal(t, filepath.Join(cfg.Results.Dir, "RandomSearchLR.csv"), lr.OutputPath)
	f, err := os.Open(lr.OutputPath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 13)
	assert.Equal(t, []string{"id", "match"}, rows[0])
	assert.Equal(t, "1000", rows[1][0])

	var buf bytes.Buffer
	require.NoError(t, rep.WriteSummary(&buf))
	assert.Contains(t, buf.String(), "LR")
}

func TestRun_SchemaMismatchFailsPrediction(t *testing.T) {
	train, test := tables(60, 5)
	cfg := baseConfig(t, "LR")
	o, err := New(cfg)
	require.NoError(t, err)

	rep, err := o.Run(context.Background(), train, test.Drop("city"))
	require.NoError(t, err)
	assert.False(t, rep.OK())

	lr := rep.Families[0]
	var serr *errors.SchemaMismatchError
	require.True(t, errors.As(lr.Err, &serr))
	assert.Equal(t, []string{"city"}, serr.Missing)
	assert.Equal(t, "SchemaMismatchError", lr.ErrorKind())
	assert.NotNil(t, lr.Result, "the search itself succeeded")
	assert.NoFileExists(t, filepath.Join(cfg.Results.Dir, "RandomSearchLR.csv"))
}

func TestRun_NoViableFamilyDoesNotBlockOthers(t *testing.T) {
	// 48 行の学習foldでは n_neighbors >= 70 の KNN はすべて失敗する
	train, test := tables(60, 5)
	cfg := baseConfig(t, "KNN", "LR")
	logger, buf := log.NewTestLogger(log.LevelWarn)

	o, err := New(cfg, WithLogger(logger))
	require.NoError(t, err)
	rep, err := o.Run(context.Background(), train, test)
	require.NoError(t, err)
	require.Len(t, rep.Families, 2)

	knn := rep.Families[0]
	var nerr *errors.NoViableConfigurationError
	require.True(t, errors.As(knn.Err, &nerr))
	assert.Equal(t, "KNN", nerr.Family)
	assert.Equal(t, 3, nerr.Trials)

	lr := rep.Families[1]
	assert.True(t, lr.Succeeded())
	assert.FileExists(t, lr.OutputPath)
	assert.True(t, rep.OK())

	assert.Contains(t, buf.String(), "trial failed")
	assert.Contains(t, buf.String(), "NoViableConfigurationError")
}

func TestRun_SpaceOverride(t *testing.T) {
	train, _ := tables(60, 0)
	cfg := baseConfig(t, "KNN")
	cfg.Spaces = map[string]config.Space{
		"KNN": {"classifier__n_neighbors": {Distribution: model_selection.NewCategorical(3, 5)}},
	}
	o, err := New(cfg)
	require.NoError(t, err)
	rep, err := o.Run(context.Background(), train, nil)
	require.NoError(t, err)
	knn := rep.Families[0]
	require.NoError(t, knn.Err)
	assert.Contains(t, []any{3, 5}, knn.Result.BestParams()["classifier__n_neighbors"])
	assert.Empty(t, knn.OutputPath)
}

func TestRun_FatalErrors(t *testing.T) {
	train, test := tables(30, 3)
	o, err := New(baseConfig(t, "LR"))
	require.NoError(t, err)

	_, err = o.Run(context.Background(), train.Drop("match"), test)
	var verr *errors.ValidationError
	assert.True(t, errors.As(err, &verr))

	withBool := dataset.MustNewTable(append(train.Columns(),
		dataset.BoolColumn("vip", make([]bool, train.NumRows())))...)
	_, err = o.Run(context.Background(), withBool, test)
	var uerr *errors.UnsupportedColumnTypeError
	assert.True(t, errors.As(err, &uerr))
}

func TestRun_CancelledContext(t *testing.T) {
	train, test := tables(40, 3)
	o, err := New(baseConfig(t, "LR", "RF"))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := o.Run(ctx, train, test)
	require.NoError(t, err)
	assert.False(t, rep.OK())
	for _, f := range rep.Families {
		assert.ErrorIs(t, f.Err, context.Canceled)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.NIter = 0
	_, err := New(cfg)
	assert.Error(t, err)
}
