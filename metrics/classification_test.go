package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabsearch/pkg/errors"
)

func vec(x []float64) *mat.VecDense {
	if len(x) == 0 {
		return nil
	}
	return mat.NewVecDense(len(x), x)
}

func TestAUC(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   []float64
		yPred   []float64
		want    float64
		wantErr bool
	}{
		{"perfect classifier", []float64{0, 0, 0, 1, 1, 1}, []float64{0.1, 0.2, 0.3, 0.7, 0.8, 0.9}, 1.0, false},
		{"worst classifier", []float64{0, 0, 0, 1, 1, 1}, []float64{0.9, 0.8, 0.7, 0.3, 0.2, 0.1}, 0.0, false},
		{"all ties", []float64{0, 1, 0, 1}, []float64{0.5, 0.5, 0.5, 0.5}, 0.5, false},
		{"typical case", []float64{0, 0, 1, 1}, []float64{0.1, 0.4, 0.35, 0.8}, 0.75, false},
		{"partial ties", []float64{0, 1, 1, 0, 1}, []float64{0.2, 0.2, 0.6, 0.6, 0.9}, 4.0 / 6, false},
		{"all positive labels", []float64{1, 1, 1, 1}, []float64{0.1, 0.4, 0.35, 0.8}, 0.5, false},
		{"all negative labels", []float64{0, 0, 0, 0}, []float64{0.1, 0.4, 0.35, 0.8}, 0.5, false},
		{"non-binary labels", []float64{0, 0.5, 1}, []float64{0.1, 0.5, 0.9}, 0, true},
		{"dimension mismatch", []float64{0, 1}, []float64{0.5}, 0, true},
		{"empty vectors", nil, nil, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AUC(vec(tt.yTrue), vec(tt.yPred))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestAUC_SingleClassWarns(t *testing.T) {
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer errors.SetWarningHandler(func(error) {})

	got, err := AUC(vec([]float64{1, 1}), vec([]float64{0.2, 0.9}))
	require.NoError(t, err)
	assert.Equal(t, 0.5, got)
	require.Len(t, warnings, 1)

	var undefined *errors.UndefinedMetricWarning
	require.True(t, errors.As(warnings[0], &undefined))
	assert.Equal(t, "roc_auc", undefined.Metric)
}

func TestAUC_InvariantUnderRowOrder(t *testing.T) {
	yTrue := []float64{0, 1, 1, 0, 1, 0, 0, 1}
	yPred := []float64{0.3, 0.7, 0.4, 0.4, 0.9, 0.1, 0.6, 0.2}
	want, err := AUC(vec(yTrue), vec(yPred))
	require.NoError(t, err)

	perm := []int{7, 2, 5, 0, 3, 6, 1, 4}
	pt, pp := make([]float64, 8), make([]float64, 8)
	for i, p := range perm {
		pt[i], pp[i] = yTrue[p], yPred[p]
	}
	got, err := AUC(vec(pt), vec(pp))
	require.NoError(t, err)
	assert.InDelta(t, want, got, 1e-12)
}

func TestBinaryLogLoss(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   []float64
		yPred   []float64
		want    float64
		wantErr bool
	}{
		{"perfect predictions are clipped", []float64{0, 0, 1, 1}, []float64{0, 0, 1, 1}, 0.0, false},
		{"typical case", []float64{0, 0, 1, 1}, []float64{0.1, 0.2, 0.8, 0.9}, 0.164252, false},
		{"worst predictions", []float64{0, 0, 1, 1}, []float64{0.9, 0.9, 0.1, 0.1}, 2.3025851, false},
		{"non-binary labels", []float64{0, 0.5, 1}, []float64{0.1, 0.5, 0.9}, 0, true},
		{"empty vectors", nil, nil, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BinaryLogLoss(vec(tt.yTrue), vec(tt.yPred))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-4)
		})
	}
}

func TestAccuracy(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   []float64
		yPred   []float64
		want    float64
		wantErr bool
	}{
		{"perfect", []float64{0, 1, 1, 0}, []float64{0, 1, 1, 0}, 1.0, false},
		{"75 percent", []float64{0, 1, 1, 0}, []float64{0, 1, 0, 0}, 0.75, false},
		{"all wrong", []float64{0, 0, 0}, []float64{1, 1, 1}, 0.0, false},
		{"dimension mismatch", []float64{0, 1}, []float64{0}, 0, true},
		{"empty vectors", nil, nil, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc, err := Accuracy(vec(tt.yTrue), vec(tt.yPred))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, acc, 1e-12)
		})
	}
}

func TestThreshold(t *testing.T) {
	got := Threshold(vec([]float64{0.1, 0.5, 0.49, 0.9}))
	assert.Equal(t, []float64{0, 1, 0, 1}, got.RawVector().Data)
}

func BenchmarkAUC(b *testing.B) {
	n := 1000
	yTrue := make([]float64, n)
	yPred := make([]float64, n)
	for i := 0; i < n; i++ {
		yTrue[i] = float64(i % 2)
		yPred[i] = float64(i%7) / 7
	}
	yt, yp := vec(yTrue), vec(yPred)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = AUC(yt, yp)
	}
}
