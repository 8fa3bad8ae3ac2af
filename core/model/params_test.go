package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/tabsearch/pkg/errors"
)

func TestParamConversions(t *testing.T) {
	f, err := ParamFloat("C", 1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, f)

	n, err := ParamInt("max_depth", 10.0)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	_, err = ParamInt("max_depth", 10.5)
	var verr *errors.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "max_depth", verr.ParamName)

	_, err = ParamPositiveInt("n_neighbors", 0)
	assert.Error(t, err)

	seed, err := ParamSeed("random_state", 7)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), seed)

	b, err := ParamBool("bootstrap", "true")
	require.NoError(t, err)
	assert.True(t, b)
}

func TestParamChoice(t *testing.T) {
	s, err := ParamChoice("weights", "distance", "uniform", "distance")
	require.NoError(t, err)
	assert.Equal(t, "distance", s)

	_, err = ParamChoice("weights", "inverse", "uniform", "distance")
	assert.ErrorContains(t, err, "must be one of uniform, distance")

	_, err = ParamChoice("weights", 3, "uniform")
	assert.Error(t, err)
}

func TestParamIntSlice(t *testing.T) {
	tests := []struct {
		name    string
		value   interface{}
		want    []int
		wantErr bool
	}{
		{"bare int", 100, []int{100}, false},
		{"int slice", []int{100, 150}, []int{100, 150}, false},
		{"yaml list", []interface{}{100, 100.0}, []int{100, 100}, false},
		{"empty", []int{}, nil, true},
		{"zero width", []int{0}, nil, true},
		{"string", "100", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParamIntSlice("hidden_layer_sizes", tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "(100,)", FormatIntSlice([]int{100}))
	assert.Equal(t, "(100, 150)", FormatIntSlice([]int{100, 150}))
}
