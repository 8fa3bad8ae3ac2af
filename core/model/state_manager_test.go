package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/tabsearch/pkg/errors"
)

func TestStateManager(t *testing.T) {
	s := NewStateManager("SimpleImputer")
	assert.False(t, s.IsFitted())

	err := s.RequireFitted("Transform")
	require.Error(t, err)
	var notFitted *errors.NotFittedError
	require.True(t, errors.As(err, &notFitted))
	assert.Equal(t, "SimpleImputer", notFitted.ModelName)
	assert.NoError(t, s.RequireUnfitted())

	s.SetFitted(3, 10)
	assert.NoError(t, s.RequireFitted("Transform"))
	nFeatures, nSamples := s.GetDimensions()
	assert.Equal(t, 3, nFeatures)
	assert.Equal(t, 10, nSamples)

	assert.NoError(t, s.RequireFeatures("Transform", 3))
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(s.RequireFeatures("Transform", 4), &dimErr))

	assert.True(t, errors.Is(s.RequireUnfitted(), errors.ErrAlreadyFitted))

	s.Reset()
	assert.False(t, s.IsFitted())
}
