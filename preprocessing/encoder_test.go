package preprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/tabsearch/pkg/errors"
)

func TestOneHotEncoder(t *testing.T) {
	enc := NewOneHotEncoder()
	require.NoError(t, enc.Fit([][]string{
		{"Tokyo", "m"},
		{"Osaka", "f"},
		{"Tokyo", "f"},
	}))

	assert.Equal(t, [][]string{{"Osaka", "Tokyo"}, {"f", "m"}}, enc.Categories)
	assert.Equal(t, 4, enc.Width())
	assert.Equal(t, []string{"city_Osaka", "city_Tokyo", "sex_f", "sex_m"}, enc.FeatureNames([]string{"city", "sex"}))

	out, err := enc.Transform([][]string{
		{"Tokyo", "f"},
		{"Kyoto", "m"},
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 1, 0}, out.RawRowView(0))
	assert.Equal(t, []float64{0, 0, 0, 1}, out.RawRowView(1), "unknown category yields an all-zero block")
	assert.Equal(t, 4, enc.Width(), "vocabulary does not grow")
}

func TestOneHotEncoder_HandleUnknownError(t *testing.T) {
	enc := NewOneHotEncoder()
	require.NoError(t, enc.SetParams(map[string]interface{}{"handle_unknown": "error"}))
	require.NoError(t, enc.Fit([][]string{{"a"}, {"b"}}))

	_, err := enc.Transform([][]string{{"c"}})
	var valueErr *errors.ValueError
	assert.True(t, errors.As(err, &valueErr))
}

func TestOneHotEncoder_Errors(t *testing.T) {
	enc := NewOneHotEncoder()
	_, err := enc.Transform([][]string{{"a"}})
	var notFitted *errors.NotFittedError
	assert.True(t, errors.As(err, &notFitted))

	assert.Error(t, enc.Fit(nil))
	assert.Error(t, enc.Fit([][]string{{"a", "b"}, {"c"}}))

	var validation *errors.ValidationError
	assert.True(t, errors.As(enc.SetParams(map[string]interface{}{"handle_unknown": "raise"}), &validation))
}
