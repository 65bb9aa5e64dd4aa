package calibration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NarrativeScorer/internal/domain"
)

func scored(id string, v float64) domain.CategoryScore {
	return domain.CategoryScore{
		CategoryID: id,
		Score:      domain.Float(v),
		Evidence:   []string{"quote"},
		Status:     domain.StatusScored,
	}
}

var table = Table{Rules: []Rule{
	{Category: "voice_style", Min: 0, Max: 5, Shift: -1},
	{Min: 8, Max: 10, Shift: 1},
	{Min: 0, Max: 10, Shift: 0.5},
}}

func TestCalibrate(t *testing.T) {
	t.Parallel()

	in := []domain.CategoryScore{
		scored("voice_style", 3),
		scored("impact_outcomes", 9.5),
		scored("impact_outcomes", 10),
		scored("voice_style", 0.5),
		scored("collaboration", 4),
		domain.Placeholder("growth_trajectory", domain.StatusUnavailable, domain.JustificationUnavailable),
	}

	out := Calibrate(in, table)
	require.Len(t, out, len(in))

	want := []float64{2, 10, 10, 0, 4.5}
	for i, w := range want {
		assert.True(t, out[i].Calibrated, i)
		assert.Equal(t, w, out[i].Value(), i)
		require.NotNil(t, out[i].RawScore, i)
		assert.Equal(t, in[i].Value(), *out[i].RawScore, i)
		assert.GreaterOrEqual(t, out[i].Value(), domain.MinScore)
		assert.LessOrEqual(t, out[i].Value(), domain.MaxScore)
	}
	assert.Equal(t, 0.5, out[1].CalibrationShift)
	assert.Equal(t, -0.5, out[3].CalibrationShift)

	assert.False(t, out[5].Calibrated)
	assert.False(t, out[5].HasScore())

	assert.False(t, in[0].Calibrated, "input must not be modified")
	assert.Equal(t, 3.0, in[0].Value())
}

func TestCalibrateIsIdempotent(t *testing.T) {
	t.Parallel()

	in := []domain.CategoryScore{scored("voice_style", 3), scored("collaboration", 8)}
	once := Calibrate(in, table)
	twice := Calibrate(once, table)
	assert.Equal(t, once, twice)
}

func TestCalibrateEmptyTableMarksOnly(t *testing.T) {
	t.Parallel()

	out := Calibrate([]domain.CategoryScore{scored("a", 6.5)}, Table{})
	assert.True(t, out[0].Calibrated)
	assert.Equal(t, 6.5, out[0].Value())
	assert.Equal(t, 0.0, out[0].CalibrationShift)
}

func TestTableValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, table.Validate())
	require.NoError(t, Table{}.Validate())

	assert.Error(t, Table{Rules: []Rule{{Min: 0, Max: 10, Shift: 0.3}}}.Validate())
	assert.Error(t, Table{Rules: []Rule{{Min: 5, Max: 5, Shift: 1}}}.Validate())
	assert.Error(t, Table{Rules: []Rule{{Min: -1, Max: 5, Shift: 1}}}.Validate())
	assert.Error(t, Table{Rules: []Rule{{Min: 0, Max: 12, Shift: 1}}}.Validate())
}
