package records

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ageBounds = []float64{0, 18, 35, 55, 150}
var ageLabels = []string{"under 18", "19-35", "36-55", "over 56"}

func loadAges(t *testing.T, ages ...string) *RecordSet {
	t.Helper()
	rows := make([][]string, len(ages))
	for i, a := range ages {
		rows[i] = []string{a}
	}
	rs, err := Load([]string{"age"}, rows, Schema{}.Numeric("age"))
	require.NoError(t, err)
	return rs
}

func bands(rs *RecordSet, field string) []string {
	out := make([]string, rs.Size())
	for i := range out {
		out[i] = rs.At(i).Value(field)
	}
	return out
}

func TestDeriveBand_RightClosedIntervals(t *testing.T) {
	// Given
	rs := loadAges(t, "18", "19", "35", "35.5", "1", "150")

	// When
	banded, err := rs.DeriveBand("age", "band", ageBounds, ageLabels, BandDrop)

	// Then
	require.NoError(t, err)
	assert.Equal(t, []string{"under 18", "19-35", "19-35", "36-55", "under 18", "over 56"}, bands(banded, "band"))
	assert.False(t, rs.Has("band"), "source view gains no column")
	assert.Contains(t, banded.Fields(), "band")
}

func TestDeriveBand_OutOfRangePolicies(t *testing.T) {
	rs := loadAges(t, "0", "151", "", "40")

	t.Run("drop leaves out-of-range blank", func(t *testing.T) {
		banded, err := rs.DeriveBand("age", "band", ageBounds, ageLabels, BandDrop)
		require.NoError(t, err)
		assert.Equal(t, []string{"", "", "", "36-55"}, bands(banded, "band"))
	})

	t.Run("clamp assigns edge bands", func(t *testing.T) {
		banded, err := rs.DeriveBand("age", "band", ageBounds, ageLabels, BandClamp)
		require.NoError(t, err)
		assert.Equal(t, []string{"under 18", "over 56", "", "36-55"}, bands(banded, "band"))
	})

	t.Run("empty policy means drop", func(t *testing.T) {
		banded, err := rs.DeriveBand("age", "band", ageBounds, ageLabels, "")
		require.NoError(t, err)
		assert.Equal(t, "", banded.At(1).Value("band"))
	})
}

func TestDeriveBand_Validation(t *testing.T) {
	rs := loadAges(t, "20")

	_, err := rs.DeriveBand("age", "band", []float64{0, 18}, ageLabels, BandDrop)
	assert.ErrorIs(t, err, ErrInvalidBands)

	_, err = rs.DeriveBand("age", "band", []float64{0, 18, 18}, []string{"a", "b"}, BandDrop)
	assert.ErrorIs(t, err, ErrInvalidBands)

	_, err = rs.DeriveBand("age", "band", ageBounds, ageLabels, "wrap")
	assert.ErrorIs(t, err, ErrInvalidBands)

	_, err = rs.DeriveBand("years", "band", ageBounds, ageLabels, BandDrop)
	assert.ErrorIs(t, err, ErrSchema)
}

func TestDeriveBand_FilteredViewOnlyBandsItsRows(t *testing.T) {
	rs := loadAges(t, "10", "20", "30")
	sub := rs.Filter(func(r Record) bool { return r.Position() != 1 })

	banded, err := sub.DeriveBand("age", "band", ageBounds, ageLabels, BandDrop)

	require.NoError(t, err)
	assert.Equal(t, []string{"under 18", "19-35"}, bands(banded, "band"))
}
