package records

import (
	"errors"
	"fmt"
)

// BandPolicy decides what happens to values outside the band boundaries.
type BandPolicy string

const (
	// BandDrop leaves out-of-range values blank so that they are excluded
	// from any grouping on the band column.
	BandDrop BandPolicy = "drop"
	// BandClamp assigns values below the first boundary to the first band and
	// values above the last boundary to the last band.
	BandClamp BandPolicy = "clamp"
)

// ErrInvalidBands is returned for malformed boundaries or labels.
var ErrInvalidBands = errors.New("invalid bands")

// DeriveBand adds a categorical column target by binning the numeric field
// into right-closed intervals (boundaries[i], boundaries[i+1]] labelled
// labels[i]. Rows with a missing value stay blank under either policy.
func (rs *RecordSet) DeriveBand(field, target string, boundaries []float64, labels []string, policy BandPolicy) (*RecordSet, error) {
	if !rs.Has(field) {
		return nil, missingFields(field)
	}
	if len(boundaries) < 2 || len(labels) != len(boundaries)-1 {
		return nil, fmt.Errorf("%w: %d boundaries need %d labels, got %d",
			ErrInvalidBands, len(boundaries), len(boundaries)-1, len(labels))
	}
	for i := 1; i < len(boundaries); i++ {
		if boundaries[i] <= boundaries[i-1] {
			return nil, fmt.Errorf("%w: boundaries must increase strictly", ErrInvalidBands)
		}
	}
	switch policy {
	case BandDrop, BandClamp:
	case "":
		policy = BandDrop
	default:
		return nil, fmt.Errorf("%w: unknown policy %q", ErrInvalidBands, policy)
	}

	col := make([]string, len(rs.t.cells))
	for _, pos := range rs.idx {
		v, ok := (Record{rs: rs, pos: pos}).Number(field)
		if !ok {
			continue
		}
		col[pos] = bandLabel(v, boundaries, labels, policy)
	}

	derived := make(map[string][]string, len(rs.derived)+1)
	for k, v := range rs.derived {
		derived[k] = v
	}
	derived[target] = col
	return &RecordSet{t: rs.t, idx: rs.idx, defaults: rs.defaults, derived: derived}, nil
}

func bandLabel(v float64, boundaries []float64, labels []string, policy BandPolicy) string {
	last := len(boundaries) - 1
	if v <= boundaries[0] {
		if policy == BandClamp {
			return labels[0]
		}
		return ""
	}
	if v > boundaries[last] {
		if policy == BandClamp {
			return labels[len(labels)-1]
		}
		return ""
	}
	for i := 1; i <= last; i++ {
		if v <= boundaries[i] {
			return labels[i-1]
		}
	}
	return ""
}
