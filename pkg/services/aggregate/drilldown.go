package aggregate

import (
	"errors"

	"github.com/de-tools/case-atlas/pkg/records"
)

// Dimension is one grouping of a drill-down: the field to group by, the
// metric to rank by and how many entries to keep (0 keeps all).
type Dimension struct {
	Field      string `mapstructure:"field" yaml:"field"`
	Metric     Metric `mapstructure:"metric" yaml:"metric"`
	Top        int    `mapstructure:"top" yaml:"top,omitempty"`
	OtherLabel string `mapstructure:"other_label" yaml:"other_label,omitempty"`
}

// DrillSpec describes a primary breakdown and the secondary breakdowns
// computed inside each of its groups.
type DrillSpec struct {
	Primary     Dimension
	Secondaries []Dimension
	// Order lists primary keys in presentation order before truncation.
	Order []string
	// DrillOther also computes secondaries for the Other bucket, over the
	// union of the bucketed groups.
	DrillOther bool
}

// CrossGroup is one primary entry with its secondary breakdowns, in the order
// of DrillSpec.Secondaries.
type CrossGroup struct {
	Entry     Entry           `yaml:"entry"`
	Size      int             `yaml:"size"`
	Secondary []TopNBreakdown `yaml:"secondary"`
}

// CrossBreakdownResult holds the full primary breakdown, its truncated form
// and the drilled groups.
type CrossBreakdownResult struct {
	Full    Breakdown     `yaml:"-"`
	Primary TopNBreakdown `yaml:"primary"`
	Groups  []CrossGroup  `yaml:"groups"`
}

// DrillDown computes the primary breakdown of rs, truncates it, and for each
// retained group computes every secondary breakdown over that group's rows
// only. Secondary percentages use the group's own total as denominator. A
// group whose secondary universe is empty gets an empty secondary breakdown.
func DrillDown(rs *records.RecordSet, spec DrillSpec) (CrossBreakdownResult, error) {
	fields := []string{spec.Primary.Field}
	for _, d := range spec.Secondaries {
		fields = append(fields, d.Field, d.Metric.Field)
	}
	if err := rs.Require(fields...); err != nil {
		return CrossBreakdownResult{}, err
	}

	full, err := By(rs, spec.Primary.Field, spec.Primary.Metric)
	if err != nil {
		return CrossBreakdownResult{}, err
	}
	if len(spec.Order) > 0 {
		full = full.InOrder(spec.Order)
	}
	primary := TopN(full, spec.Primary.Top, spec.Primary.OtherLabel)

	parts := rs.Partition(spec.Primary.Field)
	result := CrossBreakdownResult{Full: full, Primary: primary}
	for _, e := range primary.Entries {
		var subset *records.RecordSet
		switch {
		case !e.Other:
			subset = parts[e.Key]
		case spec.DrillOther:
			subset = otherSubset(rs, spec.Primary.Field, full.Entries[len(primary.Entries)-1:])
		}

		group := CrossGroup{Entry: e}
		if subset != nil {
			group.Size = subset.Size()
		}
		for _, d := range spec.Secondaries {
			sec, err := secondary(subset, d)
			if err != nil {
				return CrossBreakdownResult{}, err
			}
			group.Secondary = append(group.Secondary, sec)
		}
		result.Groups = append(result.Groups, group)
	}
	return result, nil
}

func otherSubset(rs *records.RecordSet, field string, bucketed []Entry) *records.RecordSet {
	keys := make([]string, len(bucketed))
	for i, e := range bucketed {
		keys[i] = e.Key
	}
	return rs.Where(field, keys...)
}

func secondary(subset *records.RecordSet, d Dimension) (TopNBreakdown, error) {
	empty := TopNBreakdown{Breakdown: Breakdown{Field: d.Field, Metric: d.Metric}, Limit: d.Top}
	if subset == nil || subset.Size() == 0 {
		return empty, nil
	}
	b, err := By(subset, d.Field, d.Metric)
	if errors.Is(err, ErrDivisionByZero) {
		return empty, nil
	}
	if err != nil {
		return TopNBreakdown{}, err
	}
	return TopN(b, d.Top, d.OtherLabel), nil
}
