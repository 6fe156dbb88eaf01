package chart

import (
	"errors"
	"fmt"

	"github.com/de-tools/case-atlas/pkg/models/domain"
	"github.com/de-tools/case-atlas/pkg/services/aggregate"
)

// ErrEmptyChart is returned for a breakdown without entries.
var ErrEmptyChart = errors.New("chart has no entries")

// Series selects which entry number becomes the chart value.
type Series string

const (
	SeriesValue   Series = "value"
	SeriesPercent Series = "percent"
)

// Options controls how a breakdown is turned into a chart.
type Options struct {
	Kind        domain.ChartKind `mapstructure:"kind" yaml:"kind"`
	Title       string           `mapstructure:"title" yaml:"title"`
	LegendTitle string           `mapstructure:"legend_title" yaml:"legend_title,omitempty"`
	Series      Series           `mapstructure:"series" yaml:"series,omitempty"`
	// Scale divides every value, e.g. 1e4 for amounts shown in ten-thousands.
	Scale float64 `mapstructure:"scale" yaml:"scale,omitempty"`
}

// FromBreakdown maps entries of b to chart labels and values, keeping the
// breakdown's order.
func FromBreakdown(b aggregate.Breakdown, opts Options) (domain.ChartSpec, error) {
	if b.Empty() {
		return domain.ChartSpec{}, fmt.Errorf("%w: %s", ErrEmptyChart, b.Field)
	}

	kind := opts.Kind
	switch kind {
	case "":
		kind = domain.ChartBar
	case domain.ChartPie, domain.ChartBar:
	default:
		return domain.ChartSpec{}, fmt.Errorf("unsupported chart kind %q", kind)
	}

	spec := domain.ChartSpec{
		Kind:        kind,
		Title:       opts.Title,
		LegendTitle: opts.LegendTitle,
		Labels:      make([]string, 0, b.Len()),
		Values:      make([]float64, 0, b.Len()),
	}
	for _, e := range b.Entries {
		v := e.Value
		if opts.Series == SeriesPercent {
			v = e.Percent
		}
		if opts.Scale > 0 {
			v /= opts.Scale
		}
		spec.Labels = append(spec.Labels, e.Key)
		spec.Values = append(spec.Values, v)
	}
	return spec, nil
}

// FromTopN charts a truncated breakdown, including its Other entry.
func FromTopN(t aggregate.TopNBreakdown, opts Options) (domain.ChartSpec, error) {
	return FromBreakdown(t.Breakdown, opts)
}
