package export

import (
	"fmt"
	"io"
	"os"

	"github.com/golang/freetype/truetype"
	"github.com/wcharczuk/go-chart/v2"

	"github.com/de-tools/case-atlas/pkg/models/domain"
)

// ChartRenderer draws chart specs as PNG images.
type ChartRenderer struct {
	font   *truetype.Font
	width  int
	height int
}

// NewChartRenderer creates a renderer. fontPath optionally names a TrueType
// font; labels in scripts the built-in font lacks need one.
func NewChartRenderer(fontPath string) (*ChartRenderer, error) {
	r := &ChartRenderer{width: 800, height: 600}
	if fontPath == "" {
		return r, nil
	}
	data, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read font: %w", err)
	}
	if r.font, err = truetype.Parse(data); err != nil {
		return nil, fmt.Errorf("failed to parse font %s: %w", fontPath, err)
	}
	return r, nil
}

// Render writes spec to w as PNG.
func (r *ChartRenderer) Render(w io.Writer, spec domain.ChartSpec) error {
	if len(spec.Labels) == 0 || len(spec.Labels) != len(spec.Values) {
		return fmt.Errorf("chart %q has %d labels and %d values", spec.Title, len(spec.Labels), len(spec.Values))
	}

	values := make([]chart.Value, len(spec.Values))
	for i, v := range spec.Values {
		values[i] = chart.Value{Value: v, Label: spec.Labels[i]}
	}

	switch spec.Kind {
	case domain.ChartPie:
		pie := chart.PieChart{
			Title:  spec.Title,
			Width:  r.width,
			Height: r.height,
			Font:   r.font,
			Values: values,
		}
		if err := pie.Render(chart.PNG, w); err != nil {
			return fmt.Errorf("failed to render pie chart %q: %w", spec.Title, err)
		}
	case domain.ChartBar, "":
		barWidth := 40
		width := r.width
		if need := len(values)*(barWidth+20) + 120; need > width {
			width = need
		}
		// The axis starts at zero so equal bars still span a non-empty range.
		top := 1.0
		for _, v := range spec.Values {
			if v > top {
				top = v
			}
		}
		bar := chart.BarChart{
			Title:    spec.Title,
			Width:    width,
			Height:   r.height,
			BarWidth: barWidth,
			Font:     r.font,
			YAxis:    chart.YAxis{Range: &chart.ContinuousRange{Min: 0, Max: top}},
			Bars:     values,
		}
		if err := bar.Render(chart.PNG, w); err != nil {
			return fmt.Errorf("failed to render bar chart %q: %w", spec.Title, err)
		}
	default:
		return fmt.Errorf("unsupported chart kind %q", spec.Kind)
	}
	return nil
}
