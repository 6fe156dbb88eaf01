package report

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/de-tools/case-atlas/pkg/models/domain"
	"github.com/de-tools/case-atlas/pkg/records"
	"github.com/de-tools/case-atlas/pkg/services/aggregate"
	"github.com/de-tools/case-atlas/pkg/services/chart"
)

// Built-in section kinds.
const (
	KindHeading    = "heading"
	KindSummary    = "summary"
	KindBreakdown  = "breakdown"
	KindDrillDown  = "drilldown"
	KindIndicators = "indicators"
)

// base holds what every built-in kind shares: the parsed templates, the
// resolved scope and the row preparation steps.
type base struct {
	spec       SectionPlan
	columns    Columns
	text       paragraphs
	scope      *regexp.Regexp
	keyPattern *regexp.Regexp
}

func newBase(spec SectionPlan, columns Columns) (base, error) {
	b := base{spec: spec, columns: columns}
	var err error
	if b.text, err = parseParagraphs(spec.ID, spec.Paragraphs); err != nil {
		return base{}, err
	}
	if spec.Scope != nil && spec.Scope.Pattern != "" {
		if b.scope, err = regexp.Compile(spec.Scope.Pattern); err != nil {
			return base{}, fmt.Errorf("invalid scope pattern: %w", err)
		}
	}
	if spec.KeyPattern != "" {
		if b.keyPattern, err = regexp.Compile(spec.KeyPattern); err != nil {
			return base{}, fmt.Errorf("invalid key pattern: %w", err)
		}
	}
	return b, nil
}

func (b base) field() string {
	return b.columns.Resolve(b.spec.Field)
}

// prepare narrows rs to the section scope, then derives bands and applies
// default labels.
func (b base) prepare(rs *records.RecordSet) (*records.RecordSet, error) {
	view := rs
	if s := b.spec.Scope; s != nil {
		field := b.columns.Resolve(s.Field)
		if err := view.Require(field); err != nil {
			return nil, err
		}
		if len(s.Values) > 0 {
			view = view.Where(field, s.Values...)
		}
		if b.scope != nil {
			view = view.Matching(field, b.scope)
		}
	}

	if bands := b.spec.Bands; bands != nil {
		var err error
		view, err = view.DeriveBand(b.columns.Resolve(bands.Source), b.field(), bands.Boundaries, bands.Labels, bands.Policy)
		if err != nil {
			return nil, fmt.Errorf("failed to derive bands: %w", err)
		}
	}

	fields := make([]string, 0, len(b.spec.Defaults))
	for f := range b.spec.Defaults {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		var err error
		if view, err = view.WithDefault(b.columns.Resolve(f), b.spec.Defaults[f]); err != nil {
			return nil, err
		}
	}
	return view, nil
}

func (b base) view(rs, scoped *records.RecordSet) (View, error) {
	v := View{
		ID:      b.spec.ID,
		Heading: b.spec.Heading,
		Total:   rs.Size(),
		Scope:   scoped.Size(),
		columns: b.columns,
		sums:    make(map[string]float64, len(b.spec.Sums)),
	}
	if v.Total > 0 {
		v.ScopeShare, _ = aggregate.Percent(float64(v.Scope), float64(v.Total))
	}
	for _, f := range b.spec.Sums {
		col := b.columns.Resolve(f)
		if err := scoped.Require(col); err != nil {
			return View{}, err
		}
		v.sums[col] = scoped.Sum(col)
	}
	return v, nil
}

// section assembles the output from rendered paragraphs and an optional chart
// source. An empty chart source drops the chart, not the section.
func (b base) section(ctx context.Context, v View, chartSource *aggregate.Breakdown) (domain.ReportSection, error) {
	text, err := b.text.render(v)
	if err != nil {
		return domain.ReportSection{}, err
	}
	out := domain.ReportSection{
		ID:         b.spec.ID,
		Heading:    b.spec.Heading,
		Level:      b.spec.Level,
		Paragraphs: text,
	}
	if out.Level == 0 {
		out.Level = 3
	}

	if b.spec.Chart == nil || chartSource == nil {
		return out, nil
	}
	src := *chartSource
	if b.spec.Chart.Top > 0 {
		src = aggregate.TopN(src, b.spec.Chart.Top, b.spec.Chart.OtherLabel).Breakdown
	}
	spec, err := chart.FromBreakdown(src, b.spec.Chart.Options)
	if errors.Is(err, chart.ErrEmptyChart) {
		zerolog.Ctx(ctx).Debug().Str("section", b.spec.ID).Msg("chart skipped: no entries")
		return out, nil
	}
	if err != nil {
		return domain.ReportSection{}, err
	}
	out.Chart = &spec
	return out, nil
}

type headingSection struct{ base }

func newHeadingSection(spec SectionPlan, columns Columns) (Section, error) {
	b, err := newBase(spec, columns)
	if err != nil {
		return nil, err
	}
	if b.spec.Level == 0 {
		b.spec.Level = 2
	}
	return &headingSection{b}, nil
}

func (s *headingSection) Build(ctx context.Context, rs *records.RecordSet) (domain.ReportSection, error) {
	v, err := s.view(rs, rs)
	if err != nil {
		return domain.ReportSection{}, err
	}
	return s.section(ctx, v, nil)
}

// summarySection reports the size of its scope and the totals of its sums.
type summarySection struct{ base }

func newSummarySection(spec SectionPlan, columns Columns) (Section, error) {
	b, err := newBase(spec, columns)
	if err != nil {
		return nil, err
	}
	return &summarySection{b}, nil
}

func (s *summarySection) Build(ctx context.Context, rs *records.RecordSet) (domain.ReportSection, error) {
	scoped, err := s.prepare(rs)
	if err != nil {
		return domain.ReportSection{}, err
	}
	v, err := s.view(rs, scoped)
	if err != nil {
		return domain.ReportSection{}, err
	}
	return s.section(ctx, v, nil)
}

// breakdownSection ranks one field of its scope.
type breakdownSection struct{ base }

func newBreakdownSection(spec SectionPlan, columns Columns) (Section, error) {
	if spec.Field == "" {
		return nil, fmt.Errorf("breakdown section needs a field")
	}
	b, err := newBase(spec, columns)
	if err != nil {
		return nil, err
	}
	return &breakdownSection{b}, nil
}

func (s *breakdownSection) Build(ctx context.Context, rs *records.RecordSet) (domain.ReportSection, error) {
	scoped, err := s.prepare(rs)
	if err != nil {
		return domain.ReportSection{}, err
	}
	v, err := s.view(rs, scoped)
	if err != nil {
		return domain.ReportSection{}, err
	}

	b, err := aggregate.By(scoped, s.field(), s.columns.metric(s.spec.Metric))
	if err != nil {
		return domain.ReportSection{}, err
	}
	if s.keyPattern != nil {
		b = b.Keep(func(e aggregate.Entry) bool { return s.keyPattern.MatchString(e.Key) })
	}
	if len(s.spec.Order) > 0 {
		b = b.InOrder(s.spec.Order)
	}
	v.Breakdown = b
	v.Top = aggregate.TopN(b, s.spec.Top, s.spec.OtherLabel)

	src := v.Top.Breakdown
	if s.spec.Chart != nil && s.spec.Chart.Top > 0 {
		src = b
	}
	return s.section(ctx, v, &src)
}

// drillDownSection ranks one field and breaks each retained group down by
// its secondaries.
type drillDownSection struct{ base }

func newDrillDownSection(spec SectionPlan, columns Columns) (Section, error) {
	if spec.Field == "" {
		return nil, fmt.Errorf("drilldown section needs a field")
	}
	if len(spec.Secondaries) == 0 {
		return nil, fmt.Errorf("drilldown section needs at least one secondary")
	}
	b, err := newBase(spec, columns)
	if err != nil {
		return nil, err
	}
	return &drillDownSection{b}, nil
}

func (s *drillDownSection) Build(ctx context.Context, rs *records.RecordSet) (domain.ReportSection, error) {
	scoped, err := s.prepare(rs)
	if err != nil {
		return domain.ReportSection{}, err
	}
	v, err := s.view(rs, scoped)
	if err != nil {
		return domain.ReportSection{}, err
	}

	spec := aggregate.DrillSpec{
		Primary: aggregate.Dimension{
			Field:      s.field(),
			Metric:     s.columns.metric(s.spec.Metric),
			Top:        s.spec.Top,
			OtherLabel: s.spec.OtherLabel,
		},
		Order:      s.spec.Order,
		DrillOther: s.spec.DrillOther,
	}
	for _, d := range s.spec.Secondaries {
		spec.Secondaries = append(spec.Secondaries, s.columns.dimension(d))
	}
	result, err := aggregate.DrillDown(scoped, spec)
	if err != nil {
		return domain.ReportSection{}, err
	}
	v.Breakdown = result.Full
	v.Top = result.Primary
	v.Groups = result.Groups

	src := v.Top.Breakdown
	if s.spec.Chart != nil && s.spec.Chart.Top > 0 {
		src = result.Full
	}
	return s.section(ctx, v, &src)
}

// indicatorsSection counts the rows flagged in each indicator column.
// Percentages use the scope size as denominator, so they need not add up
// to 100.
type indicatorsSection struct{ base }

func newIndicatorsSection(spec SectionPlan, columns Columns) (Section, error) {
	if spec.Indicators == nil || (spec.Indicators.Prefix == "" && len(spec.Indicators.Columns) == 0) {
		return nil, fmt.Errorf("indicators section needs a prefix or columns")
	}
	b, err := newBase(spec, columns)
	if err != nil {
		return nil, err
	}
	return &indicatorsSection{b}, nil
}

func (s *indicatorsSection) Build(ctx context.Context, rs *records.RecordSet) (domain.ReportSection, error) {
	scoped, err := s.prepare(rs)
	if err != nil {
		return domain.ReportSection{}, err
	}
	v, err := s.view(rs, scoped)
	if err != nil {
		return domain.ReportSection{}, err
	}

	spec := s.spec.Indicators
	explicit := make([]string, len(spec.Columns))
	for i, c := range spec.Columns {
		explicit[i] = s.columns.Resolve(c)
	}
	cols, err := scoped.ResolveIndicators(spec.Prefix, explicit)
	if err != nil {
		return domain.ReportSection{}, err
	}
	strip := spec.Strip
	if strip == "" {
		strip = spec.Prefix
	}

	chartData := aggregate.Breakdown{Field: strings.TrimSpace(strip), Metric: aggregate.CountOf(), Total: float64(scoped.Size())}
	for _, col := range cols {
		ind := Indicator{Column: col, Label: strings.TrimSpace(strings.TrimPrefix(col, strip))}
		for i := 0; i < scoped.Size(); i++ {
			if scoped.At(i).Value(col) != "" {
				ind.Count++
			}
		}
		if ind.Percent, err = aggregate.Percent(float64(ind.Count), float64(scoped.Size())); err != nil {
			return domain.ReportSection{}, err
		}
		v.Indicators = append(v.Indicators, ind)
		chartData.Entries = append(chartData.Entries, aggregate.Entry{
			Key:     ind.Label,
			Value:   float64(ind.Count),
			Count:   ind.Count,
			Percent: ind.Percent,
		})
		chartData.Rows += ind.Count
	}
	return s.section(ctx, v, &chartData)
}
