package report

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/de-tools/case-atlas/pkg/models/domain"
	"github.com/de-tools/case-atlas/pkg/records"
	"github.com/de-tools/case-atlas/pkg/services/aggregate"
	"github.com/de-tools/case-atlas/pkg/services/chart"
)

var fixtureHeader = []string{"method", "loss", "gender", "age", "identity", "district", "station", "unit", "channel: app", "channel: call"}

var fixtureRows = [][]string{
	{"A", "100", "F", "17", "student", "North", "S1", "Alpha University", "x", ""},
	{"A", "200", "M", "25", "clerk", "North", "S1", "", "", "y"},
	{"B", "300", "F", "30", "student", "South", "S2", "Beta College", "x", "y"},
	{"C", "400", "M", "40", "", "South", "S3", "", "", ""},
	{"A", "0", "F", "60", "farmer", "North", "S2", "", "x", ""},
	{"B", "500", "M", "20", "student", "East", "S1", "Gamma School", "", "y"},
	{"C", "100", "F", "50", "clerk", "North", "S1", "", "", ""},
	{"D", "400", "M", "", "student", "West", "S3", "Alpha University", "x", ""},
}

func fixture(t *testing.T) *records.RecordSet {
	t.Helper()
	rs, err := records.Load(fixtureHeader, fixtureRows, records.Schema{}.Categorical("method").Numeric("loss", "age"))
	require.NoError(t, err)
	return rs
}

func fixturePlan() Plan {
	return Plan{
		Title:    "Case report",
		Subtitle: "(test period)",
		Sections: []SectionPlan{
			{ID: "overview", Kind: KindHeading, Heading: "1. Overview"},
			{
				ID:         "totals",
				Kind:       KindSummary,
				Sums:       []string{"loss"},
				Paragraphs: []string{`Cases {{.Scope}}, loss {{amount (.Sum "loss") 1000}} thousand.`},
			},
			{
				ID:         "methods",
				Kind:       KindBreakdown,
				Field:      "method",
				Top:        2,
				OtherLabel: "Other",
				Paragraphs: []string{"{{range .Top.Entries}}{{.Key}} {{num .Value}} cases, {{pct .Percent}}%;\n{{end}}"},
				Chart:      &ChartPlan{Options: chart.Options{Kind: domain.ChartPie, Title: "Methods", LegendTitle: "Method"}},
			},
			{
				ID:         "losses",
				Kind:       KindBreakdown,
				Field:      "method",
				Metric:     aggregate.SumOf("loss"),
				Paragraphs: []string{"{{range .Top.Entries}}{{.Key}} {{amount .Value 1000}}k {{pct .Percent}}%\n{{end}}"},
			},
			{
				ID:         "districts",
				Kind:       KindDrillDown,
				Field:      "district",
				Defaults:   map[string]string{"identity": "other"},
				Secondaries: []aggregate.Dimension{
					{Field: "method", Metric: aggregate.CountOf(), Top: 2},
					{Field: "identity", Metric: aggregate.CountOf(), Top: 1},
				},
				Paragraphs: []string{`{{range .Groups}}{{.Entry.Key}} {{.Entry.Count}}: {{shares (index .Secondary 0) "、"}} / {{shares (index .Secondary 1) ","}}
{{end}}`},
				Chart: &ChartPlan{Options: chart.Options{Kind: domain.ChartBar, Title: "Districts"}, Top: 2, OtherLabel: "Rest"},
			},
			{
				ID:    "ages",
				Kind:  KindBreakdown,
				Field: "age band",
				Bands: &Bands{
					Source:     "age",
					Boundaries: []float64{0, 18, 35, 55, 150},
					Labels:     []string{"u18", "19-35", "36-55", "56+"},
				},
				Order:      []string{"u18", "19-35", "36-55", "56+"},
				Paragraphs: []string{"{{range .Breakdown.Entries}}{{.Key}}={{.Count}}({{pct .Percent}}) {{end}}"},
			},
			{
				ID:         "universities",
				Kind:       KindBreakdown,
				Scope:      &Scope{Field: "identity", Values: []string{"student"}},
				Field:      "unit",
				Defaults:   map[string]string{"unit": "unknown"},
				KeyPattern: "University|College",
				Top:        10,
				Paragraphs: []string{`{{.Scope}} students ({{pct .ScopeShare}}%): {{shares .Top ", "}}`},
			},
			{
				ID:         "channels",
				Kind:       KindIndicators,
				Indicators: &Indicators{Prefix: "channel:"},
				Paragraphs: []string{"{{range .Indicators}}via {{.Label}} {{.Count}} ({{pct .Percent}}%)\n{{end}}"},
			},
		},
	}
}

func sectionByID(t *testing.T, doc *domain.Document, id string) domain.ReportSection {
	t.Helper()
	for _, s := range doc.Sections {
		if s.ID == id {
			return s
		}
	}
	t.Fatalf("section %q not found", id)
	return domain.ReportSection{}
}

func TestBuild_ProducesEverySection(t *testing.T) {
	// Given
	builder := NewBuilder(NewDefaultRegistry())

	// When
	doc, err := builder.Build(context.Background(), fixture(t), fixturePlan())

	// Then
	require.NoError(t, err)
	assert.True(t, doc.Complete())
	assert.Equal(t, "Case report", doc.Title)
	assert.Equal(t, "(test period)", doc.Subtitle)
	require.Len(t, doc.Sections, 8)

	overview := sectionByID(t, doc, "overview")
	assert.Equal(t, "1. Overview", overview.Heading)
	assert.Equal(t, 2, overview.Level)
	assert.Empty(t, overview.Paragraphs)

	assert.Equal(t, []string{"Cases 8, loss 2 thousand."}, sectionByID(t, doc, "totals").Paragraphs)

	methods := sectionByID(t, doc, "methods")
	assert.Equal(t, 3, methods.Level)
	assert.Equal(t, []string{"A 3 cases, 37.5%;", "B 2 cases, 25.0%;", "Other 3 cases, 37.5%;"}, methods.Paragraphs)
	require.NotNil(t, methods.Chart)
	assert.Equal(t, domain.ChartSpec{
		Kind:        domain.ChartPie,
		Title:       "Methods",
		LegendTitle: "Method",
		Labels:      []string{"A", "B", "Other"},
		Values:      []float64{3, 2, 3},
	}, *methods.Chart)

	losses := sectionByID(t, doc, "losses")
	assert.Equal(t, []string{"B 0.8k 40.0%", "C 0.5k 25.0%", "D 0.4k 20.0%", "A 0.3k 15.0%"}, losses.Paragraphs)
	assert.Nil(t, losses.Chart)

	districts := sectionByID(t, doc, "districts")
	assert.Equal(t, []string{
		"North 4: A75.0%、C25.0% / clerk50.0%",
		"South 2: B50.0%、C50.0% / student50.0%",
		"East 1: B100.0% / student100.0%",
		"West 1: D100.0% / student100.0%",
	}, districts.Paragraphs)
	require.NotNil(t, districts.Chart)
	assert.Equal(t, []string{"North", "South", "Rest"}, districts.Chart.Labels)
	assert.Equal(t, []float64{4, 2, 2}, districts.Chart.Values)

	assert.Equal(t, []string{"u18=1(14.3) 19-35=3(42.9) 36-55=2(28.6) 56+=1(14.3)"}, sectionByID(t, doc, "ages").Paragraphs)

	assert.Equal(t, []string{"4 students (50.0%): Alpha University50.0%, Beta College25.0%"},
		sectionByID(t, doc, "universities").Paragraphs)

	assert.Equal(t, []string{"via app 4 (50.0%)", "via call 3 (37.5%)"}, sectionByID(t, doc, "channels").Paragraphs)
}

func TestBuild_ResolvesColumnAliases(t *testing.T) {
	plan := Plan{
		Title:   "aliases",
		Columns: map[string]string{"kind": "method"},
		Sections: []SectionPlan{{
			Kind:       KindBreakdown,
			Field:      "Kind",
			Top:        1,
			Paragraphs: []string{"{{range .Top.Entries}}{{.Key}}{{end}}"},
		}},
	}

	doc, err := NewBuilder(nil).Build(context.Background(), fixture(t), plan)

	require.NoError(t, err)
	require.Len(t, doc.Sections, 1)
	assert.Equal(t, "breakdown-1", doc.Sections[0].ID)
	assert.Equal(t, []string{"A"}, doc.Sections[0].Paragraphs)
}

func TestBuild_KeyPatternWithOther_KeepsScopeDenominator(t *testing.T) {
	// Given
	plan := Plan{
		Title: "universities",
		Sections: []SectionPlan{{
			ID:         "universities",
			Kind:       KindBreakdown,
			Scope:      &Scope{Field: "identity", Values: []string{"student"}},
			Field:      "unit",
			KeyPattern: "University|College",
			Top:        1,
			OtherLabel: "Other",
			Paragraphs: []string{"{{range .Top.Entries}}{{.Key}} {{.Count}} {{pct .Percent}}%\n{{end}}"},
			Chart: &ChartPlan{
				Options:    chart.Options{Kind: domain.ChartPie, Title: "Universities", Series: chart.SeriesPercent},
				Top:        1,
				OtherLabel: "Other",
			},
		}},
	}

	// When
	doc, err := NewBuilder(nil).Build(context.Background(), fixture(t), plan)

	// Then
	require.NoError(t, err)
	section := sectionByID(t, doc, "universities")
	assert.Equal(t, []string{"Alpha University 2 50.0%", "Other 1 25.0%"}, section.Paragraphs)
	require.NotNil(t, section.Chart)
	assert.Equal(t, []string{"Alpha University", "Other"}, section.Chart.Labels)
	assert.Equal(t, []float64{50, 25}, section.Chart.Values)
}

func failingPlan() Plan {
	return Plan{
		Title: "partial",
		Sections: []SectionPlan{
			{ID: "first", Kind: KindSummary, Paragraphs: []string{"{{.Total}} cases"}},
			{ID: "region", Kind: KindBreakdown, Field: "region"},
			{ID: "last", Kind: KindBreakdown, Field: "method", Paragraphs: []string{"{{len .Breakdown.Entries}} methods"}},
		},
	}
}

func TestBuild_MissingField_StopsAndKeepsBuiltSections(t *testing.T) {
	// When
	doc, err := NewBuilder(NewDefaultRegistry()).Build(context.Background(), fixture(t), failingPlan())

	// Then
	require.Error(t, err)
	require.NotNil(t, doc)
	assert.True(t, errors.Is(err, records.ErrSchema))

	var sectionErr *SectionError
	require.True(t, errors.As(err, &sectionErr))
	assert.Equal(t, 1, sectionErr.Index)
	assert.Equal(t, "region", sectionErr.ID)
	assert.Equal(t, "region", sectionErr.Field)

	require.Len(t, doc.Sections, 1)
	assert.Equal(t, []string{"8 cases"}, doc.Sections[0].Paragraphs)
	require.Len(t, doc.Omitted, 2)
	assert.Equal(t, "region", doc.Omitted[0].ID)
	assert.Contains(t, doc.Omitted[0].Reason, "region")
	assert.Equal(t, domain.Omission{Index: 2, ID: "last", Reason: `not built: stopped after section "region" failed`}, doc.Omitted[1])
}

func TestBuild_ContinueOnError_SkipsFailedSection(t *testing.T) {
	builder := NewBuilder(NewDefaultRegistry(), WithContinueOnError())

	doc, err := builder.Build(context.Background(), fixture(t), failingPlan())

	assert.ErrorIs(t, err, records.ErrSchema)
	require.Len(t, doc.Sections, 2)
	assert.Equal(t, "first", doc.Sections[0].ID)
	assert.Equal(t, "last", doc.Sections[1].ID)
	assert.Equal(t, []string{"4 methods"}, doc.Sections[1].Paragraphs)
	require.Len(t, doc.Omitted, 1)
	assert.Equal(t, 1, doc.Omitted[0].Index)
}

func TestBuild_ParallelMatchesSequential(t *testing.T) {
	rs := fixture(t)
	ctx := context.Background()

	for name, plan := range map[string]Plan{"complete": fixturePlan(), "failing": failingPlan()} {
		t.Run(name, func(t *testing.T) {
			want, wantErr := NewBuilder(nil).Build(ctx, rs, plan)

			for _, n := range []int{2, 3, 8} {
				got, gotErr := NewBuilder(nil, WithParallelism(n)).Build(ctx, rs, plan)
				assert.Equal(t, want, got, "parallelism %d", n)
				assert.Equal(t, wantErr == nil, gotErr == nil)
			}
		})
	}
}

func TestBuild_ZeroLossTotal_ReturnsDivisionByZero(t *testing.T) {
	rs, err := records.Load([]string{"method", "loss"}, [][]string{{"A", "0"}}, records.Schema{}.Numeric("loss"))
	require.NoError(t, err)
	plan := Plan{Sections: []SectionPlan{{ID: "losses", Kind: KindBreakdown, Field: "method", Metric: aggregate.SumOf("loss")}}}

	doc, err := NewBuilder(nil).Build(context.Background(), rs, plan)

	assert.ErrorIs(t, err, aggregate.ErrDivisionByZero)
	assert.Empty(t, doc.Sections)
	require.Len(t, doc.Omitted, 1)
	assert.Equal(t, "losses", doc.Omitted[0].ID)
}

func TestBuild_UnknownKindAndTemplateErrors(t *testing.T) {
	plan := Plan{Sections: []SectionPlan{
		{ID: "map", Kind: "heatmap"},
		{ID: "broken", Kind: KindSummary, Paragraphs: []string{"{{.Missing"}},
		{ID: "nosum", Kind: KindSummary, Paragraphs: []string{`{{.Sum "loss"}}`}},
	}}

	doc, err := NewBuilder(nil, WithContinueOnError()).Build(context.Background(), fixture(t), plan)

	assert.ErrorIs(t, err, ErrUnknownKind)
	assert.Empty(t, doc.Sections)
	require.Len(t, doc.Omitted, 3)
	assert.Contains(t, doc.Omitted[1].Reason, "failed to parse paragraph template")
	assert.Contains(t, doc.Omitted[2].Reason, "not listed in sums")
}

func TestBuild_InvalidPlan(t *testing.T) {
	rs := fixture(t)

	_, err := NewBuilder(nil).Build(context.Background(), rs, Plan{Title: "empty"})
	assert.EqualError(t, err, `invalid plan: plan "empty" has no sections`)

	_, err = NewBuilder(nil).Build(context.Background(), rs, Plan{Sections: []SectionPlan{
		{ID: "a", Kind: KindSummary}, {ID: "a", Kind: KindSummary},
	}})
	assert.EqualError(t, err, `invalid plan: sections 1 and 2 share id "a"`)

	_, err = NewBuilder(nil).Build(context.Background(), rs, Plan{Sections: []SectionPlan{
		{Kind: KindBreakdown, Field: "method", KeyPattern: "("},
	}})
	assert.ErrorContains(t, err, "invalid key pattern")

	_, err = NewBuilder(nil).Build(context.Background(), nil, fixturePlan())
	assert.Error(t, err)
}

func TestBuild_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	doc, err := NewBuilder(nil).Build(ctx, fixture(t), fixturePlan())

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, doc.Sections)
	assert.Len(t, doc.Omitted, len(fixturePlan().Sections))
}

func TestBuild_LogsThroughContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	ctx := logger.WithContext(context.Background())

	_, err := NewBuilder(nil, WithContinueOnError()).Build(ctx, fixture(t), failingPlan())

	require.Error(t, err)
	assert.Contains(t, buf.String(), `"section":"first"`)
	assert.Contains(t, buf.String(), `"message":"section omitted"`)
	assert.Contains(t, buf.String(), `"message":"report built"`)
}
