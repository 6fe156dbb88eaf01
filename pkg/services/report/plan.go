package report

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/de-tools/case-atlas/pkg/records"
	"github.com/de-tools/case-atlas/pkg/services/aggregate"
	"github.com/de-tools/case-atlas/pkg/services/chart"
)

// Plan is the ordered list of sections making up a report.
type Plan struct {
	Title    string            `mapstructure:"title" yaml:"title"`
	Subtitle string            `mapstructure:"subtitle" yaml:"subtitle,omitempty"`
	Columns  map[string]string `mapstructure:"columns" yaml:"columns,omitempty"`
	Sections []SectionPlan     `mapstructure:"sections" yaml:"sections"`
}

// SectionPlan configures one section. Which fields are used depends on Kind.
type SectionPlan struct {
	ID      string `mapstructure:"id" yaml:"id,omitempty"`
	Kind    string `mapstructure:"kind" yaml:"kind"`
	Heading string `mapstructure:"heading" yaml:"heading,omitempty"`
	Level   int    `mapstructure:"level" yaml:"level,omitempty"`

	Scope    *Scope            `mapstructure:"scope" yaml:"scope,omitempty"`
	Defaults map[string]string `mapstructure:"defaults" yaml:"defaults,omitempty"`
	Bands    *Bands            `mapstructure:"bands" yaml:"bands,omitempty"`
	Sums     []string          `mapstructure:"sums" yaml:"sums,omitempty"`

	Field      string           `mapstructure:"field" yaml:"field,omitempty"`
	Metric     aggregate.Metric `mapstructure:"metric" yaml:"metric,omitempty"`
	Top        int              `mapstructure:"top" yaml:"top,omitempty"`
	OtherLabel string           `mapstructure:"other_label" yaml:"other_label,omitempty"`
	KeyPattern string           `mapstructure:"key_pattern" yaml:"key_pattern,omitempty"`
	Order      []string         `mapstructure:"order" yaml:"order,omitempty"`

	Secondaries []aggregate.Dimension `mapstructure:"secondaries" yaml:"secondaries,omitempty"`
	DrillOther  bool                  `mapstructure:"drill_other" yaml:"drill_other,omitempty"`

	Indicators *Indicators `mapstructure:"indicators" yaml:"indicators,omitempty"`

	Paragraphs []string   `mapstructure:"paragraphs" yaml:"paragraphs,omitempty"`
	Chart      *ChartPlan `mapstructure:"chart" yaml:"chart,omitempty"`
}

// Scope restricts a section to rows whose field is one of Values or matches
// Pattern.
type Scope struct {
	Field   string   `mapstructure:"field" yaml:"field"`
	Values  []string `mapstructure:"values" yaml:"values,omitempty"`
	Pattern string   `mapstructure:"pattern" yaml:"pattern,omitempty"`
}

// Bands derives a categorical field from a numeric Source field.
type Bands struct {
	Source     string             `mapstructure:"source" yaml:"source"`
	Boundaries []float64          `mapstructure:"boundaries" yaml:"boundaries"`
	Labels     []string           `mapstructure:"labels" yaml:"labels"`
	Policy     records.BandPolicy `mapstructure:"policy" yaml:"policy,omitempty"`
}

// Indicators selects flag columns counted by an indicators section. Columns
// wins over Prefix; Strip is removed from column names to form labels and
// defaults to Prefix.
type Indicators struct {
	Prefix  string   `mapstructure:"prefix" yaml:"prefix,omitempty"`
	Columns []string `mapstructure:"columns" yaml:"columns,omitempty"`
	Strip   string   `mapstructure:"strip" yaml:"strip,omitempty"`
}

// ChartPlan attaches a chart to a section. A positive Top charts a separately
// truncated breakdown instead of the one used by the paragraphs.
type ChartPlan struct {
	chart.Options `mapstructure:",squash" yaml:",inline"`
	Top           int    `mapstructure:"top" yaml:"top,omitempty"`
	OtherLabel    string `mapstructure:"other_label" yaml:"other_label,omitempty"`
}

// Key returns the section ID, or a positional one when none is set.
func (s SectionPlan) Key(index int) string {
	if s.ID != "" {
		return s.ID
	}
	return fmt.Sprintf("%s-%d", s.Kind, index+1)
}

// Columns maps logical field names used in a plan to input column names.
// Names without a mapping are used as-is.
type Columns map[string]string

// Resolve returns the column name for a logical field name.
func (c Columns) Resolve(name string) string {
	if col, ok := c[strings.ToLower(name)]; ok && col != "" {
		return col
	}
	return name
}

// Merge returns a copy of c overlaid with other.
func (c Columns) Merge(other map[string]string) Columns {
	out := make(Columns, len(c)+len(other))
	for k, v := range c {
		out[strings.ToLower(k)] = v
	}
	for k, v := range other {
		out[strings.ToLower(k)] = v
	}
	return out
}

func (c Columns) metric(m aggregate.Metric) aggregate.Metric {
	if m.Kind == "" {
		m.Kind = aggregate.Count
	}
	if m.Field != "" {
		m.Field = c.Resolve(m.Field)
	}
	return m
}

func (c Columns) dimension(d aggregate.Dimension) aggregate.Dimension {
	d.Field = c.Resolve(d.Field)
	d.Metric = c.metric(d.Metric)
	return d
}

// Validate checks the plan for problems that do not depend on the data.
func (p Plan) Validate() error {
	if len(p.Sections) == 0 {
		return fmt.Errorf("plan %q has no sections", p.Title)
	}
	seen := make(map[string]int, len(p.Sections))
	for i, s := range p.Sections {
		if s.Kind == "" {
			return fmt.Errorf("section %d has no kind", i+1)
		}
		key := s.Key(i)
		if prev, dup := seen[key]; dup {
			return fmt.Errorf("sections %d and %d share id %q", prev+1, i+1, key)
		}
		seen[key] = i
		if s.Scope != nil && s.Scope.Pattern != "" {
			if _, err := regexp.Compile(s.Scope.Pattern); err != nil {
				return fmt.Errorf("section %q: invalid scope pattern: %w", key, err)
			}
		}
		if s.KeyPattern != "" {
			if _, err := regexp.Compile(s.KeyPattern); err != nil {
				return fmt.Errorf("section %q: invalid key pattern: %w", key, err)
			}
		}
	}
	return nil
}
