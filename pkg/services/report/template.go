package report

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"text/template"

	"github.com/de-tools/case-atlas/pkg/services/aggregate"
)

// View is the data a section's paragraph templates are executed against.
type View struct {
	ID         string
	Heading    string
	Total      int     // rows in the record set
	Scope      int     // rows in the section scope
	ScopeShare float64 // Scope as a percentage of Total
	Breakdown  aggregate.Breakdown
	Top        aggregate.TopNBreakdown
	Groups     []aggregate.CrossGroup
	Indicators []Indicator

	sums    map[string]float64
	columns Columns
}

// Sum returns the scoped total of a field listed in the section's sums.
func (v View) Sum(field string) (float64, error) {
	total, ok := v.sums[v.columns.Resolve(field)]
	if !ok {
		return 0, fmt.Errorf("field %q is not listed in sums", field)
	}
	return total, nil
}

// Indicator is the number of scoped rows with a non-blank flag column.
type Indicator struct {
	Column  string
	Label   string
	Count   int
	Percent float64
}

var templateFuncs = template.FuncMap{
	"pct":    formatPercent,
	"num":    formatNumber,
	"amount": formatAmount,
	"inc":    func(i int) int { return i + 1 },
	"join":   func(sep string, items []string) string { return strings.Join(items, sep) },
	"keys":   func(b aggregate.TopNBreakdown) []string { return b.Keys() },
	"shares": formatShares,
}

func formatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', 1, 64)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatAmount scales v by unit and rounds to two decimals, dropping trailing
// zeros.
func formatAmount(v, unit float64) string {
	if unit == 0 {
		unit = 1
	}
	return strconv.FormatFloat(math.Round(v/unit*100)/100, 'f', -1, 64)
}

// formatShares lists entries as key followed by percent, e.g. "A50.0%、B25.0%".
func formatShares(b aggregate.TopNBreakdown, sep string) string {
	parts := make([]string, len(b.Entries))
	for i, e := range b.Entries {
		parts[i] = e.Key + formatPercent(e.Percent) + "%"
	}
	return strings.Join(parts, sep)
}

type paragraphs []*template.Template

func parseParagraphs(id string, texts []string) (paragraphs, error) {
	out := make(paragraphs, 0, len(texts))
	for i, text := range texts {
		t, err := template.New(fmt.Sprintf("%s/%d", id, i+1)).
			Funcs(templateFuncs).
			Option("missingkey=error").
			Parse(text)
		if err != nil {
			return nil, fmt.Errorf("failed to parse paragraph template: %w", err)
		}
		out = append(out, t)
	}
	return out, nil
}

// render executes every template. Each non-blank output line becomes one
// paragraph.
func (p paragraphs) render(view View) ([]string, error) {
	var out []string
	var buf bytes.Buffer
	for _, t := range p {
		buf.Reset()
		if err := t.Execute(&buf, view); err != nil {
			return nil, fmt.Errorf("failed to render paragraph: %w", err)
		}
		for _, line := range strings.Split(buf.String(), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				out = append(out, line)
			}
		}
	}
	return out, nil
}
