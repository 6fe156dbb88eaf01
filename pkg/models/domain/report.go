package domain

// ChartKind selects how a chart is drawn.
type ChartKind string

const (
	ChartPie ChartKind = "pie"
	ChartBar ChartKind = "bar"
)

// ChartSpec is a renderer-independent chart description. Labels and Values are
// parallel and non-empty.
type ChartSpec struct {
	Kind        ChartKind `yaml:"kind"`
	Title       string    `yaml:"title"`
	LegendTitle string    `yaml:"legend_title,omitempty"`
	Labels      []string  `yaml:"labels"`
	Values      []float64 `yaml:"values"`
}

// ReportSection is one heading of the document with its paragraphs and an
// optional chart.
type ReportSection struct {
	ID         string     `yaml:"id"`
	Heading    string     `yaml:"heading,omitempty"`
	Level      int        `yaml:"level"`
	Paragraphs []string   `yaml:"paragraphs,omitempty"`
	Chart      *ChartSpec `yaml:"chart,omitempty"`
}

// Omission records a planned section that is missing from the document.
type Omission struct {
	Index  int    `yaml:"index"`
	ID     string `yaml:"id"`
	Reason string `yaml:"reason"`
}

// Document is the ordered output of a report build.
type Document struct {
	Title    string          `yaml:"title"`
	Subtitle string          `yaml:"subtitle,omitempty"`
	Sections []ReportSection `yaml:"sections"`
	Omitted  []Omission      `yaml:"omitted,omitempty"`
}

// Complete reports whether every planned section made it into the document.
func (d *Document) Complete() bool {
	return len(d.Omitted) == 0
}

// Charts returns the sections that carry a chart, in document order.
func (d *Document) Charts() []ReportSection {
	var out []ReportSection
	for _, s := range d.Sections {
		if s.Chart != nil {
			out = append(out, s)
		}
	}
	return out
}
