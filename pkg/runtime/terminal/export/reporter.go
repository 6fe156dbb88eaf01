package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/rs/zerolog"

	"github.com/de-tools/case-atlas/pkg/models/domain"
)

// Layout names the files a Reporter writes.
type Layout struct {
	Document string
	Charts   string // format with section index and ID
}

func DefaultLayout() Layout {
	return Layout{
		Document: "report.md",
		Charts:   "chart-%02d-%s.png",
	}
}

// Reporter writes a document as Markdown with one PNG per chart.
type Reporter struct {
	dir    string
	layout Layout
	charts *ChartRenderer
}

func NewReporter(dir string, charts *ChartRenderer) *Reporter {
	if dir == "" {
		dir = "."
	}
	if charts == nil {
		charts, _ = NewChartRenderer("")
	}
	return &Reporter{dir: dir, layout: DefaultLayout(), charts: charts}
}

type markdownSection struct {
	domain.ReportSection
	Image string
}

const markdownTemplate = `# {{.Title}}
{{if .Subtitle}}
{{.Subtitle}}
{{end}}{{range .Sections}}{{if .Heading}}
{{heading .Level}} {{.Heading}}
{{end}}{{range .Paragraphs}}
{{.}}
{{end}}{{if .Image}}
![{{.Chart.Title}}]({{.Image}})
{{end}}{{end}}{{range .Omitted}}
<!-- omitted {{.ID}}: {{oneLine .Reason}} -->
{{end}}`

// Handle renders the charts and the Markdown document into the output
// directory and returns the document path.
func (c *Reporter) Handle(ctx context.Context, doc *domain.Document) (string, error) {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	sections := make([]markdownSection, len(doc.Sections))
	for i, s := range doc.Sections {
		sections[i] = markdownSection{ReportSection: s}
		if s.Chart == nil {
			continue
		}
		name := fmt.Sprintf(c.layout.Charts, i+1, s.ID)
		if err := c.writeChart(filepath.Join(c.dir, name), *s.Chart); err != nil {
			return "", err
		}
		sections[i].Image = name
		zerolog.Ctx(ctx).Debug().Str("section", s.ID).Str("file", name).Msg("chart written")
	}

	funcMap := template.FuncMap{
		"heading": func(level int) string {
			if level < 1 {
				level = 1
			}
			return strings.Repeat("#", level)
		},
		"oneLine": func(s string) string {
			return strings.ReplaceAll(s, "\n", " ")
		},
	}
	t, err := template.New("markdown").Funcs(funcMap).Parse(markdownTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	path := filepath.Join(c.dir, c.layout.Document)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create document: %w", err)
	}
	defer f.Close()

	data := struct {
		*domain.Document
		Sections []markdownSection
	}{Document: doc, Sections: sections}
	if err := t.Execute(f, data); err != nil {
		return "", fmt.Errorf("failed to write document: %w", err)
	}
	return path, f.Close()
}

func (c *Reporter) writeChart(path string, spec domain.ChartSpec) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	defer f.Close()
	if err := c.charts.Render(f, spec); err != nil {
		return err
	}
	return f.Close()
}
