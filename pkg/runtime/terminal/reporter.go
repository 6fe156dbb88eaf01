package terminal

import (
	"fmt"
	"io"
	"os"
	"text/template"

	"github.com/de-tools/case-atlas/pkg/models/domain"
)

// Reporter outputs documents to the console in plain text
type Reporter struct {
	writer io.Writer
}

// NewReporter creates a new console reporter
func NewReporter(writer io.Writer) *Reporter {
	if writer == nil {
		writer = os.Stdout
	}
	return &Reporter{writer: writer}
}

func (c *Reporter) Handle(doc *domain.Document) error {
	tmpl := `{{.Title}}
{{if .Subtitle}}{{.Subtitle}}
{{end}}{{range .Sections}}{{if .Heading}}
{{underline .Level .Heading}}
{{end}}{{range .Paragraphs}}{{.}}
{{end}}{{with $c := .Chart}}[{{$c.Kind}} chart: {{$c.Title}}]
{{range $i, $l := $c.Labels}}  {{$l}}: {{index $c.Values $i}}
{{end}}{{end}}{{end}}`

	funcs := template.FuncMap{
		"underline": func(level int, heading string) string {
			if level > 2 {
				return heading
			}
			return fmt.Sprintf("=== %s ===", heading)
		},
	}
	t, err := template.New("document").Funcs(funcs).Parse(tmpl)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	return t.Execute(c.writer, doc)
}
