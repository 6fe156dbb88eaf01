package export

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/de-tools/case-atlas/pkg/models/domain"
)

// WriteYAML dumps the document, including omitted sections, as YAML.
func WriteYAML(w io.Writer, doc *domain.Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	return enc.Close()
}
