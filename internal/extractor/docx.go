package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/fumiama/go-docx"
)

// extractDOCX walks body paragraphs and table cells and joins their non-empty
// text with blank lines.
func extractDOCX(content []byte) (string, error) {
	doc, err := docx.Parse(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	var parts []string
	for _, item := range doc.Document.Body.Items {
		switch v := item.(type) {
		case *docx.Paragraph:
			if t := strings.TrimSpace(v.String()); t != "" {
				parts = append(parts, t)
			}
		case *docx.Table:
			for _, row := range v.TableRows {
				for _, cell := range row.TableCells {
					for _, p := range cell.Paragraphs {
						if t := strings.TrimSpace(p.String()); t != "" {
							parts = append(parts, t)
						}
					}
				}
			}
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("%w: no text could be extracted from DOCX", ErrExtractionFailed)
	}
	return strings.Join(parts, "\n\n"), nil
}
