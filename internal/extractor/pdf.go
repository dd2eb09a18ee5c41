package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// extractPDF walks the pages of a PDF and joins their non-empty text with
// blank lines. Pages that fail to render are skipped; a document where every
// page fails (or that has no pages) is ErrExtractionFailed.
func extractPDF(content []byte) (text string, err error) {
	// The pdf parser panics on some malformed inputs; treat a panic as a
	// corrupt document rather than crashing the ingestion path.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: malformed PDF: %v", ErrExtractionFailed, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	var parts []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(pageText) != "" {
			parts = append(parts, pageText)
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("%w: no text could be extracted from PDF", ErrExtractionFailed)
	}
	return strings.Join(parts, "\n\n"), nil
}
