// Package extractor turns uploaded file bytes into plain text plus content
// metadata for ingestion.
//
// Supported types: pdf, txt, md, docx. Text types decode as UTF-8 with a
// Latin-1 fallback; binary types walk structural units (PDF pages, DOCX
// paragraphs and table cells) and join non-empty blocks with blank lines.
package extractor

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var (
	// ErrUnsupportedType is returned for filenames outside the allow-list.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrExtractionFailed is returned when no text could be recovered.
	ErrExtractionFailed = errors.New("no text could be extracted")
)

// supportedExtensions is the fixed upload allow-list.
var supportedExtensions = map[string]bool{
	".pdf":  true,
	".txt":  true,
	".md":   true,
	".docx": true,
}

// Result holds the extracted text and content metadata for one file.
type Result struct {
	// Text is the trimmed extracted plain text.
	Text string

	// Filename is the original upload filename.
	Filename string

	// FileType is the normalized type tag (extension without the dot).
	FileType string

	// ContentHash is the SHA-256 hex digest of the raw bytes, used for
	// duplicate detection. Stable across repeated calls on identical bytes.
	ContentHash string

	// FileSize is the raw byte size.
	FileSize int

	// CharacterCount is the length of Text in bytes.
	CharacterCount int
}

// Fingerprint returns the SHA-256 hex digest of content.
func Fingerprint(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// FileExtension returns the lowercased extension of filename, dot included.
func FileExtension(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// IsSupported reports whether the filename's extension is on the allow-list.
func IsSupported(filename string) bool {
	return supportedExtensions[FileExtension(filename)]
}

// SupportedExtensions returns the allow-list in a stable order.
func SupportedExtensions() []string {
	return []string{".pdf", ".txt", ".md", ".docx"}
}

// Extract processes one file and returns its text and content metadata.
//
// Returns ErrUnsupportedType for extensions outside the allow-list and
// ErrExtractionFailed when the file yields no text (corrupt file, empty PDF,
// all-whitespace content).
func Extract(filename string, content []byte) (*Result, error) {
	if !IsSupported(filename) {
		return nil, fmt.Errorf("%w: %s (supported: %s)",
			ErrUnsupportedType, FileExtension(filename), strings.Join(SupportedExtensions(), ", "))
	}

	ext := FileExtension(filename)

	var (
		text string
		err  error
	)
	switch ext {
	case ".txt", ".md":
		text, err = extractPlainText(content)
	case ".pdf":
		text, err = extractPDF(content)
	case ".docx":
		text, err = extractDOCX(content)
	}
	if err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: document contains no extractable text", ErrExtractionFailed)
	}

	return &Result{
		Text:           text,
		Filename:       filename,
		FileType:       strings.TrimPrefix(ext, "."),
		ContentHash:    Fingerprint(content),
		FileSize:       len(content),
		CharacterCount: len(text),
	}, nil
}

// extractPlainText decodes content as UTF-8, falling back to Latin-1.
// The fallback is the single place extraction recovers silently.
func extractPlainText(content []byte) (string, error) {
	if utf8.Valid(content) {
		return string(content), nil
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(content)
	if err != nil {
		return "", fmt.Errorf("%w: unable to decode text file: %v", ErrExtractionFailed, err)
	}
	return string(decoded), nil
}
