// Package chunker splits extracted document text into overlapping,
// boundary-aware segments sized for embedding.
package chunker

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfig indicates invalid chunking configuration.
var ErrInvalidConfig = errors.New("invalid chunker configuration")

// wordBoundaryWindow is how far back from the window edge a space is
// accepted as a cut point when no sentence boundary qualifies.
const wordBoundaryWindow = 50

// Config holds chunking parameters.
type Config struct {
	// ChunkSize is the target window size in characters. Default: 1000.
	ChunkSize int

	// Overlap is the number of characters shared between adjacent chunks.
	// Must be strictly less than ChunkSize. Default: 200.
	Overlap int
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.ChunkSize == 0 {
		c.ChunkSize = 1000
	}
	if c.Overlap == 0 {
		c.Overlap = 200
	}
}

// Validate validates the configuration. Overlap >= ChunkSize would stall the
// cursor, so it is rejected rather than clamped.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, c.ChunkSize)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("%w: overlap must be non-negative, got %d", ErrInvalidConfig, c.Overlap)
	}
	if c.Overlap >= c.ChunkSize {
		return fmt.Errorf("%w: overlap %d must be less than chunk size %d",
			ErrInvalidConfig, c.Overlap, c.ChunkSize)
	}
	return nil
}

// Chunker splits text into overlapping chunks.
type Chunker struct {
	config Config
}

// New creates a Chunker with the given configuration.
func New(cfg Config) (*Chunker, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{config: cfg}, nil
}

// Split splits text into ordered, overlapping chunks.
//
// Text that fits within the chunk size is returned as a single trimmed chunk.
// Otherwise a window of ChunkSize characters is cut at the cursor; when the
// window edge is not the end of the text, the cut prefers the last sentence
// boundary (". ", "! ", "? ") past the window midpoint, then the last space
// within the trailing 50 characters, then the raw edge. Each chunk is
// trimmed; empty results are skipped. The cursor advances to end − Overlap.
func (c *Chunker) Split(text string) []string {
	runes := []rune(text)
	size := c.config.ChunkSize
	overlap := c.config.Overlap

	if len(runes) <= size {
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			return []string{trimmed}
		}
		return nil
	}

	var chunks []string
	start := 0

	for start < len(runes) {
		end := start + size

		if end < len(runes) {
			if cut := lastSentenceEnd(runes, start, end); cut > start+size/2 {
				end = cut + 1
			} else if cut := lastSpace(runes, maxInt(start, end-wordBoundaryWindow), end); cut > start {
				end = cut
			}
		} else {
			end = len(runes)
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end >= len(runes) {
			break
		}
		next := end - overlap
		if next <= start {
			// Boundary cuts can pull end below start+overlap; drop the
			// overlap for this step so the cursor always moves forward.
			next = end
		}
		start = next
	}

	return chunks
}

// lastSentenceEnd returns the highest index i in (start, end-1) where
// runes[i] ends a sentence and runes[i+1] is a space, or -1.
func lastSentenceEnd(runes []rune, start, end int) int {
	for i := end - 2; i > start; i-- {
		switch runes[i] {
		case '.', '!', '?':
			if runes[i+1] == ' ' {
				return i
			}
		}
	}
	return -1
}

// lastSpace returns the highest index of a space in [lo, end), or -1.
func lastSpace(runes []rune, lo, end int) int {
	for i := end - 1; i >= lo; i-- {
		if runes[i] == ' ' {
			return i
		}
	}
	return -1
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
