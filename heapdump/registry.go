// ABOUTME: Registry for heap description parsers
// ABOUTME: Manages parser plugins and selects the appropriate parser for an input

package heapdump

import (
	"bytes"
	"errors"
	"io"
	"sync"
)

var (
	// ErrNoParser is returned when no parser can handle the input format
	ErrNoParser = errors.New("no parser found for heap description format")
)

// detectSize is how much of the input parsers may look at for detection
const detectSize = 4096

// parserRegistry holds registered parsers
type parserRegistry struct {
	mu      sync.RWMutex
	parsers []Parser
}

// Global registry instance
var registry = &parserRegistry{
	parsers: make([]Parser, 0),
}

// Register adds a parser to the registry
func Register(p Parser) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.parsers = append(registry.parsers, p)
}

// Open reads a heap description and builds the heap it describes.
// It tries each registered parser in registration order.
func Open(r io.Reader) (*Snapshot, error) {
	preview := make([]byte, detectSize)
	n, err := io.ReadFull(r, preview)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	preview = preview[:n]

	registry.mu.RLock()
	defer registry.mu.RUnlock()

	for _, parser := range registry.parsers {
		if parser.CanParse(bytes.NewReader(preview)) {
			return parser.Parse(io.MultiReader(bytes.NewReader(preview), r))
		}
	}

	return nil, ErrNoParser
}
