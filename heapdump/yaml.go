// ABOUTME: YAML parser for heap descriptions
// ABOUTME: Accepts the same document shape as the JSON parser in YAML syntax

package heapdump

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLParser is a parser for YAML heap descriptions
type YAMLParser struct{}

// topLevelKeys are the block style keys that identify a YAML description
var topLevelKeys = [][]byte{
	[]byte("objects:"),
	[]byte("descriptors:"),
	[]byte("roots:"),
}

// CanParse checks for a top-level description key in block style
func (p *YAMLParser) CanParse(r io.Reader) bool {
	scanner := bufio.NewScanner(io.LimitReader(r, detectSize))
	for scanner.Scan() {
		for _, key := range topLevelKeys {
			if bytes.HasPrefix(scanner.Bytes(), key) {
				return true
			}
		}
	}
	return false
}

// Parse reads the YAML description and builds the heap
func (p *YAMLParser) Parse(r io.Reader) (*Snapshot, error) {
	var desc description

	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&desc); err != nil {
		return nil, fmt.Errorf("failed to decode YAML: %w", err)
	}

	return build(&desc)
}

// init registers the YAML parser
func init() {
	Register(&YAMLParser{})
}
