// ABOUTME: JSON parser for heap descriptions
// ABOUTME: Reads descriptors, objects and roots from a JSON document

package heapdump

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// JSONParser is a parser for JSON heap descriptions
type JSONParser struct{}

// CanParse checks if the input looks like a JSON heap description
func (p *JSONParser) CanParse(r io.Reader) bool {
	buf := make([]byte, detectSize)
	n, err := r.Read(buf)
	if err != nil && err != io.EOF {
		return false
	}
	preview := bytes.TrimSpace(buf[:n])
	if len(preview) == 0 || preview[0] != '{' {
		return false
	}
	// The preview may be truncated, so look for the key instead of decoding.
	return bytes.Contains(preview, []byte(`"objects"`))
}

// Parse reads the JSON description and builds the heap
func (p *JSONParser) Parse(r io.Reader) (*Snapshot, error) {
	var desc description

	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&desc); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}

	return build(&desc)
}

// init registers the JSON parser
func init() {
	Register(&JSONParser{})
}
