// ABOUTME: Tests for the YAML heap description parser
// ABOUTME: Validates detection, decoding of slot values and parity with the JSON form

package heapdump

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/prateek/heapmark/heap"
)

const sampleYAML = `
new_space: 1024
descriptors:
  - {name: Point, kind: object, words: 3}
  - {name: List, kind: array}
  - {name: Code, kind: code, words: 4}
  - {name: Function, kind: closure, words: 4, weak: [1], code_entry: true}
objects:
  - id: root
    type: Point
    fields: [list, 7]
  - id: list
    type: List
    capacity: 4
    fields: [fn, null, "@Point"]
  - id: fn
    type: Function
    fields: [root, young]
    code: code
  - id: code
    type: Code
  - id: young
    type: Point
    young: true
roots: [root]
`

func TestYAMLMatchesJSON(t *testing.T) {
	fromYAML, err := (&YAMLParser{}).Parse(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("YAML parse failed: %v", err)
	}
	fromJSON, err := (&JSONParser{}).Parse(strings.NewReader(sampleJSON))
	if err != nil {
		t.Fatalf("JSON parse failed: %v", err)
	}

	if len(fromYAML.IDs) != len(fromJSON.IDs) {
		t.Fatalf("Expected %d objects, got %d", len(fromJSON.IDs), len(fromYAML.IDs))
	}
	for id, want := range fromJSON.IDs {
		got := fromYAML.Object(id)
		if got == nil {
			t.Errorf("Object %s missing from YAML heap", id)
			continue
		}
		if got.Address() != want.Address() || got.Descriptor().Name != want.Descriptor().Name {
			t.Errorf("Object %s: got %v, want %v", id, got, want)
		}
		if got.Length() != want.Length() || got.CodeEntry() != want.CodeEntry() {
			t.Errorf("Object %s: length or code entry differ", id)
		}
		for i := 0; i < want.NumFields(); i++ {
			if got.Field(i) != want.Field(i) {
				t.Errorf("Object %s field %d: got %s, want %s", id, i, got.Field(i), want.Field(i))
			}
		}
	}
}

func TestYAMLCanParse(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"block style", "descriptors: []\nobjects:\n  - id: a\n", true},
		{"empty objects", "objects: []\n", true},
		{"descriptors first", "descriptors:\n  - {name: P, kind: object, words: 2}\n", true},
		{"roots only", "roots: [a]\n", true},
		{"nested key only", "heap:\n  objects: []\n", false},
		{"JSON", `{"objects": []}`, false},
		{"empty", "", false},
	}
	parser := &YAMLParser{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parser.CanParse(strings.NewReader(tt.content)); got != tt.want {
				t.Errorf("CanParse() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMalformedYAML(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"not a mapping", "- a\n- b\n", nil},
		{"unknown field", "objects: []\nroot: [a]\n", nil},
		{"mapping field", "descriptors: [{name: P, kind: object, words: 2}]\nobjects:\n  - {id: a, type: P, fields: [{x: 1}]}\n", nil},
		{"float field", "descriptors: [{name: P, kind: object, words: 2}]\nobjects:\n  - {id: a, type: P, fields: [1.5]}\n", nil},
		{"unknown kind", "descriptors: [{name: P, kind: blob, words: 2}]\nobjects: []\n", ErrUnknownKind},
		{"dangling", "descriptors: [{name: P, kind: object, words: 2}]\nobjects:\n  - {id: a, type: P, fields: [b]}\n", ErrDanglingRef},
	}
	parser := &YAMLParser{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.Parse(strings.NewReader(tt.content))
			if err == nil {
				t.Fatal("Expected error for malformed description")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestOpenSelectsYAML(t *testing.T) {
	s, err := Open(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if s.Object("root").Field(1) != heap.Small(7) {
		t.Errorf("Expected small 7, got %s", s.Object("root").Field(1))
	}
}

func TestYAMLNullFieldsKeepTheirSlot(t *testing.T) {
	content := `
descriptors:
  - {name: Point, kind: object, words: 4}
  - {name: List, kind: array}
objects:
  - {id: a, type: Point, fields: [b, null, b]}
  - {id: list, type: List, fields: [b, null, b]}
  - {id: b, type: Point}
roots: [a, list]
`
	s, err := (&YAMLParser{}).Parse(strings.NewReader(content))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	ref := heap.Ref(s.Object("b").Address())
	want := []heap.Value{ref, heap.Small(0), ref}

	list := s.Object("list")
	if list.Length() != len(want) {
		t.Fatalf("Expected array length %d, got %d", len(want), list.Length())
	}
	for _, id := range []string{"a", "list"} {
		obj := s.Object(id)
		for i, w := range want {
			if got := obj.Field(i); got != w {
				t.Errorf("Object %s field %d: got %s, want %s", id, i, got, w)
			}
		}
	}
}

func TestOpenYAMLWithLongDescriptorList(t *testing.T) {
	var b strings.Builder
	b.WriteString("descriptors:\n")
	for i := 0; i < 300; i++ {
		fmt.Fprintf(&b, "  - {name: T%03d, kind: object, words: 2}\n", i)
	}
	b.WriteString("objects:\n  - {id: a, type: T299}\nroots: [a]\n")
	if b.Len() <= detectSize {
		t.Fatalf("Expected the objects key past the preview, document is %d bytes", b.Len())
	}

	s, err := Open(strings.NewReader(b.String()))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if s.Object("a") == nil || s.Object("a").Descriptor().Name != "T299" {
		t.Errorf("Expected object a of type T299, got %v", s.Object("a"))
	}
}
