// ABOUTME: Format-independent heap description and the builder that materializes it
// ABOUTME: Resolves descriptor names and object IDs, then allocates and wires the heap

package heapdump

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/prateek/heapmark/heap"
)

var (
	// ErrUnknownKind is returned for a descriptor kind name that does not exist
	ErrUnknownKind = errors.New("unknown object kind")

	// ErrUnknownType is returned for an object whose descriptor is not defined
	ErrUnknownType = errors.New("unknown descriptor")

	// ErrDanglingRef is returned for a reference to an undefined object
	ErrDanglingRef = errors.New("reference to undefined object")
)

// descriptorRefPrefix marks a slot value naming a descriptor object
const descriptorRefPrefix = "@"

// description is the decoded form shared by every text format
type description struct {
	NewSpace    uint64           `json:"new_space" yaml:"new_space"`
	Publish     bool             `json:"publish" yaml:"publish"`
	Descriptors []descriptorSpec `json:"descriptors" yaml:"descriptors"`
	Objects     []objectSpec     `json:"objects" yaml:"objects"`
	Roots       []string         `json:"roots" yaml:"roots"`
}

type descriptorSpec struct {
	Name      string `json:"name" yaml:"name"`
	Kind      string `json:"kind" yaml:"kind"`
	Words     int    `json:"words" yaml:"words"`
	Weak      []int  `json:"weak" yaml:"weak"`
	CodeEntry bool   `json:"code_entry" yaml:"code_entry"`
}

type objectSpec struct {
	ID       string     `json:"id" yaml:"id"`
	Type     string     `json:"type" yaml:"type"`
	Young    bool       `json:"young" yaml:"young"`
	Capacity int        `json:"capacity" yaml:"capacity"`
	Fields   slotValues `json:"fields" yaml:"fields"`
	Code     string     `json:"code" yaml:"code"`
}

// slotValue is a field in a description: a string references an object by
// ID (or a descriptor as "@Name"), an integer is a small value, null is empty
type slotValue struct {
	ref   string
	small int64
	isRef bool
}

func (v *slotValue) UnmarshalJSON(b []byte) error {
	*v = slotValue{}
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		return nil
	case len(b) > 0 && b[0] == '"':
		v.isRef = true
		return json.Unmarshal(b, &v.ref)
	default:
		if err := json.Unmarshal(b, &v.small); err != nil {
			return fmt.Errorf("field value %s: want integer, string or null", b)
		}
		return nil
	}
}

func (v *slotValue) UnmarshalYAML(n *yaml.Node) error {
	*v = slotValue{}
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: field value must be a scalar", n.Line)
	}
	switch n.ShortTag() {
	case "!!null":
		return nil
	case "!!int":
		return n.Decode(&v.small)
	case "!!str":
		v.isRef = true
		v.ref = n.Value
		return nil
	}
	return fmt.Errorf("line %d: field value %q: want integer, string or null", n.Line, n.Value)
}

// slotValues decodes YAML sequences element by element. The YAML decoder
// drops null sequence entries bound to struct values, which would shift
// every later field.
type slotValues []slotValue

func (s *slotValues) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: fields must be a sequence", n.Line)
	}
	out := make(slotValues, len(n.Content))
	for i, elem := range n.Content {
		if elem.Kind == yaml.AliasNode {
			elem = elem.Alias
		}
		if err := out[i].UnmarshalYAML(elem); err != nil {
			return err
		}
	}
	*s = out
	return nil
}

// build materializes d into a fresh heap
func build(d *description) (*Snapshot, error) {
	h := heap.NewHeap(heap.Bytes(d.NewSpace))
	s := newSnapshot(h)

	types := map[string]*heap.Descriptor{h.MetaDescriptor().Name: h.MetaDescriptor()}
	for i, spec := range d.Descriptors {
		desc, err := defineDescriptor(h, spec)
		if err != nil {
			return nil, fmt.Errorf("descriptor at index %d: %w", i, err)
		}
		if _, dup := types[desc.Name]; dup {
			return nil, fmt.Errorf("descriptor at index %d: duplicate name %q", i, desc.Name)
		}
		types[desc.Name] = desc
	}

	// Allocate everything first so fields may reference later objects.
	for i, spec := range d.Objects {
		if spec.ID == "" {
			return nil, fmt.Errorf("object at index %d missing ID", i)
		}
		if _, dup := s.IDs[spec.ID]; dup {
			return nil, fmt.Errorf("object at index %d: duplicate ID %q", i, spec.ID)
		}
		desc, ok := types[spec.Type]
		if !ok {
			return nil, fmt.Errorf("object %q: %w %q", spec.ID, ErrUnknownType, spec.Type)
		}
		obj, err := allocate(h, desc, spec)
		if err != nil {
			return nil, fmt.Errorf("object %q: %w", spec.ID, err)
		}
		s.add(spec.ID, obj)
	}

	for _, spec := range d.Objects {
		if err := s.wire(s.IDs[spec.ID], spec, types); err != nil {
			return nil, fmt.Errorf("object %q: %w", spec.ID, err)
		}
	}

	for _, id := range d.Roots {
		obj, ok := s.IDs[id]
		if !ok {
			return nil, fmt.Errorf("root %q: %w", id, ErrDanglingRef)
		}
		h.AddRoot(obj.Address())
		s.Roots = append(s.Roots, id)
	}

	if d.Publish {
		h.PublishYoung()
	}
	return s, nil
}

func defineDescriptor(h *heap.Heap, spec descriptorSpec) (*heap.Descriptor, error) {
	if spec.Name == "" {
		return nil, errors.New("missing name")
	}
	kind, ok := heap.ParseKind(spec.Kind)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownKind, spec.Kind)
	}
	if kind == heap.KindDescriptor {
		return nil, fmt.Errorf("%q: descriptor objects use the built-in descriptor", spec.Name)
	}
	if spec.Words < 0 {
		return nil, fmt.Errorf("%q: negative size %d", spec.Name, spec.Words)
	}
	return h.DefineDescriptor(&heap.Descriptor{
		Name:         spec.Name,
		Kind:         kind,
		InstanceSize: heap.Bytes(spec.Words) * heap.WordBytes,
		WeakFields:   spec.Weak,
		HasCodeEntry: spec.CodeEntry,
	})
}

func allocate(h *heap.Heap, d *heap.Descriptor, spec objectSpec) (*heap.Object, error) {
	if d.Kind == heap.KindDescriptor {
		return nil, errors.New("descriptor objects are created by their descriptors")
	}
	if d.IsVariableSize() {
		if spec.Young {
			return nil, errors.New("arrays cannot be allocated young")
		}
		capacity := spec.Capacity
		if capacity < len(spec.Fields) {
			capacity = len(spec.Fields)
		}
		return h.AllocateArray(d, capacity), nil
	}
	if spec.Young {
		return h.AllocateYoung(d)
	}
	return h.Allocate(d), nil
}

// wire stores the fields and code entry of obj
func (s *Snapshot) wire(obj *heap.Object, spec objectSpec, types map[string]*heap.Descriptor) error {
	d := obj.Descriptor()
	if !d.IsVariableSize() && len(spec.Fields) > obj.NumFields() {
		return fmt.Errorf("%d fields given, %s has %d", len(spec.Fields), d.Name, obj.NumFields())
	}
	for i, f := range spec.Fields {
		v, err := s.resolve(f, types)
		if err != nil {
			return fmt.Errorf("field %d: %w", i, err)
		}
		if d.IsVariableSize() {
			obj.Append(v)
		} else {
			obj.SetField(i, v)
		}
	}

	if spec.Code == "" {
		return nil
	}
	if !d.HasCodeEntry {
		return fmt.Errorf("%s has no code entry", d.Name)
	}
	code, ok := s.IDs[spec.Code]
	if !ok {
		return fmt.Errorf("code %q: %w", spec.Code, ErrDanglingRef)
	}
	if code.Descriptor().Kind != heap.KindCode {
		return fmt.Errorf("code %q is a %s object", spec.Code, code.Descriptor().Kind)
	}
	obj.SetCode(code)
	return nil
}

func (s *Snapshot) resolve(f slotValue, types map[string]*heap.Descriptor) (heap.Value, error) {
	if !f.isRef {
		return heap.Small(f.small), nil
	}
	if name, ok := strings.CutPrefix(f.ref, descriptorRefPrefix); ok {
		d, ok := types[name]
		if !ok {
			return heap.Null, fmt.Errorf("%w %q", ErrUnknownType, name)
		}
		return heap.Ref(d.Object().Address()), nil
	}
	target, ok := s.IDs[f.ref]
	if !ok {
		return heap.Null, fmt.Errorf("%q: %w", f.ref, ErrDanglingRef)
	}
	return heap.Ref(target.Address()), nil
}
