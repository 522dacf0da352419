// ABOUTME: Type descriptors that define the layout and kind of heap objects
// ABOUTME: Descriptors are heap objects themselves so the marker can trace them

package heap

// Descriptor defines the layout of every object that points to it
type Descriptor struct {
	Name         string // Human readable type name
	Kind         Kind   // Traversal kind
	InstanceSize Bytes  // Size of fixed-size instances, header included
	WeakFields   []int  // Field indices skipped by weak-aware iteration
	HasCodeEntry bool   // Whether instances carry a raw code entry word

	obj *Object
}

// Object returns the heap object backing this descriptor
func (d *Descriptor) Object() *Object {
	return d.obj
}

// IsWeakField reports whether field i is ignored by weak-aware iteration
func (d *Descriptor) IsWeakField(i int) bool {
	for _, w := range d.WeakFields {
		if w == i {
			return true
		}
	}
	return false
}

// IsVariableSize reports whether instance sizes depend on a length field
func (d *Descriptor) IsVariableSize() bool {
	return d.Kind == KindFixedArray
}

// headerWords is the number of non-field words at the start of an instance
func (d *Descriptor) headerWords() int {
	switch {
	case d.Kind == KindFixedArray:
		return 2 // descriptor, length
	case d.HasCodeEntry:
		return 2 // descriptor, code entry
	default:
		return 1 // descriptor
	}
}

// numFields is the number of tagged fields in a fixed-size instance
func (d *Descriptor) numFields() int {
	if d.Kind == KindData {
		return 0
	}
	n := d.InstanceSize.Words() - d.headerWords()
	if n < 0 {
		return 0
	}
	return n
}
