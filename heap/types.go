// ABOUTME: Core value types for the managed heap model
// ABOUTME: Defines addresses, byte counts, tagged slot values and object kinds

package heap

import "fmt"

// WordBytes is the size of one slot in bytes
const WordBytes Bytes = 8

// MaxInstanceSize bounds the size of a plain object, header included
const MaxInstanceSize Bytes = 255 * WordBytes

// Bytes is a count of bytes or a byte offset
type Bytes uint64

// Words returns the number of whole words in b
func (b Bytes) Words() int {
	return int(b / WordBytes)
}

// KB returns b in kibibytes, rounded down
func (b Bytes) KB() uint64 {
	return uint64(b) >> 10
}

// Address is the location of a heap object or of one of its slots
type Address uint64

// Plus returns a advanced by b bytes. It panics on overflow.
func (a Address) Plus(b Bytes) Address {
	c := a + Address(b)
	if c < a {
		panic(fmt.Sprintf("%s+%d overflowed", a, b))
	}
	return c
}

func (a Address) String() string {
	return fmt.Sprintf("0x%x", uint64(a))
}

// Value is the content of one slot. A set low bit tags a heap reference,
// a clear low bit holds a small integer shifted left by one.
type Value uint64

// Null is the zero small integer, used for empty slots
const Null Value = 0

// Ref returns the tagged reference to the object at a
func Ref(a Address) Value {
	return Value(a) | 1
}

// Small returns the tagged small integer n
func Small(n int64) Value {
	return Value(uint64(n) << 1)
}

// IsHeapObject reports whether v references a heap object
func (v Value) IsHeapObject() bool {
	return v&1 == 1
}

// Address returns the referenced address. Only meaningful if IsHeapObject.
func (v Value) Address() Address {
	return Address(v &^ 1)
}

// SmallValue returns the small integer held by v
func (v Value) SmallValue() int64 {
	return int64(v) >> 1
}

func (v Value) String() string {
	if v.IsHeapObject() {
		return "ref(" + v.Address().String() + ")"
	}
	return fmt.Sprintf("small(%d)", v.SmallValue())
}

// Kind classifies heap objects for traversal
type Kind uint8

// Object kinds known to the marker
const (
	KindData Kind = iota
	KindPlainObject
	KindFixedArray
	KindCode
	KindDescriptor
	KindClosure
	KindGlobalContext
	KindCompiledMetadata
	KindBytecode
	KindTransitionTable
	KindWeakCell
	KindWeakCollection

	numKinds
)

var kindNames = [numKinds]string{
	KindData:             "data",
	KindPlainObject:      "object",
	KindFixedArray:       "array",
	KindCode:             "code",
	KindDescriptor:       "descriptor",
	KindClosure:          "closure",
	KindGlobalContext:    "context",
	KindCompiledMetadata: "metadata",
	KindBytecode:         "bytecode",
	KindTransitionTable:  "transitions",
	KindWeakCell:         "weakcell",
	KindWeakCollection:   "weakcollection",
}

func (k Kind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind returns the kind with the given name
func ParseKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return Kind(k), true
		}
	}
	return 0, false
}
