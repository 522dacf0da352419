// ABOUTME: Heap object representation with atomically accessed slots
// ABOUTME: Every cross-thread read goes through sync/atomic so racy reads stay safe

package heap

import (
	"fmt"
	"sync/atomic"
)

// CodeEntryOffset is the distance from a code object's address to its entry
const CodeEntryOffset Bytes = 2 * WordBytes

// Object is a single object in the managed heap
type Object struct {
	addr      Address
	desc      atomic.Pointer[Descriptor]
	fields    []atomic.Uint64
	length    atomic.Int32
	codeEntry atomic.Uint64
	mark      atomic.Uint32
}

// Address returns the stable address of the object
func (o *Object) Address() Address {
	return o.addr
}

// Descriptor returns the object's type descriptor. The load pairs with the
// store made when the object was published, so a non-nil result is fully
// initialized.
func (o *Object) Descriptor() *Descriptor {
	return o.desc.Load()
}

// DescriptorSlot is the address of the header word holding the descriptor
func (o *Object) DescriptorSlot() Address {
	return o.addr
}

// DescriptorValue is the tagged reference stored in the descriptor slot
func (o *Object) DescriptorValue() Value {
	d := o.desc.Load()
	if d == nil || d.obj == nil {
		return Null
	}
	return Ref(d.obj.addr)
}

// NumFields returns the number of tagged fields (array capacity for arrays)
func (o *Object) NumFields() int {
	return len(o.fields)
}

// Field performs a relaxed load of field i
func (o *Object) Field(i int) Value {
	return Value(o.fields[i].Load())
}

// SetField stores v into field i
func (o *Object) SetField(i int, v Value) {
	o.fields[i].Store(uint64(v))
}

// SlotAddress returns the address of field i
func (o *Object) SlotAddress(i int) Address {
	d := o.desc.Load()
	return o.addr.Plus(Bytes(d.headerWords()+i) * WordBytes)
}

// Length returns the number of initialized array elements. The load
// acquires the store made by Append.
func (o *Object) Length() int {
	return int(o.length.Load())
}

// Append stores v in the next free element and then publishes the new length.
// Only the owning mutator may append.
func (o *Object) Append(v Value) {
	n := int(o.length.Load())
	if n >= len(o.fields) {
		panic(fmt.Sprintf("append to full array at %s (capacity %d)", o.addr, len(o.fields)))
	}
	o.fields[n].Store(uint64(v))
	o.length.Store(int32(n + 1))
}

// CodeEntry performs a relaxed load of the raw code entry address
func (o *Object) CodeEntry() Address {
	return Address(o.codeEntry.Load())
}

// SetCode points the code entry at the entry address of code
func (o *Object) SetCode(code *Object) {
	o.codeEntry.Store(uint64(EntryOf(code)))
}

// MarkCell is the object's atomic mark word, owned by the marking bitmap
func (o *Object) MarkCell() *atomic.Uint32 {
	return &o.mark
}

// SizeFor returns the byte size of a fixed array holding length elements
func SizeFor(length int) Bytes {
	return Bytes(2+length) * WordBytes
}

// Size returns the object's size in bytes as seen right now
func (o *Object) Size() Bytes {
	d := o.desc.Load()
	if d.IsVariableSize() {
		return SizeFor(o.Length())
	}
	return d.InstanceSize
}

// EntryOf returns the code entry address of a code object
func EntryOf(code *Object) Address {
	return code.addr.Plus(CodeEntryOffset)
}

// ObjectFromCodeEntry returns the address of the code object owning entry
func ObjectFromCodeEntry(entry Address) Address {
	return entry - Address(CodeEntryOffset)
}

func (o *Object) String() string {
	d := o.desc.Load()
	if d == nil {
		return fmt.Sprintf("<uninitialized %s>", o.addr)
	}
	return fmt.Sprintf("%s %s@%s", d.Kind, d.Name, o.addr)
}
