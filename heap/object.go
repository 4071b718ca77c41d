package heap

import (
	"encoding/binary"
	"fmt"
)

// ObjectType is the variant of a heap object.
type ObjectType uint8

//go:generate go tool stringer -linecomment -type=ObjectType
const (
	OBJECT_STRING = ObjectType(0) // string
	OBJECT_STRUCT = ObjectType(1) // struct
	OBJECT_VECTOR = ObjectType(2) // vector
)

// Object is an opaque byte payload owned by a Heap.
type Object struct {
	Type     ObjectType
	Data     []byte
	WordSize uint64 // Bytes per logical word.
}

// String makes a string object, one byte per word.
func String(s string) *Object {
	return &Object{Type: OBJECT_STRING, Data: []byte(s), WordSize: 1}
}

// Struct makes a struct object over data.
func Struct(data []byte, ws uint64) *Object {
	return &Object{Type: OBJECT_STRUCT, Data: data, WordSize: ws}
}

// Vector makes a vector object over data.
func Vector(data []byte, ws uint64) *Object {
	return &Object{Type: OBJECT_VECTOR, Data: data, WordSize: ws}
}

// Words returns the number of whole logical words in the object.
func (obj *Object) Words() uint64 {
	if obj.WordSize == 0 {
		return 0
	}
	return uint64(len(obj.Data)) / obj.WordSize
}

func (obj *Object) span(offset uint64) (b []byte, err error) {
	switch obj.WordSize {
	case 1, 2, 4, 8:
	default:
		err = ErrWordSize
		return
	}

	size := uint64(len(obj.Data))
	if offset > size || size-offset < obj.WordSize {
		err = ErrBounds
		return
	}

	b = obj.Data[offset : offset+obj.WordSize]
	return
}

// Read returns the little-endian word at the byte offset, zero-extended.
func (obj *Object) Read(offset uint64) (bits uint64, err error) {
	b, err := obj.span(offset)
	if err != nil {
		return
	}

	var word [8]byte
	copy(word[:], b)
	bits = binary.LittleEndian.Uint64(word[:])
	return
}

// Write stores the low WordSize bytes of bits at the byte offset.
func (obj *Object) Write(offset uint64, bits uint64) (err error) {
	b, err := obj.span(offset)
	if err != nil {
		return
	}

	var word [8]byte
	binary.LittleEndian.PutUint64(word[:], bits)
	copy(b, word[:])
	return
}

func (obj *Object) String() string {
	if obj.Type == OBJECT_STRING {
		return fmt.Sprintf("%v %q", obj.Type, obj.Data)
	}
	return fmt.Sprintf("%v[%d*%d]", obj.Type, obj.Words(), obj.WordSize)
}
