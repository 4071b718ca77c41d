// Package heap implements the manually managed object store of the VM.
//
// Objects live in numbered slots. Freeing a slot leaves a hole that the next
// Push fills, lowest slot first; slots are never compacted.
//
// Objects are named by handles: the slot in the low SLOT_BITS bits and the
// slot generation above it. Free bumps the generation, so a handle kept past
// Free reports ErrFreed even after the slot has been reused, until the
// generation wraps.
package heap

import (
	"iter"
)

const (
	SLOT_BITS  = 16             // Handle bits that select the slot.
	SLOT_COUNT = 1 << SLOT_BITS // Maximum slots in any heap.
	HANDLE_MAX = 1<<32 - 1      // Largest handle value.

	slotMask = SLOT_COUNT - 1
)

// Heap is a slot table of objects.
type Heap struct {
	Capacity int // Maximum slot count, or 0 for SLOT_COUNT.

	slots []*Object
	gens  []uint16
	live  int
}

// handle names the object in slot n at its current generation.
func (hp *Heap) handle(n int) uint64 {
	return uint64(hp.gens[n])<<SLOT_BITS | uint64(n)
}

func (hp *Heap) limit() int {
	if hp.Capacity <= 0 || hp.Capacity > SLOT_COUNT {
		return SLOT_COUNT
	}
	return hp.Capacity
}

// New creates a heap limited to capacity slots.
func New(capacity int) (hp *Heap) {
	hp = &Heap{
		Capacity: capacity,
	}

	if capacity > 0 {
		hp.slots = make([]*Object, 0, min(capacity, 1024))
		hp.gens = make([]uint16, 0, min(capacity, 1024))
	}

	return
}

// Push stores obj in the lowest free slot, and returns its handle.
func (hp *Heap) Push(obj *Object) (handle uint64, err error) {
	for n, slot := range hp.slots {
		if slot == nil {
			hp.slots[n] = obj
			hp.live++
			handle = hp.handle(n)
			return
		}
	}

	if len(hp.slots) >= hp.limit() {
		err = ErrFull
		return
	}

	hp.slots = append(hp.slots, obj)
	hp.gens = append(hp.gens, 0)
	hp.live++
	handle = hp.handle(len(hp.slots) - 1)
	return
}

// slot returns the slot of a handle.
func (hp *Heap) slot(handle uint64) (n int, err error) {
	if handle > HANDLE_MAX || handle&slotMask >= uint64(len(hp.slots)) {
		err = ErrIndex
		return
	}

	n = int(handle & slotMask)
	if hp.slots[n] == nil || hp.handle(n) != handle {
		err = ErrFreed
	}
	return
}

// Get returns the object named by a handle.
func (hp *Heap) Get(handle uint64) (obj *Object, err error) {
	n, err := hp.slot(handle)
	if err != nil {
		return
	}

	obj = hp.slots[n]
	return
}

// Free empties the slot named by a handle.
func (hp *Heap) Free(handle uint64) (err error) {
	n, err := hp.slot(handle)
	if err != nil {
		return
	}

	hp.slots[n] = nil
	hp.gens[n]++
	hp.live--
	return
}

// Len is the number of slots, free or not.
func (hp *Heap) Len() int {
	return len(hp.slots)
}

// Live is the number of occupied slots.
func (hp *Heap) Live() int {
	return hp.live
}

// Reset frees every slot, and restarts every generation.
func (hp *Heap) Reset() {
	clear(hp.slots)
	hp.slots = hp.slots[:0]
	hp.gens = hp.gens[:0]
	hp.live = 0
}

// Objects iterates over the occupied slots in slot order, by handle.
func (hp *Heap) Objects() iter.Seq2[uint64, *Object] {
	return func(yield func(uint64, *Object) bool) {
		for n, obj := range hp.slots {
			if obj == nil {
				continue
			}
			if !yield(hp.handle(n), obj) {
				return
			}
		}
	}
}
