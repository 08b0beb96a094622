package internal

import (
	"reflect"
	"sync/atomic"
)

type versionedValue[T any] struct {
	version uint64
	value   T
}

// VersionedBox publishes a value to many readers. Each reader holds a handle
// that tells it whether the value changed since its last look.
type VersionedBox[T any] struct {
	vvalue atomic.Pointer[versionedValue[T]]
}

type VersionedBoxHandle[T any] struct {
	version uint64
	box     *VersionedBox[T]
}

func NewVersionedBox[T any](value T) *VersionedBox[T] {
	box := &VersionedBox[T]{}

	// Start at version 1 so fresh handles (version 0) see the initial value
	// as a change.
	box.vvalue.Store(&versionedValue[T]{
		version: 1,
		value:   value,
	})

	return box
}

// UpdateValue stores value under a new version unless it deep-equals the
// current one. It reports whether the version changed.
func (box *VersionedBox[T]) UpdateValue(value T) bool {
	for {
		current := box.vvalue.Load()

		if reflect.DeepEqual(current.value, value) {
			return false
		}

		next := &versionedValue[T]{
			version: current.version + 1,
			value:   value,
		}

		if box.vvalue.CompareAndSwap(current, next) {
			return true
		}
	}
}

// Value returns the current value without touching any handle.
func (box *VersionedBox[T]) Value() T {
	return box.vvalue.Load().value
}

func (box *VersionedBox[T]) GetHandle() VersionedBoxHandle[T] {
	return VersionedBoxHandle[T]{
		version: 0,
		box:     box,
	}
}

func (handle *VersionedBoxHandle[T]) GetValue() (T, bool) {
	vvalue := handle.box.vvalue.Load()

	changed := vvalue.version != handle.version
	if changed {
		handle.version = vvalue.version
	}

	return vvalue.value, changed
}
