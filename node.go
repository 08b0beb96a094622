package cflist

import (
	"sync"
	"sync/atomic"
)

type node[T any] struct {
	value T

	// mu guards structural changes of next once the node is interior.
	mu      sync.Mutex
	deleted atomic.Bool
	next    atomic.Pointer[node[T]]
}

func newNode[T any](value T, next *node[T]) *node[T] {
	n := &node[T]{value: value}
	n.next.Store(next)

	return n
}

// scopedLock locks the node and returns the matching unlock, meant to be
// deferred:
//
//	defer n.scopedLock()()
func (n *node[T]) scopedLock() (unlock func()) {
	n.mu.Lock()
	return n.mu.Unlock
}

func (n *node[T]) isDeleted() bool {
	return n.deleted.Load()
}

// markDeleted reports whether this call moved the node from live to deleted.
func (n *node[T]) markDeleted() bool {
	return n.deleted.CompareAndSwap(false, true)
}

func (n *node[T]) mustMarkDeleted(op string) {
	if !n.markDeleted() {
		panic(&InvariantError{Op: op})
	}
}
