package cflist

import (
	"iter"
	"sync/atomic"
)

// noCopy may be embedded into structs which must not be copied after first
// use. go vet's copylocks check reports copies.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// List is a singly linked list that may be mutated by many goroutines at
// once. The zero value is an empty list ready to use. A List must not be
// copied after first use.
//
// The head is only ever replaced with compare-and-swap, so PushFront, Clear
// and Empty never block. Interior mutation locks the node whose successor
// pointer changes, and EraseAfter additionally locks the node it removes,
// always predecessor first.
type List[T any] struct {
	_ noCopy

	head atomic.Pointer[node[T]]
}

func New[T any]() *List[T] {
	return &List[T]{}
}

// PushFront inserts value at the front of the list.
func (l *List[T]) PushFront(value T) {
	n := newNode(value, l.head.Load())

	for !l.head.CompareAndSwap(n.next.Load(), n) {
		n.next.Store(l.head.Load())
	}
}

// PopFront removes the first node and reports whether there was one.
func (l *List[T]) PopFront() bool {
	for {
		head := l.head.Load()
		if head == nil {
			return false
		}

		if l.detachHead(head) {
			return true
		}
	}
}

// detachHead swings the head past n while holding n's lock, so no insert or
// erase after n can slip in between reading n.next and the swap.
func (l *List[T]) detachHead(n *node[T]) bool {
	defer n.scopedLock()()

	if !l.head.CompareAndSwap(n, n.next.Load()) {
		return false
	}

	n.mustMarkDeleted("pop_front")

	return true
}

// InsertAfter inserts value right after pos. It returns false if pos is the
// end position or its node was removed concurrently.
func (l *List[T]) InsertAfter(pos Position[T], value T) bool {
	prev := pos.position()
	if prev == nil {
		return false
	}

	n := newNode[T](value, nil)

	defer prev.scopedLock()()

	if prev.isDeleted() {
		return false
	}

	n.next.Store(prev.next.Load())
	prev.next.Store(n)

	return true
}

// EraseAfter removes the node right after pos. It returns false if pos is the
// end position, has no successor, or either changed before pos was locked.
func (l *List[T]) EraseAfter(pos Position[T]) bool {
	prev := pos.position()
	if prev == nil || prev.next.Load() == nil {
		return false
	}

	defer prev.scopedLock()()

	// Both may have changed since the unlocked check above.
	del := prev.next.Load()
	if prev.isDeleted() || del == nil {
		return false
	}

	defer del.scopedLock()()

	prev.next.Store(del.next.Load())
	del.mustMarkDeleted("erase_after")

	return true
}

// Clear detaches the whole chain at once. Detached nodes keep their markers,
// so iterators into the old chain still report valid positions; the nodes are
// reclaimed once those iterators are dropped.
func (l *List[T]) Clear() {
	l.head.Swap(nil)
}

func (l *List[T]) Empty() bool {
	return l.head.Load() == nil
}

// Front returns the value of the first node, if any.
func (l *List[T]) Front() (T, bool) {
	head := l.head.Load()
	if head == nil {
		var zero T
		return zero, false
	}

	return head.value, true
}

// Len counts nodes by walking the chain. Under concurrent mutation the count
// is not a snapshot of any single moment.
func (l *List[T]) Len() int {
	n := 0
	for it := l.CBegin(); !it.IsEnd(); it = it.Next() {
		n++
	}

	return n
}

func (l *List[T]) Begin() Iterator[T] {
	return Iterator[T]{n: l.head.Load()}
}

func (l *List[T]) End() Iterator[T] {
	return Iterator[T]{}
}

func (l *List[T]) CBegin() ConstIterator[T] {
	return ConstIterator[T]{n: l.head.Load()}
}

func (l *List[T]) CEnd() ConstIterator[T] {
	return ConstIterator[T]{}
}

// Range calls f for every position reached from the head until f returns
// false. Positions removed while the walk passes them may still be visited.
func (l *List[T]) Range(f func(it Iterator[T]) bool) {
	for it := l.Begin(); !it.IsEnd(); it = it.Next() {
		if !f(it) {
			return
		}
	}
}

// All yields the values of the nodes that are still live when reached.
func (l *List[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for it := l.CBegin(); !it.IsEnd(); it = it.Next() {
			if !it.Valid() {
				continue
			}

			if !yield(it.Value()) {
				return
			}
		}
	}
}
