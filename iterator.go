package cflist

// Position is a place in a List that InsertAfter and EraseAfter accept.
// Both Iterator and ConstIterator are positions.
type Position[T any] interface {
	position() *node[T]
}

// Iterator refers to a node of a List, or to no node at the end position.
// The node stays readable for as long as the iterator refers to it, even
// after it is removed from the list.
//
// Writing through Ref is not synchronized. An iterator used for mutation must
// not be shared between goroutines.
type Iterator[T any] struct {
	n *node[T]
}

func (it Iterator[T]) position() *node[T] {
	return it.n
}

// Value returns the referenced value. It panics at the end position.
func (it Iterator[T]) Value() T {
	return it.n.value
}

// Ref returns a pointer to the referenced value. It panics at the end
// position.
func (it Iterator[T]) Ref() *T {
	return &it.n.value
}

// Valid reports whether the iterator refers to a node that has not been
// removed.
func (it Iterator[T]) Valid() bool {
	return it.n != nil && !it.n.isDeleted()
}

func (it Iterator[T]) IsEnd() bool {
	return it.n == nil
}

// Next returns the position after it, following whatever successor pointer
// the node holds right now. It panics at the end position.
func (it Iterator[T]) Next() Iterator[T] {
	return Iterator[T]{n: it.n.next.Load()}
}

// Advance moves it to the next position and returns the one it left.
func (it *Iterator[T]) Advance() Iterator[T] {
	prev := *it
	*it = it.Next()

	return prev
}

// Equal reports whether both iterators refer to the same node.
func (it Iterator[T]) Equal(other Iterator[T]) bool {
	return it.n == other.n
}

// Const returns a read-only iterator to the same position.
func (it Iterator[T]) Const() ConstIterator[T] {
	return ConstIterator[T]{n: it.n}
}

// ConstIterator is an Iterator without write access to the value.
type ConstIterator[T any] struct {
	n *node[T]
}

func (it ConstIterator[T]) position() *node[T] {
	return it.n
}

func (it ConstIterator[T]) Value() T {
	return it.n.value
}

func (it ConstIterator[T]) Valid() bool {
	return it.n != nil && !it.n.isDeleted()
}

func (it ConstIterator[T]) IsEnd() bool {
	return it.n == nil
}

func (it ConstIterator[T]) Next() ConstIterator[T] {
	return ConstIterator[T]{n: it.n.next.Load()}
}

func (it *ConstIterator[T]) Advance() ConstIterator[T] {
	prev := *it
	*it = it.Next()

	return prev
}

func (it ConstIterator[T]) Equal(other ConstIterator[T]) bool {
	return it.n == other.n
}
