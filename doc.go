// Package cflist implements a singly linked list for concurrent use.
//
// The head of the list is updated lock-free with compare-and-swap. Inserting
// or erasing in the interior locks only the nodes involved: InsertAfter locks
// the predecessor, EraseAfter locks the predecessor and then the node it
// removes. Every node carries an atomic deletion marker that is set exactly
// once, when the node is removed, so iterators can tell that their position
// is gone without taking any lock:
//
//	var l cflist.List[int]
//	l.PushFront(1)
//	it := l.Begin()
//	l.InsertAfter(it, 2)
//	l.EraseAfter(it)
//
// Lost races are reported with a false result and are normal under
// contention. A deletion marker being set twice means the locking protocol is
// broken; it panics with an *InvariantError.
package cflist
