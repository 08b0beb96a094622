package internal

import (
	"math/bits"
	"sync"
	"sync/atomic"
)

type bufferEntry[T any] struct {
	seq uint64
	val T
}

// EventBuffer keeps the most recent events in a ring. Readers follow it with
// a cursor and block until the event under their cursor is published. A
// reader that falls behind by more than the ring size skips to the oldest
// event still held.
type EventBuffer[T any] struct {
	entries []bufferEntry[T]
	bitmask uint64

	// next sequence number to publish
	counter uint64

	lock     sync.RWMutex
	readCond *sync.Cond
}

func NewEventBuffer[T any](size uint32) *EventBuffer[T] {
	if size < 2 {
		size = 2
	}

	// Round up to a power of two
	size = 1 << bits.Len32(size-1)

	eb := &EventBuffer[T]{
		entries: make([]bufferEntry[T], size),
		bitmask: uint64(size - 1),
	}
	eb.readCond = sync.NewCond(eb.lock.RLocker())

	return eb
}

// Put publishes val and returns its sequence number.
func (eb *EventBuffer[T]) Put(val T) uint64 {
	eb.lock.Lock()

	seq := eb.counter
	eb.counter++
	eb.entries[seq&eb.bitmask] = bufferEntry[T]{seq: seq, val: val}

	eb.lock.Unlock()

	eb.readCond.Broadcast()

	return seq
}

// Get blocks until an event at or after cursor exists and returns it with its
// sequence number. It returns ok == false once cancel is set; callers setting
// cancel must call WakeListeners afterwards.
func (eb *EventBuffer[T]) Get(cursor uint64, cancel *atomic.Bool) (seq uint64, val T, ok bool) {
	eb.lock.RLock()
	defer eb.lock.RUnlock()

	for cursor >= eb.counter {
		if cancel.Load() {
			return 0, val, false
		}

		eb.readCond.Wait()
	}

	if cancel.Load() {
		return 0, val, false
	}

	size := uint64(len(eb.entries))
	if eb.counter-cursor > size {
		cursor = eb.counter - size
	}

	e := eb.entries[cursor&eb.bitmask]

	return e.seq, e.val, true
}

func (eb *EventBuffer[T]) WakeListeners() {
	// Readers check cancel under the read lock, so passing through the write
	// lock guarantees each of them either saw cancel or is already waiting.
	eb.lock.Lock()
	eb.lock.Unlock()

	eb.readCond.Broadcast()
}

// BacklogCursor returns a cursor n events behind the newest one.
func (eb *EventBuffer[T]) BacklogCursor(n uint64) uint64 {
	eb.lock.RLock()
	defer eb.lock.RUnlock()

	if n >= eb.counter {
		return 0
	}

	return eb.counter - n
}

// Published returns how many events were put so far.
func (eb *EventBuffer[T]) Published() uint64 {
	eb.lock.RLock()
	defer eb.lock.RUnlock()

	return eb.counter
}
