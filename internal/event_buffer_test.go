package internal

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBufferOrder(t *testing.T) {
	eb := NewEventBuffer[int](4)
	var cancel atomic.Bool

	for i := 0; i < 3; i++ {
		assert.EqualValues(t, i, eb.Put(i*10))
	}

	for cursor := uint64(0); cursor < 3; cursor++ {
		seq, val, ok := eb.Get(cursor, &cancel)
		require.True(t, ok)
		assert.Equal(t, cursor, seq)
		assert.Equal(t, int(cursor)*10, val)
	}

	assert.EqualValues(t, 3, eb.Published())
}

func TestEventBufferOverrun(t *testing.T) {
	eb := NewEventBuffer[int](3) // rounded up to 4
	var cancel atomic.Bool

	for i := 0; i < 10; i++ {
		eb.Put(i)
	}

	// A reader left at 0 skips to the oldest event still held
	seq, val, ok := eb.Get(0, &cancel)
	require.True(t, ok)
	assert.EqualValues(t, 6, seq)
	assert.Equal(t, 6, val)

	assert.EqualValues(t, 8, eb.BacklogCursor(2))
	assert.EqualValues(t, 0, eb.BacklogCursor(100))
}

func TestEventBufferBlocksUntilPut(t *testing.T) {
	eb := NewEventBuffer[string](4)
	var cancel atomic.Bool

	got := make(chan string)
	go func() {
		_, val, _ := eb.Get(0, &cancel)
		got <- val
	}()

	select {
	case <-got:
		t.Fatal("Get returned before anything was put")
	case <-time.After(20 * time.Millisecond):
	}

	eb.Put("first")
	assert.Equal(t, "first", <-got)
}

func TestEventBufferCancel(t *testing.T) {
	eb := NewEventBuffer[int](4)
	var cancel atomic.Bool

	done := make(chan bool)
	go func() {
		_, _, ok := eb.Get(0, &cancel)
		done <- ok
	}()

	cancel.Store(true)
	eb.WakeListeners()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled reader did not return")
	}
}
