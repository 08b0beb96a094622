package cflist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIteratorAdvance(t *testing.T) {
	list := List[int]{}
	fill(&list, 3)

	it := list.Begin()

	prev := it.Advance()
	assert.Equal(t, 3, prev.Value())
	assert.Equal(t, 2, it.Value())

	next := it.Next()
	assert.Equal(t, 1, next.Value())
	assert.Equal(t, 2, it.Value())

	it.Advance()
	it.Advance()
	assert.True(t, it.IsEnd())
	assert.True(t, it == list.End())
	assert.False(t, it.Valid())
}

func TestIteratorEquality(t *testing.T) {
	list := List[int]{}
	list.PushFront(1)
	list.PushFront(1)

	a := list.Begin()
	b := list.Begin()
	c := a.Next()

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c), "equal values but different nodes")
	assert.True(t, a.Const().Equal(list.CBegin()))
	assert.True(t, list.End().Equal(Iterator[int]{}))
}

func TestIteratorRef(t *testing.T) {
	list := List[string]{}
	list.PushFront("a")

	it := list.Begin()
	*it.Ref() = "b"

	front, ok := list.Front()
	require.True(t, ok)
	assert.Equal(t, "b", front)
	assert.Equal(t, "b", list.CBegin().Value())
}

func TestIteratorEndPanics(t *testing.T) {
	list := List[int]{}

	assert.Panics(t, func() { list.End().Value() })
	assert.Panics(t, func() { list.CEnd().Next() })
}

func TestAllSkipsRemoved(t *testing.T) {
	list := List[int]{}
	fill(&list, 5)

	var got []int
	for v := range list.All() {
		got = append(got, v)
	}
	assert.Equal(t, []int{5, 4, 3, 2, 1}, got)

	require.True(t, list.EraseAfter(list.Begin()))

	got = got[:0]
	for v := range list.All() {
		got = append(got, v)
		if v == 3 {
			break
		}
	}
	assert.Equal(t, []int{5, 3}, got)
}

func TestPositionFromEitherIterator(t *testing.T) {
	list := List[int]{}
	list.PushFront(0)

	require.True(t, list.InsertAfter(list.Begin(), 2))
	require.True(t, list.InsertAfter(list.CBegin(), 1))

	var got []int
	for v := range list.All() {
		got = append(got, v)
	}
	assert.Equal(t, []int{0, 1, 2}, got)
}
