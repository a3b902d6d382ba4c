package ringbuffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushOverwritesOldest(t *testing.T) {
	const capacity = 5
	b := New[int](capacity)

	for i := 0; i < capacity+3; i++ {
		b.Push(i)
	}

	require.Equal(t, capacity, b.Size())
	// After capacity+3 pushes of 0..7, the buffer holds 3..7.
	assert.Equal(t, 3, b.At(0))
	assert.Equal(t, 7, b.At(capacity-1))
}

func TestAtIndexesFromOldestAfterOverwrite(t *testing.T) {
	b := New[string](3)
	b.Push("a")
	b.Push("b")
	b.Push("c")
	b.Push("d")

	assert.Equal(t, "b", b.At(0))
	assert.Equal(t, "c", b.At(1))
	assert.Equal(t, "d", b.At(2))
}

func TestPopFront(t *testing.T) {
	b := New[int](4)
	b.Push(1)
	b.Push(2)
	b.Push(3)

	b.PopFront()
	require.Equal(t, 2, b.Size())
	assert.Equal(t, 2, b.At(0))
}

func TestSetMutatesInPlace(t *testing.T) {
	b := New[int](3)
	b.Push(10)
	b.Push(20)
	b.Set(1, 99)
	assert.Equal(t, 99, b.At(1))
}
