package fifoqueue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFifoQueue_Order(t *testing.T) {
	queue, err := NewFifoQueue()
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.True(t, queue.Push(i))
	}
	require.Equal(t, 10, queue.Len())

	for i := 0; i < 10; i++ {
		element, ok := queue.Pop()
		require.True(t, ok)
		require.Equal(t, i, element)
	}
	_, ok := queue.Pop()
	require.False(t, ok)
	require.Zero(t, queue.Len())
}

func TestFifoQueue_Capacity(t *testing.T) {
	queue, err := NewFifoQueue(WithCapacity(3))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.True(t, queue.Push(i))
	}
	// over capacity, the push is refused
	require.False(t, queue.Push(3))
	require.Equal(t, 3, queue.Len())

	element, ok := queue.Pop()
	require.True(t, ok)
	require.Equal(t, 0, element)
	require.True(t, queue.Push(3))
}

func TestFifoQueue_InvalidOptions(t *testing.T) {
	_, err := NewFifoQueue(WithCapacity(0))
	require.Error(t, err)
	_, err = NewFifoQueue(WithLengthObserver(nil))
	require.Error(t, err)
}

func TestFifoQueue_LengthObserver(t *testing.T) {
	var mu sync.Mutex
	var lengths []int
	queue, err := NewFifoQueue(WithLengthObserver(func(l int) {
		mu.Lock()
		defer mu.Unlock()
		lengths = append(lengths, l)
	}))
	require.NoError(t, err)

	queue.Push("a")
	queue.Push("b")
	queue.Pop()
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []int{1, 2, 1}, lengths)
}

func TestFifoQueue_Concurrent(t *testing.T) {
	queue, err := NewFifoQueue()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				queue.Push(j)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 800, queue.Len())
}
