// Package fifoqueue provides the bounded FIFO queue backing the consensus
// event loop. Elements pushed beyond capacity are silently dropped, which is
// the intended backpressure for untrusted inbound messages: the protocol
// re-delivers anything that still matters.
package fifoqueue

import (
	"fmt"
	mathbits "math/bits"
	"sync"

	"github.com/ef-ds/deque"
)

// QueueLengthObserver is called with the new length every time the queue's
// length changes. Must be non-blocking.
type QueueLengthObserver func(int)

// FifoQueue is a FIFO queue with a maximum capacity. Safe for concurrent
// use.
type FifoQueue struct {
	mu             sync.RWMutex
	queue          deque.Deque
	maxCapacity    int
	lengthObserver QueueLengthObserver
}

// ConstructorOption customizes a FifoQueue at construction time.
type ConstructorOption func(*FifoQueue) error

// WithCapacity caps the number of elements the queue can hold. The default
// is the largest int value.
func WithCapacity(capacity int) ConstructorOption {
	return func(queue *FifoQueue) error {
		if capacity < 1 {
			return fmt.Errorf("capacity for fifo queue must be positive")
		}
		queue.maxCapacity = capacity
		return nil
	}
}

// WithLengthObserver registers a callback invoked with the queue length
// after every change. Must be non-blocking.
func WithLengthObserver(callback QueueLengthObserver) ConstructorOption {
	return func(queue *FifoQueue) error {
		if callback == nil {
			return fmt.Errorf("nil is not a valid QueueLengthObserver")
		}
		queue.lengthObserver = callback
		return nil
	}
}

// NewFifoQueue creates an empty queue.
func NewFifoQueue(options ...ConstructorOption) (*FifoQueue, error) {
	queue := &FifoQueue{
		maxCapacity:    1<<(mathbits.UintSize-1) - 1,
		lengthObserver: func(int) {},
	}
	for _, opt := range options {
		err := opt(queue)
		if err != nil {
			return nil, fmt.Errorf("could not apply option to fifo queue: %w", err)
		}
	}
	return queue, nil
}

// Push appends the element to the tail of the queue. Returns false if the
// queue is at capacity, in which case the element is dropped.
func (q *FifoQueue) Push(element interface{}) bool {
	length, pushed := q.push(element)
	if pushed {
		q.lengthObserver(length + 1)
	}
	return pushed
}

func (q *FifoQueue) push(element interface{}) (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	length := q.queue.Len()
	if length < q.maxCapacity {
		q.queue.PushBack(element)
		return length, true
	}
	return length, false
}

// Pop removes and returns the head of the queue, or (nil, false) if the
// queue is empty.
func (q *FifoQueue) Pop() (interface{}, bool) {
	element, length, ok := q.pop()
	if !ok {
		return nil, false
	}
	q.lengthObserver(length)
	return element, true
}

func (q *FifoQueue) pop() (interface{}, int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	element, ok := q.queue.PopFront()
	return element, q.queue.Len(), ok
}

// Len returns the current length of the queue.
func (q *FifoQueue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return q.queue.Len()
}
