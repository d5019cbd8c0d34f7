package utils

import "sync"

// RingBuffer is a fixed-size, thread-safe buffer of elements of type T.
// Pushing into a full buffer overwrites the oldest element.
// Elements are kept in arrival order, oldest first.
//
//	rb := NewRingBuffer[int](3)
//	rb.Push(1)
//	rb.Push(2)
//	rb.Push(3)
//	rb.Push(4)                // 1 is overwritten
//	fmt.Println(rb.ToSlice()) // [2 3 4]
type RingBuffer[T any] struct {
	data  []T
	count int // number of stored elements
	head  int // index of the oldest element
	mu    sync.RWMutex
}

// NewRingBuffer creates a ring buffer. size must be positive, otherwise it panics.
func NewRingBuffer[T any](size int) *RingBuffer[T] {
	if size <= 0 {
		panic("ring buffer size must be positive")
	}
	return &RingBuffer[T]{data: make([]T, size)}
}

// Push appends item, overwriting the oldest element when the buffer is full.
func (rb *RingBuffer[T]) Push(item T) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	size := len(rb.data)
	rb.data[(rb.head+rb.count)%size] = item
	if rb.count < size {
		rb.count++
	} else {
		rb.head = (rb.head + 1) % size
	}
}

// Len returns the number of stored elements, in [0, Cap()].
func (rb *RingBuffer[T]) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}

// Cap returns the capacity of the buffer.
func (rb *RingBuffer[T]) Cap() int {
	return len(rb.data)
}

// At returns the i-th element, 0 being the oldest. It panics when i is outside [0, Len()).
func (rb *RingBuffer[T]) At(i int) T {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	if i < 0 || i >= rb.count {
		panic("index out of range")
	}
	return rb.data[(rb.head+i)%len(rb.data)]
}

// ToSlice returns a copy of the elements, oldest first. An empty buffer gives an empty slice.
func (rb *RingBuffer[T]) ToSlice() []T {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	result := make([]T, rb.count)
	for i := range result {
		result[i] = rb.data[(rb.head+i)%len(rb.data)]
	}
	return result
}
