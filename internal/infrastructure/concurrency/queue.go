package concurrency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/eapache/queue"
)

var (
	// ErrQueueClosed is returned by Push after Close, and by Pop once a closed
	// queue has been drained.
	ErrQueueClosed = errors.New("queue closed")

	// ErrQueueOverflow is returned by Push when a bounded queue is full and the
	// overflow policy is OverflowClose. The queue is closed as a side effect.
	ErrQueueOverflow = errors.New("queue overflow")
)

// OverflowPolicy decides what Push does when a bounded queue is full.
type OverflowPolicy string

const (
	// OverflowBlock makes Push wait for the consumer to free a slot.
	OverflowBlock OverflowPolicy = "block"
	// OverflowDropOldest evicts the head of the queue to make room.
	OverflowDropOldest OverflowPolicy = "drop_oldest"
	// OverflowClose closes the queue and fails the Push.
	OverflowClose OverflowPolicy = "close"
)

// ParseOverflowPolicy converts a config value into an OverflowPolicy.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch p := OverflowPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case OverflowBlock, OverflowDropOldest, OverflowClose:
		return p, nil
	case "":
		return OverflowClose, nil
	default:
		return "", fmt.Errorf("unknown overflow policy %q", s)
	}
}

// Queue is an ordered multi-producer/single-consumer FIFO. A capacity of zero
// makes it unbounded; otherwise the overflow policy applies when it is full.
type Queue[T any] struct {
	mu       sync.Mutex
	items    *queue.Queue
	capacity int
	policy   OverflowPolicy
	closed   bool
	dropped  uint64

	ready    chan struct{} // signalled when an item is added or the queue closes
	space    chan struct{} // signalled when the consumer removes an item
	closedCh chan struct{}
}

// NewQueue creates a queue with the given capacity and overflow policy.
func NewQueue[T any](capacity int, policy OverflowPolicy) *Queue[T] {
	if capacity < 0 {
		capacity = 0
	}
	if policy == "" {
		policy = OverflowClose
	}
	return &Queue[T]{
		items:    queue.New(),
		capacity: capacity,
		policy:   policy,
		ready:    make(chan struct{}, 1),
		space:    make(chan struct{}, 1),
		closedCh: make(chan struct{}),
	}
}

// Push appends item to the tail of the queue.
func (q *Queue[T]) Push(ctx context.Context, item T) error {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return ErrQueueClosed
		}

		if q.capacity == 0 || q.items.Length() < q.capacity {
			q.items.Add(item)
			q.mu.Unlock()
			signal(q.ready)
			return nil
		}

		switch q.policy {
		case OverflowDropOldest:
			q.items.Remove()
			q.dropped++
			q.items.Add(item)
			q.mu.Unlock()
			signal(q.ready)
			return nil
		case OverflowClose:
			q.closeLocked()
			q.mu.Unlock()
			return ErrQueueOverflow
		}
		q.mu.Unlock()

		select {
		case <-q.space:
		case <-q.closedCh:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Pop removes and returns the head of the queue, waiting until an item is
// available. Items pushed before Close are still returned; ErrQueueClosed is
// reported only once the queue is closed and empty.
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	var zero T
	for {
		q.mu.Lock()
		if q.items.Length() > 0 {
			item := q.items.Remove().(T)
			q.mu.Unlock()
			signal(q.space)
			return item, nil
		}
		if q.closed {
			q.mu.Unlock()
			return zero, ErrQueueClosed
		}
		q.mu.Unlock()

		select {
		case <-q.ready:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// Close stops accepting new items. It is safe to call more than once.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closeLocked()
	q.mu.Unlock()
}

func (q *Queue[T]) closeLocked() {
	if q.closed {
		return
	}
	q.closed = true
	close(q.closedCh)
	signal(q.ready)
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Length()
}

// Dropped returns how many items OverflowDropOldest has evicted.
func (q *Queue[T]) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Closed reports whether Close has been called.
func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
