// Package channel provides the unbounded, multi-producer pipes that connect
// nodes in a simulated network.
//
// A channel is created as a Sender/Receiver pair. Both endpoints are plain
// values that share the same queue, so copying an endpoint clones it. Send
// never blocks: there is no backpressure, and a stalled consumer makes its
// queue grow without bound. Messages from a single producer are received in
// send order; no ordering holds across producers.
package channel

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Send after Close, and by Recv once a closed queue
// has been drained.
var ErrClosed = errors.New("channel closed")

var closedSignal = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

type queue[T any] struct {
	mu     sync.Mutex
	items  []T
	head   int
	closed bool
	// ready is closed and replaced whenever the queue goes from empty to
	// non-empty or gets closed, waking every blocked receiver.
	ready chan struct{}
}

func newQueue[T any]() *queue[T] {
	return &queue[T]{ready: make(chan struct{})}
}

func (q *queue[T]) push(v T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	q.items = append(q.items, v)
	if len(q.items)-q.head == 1 {
		close(q.ready)
		q.ready = make(chan struct{})
	}
	return nil
}

// pop returns the next item, or a wait channel when the queue is empty.
func (q *queue[T]) pop() (v T, ok bool, wait <-chan struct{}, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head < len(q.items) {
		v = q.items[q.head]
		var zero T
		q.items[q.head] = zero
		q.head++
		if q.head == len(q.items) {
			q.items = q.items[:0]
			q.head = 0
		} else if q.head > 64 && q.head*2 > len(q.items) {
			n := copy(q.items, q.items[q.head:])
			q.items = q.items[:n]
			q.head = 0
		}
		return v, true, nil, nil
	}
	if q.closed {
		return v, false, nil, ErrClosed
	}
	return v, false, q.ready, nil
}

func (q *queue[T]) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.ready)
	q.ready = make(chan struct{})
}

// signal returns a channel that is closed once an item is available or the
// queue is closed.
func (q *queue[T]) signal() <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head < len(q.items) || q.closed {
		return closedSignal
	}
	return q.ready
}

func (q *queue[T]) drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && q.head == len(q.items)
}

func (q *queue[T]) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Sender is the send endpoint of a channel. The zero value is not usable.
type Sender[T any] struct {
	q *queue[T]
}

// Send enqueues v. It never blocks.
func (s Sender[T]) Send(v T) error {
	if s.q == nil {
		return ErrClosed
	}
	return s.q.push(v)
}

// Close closes the channel for every clone of both endpoints.
func (s Sender[T]) Close() {
	if s.q != nil {
		s.q.close()
	}
}

// Valid reports whether the endpoint was obtained from New.
func (s Sender[T]) Valid() bool {
	return s.q != nil
}

// Receiver is the receive endpoint of a channel. Clones compete for items;
// each item is delivered to exactly one Recv call.
type Receiver[T any] struct {
	q *queue[T]
}

// Recv blocks until an item is available, the channel is closed and drained,
// or ctx is done.
func (r Receiver[T]) Recv(ctx context.Context) (T, error) {
	var zero T
	if r.q == nil {
		return zero, ErrClosed
	}
	for {
		v, ok, wait, err := r.q.pop()
		if ok {
			return v, nil
		}
		if err != nil {
			return zero, err
		}
		select {
		case <-wait:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// TryRecv returns the next item without blocking.
func (r Receiver[T]) TryRecv() (T, bool) {
	var zero T
	if r.q == nil {
		return zero, false
	}
	v, ok, _, _ := r.q.pop()
	if !ok {
		return zero, false
	}
	return v, true
}

// Ready returns a channel that is closed once Recv would not block. It lets a
// caller wait on several receivers in one select; the zero value never fires.
// Another clone may take the item first, so always follow up with TryRecv.
func (r Receiver[T]) Ready() <-chan struct{} {
	if r.q == nil {
		return nil
	}
	return r.q.signal()
}

// Closed reports whether the channel is closed and has no items left.
func (r Receiver[T]) Closed() bool {
	return r.q == nil || r.q.drained()
}

// Len returns the number of queued items.
func (r Receiver[T]) Len() int {
	if r.q == nil {
		return 0
	}
	return r.q.size()
}

// Valid reports whether the endpoint was obtained from New.
func (r Receiver[T]) Valid() bool {
	return r.q != nil
}

// Feeds reports whether s sends into this receiver.
func (r Receiver[T]) Feeds(s Sender[T]) bool {
	return r.q != nil && r.q == s.q
}

// New creates an unbounded channel.
func New[T any]() (Sender[T], Receiver[T]) {
	q := newQueue[T]()
	return Sender[T]{q: q}, Receiver[T]{q: q}
}

// Pair holds both endpoints of one channel.
type Pair[T any] struct {
	Sender   Sender[T]
	Receiver Receiver[T]
}

// NewPair creates an unbounded channel and returns both endpoints together.
func NewPair[T any]() Pair[T] {
	s, r := New[T]()
	return Pair[T]{Sender: s, Receiver: r}
}
