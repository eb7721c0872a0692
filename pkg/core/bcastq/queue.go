// Package bcastq holds encoded packets between Broadcast and the send workers.
package bcastq

import "sync"

// Queue is an unbounded FIFO of encoded packets. Dequeue blocks until an item
// is available or the queue is closed and drained.
type Queue struct {
    mu     sync.Mutex
    cond   *sync.Cond
    items  [][]byte
    head   int
    closed bool
}

func New() *Queue {
    q := &Queue{}
    q.cond = sync.NewCond(&q.mu)
    return q
}

// Enqueue appends b. It reports false when the queue is closed.
func (q *Queue) Enqueue(b []byte) bool {
    q.mu.Lock()
    defer q.mu.Unlock()
    if q.closed { return false }
    q.items = append(q.items, b)
    q.cond.Signal()
    return true
}

// Dequeue pops the oldest item. ok is false only once the queue is closed
// and every item enqueued before Close has been handed out.
func (q *Queue) Dequeue() (b []byte, ok bool) {
    q.mu.Lock()
    defer q.mu.Unlock()
    for q.head == len(q.items) && !q.closed { q.cond.Wait() }
    if q.head == len(q.items) { return nil, false }
    b = q.items[q.head]
    q.items[q.head] = nil
    q.head++
    if q.head == len(q.items) {
        q.items = q.items[:0]
        q.head = 0
    } else if q.head > 1024 && q.head*2 > len(q.items) {
        // compact once the consumed prefix dominates
        n := copy(q.items, q.items[q.head:])
        q.items = q.items[:n]
        q.head = 0
    }
    return b, true
}

// Close stops accepting items and wakes every blocked Dequeue. Queued items
// remain available. Close is idempotent.
func (q *Queue) Close() {
    q.mu.Lock()
    q.closed = true
    q.cond.Broadcast()
    q.mu.Unlock()
}

func (q *Queue) Len() int {
    q.mu.Lock(); defer q.mu.Unlock()
    return len(q.items) - q.head
}

func (q *Queue) Closed() bool {
    q.mu.Lock(); defer q.mu.Unlock()
    return q.closed
}
