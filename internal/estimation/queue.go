package estimation

import "sync"

// Queue is the per-channel buffer of pending update messages. Producers push
// from arbitrary goroutines; the owning channel's Process drains from the
// tick loop. The mutex around the slice is the only synchronisation point
// shared between producers and the consumer.
type Queue[U any] struct {
	mu    sync.Mutex
	items []U
}

// NewQueue returns an empty queue.
func NewQueue[U any]() *Queue[U] {
	return &Queue[U]{}
}

// Push appends one update. Safe for concurrent use; blocks the producer only
// for the duration of the append.
func (q *Queue[U]) Push(u U) {
	q.mu.Lock()
	q.items = append(q.items, u)
	q.mu.Unlock()
}

// Drain removes and returns all pending updates in FIFO order, leaving the
// queue empty. Updates pushed concurrently with a Drain land in the next one.
func (q *Queue[U]) Drain() []U {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()
	return items
}

// Len returns the number of pending updates.
func (q *Queue[U]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
