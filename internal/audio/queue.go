package audio

import (
	"sync"
	"time"
)

// FrameQueue hands captured chunks from the capture callback to the
// aggregation loop. Push never blocks: the callback runs on a real-time
// audio thread and must not stall, so the queue grows instead of applying
// backpressure. Chunks come out in capture order.
type FrameQueue struct {
	mu     sync.Mutex
	chunks []Chunk
	notify chan struct{}
}

// NewFrameQueue creates an empty queue.
func NewFrameQueue() *FrameQueue {
	return &FrameQueue{notify: make(chan struct{}, 1)}
}

// Push appends a chunk without blocking.
func (q *FrameQueue) Push(c Chunk) {
	q.mu.Lock()
	q.chunks = append(q.chunks, c)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Pop removes the oldest chunk, waiting up to timeout for one to arrive.
// The boolean is false when the queue stayed empty. A non-positive timeout
// makes Pop return immediately with whatever is queued.
func (q *FrameQueue) Pop(timeout time.Duration) (Chunk, bool) {
	deadline := time.Now().Add(timeout)
	for {
		q.mu.Lock()
		if len(q.chunks) > 0 {
			c := q.chunks[0]
			q.chunks = q.chunks[1:]
			q.mu.Unlock()
			return c, true
		}
		q.mu.Unlock()

		wait := time.Until(deadline)
		if wait <= 0 {
			return Chunk{}, false
		}
		timer := time.NewTimer(wait)
		select {
		case <-q.notify:
			timer.Stop()
		case <-timer.C:
			return Chunk{}, false
		}
	}
}

// Len returns the number of queued chunks.
func (q *FrameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.chunks)
}
