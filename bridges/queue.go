package bridges

import (
	"sync"

	"github.com/eapache/queue"
	"github.com/reusee/botrun/frames"
)

// SendQueue is an unbounded FIFO of outbound frames. The front item stays in place until Pop, so an undelivered frame is retried first.
type SendQueue struct {
	mu     sync.Mutex
	items  *queue.Queue
	notify chan struct{}
}

func NewSendQueue() *SendQueue {
	return &SendQueue{
		items:  queue.New(),
		notify: make(chan struct{}, 1),
	}
}

// Push never blocks.
func (q *SendQueue) Push(frame frames.Frame) {
	q.mu.Lock()
	q.items.Add(frame)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *SendQueue) Peek() (frames.Frame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.items.Length() == 0 {
		return frames.Frame{}, false
	}
	return q.items.Peek().(frames.Frame), true
}

func (q *SendQueue) Pop() (frames.Frame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.items.Length() == 0 {
		return frames.Frame{}, false
	}
	return q.items.Remove().(frames.Frame), true
}

func (q *SendQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Length()
}

// Ready is signaled after pushes. A receive may be spurious; callers re-check with Peek.
func (q *SendQueue) Ready() <-chan struct{} {
	return q.notify
}
