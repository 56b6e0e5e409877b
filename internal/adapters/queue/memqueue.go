package queue

import (
	"sync"

	"github.com/rwiren/securingskies-platform/internal/domain"
	"github.com/rwiren/securingskies-platform/internal/ports"
)

// MemQueue is a bounded in-memory queue that preserves FIFO ordering. On
// overflow Enqueue reports false; the caller's policy decides whether to
// block or drop the incoming message — queued items are never displaced.
type MemQueue struct {
	mu   sync.Mutex
	data []domain.RawMessage
	cap  int
}

func NewMemQueue(capacity int) *MemQueue {
	return &MemQueue{
		data: make([]domain.RawMessage, 0, capacity),
		cap:  capacity,
	}
}

func (q *MemQueue) Enqueue(msg domain.RawMessage) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) >= q.cap {
		return false
	}
	q.data = append(q.data, msg)
	return true
}

func (q *MemQueue) DequeueBatch(max int) []domain.RawMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) == 0 {
		return nil
	}
	if max <= 0 || max > len(q.data) {
		max = len(q.data)
	}
	out := make([]domain.RawMessage, max)
	copy(out, q.data[:max])
	q.data = append(q.data[:0], q.data[max:]...)
	return out
}

func (q *MemQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.data)
}

var _ ports.MessageQueue = (*MemQueue)(nil)
