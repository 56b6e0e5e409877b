package ports

import "github.com/rwiren/securingskies-platform/internal/domain"

// MessageQueue buffers raw messages between transport workers and the single
// fusion writer. Implementations must preserve FIFO ordering; backpressure
// policy decides what happens on overflow, never reordering.
type MessageQueue interface {
	Enqueue(msg domain.RawMessage) bool
	DequeueBatch(max int) []domain.RawMessage
	Len() int
}
