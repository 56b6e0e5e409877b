package queue

import (
	"testing"

	"github.com/rwiren/securingskies-platform/internal/domain"
)

func TestMemQueueEnqueueDequeueOrder(t *testing.T) {
	q := NewMemQueue(4)

	m1 := domain.RawMessage{Topic: "owntracks/a"}
	m2 := domain.RawMessage{Topic: "dronetag/b"}

	if !q.Enqueue(m1) || !q.Enqueue(m2) {
		t.Fatalf("expected successful enqueue")
	}

	batch := q.DequeueBatch(1)
	if len(batch) != 1 || batch[0].Topic != "owntracks/a" {
		t.Fatalf("unexpected first batch: %+v", batch)
	}

	remaining := q.DequeueBatch(10)
	if len(remaining) != 1 || remaining[0].Topic != "dronetag/b" {
		t.Fatalf("unexpected second batch: %+v", remaining)
	}

	if q.Len() != 0 {
		t.Fatalf("queue should be empty, got %d", q.Len())
	}
}

func TestMemQueueCapacity(t *testing.T) {
	q := NewMemQueue(2)

	msg := domain.RawMessage{Topic: "owntracks/a"}

	if !q.Enqueue(msg) || !q.Enqueue(msg) {
		t.Fatalf("expected enqueue within capacity")
	}
	if q.Enqueue(msg) {
		t.Fatalf("enqueue should fail when capacity exceeded")
	}

	q.DequeueBatch(1)
	if !q.Enqueue(msg) {
		t.Fatalf("expected enqueue to succeed after dequeue")
	}
}
