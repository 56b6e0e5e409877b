package pipeline

import (
	"fmt"
	"time"

	"github.com/rwiren/securingskies-platform/internal/domain"
	"github.com/rwiren/securingskies-platform/internal/ports"
)

// RunCollect starts the collector and feeds its messages into the queue under
// the backpressure policy. Delivery runs on a background goroutine until stop
// is closed; anything the collector handed over before the stop is still
// enqueued, then the goroutine exits and the returned channel closes.
func RunCollect(col ports.Collector, q ports.MessageQueue, pol ports.Policy, obs ports.Observability, stop <-chan struct{}) (<-chan struct{}, error) {
	ch := make(chan domain.RawMessage, pol.MaxQueueLen)

	if err := col.Start(ch); err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case m := <-ch:
				if !enqueueWithPolicy(q, m, pol, obs) {
					obs.IncCounter("skies_queue_dropped_total", 1)
				}
			case <-stop:
				// Drain what the collector already delivered so nothing
				// accepted before shutdown is lost.
				for {
					select {
					case m := <-ch:
						if !enqueueWithPolicy(q, m, pol, obs) {
							obs.IncCounter("skies_queue_dropped_total", 1)
						}
					default:
						return
					}
				}
			}
		}
	}()

	return done, nil
}

func enqueueWithPolicy(q ports.MessageQueue, m domain.RawMessage, pol ports.Policy, obs ports.Observability) bool {
	sleep := pol.IdleSleep
	if sleep <= 0 {
		sleep = 5 * time.Millisecond
	}

	for {
		if ok := q.Enqueue(m); ok {
			return true
		}

		switch pol.OnQueueFull {
		case "block":
			time.Sleep(sleep)
		case "drop":
			obs.LogError("queue full", fmt.Errorf("capacity %d exceeded", pol.MaxQueueLen),
				ports.Field{Key: "topic", Value: m.Topic})
			return false
		default:
			obs.LogError("queue policy invalid", fmt.Errorf("policy=%s", pol.OnQueueFull))
			return false
		}
	}
}

// RunFusion is the single-writer loop: it drains the queue in batches and
// feeds each message to the engine in arrival order. A stop signal is honored
// only once the queue is empty, so everything accepted before shutdown is
// still fused.
func RunFusion(e *Engine, q ports.MessageQueue, pol ports.Policy, obs ports.Observability, stop <-chan struct{}) {
	sleep := pol.IdleSleep
	if sleep <= 0 {
		sleep = 5 * time.Millisecond
	}

	for {
		batch := q.DequeueBatch(pol.MaxBatchSize)
		if len(batch) > 0 {
			for _, m := range batch {
				e.Process(m)
			}
			obs.SetGauge("skies_queue_length", float64(q.Len()))
			continue
		}

		select {
		case <-stop:
			return
		default:
			time.Sleep(sleep)
		}
	}
}
