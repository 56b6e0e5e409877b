package ports

import "time"

// Policy bundles the pipeline's backpressure and batching knobs.
type Policy struct {
	MaxQueueLen  int           `yaml:"max_queue_len"`
	MaxBatchSize int           `yaml:"max_batch_size"`
	IdleSleep    time.Duration `yaml:"idle_sleep"`

	// OnQueueFull is "block" or "drop". Either way queued messages are
	// never reordered; drop discards the incoming message, not the oldest.
	OnQueueFull string `yaml:"on_queue_full"`
}
