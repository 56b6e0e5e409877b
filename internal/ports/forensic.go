package ports

import (
	"time"

	"github.com/rwiren/securingskies-platform/internal/domain"
)

// BlackBox receives every raw message for append-only mission recording.
// Record must never block the fusion path and never fail it.
type BlackBox interface {
	Record(topic string, payload []byte, ts time.Time)
	Close() error
}

// ForensicSink receives successfully classified records for long-term
// storage. The engine offers batches asynchronously; a slow or failing sink
// loses batches, it never stalls fusion.
type ForensicSink interface {
	WriteBatch(records []*domain.NormalizedRecord) error
	Name() string
}
