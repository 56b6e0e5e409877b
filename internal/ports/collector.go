package ports

import "github.com/rwiren/securingskies-platform/internal/domain"

// Collector feeds raw transport messages into the pipeline. Implementations
// wrap the MQTT bus, a recorded mission log, or test fixtures.
type Collector interface {
	Start(out chan<- domain.RawMessage) error
	Stop() error
}
