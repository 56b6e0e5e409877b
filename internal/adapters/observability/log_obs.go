package observability

import (
	"log"

	"github.com/rwiren/securingskies-platform/internal/ports"
)

// LogObs is the log-only backend: same logging surface as PromObs, no metric
// registration. Used by tools that must not touch the process-wide registry.
type LogObs struct{}

func NewLogObs() *LogObs { return &LogObs{} }

func (LogObs) LogInfo(msg string, fields ...ports.Field) {
	log.Printf("INFO: %s%s", msg, formatFields(fields))
}

func (LogObs) LogError(msg string, err error, fields ...ports.Field) {
	if err != nil {
		log.Printf("ERROR: %s: %v%s", msg, err, formatFields(fields))
	}
}

func (LogObs) LogCritical(msg string, err error, fields ...ports.Field) {
	if err != nil {
		log.Printf("CRITICAL: %s: %v%s", msg, err, formatFields(fields))
	}
}

func (LogObs) IncCounter(string, float64)     {}
func (LogObs) ObserveLatency(string, float64) {}
func (LogObs) SetGauge(string, float64)       {}

var _ ports.Observability = LogObs{}
