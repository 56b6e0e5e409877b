package ports

import (
	"errors"

	"github.com/rwiren/securingskies-platform/internal/domain"
)

// ErrUnrecognized is returned when a classifier cannot extract a single
// usable field from a message. The pipeline logs and drops; never fatal.
var ErrUnrecognized = errors.New("unrecognized telemetry")

// Classifier turns one wire-shape family into normalized records. A single
// message may describe several physical units (a controller OSD carries its
// drone list), so classification yields a slice.
//
// Classifiers must convert every physical quantity to SI before returning;
// source-native units never leak into a NormalizedRecord.
type Classifier interface {
	Family() domain.SourceFamily
	Classify(msg domain.RawMessage) ([]*domain.NormalizedRecord, error)
}
