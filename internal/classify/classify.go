// Package classify maps raw bus messages onto normalized telemetry records.
// One classifier per vendor wire-shape family; selection is capability-based
// via topic filters, so adding a source never touches existing families.
package classify

import (
	"strings"

	"github.com/rwiren/securingskies-platform/internal/domain"
	"github.com/rwiren/securingskies-platform/internal/ports"
)

type route struct {
	filter     string
	classifier ports.Classifier
}

// Registry routes messages to the classifier owning their topic family.
type Registry struct {
	routes []route
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register binds topic filters (MQTT wildcard syntax) to a classifier.
// Filters are consulted in registration order; first match wins.
func (r *Registry) Register(filters []string, c ports.Classifier) {
	for _, f := range filters {
		r.routes = append(r.routes, route{filter: f, classifier: c})
	}
}

// Classify dispatches the message to its family's classifier. A topic no
// filter matches, or a payload the owning classifier rejects, yields
// ports.ErrUnrecognized.
func (r *Registry) Classify(msg domain.RawMessage) ([]*domain.NormalizedRecord, error) {
	for _, rt := range r.routes {
		if TopicMatches(rt.filter, msg.Topic) {
			return rt.classifier.Classify(msg)
		}
	}
	return nil, ports.ErrUnrecognized
}

// TopicMatches implements MQTT filter matching with "+" (single level) and
// "#" (trailing multi-level) wildcards.
func TopicMatches(filter, topic string) bool {
	fparts := strings.Split(filter, "/")
	tparts := strings.Split(topic, "/")

	for i, fp := range fparts {
		if fp == "#" {
			return true
		}
		if i >= len(tparts) {
			return false
		}
		if fp != "+" && fp != tparts[i] {
			return false
		}
	}
	return len(fparts) == len(tparts)
}
