// Package notify fans asset mutations out to subscribers over buffered
// channels. The fusion loop calls AssetChanged once per mutation; a consumer
// that cannot keep up misses updates instead of slowing fusion down.
package notify

import (
	"sync"

	"github.com/rwiren/securingskies-platform/internal/domain"
	"github.com/rwiren/securingskies-platform/internal/ports"
)

const defaultBuffer = 64

type Fanout struct {
	mu   sync.Mutex
	subs []chan domain.Asset
}

func NewFanout() *Fanout { return &Fanout{} }

// Subscribe registers a consumer and returns its channel. Each subscriber
// gets every update it is fast enough to take; there is no replay.
func (f *Fanout) Subscribe() <-chan domain.Asset {
	ch := make(chan domain.Asset, defaultBuffer)
	f.mu.Lock()
	f.subs = append(f.subs, ch)
	f.mu.Unlock()
	return ch
}

// AssetChanged offers the asset to every subscriber without blocking.
func (f *Fanout) AssetChanged(a domain.Asset) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		select {
		case ch <- a:
		default:
		}
	}
}

// Close closes all subscriber channels. Callers must not invoke AssetChanged
// afterwards.
func (f *Fanout) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		close(ch)
	}
	f.subs = nil
}

var _ ports.Notifier = (*Fanout)(nil)
