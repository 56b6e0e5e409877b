// Package securingskies exposes the fusion engine for embedding: load a
// config, build a Runtime, subscribe to asset updates. The cmd/skiesd binary
// is a thin wrapper over this surface.
package securingskies

import (
	"github.com/rwiren/securingskies-platform/internal/adapters/notify"
	"github.com/rwiren/securingskies-platform/internal/adapters/replay"
	"github.com/rwiren/securingskies-platform/internal/app/config"
	"github.com/rwiren/securingskies-platform/internal/app/pipeline"
	"github.com/rwiren/securingskies-platform/internal/domain"
	"github.com/rwiren/securingskies-platform/internal/ports"
)

// Type aliases so consumers can import the module root directly.
type (
	Config        = config.Config
	MQTTConfig    = config.MQTTConfig
	SourcesConfig = config.SourcesConfig
	FusionConfig  = config.FusionConfig
	Policy        = ports.Policy
	Runtime       = pipeline.Runtime
	RuntimeOption = pipeline.RuntimeOption
	ReplayOptions = replay.Options
	Fanout        = notify.Fanout
	Asset         = domain.Asset
	AssetID       = domain.AssetID
	AssetKind     = domain.AssetKind
	SourceFamily  = domain.SourceFamily
	LatencyKPI    = domain.LatencyKPI
	RawMessage    = domain.RawMessage
	Collector     = ports.Collector
	ForensicSink  = ports.ForensicSink
	Notifier      = ports.Notifier
	Observability = ports.Observability
)

// Re-exported sentinel errors.
var ErrUnrecognized = ports.ErrUnrecognized

// LoadConfig reads, defaults and validates a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// NewRuntime bootstraps the default adapters; options override any of them.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	return pipeline.NewRuntime(cfg, opts...)
}

// NewReplayCollector builds a file-backed collector playing a recorded
// mission log.
func NewReplayCollector(opts ReplayOptions) Collector {
	return replay.New(opts, nil)
}

// NewFanout builds the channel-fanout notifier for asset-change consumers.
func NewFanout() *Fanout { return notify.NewFanout() }

// Runtime dependency overrides.
func WithCollector(col Collector) RuntimeOption { return pipeline.WithCollector(col) }

func WithForensicSink(s ForensicSink) RuntimeOption { return pipeline.WithForensicSink(s) }

func WithNotifier(n Notifier) RuntimeOption { return pipeline.WithNotifier(n) }

func WithObservability(o Observability) RuntimeOption { return pipeline.WithObservability(o) }
