// Package pipeline wires classification, resolution, fusion and KPI
// derivation into the single-writer loop that owns all store mutation.
package pipeline

import (
	"errors"
	"time"

	"github.com/rwiren/securingskies-platform/internal/classify"
	"github.com/rwiren/securingskies-platform/internal/domain"
	"github.com/rwiren/securingskies-platform/internal/geo"
	"github.com/rwiren/securingskies-platform/internal/latency"
	"github.com/rwiren/securingskies-platform/internal/ports"
	"github.com/rwiren/securingskies-platform/internal/resolve"
	"github.com/rwiren/securingskies-platform/internal/store"
)

var errForensicBacklog = errors.New("forensic backlog full")

// Deps carries the engine's collaborators. Recorder, Forensic and Notifier
// are optional; a nil value disables that surface.
type Deps struct {
	Registry *classify.Registry
	Resolver *resolve.Resolver
	Store    *store.TelemetryStore
	Latency  *latency.Calculator
	Obs      ports.Observability

	Recorder ports.BlackBox
	Forensic ports.ForensicSink
	Notifier ports.Notifier
}

// Engine processes raw messages one at a time. It is not safe for concurrent
// Process calls: the fusion loop is the single writer, everything downstream
// of the queue runs on one goroutine.
type Engine struct {
	deps Deps

	forensicCh   chan []*domain.NormalizedRecord
	forensicDone chan struct{}
}

func NewEngine(deps Deps) *Engine {
	e := &Engine{deps: deps}
	if deps.Forensic != nil {
		e.forensicCh = make(chan []*domain.NormalizedRecord, 64)
		e.forensicDone = make(chan struct{})
		go e.forensicLoop()
	}
	return e
}

// Process runs one raw message through the full fusion path. Every failure is
// fail-soft: the message is counted and dropped, the loop never stops.
func (e *Engine) Process(msg domain.RawMessage) {
	if e.deps.Recorder != nil {
		e.deps.Recorder.Record(msg.Topic, msg.Payload, msg.ReceiptTime)
	}

	records, err := e.deps.Registry.Classify(msg)
	if err != nil {
		if errors.Is(err, ports.ErrUnrecognized) {
			e.deps.Obs.IncCounter("skies_messages_unrecognized_total", 1)
		} else {
			e.deps.Obs.LogError("classify failed", err, ports.Field{Key: "topic", Value: msg.Topic})
			e.deps.Obs.IncCounter("skies_messages_unrecognized_total", 1)
		}
		return
	}
	if len(records) == 0 {
		return
	}
	e.deps.Obs.IncCounter("skies_records_classified_total", float64(len(records)))

	start := time.Now()
	for _, rec := range records {
		e.fuse(rec)
	}
	e.deps.Obs.ObserveLatency("skies_fusion_latency_seconds", time.Since(start).Seconds())

	e.offerForensic(records)
}

func (e *Engine) fuse(rec *domain.NormalizedRecord) {
	if rec.TimestampMalformed {
		e.deps.Obs.IncCounter("skies_malformed_timestamps_total", 1)
	}

	snap := e.deps.Store.Snapshot(rec.ReceiptTime)
	dec := e.deps.Resolver.Resolve(rec, snap)
	if dec.Ambiguous {
		e.deps.Obs.IncCounter("skies_ambiguous_bindings_total", 1)
	}

	asset := e.deps.Store.Upsert(dec.ID, rec)
	if dec.Bound {
		e.deps.Store.BindIdentity(dec.ID, rec.AssetHint)
		asset.ControllerBound = true
		if asset.HomeDistanceM == nil {
			if d, ok := pairDistance(rec, snap[dec.ID]); ok {
				e.deps.Store.SetHomeDistance(dec.ID, d)
				asset.HomeDistanceM = &d
			}
		}
		e.deps.Obs.LogInfo("pair correlated",
			ports.Field{Key: "asset", Value: string(dec.ID)},
			ports.Field{Key: "hint", Value: rec.AssetHint})
	}
	if dec.Created {
		e.deps.Obs.LogInfo("asset created",
			ports.Field{Key: "asset", Value: string(dec.ID)},
			ports.Field{Key: "family", Value: string(rec.Family)},
			ports.Field{Key: "kind", Value: string(rec.Kind)})
	}

	for _, kpi := range e.deps.Latency.Compute(rec) {
		e.deps.Store.AttachKPI(dec.ID, kpi)
		asset.KPIs[kpi.Kind] = kpi
		if kpi.Kind == domain.KPINetwork {
			e.deps.Obs.ObserveLatency("skies_network_kpi_seconds", kpi.Seconds)
			if kpi.LowConfidence {
				e.deps.Obs.IncCounter("skies_clock_skew_total", 1)
			}
		}
	}

	e.deps.Obs.IncCounter("skies_records_fused_total", 1)

	if e.deps.Notifier != nil {
		e.deps.Notifier.AssetChanged(asset)
	}
}

// pairDistance derives the controller-to-vehicle slant distance at binding
// time, the one moment both halves of the pair are still individually known.
// Vendors that report home_distance on the wire take precedence upstream.
func pairDistance(rec *domain.NormalizedRecord, counterpart domain.Asset) (float64, bool) {
	if !rec.HasPosition() || !counterpart.HasPosition() {
		return 0, false
	}
	var recAlt, otherAlt float64
	if rec.AltitudeMSLM != nil {
		recAlt = *rec.AltitudeMSLM
	}
	if counterpart.AltitudeMSLM != nil {
		otherAlt = *counterpart.AltitudeMSLM
	}
	return geo.Distance3DM(*rec.Latitude, *rec.Longitude, recAlt,
		*counterpart.Latitude, *counterpart.Longitude, otherAlt), true
}

// offerForensic hands the batch to the storage goroutine without blocking;
// when the sink is saturated the batch is lost and counted.
func (e *Engine) offerForensic(records []*domain.NormalizedRecord) {
	if e.forensicCh == nil {
		return
	}
	select {
	case e.forensicCh <- records:
	default:
		e.deps.Obs.LogError("forensic batch lost", errForensicBacklog,
			ports.Field{Key: "records", Value: len(records)})
	}
}

func (e *Engine) forensicLoop() {
	defer close(e.forensicDone)
	for batch := range e.forensicCh {
		if err := e.deps.Forensic.WriteBatch(batch); err != nil {
			e.deps.Obs.LogError("forensic write failed", err,
				ports.Field{Key: "sink", Value: e.deps.Forensic.Name()})
		}
	}
}

// Close drains the forensic backlog and stops the storage goroutine.
func (e *Engine) Close() {
	if e.forensicCh != nil {
		close(e.forensicCh)
		<-e.forensicDone
	}
	if e.deps.Recorder != nil {
		if err := e.deps.Recorder.Close(); err != nil {
			e.deps.Obs.LogError("recorder close failed", err)
		}
	}
}
