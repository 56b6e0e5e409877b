package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rwiren/securingskies-platform/internal/adapters/forensic"
	"github.com/rwiren/securingskies-platform/internal/adapters/httpapi"
	"github.com/rwiren/securingskies-platform/internal/adapters/mqttsub"
	"github.com/rwiren/securingskies-platform/internal/adapters/observability"
	"github.com/rwiren/securingskies-platform/internal/adapters/queue"
	"github.com/rwiren/securingskies-platform/internal/adapters/recorder"
	"github.com/rwiren/securingskies-platform/internal/app/config"
	"github.com/rwiren/securingskies-platform/internal/classify"
	"github.com/rwiren/securingskies-platform/internal/latency"
	"github.com/rwiren/securingskies-platform/internal/ports"
	"github.com/rwiren/securingskies-platform/internal/resolve"
	"github.com/rwiren/securingskies-platform/internal/store"
)

// RuntimeOption customizes the dependencies used by Runtime.
type RuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	collector     ports.Collector
	queue         ports.MessageQueue
	observability ports.Observability
	forensic      ports.ForensicSink
	notifier      ports.Notifier
	recorder      ports.BlackBox
	registry      *classify.Registry
}

// WithCollector injects a custom collector (replay, simulators, test fixtures).
func WithCollector(col ports.Collector) RuntimeOption {
	return func(o *runtimeOverrides) { o.collector = col }
}

// WithQueue swaps the in-memory queue for a caller-provided implementation.
func WithQueue(q ports.MessageQueue) RuntimeOption {
	return func(o *runtimeOverrides) { o.queue = q }
}

// WithObservability plugs in a custom observability backend.
func WithObservability(obs ports.Observability) RuntimeOption {
	return func(o *runtimeOverrides) { o.observability = obs }
}

// WithForensicSink injects a custom long-term storage sink.
func WithForensicSink(s ports.ForensicSink) RuntimeOption {
	return func(o *runtimeOverrides) { o.forensic = s }
}

// WithNotifier installs a push consumer for asset mutations.
func WithNotifier(n ports.Notifier) RuntimeOption {
	return func(o *runtimeOverrides) { o.notifier = n }
}

// WithRecorder overrides the mission black box.
func WithRecorder(b ports.BlackBox) RuntimeOption {
	return func(o *runtimeOverrides) { o.recorder = b }
}

// WithRegistry replaces the default classifier set.
func WithRegistry(r *classify.Registry) RuntimeOption {
	return func(o *runtimeOverrides) { o.registry = r }
}

// NewDefaultRegistry wires the stock classifiers onto the configured topic
// filters.
func NewDefaultRegistry(src config.SourcesConfig) *classify.Registry {
	reg := classify.NewRegistry()
	reg.Register(src.Autel, classify.NewAutel())
	reg.Register(src.Dronetag, classify.NewDronetag())
	reg.Register(src.OwnTracks, classify.NewOwnTracks())
	reg.Register(src.Pixhawk, classify.NewPixhawk())
	return reg
}

// Runtime owns the full service: collector, queue, fusion loop, store, API
// and metrics servers.
type Runtime struct {
	cfg    *config.Config
	obs    ports.Observability
	queue  ports.MessageQueue
	col    ports.Collector
	engine *Engine
	store  *store.TelemetryStore
	api    *httpapi.Server
	db     *sql.DB

	metricsSrv    *http.Server
	gaugeStopCh   chan struct{}
	collectStopCh chan struct{}
	collectDoneCh <-chan struct{}
	fusionStopCh  chan struct{}
	fusionDoneCh  chan struct{}
	apiCancel     context.CancelFunc
}

// NewRuntime bootstraps the default adapters: MQTT collector, in-memory
// queue, Prometheus observability, black-box recorder and Postgres forensic
// storage when enabled. Options override any dependency.
func NewRuntime(cfg *config.Config, opts ...RuntimeOption) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	obs := overrides.observability
	if obs == nil {
		obs = observability.NewPromObs()
	}

	q := overrides.queue
	if q == nil {
		q = queue.NewMemQueue(cfg.Policy.MaxQueueLen)
	}

	col := overrides.collector
	if col == nil {
		if cfg.MQTT.BrokerURL == "" {
			return nil, fmt.Errorf("mqtt.broker_url is required for the MQTT collector")
		}
		col = mqttsub.New(mqttsub.Options{
			BrokerURL: cfg.MQTT.BrokerURL,
			ClientID:  cfg.MQTT.ClientID,
			Username:  cfg.MQTT.Username,
			Password:  cfg.MQTT.Password,
			UseTLS:    cfg.MQTT.UseTLS,
			Topics:    cfg.Sources.AllTopics(),
			QoS:       cfg.MQTT.QoS,
		}, obs)
	}

	reg := overrides.registry
	if reg == nil {
		reg = NewDefaultRegistry(cfg.Sources)
	}

	var bb ports.BlackBox
	if overrides.recorder != nil {
		bb = overrides.recorder
	} else if cfg.Recorder.Enabled {
		var err error
		bb, err = recorder.New(cfg.Recorder.Dir)
		if err != nil {
			return nil, fmt.Errorf("recorder: %w", err)
		}
	}

	var (
		db  *sql.DB
		fs  ports.ForensicSink
		err error
	)
	if overrides.forensic != nil {
		fs = overrides.forensic
	} else if cfg.Forensic.Enabled {
		db, err = sql.Open("postgres", cfg.Forensic.ConnString)
		if err != nil {
			return nil, fmt.Errorf("forensic db: %w", err)
		}
		fs = forensic.NewPostgresSink(db, cfg.Forensic.Table)
	}

	st := store.New(cfg.Fusion.FamilyThresholds(), cfg.Fusion.StaleAfter)

	engine := NewEngine(Deps{
		Registry: reg,
		Resolver: resolve.New(cfg.Fusion.PairWindow, cfg.Fusion.PairRadiusM, obs),
		Store:    st,
		Latency:  latency.NewCalculator(),
		Obs:      obs,
		Recorder: bb,
		Forensic: fs,
		Notifier: overrides.notifier,
	})

	return &Runtime{
		cfg:    cfg,
		obs:    obs,
		queue:  q,
		col:    col,
		engine: engine,
		store:  st,
		api:    httpapi.NewServer(st),
		db:     db,
	}, nil
}

// Store exposes the telemetry store for embedding callers.
func (r *Runtime) Store() *store.TelemetryStore { return r.store }

// Start launches the collector, the fusion loop and both HTTP surfaces.
// It returns immediately; call Run to block on a context instead.
func (r *Runtime) Start() error {
	r.collectStopCh = make(chan struct{})
	done, err := RunCollect(r.col, r.queue, r.cfg.Policy, r.obs, r.collectStopCh)
	if err != nil {
		return err
	}
	r.collectDoneCh = done

	r.fusionStopCh = make(chan struct{})
	r.fusionDoneCh = make(chan struct{})
	go func() {
		RunFusion(r.engine, r.queue, r.cfg.Policy, r.obs, r.fusionStopCh)
		close(r.fusionDoneCh)
	}()

	apiCtx, cancel := context.WithCancel(context.Background())
	r.apiCancel = cancel
	go func() {
		if err := r.api.Start(apiCtx, r.cfg.API.Addr); err != nil {
			log.Printf("api server exited: %v", err)
		}
	}()

	r.startMetrics()
	return nil
}

// Run starts the runtime and blocks until ctx is cancelled, then shuts down
// gracefully.
func (r *Runtime) Run(ctx context.Context) error {
	if err := r.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return r.Shutdown(shutdownCtx)
}

// Shutdown stops intake first, drains the queue through the fusion loop, then
// tears down the outbound surfaces. Everything accepted before the stop is
// fused and recorded.
func (r *Runtime) Shutdown(ctx context.Context) error {
	var errs []error

	if r.col != nil {
		if err := r.col.Stop(); err != nil {
			errs = append(errs, err)
		}
	}

	if r.collectStopCh != nil {
		close(r.collectStopCh)
		select {
		case <-r.collectDoneCh:
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("collector drain: %w", ctx.Err()))
		}
	}

	if r.fusionStopCh != nil {
		close(r.fusionStopCh)
		select {
		case <-r.fusionDoneCh:
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("fusion drain: %w", ctx.Err()))
		}
	}

	r.engine.Close()

	if r.gaugeStopCh != nil {
		close(r.gaugeStopCh)
	}
	if r.metricsSrv != nil {
		if err := r.metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}
	if r.apiCancel != nil {
		r.apiCancel()
	}
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (r *Runtime) startMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.metricsSrv = &http.Server{
		Addr:    r.cfg.Metrics.Addr,
		Handler: mux,
	}

	go func() {
		if err := r.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics server exited: %v", err)
		}
	}()

	r.gaugeStopCh = make(chan struct{})
	go r.recordGauges(r.gaugeStopCh, time.Second)
}

func (r *Runtime) recordGauges(stop <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			now := time.Now().UTC()
			r.obs.SetGauge("skies_queue_length", float64(r.queue.Len()))
			r.obs.SetGauge("skies_tracked_assets", float64(r.store.Len()))
			r.obs.SetGauge("skies_stale_assets", float64(r.store.StaleCount(now)))
		}
	}
}
