// Package httpapi serves read-only snapshots of the fused asset picture.
// Every response is built from deep copies, so consumers can never observe a
// half-merged asset or mutate engine state.
package httpapi

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rwiren/securingskies-platform/internal/domain"
	"github.com/rwiren/securingskies-platform/internal/store"
)

// AssetView is the JSON shape served for one asset. Optional telemetry
// fields stay null when unknown; zero is never substituted for absent.
type AssetView struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Family string `json:"family"`

	Identities []string `json:"identities"`

	Latitude         *float64 `json:"lat"`
	Longitude        *float64 `json:"lon"`
	AltitudeMSLM     *float64 `json:"alt_msl_m"`
	SpeedMPS         *float64 `json:"speed_mps"`
	HeadingDeg       *float64 `json:"heading_deg"`
	BatteryPct       *float64 `json:"battery_pct"`
	VerticalSpeedMPS *float64 `json:"vertical_speed_mps"`
	AccuracyM        *float64 `json:"accuracy_m"`
	HomeDistanceM    *float64 `json:"home_distance_m"`
	Satellites       *int     `json:"satellites"`
	LinkQuality      string   `json:"link_quality,omitempty"`

	ContributingSources []string `json:"contributing_sources"`
	ControllerBound     bool     `json:"controller_bound"`

	LastUpdate time.Time          `json:"last_update"`
	Stale      bool               `json:"stale"`
	KPIs       map[string]KPIView `json:"kpis"`
}

type KPIView struct {
	Seconds       float64   `json:"seconds"`
	ComputedAt    time.Time `json:"computed_at"`
	LowConfidence bool      `json:"low_confidence,omitempty"`
}

type Server struct {
	store  *store.TelemetryStore
	router *gin.Engine
	srv    *http.Server

	// now is swappable so tests control staleness derivation.
	now func() time.Time
}

func NewServer(st *store.TelemetryStore) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		store:  st,
		router: gin.New(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	s.router.Use(gin.Recovery())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "tracked_assets": s.store.Len()})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/api")
	{
		api.GET("/assets", s.handleListAssets)
		api.GET("/assets/:id", s.handleGetAsset)
	}
}

func (s *Server) handleListAssets(c *gin.Context) {
	snap := s.store.Snapshot(s.now())

	views := make([]AssetView, 0, len(snap))
	for _, a := range snap {
		views = append(views, toView(a))
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })

	c.JSON(http.StatusOK, gin.H{"assets": views, "count": len(views)})
}

func (s *Server) handleGetAsset(c *gin.Context) {
	a, ok := s.store.Get(domain.AssetID(c.Param("id")), s.now())
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown asset"})
		return
	}
	c.JSON(http.StatusOK, toView(a))
}

func toView(a domain.Asset) AssetView {
	sources := make([]string, 0, len(a.ContributingSources))
	for src := range a.ContributingSources {
		sources = append(sources, src)
	}
	sort.Strings(sources)

	kpis := make(map[string]KPIView, len(a.KPIs))
	for kind, kpi := range a.KPIs {
		kpis[string(kind)] = KPIView{
			Seconds:       kpi.Seconds,
			ComputedAt:    kpi.ComputedAt,
			LowConfidence: kpi.LowConfidence,
		}
	}

	return AssetView{
		ID:                  string(a.ID),
		Kind:                string(a.Kind),
		Family:              string(a.Family),
		Identities:          a.Identities,
		Latitude:            a.Latitude,
		Longitude:           a.Longitude,
		AltitudeMSLM:        a.AltitudeMSLM,
		SpeedMPS:            a.SpeedMPS,
		HeadingDeg:          a.HeadingDeg,
		BatteryPct:          a.BatteryPct,
		VerticalSpeedMPS:    a.VerticalSpeedMPS,
		AccuracyM:           a.AccuracyM,
		HomeDistanceM:       a.HomeDistanceM,
		Satellites:          a.Satellites,
		LinkQuality:         string(a.LinkQuality),
		ContributingSources: sources,
		ControllerBound:     a.ControllerBound,
		LastUpdate:          a.LastUpdate,
		Stale:               a.Stale,
		KPIs:                kpis,
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until ctx is cancelled, then drains with a short grace period.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.srv = &http.Server{Addr: addr, Handler: s.router}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
	}()

	if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
