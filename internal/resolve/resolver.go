// Package resolve decides which logical asset a normalized record updates.
// There is no reliable foreign key across sources — an air vehicle and its
// ground controller never share an identifier — so resolution is a list of
// heuristics ordered by specificity, applied against an immutable store
// snapshot.
package resolve

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rwiren/securingskies-platform/internal/domain"
	"github.com/rwiren/securingskies-platform/internal/geo"
	"github.com/rwiren/securingskies-platform/internal/ports"
)

// ErrAmbiguousCorrelation marks a tie among multiple equally-valid binding
// candidates. The tie is resolved by recency and logged for audit; it is
// never fatal.
var ErrAmbiguousCorrelation = errors.New("ambiguous controller/vehicle correlation")

// DefaultWindow is the correlation time window: how recently the candidate
// half of a pair must have reported for a binding to be considered.
const DefaultWindow = 10 * time.Second

// DefaultRadiusM is the correlation space window, applied only when both
// halves carry a position.
const DefaultRadiusM = 500.0

// Decision is the outcome of resolving one record.
type Decision struct {
	ID      domain.AssetID
	Created bool
	// Bound is set when a controller/vehicle pair was correlated into one
	// asset; the record's hint must then be bound to the target asset.
	Bound     bool
	Ambiguous bool
}

type Resolver struct {
	window  time.Duration
	radiusM float64
	obs     ports.Observability
}

func New(window time.Duration, radiusM float64, obs ports.Observability) *Resolver {
	if window <= 0 {
		window = DefaultWindow
	}
	if radiusM <= 0 {
		radiusM = DefaultRadiusM
	}
	return &Resolver{window: window, radiusM: radiusM, obs: obs}
}

// Resolve maps rec onto an asset ID, creating a fresh ID when nothing
// matches. It is a pure function of (record, snapshot): duplicate delivery
// of the same record resolves to the same asset because the first pass bound
// the record's hint.
//
// Strategy order:
//  1. exact identity — the hint is already bound to an asset
//  2. role-pair correlation — the other half of an unbound
//     controller/vehicle pair of the same family reported within the
//     time/space window
//  3. new asset
func (r *Resolver) Resolve(rec *domain.NormalizedRecord, snap map[domain.AssetID]domain.Asset) Decision {
	if rec.AssetHint != "" {
		for id, a := range snap {
			if a.HasIdentity(rec.AssetHint) {
				return Decision{ID: id}
			}
		}
	}

	if wantKind, ok := pairCounterpart(rec.Kind); ok {
		if id, ambiguous, found := r.correlatePair(rec, snap, wantKind); found {
			if ambiguous && r.obs != nil {
				r.obs.LogError("ambiguous_correlation", ErrAmbiguousCorrelation,
					ports.Field{Key: "hint", Value: rec.AssetHint},
					ports.Field{Key: "asset", Value: string(id)})
			}
			return Decision{ID: id, Bound: true, Ambiguous: ambiguous}
		}
	}

	return Decision{ID: newAssetID(rec), Created: true}
}

// pairCounterpart names the asset kind a record of the given kind may bind
// to. Only the controller/vehicle pair correlates; ground assets never bind.
func pairCounterpart(kind domain.AssetKind) (domain.AssetKind, bool) {
	switch kind {
	case domain.KindGroundController:
		return domain.KindAirVehicle, true
	case domain.KindAirVehicle:
		return domain.KindGroundController, true
	default:
		return domain.KindUnknown, false
	}
}

func (r *Resolver) correlatePair(rec *domain.NormalizedRecord, snap map[domain.AssetID]domain.Asset, wantKind domain.AssetKind) (domain.AssetID, bool, bool) {
	var candidates []domain.Asset
	ids := make(map[string]domain.AssetID)

	for id, a := range snap {
		if a.Family != rec.Family || a.Kind != wantKind || a.ControllerBound {
			continue
		}
		if !withinWindow(rec.ReceiptTime, a.LastUpdate, r.window) {
			continue
		}
		if rec.HasPosition() && a.HasPosition() {
			d := geo.HaversineM(*rec.Latitude, *rec.Longitude, *a.Latitude, *a.Longitude)
			if d > r.radiusM {
				continue
			}
		}
		candidates = append(candidates, a)
		ids[string(a.ID)] = id
	}

	switch len(candidates) {
	case 0:
		return "", false, false
	case 1:
		return ids[string(candidates[0].ID)], false, true
	default:
		// Recency tie-break. This is an accepted approximation, not a
		// correctness guarantee: with several simultaneous unbound
		// candidates the freshest one is the likeliest mate, and the
		// binding is logged so operators can audit bad guesses.
		best := candidates[0]
		for _, c := range candidates[1:] {
			if c.LastUpdate.After(best.LastUpdate) {
				best = c
			}
		}
		return ids[string(best.ID)], true, true
	}
}

// withinWindow tolerates both orderings: the counterpart may have reported
// slightly before or after this record, and transport delivery is unordered.
func withinWindow(a, b time.Time, window time.Duration) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d <= window
}

func newAssetID(rec *domain.NormalizedRecord) domain.AssetID {
	fam := string(rec.Family)
	if fam == "" {
		fam = "unknown"
	}
	return domain.AssetID(strings.ToLower(fam) + "-" + uuid.NewString()[:8])
}
