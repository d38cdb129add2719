package usecase

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ccrossmock13/turf-ai/internal/core/domain"
	"github.com/ccrossmock13/turf-ai/internal/core/ports"
)

const (
	defaultFailureThreshold = 5
	defaultRecoveryWindow   = 60 * time.Second
	defaultTrust            = 0.7
	trustSmoothing          = 0.2
)

type breakerEntry struct {
	state               domain.BreakerState
	consecutiveFailures int
	totalTrips          int
	lastFailure         time.Time
	recoveryAt          time.Time
}

// Registry owns source descriptors, trust scores and per-source breaker
// state. All mutation goes through one mutex so concurrent requests see
// consistent snapshots; no breaker transition is observable half-applied.
type Registry struct {
	failureThreshold int
	recoveryWindow   time.Duration
	store            ports.BreakerStore
	onTrip           func(sourceID string)
	now              func() time.Time

	mu       sync.Mutex
	sources  map[string]domain.SourceDescriptor
	breakers map[string]*breakerEntry
}

type RegistryOption func(*Registry)

func WithFailureThreshold(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.failureThreshold = n
		}
	}
}

func WithRecoveryWindow(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.recoveryWindow = d
		}
	}
}

func WithBreakerStore(store ports.BreakerStore) RegistryOption {
	return func(r *Registry) { r.store = store }
}

func withClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

func NewRegistry(sources []domain.SourceDescriptor, opts ...RegistryOption) *Registry {
	r := &Registry{
		failureThreshold: defaultFailureThreshold,
		recoveryWindow:   defaultRecoveryWindow,
		now:              time.Now,
		sources:          make(map[string]domain.SourceDescriptor, len(sources)),
		breakers:         make(map[string]*breakerEntry, len(sources)),
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, s := range sources {
		if s.TrustScore <= 0 {
			s.TrustScore = defaultTrust
		}
		r.sources[s.ID] = s
		r.breakers[s.ID] = &breakerEntry{state: domain.BreakerClosed}
	}
	return r
}

// SetTripNotifier registers a callback invoked after a breaker opens.
// Called outside the registry lock.
func (r *Registry) SetTripNotifier(fn func(sourceID string)) {
	r.onTrip = fn
}

// RestoreTrust loads persisted trust scores, typically at startup.
func (r *Registry) RestoreTrust(trust map[string]float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, score := range trust {
		if s, ok := r.sources[id]; ok && score > 0 && score <= 1 {
			s.TrustScore = score
			r.sources[id] = s
		}
	}
}

func (r *Registry) Sources() []domain.SourceDescriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.SourceDescriptor, 0, len(r.sources))
	for _, s := range r.sources {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Allow reports whether the source may be called. An open breaker whose
// recovery time has elapsed transitions to half_open as a side effect.
func (r *Registry) Allow(sourceID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.breakers[sourceID]
	if !ok {
		return false
	}
	switch entry.state {
	case domain.BreakerClosed, domain.BreakerHalfOpen:
		return true
	case domain.BreakerOpen:
		if r.now().Before(entry.recoveryAt) {
			return false
		}
		entry.state = domain.BreakerHalfOpen
		slog.Info("breaker_half_open", "source_id", sourceID)
		return true
	default:
		return false
	}
}

func (r *Registry) RecordSuccess(sourceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.breakers[sourceID]
	if !ok {
		return
	}
	if entry.state == domain.BreakerHalfOpen {
		slog.Info("breaker_closed", "source_id", sourceID)
	}
	entry.state = domain.BreakerClosed
	entry.consecutiveFailures = 0
}

func (r *Registry) RecordFailure(sourceID string) {
	r.mu.Lock()
	entry, ok := r.breakers[sourceID]
	if !ok {
		r.mu.Unlock()
		return
	}

	now := r.now()
	entry.lastFailure = now

	tripped := false
	switch entry.state {
	case domain.BreakerHalfOpen:
		// Any failure during the probe reopens with a fresh timer.
		entry.state = domain.BreakerOpen
		entry.recoveryAt = now.Add(r.recoveryWindow)
		entry.totalTrips++
		tripped = true
	case domain.BreakerClosed:
		entry.consecutiveFailures++
		if entry.consecutiveFailures >= r.failureThreshold {
			entry.state = domain.BreakerOpen
			entry.recoveryAt = now.Add(r.recoveryWindow)
			entry.totalTrips++
			tripped = true
		}
	}

	failures := entry.consecutiveFailures
	recoveryAt := entry.recoveryAt
	store := r.store
	r.mu.Unlock()

	if tripped {
		slog.Warn("breaker_open", "source_id", sourceID, "failures", failures)
		if r.onTrip != nil {
			r.onTrip(sourceID)
		}
		if store != nil {
			// Trip history is audit data; never block the request path on it.
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := store.RecordTrip(ctx, sourceID, failures, recoveryAt); err != nil {
					slog.Warn("breaker_trip_persist_failed", "source_id", sourceID, "error", err)
				}
			}()
		}
	}
}

func (r *Registry) TrustScore(sourceID string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sources[sourceID]; ok {
		return s.TrustScore
	}
	return defaultTrust
}

// UpdateTrust nudges a source's trust toward observed satisfaction using an
// exponential moving average, clamped to [0,1].
func (r *Registry) UpdateTrust(sourceID string, satisfaction float64) {
	r.mu.Lock()
	s, ok := r.sources[sourceID]
	if !ok {
		r.mu.Unlock()
		return
	}
	trust := (1-trustSmoothing)*s.TrustScore + trustSmoothing*satisfaction
	if trust < 0 {
		trust = 0
	}
	if trust > 1 {
		trust = 1
	}
	s.TrustScore = trust
	r.sources[sourceID] = s
	store := r.store
	r.mu.Unlock()

	if store != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := store.SaveTrust(ctx, sourceID, trust); err != nil {
				slog.Warn("trust_persist_failed", "source_id", sourceID, "error", err)
			}
		}()
	}
}

func (r *Registry) BreakerStatuses() []domain.BreakerStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.BreakerStatus, 0, len(r.breakers))
	for id, entry := range r.breakers {
		out = append(out, domain.BreakerStatus{
			SourceID:            id,
			State:               entry.state,
			ConsecutiveFailures: entry.consecutiveFailures,
			TotalTrips:          entry.totalTrips,
			LastFailure:         entry.lastFailure,
			RecoveryAt:          entry.recoveryAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	return out
}
