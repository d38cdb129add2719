package usecase

import "sync"

// FeatureFlags is a versioned snapshot of runtime toggles. A request reads
// one snapshot at entry and never re-reads it, so a mid-request toggle can
// not produce torn behavior; changes apply to subsequent requests.
type FeatureFlags struct {
	Version        int  `json:"version"`
	QueryRewrite   bool `json:"query_rewrite"`
	Reranking      bool `json:"reranking"`
	GroundingCheck bool `json:"grounding_check"`
	WebFallback    bool `json:"web_fallback"`
	WeatherContext bool `json:"weather_context"`
}

func DefaultFlags() FeatureFlags {
	return FeatureFlags{
		Version:        1,
		QueryRewrite:   true,
		Reranking:      true,
		GroundingCheck: true,
		WebFallback:    true,
		WeatherContext: true,
	}
}

// FlagSet holds the current flags behind a mutex.
type FlagSet struct {
	mu    sync.RWMutex
	flags FeatureFlags
}

func NewFlagSet(flags FeatureFlags) *FlagSet {
	if flags.Version == 0 {
		flags = DefaultFlags()
	}
	return &FlagSet{flags: flags}
}

func (f *FlagSet) Snapshot() FeatureFlags {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.flags
}

// Update replaces the flags and bumps the version.
func (f *FlagSet) Update(mutate func(*FeatureFlags)) FeatureFlags {
	f.mu.Lock()
	defer f.mu.Unlock()
	mutate(&f.flags)
	f.flags.Version++
	return f.flags
}
