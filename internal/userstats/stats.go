// Package userstats maintains the secondary authority → stats-account map.
// It is consulted only by /topMakers with includeUserStats, so entries are
// lazy-loaded on first use and cached for the process lifetime.
package userstats

import (
	"context"
	"crypto/sha256"
	"log/slog"
	"sync"

	"dlob-server/pkg/types"
)

// statsSeed prefixes the stats-account derivation, mirroring the chain
// program's seed.
const statsSeed = "user_stats"

// DeriveStatsKey returns the deterministic stats-account key for an
// authority.
func DeriveStatsKey(authority types.Pubkey) types.Pubkey {
	h := sha256.New()
	h.Write([]byte(statsSeed))
	h.Write(authority[:])
	var pk types.Pubkey
	copy(pk[:], h.Sum(nil))
	return pk
}

// Entry is one authority's stats account.
type Entry struct {
	Authority types.Pubkey
	StatsKey  types.Pubkey
}

// Loader resolves an authority's stats entry from the chain. Injected so
// the index stays free of RPC concerns; a nil loader falls back to pure
// derivation.
type Loader func(ctx context.Context, authority types.Pubkey) (Entry, error)

// Index caches stats entries by authority.
type Index struct {
	mu      sync.RWMutex
	entries map[types.Pubkey]Entry

	load   Loader
	logger *slog.Logger
}

// NewIndex returns an empty index.
func NewIndex(load Loader, logger *slog.Logger) *Index {
	return &Index{
		entries: make(map[types.Pubkey]Entry),
		load:    load,
		logger:  logger.With("component", "userstats"),
	}
}

// Size returns the number of cached entries.
func (x *Index) Size() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// Warm seeds the cache for a set of authorities without touching the chain.
func (x *Index) Warm(authorities []types.Pubkey) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, authority := range authorities {
		if _, ok := x.entries[authority]; ok {
			continue
		}
		x.entries[authority] = Entry{Authority: authority, StatsKey: DeriveStatsKey(authority)}
	}
}

// MustGet returns the stats entry for an authority, loading and caching it
// on first use. Load failures fall back to pure derivation so /topMakers
// never fails on a cold entry.
func (x *Index) MustGet(ctx context.Context, authority types.Pubkey) Entry {
	x.mu.RLock()
	entry, ok := x.entries[authority]
	x.mu.RUnlock()
	if ok {
		return entry
	}

	if x.load != nil {
		loaded, err := x.load(ctx, authority)
		if err == nil {
			x.put(loaded)
			return loaded
		}
		x.logger.Warn("stats load failed, deriving key", "authority", authority, "error", err)
	}

	entry = Entry{Authority: authority, StatsKey: DeriveStatsKey(authority)}
	x.put(entry)
	return entry
}

func (x *Index) put(entry Entry) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.entries[entry.Authority] = entry
}
