package chain

import (
	"sync"

	"dlob-server/internal/vamm"
	"dlob-server/pkg/types"
)

// OracleView exposes the latest oracle reading per market. Written by the
// poller, read by the book builder and handlers.
type OracleView struct {
	mu     sync.RWMutex
	prices map[types.MarketKey]types.OraclePriceData
}

// NewOracleView returns an empty view.
func NewOracleView() *OracleView {
	return &OracleView{prices: make(map[types.MarketKey]types.OraclePriceData)}
}

// Set replaces the reading for one market.
func (v *OracleView) Set(key types.MarketKey, data types.OraclePriceData) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.prices[key] = data
}

// Oracle returns the current reading for one market.
func (v *OracleView) Oracle(key types.MarketKey) (types.OraclePriceData, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	data, ok := v.prices[key]
	return data, ok
}

// All returns a copy of every reading, keyed by market.
func (v *OracleView) All() map[types.MarketKey]types.OraclePriceData {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make(map[types.MarketKey]types.OraclePriceData, len(v.prices))
	for k, d := range v.prices {
		out[k] = d
	}
	return out
}

// AMMView exposes the latest vAMM state per perp market index.
type AMMView struct {
	mu     sync.RWMutex
	states map[uint16]vamm.State
}

// NewAMMView returns an empty view.
func NewAMMView() *AMMView {
	return &AMMView{states: make(map[uint16]vamm.State)}
}

// Set replaces the state for one perp market.
func (v *AMMView) Set(marketIndex uint16, state vamm.State) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.states[marketIndex] = state
}

// State returns the current state for one perp market.
func (v *AMMView) State(marketIndex uint16) (vamm.State, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	s, ok := v.states[marketIndex]
	return s, ok
}
