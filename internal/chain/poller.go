package chain

import (
	"context"
	"log/slog"
	"time"

	"dlob-server/internal/markets"
	"dlob-server/internal/rpc"
	"dlob-server/internal/vamm"
	"dlob-server/pkg/types"
)

// OracleDecoder decodes a raw oracle account payload. The wire layout is the
// chain program's; the decoder is injected.
type OracleDecoder func(data []byte) (types.OraclePriceData, error)

// PerpMarketDecoder decodes a raw perp market account into vAMM state.
type PerpMarketDecoder func(data []byte) (vamm.State, error)

// Poller refreshes the slot, oracle, and vAMM views from the RPC node on a
// fixed cadence. RPC failures are transient: they are logged and the
// previous readings stay in place.
type Poller struct {
	client   *rpc.Client
	registry *markets.Registry

	slots   *SlotSource
	oracles *OracleView
	amms    *AMMView

	decodeOracle OracleDecoder
	decodePerp   PerpMarketDecoder

	logger *slog.Logger
}

// NewPoller wires a poller over the chain views.
func NewPoller(
	client *rpc.Client,
	registry *markets.Registry,
	slots *SlotSource,
	oracles *OracleView,
	amms *AMMView,
	decodeOracle OracleDecoder,
	decodePerp PerpMarketDecoder,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		client:       client,
		registry:     registry,
		slots:        slots,
		oracles:      oracles,
		amms:         amms,
		decodeOracle: decodeOracle,
		decodePerp:   decodePerp,
		logger:       logger.With("component", "chain-poller"),
	}
}

// Run polls until ctx is cancelled. The first poll happens immediately so
// the book builder has oracle prices on its first tick.
func (p *Poller) Run(ctx context.Context, interval time.Duration) {
	p.PollOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.PollOnce(ctx)
		}
	}
}

// PollOnce fetches every oracle and perp state account in one batch and
// refreshes the views.
func (p *Poller) PollOnce(ctx context.Context) {
	listing := p.registry.All()

	var pubkeys []types.Pubkey
	type target struct {
		market types.Market
		oracle bool
	}
	var targets []target

	for _, m := range listing {
		if !m.Oracle.IsZero() {
			pubkeys = append(pubkeys, m.Oracle)
			targets = append(targets, target{market: m, oracle: true})
		}
		if m.MarketType == types.MarketTypePerp && !m.StateAccount.IsZero() {
			pubkeys = append(pubkeys, m.StateAccount)
			targets = append(targets, target{market: m})
		}
	}

	accounts, slot, err := p.client.GetMultipleAccounts(ctx, pubkeys)
	if err != nil {
		p.logger.Warn("chain poll failed, keeping previous readings", "error", err)
		return
	}
	p.slots.Update(slot)

	for i, acct := range accounts {
		t := targets[i]
		if acct.Data == nil {
			p.logger.Warn("account missing on chain", "pubkey", acct.Pubkey, "market", t.market.Name)
			continue
		}

		if t.oracle {
			data, err := p.decodeOracle(acct.Data)
			if err != nil {
				p.logger.Warn("skipping undecodable oracle", "market", t.market.Name, "error", err)
				continue
			}
			data.Slot = slot
			p.oracles.Set(t.market.Key(), data)
			continue
		}

		state, err := p.decodePerp(acct.Data)
		if err != nil {
			p.logger.Warn("skipping undecodable perp state", "market", t.market.Name, "error", err)
			continue
		}
		state.Slot = slot
		p.amms.Set(t.market.MarketIndex, state)
	}
}
