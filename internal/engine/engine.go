// Package engine is the central orchestrator of the DLOB server.
//
// It wires together all subsystems:
//
//  1. A provider (polling user map or push order subscriber) keeps the
//     user-account index in sync with the exchange program.
//  2. The chain poller refreshes slot, oracle, and vAMM state.
//  3. Venue subscribers mirror external spot books for fallback liquidity.
//  4. The book builder rebuilds an immutable snapshot every tick.
//  5. The HTTP surface reads everything through the Backend view.
//
// Lifecycle: New() → Run() → [runs until ctx cancel]. A failed Run is
// retried from scratch by the supervisor in main.
package engine

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"dlob-server/internal/chain"
	"dlob-server/internal/config"
	"dlob-server/internal/dlob"
	"dlob-server/internal/idl"
	"dlob-server/internal/markets"
	"dlob-server/internal/provider"
	"dlob-server/internal/rpc"
	"dlob-server/internal/userstats"
	"dlob-server/internal/vamm"
	"dlob-server/internal/venue"
	"dlob-server/pkg/types"
)

// Engine owns every subsystem of the server except the HTTP listener.
type Engine struct {
	cfg      *config.Config
	registry *markets.Registry

	client   *rpc.Client
	accounts provider.DLOBProvider
	slots    *chain.SlotSource
	oracles  *chain.OracleView
	amms     *chain.AMMView
	poller   *chain.Poller
	builder  *dlob.Builder
	stats    *userstats.Index

	phoenix *venue.Subscriber
	serum   *venue.Subscriber

	logger *slog.Logger
}

// New creates and wires all engine components.
func New(cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	registry, err := markets.ForEnv(cfg.Env)
	if err != nil {
		return nil, err
	}
	program, err := markets.Program(cfg.Env)
	if err != nil {
		return nil, err
	}

	client := rpc.NewClient(cfg.Endpoint, logger)
	slots := chain.NewSlotSource()
	oracles := chain.NewOracleView()
	amms := chain.NewAMMView()

	poller := chain.NewPoller(client, registry, slots, oracles, amms,
		idl.DecodeOracle, idl.DecodePerpMarket, logger)

	accounts, err := buildProvider(cfg, client, program, slots, logger)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:      cfg,
		registry: registry,
		client:   client,
		accounts: accounts,
		slots:    slots,
		oracles:  oracles,
		amms:     amms,
		poller:   poller,
		builder:  dlob.NewBuilder(accounts, oracles, slots, registry, logger),
		stats:    userstats.NewIndex(statsLoader(client), logger),
		logger:   logger.With("component", "engine"),
	}

	if cfg.PhoenixWSEndpoint != "" {
		e.phoenix = venue.NewPhoenix(cfg.PhoenixWSEndpoint, venueMarkets(registry, venue.SourcePhoenix), logger)
	}
	if cfg.SerumWSEndpoint != "" {
		e.serum = venue.NewSerum(cfg.SerumWSEndpoint, venueMarkets(registry, venue.SourceSerum), logger)
	}

	return e, nil
}

func buildProvider(cfg *config.Config, client *rpc.Client, program types.Pubkey, slots *chain.SlotSource, logger *slog.Logger) (provider.DLOBProvider, error) {
	if cfg.UseWebsocket && cfg.UseOrderSubscriber {
		feed := rpc.NewFeed(cfg.WSEndpoint, program, logger)
		return provider.NewOrderSubscriber(client, feed, program, idl.DecodeUser, slots, logger), nil
	}
	if cfg.UseWebsocket || cfg.UseOrderSubscriber {
		return nil, fmt.Errorf("USE_WEBSOCKET and USE_ORDER_SUBSCRIBER must be set together")
	}
	return provider.NewUserMap(client, program, idl.DecodeUser, cfg.PollInterval, logger), nil
}

// statsLoader resolves an authority's stats account against the chain: the
// key is derived locally, then confirmed to exist on the node. A missing or
// unreachable account errors so the index falls back to pure derivation.
func statsLoader(client *rpc.Client) userstats.Loader {
	return func(ctx context.Context, authority types.Pubkey) (userstats.Entry, error) {
		statsKey := userstats.DeriveStatsKey(authority)
		acct, err := client.GetAccountInfo(ctx, statsKey)
		if err != nil {
			return userstats.Entry{}, err
		}
		if acct.Data == nil {
			return userstats.Entry{}, fmt.Errorf("stats account %s not found", statsKey)
		}
		return userstats.Entry{Authority: authority, StatsKey: statsKey}, nil
	}
}

func venueMarkets(registry *markets.Registry, source string) []types.Pubkey {
	var out []types.Pubkey
	for _, m := range registry.All() {
		switch source {
		case venue.SourcePhoenix:
			out = append(out, m.PhoenixMarket)
		case venue.SourceSerum:
			out = append(out, m.SerumMarket)
		}
	}
	return out
}

// Run subscribes, starts every background loop, and blocks rebuilding the
// book until ctx is cancelled. An error before the loops start is returned
// so the supervisor can rebuild the engine.
func (e *Engine) Run(ctx context.Context) error {
	// First poll before subscribing, so the seed build has oracle prices
	// for resting checks.
	e.poller.PollOnce(ctx)

	if err := e.accounts.Subscribe(ctx); err != nil {
		return fmt.Errorf("subscribe accounts: %w", err)
	}
	e.stats.Warm(e.accounts.UniqueAuthorities())
	e.logger.Info("account index synced",
		"accounts", e.accounts.Size(),
		"authorities", e.stats.Size(),
	)

	go e.poller.Run(ctx, e.cfg.OraclePollInterval)

	if e.phoenix != nil {
		go e.runVenue(ctx, e.phoenix)
	}
	if e.serum != nil {
		go e.runVenue(ctx, e.serum)
	}

	e.builder.Tick(time.Now())
	e.builder.Run(ctx, e.cfg.TickInterval)
	return ctx.Err()
}

func (e *Engine) runVenue(ctx context.Context, sub *venue.Subscriber) {
	// A dead venue only costs its fallback liquidity.
	if err := sub.Run(ctx); err != nil && ctx.Err() == nil {
		e.logger.Error("venue subscriber stopped", "venue", sub.Source(), "error", err)
	}
}

// Registry exposes the market listing for the HTTP surface.
func (e *Engine) Registry() *markets.Registry { return e.registry }

// Ready reports whether the server has synced enough state to serve
// traffic: the account stream has seeded, both indexes are non-empty, and at
// least one book snapshot has been published.
func (e *Engine) Ready() bool {
	return e.accounts.Subscribed() && e.accounts.Size() > 0 && e.stats.Size() > 0 &&
		e.builder.Ticks() > 0
}

// Snapshot returns the current book snapshot. Never nil.
func (e *Engine) Snapshot() *dlob.Snapshot { return e.builder.Snapshot() }

// OpenOrders lists every non-init order in the account index, ordered by
// user key then order id. Orders the book excludes are listed too.
func (e *Engine) OpenOrders() []idl.DLOBOrder {
	var out []idl.DLOBOrder
	e.accounts.Range(func(pubkey types.Pubkey, account *types.UserAccount) bool {
		for _, order := range account.OpenOrders() {
			out = append(out, idl.DLOBOrder{User: pubkey, Order: order})
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if c := bytes.Compare(out[i].User[:], out[j].User[:]); c != 0 {
			return c < 0
		}
		return out[i].Order.OrderID < out[j].Order.OrderID
	})
	return out
}

// Oracles returns the latest reading per market.
func (e *Engine) Oracles() map[types.MarketKey]types.OraclePriceData {
	return e.oracles.All()
}

// AMMState returns the latest vAMM state for one perp market.
func (e *Engine) AMMState(marketIndex uint16) (vamm.State, bool) {
	return e.amms.State(marketIndex)
}

// PhoenixGenerators returns Phoenix fallback liquidity for one venue market.
func (e *Engine) PhoenixGenerators(market types.Pubkey) (dlob.L2Generator, dlob.L2Generator, bool) {
	if e.phoenix == nil {
		return nil, nil, false
	}
	return e.phoenix.Generators(market)
}

// SerumGenerators returns Serum fallback liquidity for one venue market.
func (e *Engine) SerumGenerators(market types.Pubkey) (dlob.L2Generator, dlob.L2Generator, bool) {
	if e.serum == nil {
		return nil, nil, false
	}
	return e.serum.Generators(market)
}

// StatsEntry resolves the stats account for an authority.
func (e *Engine) StatsEntry(ctx context.Context, authority types.Pubkey) userstats.Entry {
	return e.stats.MustGet(ctx, authority)
}
