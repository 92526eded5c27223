// handlers.go implements the HTTP surface. Book reads (l2, l3, topMakers)
// serve from the current snapshot; the /orders dumps list the whole account
// index, book-excluded orders included. Handlers never block on chain I/O
// except the topMakers stats lookup, which is cached after first use.
package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"

	"dlob-server/internal/dlob"
	"dlob-server/internal/idl"
	"dlob-server/internal/markets"
	"dlob-server/internal/userstats"
	"dlob-server/internal/vamm"
	"dlob-server/pkg/types"
)

// Backend is the engine view the handlers serve from.
type Backend interface {
	// Ready reports whether the server has synced enough state to serve.
	Ready() bool
	// Snapshot returns the current immutable book snapshot. Never nil.
	Snapshot() *dlob.Snapshot

	// OpenOrders lists every non-init order in the account index, including
	// orders the book excludes (ungated triggers, expired, fully filled).
	OpenOrders() []idl.DLOBOrder
	// Oracles returns the latest reading per market.
	Oracles() map[types.MarketKey]types.OraclePriceData

	// AMMState returns the latest vAMM state for one perp market.
	AMMState(marketIndex uint16) (vamm.State, bool)
	// PhoenixGenerators and SerumGenerators return fallback liquidity for
	// one venue market; ok is false when the venue is unavailable, in which
	// case its liquidity is simply left out.
	PhoenixGenerators(market types.Pubkey) (bids, asks dlob.L2Generator, ok bool)
	SerumGenerators(market types.Pubkey) (bids, asks dlob.L2Generator, ok bool)

	// StatsEntry resolves the stats account for an authority.
	StatsEntry(ctx context.Context, authority types.Pubkey) userstats.Entry
}

// Handlers serves the read-only market data endpoints.
type Handlers struct {
	backend  Backend
	registry *markets.Registry
	logger   *slog.Logger
}

// NewHandlers wires the endpoint implementations.
func NewHandlers(backend Backend, reg *markets.Registry, logger *slog.Logger) *Handlers {
	return &Handlers{
		backend:  backend,
		registry: reg,
		logger:   logger.With("component", "api"),
	}
}

// HandleHealth answers liveness probes.
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("OK"))
}

// HandleStartup answers readiness probes: 200 once the account index and
// stats index are warm, 500 before that.
func (h *Handlers) HandleStartup(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if !h.backend.Ready() {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Not ready"))
		return
	}
	w.Write([]byte("OK"))
}

// HandleOrdersRaw dumps every open order in the index with numeric enums
// and unquoted quantities.
func (h *Handlers) HandleOrdersRaw(w http.ResponseWriter, r *http.Request) {
	records := h.backend.OpenOrders()

	resp := ordersResponse[rawOracleEntry, rawOrderJSON]{
		Slot:    h.backend.Snapshot().Slot,
		Oracles: rawOracleEntries(h.registry.All(), h.backend.Oracles()),
		Orders:  make([]userOrder[rawOrderJSON], 0, len(records)),
	}
	for _, rec := range records {
		resp.Orders = append(resp.Orders, userOrder[rawOrderJSON]{User: rec.User.String(), Order: newRawOrderJSON(rec.Order)})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// HandleOrders dumps every open order in the index with named enums and
// quoted quantities.
func (h *Handlers) HandleOrders(w http.ResponseWriter, r *http.Request) {
	records := h.backend.OpenOrders()

	resp := ordersResponse[oracleEntry, orderJSON]{
		Slot:    h.backend.Snapshot().Slot,
		Oracles: oracleEntries(h.registry.All(), h.backend.Oracles()),
		Orders:  make([]userOrder[orderJSON], 0, len(records)),
	}
	for _, rec := range records {
		resp.Orders = append(resp.Orders, userOrder[orderJSON]{User: rec.User.String(), Order: newOrderJSON(rec.Order)})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// HandleOrdersIDL serves the packed order records as a raw byte stream.
func (h *Handlers) HandleOrdersIDL(w http.ResponseWriter, r *http.Request) {
	packed := idl.EncodeOrders(h.backend.OpenOrders())

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(packed)
}

// HandleOrdersIDLWithSlot serves the packed records base64-encoded together
// with the snapshot slot. An optional market parameter narrows the records
// to one market.
func (h *Handlers) HandleOrdersIDLWithSlot(w http.ResponseWriter, r *http.Request) {
	get := queryGetter(r.URL.Query())
	market, filtered, err := optionalMarket(get, h.registry)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	records := h.backend.OpenOrders()
	if filtered {
		kept := records[:0]
		for _, rec := range records {
			if rec.Order.MarketType == market.MarketType && rec.Order.MarketIndex == market.MarketIndex {
				kept = append(kept, rec)
			}
		}
		records = kept
	}

	h.writeJSON(w, http.StatusOK, idlWithSlotResponse{
		Slot: h.backend.Snapshot().Slot,
		Data: base64.StdEncoding.EncodeToString(idl.EncodeOrders(records)),
	})
}

// HandleTopMakers lists the best distinct makers on one side of a market.
func (h *Handlers) HandleTopMakers(w http.ResponseWriter, r *http.Request) {
	get := queryGetter(r.URL.Query())

	market, err := resolveMarket(get, h.registry)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	side, err := parseSide(get)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	limit, err := parseLimit(get)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	includeStats, err := parseBool(get, "includeUserStats")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	makers := h.backend.Snapshot().TopMakers(market.Key(), side, limit)

	if !includeStats {
		out := make([]string, 0, len(makers))
		for _, m := range makers {
			out = append(out, m.UserAccount.String())
		}
		h.writeJSON(w, http.StatusOK, out)
		return
	}

	out := make([]topMakerEntry, 0, len(makers))
	for _, m := range makers {
		entry := h.backend.StatsEntry(r.Context(), m.Authority)
		out = append(out, topMakerEntry{
			UserAccount: m.UserAccount.String(),
			Authority:   m.Authority.String(),
			UserStats:   entry.StatsKey.String(),
		})
	}
	h.writeJSON(w, http.StatusOK, out)
}

// HandleL2 serves the aggregated book for one market.
func (h *Handlers) HandleL2(w http.ResponseWriter, r *http.Request) {
	params, err := parseL2Params(queryGetter(r.URL.Query()), h.registry)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.buildL2(params))
}

// HandleBatchL2 serves several aggregated books in one request. Parameters
// are comma-separated lists, evaluated per index.
func (h *Handlers) HandleBatchL2(w http.ResponseWriter, r *http.Request) {
	gets, err := batchParams(r.URL.Query())
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	resp := batchL2Response{L2s: make([]l2Response, 0, len(gets))}
	for _, get := range gets {
		params, err := parseL2Params(get, h.registry)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err)
			return
		}
		resp.L2s = append(resp.L2s, h.buildL2(params))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// HandleL3 serves the per-order book for one market.
func (h *Handlers) HandleL3(w http.ResponseWriter, r *http.Request) {
	get := queryGetter(r.URL.Query())

	market, err := resolveMarket(get, h.registry)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	includeOracle, err := parseBool(get, "includeOracle")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	snap := h.backend.Snapshot()
	book := snap.L3(market.Key())

	resp := l3Response{
		MarketName:  market.Name,
		MarketType:  string(market.MarketType),
		MarketIndex: market.MarketIndex,
		Slot:        book.Slot,
		Bids:        l3Side(book.Bids),
		Asks:        l3Side(book.Asks),
	}
	if includeOracle {
		if mb, ok := snap.Book(market.Key()); ok {
			resp.Oracle = newOracleData(mb.Oracle)
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) buildL2(p l2Params) l2Response {
	snap := h.backend.Snapshot()

	opts := dlob.L2Options{Depth: p.Depth, Grouping: p.Grouping}

	if p.IncludeVamm {
		if state, ok := h.backend.AMMState(p.Market.MarketIndex); ok {
			if g := vamm.Generator(state, dlob.SideBid, p.NumVammOrders); g != nil {
				opts.BidGenerators = append(opts.BidGenerators, g)
			}
			if g := vamm.Generator(state, dlob.SideAsk, p.NumVammOrders); g != nil {
				opts.AskGenerators = append(opts.AskGenerators, g)
			}
		}
	}
	if p.IncludePhoenix && !p.Market.PhoenixMarket.IsZero() {
		if bids, asks, ok := h.backend.PhoenixGenerators(p.Market.PhoenixMarket); ok {
			opts.BidGenerators = append(opts.BidGenerators, bids)
			opts.AskGenerators = append(opts.AskGenerators, asks)
		}
	}
	if p.IncludeSerum && !p.Market.SerumMarket.IsZero() {
		if bids, asks, ok := h.backend.SerumGenerators(p.Market.SerumMarket); ok {
			opts.BidGenerators = append(opts.BidGenerators, bids)
			opts.AskGenerators = append(opts.AskGenerators, asks)
		}
	}

	book := snap.L2(p.Market.Key(), opts)

	var oracle *oracleData
	if p.IncludeOracle {
		if mb, ok := snap.Book(p.Market.Key()); ok {
			oracle = newOracleData(mb.Oracle)
		}
	}
	return newL2Response(p.Market, book, oracle)
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("write response", "error", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}
