package engine

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"

	"dlob-server/internal/chain"
	"dlob-server/internal/dlob"
	"dlob-server/internal/markets"
	"dlob-server/internal/provider"
	"dlob-server/internal/rpc"
	"dlob-server/internal/userstats"
	"dlob-server/pkg/types"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func key(b byte) types.Pubkey {
	var pk types.Pubkey
	pk[0] = b
	return pk
}

func openOrder(id uint32) types.Order {
	return types.Order{
		OrderID:                id,
		MarketType:             types.MarketTypePerp,
		Status:                 types.StatusOpen,
		OrderType:              types.OrderTypeLimit,
		Direction:              types.DirectionLong,
		Price:                  sdkmath.NewInt(100_000_000),
		TriggerPrice:           sdkmath.ZeroInt(),
		OraclePriceOffset:      sdkmath.ZeroInt(),
		BaseAssetAmount:        sdkmath.NewInt(1_000_000_000),
		BaseAssetAmountFilled:  sdkmath.ZeroInt(),
		QuoteAssetAmount:       sdkmath.ZeroInt(),
		QuoteAssetAmountFilled: sdkmath.ZeroInt(),
		AuctionStartPrice:      sdkmath.ZeroInt(),
		AuctionEndPrice:        sdkmath.ZeroInt(),
	}
}

// seededProvider is a pre-populated account index that reports subscribed.
type seededProvider struct {
	*provider.Index
	subscribed bool
}

func (p *seededProvider) Subscribe(context.Context) error { return nil }
func (p *seededProvider) Subscribed() bool                { return p.subscribed }

func testEngine(t *testing.T) *Engine {
	t.Helper()

	reg, err := markets.ForEnv("devnet")
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	idx := provider.NewIndex()
	idx.Upsert(key(1), &types.UserAccount{
		Authority: key(9),
		Orders:    []types.Order{openOrder(1)},
	})
	prov := &seededProvider{Index: idx, subscribed: true}

	stats := userstats.NewIndex(nil, discard())
	stats.Warm(prov.UniqueAuthorities())

	oracles := chain.NewOracleView()
	return &Engine{
		registry: reg,
		accounts: prov,
		oracles:  oracles,
		builder:  dlob.NewBuilder(prov, oracles, chain.NewSlotSource(), reg, discard()),
		stats:    stats,
		logger:   discard(),
	}
}

func TestReadyRequiresPublishedSnapshot(t *testing.T) {
	t.Parallel()

	e := testEngine(t)
	if e.Ready() {
		t.Error("must not report ready before the first snapshot is published")
	}

	e.builder.Tick(time.Now())
	if !e.Ready() {
		t.Error("must report ready once synced and a snapshot is published")
	}
}

func TestOpenOrdersListsWholeIndex(t *testing.T) {
	t.Parallel()

	e := testEngine(t)

	// A gated trigger order never enters the book but belongs in the dump.
	gated := openOrder(2)
	gated.OrderType = types.OrderTypeTriggerLimit
	gated.TriggerCondition = types.TriggerAbove
	gated.TriggerPrice = sdkmath.NewInt(150_000_000)
	e.accounts.(*seededProvider).Upsert(key(2), &types.UserAccount{
		Authority: key(9),
		Orders:    []types.Order{gated, openOrder(1)},
	})

	orders := e.OpenOrders()
	if len(orders) != 3 {
		t.Fatalf("got %d orders, want 3", len(orders))
	}
	// Sorted by user key, then order id within a user.
	if orders[0].User != key(1) || orders[1].User != key(2) || orders[2].User != key(2) {
		t.Errorf("user order = %s, %s, %s", orders[0].User, orders[1].User, orders[2].User)
	}
	if orders[1].Order.OrderID != 1 || orders[2].Order.OrderID != 2 {
		t.Errorf("order ids = %d, %d, want 1, 2", orders[1].Order.OrderID, orders[2].Order.OrderID)
	}
}

// statsServer answers getAccountInfo with data for the listed keys, null
// otherwise.
func statsServer(t *testing.T, existing map[string]bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     uint64 `json:"id"`
			Params []any  `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request: %v", err)
		}
		pubkey, _ := req.Params[0].(string)

		value := "null"
		if existing[pubkey] {
			value = fmt.Sprintf(`{"data":[%q,"base64"]}`, base64.StdEncoding.EncodeToString([]byte{1}))
		}
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"result":{"context":{"slot":10},"value":%s}}`, req.ID, value)
	}))
}

func TestStatsLoaderResolvesExistingAccount(t *testing.T) {
	t.Parallel()

	authority := key(9)
	statsKey := userstats.DeriveStatsKey(authority)

	srv := statsServer(t, map[string]bool{statsKey.String(): true})
	defer srv.Close()

	load := statsLoader(rpc.NewClient(srv.URL, discard()))
	entry, err := load(context.Background(), authority)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if entry.Authority != authority || entry.StatsKey != statsKey {
		t.Errorf("entry = %+v, want derived stats key for %s", entry, authority)
	}
}

func TestStatsLoaderErrorsOnMissingAccount(t *testing.T) {
	t.Parallel()

	srv := statsServer(t, nil)
	defer srv.Close()

	load := statsLoader(rpc.NewClient(srv.URL, discard()))
	if _, err := load(context.Background(), key(9)); err == nil {
		t.Error("missing stats account should error so the index falls back to derivation")
	}
}
