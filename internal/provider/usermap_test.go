package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"

	"dlob-server/internal/chain"
	"dlob-server/internal/idl"
	"dlob-server/internal/rpc"
	"dlob-server/pkg/types"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func encodedUser(authority types.Pubkey, orders int) string {
	user := &types.UserAccount{Authority: authority}
	for i := 0; i < orders; i++ {
		user.Orders = append(user.Orders, types.Order{
			OrderID:                uint32(i + 1),
			Status:                 types.StatusOpen,
			OrderType:              types.OrderTypeLimit,
			MarketType:             types.MarketTypePerp,
			Price:                  sdkmath.NewInt(100_000_000),
			TriggerPrice:           sdkmath.ZeroInt(),
			OraclePriceOffset:      sdkmath.ZeroInt(),
			BaseAssetAmount:        sdkmath.NewInt(1_000_000_000),
			BaseAssetAmountFilled:  sdkmath.ZeroInt(),
			QuoteAssetAmount:       sdkmath.ZeroInt(),
			QuoteAssetAmountFilled: sdkmath.ZeroInt(),
			AuctionStartPrice:      sdkmath.ZeroInt(),
			AuctionEndPrice:        sdkmath.ZeroInt(),
		})
	}
	return base64.StdEncoding.EncodeToString(idl.EncodeUser(user))
}

// programAccountsServer answers getProgramAccounts with the given
// pubkey → payload set.
func programAccountsServer(t *testing.T, payloads map[types.Pubkey]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID uint64 `json:"id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request: %v", err)
		}

		entries := make([]string, 0, len(payloads))
		for pk, data := range payloads {
			entries = append(entries, fmt.Sprintf(`{"pubkey":%q,"account":{"data":[%q,"base64"]}}`, pk, data))
		}
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"result":[%s]}`, req.ID, strings.Join(entries, ","))
	}))
}

func TestUserMapInitialSync(t *testing.T) {
	t.Parallel()

	userA, userB := key(1), key(2)
	srv := programAccountsServer(t, map[types.Pubkey]string{
		userA: encodedUser(key(10), 2),
		userB: encodedUser(key(11), 1),
	})
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewUserMap(rpc.NewClient(srv.URL, discard()), types.Pubkey{}, idl.DecodeUser, time.Hour, discard())
	if m.Subscribed() {
		t.Error("must not report subscribed before the first sync")
	}
	if err := m.Subscribe(ctx); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if !m.Subscribed() {
		t.Error("must report subscribed after the first sync")
	}
	if m.Size() != 2 {
		t.Errorf("size = %d, want 2", m.Size())
	}

	got, ok := m.Get(userA)
	if !ok {
		t.Fatal("missing synced account")
	}
	if got.Authority != key(10) || len(got.Orders) != 2 {
		t.Errorf("account = %+v", got)
	}

	authorities := m.UniqueAuthorities()
	if len(authorities) != 2 {
		t.Errorf("got %d authorities, want 2", len(authorities))
	}
}

func TestUserMapSkipsUndecodableAccounts(t *testing.T) {
	t.Parallel()

	srv := programAccountsServer(t, map[types.Pubkey]string{
		key(1): encodedUser(key(10), 1),
		key(2): base64.StdEncoding.EncodeToString([]byte("garbage")),
	})
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewUserMap(rpc.NewClient(srv.URL, discard()), types.Pubkey{}, idl.DecodeUser, time.Hour, discard())
	if err := m.Subscribe(ctx); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if m.Size() != 1 {
		t.Errorf("size = %d, want 1 (bad account skipped)", m.Size())
	}
}

func TestOrderSubscriberApply(t *testing.T) {
	t.Parallel()

	slots := chain.NewSlotSource()
	s := &OrderSubscriber{
		Index:  NewIndex(),
		decode: idl.DecodeUser,
		slots:  slots,
		logger: discard(),
	}

	user := key(1)
	payload, err := base64.StdEncoding.DecodeString(encodedUser(key(10), 1))
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}

	s.apply(rpc.AccountUpdate{Pubkey: user, Data: payload, Slot: 321})
	if s.Size() != 1 {
		t.Fatalf("size = %d, want 1", s.Size())
	}
	if slots.Slot() != 321 {
		t.Errorf("slot = %d, want 321 (updated from the push)", slots.Slot())
	}

	// A closed account drops out of the index.
	s.apply(rpc.AccountUpdate{Pubkey: user, Deleted: true, Slot: 322})
	if s.Size() != 0 {
		t.Errorf("size after delete = %d, want 0", s.Size())
	}

	// Garbage updates are skipped without disturbing the index.
	s.apply(rpc.AccountUpdate{Pubkey: user, Data: []byte("junk"), Slot: 323})
	if s.Size() != 0 {
		t.Errorf("size after junk = %d, want 0", s.Size())
	}
}
