package types

import (
	"encoding/json"
	"testing"

	sdkmath "cosmossdk.io/math"
)

func TestPubkeyRoundTrip(t *testing.T) {
	t.Parallel()

	var pk Pubkey
	for i := range pk {
		pk[i] = byte(i)
	}

	parsed, err := ParsePubkey(pk.String())
	if err != nil {
		t.Fatalf("ParsePubkey: %v", err)
	}
	if parsed != pk {
		t.Errorf("round trip = %s, want %s", parsed, pk)
	}
}

func TestParsePubkeyRejects(t *testing.T) {
	t.Parallel()

	if _, err := ParsePubkey("0OIl"); err == nil {
		t.Error("non-base58 characters should fail")
	}
	if _, err := ParsePubkey("abc"); err == nil {
		t.Error("wrong length should fail")
	}
}

func TestPubkeyAsJSONMapKey(t *testing.T) {
	t.Parallel()

	var pk Pubkey
	pk[0] = 1
	m := map[Pubkey]int{pk: 7}

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back map[Pubkey]int
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back[pk] != 7 {
		t.Errorf("round trip lost the entry: %v", back)
	}
}

func TestParseMarketType(t *testing.T) {
	t.Parallel()

	for raw, want := range map[string]MarketType{
		"perp": MarketTypePerp, "PERP": MarketTypePerp,
		"spot": MarketTypeSpot, "SPOT": MarketTypeSpot,
	} {
		got, err := ParseMarketType(raw)
		if err != nil || got != want {
			t.Errorf("ParseMarketType(%q) = (%s, %v), want %s", raw, got, err, want)
		}
	}
	if _, err := ParseMarketType("future"); err == nil {
		t.Error("unknown market type should fail")
	}
}

func TestOrderInAuction(t *testing.T) {
	t.Parallel()

	o := Order{Slot: 100, AuctionDuration: 10}
	if !o.InAuction(100) || !o.InAuction(109) {
		t.Error("slots inside the window should be in auction")
	}
	if o.InAuction(110) {
		t.Error("slot at window end should be out of auction")
	}
	if o.InAuction(99) {
		t.Error("slots before posting should be out of auction")
	}

	none := Order{Slot: 100}
	if none.InAuction(100) {
		t.Error("zero duration means no auction")
	}
}

func TestOrderExpired(t *testing.T) {
	t.Parallel()

	o := Order{MaxTS: 1000}
	if !o.Expired(1001) {
		t.Error("past maxTs should be expired")
	}
	if o.Expired(1000) || o.Expired(999) {
		t.Error("at or before maxTs should not be expired")
	}

	forever := Order{}
	if forever.Expired(1 << 40) {
		t.Error("zero maxTs means no expiry")
	}
}

func TestTriggerSatisfied(t *testing.T) {
	t.Parallel()

	above := Order{OrderType: OrderTypeTriggerLimit, TriggerCondition: TriggerAbove, TriggerPrice: sdkmath.NewInt(100)}
	if !above.TriggerSatisfied(sdkmath.NewInt(101)) {
		t.Error("oracle above trigger should satisfy TriggerAbove")
	}
	if above.TriggerSatisfied(sdkmath.NewInt(100)) {
		t.Error("oracle at trigger should not satisfy TriggerAbove")
	}

	below := Order{OrderType: OrderTypeTriggerMarket, TriggerCondition: TriggerBelow, TriggerPrice: sdkmath.NewInt(100)}
	if !below.TriggerSatisfied(sdkmath.NewInt(99)) {
		t.Error("oracle below trigger should satisfy TriggerBelow")
	}

	plain := Order{OrderType: OrderTypeLimit}
	if !plain.TriggerSatisfied(sdkmath.NewInt(1)) {
		t.Error("non-trigger orders satisfy trivially")
	}
}

func TestOpenOrders(t *testing.T) {
	t.Parallel()

	u := UserAccount{Orders: []Order{
		{OrderID: 1, Status: StatusOpen},
		{OrderID: 2, Status: StatusInit},
		{OrderID: 3, Status: StatusOpen},
	}}
	open := u.OpenOrders()
	if len(open) != 2 {
		t.Fatalf("got %d open orders, want 2", len(open))
	}
}

func TestBaseRemainingNilSafety(t *testing.T) {
	t.Parallel()

	var o Order
	if !o.BaseRemaining().IsZero() {
		t.Error("nil-backed amounts should count as zero")
	}

	o.BaseAssetAmount = sdkmath.NewInt(10)
	if !o.BaseRemaining().Equal(sdkmath.NewInt(10)) {
		t.Error("nil filled amount should count as zero filled")
	}
}
