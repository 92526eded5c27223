package vamm

import (
	"testing"

	sdkmath "cosmossdk.io/math"

	"dlob-server/internal/dlob"
)

// testState quotes a reserve price of 100.0 with a 20 bps spread.
func testState() State {
	return State{
		BaseAssetReserve:  sdkmath.NewInt(1_000_000_000_000),
		QuoteAssetReserve: sdkmath.NewInt(1_000_000_000_000),
		PegMultiplier:     sdkmath.NewInt(100_000_000), // 100.0
		SpreadBps:         20,
		MaxSpreadBps:      200,
		OpenBids:          sdkmath.NewInt(100_000_000_000), // 100 base
		OpenAsks:          sdkmath.NewInt(100_000_000_000),
	}
}

func drainGen(g dlob.L2Generator) []dlob.Level {
	var out []dlob.Level
	for {
		l, ok := g.Next()
		if !ok {
			return out
		}
		out = append(out, l)
	}
}

func TestReservePrice(t *testing.T) {
	t.Parallel()

	if got := testState().ReservePrice(); !got.Equal(sdkmath.NewInt(100_000_000)) {
		t.Errorf("reserve price = %s, want 100000000", got)
	}
}

func TestGeneratorBidSide(t *testing.T) {
	t.Parallel()

	levels := drainGen(Generator(testState(), dlob.SideBid, 4))
	if len(levels) != 4 {
		t.Fatalf("got %d levels, want 4", len(levels))
	}

	// Best bid is reserve shaded by half the spread (10 bps): 99.9.
	if want := sdkmath.NewInt(99_900_000); !levels[0].Price.Equal(want) {
		t.Errorf("best bid = %s, want %s", levels[0].Price, want)
	}
	// Worst bid is shaded by half the max spread (100 bps): 99.0.
	if want := sdkmath.NewInt(99_000_000); !levels[3].Price.Equal(want) {
		t.Errorf("worst bid = %s, want %s", levels[3].Price, want)
	}
	// Descending toward the worst quote.
	for i := 1; i < len(levels); i++ {
		if !levels[i].Price.LT(levels[i-1].Price) {
			t.Errorf("bid levels not descending at %d", i)
		}
	}
	// Open interest splits evenly.
	if want := sdkmath.NewInt(25_000_000_000); !levels[0].Size.Equal(want) {
		t.Errorf("level size = %s, want %s", levels[0].Size, want)
	}
}

func TestGeneratorAskSide(t *testing.T) {
	t.Parallel()

	levels := drainGen(Generator(testState(), dlob.SideAsk, 4))
	if len(levels) != 4 {
		t.Fatalf("got %d levels, want 4", len(levels))
	}

	if want := sdkmath.NewInt(100_100_000); !levels[0].Price.Equal(want) {
		t.Errorf("best ask = %s, want %s", levels[0].Price, want)
	}
	if want := sdkmath.NewInt(101_000_000); !levels[3].Price.Equal(want) {
		t.Errorf("worst ask = %s, want %s", levels[3].Price, want)
	}
	for i := 1; i < len(levels); i++ {
		if !levels[i].Price.GT(levels[i-1].Price) {
			t.Errorf("ask levels not ascending at %d", i)
		}
	}
}

func TestGeneratorSourceName(t *testing.T) {
	t.Parallel()

	g := Generator(testState(), dlob.SideBid, 1)
	if g.Source() != Source {
		t.Errorf("source = %q, want %q", g.Source(), Source)
	}
}

func TestGeneratorNilCases(t *testing.T) {
	t.Parallel()

	if Generator(State{}, dlob.SideBid, 10) != nil {
		t.Error("invalid state should yield no generator")
	}

	s := testState()
	s.OpenBids = sdkmath.ZeroInt()
	if Generator(s, dlob.SideBid, 10) != nil {
		t.Error("no open bids should yield no bid generator")
	}
	if Generator(s, dlob.SideAsk, 10) == nil {
		t.Error("ask side should still quote")
	}

	if Generator(testState(), dlob.SideBid, 0) != nil {
		t.Error("numOrders 0 should yield no generator")
	}
}

func TestGeneratorDustFallsBackToSingleLevel(t *testing.T) {
	t.Parallel()

	s := testState()
	s.OpenBids = sdkmath.NewInt(3) // cannot split across levels

	levels := drainGen(Generator(s, dlob.SideBid, 10))
	if len(levels) != 1 {
		t.Fatalf("got %d levels, want 1", len(levels))
	}
	if !levels[0].Size.Equal(sdkmath.NewInt(3)) {
		t.Errorf("size = %s, want 3", levels[0].Size)
	}
}
