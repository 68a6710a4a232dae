package record

import (
	"testing"

	"chart-recorder/internal/domain"
)

func TestBuildQuote_BidAskComputesSpreadAndMid(t *testing.T) {
	q := BuildQuote(testHeader(domain.StreamQuote), QuoteKindBidAsk, 6502.00, 6502.25, 12, 9, 77)
	if !approx(q.Spread, 0.25) {
		t.Errorf("Expected spread 0.25, got %v", q.Spread)
	}
	if !approx(q.Mid, 6502.125) {
		t.Errorf("Expected mid 6502.125, got %v", q.Mid)
	}
	if q.Seq != 77 || q.BidQty != 12 || q.AskQty != 9 {
		t.Errorf("Unexpected quote %+v", q)
	}
}

func TestBuildQuote_OneSidedLeavesDerivedZero(t *testing.T) {
	q := BuildQuote(testHeader(domain.StreamQuote), QuoteKindBid, 6502.00, 0, 12, 0, 0)
	if q.Spread != 0 || q.Mid != 0 {
		t.Errorf("One-sided quote must not derive spread/mid, got %+v", q)
	}

	// Combined kind with a missing side also skips the derivation.
	half := BuildQuote(testHeader(domain.StreamQuote), QuoteKindBidAsk, 0, 6502.25, 0, 9, 0)
	if half.Spread != 0 || half.Mid != 0 {
		t.Errorf("Half-empty book must not derive spread/mid, got %+v", half)
	}
}

func TestBuildDepth(t *testing.T) {
	d := BuildDepth(testHeader(domain.StreamDepth), DepthSideAsk, 3, 6502.75, 41)
	if d.Side != "ASK" || d.Level != 3 || d.Price != 6502.75 || d.Size != 41 {
		t.Errorf("Unexpected depth record %+v", d)
	}
}

func TestLevelTypeName(t *testing.T) {
	cases := []struct {
		role LevelRole
		sg   int
		want string
	}{
		{RoleGamma, 1, "call_resistance"},
		{RoleGamma, 2, "put_support"},
		{RoleGamma, 3, "hvl"},
		{RoleGamma, 7, "hvl_0dte"},
		{RoleGamma, 8, "gex_1"},
		{RoleGamma, 17, "gex_10"},
		{RoleBlind, 4, "blind_spot_4"},
		{RoleSwing, 2, "swing_lvl_2"},
		{LevelRole("other"), 6, "sg_6"},
	}
	for _, c := range cases {
		if got := LevelTypeName(c.role, c.sg); got != c.want {
			t.Errorf("LevelTypeName(%s, %d): expected %q, got %q", c.role, c.sg, c.want, got)
		}
	}
}
