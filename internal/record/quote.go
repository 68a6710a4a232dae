package record

import "chart-recorder/internal/domain"

// Quote kinds on the wire.
const (
	QuoteKindBid    = "BID"
	QuoteKindAsk    = "ASK"
	QuoteKindBidAsk = "BIDASK"
)

// BuildQuote constructs a quote record. Spread and midpoint are computed
// only for the combined bid-ask kind; one-sided quotes leave them zero.
func BuildQuote(h domain.Header, kind string, bid, ask float64, bidQty, askQty int, seq uint64) domain.Quote {
	q := domain.Quote{
		Header: h,
		Kind:   kind,
		Bid:    bid,
		Ask:    ask,
		BidQty: bidQty,
		AskQty: askQty,
		Seq:    seq,
	}
	if kind == QuoteKindBidAsk && bid > 0 && ask > 0 {
		q.Spread = ask - bid
		q.Mid = (bid + ask) / 2
	}
	return q
}

// BuildTrade constructs a trade record.
func BuildTrade(h domain.Header, price, qty float64, seq uint64) domain.Trade {
	return domain.Trade{Header: h, Price: price, Qty: qty, Seq: seq}
}

// DepthSideBid and DepthSideAsk are the depth side tags on the wire.
const (
	DepthSideBid = "BID"
	DepthSideAsk = "ASK"
)

// BuildDepth constructs one depth-level record.
func BuildDepth(h domain.Header, side string, level int, price float64, size int) domain.Depth {
	return domain.Depth{Header: h, Side: side, Level: level, Price: price, Size: size}
}
