package domain

import (
	"github.com/gagliardetto/solana-go"
)

// RouteStep describes a single hop of a priced route.
type RouteStep struct {
	AmmKey     string
	Label      string
	InputMint  solana.PublicKey
	OutputMint solana.PublicKey
	InAmount   uint64
	OutAmount  uint64
	FeeAmount  uint64
}

// Quote is an immutable priced route returned by the swap-routing service.
// Policy: only direct single-hop routes are accepted, so a valid Quote always
// has exactly one RouteStep.
type Quote struct {
	InputMint            solana.PublicKey
	OutputMint           solana.PublicKey
	InAmount             uint64
	OutAmount            uint64
	OtherAmountThreshold uint64
	SlippageBps          uint16
	PriceImpactPct       float64
	Route                []RouteStep

	// Raw is the untouched JSON quote, echoed back verbatim when requesting
	// executable instructions for the route.
	Raw []byte
}

// Hops returns the number of route steps.
func (q *Quote) Hops() int {
	return len(q.Route)
}
