// Package estimator converts a desired target-asset output into a liquid
// asset borrow amount using a reference rate sample from the swap service.
package estimator

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog/log"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/hxuan190/flash-engine/internal/common"
	"github.com/hxuan190/flash-engine/internal/config"
	"github.com/hxuan190/flash-engine/internal/domain"
	"github.com/hxuan190/flash-engine/internal/services/swapapi"
)

const ESTIMATOR_SERVICE = "amount-estimator-service"

// referenceSampleLamports is the probe size for the rate sample: one whole
// unit of the liquid asset.
const referenceSampleLamports = common.LamportsPerUnit

// Quoter is the slice of the swap client the estimator needs.
type Quoter interface {
	GetQuote(ctx context.Context, inputMint, outputMint solana.PublicKey, amount uint64, slippageBps uint16) (*domain.Quote, error)
	DefaultSlippageBps() uint16
}

type Service struct {
	container.BaseDIInstance

	quoter        Quoter
	liquidityMint solana.PublicKey
}

func (svc *Service) ID() string {
	return ESTIMATOR_SERVICE
}

func (svc *Service) Configure(c container.IContainer) error {
	lendingConf := c.GetConfig(config.LENDING_CONFIG_KEY).(*config.LendingConfig)
	mint, err := solana.PublicKeyFromBase58(lendingConf.LiquidityMint)
	if err != nil {
		return fmt.Errorf("invalid liquidity mint %q: %w", lendingConf.LiquidityMint, err)
	}
	svc.liquidityMint = mint
	svc.quoter = c.Instance(swapapi.SWAP_API_SERVICE).(*swapapi.Service)
	return nil
}

// EstimateBorrow computes how much of the liquid asset to borrow so that
// swapping it yields roughly desiredOut of the target asset. It samples the
// rate with a one-unit quote and scales linearly, rounding up. Linear
// extrapolation ignores depth, so large amounts can come in under the target;
// the subsequent amount-accurate quote reports the real output.
func (svc *Service) EstimateBorrow(ctx context.Context, targetMint solana.PublicKey, desiredOut uint64, slippageBps uint16) (*domain.EstimateResult, error) {
	if desiredOut == 0 {
		return nil, fmt.Errorf("desired output must be positive")
	}
	if slippageBps == 0 {
		slippageBps = svc.quoter.DefaultSlippageBps()
	}

	quote, err := svc.quoter.GetQuote(ctx, svc.liquidityMint, targetMint, referenceSampleLamports, slippageBps)
	if err != nil {
		return nil, err
	}
	if quote.OutAmount == 0 {
		return nil, fmt.Errorf("%w: reference quote returned zero output", swapapi.ErrQuoteUnavailable)
	}

	borrow, err := scaleBorrow(desiredOut, quote.OutAmount)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("targetMint", targetMint.String()).
		Uint64("desiredOut", desiredOut).
		Uint64("referenceOut", quote.OutAmount).
		Uint64("borrow", borrow).
		Msg("[AmountEstimator] computed borrow estimate")

	return &domain.EstimateResult{
		TargetMint:     targetMint.String(),
		DesiredOut:     desiredOut,
		BorrowAmount:   borrow,
		PriceImpactPct: quote.PriceImpactPct,
	}, nil
}

// scaleBorrow returns ceil(desiredOut * sample / referenceOut) without
// intermediate overflow. Rounding up keeps the estimate on the side that
// over-delivers rather than under-delivers.
func scaleBorrow(desiredOut, referenceOut uint64) (uint64, error) {
	num := new(uint256.Int).Mul(
		uint256.NewInt(desiredOut),
		uint256.NewInt(referenceSampleLamports),
	)
	den := uint256.NewInt(referenceOut)

	q, rem := new(uint256.Int).DivMod(num, den, new(uint256.Int))
	if !rem.IsZero() {
		q.AddUint64(q, 1)
	}
	if !q.IsUint64() {
		return 0, fmt.Errorf("borrow estimate overflows uint64 (desiredOut=%d referenceOut=%d)", desiredOut, referenceOut)
	}
	return q.Uint64(), nil
}
