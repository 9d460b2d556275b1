package estimator

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"

	"github.com/hxuan190/flash-engine/internal/common"
	"github.com/hxuan190/flash-engine/internal/domain"
)

type fakeQuoter struct {
	out      uint64
	impact   float64
	err      error
	gotIn    solana.PublicKey
	gotOut   solana.PublicKey
	gotAmt   uint64
	gotSlip  uint16
	slippage uint16
}

func (f *fakeQuoter) GetQuote(_ context.Context, inputMint, outputMint solana.PublicKey, amount uint64, slippageBps uint16) (*domain.Quote, error) {
	f.gotIn, f.gotOut, f.gotAmt, f.gotSlip = inputMint, outputMint, amount, slippageBps
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Quote{
		InputMint:      inputMint,
		OutputMint:     outputMint,
		InAmount:       amount,
		OutAmount:      f.out,
		PriceImpactPct: f.impact,
	}, nil
}

func (f *fakeQuoter) DefaultSlippageBps() uint16 {
	return f.slippage
}

func newTestService(q Quoter) *Service {
	return &Service{
		quoter:        q,
		liquidityMint: common.WrappedSolMint,
	}
}

func TestEstimateBorrowRateExample(t *testing.T) {
	// One liquid unit buys 500 target units, so 1,000,000 target units
	// need 2,000 liquid units borrowed.
	q := &fakeQuoter{out: 500, slippage: 50}
	svc := newTestService(q)
	target := solana.NewWallet().PublicKey()

	res, err := svc.EstimateBorrow(context.Background(), target, 1_000_000, 0)
	if err != nil {
		t.Fatalf("EstimateBorrow failed: %v", err)
	}
	want := uint64(2_000) * common.LamportsPerUnit
	if res.BorrowAmount != want {
		t.Errorf("borrow = %d, want %d", res.BorrowAmount, want)
	}
	if q.gotAmt != common.LamportsPerUnit {
		t.Errorf("reference sample = %d, want %d", q.gotAmt, uint64(common.LamportsPerUnit))
	}
	if !q.gotIn.Equals(common.WrappedSolMint) || !q.gotOut.Equals(target) {
		t.Errorf("quote direction = %s -> %s, want liquid -> target", q.gotIn, q.gotOut)
	}
	if q.gotSlip != 50 {
		t.Errorf("slippage = %d, want default 50", q.gotSlip)
	}
}

func TestEstimateBorrowRoundsUp(t *testing.T) {
	// 3 target units per liquid unit and desiredOut not divisible by 3:
	// the estimate must round toward over-delivery.
	q := &fakeQuoter{out: 3}
	svc := newTestService(q)

	res, err := svc.EstimateBorrow(context.Background(), solana.NewWallet().PublicKey(), 10, 25)
	if err != nil {
		t.Fatalf("EstimateBorrow failed: %v", err)
	}
	// ceil(10 * 1e9 / 3) = 3333333334
	if res.BorrowAmount != 3_333_333_334 {
		t.Errorf("borrow = %d, want 3333333334", res.BorrowAmount)
	}
}

func TestEstimateBorrowZeroDesired(t *testing.T) {
	svc := newTestService(&fakeQuoter{out: 500})
	if _, err := svc.EstimateBorrow(context.Background(), solana.NewWallet().PublicKey(), 0, 50); err == nil {
		t.Error("expected error for zero desired output")
	}
}

func TestEstimateBorrowQuoteError(t *testing.T) {
	wantErr := errors.New("upstream down")
	svc := newTestService(&fakeQuoter{err: wantErr})
	if _, err := svc.EstimateBorrow(context.Background(), solana.NewWallet().PublicKey(), 100, 50); !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want wrapped %v", err, wantErr)
	}
}

func TestEstimateBorrowZeroReferenceOut(t *testing.T) {
	svc := newTestService(&fakeQuoter{out: 0})
	if _, err := svc.EstimateBorrow(context.Background(), solana.NewWallet().PublicKey(), 100, 50); err == nil {
		t.Error("expected error for zero reference output")
	}
}

func TestScaleBorrowOverflow(t *testing.T) {
	// A huge desired output against a tiny rate overflows uint64.
	if _, err := scaleBorrow(1<<63, 1); err == nil {
		t.Error("expected overflow error")
	}
}
