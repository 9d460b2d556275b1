package builder

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"

	"github.com/hxuan190/flash-engine/internal/domain"
	"github.com/hxuan190/flash-engine/internal/services/lending"
)

var (
	ErrRepayMismatch   = errors.New("repay amount must equal borrow amount")
	ErrMalformedPlan   = errors.New("flash-loan plan is malformed")
	ErrForeignCloseIx  = errors.New("route leg contains an escrow close instruction")
	ErrStrayBudgetIx   = errors.New("route leg contains a compute budget instruction")
	ErrBorrowDisplaced = errors.New("borrow instruction is not at its fixed index")
)

// Assemble lays the plan out as the final instruction list:
//
//	0-2  escrow setup (create, fund, sync)
//	3    flash borrow
//	4-5  compute budget (limit, price)
//	...  swap leg, optional reverse leg, caller extras
//	n-2  flash repay
//	n-1  escrow close
//
// The borrow's position is fixed because the repay instruction names it by
// index and the protocol verifies the reference on-chain. Close is strictly
// last so every intermediate instruction still sees a live escrow.
func Assemble(plan *domain.FlashLoanPlan, cuLimit uint32, cuPrice uint64) ([]solana.Instruction, error) {
	if plan == nil || plan.Route == nil {
		return nil, fmt.Errorf("%w: missing swap route", ErrMalformedPlan)
	}
	if plan.RepayAmount != plan.BorrowAmount {
		return nil, fmt.Errorf("%w: repay %d, borrow %d", ErrRepayMismatch, plan.RepayAmount, plan.BorrowAmount)
	}
	if len(plan.Setup) != lending.BorrowInstructionIndex+1 {
		return nil, fmt.Errorf("%w: setup has %d instructions, want %d", ErrMalformedPlan, len(plan.Setup), lending.BorrowInstructionIndex+1)
	}
	if plan.Setup[lending.BorrowInstructionIndex].Kind != domain.KindBorrow {
		return nil, ErrBorrowDisplaced
	}
	for _, ci := range plan.Setup[:lending.BorrowInstructionIndex] {
		if ci.Kind != domain.KindSetupEscrow {
			return nil, fmt.Errorf("%w: unexpected %s in setup", ErrMalformedPlan, ci.Kind)
		}
	}
	if plan.Repay.Kind != domain.KindRepay {
		return nil, fmt.Errorf("%w: missing repay", ErrMalformedPlan)
	}
	if plan.Close.Kind != domain.KindCloseEscrow {
		return nil, fmt.Errorf("%w: missing escrow close", ErrMalformedPlan)
	}

	legs := [][]domain.ClassifiedInstruction{plan.Route.Instructions}
	if plan.Back != nil {
		legs = append(legs, plan.Back.Instructions)
	}

	size := len(plan.Setup) + 2 + len(plan.Extra) + 2
	for _, leg := range legs {
		size += len(leg)
	}
	out := make([]solana.Instruction, 0, size)

	for _, ci := range plan.Setup {
		out = append(out, ci.Instruction)
	}

	out = append(out,
		computebudget.NewSetComputeUnitLimitInstruction(cuLimit).Build(),
		computebudget.NewSetComputeUnitPriceInstruction(cuPrice).Build(),
	)

	for _, leg := range legs {
		for _, ci := range leg {
			switch ci.Kind {
			case domain.KindCloseEscrow:
				return nil, ErrForeignCloseIx
			case domain.KindComputeBudget:
				return nil, ErrStrayBudgetIx
			}
			out = append(out, ci.Instruction)
		}
	}

	out = append(out, plan.Extra...)
	out = append(out, plan.Repay.Instruction, plan.Close.Instruction)

	return out, nil
}
