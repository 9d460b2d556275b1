package builder

import (
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"

	"github.com/hxuan190/flash-engine/internal/common"
	"github.com/hxuan190/flash-engine/internal/config"
	"github.com/hxuan190/flash-engine/internal/domain"
	"github.com/hxuan190/flash-engine/internal/services/lending"
)

func testAccounts(t *testing.T) *lending.Accounts {
	t.Helper()
	acc, err := lending.ParseAccounts(&config.LendingConfig{
		ProgramID:              "So1endDq2YkqhipRh3WViPa8hdiSpxWy6z3Z6tMCpAo",
		Market:                 "4UpD2fh7xH3VP9QQaXtsS1YY3bxzWhtfpks7FatyKvdY",
		Reserve:                "8PbodeaosQP19SjYFx855UMqWxH2HynZLdBXmsrbac36",
		LiquiditySupply:        "8UviNr47S8eL32nfdMjcrSA2GGpVrUsCQk8i7FzimvMm",
		LiquidityMint:          common.WrappedSolMint.String(),
		FeeReceiver:            "5wo1tdCqGUuT4FQsgWg9XMENt8ZsNyzhEq1w8CnAcW33",
		FlashFeeBps:            30,
		EscrowHeadroomLamports: 10_000,
	})
	if err != nil {
		t.Fatalf("ParseAccounts failed: %v", err)
	}
	return acc
}

func swapIx(program solana.PublicKey) domain.ClassifiedInstruction {
	return domain.ClassifiedInstruction{
		Kind: domain.KindSwap,
		Instruction: solana.NewInstruction(
			program,
			solana.AccountMetaSlice{solana.NewAccountMeta(solana.NewWallet().PublicKey(), true, false)},
			[]byte{1, 2, 3},
		),
	}
}

func testPlan(t *testing.T, borrow uint64) *domain.FlashLoanPlan {
	t.Helper()
	acc := testAccounts(t)
	wallet := solana.NewWallet().PublicKey()
	escrow, err := lending.DeriveEscrow(wallet, acc.LiquidityMint)
	if err != nil {
		t.Fatalf("DeriveEscrow failed: %v", err)
	}
	setup, err := acc.SetupInstructions(wallet, escrow, borrow)
	if err != nil {
		t.Fatalf("SetupInstructions failed: %v", err)
	}
	routeProgram := solana.NewWallet().PublicKey()
	return &domain.FlashLoanPlan{
		BorrowAmount: borrow,
		SwapAmount:   borrow,
		RepayAmount:  borrow,
		Escrow:       escrow,
		Setup:        setup,
		Route: &domain.RouteInstructions{
			Instructions: []domain.ClassifiedInstruction{swapIx(routeProgram), swapIx(routeProgram)},
		},
		Repay: acc.RepayInstruction(wallet, escrow, borrow, lending.BorrowInstructionIndex),
		Close: lending.CloseEscrowInstruction(wallet, escrow),
	}
}

func TestAssembleOrdering(t *testing.T) {
	plan := testPlan(t, 5_000_000)

	ixs, err := Assemble(plan, 1_400_000, 1_000)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	// create, fund, sync, borrow, cuLimit, cuPrice, swap x2, repay, close
	if len(ixs) != 10 {
		t.Fatalf("instruction count = %d, want 10", len(ixs))
	}

	// Borrow at its fixed index.
	borrowData, err := ixs[lending.BorrowInstructionIndex].Data()
	if err != nil {
		t.Fatalf("Data failed: %v", err)
	}
	if borrowData[0] != domain.FlashBorrowDiscriminator {
		t.Errorf("instruction %d discriminator = %d, want borrow", lending.BorrowInstructionIndex, borrowData[0])
	}

	// Compute budget immediately after the borrow.
	if !ixs[4].ProgramID().Equals(common.ComputeBudgetProgramID) || !ixs[5].ProgramID().Equals(common.ComputeBudgetProgramID) {
		t.Error("compute budget instructions not at indices 4-5")
	}

	// Repay second to last, referencing the borrow index.
	repayData, err := ixs[len(ixs)-2].Data()
	if err != nil {
		t.Fatalf("Data failed: %v", err)
	}
	if repayData[0] != domain.FlashRepayDiscriminator {
		t.Error("second to last instruction is not the repay")
	}
	if repayData[9] != lending.BorrowInstructionIndex {
		t.Errorf("repay references index %d, want %d", repayData[9], lending.BorrowInstructionIndex)
	}

	// Close strictly last.
	closeData, err := ixs[len(ixs)-1].Data()
	if err != nil {
		t.Fatalf("Data failed: %v", err)
	}
	if closeData[0] != domain.TokenIxCloseAccount {
		t.Error("last instruction is not the escrow close")
	}
}

func TestAssembleRepayMismatch(t *testing.T) {
	plan := testPlan(t, 5_000_000)
	plan.RepayAmount = plan.BorrowAmount + 1

	if _, err := Assemble(plan, 1_400_000, 1_000); !errors.Is(err, ErrRepayMismatch) {
		t.Errorf("err = %v, want ErrRepayMismatch", err)
	}
}

func TestAssembleRejectsForeignClose(t *testing.T) {
	plan := testPlan(t, 5_000_000)
	plan.Route.Instructions = append(plan.Route.Instructions, domain.ClassifiedInstruction{
		Kind:        domain.KindCloseEscrow,
		Instruction: plan.Close.Instruction,
	})

	if _, err := Assemble(plan, 1_400_000, 1_000); !errors.Is(err, ErrForeignCloseIx) {
		t.Errorf("err = %v, want ErrForeignCloseIx", err)
	}
}

func TestAssembleRejectsStrayBudget(t *testing.T) {
	plan := testPlan(t, 5_000_000)
	plan.Route.Instructions = append(plan.Route.Instructions, domain.ClassifiedInstruction{
		Kind:        domain.KindComputeBudget,
		Instruction: solana.NewInstruction(common.ComputeBudgetProgramID, solana.AccountMetaSlice{}, []byte{2}),
	})

	if _, err := Assemble(plan, 1_400_000, 1_000); !errors.Is(err, ErrStrayBudgetIx) {
		t.Errorf("err = %v, want ErrStrayBudgetIx", err)
	}
}

func TestAssembleWithBackLegAndExtras(t *testing.T) {
	plan := testPlan(t, 5_000_000)
	backProgram := solana.NewWallet().PublicKey()
	plan.Back = &domain.RouteInstructions{
		Instructions: []domain.ClassifiedInstruction{swapIx(backProgram)},
	}
	extra := solana.NewInstruction(
		solana.MemoProgramID,
		solana.AccountMetaSlice{},
		[]byte("tag"),
	)
	plan.Extra = []solana.Instruction{extra}

	ixs, err := Assemble(plan, 1_400_000, 1_000)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	// setup(4) + budget(2) + route(2) + back(1) + extra(1) + repay + close
	if len(ixs) != 12 {
		t.Fatalf("instruction count = %d, want 12", len(ixs))
	}

	// Extras sit between the legs and the repay.
	if !ixs[9].ProgramID().Equals(solana.MemoProgramID) {
		t.Error("extra instruction not placed before repay")
	}
	data, _ := ixs[10].Data()
	if data[0] != domain.FlashRepayDiscriminator {
		t.Error("repay does not immediately follow the extras")
	}
}

func TestAssembleBorrowDisplaced(t *testing.T) {
	plan := testPlan(t, 5_000_000)
	plan.Setup[2], plan.Setup[3] = plan.Setup[3], plan.Setup[2]

	if _, err := Assemble(plan, 1_400_000, 1_000); !errors.Is(err, ErrBorrowDisplaced) {
		t.Errorf("err = %v, want ErrBorrowDisplaced", err)
	}
}

func TestAssembleNilRoute(t *testing.T) {
	plan := testPlan(t, 5_000_000)
	plan.Route = nil

	if _, err := Assemble(plan, 1_400_000, 1_000); !errors.Is(err, ErrMalformedPlan) {
		t.Errorf("err = %v, want ErrMalformedPlan", err)
	}
}
