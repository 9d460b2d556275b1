package domain

import (
	"github.com/gagliardetto/solana-go"

	"github.com/hxuan190/flash-engine/internal/common"
)

// InstructionKind is the closed set of instruction shapes the assembler
// orders and filters by. Classification happens once, at ingestion; the
// assembler never sniffs raw payload bytes itself.
type InstructionKind uint8

const (
	KindUnknown InstructionKind = iota
	KindSetupEscrow
	KindComputeBudget
	KindSwap
	KindBorrow
	KindRepay
	KindCloseEscrow
)

func (k InstructionKind) String() string {
	switch k {
	case KindSetupEscrow:
		return "SetupEscrow"
	case KindComputeBudget:
		return "ComputeBudget"
	case KindSwap:
		return "Swap"
	case KindBorrow:
		return "Borrow"
	case KindRepay:
		return "Repay"
	case KindCloseEscrow:
		return "CloseEscrow"
	default:
		return "Unknown"
	}
}

// Token program discriminants recognized during classification.
const (
	TokenIxTransfer     = 3
	TokenIxCloseAccount = 9
	TokenIxSyncNative   = 17
)

// ClassifiedInstruction pairs an opaque ledger instruction with its
// recognized shape.
type ClassifiedInstruction struct {
	Kind        InstructionKind
	Instruction solana.Instruction
}

// ClassifyContext carries the addresses needed to tell a generic instruction
// from one touching the flash-loan lifecycle.
type ClassifyContext struct {
	Escrow         solana.PublicKey
	LendingProgram solana.PublicKey
}

// Classify maps an instruction to its kind. Anything not recognized stays
// Unknown and is treated as an opaque swap-route step by callers that fetched
// it from the swap service.
func Classify(ix solana.Instruction, cc ClassifyContext) InstructionKind {
	program := ix.ProgramID()

	if program.Equals(common.ComputeBudgetProgramID) {
		return KindComputeBudget
	}

	if program.Equals(common.TokenProgramID) || program.Equals(common.Token2022ID) {
		data, err := ix.Data()
		if err != nil || len(data) == 0 {
			return KindUnknown
		}
		accounts := ix.Accounts()
		switch data[0] {
		case TokenIxCloseAccount:
			if len(accounts) > 0 && accounts[0].PublicKey.Equals(cc.Escrow) {
				return KindCloseEscrow
			}
		case TokenIxSyncNative:
			if len(accounts) > 0 && accounts[0].PublicKey.Equals(cc.Escrow) {
				return KindSetupEscrow
			}
		}
		return KindUnknown
	}

	if program.Equals(common.ATAProgramID) {
		// ATA create account layout: [payer, ata, owner, mint, ...]
		accounts := ix.Accounts()
		if len(accounts) > 1 && accounts[1].PublicKey.Equals(cc.Escrow) {
			return KindSetupEscrow
		}
		return KindUnknown
	}

	if program.Equals(solana.SystemProgramID) {
		accounts := ix.Accounts()
		if len(accounts) > 1 && accounts[1].PublicKey.Equals(cc.Escrow) {
			return KindSetupEscrow
		}
		return KindUnknown
	}

	if !cc.LendingProgram.IsZero() && program.Equals(cc.LendingProgram) {
		data, err := ix.Data()
		if err != nil || len(data) == 0 {
			return KindUnknown
		}
		switch data[0] {
		case FlashBorrowDiscriminator:
			return KindBorrow
		case FlashRepayDiscriminator:
			return KindRepay
		}
	}

	return KindUnknown
}

// Lending program instruction discriminants.
const (
	FlashBorrowDiscriminator = 19
	FlashRepayDiscriminator  = 20
)

// RouteInstructions is the filtered, patched instruction set for one swap
// leg, plus the lookup tables the route depends on.
type RouteInstructions struct {
	Instructions []ClassifiedInstruction
	LookupTables []solana.PublicKey
}
