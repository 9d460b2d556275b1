package swapapi

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/hxuan190/flash-engine/internal/domain"
)

// extractRouteInstructions decodes the swap service's serialized transaction
// and returns only the instructions that belong inside the flash-loan
// envelope.
//
// Two shapes are removed:
//   - compute-budget instructions: the assembler sets one global budget and
//     duplicates would conflict;
//   - close-account instructions targeting the escrow: the swap service is
//     unaware of the flash-loan lifecycle, and closing the escrow before the
//     repay instruction runs makes repayment impossible.
func extractRouteInstructions(raw []byte, escrow, sourceOverride solana.PublicKey) ([]domain.ClassifiedInstruction, error) {
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: decode transaction: %v", ErrMalformedResponse, err)
	}

	msg := &tx.Message
	cc := domain.ClassifyContext{Escrow: escrow}

	out := make([]domain.ClassifiedInstruction, 0, len(msg.Instructions))
	for _, cix := range msg.Instructions {
		if int(cix.ProgramIDIndex) >= len(msg.AccountKeys) {
			return nil, fmt.Errorf("%w: program index %d out of range", ErrMalformedResponse, cix.ProgramIDIndex)
		}
		program := msg.AccountKeys[cix.ProgramIDIndex]

		accounts, err := cix.ResolveInstructionAccounts(msg)
		if err != nil {
			return nil, fmt.Errorf("%w: resolve accounts: %v", ErrMalformedResponse, err)
		}

		ix := solana.NewInstruction(program, accounts, cix.Data)
		kind := domain.Classify(ix, cc)

		switch kind {
		case domain.KindComputeBudget, domain.KindCloseEscrow:
			continue
		case domain.KindUnknown:
			// Everything the route service emits that survives filtering is
			// part of the swap leg.
			kind = domain.KindSwap
		}

		if !sourceOverride.IsZero() {
			ix = rewriteSource(ix, sourceOverride, escrow)
		}

		out = append(out, domain.ClassifiedInstruction{
			Kind:        kind,
			Instruction: ix,
		})
	}

	return out, nil
}

// rewriteSource redirects references from the caller's ordinary liquid-asset
// holding account to the flash-loan escrow, where the borrowed funds actually
// live. The rewritten reference can no longer be a signer: the escrow is a
// program-derived token account, not a keypair.
func rewriteSource(ix solana.Instruction, from, to solana.PublicKey) solana.Instruction {
	accounts := ix.Accounts()

	patched := make([]*solana.AccountMeta, len(accounts))
	touched := false
	for i, meta := range accounts {
		if meta.PublicKey.Equals(from) {
			patched[i] = &solana.AccountMeta{
				PublicKey:  to,
				IsSigner:   false,
				IsWritable: meta.IsWritable,
			}
			touched = true
			continue
		}
		patched[i] = meta
	}
	if !touched {
		return ix
	}

	data, err := ix.Data()
	if err != nil {
		return ix
	}
	return solana.NewInstruction(ix.ProgramID(), patched, data)
}
