// Package lending wraps the lending protocol's native flash borrow and repay
// instruction constructors plus the escrow lifecycle around them.
package lending

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"

	"github.com/hxuan190/flash-engine/internal/config"
	"github.com/hxuan190/flash-engine/internal/domain"
)

// BorrowInstructionIndex is the position of the flash borrow inside every
// assembled list: the escrow setup occupies indices 0-2 and borrow sits at 3.
// The repay instruction declares this index and the protocol verifies it
// on-chain, so the value is load-bearing, not a convention.
const BorrowInstructionIndex = 3

// Accounts is the parsed form of config.LendingConfig.
type Accounts struct {
	ProgramID       solana.PublicKey
	Market          solana.PublicKey
	MarketAuthority solana.PublicKey
	Reserve         solana.PublicKey
	LiquiditySupply solana.PublicKey
	LiquidityMint   solana.PublicKey
	FeeReceiver     solana.PublicKey

	FlashFeeBps            uint16
	EscrowHeadroomLamports uint64
}

// ParseAccounts resolves the configured base58 addresses and derives the
// market authority PDA.
func ParseAccounts(conf *config.LendingConfig) (*Accounts, error) {
	programID, err := solana.PublicKeyFromBase58(conf.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("invalid lending program id %q: %w", conf.ProgramID, err)
	}
	market, err := solana.PublicKeyFromBase58(conf.Market)
	if err != nil {
		return nil, fmt.Errorf("invalid lending market %q: %w", conf.Market, err)
	}
	reserve, err := solana.PublicKeyFromBase58(conf.Reserve)
	if err != nil {
		return nil, fmt.Errorf("invalid reserve %q: %w", conf.Reserve, err)
	}
	supply, err := solana.PublicKeyFromBase58(conf.LiquiditySupply)
	if err != nil {
		return nil, fmt.Errorf("invalid liquidity supply %q: %w", conf.LiquiditySupply, err)
	}
	mint, err := solana.PublicKeyFromBase58(conf.LiquidityMint)
	if err != nil {
		return nil, fmt.Errorf("invalid liquidity mint %q: %w", conf.LiquidityMint, err)
	}
	feeReceiver, err := solana.PublicKeyFromBase58(conf.FeeReceiver)
	if err != nil {
		return nil, fmt.Errorf("invalid fee receiver %q: %w", conf.FeeReceiver, err)
	}

	authority, _, err := solana.FindProgramAddress([][]byte{market.Bytes()}, programID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive market authority: %w", err)
	}

	return &Accounts{
		ProgramID:              programID,
		Market:                 market,
		MarketAuthority:        authority,
		Reserve:                reserve,
		LiquiditySupply:        supply,
		LiquidityMint:          mint,
		FeeReceiver:            feeReceiver,
		FlashFeeBps:            conf.FlashFeeBps,
		EscrowHeadroomLamports: conf.EscrowHeadroomLamports,
	}, nil
}

// DeriveEscrow returns the transaction-scoped escrow for a wallet: the
// associated token account of the liquid asset. Deterministic per
// (wallet, mint), created and closed within the same transaction.
func DeriveEscrow(wallet, liquidityMint solana.PublicKey) (solana.PublicKey, error) {
	escrow, _, err := solana.FindAssociatedTokenAddress(wallet, liquidityMint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive escrow: %w", err)
	}
	return escrow, nil
}

// FundingLamports estimates the protocol flash fee on a borrow plus the
// configured headroom. This funds the escrow up front so repay (amount + the
// protocol-computed fee) clears; it never changes the repay amount itself.
func (a *Accounts) FundingLamports(borrow uint64) uint64 {
	fee := borrow / 10000 * uint64(a.FlashFeeBps)
	rem := borrow % 10000 * uint64(a.FlashFeeBps)
	fee += (rem + 9999) / 10000 // round up
	return fee + a.EscrowHeadroomLamports
}

// SetupInstructions produces the fixed 4-instruction prologue:
// create escrow, fund it, sync its native balance, flash borrow.
// Borrow is always last, at BorrowInstructionIndex within the final list.
func (a *Accounts) SetupInstructions(wallet, escrow solana.PublicKey, borrow uint64) ([]domain.ClassifiedInstruction, error) {
	create := associatedtokenaccount.NewCreateInstruction(
		wallet,
		wallet,
		a.LiquidityMint,
	).Build()

	fund := system.NewTransferInstruction(
		a.FundingLamports(borrow),
		wallet,
		escrow,
	).Build()

	sync := token.NewSyncNativeInstruction(escrow).Build()

	borrowIx := NewFlashBorrowInstruction(
		borrow,
		a.LiquiditySupply,
		escrow,
		a.Reserve,
		a.Market,
		a.MarketAuthority,
		a.ProgramID,
	)

	return []domain.ClassifiedInstruction{
		{Kind: domain.KindSetupEscrow, Instruction: create},
		{Kind: domain.KindSetupEscrow, Instruction: fund},
		{Kind: domain.KindSetupEscrow, Instruction: sync},
		{Kind: domain.KindBorrow, Instruction: borrowIx},
	}, nil
}

// RepayInstruction builds the flash repay referencing the borrow's position
// in the final instruction list. Amount must equal the borrowed amount; the
// protocol computes its fee internally from reserve state.
func (a *Accounts) RepayInstruction(wallet, escrow solana.PublicKey, amount uint64, borrowInstructionIndex uint8) domain.ClassifiedInstruction {
	ix := NewFlashRepayInstruction(
		amount,
		borrowInstructionIndex,
		escrow,
		a.LiquiditySupply,
		a.FeeReceiver,
		a.Reserve,
		a.Market,
		wallet,
		a.ProgramID,
	)
	return domain.ClassifiedInstruction{Kind: domain.KindRepay, Instruction: ix}
}

// CloseEscrowInstruction tears the escrow down, returning remaining lamports
// to the wallet. Must be the final instruction of the list.
func CloseEscrowInstruction(wallet, escrow solana.PublicKey) domain.ClassifiedInstruction {
	ix := token.NewCloseAccountInstruction(
		escrow,
		wallet,
		wallet,
		nil,
	).Build()
	return domain.ClassifiedInstruction{Kind: domain.KindCloseEscrow, Instruction: ix}
}

// NewFlashBorrowInstruction constructs the protocol's flash borrow call.
// Data layout: [discriminator u8, liquidityAmount u64 LE].
func NewFlashBorrowInstruction(
	amount uint64,
	supplyAccount solana.PublicKey,
	destinationAccount solana.PublicKey,
	reserve solana.PublicKey,
	market solana.PublicKey,
	marketAuthority solana.PublicKey,
	programID solana.PublicKey,
) solana.Instruction {
	data := make([]byte, 9)
	data[0] = domain.FlashBorrowDiscriminator
	binary.LittleEndian.PutUint64(data[1:], amount)

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(supplyAccount, true, false),
		solana.NewAccountMeta(destinationAccount, true, false),
		solana.NewAccountMeta(reserve, true, false),
		solana.NewAccountMeta(market, false, false),
		solana.NewAccountMeta(marketAuthority, false, false),
		solana.NewAccountMeta(solana.SysVarInstructionsPubkey, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
	}

	return solana.NewInstruction(programID, accounts, data)
}

// NewFlashRepayInstruction constructs the protocol's flash repay call. The
// protocol verifies on-chain that borrowInstructionIndex points at a matching
// borrow within the same transaction; this is how atomicity is enforced by
// the protocol itself, beyond transaction semantics.
// Data layout: [discriminator u8, liquidityAmount u64 LE, borrowInstructionIndex u8].
func NewFlashRepayInstruction(
	amount uint64,
	borrowInstructionIndex uint8,
	sourceAccount solana.PublicKey,
	supplyAccount solana.PublicKey,
	feeReceiver solana.PublicKey,
	reserve solana.PublicKey,
	market solana.PublicKey,
	payer solana.PublicKey,
	programID solana.PublicKey,
) solana.Instruction {
	data := make([]byte, 10)
	data[0] = domain.FlashRepayDiscriminator
	binary.LittleEndian.PutUint64(data[1:9], amount)
	data[9] = borrowInstructionIndex

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(sourceAccount, true, false),
		solana.NewAccountMeta(supplyAccount, true, false),
		solana.NewAccountMeta(feeReceiver, true, false),
		solana.NewAccountMeta(reserve, true, false),
		solana.NewAccountMeta(market, false, false),
		solana.NewAccountMeta(payer, false, true),
		solana.NewAccountMeta(solana.SysVarInstructionsPubkey, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
	}

	return solana.NewInstruction(programID, accounts, data)
}
