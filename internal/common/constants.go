// Package common contains common constants and variables used across services
package common

import "github.com/gagliardetto/solana-go"

var (
	TokenProgramID         = solana.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	Token2022ID            = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")
	ATAProgramID           = solana.MustPublicKeyFromBase58("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
	ComputeBudgetProgramID = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")
	WrappedSolMint         = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	SystemProgramID        = solana.SystemProgramID
)

// MaxTransactionSize is the ledger packet ceiling for a serialized transaction.
const MaxTransactionSize = 1232

// LamportsPerUnit is the smallest-unit scale of the liquid asset (9 decimals).
const LamportsPerUnit = 1_000_000_000
