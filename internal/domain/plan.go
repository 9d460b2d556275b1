package domain

import (
	"github.com/gagliardetto/solana-go"
)

// BuildRequest is one flash-swap build invocation. Builds are request-scoped
// and share no state, so any number may run concurrently.
type BuildRequest struct {
	Wallet     solana.PublicKey
	TargetMint solana.PublicKey

	// DesiredOut is the wanted amount of the target asset in its smallest
	// unit. The borrow amount of the liquid asset is estimated from it.
	DesiredOut uint64

	// BorrowOverride skips estimation and borrows exactly this many lamports.
	BorrowOverride uint64

	SlippageBps uint16

	// SwapBack adds the reverse leg (target back to the liquid asset) inside
	// the same transaction. Costs transaction size; the compiler's ceiling
	// check applies.
	SwapBack bool

	// ExtraInstructions are caller-supplied and placed between the swap leg
	// and repay. They are positioned, not validated; simulation is the
	// authoritative check.
	ExtraInstructions []solana.Instruction

	// Simulate runs a dry-run against the RPC node and attaches the result.
	Simulate bool
}

// FlashLoanPlan fully determines the final instruction list. Built once per
// request, never mutated afterwards.
type FlashLoanPlan struct {
	BorrowAmount uint64
	SwapAmount   uint64

	// RepayAmount always equals BorrowAmount. The lending protocol computes
	// its fee from reserve state on-chain; adding a margin here would
	// double-charge and fail the repayment check.
	RepayAmount uint64

	Escrow solana.PublicKey
	Quote  *Quote

	Setup []ClassifiedInstruction // create, fund, sync, borrow, in order
	Route *RouteInstructions
	Back  *RouteInstructions // optional reverse leg
	Extra []solana.Instruction
	Repay ClassifiedInstruction
	Close ClassifiedInstruction
}

// BuildResult is the unsigned envelope plus everything the caller needs to
// review before signing.
type BuildResult struct {
	Transaction          string `json:"transaction"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`

	BorrowAmount    uint64  `json:"borrowAmount"`
	RepayAmount     uint64  `json:"repayAmount"`
	EstimatedOutput uint64  `json:"estimatedOutput"`
	PriceImpactPct  float64 `json:"priceImpactPct"`

	Escrow         string `json:"escrow"`
	LendingProgram string `json:"lendingProgram"`
	Reserve        string `json:"reserve"`
	Market         string `json:"market"`

	// InsufficientEscrow reports the advisory pre-repay balance check.
	// Informational only; simulation is authoritative.
	InsufficientEscrow bool `json:"insufficientEscrow,omitempty"`

	TransactionSize  int `json:"transactionSize"`
	InstructionCount int `json:"instructionCount"`

	Simulation *SimulationResult `json:"simulation,omitempty"`
}

type SimulationResult struct {
	Success              bool     `json:"success"`
	Logs                 []string `json:"logs,omitempty"`
	ComputeUnitsConsumed uint64   `json:"computeUnitsConsumed"`
	Error                string   `json:"error,omitempty"`

	// Hints are human-readable explanations for known failure log patterns.
	Hints []string `json:"hints,omitempty"`
}

// EstimateResult is the amount-estimator output. EstimatedOutput comes from
// the amount-accurate quote, never from the linear rate sample.
type EstimateResult struct {
	TargetMint      string  `json:"targetMint"`
	DesiredOut      uint64  `json:"desiredOut"`
	BorrowAmount    uint64  `json:"borrowAmount"`
	EstimatedOutput uint64  `json:"estimatedOutput"`
	PriceImpactPct  float64 `json:"priceImpactPct"`
}
