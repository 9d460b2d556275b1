package builder

import (
	"context"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/hxuan190/flash-engine/internal/domain"
	"github.com/hxuan190/flash-engine/internal/metrics"
)

// failureHints maps known simulation log fragments to actionable
// explanations. Matching is case-insensitive substring search over the error
// string and every log line.
var failureHints = []struct {
	pattern string
	reason  string
	hint    string
}{
	{"insufficient funds", "insufficient_funds",
		"escrow funding does not cover the flash fee; raise ESCROW_HEADROOM_LAMPORTS or top up the wallet"},
	{"insufficient lamports", "insufficient_funds",
		"wallet cannot cover the escrow funding transfer and rent"},
	{"slippage", "slippage",
		"swap output fell below the quoted threshold; retry with a higher slippage tolerance or a smaller amount"},
	{"exceededslippage", "slippage",
		"swap output fell below the quoted threshold; retry with a higher slippage tolerance or a smaller amount"},
	{"invalid flash repay", "repay_mismatch",
		"repay does not match the borrow; the reserve fee configuration may have drifted from FLASH_FEE_BPS"},
	{"flashrepaymustbereciprocal", "repay_mismatch",
		"repay instruction does not reference the borrow at the expected index"},
	{"accountnotfound", "missing_account",
		"an account in the route does not exist yet; it may need to be created before this transaction"},
	{"invalidaccountdata", "missing_account",
		"an account in the route has unexpected data; the quote may be stale"},
	{"exceeded cus meter", "compute_budget",
		"transaction ran out of compute units; raise COMPUTE_UNIT_LIMIT"},
	{"computationalbudgetexceeded", "compute_budget",
		"transaction ran out of compute units; raise COMPUTE_UNIT_LIMIT"},
}

// SimulateTransaction dry-runs the unsigned envelope against the RPC node.
// A failed simulation is a result, not an error: callers inspect Success.
func (svc *Service) SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*domain.SimulationResult, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction is nil")
	}

	metrics.SimulationRequests.Inc()

	res, err := svc.rpcClient.SimulateTransactionWithOpts(ctx, tx, &rpc.SimulateTransactionOpts{
		ReplaceRecentBlockhash: true,
		Commitment:             rpc.CommitmentConfirmed,
	})
	if err != nil {
		metrics.SimulationFailures.WithLabelValues("rpc_error").Inc()
		return &domain.SimulationResult{
			Success: false,
			Error:   fmt.Sprintf("simulation request failed: %v", err),
		}, nil
	}

	sim := &domain.SimulationResult{
		Success: res.Value.Err == nil,
		Logs:    res.Value.Logs,
	}
	if res.Value.UnitsConsumed != nil {
		sim.ComputeUnitsConsumed = *res.Value.UnitsConsumed
		metrics.ComputeUnits.Observe(float64(sim.ComputeUnitsConsumed))
	}

	if res.Value.Err != nil {
		sim.Error = fmt.Sprintf("%v", res.Value.Err)
		sim.Hints = hintsFor(sim.Error, sim.Logs)
		for _, reason := range reasonsFor(sim.Error, sim.Logs) {
			metrics.SimulationFailures.WithLabelValues(reason).Inc()
		}
	}

	return sim, nil
}

func hintsFor(errStr string, logs []string) []string {
	var hints []string
	seen := make(map[string]struct{})
	for _, h := range failureHints {
		if !matchesAny(h.pattern, errStr, logs) {
			continue
		}
		if _, dup := seen[h.hint]; dup {
			continue
		}
		seen[h.hint] = struct{}{}
		hints = append(hints, h.hint)
	}
	return hints
}

func reasonsFor(errStr string, logs []string) []string {
	var reasons []string
	seen := make(map[string]struct{})
	for _, h := range failureHints {
		if !matchesAny(h.pattern, errStr, logs) {
			continue
		}
		if _, dup := seen[h.reason]; dup {
			continue
		}
		seen[h.reason] = struct{}{}
		reasons = append(reasons, h.reason)
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "unknown")
	}
	return reasons
}

func matchesAny(pattern, errStr string, logs []string) bool {
	if containsFold(errStr, pattern) {
		return true
	}
	for _, line := range logs {
		if containsFold(line, pattern) {
			return true
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
