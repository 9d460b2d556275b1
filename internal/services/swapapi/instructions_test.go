package swapapi

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/token"

	"github.com/hxuan190/flash-engine/internal/common"
	"github.com/hxuan190/flash-engine/internal/domain"
)

// serializeRouteTx builds the kind of legacy transaction the swap service
// returns: compute budget noise, the actual route instructions, and
// occasionally a close of the user's wrapped-native account.
func serializeRouteTx(t *testing.T, payer solana.PublicKey, ixs []solana.Instruction) []byte {
	t.Helper()
	tx, err := solana.NewTransaction(ixs, solana.Hash{}, solana.TransactionPayer(payer))
	if err != nil {
		t.Fatalf("NewTransaction failed: %v", err)
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary failed: %v", err)
	}
	return raw
}

func routeIx(program, source solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		program,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(source, true, true),
			solana.NewAccountMeta(solana.NewWallet().PublicKey(), true, false),
		},
		[]byte{7, 7, 7},
	)
}

func TestExtractRouteInstructionsFilters(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	escrow, err := solana.FindAssociatedTokenAddress(payer, common.WrappedSolMint)
	if err != nil {
		t.Fatalf("FindAssociatedTokenAddress failed: %v", err)
	}
	routeProgram := solana.NewWallet().PublicKey()

	raw := serializeRouteTx(t, payer, []solana.Instruction{
		computebudget.NewSetComputeUnitLimitInstruction(600_000).Build(),
		computebudget.NewSetComputeUnitPriceInstruction(500).Build(),
		routeIx(routeProgram, escrow),
		token.NewCloseAccountInstruction(escrow, payer, payer, nil).Build(),
	})

	out, err := extractRouteInstructions(raw, escrow, solana.PublicKey{})
	if err != nil {
		t.Fatalf("extractRouteInstructions failed: %v", err)
	}

	// Budget noise and the premature close are gone; the route survives.
	if len(out) != 1 {
		t.Fatalf("surviving instructions = %d, want 1", len(out))
	}
	if out[0].Kind != domain.KindSwap {
		t.Errorf("kind = %s, want Swap", out[0].Kind)
	}
	if !out[0].Instruction.ProgramID().Equals(routeProgram) {
		t.Error("surviving instruction is not the route instruction")
	}
}

func TestExtractRouteInstructionsRewritesSource(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	escrow, err := solana.FindAssociatedTokenAddress(payer, common.WrappedSolMint)
	if err != nil {
		t.Fatalf("FindAssociatedTokenAddress failed: %v", err)
	}
	walletSource := solana.NewWallet().PublicKey()
	routeProgram := solana.NewWallet().PublicKey()

	raw := serializeRouteTx(t, payer, []solana.Instruction{
		routeIx(routeProgram, walletSource),
	})

	out, err := extractRouteInstructions(raw, escrow, walletSource)
	if err != nil {
		t.Fatalf("extractRouteInstructions failed: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("surviving instructions = %d, want 1", len(out))
	}

	var found bool
	for _, meta := range out[0].Instruction.Accounts() {
		if meta.PublicKey.Equals(walletSource) {
			t.Error("original source account still referenced")
		}
		if meta.PublicKey.Equals(escrow) {
			found = true
			if meta.IsSigner {
				t.Error("escrow must not be marked as a signer")
			}
		}
	}
	if !found {
		t.Error("escrow not substituted for the source account")
	}
}

func TestExtractRouteInstructionsGarbage(t *testing.T) {
	escrow := solana.NewWallet().PublicKey()
	if _, err := extractRouteInstructions([]byte{0xff, 0x01, 0x02}, escrow, solana.PublicKey{}); err == nil {
		t.Error("expected error for undecodable payload")
	}
}

func TestGetSwapInstructions(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	escrow, err := solana.FindAssociatedTokenAddress(payer, common.WrappedSolMint)
	if err != nil {
		t.Fatalf("FindAssociatedTokenAddress failed: %v", err)
	}
	routeProgram := solana.NewWallet().PublicKey()
	lut := solana.NewWallet().PublicKey()

	raw := serializeRouteTx(t, payer, []solana.Instruction{
		computebudget.NewSetComputeUnitLimitInstruction(600_000).Build(),
		routeIx(routeProgram, escrow),
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/swap-instructions" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `{
			"serializedTransaction": %q,
			"lastValidBlockHeight": 999,
			"addressLookupTableAddresses": [%q]
		}`, base64.StdEncoding.EncodeToString(raw), lut.String())
	}))
	defer srv.Close()

	svc := &Service{
		baseURL:            srv.URL,
		httpClient:         &http.Client{Timeout: 2 * time.Second},
		defaultSlippageBps: 50,
	}

	quote := &domain.Quote{
		Route: []domain.RouteStep{{}},
		Raw:   []byte(`{"routePlan":[]}`),
	}
	route, err := svc.GetSwapInstructions(context.Background(), quote, payer, escrow, solana.PublicKey{})
	if err != nil {
		t.Fatalf("GetSwapInstructions failed: %v", err)
	}

	if len(route.Instructions) != 1 {
		t.Fatalf("instructions = %d, want 1", len(route.Instructions))
	}
	if len(route.LookupTables) != 1 || !route.LookupTables[0].Equals(lut) {
		t.Errorf("lookup tables = %v, want [%s]", route.LookupTables, lut)
	}
}
