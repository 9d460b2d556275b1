package builder

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/gagliardetto/solana-go"
	addresslookuptable "github.com/gagliardetto/solana-go/programs/address-lookup-table"

	"github.com/hxuan190/flash-engine/internal/common"
	"github.com/hxuan190/flash-engine/internal/config"
	"github.com/hxuan190/flash-engine/internal/services/lending"
)

func newCompilerService(maxSize int, fetch tableFetcher) *Service {
	return &Service{
		builderConf: &config.BuilderConfig{
			ComputeUnitLimit:   1_400_000,
			ComputeUnitPrice:   1_000,
			MaxTransactionSize: maxSize,
		},
		fetchTable: fetch,
	}
}

func activeTable(addrs ...solana.PublicKey) *addresslookuptable.AddressLookupTableState {
	return &addresslookuptable.AddressLookupTableState{
		DeactivationSlot: math.MaxUint64,
		Addresses:        addrs,
	}
}

func TestResolveLookupTablesEmptyRequest(t *testing.T) {
	svc := newCompilerService(common.MaxTransactionSize, nil)
	tables, err := svc.resolveLookupTables(context.Background(), nil)
	if err != nil {
		t.Fatalf("resolveLookupTables failed: %v", err)
	}
	if len(tables) != 0 {
		t.Errorf("tables = %d, want 0", len(tables))
	}
}

func TestResolveLookupTablesDropsBroken(t *testing.T) {
	good := solana.NewWallet().PublicKey()
	deactivated := solana.NewWallet().PublicKey()
	unreachable := solana.NewWallet().PublicKey()
	entry := solana.NewWallet().PublicKey()

	svc := newCompilerService(common.MaxTransactionSize, func(_ context.Context, addr solana.PublicKey) (*addresslookuptable.AddressLookupTableState, error) {
		switch addr {
		case good:
			return activeTable(entry), nil
		case deactivated:
			return &addresslookuptable.AddressLookupTableState{DeactivationSlot: 100, Addresses: []solana.PublicKey{entry}}, nil
		default:
			return nil, fmt.Errorf("account not found")
		}
	})

	tables, err := svc.resolveLookupTables(context.Background(), []solana.PublicKey{good, deactivated, unreachable})
	if err != nil {
		t.Fatalf("resolveLookupTables failed: %v", err)
	}
	if len(tables) != 1 {
		t.Fatalf("tables = %d, want 1", len(tables))
	}
	if _, ok := tables[good]; !ok {
		t.Error("surviving table is not the active one")
	}
}

func TestResolveLookupTablesAllDropped(t *testing.T) {
	svc := newCompilerService(common.MaxTransactionSize, func(_ context.Context, _ solana.PublicKey) (*addresslookuptable.AddressLookupTableState, error) {
		return nil, fmt.Errorf("account not found")
	})

	_, err := svc.resolveLookupTables(context.Background(), []solana.PublicKey{solana.NewWallet().PublicKey()})
	if !errors.Is(err, ErrNoValidLookupTables) {
		t.Errorf("err = %v, want ErrNoValidLookupTables", err)
	}
}

func TestCompileWithinCeiling(t *testing.T) {
	svc := newCompilerService(common.MaxTransactionSize, nil)
	plan := testPlan(t, 5_000_000)
	ixs, err := Assemble(plan, 1_400_000, 1_000)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	wallet := solana.NewWallet().PublicKey()
	envelope, err := svc.compile(ixs, solana.Hash{}, wallet, map[solana.PublicKey]solana.PublicKeySlice{})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if envelope.Size == 0 || envelope.Size > common.MaxTransactionSize {
		t.Errorf("size = %d, want within (0, %d]", envelope.Size, common.MaxTransactionSize)
	}
	if envelope.Encoded == "" {
		t.Error("encoded transaction is empty")
	}
	if envelope.Tx == nil {
		t.Error("compiled transaction is nil")
	}
}

func TestCompileExceedsCeiling(t *testing.T) {
	// A tiny ceiling forces the failure path without needing a genuinely
	// oversized route.
	svc := newCompilerService(64, nil)
	plan := testPlan(t, 5_000_000)
	ixs, err := Assemble(plan, 1_400_000, 1_000)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	_, err = svc.compile(ixs, solana.Hash{}, solana.NewWallet().PublicKey(), nil)
	if !errors.Is(err, ErrTransactionTooLarge) {
		t.Errorf("err = %v, want ErrTransactionTooLarge", err)
	}
}

func TestMergeTableAddrs(t *testing.T) {
	a := solana.NewWallet().PublicKey()
	b := solana.NewWallet().PublicKey()
	c := solana.NewWallet().PublicKey()

	merged := mergeTableAddrs([]solana.PublicKey{a, b}, []solana.PublicKey{b, c})
	if len(merged) != 3 {
		t.Fatalf("merged length = %d, want 3", len(merged))
	}
	if !merged[0].Equals(a) || !merged[1].Equals(b) || !merged[2].Equals(c) {
		t.Error("merge does not preserve first-seen order")
	}
}

func TestBorrowIndexConstantMatchesSetup(t *testing.T) {
	// The repay hard-codes the borrow position inside the final list; the
	// setup sequence must put the borrow exactly there.
	plan := testPlan(t, 1)
	if plan.Setup[lending.BorrowInstructionIndex].Kind.String() != "Borrow" {
		t.Errorf("setup[%d] = %s, want Borrow", lending.BorrowInstructionIndex, plan.Setup[lending.BorrowInstructionIndex].Kind)
	}
}
