package builder

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	addresslookuptable "github.com/gagliardetto/solana-go/programs/address-lookup-table"
	"github.com/rs/zerolog/log"

	"github.com/hxuan190/flash-engine/internal/metrics"
)

var (
	ErrTransactionTooLarge = errors.New("compiled transaction exceeds the serialized size limit")
	ErrNoValidLookupTables = errors.New("route requires lookup tables but none could be resolved")
)

// tableFetcher matches addresslookuptable.GetAddressLookupTable. Injectable
// so compilation is testable without an RPC node.
type tableFetcher func(ctx context.Context, addr solana.PublicKey) (*addresslookuptable.AddressLookupTableState, error)

// resolveLookupTables fetches the on-chain state of every table the swap
// route references. Unresolvable or deactivated tables are dropped with a
// warning; if the route asked for tables and none survive, compilation cannot
// produce a sendable envelope and the build fails.
func (svc *Service) resolveLookupTables(ctx context.Context, addrs []solana.PublicKey) (map[solana.PublicKey]solana.PublicKeySlice, error) {
	if len(addrs) == 0 {
		return map[solana.PublicKey]solana.PublicKeySlice{}, nil
	}

	tables := make(map[solana.PublicKey]solana.PublicKeySlice, len(addrs))
	for _, addr := range addrs {
		state, err := svc.fetchTable(ctx, addr)
		if err != nil {
			metrics.LookupTablesDropped.WithLabelValues("fetch_failed").Inc()
			log.Warn().Err(err).Str("table", addr.String()).Msg("[FlashSwapBuilder] failed to fetch lookup table")
			continue
		}
		if !state.IsActive() {
			metrics.LookupTablesDropped.WithLabelValues("deactivated").Inc()
			log.Warn().Str("table", addr.String()).Msg("[FlashSwapBuilder] lookup table deactivated, skipping")
			continue
		}
		if len(state.Addresses) == 0 {
			metrics.LookupTablesDropped.WithLabelValues("empty").Inc()
			log.Warn().Str("table", addr.String()).Msg("[FlashSwapBuilder] lookup table empty, skipping")
			continue
		}
		tables[addr] = state.Addresses
		metrics.LookupTablesResolved.Inc()
	}

	if len(tables) == 0 {
		return nil, fmt.Errorf("%w: %d requested", ErrNoValidLookupTables, len(addrs))
	}
	return tables, nil
}

// compiledEnvelope is the unsigned, serialized output of a build.
type compiledEnvelope struct {
	Tx      *solana.Transaction
	Encoded string
	Size    int
}

// compile builds the unsigned envelope and enforces the serialized size
// ceiling. The caller signs; this service never touches private keys.
func (svc *Service) compile(
	instructions []solana.Instruction,
	blockhash solana.Hash,
	payer solana.PublicKey,
	tables map[solana.PublicKey]solana.PublicKeySlice,
) (*compiledEnvelope, error) {
	tx, err := solana.NewTransaction(
		instructions,
		blockhash,
		solana.TransactionPayer(payer),
		solana.TransactionAddressTables(tables),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compile transaction: %w", err)
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize transaction: %w", err)
	}

	if len(raw) > svc.builderConf.MaxTransactionSize {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrTransactionTooLarge, len(raw), svc.builderConf.MaxTransactionSize)
	}

	metrics.TransactionSize.Observe(float64(len(raw)))
	metrics.InstructionCount.Observe(float64(len(instructions)))

	return &compiledEnvelope{
		Tx:      tx,
		Encoded: base64.StdEncoding.EncodeToString(raw),
		Size:    len(raw),
	}, nil
}
