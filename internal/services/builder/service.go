// Package builder turns a build request into a single unsigned transaction:
// escrow setup and flash borrow, the swap leg, optional extras, repay, close.
package builder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	addresslookuptable "github.com/gagliardetto/solana-go/programs/address-lookup-table"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog/log"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/hxuan190/flash-engine/internal/adapters/blockchain"
	"github.com/hxuan190/flash-engine/internal/adapters/persistence"
	"github.com/hxuan190/flash-engine/internal/config"
	"github.com/hxuan190/flash-engine/internal/domain"
	"github.com/hxuan190/flash-engine/internal/metrics"
	"github.com/hxuan190/flash-engine/internal/services/estimator"
	"github.com/hxuan190/flash-engine/internal/services/lending"
	"github.com/hxuan190/flash-engine/internal/services/swapapi"
)

var (
	ErrInvalidWallet = errors.New("invalid wallet address")
	ErrInvalidAmount = errors.New("either desired output or a borrow override must be positive")
)

const BUILDER_SERVICE = "flash-swap-builder-service"

// eventBufferSize bounds the event channel; when no consumer keeps up,
// events are dropped rather than blocking builds.
const eventBufferSize = 64

// routeProvider is the slice of the swap-api client the builder needs.
type routeProvider interface {
	GetQuote(ctx context.Context, inputMint, outputMint solana.PublicKey, amount uint64, slippageBps uint16) (*domain.Quote, error)
	GetSwapInstructions(ctx context.Context, quote *domain.Quote, payer, escrow, sourceOverride solana.PublicKey) (*domain.RouteInstructions, error)
	DefaultSlippageBps() uint16
}

type borrowEstimator interface {
	EstimateBorrow(ctx context.Context, targetMint solana.PublicKey, desiredOut uint64, slippageBps uint16) (*domain.EstimateResult, error)
}

type Service struct {
	container.BaseDIInstance

	rpcClient      *rpc.Client
	blockhashCache *blockchain.BlockhashCacheService
	routes         routeProvider
	estimator      borrowEstimator
	storage        persistence.Store

	accounts    *lending.Accounts
	builderConf *config.BuilderConfig

	fetchTable   tableFetcher
	fetchBalance func(ctx context.Context, wallet solana.PublicKey) (uint64, error)
	getBlockhash func(ctx context.Context) (solana.Hash, uint64, error)

	eventsOnce sync.Once
	events     chan domain.BuildEvent
}

func (svc *Service) ID() string {
	return BUILDER_SERVICE
}

func (svc *Service) Configure(c container.IContainer) error {
	rpcConf := c.GetConfig(config.RPC_CONFIG_KEY).(*config.RPCConfig)
	svc.rpcClient = rpc.New(rpcConf.Endpoint())

	lendingConf := c.GetConfig(config.LENDING_CONFIG_KEY).(*config.LendingConfig)
	accounts, err := lending.ParseAccounts(lendingConf)
	if err != nil {
		return err
	}
	svc.accounts = accounts

	svc.builderConf = c.GetConfig(config.BUILDER_CONFIG_KEY).(*config.BuilderConfig)

	storageConf := c.GetConfig(config.STORAGE_CONFIG_KEY).(*config.StorageConfig)
	storage, err := persistence.NewStorage(storageConf.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open build store: %w", err)
	}
	svc.storage = storage

	svc.blockhashCache = c.Instance(blockchain.BLOCKHASH_CACHE_SERVICE).(*blockchain.BlockhashCacheService)
	svc.routes = c.Instance(swapapi.SWAP_API_SERVICE).(*swapapi.Service)
	svc.estimator = c.Instance(estimator.ESTIMATOR_SERVICE).(*estimator.Service)

	svc.fetchTable = func(ctx context.Context, addr solana.PublicKey) (*addresslookuptable.AddressLookupTableState, error) {
		return addresslookuptable.GetAddressLookupTable(ctx, svc.rpcClient, addr)
	}
	svc.fetchBalance = func(ctx context.Context, wallet solana.PublicKey) (uint64, error) {
		res, err := svc.rpcClient.GetBalance(ctx, wallet, rpc.CommitmentConfirmed)
		if err != nil {
			return 0, err
		}
		return res.Value, nil
	}
	svc.getBlockhash = svc.blockhashCache.GetBlockhash
	return nil
}

// Stop releases the persistent store. The events channel stays open: a build
// still in flight may emit after Stop, and the consumer goroutine exits with
// the process.
func (svc *Service) Stop() error {
	if svc.storage == nil {
		return nil
	}
	return svc.storage.Close()
}

// Events exposes build outcomes for out-of-band consumers (logging, alerts).
// Emission never blocks a build; slow consumers lose events. Safe to call
// before the service is configured.
func (svc *Service) Events() <-chan domain.BuildEvent {
	return svc.eventsChan()
}

func (svc *Service) eventsChan() chan domain.BuildEvent {
	svc.eventsOnce.Do(func() {
		svc.events = make(chan domain.BuildEvent, eventBufferSize)
	})
	return svc.events
}

func (svc *Service) emit(ev domain.BuildEvent) {
	ev.At = time.Now()
	select {
	case svc.eventsChan() <- ev:
	default:
	}
}

// Estimate answers "how much would I need to borrow" without building
// anything.
func (svc *Service) Estimate(ctx context.Context, targetMint solana.PublicKey, desiredOut uint64, slippageBps uint16) (*domain.EstimateResult, error) {
	res, err := svc.estimator.EstimateBorrow(ctx, targetMint, desiredOut, slippageBps)
	if err != nil {
		metrics.EstimateRequests.WithLabelValues("error").Inc()
		return nil, err
	}

	// Re-quote at the actual borrow amount: the linear estimate ignores
	// depth, the full-size quote does not.
	quote, err := svc.routes.GetQuote(ctx, svc.accounts.LiquidityMint, targetMint, res.BorrowAmount, slippageBps)
	if err != nil {
		metrics.EstimateRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	res.EstimatedOutput = quote.OutAmount
	res.PriceImpactPct = quote.PriceImpactPct

	metrics.EstimateRequests.WithLabelValues("ok").Inc()
	return res, nil
}

// BuildFlashSwap assembles and compiles one flash-swap transaction. Builds
// are stateless with respect to each other and safe to run concurrently.
func (svc *Service) BuildFlashSwap(ctx context.Context, req *domain.BuildRequest) (*domain.BuildResult, error) {
	started := time.Now()
	result, err := svc.buildFlashSwap(ctx, req)
	metrics.BuildDuration.Observe(time.Since(started).Seconds())

	if err != nil {
		metrics.BuildRequests.WithLabelValues("error").Inc()
		svc.emit(domain.BuildEvent{
			Kind:       domain.EventBuildFailed,
			Wallet:     req.Wallet.String(),
			TargetMint: req.TargetMint.String(),
			Err:        err.Error(),
		})
		return nil, err
	}

	metrics.BuildRequests.WithLabelValues("ok").Inc()
	svc.emit(domain.BuildEvent{
		Kind:         domain.EventBuildSucceeded,
		Wallet:       req.Wallet.String(),
		TargetMint:   req.TargetMint.String(),
		BorrowAmount: result.BorrowAmount,
		TxSize:       result.TransactionSize,
	})
	return result, nil
}

func (svc *Service) buildFlashSwap(ctx context.Context, req *domain.BuildRequest) (*domain.BuildResult, error) {
	if req.Wallet.IsZero() {
		return nil, ErrInvalidWallet
	}
	if req.DesiredOut == 0 && req.BorrowOverride == 0 {
		return nil, ErrInvalidAmount
	}

	slippageBps := req.SlippageBps
	if slippageBps == 0 {
		slippageBps = svc.routes.DefaultSlippageBps()
	}

	escrow, err := lending.DeriveEscrow(req.Wallet, svc.accounts.LiquidityMint)
	if err != nil {
		return nil, err
	}

	borrow := req.BorrowOverride
	if borrow == 0 {
		est, err := svc.estimator.EstimateBorrow(ctx, req.TargetMint, req.DesiredOut, slippageBps)
		if err != nil {
			return nil, err
		}
		borrow = est.BorrowAmount
	}
	metrics.BorrowAmount.Observe(float64(borrow))

	// Amount-accurate quote at the real borrow size.
	quote, err := svc.routes.GetQuote(ctx, svc.accounts.LiquidityMint, req.TargetMint, borrow, slippageBps)
	if err != nil {
		return nil, err
	}

	route, err := svc.routes.GetSwapInstructions(ctx, quote, req.Wallet, escrow, solana.PublicKey{})
	if err != nil {
		return nil, err
	}

	var back *domain.RouteInstructions
	if req.SwapBack {
		backQuote, err := svc.routes.GetQuote(ctx, req.TargetMint, svc.accounts.LiquidityMint, quote.OutAmount, slippageBps)
		if err != nil {
			return nil, fmt.Errorf("reverse leg: %w", err)
		}
		back, err = svc.routes.GetSwapInstructions(ctx, backQuote, req.Wallet, escrow, solana.PublicKey{})
		if err != nil {
			return nil, fmt.Errorf("reverse leg: %w", err)
		}
	}

	setup, err := svc.accounts.SetupInstructions(req.Wallet, escrow, borrow)
	if err != nil {
		return nil, err
	}

	plan := &domain.FlashLoanPlan{
		BorrowAmount: borrow,
		SwapAmount:   borrow,
		RepayAmount:  borrow,
		Escrow:       escrow,
		Quote:        quote,
		Setup:        setup,
		Route:        route,
		Back:         back,
		Extra:        req.ExtraInstructions,
		Repay:        svc.accounts.RepayInstruction(req.Wallet, escrow, borrow, lending.BorrowInstructionIndex),
		Close:        lending.CloseEscrowInstruction(req.Wallet, escrow),
	}

	instructions, err := Assemble(plan, svc.builderConf.ComputeUnitLimit, svc.builderConf.ComputeUnitPrice)
	if err != nil {
		return nil, err
	}

	tableAddrs := route.LookupTables
	if back != nil {
		tableAddrs = mergeTableAddrs(tableAddrs, back.LookupTables)
	}
	tables, err := svc.resolveLookupTables(ctx, tableAddrs)
	if err != nil {
		return nil, err
	}

	blockhash, lastValidBlockHeight, err := svc.getBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch blockhash: %w", err)
	}

	envelope, err := svc.compile(instructions, blockhash, req.Wallet, tables)
	if err != nil {
		return nil, err
	}

	shortfall := svc.checkEscrowFunding(ctx, req.Wallet, borrow)
	if shortfall {
		metrics.EscrowShortfalls.Inc()
		svc.emit(domain.BuildEvent{
			Kind:         domain.EventEscrowShortfall,
			Wallet:       req.Wallet.String(),
			TargetMint:   req.TargetMint.String(),
			BorrowAmount: borrow,
		})
	}

	result := &domain.BuildResult{
		Transaction:          envelope.Encoded,
		LastValidBlockHeight: lastValidBlockHeight,
		BorrowAmount:         borrow,
		RepayAmount:          borrow,
		EstimatedOutput:      quote.OutAmount,
		PriceImpactPct:       quote.PriceImpactPct,
		Escrow:               escrow.String(),
		LendingProgram:       svc.accounts.ProgramID.String(),
		Reserve:              svc.accounts.Reserve.String(),
		Market:               svc.accounts.Market.String(),
		InsufficientEscrow:   shortfall,
		TransactionSize:      envelope.Size,
		InstructionCount:     len(instructions),
	}

	if req.Simulate {
		sim, err := svc.SimulateTransaction(ctx, envelope.Tx)
		if err != nil {
			return nil, err
		}
		result.Simulation = sim
	}

	if err := persistence.SaveBuildRecord(svc.storage, &persistence.BuildRecord{
		Wallet:          req.Wallet.String(),
		TargetMint:      req.TargetMint.String(),
		BorrowAmount:    borrow,
		EstimatedOutput: quote.OutAmount,
		PriceImpactPct:  quote.PriceImpactPct,
		TxSize:          envelope.Size,
		SwapBack:        req.SwapBack,
		CreatedAt:       time.Now(),
	}); err != nil {
		log.Warn().Err(err).Str("wallet", req.Wallet.String()).Msg("[FlashSwapBuilder] failed to persist build record")
	}

	log.Info().
		Str("wallet", req.Wallet.String()).
		Str("targetMint", req.TargetMint.String()).
		Uint64("borrow", borrow).
		Int("txSize", envelope.Size).
		Int("instructions", len(instructions)).
		Bool("swapBack", req.SwapBack).
		Msg("[FlashSwapBuilder] built flash-swap transaction")

	return result, nil
}

// LastBuild returns the most recent persisted build for a wallet.
func (svc *Service) LastBuild(wallet solana.PublicKey) (*persistence.BuildRecord, error) {
	return persistence.LoadBuildRecord(svc.storage, wallet.String())
}

// checkEscrowFunding is advisory: it flags builds whose wallet cannot cover
// the escrow funding transfer plus network fees. Simulation remains the
// authoritative check; a false positive here never fails the build.
func (svc *Service) checkEscrowFunding(ctx context.Context, wallet solana.PublicKey, borrow uint64) bool {
	needed := svc.accounts.FundingLamports(borrow) + rentAndFeeCushion

	balance, err := svc.fetchBalance(ctx, wallet)
	if err != nil {
		log.Warn().Err(err).Str("wallet", wallet.String()).Msg("[FlashSwapBuilder] escrow funding check skipped")
		return false
	}
	if balance < needed {
		log.Warn().
			Str("wallet", wallet.String()).
			Uint64("balance", balance).
			Uint64("needed", needed).
			Msg("[FlashSwapBuilder] wallet balance below escrow funding requirement")
		return true
	}
	return false
}

// rentAndFeeCushion covers escrow rent exemption plus signature and priority
// fees on top of the funding transfer.
const rentAndFeeCushion = 3_000_000

func mergeTableAddrs(a, b []solana.PublicKey) []solana.PublicKey {
	seen := make(map[solana.PublicKey]struct{}, len(a)+len(b))
	out := make([]solana.PublicKey, 0, len(a)+len(b))
	for _, addr := range a {
		if _, ok := seen[addr]; !ok {
			seen[addr] = struct{}{}
			out = append(out, addr)
		}
	}
	for _, addr := range b {
		if _, ok := seen[addr]; !ok {
			seen[addr] = struct{}{}
			out = append(out, addr)
		}
	}
	return out
}
