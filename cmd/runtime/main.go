package main

import (
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/hxuan190/flash-engine/internal/adapters/blockchain"
	"github.com/hxuan190/flash-engine/internal/config"
	"github.com/hxuan190/flash-engine/internal/domain"
	"github.com/hxuan190/flash-engine/internal/http"
	"github.com/hxuan190/flash-engine/internal/services/builder"
	"github.com/hxuan190/flash-engine/internal/services/estimator"
	"github.com/hxuan190/flash-engine/internal/services/swapapi"
)

// @title Flash Engine API
// @version 1.0
// @description Flash-loan swap transaction assembler for Solana. Borrows the
// @description liquid asset from a lending protocol, swaps it for a target
// @description token through an external routing service, and repays the loan,
// @description all inside one atomic unsigned transaction returned to the
// @description caller for signing.
// @description
// @description ## - Usage Tips
// @description - Use smallest token units (lamports for SOL, base units for SPL tokens)
// @description - The repay amount always equals the borrow amount; the protocol fee is
// @description   covered by the escrow funding transfer
// @description - Transactions expire after ~60 seconds (based on lastValidBlockHeight)
// @description - Rate limit: 10 requests/second (burst: 20)
//
// @BasePath /
// @schemes https http
// @tag.name flashswap
// @tag.description Estimate borrow amounts and build unsigned flash-swap transactions
func main() {
	// load env
	err := godotenv.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load env")
		return
	}

	// di container config
	conf := container.NewConf(
		&config.GeneralConfig{},
		&config.RPCConfig{},
		&config.SwapAPIConfig{},
		&config.LendingConfig{},
		&config.BuilderConfig{},
		&config.StorageConfig{},
	)

	builderSvc := &builder.Service{}

	// di container
	dic, err := container.New(
		// config
		conf,

		// services
		&blockchain.BlockhashCacheService{},
		&swapapi.Service{},
		&estimator.Service{},
		builderSvc,

		&http.HTTPService{},
	)
	if err != nil {
		log.Error().Err(err).Msg("failed to create di container")
		return
	}

	go consumeBuildEvents(builderSvc.Events())

	// Run() waits for SIGINT/SIGTERM
	if err := dic.Run(); err != nil {
		log.Error().Err(err).Msg("failed to run di container")
		return
	}

	log.Info().Msg("Shutting down services...")
	if err := dic.Stop(); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
	log.Info().Msg("Shutdown complete")
}

// consumeBuildEvents drains the builder's event stream into the log. The
// channel is never closed; the goroutine ends with the process.
func consumeBuildEvents(events <-chan domain.BuildEvent) {
	for ev := range events {
		switch ev.Kind {
		case domain.EventBuildFailed:
			log.Warn().
				Str("wallet", ev.Wallet).
				Str("targetMint", ev.TargetMint).
				Str("error", ev.Err).
				Msg("[events] flash-swap build failed")
		case domain.EventEscrowShortfall:
			log.Warn().
				Str("wallet", ev.Wallet).
				Uint64("borrow", ev.BorrowAmount).
				Msg("[events] wallet underfunded for escrow")
		default:
			log.Info().
				Str("wallet", ev.Wallet).
				Str("targetMint", ev.TargetMint).
				Uint64("borrow", ev.BorrowAmount).
				Int("txSize", ev.TxSize).
				Msg("[events] flash-swap build succeeded")
		}
	}
}
