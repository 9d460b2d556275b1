package config

import (
	"errors"
	"os"
	"slices"
	"strconv"

	"github.com/andrew-solarstorm/go-packages/common"
)

// LendingConfig names the on-chain accounts of the lending protocol used for
// flash borrowing. Addresses stay base58 strings here and are parsed by the
// services that consume them.
type LendingConfig struct {
	ProgramID       string
	Market          string
	Reserve         string
	LiquiditySupply string
	LiquidityMint   string
	FeeReceiver     string

	// FlashFeeBps mirrors the reserve's flash-loan fee so the escrow funding
	// transfer can cover it up front. It never feeds the repay amount; the
	// protocol computes the real fee from reserve state on-chain.
	FlashFeeBps uint16

	// EscrowHeadroomLamports is extra funding on top of the fee estimate.
	EscrowHeadroomLamports uint64
}

func (c *LendingConfig) Key() string {
	return LENDING_CONFIG_KEY
}

func (c *LendingConfig) Load() error {
	c.ProgramID = os.Getenv("LENDING_PROGRAM_ID")
	c.Market = os.Getenv("LENDING_MARKET")
	c.Reserve = os.Getenv("LENDING_RESERVE")
	c.LiquiditySupply = os.Getenv("RESERVE_LIQUIDITY_SUPPLY")
	c.FeeReceiver = os.Getenv("RESERVE_FEE_RECEIVER")
	c.LiquidityMint = common.GetEnvOrDefault("LIQUIDITY_MINT", "So11111111111111111111111111111111111111112")

	bps, err := strconv.Atoi(common.GetEnvOrDefault("FLASH_FEE_BPS", "30"))
	if err != nil || bps < 0 || bps >= 10000 {
		bps = 30
	}
	c.FlashFeeBps = uint16(bps)

	headroom, err := strconv.ParseUint(common.GetEnvOrDefault("ESCROW_HEADROOM_LAMPORTS", "10000"), 10, 64)
	if err != nil {
		headroom = 10000
	}
	c.EscrowHeadroomLamports = headroom

	return nil
}

func (c *LendingConfig) Validate() error {
	required := []string{c.ProgramID, c.Market, c.Reserve, c.LiquiditySupply, c.FeeReceiver, c.LiquidityMint}
	if slices.Contains(required, "") {
		return errors.New("invalid lending config: program, market, reserve, supply and fee receiver are required")
	}
	return nil
}
