package config

import (
	"errors"
	"strconv"
	"time"

	"github.com/andrew-solarstorm/go-packages/common"
)

// SwapAPIConfig points at the external swap-routing HTTP service that prices
// routes and returns executable swap instructions.
type SwapAPIConfig struct {
	BaseURL string

	// Timeout bounds each quote / swap-instruction call. The build layer adds
	// no timeout of its own.
	Timeout time.Duration

	// DefaultSlippageBps is applied when the caller does not specify one.
	DefaultSlippageBps uint16
}

func (c *SwapAPIConfig) Key() string {
	return SWAP_API_CONFIG_KEY
}

func (c *SwapAPIConfig) Load() error {
	c.BaseURL = common.GetEnvOrDefault("SWAP_API_URL", "")

	seconds, err := strconv.Atoi(common.GetEnvOrDefault("SWAP_API_TIMEOUT_SECONDS", "10"))
	if err != nil || seconds <= 0 {
		seconds = 10
	}
	c.Timeout = time.Duration(seconds) * time.Second

	bps, err := strconv.Atoi(common.GetEnvOrDefault("DEFAULT_SLIPPAGE_BPS", "50"))
	if err != nil || bps <= 0 || bps >= 10000 {
		bps = 50
	}
	c.DefaultSlippageBps = uint16(bps)

	return nil
}

func (c *SwapAPIConfig) Validate() error {
	if c.BaseURL == "" {
		return errors.New("invalid swap api config: SWAP_API_URL is required")
	}
	return nil
}
