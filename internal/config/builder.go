package config

import (
	"strconv"

	"github.com/andrew-solarstorm/go-packages/common"
)

// BuilderConfig tunes the transaction assembly step.
type BuilderConfig struct {
	// ComputeUnitLimit is set once per transaction; budget instructions
	// injected by the swap service are stripped.
	ComputeUnitLimit uint32

	// ComputeUnitPrice in micro-lamports per compute unit.
	ComputeUnitPrice uint64

	// MaxTransactionSize is the serialized size ceiling. Exceeding it fails
	// the build with a distinct error instead of producing an unsendable
	// envelope.
	MaxTransactionSize int
}

func (c *BuilderConfig) Key() string {
	return BUILDER_CONFIG_KEY
}

func (c *BuilderConfig) Load() error {
	limit, err := strconv.ParseUint(common.GetEnvOrDefault("COMPUTE_UNIT_LIMIT", "1400000"), 10, 32)
	if err != nil || limit == 0 {
		limit = 1400000
	}
	c.ComputeUnitLimit = uint32(limit)

	price, err := strconv.ParseUint(common.GetEnvOrDefault("COMPUTE_UNIT_PRICE", "1000"), 10, 64)
	if err != nil {
		price = 1000
	}
	c.ComputeUnitPrice = price

	size, err := strconv.Atoi(common.GetEnvOrDefault("MAX_TX_SIZE", "1232"))
	if err != nil || size <= 0 {
		size = 1232
	}
	c.MaxTransactionSize = size

	return nil
}

func (c *BuilderConfig) Validate() error {
	return nil
}
