package config

import (
	"github.com/andrew-solarstorm/go-packages/common"
)

type StorageConfig struct {
	DBPath string
}

func (c *StorageConfig) Key() string {
	return STORAGE_CONFIG_KEY
}

func (c *StorageConfig) Load() error {
	c.DBPath = common.GetEnvOrDefault("DB_PATH", "./data/flash-engine.db")
	return nil
}

func (c *StorageConfig) Validate() error {
	return nil
}
