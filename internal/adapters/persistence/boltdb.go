// Package persistence provides the injected key-value store used to persist
// build records, replacing ad hoc in-memory session maps.
package persistence

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	boltdb "github.com/andrew-solarstorm/bolt-db"
	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"
)

const (
	BuildsBucket = "builds"

	DefaultDBPath = "./data/flash-engine.db"
)

// Store is the KV abstraction injected into components. Implementations must
// be safe for concurrent use.
type Store interface {
	Put(bucket string, key string, value []byte) error
	Get(bucket string, key string) ([]byte, error)
	Delete(bucket string, key string) error
	Close() error
}

// BuildRecord is the persisted summary of one build, keyed by wallet.
type BuildRecord struct {
	Wallet          string    `json:"wallet"`
	TargetMint      string    `json:"targetMint"`
	BorrowAmount    uint64    `json:"borrowAmount"`
	EstimatedOutput uint64    `json:"estimatedOutput"`
	PriceImpactPct  float64   `json:"priceImpactPct"`
	TxSize          int       `json:"txSize"`
	SwapBack        bool      `json:"swapBack,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

type Storage struct {
	db     *boltdb.BoltDatabase
	dbPath string
}

var _ Store = (*Storage)(nil)

func NewStorage(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = DefaultDBPath
	}
	os.MkdirAll(filepath.Dir(dbPath), 0755)

	db := boltdb.NewBoltDatabase(dbPath)
	if db == nil {
		return nil, fmt.Errorf("failed to open database at %s", dbPath)
	}

	log.Info().Str("path", dbPath).Msg("[buildStorage] opened database")

	return &Storage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

func (s *Storage) Put(bucket string, key string, value []byte) error {
	return s.db.Set(bucket, []byte(key), value)
}

func (s *Storage) Get(bucket string, key string) ([]byte, error) {
	return s.db.Get(bucket, []byte(key))
}

func (s *Storage) Delete(bucket string, key string) error {
	return s.db.Delete(bucket, []byte(key))
}

func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveBuildRecord upserts the latest build for a wallet.
func SaveBuildRecord(s Store, rec *BuildRecord) error {
	data, err := sonic.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal build record: %w", err)
	}
	return s.Put(BuildsBucket, rec.Wallet, data)
}

// LoadBuildRecord returns the last build for a wallet, or nil when none was
// recorded.
func LoadBuildRecord(s Store, wallet string) (*BuildRecord, error) {
	data, err := s.Get(BuildsBucket, wallet)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	var rec BuildRecord
	if err := sonic.Unmarshal(data, &rec); err != nil {
		log.Warn().Str("wallet", wallet).Err(err).Msg("[buildStorage] failed to unmarshal build record")
		return nil, fmt.Errorf("failed to unmarshal build record: %w", err)
	}
	return &rec, nil
}
