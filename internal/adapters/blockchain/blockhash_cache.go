package blockchain

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog/log"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/hxuan190/flash-engine/internal/config"
)

const BLOCKHASH_CACHE_SERVICE = "cache-blockhash-svc"

// blockhashTTL bounds how stale a cached blockhash may be before a fresh RPC
// fetch. Blockhashes stay valid for ~150 blocks, so a short TTL keeps plenty
// of submission margin.
const blockhashTTL = 2 * time.Second

type CachedBlockhash struct {
	Blockhash            solana.Hash
	LastValidBlockHeight uint64
	Slot                 uint64
	UpdatedAt            time.Time
}

// BlockhashCacheService serves a recent blockhash to transaction compilation
// without an RPC round trip per build.
type BlockhashCacheService struct {
	container.BaseDIInstance

	mu        sync.RWMutex
	current   *CachedBlockhash
	rpcClient *rpc.Client
}

func (svc *BlockhashCacheService) ID() string {
	return BLOCKHASH_CACHE_SERVICE
}

func (svc *BlockhashCacheService) Configure(c container.IContainer) error {
	rpcConfig := c.GetConfig(config.RPC_CONFIG_KEY).(*config.RPCConfig)
	svc.rpcClient = rpc.New(rpcConfig.Endpoint())
	return nil
}

func (svc *BlockhashCacheService) Start() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := svc.refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("[BlockhashCacheService] failed to fetch initial blockhash, will retry on first request")
	}
	return nil
}

func (svc *BlockhashCacheService) refresh(ctx context.Context) error {
	res, err := svc.rpcClient.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return err
	}

	svc.mu.Lock()
	svc.current = &CachedBlockhash{
		Blockhash:            res.Value.Blockhash,
		LastValidBlockHeight: res.Value.LastValidBlockHeight,
		Slot:                 res.Context.Slot,
		UpdatedAt:            time.Now(),
	}
	svc.mu.Unlock()

	return nil
}

// GetBlockhash returns a recent blockhash, refreshing over RPC when the
// cached one aged out. On RPC failure a stale cached value is still returned
// rather than failing the build.
func (svc *BlockhashCacheService) GetBlockhash(ctx context.Context) (solana.Hash, uint64, error) {
	svc.mu.RLock()
	cached := svc.current
	svc.mu.RUnlock()

	if cached != nil && time.Since(cached.UpdatedAt) < blockhashTTL {
		return cached.Blockhash, cached.LastValidBlockHeight, nil
	}

	if err := svc.refresh(ctx); err != nil {
		if cached != nil {
			log.Warn().Err(err).Msg("[BlockhashCacheService] refresh failed, serving stale blockhash")
			return cached.Blockhash, cached.LastValidBlockHeight, nil
		}
		return solana.Hash{}, 0, err
	}

	svc.mu.RLock()
	cached = svc.current
	svc.mu.RUnlock()
	return cached.Blockhash, cached.LastValidBlockHeight, nil
}
