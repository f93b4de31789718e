// Package config holds the node's TOML-loadable configuration, following
// the sanitize-on-load pattern the teacher applies to pool configuration
// (node/sc/bridge_tx_pool.go's BridgeTxPoolConfig.sanitize).
package config

import (
	"os"
	"time"

	"github.com/naoina/toml"
)

// MempoolConfig mirrors the shape of the teacher's BridgeTxPoolConfig, with
// fields renamed to the admission/eviction/priority rules this core needs.
type MempoolConfig struct {
	MinGasPrice   uint64        // floor below which a tx is PolicyReject'd
	MaxMemoryBytes uint64       // total mempool memory cap
	MaxAge        time.Duration // eviction sweep age threshold
	SweepInterval time.Duration // how often the eviction sweep runs
	MaxQueuedPerSender uint64   // cap on out-of-order queued txs per sender
}

// ExecutionConfig controls the conflict-aware parallel execution engine.
type ExecutionConfig struct {
	WorkerPoolSize int // bounded errgroup pool size for conflict-group execution
}

// CoordinatorConfig controls the cross-shard 2PC coordinator.
type CoordinatorConfig struct {
	ShardID       uint32
	VoteTimeout   time.Duration
	RecoverySweep time.Duration // how often startup-style recovery re-runs against stale entries
	LeaseDuration time.Duration // resource lock lease granted at PREPARE time
}

// StorageConfig selects and tunes the KvStore backend.
type StorageConfig struct {
	Backend string // "leveldb" or "badger"
	DataDir string
}

// BlockProducerConfig controls the block production loop.
type BlockProducerConfig struct {
	MaxTxsPerBlock uint64
	MaxGasPerBlock uint64
}

// NetworkConfig bounds the per-peer inbox/outbox queues.
type NetworkConfig struct {
	PerPeerQueueSize int
}

// NodeConfig is the top-level configuration tree, loaded from a single TOML
// file the way the teacher's gencodec-generated configs are.
type NodeConfig struct {
	Mempool       MempoolConfig
	Execution     ExecutionConfig
	Coordinator   CoordinatorConfig
	Storage       StorageConfig
	BlockProducer BlockProducerConfig
	Network       NetworkConfig
}

// DefaultNodeConfig mirrors the teacher's DefaultBridgeTxPoolConfig pattern:
// one package-level value callers start from and override.
var DefaultNodeConfig = NodeConfig{
	Mempool: MempoolConfig{
		MinGasPrice:        1,
		MaxMemoryBytes:     256 << 20,
		MaxAge:             time.Hour,
		SweepInterval:      30 * time.Second,
		MaxQueuedPerSender: 64,
	},
	Execution: ExecutionConfig{
		WorkerPoolSize: 8,
	},
	Coordinator: CoordinatorConfig{
		ShardID:       0,
		VoteTimeout:   10 * time.Second,
		RecoverySweep: time.Minute,
		LeaseDuration: 30 * time.Second,
	},
	Storage: StorageConfig{
		Backend: "leveldb",
		DataDir: "data",
	},
	BlockProducer: BlockProducerConfig{
		MaxTxsPerBlock: 2000,
		MaxGasPerBlock: 30_000_000,
	},
	Network: NetworkConfig{
		PerPeerQueueSize: 1024,
	},
}

// Sanitize clamps anything unreasonable or unworkable to a safe default,
// following the teacher's sanitize() convention rather than failing load.
func (c *NodeConfig) Sanitize() {
	if c.Mempool.MinGasPrice == 0 {
		c.Mempool.MinGasPrice = DefaultNodeConfig.Mempool.MinGasPrice
	}
	if c.Mempool.MaxMemoryBytes == 0 {
		c.Mempool.MaxMemoryBytes = DefaultNodeConfig.Mempool.MaxMemoryBytes
	}
	if c.Mempool.MaxAge < time.Second {
		c.Mempool.MaxAge = DefaultNodeConfig.Mempool.MaxAge
	}
	if c.Mempool.SweepInterval < time.Second {
		c.Mempool.SweepInterval = DefaultNodeConfig.Mempool.SweepInterval
	}
	if c.Mempool.MaxQueuedPerSender == 0 {
		c.Mempool.MaxQueuedPerSender = DefaultNodeConfig.Mempool.MaxQueuedPerSender
	}
	if c.Execution.WorkerPoolSize <= 0 {
		c.Execution.WorkerPoolSize = DefaultNodeConfig.Execution.WorkerPoolSize
	}
	if c.Coordinator.VoteTimeout < time.Second {
		c.Coordinator.VoteTimeout = DefaultNodeConfig.Coordinator.VoteTimeout
	}
	if c.Coordinator.RecoverySweep < time.Second {
		c.Coordinator.RecoverySweep = DefaultNodeConfig.Coordinator.RecoverySweep
	}
	if c.Coordinator.LeaseDuration < time.Second {
		c.Coordinator.LeaseDuration = DefaultNodeConfig.Coordinator.LeaseDuration
	}
	if c.Storage.Backend != "leveldb" && c.Storage.Backend != "badger" {
		c.Storage.Backend = DefaultNodeConfig.Storage.Backend
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = DefaultNodeConfig.Storage.DataDir
	}
	if c.BlockProducer.MaxTxsPerBlock == 0 {
		c.BlockProducer.MaxTxsPerBlock = DefaultNodeConfig.BlockProducer.MaxTxsPerBlock
	}
	if c.BlockProducer.MaxGasPerBlock == 0 {
		c.BlockProducer.MaxGasPerBlock = DefaultNodeConfig.BlockProducer.MaxGasPerBlock
	}
	if c.Network.PerPeerQueueSize <= 0 {
		c.Network.PerPeerQueueSize = DefaultNodeConfig.Network.PerPeerQueueSize
	}
}

// Load reads a TOML file into a NodeConfig seeded with DefaultNodeConfig,
// then sanitizes the result.
func Load(path string) (*NodeConfig, error) {
	cfg := DefaultNodeConfig
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := toml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, err
	}
	cfg.Sanitize()
	return &cfg, nil
}
