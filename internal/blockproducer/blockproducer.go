// Package blockproducer drives exactly one block at a time: pull a batch
// from the mempool, execute it, build a header, and hand the result to
// consensus for accept/reject. Grounded on the teacher's worker
// (work/worker.go): commitNewWork's mu-guarded single round (parent lookup,
// header assembly, commitTransactions, engine.Finalize, push) is the shape
// ProduceRound follows, collapsed from the teacher's agent/result-channel
// mining loop into a single synchronous round since this core has no
// separate sealing step to pipeline against.
package blockproducer

import (
	"sync"
	"time"

	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/common"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/config"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/execution"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/log"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/mempool"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/metrics"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/state"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/trie"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/txtypes"
)

var logger = log.NewModuleLogger(log.ModuleBlockProducer)

var (
	blocksProducedCounter = metrics.NewRegisteredCounter("blockproducer/produced")
	blocksRejectedCounter = metrics.NewRegisteredCounter("blockproducer/rejected")
	roundTimer            = metrics.NewRegisteredTimer("blockproducer/round_duration")
)

// ConsensusGate is the narrow surface the producer needs from consensus:
// accept or reject a fully-built candidate. This core does not implement
// consensus itself (out of scope); Accept is the seam a real engine plugs
// into, mirroring the teacher's consensus.Engine.Finalize/Seal boundary.
type ConsensusGate interface {
	Accept(header *txtypes.BlockHeader, txs []*txtypes.Transaction, receipts []*txtypes.Receipt) (bool, error)
}

// Producer drives one block at a time under a single mutex, the way the
// teacher's worker serializes commitNewWork via self.mu/self.currentMu.
type Producer struct {
	cfg      config.BlockProducerConfig
	mempool  *mempool.Mempool
	engine   *execution.Engine
	st       *state.StateStore
	consensus ConsensusGate
	address  common.Address

	mu sync.Mutex
}

// New constructs a Producer. address is this node's producer identity,
// stamped into every header it builds.
func New(cfg config.BlockProducerConfig, mp *mempool.Mempool, engine *execution.Engine, st *state.StateStore, consensus ConsensusGate, address common.Address) *Producer {
	return &Producer{
		cfg:       cfg,
		mempool:   mp,
		engine:    engine,
		st:        st,
		consensus: consensus,
		address:   address,
	}
}

// ProduceRound runs exactly one pull→execute→finalize→emit cycle. It
// returns (nil, nil) when consensus rejects the candidate — the mempool
// keeps its transactions and the caller may retry on the next round.
func (p *Producer) ProduceRound() (*txtypes.Block, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	defer func() { roundTimer.Update(time.Since(start)) }()

	height := p.st.Height() + 1
	parentHash := common.Hash{}
	if parent, ok, err := p.st.LatestBlock(); err != nil {
		return nil, err
	} else if ok {
		parentHash = parent.Hash()
	}

	ctx := execution.BlockContext{
		Height:    height,
		Producer:  p.address,
		Timestamp: uint64(time.Now().Unix()),
	}

	batch := p.mempool.PullForBlock(int(p.cfg.MaxTxsPerBlock), p.cfg.MaxGasPerBlock)

	snap := p.st.BeginSnapshot()
	receipts, err := p.engine.ExecuteBatch(batch, p.st, ctx)
	if err != nil {
		p.st.RollbackSnapshot(snap)
		return nil, err
	}
	// ExecuteBatch's result order follows the conflict-group schedule, not
	// input order; receipts_root is defined over input order, so reorder
	// before hashing (and before handing to consensus).
	orderedReceipts := reorderByInput(batch, receipts)

	header := txtypes.BlockHeader{
		Height:       ctx.Height,
		PrevHash:     parentHash,
		MerkleRoot:   merkleRoot(batch),
		StateRoot:    p.st.StateRoot(),
		ReceiptsRoot: receiptsRoot(orderedReceipts),
		Producer:     ctx.Producer,
		Timestamp:    ctx.Timestamp,
	}

	accepted, err := p.consensus.Accept(&header, batch, orderedReceipts)
	if err != nil {
		p.st.RollbackSnapshot(snap)
		return nil, err
	}
	if !accepted {
		p.st.RollbackSnapshot(snap)
		blocksRejectedCounter.Inc(1)
		logger.Info("block candidate rejected, transactions remain queued", "height", ctx.Height)
		return nil, nil
	}

	p.st.CommitSnapshot(snap)
	p.st.SetHeight(ctx.Height)
	for _, tx := range batch {
		p.mempool.MarkExecuted(tx.Hash())
	}

	block := &txtypes.Block{Header: header, Txs: batch}
	if err := p.st.PutBlock(block); err != nil {
		return nil, err
	}

	blocksProducedCounter.Inc(1)
	logger.Info("block produced", "height", ctx.Height, "txs", len(batch))
	return block, nil
}

// reorderByInput permutes receipts to match batch's order, by transaction
// hash. Every receipt carries its own TxHash, so this needs no cooperation
// from the execution engine beyond that field.
func reorderByInput(batch []*txtypes.Transaction, receipts []*txtypes.Receipt) []*txtypes.Receipt {
	byHash := make(map[common.Hash]*txtypes.Receipt, len(receipts))
	for _, r := range receipts {
		byHash[r.TxHash] = r
	}
	ordered := make([]*txtypes.Receipt, 0, len(batch))
	for _, tx := range batch {
		if r, ok := byHash[tx.Hash()]; ok {
			ordered = append(ordered, r)
		}
	}
	return ordered
}

// merkleRoot hashes the batch's transaction hashes into an ephemeral,
// never-persisted trie keyed by index — the same "disposable trie" idiom
// internal/state/evm.go uses for on-demand storage roots.
func merkleRoot(txs []*txtypes.Transaction) common.Hash {
	t := trie.New(nil)
	for i, tx := range txs {
		h := tx.Hash()
		t.Update(indexKey(i), h.Bytes())
	}
	return t.Hash()
}

func receiptsRoot(receipts []*txtypes.Receipt) common.Hash {
	t := trie.New(nil)
	for i, r := range receipts {
		t.Update(indexKey(i), []byte{byte(r.Status)})
	}
	return t.Hash()
}

func indexKey(i int) []byte {
	var b [8]byte
	v := uint64(i)
	for j := 7; j >= 0; j-- {
		b[j] = byte(v)
		v >>= 8
	}
	return b[:]
}
