// Package mempool implements transaction admission, per-sender nonce
// ordering, priority-based batch selection, and background eviction.
// Structurally grounded on the teacher's BridgeTxPool (node/sc/
// bridge_tx_pool.go: config.sanitize(), the queue/all map pair, the
// background loop()/ticker shape) with the priority-heap selection idiom
// taken from the sibling pack example
// other_examples/1f7ff58a_luxfi-evm__core-txpool-txpool.go.go's use of
// github.com/ethereum/go-ethereum/common/prque.
package mempool

import (
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/prque"
	"github.com/holiman/uint256"

	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/common"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/config"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/crypto"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/kerrors"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/log"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/metrics"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/txtypes"
)

var logger = log.NewModuleLogger(log.ModuleMempool)

var (
	admittedCounter = metrics.NewRegisteredCounter("mempool/admitted")
	rejectedCounter = metrics.NewRegisteredCounter("mempool/rejected")
	evictedCounter  = metrics.NewRegisteredCounter("mempool/evicted")
)

// StateReader is the narrow view of StateStore the mempool needs for
// admission and eviction: current nonce and balance per sender.
type StateReader interface {
	GetEvmNonce(addr common.Address) (uint64, error)
	GetEvmBalance(addr common.Address) (*uint256.Int, error)
}

// senderQueue holds one sender's transactions, nonce-ordered, split into the
// pending prefix (contiguous from the current state nonce) and the queued
// remainder (gapped).
type senderQueue struct {
	byNonce map[uint64]*entry
}

type entry struct {
	tx       *txtypes.Transaction
	addedAt  time.Time
}

func newSenderQueue() *senderQueue {
	return &senderQueue{byNonce: make(map[uint64]*entry)}
}

// Mempool is the node's single pending-transaction pool.
type Mempool struct {
	cfg   config.MempoolConfig
	state StateReader

	mu      sync.RWMutex
	senders map[common.Address]*senderQueue
	all     map[common.Hash]*txtypes.Transaction
	memUsed uint64

	closed chan struct{}
	wg     sync.WaitGroup
}

// New constructs a Mempool reading nonce/balance facts from state.
func New(cfg config.MempoolConfig, state StateReader) *Mempool {
	mp := &Mempool{
		cfg:     cfg,
		state:   state,
		senders: make(map[common.Address]*senderQueue),
		all:     make(map[common.Hash]*txtypes.Transaction),
		closed:  make(chan struct{}),
	}
	mp.wg.Add(1)
	go mp.loop()
	return mp
}

// loop is the pool's background event cycle, following the teacher's
// ticker-driven loop() shape (node/sc/bridge_tx_pool.go).
func (mp *Mempool) loop() {
	defer mp.wg.Done()
	sweep := time.NewTicker(mp.cfg.SweepInterval)
	defer sweep.Stop()
	for {
		select {
		case <-sweep.C:
			mp.sweep()
		case <-mp.closed:
			logger.Info("mempool loop closing")
			return
		}
	}
}

// Stop terminates the background eviction loop.
func (mp *Mempool) Stop() {
	close(mp.closed)
	mp.wg.Wait()
}

// Add admits tx into the pool, applying every admission rule. Returns the
// transaction's hash on success.
func (mp *Mempool) Add(tx *txtypes.Transaction) (common.Hash, error) {
	if err := mp.validateSyntax(tx); err != nil {
		rejectedCounter.Inc(1)
		return common.Hash{}, err
	}

	nonce, err := mp.state.GetEvmNonce(tx.From)
	if err != nil {
		return common.Hash{}, kerrors.Wrap(kerrors.StorageFault, "nonce_lookup", err)
	}
	if tx.AccountNonce < nonce {
		rejectedCounter.Inc(1)
		return common.Hash{}, kerrors.New(kerrors.PolicyReject, kerrors.ReasonNonceTooLow)
	}

	balance, err := mp.state.GetEvmBalance(tx.From)
	if err != nil {
		return common.Hash{}, kerrors.Wrap(kerrors.StorageFault, "balance_lookup", err)
	}
	if balance.ToBig().Cmp(tx.Cost()) < 0 {
		rejectedCounter.Inc(1)
		return common.Hash{}, kerrors.New(kerrors.PolicyReject, kerrors.ReasonInsufficientFunds)
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	hash := tx.Hash()
	if _, exists := mp.all[hash]; exists {
		return hash, nil
	}

	sq, ok := mp.senders[tx.From]
	if !ok {
		sq = newSenderQueue()
		mp.senders[tx.From] = sq
	}
	if _, dup := sq.byNonce[tx.AccountNonce]; dup {
		rejectedCounter.Inc(1)
		return common.Hash{}, kerrors.New(kerrors.PolicyReject, kerrors.ReasonDuplicateNonce)
	}

	run := mp.nonceOrderedRunLocked(tx.From, sq)
	if limit := mp.cfg.MaxQueuedPerSender; limit > 0 && tx.AccountNonce > nonce+uint64(len(run)) {
		if uint64(len(sq.byNonce)-len(run)) >= limit {
			rejectedCounter.Inc(1)
			return common.Hash{}, kerrors.New(kerrors.PolicyReject, kerrors.ReasonNonceTooHigh)
		}
	}

	size := uint64(len(tx.Payload)) + SignatureOverhead
	if mp.memUsed+size > mp.cfg.MaxMemoryBytes {
		if !mp.evictLowestPriorityLocked(tx.Priority()) {
			rejectedCounter.Inc(1)
			return common.Hash{}, kerrors.New(kerrors.PolicyReject, kerrors.ReasonMempoolFull)
		}
	}

	sq.byNonce[tx.AccountNonce] = &entry{tx: tx, addedAt: time.Now()}
	mp.all[hash] = tx
	mp.memUsed += size
	admittedCounter.Inc(1)
	return hash, nil
}

// SignatureOverhead is the fixed bookkeeping cost added to every admitted
// transaction's memory-usage accounting.
const SignatureOverhead = 128

func (mp *Mempool) validateSyntax(tx *txtypes.Transaction) error {
	if len(tx.Signature) != txtypes.SignatureLength {
		return kerrors.New(kerrors.InputInvalid, kerrors.ReasonBadSignature)
	}
	if _, err := crypto.RecoverAddress(tx.SigningHash(), tx.Signature); err != nil {
		return kerrors.Wrap(kerrors.InputInvalid, kerrors.ReasonBadSignature, err)
	}
	if tx.GasLimit == 0 {
		return kerrors.New(kerrors.PolicyReject, kerrors.ReasonGasLimitZero)
	}
	if tx.TxType != txtypes.TxTypeSystem && tx.Price < mp.cfg.MinGasPrice {
		return kerrors.New(kerrors.PolicyReject, kerrors.ReasonGasPriceTooLow)
	}
	return nil
}

// evictLowestPriorityLocked evicts the single lowest-priority pending
// transaction if it is lower priority than incoming; returns whether room
// was freed. Caller holds mp.mu.
func (mp *Mempool) evictLowestPriorityLocked(incoming *big.Int) bool {
	var lowestHash common.Hash
	var lowestAddr common.Address
	var lowestNonce uint64
	var lowestPrio *big.Int
	found := false

	for addr, sq := range mp.senders {
		for nonce, e := range sq.byNonce {
			p := e.tx.Priority()
			if !found || p.Cmp(lowestPrio) < 0 {
				found = true
				lowestPrio = p
				lowestHash = e.tx.Hash()
				lowestAddr = addr
				lowestNonce = nonce
			}
		}
	}
	if !found || lowestPrio.Cmp(incoming) >= 0 {
		return false
	}

	delete(mp.senders[lowestAddr].byNonce, lowestNonce)
	delete(mp.all, lowestHash)
	evictedCounter.Inc(1)
	return true
}

// Remove drops a transaction from the pool by hash.
func (mp *Mempool) Remove(hash common.Hash) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.removeLocked(hash)
}

func (mp *Mempool) removeLocked(hash common.Hash) {
	tx, ok := mp.all[hash]
	if !ok {
		return
	}
	delete(mp.all, hash)
	if sq, ok := mp.senders[tx.From]; ok {
		delete(sq.byNonce, tx.AccountNonce)
		if len(sq.byNonce) == 0 {
			delete(mp.senders, tx.From)
		}
	}
}

// MarkExecuted removes a transaction the block producer has committed.
func (mp *Mempool) MarkExecuted(hash common.Hash) {
	mp.Remove(hash)
}

// PullForBlock returns up to maxCount transactions respecting per-sender
// nonce order and a total gas budget, via a stable priority merge: take the
// highest-priority sender head, take its contiguous nonce-ordered prefix
// that fits the remaining gas budget, repeat.
func (mp *Mempool) PullForBlock(maxCount int, maxGas uint64) []*txtypes.Transaction {
	if maxCount <= 0 {
		return nil
	}
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	pq := prque.New(nil)
	for addr, sq := range mp.senders {
		head, ok := mp.contiguousHeadLocked(addr, sq)
		if !ok {
			continue
		}
		// prque is a max-heap keyed by int64 priority.
		pq.Push(addr, head.Priority().Int64())
	}

	var batch []*txtypes.Transaction
	var gasUsed uint64
	for pq.Size() > 0 && len(batch) < maxCount {
		v, _ := pq.Pop()
		addr := v.(common.Address)
		sq := mp.senders[addr]
		run := mp.nonceOrderedRunLocked(addr, sq)
		for _, tx := range run {
			if len(batch) >= maxCount || gasUsed+tx.GasLimit > maxGas {
				break
			}
			batch = append(batch, tx)
			gasUsed += tx.GasLimit
		}
	}
	return batch
}

// contiguousHeadLocked returns the first transaction of a sender's
// contiguous nonce-ordered prefix starting at the current state nonce.
func (mp *Mempool) contiguousHeadLocked(addr common.Address, sq *senderQueue) (*txtypes.Transaction, bool) {
	nonce, err := mp.state.GetEvmNonce(addr)
	if err != nil {
		return nil, false
	}
	e, ok := sq.byNonce[nonce]
	if !ok {
		return nil, false
	}
	return e.tx, true
}

// nonceOrderedRunLocked returns a sender's full contiguous run starting at
// the current state nonce, in nonce order.
func (mp *Mempool) nonceOrderedRunLocked(addr common.Address, sq *senderQueue) []*txtypes.Transaction {
	nonce, err := mp.state.GetEvmNonce(addr)
	if err != nil {
		return nil
	}
	var run []*txtypes.Transaction
	for {
		e, ok := sq.byNonce[nonce]
		if !ok {
			break
		}
		run = append(run, e.tx)
		nonce++
	}
	return run
}

// Size returns the total number of tracked transactions (pending + queued).
func (mp *Mempool) Size() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return len(mp.all)
}

// PendingCount returns the number of transactions in a contiguous
// nonce-ordered prefix across all senders.
func (mp *Mempool) PendingCount() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	count := 0
	for addr, sq := range mp.senders {
		count += len(mp.nonceOrderedRunLocked(addr, sq))
	}
	return count
}

// QueuedCount returns the number of transactions not in any sender's
// contiguous prefix (nonce gaps).
func (mp *Mempool) QueuedCount() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	total := 0
	for _, sq := range mp.senders {
		total += len(sq.byNonce)
	}
	return total - mp.PendingCount()
}

// MemoryUsage returns the pool's current estimated memory footprint.
func (mp *Mempool) MemoryUsage() uint64 {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.memUsed
}

// GasPriceStats returns (min, median, max) gas price across tracked
// transactions, or all zero if the pool is empty. Median of an even-sized
// pool is the lower of the two middle prices, to stay an actual observed
// price rather than an interpolated one.
func (mp *Mempool) GasPriceStats() (min, median, max uint64) {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	if len(mp.all) == 0 {
		return 0, 0, 0
	}
	prices := make([]uint64, 0, len(mp.all))
	for _, tx := range mp.all {
		prices = append(prices, tx.Price)
	}
	sort.Slice(prices, func(i, j int) bool { return prices[i] < prices[j] })
	return prices[0], prices[(len(prices)-1)/2], prices[len(prices)-1]
}

// sweep removes transactions older than MaxAge, whose nonce has fallen below
// the sender's current state nonce, or whose sender can no longer afford
// them — the background eviction rule set.
func (mp *Mempool) sweep() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	now := time.Now()
	for addr, sq := range mp.senders {
		nonce, err := mp.state.GetEvmNonce(addr)
		if err != nil {
			continue
		}
		balance, err := mp.state.GetEvmBalance(addr)
		if err != nil {
			continue
		}
		for n, e := range sq.byNonce {
			stale := now.Sub(e.addedAt) > mp.cfg.MaxAge
			belowNonce := n < nonce
			unaffordable := balance.ToBig().Cmp(e.tx.Cost()) < 0
			if stale || belowNonce || unaffordable {
				delete(sq.byNonce, n)
				delete(mp.all, e.tx.Hash())
				evictedCounter.Inc(1)
			}
		}
		if len(sq.byNonce) == 0 {
			delete(mp.senders, addr)
		}
	}
}
