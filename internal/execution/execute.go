package execution

import (
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"github.com/holiman/uint256"

	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/common"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/config"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/kerrors"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/log"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/metrics"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/state"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/txtypes"
)

var logger = log.NewModuleLogger(log.ModuleExecution)

var (
	txExecutedMeter = metrics.NewRegisteredMeter("execution/tx_executed")
	groupTimer      = metrics.NewRegisteredTimer("execution/group_duration")
)

// Per-type base gas costs. Call/ContractCreate charge an additional
// per-byte payload cost; EVM-opcode-level metering is out of scope here
// (host-interface gas/EVM semantics beyond this boundary are a non-goal).
const (
	baseGasTransfer       = 21000
	baseGasContractCreate = 53000
	baseGasCall           = 21000
	baseGasStake          = 25000
	baseGasUnstake        = 25000
	baseGasDelegate       = 25000
	baseGasClaimReward    = 21000
	baseGasBatch          = 30000
	baseGasSystem         = 0
	gasPerPayloadByte     = 16
)

// BlockContext carries the ambient values execution needs but does not
// itself decide: producer identity, height, timestamp.
type BlockContext struct {
	Height    uint64
	Producer  common.Address
	Timestamp uint64
}

// Engine executes a batch of transactions under the conflict-aware parallel
// schedule described in spec §4.3, over a bounded worker pool sized by
// config.ExecutionConfig.WorkerPoolSize (following the sibling pack
// example's errgroup-driven ExecutionTask pool).
type Engine struct {
	cfg config.ExecutionConfig
}

// New constructs an Engine with the given worker-pool sizing.
func New(cfg config.ExecutionConfig) *Engine {
	return &Engine{cfg: cfg}
}

// ExecuteBatch runs txs against st under conflict-group parallelism and
// returns one receipt per transaction, ordered by the schedule that
// produced them — groups execute in parallel, so this is not input order;
// the caller computes receipts_root in input order separately (spec §5).
// A storage-level fault during any group is fatal to the whole batch.
func (e *Engine) ExecuteBatch(txs []*txtypes.Transaction, st *state.StateStore, ctx BlockContext) ([]*txtypes.Receipt, error) {
	groups := groupByConflict(txs, nil)
	logger.Debug("executing batch", "height", ctx.Height, "txs", len(txs), "groups", len(groups))

	results := make([][]*txtypes.Receipt, len(groups))
	poolSize := e.cfg.WorkerPoolSize
	if poolSize <= 0 {
		poolSize = 1
	}
	sem := make(chan struct{}, poolSize)
	var g errgroup.Group

	for i, group := range groups {
		i, group := i, group
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			start := time.Now()
			receipts, err := e.executeGroup(group, st, ctx)
			groupTimer.Update(time.Since(start))
			if err != nil {
				return err
			}
			results[i] = receipts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []*txtypes.Receipt
	for _, r := range results {
		all = append(all, r...)
	}
	return all, nil
}

// executeGroup runs one conflict group sequentially, in priority order
// (gas_price*gas_limit descending, ties by hash ascending), each tx wrapped
// in its own snapshot. Transactions in a group observe the effects of their
// predecessors in that group, since they share the same StateStore.
//
// Same-sender transactions always order by nonce ascending regardless of
// priority: a sender's nonce-0 and nonce-1 transfers necessarily tie on
// gas_price*gas_limit, and breaking that tie by hash would run them out of
// nonce order roughly half the time, which apply's exact nonce-equality
// check then turns into two spurious failures instead of two successes.
func (e *Engine) executeGroup(group conflictGroup, st *state.StateStore, ctx BlockContext) ([]*txtypes.Receipt, error) {
	sorted := append([]*txtypes.Transaction{}, group.txs...)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.From == b.From {
			return a.AccountNonce < b.AccountNonce
		}
		pi, pj := a.Priority(), b.Priority()
		if pi.Cmp(pj) != 0 {
			return pi.Cmp(pj) > 0
		}
		return a.Hash().Hex() < b.Hash().Hex()
	})

	receipts := make([]*txtypes.Receipt, 0, len(sorted))
	for _, tx := range sorted {
		receipt, fatal, err := e.executeOne(tx, st, ctx)
		if fatal {
			return nil, err
		}
		txExecutedMeter.Mark(1)
		receipts = append(receipts, receipt)
	}
	return receipts, nil
}

// executeOne applies a single transaction inside its own snapshot: commit on
// success, roll back on transaction-level failure and then charge the full
// gas_limit*gas_price (gas is not metered up to the point of failure). A
// storage-level fault is fatal to the batch.
func (e *Engine) executeOne(tx *txtypes.Transaction, st *state.StateStore, ctx BlockContext) (*txtypes.Receipt, bool, error) {
	snap := st.BeginSnapshot()

	receipt, execErr := apply(tx, st, ctx)
	if execErr == nil {
		st.CommitSnapshot(snap)
		return receipt, false, nil
	}
	if kerrors.IsFatal(execErr) {
		st.RollbackSnapshot(snap)
		return nil, true, execErr
	}

	st.RollbackSnapshot(snap)
	chargeSnap := st.BeginSnapshot()
	if chargeErr := chargeGasOnly(tx, st); chargeErr != nil {
		st.RollbackSnapshot(chargeSnap)
		return nil, true, chargeErr
	}
	st.CommitSnapshot(chargeSnap)
	return failedReceipt(tx, execErr), false, nil
}

// ApplyPayload decodes payload as a single RLP-encoded transaction and
// applies it directly against st, outside the conflict-group schedule. This
// is the hook the cross-shard coordinator calls on COMMIT: by the time a
// payload reaches here it has already cleared 2PC voting, so it runs with
// no further admission checks beyond apply's own nonce/balance/gas ones.
func ApplyPayload(payload []byte, st *state.StateStore) (*txtypes.Receipt, error) {
	var tx txtypes.Transaction
	if err := tx.DecodeRLP(payload); err != nil {
		return nil, kerrors.Wrap(kerrors.InputInvalid, "coordinator_payload_decode", err)
	}
	snap := st.BeginSnapshot()
	receipt, err := apply(&tx, st, BlockContext{})
	if err != nil {
		st.RollbackSnapshot(snap)
		return nil, err
	}
	st.CommitSnapshot(snap)
	return receipt, nil
}

func failedReceipt(tx *txtypes.Transaction, err error) *txtypes.Receipt {
	reason := err.Error()
	if ke, ok := err.(*kerrors.Error); ok {
		reason = ke.Reason
	}
	return &txtypes.Receipt{
		TxHash:        tx.Hash(),
		Status:        txtypes.ReceiptFailed,
		GasUsed:       tx.GasLimit,
		FailureReason: reason,
	}
}

func baseGas(tx *txtypes.Transaction) uint64 {
	var base uint64
	switch tx.TxType {
	case txtypes.TxTypeTransfer:
		base = baseGasTransfer
	case txtypes.TxTypeContractCreate:
		base = baseGasContractCreate
	case txtypes.TxTypeCall:
		base = baseGasCall
	case txtypes.TxTypeStake:
		base = baseGasStake
	case txtypes.TxTypeUnstake:
		base = baseGasUnstake
	case txtypes.TxTypeDelegate:
		base = baseGasDelegate
	case txtypes.TxTypeClaimReward:
		base = baseGasClaimReward
	case txtypes.TxTypeBatch:
		base = baseGasBatch
	case txtypes.TxTypeSystem:
		base = baseGasSystem
	default:
		base = baseGasCall
	}
	return base + uint64(len(tx.Payload))*gasPerPayloadByte
}

// gasCost returns gas_price * min(gasUsed, gas_limit) as a uint256, the
// amount debited from the sender's balance for gas.
func gasCost(tx *txtypes.Transaction, gasUsed uint64) *uint256.Int {
	if gasUsed > tx.GasLimit {
		gasUsed = tx.GasLimit
	}
	return new(uint256.Int).Mul(uint256.NewInt(tx.Price), uint256.NewInt(gasUsed))
}
