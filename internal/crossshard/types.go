// Package crossshard implements the persistent two-phase-commit coordinator
// and participant for transactions whose read/write set spans multiple
// shards: durable phase transitions, per-resource locking with serializable
// lease deadlines, lattice-signed wire messages, and startup recovery.
// Grounded on original_source/blockchain_node/src/consensus/cross_shard/
// coordinator_storage.rs (column-family-style namespacing over one storage
// handle, load_pending_transactions' commit/abort-and-unacked filter) and
// integration.rs (coordinator/participant message flow).
package crossshard

import (
	"time"

	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/common"
)

// Phase is a CoordinatorTxState's position in the 2PC state machine:
// Init -> Prepare -> {Commit, Abort} -> Done.
type Phase uint8

const (
	PhaseInit Phase = iota
	PhasePrepare
	PhaseCommit
	PhaseAbort
	PhaseDone
)

// Vote is a participant's reply to PREPARE.
type Vote uint8

const (
	VotePending Vote = iota
	VoteYes
	VoteNo
)

// ShardID identifies a shard in the network.
type ShardID uint32

// ResourceID names a lockable resource (an account, a contract, or any
// other coordinator-addressable entity spanning shards).
type ResourceID string

// TxID identifies one cross-shard transaction throughout its 2PC lifecycle.
type TxID common.Hash

// CoordinatorTxState is the durable record of one cross-shard transaction.
// Every transition is persisted before being observed by peers.
type CoordinatorTxState struct {
	TxID      TxID
	Phase     Phase
	FromShard ShardID
	ToShard   ShardID
	Resources []ResourceID
	Votes     map[ShardID]Vote
	Payload   []byte
	CreatedAt int64 // unix nanoseconds
}

// AllAcked reports whether every participant shard in Votes has responded,
// used by recovery to decide whether a Commit/Abort entry still needs a
// re-broadcast.
func (s *CoordinatorTxState) AllAcked(acked map[ShardID]bool) bool {
	for shard := range s.Votes {
		if !acked[shard] {
			return false
		}
	}
	return true
}

// LockMode is Shared or Exclusive; Exclusive holders are mutually exclusive
// with every other holder, Shared holders are mutually exclusive only with
// an Exclusive holder.
type LockMode uint8

const (
	LockShared LockMode = iota
	LockExclusive
)

// ResourceLock is a lease-bounded marker on a named resource. LeaseDeadline
// is stored as a Unix-nanosecond deadline rather than the original source's
// in-memory Instant, per the durability requirement: a coordinator restart
// must be able to evaluate whether a lease has expired from the persisted
// record alone.
type ResourceLock struct {
	ResourceID         ResourceID
	HolderTxID         TxID
	Mode               LockMode
	AcquiredAtUnixNano int64
	LeaseDeadlineUnixNano int64
}

// Expired reports whether the lock's lease has passed as of now.
func (l *ResourceLock) Expired(now time.Time) bool {
	return now.UnixNano() >= l.LeaseDeadlineUnixNano
}

// PreparedRecord is a participant's durable record of a transaction it has
// voted YES for but not yet seen COMMIT or ABORT. FromShard/ToShard mirror
// the reply-message convention (own shard, coordinator shard), so an
// expired lease can still address an UNPREPARE back to the coordinator
// without needing the original PREPARE message in hand.
type PreparedRecord struct {
	TxID      TxID
	FromShard ShardID
	ToShard   ShardID
	Resources []ResourceID
	Payload   []byte
}
