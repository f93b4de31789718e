package crossshard

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/config"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/crypto"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/execution"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/kerrors"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/log"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/metrics"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/state"
)

var logger = log.NewModuleLogger(log.ModuleCoordinator)

var (
	initiatedCounter = metrics.NewRegisteredCounter("crossshard/initiated")
	committedCounter = metrics.NewRegisteredCounter("crossshard/committed")
	abortedCounter   = metrics.NewRegisteredCounter("crossshard/aborted")
)

// Transport delivers a signed Message to the given shard. The network layer
// implements this; Coordinator never reasons about delivery guarantees
// itself — message loss manifests here only as a vote timeout.
type Transport interface {
	Send(shard ShardID, msg *Message) error
}

// Coordinator runs both roles of the 2PC protocol on this shard: initiator
// for locally-submitted cross-shard transactions, participant for PREPARE
// requests from peer shards. One Coordinator instance per shard, the way
// one CoordinatorTxState entry exists per in-flight transaction regardless
// of which end of it this node is.
type Coordinator struct {
	cfg       config.CoordinatorConfig
	storage   *Storage
	locks     *lockManager
	keys      *crypto.CoordinatorKeyPair
	peerKeys  map[ShardID][]byte
	transport Transport
	st        *state.StateStore

	mu      sync.Mutex
	pending map[TxID]*voteTracker

	stopCh chan struct{}
	doneCh chan struct{}
}

// voteTracker is the coordinator-side in-memory record of votes collected
// for one transaction, rebuilt from nothing on restart (durability lives in
// CoordinatorTxState; a tracker loss after restart degrades at worst to a
// fresh timeout-driven Abort, never to an incorrectly observed Commit).
type voteTracker struct {
	vote     Vote
	acked    map[ShardID]bool
	deadline time.Time
}

// NewCoordinator constructs a Coordinator. peerKeys maps every participant
// shard this node talks to, to that shard's coordinator public key.
func NewCoordinator(cfg config.CoordinatorConfig, storage *Storage, keys *crypto.CoordinatorKeyPair, peerKeys map[ShardID][]byte, transport Transport, st *state.StateStore) *Coordinator {
	return &Coordinator{
		cfg:       cfg,
		storage:   storage,
		locks:     newLockManager(storage),
		keys:      keys,
		peerKeys:  peerKeys,
		transport: transport,
		st:        st,
		pending:   make(map[TxID]*voteTracker),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start launches the background timeout sweep. Stop blocks until it exits.
func (c *Coordinator) Start() {
	go c.sweepLoop()
}

// Stop shuts down the background sweep.
func (c *Coordinator) Stop() {
	close(c.stopCh)
	<-c.doneCh
}

func newTxID(payload []byte) (TxID, error) {
	var nonce [16]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return TxID{}, kerrors.Wrap(kerrors.StorageFault, "tx_id_entropy", err)
	}
	return TxID(crypto.Keccak256(payload, nonce[:])), nil
}

// Initiate starts a new cross-shard transaction: it persists Prepare phase,
// acquires local locks, and sends PREPARE to the participant shard. Lock
// acquisition failure is reported as LockConflict without ever reaching the
// network, matching "acquire local locks on resources (or fail fast)".
func (c *Coordinator) Initiate(fromShard, toShard ShardID, resources []ResourceID, payload []byte) (TxID, error) {
	txID, err := newTxID(payload)
	if err != nil {
		return TxID{}, err
	}

	now := time.Now()
	ok, err := c.locks.tryAcquire(resources, txID, LockExclusive, now, c.cfg.LeaseDuration)
	if err != nil {
		return TxID{}, err
	}
	if !ok {
		return TxID{}, kerrors.New(kerrors.LockConflict, "cross_shard_local_lock_conflict")
	}

	txState := &CoordinatorTxState{
		TxID:      txID,
		Phase:     PhasePrepare,
		FromShard: fromShard,
		ToShard:   toShard,
		Resources: resources,
		Votes:     map[ShardID]Vote{toShard: VotePending},
		Payload:   payload,
		CreatedAt: now.UnixNano(),
	}
	if err := c.storage.SaveTxState(txState); err != nil {
		c.locks.release(resources)
		return TxID{}, err
	}

	c.mu.Lock()
	c.pending[txID] = &voteTracker{
		vote:     VotePending,
		acked:    make(map[ShardID]bool),
		deadline: now.Add(c.cfg.VoteTimeout),
	}
	c.mu.Unlock()

	msg := NewMessage(MsgPrepare, txID, fromShard, toShard, PhasePrepare, payload, c.keys).WithResources(resources)
	initiatedCounter.Inc(1)
	if err := c.transport.Send(toShard, msg); err != nil {
		logger.Warn("prepare send failed, will retry on recovery sweep", "tx", txID, "err", err)
	}
	return txID, nil
}

// HandleVote processes a VOTE_YES/VOTE_NO reply from a participant. A
// decisive vote (YES from the sole participant, or any NO) triggers an
// immediate phase decision; this coordinator only has one participant per
// transaction (FromShard/ToShard), so YES is always decisive.
func (c *Coordinator) HandleVote(msg *Message) error {
	if err := c.verifyFrom(msg); err != nil {
		return err
	}

	txState, ok, err := c.storage.LoadTxState(msg.TxID)
	if err != nil {
		return err
	}
	if !ok || txState.Phase != PhasePrepare {
		return nil // stale or already-decided vote, ignore
	}

	switch msg.Type {
	case MsgVoteYes:
		return c.decide(txState, true)
	case MsgVoteNo, MsgUnprepare:
		return c.decide(txState, false)
	default:
		return kerrors.New(kerrors.InputInvalid, "unexpected_vote_message_type")
	}
}

// decide persists the Commit/Abort transition, applies the payload locally
// when committing, releases the transaction's locks in either case, and
// broadcasts the decision.
func (c *Coordinator) decide(txState *CoordinatorTxState, commit bool) error {
	if commit {
		txState.Phase = PhaseCommit
		txState.Votes[txState.ToShard] = VoteYes
	} else {
		txState.Phase = PhaseAbort
		txState.Votes[txState.ToShard] = VoteNo
	}
	if err := c.storage.SaveTxState(txState); err != nil {
		return err
	}

	if commit {
		if _, err := execution.ApplyPayload(txState.Payload, c.st); err != nil && kerrors.IsFatal(err) {
			return err
		}
		committedCounter.Inc(1)
	} else {
		abortedCounter.Inc(1)
	}
	if err := c.locks.release(txState.Resources); err != nil {
		return err
	}

	msgType := MsgCommit
	if !commit {
		msgType = MsgAbort
	}
	out := NewMessage(msgType, txState.TxID, txState.FromShard, txState.ToShard, txState.Phase, txState.Payload, c.keys)
	if err := c.transport.Send(txState.ToShard, out); err != nil {
		logger.Warn("decision broadcast failed, recovery sweep will re-send", "tx", txState.TxID, "err", err)
	}
	return nil
}

// HandleAck records a participant's ACK and garbage-collects the
// CoordinatorTxState once every participant has acknowledged.
func (c *Coordinator) HandleAck(msg *Message) error {
	if err := c.verifyFrom(msg); err != nil {
		return err
	}
	txState, ok, err := c.storage.LoadTxState(msg.TxID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	c.mu.Lock()
	tracker := c.pending[msg.TxID]
	if tracker != nil {
		tracker.acked[msg.FromShard] = true
	}
	acked := map[ShardID]bool{msg.FromShard: true}
	if tracker != nil {
		acked = tracker.acked
	}
	c.mu.Unlock()

	if !txState.AllAcked(acked) {
		return nil
	}
	if err := c.storage.DeleteTxState(msg.TxID); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.pending, msg.TxID)
	c.mu.Unlock()
	return nil
}

func (c *Coordinator) verifyFrom(msg *Message) error {
	pub, ok := c.peerKeys[msg.FromShard]
	if !ok {
		return kerrors.New(kerrors.InputInvalid, "unknown_peer_shard")
	}
	return Verify(msg, pub)
}

// sweepLoop periodically aborts Prepare-phase transactions whose vote
// deadline has passed (the coordinator-side half of the recovery sweep;
// the full startup scan lives in recovery.go).
func (c *Coordinator) sweepLoop() {
	defer close(c.doneCh)
	ticker := time.NewTicker(c.cfg.VoteTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			now := time.Now()
			c.sweepOnce(now)
			c.sweepLeaseExpiry(now)
		}
	}
}

func (c *Coordinator) sweepOnce(now time.Time) {
	c.mu.Lock()
	var expired []TxID
	for txID, tracker := range c.pending {
		if now.After(tracker.deadline) {
			expired = append(expired, txID)
		}
	}
	c.mu.Unlock()

	for _, txID := range expired {
		txState, ok, err := c.storage.LoadTxState(txID)
		if err != nil || !ok || txState.Phase != PhasePrepare {
			continue
		}
		logger.Warn("cross-shard vote timeout, aborting", "tx", txID)
		if err := c.decide(txState, false); err != nil {
			logger.Error("timeout abort failed", "tx", txID, "err", err)
		}
	}
}
