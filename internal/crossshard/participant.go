package crossshard

import (
	"time"

	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/crypto"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/execution"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/kerrors"
)

// HandlePrepare is the participant-side reaction to an incoming PREPARE: try
// to acquire every requested lock, and either persist a Prepared record and
// reply YES, or release whatever was acquired and reply NO. Acquisition
// never waits for a conflicting holder — "participants that cannot acquire
// all requested locks vote NO rather than wait".
func (c *Coordinator) HandlePrepare(msg *Message) (*Message, error) {
	if err := c.verifyFrom(msg); err != nil {
		return nil, err
	}
	if msg.Type != MsgPrepare {
		return nil, kerrors.New(kerrors.InputInvalid, "expected_prepare_message")
	}
	if crypto.Keccak256(msg.Payload) != msg.PayloadDigest {
		return nil, kerrors.New(kerrors.InputInvalid, "prepare_payload_digest_mismatch")
	}
	payload := msg.Payload

	now := time.Now()
	ok, err := c.locks.tryAcquire(msg.Resources, msg.TxID, LockExclusive, now, c.cfg.LeaseDuration)
	if err != nil {
		return nil, err
	}
	if !ok {
		reply := NewMessage(MsgVoteNo, msg.TxID, msg.ToShard, msg.FromShard, PhasePrepare, payload, c.keys).
			WithReason("lock_conflict")
		return reply, nil
	}

	rec := &PreparedRecord{TxID: msg.TxID, FromShard: msg.ToShard, ToShard: msg.FromShard, Resources: msg.Resources, Payload: payload}
	if err := c.storage.SavePrepared(rec); err != nil {
		c.locks.release(msg.Resources)
		return nil, err
	}
	reply := NewMessage(MsgVoteYes, msg.TxID, msg.ToShard, msg.FromShard, PhasePrepare, payload, c.keys)
	return reply, nil
}

// HandleCommit applies a participant's Prepared payload via the local
// execution engine, releases its locks, and replies ACK. A storage-level
// fault from ApplyPayload is fatal and propagated rather than acked, since
// "the apply is always gated on a persisted Commit" — an unacked Commit is
// safely re-deliverable by the coordinator's recovery sweep.
func (c *Coordinator) HandleCommit(msg *Message) (*Message, error) {
	if err := c.verifyFrom(msg); err != nil {
		return nil, err
	}

	rec, ok, err := c.storage.LoadPrepared(msg.TxID)
	if err != nil {
		return nil, err
	}
	if ok {
		if _, err := execution.ApplyPayload(rec.Payload, c.st); err != nil && kerrors.IsFatal(err) {
			return nil, err
		}
		if err := c.locks.release(rec.Resources); err != nil {
			return nil, err
		}
		if err := c.storage.DeletePrepared(msg.TxID); err != nil {
			return nil, err
		}
	}
	return NewMessage(MsgAck, msg.TxID, msg.ToShard, msg.FromShard, PhaseCommit, nil, c.keys), nil
}

// HandleAbort releases a participant's locks and discards its Prepared
// record without applying anything, then replies ACK.
func (c *Coordinator) HandleAbort(msg *Message) (*Message, error) {
	if err := c.verifyFrom(msg); err != nil {
		return nil, err
	}

	rec, ok, err := c.storage.LoadPrepared(msg.TxID)
	if err != nil {
		return nil, err
	}
	if ok {
		if err := c.locks.release(rec.Resources); err != nil {
			return nil, err
		}
		if err := c.storage.DeletePrepared(msg.TxID); err != nil {
			return nil, err
		}
	}
	return NewMessage(MsgAck, msg.TxID, msg.ToShard, msg.FromShard, PhaseAbort, nil, c.keys), nil
}

// sweepLeaseExpiry is the participant-side half of the lease discipline:
// any Prepared record whose lock has passed its lease_deadline without a
// COMMIT or ABORT from the coordinator is unilaterally voted NO via
// UNPREPARE, and its lock released, so a stalled coordinator never holds a
// participant's resources hostage.
func (c *Coordinator) sweepLeaseExpiry(now time.Time) {
	prepared, err := c.storage.scanPrepared()
	if err != nil {
		logger.Error("prepared scan failed", "err", err)
		return
	}
	for _, rec := range prepared {
		expired := false
		for _, res := range rec.Resources {
			lock, ok, err := c.storage.LoadLock(res)
			if err != nil {
				continue
			}
			if ok && lock.HolderTxID == rec.TxID && lock.Expired(now) {
				expired = true
				break
			}
		}
		if !expired {
			continue
		}
		logger.Warn("prepared lease expired without coordinator decision, unpreparing", "tx", rec.TxID)
		if err := c.locks.release(rec.Resources); err != nil {
			logger.Error("unprepare release failed", "tx", rec.TxID, "err", err)
			continue
		}
		if err := c.storage.DeletePrepared(rec.TxID); err != nil {
			logger.Error("unprepare delete failed", "tx", rec.TxID, "err", err)
			continue
		}
		msg := NewMessage(MsgUnprepare, rec.TxID, rec.FromShard, rec.ToShard, PhasePrepare, rec.Payload, c.keys)
		if err := c.transport.Send(rec.ToShard, msg); err != nil {
			logger.Warn("unprepare send failed, coordinator's own timeout sweep will still abort", "tx", rec.TxID, "err", err)
		}
	}
}
