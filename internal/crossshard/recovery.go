package crossshard

import "time"

// Recover runs the startup scan described by the coordinator's recovery
// discipline: stale Prepare-phase entries are aborted, undecided Commit/
// Abort-phase entries are idempotently re-broadcast, and this node's own
// Prepared records are re-checked against lease expiry (a participant that
// crashed mid-PREPARE has no coordinator state to recover — it simply waits
// for the coordinator to make contact again, or for its own lease to
// expire).
func (c *Coordinator) Recover() error {
	now := time.Now()

	// No in-memory ACK tracking survives a restart, so every Commit/Abort
	// entry is conservatively treated as unacknowledged: re-broadcasting an
	// already-acked decision is a safe no-op for an idle participant.
	pending, err := c.storage.LoadPendingTransactions(map[TxID]map[ShardID]bool{})
	if err != nil {
		return err
	}

	for _, txState := range pending {
		switch txState.Phase {
		case PhasePrepare:
			if now.Sub(time.Unix(0, txState.CreatedAt)) > c.cfg.VoteTimeout {
				logger.Warn("recovery: aborting stale prepare", "tx", txState.TxID)
				if err := c.decide(txState, false); err != nil {
					return err
				}
				continue
			}
			c.mu.Lock()
			c.pending[txState.TxID] = &voteTracker{
				vote:     VotePending,
				acked:    make(map[ShardID]bool),
				deadline: time.Unix(0, txState.CreatedAt).Add(c.cfg.VoteTimeout),
			}
			c.mu.Unlock()
			msg := NewMessage(MsgPrepare, txState.TxID, txState.FromShard, txState.ToShard, PhasePrepare, txState.Payload, c.keys).
				WithResources(txState.Resources)
			if err := c.transport.Send(txState.ToShard, msg); err != nil {
				logger.Warn("recovery: prepare resend failed", "tx", txState.TxID, "err", err)
			}

		case PhaseCommit, PhaseAbort:
			logger.Info("recovery: re-broadcasting undecided transition", "tx", txState.TxID, "phase", txState.Phase)
			msgType := MsgCommit
			if txState.Phase == PhaseAbort {
				msgType = MsgAbort
			}
			msg := NewMessage(msgType, txState.TxID, txState.FromShard, txState.ToShard, txState.Phase, txState.Payload, c.keys)
			if err := c.transport.Send(txState.ToShard, msg); err != nil {
				logger.Warn("recovery: decision resend failed", "tx", txState.TxID, "err", err)
			}
		}
	}

	c.sweepLeaseExpiry(now)
	return nil
}
