package crossshard

import (
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/common"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/kerrors"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/rlpx"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/storage/database"
)

// Storage is the coordinator's durable log: one KvStore multiplexing
// transaction/lock/prepared records under key prefixes, the same way the
// teacher's RocksDB column families namespace them over one DB handle.
type Storage struct {
	kv database.KvStore
}

// NewStorage wraps kv as coordinator storage.
func NewStorage(kv database.KvStore) *Storage {
	return &Storage{kv: kv}
}

type rlpVote struct {
	Shard uint32
	Vote  uint8
}

type rlpTxState struct {
	TxID      []byte
	Phase     uint8
	FromShard uint32
	ToShard   uint32
	Resources [][]byte
	Votes     []rlpVote
	Payload   []byte
	CreatedAt int64
}

func txIDBytes(id TxID) []byte {
	h := common.Hash(id)
	return h.Bytes()
}

func bytesToTxID(b []byte) TxID {
	return TxID(common.BytesToHash(b))
}

func toRLPTxState(s *CoordinatorTxState) rlpTxState {
	r := rlpTxState{
		TxID:      txIDBytes(s.TxID),
		Phase:     uint8(s.Phase),
		FromShard: uint32(s.FromShard),
		ToShard:   uint32(s.ToShard),
		Payload:   s.Payload,
		CreatedAt: s.CreatedAt,
	}
	for _, res := range s.Resources {
		r.Resources = append(r.Resources, []byte(res))
	}
	for shard, vote := range s.Votes {
		r.Votes = append(r.Votes, rlpVote{Shard: uint32(shard), Vote: uint8(vote)})
	}
	return r
}

func fromRLPTxState(r rlpTxState) *CoordinatorTxState {
	s := &CoordinatorTxState{
		TxID:      bytesToTxID(r.TxID),
		Phase:     Phase(r.Phase),
		FromShard: ShardID(r.FromShard),
		ToShard:   ShardID(r.ToShard),
		Payload:   r.Payload,
		CreatedAt: r.CreatedAt,
		Votes:     make(map[ShardID]Vote),
	}
	for _, res := range r.Resources {
		s.Resources = append(s.Resources, ResourceID(res))
	}
	for _, v := range r.Votes {
		s.Votes[ShardID(v.Shard)] = Vote(v.Vote)
	}
	return s
}

// SaveTxState persists a CoordinatorTxState, overwriting any prior record
// for the same TxID. Every phase transition goes through this call before
// being observed externally.
func (s *Storage) SaveTxState(state *CoordinatorTxState) error {
	enc, err := rlpx.Encode(toRLPTxState(state))
	if err != nil {
		return kerrors.Wrap(kerrors.PersistFault, "tx_state_encode", err)
	}
	if err := s.kv.Put(database.CoordinatorTxKey(txIDBytes(state.TxID)), enc); err != nil {
		return kerrors.Wrap(kerrors.PersistFault, "tx_state_put", err)
	}
	return nil
}

// LoadTxState returns the persisted state for id, or (nil, false).
func (s *Storage) LoadTxState(id TxID) (*CoordinatorTxState, bool, error) {
	v, err := s.kv.Get(database.CoordinatorTxKey(txIDBytes(id)))
	if err == database.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, kerrors.Wrap(kerrors.PersistFault, "tx_state_get", err)
	}
	var r rlpTxState
	if err := rlpx.Decode(v, &r); err != nil {
		return nil, false, kerrors.Wrap(kerrors.PersistFault, "tx_state_decode", err)
	}
	return fromRLPTxState(r), true, nil
}

// DeleteTxState removes a transaction's record once every participant has
// ACKed (garbage collection).
func (s *Storage) DeleteTxState(id TxID) error {
	if err := s.kv.Delete(database.CoordinatorTxKey(txIDBytes(id))); err != nil {
		return kerrors.Wrap(kerrors.PersistFault, "tx_state_delete", err)
	}
	return nil
}

// LoadPendingTransactions scans every persisted CoordinatorTxState and
// returns those still restartable: every Prepare-phase entry, and every
// Commit/Abort-phase entry that is not yet fully acknowledged — mirroring
// coordinator_storage.rs's load_pending_transactions filter.
func (s *Storage) LoadPendingTransactions(acked map[TxID]map[ShardID]bool) ([]*CoordinatorTxState, error) {
	it := s.kv.NewIteratorWithPrefix(database.CoordinatorTxKey(nil))
	defer it.Release()

	var out []*CoordinatorTxState
	for it.Next() {
		var r rlpTxState
		if err := rlpx.Decode(it.Value(), &r); err != nil {
			return nil, kerrors.Wrap(kerrors.PersistFault, "tx_state_decode", err)
		}
		state := fromRLPTxState(r)
		if state.Phase != PhaseCommit && state.Phase != PhaseAbort {
			out = append(out, state)
			continue
		}
		if !state.AllAcked(acked[state.TxID]) {
			out = append(out, state)
		}
	}
	if err := it.Error(); err != nil {
		return nil, kerrors.Wrap(kerrors.PersistFault, "tx_state_scan", err)
	}
	return out, nil
}

// SaveLock persists a resource lock, keyed by resource id.
func (s *Storage) SaveLock(lock *ResourceLock) error {
	type rlpLock struct {
		HolderTxID            []byte
		Mode                  uint8
		AcquiredAtUnixNano    int64
		LeaseDeadlineUnixNano int64
	}
	enc, err := rlpx.Encode(rlpLock{
		HolderTxID:            txIDBytes(lock.HolderTxID),
		Mode:                  uint8(lock.Mode),
		AcquiredAtUnixNano:    lock.AcquiredAtUnixNano,
		LeaseDeadlineUnixNano: lock.LeaseDeadlineUnixNano,
	})
	if err != nil {
		return kerrors.Wrap(kerrors.PersistFault, "lock_encode", err)
	}
	if err := s.kv.Put(database.CoordinatorLockKey([]byte(lock.ResourceID)), enc); err != nil {
		return kerrors.Wrap(kerrors.PersistFault, "lock_put", err)
	}
	return nil
}

// LoadLock returns the persisted lock for resourceID, or (nil, false).
func (s *Storage) LoadLock(resourceID ResourceID) (*ResourceLock, bool, error) {
	v, err := s.kv.Get(database.CoordinatorLockKey([]byte(resourceID)))
	if err == database.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, kerrors.Wrap(kerrors.PersistFault, "lock_get", err)
	}
	type rlpLock struct {
		HolderTxID            []byte
		Mode                  uint8
		AcquiredAtUnixNano    int64
		LeaseDeadlineUnixNano int64
	}
	var r rlpLock
	if err := rlpx.Decode(v, &r); err != nil {
		return nil, false, kerrors.Wrap(kerrors.PersistFault, "lock_decode", err)
	}
	return &ResourceLock{
		ResourceID:            resourceID,
		HolderTxID:            bytesToTxID(r.HolderTxID),
		Mode:                  LockMode(r.Mode),
		AcquiredAtUnixNano:    r.AcquiredAtUnixNano,
		LeaseDeadlineUnixNano: r.LeaseDeadlineUnixNano,
	}, true, nil
}

// DeleteLock releases a resource lock record.
func (s *Storage) DeleteLock(resourceID ResourceID) error {
	if err := s.kv.Delete(database.CoordinatorLockKey([]byte(resourceID))); err != nil {
		return kerrors.Wrap(kerrors.PersistFault, "lock_delete", err)
	}
	return nil
}

// SavePrepared persists a participant's Prepared record.
func (s *Storage) SavePrepared(rec *PreparedRecord) error {
	type rlpPrepared struct {
		FromShard uint32
		ToShard   uint32
		Resources [][]byte
		Payload   []byte
	}
	r := rlpPrepared{FromShard: uint32(rec.FromShard), ToShard: uint32(rec.ToShard), Payload: rec.Payload}
	for _, res := range rec.Resources {
		r.Resources = append(r.Resources, []byte(res))
	}
	enc, err := rlpx.Encode(r)
	if err != nil {
		return kerrors.Wrap(kerrors.PersistFault, "prepared_encode", err)
	}
	if err := s.kv.Put(database.CoordinatorPreparedKey(txIDBytes(rec.TxID)), enc); err != nil {
		return kerrors.Wrap(kerrors.PersistFault, "prepared_put", err)
	}
	return nil
}

// LoadPrepared returns the Prepared record for id, or (nil, false).
func (s *Storage) LoadPrepared(id TxID) (*PreparedRecord, bool, error) {
	v, err := s.kv.Get(database.CoordinatorPreparedKey(txIDBytes(id)))
	if err == database.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, kerrors.Wrap(kerrors.PersistFault, "prepared_get", err)
	}
	type rlpPrepared struct {
		FromShard uint32
		ToShard   uint32
		Resources [][]byte
		Payload   []byte
	}
	var r rlpPrepared
	if err := rlpx.Decode(v, &r); err != nil {
		return nil, false, kerrors.Wrap(kerrors.PersistFault, "prepared_decode", err)
	}
	rec := &PreparedRecord{TxID: id, FromShard: ShardID(r.FromShard), ToShard: ShardID(r.ToShard), Payload: r.Payload}
	for _, res := range r.Resources {
		rec.Resources = append(rec.Resources, ResourceID(res))
	}
	return rec, true, nil
}

// scanPrepared returns every persisted Prepared record, used by the
// participant-side lease sweep and by startup recovery.
func (s *Storage) scanPrepared() ([]*PreparedRecord, error) {
	it := s.kv.NewIteratorWithPrefix(database.CoordinatorPreparedKey(nil))
	defer it.Release()

	type rlpPrepared struct {
		FromShard uint32
		ToShard   uint32
		Resources [][]byte
		Payload   []byte
	}
	var out []*PreparedRecord
	for it.Next() {
		var r rlpPrepared
		if err := rlpx.Decode(it.Value(), &r); err != nil {
			return nil, kerrors.Wrap(kerrors.PersistFault, "prepared_decode", err)
		}
		key := it.Key()
		id := bytesToTxID(key[len(database.CoordinatorPreparedKey(nil)):])
		rec := &PreparedRecord{TxID: id, FromShard: ShardID(r.FromShard), ToShard: ShardID(r.ToShard), Payload: r.Payload}
		for _, res := range r.Resources {
			rec.Resources = append(rec.Resources, ResourceID(res))
		}
		out = append(out, rec)
	}
	if err := it.Error(); err != nil {
		return nil, kerrors.Wrap(kerrors.PersistFault, "prepared_scan", err)
	}
	return out, nil
}

// DeletePrepared removes a participant's Prepared record, on COMMIT or ABORT.
func (s *Storage) DeletePrepared(id TxID) error {
	if err := s.kv.Delete(database.CoordinatorPreparedKey(txIDBytes(id))); err != nil {
		return kerrors.Wrap(kerrors.PersistFault, "prepared_delete", err)
	}
	return nil
}

