package crossshard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/storage/database"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	kv, err := database.OpenLevelDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	return NewStorage(kv)
}

func TestTxStateRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	txID := TxID{0x01, 0x02}
	state := &CoordinatorTxState{
		TxID:      txID,
		Phase:     PhasePrepare,
		FromShard: 1,
		ToShard:   2,
		Resources: []ResourceID{"acct:1", "acct:2"},
		Votes:     map[ShardID]Vote{2: VotePending},
		Payload:   []byte("payload"),
		CreatedAt: time.Now().UnixNano(),
	}
	require.NoError(t, s.SaveTxState(state))

	got, ok, err := s.LoadTxState(txID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, state.Phase, got.Phase)
	assert.Equal(t, state.FromShard, got.FromShard)
	assert.Equal(t, state.ToShard, got.ToShard)
	assert.Equal(t, state.Resources, got.Resources)
	assert.Equal(t, state.Payload, got.Payload)
	assert.Equal(t, state.Votes, got.Votes)

	require.NoError(t, s.DeleteTxState(txID))
	_, ok, err = s.LoadTxState(txID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadPendingTransactionsFiltersAckedCommits(t *testing.T) {
	s := newTestStorage(t)

	pending := &CoordinatorTxState{TxID: TxID{0x01}, Phase: PhasePrepare, ToShard: 2, Votes: map[ShardID]Vote{2: VotePending}}
	require.NoError(t, s.SaveTxState(pending))

	unacked := &CoordinatorTxState{TxID: TxID{0x02}, Phase: PhaseCommit, ToShard: 3, Votes: map[ShardID]Vote{3: VoteYes}}
	require.NoError(t, s.SaveTxState(unacked))

	acked := &CoordinatorTxState{TxID: TxID{0x03}, Phase: PhaseCommit, ToShard: 4, Votes: map[ShardID]Vote{4: VoteYes}}
	require.NoError(t, s.SaveTxState(acked))

	ackedMap := map[TxID]map[ShardID]bool{
		{0x03}: {4: true},
	}
	out, err := s.LoadPendingTransactions(ackedMap)
	require.NoError(t, err)

	ids := make(map[TxID]bool)
	for _, st := range out {
		ids[st.TxID] = true
	}
	assert.True(t, ids[TxID{0x01}])
	assert.True(t, ids[TxID{0x02}])
	assert.False(t, ids[TxID{0x03}])
}

func TestPreparedRecordRoundTripAndScan(t *testing.T) {
	s := newTestStorage(t)
	rec := &PreparedRecord{TxID: TxID{0x09}, FromShard: 2, ToShard: 1, Resources: []ResourceID{"x", "y"}, Payload: []byte("p")}
	require.NoError(t, s.SavePrepared(rec))

	got, ok, err := s.LoadPrepared(rec.TxID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec.FromShard, got.FromShard)
	assert.Equal(t, rec.ToShard, got.ToShard)
	assert.Equal(t, rec.Resources, got.Resources)
	assert.Equal(t, rec.Payload, got.Payload)

	all, err := s.scanPrepared()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, rec.TxID, all[0].TxID)

	require.NoError(t, s.DeletePrepared(rec.TxID))
	all, err = s.scanPrepared()
	require.NoError(t, err)
	assert.Len(t, all, 0)
}

func TestLockRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	lock := &ResourceLock{
		ResourceID:            "acct:1",
		HolderTxID:            TxID{0x05},
		Mode:                  LockExclusive,
		AcquiredAtUnixNano:    100,
		LeaseDeadlineUnixNano: 200,
	}
	require.NoError(t, s.SaveLock(lock))

	got, ok, err := s.LoadLock("acct:1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, lock.HolderTxID, got.HolderTxID)
	assert.Equal(t, lock.Mode, got.Mode)
	assert.Equal(t, lock.LeaseDeadlineUnixNano, got.LeaseDeadlineUnixNano)

	require.NoError(t, s.DeleteLock("acct:1"))
	_, ok, err = s.LoadLock("acct:1")
	require.NoError(t, err)
	assert.False(t, ok)
}
