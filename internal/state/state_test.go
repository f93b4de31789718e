package state

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/common"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/storage/database"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/txtypes"
)

func newTestStore(t *testing.T) *StateStore {
	t.Helper()
	kv, err := database.OpenLevelDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	st, err := New(kv, common.Hash{})
	require.NoError(t, err)
	return st
}

func TestGetAccountMissingReturnsNotFound(t *testing.T) {
	st := newTestStore(t)
	_, ok, err := st.GetAccount(common.Address{0x01})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPutAccountThenGetRoundTrips(t *testing.T) {
	st := newTestStore(t)
	addr := common.Address{0x01}
	acc := &txtypes.Account{Balance: uint256.NewInt(500), Nonce: 3}
	require.NoError(t, st.PutAccount(addr, acc))

	got, ok, err := st.GetAccount(addr)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(3), got.Nonce)
	assert.Equal(t, uint256.NewInt(500), got.Balance)
}

func TestRollbackSnapshotUndoesPutAccount(t *testing.T) {
	st := newTestStore(t)
	addr := common.Address{0x01}
	require.NoError(t, st.PutAccount(addr, &txtypes.Account{Balance: uint256.NewInt(100), Nonce: 0}))
	rootBefore := st.StateRoot()

	snap := st.BeginSnapshot()
	require.NoError(t, st.PutAccount(addr, &txtypes.Account{Balance: uint256.NewInt(999), Nonce: 1}))
	got, ok, err := st.GetAccount(addr)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1), got.Nonce)

	st.RollbackSnapshot(snap)

	got, ok, err = st.GetAccount(addr)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(0), got.Nonce)
	assert.Equal(t, uint256.NewInt(100), got.Balance)
	assert.Equal(t, rootBefore, st.StateRoot(), "rollback must restore the exact pre-snapshot root")
}

func TestRollbackSnapshotUndoesAccountCreation(t *testing.T) {
	st := newTestStore(t)
	addr := common.Address{0x02}
	rootBefore := st.StateRoot()

	snap := st.BeginSnapshot()
	require.NoError(t, st.PutAccount(addr, &txtypes.Account{Balance: uint256.NewInt(1), Nonce: 0}))
	st.RollbackSnapshot(snap)

	_, ok, err := st.GetAccount(addr)
	require.NoError(t, err)
	assert.False(t, ok, "an account created after the snapshot must not survive rollback")
	assert.Equal(t, rootBefore, st.StateRoot())
}

func TestRollbackSnapshotUndoesSetHeight(t *testing.T) {
	st := newTestStore(t)
	require.Equal(t, uint64(0), st.Height())

	snap := st.BeginSnapshot()
	st.SetHeight(7)
	require.Equal(t, uint64(7), st.Height())

	st.RollbackSnapshot(snap)
	assert.Equal(t, uint64(0), st.Height())
}

func TestCommitSnapshotIsANoOpThatKeepsMutations(t *testing.T) {
	st := newTestStore(t)
	addr := common.Address{0x03}

	snap := st.BeginSnapshot()
	require.NoError(t, st.PutAccount(addr, &txtypes.Account{Balance: uint256.NewInt(42), Nonce: 0}))
	st.CommitSnapshot(snap)

	got, ok, err := st.GetAccount(addr)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint256.NewInt(42), got.Balance)
}

func TestStateRootDeterministicRegardlessOfAccountWriteOrder(t *testing.T) {
	addrA := common.Address{0xAA}
	addrB := common.Address{0xBB}
	accA := &txtypes.Account{Balance: uint256.NewInt(10), Nonce: 1}
	accB := &txtypes.Account{Balance: uint256.NewInt(20), Nonce: 2}

	first := newTestStore(t)
	require.NoError(t, first.PutAccount(addrA, accA))
	require.NoError(t, first.PutAccount(addrB, accB))

	second := newTestStore(t)
	require.NoError(t, second.PutAccount(addrB, accB))
	require.NoError(t, second.PutAccount(addrA, accA))

	assert.Equal(t, first.StateRoot(), second.StateRoot())
}

func TestDeleteAccountWithStorageRootIsRejected(t *testing.T) {
	st := newTestStore(t)
	addr := common.Address{0x04}
	root := common.Hash{0x01}
	require.NoError(t, st.PutAccount(addr, &txtypes.Account{
		Balance:     uint256.NewInt(0),
		Kind:        txtypes.AccountKindEvm,
		StorageRoot: &root,
	}))

	err := st.DeleteAccount(addr)
	require.Error(t, err)

	_, ok, err := st.GetAccount(addr)
	require.NoError(t, err)
	assert.True(t, ok, "rejected deletion must leave the account in place")
}

func TestCommitPersistsAcrossStoreReopen(t *testing.T) {
	dir := t.TempDir()
	kv, err := database.OpenLevelDB(dir)
	require.NoError(t, err)

	st, err := New(kv, common.Hash{})
	require.NoError(t, err)
	addr := common.Address{0x05}
	require.NoError(t, st.PutAccount(addr, &txtypes.Account{Balance: uint256.NewInt(77), Nonce: 9}))
	root, err := st.Commit()
	require.NoError(t, err)
	require.NoError(t, kv.Close())

	kv2, err := database.OpenLevelDB(dir)
	require.NoError(t, err)
	t.Cleanup(func() { kv2.Close() })
	reopened, err := New(kv2, root)
	require.NoError(t, err)

	got, ok, err := reopened.GetAccount(addr)
	require.NoError(t, err)
	require.True(t, ok, "account must be reachable from the committed root after reopening the store")
	assert.Equal(t, uint64(9), got.Nonce)
}

func TestPutBlockThenGetByHashAndHeight(t *testing.T) {
	st := newTestStore(t)
	block := &txtypes.Block{Header: txtypes.BlockHeader{Height: 1}}
	require.NoError(t, st.PutBlock(block))

	byHash, ok, err := st.GetBlockByHash(block.Hash())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(1), byHash.Header.Height)

	byHeight, ok, err := st.GetBlockByHeight(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, block.Hash(), byHeight.Hash())
}

func TestLatestBlockTracksHeight(t *testing.T) {
	st := newTestStore(t)
	block := &txtypes.Block{Header: txtypes.BlockHeader{Height: 1}}
	require.NoError(t, st.PutBlock(block))
	st.SetHeight(1)

	latest, ok, err := st.LatestBlock()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, block.Hash(), latest.Hash())
}
