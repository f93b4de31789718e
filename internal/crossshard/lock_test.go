package crossshard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLockManager(t *testing.T) *lockManager {
	return newLockManager(newTestStorage(t))
}

func TestLockManagerExclusiveExcludesExclusive(t *testing.T) {
	lm := newTestLockManager(t)
	now := time.Now()

	ok, err := lm.tryAcquire([]ResourceID{"acct:1"}, TxID{0x01}, LockExclusive, now, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = lm.tryAcquire([]ResourceID{"acct:1"}, TxID{0x02}, LockExclusive, now, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLockManagerSharedCompatibleWithShared(t *testing.T) {
	lm := newTestLockManager(t)
	now := time.Now()

	ok, err := lm.tryAcquire([]ResourceID{"acct:1"}, TxID{0x01}, LockShared, now, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = lm.tryAcquire([]ResourceID{"acct:1"}, TxID{0x02}, LockShared, now, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLockManagerSharedExcludesExclusiveAndViceVersa(t *testing.T) {
	lm := newTestLockManager(t)
	now := time.Now()

	ok, err := lm.tryAcquire([]ResourceID{"acct:1"}, TxID{0x01}, LockShared, now, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = lm.tryAcquire([]ResourceID{"acct:1"}, TxID{0x02}, LockExclusive, now, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLockManagerExpiredLeaseAllowsReacquisition(t *testing.T) {
	lm := newTestLockManager(t)
	now := time.Now()

	ok, err := lm.tryAcquire([]ResourceID{"acct:1"}, TxID{0x01}, LockExclusive, now, time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	later := now.Add(time.Second)
	ok, err = lm.tryAcquire([]ResourceID{"acct:1"}, TxID{0x02}, LockExclusive, later, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLockManagerSameHolderReacquiresOwnLock(t *testing.T) {
	lm := newTestLockManager(t)
	now := time.Now()
	holder := TxID{0x01}

	ok, err := lm.tryAcquire([]ResourceID{"acct:1"}, holder, LockExclusive, now, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = lm.tryAcquire([]ResourceID{"acct:1"}, holder, LockExclusive, now, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

// TestLockManagerAllOrNothingRollsBackOnPartialFailure verifies that when one
// resource in a multi-resource request is already exclusively held by
// another transaction, none of the resources end up locked by the requester.
func TestLockManagerAllOrNothingRollsBackOnPartialFailure(t *testing.T) {
	lm := newTestLockManager(t)
	now := time.Now()

	ok, err := lm.tryAcquire([]ResourceID{"acct:2"}, TxID{0x01}, LockExclusive, now, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = lm.tryAcquire([]ResourceID{"acct:1", "acct:2", "acct:3"}, TxID{0x02}, LockExclusive, now, time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	_, held, err := lm.storage.LoadLock("acct:1")
	require.NoError(t, err)
	assert.False(t, held)

	_, held, err = lm.storage.LoadLock("acct:3")
	require.NoError(t, err)
	assert.False(t, held)

	lock2, held, err := lm.storage.LoadLock("acct:2")
	require.NoError(t, err)
	require.True(t, held)
	assert.Equal(t, TxID{0x01}, lock2.HolderTxID)
}

func TestLockManagerReleaseFreesResources(t *testing.T) {
	lm := newTestLockManager(t)
	now := time.Now()

	ok, err := lm.tryAcquire([]ResourceID{"acct:1", "acct:2"}, TxID{0x01}, LockExclusive, now, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, lm.release([]ResourceID{"acct:1", "acct:2"}))

	ok, err = lm.tryAcquire([]ResourceID{"acct:1", "acct:2"}, TxID{0x02}, LockExclusive, now, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
