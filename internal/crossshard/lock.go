package crossshard

import "time"

// lockManager tracks resource locks backed by Storage, enforcing the
// mutual-exclusion invariant: no two Exclusive holders, Shared and
// Exclusive are mutually exclusive. Acquisition never waits — a conflicting
// request fails immediately so the caller can vote NO rather than block
// (spec's "no transitive lock acquisition inside prepare").
type lockManager struct {
	storage *Storage
}

func newLockManager(storage *Storage) *lockManager {
	return &lockManager{storage: storage}
}

// tryAcquire attempts to lock every resource in resources for holder under
// mode, as one all-or-nothing step; on partial failure whatever was
// acquired in this call is released before returning false.
func (lm *lockManager) tryAcquire(resources []ResourceID, holder TxID, mode LockMode, now time.Time, lease time.Duration) (bool, error) {
	acquired := make([]ResourceID, 0, len(resources))
	for _, res := range resources {
		ok, err := lm.tryAcquireOne(res, holder, mode, now, lease)
		if err != nil {
			lm.releaseAll(acquired)
			return false, err
		}
		if !ok {
			lm.releaseAll(acquired)
			return false, nil
		}
		acquired = append(acquired, res)
	}
	return true, nil
}

func (lm *lockManager) tryAcquireOne(res ResourceID, holder TxID, mode LockMode, now time.Time, lease time.Duration) (bool, error) {
	existing, ok, err := lm.storage.LoadLock(res)
	if err != nil {
		return false, err
	}
	if ok && !existing.Expired(now) && existing.HolderTxID != holder {
		if existing.Mode == LockExclusive || mode == LockExclusive {
			return false, nil
		}
	}
	lock := &ResourceLock{
		ResourceID:            res,
		HolderTxID:            holder,
		Mode:                  mode,
		AcquiredAtUnixNano:    now.UnixNano(),
		LeaseDeadlineUnixNano: now.Add(lease).UnixNano(),
	}
	if err := lm.storage.SaveLock(lock); err != nil {
		return false, err
	}
	return true, nil
}

// release drops locks on resources, regardless of holder.
func (lm *lockManager) release(resources []ResourceID) error {
	return lm.releaseAll(resources)
}

func (lm *lockManager) releaseAll(resources []ResourceID) error {
	for _, res := range resources {
		if err := lm.storage.DeleteLock(res); err != nil {
			return err
		}
	}
	return nil
}
