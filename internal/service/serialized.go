package service

import (
	"context"
	"time"

	"sheetvend-api/internal/lock"
	"sheetvend-api/internal/model"

	"go.uber.org/zap"
)

// allocationLockKey is shared by every region: the ledger is shared too, so
// one worker at a time keeps balance checks and charges consistent.
const allocationLockKey = "allocate"

// GridWriteBudget is the time allowed per grid call when sizing the
// allocation lock lease.
const GridWriteBudget = time.Second

// AllocationLockTTL raises configured to cover the largest allocation: three
// column reads plus a status and an attribution write per row. The lease must
// outlive the allocation it guards.
func AllocationLockTTL(configured time.Duration) time.Duration {
	floor := time.Duration(3+2*MaxQuantity) * GridWriteBudget
	if configured < floor {
		return floor
	}
	return configured
}

// SerializedAllocator runs allocations one at a time across every process
// sharing its Locker.
type SerializedAllocator struct {
	next    Dispenser
	locker  lock.Locker
	timeout time.Duration
	log     *zap.Logger
}

// NewSerializedAllocator wraps next. timeout bounds the wait for the lock.
func NewSerializedAllocator(next Dispenser, locker lock.Locker, timeout time.Duration, log *zap.Logger) *SerializedAllocator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SerializedAllocator{
		next:    next,
		locker:  locker,
		timeout: timeout,
		log:     log,
	}
}

// Allocate waits for the allocation lock, then delegates.
func (s *SerializedAllocator) Allocate(ctx context.Context, regionID string, req model.Requester, quantity int) (*model.AllocationResult, error) {
	waitCtx, cancel := context.WithTimeout(ctx, s.timeout)
	release, err := s.locker.Acquire(waitCtx, allocationLockKey)
	cancel()
	if err != nil {
		s.log.Warn("allocation lock not acquired", zap.String("region", regionID), zap.Error(err))
		return nil, err
	}
	defer release()

	return s.next.Allocate(ctx, regionID, req, quantity)
}

// Ensure SerializedAllocator implements Dispenser
var _ Dispenser = (*SerializedAllocator)(nil)
