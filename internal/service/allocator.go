package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"sheetvend-api/internal/errs"
	"sheetvend-api/internal/model"
	"sheetvend-api/pkg/uid"

	"go.uber.org/zap"
)

const (
	// MaxQuantity bounds the rows (and so the grid writes) of one request.
	MaxQuantity = 100

	// ConsumedMarker is written to the status column of a granted row.
	ConsumedMarker = "used"

	attributionTimeLayout = "2006-01-02 15:04:05"
)

// Dispenser allocates inventory rows against credits.
type Dispenser interface {
	Allocate(ctx context.Context, regionID string, req model.Requester, quantity int) (*model.AllocationResult, error)
}

// Allocator grants the lowest available rows of a region and charges one
// credit per row actually granted.
//
// Between the scan and the marker writes another process may consume the
// same rows; nothing in the grid can prevent that. Wrap the Allocator in a
// SerializedAllocator to rule it out between callers sharing a lock.
type Allocator struct {
	ledger     *CreditLedger
	scanner    *Scanner
	enforceBan bool
	now        func() time.Time
	log        *zap.Logger
}

// AllocatorOption configures an Allocator.
type AllocatorOption func(*Allocator)

// WithBanEnforcement rejects banned users before any I/O.
func WithBanEnforcement(enforce bool) AllocatorOption {
	return func(a *Allocator) {
		a.enforceBan = enforce
	}
}

// WithAllocatorClock overrides the time source for attribution tags.
func WithAllocatorClock(now func() time.Time) AllocatorOption {
	return func(a *Allocator) {
		a.now = now
	}
}

// NewAllocator creates an allocation engine.
func NewAllocator(ledger *CreditLedger, scanner *Scanner, log *zap.Logger, opts ...AllocatorOption) *Allocator {
	a := &Allocator{
		ledger:  ledger,
		scanner: scanner,
		now:     time.Now,
		log:     log,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Allocate grants up to quantity rows of the region to req.
//
// Validation and credit failures happen before any grid I/O. A shortage
// grants what is there; the result's Shortfall reports the difference.
// A row whose status write fails is left out of the grant and the charge.
// If the ledger flush fails after the charge, the result is returned together
// with an error wrapping errs.ErrPersistence.
func (a *Allocator) Allocate(ctx context.Context, regionID string, req model.Requester, quantity int) (*model.AllocationResult, error) {
	if quantity < 1 || quantity > MaxQuantity {
		return nil, fmt.Errorf("%w: %d not in [1,%d]", errs.ErrInvalidQuantity, quantity, MaxQuantity)
	}

	region, err := a.scanner.Region(regionID)
	if err != nil {
		return nil, err
	}

	if a.enforceBan {
		if acc, ok := a.ledger.Account(req.UserID); ok && acc.IsBanned {
			return nil, fmt.Errorf("%w: %d", errs.ErrBanned, req.UserID)
		}
	}

	balance, err := a.ledger.Balance(ctx, req.UserID)
	if err != nil {
		if !errors.Is(err, errs.ErrPersistence) {
			return nil, err
		}
		a.log.Warn("new account not persisted", zap.Int64("user_id", req.UserID), zap.Error(err))
	}
	if balance < int64(quantity) {
		return nil, fmt.Errorf("%w: balance %d, need %d", errs.ErrInsufficientCredits, balance, quantity)
	}

	rows, err := a.scanner.FindAvailable(ctx, region.ID, quantity)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: region %s", errs.ErrPoolExhausted, region.ID)
	}

	now := a.now()
	result := &model.AllocationResult{
		ID:          uid.NewOrdered(),
		Region:      region.ID,
		Granted:     make([]model.InventoryRow, 0, len(rows)),
		Requested:   quantity,
		AllocatedAt: now,
	}

	tag := AttributionTag(req, now)
	marker := StatusMarker(region, tag)

	for _, row := range rows {
		if err := a.scanner.writeCell(ctx, row.Position, region.StatusColumn, marker); err != nil {
			a.log.Warn("status write failed, row not granted",
				zap.String("allocation_id", result.ID),
				zap.String("region", region.ID),
				zap.Int("position", row.Position),
				zap.Error(err))
			result.Failed = append(result.Failed, row.Position)
			continue
		}
		if region.HasAttribution() {
			if err := a.scanner.writeCell(ctx, row.Position, region.AttributionColumn, tag); err != nil {
				a.log.Warn("attribution write failed",
					zap.String("allocation_id", result.ID),
					zap.Int("position", row.Position),
					zap.Error(err))
			}
		}
		row.StatusMarker = marker
		result.Granted = append(result.Granted, row)
	}

	if len(result.Granted) == 0 {
		return nil, fmt.Errorf("%w: no status marker could be written in region %s", errs.ErrStoreUnavailable, region.ID)
	}

	charged, err := a.ledger.DeductCredits(ctx, req.UserID, int64(len(result.Granted)))
	if !charged {
		// Only reachable if the balance dropped since the check above.
		a.log.Error("granted rows left uncharged",
			zap.String("allocation_id", result.ID),
			zap.Int64("user_id", req.UserID),
			zap.Int("rows", len(result.Granted)))
	}
	if acc, ok := a.ledger.Account(req.UserID); ok {
		result.Balance = acc.Credits
	}

	a.log.Info("allocation complete",
		zap.String("allocation_id", result.ID),
		zap.String("region", region.ID),
		zap.Int64("user_id", req.UserID),
		zap.Int("requested", quantity),
		zap.Int("granted", len(result.Granted)),
		zap.Int("failed", len(result.Failed)))

	return result, err
}

// AttributionTag records who consumed a row and when, e.g.
// "42 (@alice) - Alice - 2026-01-02 15:04:05".
func AttributionTag(req model.Requester, at time.Time) string {
	tag := strconv.FormatInt(req.UserID, 10)
	if req.Username != "" {
		tag += " (@" + req.Username + ")"
	}
	if req.FirstName != "" {
		tag += " - " + req.FirstName
	}
	return tag + " - " + at.Format(attributionTimeLayout)
}

// StatusMarker is the status cell text. Regions without an attribution
// column carry the tag in the status cell itself.
func StatusMarker(region model.Region, tag string) string {
	if region.HasAttribution() {
		return ConsumedMarker
	}
	return ConsumedMarker + " - " + tag
}

// Ensure Allocator implements Dispenser
var _ Dispenser = (*Allocator)(nil)
