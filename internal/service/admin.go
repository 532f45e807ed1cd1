package service

import (
	"context"
	"errors"
	"fmt"

	"sheetvend-api/internal/errs"
	"sheetvend-api/internal/model"
	"sheetvend-api/internal/notify"

	"go.uber.org/zap"
)

// AdminService gates ledger and inventory administration on a fixed set of
// admin user ids.
type AdminService struct {
	admins      map[int64]struct{}
	ledger      *CreditLedger
	scanner     *Scanner
	stats       *StatsAggregator
	broadcaster *Broadcaster
	sender      notify.Sender
	log         *zap.Logger
}

// AdminDeps groups AdminService collaborators. Sender may be nil.
type AdminDeps struct {
	AdminIDs    []int64
	Ledger      *CreditLedger
	Scanner     *Scanner
	Stats       *StatsAggregator
	Broadcaster *Broadcaster
	Sender      notify.Sender
}

// NewAdminService creates an admin service.
func NewAdminService(deps AdminDeps, log *zap.Logger) *AdminService {
	admins := make(map[int64]struct{}, len(deps.AdminIDs))
	for _, id := range deps.AdminIDs {
		admins[id] = struct{}{}
	}
	return &AdminService{
		admins:      admins,
		ledger:      deps.Ledger,
		scanner:     deps.Scanner,
		stats:       deps.Stats,
		broadcaster: deps.Broadcaster,
		sender:      deps.Sender,
		log:         log,
	}
}

// IsAdmin reports whether userID may run admin operations.
func (s *AdminService) IsAdmin(userID int64) bool {
	_, ok := s.admins[userID]
	return ok
}

func (s *AdminService) authorize(adminID int64) error {
	if !s.IsAdmin(adminID) {
		return fmt.Errorf("%w: user %d is not an admin", errs.ErrForbidden, adminID)
	}
	return nil
}

// notify tells a user about a change to their account. Delivery failures are
// logged and reported as false.
func (s *AdminService) notify(ctx context.Context, userID int64, text string) bool {
	if s.sender == nil {
		return false
	}
	if err := s.sender.Send(ctx, userID, text); err != nil {
		s.log.Warn("user notification failed", zap.Int64("user_id", userID), zap.Error(err))
		return false
	}
	return true
}

// AddCredits grants a positive amount to target and notifies them.
// A ledger flush failure is returned alongside the change.
func (s *AdminService) AddCredits(ctx context.Context, adminID, targetID, amount int64) (model.CreditChange, error) {
	if err := s.authorize(adminID); err != nil {
		return model.CreditChange{}, err
	}
	if amount <= 0 {
		return model.CreditChange{}, fmt.Errorf("%w: %d", errs.ErrInvalidAmount, amount)
	}

	balance, err := s.ledger.AddCredits(ctx, targetID, amount)
	if err != nil && !errors.Is(err, errs.ErrPersistence) {
		return model.CreditChange{}, err
	}

	change := model.CreditChange{
		UserID:   targetID,
		Previous: balance - amount,
		Balance:  balance,
	}
	change.Notified = s.notify(ctx, targetID,
		fmt.Sprintf("💰 *%d credits were added to your account.*\nBalance: %d credits", amount, balance))

	s.log.Info("admin added credits",
		zap.Int64("admin_id", adminID),
		zap.Int64("user_id", targetID),
		zap.Int64("amount", amount),
		zap.Int64("balance", balance))
	return change, err
}

// ResetCredits zeroes an existing user's balance and notifies them.
func (s *AdminService) ResetCredits(ctx context.Context, adminID, targetID int64) (model.CreditChange, error) {
	if err := s.authorize(adminID); err != nil {
		return model.CreditChange{}, err
	}

	acc, ok := s.ledger.Account(targetID)
	if !ok {
		return model.CreditChange{}, fmt.Errorf("%w: user %d", errs.ErrNotFound, targetID)
	}

	change := model.CreditChange{UserID: targetID, Previous: acc.Credits}
	if acc.Credits == 0 {
		return change, nil
	}

	err := s.ledger.SetCredits(ctx, targetID, 0)
	if err != nil && !errors.Is(err, errs.ErrPersistence) {
		return model.CreditChange{}, err
	}
	change.Notified = s.notify(ctx, targetID, "⚠️ *Your credits were reset by an administrator.*\nBalance: 0 credits")

	s.log.Info("admin reset credits",
		zap.Int64("admin_id", adminID),
		zap.Int64("user_id", targetID),
		zap.Int64("previous", acc.Credits))
	return change, err
}

// ResetAll zeroes every positive balance.
func (s *AdminService) ResetAll(ctx context.Context, adminID int64) (model.BulkResult, error) {
	if err := s.authorize(adminID); err != nil {
		return model.BulkResult{}, err
	}
	res, err := s.ledger.ResetAll(ctx)
	s.log.Info("admin reset all credits",
		zap.Int64("admin_id", adminID),
		zap.Int("users", res.Affected),
		zap.Int64("credits", res.Credits))
	return res, err
}

// GrantAll adds a positive amount to every known account.
func (s *AdminService) GrantAll(ctx context.Context, adminID, amount int64) (model.BulkResult, error) {
	if err := s.authorize(adminID); err != nil {
		return model.BulkResult{}, err
	}
	if amount <= 0 {
		return model.BulkResult{}, fmt.Errorf("%w: %d", errs.ErrInvalidAmount, amount)
	}
	res, err := s.ledger.GrantAll(ctx, amount)
	s.log.Info("admin granted credits to all",
		zap.Int64("admin_id", adminID),
		zap.Int("users", res.Affected),
		zap.Int64("amount", amount))
	return res, err
}

// Users lists every account.
func (s *AdminService) Users(adminID int64) ([]model.UserAccount, error) {
	if err := s.authorize(adminID); err != nil {
		return nil, err
	}
	return s.ledger.Accounts(), nil
}

// SetBanned sets or clears the ban flag of target.
func (s *AdminService) SetBanned(ctx context.Context, adminID, targetID int64, banned bool) error {
	if err := s.authorize(adminID); err != nil {
		return err
	}
	err := s.ledger.SetBanned(ctx, targetID, banned)
	s.log.Info("admin changed ban flag",
		zap.Int64("admin_id", adminID),
		zap.Int64("user_id", targetID),
		zap.Bool("banned", banned))
	return err
}

// Overview combines ledger stats with inventory stats.
func (s *AdminService) Overview(ctx context.Context, adminID int64) (model.Overview, error) {
	if err := s.authorize(adminID); err != nil {
		return model.Overview{}, err
	}

	inv, err := s.stats.CombinedStats(ctx)
	if err != nil {
		return model.Overview{}, err
	}

	ov := model.Overview{
		Users:     s.ledger.Stats(),
		Inventory: inv,
	}
	if inv.Total.Total > 0 {
		ov.UsagePct = float64(inv.Total.Used) / float64(inv.Total.Total) * 100
	}
	return ov, nil
}

// AuditRows pages through a region's raw rows, malformed ones included.
func (s *AdminService) AuditRows(ctx context.Context, adminID int64, regionID string, offset, limit int) (model.AuditPage, error) {
	if err := s.authorize(adminID); err != nil {
		return model.AuditPage{}, err
	}

	rows, err := s.scanner.Scan(ctx, regionID)
	if err != nil {
		return model.AuditPage{}, err
	}

	offset = min(max(offset, 0), len(rows))
	end := len(rows)
	if limit > 0 {
		end = min(offset+limit, len(rows))
	}

	page := model.AuditPage{
		Region: regionID,
		Total:  len(rows),
		Offset: offset,
		Rows:   make([]model.AuditRow, 0, end-offset),
	}
	for _, row := range rows[offset:end] {
		page.Rows = append(page.Rows, model.AuditRow{InventoryRow: row, State: row.State()})
	}
	return page, nil
}

// Broadcast sends text to every known user.
func (s *AdminService) Broadcast(ctx context.Context, adminID int64, text string) (model.BroadcastReport, error) {
	if err := s.authorize(adminID); err != nil {
		return model.BroadcastReport{}, err
	}
	if text == "" {
		return model.BroadcastReport{}, errs.ErrEmptyMessage
	}
	report, err := s.broadcaster.Broadcast(ctx, "📢 *Message from the administrators:*\n\n"+text)
	s.log.Info("admin broadcast",
		zap.Int64("admin_id", adminID),
		zap.Int("sent", report.Sent),
		zap.Int("failed", report.Failed))
	return report, err
}
