package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"sheetvend-api/internal/errs"
	"sheetvend-api/internal/model"
	"sheetvend-api/internal/repository"

	"go.uber.org/zap"
)

// CreditLedger owns every UserAccount. Each mutating call flushes the whole
// ledger to its store before returning. A failed flush is reported as
// errs.ErrPersistence and the in-memory change is kept; the ledger stays
// dirty until a later flush succeeds.
type CreditLedger struct {
	mu       sync.Mutex
	store    repository.LedgerStore
	accounts map[int64]*model.UserAccount
	dirty    bool
	now      func() time.Time
	log      *zap.Logger
}

// LedgerOption configures a CreditLedger.
type LedgerOption func(*CreditLedger)

// WithLedgerClock overrides the time source for join and activity stamps.
func WithLedgerClock(now func() time.Time) LedgerOption {
	return func(l *CreditLedger) {
		l.now = now
	}
}

// NewCreditLedger loads the ledger from store.
func NewCreditLedger(ctx context.Context, store repository.LedgerStore, log *zap.Logger, opts ...LedgerOption) (*CreditLedger, error) {
	accounts, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	if accounts == nil {
		accounts = make(map[int64]*model.UserAccount)
	}
	for id, acc := range accounts {
		acc.ID = id
	}

	l := &CreditLedger{
		store:    store,
		accounts: accounts,
		now:      time.Now,
		log:      log,
	}
	for _, opt := range opts {
		opt(l)
	}

	log.Info("credit ledger loaded", zap.Int("accounts", len(accounts)))
	return l, nil
}

// touchLocked returns the account, creating it with a zero balance if absent,
// and refreshes its last activity.
func (l *CreditLedger) touchLocked(userID int64) (acc *model.UserAccount, created bool) {
	now := l.now()
	acc, ok := l.accounts[userID]
	if !ok {
		acc = &model.UserAccount{
			ID:           userID,
			JoinDate:     now,
			LastActivity: now,
		}
		l.accounts[userID] = acc
		created = true
	}
	acc.LastActivity = now
	return acc, created
}

func (l *CreditLedger) flushLocked(ctx context.Context) error {
	if err := l.store.Save(ctx, l.accounts); err != nil {
		l.dirty = true
		l.log.Error("ledger flush failed", zap.Error(err))
		return fmt.Errorf("%w: %v", errs.ErrPersistence, err)
	}
	l.dirty = false
	return nil
}

// Dirty reports whether the last flush failed.
func (l *CreditLedger) Dirty() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dirty
}

// Flush retries a failed flush. It is a no-op on a clean ledger.
func (l *CreditLedger) Flush(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.dirty {
		return nil
	}
	return l.flushLocked(ctx)
}

// Balance returns the user's credits, creating the account on first sight.
func (l *CreditLedger) Balance(ctx context.Context, userID int64) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, created := l.touchLocked(userID)
	if created {
		return acc.Credits, l.flushLocked(ctx)
	}
	return acc.Credits, nil
}

// AddCredits adds amount (which may be negative) and returns the new balance.
func (l *CreditLedger) AddCredits(ctx context.Context, userID, amount int64) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, _ := l.touchLocked(userID)
	acc.Credits += amount
	return acc.Credits, l.flushLocked(ctx)
}

// DeductCredits takes amount only if the balance covers it. A successful
// call counts as one purchase however large amount is.
func (l *CreditLedger) DeductCredits(ctx context.Context, userID, amount int64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, created := l.touchLocked(userID)
	if acc.Credits < amount {
		if created {
			return false, l.flushLocked(ctx)
		}
		return false, nil
	}

	acc.Credits -= amount
	acc.TotalPurchases++
	return true, l.flushLocked(ctx)
}

// SetCredits overwrites the balance.
func (l *CreditLedger) SetCredits(ctx context.Context, userID, amount int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, _ := l.touchLocked(userID)
	acc.Credits = amount
	return l.flushLocked(ctx)
}

// RecordProfile stores non-empty display names and reports whether this is
// the first time the user has been seen.
func (l *CreditLedger) RecordProfile(ctx context.Context, userID int64, username, firstName string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, created := l.touchLocked(userID)
	if username != "" {
		acc.Username = username
	}
	if firstName != "" {
		acc.FirstName = firstName
	}
	return created, l.flushLocked(ctx)
}

// SetBanned sets the ban flag.
func (l *CreditLedger) SetBanned(ctx context.Context, userID int64, banned bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, _ := l.touchLocked(userID)
	acc.IsBanned = banned
	return l.flushLocked(ctx)
}

// ResetAll zeroes every positive balance with a single flush.
func (l *CreditLedger) ResetAll(ctx context.Context) (model.BulkResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var res model.BulkResult
	for _, acc := range l.accounts {
		if acc.Credits > 0 {
			res.Affected++
			res.Credits += acc.Credits
			acc.Credits = 0
		}
	}
	if res.Affected == 0 {
		return res, nil
	}
	return res, l.flushLocked(ctx)
}

// GrantAll adds amount to every known account with a single flush.
func (l *CreditLedger) GrantAll(ctx context.Context, amount int64) (model.BulkResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var res model.BulkResult
	for _, acc := range l.accounts {
		acc.Credits += amount
		res.Affected++
		res.Credits += amount
	}
	if res.Affected == 0 {
		return res, nil
	}
	return res, l.flushLocked(ctx)
}

// Account returns a copy of the account without creating it.
func (l *CreditLedger) Account(userID int64) (model.UserAccount, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, ok := l.accounts[userID]
	if !ok {
		return model.UserAccount{}, false
	}
	return *acc, true
}

// Accounts returns copies of every account ordered by id.
func (l *CreditLedger) Accounts() []model.UserAccount {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]model.UserAccount, 0, len(l.accounts))
	for _, acc := range l.accounts {
		out = append(out, *acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Stats aggregates over every account.
func (l *CreditLedger) Stats() model.LedgerStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	var st model.LedgerStats
	st.TotalUsers = len(l.accounts)
	for _, acc := range l.accounts {
		st.TotalCredits += acc.Credits
		st.TotalPurchases += acc.TotalPurchases
		if acc.IsBanned {
			st.BannedUsers++
		}
	}
	st.ActiveUsers = st.TotalUsers - st.BannedUsers
	return st
}
