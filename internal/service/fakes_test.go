package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"sheetvend-api/internal/model"
	"sheetvend-api/internal/repository"

	"go.uber.org/zap"
)

var errFake = errors.New("fake backend down")

type cell struct{ row, col int }

type fakeGrid struct {
	mu      sync.Mutex
	cols    map[int][]string
	readErr error
	failAt  map[cell]bool
	writes  []cell
}

var _ repository.GridStore = (*fakeGrid)(nil)

func newFakeGrid(cols map[int][]string) *fakeGrid {
	if cols == nil {
		cols = map[int][]string{}
	}
	return &fakeGrid{cols: cols, failAt: map[cell]bool{}}
}

func (g *fakeGrid) ReadColumn(_ context.Context, column int) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.readErr != nil {
		return nil, g.readErr
	}
	return append([]string(nil), g.cols[column]...), nil
}

func (g *fakeGrid) WriteCell(_ context.Context, row, column int, value string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failAt[cell{row, column}] {
		return errFake
	}
	col := g.cols[column]
	for len(col) < row {
		col = append(col, "")
	}
	col[row-1] = value
	g.cols[column] = col
	g.writes = append(g.writes, cell{row, column})
	return nil
}

func (g *fakeGrid) Close() error { return nil }

func (g *fakeGrid) get(row, column int) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	col := g.cols[column]
	if row-1 < len(col) {
		return col[row-1]
	}
	return ""
}

func (g *fakeGrid) writeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.writes)
}

type fakeLedgerStore struct {
	mu      sync.Mutex
	initial map[int64]*model.UserAccount
	saved   map[int64]model.UserAccount
	saves   int
	saveErr error
}

var _ repository.LedgerStore = (*fakeLedgerStore)(nil)

func (s *fakeLedgerStore) Load(context.Context) (map[int64]*model.UserAccount, error) {
	out := make(map[int64]*model.UserAccount, len(s.initial))
	for id, acc := range s.initial {
		cpy := *acc
		out[id] = &cpy
	}
	return out, nil
}

func (s *fakeLedgerStore) Save(_ context.Context, accounts map[int64]*model.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.saved = make(map[int64]model.UserAccount, len(accounts))
	for id, acc := range accounts {
		s.saved[id] = *acc
	}
	return nil
}

func (s *fakeLedgerStore) Close() error { return nil }

func (s *fakeLedgerStore) setSaveErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

func (s *fakeLedgerStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

type sent struct {
	to   int64
	text string
}

type fakeSender struct {
	mu     sync.Mutex
	failTo map[int64]bool
	sent   []sent
}

func (f *fakeSender) Send(_ context.Context, recipientID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTo[recipientID] {
		return errFake
	}
	f.sent = append(f.sent, sent{to: recipientID, text: text})
	return nil
}

var fixedNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

// testRegions mirrors the default layout: accounts with an attribution
// column, emails without.
var testRegions = []model.Region{
	{ID: "accounts", IdentifierColumn: 1, SecretColumn: 2, StatusColumn: 3, AttributionColumn: 4},
	{ID: "emails", IdentifierColumn: 6, SecretColumn: 7, StatusColumn: 8},
}

func newTestLedger(store *fakeLedgerStore) *CreditLedger {
	l, err := NewCreditLedger(context.Background(), store, zap.NewNop(), WithLedgerClock(fixedClock))
	if err != nil {
		panic(err)
	}
	return l
}

func zapNop() *zap.Logger { return zap.NewNop() }
