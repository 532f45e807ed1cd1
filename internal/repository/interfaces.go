package repository

import (
	"context"

	"sheetvend-api/internal/model"
)

// GridStore is the shared spreadsheet holding both inventory regions.
// Columns and rows are 1-indexed. Other processes may edit the grid at any
// time, so callers must not cache what they read.
type GridStore interface {
	// ReadColumn returns the column top to bottom. Trailing empty cells may be
	// omitted, so columns of the same grid can have different lengths.
	ReadColumn(ctx context.Context, column int) ([]string, error)

	// WriteCell overwrites a single cell.
	WriteCell(ctx context.Context, row, column int, value string) error

	// Close releases the underlying connection.
	Close() error
}

// LedgerStore persists the whole ledger as a snapshot keyed by user id.
type LedgerStore interface {
	// Load returns every stored account. A store with no data yet returns an empty map.
	Load(ctx context.Context) (map[int64]*model.UserAccount, error)

	// Save replaces the stored snapshot with accounts.
	Save(ctx context.Context, accounts map[int64]*model.UserAccount) error

	// Close releases the underlying resources.
	Close() error
}
