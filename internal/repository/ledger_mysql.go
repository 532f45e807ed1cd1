package repository

import (
	"context"
	"database/sql"
	"fmt"

	"sheetvend-api/internal/model"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

const mysqlLedgerSchema = `CREATE TABLE IF NOT EXISTS ledger_accounts (
	user_id BIGINT PRIMARY KEY,
	credits BIGINT NOT NULL DEFAULT 0,
	total_purchases BIGINT NOT NULL DEFAULT 0,
	join_date DATETIME(6) NOT NULL,
	last_activity DATETIME(6) NOT NULL,
	username VARCHAR(255) NOT NULL DEFAULT '',
	first_name VARCHAR(255) NOT NULL DEFAULT '',
	is_banned TINYINT(1) NOT NULL DEFAULT 0
)`

const mysqlLedgerUpsert = `INSERT INTO ledger_accounts
	(user_id, credits, total_purchases, join_date, last_activity, username, first_name, is_banned)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON DUPLICATE KEY UPDATE
		credits = VALUES(credits),
		total_purchases = VALUES(total_purchases),
		last_activity = VALUES(last_activity),
		username = VALUES(username),
		first_name = VALUES(first_name),
		is_banned = VALUES(is_banned)`

const mysqlLedgerSelect = `SELECT user_id, credits, total_purchases, join_date, last_activity, username, first_name, is_banned FROM ledger_accounts`

// MySQLLedgerStore keeps one row per account in MySQL. Accounts are never
// deleted, so a save upserts every row of the snapshot in one transaction.
type MySQLLedgerStore struct {
	db  *sql.DB
	log *zap.Logger
}

// NewMySQLLedgerStore creates the ledger table if needed.
func NewMySQLLedgerStore(ctx context.Context, db *sql.DB, log *zap.Logger) (*MySQLLedgerStore, error) {
	if _, err := db.ExecContext(ctx, mysqlLedgerSchema); err != nil {
		return nil, fmt.Errorf("failed to create ledger table: %w", err)
	}
	log.Info("mysql ledger store initialized")
	return &MySQLLedgerStore{db: db, log: log}, nil
}

// Load reads every account row.
func (s *MySQLLedgerStore) Load(ctx context.Context) (map[int64]*model.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, mysqlLedgerSelect)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	defer rows.Close()

	accounts := make(map[int64]*model.UserAccount)
	for rows.Next() {
		var acc model.UserAccount
		if err := rows.Scan(
			&acc.ID,
			&acc.Credits,
			&acc.TotalPurchases,
			&acc.JoinDate,
			&acc.LastActivity,
			&acc.Username,
			&acc.FirstName,
			&acc.IsBanned,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ledger row: %w", err)
		}
		accounts[acc.ID] = &acc
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger rows: %w", err)
	}
	return accounts, nil
}

// Save upserts the snapshot.
func (s *MySQLLedgerStore) Save(ctx context.Context, accounts map[int64]*model.UserAccount) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, mysqlLedgerUpsert)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for id, acc := range accounts {
		_, err := stmt.ExecContext(ctx,
			id,
			acc.Credits,
			acc.TotalPurchases,
			acc.JoinDate,
			acc.LastActivity,
			acc.Username,
			acc.FirstName,
			acc.IsBanned,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert account %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *MySQLLedgerStore) Close() error {
	return s.db.Close()
}

// Ensure MySQLLedgerStore implements LedgerStore
var _ LedgerStore = (*MySQLLedgerStore)(nil)
