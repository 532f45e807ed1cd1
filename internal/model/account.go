package model

import "time"

// UserAccount is a ledger record. The JSON shape is the durable file format.
type UserAccount struct {
	ID             int64     `json:"-"`
	Credits        int64     `json:"credits"`
	TotalPurchases int64     `json:"total_purchases"`
	JoinDate       time.Time `json:"join_date"`
	LastActivity   time.Time `json:"last_activity"`
	Username       string    `json:"username"`
	FirstName      string    `json:"first_name"`
	IsBanned       bool      `json:"is_banned"`
}

// LedgerStats aggregates every account of the ledger.
type LedgerStats struct {
	TotalUsers     int   `json:"total_users"`
	TotalCredits   int64 `json:"total_credits"`
	TotalPurchases int64 `json:"total_purchases"`
	BannedUsers    int   `json:"banned_users"`
	ActiveUsers    int   `json:"active_users"`
}

// BulkResult reports a ledger-wide credit operation.
type BulkResult struct {
	Affected int   `json:"affected"`
	Credits  int64 `json:"credits"`
}

// BroadcastReport reports a fan-out send.
type BroadcastReport struct {
	Total  int `json:"total"`
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// Overview is the admin dashboard view.
type Overview struct {
	Users     LedgerStats   `json:"users"`
	Inventory CombinedStats `json:"inventory"`
	UsagePct  float64       `json:"usage_percentage"`
}

// CreditChange reports an admin change to one balance.
type CreditChange struct {
	UserID   int64 `json:"user_id"`
	Previous int64 `json:"previous"`
	Balance  int64 `json:"balance"`
	Notified bool  `json:"notified"`
}
