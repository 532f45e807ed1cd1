package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"sheetvend-api/internal/model"

	"go.uber.org/zap"
)

// FileLedgerStore keeps the ledger in one indented UTF-8 JSON file, rewritten
// in full on every save.
type FileLedgerStore struct {
	path string
	mu   sync.Mutex
	log  *zap.Logger
}

// NewFileLedgerStore creates a file-backed ledger store, creating the parent
// directory if needed.
func NewFileLedgerStore(path string, log *zap.Logger) (*FileLedgerStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}
	log.Info("file ledger store initialized", zap.String("path", path))
	return &FileLedgerStore{path: path, log: log}, nil
}

// Load reads the ledger file. A missing file is an empty ledger.
func (s *FileLedgerStore) Load(_ context.Context) (map[int64]*model.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[int64]*model.UserAccount{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}

	raw := make(map[string]*fileRecord)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse ledger: %w", err)
		}
	}

	accounts := make(map[int64]*model.UserAccount, len(raw))
	for key, rec := range raw {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse ledger key %q: %w", key, err)
		}
		if rec == nil {
			s.log.Warn("skipping empty ledger entry", zap.Int64("user_id", id))
			continue
		}
		accounts[id] = rec.account(id)
	}
	return accounts, nil
}

// fileRecord is one ledger entry as read from disk. Unknown keys are ignored.
type fileRecord struct {
	Credits        int64    `json:"credits"`
	TotalPurchases int64    `json:"total_purchases"`
	JoinDate       fileTime `json:"join_date"`
	LastActivity   fileTime `json:"last_activity"`
	Username       string   `json:"username"`
	FirstName      string   `json:"first_name"`
	IsBanned       bool     `json:"is_banned"`
}

func (r *fileRecord) account(id int64) *model.UserAccount {
	return &model.UserAccount{
		ID:             id,
		Credits:        r.Credits,
		TotalPurchases: r.TotalPurchases,
		JoinDate:       time.Time(r.JoinDate),
		LastActivity:   time.Time(r.LastActivity),
		Username:       r.Username,
		FirstName:      r.FirstName,
		IsBanned:       r.IsBanned,
	}
}

// naiveTimeLayout is ISO-8601 without a zone offset. Fractional seconds are
// accepted after the seconds field.
const naiveTimeLayout = "2006-01-02T15:04:05"

// fileTime accepts RFC 3339 and offset-less ISO-8601 timestamps. Offset-less
// values are read in the local zone.
type fileTime time.Time

func (t *fileTime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if s == "" {
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		*t = fileTime(parsed)
		return nil
	}
	parsed, err := time.ParseInLocation(naiveTimeLayout, s, time.Local)
	if err != nil {
		return fmt.Errorf("unrecognized timestamp %q: %w", s, err)
	}
	*t = fileTime(parsed)
	return nil
}

// Save writes the snapshot to a temp file and renames it over the ledger.
func (s *FileLedgerStore) Save(_ context.Context, accounts map[int64]*model.UserAccount) error {
	raw := make(map[string]*model.UserAccount, len(accounts))
	for id, acc := range accounts {
		raw[strconv.FormatInt(id, 10)] = acc
	}

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode ledger: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace ledger: %w", err)
	}
	return nil
}

// Close is a no-op for the file store.
func (s *FileLedgerStore) Close() error {
	return nil
}

// Ensure FileLedgerStore implements LedgerStore
var _ LedgerStore = (*FileLedgerStore)(nil)
