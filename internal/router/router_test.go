package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"sheetvend-api/internal/handler"
	"sheetvend-api/internal/lock"
	"sheetvend-api/internal/middleware"
	"sheetvend-api/internal/model"
	"sheetvend-api/internal/repository"
	"sheetvend-api/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testAdminKey = "s3cret"
	testAdminID  = "1000"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    *struct {
		Offset int `json:"offset"`
		Limit  int `json:"limit"`
		Total  int `json:"total"`
	} `json:"meta"`
	Warning string `json:"durability_warning"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newTestRouter(t *testing.T) (*chi.Mux, *repository.SQLGridStore) {
	t.Helper()
	ctx := context.Background()
	log := zap.NewNop()

	grid, err := repository.NewSQLiteGridStore(":memory:", "inventory", log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = grid.Close() })

	for col, values := range map[int][]string{
		1: {"Email", "e1", "e2", "e3"},
		2: {"Password", "p1", "p2", "p3"},
		3: {"Status", "", "", "used"},
		6: {"Email", "m1"},
		7: {"Password", "s1"},
	} {
		for i, v := range values {
			require.NoError(t, grid.WriteCell(ctx, i+1, col, v))
		}
	}

	store, err := repository.NewFileLedgerStore(filepath.Join(t.TempDir(), "users.json"), log)
	require.NoError(t, err)
	ledger, err := service.NewCreditLedger(ctx, store, log)
	require.NoError(t, err)

	regions := []model.Region{
		{ID: "accounts", IdentifierColumn: 1, SecretColumn: 2, StatusColumn: 3, AttributionColumn: 4},
		{ID: "emails", IdentifierColumn: 6, SecretColumn: 7, StatusColumn: 8},
	}
	scanner := service.NewScanner(grid, regions, log)
	stats := service.NewStatsAggregator(scanner)
	allocator := service.NewAllocator(ledger, scanner, log)
	dispenser := service.NewSerializedAllocator(allocator, lock.NewMemory(), time.Second, log)
	admin := service.NewAdminService(service.AdminDeps{
		AdminIDs:    []int64{1000},
		Ledger:      ledger,
		Scanner:     scanner,
		Stats:       stats,
		Broadcaster: service.NewBroadcaster(ledger, nil, log),
	}, log)

	r := New(Config{
		Handler:         handler.New("sheetvend-api", "test", scanner),
		DispenseHandler: handler.NewDispenseHandler(dispenser, stats, log),
		AccountHandler:  handler.NewAccountHandler(ledger),
		AdminHandler:    handler.NewAdminHandler(admin),
		AdminAuth:       middleware.NewAdminAuth(testAdminKey),
		Logger:          log,
	})
	return r, grid
}

func do(t *testing.T, r http.Handler, method, path string, body any, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

var adminHeaders = map[string]string{
	middleware.AdminKeyHeader: testAdminKey,
	middleware.AdminIDHeader:  testAdminID,
}

func TestRouter_Health(t *testing.T) {
	r, _ := newTestRouter(t)

	rec, env := do(t, r, http.MethodGet, "/api/v1/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))

	rec, env = do(t, r, http.MethodGet, "/api/status", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var status handler.StatusResponse
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, "ok", status.Checks.Grid)
}

func TestRouter_AllocationFlow(t *testing.T) {
	r, grid := newTestRouter(t)
	alloc := map[string]any{"user_id": 42, "username": "alice", "first_name": "Alice", "quantity": 5}

	rec, env := do(t, r, http.MethodPost, "/api/v1/regions/accounts/allocate", alloc, nil)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INSUFFICIENT_CREDITS", env.Error.Code)

	rec, env = do(t, r, http.MethodPost, "/api/v1/admin/credits/add",
		map[string]any{"user_id": 42, "amount": 10}, adminHeaders)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var change model.CreditChange
	require.NoError(t, json.Unmarshal(env.Data, &change))
	assert.Equal(t, int64(10), change.Balance)

	rec, env = do(t, r, http.MethodPost, "/api/v1/regions/accounts/allocate", alloc, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res handler.AllocateResponse
	require.NoError(t, json.Unmarshal(env.Data, &res))
	require.Len(t, res.Granted, 2)
	assert.Equal(t, 2, res.Granted[0].Position)
	assert.Equal(t, 3, res.Shortfall)
	assert.True(t, res.Partial)
	assert.Equal(t, int64(8), res.Balance)

	col, err := grid.ReadColumn(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"Status", "used", "used", "used"}, col)

	rec, env = do(t, r, http.MethodPost, "/api/v1/regions/accounts/allocate", alloc, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "POOL_EXHAUSTED", env.Error.Code)

	rec, env = do(t, r, http.MethodGet, "/api/v1/users/42/balance", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var bal handler.BalanceResponse
	require.NoError(t, json.Unmarshal(env.Data, &bal))
	assert.Equal(t, int64(8), bal.Credits)
}

func TestRouter_AllocateValidation(t *testing.T) {
	r, _ := newTestRouter(t)

	tests := []struct {
		name   string
		path   string
		body   any
		status int
		code   string
	}{
		{"zero quantity", "/api/v1/regions/accounts/allocate", map[string]any{"user_id": 1, "quantity": 0}, http.StatusBadRequest, "INVALID_QUANTITY"},
		{"too many", "/api/v1/regions/accounts/allocate", map[string]any{"user_id": 1, "quantity": 101}, http.StatusBadRequest, "INVALID_QUANTITY"},
		{"missing user", "/api/v1/regions/accounts/allocate", map[string]any{"quantity": 1}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown field", "/api/v1/regions/accounts/allocate", map[string]any{"user_id": 1, "qty": 1}, http.StatusBadRequest, "BAD_REQUEST"},
		{"unknown region", "/api/v1/regions/gifts/allocate", map[string]any{"user_id": 1, "quantity": 1}, http.StatusNotFound, "UNKNOWN_REGION"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, r, http.MethodPost, tt.path, tt.body, nil)
			assert.Equal(t, tt.status, rec.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestRouter_Stats(t *testing.T) {
	r, _ := newTestRouter(t)

	rec, env := do(t, r, http.MethodGet, "/api/v1/stats", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var all model.CombinedStats
	require.NoError(t, json.Unmarshal(env.Data, &all))
	assert.Equal(t, model.RegionStats{Region: "total", Available: 3, Used: 1, Total: 4}, all.Total)

	rec, env = do(t, r, http.MethodGet, "/api/v1/regions/emails/stats", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var st model.RegionStats
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, 1, st.Available)
}

func TestRouter_Profile(t *testing.T) {
	r, _ := newTestRouter(t)
	body := map[string]any{"username": "bob", "first_name": "Bob"}

	rec, env := do(t, r, http.MethodPost, "/api/v1/users/7/profile", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var p handler.ProfileResponse
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.True(t, p.FirstContact)

	_, env = do(t, r, http.MethodPost, "/api/v1/users/7/profile", body, nil)
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.False(t, p.FirstContact)

	rec, _ = do(t, r, http.MethodGet, "/api/v1/users/abc/balance", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_AdminAuth(t *testing.T) {
	r, _ := newTestRouter(t)

	rec, _ := do(t, r, http.MethodGet, "/api/v1/admin/users", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = do(t, r, http.MethodGet, "/api/v1/admin/users", nil, map[string]string{
		middleware.AdminKeyHeader: testAdminKey,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env := do(t, r, http.MethodGet, "/api/v1/admin/users", nil, map[string]string{
		middleware.AdminKeyHeader: testAdminKey,
		middleware.AdminIDHeader:  "5",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	rec, _ = do(t, r, http.MethodGet, "/api/v1/admin/users", nil, adminHeaders)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_AdminOperations(t *testing.T) {
	r, _ := newTestRouter(t)

	rec, _ := do(t, r, http.MethodPost, "/api/v1/admin/credits/add", map[string]any{"user_id": 3, "amount": -1}, adminHeaders)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, r, http.MethodPost, "/api/v1/admin/credits/reset", map[string]any{"user_id": 3}, adminHeaders)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, r, http.MethodPost, "/api/v1/admin/credits/add", map[string]any{"user_id": 3, "amount": 4}, adminHeaders)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := do(t, r, http.MethodPost, "/api/v1/admin/credits/grant-all", map[string]any{"amount": 2}, adminHeaders)
	require.Equal(t, http.StatusOK, rec.Code)
	var bulk model.BulkResult
	require.NoError(t, json.Unmarshal(env.Data, &bulk))
	assert.Equal(t, 1, bulk.Affected)

	rec, _ = do(t, r, http.MethodPost, "/api/v1/admin/users/3/ban", nil, adminHeaders)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = do(t, r, http.MethodGet, "/api/v1/admin/overview", nil, adminHeaders)
	require.Equal(t, http.StatusOK, rec.Code)
	var ov model.Overview
	require.NoError(t, json.Unmarshal(env.Data, &ov))
	assert.Equal(t, 1, ov.Users.BannedUsers)
	assert.Equal(t, int64(6), ov.Users.TotalCredits)
	assert.InDelta(t, 25.0, ov.UsagePct, 0.001)

	rec, _ = do(t, r, http.MethodDelete, "/api/v1/admin/users/3/ban", nil, adminHeaders)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = do(t, r, http.MethodPost, "/api/v1/admin/credits/reset-all", nil, adminHeaders)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &bulk))
	assert.Equal(t, model.BulkResult{Affected: 1, Credits: 6}, bulk)

	rec, env = do(t, r, http.MethodGet, "/api/v1/admin/regions/accounts/rows?offset=1&limit=2", nil, adminHeaders)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, env.Meta)
	assert.Equal(t, 3, env.Meta.Total)
	var rows []model.AuditRow
	require.NoError(t, json.Unmarshal(env.Data, &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, model.RowConsumed, rows[1].State)

	rec, _ = do(t, r, http.MethodGet, "/api/v1/admin/regions/accounts/rows?limit=-1", nil, adminHeaders)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = do(t, r, http.MethodPost, "/api/v1/admin/broadcast", map[string]any{"message": "hi"}, adminHeaders)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "SERVICE_UNAVAILABLE", env.Error.Code)
}

func TestRouter_DisabledAdminKey(t *testing.T) {
	r := New(Config{
		AdminHandler: handler.NewAdminHandler(nil),
		AdminAuth:    middleware.NewAdminAuth(""),
	})

	rec, _ := do(t, r, http.MethodGet, "/api/v1/admin/users", nil, adminHeaders)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
