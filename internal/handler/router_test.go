package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/seojun-park/minibank-go/internal/domain"
	"github.com/seojun-park/minibank-go/internal/handler"
	"github.com/seojun-park/minibank-go/internal/infra/cache"
	"github.com/seojun-park/minibank-go/internal/infra/memstore"
	"github.com/seojun-park/minibank-go/internal/infra/observability"
	"github.com/seojun-park/minibank-go/internal/service"

	"go.uber.org/zap"
)

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	store := memstore.NewSeeded()
	accountsCache := cache.New[[]domain.Account](time.Minute)
	metrics := observability.NewMetrics()
	logger := zap.NewNop()

	bankSvc := service.NewBankingService(store, accountsCache, metrics, logger)
	transferSvc := service.NewTransferService(store, accountsCache, metrics, logger)
	authSvc := service.NewAuthService(store, "test-secret", 15*time.Minute, 24*time.Hour, "123456", logger)

	return handler.NewRouter(bankSvc, transferSvc, authSvc, metrics, logger)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestOperationalEndpoints(t *testing.T) {
	router := newRouter(t)

	for _, path := range []string{"/healthz", "/readyz", "/metrics", "/ping", "/api/health"} {
		rec := doJSON(t, router, http.MethodGet, path, nil, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestListAccounts(t *testing.T) {
	router := newRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/accounts", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp domain.APIResponse[[]domain.Account]
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || len(resp.Data) != 2 {
		t.Errorf("expected 2 accounts in envelope, got %+v", resp)
	}
	if resp.Data[0].Balance != 1_500_000 {
		t.Errorf("expected balance 1500000, got %d", resp.Data[0].Balance)
	}
}

func TestGetAccount_NotFound(t *testing.T) {
	router := newRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/accounts/42", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestTransferFlow(t *testing.T) {
	router := newRouter(t)

	req := domain.TransferRequest{
		FromAccountID:   "1",
		ToAccountNumber: "9876543210987654",
		ToUserName:      "이은행",
		Amount:          50_000,
		IdempotencyKey:  "http-k1",
	}

	// First submission succeeds.
	rec := doJSON(t, router, http.MethodPost, "/api/transfer", req, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp domain.TransferResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "success" || resp.IdempotencyKey != "http-k1" {
		t.Errorf("unexpected response: %+v", resp)
	}

	// Same key again: 409 with the contract error string.
	rec = doJSON(t, router, http.MethodPost, "/api/transfer", req, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	var errBody struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &errBody); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if errBody.Error != "Duplicate transaction request" {
		t.Errorf("unexpected error message: %q", errBody.Error)
	}

	// Balance reflects a single debit.
	accRec := doJSON(t, router, http.MethodGet, "/api/accounts/1", nil, nil)
	var accResp domain.APIResponse[domain.Account]
	if err := json.Unmarshal(accRec.Body.Bytes(), &accResp); err != nil {
		t.Fatalf("decode account: %v", err)
	}
	if accResp.Data.Balance != 1_450_000 {
		t.Errorf("expected balance 1450000, got %d", accResp.Data.Balance)
	}
}

func TestTransfer_ErrorContract(t *testing.T) {
	router := newRouter(t)

	base := domain.TransferRequest{
		FromAccountID:   "1",
		ToAccountNumber: "9876543210987654",
		ToUserName:      "이은행",
		Amount:          50_000,
	}

	t.Run("unknown account", func(t *testing.T) {
		req := base
		req.FromAccountID = "999"
		req.IdempotencyKey = "err-k1"
		rec := doJSON(t, router, http.MethodPost, "/api/transfer", req, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
		if !bytes.Contains(rec.Body.Bytes(), []byte("From account not found")) {
			t.Errorf("unexpected body: %s", rec.Body.String())
		}
	})

	t.Run("insufficient balance", func(t *testing.T) {
		req := base
		req.Amount = 999_999_999
		req.IdempotencyKey = "err-k2"
		rec := doJSON(t, router, http.MethodPost, "/api/transfer", req, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if !bytes.Contains(rec.Body.Bytes(), []byte("Insufficient balance")) {
			t.Errorf("unexpected body: %s", rec.Body.String())
		}
	})

	t.Run("missing idempotency key", func(t *testing.T) {
		req := base
		rec := doJSON(t, router, http.MethodPost, "/api/transfer", req, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("key from header", func(t *testing.T) {
		req := base
		rec := doJSON(t, router, http.MethodPost, "/api/transfer", req, map[string]string{
			"Idempotency-Key": "header-k1",
		})
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200 with header key, got %d: %s", rec.Code, rec.Body.String())
		}
	})
}

func TestListTransactions_Pagination(t *testing.T) {
	router := newRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/transactions?page=1&limit=1", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp domain.PaginatedResponse[domain.Transaction]
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data) != 1 {
		t.Errorf("expected 1 transaction, got %d", len(resp.Data))
	}
	if resp.Pagination.Total != 2 || resp.Pagination.TotalPages != 2 {
		t.Errorf("unexpected pagination: %+v", resp.Pagination)
	}
}

func TestAuthFlow(t *testing.T) {
	router := newRouter(t)

	// Login with the demo credentials.
	rec := doJSON(t, router, http.MethodPost, "/api/auth/login", domain.LoginRequest{
		Email:    "toss@example.com",
		Password: "password123",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var login domain.LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &login); err != nil {
		t.Fatalf("decode login: %v", err)
	}

	// Profile requires the bearer token.
	rec = doJSON(t, router, http.MethodGet, "/api/user/profile", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/user/profile", nil, map[string]string{
		"Authorization": "Bearer " + login.AccessToken,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rec.Code)
	}
	var profile domain.APIResponse[domain.User]
	if err := json.Unmarshal(rec.Body.Bytes(), &profile); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if profile.Data.Email != "toss@example.com" {
		t.Errorf("unexpected profile: %+v", profile.Data)
	}

	// Wrong password is rejected.
	rec = doJSON(t, router, http.MethodPost, "/api/auth/login", domain.LoginRequest{
		Email:    "toss@example.com",
		Password: "nope",
	}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestTwoFactorEndpoint(t *testing.T) {
	router := newRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/auth/2fa", domain.TwoFactorRequest{Code: "123456"}, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/auth/2fa", domain.TwoFactorRequest{Code: "999999"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("Invalid 2FA code")) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestNotificationEndpoints(t *testing.T) {
	router := newRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/notifications", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var list domain.APIResponse[[]domain.Notification]
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Data) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(list.Data))
	}

	rec = doJSON(t, router, http.MethodPatch, "/api/notifications/1/read", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var marked domain.APIResponse[domain.Notification]
	if err := json.Unmarshal(rec.Body.Bytes(), &marked); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !marked.Data.IsRead {
		t.Error("expected notification marked read")
	}

	rec = doJSON(t, router, http.MethodPatch, "/api/notifications/404/read", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestDashboard(t *testing.T) {
	router := newRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/dashboard", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp domain.APIResponse[domain.Dashboard]
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data.Accounts) != 2 || len(resp.Data.Transactions) != 2 || len(resp.Data.Notifications) != 2 {
		t.Errorf("unexpected dashboard: %+v", resp.Data)
	}
}

func TestDevAddBalance(t *testing.T) {
	router := newRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/dev/add-balance", domain.DevAddBalanceRequest{
		AccountID: "1",
		Amount:    100_000,
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp domain.DevAddBalanceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.NewBalance != 1_600_000 {
		t.Errorf("expected 1600000, got %d", resp.NewBalance)
	}
}

func TestTransferMetricsSnapshot(t *testing.T) {
	router := newRouter(t)

	// One success, one duplicate.
	req := domain.TransferRequest{
		FromAccountID:   "1",
		ToAccountNumber: "9876543210987654",
		ToUserName:      "이은행",
		Amount:          1_000,
		IdempotencyKey:  "metrics-k1",
	}
	doJSON(t, router, http.MethodPost, "/api/transfer", req, nil)
	doJSON(t, router, http.MethodPost, "/api/transfer", req, nil)

	rec := doJSON(t, router, http.MethodGet, "/api/metrics/transfers", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var snapshot domain.TransferMetrics
	if err := json.Unmarshal(rec.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snapshot.TotalTransfers != 2 || snapshot.SuccessfulTransfers != 1 || snapshot.DuplicateRejections != 1 {
		t.Errorf("unexpected snapshot: %+v", snapshot)
	}
}
