package integration_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/seojun-park/minibank-go/internal/domain"
	"github.com/seojun-park/minibank-go/internal/handler"
	"github.com/seojun-park/minibank-go/internal/infra/cache"
	"github.com/seojun-park/minibank-go/internal/infra/client"
	"github.com/seojun-park/minibank-go/internal/infra/memstore"
	"github.com/seojun-park/minibank-go/internal/infra/observability"
	"github.com/seojun-park/minibank-go/internal/infra/resilience"
	"github.com/seojun-park/minibank-go/internal/service"
	"github.com/seojun-park/minibank-go/internal/wizard"

	"go.uber.org/zap"
)

// newServer starts a real API server over a seeded in-memory store and
// returns it together with HTTP clients pointed at it.
func newServer(t *testing.T) (*httptest.Server, *client.TransferClient, *client.AccountsClient) {
	t.Helper()

	store := memstore.NewSeeded()
	accountsCache := cache.New[[]domain.Account](time.Minute)
	metrics := observability.NewMetrics()
	logger := zap.NewNop()

	bankSvc := service.NewBankingService(store, accountsCache, metrics, logger)
	transferSvc := service.NewTransferService(store, accountsCache, metrics, logger)
	authSvc := service.NewAuthService(store, "integration-secret", 15*time.Minute, 24*time.Hour, "123456", logger)

	srv := httptest.NewServer(handler.NewRouter(bankSvc, transferSvc, authSvc, metrics, logger))
	t.Cleanup(srv.Close)

	httpClient := &http.Client{Timeout: 5 * time.Second}
	cb := resilience.NewCircuitBreaker("integration")
	cfg := resilience.Config{MaxRetries: 1, InitialBackoff: 10 * time.Millisecond, MaxConcurrency: 10}

	return srv,
		client.NewTransferClient(httpClient, srv.URL, cb),
		client.NewAccountsClient(httpClient, srv.URL, cb, cfg)
}

// TestIntegration_WizardFullFlow drives the wizard against a live server:
// load accounts, fill the form, confirm, submit, and verify the balance
// moved exactly once.
func TestIntegration_WizardFullFlow(t *testing.T) {
	_, transferClient, accountsClient := newServer(t)
	ctx := context.Background()

	accounts, err := accountsClient.ListAccounts(ctx)
	if err != nil {
		t.Fatalf("list accounts: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("expected 2 seeded accounts, got %d", len(accounts))
	}

	w := wizard.New(transferClient, accounts, zap.NewNop())

	invalidated := map[string]bool{}
	w.OnInvalidate(func(view string) { invalidated[view] = true })

	w.SetForm(wizard.Form{
		FromAccountID:   "1",
		ToAccountNumber: "9876543210987654",
		ToUserName:      "이은행",
		Amount:          50_000,
	})
	if err := w.Confirm(); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	resp, err := w.Submit(ctx)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if w.State() != wizard.StateSuccess {
		t.Errorf("expected success state, got %s", w.State())
	}
	if resp.Status != "success" || resp.TransactionID == "" {
		t.Errorf("unexpected response: %+v", resp)
	}
	for _, view := range []string{"accounts", "transactions", "notifications"} {
		if !invalidated[view] {
			t.Errorf("expected %s view invalidated", view)
		}
	}

	// A second fetch reflects the debit.
	accounts, err = accountsClient.ListAccounts(ctx)
	if err != nil {
		t.Fatalf("list accounts after transfer: %v", err)
	}
	if accounts[0].Balance != 1_450_000 {
		t.Errorf("expected balance 1450000, got %d", accounts[0].Balance)
	}
}

// TestIntegration_DuplicateSubmission replays the same idempotency key
// over the wire and verifies the server rejects it without a second debit.
func TestIntegration_DuplicateSubmission(t *testing.T) {
	_, transferClient, accountsClient := newServer(t)
	ctx := context.Background()

	req := &domain.TransferRequest{
		FromAccountID:   "1",
		ToAccountNumber: "9876543210987654",
		ToUserName:      "이은행",
		Amount:          50_000,
		IdempotencyKey:  "it-dup-1",
	}

	if _, err := transferClient.SubmitTransfer(ctx, req); err != nil {
		t.Fatalf("first submission: %v", err)
	}

	_, err := transferClient.SubmitTransfer(ctx, req)
	var duplicate *domain.ErrDuplicate
	if !errors.As(err, &duplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	accounts, err := accountsClient.ListAccounts(ctx)
	if err != nil {
		t.Fatalf("list accounts: %v", err)
	}
	if accounts[0].Balance != 1_450_000 {
		t.Errorf("expected single debit, balance %d", accounts[0].Balance)
	}
}

// TestIntegration_WizardErrorStep forces an over-balance rejection through
// the wire and checks the wizard lands on the error step with the
// processor's message, then recovers via Retry.
func TestIntegration_WizardErrorStep(t *testing.T) {
	_, transferClient, _ := newServer(t)
	ctx := context.Background()

	// Stale account snapshot so client-side validation lets the amount through.
	stale := []domain.Account{{ID: "1", AccountNumber: "1234567890123456", Balance: 2_000_000_000}}
	w := wizard.New(transferClient, stale, zap.NewNop())

	w.SetForm(wizard.Form{
		FromAccountID:   "1",
		ToAccountNumber: "9876543210987654",
		ToUserName:      "이은행",
		Amount:          999_999_999,
	})
	if err := w.Confirm(); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	_, err := w.Submit(ctx)
	var insufficient *domain.ErrInsufficientFunds
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if w.State() != wizard.StateError {
		t.Errorf("expected error state, got %s", w.State())
	}
	if w.Message() != "Insufficient balance" {
		t.Errorf("unexpected message: %q", w.Message())
	}

	w.Retry()
	if w.State() != wizard.StateForm {
		t.Errorf("expected form state after retry, got %s", w.State())
	}
	if w.Form().Amount != 999_999_999 {
		t.Error("expected form values preserved after retry")
	}
}

// TestIntegration_UnknownAccountOverWire verifies the 404 contract maps
// back to a typed domain error on the client side.
func TestIntegration_UnknownAccountOverWire(t *testing.T) {
	_, transferClient, _ := newServer(t)

	_, err := transferClient.SubmitTransfer(context.Background(), &domain.TransferRequest{
		FromAccountID:   "999",
		ToAccountNumber: "9876543210987654",
		ToUserName:      "이은행",
		Amount:          1_000,
		IdempotencyKey:  "it-404-1",
	})

	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
