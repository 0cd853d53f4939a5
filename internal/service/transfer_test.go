package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/seojun-park/minibank-go/internal/domain"
	"github.com/seojun-park/minibank-go/internal/infra/cache"
	"github.com/seojun-park/minibank-go/internal/infra/memstore"
	"github.com/seojun-park/minibank-go/internal/infra/observability"
	"github.com/seojun-park/minibank-go/internal/service"

	"go.uber.org/zap"
)

func newTransferService(t *testing.T) (*service.TransferService, *service.BankingService, *memstore.Store) {
	t.Helper()
	store := memstore.NewSeeded()
	accountsCache := cache.New[[]domain.Account](time.Minute)
	metrics := observability.NewMetrics()
	logger := zap.NewNop()
	return service.NewTransferService(store, accountsCache, metrics, logger),
		service.NewBankingService(store, accountsCache, metrics, logger),
		store
}

func validRequest(key string) *domain.TransferRequest {
	return &domain.TransferRequest{
		FromAccountID:   "1",
		ToAccountNumber: "9876543210987654",
		ToUserName:      "이은행",
		Amount:          50_000,
		Description:     "test transfer",
		IdempotencyKey:  key,
	}
}

func TestProcessTransfer_Success(t *testing.T) {
	svc, bankSvc, store := newTransferService(t)
	ctx := context.Background()

	resp, err := svc.ProcessTransfer(ctx, validRequest("k1"))
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if resp.Status != "success" {
		t.Errorf("expected status 'success', got %q", resp.Status)
	}
	if resp.Message != "송금이 완료되었습니다." {
		t.Errorf("unexpected message: %q", resp.Message)
	}
	if resp.IdempotencyKey != "k1" {
		t.Errorf("expected key echoed back, got %q", resp.IdempotencyKey)
	}

	account, err := store.GetAccount(ctx, "1")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if account.Balance != 1_450_000 {
		t.Errorf("expected balance 1450000, got %d", account.Balance)
	}

	txs, _, err := store.ListTransactions(ctx, "", 1, 10)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if txs[0].ID != resp.TransactionID {
		t.Errorf("expected new transaction first, got id %q", txs[0].ID)
	}
	if txs[0].Amount != -50_000 {
		t.Errorf("expected amount -50000, got %d", txs[0].Amount)
	}
	if txs[0].Status != "completed" {
		t.Errorf("expected status completed, got %q", txs[0].Status)
	}

	// A transfer notification should have been written.
	notifications, err := bankSvc.ListNotifications(ctx)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if notifications[0].Title != "송금 완료" {
		t.Errorf("expected transfer notification first, got %q", notifications[0].Title)
	}
	if notifications[0].Message != "이은행님에게 50,000원이 송금되었습니다." {
		t.Errorf("unexpected notification message: %q", notifications[0].Message)
	}
}

func TestProcessTransfer_DuplicateKey(t *testing.T) {
	svc, _, store := newTransferService(t)
	ctx := context.Background()

	if _, err := svc.ProcessTransfer(ctx, validRequest("k1")); err != nil {
		t.Fatalf("first transfer: %v", err)
	}

	_, err := svc.ProcessTransfer(ctx, validRequest("k1"))
	var duplicate *domain.ErrDuplicate
	if !errors.As(err, &duplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	// Balance debited exactly once.
	account, _ := store.GetAccount(ctx, "1")
	if account.Balance != 1_450_000 {
		t.Errorf("expected balance 1450000 after duplicate, got %d", account.Balance)
	}

	// No second transaction recorded.
	txs, total, _ := store.ListTransactions(ctx, "", 1, 20)
	count := 0
	for _, tx := range txs {
		if tx.IdempotencyKey == "k1" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected exactly 1 transaction for k1, got %d (total=%d)", count, total)
	}
}

func TestProcessTransfer_InsufficientBalance(t *testing.T) {
	svc, _, store := newTransferService(t)
	ctx := context.Background()

	req := validRequest("k-big")
	req.Amount = 999_999_999

	_, err := svc.ProcessTransfer(ctx, req)
	var insufficient *domain.ErrInsufficientFunds
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if insufficient.Available != 1_500_000 {
		t.Errorf("expected available 1500000, got %d", insufficient.Available)
	}

	// Nothing applied, and the key is still usable.
	account, _ := store.GetAccount(ctx, "1")
	if account.Balance != 1_500_000 {
		t.Errorf("expected balance unchanged, got %d", account.Balance)
	}
	req.Amount = 50_000
	if _, err := svc.ProcessTransfer(ctx, req); err != nil {
		t.Errorf("expected rejected key to remain usable, got %v", err)
	}
}

func TestProcessTransfer_AccountNotFound(t *testing.T) {
	svc, _, _ := newTransferService(t)

	req := validRequest("k-missing")
	req.FromAccountID = "999"

	_, err := svc.ProcessTransfer(context.Background(), req)
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestProcessTransfer_Validation(t *testing.T) {
	svc, _, _ := newTransferService(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		edit  func(*domain.TransferRequest)
		field string
	}{
		{"missing from account", func(r *domain.TransferRequest) { r.FromAccountID = "" }, "fromAccountId"},
		{"missing to account", func(r *domain.TransferRequest) { r.ToAccountNumber = "" }, "toAccountNumber"},
		{"missing to user", func(r *domain.TransferRequest) { r.ToUserName = "" }, "toUserName"},
		{"zero amount", func(r *domain.TransferRequest) { r.Amount = 0 }, "amount"},
		{"negative amount", func(r *domain.TransferRequest) { r.Amount = -100 }, "amount"},
		{"missing key", func(r *domain.TransferRequest) { r.IdempotencyKey = "" }, "idempotencyKey"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest("k-valid")
			tc.edit(req)

			_, err := svc.ProcessTransfer(ctx, req)
			var validation *domain.ErrValidation
			if !errors.As(err, &validation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if validation.Field != tc.field {
				t.Errorf("expected field %q, got %q", tc.field, validation.Field)
			}
		})
	}
}

// Concurrent submissions with the same key must debit exactly once.
func TestProcessTransfer_ConcurrentSameKey(t *testing.T) {
	svc, _, store := newTransferService(t)
	ctx := context.Background()

	const goroutines = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	duplicates := 0

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ProcessTransfer(ctx, validRequest("k-race"))

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			default:
				var duplicate *domain.ErrDuplicate
				if errors.As(err, &duplicate) {
					duplicates++
				} else {
					t.Errorf("unexpected error: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("expected exactly 1 success, got %d", successes)
	}
	if duplicates != goroutines-1 {
		t.Errorf("expected %d duplicates, got %d", goroutines-1, duplicates)
	}

	account, _ := store.GetAccount(ctx, "1")
	if account.Balance != 1_450_000 {
		t.Errorf("expected single debit, balance %d", account.Balance)
	}
}

func TestProcessTransfer_InvalidatesAccountsCache(t *testing.T) {
	svc, bankSvc, _ := newTransferService(t)
	ctx := context.Background()

	// Prime the cache.
	if _, err := bankSvc.ListAccounts(ctx); err != nil {
		t.Fatalf("list accounts: %v", err)
	}

	if _, err := svc.ProcessTransfer(ctx, validRequest("k-cache")); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	accounts, err := bankSvc.ListAccounts(ctx)
	if err != nil {
		t.Fatalf("list accounts: %v", err)
	}
	for _, a := range accounts {
		if a.ID == "1" && a.Balance != 1_450_000 {
			t.Errorf("expected fresh balance 1450000 after invalidation, got %d", a.Balance)
		}
	}
}
