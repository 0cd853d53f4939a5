package service

import (
	"context"

	"github.com/seojun-park/minibank-go/internal/domain"
	"github.com/seojun-park/minibank-go/internal/infra/observability"
	"github.com/seojun-park/minibank-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var bankTracer = otel.Tracer("service/banking")

const accountsCacheKey = "accounts"

// BankingService serves the read side: accounts, transactions,
// notifications, and the aggregated dashboard.
type BankingService struct {
	store         port.BankStore
	accountsCache port.Cache[[]domain.Account]
	metrics       *observability.Metrics
	logger        *zap.Logger
}

// NewBankingService creates a new banking service.
func NewBankingService(store port.BankStore, accountsCache port.Cache[[]domain.Account], metrics *observability.Metrics, logger *zap.Logger) *BankingService {
	return &BankingService{
		store:         store,
		accountsCache: accountsCache,
		metrics:       metrics,
		logger:        logger,
	}
}

// ============================================================
// Accounts
// ============================================================

// ListAccounts returns all accounts, served from cache when fresh.
// The transfer service invalidates this cache after every debit.
func (s *BankingService) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	ctx, span := bankTracer.Start(ctx, "BankingService.ListAccounts")
	defer span.End()

	if cached, ok := s.accountsCache.Get(accountsCacheKey); ok {
		s.metrics.IncrCacheHit("accounts")
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cached, nil
	}
	s.metrics.IncrCacheMiss("accounts")

	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	s.accountsCache.Set(accountsCacheKey, accounts)
	return accounts, nil
}

func (s *BankingService) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	ctx, span := bankTracer.Start(ctx, "BankingService.GetAccount")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	return s.store.GetAccount(ctx, accountID)
}

// ============================================================
// Transactions
// ============================================================

func (s *BankingService) ListTransactions(ctx context.Context, accountID string, page, limit int) ([]domain.Transaction, *domain.Pagination, error) {
	ctx, span := bankTracer.Start(ctx, "BankingService.ListTransactions")
	defer span.End()

	txs, total, err := s.store.ListTransactions(ctx, accountID, page, limit)
	if err != nil {
		return nil, nil, err
	}

	totalPages := total / limit
	if total%limit != 0 {
		totalPages++
	}

	return txs, &domain.Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
	}, nil
}

// ============================================================
// Notifications
// ============================================================

func (s *BankingService) ListNotifications(ctx context.Context) ([]domain.Notification, error) {
	ctx, span := bankTracer.Start(ctx, "BankingService.ListNotifications")
	defer span.End()

	return s.store.ListNotifications(ctx)
}

func (s *BankingService) MarkNotificationRead(ctx context.Context, notificationID string) (*domain.Notification, error) {
	ctx, span := bankTracer.Start(ctx, "BankingService.MarkNotificationRead")
	defer span.End()
	span.SetAttributes(attribute.String("notification.id", notificationID))

	return s.store.MarkNotificationRead(ctx, notificationID)
}

// ============================================================
// Dashboard
// ============================================================

// Dashboard fans out the three home-screen reads concurrently.
func (s *BankingService) Dashboard(ctx context.Context) (*domain.Dashboard, error) {
	ctx, span := bankTracer.Start(ctx, "BankingService.Dashboard")
	defer span.End()

	var dashboard domain.Dashboard
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		accounts, err := s.ListAccounts(gctx)
		if err != nil {
			return err
		}
		dashboard.Accounts = accounts
		return nil
	})
	g.Go(func() error {
		txs, _, err := s.store.ListTransactions(gctx, "", 1, 10)
		if err != nil {
			return err
		}
		dashboard.Transactions = txs
		return nil
	})
	g.Go(func() error {
		notifications, err := s.store.ListNotifications(gctx)
		if err != nil {
			return err
		}
		dashboard.Notifications = notifications
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &dashboard, nil
}

// ============================================================
// Dev tools
// ============================================================

func (s *BankingService) DevAddBalance(ctx context.Context, req *domain.DevAddBalanceRequest) (*domain.DevAddBalanceResponse, error) {
	ctx, span := bankTracer.Start(ctx, "BankingService.DevAddBalance")
	defer span.End()

	if req.AccountID == "" {
		return nil, &domain.ErrValidation{Field: "accountId", Message: "accountId is required"}
	}
	if req.Amount <= 0 {
		return nil, &domain.ErrValidation{Field: "amount", Message: "amount must be positive"}
	}

	newBalance, err := s.store.AddBalance(ctx, req.AccountID, req.Amount)
	if err != nil {
		return nil, err
	}

	s.accountsCache.Delete(accountsCacheKey)
	s.logger.Info("dev: balance added",
		zap.String("account_id", req.AccountID),
		zap.Int64("amount", req.Amount),
		zap.Int64("new_balance", newBalance),
	)

	return &domain.DevAddBalanceResponse{
		AccountID:  req.AccountID,
		NewBalance: newBalance,
		Message:    "balance updated",
	}, nil
}
