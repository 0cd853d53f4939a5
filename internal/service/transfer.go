// Package service provides the business logic layer (use cases).
package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/seojun-park/minibank-go/internal/domain"
	"github.com/seojun-park/minibank-go/internal/infra/observability"
	"github.com/seojun-park/minibank-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var transferTracer = otel.Tracer("service/transfer")

// TransferService processes money transfers with idempotency-key
// deduplication. Happy path: the store applies the transfer atomically,
// then a notification is written and the account cache is invalidated.
type TransferService struct {
	store         port.BankStore
	accountsCache port.Cache[[]domain.Account]
	metrics       *observability.Metrics
	logger        *zap.Logger
}

// NewTransferService creates a new transfer service.
func NewTransferService(store port.BankStore, accountsCache port.Cache[[]domain.Account], metrics *observability.Metrics, logger *zap.Logger) *TransferService {
	return &TransferService{
		store:         store,
		accountsCache: accountsCache,
		metrics:       metrics,
		logger:        logger,
	}
}

// ProcessTransfer validates and applies a transfer request.
// Rejections (duplicate key, unknown account, insufficient balance) come
// back as typed errors with no state mutated.
func (s *TransferService) ProcessTransfer(ctx context.Context, req *domain.TransferRequest) (*domain.TransferResponse, error) {
	ctx, span := transferTracer.Start(ctx, "TransferService.ProcessTransfer")
	defer span.End()
	span.SetAttributes(
		attribute.String("transfer.from_account", req.FromAccountID),
		attribute.Int64("transfer.amount", req.Amount),
	)

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("process_transfer", time.Since(start))
	}()

	if err := validateTransfer(req); err != nil {
		s.metrics.IncrTransfer(observability.TransferInvalid)
		return nil, err
	}

	tx, err := s.store.ApplyTransfer(ctx, req)
	if err != nil {
		s.recordRejection(req, err)
		return nil, err
	}

	// The transfer is committed at this point. Notification and cache
	// invalidation are best-effort side effects.
	notification := &domain.Notification{
		ID:        uuid.NewString(),
		Type:      "transfer",
		Title:     "송금 완료",
		Message:   fmt.Sprintf("%s님에게 %s원이 송금되었습니다.", req.ToUserName, formatKRW(req.Amount)),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateNotification(ctx, notification); err != nil {
		s.logger.Warn("transfer: notification write failed",
			zap.String("transaction_id", tx.ID),
			zap.Error(err),
		)
	}

	s.accountsCache.Delete(accountsCacheKey)

	s.metrics.IncrTransfer(observability.TransferSuccess)
	s.logger.Info("transfer completed",
		zap.String("transaction_id", tx.ID),
		zap.String("from_account", req.FromAccountID),
		zap.Int64("amount", req.Amount),
		zap.String("idempotency_key", req.IdempotencyKey),
	)

	return &domain.TransferResponse{
		TransactionID:  tx.ID,
		Status:         "success",
		Message:        "송금이 완료되었습니다.",
		IdempotencyKey: req.IdempotencyKey,
	}, nil
}

// SubmitTransfer implements port.TransferSubmitter for in-process use.
func (s *TransferService) SubmitTransfer(ctx context.Context, req *domain.TransferRequest) (*domain.TransferResponse, error) {
	return s.ProcessTransfer(ctx, req)
}

func (s *TransferService) recordRejection(req *domain.TransferRequest, err error) {
	switch e := err.(type) {
	case *domain.ErrDuplicate:
		s.metrics.IncrTransfer(observability.TransferDuplicate)
		s.logger.Warn("transfer rejected: duplicate idempotency key",
			zap.String("idempotency_key", e.Key),
		)
	case *domain.ErrNotFound:
		s.metrics.IncrTransfer(observability.TransferNotFound)
		s.logger.Warn("transfer rejected: source account not found",
			zap.String("from_account", req.FromAccountID),
		)
	case *domain.ErrInsufficientFunds:
		s.metrics.IncrTransfer(observability.TransferInsufficient)
		s.logger.Warn("transfer rejected: insufficient balance",
			zap.String("from_account", req.FromAccountID),
			zap.Int64("available", e.Available),
			zap.Int64("required", e.Required),
		)
	default:
		s.metrics.IncrTransfer(observability.TransferError)
		s.logger.Error("transfer failed", zap.Error(err))
	}
}

func validateTransfer(req *domain.TransferRequest) error {
	switch {
	case req.FromAccountID == "":
		return &domain.ErrValidation{Field: "fromAccountId", Message: "출금 계좌를 선택해주세요"}
	case req.ToAccountNumber == "":
		return &domain.ErrValidation{Field: "toAccountNumber", Message: "받는 분 계좌번호를 입력해주세요"}
	case req.ToUserName == "":
		return &domain.ErrValidation{Field: "toUserName", Message: "받는 분 성함을 입력해주세요"}
	case req.Amount <= 0:
		return &domain.ErrValidation{Field: "amount", Message: "송금 금액을 입력해주세요"}
	case req.IdempotencyKey == "":
		return &domain.ErrValidation{Field: "idempotencyKey", Message: "idempotency key is required"}
	}
	return nil
}

// formatKRW renders an amount with thousands separators, e.g. 50000 → "50,000".
func formatKRW(amount int64) string {
	s := strconv.FormatInt(amount, 10)
	neg := false
	if s[0] == '-' {
		neg = true
		s = s[1:]
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	if neg {
		return "-" + s
	}
	return s
}
