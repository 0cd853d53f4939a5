package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/seojun-park/minibank-go/internal/domain"
	"github.com/seojun-park/minibank-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Transfer Handler — POST /api/transfer
// ============================================================

func transferHandler(svc *service.TransferService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/transfer")
		defer span.End()

		var req domain.TransferRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		// The header wins over the body field when both are present.
		if key := r.Header.Get("Idempotency-Key"); key != "" {
			req.IdempotencyKey = key
		}
		span.SetAttributes(attribute.String("transfer.idempotency_key", req.IdempotencyKey))

		resp, err := svc.ProcessTransfer(ctx, &req)
		if err != nil {
			transferError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

// transferError writes the transfer contract's exact error strings.
func transferError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var duplicate *domain.ErrDuplicate
	var notFound *domain.ErrNotFound
	var insufficient *domain.ErrInsufficientFunds

	switch {
	case errors.As(err, &duplicate):
		logger.Warn("transfer: duplicate request", zap.String("idempotency_key", duplicate.Key))
		writeError(w, http.StatusConflict, "Duplicate transaction request")
	case errors.As(err, &notFound):
		logger.Warn("transfer: from account not found", zap.String("account_id", notFound.ID))
		writeError(w, http.StatusNotFound, "From account not found")
	case errors.As(err, &insufficient):
		logger.Warn("transfer: insufficient balance",
			zap.Int64("available", insufficient.Available),
			zap.Int64("required", insufficient.Required),
		)
		writeError(w, http.StatusBadRequest, "Insufficient balance")
	default:
		handleServiceError(w, err, logger)
	}
}
