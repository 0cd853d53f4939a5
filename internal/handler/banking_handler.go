package handler

import (
	"encoding/json"
	"net/http"

	"github.com/seojun-park/minibank-go/internal/domain"
	"github.com/seojun-park/minibank-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Accounts Handlers
// ============================================================

func listAccountsHandler(svc *service.BankingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/accounts")
		defer span.End()

		accounts, err := svc.ListAccounts(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusOK, accounts, "Accounts retrieved successfully")
	}
}

func getAccountHandler(svc *service.BankingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/accounts/{id}")
		defer span.End()

		account, err := svc.GetAccount(ctx, chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusOK, account, "Account retrieved successfully")
	}
}

// ============================================================
// Transactions Handler
// ============================================================

func listTransactionsHandler(svc *service.BankingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/transactions")
		defer span.End()

		page, limit := parsePagination(r)
		accountID := r.URL.Query().Get("accountId")

		txs, pagination, err := svc.ListTransactions(ctx, accountID, page, limit)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, domain.PaginatedResponse[domain.Transaction]{
			Data:       txs,
			Pagination: *pagination,
			Success:    true,
		})
	}
}

// ============================================================
// Dashboard Handler
// ============================================================

func dashboardHandler(svc *service.BankingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/dashboard")
		defer span.End()

		dashboard, err := svc.Dashboard(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusOK, dashboard, "Dashboard retrieved successfully")
	}
}

// ============================================================
// Notifications Handlers
// ============================================================

func listNotificationsHandler(svc *service.BankingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/notifications")
		defer span.End()

		notifications, err := svc.ListNotifications(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusOK, notifications, "Notifications retrieved successfully")
	}
}

func markNotificationReadHandler(svc *service.BankingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /api/notifications/{id}/read")
		defer span.End()

		notification, err := svc.MarkNotificationRead(ctx, chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusOK, notification, "Notification marked as read")
	}
}

// ============================================================
// Dev Tools Handler
// ============================================================

func devAddBalanceHandler(svc *service.BankingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/dev/add-balance")
		defer span.End()

		var req domain.DevAddBalanceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		resp, err := svc.DevAddBalance(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
