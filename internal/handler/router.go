package handler

import (
	"net/http"
	"time"

	"github.com/seojun-park/minibank-go/internal/infra/observability"
	"github.com/seojun-park/minibank-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
// Routes follow the /api contract consumed by the web frontend.
func NewRouter(bankSvc *service.BankingService, transferSvc *service.TransferService, authSvc *service.AuthService, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(bankSvc))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API ---
	r.Route("/api", func(r chi.Router) {

		// =============================================
		// Auth
		// =============================================
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authLoginHandler(authSvc, logger))
			r.Post("/register", authRegisterHandler(authSvc, logger))
			r.Post("/2fa", authTwoFactorHandler(authSvc, logger))
			r.Post("/refresh", authRefreshHandler(authSvc, logger))

			r.Group(func(r chi.Router) {
				r.Use(JWTAuthMiddleware(authSvc, logger))
				r.Post("/logout", authLogoutHandler(authSvc, logger))
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(authSvc, logger))
			r.Get("/user/profile", userProfileHandler(authSvc, logger))
		})

		// =============================================
		// Accounts & transactions
		// =============================================
		r.Get("/accounts", listAccountsHandler(bankSvc, logger))
		r.Get("/accounts/{id}", getAccountHandler(bankSvc, logger))
		r.Get("/transactions", listTransactionsHandler(bankSvc, logger))
		r.Get("/dashboard", dashboardHandler(bankSvc, logger))

		// =============================================
		// Transfer
		// =============================================
		r.Post("/transfer", transferHandler(transferSvc, logger))

		// =============================================
		// Notifications
		// =============================================
		r.Get("/notifications", listNotificationsHandler(bankSvc, logger))
		r.Patch("/notifications/{id}/read", markNotificationReadHandler(bankSvc, logger))

		// =============================================
		// Metrics snapshot
		// =============================================
		r.Get("/metrics/transfers", transferMetricsHandler(metrics))

		// =============================================
		// Dev tools (testing helpers)
		// =============================================
		r.Post("/dev/add-balance", devAddBalanceHandler(bankSvc, logger))

		// Simple health check used by the frontend
		r.Get("/health", apiHealthHandler())
	})

	return r
}

// ============================================================
// Operational handlers
// ============================================================

func healthzHandler(bankSvc *service.BankingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "healthy"
		code := http.StatusOK

		if bankSvc != nil {
			if _, err := bankSvc.ListAccounts(r.Context()); err != nil {
				status = "degraded"
				code = http.StatusServiceUnavailable
			}
		}

		writeJSON(w, code, map[string]string{"status": status})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func apiHealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":    "healthy",
			"message":   "Server is running properly",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func transferMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetTransferSnapshot())
	}
}
