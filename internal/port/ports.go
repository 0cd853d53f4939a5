// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/seojun-park/minibank-go/internal/domain"
)

// BankStore defines all data operations for accounts, transactions,
// and notifications. Implemented by the in-memory store and the
// BoltDB store.
type BankStore interface {
	// Accounts
	ListAccounts(ctx context.Context) ([]domain.Account, error)
	GetAccount(ctx context.Context, accountID string) (*domain.Account, error)

	// ApplyTransfer performs the idempotency check, balance check, debit,
	// and transaction insert as one atomic step. It returns ErrDuplicate,
	// ErrNotFound, or ErrInsufficientFunds without mutating any state.
	ApplyTransfer(ctx context.Context, req *domain.TransferRequest) (*domain.Transaction, error)

	// Transactions, newest first. accountID filters when non-empty.
	ListTransactions(ctx context.Context, accountID string, page, limit int) ([]domain.Transaction, int, error)

	// Notifications
	ListNotifications(ctx context.Context) ([]domain.Notification, error)
	CreateNotification(ctx context.Context, n *domain.Notification) error
	MarkNotificationRead(ctx context.Context, notificationID string) (*domain.Notification, error)

	// AddBalance credits an account and returns the new balance (dev tools).
	AddBalance(ctx context.Context, accountID string, amount int64) (int64, error)
}

// AuthStore defines persistence for users, credentials, and refresh tokens.
type AuthStore interface {
	// Users. Lookups return (nil, nil) when absent so the service can
	// distinguish "no such user" from a store failure.
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, userID string) (*domain.User, error)
	CreateUser(ctx context.Context, user *domain.User, passwordHash string) error

	// Credentials
	GetCredentials(ctx context.Context, userID string) (*domain.Credential, error)
	UpdateCredentials(ctx context.Context, cred *domain.Credential) error

	// Refresh tokens (hashed)
	StoreRefreshToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	GetRefreshToken(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
	RevokeAllRefreshTokens(ctx context.Context, userID string) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// TransferSubmitter submits a transfer request for processing. Implemented
// in-process by the transfer service and over HTTP by the transfer client,
// so the wizard works the same against either.
type TransferSubmitter interface {
	SubmitTransfer(ctx context.Context, req *domain.TransferRequest) (*domain.TransferResponse, error)
}
