// Package domain contains the core data model for the minibank API.
// JSON field names follow the contract consumed by the web frontend,
// so everything is camelCase.
package domain

import "time"

// Amounts are integer KRW. The won has no minor unit, so int64 is exact
// and avoids float drift on balance arithmetic.

// User is a registered customer.
type User struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	IsVerified bool      `json:"isVerified"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Account is a bank account owned by the demo user.
type Account struct {
	ID            string    `json:"id"`
	AccountNumber string    `json:"accountNumber"`
	AccountName   string    `json:"accountName"`
	BankName      string    `json:"bankName"`
	Balance       int64     `json:"balance"`
	IsMain        bool      `json:"isMain"`
	Type          string    `json:"type"` // "checking" | "savings"
	CreatedAt     time.Time `json:"createdAt"`
}

// Transaction is a ledger entry. Outgoing transfers carry a negative Amount.
type Transaction struct {
	ID             string     `json:"id"`
	Type           string     `json:"type"` // "transfer" | "deposit" | "withdrawal"
	Amount         int64      `json:"amount"`
	Description    string     `json:"description"`
	FromAccount    string     `json:"fromAccount,omitempty"`
	ToAccount      string     `json:"toAccount,omitempty"`
	ToUser         string     `json:"toUser,omitempty"`
	Status         string     `json:"status"` // "completed" | "pending" | "failed"
	CreatedAt      time.Time  `json:"createdAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	IdempotencyKey string     `json:"idempotencyKey,omitempty"`
}

// TransferRequest is the payload for POST /api/transfer.
type TransferRequest struct {
	FromAccountID   string `json:"fromAccountId"`
	ToAccountNumber string `json:"toAccountNumber"`
	ToUserName      string `json:"toUserName"`
	Amount          int64  `json:"amount"`
	Description     string `json:"description,omitempty"`
	IdempotencyKey  string `json:"idempotencyKey"`
}

// TransferResponse is returned after a transfer has been applied.
type TransferResponse struct {
	TransactionID  string `json:"transactionId"`
	Status         string `json:"status"` // "success" | "failed"
	Message        string `json:"message"`
	IdempotencyKey string `json:"idempotencyKey"`
}

// Notification is an in-app notification for the demo user.
type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"` // "transfer" | "security" | "promotion"
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

// Dashboard aggregates the data the home screen needs in one response.
type Dashboard struct {
	Accounts      []Account      `json:"accounts"`
	Transactions  []Transaction  `json:"transactions"`
	Notifications []Notification `json:"notifications"`
}

// ============================================================
// API envelope
// ============================================================

// APIResponse is the standard envelope: {data, message, success}.
type APIResponse[T any] struct {
	Data    T      `json:"data"`
	Message string `json:"message,omitempty"`
	Success bool   `json:"success"`
}

// Pagination describes the page window of a list response.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// PaginatedResponse wraps a page of items plus pagination metadata.
type PaginatedResponse[T any] struct {
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
	Success    bool       `json:"success"`
}

// ============================================================
// Dev tools
// ============================================================

// DevAddBalanceRequest credits an account for local testing.
type DevAddBalanceRequest struct {
	AccountID string `json:"accountId"`
	Amount    int64  `json:"amount"`
}

// DevAddBalanceResponse reports the new balance after the credit.
type DevAddBalanceResponse struct {
	AccountID  string `json:"accountId"`
	NewBalance int64  `json:"newBalance"`
	Message    string `json:"message"`
}

// ============================================================
// Metrics snapshot
// ============================================================

// TransferMetrics is the snapshot served by GET /api/metrics/transfers.
type TransferMetrics struct {
	TotalTransfers         int64   `json:"totalTransfers"`
	SuccessfulTransfers    int64   `json:"successfulTransfers"`
	DuplicateRejections    int64   `json:"duplicateRejections"`
	InsufficientRejections int64   `json:"insufficientRejections"`
	SuccessRate            float64 `json:"successRate"`
	CacheHitRate           float64 `json:"cacheHitRate"`
}
