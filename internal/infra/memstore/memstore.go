// Package memstore is the default in-memory persistence backend.
// All mutations go through a single mutex, which is what makes
// ApplyTransfer's check-then-apply sequence atomic.
package memstore

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/seojun-park/minibank-go/internal/domain"
)

// Store implements port.BankStore and port.AuthStore in memory.
type Store struct {
	mu sync.Mutex

	accounts      []*domain.Account
	transactions  []domain.Transaction
	notifications []domain.Notification
	users         []*domain.User
	credentials   map[string]*domain.Credential
	refreshTokens map[string]*domain.RefreshToken

	// processed idempotency keys
	processed map[string]struct{}
}

// New creates an empty store. Use NewSeeded for the demo fixtures.
func New() *Store {
	return &Store{
		credentials:   make(map[string]*domain.Credential),
		refreshTokens: make(map[string]*domain.RefreshToken),
		processed:     make(map[string]struct{}),
	}
}

// ============================================================
// Accounts
// ============================================================

func (s *Store) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, *a)
	}
	return out, nil
}

func (s *Store) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.findAccount(accountID)
	if a == nil {
		return nil, &domain.ErrNotFound{Resource: "account", ID: accountID}
	}
	cp := *a
	return &cp, nil
}

// findAccount must be called with the lock held.
func (s *Store) findAccount(accountID string) *domain.Account {
	for _, a := range s.accounts {
		if a.ID == accountID {
			return a
		}
	}
	return nil
}

// ============================================================
// Transfer
// ============================================================

// ApplyTransfer runs the full check-and-apply sequence under one lock:
// idempotency key, source account, balance. Nothing is mutated until
// every check has passed, so a rejected request leaves no trace.
func (s *Store) ApplyTransfer(ctx context.Context, req *domain.TransferRequest) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seen := s.processed[req.IdempotencyKey]; seen {
		return nil, &domain.ErrDuplicate{Key: req.IdempotencyKey}
	}

	from := s.findAccount(req.FromAccountID)
	if from == nil {
		return nil, &domain.ErrNotFound{Resource: "account", ID: req.FromAccountID}
	}

	if from.Balance < req.Amount {
		return nil, &domain.ErrInsufficientFunds{Available: from.Balance, Required: req.Amount}
	}

	s.processed[req.IdempotencyKey] = struct{}{}

	now := time.Now().UTC()
	tx := domain.Transaction{
		ID:             strconv.Itoa(len(s.transactions) + 1),
		Type:           "transfer",
		Amount:         -req.Amount,
		Description:    req.Description,
		FromAccount:    from.AccountNumber,
		ToAccount:      req.ToAccountNumber,
		ToUser:         req.ToUserName,
		Status:         "completed",
		CreatedAt:      now,
		CompletedAt:    &now,
		IdempotencyKey: req.IdempotencyKey,
	}

	// newest first
	s.transactions = append([]domain.Transaction{tx}, s.transactions...)
	from.Balance -= req.Amount

	return &tx, nil
}

// ============================================================
// Transactions
// ============================================================

func (s *Store) ListTransactions(ctx context.Context, accountID string, page, limit int) ([]domain.Transaction, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	filtered := s.transactions
	if accountID != "" {
		filtered = nil
		for _, tx := range s.transactions {
			if tx.FromAccount == accountID || tx.ToAccount == accountID {
				filtered = append(filtered, tx)
			}
		}
	}

	total := len(filtered)
	start := (page - 1) * limit
	if start >= total {
		return []domain.Transaction{}, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}

	out := make([]domain.Transaction, end-start)
	copy(out, filtered[start:end])
	return out, total, nil
}

// ============================================================
// Notifications
// ============================================================

func (s *Store) ListNotifications(ctx context.Context) ([]domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Notification, len(s.notifications))
	copy(out, s.notifications)
	return out, nil
}

func (s *Store) CreateNotification(ctx context.Context, n *domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.ID == "" {
		n.ID = strconv.Itoa(len(s.notifications) + 1)
	}
	s.notifications = append([]domain.Notification{*n}, s.notifications...)
	return nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, notificationID string) (*domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.notifications {
		if s.notifications[i].ID == notificationID {
			s.notifications[i].IsRead = true
			cp := s.notifications[i]
			return &cp, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "notification", ID: notificationID}
}

// ============================================================
// Dev tools
// ============================================================

func (s *Store) AddBalance(ctx context.Context, accountID string, amount int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.findAccount(accountID)
	if a == nil {
		return 0, &domain.ErrNotFound{Resource: "account", ID: accountID}
	}
	a.Balance += amount
	return a.Balance, nil
}

// ============================================================
// Users & credentials
// ============================================================

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.ID == userID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) CreateUser(ctx context.Context, user *domain.User, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == user.Email {
			return &domain.ErrConflict{Message: "이미 가입된 이메일입니다"}
		}
	}

	if user.ID == "" {
		user.ID = strconv.Itoa(len(s.users) + 1)
	}
	cp := *user
	s.users = append(s.users, &cp)
	s.credentials[user.ID] = &domain.Credential{
		UserID:       user.ID,
		PasswordHash: passwordHash,
	}
	return nil
}

func (s *Store) GetCredentials(ctx context.Context, userID string) (*domain.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.credentials[userID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "credentials", ID: userID}
	}
	cp := *cred
	return &cp, nil
}

func (s *Store) UpdateCredentials(ctx context.Context, cred *domain.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *cred
	s.credentials[cred.UserID] = &cp
	return nil
}

// ============================================================
// Refresh tokens
// ============================================================

func (s *Store) StoreRefreshToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refreshTokens[tokenHash] = &domain.RefreshToken{
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
	}
	return nil
}

func (s *Store) GetRefreshToken(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rt, ok := s.refreshTokens[tokenHash]
	if !ok || rt.Revoked {
		return nil, nil
	}
	cp := *rt
	return &cp, nil
}

func (s *Store) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rt, ok := s.refreshTokens[tokenHash]; ok {
		rt.Revoked = true
	}
	return nil
}

func (s *Store) RevokeAllRefreshTokens(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rt := range s.refreshTokens {
		if rt.UserID == userID {
			rt.Revoked = true
		}
	}
	return nil
}
