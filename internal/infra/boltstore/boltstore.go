// Package boltstore is the file-backed persistence backend. BoltDB keeps
// everything in a single file, so the demo survives restarts without an
// external database process.
//
// Every serialized transaction (db.Update) is atomic, which is what makes
// ApplyTransfer's check-then-apply sequence safe: the idempotency check,
// the balance check, the debit, and the ledger insert either all commit
// or none do.
package boltstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/seojun-park/minibank-go/internal/domain"

	bolt "github.com/boltdb/bolt"
)

var (
	bucketAccounts      = []byte("accounts")
	bucketTransactions  = []byte("transactions")
	bucketIdempotency   = []byte("idempotency_keys")
	bucketNotifications = []byte("notifications")
	bucketUsers         = []byte("users")
	bucketUserEmails    = []byte("user_emails")
	bucketCredentials   = []byte("credentials")
	bucketRefreshTokens = []byte("refresh_tokens")
)

// Store implements port.BankStore and port.AuthStore on top of BoltDB.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the database at path and ensures all buckets exist.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{
			bucketAccounts, bucketTransactions, bucketIdempotency,
			bucketNotifications, bucketUsers, bucketUserEmails,
			bucketCredentials, bucketRefreshTokens,
		} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

// txKey orders transactions newest-first when iterated in reverse.
func txKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%020d", seq))
}

// ============================================================
// Accounts
// ============================================================

func (s *Store) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	accounts := []domain.Account{}

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAccounts).ForEach(func(k, v []byte) error {
			var a domain.Account
			if err := json.Unmarshal(v, &a); err != nil {
				return err
			}
			accounts = append(accounts, a)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

func (s *Store) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	var a domain.Account

	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketAccounts).Get([]byte(accountID))
		if v == nil {
			return &domain.ErrNotFound{Resource: "account", ID: accountID}
		}
		return json.Unmarshal(v, &a)
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) putAccount(tx *bolt.Tx, a *domain.Account) error {
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketAccounts).Put([]byte(a.ID), data)
}

// ============================================================
// Transfer
// ============================================================

// ApplyTransfer performs the idempotency check, balance check, debit, and
// ledger insert inside a single serialized write transaction. A failed
// check rolls back with no state change.
func (s *Store) ApplyTransfer(ctx context.Context, req *domain.TransferRequest) (*domain.Transaction, error) {
	var result domain.Transaction

	err := s.db.Update(func(tx *bolt.Tx) error {
		keys := tx.Bucket(bucketIdempotency)
		if keys.Get([]byte(req.IdempotencyKey)) != nil {
			return &domain.ErrDuplicate{Key: req.IdempotencyKey}
		}

		accountsBytes := tx.Bucket(bucketAccounts).Get([]byte(req.FromAccountID))
		if accountsBytes == nil {
			return &domain.ErrNotFound{Resource: "account", ID: req.FromAccountID}
		}
		var from domain.Account
		if err := json.Unmarshal(accountsBytes, &from); err != nil {
			return err
		}

		if from.Balance < req.Amount {
			return &domain.ErrInsufficientFunds{Available: from.Balance, Required: req.Amount}
		}

		txBucket := tx.Bucket(bucketTransactions)
		seq, err := txBucket.NextSequence()
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		result = domain.Transaction{
			ID:             strconv.FormatUint(seq, 10),
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

		data, err := json.Marshal(result)
		if err != nil {
			return err
		}
		if err := txBucket.Put(txKey(seq), data); err != nil {
			return err
		}

		if err := keys.Put([]byte(req.IdempotencyKey), []byte(result.ID)); err != nil {
			return err
		}

		from.Balance -= req.Amount
		return s.putAccount(tx, &from)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ============================================================
// Transactions
// ============================================================

func (s *Store) ListTransactions(ctx context.Context, accountID string, page, limit int) ([]domain.Transaction, int, error) {
	filtered := []domain.Transaction{}

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketTransactions).Cursor()
		// reverse iteration: highest sequence first
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var t domain.Transaction
			if err := json.Unmarshal(v, &t); err != nil {
				return err
			}
			if accountID != "" && t.FromAccount != accountID && t.ToAccount != accountID {
				continue
			}
			filtered = append(filtered, t)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
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
	return filtered[start:end], total, nil
}

func (s *Store) putTransaction(tx *bolt.Tx, t *domain.Transaction) error {
	seq, err := tx.Bucket(bucketTransactions).NextSequence()
	if err != nil {
		return err
	}
	if t.ID == "" {
		t.ID = strconv.FormatUint(seq, 10)
	}
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketTransactions).Put(txKey(seq), data)
}

// ============================================================
// Notifications
// ============================================================

func (s *Store) ListNotifications(ctx context.Context) ([]domain.Notification, error) {
	notifications := []domain.Notification{}

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketNotifications).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var n domain.Notification
			if err := json.Unmarshal(v, &n); err != nil {
				return err
			}
			notifications = append(notifications, n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return notifications, nil
}

func (s *Store) CreateNotification(ctx context.Context, n *domain.Notification) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNotifications)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		if n.ID == "" {
			n.ID = strconv.FormatUint(seq, 10)
		}
		data, err := json.Marshal(n)
		if err != nil {
			return err
		}
		return b.Put(txKey(seq), data)
	})
}

func (s *Store) MarkNotificationRead(ctx context.Context, notificationID string) (*domain.Notification, error) {
	var result *domain.Notification

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNotifications)
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var n domain.Notification
			if err := json.Unmarshal(v, &n); err != nil {
				return err
			}
			if n.ID != notificationID {
				continue
			}
			n.IsRead = true
			data, err := json.Marshal(n)
			if err != nil {
				return err
			}
			if err := b.Put(k, data); err != nil {
				return err
			}
			result = &n
			return nil
		}
		return &domain.ErrNotFound{Resource: "notification", ID: notificationID}
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ============================================================
// Dev tools
// ============================================================

func (s *Store) AddBalance(ctx context.Context, accountID string, amount int64) (int64, error) {
	var newBalance int64

	err := s.db.Update(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketAccounts).Get([]byte(accountID))
		if v == nil {
			return &domain.ErrNotFound{Resource: "account", ID: accountID}
		}
		var a domain.Account
		if err := json.Unmarshal(v, &a); err != nil {
			return err
		}
		a.Balance += amount
		newBalance = a.Balance
		return s.putAccount(tx, &a)
	})
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

// ============================================================
// Users & credentials
// ============================================================

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user *domain.User

	err := s.db.View(func(tx *bolt.Tx) error {
		userID := tx.Bucket(bucketUserEmails).Get([]byte(email))
		if userID == nil {
			return nil
		}
		v := tx.Bucket(bucketUsers).Get(userID)
		if v == nil {
			return nil
		}
		var u domain.User
		if err := json.Unmarshal(v, &u); err != nil {
			return err
		}
		user = &u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (*domain.User, error) {
	var user *domain.User

	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketUsers).Get([]byte(userID))
		if v == nil {
			return nil
		}
		var u domain.User
		if err := json.Unmarshal(v, &u); err != nil {
			return err
		}
		user = &u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Store) CreateUser(ctx context.Context, user *domain.User, passwordHash string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		emails := tx.Bucket(bucketUserEmails)
		if emails.Get([]byte(user.Email)) != nil {
			return &domain.ErrConflict{Message: "이미 가입된 이메일입니다"}
		}

		users := tx.Bucket(bucketUsers)
		if user.ID == "" {
			seq, err := users.NextSequence()
			if err != nil {
				return err
			}
			user.ID = strconv.FormatUint(seq, 10)
		}

		data, err := json.Marshal(user)
		if err != nil {
			return err
		}
		if err := users.Put([]byte(user.ID), data); err != nil {
			return err
		}
		if err := emails.Put([]byte(user.Email), []byte(user.ID)); err != nil {
			return err
		}

		cred := domain.Credential{UserID: user.ID, PasswordHash: passwordHash}
		credData, err := json.Marshal(cred)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketCredentials).Put([]byte(user.ID), credData)
	})
}

func (s *Store) GetCredentials(ctx context.Context, userID string) (*domain.Credential, error) {
	var cred domain.Credential

	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketCredentials).Get([]byte(userID))
		if v == nil {
			return &domain.ErrNotFound{Resource: "credentials", ID: userID}
		}
		return json.Unmarshal(v, &cred)
	})
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (s *Store) UpdateCredentials(ctx context.Context, cred *domain.Credential) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(cred)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketCredentials).Put([]byte(cred.UserID), data)
	})
}

// ============================================================
// Refresh tokens
// ============================================================

func (s *Store) StoreRefreshToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		rt := domain.RefreshToken{
			UserID:    userID,
			TokenHash: tokenHash,
			ExpiresAt: expiresAt,
		}
		data, err := json.Marshal(rt)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketRefreshTokens).Put([]byte(tokenHash), data)
	})
}

func (s *Store) GetRefreshToken(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	var token *domain.RefreshToken

	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketRefreshTokens).Get([]byte(tokenHash))
		if v == nil {
			return nil
		}
		var rt domain.RefreshToken
		if err := json.Unmarshal(v, &rt); err != nil {
			return err
		}
		if !rt.Revoked {
			token = &rt
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return token, nil
}

func (s *Store) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRefreshTokens)
		v := b.Get([]byte(tokenHash))
		if v == nil {
			return nil
		}
		var rt domain.RefreshToken
		if err := json.Unmarshal(v, &rt); err != nil {
			return err
		}
		rt.Revoked = true
		data, err := json.Marshal(rt)
		if err != nil {
			return err
		}
		return b.Put([]byte(tokenHash), data)
	})
}

func (s *Store) RevokeAllRefreshTokens(ctx context.Context, userID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRefreshTokens)

		// Collect first; writing while a cursor iterates can invalidate it.
		var revoked []domain.RefreshToken
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rt domain.RefreshToken
			if err := json.Unmarshal(v, &rt); err != nil {
				return err
			}
			if rt.UserID != userID || rt.Revoked {
				continue
			}
			rt.Revoked = true
			revoked = append(revoked, rt)
		}

		for _, rt := range revoked {
			data, err := json.Marshal(rt)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(rt.TokenHash), data); err != nil {
				return err
			}
		}
		return nil
	})
}
