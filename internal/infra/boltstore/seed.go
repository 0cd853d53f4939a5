package boltstore

import (
	"context"
	"time"

	"github.com/seojun-park/minibank-go/internal/domain"

	bolt "github.com/boltdb/bolt"
	"golang.org/x/crypto/bcrypt"
)

// Seed loads the demo fixtures unless the database already has accounts.
// Safe to call on every startup.
func (s *Store) Seed(ctx context.Context) error {
	seeded := false
	err := s.db.View(func(tx *bolt.Tx) error {
		k, _ := tx.Bucket(bucketAccounts).Cursor().First()
		seeded = k != nil
		return nil
	})
	if err != nil {
		return err
	}
	if seeded {
		return nil
	}

	t := func(v string) time.Time {
		ts, _ := time.Parse(time.RFC3339, v)
		return ts
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	users := []domain.User{
		{ID: "1", Name: "김토스", Email: "toss@example.com", Phone: "010-1234-5678", IsVerified: true, CreatedAt: t("2024-01-01T00:00:00Z")},
		{ID: "2", Name: "이은행", Email: "bank@example.com", Phone: "010-9876-5432", IsVerified: true, CreatedAt: t("2024-01-02T00:00:00Z")},
	}
	for i := range users {
		if err := s.CreateUser(ctx, &users[i], string(hash)); err != nil {
			return err
		}
	}

	accounts := []domain.Account{
		{ID: "1", AccountNumber: "1234567890123456", AccountName: "김토스", BankName: "토스뱅크", Balance: 1_500_000, IsMain: true, Type: "checking", CreatedAt: t("2024-01-01T00:00:00Z")},
		{ID: "2", AccountNumber: "9876543210987654", AccountName: "김토스", BankName: "신한은행", Balance: 500_000, IsMain: false, Type: "savings", CreatedAt: t("2024-01-02T00:00:00Z")},
	}

	completed1 := t("2024-01-15T10:30:05Z")
	completed2 := t("2024-01-14T09:00:02Z")
	transactions := []domain.Transaction{
		{
			Type: "deposit", Amount: 100_000, Description: "급여 입금",
			ToAccount: "1234567890123456", Status: "completed",
			CreatedAt: t("2024-01-14T09:00:00Z"), CompletedAt: &completed2,
		},
		{
			Type: "transfer", Amount: -50_000, Description: "이은행에게 송금",
			FromAccount: "1234567890123456", ToAccount: "9876543210987654", ToUser: "이은행",
			Status: "completed", CreatedAt: t("2024-01-15T10:30:00Z"), CompletedAt: &completed1,
			IdempotencyKey: "txn_1642248600000_abc123",
		},
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		for i := range accounts {
			if err := s.putAccount(tx, &accounts[i]); err != nil {
				return err
			}
		}
		// oldest first so reverse iteration yields newest first
		for i := range transactions {
			if err := s.putTransaction(tx, &transactions[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	notifications := []domain.Notification{
		{Type: "deposit", Title: "입금 알림", Message: "계좌에 100,000원이 입금되었습니다.", IsRead: true, CreatedAt: t("2024-01-14T09:00:02Z")},
		{Type: "transfer", Title: "송금 완료", Message: "이은행님에게 50,000원이 송금되었습니다.", IsRead: false, CreatedAt: t("2024-01-15T10:30:05Z")},
	}
	for i := range notifications {
		if err := s.CreateNotification(ctx, &notifications[i]); err != nil {
			return err
		}
	}
	return nil
}
