package memstore

import (
	"time"

	"github.com/seojun-park/minibank-go/internal/domain"

	"golang.org/x/crypto/bcrypt"
)

// Demo login accepted out of the box.
const (
	DemoEmail    = "toss@example.com"
	DemoPassword = "password123"
)

// NewSeeded creates a store pre-loaded with the demo fixtures: two users,
// two accounts, two transactions, and two notifications.
func NewSeeded() *Store {
	s := New()

	t := func(v string) time.Time {
		ts, _ := time.Parse(time.RFC3339, v)
		return ts
	}

	s.users = []*domain.User{
		{
			ID:         "1",
			Name:       "김토스",
			Email:      DemoEmail,
			Phone:      "010-1234-5678",
			IsVerified: true,
			CreatedAt:  t("2024-01-01T00:00:00Z"),
		},
		{
			ID:         "2",
			Name:       "이은행",
			Email:      "bank@example.com",
			Phone:      "010-9876-5432",
			IsVerified: true,
			CreatedAt:  t("2024-01-02T00:00:00Z"),
		},
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
	if err != nil {
		panic("seed: bcrypt hash failed: " + err.Error())
	}
	s.credentials["1"] = &domain.Credential{UserID: "1", PasswordHash: string(hash)}
	s.credentials["2"] = &domain.Credential{UserID: "2", PasswordHash: string(hash)}

	s.accounts = []*domain.Account{
		{
			ID:            "1",
			AccountNumber: "1234567890123456",
			AccountName:   "김토스",
			BankName:      "토스뱅크",
			Balance:       1_500_000,
			IsMain:        true,
			Type:          "checking",
			CreatedAt:     t("2024-01-01T00:00:00Z"),
		},
		{
			ID:            "2",
			AccountNumber: "9876543210987654",
			AccountName:   "김토스",
			BankName:      "신한은행",
			Balance:       500_000,
			IsMain:        false,
			Type:          "savings",
			CreatedAt:     t("2024-01-02T00:00:00Z"),
		},
	}

	completed1 := t("2024-01-15T10:30:05Z")
	completed2 := t("2024-01-14T09:00:02Z")
	s.transactions = []domain.Transaction{
		{
			ID:             "1",
			Type:           "transfer",
			Amount:         -50_000,
			Description:    "이은행에게 송금",
			FromAccount:    "1234567890123456",
			ToAccount:      "9876543210987654",
			ToUser:         "이은행",
			Status:         "completed",
			CreatedAt:      t("2024-01-15T10:30:00Z"),
			CompletedAt:    &completed1,
			IdempotencyKey: "txn_1642248600000_abc123",
		},
		{
			ID:          "2",
			Type:        "deposit",
			Amount:      100_000,
			Description: "급여 입금",
			ToAccount:   "1234567890123456",
			Status:      "completed",
			CreatedAt:   t("2024-01-14T09:00:00Z"),
			CompletedAt: &completed2,
		},
	}

	s.notifications = []domain.Notification{
		{
			ID:        "1",
			Type:      "transfer",
			Title:     "송금 완료",
			Message:   "이은행님에게 50,000원이 송금되었습니다.",
			IsRead:    false,
			CreatedAt: t("2024-01-15T10:30:05Z"),
		},
		{
			ID:        "2",
			Type:      "deposit",
			Title:     "입금 알림",
			Message:   "계좌에 100,000원이 입금되었습니다.",
			IsRead:    true,
			CreatedAt: t("2024-01-14T09:00:02Z"),
		},
	}

	return s
}
