// Package wizard implements the four-step transfer flow: form,
// confirmation, success, error. It owns client-side validation,
// idempotency key generation, and single-submission of the confirmed
// request, so any frontend driving it gets the same guarantees.
package wizard

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/seojun-park/minibank-go/internal/domain"
	"github.com/seojun-park/minibank-go/internal/infra/resilience"
	"github.com/seojun-park/minibank-go/internal/port"

	"go.uber.org/zap"
)

// State is the wizard's current step.
type State string

const (
	StateForm    State = "form"
	StateConfirm State = "confirm"
	StateSuccess State = "success"
	StateError   State = "error"
)

// Views refreshed after a successful transfer.
var invalidatedViews = []string{"accounts", "transactions", "notifications"}

// ErrSubmitInFlight is returned when Submit is called while a previous
// submission is still running.
var ErrSubmitInFlight = errors.New("transfer submission already in flight")

// Form holds the user's input on the first step.
type Form struct {
	FromAccountID   string
	ToAccountNumber string
	ToUserName      string
	Amount          int64
	Description     string
}

// Wizard is a single transfer flow. Safe for concurrent use.
type Wizard struct {
	mu sync.Mutex

	state       State
	form        Form
	accounts    []domain.Account
	fieldErrors map[string]string

	// pending is the immutable request built at confirmation time.
	// Its idempotency key stays fixed across Submit retries, so a
	// resubmission of the same confirmation can never apply twice.
	pending *domain.TransferRequest

	result  *domain.TransferResponse
	message string

	submitter  port.TransferSubmitter
	gate       *resilience.Bulkhead
	invalidate func(view string)
	logger     *zap.Logger
}

// New creates a wizard in the form state. accounts are the source
// accounts offered for selection.
func New(submitter port.TransferSubmitter, accounts []domain.Account, logger *zap.Logger) *Wizard {
	return &Wizard{
		state:       StateForm,
		accounts:    accounts,
		fieldErrors: map[string]string{},
		submitter:   submitter,
		gate:        resilience.NewBulkhead(1),
		invalidate:  func(string) {},
		logger:      logger,
	}
}

// OnInvalidate registers a callback fired once per stale view after a
// successful transfer.
func (w *Wizard) OnInvalidate(fn func(view string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.invalidate = fn
}

// State returns the current step.
func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Form returns the current form values.
func (w *Wizard) Form() Form {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.form
}

// SetForm updates the form values. Only valid on the form step.
func (w *Wizard) SetForm(f Form) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateForm {
		return
	}
	w.form = f
}

// FieldErrors returns validation errors from the last Confirm attempt.
func (w *Wizard) FieldErrors() map[string]string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]string, len(w.fieldErrors))
	for k, v := range w.fieldErrors {
		out[k] = v
	}
	return out
}

// Result returns the transfer response after a successful submission.
func (w *Wizard) Result() *domain.TransferResponse {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.result
}

// Message returns the user-facing error message on the error step.
func (w *Wizard) Message() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.message
}

// PreviewBalance returns the selected account's balance after the
// transfer would apply. ok is false when no valid account is selected.
func (w *Wizard) PreviewBalance() (balance int64, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	acc := w.findAccount(w.form.FromAccountID)
	if acc == nil {
		return 0, false
	}
	return acc.Balance - w.form.Amount, true
}

// Confirm validates the form and moves to the confirmation step.
// A fresh idempotency key is generated here and reused for every
// Submit of this confirmation; re-confirming generates a new one.
func (w *Wizard) Confirm() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateForm {
		return fmt.Errorf("confirm: not on form step (state=%s)", w.state)
	}

	w.fieldErrors = w.validate()
	if len(w.fieldErrors) > 0 {
		return &domain.ErrValidation{Field: firstKey(w.fieldErrors), Message: "입력값을 확인해주세요"}
	}

	w.pending = &domain.TransferRequest{
		FromAccountID:   w.form.FromAccountID,
		ToAccountNumber: w.form.ToAccountNumber,
		ToUserName:      w.form.ToUserName,
		Amount:          w.form.Amount,
		Description:     w.form.Description,
		IdempotencyKey:  newIdempotencyKey(),
	}
	w.state = StateConfirm
	return nil
}

// Back returns from the confirmation step to the form, discarding the
// pending request and its key.
func (w *Wizard) Back() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateConfirm {
		return
	}
	w.pending = nil
	w.state = StateForm
}

// Submit sends the confirmed request. Exactly one submission can be in
// flight; concurrent calls fail with ErrSubmitInFlight. A transport
// retry of the same confirmation reuses the pending key, so the server
// can deduplicate.
func (w *Wizard) Submit(ctx context.Context) (*domain.TransferResponse, error) {
	w.mu.Lock()
	if w.state != StateConfirm {
		w.mu.Unlock()
		return nil, fmt.Errorf("submit: not on confirm step (state=%s)", w.state)
	}
	req := *w.pending
	w.mu.Unlock()

	if !w.gate.TryAcquire() {
		return nil, ErrSubmitInFlight
	}
	defer w.gate.Release()

	resp, err := w.submitter.SubmitTransfer(ctx, &req)

	w.mu.Lock()
	defer w.mu.Unlock()

	if err != nil {
		w.message = errorMessage(err)
		w.state = StateError
		w.logger.Warn("wizard: transfer failed",
			zap.String("idempotency_key", req.IdempotencyKey),
			zap.Error(err),
		)
		return nil, err
	}

	w.result = resp
	w.state = StateSuccess
	w.logger.Info("wizard: transfer succeeded",
		zap.String("transaction_id", resp.TransactionID),
		zap.String("idempotency_key", resp.IdempotencyKey),
	)

	for _, view := range invalidatedViews {
		w.invalidate(view)
	}
	return resp, nil
}

// Retry returns from the error step to the form, keeping the entered
// values so the user can adjust and re-confirm.
func (w *Wizard) Retry() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateError {
		return
	}
	w.pending = nil
	w.message = ""
	w.state = StateForm
}

// Close resets the wizard to an empty form.
func (w *Wizard) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.form = Form{}
	w.fieldErrors = map[string]string{}
	w.pending = nil
	w.result = nil
	w.message = ""
	w.state = StateForm
}

// validate must be called with the lock held.
func (w *Wizard) validate() map[string]string {
	errs := map[string]string{}

	acc := w.findAccount(w.form.FromAccountID)
	if w.form.FromAccountID == "" || acc == nil {
		errs["fromAccountId"] = "출금 계좌를 선택해주세요"
	}
	if w.form.ToAccountNumber == "" {
		errs["toAccountNumber"] = "받는 분 계좌번호를 입력해주세요"
	}
	if w.form.ToUserName == "" {
		errs["toUserName"] = "받는 분 성함을 입력해주세요"
	}
	if w.form.Amount <= 0 {
		errs["amount"] = "송금 금액을 입력해주세요"
	} else if acc != nil && w.form.Amount > acc.Balance {
		errs["amount"] = "잔액이 부족합니다"
	}
	return errs
}

// findAccount must be called with the lock held.
func (w *Wizard) findAccount(id string) *domain.Account {
	for i := range w.accounts {
		if w.accounts[i].ID == id {
			return &w.accounts[i]
		}
	}
	return nil
}

// errorMessage maps processor rejections to the messages shown on the
// error step.
func errorMessage(err error) string {
	var duplicate *domain.ErrDuplicate
	var notFound *domain.ErrNotFound
	var insufficient *domain.ErrInsufficientFunds

	switch {
	case errors.As(err, &duplicate):
		return "Duplicate transaction request"
	case errors.As(err, &notFound):
		return "From account not found"
	case errors.As(err, &insufficient):
		return "Insufficient balance"
	default:
		return "송금에 실패했습니다. 다시 시도해주세요."
	}
}

const keyAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// newIdempotencyKey builds a key like "txn_1705312205000_4fz09k1qm".
func newIdempotencyKey() string {
	suffix := make([]byte, 9)
	for i := range suffix {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(keyAlphabet))))
		if err != nil {
			// crypto/rand failing means the process is in serious trouble
			panic("idempotency key generation failed: " + err.Error())
		}
		suffix[i] = keyAlphabet[n.Int64()]
	}
	return fmt.Sprintf("txn_%d_%s", time.Now().UnixMilli(), suffix)
}

func firstKey(m map[string]string) string {
	for k := range m {
		return k
	}
	return ""
}
