package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/seojun-park/minibank-go/internal/domain"
	"github.com/seojun-park/minibank-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
)

// AccountsClient reads accounts from GET /api/accounts. Reads are
// idempotent, so this client retries with backoff.
type AccountsClient struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
}

// NewAccountsClient creates a new AccountsClient.
func NewAccountsClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *AccountsClient {
	return &AccountsClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		cb:         cb,
		cfg:        cfg,
	}
}

// ListAccounts fetches all accounts with retry, circuit breaker, and tracing.
func (c *AccountsClient) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	ctx, span := tracer.Start(ctx, "AccountsClient.ListAccounts")
	defer span.End()

	var envelope domain.APIResponse[[]domain.Account]

	result, err := c.cb.Execute(func() (any, error) {
		innerErr := resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/accounts", nil)
			if err != nil {
				return err
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("accounts API returned status %d", resp.StatusCode)
			}

			return json.NewDecoder(resp.Body).Decode(&envelope)
		})
		if innerErr != nil {
			return nil, innerErr
		}
		return envelope.Data, nil
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "accounts", Err: err}
	}

	return result.([]domain.Account), nil
}
