// Package client provides HTTP clients for talking to a remote minibank
// API, used when the wizard runs in a separate process from the server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/seojun-park/minibank-go/internal/domain"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("client")

// TransferClient submits transfers to POST /api/transfer. It implements
// port.TransferSubmitter.
//
// Unlike the read clients there is no automatic retry here: a transfer
// is a mutation, and retrying is the wizard's decision. The idempotency
// key makes a manual retry safe either way.
type TransferClient struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
}

// NewTransferClient creates a new TransferClient.
func NewTransferClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker) *TransferClient {
	return &TransferClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		cb:         cb,
	}
}

// SubmitTransfer posts the request and maps the API's error contract
// back to domain errors.
func (c *TransferClient) SubmitTransfer(ctx context.Context, req *domain.TransferRequest) (*domain.TransferResponse, error) {
	ctx, span := tracer.Start(ctx, "TransferClient.SubmitTransfer")
	defer span.End()
	span.SetAttributes(
		attribute.String("transfer.from_account", req.FromAccountID),
		attribute.Int64("transfer.amount", req.Amount),
	)

	result, err := c.cb.Execute(func() (any, error) {
		body, err := json.Marshal(req)
		if err != nil {
			return nil, err
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/transfer", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK:
			var out domain.TransferResponse
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				return nil, err
			}
			return &out, nil
		case http.StatusConflict:
			return nil, &domain.ErrDuplicate{Key: req.IdempotencyKey}
		case http.StatusNotFound:
			return nil, &domain.ErrNotFound{Resource: "account", ID: req.FromAccountID}
		case http.StatusBadRequest:
			return nil, decodeBadRequest(resp, req)
		default:
			return nil, fmt.Errorf("transfer API returned status %d", resp.StatusCode)
		}
	})
	if err != nil {
		// Keep processor rejections typed; wrap only transport failures.
		switch err.(type) {
		case *domain.ErrDuplicate, *domain.ErrNotFound, *domain.ErrInsufficientFunds, *domain.ErrValidation:
			return nil, err
		}
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, &domain.ErrCircuitOpen{Service: "transfer"}
		}
		return nil, &domain.ErrExternalService{Service: "transfer", Err: err}
	}

	return result.(*domain.TransferResponse), nil
}

// decodeBadRequest distinguishes insufficient balance from other 400s.
func decodeBadRequest(resp *http.Response, req *domain.TransferRequest) error {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error == "Insufficient balance" {
		return &domain.ErrInsufficientFunds{Required: req.Amount}
	}
	return &domain.ErrValidation{Field: "request", Message: body.Error}
}
