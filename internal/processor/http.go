// internal/processor/http.go
package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alphapay/billing-dispatcher/internal/storage/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Client talks to the payment processor over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.Named("processor"),
	}
}

type submitRequest struct {
	SrcBankAccount string          `json:"src_bank_account"`
	DstBankAccount string          `json:"dst_bank_account"`
	Amount         decimal.Decimal `json:"amount"`
	Direction      string          `json:"direction"`
}

type submitResponse struct {
	TransactionID string `json:"transaction_id"`
	Message       string `json:"message"`
}

func (c *Client) Submit(ctx context.Context, srcAccount, dstAccount string, amount decimal.Decimal, direction models.TransactionDirection) (string, error) {
	body, err := json.Marshal(submitRequest{
		SrcBankAccount: srcAccount,
		DstBankAccount: dstAccount,
		Amount:         amount,
		Direction:      string(direction),
	})
	if err != nil {
		return "", fmt.Errorf("marshal submit request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transactions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &Error{Op: "submit", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn("Processor rejected transaction",
			zap.Int("status_code", resp.StatusCode),
			zap.String("dst_account", dstAccount))
		return "", &Error{Op: "submit", Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))}
	}

	var parsed submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", &Error{Op: "submit", Err: fmt.Errorf("decode response: %w", err)}
	}
	if parsed.TransactionID == "" {
		return "", &Error{Op: "submit", Err: fmt.Errorf("processor returned no transaction id")}
	}

	return parsed.TransactionID, nil
}

var _ Processor = (*Client)(nil)
