// Package exchange implements the signed HTTP client for the bitcoin
// trading venue.
package exchange

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/satstack-service/satstack_service/internal/domain/entities"
)

const (
	defaultTimeout = 30 * time.Second

	purchasePath = "/v1/purchases"
)

// Config represents exchange API configuration
type Config struct {
	BaseURL     string
	Environment string
	Timeout     time.Duration
}

// Client is a signed HTTP client for the exchange's purchase API. It is
// constructed once at startup and injected into the executor; it holds no
// per-request state and is safe for concurrent use.
type Client struct {
	config         Config
	credentials    Credentials
	httpClient     *http.Client
	circuitBreaker *gobreaker.CircuitBreaker
	logger         *zap.Logger
}

// NewClient creates a new exchange API client
func NewClient(config Config, credentials Credentials, logger *zap.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	httpClient := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	st := gobreaker.Settings{
		Name:        "ExchangeAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &Client{
		config:         config,
		credentials:    credentials,
		httpClient:     httpClient,
		circuitBreaker: gobreaker.NewCircuitBreaker(st),
		logger:         logger,
	}
}

type purchaseRequest struct {
	UserID          string `json:"user_id"`
	Amount          string `json:"amount"`
	Asset           string `json:"asset"`
	SourceOfFunds   string `json:"source_of_funds"`
	ClientRequestID string `json:"client_request_id"`
}

type purchaseResponse struct {
	OrderID       string          `json:"order_id"`
	BitcoinAmount decimal.Decimal `json:"btc_amount"`
	ExchangeRate  decimal.Decimal `json:"exchange_rate"`
	Fees          decimal.Decimal `json:"fees"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// Purchase executes a market buy. The idempotency key is forwarded as the
// client request ID, so a repeated call with the same key has no duplicate
// side effect at the venue. Every failure mode, transport or business, is
// folded into the returned PurchaseResult; the caller can rely on always
// getting a structured outcome.
func (c *Client) Purchase(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, sourceOfFunds string, idempotencyKey uuid.UUID) *entities.PurchaseResult {
	req := purchaseRequest{
		UserID:          userID.String(),
		Amount:          amount.String(),
		Asset:           "BTC",
		SourceOfFunds:   sourceOfFunds,
		ClientRequestID: idempotencyKey.String(),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return c.failureResult(idempotencyKey, fmt.Sprintf("encode purchase request: %v", err), nil)
	}

	result, cbErr := c.circuitBreaker.Execute(func() (interface{}, error) {
		return c.doPurchase(ctx, body, idempotencyKey)
	})
	if cbErr != nil {
		c.logger.Error("Purchase request failed",
			zap.String("user_id", userID.String()),
			zap.String("client_request_id", idempotencyKey.String()),
			zap.Error(cbErr))
		// Server errors carry a structured result alongside the breaker error.
		if pr, ok := result.(*entities.PurchaseResult); ok && pr != nil {
			return pr
		}
		return c.failureResult(idempotencyKey, cbErr.Error(), nil)
	}

	return result.(*entities.PurchaseResult)
}

// doPurchase performs one signed HTTP round trip. It returns an error only
// for transport-level failures so the circuit breaker counts them; HTTP
// error statuses are returned as failed results without tripping the
// breaker for client-side rejections.
func (c *Client) doPurchase(ctx context.Context, body []byte, idempotencyKey uuid.UUID) (*entities.PurchaseResult, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	signature := sign(c.credentials.APISecret, timestamp, http.MethodPost, purchasePath, string(body))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+purchasePath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create purchase request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(headerAPIKey, c.credentials.APIKey)
	httpReq.Header.Set(headerTimestamp, timestamp)
	httpReq.Header.Set(headerSignature, signature)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("purchase request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read purchase response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp errorResponse
		message := fmt.Sprintf("exchange returned status %d", resp.StatusCode)
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Message != "" {
			message = errResp.Message
		}

		details := &entities.PurchaseErrorDetails{
			Timestamp:  time.Now(),
			RequestID:  idempotencyKey.String(),
			StatusCode: resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
			Body:       string(respBody),
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			// Count server errors toward the breaker but still hand the
			// caller a structured result.
			return c.failureResult(idempotencyKey, message, details), fmt.Errorf("exchange server error: %d", resp.StatusCode)
		}
		return c.failureResult(idempotencyKey, message, details), nil
	}

	var parsed purchaseResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode purchase response: %w", err)
	}

	orderID := parsed.OrderID
	return &entities.PurchaseResult{
		Success:         true,
		ExchangeOrderID: &orderID,
		BitcoinAmount:   parsed.BitcoinAmount,
		ExchangeRate:    parsed.ExchangeRate,
		Fees:            parsed.Fees,
	}, nil
}

func (c *Client) failureResult(idempotencyKey uuid.UUID, message string, details *entities.PurchaseErrorDetails) *entities.PurchaseResult {
	if details == nil {
		details = &entities.PurchaseErrorDetails{
			Timestamp: time.Now(),
			RequestID: idempotencyKey.String(),
		}
	}
	return &entities.PurchaseResult{
		Success:      false,
		ErrorMessage: message,
		ErrorDetails: details,
	}
}
