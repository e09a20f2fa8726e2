package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(baseURL string) *Client {
	return NewClient(Config{
		BaseURL:     baseURL,
		Environment: "test",
		Timeout:     5 * time.Second,
	}, Credentials{APIKey: "test-key", APISecret: "test-secret"}, zap.NewNop())
}

func TestPurchase_SignsRequest(t *testing.T) {
	var gotHeaders http.Header
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		json.NewEncoder(w).Encode(map[string]string{
			"order_id":      "ord-1",
			"btc_amount":    "0.001",
			"exchange_rate": "65000",
			"fees":          "0.49",
		})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	result := client.Purchase(context.Background(), uuid.New(), decimal.NewFromInt(100), "ACH", uuid.New())
	require.True(t, result.Success)

	assert.Equal(t, "test-key", gotHeaders.Get("X-API-Key"))
	timestamp := gotHeaders.Get("X-API-Timestamp")
	require.NotEmpty(t, timestamp)

	mac := hmac.New(sha256.New, []byte("test-secret"))
	mac.Write([]byte(timestamp + http.MethodPost + "/v1/purchases" + string(gotBody)))
	expected := hex.EncodeToString(mac.Sum(nil))
	assert.Equal(t, expected, gotHeaders.Get("X-API-Signature"))
}

func TestPurchase_ParsesSuccessResponse(t *testing.T) {
	userID := uuid.New()
	requestID := uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, userID.String(), req["user_id"])
		assert.Equal(t, "100", req["amount"])
		assert.Equal(t, "BTC", req["asset"])
		assert.Equal(t, "ACH", req["source_of_funds"])
		assert.Equal(t, requestID.String(), req["client_request_id"])

		json.NewEncoder(w).Encode(map[string]string{
			"order_id":      "ord-42",
			"btc_amount":    "0.00153846",
			"exchange_rate": "65000",
			"fees":          "0.49",
		})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	result := client.Purchase(context.Background(), userID, decimal.NewFromInt(100), "ACH", requestID)

	require.True(t, result.Success)
	require.NotNil(t, result.ExchangeOrderID)
	assert.Equal(t, "ord-42", *result.ExchangeOrderID)
	assert.True(t, result.BitcoinAmount.Equal(decimal.RequireFromString("0.00153846")))
	assert.True(t, result.ExchangeRate.Equal(decimal.NewFromInt(65000)))
	assert.True(t, result.Fees.Equal(decimal.RequireFromString("0.49")))
}

func TestPurchase_ClientErrorBecomesFailedResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"message": "insufficient funds"})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	result := client.Purchase(context.Background(), uuid.New(), decimal.NewFromInt(100), "ACH", uuid.New())

	require.False(t, result.Success)
	assert.Equal(t, "insufficient funds", result.ErrorMessage)
	require.NotNil(t, result.ErrorDetails)
	assert.Equal(t, http.StatusUnprocessableEntity, result.ErrorDetails.StatusCode)
}

func TestPurchase_ServerErrorKeepsDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, "upstream venue down")
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	result := client.Purchase(context.Background(), uuid.New(), decimal.NewFromInt(100), "ACH", uuid.New())

	require.False(t, result.Success)
	require.NotNil(t, result.ErrorDetails)
	assert.Equal(t, http.StatusBadGateway, result.ErrorDetails.StatusCode)
	assert.Equal(t, "upstream venue down", result.ErrorDetails.Body)
}

func TestPurchase_TransportFailureBecomesFailedResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused

	client := newTestClient(srv.URL)
	result := client.Purchase(context.Background(), uuid.New(), decimal.NewFromInt(100), "ACH", uuid.New())

	require.False(t, result.Success)
	assert.NotEmpty(t, result.ErrorMessage)
}

type stubSecretProvider struct {
	creds Credentials
	err   error
}

func (s *stubSecretProvider) GetSecretJSON(ctx context.Context, key string, v interface{}) error {
	if s.err != nil {
		return s.err
	}
	*(v.(*Credentials)) = s.creds
	return nil
}

func TestResolveCredentials_FromSecretStore(t *testing.T) {
	provider := &stubSecretProvider{creds: Credentials{APIKey: "live-key", APISecret: "live-secret"}}

	creds, err := ResolveCredentials(context.Background(), provider, "exchange-credentials", "production", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "live-key", creds.APIKey)
	assert.Equal(t, "live-secret", creds.APISecret)
}

func TestResolveCredentials_ProductionFailureAborts(t *testing.T) {
	provider := &stubSecretProvider{err: errors.New("access denied")}

	_, err := ResolveCredentials(context.Background(), provider, "exchange-credentials", "production", zap.NewNop())
	require.Error(t, err)
}

func TestResolveCredentials_DemoFallbackOutsideProduction(t *testing.T) {
	provider := &stubSecretProvider{err: errors.New("no secret store")}

	creds, err := ResolveCredentials(context.Background(), provider, "exchange-credentials", "development", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, demoCredentials, creds)
}

func TestResolveCredentials_IncompleteSecret(t *testing.T) {
	provider := &stubSecretProvider{creds: Credentials{APIKey: "only-key"}}

	_, err := ResolveCredentials(context.Background(), provider, "exchange-credentials", "production", zap.NewNop())
	require.Error(t, err)

	creds, err := ResolveCredentials(context.Background(), provider, "exchange-credentials", "development", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, demoCredentials, creds)
}
