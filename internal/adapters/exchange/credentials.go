package exchange

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Credentials holds the exchange API key pair
type Credentials struct {
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
}

// Demo credentials used outside production when the secret store is
// unavailable (local development, CI).
var demoCredentials = Credentials{
	APIKey:    "demo-api-key",
	APISecret: "demo-api-secret",
}

// SecretProvider resolves a named secret into a JSON-decodable value
type SecretProvider interface {
	GetSecretJSON(ctx context.Context, key string, v interface{}) error
}

// ResolveCredentials fetches the exchange credentials once at startup.
// In production a retrieval failure aborts startup; elsewhere it falls
// back to fixed demo credentials so the service can run without the
// secret store.
func ResolveCredentials(ctx context.Context, provider SecretProvider, secretName, environment string, logger *zap.Logger) (Credentials, error) {
	var creds Credentials
	if err := provider.GetSecretJSON(ctx, secretName, &creds); err != nil {
		if environment == "production" {
			return Credentials{}, fmt.Errorf("resolve exchange credentials: %w", err)
		}
		logger.Warn("Secret retrieval failed, using demo exchange credentials",
			zap.String("secret", secretName),
			zap.String("environment", environment),
			zap.Error(err))
		return demoCredentials, nil
	}

	if creds.APIKey == "" || creds.APISecret == "" {
		if environment == "production" {
			return Credentials{}, fmt.Errorf("exchange credential secret %s is incomplete", secretName)
		}
		logger.Warn("Incomplete exchange credential secret, using demo credentials",
			zap.String("secret", secretName))
		return demoCredentials, nil
	}

	return creds, nil
}
