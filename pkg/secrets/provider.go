// Package secrets resolves runtime credentials from a secret store.
package secrets

import (
	"context"
	"time"
)

// Provider retrieves named secrets
type Provider interface {
	GetSecret(ctx context.Context, key string) (string, error)
	GetSecretJSON(ctx context.Context, key string, v interface{}) error
}

type cachedSecret struct {
	value     string
	expiresAt time.Time
}
