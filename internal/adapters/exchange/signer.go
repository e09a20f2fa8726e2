package exchange

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Request signing headers expected by the exchange API
const (
	headerAPIKey    = "X-API-Key"
	headerTimestamp = "X-API-Timestamp"
	headerSignature = "X-API-Signature"
)

// sign computes the request signature: hex-encoded
// HMAC-SHA256(secret, timestamp + method + path + body).
func sign(secret, timestamp, method, path, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + method + path + body))
	return hex.EncodeToString(mac.Sum(nil))
}
