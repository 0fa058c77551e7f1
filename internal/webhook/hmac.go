package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// VerifySignature reports whether signature is the lowercase hex
// HMAC-SHA256 of body under secret. An empty signature or secret never
// verifies. The comparison runs in constant time.
func VerifySignature(signature string, body []byte, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	expected := ComputeSignature(body, secret)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// ComputeSignature returns the lowercase hex HMAC-SHA256 of body.
func ComputeSignature(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
