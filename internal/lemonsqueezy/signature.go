package lemonsqueezy

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

var (
	ErrSecretMissing    = errors.New("webhook secret not configured")
	ErrInvalidSignature = errors.New("invalid signature")
)

// VerifySignature checks the X-Signature header value against the HMAC-SHA256
// of the raw request body. The header carries the digest hex-encoded; a header
// that is empty or not valid hex is rejected the same way as a mismatch.
func VerifySignature(payload []byte, signature, secret string) error {
	if strings.TrimSpace(secret) == "" {
		return ErrSecretMissing
	}

	signature = strings.TrimSpace(signature)
	if signature == "" {
		return ErrInvalidSignature
	}

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	expected := mac.Sum(nil)

	if !hmac.Equal(provided, expected) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign returns the hex-encoded HMAC-SHA256 digest of payload. Used by tests
// and by tooling that replays captured webhook bodies.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
