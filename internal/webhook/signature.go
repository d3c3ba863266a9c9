package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// VerifySignature checks header against HMAC-SHA256(secret, body) using a
// constant-time comparison. header is expected in "sha256=<hex>" form; the
// prefix is optional on the way in. If secret is empty, verification is
// skipped and every payload is accepted (no secret configured). If secret
// is set but header is empty, the payload is rejected.
func VerifySignature(secret string, body []byte, header string) bool {
	if secret == "" {
		return true
	}
	if header == "" {
		return false
	}

	provided := strings.TrimPrefix(header, "sha256=")
	providedMAC, err := hex.DecodeString(provided)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expectedMAC := mac.Sum(nil)

	return hmac.Equal(expectedMAC, providedMAC)
}
