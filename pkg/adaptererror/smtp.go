package adaptererror

import "strings"

// Local mail-client error classification.
//
// RECIPIENT-LEVEL (5xx permanent failures, mapped to validation - not
// retriable):
// - 550/551/552/553: mailbox unavailable, not local, over quota, bad name
//
// CLIENT/TRANSPORT-LEVEL (4xx temporary failures, connection issues,
// mapped to transient - retriable):
// - 421/450/451/452, connection resets, timeouts, TLS handshake failures

var recipientPatterns = []string{
	"550 ", "550:", "551 ", "551:", "552 ", "552:", "553 ", "553:",
	"5.1.1", "5.1.2", "5.1.3", "5.2.1", "5.2.2", "5.7.1",
	"mailbox unavailable", "mailbox not found", "user unknown", "no such user",
	"recipient rejected", "does not exist", "mailbox full", "over quota",
}

var transportPatterns = []string{
	"421 ", "421:", "450 ", "450:", "451 ", "451:", "452 ", "452:", "4.7.1",
	"connection refused", "connection reset", "connection timeout", "timed out",
	"timeout", "tls handshake", "tls error", "ssl error",
	"authentication failed", "auth failed", "login failed",
	"service unavailable", "try again later", "temporary failure",
	"greylisted", "greylist",
}

func containsAny(errStr string, patterns []string) bool {
	low := strings.ToLower(errStr)
	for _, p := range patterns {
		if strings.Contains(low, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// FromMailClientError classifies an opaque local-mail-client failure string.
func FromMailClientError(errStr string, original error) *AdapterError {
	if containsAny(errStr, recipientPatterns) {
		return &AdapterError{Code: CodeValidation, Message: errStr, Retriable: false, Original: original}
	}
	if containsAny(errStr, transportPatterns) {
		return &AdapterError{Code: CodeTransient, Message: errStr, Retriable: true, Original: original}
	}
	if status := ExtractHTTPStatus(errStr); status > 0 {
		return FromHTTPStatus(status, 0, errStr)
	}
	return &AdapterError{Code: CodeUnknown, Message: errStr, Retriable: true, Original: original}
}
