package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/nyaruka/phonenumbers"

	"github.com/broadwing/dispatch/config"
	"github.com/broadwing/dispatch/internal/domain"
	"github.com/broadwing/dispatch/pkg/adaptererror"
)

const (
	defaultMaxAttempts  = 3
	defaultBackoffBase  = 1 * time.Second
	defaultRetryAfterCap = 60 * time.Second
	backoffJitterFrac   = 0.20
)

// ProviderAPIAdapter posts rendered WhatsApp messages to the provider's
// Cloud API, honoring Retry-After and retrying retriable failures with
// exponential backoff plus jitter.
type ProviderAPIAdapter struct {
	HTTPClient    *http.Client
	BaseURL       string
	APIVersion    string
	PhoneNumberID string
	BusinessID    string
	AccessToken   string

	MaxAttempts   int
	BackoffBase   time.Duration
	RetryAfterCap time.Duration
}

// NewProviderAPIAdapter builds an adapter from the WhatsApp configuration
// block, sharing one connection-pooled client across every send.
func NewProviderAPIAdapter(cfg config.WhatsAppConfig) *ProviderAPIAdapter {
	return &ProviderAPIAdapter{
		HTTPClient:    &http.Client{Timeout: 30 * time.Second},
		BaseURL:       cfg.APIBaseURL,
		APIVersion:    cfg.APIVersion,
		PhoneNumberID: cfg.PhoneNumberID,
		BusinessID:    cfg.BusinessID,
		AccessToken:   cfg.AccessToken,
	}
}

func (a *ProviderAPIAdapter) maxAttempts() int {
	if a.MaxAttempts > 0 {
		return a.MaxAttempts
	}
	return defaultMaxAttempts
}

func (a *ProviderAPIAdapter) backoffBase() time.Duration {
	if a.BackoffBase > 0 {
		return a.BackoffBase
	}
	return defaultBackoffBase
}

func (a *ProviderAPIAdapter) retryAfterCap() time.Duration {
	if a.RetryAfterCap > 0 {
		return a.RetryAfterCap
	}
	return defaultRetryAfterCap
}

func (a *ProviderAPIAdapter) messagesURL() string {
	return fmt.Sprintf("%s/%s/%s/messages", a.BaseURL, a.APIVersion, a.PhoneNumberID)
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Send posts msg as a WhatsApp text message, retrying retriable failures
// up to MaxAttempts times with exponential backoff (jittered +/-20%) and
// honoring a Retry-After header on 429s up to RetryAfterCap.
func (a *ProviderAPIAdapter) Send(ctx context.Context, msg domain.RenderedMessage, opts SendOptions) Result {
	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                msg.RecipientPhone,
		"type":              "text",
		"text":              map[string]string{"body": msg.Body},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{Err: adaptererror.New(adaptererror.CodeValidation, "failed to encode message payload", err)}
	}

	var lastErr *adaptererror.AdapterError
	for attempt := 1; attempt <= a.maxAttempts(); attempt++ {
		result, classified, retryAfter := a.attempt(ctx, body)
		if classified == nil {
			return result
		}
		lastErr = classified

		if !classified.Retriable || attempt == a.maxAttempts() {
			break
		}

		if classified.Code == adaptererror.CodeRateLimited && retryAfter > 0 {
			wait := time.Duration(retryAfter) * time.Second
			if wait > a.retryAfterCap() {
				break // caller should treat this as retriable and requeue later
			}
			if !sleepCtx(ctx, wait) {
				break
			}
			continue
		}

		if !sleepCtx(ctx, a.jitteredBackoff(attempt)) {
			break
		}
	}

	return Result{Err: lastErr}
}

// attempt makes one HTTP round trip, returning a success Result with a
// nil classified error, or a nil Result with the classified failure and
// (for a 429) the Retry-After value in seconds.
func (a *ProviderAPIAdapter) attempt(ctx context.Context, body []byte) (Result, *adaptererror.AdapterError, int) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.messagesURL(), bytes.NewReader(body))
	if err != nil {
		return Result{}, adaptererror.New(adaptererror.CodeUnknown, "failed to build request", err), 0
	}
	req.Header.Set("Authorization", "Bearer "+a.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return Result{}, adaptererror.New(adaptererror.CodeTransient, "request failed", err), 0
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		var parsed sendResponse
		if err := json.Unmarshal(respBody, &parsed); err == nil && len(parsed.Messages) > 0 {
			return Result{OK: true, MessageID: parsed.Messages[0].ID}, nil, 0
		}
		return Result{}, adaptererror.New(adaptererror.CodeUnknown, "success response missing message id", nil), 0
	}

	retryAfter, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
	return Result{}, adaptererror.FromHTTPStatus(resp.StatusCode, retryAfter, string(respBody)), retryAfter
}

func (a *ProviderAPIAdapter) jitteredBackoff(attempt int) time.Duration {
	base := a.backoffBase()
	delay := base * time.Duration(1<<uint(attempt-1))
	jitter := float64(delay) * backoffJitterFrac * (2*rand.Float64() - 1)
	return delay + time.Duration(jitter)
}

// sleepCtx waits for d or ctx cancellation, returning false if canceled
// first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// TestConnection issues a lightweight authenticated GET against the
// phone number resource to confirm the token and phone number id work.
func (a *ProviderAPIAdapter) TestConnection(ctx context.Context) (bool, string) {
	url := fmt.Sprintf("%s/%s/%s", a.BaseURL, a.APIVersion, a.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err.Error()
	}
	req.Header.Set("Authorization", "Bearer "+a.AccessToken)

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return false, err.Error()
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return true, "provider API reachable"
	}
	body, _ := io.ReadAll(resp.Body)
	return false, fmt.Sprintf("provider API returned %d: %s", resp.StatusCode, string(body))
}

func (a *ProviderAPIAdapter) ValidateRecipientField(value string) bool {
	num, err := phonenumbers.Parse(value, "")
	if err != nil {
		return false
	}
	return phonenumbers.IsValidNumber(num)
}
