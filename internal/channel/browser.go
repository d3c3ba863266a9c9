package channel

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sync"
	"time"

	"github.com/broadwing/dispatch/internal/domain"
	"github.com/broadwing/dispatch/pkg/adaptererror"
)

// DefaultMinInterSendDelay is the floor between two browser-fallback
// sends absent an explicit configuration.
const DefaultMinInterSendDelay = 30 * time.Second

var digitsOnlyRegex = regexp.MustCompile(`^\d{8,15}$`)
var nonDigitRegex = regexp.MustCompile(`\D`)

// Launcher opens url in whatever the host platform considers "the
// browser". Swappable for tests and for a headless deployment that has
// no browser to launch at all.
type Launcher func(url string) error

// BrowserFallbackAdapter opens a WhatsApp Web compose URL instead of
// calling an API. There is no delivery tracking: success means the URL
// was launched, and the returned message id is synthetic. Rate limiting
// here is self-imposed (a daily cap plus a minimum inter-send delay) and
// independent of the quota manager.
type BrowserFallbackAdapter struct {
	Launch          Launcher
	DailyCap        int
	MinInterSendGap time.Duration

	mu         sync.Mutex
	sentToday  int
	dayStarted time.Time
	lastSentAt time.Time
	idCounter  int64
}

func NewBrowserFallbackAdapter(launch Launcher, dailyCap int, minInterSendGap time.Duration) *BrowserFallbackAdapter {
	if minInterSendGap <= 0 {
		minInterSendGap = DefaultMinInterSendDelay
	}
	return &BrowserFallbackAdapter{Launch: launch, DailyCap: dailyCap, MinInterSendGap: minInterSendGap}
}

func (a *BrowserFallbackAdapter) Send(ctx context.Context, msg domain.RenderedMessage, opts SendOptions) Result {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now().UTC()
	if now.Sub(a.dayStarted) >= 24*time.Hour {
		a.sentToday = 0
		a.dayStarted = now
	}

	if a.DailyCap > 0 && a.sentToday >= a.DailyCap {
		return Result{Err: adaptererror.New(adaptererror.CodeRateLimited, "browser-fallback daily send cap reached", nil)}
	}
	if !a.lastSentAt.IsZero() && now.Sub(a.lastSentAt) < a.MinInterSendGap {
		return Result{Err: adaptererror.New(adaptererror.CodeRateLimited, "browser-fallback minimum inter-send delay not elapsed", nil)}
	}

	digits := nonDigitRegex.ReplaceAllString(msg.RecipientPhone, "")
	composeURL := fmt.Sprintf("https://web.whatsapp.com/send?phone=%s&text=%s", digits, url.QueryEscape(msg.Body))
	if a.Launch != nil {
		if err := a.Launch(composeURL); err != nil {
			return Result{Err: adaptererror.New(adaptererror.CodeTransient, "failed to launch browser compose URL", err)}
		}
	}

	a.sentToday++
	a.lastSentAt = now
	a.idCounter++
	return Result{OK: true, MessageID: fmt.Sprintf("browser-%d-%d", now.UnixNano(), a.idCounter)}
}

func (a *BrowserFallbackAdapter) TestConnection(ctx context.Context) (bool, string) {
	if a.Launch == nil {
		return false, "no browser launcher configured"
	}
	return true, "browser-fallback adapter ready"
}

func (a *BrowserFallbackAdapter) ValidateRecipientField(value string) bool {
	return digitsOnlyRegex.MatchString(value)
}
