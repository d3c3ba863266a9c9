// Package channel holds the three outbound channel adapters: a mail-sink
// adapter wrapping the local mail client, a provider-API adapter talking
// to the WhatsApp Cloud API over HTTP, and a browser-fallback adapter that
// opens a web.whatsapp.com send URL instead of calling an API. All three
// satisfy the same uniform Adapter contract so the dispatcher never has
// to know which one it's driving.
package channel

import (
	"context"

	"github.com/broadwing/dispatch/internal/domain"
	"github.com/broadwing/dispatch/pkg/adaptererror"
)

// Result is what a Send call returns: either a provider/local message id
// on success, or a classified AdapterError on failure.
type Result struct {
	OK        bool
	MessageID string
	Err       *adaptererror.AdapterError
}

// SendOptions carries the per-send flags an adapter may care about.
// Draft only has meaning to the mail-sink adapter.
type SendOptions struct {
	Draft bool
}

// Adapter is the uniform contract every channel implementation satisfies.
type Adapter interface {
	Send(ctx context.Context, msg domain.RenderedMessage, opts SendOptions) Result
	TestConnection(ctx context.Context) (ok bool, details string)
	ValidateRecipientField(value string) bool
}
