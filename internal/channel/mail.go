package channel

import (
	"context"

	"github.com/asaskevich/govalidator"

	"github.com/broadwing/dispatch/internal/domain"
	"github.com/broadwing/dispatch/pkg/adaptererror"
	"github.com/broadwing/dispatch/pkg/mailer"
)

// MailAdapter hands rendered mail-channel messages to an opaque local
// mail client. It does not track real provider-side delivery: success
// means the client accepted the message for send or draft, and C5
// records status "sent" only — it never sees "delivered" or "read" for
// this channel.
type MailAdapter struct {
	Client mailer.Mailer
}

func NewMailAdapter(client mailer.Mailer) *MailAdapter {
	return &MailAdapter{Client: client}
}

func (a *MailAdapter) Send(ctx context.Context, msg domain.RenderedMessage, opts SendOptions) Result {
	id, err := a.Client.Send(msg.Subject, msg.Body, msg.RecipientEmail, opts.Draft)
	if err != nil {
		return Result{Err: adaptererror.FromMailClientError(err.Error(), err)}
	}
	return Result{OK: true, MessageID: id}
}

// TestConnection has nothing to dial for an opaque local client; it
// reports whether the adapter is wired up at all.
func (a *MailAdapter) TestConnection(ctx context.Context) (bool, string) {
	if a.Client == nil {
		return false, "no mail client configured"
	}
	return true, "mail-sink adapter ready"
}

func (a *MailAdapter) ValidateRecipientField(value string) bool {
	return govalidator.IsEmail(value)
}
