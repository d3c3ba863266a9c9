// Package webhook turns a provider's delivery-status callback into calls
// against the delivery store and the WhatsApp template lifecycle, with
// signature verification and event deduplication ahead of either.
package webhook

import (
	"context"
	"time"

	"github.com/tidwall/gjson"

	"github.com/broadwing/dispatch/internal/domain"
	"github.com/broadwing/dispatch/pkg/logger"
)

// StatusUpdater is the C5 surface the receiver drives; *delivery.Store
// satisfies it directly.
type StatusUpdater interface {
	ApplyStatus(ctx context.Context, id string, to domain.DeliveryStatus, occurredAt time.Time, providerID, errMsg string) (*domain.DeliveryRecord, error)
}

// TemplateStatusUpdater is the C9 surface a message_template_status_update
// change is forwarded to.
type TemplateStatusUpdater interface {
	HandleStatusUpdate(ctx context.Context, name, language, event, reason string) error
}

// InboundMessage is a message the provider delivered to us rather than a
// status update about one we sent. It is not tracked against any
// DeliveryRecord; it's exposed to the caller's OnInbound callback only.
type InboundMessage struct {
	From      string
	Body      string
	MessageID string
	Timestamp time.Time
}

var statusMap = map[string]domain.DeliveryStatus{
	"sent":      domain.StatusSent,
	"delivered": domain.StatusDelivered,
	"read":      domain.StatusRead,
	"failed":    domain.StatusFailed,
}

// Receiver is the single entry point for provider webhook deliveries.
type Receiver struct {
	Secret    string
	Updater   StatusUpdater
	Template  TemplateStatusUpdater
	OnInbound func(InboundMessage)
	Logger    logger.Logger

	dedupe *dedupeSet
}

// NewReceiver builds a Receiver with a dedup window of size events, each
// remembered for ttl.
func NewReceiver(secret string, updater StatusUpdater, template TemplateStatusUpdater, onInbound func(InboundMessage), size int, ttl time.Duration, log logger.Logger) (*Receiver, error) {
	dedupe, err := newDedupeSet(size, ttl)
	if err != nil {
		return nil, err
	}
	return &Receiver{
		Secret: secret, Updater: updater, Template: template,
		OnInbound: onInbound, Logger: log, dedupe: dedupe,
	}, nil
}

// Process verifies signatureHeader against the raw payload, parses the
// provider envelope, and dispatches every status/message/template event
// it contains. It returns false, without any side effect, for an invalid
// signature or a malformed payload; the caller is expected to translate
// that into a webhook response that does not cause the provider to retry
// an unparsable payload forever, while still rejecting forged ones.
func (r *Receiver) Process(ctx context.Context, payload []byte, signatureHeader string) bool {
	if !VerifySignature(r.Secret, payload, signatureHeader) {
		r.logWarn("rejected webhook with invalid signature")
		return false
	}

	parsed := gjson.ParseBytes(payload)
	if !parsed.Exists() || !parsed.Get("entry").IsArray() {
		r.logWarn("rejected malformed webhook payload")
		return false
	}

	ok := true
	parsed.Get("entry").ForEach(func(_, entry gjson.Result) bool {
		entry.Get("changes").ForEach(func(_, change gjson.Result) bool {
			field := change.Get("field").String()
			value := change.Get("value")
			switch field {
			case "messages":
				r.handleMessagesField(ctx, value)
			case "message_template_status_update":
				if err := r.handleTemplateStatusUpdate(ctx, value); err != nil {
					r.logWarn("template status update failed: " + err.Error())
					ok = false
				}
			}
			return true
		})
		return true
	})

	return ok
}

func (r *Receiver) handleMessagesField(ctx context.Context, value gjson.Result) {
	if statuses := value.Get("statuses"); statuses.IsArray() {
		statuses.ForEach(func(_, status gjson.Result) bool {
			r.handleStatus(ctx, status)
			return true
		})
	}
	if messages := value.Get("messages"); messages.IsArray() {
		messages.ForEach(func(_, msg gjson.Result) bool {
			r.handleInbound(msg)
			return true
		})
	}
}

func (r *Receiver) handleStatus(ctx context.Context, status gjson.Result) {
	id := status.Get("id").String()
	if id == "" {
		return
	}
	if r.dedupe.seenBefore(id+":"+status.Get("status").String(), time.Now().UTC()) {
		return
	}

	mapped, ok := statusMap[status.Get("status").String()]
	if !ok {
		return
	}

	occurredAt := time.Now().UTC()
	if ts := status.Get("timestamp"); ts.Exists() {
		occurredAt = time.Unix(ts.Int(), 0).UTC()
	}

	errMsg := ""
	if errs := status.Get("errors"); errs.IsArray() && len(errs.Array()) > 0 {
		first := errs.Array()[0]
		errMsg = first.Get("title").String()
	}

	if r.Updater == nil {
		return
	}
	if _, err := r.Updater.ApplyStatus(ctx, id, mapped, occurredAt, "", errMsg); err != nil {
		r.logWarn("applying status update for " + id + ": " + err.Error())
	}
}

func (r *Receiver) handleInbound(msg gjson.Result) {
	if r.OnInbound == nil {
		return
	}
	inbound := InboundMessage{
		From:      msg.Get("from").String(),
		MessageID: msg.Get("id").String(),
		Body:      msg.Get("text.body").String(),
		Timestamp: time.Now().UTC(),
	}
	if ts := msg.Get("timestamp"); ts.Exists() {
		inbound.Timestamp = time.Unix(ts.Int(), 0).UTC()
	}
	r.OnInbound(inbound)
}

func (r *Receiver) handleTemplateStatusUpdate(ctx context.Context, value gjson.Result) error {
	if r.Template == nil {
		return nil
	}
	name := value.Get("message_template_name").String()
	language := value.Get("message_template_language").String()
	event := value.Get("event").String()
	reason := value.Get("reason").String()
	return r.Template.HandleStatusUpdate(ctx, name, language, event, reason)
}

func (r *Receiver) logWarn(msg string) {
	if r.Logger != nil {
		r.Logger.Warn(msg)
	}
}
