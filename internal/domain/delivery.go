package domain

import "time"

// DeliveryStatus is the lifecycle state of one DeliveryRecord.
type DeliveryStatus string

const (
	StatusQueued    DeliveryStatus = "queued"
	StatusSending   DeliveryStatus = "sending"
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusRead      DeliveryStatus = "read"
	StatusFailed    DeliveryStatus = "failed"
	StatusDeleted   DeliveryStatus = "deleted"
)

// rank orders statuses along the happy path so a late-arriving webhook
// update can be checked for regression before being applied.
var rank = map[DeliveryStatus]int{
	StatusQueued:    0,
	StatusSending:   1,
	StatusSent:      2,
	StatusDelivered: 3,
	StatusRead:      4,
	StatusFailed:    -1,
	StatusDeleted:   -2,
}

// DeliveryRecord tracks one message's journey from enqueue to terminal
// state. RetryCount and MaxRetries gate the only backward transition,
// failed -> queued.
type DeliveryRecord struct {
	ID          string
	SessionID   string
	Recipient   string // phone or email, whichever channel this used
	Channel     Channel
	Status      DeliveryStatus
	ProviderID  string // id returned by the channel adapter, e.g. WhatsApp message id
	Error       string
	RetryCount  int
	MaxRetries  int
	CreatedAt   time.Time
	UpdatedAt   time.Time
	SentAt      *time.Time
	DeliveredAt *time.Time
	ReadAt      *time.Time
}

// CanTransition reports whether moving from the record's current status
// to to is allowed.
//
//   - queued -> sending -> sent -> delivered -> read, one step forward at
//     a time (skipping a status is rejected)
//   - sending -> failed at any point after leaving queued
//   - read -> failed is allowed (a late provider error report) but never
//     regresses a record that already reached a later status than failed
//     would represent
//   - failed -> queued only if RetryCount < MaxRetries
//   - any -> deleted is a terminal tombstone, always allowed except from
//     an already-deleted record
func (d *DeliveryRecord) CanTransition(to DeliveryStatus) bool {
	from := d.Status
	if from == StatusDeleted {
		return false
	}
	if to == StatusDeleted {
		return true
	}
	if to == StatusFailed {
		return from != StatusFailed
	}
	if to == StatusQueued {
		return from == StatusFailed && d.RetryCount < d.MaxRetries
	}

	fr, ok1 := rank[from]
	tr, ok2 := rank[to]
	if !ok1 || !ok2 || fr < 0 || tr < 0 {
		return false
	}
	// One step forward at a time, and idempotent same-status updates (late
	// duplicate webhooks) are accepted as no-ops rather than rejected.
	return tr == fr || tr == fr+1
}

// Template is the renderable content attached to a broadcast before it is
// split per-channel and per-recipient into RenderedMessage values.
type Template struct {
	ID            string
	Name          string
	MailSubject   string
	MailBody      string
	WhatsAppBody  string
	Variables     []string // declared {placeholder} names, each must appear in at least one enabled body
	EnabledMail   bool
	EnabledWhatsApp bool
}

// RenderedMessage is one placeholder-substituted message ready to hand to
// a channel adapter, possibly one of several produced by splitting a long
// body.
type RenderedMessage struct {
	RecipientEmail string
	RecipientPhone string
	Channel        Channel
	Subject        string
	Body           string
	SequenceIndex  int // 0-based position among this recipient's split messages
	SequenceTotal  int
	DelayAfter     time.Duration // delay to honor before sending the next message in the sequence
}

// Session tracks one dispatch batch from start to completion.
type Session struct {
	ID          string
	StartedAt   time.Time
	CompletedAt *time.Time
	Total       int
	Sent        int
	Failed      int
}

// Done reports whether every message in the session has reached a
// terminal outcome (sent or failed).
func (s *Session) Done() bool {
	return s.Sent+s.Failed >= s.Total
}
