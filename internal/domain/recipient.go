// Package domain holds the shared types every component (C1 through C9)
// exchanges: Recipient, Template, RenderedMessage, DeliveryRecord,
// QuotaWindow-facing DTOs, Session, and WhatsAppTemplate, plus the typed
// error taxonomy components report through.
package domain

// Recipient is the canonical, channel-agnostic record produced by the
// ingestor (C1) and validator (C2). Immutable once produced.
type Recipient struct {
	Name    string
	Company string
	Email   string
	Phone   string

	// RowIndex is the 1-based data-row number in the source file, retained
	// for error reporting back to the operator.
	RowIndex int
}

// HasMailChannel reports whether this recipient can be reached by the mail
// channel (non-empty email).
func (r Recipient) HasMailChannel() bool {
	return r.Email != ""
}

// HasWhatsAppChannel reports whether this recipient can be reached by any
// WhatsApp channel (non-empty phone).
func (r Recipient) HasWhatsAppChannel() bool {
	return r.Phone != ""
}

// Channel identifies which delivery path a message travels.
type Channel string

const (
	ChannelMail            Channel = "mail"
	ChannelWhatsAppAPI     Channel = "whatsapp_api"
	ChannelWhatsAppBrowser Channel = "whatsapp_browser"
)
