// Package mailer wraps the local mail client the mail-sink channel adapter
// hands rendered messages to. It knows nothing about recipients, quotas, or
// delivery tracking — it only accepts a (subject, body, to) triple and
// reports whether the local client accepted it for send or draft.
package mailer

import (
	"fmt"
	"log"
	"time"

	"github.com/wneessen/go-mail"
)

// Mailer is the local mail-client contract the mail-sink adapter sends
// through.
type Mailer interface {
	// Send hands (subject, body, to) to the local mail client. draft
	// requests the client create a draft instead of submitting
	// immediately. The returned id is synthetic: this layer does not
	// track provider-side delivery, only local acceptance.
	Send(subject, body, to string, draft bool) (id string, err error)
}

// Config holds the configuration for the mailer.
type Config struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	FromEmail    string
	FromName     string
}

// SMTPMailer implements the Mailer interface using SMTP.
type SMTPMailer struct {
	config   *Config
	testMode bool
}

// NewSMTPMailer creates a new SMTP mailer.
func NewSMTPMailer(config *Config) *SMTPMailer {
	return &SMTPMailer{
		config:   config,
		testMode: false,
	}
}

// NewTestSMTPMailer creates a new SMTP mailer in test mode (won't connect to SMTP server).
func NewTestSMTPMailer(config *Config) *SMTPMailer {
	return &SMTPMailer{
		config:   config,
		testMode: true,
	}
}

// Send submits a message through SMTP, or creates a local draft if draft is
// true. A draft has no SMTP equivalent, so an SMTP-backed mailer treats it
// as accepted without submission — a browser-fallback or platform mail
// client would be the real draft target instead (see the browser-fallback
// adapter).
func (m *SMTPMailer) Send(subject, body, to string, draft bool) (string, error) {
	msg := mail.NewMsg()

	if err := msg.FromFormat(m.config.FromName, m.config.FromEmail); err != nil {
		return "", fmt.Errorf("failed to set email from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return "", fmt.Errorf("failed to set email recipient: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	client, err := m.createSMTPClient()
	if err != nil {
		return "", err
	}

	id := syntheticID()

	if client == nil {
		log.Printf("mailer: to=%s subject=%q draft=%v id=%s", to, subject, draft, id)
		return id, nil
	}

	if draft {
		return id, nil
	}

	if err := client.DialAndSend(msg); err != nil {
		return "", fmt.Errorf("failed to send mail: %w", err)
	}

	return id, nil
}

// createSMTPClient creates and configures a new SMTP client.
func (m *SMTPMailer) createSMTPClient() (*mail.Client, error) {
	if m.testMode {
		return nil, nil
	}

	client, err := mail.NewClient(m.config.SMTPHost,
		mail.WithPort(m.config.SMTPPort),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.config.SMTPUsername),
		mail.WithPassword(m.config.SMTPPassword),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}

	return client, nil
}

var idCounter int64

// syntheticID mints a local message id for sends the mail-sink adapter
// cannot track against a provider-assigned id.
func syntheticID() string {
	idCounter++
	return fmt.Sprintf("mailsink-%d-%d", time.Now().UnixNano(), idCounter)
}

// ConsoleMailer is a development implementation that just logs emails.
type ConsoleMailer struct{}

// NewConsoleMailer creates a new console mailer for development.
func NewConsoleMailer() *ConsoleMailer {
	return &ConsoleMailer{}
}

func (m *ConsoleMailer) Send(subject, body, to string, draft bool) (string, error) {
	mode := "SEND"
	if draft {
		mode = "DRAFT"
	}
	fmt.Println("==============================================================")
	fmt.Printf("                      MAIL-SINK %s\n", mode)
	fmt.Println("==============================================================")
	fmt.Printf("To: %s\n", to)
	fmt.Printf("Subject: %s\n\n", subject)
	fmt.Println(body)
	fmt.Println("==============================================================")
	return syntheticID(), nil
}
