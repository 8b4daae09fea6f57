// internal/mailer/mailer.go
package mailer

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/unclebandit/phishguard-backend/internal/config"
)

// Message is one rendered simulation email addressed to a single recipient.
type Message struct {
	To            string
	ToName        string
	FromName      string
	FromAddress   string
	Subject       string
	HTML          string
	Text          string
	CampaignID    string
	TrackingToken string
}

// Mailer delivers a single message. Implementations may ignore ctx cancellation;
// callers bound each send with their own timeout.
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}

// New picks the delivery backend configured by MAIL_PROVIDER.
func New(ctx context.Context, cfg config.MailConfig, log zerolog.Logger) (Mailer, error) {
	switch cfg.Provider {
	case "log", "":
		return &LogMailer{Log: log}, nil
	case "smtp":
		return NewSMTPMailer(cfg), nil
	case "ses":
		return NewSESMailer(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
	}
}

// LogMailer writes messages to the log instead of sending them. Used in development.
type LogMailer struct {
	Log zerolog.Logger
}

func (m *LogMailer) Send(ctx context.Context, msg *Message) error {
	m.Log.Info().
		Str("to", msg.To).
		Str("from", msg.FromAddress).
		Str("subject", msg.Subject).
		Str("campaign_id", msg.CampaignID).
		Int("html_bytes", len(msg.HTML)).
		Msg("📧 simulated send")
	return nil
}
