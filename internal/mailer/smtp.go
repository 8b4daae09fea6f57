package mailer

import (
	"context"

	"gopkg.in/gomail.v2"

	"github.com/unclebandit/phishguard-backend/internal/config"
)

// SMTPMailer sends through an SMTP relay. gomail dials a new connection per message.
type SMTPMailer struct {
	dialer *gomail.Dialer
}

func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
	}
}

func (m *SMTPMailer) Send(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.dialer.DialAndSend(buildMessage(msg))
}

func buildMessage(msg *Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", msg.FromAddress, msg.FromName)
	if msg.ToName != "" {
		m.SetAddressHeader("To", msg.To, msg.ToName)
	} else {
		m.SetHeader("To", msg.To)
	}
	m.SetHeader("Subject", msg.Subject)
	if msg.CampaignID != "" {
		m.SetHeader("X-Campaign-ID", msg.CampaignID)
	}
	m.SetBody("text/plain", msg.Text)
	m.AddAlternative("text/html", msg.HTML)
	return m
}
