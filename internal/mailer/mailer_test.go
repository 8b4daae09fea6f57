package mailer

import (
	"bytes"
	"context"
	"errors"
	"net/mail"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/phishguard-backend/internal/config"
)

func sampleMessage() *Message {
	return &Message{
		To:          "jane@acme.test",
		ToName:      "Jane",
		FromName:    "Pos Express",
		FromAddress: "awareness@phishguard.test",
		Subject:     "Your parcel is waiting",
		HTML:        `<a href="http://t/abc">Track</a>`,
		Text:        "Track at http://t/abc",
		CampaignID:  "c-1",
	}
}

func TestNewPicksProvider(t *testing.T) {
	m, err := New(context.Background(), config.MailConfig{Provider: "log"}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &LogMailer{}, m)

	m, err = New(context.Background(), config.MailConfig{Provider: "smtp", SMTPHost: "localhost", SMTPPort: 25}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &SMTPMailer{}, m)

	_, err = New(context.Background(), config.MailConfig{Provider: "carrier-pigeon"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestLogMailerWritesLine(t *testing.T) {
	var buf bytes.Buffer
	m := &LogMailer{Log: zerolog.New(&buf)}

	require.NoError(t, m.Send(context.Background(), sampleMessage()))
	assert.Contains(t, buf.String(), `"to":"jane@acme.test"`)
	assert.Contains(t, buf.String(), `"campaign_id":"c-1"`)
}

func TestBuildMessageHeaders(t *testing.T) {
	var buf bytes.Buffer
	_, err := buildMessage(sampleMessage()).WriteTo(&buf)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `From: "Pos Express" <awareness@phishguard.test>`)
	assert.Contains(t, out, "X-Campaign-ID: c-1")
	assert.Contains(t, out, "text/html")
	assert.Contains(t, out, "text/plain")
}

func TestSMTPMailerHonoursCancelledContext(t *testing.T) {
	m := NewSMTPMailer(config.MailConfig{SMTPHost: "localhost", SMTPPort: 25})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, m.Send(ctx, sampleMessage()), context.Canceled)
}

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(ctx context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{}, nil
}

func TestSESMailerBuildsInput(t *testing.T) {
	fake := &fakeSES{}
	m := &SESMailer{client: fake}

	require.NoError(t, m.Send(context.Background(), sampleMessage()))
	require.NotNil(t, fake.input)
	assert.Equal(t, `"Pos Express" <awareness@phishguard.test>`, *fake.input.FromEmailAddress)
	assert.Equal(t, []string{"jane@acme.test"}, fake.input.Destination.ToAddresses)
	assert.Equal(t, "Your parcel is waiting", *fake.input.Content.Simple.Subject.Data)
	assert.Equal(t, "campaign_id", *fake.input.EmailTags[0].Name)
}

func TestSESMailerWrapsError(t *testing.T) {
	boom := errors.New("throttled")
	m := &SESMailer{client: &fakeSES{err: boom}}

	err := m.Send(context.Background(), sampleMessage())
	assert.ErrorIs(t, err, boom)
}

func TestSESMailerFromHeaderKeepsBrandNameIntact(t *testing.T) {
	cases := map[string]string{
		"Acme, Inc.":     `"Acme, Inc." <awareness@phishguard.test>`,
		`Say "hi" Bank`:  `"Say \"hi\" Bank" <awareness@phishguard.test>`,
		"Banque Évry":    "=?utf-8?q?Banque_=C3=89vry?= <awareness@phishguard.test>",
		"":               "<awareness@phishguard.test>",
	}
	for name, want := range cases {
		fake := &fakeSES{}
		m := &SESMailer{client: fake}
		msg := sampleMessage()
		msg.FromName = name

		require.NoError(t, m.Send(context.Background(), msg))
		assert.Equal(t, want, *fake.input.FromEmailAddress, name)

		parsed, err := mail.ParseAddress(*fake.input.FromEmailAddress)
		require.NoError(t, err, name)
		assert.Equal(t, name, parsed.Name)
		assert.Equal(t, "awareness@phishguard.test", parsed.Address)
	}
}
