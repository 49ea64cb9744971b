package mail

import (
	"context"
	"io"
	"mime"
	"mime/multipart"
	netmail "net/mail"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewSMTPMailerValidatesConfig(t *testing.T) {
	_, err := NewSMTPMailer(SMTPSettings{Enabled: true})
	require.ErrorContains(t, err, "host is required")

	mailer, err := NewSMTPMailer(SMTPSettings{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, mailer)
	require.False(t, mailer.IsConfigured())
}

func TestSMTPMailerSendDisabled(t *testing.T) {
	mailer, err := NewSMTPMailer(SMTPSettings{Enabled: false})
	require.NoError(t, err)

	err = mailer.Send(context.Background(), Message{
		To:      []string{"test@example.com"},
		Subject: "Test",
		Body:    "Hello",
	})
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestDisabledMailer(t *testing.T) {
	var m Mailer = Disabled{}
	require.False(t, m.IsConfigured())
	require.ErrorIs(t, m.Send(context.Background(), Message{}), ErrNotConfigured)
}

func TestFormatMessage(t *testing.T) {
	content := formatMessage("from@example.com", []string{"to@example.com"}, Message{Subject: "Subject\r\nBreak", Body: "Body"})
	require.Contains(t, content, "From: from@example.com")
	require.Contains(t, content, "Subject: Subject  Break")
	require.Contains(t, content, "Content-Type: text/plain; charset=UTF-8")
	require.True(t, strings.HasSuffix(content, "Body"))
}

func TestFormatMessageWithHTML(t *testing.T) {
	content := formatMessage("from@example.com", []string{"to@example.com"}, Message{
		Subject: "Invitation",
		Body:    "plain",
		HTML:    "<p>rich</p>",
	})
	require.Contains(t, content, "multipart/alternative")
	require.Contains(t, content, "text/html")
	require.Contains(t, content, "<p>rich</p>")
	require.Contains(t, content, "plain")
}

func TestFormatMessageParsesAsPlainText(t *testing.T) {
	content := formatMessage("from@example.com", []string{"to@example.com"}, Message{
		Subject: "Hello",
		Body:    "Hello,\r\nYou have been invited.",
	})

	parsed, err := netmail.ReadMessage(strings.NewReader(content))
	require.NoError(t, err)
	require.Equal(t, "Hello", parsed.Header.Get("Subject"))
	require.Equal(t, "text/plain; charset=UTF-8", parsed.Header.Get("Content-Type"))

	body, err := io.ReadAll(parsed.Body)
	require.NoError(t, err)
	require.Equal(t, "Hello,\r\nYou have been invited.", string(body))
}

func TestFormatMessageParsesAsMultipart(t *testing.T) {
	content := formatMessage("from@example.com", []string{"to@example.com"}, Message{
		Subject: "Invitation",
		Body:    "plain",
		HTML:    "<p>rich</p>",
	})

	parsed, err := netmail.ReadMessage(strings.NewReader(content))
	require.NoError(t, err)
	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "multipart/alternative", mediaType)

	reader := multipart.NewReader(parsed.Body, params["boundary"])
	want := []struct{ contentType, body string }{
		{"text/plain; charset=UTF-8", "plain"},
		{"text/html; charset=UTF-8", "<p>rich</p>"},
	}
	for _, w := range want {
		part, err := reader.NextPart()
		require.NoError(t, err)
		require.Equal(t, w.contentType, part.Header.Get("Content-Type"))
		data, err := io.ReadAll(part)
		require.NoError(t, err)
		require.Equal(t, w.body, string(data))
	}
	_, err = reader.NextPart()
	require.ErrorIs(t, err, io.EOF)
}

func TestFormatMessageEncodesNonASCIISubject(t *testing.T) {
	content := formatMessage("from@example.com", []string{"to@example.com"}, Message{
		Subject: "Invitation to join Café Résidents",
		Body:    "Body",
	})

	parsed, err := netmail.ReadMessage(strings.NewReader(content))
	require.NoError(t, err)
	raw := parsed.Header.Get("Subject")
	require.True(t, strings.HasPrefix(raw, "=?utf-8?q?"), raw)

	decoded, err := new(mime.WordDecoder).DecodeHeader(raw)
	require.NoError(t, err)
	require.Equal(t, "Invitation to join Café Résidents", decoded)
}

func TestSMTPMailerDefaultTimeout(t *testing.T) {
	mailer, err := NewSMTPMailer(SMTPSettings{
		Enabled: true,
		Host:    "smtp.example.com",
		Port:    587,
		From:    "no-reply@example.com",
		UseTLS:  true,
	})
	require.NoError(t, err)
	require.True(t, mailer.IsConfigured())

	sm, ok := mailer.(*smtpMailer)
	require.True(t, ok)
	require.Equal(t, 10*time.Second, sm.cfg.Timeout)
}

func TestSMTPMailerSendRequiresRecipients(t *testing.T) {
	mailer, err := NewSMTPMailer(SMTPSettings{
		Enabled: true,
		Host:    "smtp.example.com",
		Port:    587,
		From:    "no-reply@example.com",
	})
	require.NoError(t, err)

	err = mailer.Send(context.Background(), Message{
		To:      []string{"   ", "\t"},
		Subject: "No recipients",
		Body:    "Body",
	})
	require.ErrorContains(t, err, "at least one recipient")
}

func TestSMTPMailerSendValidatesFromAddress(t *testing.T) {
	mailer, err := NewSMTPMailer(SMTPSettings{
		Enabled: true,
		Host:    "smtp.example.com",
		Port:    587,
	})
	require.NoError(t, err)

	err = mailer.Send(context.Background(), Message{
		From: "invalid-from",
		To:   []string{"user@example.com"},
	})
	require.ErrorContains(t, err, "invalid from address")
}

func TestSMTPMailerSendValidatesRecipientAddresses(t *testing.T) {
	mailer, err := NewSMTPMailer(SMTPSettings{
		Enabled: true,
		Host:    "smtp.example.com",
		Port:    587,
		From:    "no-reply@example.com",
	})
	require.NoError(t, err)

	err = mailer.Send(context.Background(), Message{
		To: []string{"user@example.com", "bad-address"},
	})
	require.ErrorContains(t, err, "invalid recipient address")
}

func TestUniqueAddresses(t *testing.T) {
	addresses := []string{"alice@example.com", "bob@example.com", " alice@example.com ", "", "bob@example.com"}
	result := uniqueAddresses(addresses)
	require.Equal(t, []string{"alice@example.com", "bob@example.com"}, result)
}
