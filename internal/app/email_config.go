package app

import (
	"fmt"
	"strings"

	"github.com/jobeco/fairprice/pkg/mail"
)

// GmailSettings converts EmailConfig to the Gmail mailer representation.
func (c EmailConfig) GmailSettings() mail.GmailSettings {
	return mail.GmailSettings{
		ClientID:     strings.TrimSpace(c.OAuth.ClientID),
		ClientSecret: strings.TrimSpace(c.OAuth.ClientSecret),
		RefreshToken: strings.TrimSpace(c.OAuth.RefreshToken),
		From:         strings.TrimSpace(c.From),
	}
}

// SMTPSettings converts EmailConfig to the mail package representation.
func (c EmailConfig) SMTPSettings() mail.SMTPSettings {
	return mail.SMTPSettings{
		Enabled:  true,
		Host:     strings.TrimSpace(c.SMTP.Host),
		Port:     c.SMTP.Port,
		Username: c.SMTP.Username,
		Password: c.SMTP.Password,
		From:     strings.TrimSpace(c.From),
		UseTLS:   c.SMTP.UseTLS,
		Timeout:  c.SMTP.Timeout,
	}
}

// NewMailer builds the configured outbound mailer. The Gmail mailer is also
// returned separately so the admin endpoints can report its status; it is nil
// for other providers.
func (c EmailConfig) NewMailer() (mail.Mailer, *mail.GmailMailer, error) {
	switch strings.ToLower(strings.TrimSpace(c.Provider)) {
	case "", EmailProviderGmail:
		gmail := mail.NewGmailMailer(c.GmailSettings())
		return gmail, gmail, nil
	case EmailProviderSMTP:
		mailer, err := mail.NewSMTPMailer(c.SMTPSettings())
		if err != nil {
			return nil, nil, fmt.Errorf("email: %w", err)
		}
		return mailer, nil, nil
	case EmailProviderDisabled:
		return mail.Disabled{}, nil, nil
	default:
		return nil, nil, fmt.Errorf("email: unsupported provider %q", c.Provider)
	}
}
