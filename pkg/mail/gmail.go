package mail

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// DefaultGmailSendURL is the Gmail API endpoint used to submit raw messages.
const DefaultGmailSendURL = "https://gmail.googleapis.com/gmail/v1/users/me/messages/send"

// tokenEarlyExpiry refreshes access tokens this long before they lapse.
const tokenEarlyExpiry = 5 * time.Minute

// GmailSettings configure delivery through the Gmail API with a long-lived
// OAuth2 refresh token.
type GmailSettings struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	From         string

	// Overrides, mostly for tests.
	TokenURL   string
	SendURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// ConfigurationStatus reports which Gmail settings are present without
// exposing their values.
type ConfigurationStatus struct {
	Configured      bool   `json:"configured"`
	HasClientID     bool   `json:"has_client_id"`
	HasClientSecret bool   `json:"has_client_secret"`
	HasRefreshToken bool   `json:"has_refresh_token"`
	HasFromEmail    bool   `json:"has_from_email"`
	FromEmail       string `json:"from_email,omitempty"`
}

// GmailMailer sends mail via the Gmail REST API. Access tokens are cached in
// memory and refreshed on demand.
type GmailMailer struct {
	settings GmailSettings
	client   *http.Client

	once   sync.Once
	tokens oauth2.TokenSource
}

// NewGmailMailer builds a mailer; it never fails so that an unconfigured
// mailer can still report its status.
func NewGmailMailer(settings GmailSettings) *GmailMailer {
	if settings.SendURL == "" {
		settings.SendURL = DefaultGmailSendURL
	}
	if settings.TokenURL == "" {
		settings.TokenURL = endpoints.Google.TokenURL
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 15 * time.Second
	}

	client := settings.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: settings.Timeout}
	}

	return &GmailMailer{settings: settings, client: client}
}

// IsConfigured reports whether every credential needed to send is present.
func (m *GmailMailer) IsConfigured() bool {
	return m.Status().Configured
}

// Status describes the configuration without leaking secrets.
func (m *GmailMailer) Status() ConfigurationStatus {
	s := ConfigurationStatus{
		HasClientID:     strings.TrimSpace(m.settings.ClientID) != "",
		HasClientSecret: strings.TrimSpace(m.settings.ClientSecret) != "",
		HasRefreshToken: strings.TrimSpace(m.settings.RefreshToken) != "",
		HasFromEmail:    strings.TrimSpace(m.settings.From) != "",
		FromEmail:       m.settings.From,
	}
	s.Configured = s.HasClientID && s.HasClientSecret && s.HasRefreshToken && s.HasFromEmail
	return s
}

// TestConnection refreshes an access token to prove the credentials work.
func (m *GmailMailer) TestConnection(ctx context.Context) error {
	if !m.IsConfigured() {
		return ErrNotConfigured
	}
	_, err := m.token(ctx)
	return err
}

func (m *GmailMailer) Send(ctx context.Context, msg Message) error {
	if !m.IsConfigured() {
		return ErrNotConfigured
	}

	from, recipients, err := prepare(msg, m.settings.From)
	if err != nil {
		return err
	}

	token, err := m.token(ctx)
	if err != nil {
		return err
	}

	raw := base64.URLEncoding.EncodeToString([]byte(formatMessage(from, recipients, msg)))
	payload, err := json.Marshal(map[string]string{"raw": raw})
	if err != nil {
		return fmt.Errorf("gmail: encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.settings.SendURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("gmail: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	token.SetAuthHeader(req)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("gmail: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gmail: send failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (m *GmailMailer) token(ctx context.Context) (*oauth2.Token, error) {
	m.once.Do(func() {
		cfg := &oauth2.Config{
			ClientID:     m.settings.ClientID,
			ClientSecret: m.settings.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:   endpoints.Google.AuthURL,
				TokenURL:  m.settings.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		}
		// The token source outlives the first caller, so it gets its own context.
		base := context.WithValue(context.Background(), oauth2.HTTPClient, m.client)
		m.tokens = oauth2.ReuseTokenSourceWithExpiry(nil,
			cfg.TokenSource(base, &oauth2.Token{RefreshToken: m.settings.RefreshToken}),
			tokenEarlyExpiry,
		)
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	token, err := m.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("gmail: refresh access token: %w", err)
	}
	return token, nil
}
