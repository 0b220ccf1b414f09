/*
Package mail provides engine.Sender implementations.

PURPOSE:
  The engine only knows Sender.Send(ctx, Email). This package hands the
  message to a transactional mail API over HTTP, or logs it when no
  provider is configured (local runs, demos).

PROVIDER CONTRACT:
  POST <api url> with a JSON body:
    {"from": {"address", "name"}, "to": [{"email_address": {"address", "name"}}],
     "subject": "...", "textbody": "..."}
  Authorization header carries the API key verbatim. 200 and 202 are
  accepted; anything else is a failed send. A "request_id" in the response
  body becomes the receipt's MessageID.

SEE ALSO:
  - engine/notify.go: Dispatcher, the only caller
*/
package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/heyjack/giftpool/engine"
)

// ErrNotConfigured is returned by NewHTTPSender when a required setting is missing.
var ErrNotConfigured = errors.New("mail provider not configured")

// APIError is a non-success response from the provider.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mail API returned %d: %s", e.StatusCode, e.Body)
}

// HTTPConfig configures HTTPSender.
type HTTPConfig struct {
	APIURL   string
	APIKey   string
	From     string
	FromName string
	Timeout  time.Duration
}

// HTTPSender posts emails to a JSON mail API.
type HTTPSender struct {
	cfg    HTTPConfig
	client *http.Client
	logger *zap.Logger
}

var _ engine.Sender = (*HTTPSender)(nil)

// NewHTTPSender validates cfg and builds a sender. A nil logger discards logs.
func NewHTTPSender(cfg HTTPConfig, logger *zap.Logger) (*HTTPSender, error) {
	if cfg.APIURL == "" || cfg.APIKey == "" || cfg.From == "" {
		return nil, fmt.Errorf("%w: api url, api key and from address are required", ErrNotConfigured)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPSender{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}, nil
}

type emailRequest struct {
	From     emailAddress  `json:"from"`
	To       []toRecipient `json:"to"`
	Subject  string        `json:"subject"`
	TextBody string        `json:"textbody"`
}

type emailAddress struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

type toRecipient struct {
	Email emailAddress `json:"email_address"`
}

type emailResponse struct {
	RequestID string `json:"request_id"`
}

// Send delivers one email. The context bounds the whole request.
func (s *HTTPSender) Send(ctx context.Context, email engine.Email) (engine.DeliveryReceipt, error) {
	payload := emailRequest{
		From:     emailAddress{Address: s.cfg.From, Name: s.cfg.FromName},
		To:       []toRecipient{{Email: emailAddress{Address: email.To, Name: email.ToName}}},
		Subject:  email.Subject,
		TextBody: email.Body,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return engine.DeliveryReceipt{}, fmt.Errorf("marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return engine.DeliveryReceipt{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("mail API request failed", zap.String("to", email.To), zap.Error(err))
		return engine.DeliveryReceipt{}, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		s.logger.Warn("mail API rejected email",
			zap.String("to", email.To),
			zap.Int("status", resp.StatusCode))
		return engine.DeliveryReceipt{}, &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var parsed emailResponse
	_ = json.Unmarshal(raw, &parsed)

	s.logger.Debug("email accepted", zap.String("to", email.To), zap.String("request_id", parsed.RequestID))
	return engine.DeliveryReceipt{MessageID: parsed.RequestID, AcceptedAt: time.Now().UTC()}, nil
}
