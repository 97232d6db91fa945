package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const brevoBaseURL = "https://api.brevo.com"

// BrevoSender sends transactional email through the Brevo v3 API.
type BrevoSender struct {
	apiKey     string
	fromEmail  string
	fromName   string
	baseURL    string
	httpClient *http.Client
}

func NewBrevoSender(apiKey, fromEmail, fromName string) *BrevoSender {
	return &BrevoSender{
		apiKey:     apiKey,
		fromEmail:  fromEmail,
		fromName:   fromName,
		baseURL:    brevoBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *BrevoSender) WithBaseURL(baseURL string) *BrevoSender {
	s.baseURL = strings.TrimRight(baseURL, "/")
	return s
}

func (s *BrevoSender) Configured() bool {
	return s.apiKey != "" && s.fromEmail != ""
}

type brevoContact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type brevoEmailRequest struct {
	Sender      brevoContact   `json:"sender"`
	To          []brevoContact `json:"to"`
	Subject     string         `json:"subject"`
	TextContent string         `json:"textContent"`
}

func (s *BrevoSender) Send(ctx context.Context, msg Message) error {
	subject := msg.Subject
	if subject == "" {
		subject = "Notification"
	}

	payload, err := json.Marshal(brevoEmailRequest{
		Sender:      brevoContact{Email: s.fromEmail, Name: s.fromName},
		To:          []brevoContact{{Email: msg.To}},
		Subject:     subject,
		TextContent: msg.Body,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal Brevo request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v3/smtp/email", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create Brevo request: %w", err)
	}
	req.Header.Set("api-key", s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send Brevo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("brevo returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
