// Package push provides push notification sending via the FCM HTTP API.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/lakeridepros/ticketwatch/internal/domain"
)

const (
	defaultEndpoint = "https://fcm.googleapis.com/fcm/send"
	defaultTimeout  = 10 * time.Second
)

// Config holds push sender configuration.
type Config struct {
	Enabled   bool
	Endpoint  string
	ServerKey string
	Timeout   time.Duration
}

// Sender implements multicast push sending over the FCM HTTP API.
type Sender struct {
	config     Config
	httpClient *http.Client
}

// NewSender creates a new push sender.
// Returns error if enabled but required config is missing.
func NewSender(config Config) (*Sender, error) {
	if config.Enabled && config.ServerKey == "" {
		return nil, errors.New("push sender: server key is required when enabled")
	}

	if config.Endpoint == "" {
		config.Endpoint = defaultEndpoint
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	slog.Info("push sender configured",
		"enabled", config.Enabled,
		"endpoint", config.Endpoint,
	)

	return &Sender{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}, nil
}

// Type returns the channel type.
func (s *Sender) Type() domain.TargetType {
	return domain.TargetTypeFCM
}

type multicastRequest struct {
	RegistrationIDs []string          `json:"registration_ids"`
	Notification    pushNotification  `json:"notification"`
	Data            map[string]string `json:"data,omitempty"`
}

type pushNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// SendMulticast delivers one message to every token in a single call.
func (s *Sender) SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) error {
	if !s.config.Enabled {
		slog.Debug("push sender disabled, skipping", "tokens", len(tokens))
		return nil
	}
	if len(tokens) == 0 {
		return nil
	}

	payload, err := json.Marshal(multicastRequest{
		RegistrationIDs: tokens,
		Notification:    pushNotification{Title: title, Body: body},
		Data:            data,
	})
	if err != nil {
		return fmt.Errorf("marshal multicast payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+s.config.ServerKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &RetryableError{Message: fmt.Sprintf("send request: %v", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	return s.handleResponse(resp, len(tokens))
}

func (s *Sender) handleResponse(resp *http.Response, tokenCount int) error {
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		slog.Debug("push multicast sent", "tokens", tokenCount)
		return nil

	case resp.StatusCode == http.StatusBadRequest:
		return &PermanentError{
			Code:    resp.StatusCode,
			Message: fmt.Sprintf("bad request: %s", string(respBody)),
		}

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &PermanentError{
			Code:    resp.StatusCode,
			Message: "invalid or revoked server key",
		}

	case resp.StatusCode == http.StatusTooManyRequests:
		return &RetryableError{
			Code:    resp.StatusCode,
			Message: "rate limited",
		}

	case resp.StatusCode >= 500:
		return &RetryableError{
			Code:    resp.StatusCode,
			Message: fmt.Sprintf("server error: %s", string(respBody)),
		}

	default:
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
}

// PermanentError indicates a permanent error that should not be retried.
type PermanentError struct {
	Code    int
	Message string
}

func (e *PermanentError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("push error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("push error: %s", e.Message)
}

// IsRetryable returns false as permanent errors should not be retried.
func (e *PermanentError) IsRetryable() bool { return false }

// RetryableError indicates a temporary error that can be retried.
type RetryableError struct {
	Code    int
	Message string
}

func (e *RetryableError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("push error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("push error: %s", e.Message)
}

// IsRetryable returns true as these errors are temporary.
func (e *RetryableError) IsRetryable() bool { return true }
