// Package sms provides SMS notification sending through a Twilio-compatible
// messaging API.
package sms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/lakeridepros/ticketwatch/internal/domain"
	"github.com/lakeridepros/ticketwatch/internal/notify"
)

const (
	defaultAPIBase = "https://api.twilio.com/2010-04-01"
	defaultTimeout = 10 * time.Second
	// Carrier-side throughput cap for a single long-code number.
	defaultRateLimit = rate.Limit(1)
)

// Config holds SMS sender configuration.
type Config struct {
	Enabled    bool
	APIBase    string
	AccountSID string
	AuthToken  string
	From       string
	RateLimit  float64
	Timeout    time.Duration
}

// Sender implements SMS notification sending.
type Sender struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewSender creates a new SMS sender.
// Returns error if enabled but required config is missing.
func NewSender(config Config) (*Sender, error) {
	if config.Enabled {
		if config.AccountSID == "" || config.AuthToken == "" {
			return nil, errors.New("sms sender: account sid and auth token are required when enabled")
		}
		if config.From == "" {
			return nil, errors.New("sms sender: from number is required when enabled")
		}
	}

	if config.APIBase == "" {
		config.APIBase = defaultAPIBase
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	limit := rate.Limit(config.RateLimit)
	if limit <= 0 {
		limit = defaultRateLimit
	}

	slog.Info("sms sender configured",
		"enabled", config.Enabled,
		"from", config.From,
		"rate_limit", float64(limit),
	)

	return &Sender{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(limit, 1),
	}, nil
}

// Type returns the channel type.
func (s *Sender) Type() domain.TargetType {
	return domain.TargetTypeSMS
}

// Send sends one SMS. The notification subject is ignored; SMS carries only
// the text body.
func (s *Sender) Send(ctx context.Context, n notify.Notification) error {
	if !s.config.Enabled {
		slog.Debug("sms sender disabled, skipping", "to", n.To)
		return nil
	}

	to := strings.TrimSpace(n.To)
	if !strings.HasPrefix(to, "+") {
		return fmt.Errorf("sms sender: %q is not an E.164 number", to)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", s.config.From)
	form.Set("Body", n.Text)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", s.config.APIBase, s.config.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.config.AccountSID, s.config.AuthToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		slog.Debug("sms sent", "to", to)
		return nil
	}

	respBody, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("sms api status %d: %s", resp.StatusCode, string(respBody))
}
