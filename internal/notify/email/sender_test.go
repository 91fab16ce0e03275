package email

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakeridepros/ticketwatch/internal/notify"
)

func TestBuildMessagePlainText(t *testing.T) {
	sender, err := NewSender(Config{FromAddress: "noreply@lakeridepros.com"})
	require.NoError(t, err)

	msg := string(sender.buildMessage(notify.Notification{
		To:      "nate@lakeridepros.com",
		Subject: "[LRP] Printer down (open)",
		Text:    "Front desk printer is jammed",
	}))

	assert.Contains(t, msg, "From: noreply@lakeridepros.com\r\n")
	assert.Contains(t, msg, "To: nate@lakeridepros.com\r\n")
	assert.Contains(t, msg, "Subject: [LRP] Printer down (open)\r\n")
	assert.Contains(t, msg, "Content-Type: text/plain")
	assert.NotContains(t, msg, "multipart/alternative")
}

func TestBuildMessageMultipart(t *testing.T) {
	sender, err := NewSender(Config{FromAddress: "noreply@lakeridepros.com"})
	require.NoError(t, err)

	msg := string(sender.buildMessage(notify.Notification{
		To:      "nate@lakeridepros.com",
		Subject: "[LRP] Printer down (open)",
		Text:    "plain body",
		HTML:    "<p>html body</p>",
	}))

	assert.Contains(t, msg, "multipart/alternative")
	assert.Contains(t, msg, "plain body")
	assert.Contains(t, msg, "<p>html body</p>")
	// Plain text part comes before the HTML part.
	assert.Less(t, strings.Index(msg, "plain body"), strings.Index(msg, "<p>html body</p>"))
}

func TestSendDisabled(t *testing.T) {
	sender, err := NewSender(Config{Enabled: false})
	require.NoError(t, err)

	assert.NoError(t, sender.Send(context.Background(), notify.Notification{To: "x@example.com"}))
}

func TestNewSenderValidation(t *testing.T) {
	_, err := NewSender(Config{Enabled: true})
	assert.Error(t, err)

	_, err = NewSender(Config{Enabled: true, SMTPHost: "mail.example.com"})
	assert.Error(t, err)

	sender, err := NewSender(Config{Enabled: true, SMTPHost: "mail.example.com", FromAddress: "noreply@example.com"})
	require.NoError(t, err)
	assert.Equal(t, 587, sender.config.SMTPPort)
}

func TestExtractEmail(t *testing.T) {
	assert.Equal(t, "noreply@example.com", extractEmail("LRP Support <noreply@example.com>"))
	assert.Equal(t, "noreply@example.com", extractEmail("noreply@example.com"))
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.True(t, IsRetryable(&net.OpError{Op: "dial", Err: errors.New("connection refused")}))
	assert.True(t, IsRetryable(errors.New("450 mailbox unavailable")))
	assert.False(t, IsRetryable(errors.New("550 no such user")))
}
