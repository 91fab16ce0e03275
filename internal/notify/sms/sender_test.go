package sms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakeridepros/ticketwatch/internal/notify"
)

func newEnabledSender(t *testing.T, apiBase string) *Sender {
	t.Helper()
	sender, err := NewSender(Config{
		Enabled:    true,
		APIBase:    apiBase,
		AccountSID: "AC123",
		AuthToken:  "secret",
		From:       "+15550001111",
		RateLimit:  1000, // keep tests fast
	})
	require.NoError(t, err)
	return sender
}

func TestSend(t *testing.T) {
	var gotPath, gotTo, gotFrom, gotBody string
	var gotUser, gotPass string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		require.NoError(t, r.ParseForm())
		gotTo = r.PostFormValue("To")
		gotFrom = r.PostFormValue("From")
		gotBody = r.PostFormValue("Body")
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	sender := newEnabledSender(t, server.URL)

	err := sender.Send(context.Background(), notify.Notification{
		To:   "+15551234567",
		Text: "Front desk printer is jammed\nhttps://lakeridepros.xyz/#/tickets?id=t-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "/Accounts/AC123/Messages.json", gotPath)
	assert.Equal(t, "AC123", gotUser)
	assert.Equal(t, "secret", gotPass)
	assert.Equal(t, "+15551234567", gotTo)
	assert.Equal(t, "+15550001111", gotFrom)
	assert.Contains(t, gotBody, "printer is jammed")
}

func TestSendRejectsNonE164(t *testing.T) {
	sender := newEnabledSender(t, "http://unused")

	err := sender.Send(context.Background(), notify.Notification{To: "555-1234", Text: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E.164")
}

func TestSendAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"invalid number"}`))
	}))
	defer server.Close()

	sender := newEnabledSender(t, server.URL)

	err := sender.Send(context.Background(), notify.Notification{To: "+15551234567", Text: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestSendDisabled(t *testing.T) {
	sender, err := NewSender(Config{Enabled: false})
	require.NoError(t, err)

	assert.NoError(t, sender.Send(context.Background(), notify.Notification{To: "+15551234567", Text: "hi"}))
}

func TestNewSenderRequiresCredentials(t *testing.T) {
	_, err := NewSender(Config{Enabled: true, From: "+15550001111"})
	assert.Error(t, err)

	_, err = NewSender(Config{Enabled: true, AccountSID: "AC123", AuthToken: "secret"})
	assert.Error(t, err)
}
