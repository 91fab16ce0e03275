package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakeridepros/ticketwatch/internal/domain"
)

// mockSender is a test implementation of Sender.
type mockSender struct {
	mu         sync.Mutex
	targetType domain.TargetType
	sent       []Notification
	failFor    map[string]error
}

func newMockSender(targetType domain.TargetType) *mockSender {
	return &mockSender{targetType: targetType, failFor: make(map[string]error)}
}

func (m *mockSender) Type() domain.TargetType { return m.targetType }

func (m *mockSender) Send(_ context.Context, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.failFor[n.To]; ok {
		return err
	}
	m.sent = append(m.sent, n)
	return nil
}

func (m *mockSender) getSent() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Notification(nil), m.sent...)
}

// mockMulticast is a test implementation of MulticastSender.
type mockMulticast struct {
	mu     sync.Mutex
	calls  int
	tokens []string
	title  string
	body   string
	data   map[string]string
	err    error
}

func (m *mockMulticast) Type() domain.TargetType { return domain.TargetTypeFCM }

func (m *mockMulticast) SendMulticast(_ context.Context, tokens []string, title, body string, data map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.tokens = append([]string(nil), tokens...)
	m.title = title
	m.body = body
	m.data = data
	return m.err
}

func testRenderer(t *testing.T) *Renderer {
	t.Helper()
	renderer, err := NewRenderer("LRP")
	require.NoError(t, err)
	return renderer
}

func testSummary() TicketSummary {
	return TicketSummary{
		ID:          "t-1",
		Title:       "Printer down",
		Description: "Front desk printer is jammed",
		Category:    "facilities",
		Status:      "open",
	}
}

func TestDispatchFansOutAcrossChannels(t *testing.T) {
	email := newMockSender(domain.TargetTypeEmail)
	smsSender := newMockSender(domain.TargetTypeSMS)
	push := &mockMulticast{}
	d := NewDispatcher(testRenderer(t), push, email, smsSender)

	d.Dispatch(context.Background(), []domain.NotificationTarget{
		{Type: domain.TargetTypeEmail, To: "nate@lakeridepros.com"},
		{Type: domain.TargetTypeSMS, To: "+15551234567"},
		{Type: domain.TargetTypeFCM, To: "token-1"},
		{Type: domain.TargetTypeFCM, To: "token-2"},
	}, testSummary(), "https://lakeridepros.xyz/#/tickets?id=t-1")

	sent := email.getSent()
	require.Len(t, sent, 1)
	assert.Equal(t, "nate@lakeridepros.com", sent[0].To)
	assert.Equal(t, "[LRP] Printer down (open)", sent[0].Subject)
	assert.Contains(t, sent[0].Text, "https://lakeridepros.xyz/#/tickets?id=t-1")
	assert.NotEmpty(t, sent[0].HTML)

	smsSent := smsSender.getSent()
	require.Len(t, smsSent, 1)
	assert.Equal(t, "+15551234567", smsSent[0].To)
	assert.Empty(t, smsSent[0].HTML)

	// All push tokens coalesce into a single multicast call.
	assert.Equal(t, 1, push.calls)
	assert.Equal(t, []string{"token-1", "token-2"}, push.tokens)
	assert.Equal(t, "[LRP] Printer down (open)", push.title)
	assert.Equal(t, "Front desk printer is jammed", push.body)
	assert.Equal(t, map[string]string{
		"url":      "https://lakeridepros.xyz/#/tickets?id=t-1",
		"ticketId": "t-1",
		"title":    "Printer down",
		"status":   "open",
	}, push.data)
}

func TestDispatchDeduplicatesTargets(t *testing.T) {
	email := newMockSender(domain.TargetTypeEmail)
	d := NewDispatcher(testRenderer(t), nil, email)

	d.Dispatch(context.Background(), []domain.NotificationTarget{
		{Type: domain.TargetTypeEmail, To: "nate@lakeridepros.com"},
		{Type: domain.TargetTypeEmail, To: "nate@lakeridepros.com"},
		{Type: domain.TargetTypeEmail, To: ""},
	}, testSummary(), "link")

	assert.Len(t, email.getSent(), 1)
}

func TestDispatchPartialFailureDoesNotBlockOthers(t *testing.T) {
	email := newMockSender(domain.TargetTypeEmail)
	email.failFor["bad@example.com"] = errors.New("mailbox unavailable")
	push := &mockMulticast{err: errors.New("fcm unavailable")}
	d := NewDispatcher(testRenderer(t), push, email)

	d.Dispatch(context.Background(), []domain.NotificationTarget{
		{Type: domain.TargetTypeEmail, To: "bad@example.com"},
		{Type: domain.TargetTypeEmail, To: "good@example.com"},
		{Type: domain.TargetTypeFCM, To: "token-1"},
	}, testSummary(), "link")

	sent := email.getSent()
	require.Len(t, sent, 1)
	assert.Equal(t, "good@example.com", sent[0].To)
	assert.Equal(t, 1, push.calls)
}

func TestDispatchSkipsUnconfiguredChannels(t *testing.T) {
	email := newMockSender(domain.TargetTypeEmail)
	d := NewDispatcher(testRenderer(t), nil, email)

	// No SMS sender and no push sender configured; those targets are
	// silently dropped.
	d.Dispatch(context.Background(), []domain.NotificationTarget{
		{Type: domain.TargetTypeSMS, To: "+15551234567"},
		{Type: domain.TargetTypeFCM, To: "token-1"},
		{Type: domain.TargetTypeEmail, To: "nate@lakeridepros.com"},
	}, testSummary(), "link")

	assert.Len(t, email.getSent(), 1)
}

func TestDispatchEmptyTargetsIsNoOp(t *testing.T) {
	push := &mockMulticast{}
	d := NewDispatcher(testRenderer(t), push)

	d.Dispatch(context.Background(), nil, testSummary(), "link")
	assert.Zero(t, push.calls)
}
