// Package notify delivers ticket notifications across push, email, and SMS
// channels on a best-effort basis.
package notify

import (
	"context"

	"github.com/lakeridepros/ticketwatch/internal/domain"
)

// Notification is a single composed message for one recipient.
type Notification struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// TicketSummary is the ticket-shaped payload carried by a notification.
type TicketSummary struct {
	ID          string
	Title       string
	Description string
	Category    string
	Status      string
}

// Sender delivers notifications on one channel, one recipient at a time.
type Sender interface {
	Type() domain.TargetType
	Send(ctx context.Context, n Notification) error
}

// MulticastSender delivers one push message to many device tokens in a
// single call.
type MulticastSender interface {
	Type() domain.TargetType
	SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) error
}
