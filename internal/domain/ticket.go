package domain

import (
	"strings"
	"time"
)

// TicketStatus represents the lifecycle state of a ticket.
type TicketStatus string

// Ticket statuses.
const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusBreached   TicketStatus = "breached"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// TicketPriority represents the urgency of a ticket.
type TicketPriority string

// Ticket priorities.
const (
	TicketPriorityUrgent TicketPriority = "urgent"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityNormal TicketPriority = "normal"
	TicketPriorityLow    TicketPriority = "low"
)

// SLAMinutes returns the allotted response time in minutes for a priority.
// Unknown or empty priorities fall back to normal. Matching is
// case-insensitive.
func SLAMinutes(priority TicketPriority) int {
	switch TicketPriority(strings.ToLower(string(priority))) {
	case TicketPriorityUrgent:
		return 120
	case TicketPriorityHigh:
		return 480
	case TicketPriorityLow:
		return 72 * 60
	default:
		return 24 * 60
	}
}

// UserRef identifies a ticket participant. The product evolved its identity
// scheme over time, so a reference may carry an opaque user id, a raw email,
// or both.
type UserRef struct {
	UserID      string `json:"userId,omitempty"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// Ref returns the best raw identifier for endpoint resolution: the user id
// when present, otherwise the email. Empty when the reference is blank.
func (u UserRef) Ref() string {
	if id := strings.TrimSpace(u.UserID); id != "" {
		return id
	}
	return strings.TrimSpace(u.Email)
}

// IsZero reports whether the reference carries no identifier.
func (u UserRef) IsZero() bool {
	return u.Ref() == ""
}

// SLA holds the service-level deadline for a ticket. BreachAt is set exactly
// once on the first write and never recomputed afterwards.
type SLA struct {
	Minutes  int       `json:"minutes"`
	BreachAt time.Time `json:"breachAt"`
}

// IsSet reports whether the SLA deadline has been initialized.
func (s SLA) IsSet() bool {
	return !s.BreachAt.IsZero()
}

// Ticket is a support/dispatch record.
type Ticket struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Category      string         `json:"category"`
	Status        TicketStatus   `json:"status"`
	Priority      TicketPriority `json:"priority"`
	CreatedBy     UserRef        `json:"createdBy"`
	Assignee      UserRef        `json:"assignee"`
	Watchers      []string       `json:"watchers,omitempty"`
	SLA           SLA            `json:"sla"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	LastCommentAt time.Time      `json:"lastCommentAt,omitempty"`
}

// Stakeholders returns the deduplicated raw references of everyone who
// should hear about changes to the ticket: creator, assignee, and watchers.
func (t *Ticket) Stakeholders() []string {
	seen := make(map[string]struct{})
	refs := make([]string, 0, 2+len(t.Watchers))

	add := func(ref string) {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			return
		}
		if _, ok := seen[ref]; ok {
			return
		}
		seen[ref] = struct{}{}
		refs = append(refs, ref)
	}

	add(t.CreatedBy.Ref())
	add(t.Assignee.Ref())
	for _, w := range t.Watchers {
		add(w)
	}
	return refs
}

// Comment is a subordinate record attached to a ticket.
type Comment struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticketId"`
	Author    UserRef   `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}
