// Package tickets implements ticket change watching and SLA breach
// enforcement.
package tickets

import (
	"context"
	"errors"
	"time"

	"github.com/lakeridepros/ticketwatch/internal/domain"
)

// Repository errors.
var (
	ErrTicketNotFound = errors.New("ticket not found")
	ErrNoComments     = errors.New("ticket has no comments")
)

// Repository defines the interface for ticket data access.
type Repository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Get(ctx context.Context, id string) (*domain.Ticket, error)
	Update(ctx context.Context, ticket *domain.Ticket) error

	// SetSLAIfAbsent persists the SLA record only when no deadline has been
	// set yet, leaving every other field untouched. Returns true when the
	// write happened, false when an SLA was already present.
	SetSLAIfAbsent(ctx context.Context, id string, sla domain.SLA) (bool, error)

	// MarkBreached flips the ticket status to breached, guarded so that an
	// already-breached or closed ticket is left alone. Returns true when
	// the transition happened.
	MarkBreached(ctx context.Context, id string, now time.Time) (bool, error)

	// FindBreachCandidates returns open or in-progress tickets whose SLA
	// deadline falls at or before the cutoff, bounded by limit.
	FindBreachCandidates(ctx context.Context, cutoff time.Time, limit int) ([]domain.Ticket, error)

	AddComment(ctx context.Context, comment *domain.Comment) error

	// LatestComment returns the most recent comment on a ticket, or
	// ErrNoComments when there is none.
	LatestComment(ctx context.Context, ticketID string) (*domain.Comment, error)
}
