package tickets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lakeridepros/ticketwatch/internal/domain"
	"github.com/lakeridepros/ticketwatch/internal/notify"
)

// TargetResolver maps raw user references to deliverable endpoints.
type TargetResolver interface {
	Resolve(ctx context.Context, rawRefs []string) []domain.NotificationTarget
}

// Dispatcher delivers a composed ticket message to resolved targets.
type Dispatcher interface {
	Dispatch(ctx context.Context, targets []domain.NotificationTarget, ticket notify.TicketSummary, link string)
}

// Watcher reacts to ticket writes: it initializes the SLA deadline on first
// write and notifies stakeholders of notification-worthy changes. It never
// propagates a failure back to the triggering write.
type Watcher struct {
	repo       Repository
	resolver   TargetResolver
	dispatcher Dispatcher
	origin     string
	now        func() time.Time
}

// NewWatcher creates a ticket change watcher. origin is the UI origin used
// to build deep links.
func NewWatcher(repo Repository, resolver TargetResolver, dispatcher Dispatcher, origin string) *Watcher {
	return &Watcher{
		repo:       repo,
		resolver:   resolver,
		dispatcher: dispatcher,
		origin:     origin,
		now:        time.Now,
	}
}

// DeepLink builds the UI link for a ticket.
func (w *Watcher) DeepLink(ticketID string) string {
	return fmt.Sprintf("%s/#/tickets?id=%s", w.origin, ticketID)
}

// OnWrite handles one ticket write. before is nil on create; after is the
// current document state. Handlers tolerate out-of-order delivery because
// after is always re-read state, never a trusted event payload.
func (w *Watcher) OnWrite(ctx context.Context, before, after *domain.Ticket) {
	if after == nil {
		// Deletion; nothing to do.
		return
	}

	w.ensureSLA(ctx, after)

	if !importantChanged(before, after) {
		slog.Debug("ticket change is not notification-worthy", "ticket_id", after.ID)
		return
	}

	refs := after.Stakeholders()
	if len(refs) == 0 {
		return
	}

	targets := w.resolver.Resolve(ctx, refs)
	if len(targets) == 0 {
		// A batch with zero resolvable references is a legitimate no-op.
		return
	}

	description := after.Description
	if commentChanged(before, after) {
		description = w.latestCommentDescription(ctx, after.ID, description)
	}

	summary := notify.TicketSummary{
		ID:          after.ID,
		Title:       after.Title,
		Description: description,
		Category:    after.Category,
		Status:      string(after.Status),
	}

	w.dispatcher.Dispatch(ctx, targets, summary, w.DeepLink(after.ID))
}

// ensureSLA computes and persists the SLA record when the deadline has not
// been set yet. The conditional write makes concurrent or duplicate
// triggers a no-op; breachAt is never recomputed once present.
func (w *Watcher) ensureSLA(ctx context.Context, after *domain.Ticket) {
	if after.SLA.IsSet() {
		return
	}

	minutes := domain.SLAMinutes(after.Priority)
	base := after.CreatedAt
	if base.IsZero() {
		base = w.now()
	}
	sla := domain.SLA{
		Minutes:  minutes,
		BreachAt: base.Add(time.Duration(minutes) * time.Minute),
	}

	set, err := w.repo.SetSLAIfAbsent(ctx, after.ID, sla)
	if err != nil {
		slog.Error("failed to set ticket sla", "ticket_id", after.ID, "error", err)
		return
	}
	if set {
		after.SLA = sla
	}
}

// latestCommentDescription replaces the notification description with the
// newest comment body. Lookup failures fall back to the ticket's own
// description.
func (w *Watcher) latestCommentDescription(ctx context.Context, ticketID, fallback string) string {
	comment, err := w.repo.LatestComment(ctx, ticketID)
	if err != nil {
		if !errors.Is(err, ErrNoComments) {
			slog.Warn("comment lookup failed", "ticket_id", ticketID, "error", err)
		}
		return fallback
	}
	if comment.Body == "" {
		return fallback
	}
	return "New comment: " + comment.Body
}

// importantChanged reports whether the write warrants a notification:
// creation, or a change to status, assignee, priority, or the last-comment
// timestamp. Everything else is noise.
func importantChanged(before, after *domain.Ticket) bool {
	if before == nil {
		return true
	}
	if before.Status != after.Status {
		return true
	}
	if before.Assignee.Ref() != after.Assignee.Ref() {
		return true
	}
	if before.Priority != after.Priority {
		return true
	}
	return commentChanged(before, after)
}

func commentChanged(before, after *domain.Ticket) bool {
	if before == nil {
		return !after.LastCommentAt.IsZero()
	}
	return !before.LastCommentAt.Equal(after.LastCommentAt)
}
