// Package postgres provides the PostgreSQL implementation of the tickets
// repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lakeridepros/ticketwatch/internal/domain"
	"github.com/lakeridepros/ticketwatch/internal/tickets"
)

// Repository implements tickets.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const ticketColumns = `
	id, title, description, category, status, priority,
	created_by_user_id, created_by_email, created_by_name,
	assignee_user_id, assignee_email, assignee_name,
	watchers, sla_minutes, sla_breach_at,
	created_at, updated_at, last_comment_at
`

// Create inserts a new ticket.
func (r *Repository) Create(ctx context.Context, t *domain.Ticket) error {
	query := `
		INSERT INTO tickets (
			id, title, description, category, status, priority,
			created_by_user_id, created_by_email, created_by_name,
			assignee_user_id, assignee_email, assignee_name,
			watchers, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := r.db.Exec(ctx, query,
		t.ID, t.Title, t.Description, t.Category, t.Status, t.Priority,
		t.CreatedBy.UserID, t.CreatedBy.Email, t.CreatedBy.DisplayName,
		t.Assignee.UserID, t.Assignee.Email, t.Assignee.DisplayName,
		t.Watchers, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create ticket: %w", err)
	}
	return nil
}

// Get retrieves a ticket by id.
func (r *Repository) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`
	ticket, err := scanTicket(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tickets.ErrTicketNotFound
		}
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return ticket, nil
}

// Update persists the mutable ticket fields. The SLA record is deliberately
// excluded; it only ever moves through SetSLAIfAbsent.
func (r *Repository) Update(ctx context.Context, t *domain.Ticket) error {
	query := `
		UPDATE tickets
		SET title = $2, description = $3, category = $4, status = $5,
		    priority = $6,
		    assignee_user_id = $7, assignee_email = $8, assignee_name = $9,
		    watchers = $10, updated_at = $11, last_comment_at = $12
		WHERE id = $1
	`
	result, err := r.db.Exec(ctx, query,
		t.ID, t.Title, t.Description, t.Category, t.Status,
		t.Priority,
		t.Assignee.UserID, t.Assignee.Email, t.Assignee.DisplayName,
		t.Watchers, t.UpdatedAt, nullableTime(t.LastCommentAt),
	)
	if err != nil {
		return fmt.Errorf("update ticket: %w", err)
	}
	if result.RowsAffected() == 0 {
		return tickets.ErrTicketNotFound
	}
	return nil
}

// SetSLAIfAbsent sets the SLA record only when no deadline exists yet.
func (r *Repository) SetSLAIfAbsent(ctx context.Context, id string, sla domain.SLA) (bool, error) {
	query := `
		UPDATE tickets
		SET sla_minutes = $2, sla_breach_at = $3
		WHERE id = $1 AND sla_breach_at IS NULL
	`
	result, err := r.db.Exec(ctx, query, id, sla.Minutes, sla.BreachAt)
	if err != nil {
		return false, fmt.Errorf("set ticket sla: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// MarkBreached transitions a still-open ticket to breached.
func (r *Repository) MarkBreached(ctx context.Context, id string, now time.Time) (bool, error) {
	query := `
		UPDATE tickets
		SET status = $2, updated_at = $3
		WHERE id = $1 AND status = ANY($4)
	`
	result, err := r.db.Exec(ctx, query, id,
		domain.TicketStatusBreached, now,
		[]string{string(domain.TicketStatusOpen), string(domain.TicketStatusInProgress)},
	)
	if err != nil {
		return false, fmt.Errorf("mark ticket breached: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// FindBreachCandidates returns open or in-progress tickets whose deadline
// falls at or before the cutoff, oldest deadline first.
func (r *Repository) FindBreachCandidates(ctx context.Context, cutoff time.Time, limit int) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + `
		FROM tickets
		WHERE status = ANY($1) AND sla_breach_at IS NOT NULL AND sla_breach_at <= $2
		ORDER BY sla_breach_at
		LIMIT $3
	`
	rows, err := r.db.Query(ctx, query,
		[]string{string(domain.TicketStatusOpen), string(domain.TicketStatusInProgress)},
		cutoff, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("find breach candidates: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Ticket, 0)
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

// AddComment inserts a ticket comment.
func (r *Repository) AddComment(ctx context.Context, c *domain.Comment) error {
	query := `
		INSERT INTO ticket_comments (id, ticket_id, author_user_id, author_email, author_name, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		c.ID, c.TicketID,
		c.Author.UserID, c.Author.Email, c.Author.DisplayName,
		c.Body, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("add comment: %w", err)
	}
	return nil
}

// LatestComment returns the most recent comment on a ticket.
func (r *Repository) LatestComment(ctx context.Context, ticketID string) (*domain.Comment, error) {
	query := `
		SELECT id, ticket_id, author_user_id, author_email, author_name, body, created_at
		FROM ticket_comments
		WHERE ticket_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	var c domain.Comment
	err := r.db.QueryRow(ctx, query, ticketID).Scan(
		&c.ID, &c.TicketID,
		&c.Author.UserID, &c.Author.Email, &c.Author.DisplayName,
		&c.Body, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tickets.ErrNoComments
		}
		return nil, fmt.Errorf("latest comment: %w", err)
	}
	return &c, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (*domain.Ticket, error) {
	var (
		t           domain.Ticket
		slaMinutes  *int
		slaBreachAt *time.Time
		lastComment *time.Time
	)
	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.Category, &t.Status, &t.Priority,
		&t.CreatedBy.UserID, &t.CreatedBy.Email, &t.CreatedBy.DisplayName,
		&t.Assignee.UserID, &t.Assignee.Email, &t.Assignee.DisplayName,
		&t.Watchers, &slaMinutes, &slaBreachAt,
		&t.CreatedAt, &t.UpdatedAt, &lastComment,
	)
	if err != nil {
		return nil, err
	}
	if slaMinutes != nil {
		t.SLA.Minutes = *slaMinutes
	}
	if slaBreachAt != nil {
		t.SLA.BreachAt = *slaBreachAt
	}
	if lastComment != nil {
		t.LastCommentAt = *lastComment
	}
	return &t, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
