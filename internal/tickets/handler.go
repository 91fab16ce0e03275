package tickets

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/lakeridepros/ticketwatch/internal/domain"
	"github.com/lakeridepros/ticketwatch/internal/identity"
	"github.com/lakeridepros/ticketwatch/internal/pkg/httputil"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrTicketNotFound, Status: http.StatusNotFound, Message: "ticket not found"},
}

// Handler handles HTTP requests for the tickets module. Every successful
// write hands the before/after pair to the change watcher asynchronously;
// the write response never waits on notification work.
type Handler struct {
	repo      Repository
	watcher   *Watcher
	validator *validator.Validate
}

// NewHandler creates a new tickets handler.
func NewHandler(repo Repository, watcher *Watcher) *Handler {
	return &Handler{
		repo:      repo,
		watcher:   watcher,
		validator: validator.New(),
	}
}

// RegisterRoutes registers ticket routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/tickets", func(r chi.Router) {
		r.Post("/", h.CreateTicket)
		r.Get("/{id}", h.GetTicket)
		r.Patch("/{id}", h.UpdateTicket)
		r.Post("/{id}/comments", h.AddComment)
	})
}

// UserRefPayload is an incoming user reference.
type UserRefPayload struct {
	UserID      string `json:"userId"`
	Email       string `json:"email" validate:"omitempty,email"`
	DisplayName string `json:"displayName"`
}

func (p UserRefPayload) toRef() domain.UserRef {
	return identity.NormalizeRef(domain.UserRef{
		UserID:      p.UserID,
		Email:       p.Email,
		DisplayName: p.DisplayName,
	})
}

// CreateTicketRequest represents request body for creating a ticket.
type CreateTicketRequest struct {
	Title       string         `json:"title" validate:"required"`
	Description string         `json:"description"`
	Category    string         `json:"category"`
	Priority    string         `json:"priority" validate:"omitempty,oneof=urgent high normal low"`
	CreatedBy   UserRefPayload `json:"createdBy"`
	Assignee    UserRefPayload `json:"assignee"`
	Watchers    []string       `json:"watchers"`
}

// UpdateTicketRequest represents request body for a partial ticket update.
type UpdateTicketRequest struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Category    *string         `json:"category"`
	Status      *string         `json:"status" validate:"omitempty,oneof=open in_progress breached resolved closed"`
	Priority    *string         `json:"priority" validate:"omitempty,oneof=urgent high normal low"`
	Assignee    *UserRefPayload `json:"assignee"`
	Watchers    *[]string       `json:"watchers"`
}

// AddCommentRequest represents request body for adding a comment.
type AddCommentRequest struct {
	Body   string         `json:"body" validate:"required"`
	Author UserRefPayload `json:"author"`
}

// CreateTicket handles POST /tickets.
func (h *Handler) CreateTicket(w http.ResponseWriter, r *http.Request) {
	var req CreateTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	now := time.Now()
	priority := domain.TicketPriority(strings.ToLower(req.Priority))
	if priority == "" {
		priority = domain.TicketPriorityNormal
	}
	category := req.Category
	if category == "" {
		category = "general"
	}

	ticket := &domain.Ticket{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		Category:    category,
		Status:      domain.TicketStatusOpen,
		Priority:    priority,
		CreatedBy:   req.CreatedBy.toRef(),
		Assignee:    req.Assignee.toRef(),
		Watchers:    req.Watchers,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.repo.Create(r.Context(), ticket); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	h.notifyWrite(r.Context(), nil, ticket)
	httputil.Success(w, http.StatusCreated, ticket)
}

// GetTicket handles GET /tickets/{id}.
func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.repo.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, ticket)
}

// UpdateTicket handles PATCH /tickets/{id}.
func (h *Handler) UpdateTicket(w http.ResponseWriter, r *http.Request) {
	var req UpdateTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	before, err := h.repo.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	after := *before
	after.Watchers = append([]string(nil), before.Watchers...)
	if req.Title != nil {
		after.Title = *req.Title
	}
	if req.Description != nil {
		after.Description = *req.Description
	}
	if req.Category != nil {
		after.Category = *req.Category
	}
	if req.Status != nil {
		after.Status = domain.TicketStatus(*req.Status)
	}
	if req.Priority != nil {
		after.Priority = domain.TicketPriority(*req.Priority)
	}
	if req.Assignee != nil {
		after.Assignee = req.Assignee.toRef()
	}
	if req.Watchers != nil {
		after.Watchers = *req.Watchers
	}
	after.UpdatedAt = time.Now()

	if err := h.repo.Update(r.Context(), &after); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	h.notifyWrite(r.Context(), before, &after)
	httputil.Success(w, http.StatusOK, &after)
}

// AddComment handles POST /tickets/{id}/comments.
func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	var req AddCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	before, err := h.repo.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	now := time.Now()
	comment := &domain.Comment{
		ID:        uuid.NewString(),
		TicketID:  before.ID,
		Author:    req.Author.toRef(),
		Body:      req.Body,
		CreatedAt: now,
	}

	if err := h.repo.AddComment(r.Context(), comment); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	after := *before
	after.LastCommentAt = now
	after.UpdatedAt = now
	if err := h.repo.Update(r.Context(), &after); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	h.notifyWrite(r.Context(), before, &after)
	httputil.Success(w, http.StatusCreated, comment)
}

// notifyWrite hands the write to the change watcher on a detached context
// so notification work survives the request and cannot fail it. The watcher
// gets its own copies: it mutates the ticket it is given (SLA init), and the
// handler is still encoding the original into the response.
func (h *Handler) notifyWrite(ctx context.Context, before, after *domain.Ticket) {
	detached := context.WithoutCancel(ctx)
	beforeCopy := cloneTicket(before)
	afterCopy := cloneTicket(after)
	go h.watcher.OnWrite(detached, beforeCopy, afterCopy)
}

func cloneTicket(t *domain.Ticket) *domain.Ticket {
	if t == nil {
		return nil
	}
	clone := *t
	clone.Watchers = append([]string(nil), t.Watchers...)
	return &clone
}
