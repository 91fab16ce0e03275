package tickets

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lakeridepros/ticketwatch/internal/domain"
	"github.com/lakeridepros/ticketwatch/internal/notify"
)

// SweeperConfig contains sweep scheduler configuration.
type SweeperConfig struct {
	Interval  time.Duration
	Lookahead time.Duration
	PageSize  int
}

// DefaultSweeperConfig returns the default sweep configuration.
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Interval:  time.Hour,
		Lookahead: time.Hour,
		PageSize:  100,
	}
}

// Sweeper periodically finds tickets whose SLA deadline has passed without
// resolution, marks them breached, and notifies stakeholders. It keeps no
// state between runs; every run is a pure function of store state, so
// re-deployment or horizontal scaling never loses pending breach checks.
type Sweeper struct {
	config     SweeperConfig
	repo       Repository
	resolver   TargetResolver
	dispatcher Dispatcher
	watcher    *Watcher
	now        func() time.Time
}

// NewSweeper creates an SLA sweep scheduler. The watcher is only used for
// deep-link construction so both triggers share one format.
func NewSweeper(config SweeperConfig, repo Repository, resolver TargetResolver, dispatcher Dispatcher, watcher *Watcher) *Sweeper {
	if config.Interval <= 0 {
		config.Interval = time.Hour
	}
	if config.Lookahead <= 0 {
		config.Lookahead = time.Hour
	}
	if config.PageSize <= 0 {
		config.PageSize = 100
	}
	return &Sweeper{
		config:     config,
		repo:       repo,
		resolver:   resolver,
		dispatcher: dispatcher,
		watcher:    watcher,
		now:        time.Now,
	}
}

// Run executes sweeps on a fixed interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	slog.Info("starting sla sweeper",
		"interval", s.config.Interval,
		"lookahead", s.config.Lookahead,
		"page_size", s.config.PageSize,
	)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("sla sweeper stopped")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				slog.Error("sla sweep failed", "error", err)
			}
		}
	}
}

// RunOnce executes a single sweep. The candidate query uses a look-ahead
// window wider than the actual due condition, so each candidate is
// re-checked precisely before acting. Re-running against an already-breached
// ticket is a no-op thanks to the status guard, which is what guarantees
// at-most-one breach notification per ticket.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	now := s.now()
	recordSweepRun()

	candidates, err := s.repo.FindBreachCandidates(ctx, now.Add(s.config.Lookahead), s.config.PageSize)
	if err != nil {
		return fmt.Errorf("find breach candidates: %w", err)
	}

	for i := range candidates {
		ticket := &candidates[i]

		if !ticket.SLA.IsSet() || !ticket.SLA.BreachAt.Before(now) {
			continue
		}
		if ticket.Status == domain.TicketStatusBreached {
			continue
		}

		if err := s.breach(ctx, ticket, now); err != nil {
			slog.Error("failed to process breached ticket", "ticket_id", ticket.ID, "error", err)
			recordSweepFailure()
		}
	}

	return nil
}

func (s *Sweeper) breach(ctx context.Context, ticket *domain.Ticket, now time.Time) error {
	breached, err := s.repo.MarkBreached(ctx, ticket.ID, now)
	if err != nil {
		return fmt.Errorf("mark breached: %w", err)
	}
	if !breached {
		// A concurrent sweep or writer already handled it; skip quietly.
		return nil
	}
	recordSweepBreach()

	refs := ticket.Stakeholders()
	targets := s.resolver.Resolve(ctx, refs)
	if len(targets) == 0 {
		return nil
	}

	summary := notify.TicketSummary{
		ID:          ticket.ID,
		Title:       ticket.Title,
		Description: ticket.Description,
		Category:    ticket.Category,
		Status:      "breached",
	}

	s.dispatcher.Dispatch(ctx, targets, summary, s.watcher.DeepLink(ticket.ID))
	return nil
}
