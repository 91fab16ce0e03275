package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lakeridepros/ticketwatch/internal/domain"
)

// defaultSendTimeout bounds each channel call so a hung provider cannot
// block sibling channels past its own deadline.
const defaultSendTimeout = 15 * time.Second

// Dispatcher sends a composed ticket message to a set of resolved targets.
// Channels execute independently: a failure on one channel or recipient
// never short-circuits the others, and Dispatch never reports an error to
// the caller.
type Dispatcher struct {
	push        MulticastSender
	senders     map[domain.TargetType]Sender
	renderer    *Renderer
	sendTimeout time.Duration
}

// NewDispatcher creates a dispatcher. The push sender and any of the
// per-recipient senders may be nil; targets for an unconfigured channel are
// silently skipped.
func NewDispatcher(renderer *Renderer, push MulticastSender, senders ...Sender) *Dispatcher {
	senderMap := make(map[domain.TargetType]Sender)
	for _, s := range senders {
		if s != nil {
			senderMap[s.Type()] = s
		}
	}
	return &Dispatcher{
		push:        push,
		senders:     senderMap,
		renderer:    renderer,
		sendTimeout: defaultSendTimeout,
	}
}

// Dispatch delivers the ticket message to every target, fanning out across
// channels. Duplicate (type, to) pairs are collapsed before sending.
func (d *Dispatcher) Dispatch(ctx context.Context, targets []domain.NotificationTarget, ticket TicketSummary, link string) {
	targets = dedupeTargets(targets)
	if len(targets) == 0 {
		return
	}

	subject := d.renderer.Subject(ticket)
	text := d.renderer.Text(ticket, link)
	html := d.renderer.HTML(ticket, link)

	var tokens []string
	var emails, phones []string
	for _, t := range targets {
		switch t.Type {
		case domain.TargetTypeFCM:
			tokens = append(tokens, t.To)
		case domain.TargetTypeEmail:
			emails = append(emails, t.To)
		case domain.TargetTypeSMS:
			phones = append(phones, t.To)
		}
	}

	var wg sync.WaitGroup

	if len(tokens) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.sendPush(ctx, tokens, ticket, subject, link)
		}()
	}

	if len(emails) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, to := range emails {
				d.sendOne(ctx, domain.TargetTypeEmail, Notification{
					To:      to,
					Subject: subject,
					Text:    text,
					HTML:    html,
				})
			}
		}()
	}

	if len(phones) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sender, ok := d.senders[domain.TargetTypeSMS]
			if !ok {
				// SMS is optional; no configuration means the channel
				// degrades to a silent skip.
				slog.Debug("sms channel not configured, skipping", "count", len(phones))
				return
			}
			for _, to := range phones {
				d.sendWith(ctx, sender, Notification{To: to, Subject: subject, Text: text})
			}
		}()
	}

	wg.Wait()
}

func (d *Dispatcher) sendPush(ctx context.Context, tokens []string, ticket TicketSummary, title, link string) {
	if d.push == nil {
		slog.Debug("push channel not configured, skipping", "count", len(tokens))
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	start := time.Now()
	data := map[string]string{
		"url":      link,
		"ticketId": ticket.ID,
		"title":    ticket.Title,
		"status":   ticket.Status,
	}
	err := d.push.SendMulticast(sendCtx, tokens, title, ticket.Description, data)
	if err != nil {
		slog.Error("push multicast failed", "tokens", len(tokens), "error", err)
		recordSent(string(domain.TargetTypeFCM), "failed")
		return
	}
	recordSent(string(domain.TargetTypeFCM), "success")
	recordDuration(string(domain.TargetTypeFCM), time.Since(start))
}

func (d *Dispatcher) sendOne(ctx context.Context, targetType domain.TargetType, n Notification) {
	sender, ok := d.senders[targetType]
	if !ok {
		slog.Warn("no sender for channel", "type", targetType)
		return
	}
	d.sendWith(ctx, sender, n)
}

func (d *Dispatcher) sendWith(ctx context.Context, sender Sender, n Notification) {
	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	start := time.Now()
	if err := sender.Send(sendCtx, n); err != nil {
		slog.Error("failed to send notification",
			"channel_type", sender.Type(),
			"to", n.To,
			"error", err,
		)
		recordSent(string(sender.Type()), "failed")
		return
	}
	recordSent(string(sender.Type()), "success")
	recordDuration(string(sender.Type()), time.Since(start))
}

// dedupeTargets collapses duplicate (type, to) pairs, preserving order.
func dedupeTargets(targets []domain.NotificationTarget) []domain.NotificationTarget {
	seen := make(map[domain.NotificationTarget]struct{}, len(targets))
	out := make([]domain.NotificationTarget, 0, len(targets))
	for _, t := range targets {
		if t.To == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
