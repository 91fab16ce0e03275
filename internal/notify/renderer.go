package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"text/template"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

const defaultSource = "LRP"

// Renderer composes notification subjects and bodies from a ticket summary.
type Renderer struct {
	source string
	email  *template.Template
}

// emailContext is the data passed to the email HTML template.
type emailContext struct {
	Title       string
	Description string
	Status      string
	Link        string
}

// NewRenderer creates a renderer. The source tag prefixes every subject
// line, e.g. "[LRP] Printer down (open)".
func NewRenderer(source string) (*Renderer, error) {
	if source == "" {
		source = defaultSource
	}

	titler := cases.Title(language.English)
	funcMap := template.FuncMap{
		"escapeHTML": html.EscapeString,
		"title":      titler.String,
		"upper":      strings.ToUpper,
		"lower":      strings.ToLower,
	}

	content, err := templatesFS.ReadFile("templates/email.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("read email template: %w", err)
	}

	tmpl, err := template.New("email").Funcs(funcMap).Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("parse email template: %w", err)
	}

	return &Renderer{source: source, email: tmpl}, nil
}

// Subject renders the subject line shared by every channel.
func (r *Renderer) Subject(ticket TicketSummary) string {
	title := ticket.Title
	if title == "" {
		title = "Ticket"
	}
	subject := fmt.Sprintf("[%s] %s", r.source, title)
	if ticket.Status != "" {
		subject += fmt.Sprintf(" (%s)", ticket.Status)
	}
	return subject
}

// Text renders the plain-text body: the description followed by the deep
// link.
func (r *Renderer) Text(ticket TicketSummary, link string) string {
	return strings.TrimSpace(ticket.Description + "\n" + link)
}

// HTML renders the HTML email body. A render failure falls back to the
// plain-text body.
func (r *Renderer) HTML(ticket TicketSummary, link string) string {
	var buf bytes.Buffer
	err := r.email.Execute(&buf, emailContext{
		Title:       ticket.Title,
		Description: ticket.Description,
		Status:      ticket.Status,
		Link:        link,
	})
	if err != nil {
		slog.Warn("email template render failed", "ticket_id", ticket.ID, "error", err)
		return r.Text(ticket, link)
	}
	return buf.String()
}
