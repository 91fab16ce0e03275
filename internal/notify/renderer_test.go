package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRendererSubject(t *testing.T) {
	renderer, err := NewRenderer("LRP")
	require.NoError(t, err)

	assert.Equal(t, "[LRP] Printer down (open)", renderer.Subject(TicketSummary{
		Title:  "Printer down",
		Status: "open",
	}))

	assert.Equal(t, "[LRP] Printer down", renderer.Subject(TicketSummary{
		Title: "Printer down",
	}))

	assert.Equal(t, "[LRP] Ticket (breached)", renderer.Subject(TicketSummary{
		Status: "breached",
	}))
}

func TestRendererSubjectCustomSource(t *testing.T) {
	renderer, err := NewRenderer("DISPATCH")
	require.NoError(t, err)

	assert.Equal(t, "[DISPATCH] Flat tire (open)", renderer.Subject(TicketSummary{
		Title:  "Flat tire",
		Status: "open",
	}))
}

func TestRendererText(t *testing.T) {
	renderer, err := NewRenderer("")
	require.NoError(t, err)

	text := renderer.Text(TicketSummary{Description: "Needs a tow"}, "https://lakeridepros.xyz/#/tickets?id=t-1")
	assert.Equal(t, "Needs a tow\nhttps://lakeridepros.xyz/#/tickets?id=t-1", text)

	// Empty description leaves just the link.
	text = renderer.Text(TicketSummary{}, "https://lakeridepros.xyz/#/tickets?id=t-1")
	assert.Equal(t, "https://lakeridepros.xyz/#/tickets?id=t-1", text)
}

func TestRendererHTML(t *testing.T) {
	renderer, err := NewRenderer("LRP")
	require.NoError(t, err)

	html := renderer.HTML(TicketSummary{
		ID:          "t-1",
		Title:       "Printer <script> down",
		Description: "Front desk & lobby",
		Status:      "open",
	}, "https://lakeridepros.xyz/#/tickets?id=t-1")

	assert.Contains(t, html, "https://lakeridepros.xyz/#/tickets?id=t-1")
	assert.Contains(t, html, "Printer &lt;script&gt; down")
	assert.Contains(t, html, "Front desk &amp; lobby")
	assert.NotContains(t, html, "<script>")
}
