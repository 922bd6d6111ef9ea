package api

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/ashureev/wargame/internal/domain"
)

// unsafeHrefRe matches href/src attributes with dangerous URL schemes in goldmark output.
var unsafeHrefRe = regexp.MustCompile(`(?i)(href|src)="(?:javascript|vbscript|data):[^"]*"`)

var markdown = goldmark.New(
	goldmark.WithRendererOptions(goldmarkhtml.WithHardWraps()),
)

var transcriptTmpl = template.Must(template.New("transcript").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Wargame {{.ID}}</title></head>
<body>
<h1>Wargame transcript</h1>
{{range .Turns}}<section class="{{.Role}}">
{{.Body}}
</section>
{{else}}<p>The scenario has not started.</p>
{{end}}</body></html>
`))

type transcriptTurn struct {
	Role string
	Body template.HTML
}

// renderMarkdown converts one message to sanitized HTML. Goldmark's
// default renderer already drops raw HTML.
func renderMarkdown(s string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(s), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(s))
	}
	return template.HTML(unsafeHrefRe.ReplaceAllString(buf.String(), `$1="#"`)) //nolint:gosec // sanitized above
}

// RenderTranscript writes the transcript as a standalone HTML page.
func RenderTranscript(id string, messages []domain.Message) ([]byte, error) {
	turns := make([]transcriptTurn, len(messages))
	for i, m := range messages {
		turns[i] = transcriptTurn{Role: string(m.Role), Body: renderMarkdown(m.Content)}
	}
	var buf bytes.Buffer
	if err := transcriptTmpl.Execute(&buf, struct {
		ID    string
		Turns []transcriptTurn
	}{id, turns}); err != nil {
		return nil, fmt.Errorf("render transcript: %w", err)
	}
	return buf.Bytes(), nil
}

func (h *Handler) transcript(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	messages, err := h.svc.History(id)
	if err != nil {
		h.writeError(w, r, "transcript", err)
		return
	}
	page, err := RenderTranscript(id, messages)
	if err != nil {
		h.writeError(w, r, "transcript", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page)
}
