package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"leadflow_backend/internal/campaigns/service"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/config"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// step openers and subjects keyed by sequence position. Steps beyond the
// table reuse the last entry.
var stepOpeners = []string{
	"I noticed %s is growing and thought this might be relevant for you.",
	"Following up on my previous note in case it got buried.",
	"Last note from me. If the timing is wrong, no hard feelings.",
}

var stepSubjects = []string{
	"Quick question about %s",
	"Re: Quick question about %s",
	"Closing the loop, %s",
}

var stepCallsToAction = []string{
	"Would a 15 minute call next week make sense?",
	"Happy to share a short case study if that is easier.",
	"Should I close your file, or is this worth a quick chat?",
}

// TemplateComposer renders outreach emails from the embedded templates.
// Rendering is strict: a missing placeholder value fails the compose rather
// than shipping a broken email.
type TemplateComposer struct {
	html     *htmltemplate.Template
	text     *texttemplate.Template
	fromName string
}

func NewTemplateComposer(cfg config.EmailConfig) (*TemplateComposer, error) {
	html, err := htmltemplate.New("outreach.html.tmpl").
		Option("missingkey=error").
		ParseFS(templateFS, "templates/outreach.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse html template: %w", err)
	}
	text, err := texttemplate.New("outreach.txt.tmpl").
		Option("missingkey=error").
		ParseFS(templateFS, "templates/outreach.txt.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse text template: %w", err)
	}
	return &TemplateComposer{html: html, text: text, fromName: cfg.GetEmailFromName()}, nil
}

type templateData struct {
	FirstName        string
	CompanyName      string
	Opener           string
	ValueProposition string
	TrustSignal      string
	CallToAction     string
	SenderName       string
}

func (c *TemplateComposer) Compose(ctx context.Context, input service.ComposeInput) (service.ComposedEmail, error) {
	var missing []string
	if strings.TrimSpace(input.FirstName) == "" {
		missing = append(missing, "firstName")
	}
	if strings.TrimSpace(input.ValueProposition) == "" {
		missing = append(missing, "valueProposition")
	}
	if len(missing) > 0 {
		return service.ComposedEmail{}, apperr.Validation("cannot compose email, missing: " + strings.Join(missing, ", "))
	}

	company := input.CompanyName
	if company == "" {
		company = "your team"
	}

	idx := input.Step - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(stepOpeners) {
		idx = len(stepOpeners) - 1
	}

	data := templateData{
		FirstName:        input.FirstName,
		CompanyName:      company,
		Opener:           fmt.Sprintf(stepOpeners[idx], company),
		ValueProposition: input.ValueProposition,
		TrustSignal:      input.TrustSignal,
		CallToAction:     stepCallsToAction[idx],
		SenderName:       c.fromName,
	}
	if idx > 0 {
		// Follow-up openers have no substitution slot.
		data.Opener = stepOpeners[idx]
	}

	var htmlBuf bytes.Buffer
	if err := c.html.Execute(&htmlBuf, data); err != nil {
		return service.ComposedEmail{}, apperr.Validation("template rendering failed: " + err.Error())
	}
	var textBuf bytes.Buffer
	if err := c.text.Execute(&textBuf, data); err != nil {
		return service.ComposedEmail{}, apperr.Validation("template rendering failed: " + err.Error())
	}

	subjectName := input.CompanyName
	if subjectName == "" {
		subjectName = input.FirstName
	}

	return service.ComposedEmail{
		Subject:  fmt.Sprintf(stepSubjects[idx], subjectName),
		BodyHTML: htmlBuf.String(),
		BodyText: textBuf.String(),
	}, nil
}
