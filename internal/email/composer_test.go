package email

import (
	"context"
	"html"
	"strings"
	"testing"

	"leadflow_backend/internal/campaigns/service"
	"leadflow_backend/platform/apperr"
)

type stubEmailConfig struct{}

func (stubEmailConfig) GetEmailEnabled() bool       { return false }
func (stubEmailConfig) GetSMTPHost() string         { return "localhost" }
func (stubEmailConfig) GetSMTPPort() int            { return 1025 }
func (stubEmailConfig) GetSMTPUsername() string     { return "" }
func (stubEmailConfig) GetSMTPPassword() string     { return "" }
func (stubEmailConfig) GetEmailFromName() string    { return "Alex Sender" }
func (stubEmailConfig) GetEmailFromAddress() string { return "alex@example.com" }

func newTestComposer(t *testing.T) *TemplateComposer {
	t.Helper()
	c, err := NewTemplateComposer(stubEmailConfig{})
	if err != nil {
		t.Fatalf("NewTemplateComposer: %v", err)
	}
	return c
}

func TestComposeFirstStep(t *testing.T) {
	c := newTestComposer(t)

	out, err := c.Compose(context.Background(), service.ComposeInput{
		Step:             1,
		FirstName:        "Jamie",
		CompanyName:      "Acme Corp",
		ValueProposition: "We cut onboarding time in half.",
		TrustSignal:      "Trusted by 200+ agencies.",
	})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	if out.Subject != "Quick question about Acme Corp" {
		t.Errorf("subject: got %q", out.Subject)
	}
	// html/template entity-escapes text nodes, so compare against the
	// unescaped rendering.
	unescapedHTML := html.UnescapeString(out.BodyHTML)
	for _, want := range []string{"Jamie", "Acme Corp", "We cut onboarding time in half.", "Trusted by 200+ agencies.", "Alex Sender"} {
		if !strings.Contains(out.BodyText, want) {
			t.Errorf("text body missing %q", want)
		}
		if !strings.Contains(unescapedHTML, want) {
			t.Errorf("html body missing %q", want)
		}
	}
}

func TestComposeFollowUpSubjectAndOpener(t *testing.T) {
	c := newTestComposer(t)

	out, err := c.Compose(context.Background(), service.ComposeInput{
		Step:             2,
		FirstName:        "Jamie",
		CompanyName:      "Acme Corp",
		ValueProposition: "We cut onboarding time in half.",
	})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if !strings.HasPrefix(out.Subject, "Re: ") {
		t.Errorf("follow-up subject should thread: got %q", out.Subject)
	}
	if !strings.Contains(out.BodyText, "Following up") {
		t.Errorf("follow-up opener missing from body:\n%s", out.BodyText)
	}
}

func TestComposeStepBeyondTableReusesLastEntry(t *testing.T) {
	c := newTestComposer(t)

	out, err := c.Compose(context.Background(), service.ComposeInput{
		Step:             7,
		FirstName:        "Jamie",
		CompanyName:      "Acme Corp",
		ValueProposition: "We cut onboarding time in half.",
	})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if !strings.Contains(out.BodyText, "Last note from me") {
		t.Errorf("deep step should use the final opener:\n%s", out.BodyText)
	}
}

func TestComposeMissingFieldsFailsValidation(t *testing.T) {
	c := newTestComposer(t)

	_, err := c.Compose(context.Background(), service.ComposeInput{Step: 1, CompanyName: "Acme Corp"})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "firstName") || !strings.Contains(err.Error(), "valueProposition") {
		t.Errorf("error should name the missing fields: %v", err)
	}
}

func TestComposeOmitsTrustSignalBlockWhenEmpty(t *testing.T) {
	c := newTestComposer(t)

	out, err := c.Compose(context.Background(), service.ComposeInput{
		Step:             1,
		FirstName:        "Jamie",
		ValueProposition: "We cut onboarding time in half.",
	})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	// No company on file falls back to a generic opener and the first-name
	// subject.
	if out.Subject != "Quick question about Jamie" {
		t.Errorf("subject fallback: got %q", out.Subject)
	}
	if strings.Contains(out.BodyHTML, "<em>") {
		t.Errorf("empty trust signal should not render its block")
	}
}
