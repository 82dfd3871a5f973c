package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"leadflow_backend/internal/campaigns/repository"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"
)

type captureComposer struct {
	last ComposeInput
}

func (c *captureComposer) Compose(_ context.Context, input ComposeInput) (ComposedEmail, error) {
	c.last = input
	return ComposedEmail{Subject: "subject", BodyHTML: "<p>hi</p>", BodyText: "hi"}, nil
}

func newComposeService(composer Composer) *Service {
	return New(nil, nil, logger.New("test"), nil, nil, composer, nil, nil)
}

func TestComposeForLeadPicksMatchedValueProp(t *testing.T) {
	composer := &captureComposer{}
	svc := newComposeService(composer)

	matched := "vp-2"
	campaign := repository.Campaign{
		ValuePropositions: json.RawMessage(`[
			{"id": "vp-1", "headline": "Faster onboarding"},
			{"id": "vp-2", "headline": "Lower churn", "body": "Cut churn by a third."}
		]`),
		TrustSignals: json.RawMessage(`[{"text": "Backed by 200 customers"}]`),
	}
	lead := repository.CampaignLead{MatchedValuePropID: &matched}

	_, err := svc.composeForLead(context.Background(), campaign, lead, LeadContact{FirstName: "Jamie"}, 1)
	if err != nil {
		t.Fatalf("composeForLead: %v", err)
	}

	if composer.last.ValueProposition != "Lower churn: Cut churn by a third." {
		t.Errorf("value proposition: got %q", composer.last.ValueProposition)
	}
	if composer.last.TrustSignal != "Backed by 200 customers" {
		t.Errorf("trust signal: got %q", composer.last.TrustSignal)
	}
	if composer.last.MatchedValuePropID != matched {
		t.Errorf("matched id: got %q", composer.last.MatchedValuePropID)
	}
}

func TestComposeForLeadFallsBackToFirstValueProp(t *testing.T) {
	composer := &captureComposer{}
	svc := newComposeService(composer)

	stale := "vp-gone"
	campaign := repository.Campaign{
		ValuePropositions: json.RawMessage(`[{"id": "vp-1", "headline": "Faster onboarding"}]`),
	}
	lead := repository.CampaignLead{MatchedValuePropID: &stale}

	_, err := svc.composeForLead(context.Background(), campaign, lead, LeadContact{FirstName: "Jamie"}, 2)
	if err != nil {
		t.Fatalf("composeForLead: %v", err)
	}
	if composer.last.ValueProposition != "Faster onboarding" {
		t.Errorf("fallback value proposition: got %q", composer.last.ValueProposition)
	}
}

func TestComposeForLeadRejectsMalformedValueProps(t *testing.T) {
	svc := newComposeService(&captureComposer{})

	campaign := repository.Campaign{ValuePropositions: json.RawMessage(`{"not": "a list"`)}
	_, err := svc.composeForLead(context.Background(), campaign, repository.CampaignLead{}, LeadContact{}, 1)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNextDue(t *testing.T) {
	campaign := repository.Campaign{
		SequenceSteps:    3,
		DaysBetweenSteps: []int32{2, 5},
	}

	due := nextDue(campaign, 1)
	if due == nil {
		t.Fatal("step 1 of 3 must schedule a follow-up")
	}
	wantMin := time.Now().AddDate(0, 0, 2).Add(-time.Minute)
	if due.Before(wantMin) {
		t.Errorf("first gap should be 2 days out, got %v", due)
	}

	if got := nextDue(campaign, 3); got != nil {
		t.Errorf("final step must not schedule a follow-up, got %v", got)
	}
}

func TestNextDueDefaultsGapWhenUnconfigured(t *testing.T) {
	campaign := repository.Campaign{SequenceSteps: 2}

	due := nextDue(campaign, 1)
	if due == nil {
		t.Fatal("expected a follow-up")
	}
	wantMin := time.Now().AddDate(0, 0, 3).Add(-time.Minute)
	if due.Before(wantMin) {
		t.Errorf("default gap should be 3 days, got %v", due)
	}
}

func TestDefaultDaysBetween(t *testing.T) {
	if got := defaultDaysBetween(1); len(got) != 0 {
		t.Errorf("single step needs no gaps, got %v", got)
	}
	got := defaultDaysBetween(4)
	if len(got) != 3 {
		t.Fatalf("expected 3 gaps, got %v", got)
	}
	for i, gap := range got {
		if gap != 3 {
			t.Errorf("gap %d: got %d, want 3", i, gap)
		}
	}
}
