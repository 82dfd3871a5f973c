package domain

import "testing"

func TestValidateCampaignTransitionArcs(t *testing.T) {
	okFacts := CampaignTransitionFacts{
		LeadCount:       3,
		TemplateCount:   2,
		HasReviewer:     true,
		AllLeadsSettled: true,
	}

	cases := []struct {
		name     string
		from, to string
		facts    CampaignTransitionFacts
		wantOK   bool
	}{
		{"submit for review", CampaignStatusDraft, CampaignStatusPendingReview, okFacts, true},
		{"approve", CampaignStatusPendingReview, CampaignStatusApproved, okFacts, true},
		{"reject back to draft", CampaignStatusPendingReview, CampaignStatusDraft, okFacts, true},
		{"activate", CampaignStatusApproved, CampaignStatusActive, okFacts, true},
		{"pause", CampaignStatusActive, CampaignStatusPaused, okFacts, true},
		{"resume", CampaignStatusPaused, CampaignStatusActive, okFacts, true},
		{"complete from active", CampaignStatusActive, CampaignStatusCompleted, okFacts, true},
		{"complete from paused", CampaignStatusPaused, CampaignStatusCompleted, okFacts, true},
		{"archive draft", CampaignStatusDraft, CampaignStatusArchived, okFacts, true},
		{"archive active", CampaignStatusActive, CampaignStatusArchived, okFacts, true},

		{"skip review", CampaignStatusDraft, CampaignStatusActive, okFacts, false},
		{"activate from draft", CampaignStatusDraft, CampaignStatusApproved, okFacts, false},
		{"re-activate active", CampaignStatusActive, CampaignStatusActive, okFacts, false},
		{"leave archived", CampaignStatusArchived, CampaignStatusDraft, okFacts, false},
		{"unarchive to active", CampaignStatusArchived, CampaignStatusActive, okFacts, false},
		{"complete from approved", CampaignStatusApproved, CampaignStatusCompleted, okFacts, false},
		{"unknown target", CampaignStatusDraft, "launched", okFacts, false},
	}

	for _, tc := range cases {
		reason := ValidateCampaignTransition(tc.from, tc.to, tc.facts)
		if tc.wantOK && reason != "" {
			t.Errorf("%s: %s -> %s rejected: %s", tc.name, tc.from, tc.to, reason)
		}
		if !tc.wantOK && reason == "" {
			t.Errorf("%s: %s -> %s unexpectedly allowed", tc.name, tc.from, tc.to)
		}
	}
}

func TestValidateCampaignTransitionPreconditions(t *testing.T) {
	cases := []struct {
		name     string
		from, to string
		facts    CampaignTransitionFacts
	}{
		{
			"submit with no leads",
			CampaignStatusDraft, CampaignStatusPendingReview,
			CampaignTransitionFacts{LeadCount: 0, TemplateCount: 1},
		},
		{
			"submit with no templates",
			CampaignStatusDraft, CampaignStatusPendingReview,
			CampaignTransitionFacts{LeadCount: 5, TemplateCount: 0},
		},
		{
			"approve without reviewer",
			CampaignStatusPendingReview, CampaignStatusApproved,
			CampaignTransitionFacts{LeadCount: 5, TemplateCount: 1, HasReviewer: false},
		},
		{
			"complete with leads in flight",
			CampaignStatusActive, CampaignStatusCompleted,
			CampaignTransitionFacts{LeadCount: 5, TemplateCount: 1, AllLeadsSettled: false},
		},
	}

	for _, tc := range cases {
		if reason := ValidateCampaignTransition(tc.from, tc.to, tc.facts); reason == "" {
			t.Errorf("%s: expected precondition rejection, got none", tc.name)
		}
	}
}

func TestCampaignAllowsSending(t *testing.T) {
	for _, status := range []string{
		CampaignStatusDraft, CampaignStatusPendingReview, CampaignStatusApproved,
		CampaignStatusPaused, CampaignStatusCompleted, CampaignStatusArchived,
	} {
		if CampaignAllowsSending(status) {
			t.Errorf("campaign in %s must not allow sending", status)
		}
	}
	if !CampaignAllowsSending(CampaignStatusActive) {
		t.Error("active campaign must allow sending")
	}
}
