// Package domain provides core business rules for the campaigns bounded context.
package domain

// Campaign lifecycle statuses. A campaign is authored in Draft, reviewed,
// approved, then activated; only an Active campaign may emit sends.
const (
	CampaignStatusDraft         = "draft"
	CampaignStatusPendingReview = "pending_review"
	CampaignStatusApproved      = "approved"
	CampaignStatusActive        = "active"
	CampaignStatusPaused        = "paused"
	CampaignStatusCompleted     = "completed"
	CampaignStatusArchived      = "archived"
)

var knownCampaignStatuses = map[string]struct{}{
	CampaignStatusDraft:         {},
	CampaignStatusPendingReview: {},
	CampaignStatusApproved:      {},
	CampaignStatusActive:        {},
	CampaignStatusPaused:        {},
	CampaignStatusCompleted:     {},
	CampaignStatusArchived:      {},
}

// IsKnownCampaignStatus reports whether status is a recognized campaign status.
func IsKnownCampaignStatus(status string) bool {
	_, ok := knownCampaignStatuses[status]
	return ok
}

// campaignTransitions enumerates the allowed arcs, excluding archival which is
// allowed from every non-archived state.
var campaignTransitions = map[string][]string{
	CampaignStatusDraft:         {CampaignStatusPendingReview},
	CampaignStatusPendingReview: {CampaignStatusApproved, CampaignStatusDraft},
	CampaignStatusApproved:      {CampaignStatusActive},
	CampaignStatusActive:        {CampaignStatusPaused, CampaignStatusCompleted},
	CampaignStatusPaused:        {CampaignStatusActive, CampaignStatusCompleted},
}

// CanTransitionCampaign reports whether the arc from → to exists at all,
// ignoring preconditions. Archived is a roach motel: everything in, nothing out.
func CanTransitionCampaign(from, to string) bool {
	if from == CampaignStatusArchived {
		return false
	}
	if to == CampaignStatusArchived {
		return true
	}
	for _, allowed := range campaignTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// CampaignTransitionFacts carries the state needed to evaluate transition
// preconditions. Callers populate it from the persisted campaign row.
type CampaignTransitionFacts struct {
	LeadCount       int
	TemplateCount   int
	HasReviewer     bool
	AllLeadsSettled bool
}

// ValidateCampaignTransition checks both the arc and its preconditions.
// Returns a non-empty reason string when the transition must be rejected;
// empty means the transition is permitted.
func ValidateCampaignTransition(from, to string, facts CampaignTransitionFacts) string {
	if !IsKnownCampaignStatus(to) {
		return "unknown campaign status: " + to
	}
	if from == to {
		// Idempotent re-entry is rejected, not silently absorbed.
		return "campaign is already " + to
	}
	if !CanTransitionCampaign(from, to) {
		return "cannot transition campaign from " + from + " to " + to
	}

	switch to {
	case CampaignStatusPendingReview:
		if facts.LeadCount < 1 {
			return "campaign has no leads attached"
		}
		if facts.TemplateCount < 1 {
			return "campaign has no templates selected"
		}
	case CampaignStatusApproved:
		if !facts.HasReviewer {
			return "approval requires a reviewer"
		}
	case CampaignStatusCompleted:
		if !facts.AllLeadsSettled {
			return "campaign still has leads in flight"
		}
	}

	return ""
}

// CampaignAllowsSending reports whether new EmailSends may be created and
// dispatched for a campaign in the given status.
func CampaignAllowsSending(status string) bool {
	return status == CampaignStatusActive
}
