package domain

// CampaignLead statuses: the per-lead progress through one campaign's
// sequence. Terminal outcomes halt the sequence permanently.
const (
	LeadStatusPending      = "pending"
	LeadStatusReady        = "ready"
	LeadStatusInSequence   = "in_sequence"
	LeadStatusPositive     = "positive"
	LeadStatusNegative     = "negative"
	LeadStatusNoResponse   = "no_response"
	LeadStatusUnsubscribed = "unsubscribed"
	LeadStatusBounced      = "bounced"
)

// terminalLeadStatuses are campaign-lead statuses where no further sends
// may be scheduled.
var terminalLeadStatuses = map[string]bool{
	LeadStatusPositive:     true,
	LeadStatusNegative:     true,
	LeadStatusNoResponse:   true,
	LeadStatusUnsubscribed: true,
	LeadStatusBounced:      true,
}

// IsTerminalLeadStatus returns true if the status halts the sequence.
func IsTerminalLeadStatus(status string) bool {
	return terminalLeadStatuses[status]
}

var leadTransitions = map[string][]string{
	LeadStatusPending: {LeadStatusReady},
	LeadStatusReady:   {LeadStatusInSequence, LeadStatusUnsubscribed, LeadStatusBounced},
	LeadStatusInSequence: {
		LeadStatusInSequence, // step advance
		LeadStatusPositive,
		LeadStatusNegative,
		LeadStatusNoResponse,
		LeadStatusUnsubscribed,
		LeadStatusBounced,
	},
}

// CanTransitionLead reports whether the campaign-lead arc from → to is allowed.
// Terminal statuses admit no exits.
func CanTransitionLead(from, to string) bool {
	for _, allowed := range leadTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ValidateStepAdvance checks the sequence bookkeeping for moving a campaign
// lead from currentStep to currentStep+1 under a campaign configured with
// sequenceSteps total steps. Returns a non-empty reason when the advance must
// be rejected.
func ValidateStepAdvance(status string, currentStep, sequenceSteps int) string {
	if IsTerminalLeadStatus(status) {
		return "sequence already halted with status " + status
	}
	if status != LeadStatusReady && status != LeadStatusInSequence {
		return "lead is not ready for sending (status " + status + ")"
	}
	if currentStep >= sequenceSteps {
		return "sequence exhausted"
	}
	return ""
}

// SequenceExhausted reports whether a lead still in sequence has run out of
// steps and should settle to no_response.
func SequenceExhausted(status string, currentStep, sequenceSteps int) bool {
	return status == LeadStatusInSequence && currentStep >= sequenceSteps
}

// ResolveSignalConflict decides the winning terminal status when a bounce and
// a classification verdict land for the same step. A bounced message cannot
// have been read, so the bounce wins.
func ResolveSignalConflict(bounced bool, verdict string) string {
	if bounced {
		return LeadStatusBounced
	}
	return verdict
}
