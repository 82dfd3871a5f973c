package domain

// EmailSend statuses. pending_approval → approved → sent, after which the
// status tracks the most advanced engagement event. bounced is exclusive:
// a bounced message accumulates no further engagement.
const (
	SendStatusPendingApproval = "pending_approval"
	SendStatusApproved        = "approved"
	SendStatusCancelled       = "cancelled"
	SendStatusSent            = "sent"
	SendStatusDelivered       = "delivered"
	SendStatusOpened          = "opened"
	SendStatusClicked         = "clicked"
	SendStatusReplied         = "replied"
	SendStatusBounced         = "bounced"
)

// Engagement event types as delivered by the provider webhook.
const (
	EngagementDelivered    = "delivered"
	EngagementOpened       = "opened"
	EngagementClicked      = "clicked"
	EngagementReplied      = "replied"
	EngagementBounced      = "bounced"
	EngagementUnsubscribed = "unsubscribed"
)

// sendStatusRank orders statuses so the row status always reflects the most
// advanced event reached. Ranks below sentRank are pre-dispatch states.
var sendStatusRank = map[string]int{
	SendStatusPendingApproval: 0,
	SendStatusApproved:        1,
	SendStatusCancelled:       1,
	SendStatusSent:            2,
	SendStatusDelivered:       3,
	SendStatusOpened:          4,
	SendStatusClicked:         5,
	SendStatusReplied:         6,
	SendStatusBounced:         7,
}

// IsKnownSendStatus reports whether status is a recognized send status.
func IsKnownSendStatus(status string) bool {
	_, ok := sendStatusRank[status]
	return ok
}

// SendDispatched reports whether the message has left for the provider
// (status sent or any engagement state).
func SendDispatched(status string) bool {
	return sendStatusRank[status] >= sendStatusRank[SendStatusSent] &&
		status != SendStatusCancelled
}

var engagementStatus = map[string]string{
	EngagementDelivered: SendStatusDelivered,
	EngagementOpened:    SendStatusOpened,
	EngagementClicked:   SendStatusClicked,
	EngagementReplied:   SendStatusReplied,
	EngagementBounced:   SendStatusBounced,
}

// ApplyEngagement computes the send status after an engagement event.
// The returned status never regresses: a late-arriving "delivered" after
// "opened" leaves the status at opened. Events against a bounced or
// not-yet-sent message return the current status and applied=false.
func ApplyEngagement(current, event string) (next string, applied bool) {
	target, ok := engagementStatus[event]
	if !ok {
		return current, false
	}
	if !SendDispatched(current) {
		return current, false
	}
	if current == SendStatusBounced {
		return current, false
	}
	if sendStatusRank[target] <= sendStatusRank[current] {
		return current, false
	}
	return target, true
}

// ValidateSendTransition checks the pre-dispatch arcs. Engagement progression
// is handled by ApplyEngagement; this guards authoring-side moves. Returns a
// non-empty reason when the transition must be rejected.
func ValidateSendTransition(from, to string) string {
	switch {
	case from == SendStatusPendingApproval && to == SendStatusApproved:
		return ""
	case from == SendStatusPendingApproval && to == SendStatusCancelled:
		return ""
	case from == SendStatusApproved && to == SendStatusCancelled:
		return ""
	case from == SendStatusApproved && to == SendStatusSent:
		return ""
	case from == SendStatusPendingApproval && to == SendStatusSent:
		return "send has not been approved"
	case from == SendStatusCancelled && to == SendStatusSent:
		return "send was cancelled"
	}
	if SendDispatched(from) {
		return "send already dispatched"
	}
	return "cannot transition send from " + from + " to " + to
}
