package domain

import "testing"

func TestCanTransitionLead(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{LeadStatusPending, LeadStatusReady, true},
		{LeadStatusReady, LeadStatusInSequence, true},
		{LeadStatusInSequence, LeadStatusInSequence, true},
		{LeadStatusInSequence, LeadStatusPositive, true},
		{LeadStatusInSequence, LeadStatusNegative, true},
		{LeadStatusInSequence, LeadStatusNoResponse, true},
		{LeadStatusInSequence, LeadStatusUnsubscribed, true},
		{LeadStatusInSequence, LeadStatusBounced, true},
		{LeadStatusReady, LeadStatusBounced, true},

		{LeadStatusPending, LeadStatusInSequence, false},
		{LeadStatusPending, LeadStatusPositive, false},
		{LeadStatusPositive, LeadStatusInSequence, false},
		{LeadStatusBounced, LeadStatusReady, false},
		{LeadStatusNoResponse, LeadStatusInSequence, false},
	}

	for _, tc := range cases {
		if got := CanTransitionLead(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransitionLead(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestValidateStepAdvance(t *testing.T) {
	// Fresh ready lead at step 0 of 3.
	if reason := ValidateStepAdvance(LeadStatusReady, 0, 3); reason != "" {
		t.Errorf("first step rejected: %s", reason)
	}
	// Mid-sequence.
	if reason := ValidateStepAdvance(LeadStatusInSequence, 2, 3); reason != "" {
		t.Errorf("step 3 of 3 rejected: %s", reason)
	}
	// Exhausted.
	if reason := ValidateStepAdvance(LeadStatusInSequence, 3, 3); reason == "" {
		t.Error("step past sequence_steps must be rejected")
	}
	// Halted by classification.
	if reason := ValidateStepAdvance(LeadStatusPositive, 1, 3); reason == "" {
		t.Error("terminal lead must not advance")
	}
	// Not yet enriched.
	if reason := ValidateStepAdvance(LeadStatusPending, 0, 3); reason == "" {
		t.Error("pending lead must not advance")
	}
}

func TestSequenceExhausted(t *testing.T) {
	if !SequenceExhausted(LeadStatusInSequence, 3, 3) {
		t.Error("lead at final step with no reply should be exhausted")
	}
	if SequenceExhausted(LeadStatusInSequence, 2, 3) {
		t.Error("lead mid-sequence is not exhausted")
	}
	if SequenceExhausted(LeadStatusPositive, 3, 3) {
		t.Error("settled lead is not subject to exhaustion")
	}
}

func TestResolveSignalConflict(t *testing.T) {
	// A bounce and a reply for the same step: the bounce wins.
	if got := ResolveSignalConflict(true, LeadStatusPositive); got != LeadStatusBounced {
		t.Errorf("bounce should take precedence over reply, got %s", got)
	}
	if got := ResolveSignalConflict(false, LeadStatusNegative); got != LeadStatusNegative {
		t.Errorf("verdict should stand without a bounce, got %s", got)
	}
}
