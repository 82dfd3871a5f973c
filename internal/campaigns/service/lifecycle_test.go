package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"leadflow_backend/internal/campaigns/domain"
	"leadflow_backend/internal/campaigns/repository"
	"leadflow_backend/internal/events"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"
)

// campaignStore is an in-memory Store mirroring the repository's guards:
// compare-and-set status moves, campaign activity checks on send creation
// and dispatch, and per-event engagement dedup.
type campaignStore struct {
	campaigns map[uuid.UUID]repository.Campaign
	leads     map[uuid.UUID]repository.CampaignLead
	sends     map[uuid.UUID]repository.EmailSend
	seen      map[string]bool
}

func newCampaignStore() *campaignStore {
	return &campaignStore{
		campaigns: make(map[uuid.UUID]repository.Campaign),
		leads:     make(map[uuid.UUID]repository.CampaignLead),
		sends:     make(map[uuid.UUID]repository.EmailSend),
		seen:      make(map[string]bool),
	}
}

func (s *campaignStore) CreateCampaign(_ context.Context, params repository.CreateCampaignParams) (repository.Campaign, error) {
	c := repository.Campaign{
		ID:                  uuid.New(),
		WorkspaceID:         params.WorkspaceID,
		Name:                params.Name,
		Status:              domain.CampaignStatusDraft,
		ValuePropositions:   params.ValuePropositions,
		TrustSignals:        params.TrustSignals,
		SelectedTemplateIDs: params.SelectedTemplateIDs,
		SequenceSteps:       params.SequenceSteps,
		DaysBetweenSteps:    params.DaysBetweenSteps,
	}
	s.campaigns[c.ID] = c
	return c, nil
}

func (s *campaignStore) GetCampaign(_ context.Context, id, workspaceID uuid.UUID) (repository.Campaign, error) {
	c, ok := s.campaigns[id]
	if !ok || c.WorkspaceID != workspaceID {
		return repository.Campaign{}, repository.ErrNotFound
	}
	return c, nil
}

func (s *campaignStore) GetCampaignByID(_ context.Context, id uuid.UUID) (repository.Campaign, error) {
	c, ok := s.campaigns[id]
	if !ok {
		return repository.Campaign{}, repository.ErrNotFound
	}
	return c, nil
}

func (s *campaignStore) ListCampaigns(_ context.Context, params repository.ListCampaignsParams) ([]repository.Campaign, int, error) {
	items := make([]repository.Campaign, 0)
	for _, c := range s.campaigns {
		if c.WorkspaceID != params.WorkspaceID {
			continue
		}
		if params.Status != "" && c.Status != params.Status {
			continue
		}
		items = append(items, c)
	}
	return items, len(items), nil
}

func (s *campaignStore) UpdateCampaign(_ context.Context, id, workspaceID uuid.UUID, params repository.UpdateCampaignParams) (repository.Campaign, error) {
	c, ok := s.campaigns[id]
	if !ok || c.WorkspaceID != workspaceID || c.Status != domain.CampaignStatusDraft {
		return repository.Campaign{}, repository.ErrNotFound
	}
	if params.Name != nil {
		c.Name = *params.Name
	}
	s.campaigns[id] = c
	return c, nil
}

func (s *campaignStore) TransitionStatus(_ context.Context, id, workspaceID uuid.UUID, from, to string, stamps repository.TransitionStamps) (repository.Campaign, error) {
	c, ok := s.campaigns[id]
	if !ok || c.WorkspaceID != workspaceID {
		return repository.Campaign{}, repository.ErrNotFound
	}
	if c.Status != from {
		return repository.Campaign{}, repository.ErrStaleStatus
	}
	now := time.Now()
	c.Status = to
	if stamps.SubmittedForReview {
		c.SubmittedForReviewAt = &now
	}
	if stamps.ReviewedBy != nil {
		c.ReviewedBy = stamps.ReviewedBy
		c.ReviewedAt = &now
	}
	if stamps.ReviewNotes != nil {
		c.ReviewNotes = stamps.ReviewNotes
	}
	s.campaigns[id] = c
	return c, nil
}

func (s *campaignStore) TransitionFacts(_ context.Context, id, workspaceID uuid.UUID) (domain.CampaignTransitionFacts, error) {
	c, ok := s.campaigns[id]
	if !ok || c.WorkspaceID != workspaceID {
		return domain.CampaignTransitionFacts{}, repository.ErrNotFound
	}
	facts := domain.CampaignTransitionFacts{
		TemplateCount:   len(c.SelectedTemplateIDs),
		AllLeadsSettled: true,
	}
	for _, cl := range s.leads {
		if cl.CampaignID != id {
			continue
		}
		facts.LeadCount++
		if !domain.IsTerminalLeadStatus(cl.Status) {
			facts.AllLeadsSettled = false
		}
	}
	return facts, nil
}

func (s *campaignStore) AttachLeads(_ context.Context, campaignID uuid.UUID, leadIDs []uuid.UUID) (repository.AttachResult, error) {
	var result repository.AttachResult
	for _, leadID := range leadIDs {
		duplicate := false
		for _, cl := range s.leads {
			if cl.CampaignID == campaignID && cl.LeadID == leadID {
				duplicate = true
				break
			}
		}
		if duplicate {
			result.Duplicate = append(result.Duplicate, leadID)
			continue
		}
		cl := repository.CampaignLead{
			ID:         uuid.New(),
			CampaignID: campaignID,
			LeadID:     leadID,
			Status:     domain.LeadStatusPending,
		}
		s.leads[cl.ID] = cl
		result.Attached = append(result.Attached, cl)
	}
	return result, nil
}

func (s *campaignStore) GetCampaignLead(_ context.Context, id uuid.UUID) (repository.CampaignLead, error) {
	cl, ok := s.leads[id]
	if !ok {
		return repository.CampaignLead{}, repository.ErrNotFound
	}
	return cl, nil
}

func (s *campaignStore) ListCampaignLeads(_ context.Context, campaignID uuid.UUID, status string) ([]repository.CampaignLead, error) {
	items := make([]repository.CampaignLead, 0)
	for _, cl := range s.leads {
		if cl.CampaignID != campaignID {
			continue
		}
		if status != "" && cl.Status != status {
			continue
		}
		items = append(items, cl)
	}
	return items, nil
}

func (s *campaignStore) SetEnrichment(_ context.Context, id uuid.UUID, params repository.SetEnrichmentParams) (repository.CampaignLead, error) {
	cl, ok := s.leads[id]
	if !ok {
		return repository.CampaignLead{}, repository.ErrNotFound
	}
	if cl.Status != domain.LeadStatusPending {
		return repository.CampaignLead{}, repository.ErrStaleStatus
	}
	now := time.Now()
	cl.Status = domain.LeadStatusReady
	cl.EnrichmentData = params.EnrichmentData
	cl.EnrichedAt = &now
	cl.MatchedValuePropID = params.MatchedValuePropID
	cl.MatchReasoning = params.MatchReasoning
	s.leads[id] = cl
	return cl, nil
}

func (s *campaignStore) UpdateLeadStatusCAS(_ context.Context, id uuid.UUID, from, to string) (repository.CampaignLead, error) {
	cl, ok := s.leads[id]
	if !ok {
		return repository.CampaignLead{}, repository.ErrNotFound
	}
	if cl.Status != from {
		return repository.CampaignLead{}, repository.ErrStaleStatus
	}
	cl.Status = to
	s.leads[id] = cl
	return cl, nil
}

func (s *campaignStore) ListDueLeads(_ context.Context, now time.Time, _ int) ([]repository.DueLead, error) {
	items := make([]repository.DueLead, 0)
	for _, cl := range s.leads {
		if cl.Status != domain.LeadStatusReady && cl.Status != domain.LeadStatusInSequence {
			continue
		}
		if cl.NextEmailScheduledAt != nil && cl.NextEmailScheduledAt.After(now) {
			continue
		}
		c := s.campaigns[cl.CampaignID]
		if !domain.CampaignAllowsSending(c.Status) {
			continue
		}
		items = append(items, repository.DueLead{
			CampaignLead:     cl,
			WorkspaceID:      c.WorkspaceID,
			CampaignStatus:   c.Status,
			SequenceSteps:    c.SequenceSteps,
			DaysBetweenSteps: c.DaysBetweenSteps,
		})
	}
	return items, nil
}

func (s *campaignStore) ListExhaustedLeads(_ context.Context, _ time.Duration, _ int) ([]repository.CampaignLead, error) {
	items := make([]repository.CampaignLead, 0)
	for _, cl := range s.leads {
		c := s.campaigns[cl.CampaignID]
		if domain.SequenceExhausted(cl.Status, cl.CurrentStep, c.SequenceSteps) {
			items = append(items, cl)
		}
	}
	return items, nil
}

func (s *campaignStore) CreateSend(_ context.Context, params repository.CreateSendParams) (repository.EmailSend, error) {
	c, ok := s.campaigns[params.CampaignID]
	if !ok {
		return repository.EmailSend{}, repository.ErrNotFound
	}
	if !domain.CampaignAllowsSending(c.Status) {
		return repository.EmailSend{}, repository.ErrCampaignNotActive
	}
	if params.SequenceStep < 1 || params.SequenceStep > c.SequenceSteps {
		return repository.EmailSend{}, repository.ErrStepOutOfRange
	}
	es := repository.EmailSend{
		ID:             uuid.New(),
		CampaignID:     params.CampaignID,
		CampaignLeadID: params.CampaignLeadID,
		SequenceStep:   params.SequenceStep,
		Status:         params.InitialStatus,
		Subject:        params.Subject,
		BodyHTML:       params.BodyHTML,
		BodyText:       params.BodyText,
	}
	s.sends[es.ID] = es
	return es, nil
}

func (s *campaignStore) GetSend(_ context.Context, id uuid.UUID) (repository.EmailSend, error) {
	es, ok := s.sends[id]
	if !ok {
		return repository.EmailSend{}, repository.ErrNotFound
	}
	return es, nil
}

func (s *campaignStore) ListSendsForLead(_ context.Context, campaignLeadID uuid.UUID) ([]repository.EmailSend, error) {
	items := make([]repository.EmailSend, 0)
	for _, es := range s.sends {
		if es.CampaignLeadID == campaignLeadID {
			items = append(items, es)
		}
	}
	return items, nil
}

func (s *campaignStore) ListPendingApproval(_ context.Context, campaignID uuid.UUID) ([]repository.EmailSend, error) {
	items := make([]repository.EmailSend, 0)
	for _, es := range s.sends {
		if es.CampaignID == campaignID && es.Status == domain.SendStatusPendingApproval {
			items = append(items, es)
		}
	}
	return items, nil
}

func (s *campaignStore) UpdateSendStatusCAS(_ context.Context, id uuid.UUID, from, to string, approvedBy *uuid.UUID) (repository.EmailSend, error) {
	es, ok := s.sends[id]
	if !ok {
		return repository.EmailSend{}, repository.ErrNotFound
	}
	if es.Status != from {
		return repository.EmailSend{}, repository.ErrStaleStatus
	}
	es.Status = to
	if approvedBy != nil {
		es.ApprovedBy = approvedBy
	}
	s.sends[id] = es
	return es, nil
}

func (s *campaignStore) CancelPendingSends(_ context.Context, campaignID uuid.UUID) (int64, error) {
	var n int64
	for id, es := range s.sends {
		if es.CampaignID != campaignID {
			continue
		}
		if es.Status == domain.SendStatusPendingApproval || es.Status == domain.SendStatusApproved {
			es.Status = domain.SendStatusCancelled
			s.sends[id] = es
			n++
		}
	}
	return n, nil
}

func (s *campaignStore) MarkSent(_ context.Context, id uuid.UUID, providerMessageID string, nextScheduledAt *time.Time) (repository.EmailSend, error) {
	es, ok := s.sends[id]
	if !ok {
		return repository.EmailSend{}, repository.ErrNotFound
	}
	c := s.campaigns[es.CampaignID]
	if !domain.CampaignAllowsSending(c.Status) {
		return repository.EmailSend{}, repository.ErrCampaignNotActive
	}
	if es.Status != domain.SendStatusApproved {
		return repository.EmailSend{}, repository.ErrStaleStatus
	}
	cl := s.leads[es.CampaignLeadID]
	if cl.Status != domain.LeadStatusReady && cl.Status != domain.LeadStatusInSequence {
		return repository.EmailSend{}, repository.ErrStaleStatus
	}

	now := time.Now()
	es.Status = domain.SendStatusSent
	es.ProviderMessageID = &providerMessageID
	es.SentAt = &now
	s.sends[id] = es

	cl.Status = domain.LeadStatusInSequence
	cl.CurrentStep = es.SequenceStep
	cl.LastEmailSentAt = &now
	cl.NextEmailScheduledAt = nextScheduledAt
	s.leads[es.CampaignLeadID] = cl

	c.TotalSent++
	s.campaigns[es.CampaignID] = c
	return es, nil
}

func (s *campaignStore) ApplyEngagement(_ context.Context, providerMessageID, event string, _ json.RawMessage, bounceReason *string) (repository.EngagementResult, error) {
	var found *repository.EmailSend
	for id := range s.sends {
		es := s.sends[id]
		if es.ProviderMessageID != nil && *es.ProviderMessageID == providerMessageID {
			found = &es
			break
		}
	}
	if found == nil {
		return repository.EngagementResult{}, repository.ErrNotFound
	}

	key := providerMessageID + "/" + event
	if s.seen[key] {
		return repository.EngagementResult{Send: *found, Duplicate: true}, nil
	}
	s.seen[key] = true

	next, applied := domain.ApplyEngagement(found.Status, event)
	if applied {
		found.Status = next
		if event == domain.EngagementBounced {
			found.BounceReason = bounceReason
		}
		s.sends[found.ID] = *found

		c := s.campaigns[found.CampaignID]
		switch event {
		case domain.EngagementReplied:
			c.TotalReplied++
		case domain.EngagementBounced:
			c.TotalBounced++
		}
		s.campaigns[found.CampaignID] = c
	}
	return repository.EngagementResult{Send: *found, Applied: applied}, nil
}

func (s *campaignStore) IncrementPositive(_ context.Context, campaignID uuid.UUID) error {
	c := s.campaigns[campaignID]
	c.TotalPositive++
	s.campaigns[campaignID] = c
	return nil
}

var _ Store = (*campaignStore)(nil)

type stubSender struct {
	calls  int
	err    error
	onSend func()
}

func (s *stubSender) Send(_ context.Context, _, _, _, _ string) (string, error) {
	s.calls++
	if s.onSend != nil {
		s.onSend()
	}
	if s.err != nil {
		return "", s.err
	}
	return "msg-1", nil
}

type stubClassifier struct {
	calls   int
	verdict string
	err     error
}

func (c *stubClassifier) ClassifyReply(_ context.Context, _ string) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return c.verdict, nil
}

type stubDirectory struct{}

func (stubDirectory) Contact(_ context.Context, _, _ uuid.UUID) (LeadContact, error) {
	return LeadContact{Email: "jamie@acme.test", FirstName: "Jamie", CompanyName: "Acme"}, nil
}

type stubPolicy struct {
	autoApprove bool
	pause       config.PausePolicy
}

func (p stubPolicy) GetAutoApproveSends() bool          { return p.autoApprove }
func (p stubPolicy) GetPausePolicy() config.PausePolicy { return p.pause }

type lifecycleFixture struct {
	store      *campaignStore
	sender     *stubSender
	classifier *stubClassifier
	svc        *Service
}

func newLifecycleFixture() *lifecycleFixture {
	log := logger.New("test")
	f := &lifecycleFixture{
		store:      newCampaignStore(),
		sender:     &stubSender{},
		classifier: &stubClassifier{verdict: "positive"},
	}
	f.svc = New(f.store, events.NewInMemoryBus(log), log,
		stubPolicy{pause: config.PausePolicyDefer},
		f.sender, &captureComposer{}, f.classifier, stubDirectory{})
	return f
}

// activeCampaignWithLead walks a campaign from draft to active with one
// enriched lead attached and returns both.
func activeCampaignWithLead(t *testing.T, f *lifecycleFixture, workspaceID uuid.UUID) (repository.Campaign, repository.CampaignLead) {
	t.Helper()
	ctx := context.Background()

	c, err := f.svc.Create(ctx, workspaceID, CreateCampaignInput{
		Name:                "Spring outreach",
		ValuePropositions:   json.RawMessage(`[{"id": "vp-1", "headline": "Faster onboarding"}]`),
		SelectedTemplateIDs: []uuid.UUID{uuid.New()},
		SequenceSteps:       2,
		DaysBetweenSteps:    []int32{2},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	attached, err := f.svc.AttachLeads(ctx, c.ID, workspaceID, []uuid.UUID{uuid.New()})
	if err != nil {
		t.Fatalf("AttachLeads: %v", err)
	}
	cl := attached.Attached[0]

	if _, err := f.svc.ApplyEnrichment(ctx, cl.ID, EnrichmentInput{
		EnrichmentData:     json.RawMessage(`{"industry": "saas"}`),
		MatchedValuePropID: "vp-1",
	}); err != nil {
		t.Fatalf("ApplyEnrichment: %v", err)
	}

	reviewer := uuid.New()
	for _, to := range []string{
		domain.CampaignStatusPendingReview,
		domain.CampaignStatusApproved,
		domain.CampaignStatusActive,
	} {
		if _, err := f.svc.Transition(ctx, c.ID, workspaceID, TransitionInput{To: to, ActorID: reviewer}); err != nil {
			t.Fatalf("Transition to %s: %v", to, err)
		}
	}

	c, err = f.svc.Get(ctx, c.ID, workspaceID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	return c, f.store.leads[cl.ID]
}

func TestCampaignLifecycleEndToEnd(t *testing.T) {
	f := newLifecycleFixture()
	ctx := context.Background()
	workspaceID := uuid.New()

	c, cl := activeCampaignWithLead(t, f, workspaceID)
	if cl.Status != domain.LeadStatusReady {
		t.Fatalf("enriched lead status: got %s, want ready", cl.Status)
	}

	es, err := f.svc.ComposeNextStep(ctx, c.ID, workspaceID, cl.ID)
	if err != nil {
		t.Fatalf("ComposeNextStep: %v", err)
	}
	if es.Status != domain.SendStatusPendingApproval {
		t.Fatalf("composed send status: got %s, want pending_approval", es.Status)
	}

	if _, err := f.svc.ApproveSend(ctx, es.ID, workspaceID, uuid.New()); err != nil {
		t.Fatalf("ApproveSend: %v", err)
	}

	sent, err := f.svc.DispatchSendForWorkspace(ctx, es.ID, workspaceID)
	if err != nil {
		t.Fatalf("DispatchSend: %v", err)
	}
	if sent.Status != domain.SendStatusSent || sent.ProviderMessageID == nil {
		t.Fatalf("dispatched send: status %s, provider id %v", sent.Status, sent.ProviderMessageID)
	}
	if got := f.store.leads[cl.ID]; got.Status != domain.LeadStatusInSequence || got.CurrentStep != 1 {
		t.Fatalf("lead after dispatch: status %s step %d", got.Status, got.CurrentStep)
	}
	if got := f.store.campaigns[c.ID].TotalSent; got != 1 {
		t.Errorf("total sent: got %d, want 1", got)
	}

	result, err := f.svc.HandleProviderEvent(ctx, ProviderEventInput{
		ProviderMessageID: *sent.ProviderMessageID,
		EventType:         domain.EngagementReplied,
		ReplyBody:         "Sounds interesting, send me a quote.",
	})
	if err != nil {
		t.Fatalf("HandleProviderEvent: %v", err)
	}
	if !result.Applied || result.Duplicate {
		t.Fatalf("reply event: applied=%v duplicate=%v", result.Applied, result.Duplicate)
	}

	if got := f.store.leads[cl.ID].Status; got != domain.LeadStatusPositive {
		t.Errorf("lead after positive reply: got %s", got)
	}
	final := f.store.campaigns[c.ID]
	if final.TotalReplied != 1 || final.TotalPositive != 1 {
		t.Errorf("counters: replied %d positive %d, want 1 and 1", final.TotalReplied, final.TotalPositive)
	}

	replay, err := f.svc.HandleProviderEvent(ctx, ProviderEventInput{
		ProviderMessageID: *sent.ProviderMessageID,
		EventType:         domain.EngagementReplied,
		ReplyBody:         "Sounds interesting, send me a quote.",
	})
	if err != nil {
		t.Fatalf("replayed event: %v", err)
	}
	if !replay.Duplicate {
		t.Fatal("replayed event must be absorbed as a duplicate")
	}
	final = f.store.campaigns[c.ID]
	if final.TotalReplied != 1 || final.TotalPositive != 1 {
		t.Errorf("counters moved on replay: replied %d positive %d", final.TotalReplied, final.TotalPositive)
	}
}

func TestDispatchRefusesSettledLead(t *testing.T) {
	f := newLifecycleFixture()
	ctx := context.Background()
	workspaceID := uuid.New()

	c, cl := activeCampaignWithLead(t, f, workspaceID)

	es, err := f.svc.ComposeNextStep(ctx, c.ID, workspaceID, cl.ID)
	if err != nil {
		t.Fatalf("ComposeNextStep: %v", err)
	}
	if _, err := f.svc.ApproveSend(ctx, es.ID, workspaceID, uuid.New()); err != nil {
		t.Fatalf("ApproveSend: %v", err)
	}

	// The lead opts out between approval and dispatch.
	if _, err := f.svc.MarkLeadUnsubscribed(ctx, cl.ID); err != nil {
		t.Fatalf("MarkLeadUnsubscribed: %v", err)
	}

	_, err = f.svc.DispatchSend(ctx, es.ID)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if f.sender.calls != 0 {
		t.Errorf("no mail may leave for a settled lead, sender called %d times", f.sender.calls)
	}
	if got := f.store.leads[cl.ID].Status; got != domain.LeadStatusUnsubscribed {
		t.Errorf("lead must stay unsubscribed, got %s", got)
	}
}

func TestDispatchConflictsWhenCampaignPausesMidFlight(t *testing.T) {
	f := newLifecycleFixture()
	ctx := context.Background()
	workspaceID := uuid.New()

	c, cl := activeCampaignWithLead(t, f, workspaceID)

	es, err := f.svc.ComposeNextStep(ctx, c.ID, workspaceID, cl.ID)
	if err != nil {
		t.Fatalf("ComposeNextStep: %v", err)
	}
	if _, err := f.svc.ApproveSend(ctx, es.ID, workspaceID, uuid.New()); err != nil {
		t.Fatalf("ApproveSend: %v", err)
	}

	// A pause commits after the dispatcher's pre-check but before the
	// sent record lands.
	f.sender.onSend = func() {
		paused := f.store.campaigns[c.ID]
		paused.Status = domain.CampaignStatusPaused
		f.store.campaigns[c.ID] = paused
	}

	_, err = f.svc.DispatchSend(ctx, es.ID)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if got := f.store.sends[es.ID].Status; got != domain.SendStatusApproved {
		t.Errorf("send must stay approved when the campaign paused, got %s", got)
	}
	if got := f.store.campaigns[c.ID].TotalSent; got != 0 {
		t.Errorf("total sent must not move, got %d", got)
	}
}

func TestReplyClassifierOutageFailsIngestion(t *testing.T) {
	f := newLifecycleFixture()
	ctx := context.Background()
	workspaceID := uuid.New()

	c, cl := activeCampaignWithLead(t, f, workspaceID)

	es, err := f.svc.ComposeNextStep(ctx, c.ID, workspaceID, cl.ID)
	if err != nil {
		t.Fatalf("ComposeNextStep: %v", err)
	}
	if _, err := f.svc.ApproveSend(ctx, es.ID, workspaceID, uuid.New()); err != nil {
		t.Fatalf("ApproveSend: %v", err)
	}
	sent, err := f.svc.DispatchSend(ctx, es.ID)
	if err != nil {
		t.Fatalf("DispatchSend: %v", err)
	}

	f.classifier.err = errors.New("model unavailable")
	input := ProviderEventInput{
		ProviderMessageID: *sent.ProviderMessageID,
		EventType:         domain.EngagementReplied,
		ReplyBody:         "Yes, let's talk.",
	}

	_, err = f.svc.HandleProviderEvent(ctx, input)
	if !apperr.Is(err, apperr.KindExternal) {
		t.Fatalf("expected external error, got %v", err)
	}

	// The failed ingestion must not have burned the dedup slot: the
	// provider's retry still lands and settles the lead.
	f.classifier.err = nil
	result, err := f.svc.HandleProviderEvent(ctx, input)
	if err != nil {
		t.Fatalf("retried event: %v", err)
	}
	if result.Duplicate {
		t.Fatal("retry after a classifier outage must not be absorbed as a duplicate")
	}
	if got := f.store.leads[cl.ID].Status; got != domain.LeadStatusPositive {
		t.Errorf("lead after retried reply: got %s, want positive", got)
	}
}

func TestTransitionRejectsRepeatedStatus(t *testing.T) {
	f := newLifecycleFixture()
	ctx := context.Background()
	workspaceID := uuid.New()

	c, _ := activeCampaignWithLead(t, f, workspaceID)

	_, err := f.svc.Transition(ctx, c.ID, workspaceID, TransitionInput{To: domain.CampaignStatusActive})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestPositiveCounterUntouchedWhenLeadAlreadySettled(t *testing.T) {
	f := newLifecycleFixture()
	ctx := context.Background()
	workspaceID := uuid.New()

	c, cl := activeCampaignWithLead(t, f, workspaceID)

	es, err := f.svc.ComposeNextStep(ctx, c.ID, workspaceID, cl.ID)
	if err != nil {
		t.Fatalf("ComposeNextStep: %v", err)
	}
	if _, err := f.svc.ApproveSend(ctx, es.ID, workspaceID, uuid.New()); err != nil {
		t.Fatalf("ApproveSend: %v", err)
	}
	sent, err := f.svc.DispatchSend(ctx, es.ID)
	if err != nil {
		t.Fatalf("DispatchSend: %v", err)
	}

	// The lead settled negative before the positive reply arrived.
	if _, err := f.store.UpdateLeadStatusCAS(ctx, cl.ID, domain.LeadStatusInSequence, domain.LeadStatusNegative); err != nil {
		t.Fatalf("settle lead: %v", err)
	}

	if _, err := f.svc.HandleProviderEvent(ctx, ProviderEventInput{
		ProviderMessageID: *sent.ProviderMessageID,
		EventType:         domain.EngagementReplied,
		ReplyBody:         "Actually yes, interested after all.",
	}); err != nil {
		t.Fatalf("HandleProviderEvent: %v", err)
	}

	final := f.store.campaigns[c.ID]
	if final.TotalPositive != 0 {
		t.Errorf("positive counter moved without a settle, got %d", final.TotalPositive)
	}
	if got := f.store.leads[cl.ID].Status; got != domain.LeadStatusNegative {
		t.Errorf("settled lead must stay negative, got %s", got)
	}
}

func TestListLeadSendsFiltersByStatus(t *testing.T) {
	f := newLifecycleFixture()
	ctx := context.Background()
	workspaceID := uuid.New()

	c, cl := activeCampaignWithLead(t, f, workspaceID)

	es, err := f.svc.ComposeNextStep(ctx, c.ID, workspaceID, cl.ID)
	if err != nil {
		t.Fatalf("ComposeNextStep: %v", err)
	}

	if _, err := f.svc.ListLeadSends(ctx, c.ID, workspaceID, cl.ID, "mailed"); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("unknown status: expected validation error, got %v", err)
	}

	all, err := f.svc.ListLeadSends(ctx, c.ID, workspaceID, cl.ID, "")
	if err != nil {
		t.Fatalf("ListLeadSends: %v", err)
	}
	if len(all) != 1 || all[0].ID != es.ID {
		t.Fatalf("unfiltered history: got %d sends", len(all))
	}

	pending, err := f.svc.ListLeadSends(ctx, c.ID, workspaceID, cl.ID, domain.SendStatusPendingApproval)
	if err != nil {
		t.Fatalf("ListLeadSends pending: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("pending filter: got %d sends, want 1", len(pending))
	}

	sent, err := f.svc.ListLeadSends(ctx, c.ID, workspaceID, cl.ID, domain.SendStatusSent)
	if err != nil {
		t.Fatalf("ListLeadSends sent: %v", err)
	}
	if len(sent) != 0 {
		t.Errorf("sent filter: got %d sends, want 0", len(sent))
	}
}

func TestSweepNoResponseSettlesExhaustedLeads(t *testing.T) {
	f := newLifecycleFixture()
	ctx := context.Background()
	workspaceID := uuid.New()

	c, cl := activeCampaignWithLead(t, f, workspaceID)

	stored := f.store.leads[cl.ID]
	stored.Status = domain.LeadStatusInSequence
	stored.CurrentStep = c.SequenceSteps
	f.store.leads[cl.ID] = stored

	settled, err := f.svc.SweepNoResponse(ctx, 72*time.Hour, 100)
	if err != nil {
		t.Fatalf("SweepNoResponse: %v", err)
	}
	if settled != 1 {
		t.Fatalf("settled: got %d, want 1", settled)
	}
	if got := f.store.leads[cl.ID].Status; got != domain.LeadStatusNoResponse {
		t.Errorf("exhausted lead: got %s, want no_response", got)
	}
}
