package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"leadflow_backend/internal/campaigns/domain"
)

type CampaignLead struct {
	ID                   uuid.UUID
	CampaignID           uuid.UUID
	LeadID               uuid.UUID
	Status               string
	CurrentStep          int
	EnrichmentData       json.RawMessage
	EnrichedAt           *time.Time
	MatchedValuePropID   *string
	MatchReasoning       *string
	LastEmailSentAt      *time.Time
	NextEmailScheduledAt *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

const campaignLeadColumns = `id, campaign_id, lead_id, status, current_step,
	enrichment_data, enriched_at, matched_value_prop_id, match_reasoning,
	last_email_sent_at, next_email_scheduled_at, created_at, updated_at`

func scanCampaignLead(row pgx.Row) (CampaignLead, error) {
	var cl CampaignLead
	err := row.Scan(
		&cl.ID, &cl.CampaignID, &cl.LeadID, &cl.Status, &cl.CurrentStep,
		&cl.EnrichmentData, &cl.EnrichedAt, &cl.MatchedValuePropID, &cl.MatchReasoning,
		&cl.LastEmailSentAt, &cl.NextEmailScheduledAt, &cl.CreatedAt, &cl.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return CampaignLead{}, ErrNotFound
	}
	return cl, err
}

// AttachLead adds a lead to a campaign. The unique constraint on
// (campaign_id, lead_id) makes concurrent duplicate attaches lose cleanly.
func (r *Repository) AttachLead(ctx context.Context, campaignID, leadID uuid.UUID) (CampaignLead, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO campaign_leads (campaign_id, lead_id)
		VALUES ($1, $2)
		RETURNING `+campaignLeadColumns,
		campaignID, leadID)
	cl, err := scanCampaignLead(row)
	if err != nil && isUniqueViolation(err) {
		return CampaignLead{}, ErrDuplicateLead
	}
	return cl, err
}

type AttachResult struct {
	Attached  []CampaignLead
	Duplicate []uuid.UUID
}

// AttachLeads bulk-attaches leads. Duplicates are reported, not failed,
// so a retried bulk request converges.
func (r *Repository) AttachLeads(ctx context.Context, campaignID uuid.UUID, leadIDs []uuid.UUID) (AttachResult, error) {
	var result AttachResult
	for _, leadID := range leadIDs {
		cl, err := r.AttachLead(ctx, campaignID, leadID)
		if errors.Is(err, ErrDuplicateLead) {
			result.Duplicate = append(result.Duplicate, leadID)
			continue
		}
		if err != nil {
			return result, err
		}
		result.Attached = append(result.Attached, cl)
	}
	if len(result.Attached) > 0 {
		if _, err := r.pool.Exec(ctx, `
			UPDATE campaigns SET total_leads = total_leads + $2, updated_at = now() WHERE id = $1
		`, campaignID, len(result.Attached)); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (r *Repository) GetCampaignLead(ctx context.Context, id uuid.UUID) (CampaignLead, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+campaignLeadColumns+` FROM campaign_leads WHERE id = $1
	`, id)
	return scanCampaignLead(row)
}

func (r *Repository) ListCampaignLeads(ctx context.Context, campaignID uuid.UUID, status string) ([]CampaignLead, error) {
	query := `SELECT ` + campaignLeadColumns + ` FROM campaign_leads WHERE campaign_id = $1`
	args := []interface{}{campaignID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]CampaignLead, 0)
	for rows.Next() {
		var cl CampaignLead
		if err := rows.Scan(
			&cl.ID, &cl.CampaignID, &cl.LeadID, &cl.Status, &cl.CurrentStep,
			&cl.EnrichmentData, &cl.EnrichedAt, &cl.MatchedValuePropID, &cl.MatchReasoning,
			&cl.LastEmailSentAt, &cl.NextEmailScheduledAt, &cl.CreatedAt, &cl.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, cl)
	}
	return items, rows.Err()
}

type SetEnrichmentParams struct {
	EnrichmentData     json.RawMessage
	MatchedValuePropID *string
	MatchReasoning     *string
}

// SetEnrichment records enrichment output and moves the lead pending → ready.
// The status predicate rejects late enrichment results that arrive after the
// lead already advanced or settled.
func (r *Repository) SetEnrichment(ctx context.Context, id uuid.UUID, params SetEnrichmentParams) (CampaignLead, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE campaign_leads
		SET status = $2, enrichment_data = $3, enriched_at = now(),
			matched_value_prop_id = $4, match_reasoning = $5, updated_at = now()
		WHERE id = $1 AND status = $6
		RETURNING `+campaignLeadColumns,
		id, domain.LeadStatusReady, params.EnrichmentData,
		params.MatchedValuePropID, params.MatchReasoning, domain.LeadStatusPending)
	cl, err := scanCampaignLead(row)
	if errors.Is(err, ErrNotFound) {
		return r.staleOrMissing(ctx, id)
	}
	return cl, err
}

// UpdateLeadStatusCAS moves a campaign lead between statuses only when the
// row still holds the expected status.
func (r *Repository) UpdateLeadStatusCAS(ctx context.Context, id uuid.UUID, from, to string) (CampaignLead, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE campaign_leads SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING `+campaignLeadColumns,
		id, from, to)
	cl, err := scanCampaignLead(row)
	if errors.Is(err, ErrNotFound) {
		return r.staleOrMissing(ctx, id)
	}
	return cl, err
}

func (r *Repository) staleOrMissing(ctx context.Context, id uuid.UUID) (CampaignLead, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM campaign_leads WHERE id = $1)`, id).Scan(&exists); err != nil {
		return CampaignLead{}, err
	}
	if exists {
		return CampaignLead{}, ErrStaleStatus
	}
	return CampaignLead{}, ErrNotFound
}

// DueLead joins the campaign fields the scheduler needs when deciding
// whether to emit the next sequence step.
type DueLead struct {
	CampaignLead
	WorkspaceID      uuid.UUID
	CampaignStatus   string
	SequenceSteps    int
	DaysBetweenSteps []int32
}

// ListDueLeads returns ready or in-sequence leads whose next send is due,
// limited to campaigns that currently allow sending.
func (r *Repository) ListDueLeads(ctx context.Context, now time.Time, limit int) ([]DueLead, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT cl.id, cl.campaign_id, cl.lead_id, cl.status, cl.current_step,
			cl.enrichment_data, cl.enriched_at, cl.matched_value_prop_id, cl.match_reasoning,
			cl.last_email_sent_at, cl.next_email_scheduled_at, cl.created_at, cl.updated_at,
			c.workspace_id, c.status, c.sequence_steps, c.days_between_steps
		FROM campaign_leads cl
		JOIN campaigns c ON c.id = cl.campaign_id
		WHERE c.status = $1
			AND cl.status IN ($2, $3)
			AND (cl.next_email_scheduled_at IS NULL OR cl.next_email_scheduled_at <= $4)
		ORDER BY cl.next_email_scheduled_at NULLS FIRST
		LIMIT $5
	`, domain.CampaignStatusActive, domain.LeadStatusReady, domain.LeadStatusInSequence, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]DueLead, 0)
	for rows.Next() {
		var dl DueLead
		if err := rows.Scan(
			&dl.ID, &dl.CampaignID, &dl.LeadID, &dl.Status, &dl.CurrentStep,
			&dl.EnrichmentData, &dl.EnrichedAt, &dl.MatchedValuePropID, &dl.MatchReasoning,
			&dl.LastEmailSentAt, &dl.NextEmailScheduledAt, &dl.CreatedAt, &dl.UpdatedAt,
			&dl.WorkspaceID, &dl.CampaignStatus, &dl.SequenceSteps, &dl.DaysBetweenSteps,
		); err != nil {
			return nil, err
		}
		items = append(items, dl)
	}
	return items, rows.Err()
}

// ListExhaustedLeads finds in-sequence leads that finished every step and
// whose reply window has closed, candidates for the no_response sweep.
func (r *Repository) ListExhaustedLeads(ctx context.Context, quietPeriod time.Duration, limit int) ([]CampaignLead, error) {
	if limit <= 0 {
		limit = 100
	}
	cutoff := time.Now().Add(-quietPeriod)
	rows, err := r.pool.Query(ctx, `
		SELECT `+campaignLeadColumns+`
		FROM campaign_leads cl
		WHERE cl.status = $1
			AND cl.current_step >= (SELECT sequence_steps FROM campaigns WHERE id = cl.campaign_id)
			AND cl.last_email_sent_at IS NOT NULL
			AND cl.last_email_sent_at <= $2
		LIMIT $3
	`, domain.LeadStatusInSequence, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]CampaignLead, 0)
	for rows.Next() {
		var cl CampaignLead
		if err := rows.Scan(
			&cl.ID, &cl.CampaignID, &cl.LeadID, &cl.Status, &cl.CurrentStep,
			&cl.EnrichmentData, &cl.EnrichedAt, &cl.MatchedValuePropID, &cl.MatchReasoning,
			&cl.LastEmailSentAt, &cl.NextEmailScheduledAt, &cl.CreatedAt, &cl.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, cl)
	}
	return items, rows.Err()
}
