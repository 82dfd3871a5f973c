package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"leadflow_backend/internal/campaigns/domain"
)

type Campaign struct {
	ID                   uuid.UUID
	WorkspaceID          uuid.UUID
	Name                 string
	Status               string
	TargetIndustries     []string
	TargetCompanySizes   []string
	TargetSeniorities    []string
	ValuePropositions    json.RawMessage
	TrustSignals         json.RawMessage
	SelectedTemplateIDs  []uuid.UUID
	SequenceSteps        int
	DaysBetweenSteps     []int32
	SubmittedForReviewAt *time.Time
	ReviewedBy           *uuid.UUID
	ReviewedAt           *time.Time
	ReviewNotes          *string
	TotalLeads           int
	TotalSent            int
	TotalReplied         int
	TotalPositive        int
	TotalBounced         int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

const campaignColumns = `id, workspace_id, name, status,
	target_industries, target_company_sizes, target_seniorities,
	value_propositions, trust_signals, selected_template_ids,
	sequence_steps, days_between_steps,
	submitted_for_review_at, reviewed_by, reviewed_at, review_notes,
	total_leads, total_sent, total_replied, total_positive, total_bounced,
	created_at, updated_at`

func scanCampaign(row pgx.Row) (Campaign, error) {
	var c Campaign
	err := row.Scan(
		&c.ID, &c.WorkspaceID, &c.Name, &c.Status,
		&c.TargetIndustries, &c.TargetCompanySizes, &c.TargetSeniorities,
		&c.ValuePropositions, &c.TrustSignals, &c.SelectedTemplateIDs,
		&c.SequenceSteps, &c.DaysBetweenSteps,
		&c.SubmittedForReviewAt, &c.ReviewedBy, &c.ReviewedAt, &c.ReviewNotes,
		&c.TotalLeads, &c.TotalSent, &c.TotalReplied, &c.TotalPositive, &c.TotalBounced,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Campaign{}, ErrNotFound
	}
	return c, err
}

type CreateCampaignParams struct {
	WorkspaceID         uuid.UUID
	Name                string
	TargetIndustries    []string
	TargetCompanySizes  []string
	TargetSeniorities   []string
	ValuePropositions   json.RawMessage
	TrustSignals        json.RawMessage
	SelectedTemplateIDs []uuid.UUID
	SequenceSteps       int
	DaysBetweenSteps    []int32
}

func (r *Repository) CreateCampaign(ctx context.Context, params CreateCampaignParams) (Campaign, error) {
	valueProps := params.ValuePropositions
	if valueProps == nil {
		valueProps = json.RawMessage("[]")
	}
	trustSignals := params.TrustSignals
	if trustSignals == nil {
		trustSignals = json.RawMessage("[]")
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO campaigns (
			workspace_id, name, target_industries, target_company_sizes, target_seniorities,
			value_propositions, trust_signals, selected_template_ids,
			sequence_steps, days_between_steps
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+campaignColumns,
		params.WorkspaceID, params.Name,
		params.TargetIndustries, params.TargetCompanySizes, params.TargetSeniorities,
		valueProps, trustSignals, params.SelectedTemplateIDs,
		params.SequenceSteps, params.DaysBetweenSteps,
	)
	return scanCampaign(row)
}

func (r *Repository) GetCampaign(ctx context.Context, id, workspaceID uuid.UUID) (Campaign, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+campaignColumns+` FROM campaigns WHERE id = $1 AND workspace_id = $2
	`, id, workspaceID)
	return scanCampaign(row)
}

// GetCampaignByID loads a campaign without a workspace filter. Webhook and
// scheduler paths arrive keyed by provider identifiers, not by tenant.
func (r *Repository) GetCampaignByID(ctx context.Context, id uuid.UUID) (Campaign, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+campaignColumns+` FROM campaigns WHERE id = $1
	`, id)
	return scanCampaign(row)
}

type ListCampaignsParams struct {
	WorkspaceID uuid.UUID
	Status      string
	Limit       int
	Offset      int
}

func (r *Repository) ListCampaigns(ctx context.Context, params ListCampaignsParams) ([]Campaign, int, error) {
	where := []string{"workspace_id = $1"}
	args := []interface{}{params.WorkspaceID}
	if params.Status != "" {
		args = append(args, params.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT count(*) FROM campaigns WHERE "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := params.Limit
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	args = append(args, limit, params.Offset)
	rows, err := r.pool.Query(ctx,
		fmt.Sprintf("SELECT "+campaignColumns+" FROM campaigns WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
			whereClause, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]Campaign, 0)
	for rows.Next() {
		var c Campaign
		if err := rows.Scan(
			&c.ID, &c.WorkspaceID, &c.Name, &c.Status,
			&c.TargetIndustries, &c.TargetCompanySizes, &c.TargetSeniorities,
			&c.ValuePropositions, &c.TrustSignals, &c.SelectedTemplateIDs,
			&c.SequenceSteps, &c.DaysBetweenSteps,
			&c.SubmittedForReviewAt, &c.ReviewedBy, &c.ReviewedAt, &c.ReviewNotes,
			&c.TotalLeads, &c.TotalSent, &c.TotalReplied, &c.TotalPositive, &c.TotalBounced,
			&c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, rows.Err()
}

type UpdateCampaignParams struct {
	Name                *string
	TargetIndustries    []string
	TargetCompanySizes  []string
	TargetSeniorities   []string
	ValuePropositions   json.RawMessage
	TrustSignals        json.RawMessage
	SelectedTemplateIDs []uuid.UUID
	SequenceSteps       *int
	DaysBetweenSteps    []int32
}

// UpdateCampaign edits authoring fields. Only draft campaigns are editable;
// the status predicate makes that atomic with the write.
func (r *Repository) UpdateCampaign(ctx context.Context, id, workspaceID uuid.UUID, params UpdateCampaignParams) (Campaign, error) {
	set := []string{"updated_at = now()"}
	args := []interface{}{id, workspaceID}

	add := func(column string, value interface{}) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if params.Name != nil {
		add("name", *params.Name)
	}
	if params.TargetIndustries != nil {
		add("target_industries", params.TargetIndustries)
	}
	if params.TargetCompanySizes != nil {
		add("target_company_sizes", params.TargetCompanySizes)
	}
	if params.TargetSeniorities != nil {
		add("target_seniorities", params.TargetSeniorities)
	}
	if params.ValuePropositions != nil {
		add("value_propositions", params.ValuePropositions)
	}
	if params.TrustSignals != nil {
		add("trust_signals", params.TrustSignals)
	}
	if params.SelectedTemplateIDs != nil {
		add("selected_template_ids", params.SelectedTemplateIDs)
	}
	if params.SequenceSteps != nil {
		add("sequence_steps", *params.SequenceSteps)
	}
	if params.DaysBetweenSteps != nil {
		add("days_between_steps", params.DaysBetweenSteps)
	}

	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE campaigns SET %s
		WHERE id = $1 AND workspace_id = $2 AND status = '%s'
		RETURNING `+campaignColumns,
		strings.Join(set, ", "), domain.CampaignStatusDraft),
		args...)
	return scanCampaign(row)
}

type TransitionStamps struct {
	SubmittedForReview bool
	ReviewedBy         *uuid.UUID
	ReviewNotes        *string
}

// TransitionStatus moves a campaign between statuses with a compare-and-set
// on the expected current status. A zero-row update means the row moved under
// us and the caller must re-read and re-validate.
func (r *Repository) TransitionStatus(ctx context.Context, id, workspaceID uuid.UUID, from, to string, stamps TransitionStamps) (Campaign, error) {
	set := []string{"status = $4", "updated_at = now()"}
	args := []interface{}{id, workspaceID, from, to}

	if stamps.SubmittedForReview {
		set = append(set, "submitted_for_review_at = now()")
	}
	if stamps.ReviewedBy != nil {
		args = append(args, *stamps.ReviewedBy)
		set = append(set, fmt.Sprintf("reviewed_by = $%d", len(args)), "reviewed_at = now()")
	}
	if stamps.ReviewNotes != nil {
		args = append(args, *stamps.ReviewNotes)
		set = append(set, fmt.Sprintf("review_notes = $%d", len(args)))
	}

	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE campaigns SET %s
		WHERE id = $1 AND workspace_id = $2 AND status = $3
		RETURNING `+campaignColumns, strings.Join(set, ", ")),
		args...)
	c, err := scanCampaign(row)
	if errors.Is(err, ErrNotFound) {
		// Distinguish a missing campaign from a concurrent status change.
		var exists bool
		if checkErr := r.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM campaigns WHERE id = $1 AND workspace_id = $2)`,
			id, workspaceID).Scan(&exists); checkErr != nil {
			return Campaign{}, checkErr
		}
		if exists {
			return Campaign{}, ErrStaleStatus
		}
		return Campaign{}, ErrNotFound
	}
	return c, err
}

// TransitionFacts loads the precondition inputs for a status transition in
// one round trip.
func (r *Repository) TransitionFacts(ctx context.Context, id, workspaceID uuid.UUID) (domain.CampaignTransitionFacts, error) {
	var facts domain.CampaignTransitionFacts
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM campaign_leads WHERE campaign_id = c.id),
			cardinality(c.selected_template_ids),
			c.reviewed_by IS NOT NULL,
			NOT EXISTS (
				SELECT 1 FROM campaign_leads
				WHERE campaign_id = c.id AND status IN ('pending', 'ready', 'in_sequence')
			)
		FROM campaigns c
		WHERE c.id = $1 AND c.workspace_id = $2
	`, id, workspaceID).Scan(&facts.LeadCount, &facts.TemplateCount, &facts.HasReviewer, &facts.AllLeadsSettled)
	if errors.Is(err, pgx.ErrNoRows) {
		return facts, ErrNotFound
	}
	return facts, err
}
