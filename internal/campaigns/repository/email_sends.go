package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"leadflow_backend/internal/campaigns/domain"
)

type EmailSend struct {
	ID                uuid.UUID
	CampaignID        uuid.UUID
	CampaignLeadID    uuid.UUID
	SequenceStep      int
	Status            string
	Subject           string
	BodyHTML          string
	BodyText          string
	ProviderMessageID *string
	ApprovedBy        *uuid.UUID
	SentAt            *time.Time
	DeliveredAt       *time.Time
	OpenedAt          *time.Time
	ClickedAt         *time.Time
	RepliedAt         *time.Time
	BouncedAt         *time.Time
	BounceReason      *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

const emailSendColumns = `id, campaign_id, campaign_lead_id, sequence_step, status,
	subject, body_html, body_text, provider_message_id, approved_by,
	sent_at, delivered_at, opened_at, clicked_at, replied_at, bounced_at, bounce_reason,
	created_at, updated_at`

func scanEmailSend(row pgx.Row) (EmailSend, error) {
	var es EmailSend
	err := row.Scan(
		&es.ID, &es.CampaignID, &es.CampaignLeadID, &es.SequenceStep, &es.Status,
		&es.Subject, &es.BodyHTML, &es.BodyText, &es.ProviderMessageID, &es.ApprovedBy,
		&es.SentAt, &es.DeliveredAt, &es.OpenedAt, &es.ClickedAt, &es.RepliedAt,
		&es.BouncedAt, &es.BounceReason,
		&es.CreatedAt, &es.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return EmailSend{}, ErrNotFound
	}
	return es, err
}

type CreateSendParams struct {
	CampaignID     uuid.UUID
	CampaignLeadID uuid.UUID
	SequenceStep   int
	Subject        string
	BodyHTML       string
	BodyText       string
	InitialStatus  string
}

// CreateSend inserts a send inside a transaction that locks the campaign row.
// A concurrent pause commits before or after this transaction, never between
// the status check and the insert, so a paused campaign cannot grow new sends.
func (r *Repository) CreateSend(ctx context.Context, params CreateSendParams) (EmailSend, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return EmailSend{}, err
	}
	defer tx.Rollback(ctx)

	var campaignStatus string
	var sequenceSteps int
	err = tx.QueryRow(ctx, `
		SELECT status, sequence_steps FROM campaigns WHERE id = $1 FOR UPDATE
	`, params.CampaignID).Scan(&campaignStatus, &sequenceSteps)
	if errors.Is(err, pgx.ErrNoRows) {
		return EmailSend{}, ErrNotFound
	}
	if err != nil {
		return EmailSend{}, err
	}
	if !domain.CampaignAllowsSending(campaignStatus) {
		return EmailSend{}, ErrCampaignNotActive
	}
	if params.SequenceStep < 1 || params.SequenceStep > sequenceSteps {
		return EmailSend{}, ErrStepOutOfRange
	}

	initialStatus := params.InitialStatus
	if initialStatus == "" {
		initialStatus = domain.SendStatusPendingApproval
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO email_sends (campaign_id, campaign_lead_id, sequence_step, status, subject, body_html, body_text)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+emailSendColumns,
		params.CampaignID, params.CampaignLeadID, params.SequenceStep,
		initialStatus, params.Subject, params.BodyHTML, params.BodyText)
	es, err := scanEmailSend(row)
	if err != nil {
		return EmailSend{}, err
	}

	return es, tx.Commit(ctx)
}

func (r *Repository) GetSend(ctx context.Context, id uuid.UUID) (EmailSend, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+emailSendColumns+` FROM email_sends WHERE id = $1`, id)
	return scanEmailSend(row)
}

func (r *Repository) GetSendByProviderMessageID(ctx context.Context, providerMessageID string) (EmailSend, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+emailSendColumns+` FROM email_sends WHERE provider_message_id = $1
	`, providerMessageID)
	return scanEmailSend(row)
}

func (r *Repository) ListSendsForLead(ctx context.Context, campaignLeadID uuid.UUID) ([]EmailSend, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+emailSendColumns+` FROM email_sends
		WHERE campaign_lead_id = $1 ORDER BY sequence_step, created_at
	`, campaignLeadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]EmailSend, 0)
	for rows.Next() {
		var es EmailSend
		if err := rows.Scan(
			&es.ID, &es.CampaignID, &es.CampaignLeadID, &es.SequenceStep, &es.Status,
			&es.Subject, &es.BodyHTML, &es.BodyText, &es.ProviderMessageID, &es.ApprovedBy,
			&es.SentAt, &es.DeliveredAt, &es.OpenedAt, &es.ClickedAt, &es.RepliedAt,
			&es.BouncedAt, &es.BounceReason,
			&es.CreatedAt, &es.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, es)
	}
	return items, rows.Err()
}

func (r *Repository) ListPendingApproval(ctx context.Context, campaignID uuid.UUID) ([]EmailSend, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+emailSendColumns+` FROM email_sends
		WHERE campaign_id = $1 AND status = $2 ORDER BY created_at
	`, campaignID, domain.SendStatusPendingApproval)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]EmailSend, 0)
	for rows.Next() {
		var es EmailSend
		if err := rows.Scan(
			&es.ID, &es.CampaignID, &es.CampaignLeadID, &es.SequenceStep, &es.Status,
			&es.Subject, &es.BodyHTML, &es.BodyText, &es.ProviderMessageID, &es.ApprovedBy,
			&es.SentAt, &es.DeliveredAt, &es.OpenedAt, &es.ClickedAt, &es.RepliedAt,
			&es.BouncedAt, &es.BounceReason,
			&es.CreatedAt, &es.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, es)
	}
	return items, rows.Err()
}

// UpdateSendStatusCAS handles pre-dispatch moves (approve, cancel) with a
// compare-and-set on the current status.
func (r *Repository) UpdateSendStatusCAS(ctx context.Context, id uuid.UUID, from, to string, approvedBy *uuid.UUID) (EmailSend, error) {
	set := "status = $3, updated_at = now()"
	args := []interface{}{id, from, to}
	if approvedBy != nil {
		args = append(args, *approvedBy)
		set += fmt.Sprintf(", approved_by = $%d", len(args))
	}

	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE email_sends SET %s
		WHERE id = $1 AND status = $2
		RETURNING `+emailSendColumns, set),
		args...)
	es, err := scanEmailSend(row)
	if errors.Is(err, ErrNotFound) {
		var exists bool
		if checkErr := r.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM email_sends WHERE id = $1)`, id).Scan(&exists); checkErr != nil {
			return EmailSend{}, checkErr
		}
		if exists {
			return EmailSend{}, ErrStaleStatus
		}
		return EmailSend{}, ErrNotFound
	}
	return es, err
}

// CancelPendingSends cancels every undispatched send for a campaign. Used by
// the cancel pause policy and on archive.
func (r *Repository) CancelPendingSends(ctx context.Context, campaignID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE email_sends SET status = $2, updated_at = now()
		WHERE campaign_id = $1 AND status IN ($3, $4)
	`, campaignID, domain.SendStatusCancelled,
		domain.SendStatusPendingApproval, domain.SendStatusApproved)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// MarkSent records a successful dispatch. The send row, the campaign lead's
// sequence bookkeeping, and the campaign counter move in one transaction.
// The campaign row is locked and re-checked so a pause that committed after
// the caller's status read cannot be overtaken, and the lead update is a
// compare-and-set so a lead settled mid-dispatch stays settled.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID, providerMessageID string, nextScheduledAt *time.Time) (EmailSend, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return EmailSend{}, err
	}
	defer tx.Rollback(ctx)

	var campaignStatus string
	err = tx.QueryRow(ctx, `
		SELECT c.status FROM campaigns c
		JOIN email_sends es ON es.campaign_id = c.id
		WHERE es.id = $1
		FOR UPDATE OF c
	`, id).Scan(&campaignStatus)
	if err == pgx.ErrNoRows {
		return EmailSend{}, ErrNotFound
	}
	if err != nil {
		return EmailSend{}, err
	}
	if !domain.CampaignAllowsSending(campaignStatus) {
		return EmailSend{}, ErrCampaignNotActive
	}

	row := tx.QueryRow(ctx, `
		UPDATE email_sends
		SET status = $2, provider_message_id = $3, sent_at = now(), updated_at = now()
		WHERE id = $1 AND status = $4
		RETURNING `+emailSendColumns,
		id, domain.SendStatusSent, providerMessageID, domain.SendStatusApproved)
	es, err := scanEmailSend(row)
	if errors.Is(err, ErrNotFound) {
		return EmailSend{}, ErrStaleStatus
	}
	if err != nil {
		return EmailSend{}, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE campaign_leads
		SET status = $2, current_step = $3, last_email_sent_at = now(),
			next_email_scheduled_at = $4, updated_at = now()
		WHERE id = $1 AND status IN ($5, $6)
	`, es.CampaignLeadID, domain.LeadStatusInSequence, es.SequenceStep, nextScheduledAt,
		domain.LeadStatusReady, domain.LeadStatusInSequence)
	if err != nil {
		return EmailSend{}, err
	}
	if tag.RowsAffected() == 0 {
		// The lead settled (bounced, unsubscribed, classified) between
		// approval and dispatch; do not resurrect it.
		return EmailSend{}, ErrStaleStatus
	}

	if _, err := tx.Exec(ctx, `
		UPDATE campaigns SET total_sent = total_sent + 1, updated_at = now() WHERE id = $1
	`, es.CampaignID); err != nil {
		return EmailSend{}, err
	}

	return es, tx.Commit(ctx)
}

var engagementTimestampColumn = map[string]string{
	domain.EngagementDelivered: "delivered_at",
	domain.EngagementOpened:    "opened_at",
	domain.EngagementClicked:   "clicked_at",
	domain.EngagementReplied:   "replied_at",
	domain.EngagementBounced:   "bounced_at",
}

var engagementCounterColumn = map[string]string{
	domain.EngagementReplied: "total_replied",
	domain.EngagementBounced: "total_bounced",
}

type EngagementResult struct {
	Send      EmailSend
	Applied   bool
	Duplicate bool
}

// ApplyEngagement folds one provider webhook event into the send row.
// The dedup insert and the status update commit together, so a replayed
// event observes the dedup row and changes nothing. The send row is locked
// for the read-compute-write cycle.
func (r *Repository) ApplyEngagement(ctx context.Context, providerMessageID, event string, payload json.RawMessage, bounceReason *string) (EngagementResult, error) {
	var result EngagementResult

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return result, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO webhook_events (provider_message_id, event_type, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (provider_message_id, event_type) DO NOTHING
	`, providerMessageID, event, payload)
	if err != nil {
		return result, err
	}
	if tag.RowsAffected() == 0 {
		result.Duplicate = true
		es, err := r.GetSendByProviderMessageID(ctx, providerMessageID)
		if err != nil {
			return result, err
		}
		result.Send = es
		return result, tx.Commit(ctx)
	}

	row := tx.QueryRow(ctx, `
		SELECT `+emailSendColumns+` FROM email_sends
		WHERE provider_message_id = $1 FOR UPDATE
	`, providerMessageID)
	es, err := scanEmailSend(row)
	if err != nil {
		return result, err
	}

	next, applied := domain.ApplyEngagement(es.Status, event)
	result.Applied = applied
	if !applied {
		result.Send = es
		return result, tx.Commit(ctx)
	}

	set := "status = $2, updated_at = now()"
	args := []interface{}{es.ID, next}
	if column, ok := engagementTimestampColumn[event]; ok {
		set += fmt.Sprintf(", %s = coalesce(%s, now())", column, column)
	}
	if event == domain.EngagementBounced && bounceReason != nil {
		args = append(args, *bounceReason)
		set += fmt.Sprintf(", bounce_reason = $%d", len(args))
	}

	row = tx.QueryRow(ctx, fmt.Sprintf(`
		UPDATE email_sends SET %s WHERE id = $1 RETURNING `+emailSendColumns, set), args...)
	es, err = scanEmailSend(row)
	if err != nil {
		return result, err
	}
	result.Send = es

	if counter, ok := engagementCounterColumn[event]; ok {
		if _, err := tx.Exec(ctx, fmt.Sprintf(`
			UPDATE campaigns SET %s = %s + 1, updated_at = now() WHERE id = $1
		`, counter, counter), es.CampaignID); err != nil {
			return result, err
		}
	}

	return result, tx.Commit(ctx)
}

// IncrementPositive bumps the campaign's positive-outcome counter when a
// reply classifies positive.
func (r *Repository) IncrementPositive(ctx context.Context, campaignID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE campaigns SET total_positive = total_positive + 1, updated_at = now() WHERE id = $1
	`, campaignID)
	return err
}
