package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("lead not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type Lead struct {
	ID                  uuid.UUID
	WorkspaceID         uuid.UUID
	FirstName           string
	LastName            string
	Email               string
	Phone               *string
	LinkedInURL         *string
	JobTitle            *string
	CompanyName         *string
	Industry            *string
	CompanySize         *string
	RevenueRange        *string
	Location            *string
	Source              *string
	UploadSource        *string
	UploadedByPartnerID *uuid.UUID
	EnrichmentStatus    string
	DeliveryStatus      string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

const leadColumns = `id, workspace_id, first_name, last_name, email, phone, linkedin_url, job_title,
	company_name, industry, company_size, revenue_range, location,
	source, upload_source, uploaded_by_partner_id, enrichment_status, delivery_status,
	created_at, updated_at`

func scanLead(row pgx.Row) (Lead, error) {
	var lead Lead
	err := row.Scan(
		&lead.ID, &lead.WorkspaceID, &lead.FirstName, &lead.LastName, &lead.Email, &lead.Phone,
		&lead.LinkedInURL, &lead.JobTitle, &lead.CompanyName, &lead.Industry, &lead.CompanySize,
		&lead.RevenueRange, &lead.Location, &lead.Source, &lead.UploadSource,
		&lead.UploadedByPartnerID, &lead.EnrichmentStatus, &lead.DeliveryStatus,
		&lead.CreatedAt, &lead.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

type CreateLeadParams struct {
	WorkspaceID         uuid.UUID
	FirstName           string
	LastName            string
	Email               string
	Phone               *string
	LinkedInURL         *string
	JobTitle            *string
	CompanyName         *string
	Industry            *string
	CompanySize         *string
	RevenueRange        *string
	Location            *string
	Source              *string
	UploadSource        *string
	UploadedByPartnerID *uuid.UUID
}

func (r *Repository) Create(ctx context.Context, params CreateLeadParams) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO leads (
			workspace_id, first_name, last_name, email, phone, linkedin_url, job_title,
			company_name, industry, company_size, revenue_range, location,
			source, upload_source, uploaded_by_partner_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING `+leadColumns,
		params.WorkspaceID, params.FirstName, params.LastName, params.Email, params.Phone,
		params.LinkedInURL, params.JobTitle, params.CompanyName, params.Industry,
		params.CompanySize, params.RevenueRange, params.Location,
		params.Source, params.UploadSource, params.UploadedByPartnerID,
	)
	return scanLead(row)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID, workspaceID uuid.UUID) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads WHERE id = $1 AND workspace_id = $2 AND deleted_at IS NULL
	`, id, workspaceID)
	return scanLead(row)
}

func (r *Repository) GetByEmail(ctx context.Context, email string, workspaceID uuid.UUID) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads WHERE email = $1 AND workspace_id = $2 AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT 1
	`, email, workspaceID)
	return scanLead(row)
}

type ListParams struct {
	WorkspaceID uuid.UUID
	Search      string
	Industry    string
	Source      string
	Limit       int
	Offset      int
}

func (r *Repository) List(ctx context.Context, params ListParams) ([]Lead, int, error) {
	where := []string{"workspace_id = $1", "deleted_at IS NULL"}
	args := []interface{}{params.WorkspaceID}

	if params.Search != "" {
		args = append(args, "%"+strings.ToLower(params.Search)+"%")
		n := fmt.Sprintf("$%d", len(args))
		where = append(where, "(lower(email) LIKE "+n+" OR lower(first_name || ' ' || last_name) LIKE "+n+" OR lower(coalesce(company_name, '')) LIKE "+n+")")
	}
	if params.Industry != "" {
		args = append(args, params.Industry)
		where = append(where, fmt.Sprintf("industry = $%d", len(args)))
	}
	if params.Source != "" {
		args = append(args, params.Source)
		where = append(where, fmt.Sprintf("source = $%d", len(args)))
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT count(*) FROM leads WHERE "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := params.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit, params.Offset)
	query := fmt.Sprintf(`SELECT `+leadColumns+` FROM leads WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		whereClause, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]Lead, 0)
	for rows.Next() {
		var lead Lead
		if err := rows.Scan(
			&lead.ID, &lead.WorkspaceID, &lead.FirstName, &lead.LastName, &lead.Email, &lead.Phone,
			&lead.LinkedInURL, &lead.JobTitle, &lead.CompanyName, &lead.Industry, &lead.CompanySize,
			&lead.RevenueRange, &lead.Location, &lead.Source, &lead.UploadSource,
			&lead.UploadedByPartnerID, &lead.EnrichmentStatus, &lead.DeliveryStatus,
			&lead.CreatedAt, &lead.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		items = append(items, lead)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}

	return items, total, nil
}

// RouteToWorkspace is the one controlled workspace reassignment. Outside this
// operation a lead's workspace is immutable for its lifetime.
func (r *Repository) RouteToWorkspace(ctx context.Context, id, fromWorkspace, toWorkspace uuid.UUID) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE leads
		SET workspace_id = $3, updated_at = now()
		WHERE id = $1 AND workspace_id = $2 AND deleted_at IS NULL
		RETURNING `+leadColumns,
		id, fromWorkspace, toWorkspace,
	)
	return scanLead(row)
}

func (r *Repository) SetEnrichmentStatus(ctx context.Context, id uuid.UUID, workspaceID uuid.UUID, status string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET enrichment_status = $3, updated_at = now()
		WHERE id = $1 AND workspace_id = $2 AND deleted_at IS NULL
	`, id, workspaceID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDelete marks a lead deleted; there is no hard delete in normal
// operation.
func (r *Repository) SoftDelete(ctx context.Context, id uuid.UUID, workspaceID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET deleted_at = now() WHERE id = $1 AND workspace_id = $2 AND deleted_at IS NULL
	`, id, workspaceID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
