// Package repository persists partners and their commission ledger. Ledger
// writes lock the partner_credits row so the balance and its transaction log
// can never drift apart.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound         = errors.New("partner not found")
	ErrDuplicateCredit  = errors.New("purchase already credited")
	ErrInsufficientFund = errors.New("insufficient balance")
)

const pgUniqueViolation = "23505"

const (
	TxTypeEarned          = "earned"
	TxTypePayoutRequest   = "payout_request"
	TxTypePayoutCompleted = "payout_completed"
	TxTypeAdjustment      = "adjustment"
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type Partner struct {
	ID           uuid.UUID
	BusinessName string
	ContactName  string
	ContactEmail string
	ContactPhone *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Credits struct {
	PartnerID      uuid.UUID
	Balance        decimal.Decimal
	TotalEarned    decimal.Decimal
	TotalWithdrawn decimal.Decimal
	UpdatedAt      time.Time
}

type Transaction struct {
	ID              uuid.UUID
	PartnerID       uuid.UUID
	Type            string
	Amount          decimal.Decimal
	LeadPurchaseID  *uuid.UUID
	PayoutRequestID *uuid.UUID
	Description     *string
	CreatedAt       time.Time
}

type LeadPurchase struct {
	ID          uuid.UUID
	LeadID      uuid.UUID
	WorkspaceID uuid.UUID
	PartnerID   uuid.UUID
	SaleAmount  decimal.Decimal
	CreatedAt   time.Time
}

type CreatePartnerParams struct {
	BusinessName string
	ContactName  string
	ContactEmail string
	ContactPhone *string
}

// CreatePartner inserts the partner and its zeroed credits row together.
func (r *Repository) CreatePartner(ctx context.Context, params CreatePartnerParams) (Partner, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Partner{}, err
	}
	defer tx.Rollback(ctx)

	var p Partner
	err = tx.QueryRow(ctx, `
		INSERT INTO partners (business_name, contact_name, contact_email, contact_phone)
		VALUES ($1, $2, $3, $4)
		RETURNING id, business_name, contact_name, contact_email, contact_phone, created_at, updated_at
	`, params.BusinessName, params.ContactName, params.ContactEmail, params.ContactPhone).Scan(
		&p.ID, &p.BusinessName, &p.ContactName, &p.ContactEmail, &p.ContactPhone, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return Partner{}, err
	}

	if _, err := tx.Exec(ctx, `INSERT INTO partner_credits (partner_id) VALUES ($1)`, p.ID); err != nil {
		return Partner{}, err
	}

	return p, tx.Commit(ctx)
}

func (r *Repository) GetPartner(ctx context.Context, id uuid.UUID) (Partner, error) {
	var p Partner
	err := r.pool.QueryRow(ctx, `
		SELECT id, business_name, contact_name, contact_email, contact_phone, created_at, updated_at
		FROM partners WHERE id = $1
	`, id).Scan(&p.ID, &p.BusinessName, &p.ContactName, &p.ContactEmail, &p.ContactPhone, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Partner{}, ErrNotFound
	}
	return p, err
}

func (r *Repository) GetCredits(ctx context.Context, partnerID uuid.UUID) (Credits, error) {
	var c Credits
	err := r.pool.QueryRow(ctx, `
		SELECT partner_id, balance, total_earned, total_withdrawn, updated_at
		FROM partner_credits WHERE partner_id = $1
	`, partnerID).Scan(&c.PartnerID, &c.Balance, &c.TotalEarned, &c.TotalWithdrawn, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Credits{}, ErrNotFound
	}
	return c, err
}

func (r *Repository) ListTransactions(ctx context.Context, partnerID uuid.UUID, limit, offset int) ([]Transaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, partner_id, type, amount, lead_purchase_id, payout_request_id, description, created_at
		FROM partner_credit_transactions
		WHERE partner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, partnerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Transaction, 0)
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.PartnerID, &t.Type, &t.Amount,
			&t.LeadPurchaseID, &t.PayoutRequestID, &t.Description, &t.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

type RecordPurchaseParams struct {
	LeadID      uuid.UUID
	WorkspaceID uuid.UUID
	PartnerID   uuid.UUID
	SaleAmount  decimal.Decimal
}

func (r *Repository) RecordPurchase(ctx context.Context, params RecordPurchaseParams) (LeadPurchase, error) {
	var lp LeadPurchase
	err := r.pool.QueryRow(ctx, `
		INSERT INTO lead_purchases (lead_id, workspace_id, partner_id, sale_amount)
		VALUES ($1, $2, $3, $4)
		RETURNING id, lead_id, workspace_id, partner_id, sale_amount, created_at
	`, params.LeadID, params.WorkspaceID, params.PartnerID, params.SaleAmount).Scan(
		&lp.ID, &lp.LeadID, &lp.WorkspaceID, &lp.PartnerID, &lp.SaleAmount, &lp.CreatedAt,
	)
	return lp, err
}

// Credit appends an earned transaction and bumps the balance in one
// transaction with the credits row locked. The partial unique index on
// (lead_purchase_id) WHERE type = 'earned' rejects a second credit for the
// same purchase regardless of interleaving.
func (r *Repository) Credit(ctx context.Context, partnerID, leadPurchaseID uuid.UUID, amount decimal.Decimal, description string) (Transaction, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Transaction{}, err
	}
	defer tx.Rollback(ctx)

	if err := lockCredits(ctx, tx, partnerID); err != nil {
		return Transaction{}, err
	}

	t, err := insertTransaction(ctx, tx, insertTxParams{
		PartnerID:      partnerID,
		Type:           TxTypeEarned,
		Amount:         amount,
		LeadPurchaseID: &leadPurchaseID,
		Description:    description,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return Transaction{}, ErrDuplicateCredit
		}
		return Transaction{}, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE partner_credits
		SET balance = balance + $2, total_earned = total_earned + $2, updated_at = now()
		WHERE partner_id = $1
	`, partnerID, amount); err != nil {
		return Transaction{}, err
	}

	return t, tx.Commit(ctx)
}

// RequestPayout appends a negative payout_request transaction and debits the
// balance, failing when the locked balance cannot cover the amount.
func (r *Repository) RequestPayout(ctx context.Context, partnerID uuid.UUID, amount decimal.Decimal, description string) (Transaction, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Transaction{}, err
	}
	defer tx.Rollback(ctx)

	var balance decimal.Decimal
	err = tx.QueryRow(ctx, `
		SELECT balance FROM partner_credits WHERE partner_id = $1 FOR UPDATE
	`, partnerID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, ErrNotFound
	}
	if err != nil {
		return Transaction{}, err
	}
	if balance.LessThan(amount) {
		return Transaction{}, ErrInsufficientFund
	}

	t, err := insertTransaction(ctx, tx, insertTxParams{
		PartnerID:   partnerID,
		Type:        TxTypePayoutRequest,
		Amount:      amount.Neg(),
		Description: description,
	})
	if err != nil {
		return Transaction{}, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE partner_credits
		SET balance = balance - $2, total_withdrawn = total_withdrawn + $2, updated_at = now()
		WHERE partner_id = $1
	`, partnerID, amount); err != nil {
		return Transaction{}, err
	}

	return t, tx.Commit(ctx)
}

// CompletePayout records the settlement of an earlier payout request. The
// balance already moved at request time; this appends the audit marker.
func (r *Repository) CompletePayout(ctx context.Context, partnerID, payoutRequestID uuid.UUID, description string) (Transaction, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Transaction{}, err
	}
	defer tx.Rollback(ctx)

	if err := lockCredits(ctx, tx, partnerID); err != nil {
		return Transaction{}, err
	}

	var requested bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM partner_credit_transactions
			WHERE id = $1 AND partner_id = $2 AND type = $3
		)
	`, payoutRequestID, partnerID, TxTypePayoutRequest).Scan(&requested); err != nil {
		return Transaction{}, err
	}
	if !requested {
		return Transaction{}, ErrNotFound
	}

	t, err := insertTransaction(ctx, tx, insertTxParams{
		PartnerID:       partnerID,
		Type:            TxTypePayoutCompleted,
		Amount:          decimal.Zero,
		PayoutRequestID: &payoutRequestID,
		Description:     description,
	})
	if err != nil {
		return Transaction{}, err
	}

	return t, tx.Commit(ctx)
}

// Adjust applies a manual correction, positive or negative, with the
// credits row locked.
func (r *Repository) Adjust(ctx context.Context, partnerID uuid.UUID, amount decimal.Decimal, description string) (Transaction, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Transaction{}, err
	}
	defer tx.Rollback(ctx)

	if err := lockCredits(ctx, tx, partnerID); err != nil {
		return Transaction{}, err
	}

	t, err := insertTransaction(ctx, tx, insertTxParams{
		PartnerID:   partnerID,
		Type:        TxTypeAdjustment,
		Amount:      amount,
		Description: description,
	})
	if err != nil {
		return Transaction{}, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE partner_credits SET balance = balance + $2, updated_at = now() WHERE partner_id = $1
	`, partnerID, amount); err != nil {
		return Transaction{}, err
	}

	return t, tx.Commit(ctx)
}

// SumTransactions returns the ledger total. Outside of an in-flight write it
// always equals the stored balance.
func (r *Repository) SumTransactions(ctx context.Context, partnerID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.pool.QueryRow(ctx, `
		SELECT coalesce(sum(amount), 0) FROM partner_credit_transactions WHERE partner_id = $1
	`, partnerID).Scan(&sum)
	return sum, err
}

func lockCredits(ctx context.Context, tx pgx.Tx, partnerID uuid.UUID) error {
	var id uuid.UUID
	err := tx.QueryRow(ctx, `
		SELECT partner_id FROM partner_credits WHERE partner_id = $1 FOR UPDATE
	`, partnerID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

type insertTxParams struct {
	PartnerID       uuid.UUID
	Type            string
	Amount          decimal.Decimal
	LeadPurchaseID  *uuid.UUID
	PayoutRequestID *uuid.UUID
	Description     string
}

func insertTransaction(ctx context.Context, tx pgx.Tx, params insertTxParams) (Transaction, error) {
	var description *string
	if params.Description != "" {
		description = &params.Description
	}

	var t Transaction
	err := tx.QueryRow(ctx, `
		INSERT INTO partner_credit_transactions (partner_id, type, amount, lead_purchase_id, payout_request_id, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, partner_id, type, amount, lead_purchase_id, payout_request_id, description, created_at
	`, params.PartnerID, params.Type, params.Amount, params.LeadPurchaseID, params.PayoutRequestID, description).Scan(
		&t.ID, &t.PartnerID, &t.Type, &t.Amount,
		&t.LeadPurchaseID, &t.PayoutRequestID, &t.Description, &t.CreatedAt,
	)
	return t, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
