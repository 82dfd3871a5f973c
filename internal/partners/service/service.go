// Package service implements the partner commission ledger rules.
package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"leadflow_backend/internal/events"
	"leadflow_backend/internal/partners/repository"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"
)

// Store is the persistence surface the ledger rules run against.
type Store interface {
	CreatePartner(ctx context.Context, params repository.CreatePartnerParams) (repository.Partner, error)
	GetPartner(ctx context.Context, id uuid.UUID) (repository.Partner, error)
	GetCredits(ctx context.Context, partnerID uuid.UUID) (repository.Credits, error)
	ListTransactions(ctx context.Context, partnerID uuid.UUID, limit, offset int) ([]repository.Transaction, error)
	RecordPurchase(ctx context.Context, params repository.RecordPurchaseParams) (repository.LeadPurchase, error)
	Credit(ctx context.Context, partnerID, leadPurchaseID uuid.UUID, amount decimal.Decimal, description string) (repository.Transaction, error)
	RequestPayout(ctx context.Context, partnerID uuid.UUID, amount decimal.Decimal, description string) (repository.Transaction, error)
	CompletePayout(ctx context.Context, partnerID, payoutRequestID uuid.UUID, description string) (repository.Transaction, error)
	Adjust(ctx context.Context, partnerID uuid.UUID, amount decimal.Decimal, description string) (repository.Transaction, error)
	SumTransactions(ctx context.Context, partnerID uuid.UUID) (decimal.Decimal, error)
}

type Service struct {
	repo   Store
	bus    events.Bus
	logger *logger.Logger
}

func New(repo Store, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, bus: bus, logger: log}
}

type CreatePartnerInput struct {
	BusinessName string
	ContactName  string
	ContactEmail string
	ContactPhone string
}

func (s *Service) CreatePartner(ctx context.Context, input CreatePartnerInput) (repository.Partner, error) {
	if input.BusinessName == "" {
		return repository.Partner{}, apperr.Validation("businessName is required")
	}
	var phone *string
	if input.ContactPhone != "" {
		phone = &input.ContactPhone
	}
	return s.repo.CreatePartner(ctx, repository.CreatePartnerParams{
		BusinessName: input.BusinessName,
		ContactName:  input.ContactName,
		ContactEmail: input.ContactEmail,
		ContactPhone: phone,
	})
}

func (s *Service) GetPartner(ctx context.Context, id uuid.UUID) (repository.Partner, repository.Credits, error) {
	partner, err := s.repo.GetPartner(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return repository.Partner{}, repository.Credits{}, apperr.NotFound("partner not found")
		}
		return repository.Partner{}, repository.Credits{}, err
	}
	credits, err := s.repo.GetCredits(ctx, id)
	if err != nil {
		return repository.Partner{}, repository.Credits{}, err
	}
	return partner, credits, nil
}

func (s *Service) ListTransactions(ctx context.Context, partnerID uuid.UUID, limit, offset int) ([]repository.Transaction, error) {
	if _, err := s.repo.GetPartner(ctx, partnerID); err != nil {
		if err == repository.ErrNotFound {
			return nil, apperr.NotFound("partner not found")
		}
		return nil, err
	}
	return s.repo.ListTransactions(ctx, partnerID, limit, offset)
}

type RecordSaleInput struct {
	LeadID      uuid.UUID
	WorkspaceID uuid.UUID
	PartnerID   uuid.UUID
	SaleAmount  decimal.Decimal
	Commission  decimal.Decimal
}

// RecordSale registers a lead purchase and credits the sourcing partner's
// commission against it.
func (s *Service) RecordSale(ctx context.Context, input RecordSaleInput) (repository.LeadPurchase, repository.Transaction, error) {
	if !input.SaleAmount.IsPositive() {
		return repository.LeadPurchase{}, repository.Transaction{}, apperr.Validation("saleAmount must be positive")
	}
	if !input.Commission.IsPositive() {
		return repository.LeadPurchase{}, repository.Transaction{}, apperr.Validation("commission must be positive")
	}
	if input.Commission.GreaterThan(input.SaleAmount) {
		return repository.LeadPurchase{}, repository.Transaction{}, apperr.Validation("commission cannot exceed sale amount")
	}

	if _, err := s.repo.GetPartner(ctx, input.PartnerID); err != nil {
		if err == repository.ErrNotFound {
			return repository.LeadPurchase{}, repository.Transaction{}, apperr.NotFound("partner not found")
		}
		return repository.LeadPurchase{}, repository.Transaction{}, err
	}

	purchase, err := s.repo.RecordPurchase(ctx, repository.RecordPurchaseParams{
		LeadID:      input.LeadID,
		WorkspaceID: input.WorkspaceID,
		PartnerID:   input.PartnerID,
		SaleAmount:  input.SaleAmount,
	})
	if err != nil {
		return repository.LeadPurchase{}, repository.Transaction{}, err
	}

	tx, err := s.CreditPartnerForSale(ctx, purchase.ID, input.PartnerID, input.Commission)
	if err != nil {
		return repository.LeadPurchase{}, repository.Transaction{}, err
	}
	return purchase, tx, nil
}

// CreditPartnerForSale credits one commission for one purchase. A purchase
// can earn at most once; a repeat credit is a Conflict, never silent.
func (s *Service) CreditPartnerForSale(ctx context.Context, leadPurchaseID, partnerID uuid.UUID, amount decimal.Decimal) (repository.Transaction, error) {
	if !amount.IsPositive() {
		return repository.Transaction{}, apperr.Validation("credit amount must be positive")
	}

	tx, err := s.repo.Credit(ctx, partnerID, leadPurchaseID, amount, "commission for lead sale")
	if err != nil {
		switch err {
		case repository.ErrDuplicateCredit:
			return repository.Transaction{}, apperr.Conflict("purchase has already been credited")
		case repository.ErrNotFound:
			return repository.Transaction{}, apperr.NotFound("partner not found")
		}
		return repository.Transaction{}, err
	}

	s.bus.Publish(ctx, events.PartnerCredited{
		BaseEvent:      events.NewBaseEvent(),
		PartnerID:      partnerID,
		LeadPurchaseID: leadPurchaseID,
		Amount:         amount.StringFixed(2),
	})

	return tx, nil
}

// RequestPayout moves balance into a pending withdrawal.
func (s *Service) RequestPayout(ctx context.Context, partnerID uuid.UUID, amount decimal.Decimal) (repository.Transaction, error) {
	if !amount.IsPositive() {
		return repository.Transaction{}, apperr.Validation("payout amount must be positive")
	}

	tx, err := s.repo.RequestPayout(ctx, partnerID, amount, "payout requested")
	if err != nil {
		switch err {
		case repository.ErrInsufficientFund:
			return repository.Transaction{}, apperr.Validation("payout amount exceeds available balance")
		case repository.ErrNotFound:
			return repository.Transaction{}, apperr.NotFound("partner not found")
		}
		return repository.Transaction{}, err
	}
	return tx, nil
}

// CompletePayout settles a previously requested payout.
func (s *Service) CompletePayout(ctx context.Context, partnerID, payoutRequestID uuid.UUID) (repository.Transaction, error) {
	tx, err := s.repo.CompletePayout(ctx, partnerID, payoutRequestID, "payout completed")
	if err != nil {
		if err == repository.ErrNotFound {
			return repository.Transaction{}, apperr.NotFound("payout request not found")
		}
		return repository.Transaction{}, err
	}
	return tx, nil
}

// Adjust applies a manual ledger correction. The audit description is
// mandatory.
func (s *Service) Adjust(ctx context.Context, partnerID uuid.UUID, amount decimal.Decimal, description string) (repository.Transaction, error) {
	if amount.IsZero() {
		return repository.Transaction{}, apperr.Validation("adjustment amount cannot be zero")
	}
	if description == "" {
		return repository.Transaction{}, apperr.Validation("adjustment requires a description")
	}

	tx, err := s.repo.Adjust(ctx, partnerID, amount, description)
	if err != nil {
		if err == repository.ErrNotFound {
			return repository.Transaction{}, apperr.NotFound("partner not found")
		}
		return repository.Transaction{}, err
	}
	return tx, nil
}

type LedgerSnapshot struct {
	Balance        decimal.Decimal
	TotalEarned    decimal.Decimal
	TotalWithdrawn decimal.Decimal
	TransactionSum decimal.Decimal
	Consistent     bool
}

// ReconcileLedger compares a partner's materialized balance against the sum
// of its transaction history. The two must agree; a mismatch means a write
// path skipped the ledger.
func (s *Service) ReconcileLedger(ctx context.Context, partnerID uuid.UUID) (LedgerSnapshot, error) {
	credits, err := s.repo.GetCredits(ctx, partnerID)
	if err != nil {
		if err == repository.ErrNotFound {
			return LedgerSnapshot{}, apperr.NotFound("partner not found")
		}
		return LedgerSnapshot{}, err
	}
	sum, err := s.repo.SumTransactions(ctx, partnerID)
	if err != nil {
		return LedgerSnapshot{}, err
	}
	return LedgerSnapshot{
		Balance:        credits.Balance,
		TotalEarned:    credits.TotalEarned,
		TotalWithdrawn: credits.TotalWithdrawn,
		TransactionSum: sum,
		Consistent:     credits.Balance.Equal(sum),
	}, nil
}
