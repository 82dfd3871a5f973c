package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"leadflow_backend/internal/events"
	"leadflow_backend/internal/partners/repository"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"
)

// ledgerStore is an in-memory Store that mirrors the repository's ledger
// rules: every balance move appends a transaction, a purchase earns at most
// once, and a payout request cannot overdraw.
type ledgerStore struct {
	partners     map[uuid.UUID]repository.Partner
	credits      map[uuid.UUID]repository.Credits
	transactions []repository.Transaction
	credited     map[uuid.UUID]bool
}

func newLedgerStore() *ledgerStore {
	return &ledgerStore{
		partners: make(map[uuid.UUID]repository.Partner),
		credits:  make(map[uuid.UUID]repository.Credits),
		credited: make(map[uuid.UUID]bool),
	}
}

func (s *ledgerStore) CreatePartner(_ context.Context, params repository.CreatePartnerParams) (repository.Partner, error) {
	p := repository.Partner{
		ID:           uuid.New(),
		BusinessName: params.BusinessName,
		ContactName:  params.ContactName,
		ContactEmail: params.ContactEmail,
		ContactPhone: params.ContactPhone,
	}
	s.partners[p.ID] = p
	s.credits[p.ID] = repository.Credits{PartnerID: p.ID}
	return p, nil
}

func (s *ledgerStore) GetPartner(_ context.Context, id uuid.UUID) (repository.Partner, error) {
	p, ok := s.partners[id]
	if !ok {
		return repository.Partner{}, repository.ErrNotFound
	}
	return p, nil
}

func (s *ledgerStore) GetCredits(_ context.Context, partnerID uuid.UUID) (repository.Credits, error) {
	c, ok := s.credits[partnerID]
	if !ok {
		return repository.Credits{}, repository.ErrNotFound
	}
	return c, nil
}

func (s *ledgerStore) ListTransactions(_ context.Context, partnerID uuid.UUID, _, _ int) ([]repository.Transaction, error) {
	items := make([]repository.Transaction, 0)
	for _, t := range s.transactions {
		if t.PartnerID == partnerID {
			items = append(items, t)
		}
	}
	return items, nil
}

func (s *ledgerStore) RecordPurchase(_ context.Context, params repository.RecordPurchaseParams) (repository.LeadPurchase, error) {
	return repository.LeadPurchase{
		ID:          uuid.New(),
		LeadID:      params.LeadID,
		WorkspaceID: params.WorkspaceID,
		PartnerID:   params.PartnerID,
		SaleAmount:  params.SaleAmount,
	}, nil
}

func (s *ledgerStore) append(partnerID uuid.UUID, txType string, amount decimal.Decimal, leadPurchaseID, payoutRequestID *uuid.UUID) repository.Transaction {
	t := repository.Transaction{
		ID:              uuid.New(),
		PartnerID:       partnerID,
		Type:            txType,
		Amount:          amount,
		LeadPurchaseID:  leadPurchaseID,
		PayoutRequestID: payoutRequestID,
	}
	s.transactions = append(s.transactions, t)
	return t
}

func (s *ledgerStore) Credit(_ context.Context, partnerID, leadPurchaseID uuid.UUID, amount decimal.Decimal, _ string) (repository.Transaction, error) {
	c, ok := s.credits[partnerID]
	if !ok {
		return repository.Transaction{}, repository.ErrNotFound
	}
	if s.credited[leadPurchaseID] {
		return repository.Transaction{}, repository.ErrDuplicateCredit
	}
	s.credited[leadPurchaseID] = true
	c.Balance = c.Balance.Add(amount)
	c.TotalEarned = c.TotalEarned.Add(amount)
	s.credits[partnerID] = c
	return s.append(partnerID, repository.TxTypeEarned, amount, &leadPurchaseID, nil), nil
}

func (s *ledgerStore) RequestPayout(_ context.Context, partnerID uuid.UUID, amount decimal.Decimal, _ string) (repository.Transaction, error) {
	c, ok := s.credits[partnerID]
	if !ok {
		return repository.Transaction{}, repository.ErrNotFound
	}
	if c.Balance.LessThan(amount) {
		return repository.Transaction{}, repository.ErrInsufficientFund
	}
	c.Balance = c.Balance.Sub(amount)
	c.TotalWithdrawn = c.TotalWithdrawn.Add(amount)
	s.credits[partnerID] = c
	return s.append(partnerID, repository.TxTypePayoutRequest, amount.Neg(), nil, nil), nil
}

func (s *ledgerStore) CompletePayout(_ context.Context, partnerID, payoutRequestID uuid.UUID, _ string) (repository.Transaction, error) {
	for _, t := range s.transactions {
		if t.ID == payoutRequestID && t.PartnerID == partnerID && t.Type == repository.TxTypePayoutRequest {
			return s.append(partnerID, repository.TxTypePayoutCompleted, decimal.Zero, nil, &payoutRequestID), nil
		}
	}
	return repository.Transaction{}, repository.ErrNotFound
}

func (s *ledgerStore) Adjust(_ context.Context, partnerID uuid.UUID, amount decimal.Decimal, _ string) (repository.Transaction, error) {
	c, ok := s.credits[partnerID]
	if !ok {
		return repository.Transaction{}, repository.ErrNotFound
	}
	c.Balance = c.Balance.Add(amount)
	s.credits[partnerID] = c
	return s.append(partnerID, repository.TxTypeAdjustment, amount, nil, nil), nil
}

func (s *ledgerStore) SumTransactions(_ context.Context, partnerID uuid.UUID) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, t := range s.transactions {
		if t.PartnerID == partnerID {
			sum = sum.Add(t.Amount)
		}
	}
	return sum, nil
}

func newLedgerService(store *ledgerStore) *Service {
	log := logger.New("test")
	return New(store, events.NewInMemoryBus(log), log)
}

func TestLedgerBalanceMatchesTransactionSum(t *testing.T) {
	store := newLedgerStore()
	svc := newLedgerService(store)
	ctx := context.Background()

	partner, err := svc.CreatePartner(ctx, CreatePartnerInput{
		BusinessName: "Acme Partners",
		ContactEmail: "sam@acme.test",
	})
	if err != nil {
		t.Fatalf("CreatePartner: %v", err)
	}

	_, _, err = svc.RecordSale(ctx, RecordSaleInput{
		LeadID:      uuid.New(),
		WorkspaceID: uuid.New(),
		PartnerID:   partner.ID,
		SaleAmount:  decimal.RequireFromString("1000"),
		Commission:  decimal.RequireFromString("150"),
	})
	if err != nil {
		t.Fatalf("RecordSale: %v", err)
	}

	if _, err := svc.Adjust(ctx, partner.ID, decimal.RequireFromString("-25.50"), "chargeback correction"); err != nil {
		t.Fatalf("Adjust: %v", err)
	}

	payout, err := svc.RequestPayout(ctx, partner.ID, decimal.RequireFromString("100"))
	if err != nil {
		t.Fatalf("RequestPayout: %v", err)
	}
	if _, err := svc.CompletePayout(ctx, partner.ID, payout.ID); err != nil {
		t.Fatalf("CompletePayout: %v", err)
	}

	snapshot, err := svc.ReconcileLedger(ctx, partner.ID)
	if err != nil {
		t.Fatalf("ReconcileLedger: %v", err)
	}
	want := decimal.RequireFromString("24.50")
	if !snapshot.Balance.Equal(want) {
		t.Errorf("balance: got %s, want %s", snapshot.Balance, want)
	}
	if !snapshot.TransactionSum.Equal(snapshot.Balance) {
		t.Errorf("transaction sum %s diverged from balance %s", snapshot.TransactionSum, snapshot.Balance)
	}
	if !snapshot.Consistent {
		t.Error("ledger must reconcile after a full earn, adjust, payout cycle")
	}
}

func TestCreditPartnerRejectsSecondCreditForPurchase(t *testing.T) {
	store := newLedgerStore()
	svc := newLedgerService(store)
	ctx := context.Background()

	partner, err := svc.CreatePartner(ctx, CreatePartnerInput{
		BusinessName: "Acme Partners",
		ContactEmail: "sam@acme.test",
	})
	if err != nil {
		t.Fatalf("CreatePartner: %v", err)
	}

	purchase, _, err := svc.RecordSale(ctx, RecordSaleInput{
		LeadID:      uuid.New(),
		WorkspaceID: uuid.New(),
		PartnerID:   partner.ID,
		SaleAmount:  decimal.RequireFromString("500"),
		Commission:  decimal.RequireFromString("75"),
	})
	if err != nil {
		t.Fatalf("RecordSale: %v", err)
	}

	_, err = svc.CreditPartnerForSale(ctx, purchase.ID, partner.ID, decimal.RequireFromString("75"))
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("second credit: expected conflict, got %v", err)
	}

	snapshot, err := svc.ReconcileLedger(ctx, partner.ID)
	if err != nil {
		t.Fatalf("ReconcileLedger: %v", err)
	}
	if !snapshot.Balance.Equal(decimal.RequireFromString("75")) {
		t.Errorf("rejected credit must not move the balance, got %s", snapshot.Balance)
	}
	if !snapshot.Consistent {
		t.Error("ledger must stay reconciled after a rejected duplicate credit")
	}
}

func TestRequestPayoutRejectsOverdraw(t *testing.T) {
	store := newLedgerStore()
	svc := newLedgerService(store)
	ctx := context.Background()

	partner, err := svc.CreatePartner(ctx, CreatePartnerInput{
		BusinessName: "Acme Partners",
		ContactEmail: "sam@acme.test",
	})
	if err != nil {
		t.Fatalf("CreatePartner: %v", err)
	}

	_, err = svc.RequestPayout(ctx, partner.ID, decimal.RequireFromString("10"))
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("overdraw: expected validation error, got %v", err)
	}

	snapshot, err := svc.ReconcileLedger(ctx, partner.ID)
	if err != nil {
		t.Fatalf("ReconcileLedger: %v", err)
	}
	if !snapshot.Balance.IsZero() || !snapshot.TransactionSum.IsZero() {
		t.Errorf("rejected payout must leave the ledger untouched, got balance %s sum %s", snapshot.Balance, snapshot.TransactionSum)
	}
}
