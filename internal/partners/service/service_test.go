package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"
)

// The ledger rules below reject bad input before any repository call, so a
// nil repository is safe for these cases.
func newValidationService() *Service {
	return New(nil, nil, logger.New("test"))
}

func TestRecordSaleAmountRules(t *testing.T) {
	svc := newValidationService()
	ctx := context.Background()

	tests := []struct {
		name       string
		saleAmount string
		commission string
	}{
		{name: "zero sale amount", saleAmount: "0", commission: "10"},
		{name: "negative sale amount", saleAmount: "-50", commission: "10"},
		{name: "zero commission", saleAmount: "100", commission: "0"},
		{name: "negative commission", saleAmount: "100", commission: "-10"},
		{name: "commission above sale amount", saleAmount: "100", commission: "100.01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.RecordSale(ctx, RecordSaleInput{
				LeadID:      uuid.New(),
				WorkspaceID: uuid.New(),
				PartnerID:   uuid.New(),
				SaleAmount:  decimal.RequireFromString(tt.saleAmount),
				Commission:  decimal.RequireFromString(tt.commission),
			})
			if !apperr.Is(err, apperr.KindValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreditPartnerRejectsNonPositiveAmount(t *testing.T) {
	svc := newValidationService()

	for _, amount := range []string{"0", "-1"} {
		_, err := svc.CreditPartnerForSale(context.Background(), uuid.New(), uuid.New(), decimal.RequireFromString(amount))
		if !apperr.Is(err, apperr.KindValidation) {
			t.Errorf("amount %s: expected validation error, got %v", amount, err)
		}
	}
}

func TestRequestPayoutRejectsNonPositiveAmount(t *testing.T) {
	svc := newValidationService()

	_, err := svc.RequestPayout(context.Background(), uuid.New(), decimal.Zero)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestAdjustRequiresAmountAndDescription(t *testing.T) {
	svc := newValidationService()
	ctx := context.Background()

	if _, err := svc.Adjust(ctx, uuid.New(), decimal.Zero, "correction"); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("zero amount: expected validation error, got %v", err)
	}
	if _, err := svc.Adjust(ctx, uuid.New(), decimal.RequireFromString("-5"), ""); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("missing description: expected validation error, got %v", err)
	}
}

func TestCreatePartnerRequiresBusinessName(t *testing.T) {
	svc := newValidationService()

	_, err := svc.CreatePartner(context.Background(), CreatePartnerInput{ContactName: "Sam"})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}
