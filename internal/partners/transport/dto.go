package transport

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"leadflow_backend/internal/partners/repository"
	"leadflow_backend/internal/partners/service"
)

type CreatePartnerRequest struct {
	BusinessName string `json:"businessName" binding:"required,max=200"`
	ContactName  string `json:"contactName" binding:"omitempty,max=200"`
	ContactEmail string `json:"contactEmail" binding:"required,email"`
	ContactPhone string `json:"contactPhone" binding:"omitempty,max=32"`
}

type RecordSaleRequest struct {
	LeadID      uuid.UUID       `json:"leadId" binding:"required"`
	WorkspaceID uuid.UUID       `json:"workspaceId" binding:"required"`
	SaleAmount  decimal.Decimal `json:"saleAmount" binding:"required"`
	Commission  decimal.Decimal `json:"commission" binding:"required"`
}

type PayoutRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

type CompletePayoutRequest struct {
	PayoutRequestID uuid.UUID `json:"payoutRequestId" binding:"required"`
}

type AdjustRequest struct {
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Description string          `json:"description" binding:"required,max=500"`
}

type PartnerResponse struct {
	ID             uuid.UUID `json:"id"`
	BusinessName   string    `json:"businessName"`
	ContactName    string    `json:"contactName"`
	ContactEmail   string    `json:"contactEmail"`
	ContactPhone   *string   `json:"contactPhone,omitempty"`
	Balance        string    `json:"balance"`
	TotalEarned    string    `json:"totalEarned"`
	TotalWithdrawn string    `json:"totalWithdrawn"`
	CreatedAt      time.Time `json:"createdAt"`
}

func ToPartnerResponse(p repository.Partner, c repository.Credits) PartnerResponse {
	return PartnerResponse{
		ID:             p.ID,
		BusinessName:   p.BusinessName,
		ContactName:    p.ContactName,
		ContactEmail:   p.ContactEmail,
		ContactPhone:   p.ContactPhone,
		Balance:        c.Balance.StringFixed(2),
		TotalEarned:    c.TotalEarned.StringFixed(2),
		TotalWithdrawn: c.TotalWithdrawn.StringFixed(2),
		CreatedAt:      p.CreatedAt,
	}
}

type TransactionResponse struct {
	ID              uuid.UUID  `json:"id"`
	PartnerID       uuid.UUID  `json:"partnerId"`
	Type            string     `json:"type"`
	Amount          string     `json:"amount"`
	LeadPurchaseID  *uuid.UUID `json:"leadPurchaseId,omitempty"`
	PayoutRequestID *uuid.UUID `json:"payoutRequestId,omitempty"`
	Description     *string    `json:"description,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

func ToTransactionResponse(t repository.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:              t.ID,
		PartnerID:       t.PartnerID,
		Type:            t.Type,
		Amount:          t.Amount.StringFixed(2),
		LeadPurchaseID:  t.LeadPurchaseID,
		PayoutRequestID: t.PayoutRequestID,
		Description:     t.Description,
		CreatedAt:       t.CreatedAt,
	}
}

type LedgerResponse struct {
	Balance        string `json:"balance"`
	TotalEarned    string `json:"totalEarned"`
	TotalWithdrawn string `json:"totalWithdrawn"`
	TransactionSum string `json:"transactionSum"`
	Consistent     bool   `json:"consistent"`
}

func ToLedgerResponse(s service.LedgerSnapshot) LedgerResponse {
	return LedgerResponse{
		Balance:        s.Balance.StringFixed(2),
		TotalEarned:    s.TotalEarned.StringFixed(2),
		TotalWithdrawn: s.TotalWithdrawn.StringFixed(2),
		TransactionSum: s.TransactionSum.StringFixed(2),
		Consistent:     s.Consistent,
	}
}

type RecordSaleResponse struct {
	PurchaseID  uuid.UUID           `json:"purchaseId"`
	Transaction TransactionResponse `json:"transaction"`
}
