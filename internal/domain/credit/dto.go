package credit

import "time"

// UseCreditsRequest spends credits on a marketplace purchase.
type UseCreditsRequest struct {
	AmountCents int64  `json:"amount_cents" validate:"required,gt=0"`
	Description string `json:"description" validate:"max=255"`
	OrderID     string `json:"order_id" validate:"max=128"`
}

// WithdrawRequest asks to reserve credits for payout.
type WithdrawRequest struct {
	AmountCents int64 `json:"amount_cents" validate:"required,gt=0"`
}

// AdjustRequest is the admin balance adjustment payload.
type AdjustRequest struct {
	UserID      string `json:"user_id" validate:"required,uuid"`
	AmountCents int64  `json:"amount_cents" validate:"required,gt=0"`
	Type        string `json:"type" validate:"required,oneof=credit debit"`
	Description string `json:"description" validate:"max=255"`
}

// BalanceResponse is the public balance shape.
type BalanceResponse struct {
	TotalCents             int64     `json:"total_cents"`
	AvailableCents         int64     `json:"available_cents"`
	PendingWithdrawalCents int64     `json:"pending_withdrawal_cents"`
	UpdatedAt              time.Time `json:"updated_at"`
}

func toBalanceResponse(b *Balance) *BalanceResponse {
	return &BalanceResponse{
		TotalCents:             b.TotalCents,
		AvailableCents:         b.AvailableCents,
		PendingWithdrawalCents: b.PendingWithdrawalCents,
		UpdatedAt:              b.UpdatedAt,
	}
}
