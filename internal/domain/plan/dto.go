package plan

// CreatePlanRequest is the admin plan creation payload.
type CreatePlanRequest struct {
	Name              string `json:"name" validate:"required,min=3,max=120"`
	Description       string `json:"description" validate:"max=1000"`
	PriceCents        int64  `json:"price_cents" validate:"required,gt=0"`
	MaxParticipants   int    `json:"max_participants" validate:"required,gte=2,lte=1000"`
	CommissionPercent *int64 `json:"commission_percent" validate:"omitempty,gte=0,lte=100"`
	Active            *bool  `json:"active"`
}

// UpdatePlanRequest is the admin plan update payload.
type UpdatePlanRequest struct {
	Name              *string `json:"name" validate:"omitempty,min=3,max=120"`
	Description       *string `json:"description" validate:"omitempty,max=1000"`
	PriceCents        *int64  `json:"price_cents" validate:"omitempty,gt=0"`
	MaxParticipants   *int    `json:"max_participants" validate:"omitempty,gte=2,lte=1000"`
	CommissionPercent *int64  `json:"commission_percent" validate:"omitempty,gte=0,lte=100"`
	Active            *bool   `json:"active"`
}
