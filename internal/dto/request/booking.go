package request

type CreateBookingRequest struct {
	ScreeningID   string   `json:"screening_id" validate:"required,uuid4"`
	SeatCodes     []string `json:"seat_codes" validate:"required,min=1,max=10,dive,required"`
	PaymentMethod string   `json:"payment_method" validate:"required,oneof=card wallet bank_transfer"`
	PromotionCode string   `json:"promotion_code" validate:"omitempty,min=3,max=32"`
}

type CancelBookingRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=255"`
}
