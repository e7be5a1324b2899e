package request

// PaymentCallbackRequest is the provider's webhook payload. Reference is
// the booking number handed to the provider at checkout redirect.
type PaymentCallbackRequest struct {
	Reference string `json:"reference" validate:"required,min=1,max=64"`
	Status    string `json:"status" validate:"required,oneof=succeeded failed"`
}
