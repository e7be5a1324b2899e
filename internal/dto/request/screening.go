package request

// RoomRow describes one row of the room layout supplied by the catalog
// collaborator at screening creation time.
type RoomRow struct {
	Row      string `json:"row" validate:"required,min=1,max=3"`
	Seats    int    `json:"seats" validate:"required,min=1,max=50"`
	SeatType string `json:"seat_type" validate:"required,oneof=standard premium vip couple accessible"`
}

type CreateScreeningRequest struct {
	MovieID                string    `json:"movie_id" validate:"required,uuid4"`
	VenueName              string    `json:"venue_name" validate:"required,min=1,max=120"`
	RoomName               string    `json:"room_name" validate:"required,min=1,max=60"`
	StartsAt               string    `json:"starts_at" validate:"required"` // RFC 3339
	EndsAt                 string    `json:"ends_at" validate:"required"`   // RFC 3339
	Format                 string    `json:"format" validate:"required,oneof=2D 3D IMAX 4DX"`
	BasePrice              float64   `json:"base_price" validate:"required,gt=0"`
	ConcurrentBookingLimit int       `json:"concurrent_booking_limit" validate:"omitempty,min=1"`
	Layout                 []RoomRow `json:"layout" validate:"required,min=1,max=40,dive"`
}

type SeatMaintenanceRequest struct {
	SeatCodes []string `json:"seat_codes" validate:"required,min=1,dive,required"`
	Status    string   `json:"status" validate:"required,oneof=available unavailable maintenance"`
}
