package models

import "time"

// BookingStatus values follow the reservation lifecycle owned by the fare
// engine; this service only reads and cancels.
type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
	BookingStatusPending   BookingStatus = "PENDING"
)

// Booking is the reservation row as seen at the trust boundary. Fare and
// itinerary details live with the booking engine; this service cares about
// the owner for the ownership check and the reference for lookups.
type Booking struct {
	ID          string        `db:"id" json:"id"`
	Reference   string        `db:"reference" json:"reference"`
	SubjectID   string        `db:"subject_id" json:"subject_id"`
	FlightCode  string        `db:"flight_code" json:"flight_code"`
	DepartureAt time.Time     `db:"departure_at" json:"departure_at"`
	Status      BookingStatus `db:"status" json:"status"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// PaymentIntentRequest carries only the opaque token minted by the external
// payment provider; card data never transits this service.
type PaymentIntentRequest struct {
	ProviderToken string `json:"providerToken" validate:"required"`
	AmountCents   int64  `json:"amountCents" validate:"required,gt=0"`
	Currency      string `json:"currency" validate:"required,len=3"`
}

// PaymentIntentResponse acknowledges the handoff to the provider.
type PaymentIntentResponse struct {
	IntentID  string    `json:"intentId"`
	BookingID string    `json:"bookingId"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}
