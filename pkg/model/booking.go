package model

import "time"

type BookingStatus string

const (
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
)

// Booking holds a reserved [StartTime, EndTime) slot on a turf. TotalCost is
// fixed at creation from the turf's price at that moment; later price changes
// never touch it. Status moves confirmed -> cancelled exactly once.
type Booking struct {
	ID         string        `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	TurfID     string        `json:"turf_id" bson:"turf_id" validate:"required,mongodb"`
	CustomerID string        `json:"customer_id" bson:"customer_id" validate:"required,mongodb"`
	StartTime  time.Time     `json:"start_time" bson:"start_time" validate:"required"`
	EndTime    time.Time     `json:"end_time" bson:"end_time" validate:"required,gtfield=StartTime"`
	Status     BookingStatus `json:"status" bson:"status" validate:"required,oneof=confirmed cancelled"`
	TotalCost  float64       `json:"total_cost" bson:"total_cost"`
	Note       string        `json:"note,omitempty" bson:"note,omitempty" validate:"omitempty,max=500"`
	CreatedAt  time.Time     `json:"created_at" bson:"created_at"`
}

// BookingRequest is the customer-facing payload for a booking attempt.
type BookingRequest struct {
	TurfID    string    `json:"turf_id" validate:"required,mongodb"`
	StartTime time.Time `json:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" validate:"required"`
	Note      string    `json:"note,omitempty" validate:"omitempty,max=500"`
}
