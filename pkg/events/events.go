package events

import (
	"time"

	"turfbook/pkg/model"
)

const (
	TypeBookingConfirmed = "booking.confirmed"
	TypeBookingCancelled = "booking.cancelled"
)

// BookingEvent is the payload published for booking lifecycle transitions.
// Consumers (notifications, analytics) are outside this service.
type BookingEvent struct {
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"`
	BookingID  string    `json:"booking_id"`
	TurfID     string    `json:"turf_id"`
	CustomerID string    `json:"customer_id"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	TotalCost  float64   `json:"total_cost"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewBookingEvent(eventType string, b *model.Booking) BookingEvent {
	return BookingEvent{
		Type:       eventType,
		BookingID:  b.ID,
		TurfID:     b.TurfID,
		CustomerID: b.CustomerID,
		StartTime:  b.StartTime,
		EndTime:    b.EndTime,
		TotalCost:  b.TotalCost,
		OccurredAt: time.Now().UTC(),
	}
}
