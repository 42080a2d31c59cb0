package model

import "time"

// BookingLock is an advisory lock document serializing booking attempts on a
// single turf. Insertion with a taken _id fails on the unique index, which is
// what makes check-then-insert atomic across concurrent requests. A TTL index
// on expires_at reaps locks orphaned by a crashed holder.
type BookingLock struct {
	ID        string    `bson:"_id" json:"id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// TurfLockID keys the advisory lock by turf id alone. Every flow that mutates
// a turf's booking set, booking creation and turf deletion alike, must take
// the lock under this key so their check-then-write sections serialize.
func TurfLockID(turfID string) string {
	return "turf_lock_" + turfID
}
