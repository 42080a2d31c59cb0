package model

import "time"

// Turf is a bookable resource. OwnerID is immutable after creation; only that
// owner may mutate or delete the turf.
type Turf struct {
	ID           string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	OwnerID      string    `json:"owner_id" bson:"owner_id" validate:"required,mongodb"`
	Name         string    `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Location     string    `json:"location" bson:"location" validate:"required,min=2,max=200"`
	PricePerHour float64   `json:"price_per_hour" bson:"price_per_hour" validate:"required,gt=0"`
	Available    bool      `json:"available" bson:"available"`
	Description  string    `json:"description,omitempty" bson:"description,omitempty" validate:"omitempty,max=1000"`
	Amenities    []string  `json:"amenities,omitempty" bson:"amenities,omitempty" validate:"omitempty,max=20,dive,required"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
}

// TurfUpdate carries a partial patch; nil fields are left untouched.
type TurfUpdate struct {
	Name         *string   `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Location     *string   `json:"location,omitempty" validate:"omitempty,min=2,max=200"`
	PricePerHour *float64  `json:"price_per_hour,omitempty" validate:"omitempty,gt=0"`
	Available    *bool     `json:"available,omitempty"`
	Description  *string   `json:"description,omitempty" validate:"omitempty,max=1000"`
	Amenities    *[]string `json:"amenities,omitempty" validate:"omitempty,max=20,dive,required"`
}

// Empty reports whether the patch carries no fields at all.
func (u *TurfUpdate) Empty() bool {
	return u.Name == nil &&
		u.Location == nil &&
		u.PricePerHour == nil &&
		u.Available == nil &&
		u.Description == nil &&
		u.Amenities == nil
}
