package model

import "time"

// Role is fixed at registration time and never changes afterwards.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleOwner    Role = "owner"
)

func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleOwner
}

type User struct {
	ID           string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	Username     string    `json:"username" bson:"username" validate:"required,min=3,max=40,alphanumunicode"`
	Email        string    `json:"email" bson:"email" validate:"required,email"`
	PasswordHash string    `json:"-" bson:"password_hash"`
	Role         Role      `json:"role" bson:"role" validate:"required,oneof=customer owner"`
	FullName     string    `json:"full_name,omitempty" bson:"full_name,omitempty" validate:"omitempty,max=100"`
	Phone        string    `json:"phone,omitempty" bson:"phone,omitempty" validate:"omitempty,e164"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
}

// RegisterRequest is the registration payload. The plaintext password lives only
// here; it is hashed before anything reaches the store.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
	FullName string `json:"full_name,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
