package models

import "time"

// User is the authentication identity.
type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	AuthProvider string    `json:"auth_provider" db:"auth_provider"`
	Role         string    `json:"role" db:"role"`
	FullName     string    `json:"full_name,omitempty" db:"full_name"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Profile holds the customer-facing details of a user.
type Profile struct {
	UserID        string    `json:"user_id" db:"user_id"`
	FullName      string    `json:"full_name" db:"full_name"`
	Phone         string    `json:"phone" db:"phone"`
	Address       string    `json:"address" db:"address"`
	PointsBalance int       `json:"points_balance" db:"-"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

type SignupRequest struct {
	FullName string `json:"full_name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	AccessToken string `json:"access_token"`
	User        *User  `json:"user"`
}

// ProfileUpdateData defines fields that can be updated on a profile.
type ProfileUpdateData struct {
	FullName *string `json:"full_name,omitempty" validate:"omitempty,min=2,max=100"`
	Phone    *string `json:"phone,omitempty" validate:"omitempty,phone"`
	Address  *string `json:"address,omitempty" validate:"omitempty,min=5,max=300"`
}

// UpdateRoleRequest is the admin request body for changing a user's role.
type UpdateRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=customer driver admin"`
}
