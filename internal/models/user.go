package models

import "time"

type User struct {
	ID       int    `gorm:"primaryKey" json:"id"`
	Username string `gorm:"unique;not null" json:"username"`
	Email    string `gorm:"unique;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`
	Bio      string `json:"bio"`
	Avatar   string `json:"avatar"` // avatar URL

	// Karma is the signed sum of every active vote on content this user
	// authored. Only the vote transaction writes it.
	Karma int `gorm:"not null;default:0" json:"karma"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Avatar   string `json:"avatar"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token   string `json:"token"`
	User    User   `json:"user"`
	Message string `json:"message"`
}

type UpdateProfileRequest struct {
	Bio    *string `json:"bio" binding:"omitempty,max=500"`
	Avatar *string `json:"avatar" binding:"omitempty,max=500"`
}
