package models

import (
	"time"

	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           int       `bun:",pk,nullzero" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Name         string    `bun:",nullzero" json:"name"`
	Username     string    `bun:",nullzero" json:"username"`
	Email        string    `bun:",nullzero" json:"-"` // Only exposed to the account owner
	PasswordHash *string   `json:"-"`                 // Nil for accounts created through Google
	GoogleID     *string   `json:"-"`
	Avatar       *string   `json:"avatar"`
}

// Account is how a signed-in user sees their own record.
type Account struct {
	*User
	Email     string `json:"email"`
	HasGoogle bool   `json:"has_google"`
}

// Account returns the owner-facing representation of the user.
func (u *User) Account() *Account {
	return &Account{
		User:      u,
		Email:     u.Email,
		HasGoogle: u.GoogleID != nil,
	}
}

// Profile is the public face of a user on their profile page.
type Profile struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Username  string    `json:"username"`
	Avatar    *string   `json:"avatar"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *User) PublicProfile() *Profile {
	return &Profile{
		ID:        u.ID,
		Name:      u.Name,
		Username:  u.Username,
		Avatar:    u.Avatar,
		CreatedAt: u.CreatedAt,
	}
}
