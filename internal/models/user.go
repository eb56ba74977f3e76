package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered community member.
type User struct {
	ID        uuid.UUID  `json:"id"`
	Email     string     `json:"email"`
	Username  string     `json:"username"`
	Password  string     `json:"-"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Bio       string     `json:"bio"`
	Birthdate *time.Time `json:"birthdate,omitempty"`
	AvatarURL string     `json:"avatar_url,omitempty"`
	IsStaff   bool       `json:"is_staff"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// UserPublic is User without credentials or contact details, for profile pages.
type UserPublic struct {
	ID        uuid.UUID  `json:"id"`
	Username  string     `json:"username"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Bio       string     `json:"bio"`
	Birthdate *time.Time `json:"birthdate,omitempty"`
	AvatarURL string     `json:"avatar_url,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Bio:       u.Bio,
		Birthdate: u.Birthdate,
		AvatarURL: u.AvatarURL,
		CreatedAt: u.CreatedAt,
	}
}

// DisplayName returns "First Last" when set, otherwise the username.
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Username
	}
}

// ProfileUpdate holds the editable profile fields of the settings form.
type ProfileUpdate struct {
	FirstName string
	LastName  string
	Bio       string
	Birthdate *time.Time
}
