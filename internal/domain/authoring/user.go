package authoring

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleEducator = "educator"
	RoleAdmin    = "admin"
)

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Username     string    `gorm:"column:username;not null;uniqueIndex" json:"username"`
	Email        string    `gorm:"column:email" json:"email"`
	PasswordHash string    `gorm:"column:password_hash;not null" json:"-"`
	DisplayName  string    `gorm:"column:display_name" json:"display_name"`
	Role         string    `gorm:"column:role;not null;default:'educator'" json:"role"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
}

func (User) TableName() string { return "tkg_user" }

func (u *User) IsAdmin() bool { return u != nil && u.Role == RoleAdmin }

// NewUser is the registration input. Password is plaintext and never stored.
type NewUser struct {
	Username    string
	Email       string
	Password    string
	DisplayName string
	Role        string
}
