package users

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User represents a portal account.
type User struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Username     string         `gorm:"uniqueIndex;not null" json:"username"`
	Email        string         `gorm:"not null" json:"email"`
	FirstName    string         `json:"first_name"`
	LastName     string         `json:"last_name"`
	PasswordHash string         `gorm:"not null" json:"-"`
	IsAdmin      bool           `gorm:"default:false" json:"is_admin"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// DisplayName returns "First Last (email)" for use in notifications.
func (u *User) DisplayName() string {
	return u.FirstName + " " + u.LastName + " (" + u.Email + ")"
}

// Profile holds flags about a user that are not part of the account
// itself. IsPI is promoted by request processing, never demoted.
type Profile struct {
	ID                    uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID                uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	IsPI                  bool      `gorm:"default:false" json:"is_pi"`
	IsInstitutionEmployee bool      `gorm:"default:false" json:"is_institution_employee"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
	User                  User      `gorm:"foreignKey:UserID" json:"-"`
}
