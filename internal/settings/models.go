package settings

import (
	"time"

	"github.com/google/uuid"
)

// UserSettings holds per-user portal preferences. A row is created
// lazily with defaults the first time a user reads or writes their
// settings.
type UserSettings struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	Timezone  string    `gorm:"not null;default:'UTC'" json:"timezone"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Email notification opt-outs. Life-cycle notifications to request
	// parties are always sent; these cover the courtesy copies.
	NotifyOnStatusChange bool `gorm:"not null;default:true" json:"notify_on_status_change"`
	NotifyOnNewRequest   bool `gorm:"not null;default:true" json:"notify_on_new_request"`
}

func defaultSettings(userID uuid.UUID) *UserSettings {
	return &UserSettings{
		UserID:               userID,
		Timezone:             "UTC",
		NotifyOnStatusChange: true,
		NotifyOnNewRequest:   true,
	}
}
