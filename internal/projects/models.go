package projects

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"rc-portal/allocation-portal-backend/internal/users"
)

// Project statuses.
const (
	StatusNew      = "New"
	StatusActive   = "Active"
	StatusInactive = "Inactive"
	StatusDenied   = "Denied"
)

// ProjectUser roles.
const (
	RolePrincipalInvestigator = "Principal Investigator"
	RoleManager               = "Manager"
	RoleUser                  = "User"
)

// ProjectUser statuses.
const (
	UserStatusActive  = "Active"
	UserStatusRemoved = "Removed"
)

// Allocation statuses.
const (
	AllocationStatusNew    = "New"
	AllocationStatusActive = "Active"
)

// AttributeServiceUnits is the allocation attribute holding the
// cumulative service-unit balance.
const AttributeServiceUnits = "Service Units"

// Project is the unit a computing allowance is granted to. A project is
// pooled when more than one PI shares its allocation.
type Project struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name        string         `gorm:"uniqueIndex;not null" json:"name"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Status      string         `gorm:"not null;default:'New'" json:"status"`
	AllowanceID *uuid.UUID     `gorm:"type:uuid" json:"allowance_id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// ProjectUser is a membership row carrying a role.
type ProjectUser struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ProjectID uuid.UUID  `gorm:"type:uuid;not null;index" json:"project_id"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	Role      string     `gorm:"not null" json:"role"`
	Status    string     `gorm:"not null;default:'Active'" json:"status"`
	JoinedAt  time.Time  `json:"joined_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Project   Project    `gorm:"foreignKey:ProjectID" json:"-"`
	User      users.User `gorm:"foreignKey:UserID" json:"-"`
}

// Allocation is a project's compute allocation.
type Allocation struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ProjectID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex" json:"project_id"`
	Status    string     `gorm:"not null;default:'New'" json:"status"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Project   Project    `gorm:"foreignKey:ProjectID" json:"-"`
}

// AllocationAttribute is a typed key/value on an allocation. The
// "Service Units" attribute stores the cumulative balance as a decimal
// string.
type AllocationAttribute struct {
	ID           uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	AllocationID uuid.UUID  `gorm:"type:uuid;not null;index" json:"allocation_id"`
	Type         string     `gorm:"not null" json:"type"`
	Value        string     `json:"value"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Allocation   Allocation `gorm:"foreignKey:AllocationID" json:"-"`
}

// AllocationUserAttribute is the per-member service-unit value,
// propagated from the project-level attribute when a grant lands.
type AllocationUserAttribute struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	AllocationID uuid.UUID `gorm:"type:uuid;not null;index" json:"allocation_id"`
	UserID       uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Value        string    `json:"value"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ProjectTransaction audits each change to a project's cumulative
// service-unit balance, recording the new total.
type ProjectTransaction struct {
	ID         uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ProjectID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"project_id"`
	DateTime   time.Time       `gorm:"not null" json:"date_time"`
	Allocation decimal.Decimal `gorm:"type:numeric(11,2)" json:"allocation"`
}

// ProjectUserTransaction audits each change to a member's service-unit
// value.
type ProjectUserTransaction struct {
	ID            uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ProjectUserID uuid.UUID       `gorm:"type:uuid;not null;index" json:"project_user_id"`
	DateTime      time.Time       `gorm:"not null" json:"date_time"`
	Allocation    decimal.Decimal `gorm:"type:numeric(11,2)" json:"allocation"`
}
