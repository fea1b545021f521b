package requests

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"rc-portal/allocation-portal-backend/internal/allowances"
	"rc-portal/allocation-portal-backend/internal/projects"
	"rc-portal/allocation-portal-backend/internal/users"
	"rc-portal/allocation-portal-backend/pkg/workflows"
)

// RequestStatus is the top-level life-cycle status of a request. It is
// mutated only by runners: Denied and Under Review are derivable from
// the review state; Approved and Complete record external facts.
type RequestStatus string

const (
	StatusUnderReview RequestStatus = "Under Review"
	StatusApproved    RequestStatus = "Approved"
	StatusDenied      RequestStatus = "Denied"
	StatusComplete    RequestStatus = "Complete"
)

var lifecycle = workflows.NewRequestStateMachine()

// IsTerminal reports whether the life-cycle permits no further
// transitions out of the status.
func (s RequestStatus) IsTerminal() bool {
	return lifecycle.IsTerminal(string(s))
}

// CanTransitionTo reports whether the life-cycle permits moving from
// the status to next.
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	return lifecycle.CanTransition(string(s), string(next))
}

// Timestamp formats a time for storage in a review step. All step
// timestamps share the RFC 3339 UTC format so lexicographic comparison
// is chronological.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// RenewalRequest asks that a PI's allowance be renewed under an
// allocation period, optionally moving the PI between projects.
type RenewalRequest struct {
	ID                  uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RequesterID         uuid.UUID       `gorm:"type:uuid;not null" json:"requester_id"`
	PIID                uuid.UUID       `gorm:"type:uuid;not null;index" json:"pi_id"`
	AllowanceID         uuid.UUID       `gorm:"type:uuid;not null;index" json:"allowance_id"`
	AllocationPeriodID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"allocation_period_id"`
	PreProjectID        *uuid.UUID      `gorm:"type:uuid" json:"pre_project_id"`
	PostProjectID       uuid.UUID       `gorm:"type:uuid;not null" json:"post_project_id"`
	NewProjectRequestID *uuid.UUID      `gorm:"type:uuid;uniqueIndex" json:"new_project_request_id"`
	Status              RequestStatus   `gorm:"not null;default:'Under Review'" json:"status"`
	State               datatypes.JSON  `json:"state"`
	NumServiceUnits     decimal.Decimal `gorm:"type:numeric(11,2)" json:"num_service_units"`
	RequestTime         time.Time       `json:"request_time"`
	ApprovalTime        *time.Time      `json:"approval_time"`
	CompletionTime      *time.Time      `json:"completion_time"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`

	Requester        users.User                    `gorm:"foreignKey:RequesterID" json:"-"`
	PI               users.User                    `gorm:"foreignKey:PIID" json:"-"`
	Allowance        allowances.ComputingAllowance `gorm:"foreignKey:AllowanceID" json:"-"`
	AllocationPeriod allowances.AllocationPeriod   `gorm:"foreignKey:AllocationPeriodID" json:"-"`
	PreProject       *projects.Project             `gorm:"foreignKey:PreProjectID" json:"-"`
	PostProject      projects.Project              `gorm:"foreignKey:PostProjectID" json:"-"`
}

// RenewalState deserializes the review state.
func (r *RenewalRequest) RenewalState() (*RenewalState, error) {
	var s RenewalState
	if err := json.Unmarshal(r.State, &s); err != nil {
		return nil, fmt.Errorf("parse renewal request state: %w", err)
	}
	return &s, nil
}

// SetRenewalState serializes the review state back onto the record.
func (r *RenewalRequest) SetRenewalState(s *RenewalState) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("serialize renewal request state: %w", err)
	}
	r.State = datatypes.JSON(raw)
	return nil
}

// NewRenewalRequest builds a request in the submission contract's
// initial shape: status Under Review, all review steps pending.
func NewRenewalRequest(requester, pi uuid.UUID, allowance uuid.UUID,
	period uuid.UUID, preProject *uuid.UUID, postProject uuid.UUID,
	now time.Time) (*RenewalRequest, error) {
	r := &RenewalRequest{
		RequesterID:        requester,
		PIID:               pi,
		AllowanceID:        allowance,
		AllocationPeriodID: period,
		PreProjectID:       preProject,
		PostProjectID:      postProject,
		Status:             StatusUnderReview,
		RequestTime:        now,
	}
	state := NewRenewalState()
	if err := r.SetRenewalState(&state); err != nil {
		return nil, err
	}
	return r, nil
}

// NewProjectRequest asks that a brand-new project be created and
// granted an allowance under an allocation period.
type NewProjectRequest struct {
	ID                 uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RequesterID        uuid.UUID       `gorm:"type:uuid;not null" json:"requester_id"`
	PIID               uuid.UUID       `gorm:"type:uuid;not null;index" json:"pi_id"`
	AllowanceID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"allowance_id"`
	AllocationPeriodID uuid.UUID       `gorm:"type:uuid;not null;index" json:"allocation_period_id"`
	ProjectID          uuid.UUID       `gorm:"type:uuid;not null" json:"project_id"`
	Pool               bool            `gorm:"default:false" json:"pool"`
	Status             RequestStatus   `gorm:"not null;default:'Under Review'" json:"status"`
	State              datatypes.JSON  `json:"state"`
	NumServiceUnits    decimal.Decimal `gorm:"type:numeric(11,2)" json:"num_service_units"`
	RequestTime        time.Time       `json:"request_time"`
	ApprovalTime       *time.Time      `json:"approval_time"`
	CompletionTime     *time.Time      `json:"completion_time"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`

	Requester        users.User                    `gorm:"foreignKey:RequesterID" json:"-"`
	PI               users.User                    `gorm:"foreignKey:PIID" json:"-"`
	Allowance        allowances.ComputingAllowance `gorm:"foreignKey:AllowanceID" json:"-"`
	AllocationPeriod allowances.AllocationPeriod   `gorm:"foreignKey:AllocationPeriodID" json:"-"`
	Project          projects.Project              `gorm:"foreignKey:ProjectID" json:"-"`
}

// NewProjectState deserializes the review state.
func (r *NewProjectRequest) NewProjectState() (*NewProjectState, error) {
	var s NewProjectState
	if err := json.Unmarshal(r.State, &s); err != nil {
		return nil, fmt.Errorf("parse new-project request state: %w", err)
	}
	return &s, nil
}

// SetNewProjectState serializes the review state back onto the record.
func (r *NewProjectRequest) SetNewProjectState(s *NewProjectState) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("serialize new-project request state: %w", err)
	}
	r.State = datatypes.JSON(raw)
	return nil
}

// DenialReason returns the reason the request was denied.
func (r *NewProjectRequest) DenialReason() (*DenialReason, error) {
	if r.Status != StatusDenied {
		return nil, &InvariantViolationError{
			Message: fmt.Sprintf(
				"request has unexpected status %q", r.Status),
		}
	}
	state, err := r.NewProjectState()
	if err != nil {
		return nil, err
	}
	return state.DenialReason()
}

// NewNewProjectRequest builds a request in the submission contract's
// initial shape. The requested project name is recorded into the setup
// step on creation.
func NewNewProjectRequest(requester, pi uuid.UUID,
	allowance *allowances.ComputingAllowance, period uuid.UUID,
	project *projects.Project, pool bool,
	now time.Time) (*NewProjectRequest, error) {
	r := &NewProjectRequest{
		RequesterID:        requester,
		PIID:               pi,
		AllowanceID:        allowance.ID,
		AllocationPeriodID: period,
		ProjectID:          project.ID,
		Pool:               pool,
		Status:             StatusUnderReview,
		RequestTime:        now,
	}
	state := NewNewProjectState(allowance.RequiresMOU)
	state.Setup.NameChange.RequestedName = project.Name
	if err := r.SetNewProjectState(&state); err != nil {
		return nil, err
	}
	return r, nil
}

// SecureDirRequest asks for a secure directory on the cluster for a
// project handling protected data.
type SecureDirRequest struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RequesterID     uuid.UUID      `gorm:"type:uuid;not null" json:"requester_id"`
	ProjectID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"project_id"`
	DirectoryName   string         `gorm:"not null" json:"directory_name"`
	Department      string         `json:"department"`
	DataDescription string         `json:"data_description"`
	Status          RequestStatus  `gorm:"not null;default:'Under Review'" json:"status"`
	State           datatypes.JSON `json:"state"`
	RequestTime     time.Time      `json:"request_time"`
	CompletionTime  *time.Time     `json:"completion_time"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`

	Requester users.User       `gorm:"foreignKey:RequesterID" json:"-"`
	Project   projects.Project `gorm:"foreignKey:ProjectID" json:"-"`
}

// SecureDirState deserializes the review state.
func (r *SecureDirRequest) SecureDirState() (*SecureDirState, error) {
	var s SecureDirState
	if err := json.Unmarshal(r.State, &s); err != nil {
		return nil, fmt.Errorf("parse secure-directory request state: %w", err)
	}
	return &s, nil
}

// SetSecureDirState serializes the review state back onto the record.
func (r *SecureDirRequest) SetSecureDirState(s *SecureDirState) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("serialize secure-directory request state: %w", err)
	}
	r.State = datatypes.JSON(raw)
	return nil
}

// NewSecureDirRequest builds a request in the submission contract's
// initial shape.
func NewSecureDirRequest(requester, project uuid.UUID, directoryName,
	department, dataDescription string, now time.Time) (*SecureDirRequest, error) {
	r := &SecureDirRequest{
		RequesterID:     requester,
		ProjectID:       project,
		DirectoryName:   directoryName,
		Department:      department,
		DataDescription: dataDescription,
		Status:          StatusUnderReview,
		RequestTime:     now,
	}
	state := NewSecureDirState()
	if err := r.SetSecureDirState(&state); err != nil {
		return nil, err
	}
	return r, nil
}
