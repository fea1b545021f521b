package requests

import (
	"context"
	"time"

	"github.com/google/uuid"

	"rc-portal/allocation-portal-backend/internal/allowances"
	"rc-portal/allocation-portal-backend/internal/projects"
	"rc-portal/allocation-portal-backend/internal/users"
)

// Store is the persistence boundary for the request life-cycle engine.
// Runners perform all of their writes through a single Transaction call
// so the several rows touched by one transition commit or roll back
// together.
type Store interface {
	// Transaction runs fn against a store bound to one database
	// transaction. A nil return commits; any error rolls back.
	Transaction(ctx context.Context, fn func(Store) error) error

	// Renewal requests. The ForUpdate variant locks the row for the
	// duration of the enclosing transaction so concurrent runners on
	// the same request serialize.
	GetRenewalRequest(ctx context.Context, id uuid.UUID) (*RenewalRequest, error)
	GetRenewalRequestForUpdate(ctx context.Context, id uuid.UUID) (*RenewalRequest, error)
	SaveRenewalRequest(ctx context.Context, r *RenewalRequest) error
	ListRenewalRequests(ctx context.Context, statuses ...RequestStatus) ([]*RenewalRequest, error)
	// RenewalRequestByNewProjectRequest returns the renewal linked to
	// the given new-project request, or nil when none exists.
	RenewalRequestByNewProjectRequest(ctx context.Context, newProjectRequestID uuid.UUID) (*RenewalRequest, error)
	// UnprocessedFutureRenewals returns non-terminal renewal requests
	// for the same PI and allowance whose periods start after the
	// given date and whose pre-project is not already the given one.
	UnprocessedFutureRenewals(ctx context.Context, exclude uuid.UUID,
		pi, allowance uuid.UUID, after time.Time,
		notPreProject uuid.UUID) ([]*RenewalRequest, error)
	HasNonDeniedRenewalRequest(ctx context.Context, pi, allowance, period uuid.UUID) (bool, error)

	// New-project requests.
	GetNewProjectRequest(ctx context.Context, id uuid.UUID) (*NewProjectRequest, error)
	GetNewProjectRequestForUpdate(ctx context.Context, id uuid.UUID) (*NewProjectRequest, error)
	SaveNewProjectRequest(ctx context.Context, r *NewProjectRequest) error
	ListNewProjectRequests(ctx context.Context, statuses ...RequestStatus) ([]*NewProjectRequest, error)
	HasNonDeniedNewProjectRequest(ctx context.Context, pi, allowance, period uuid.UUID) (bool, error)

	// Secure-directory requests.
	GetSecureDirRequest(ctx context.Context, id uuid.UUID) (*SecureDirRequest, error)
	GetSecureDirRequestForUpdate(ctx context.Context, id uuid.UUID) (*SecureDirRequest, error)
	SaveSecureDirRequest(ctx context.Context, r *SecureDirRequest) error
	ListSecureDirRequests(ctx context.Context, statuses ...RequestStatus) ([]*SecureDirRequest, error)

	// Users.
	GetUser(ctx context.Context, id uuid.UUID) (*users.User, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (*users.Profile, error)
	SaveProfile(ctx context.Context, p *users.Profile) error

	// Projects and memberships.
	GetProject(ctx context.Context, id uuid.UUID) (*projects.Project, error)
	SaveProject(ctx context.Context, p *projects.Project) error
	// ActivePIs returns the active memberships holding the Principal
	// Investigator role on the project.
	ActivePIs(ctx context.Context, projectID uuid.UUID) ([]projects.ProjectUser, error)
	// GetProjectUser returns the membership row, or nil when absent.
	GetProjectUser(ctx context.Context, projectID, userID uuid.UUID) (*projects.ProjectUser, error)
	SaveProjectUser(ctx context.Context, pu *projects.ProjectUser) error
	CreateProjectUser(ctx context.Context, pu *projects.ProjectUser) error
	ListActiveProjectUsers(ctx context.Context, projectID uuid.UUID) ([]projects.ProjectUser, error)
	// IsActivePIOfAllowanceProject reports whether the user holds an
	// active PI role on a non-denied project of the given allowance.
	IsActivePIOfAllowanceProject(ctx context.Context, userID, allowanceID uuid.UUID) (bool, error)

	// Allocations.
	GetOrCreateComputeAllocation(ctx context.Context, projectID uuid.UUID) (*projects.Allocation, error)
	SaveAllocation(ctx context.Context, a *projects.Allocation) error
	GetOrCreateAllocationAttribute(ctx context.Context, allocationID uuid.UUID, attrType string) (*projects.AllocationAttribute, error)
	SaveAllocationAttribute(ctx context.Context, a *projects.AllocationAttribute) error
	// SetUserAllocationValue upserts a member's service-unit value and
	// reports whether the stored value actually changed.
	SetUserAllocationValue(ctx context.Context, allocationID, userID uuid.UUID, value string) (bool, error)
	CreateProjectTransaction(ctx context.Context, t *projects.ProjectTransaction) error
	CreateProjectUserTransaction(ctx context.Context, t *projects.ProjectUserTransaction) error

	// Allowances and periods.
	GetAllowance(ctx context.Context, id uuid.UUID) (*allowances.ComputingAllowance, error)
	GetAllocationPeriod(ctx context.Context, id uuid.UUID) (*allowances.AllocationPeriod, error)
	CurrentAllowanceYearPeriod(ctx context.Context, date time.Time) (*allowances.AllocationPeriod, error)
	NextAllowanceYearPeriod(ctx context.Context, date time.Time) (*allowances.AllocationPeriod, error)
	PreviousAllowanceYearPeriod(ctx context.Context, date time.Time) (*allowances.AllocationPeriod, error)
}

// IsPooled reports whether a project's allocation is shared by more
// than one active PI.
func IsPooled(ctx context.Context, store Store, projectID uuid.UUID) (bool, error) {
	pis, err := store.ActivePIs(ctx, projectID)
	if err != nil {
		return false, err
	}
	return len(pis) > 1, nil
}
