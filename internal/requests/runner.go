package requests

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"rc-portal/allocation-portal-backend/internal/allowances"
	"rc-portal/allocation-portal-backend/internal/notifications"
	"rc-portal/allocation-portal-backend/internal/projects"
)

// Display names used in notification subjects.
const (
	KindRenewal    = "Allowance Renewal Request"
	KindNewProject = "New Project Request"
	KindSecureDir  = "Secure Directory Request"
)

// Notifier is the notification collaborator consumed by runners. The
// engine never constructs SMTP or network connections itself.
type Notifier interface {
	SendRequestApproved(ctx context.Context, n notifications.RequestNotice) notifications.Outcome
	SendRequestDenied(ctx context.Context, n notifications.RequestNotice, reason notifications.DenialNotice) notifications.Outcome
	SendRequestProcessed(ctx context.Context, n notifications.RequestNotice) notifications.Outcome
}

// Settings carries the configured service-unit bounds.
type Settings struct {
	ServiceUnitsMin decimal.Decimal
	ServiceUnitsMax decimal.Decimal
}

// RunnerDeps bundles the collaborators shared by every runner.
type RunnerDeps struct {
	Store    Store
	Notifier Notifier
	Logger   *zap.Logger
	Settings Settings
	// Now overrides the clock in tests; nil means time.Now.
	Now func() time.Time
}

func (d *RunnerDeps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Outcome is the result of a runner's Run: what to show the invoking
// administrator, plus the notification delivery result. Replaces hidden
// mutable message accumulators with an explicit return value.
type Outcome struct {
	SuccessMessages []string
	WarningMessages []string
	Notification    notifications.Outcome
}

func (o *Outcome) successf(format string, args ...any) {
	o.SuccessMessages = append(o.SuccessMessages, fmt.Sprintf(format, args...))
}

func (o *Outcome) warnf(format string, args ...any) {
	o.WarningMessages = append(o.WarningMessages, fmt.Sprintf(format, args...))
}

// lifecycleNotice assembles the display fields for a request's
// notification, addressed to the requester and PI.
func lifecycleNotice(ctx context.Context, store Store, kind string,
	requesterID, piID, projectID uuid.UUID,
	periodName, numServiceUnits string) (notifications.RequestNotice, error) {
	notice := notifications.RequestNotice{
		Kind:            kind,
		PeriodName:      periodName,
		NumServiceUnits: numServiceUnits,
	}
	requester, err := store.GetUser(ctx, requesterID)
	if err != nil {
		return notice, err
	}
	pi, err := store.GetUser(ctx, piID)
	if err != nil {
		return notice, err
	}
	project, err := store.GetProject(ctx, projectID)
	if err != nil {
		return notice, err
	}
	notice.RequesterName = requester.DisplayName()
	notice.PIName = pi.DisplayName()
	notice.ProjectName = project.Name
	notice.Recipients = []string{requester.Email}
	if pi.Email != requester.Email {
		notice.Recipients = append(notice.Recipients, pi.Email)
	}
	return notice, nil
}

// grantServiceUnits performs the allocation-related handling shared by
// the renewal and new-project processing runners: activate the compute
// allocation, add the granted units to the cumulative balance within
// the configured bounds, audit the change, and propagate the new total
// to every member whose stored value changes.
//
// wasActive conditions the start and end dates: a project re-activated
// mid-period keeps its existing allocation window.
func grantServiceUnits(ctx context.Context, tx Store, deps *RunnerDeps,
	project *projects.Project, period *allowances.AllocationPeriod,
	wasActive bool, numServiceUnits decimal.Decimal,
	now time.Time) (decimal.Decimal, error) {
	alloc, err := tx.GetOrCreateComputeAllocation(ctx, project.ID)
	if err != nil {
		return decimal.Decimal{}, err
	}
	alloc.Status = projects.AllocationStatusActive
	if !wasActive || alloc.StartDate == nil {
		start := now
		alloc.StartDate = &start
	}
	if !wasActive || alloc.EndDate == nil {
		end := period.EndDate
		alloc.EndDate = &end
	}
	if err := tx.SaveAllocation(ctx, alloc); err != nil {
		return decimal.Decimal{}, err
	}

	attr, err := tx.GetOrCreateAllocationAttribute(
		ctx, alloc.ID, projects.AttributeServiceUnits)
	if err != nil {
		return decimal.Decimal{}, err
	}
	existing := deps.Settings.ServiceUnitsMin
	if attr.Value != "" {
		existing, err = decimal.NewFromString(attr.Value)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf(
				"parse service units %q: %w", attr.Value, err)
		}
	}
	newValue := existing.Add(numServiceUnits)
	if err := allowances.ValidateNumServiceUnits(
		newValue, deps.Settings.ServiceUnitsMin, deps.Settings.ServiceUnitsMax); err != nil {
		return decimal.Decimal{}, err
	}
	attr.Value = newValue.String()
	if err := tx.SaveAllocationAttribute(ctx, attr); err != nil {
		return decimal.Decimal{}, err
	}

	if err := tx.CreateProjectTransaction(ctx, &projects.ProjectTransaction{
		ProjectID:  project.ID,
		DateTime:   now,
		Allocation: newValue,
	}); err != nil {
		return decimal.Decimal{}, err
	}

	members, err := tx.ListActiveProjectUsers(ctx, project.ID)
	if err != nil {
		return decimal.Decimal{}, err
	}
	for _, member := range members {
		changed, err := tx.SetUserAllocationValue(
			ctx, alloc.ID, member.UserID, newValue.String())
		if err != nil {
			return decimal.Decimal{}, err
		}
		if !changed {
			continue
		}
		if err := tx.CreateProjectUserTransaction(ctx, &projects.ProjectUserTransaction{
			ProjectUserID: member.ID,
			DateTime:      now,
			Allocation:    newValue,
		}); err != nil {
			return decimal.Decimal{}, err
		}
	}
	return newValue, nil
}

// ensureProjectUsers guarantees active membership rows for the
// requester and PI on the project: the PI with the Principal
// Investigator role, the requester (when distinct) with the Manager
// role. Existing rows are reactivated, and the PI's role is corrected
// if it had been demoted.
func ensureProjectUsers(ctx context.Context, tx Store,
	projectID, requesterID, piID uuid.UUID, now time.Time) error {
	if err := ensureProjectUser(
		ctx, tx, projectID, piID, projects.RolePrincipalInvestigator, now); err != nil {
		return err
	}
	if requesterID != piID {
		if err := ensureProjectUser(
			ctx, tx, projectID, requesterID, projects.RoleManager, now); err != nil {
			return err
		}
	}
	return nil
}

func ensureProjectUser(ctx context.Context, tx Store,
	projectID, userID uuid.UUID, role string, now time.Time) error {
	pu, err := tx.GetProjectUser(ctx, projectID, userID)
	if err != nil {
		return err
	}
	if pu == nil {
		return tx.CreateProjectUser(ctx, &projects.ProjectUser{
			ProjectID: projectID,
			UserID:    userID,
			Role:      role,
			Status:    projects.UserStatusActive,
			JoinedAt:  now,
		})
	}
	updated := false
	if pu.Status != projects.UserStatusActive {
		pu.Status = projects.UserStatusActive
		updated = true
	}
	// Never downgrade an existing PI role to Manager, but always
	// restore the PI role itself.
	if role == projects.RolePrincipalInvestigator && pu.Role != role {
		pu.Role = role
		updated = true
	}
	if !updated {
		return nil
	}
	return tx.SaveProjectUser(ctx, pu)
}
