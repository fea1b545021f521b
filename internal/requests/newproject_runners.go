package requests

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"rc-portal/allocation-portal-backend/internal/allowances"
	"rc-portal/allocation-portal-backend/internal/notifications"
	"rc-portal/allocation-portal-backend/internal/projects"
)

// NewProjectApprovalRunner marks a new-project request as approved.
type NewProjectApprovalRunner struct {
	deps            RunnerDeps
	request         *NewProjectRequest
	numServiceUnits decimal.Decimal
	ran             bool
}

// NewNewProjectApprovalRunner validates that the request is under
// review, its period has not ended, and the granted quantity is within
// bounds.
func NewNewProjectApprovalRunner(ctx context.Context, deps RunnerDeps,
	request *NewProjectRequest, numServiceUnits decimal.Decimal) (*NewProjectApprovalRunner, error) {
	r := &NewProjectApprovalRunner{
		deps:            deps,
		request:         request,
		numServiceUnits: numServiceUnits,
	}
	period, err := deps.Store.GetAllocationPeriod(ctx, request.AllocationPeriodID)
	if err != nil {
		return nil, err
	}
	if err := period.AssertNotEnded(r.deps.now()); err != nil {
		return nil, &PreconditionError{Message: err.Error()}
	}
	if request.Status != StatusUnderReview {
		return nil, NewStatusPreconditionError(StatusUnderReview, request.Status)
	}
	if err := allowances.ValidateNumServiceUnits(
		numServiceUnits, deps.Settings.ServiceUnitsMin, deps.Settings.ServiceUnitsMax); err != nil {
		return nil, &PreconditionError{Message: err.Error()}
	}
	return r, nil
}

func (r *NewProjectApprovalRunner) Run(ctx context.Context) (*Outcome, error) {
	if r.ran {
		return nil, ErrRunnerAlreadyRan
	}
	r.ran = true

	outcome := &Outcome{}
	err := r.deps.Store.Transaction(ctx, func(tx Store) error {
		req, err := tx.GetNewProjectRequestForUpdate(ctx, r.request.ID)
		if err != nil {
			return err
		}
		if req.Status != StatusUnderReview {
			return NewStatusPreconditionError(StatusUnderReview, req.Status)
		}
		now := r.deps.now()
		req.Status = StatusApproved
		req.ApprovalTime = &now
		*r.request = *req
		return tx.SaveNewProjectRequest(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	outcome.successf("Approved new project request %s.", r.request.ID)

	outcome.Notification = r.notify(ctx)
	return outcome, nil
}

func (r *NewProjectApprovalRunner) notify(ctx context.Context) notifications.Outcome {
	period, err := r.deps.Store.GetAllocationPeriod(ctx, r.request.AllocationPeriodID)
	if err != nil {
		return notifications.FailedOutcome(err)
	}
	notice, err := lifecycleNotice(ctx, r.deps.Store, KindNewProject,
		r.request.RequesterID, r.request.PIID, r.request.ProjectID,
		period.Name, r.numServiceUnits.String())
	if err != nil {
		return notifications.FailedOutcome(err)
	}
	return r.deps.Notifier.SendRequestApproved(ctx, notice)
}

// NewProjectDenialRunner marks a new-project request as denied, denies
// the project it would have created, and cascades the denial to a
// renewal request that selected this request as its pooling target.
type NewProjectDenialRunner struct {
	deps    RunnerDeps
	request *NewProjectRequest
	ran     bool
}

func NewNewProjectDenialRunner(deps RunnerDeps, request *NewProjectRequest) (*NewProjectDenialRunner, error) {
	if request.Status == StatusComplete {
		return nil, NewNotStatusPreconditionError(StatusComplete)
	}
	return &NewProjectDenialRunner{deps: deps, request: request}, nil
}

func (r *NewProjectDenialRunner) Run(ctx context.Context) (*Outcome, error) {
	if r.ran {
		return nil, ErrRunnerAlreadyRan
	}
	r.ran = true

	outcome := &Outcome{}
	err := r.deps.Store.Transaction(ctx, func(tx Store) error {
		req, err := tx.GetNewProjectRequestForUpdate(ctx, r.request.ID)
		if err != nil {
			return err
		}
		if req.Status == StatusComplete {
			return NewNotStatusPreconditionError(StatusComplete)
		}

		// A pooling request targets an existing project that other PIs
		// still use; only deny the project when it was created for this
		// request.
		if !req.Pool {
			project, err := tx.GetProject(ctx, req.ProjectID)
			if err != nil {
				return err
			}
			project.Status = projects.StatusDenied
			if err := tx.SaveProject(ctx, project); err != nil {
				return err
			}
		}

		req.Status = StatusDenied
		if err := tx.SaveNewProjectRequest(ctx, req); err != nil {
			return err
		}
		if err := r.cascadeToRenewal(ctx, tx, req, outcome); err != nil {
			return err
		}
		*r.request = *req
		return nil
	})
	if err != nil {
		return nil, err
	}
	outcome.successf("Denied new project request %s.", r.request.ID)

	outcome.Notification = r.notify(ctx)
	return outcome, nil
}

// cascadeToRenewal denies the renewal request linked to this request,
// if one exists and is not already terminal. The denial reason's
// justification is copied into the renewal's catch-all step so the
// renewal reports the same reason.
func (r *NewProjectDenialRunner) cascadeToRenewal(ctx context.Context, tx Store,
	req *NewProjectRequest, outcome *Outcome) error {
	renewal, err := tx.RenewalRequestByNewProjectRequest(ctx, req.ID)
	if err != nil {
		return err
	}
	if renewal == nil || renewal.Status.IsTerminal() {
		return nil
	}
	reason, err := req.DenialReason()
	if err != nil {
		return err
	}
	state, err := renewal.RenewalState()
	if err != nil {
		return err
	}
	state.Other.Justification = reason.Justification
	state.Other.Timestamp = reason.Timestamp
	if err := renewal.SetRenewalState(state); err != nil {
		return err
	}
	renewal.Status = StatusDenied
	if err := tx.SaveRenewalRequest(ctx, renewal); err != nil {
		return err
	}
	r.deps.Logger.Info("Cascaded denial to linked renewal request",
		zap.String("new_project_request_id", req.ID.String()),
		zap.String("renewal_request_id", renewal.ID.String()))
	outcome.successf("Denied linked renewal request %s.", renewal.ID)
	return nil
}

func (r *NewProjectDenialRunner) notify(ctx context.Context) notifications.Outcome {
	reason, err := r.request.DenialReason()
	if err != nil {
		return notifications.FailedOutcome(err)
	}
	period, err := r.deps.Store.GetAllocationPeriod(ctx, r.request.AllocationPeriodID)
	if err != nil {
		return notifications.FailedOutcome(err)
	}
	notice, err := lifecycleNotice(ctx, r.deps.Store, KindNewProject,
		r.request.RequesterID, r.request.PIID, r.request.ProjectID,
		period.Name, "")
	if err != nil {
		return notifications.FailedOutcome(err)
	}
	return r.deps.Notifier.SendRequestDenied(ctx, notice, notifications.DenialNotice{
		Category:      reason.Category,
		Justification: reason.Justification,
	})
}

// NewProjectProcessingRunner performs the actual project activation and
// allocation grant for an approved new-project request once its period
// has started.
type NewProjectProcessingRunner struct {
	deps            RunnerDeps
	request         *NewProjectRequest
	numServiceUnits decimal.Decimal
	ran             bool
}

func NewNewProjectProcessingRunner(ctx context.Context, deps RunnerDeps,
	request *NewProjectRequest, numServiceUnits decimal.Decimal) (*NewProjectProcessingRunner, error) {
	r := &NewProjectProcessingRunner{
		deps:            deps,
		request:         request,
		numServiceUnits: numServiceUnits,
	}
	period, err := deps.Store.GetAllocationPeriod(ctx, request.AllocationPeriodID)
	if err != nil {
		return nil, err
	}
	now := r.deps.now()
	if err := period.AssertStarted(now); err != nil {
		return nil, &PreconditionError{Message: err.Error()}
	}
	if err := period.AssertNotEnded(now); err != nil {
		return nil, &PreconditionError{Message: err.Error()}
	}
	if request.Status != StatusApproved {
		return nil, NewStatusPreconditionError(StatusApproved, request.Status)
	}
	if err := allowances.ValidateNumServiceUnits(
		numServiceUnits, deps.Settings.ServiceUnitsMin, deps.Settings.ServiceUnitsMax); err != nil {
		return nil, &PreconditionError{Message: err.Error()}
	}
	return r, nil
}

// Run activates the project in one transaction: promote the PI, apply
// the final project name decided during setup, activate the project,
// grant the units, guarantee memberships, mark the setup step complete,
// and mark the request complete.
func (r *NewProjectProcessingRunner) Run(ctx context.Context) (*Outcome, error) {
	if r.ran {
		return nil, ErrRunnerAlreadyRan
	}
	r.ran = true

	outcome := &Outcome{}
	err := r.deps.Store.Transaction(ctx, func(tx Store) error {
		req, err := tx.GetNewProjectRequestForUpdate(ctx, r.request.ID)
		if err != nil {
			return err
		}
		if req.Status != StatusApproved {
			return NewStatusPreconditionError(StatusApproved, req.Status)
		}
		now := r.deps.now()

		profile, err := tx.GetProfile(ctx, req.PIID)
		if err != nil {
			return err
		}
		if !profile.IsPI {
			profile.IsPI = true
			if err := tx.SaveProfile(ctx, profile); err != nil {
				return err
			}
		}

		state, err := req.NewProjectState()
		if err != nil {
			return err
		}
		project, err := tx.GetProject(ctx, req.ProjectID)
		if err != nil {
			return err
		}
		if final := state.Setup.NameChange.FinalName; final != "" && final != project.Name {
			r.deps.Logger.Info("Renaming project during setup",
				zap.String("from", project.Name),
				zap.String("to", final))
			project.Name = final
		}
		wasActive := project.Status == projects.StatusActive
		project.Status = projects.StatusActive
		if err := tx.SaveProject(ctx, project); err != nil {
			return err
		}

		period, err := tx.GetAllocationPeriod(ctx, req.AllocationPeriodID)
		if err != nil {
			return err
		}
		newValue, err := grantServiceUnits(
			ctx, tx, &r.deps, project, period, wasActive, r.numServiceUnits, now)
		if err != nil {
			return err
		}
		outcome.successf(
			"Granted %s service units to project %s (new total %s).",
			r.numServiceUnits, project.Name, newValue)

		if err := ensureProjectUsers(
			ctx, tx, project.ID, req.RequesterID, req.PIID, now); err != nil {
			return err
		}

		state.Setup.Status = StepComplete
		state.Setup.Timestamp = Timestamp(now)
		if err := req.SetNewProjectState(state); err != nil {
			return err
		}
		req.Status = StatusComplete
		req.NumServiceUnits = r.numServiceUnits
		req.CompletionTime = &now
		*r.request = *req
		return tx.SaveNewProjectRequest(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	outcome.successf("Processed new project request %s.", r.request.ID)

	outcome.Notification = r.notify(ctx)
	return outcome, nil
}

func (r *NewProjectProcessingRunner) notify(ctx context.Context) notifications.Outcome {
	period, err := r.deps.Store.GetAllocationPeriod(ctx, r.request.AllocationPeriodID)
	if err != nil {
		return notifications.FailedOutcome(err)
	}
	notice, err := lifecycleNotice(ctx, r.deps.Store, KindNewProject,
		r.request.RequesterID, r.request.PIID, r.request.ProjectID,
		period.Name, r.numServiceUnits.String())
	if err != nil {
		return notifications.FailedOutcome(err)
	}
	return r.deps.Notifier.SendRequestProcessed(ctx, notice)
}
