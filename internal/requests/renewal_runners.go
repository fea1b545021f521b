package requests

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"rc-portal/allocation-portal-backend/internal/allowances"
	"rc-portal/allocation-portal-backend/internal/notifications"
	"rc-portal/allocation-portal-backend/internal/projects"
)

// classifyRenewal computes the pooling-preference case for a renewal
// request from the current membership of its pre- and post-projects.
// The result is computed per runner invocation and never stored.
func classifyRenewal(ctx context.Context, tx Store, req *RenewalRequest) (PoolingCase, error) {
	postPooled, err := IsPooled(ctx, tx, req.PostProjectID)
	if err != nil {
		return 0, err
	}
	// Without a pre-project there is no prior arrangement to leave. A
	// linked new-project request still decides the case on its own.
	if req.PreProjectID == nil {
		if req.NewProjectRequestID != nil {
			return PooledToUnpooledNew, nil
		}
		if postPooled {
			return UnpooledToPooled, nil
		}
		return UnpooledToUnpooled, nil
	}
	prePooled, err := IsPooled(ctx, tx, *req.PreProjectID)
	if err != nil {
		return 0, err
	}
	sameProject := *req.PreProjectID == req.PostProjectID
	return ClassifyPooling(
		prePooled, postPooled, sameProject, req.NewProjectRequestID != nil)
}

// RenewalApprovalRunner marks a renewal request as approved. It is a
// one-shot command object; construct, Run once, discard.
type RenewalApprovalRunner struct {
	deps            RunnerDeps
	request         *RenewalRequest
	numServiceUnits decimal.Decimal
	ran             bool
}

// NewRenewalApprovalRunner validates the transition's preconditions:
// the request must be under review, the allocation period must not have
// ended, and the granted quantity must be within bounds.
func NewRenewalApprovalRunner(ctx context.Context, deps RunnerDeps, request *RenewalRequest,
	numServiceUnits decimal.Decimal) (*RenewalApprovalRunner, error) {
	r := &RenewalApprovalRunner{
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

// Run sets the request's status to Approved and records the approval
// time, then attempts the notification. The notification outcome never
// affects the committed transition.
func (r *RenewalApprovalRunner) Run(ctx context.Context) (*Outcome, error) {
	if r.ran {
		return nil, ErrRunnerAlreadyRan
	}
	r.ran = true

	outcome := &Outcome{}
	err := r.deps.Store.Transaction(ctx, func(tx Store) error {
		req, err := tx.GetRenewalRequestForUpdate(ctx, r.request.ID)
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
		return tx.SaveRenewalRequest(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	outcome.successf("Approved renewal request %s.", r.request.ID)

	outcome.Notification = r.notify(ctx)
	return outcome, nil
}

func (r *RenewalApprovalRunner) notify(ctx context.Context) notifications.Outcome {
	period, err := r.deps.Store.GetAllocationPeriod(ctx, r.request.AllocationPeriodID)
	if err != nil {
		return notifications.FailedOutcome(err)
	}
	notice, err := lifecycleNotice(ctx, r.deps.Store, KindRenewal,
		r.request.RequesterID, r.request.PIID, r.request.PostProjectID,
		period.Name, r.numServiceUnits.String())
	if err != nil {
		return notifications.FailedOutcome(err)
	}
	return r.deps.Notifier.SendRequestApproved(ctx, notice)
}

// RenewalDenialRunner marks a renewal request as denied. The review
// state carrying the denial reason is expected to have been recorded
// before the runner is constructed.
type RenewalDenialRunner struct {
	deps    RunnerDeps
	request *RenewalRequest
	ran     bool
}

// NewRenewalDenialRunner validates that the request has not already
// been processed; a completed request can never be denied after the
// fact.
func NewRenewalDenialRunner(deps RunnerDeps, request *RenewalRequest) (*RenewalDenialRunner, error) {
	if request.Status == StatusComplete {
		return nil, NewNotStatusPreconditionError(StatusComplete)
	}
	return &RenewalDenialRunner{deps: deps, request: request}, nil
}

// Run dispatches the pooling-preference handler, then sets the status
// to Denied. Only the pooled-to-unpooled-new branch does real work at
// denial: the post-project only existed for this request, so the denial
// cascades to it.
func (r *RenewalDenialRunner) Run(ctx context.Context) (*Outcome, error) {
	if r.ran {
		return nil, ErrRunnerAlreadyRan
	}
	r.ran = true

	outcome := &Outcome{}
	err := r.deps.Store.Transaction(ctx, func(tx Store) error {
		req, err := tx.GetRenewalRequestForUpdate(ctx, r.request.ID)
		if err != nil {
			return err
		}
		if req.Status == StatusComplete {
			return NewNotStatusPreconditionError(StatusComplete)
		}

		preference, err := classifyRenewal(ctx, tx, req)
		if err != nil {
			return err
		}
		r.deps.Logger.Info("Denying renewal request",
			zap.String("request_id", req.ID.String()),
			zap.String("pooling_preference", preference.String()))
		if preference == PooledToUnpooledNew {
			post, err := tx.GetProject(ctx, req.PostProjectID)
			if err != nil {
				return err
			}
			post.Status = projects.StatusDenied
			if err := tx.SaveProject(ctx, post); err != nil {
				return err
			}
		}

		req.Status = StatusDenied
		*r.request = *req
		return tx.SaveRenewalRequest(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	outcome.successf("Denied renewal request %s.", r.request.ID)

	outcome.Notification = r.notify(ctx)
	return outcome, nil
}

func (r *RenewalDenialRunner) notify(ctx context.Context) notifications.Outcome {
	reason, err := r.denialReason(ctx)
	if err != nil {
		return notifications.FailedOutcome(err)
	}
	period, err := r.deps.Store.GetAllocationPeriod(ctx, r.request.AllocationPeriodID)
	if err != nil {
		return notifications.FailedOutcome(err)
	}
	notice, err := lifecycleNotice(ctx, r.deps.Store, KindRenewal,
		r.request.RequesterID, r.request.PIID, r.request.PostProjectID,
		period.Name, "")
	if err != nil {
		return notifications.FailedOutcome(err)
	}
	return r.deps.Notifier.SendRequestDenied(ctx, notice, notifications.DenialNotice{
		Category:      reason.Category,
		Justification: reason.Justification,
	})
}

func (r *RenewalDenialRunner) denialReason(ctx context.Context) (*DenialReason, error) {
	state, err := r.request.RenewalState()
	if err != nil {
		return nil, err
	}
	var linked *DenialReason
	if r.request.NewProjectRequestID != nil {
		npr, err := r.deps.Store.GetNewProjectRequest(ctx, *r.request.NewProjectRequestID)
		if err != nil {
			return nil, err
		}
		if npr.Status == StatusDenied {
			linked, err = npr.DenialReason()
			if err != nil {
				return nil, err
			}
		}
	}
	return state.DenialReason(linked)
}

// RenewalProcessingRunner performs the actual allocation grant for an
// approved renewal once its period has started.
type RenewalProcessingRunner struct {
	deps            RunnerDeps
	request         *RenewalRequest
	numServiceUnits decimal.Decimal
	ran             bool
}

// NewRenewalProcessingRunner validates that the period has started and
// not ended, the request is approved, and the quantity is within
// bounds.
func NewRenewalProcessingRunner(ctx context.Context, deps RunnerDeps, request *RenewalRequest,
	numServiceUnits decimal.Decimal) (*RenewalProcessingRunner, error) {
	r := &RenewalProcessingRunner{
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

// Run executes the grant inside one transaction: promote the PI,
// activate the post-project, add the granted units and propagate them
// to members, guarantee memberships for the requester and PI, repoint
// future-period renewals that still reference the vacated project,
// apply the pooling-preference handler, and mark the request complete.
func (r *RenewalProcessingRunner) Run(ctx context.Context) (*Outcome, error) {
	if r.ran {
		return nil, ErrRunnerAlreadyRan
	}
	r.ran = true

	outcome := &Outcome{}
	err := r.deps.Store.Transaction(ctx, func(tx Store) error {
		req, err := tx.GetRenewalRequestForUpdate(ctx, r.request.ID)
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

		post, err := tx.GetProject(ctx, req.PostProjectID)
		if err != nil {
			return err
		}
		wasActive := post.Status == projects.StatusActive
		post.Status = projects.StatusActive
		if err := tx.SaveProject(ctx, post); err != nil {
			return err
		}

		period, err := tx.GetAllocationPeriod(ctx, req.AllocationPeriodID)
		if err != nil {
			return err
		}
		newValue, err := grantServiceUnits(
			ctx, tx, &r.deps, post, period, wasActive, r.numServiceUnits, now)
		if err != nil {
			return err
		}
		outcome.successf(
			"Granted %s service units to project %s (new total %s).",
			r.numServiceUnits, post.Name, newValue)

		if err := ensureProjectUsers(
			ctx, tx, post.ID, req.RequesterID, req.PIID, now); err != nil {
			return err
		}

		if err := r.repointFutureRenewals(ctx, tx, req); err != nil {
			return err
		}

		preference, err := classifyRenewal(ctx, tx, req)
		if err != nil {
			return err
		}
		r.deps.Logger.Info("Processing renewal request",
			zap.String("request_id", req.ID.String()),
			zap.String("pooling_preference", preference.String()))
		switch preference {
		case PooledToPooledDifferent, PooledToUnpooledOld, PooledToUnpooledNew:
			if err := r.demotePIOnPreProject(ctx, tx, req, outcome); err != nil {
				return err
			}
		}

		req.Status = StatusComplete
		req.NumServiceUnits = r.numServiceUnits
		req.CompletionTime = &now
		*r.request = *req
		return tx.SaveRenewalRequest(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	outcome.successf("Processed renewal request %s.", r.request.ID)

	outcome.Notification = r.notify(ctx)
	return outcome, nil
}

// repointFutureRenewals keeps a chain of sequential future renewals
// consistent when an earlier renewal in the chain is processed first:
// any not-yet-processed renewal for the same PI and allowance under a
// future period whose pre-project still points at the project being
// vacated is repointed at this request's post-project.
func (r *RenewalProcessingRunner) repointFutureRenewals(ctx context.Context, tx Store, req *RenewalRequest) error {
	futures, err := tx.UnprocessedFutureRenewals(
		ctx, req.ID, req.PIID, req.AllowanceID, r.deps.now(), req.PostProjectID)
	if err != nil {
		return err
	}
	for _, future := range futures {
		previous := "none"
		if future.PreProjectID != nil {
			previous = future.PreProjectID.String()
		}
		post := req.PostProjectID
		future.PreProjectID = &post
		if err := tx.SaveRenewalRequest(ctx, future); err != nil {
			return err
		}
		r.deps.Logger.Info("Repointed pre-project of future-period renewal request",
			zap.String("request_id", future.ID.String()),
			zap.String("previous_pre_project", previous),
			zap.String("new_pre_project", post.String()))
	}
	return nil
}

// demotePIOnPreProject demotes the PI from Principal Investigator to
// User on the project being left, provided the project retains another
// PI. A project must never be left with zero PIs.
func (r *RenewalProcessingRunner) demotePIOnPreProject(ctx context.Context, tx Store, req *RenewalRequest, outcome *Outcome) error {
	if req.PreProjectID == nil {
		r.deps.Logger.Info("Renewal request has no pre-project, skipping demotion",
			zap.String("request_id", req.ID.String()))
		return nil
	}
	pre, err := tx.GetProject(ctx, *req.PreProjectID)
	if err != nil {
		return err
	}
	pis, err := tx.ActivePIs(ctx, pre.ID)
	if err != nil {
		return err
	}
	if len(pis) <= 1 {
		r.deps.Logger.Warn("Project only has one PI, skipping demotion",
			zap.String("project", pre.Name),
			zap.String("request_id", req.ID.String()))
		outcome.warnf("Project %s only has one PI; skipped demotion.", pre.Name)
		return nil
	}
	pu, err := tx.GetProjectUser(ctx, pre.ID, req.PIID)
	if err != nil {
		return err
	}
	if pu == nil {
		r.deps.Logger.Error("No membership exists for PI on pre-project",
			zap.String("project", pre.Name),
			zap.String("pi_id", req.PIID.String()))
		return nil
	}
	pu.Role = projects.RoleUser
	if err := tx.SaveProjectUser(ctx, pu); err != nil {
		return err
	}
	r.deps.Logger.Info("Demoted PI to User on pre-project",
		zap.String("project", pre.Name),
		zap.String("pi_id", req.PIID.String()))
	outcome.successf(
		"Demoted PI from %q to %q on project %s.",
		projects.RolePrincipalInvestigator, projects.RoleUser, pre.Name)
	return nil
}

func (r *RenewalProcessingRunner) notify(ctx context.Context) notifications.Outcome {
	period, err := r.deps.Store.GetAllocationPeriod(ctx, r.request.AllocationPeriodID)
	if err != nil {
		return notifications.FailedOutcome(err)
	}
	notice, err := lifecycleNotice(ctx, r.deps.Store, KindRenewal,
		r.request.RequesterID, r.request.PIID, r.request.PostProjectID,
		period.Name, r.numServiceUnits.String())
	if err != nil {
		return notifications.FailedOutcome(err)
	}
	return r.deps.Notifier.SendRequestProcessed(ctx, notice)
}

// DeriveRenewalStatus recomputes the derivable portion of a renewal
// request's status, resolving the linked new-project request when one
// exists. Used by review tooling to keep the stored status honest.
func DeriveRenewalStatus(ctx context.Context, store Store, req *RenewalRequest) (Derived, error) {
	state, err := req.RenewalState()
	if err != nil {
		return 0, err
	}
	linkedDenied := false
	if req.NewProjectRequestID != nil {
		npr, err := store.GetNewProjectRequest(ctx, *req.NewProjectRequestID)
		if err != nil {
			return 0, err
		}
		linkedDenied = npr.Status == StatusDenied
	}
	return state.Derive(linkedDenied), nil
}

// RenewalLatestUpdateTimestamp returns the newest review timestamp of
// the request, including its linked new-project request.
func RenewalLatestUpdateTimestamp(ctx context.Context, store Store, req *RenewalRequest) (string, error) {
	state, err := req.RenewalState()
	if err != nil {
		return "", err
	}
	latest := state.LatestUpdateTimestamp()
	if req.NewProjectRequestID != nil {
		npr, err := store.GetNewProjectRequest(ctx, *req.NewProjectRequestID)
		if err != nil {
			return "", err
		}
		nprState, err := npr.NewProjectState()
		if err != nil {
			return "", err
		}
		latest = maxTimestamp(latest, nprState.LatestUpdateTimestamp())
	}
	return latest, nil
}
