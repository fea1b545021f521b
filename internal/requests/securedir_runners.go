package requests

import (
	"context"

	"rc-portal/allocation-portal-backend/internal/notifications"
)

// secureDirNotice builds the notification fields for a secure-directory
// request. There is no allocation period or service-unit quantity.
func secureDirNotice(ctx context.Context, store Store, req *SecureDirRequest) (notifications.RequestNotice, error) {
	return lifecycleNotice(ctx, store, KindSecureDir,
		req.RequesterID, req.RequesterID, req.ProjectID, "", "")
}

// SecureDirApprovalRunner marks a secure-directory request as approved.
type SecureDirApprovalRunner struct {
	deps    RunnerDeps
	request *SecureDirRequest
	ran     bool
}

func NewSecureDirApprovalRunner(deps RunnerDeps, request *SecureDirRequest) (*SecureDirApprovalRunner, error) {
	if request.Status != StatusUnderReview {
		return nil, NewStatusPreconditionError(StatusUnderReview, request.Status)
	}
	return &SecureDirApprovalRunner{deps: deps, request: request}, nil
}

func (r *SecureDirApprovalRunner) Run(ctx context.Context) (*Outcome, error) {
	if r.ran {
		return nil, ErrRunnerAlreadyRan
	}
	r.ran = true

	outcome := &Outcome{}
	err := r.deps.Store.Transaction(ctx, func(tx Store) error {
		req, err := tx.GetSecureDirRequestForUpdate(ctx, r.request.ID)
		if err != nil {
			return err
		}
		if req.Status != StatusUnderReview {
			return NewStatusPreconditionError(StatusUnderReview, req.Status)
		}
		req.Status = StatusApproved
		*r.request = *req
		return tx.SaveSecureDirRequest(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	outcome.successf("Approved secure directory request %s.", r.request.ID)

	notice, err := secureDirNotice(ctx, r.deps.Store, r.request)
	if err != nil {
		outcome.Notification = notifications.FailedOutcome(err)
		return outcome, nil
	}
	outcome.Notification = r.deps.Notifier.SendRequestApproved(ctx, notice)
	return outcome, nil
}

// SecureDirDenialRunner marks a secure-directory request as denied.
type SecureDirDenialRunner struct {
	deps    RunnerDeps
	request *SecureDirRequest
	ran     bool
}

func NewSecureDirDenialRunner(deps RunnerDeps, request *SecureDirRequest) (*SecureDirDenialRunner, error) {
	if request.Status == StatusComplete {
		return nil, NewNotStatusPreconditionError(StatusComplete)
	}
	return &SecureDirDenialRunner{deps: deps, request: request}, nil
}

func (r *SecureDirDenialRunner) Run(ctx context.Context) (*Outcome, error) {
	if r.ran {
		return nil, ErrRunnerAlreadyRan
	}
	r.ran = true

	outcome := &Outcome{}
	err := r.deps.Store.Transaction(ctx, func(tx Store) error {
		req, err := tx.GetSecureDirRequestForUpdate(ctx, r.request.ID)
		if err != nil {
			return err
		}
		if req.Status == StatusComplete {
			return NewNotStatusPreconditionError(StatusComplete)
		}
		req.Status = StatusDenied
		*r.request = *req
		return tx.SaveSecureDirRequest(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	outcome.successf("Denied secure directory request %s.", r.request.ID)

	outcome.Notification = r.notifyDenied(ctx)
	return outcome, nil
}

func (r *SecureDirDenialRunner) notifyDenied(ctx context.Context) notifications.Outcome {
	state, err := r.request.SecureDirState()
	if err != nil {
		return notifications.FailedOutcome(err)
	}
	reason, err := state.DenialReason()
	if err != nil {
		return notifications.FailedOutcome(err)
	}
	notice, err := secureDirNotice(ctx, r.deps.Store, r.request)
	if err != nil {
		return notifications.FailedOutcome(err)
	}
	return r.deps.Notifier.SendRequestDenied(ctx, notice, notifications.DenialNotice{
		Category:      reason.Category,
		Justification: reason.Justification,
	})
}

// SecureDirProcessingRunner finalizes an approved secure-directory
// request once the directory has been provisioned on the cluster.
type SecureDirProcessingRunner struct {
	deps    RunnerDeps
	request *SecureDirRequest
	ran     bool
}

func NewSecureDirProcessingRunner(deps RunnerDeps, request *SecureDirRequest) (*SecureDirProcessingRunner, error) {
	if request.Status != StatusApproved {
		return nil, NewStatusPreconditionError(StatusApproved, request.Status)
	}
	return &SecureDirProcessingRunner{deps: deps, request: request}, nil
}

func (r *SecureDirProcessingRunner) Run(ctx context.Context) (*Outcome, error) {
	if r.ran {
		return nil, ErrRunnerAlreadyRan
	}
	r.ran = true

	outcome := &Outcome{}
	err := r.deps.Store.Transaction(ctx, func(tx Store) error {
		req, err := tx.GetSecureDirRequestForUpdate(ctx, r.request.ID)
		if err != nil {
			return err
		}
		if req.Status != StatusApproved {
			return NewStatusPreconditionError(StatusApproved, req.Status)
		}
		now := r.deps.now()

		state, err := req.SecureDirState()
		if err != nil {
			return err
		}
		state.Setup.Status = StepComplete
		state.Setup.Timestamp = Timestamp(now)
		if err := req.SetSecureDirState(state); err != nil {
			return err
		}

		req.Status = StatusComplete
		req.CompletionTime = &now
		*r.request = *req
		return tx.SaveSecureDirRequest(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	outcome.successf(
		"Processed secure directory request %s (directory %s).",
		r.request.ID, r.request.DirectoryName)

	notice, err := secureDirNotice(ctx, r.deps.Store, r.request)
	if err != nil {
		outcome.Notification = notifications.FailedOutcome(err)
		return outcome, nil
	}
	outcome.Notification = r.deps.Notifier.SendRequestProcessed(ctx, notice)
	return outcome, nil
}
