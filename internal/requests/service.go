package requests

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"rc-portal/allocation-portal-backend/internal/projects"
)

// Service is the entry point consumed by handlers and workers. All
// mutations of request records flow through it: submissions build the
// documented initial shape, review updates rewrite one step at a time,
// and life-cycle transitions construct a single-use runner.
type Service struct {
	deps RunnerDeps
}

func NewService(deps RunnerDeps) *Service {
	return &Service{deps: deps}
}

// SubmitRenewalInput is the submission contract for a renewal. When
// NewProjectName is non-empty the renewal targets a brand-new project,
// which is created alongside a linked new-project request.
type SubmitRenewalInput struct {
	RequesterID        uuid.UUID
	PIID               uuid.UUID
	AllowanceID        uuid.UUID
	AllocationPeriodID uuid.UUID
	PreProjectID       *uuid.UUID
	PostProjectID      *uuid.UUID
	NewProjectName     string
	NewProjectTitle    string
	Pool               bool
}

// SubmitRenewal validates eligibility and creates the renewal request
// in its initial shape, creating the target project and a linked
// new-project request when the renewal points at a project that does
// not exist yet.
func (s *Service) SubmitRenewal(ctx context.Context, in SubmitRenewalInput) (*RenewalRequest, error) {
	allowance, err := s.deps.Store.GetAllowance(ctx, in.AllowanceID)
	if err != nil {
		return nil, err
	}
	elig, err := IsUserEligibleForAllowance(
		ctx, s.deps.Store, in.PIID, allowance, in.AllocationPeriodID, true)
	if err != nil {
		return nil, err
	}
	if !elig.Eligible {
		return nil, &PreconditionError{Message: elig.Reason}
	}

	var request *RenewalRequest
	err = s.deps.Store.Transaction(ctx, func(tx Store) error {
		now := s.deps.now()

		postProjectID := uuid.Nil
		var newProjectRequestID *uuid.UUID
		if in.PostProjectID != nil {
			postProjectID = *in.PostProjectID
		} else {
			if in.NewProjectName == "" {
				return &PreconditionError{
					Message: "a renewal must name an existing project or a new project"}
			}
			project := &projects.Project{
				Name:        in.NewProjectName,
				Title:       in.NewProjectTitle,
				Status:      projects.StatusNew,
				AllowanceID: &in.AllowanceID,
			}
			if err := tx.SaveProject(ctx, project); err != nil {
				return err
			}
			npr, err := NewNewProjectRequest(in.RequesterID, in.PIID,
				allowance, in.AllocationPeriodID, project, in.Pool, now)
			if err != nil {
				return err
			}
			if err := tx.SaveNewProjectRequest(ctx, npr); err != nil {
				return err
			}
			postProjectID = project.ID
			newProjectRequestID = &npr.ID
		}

		r, err := NewRenewalRequest(in.RequesterID, in.PIID, in.AllowanceID,
			in.AllocationPeriodID, in.PreProjectID, postProjectID, now)
		if err != nil {
			return err
		}
		r.NewProjectRequestID = newProjectRequestID
		if err := tx.SaveRenewalRequest(ctx, r); err != nil {
			return err
		}
		request = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.deps.Logger.Info("Submitted renewal request",
		zap.String("request_id", request.ID.String()),
		zap.String("pi_id", in.PIID.String()))
	return request, nil
}

// SubmitNewProjectInput is the submission contract for a standalone
// new-project request.
type SubmitNewProjectInput struct {
	RequesterID        uuid.UUID
	PIID               uuid.UUID
	AllowanceID        uuid.UUID
	AllocationPeriodID uuid.UUID
	Name               string
	Title              string
	Description        string
	Pool               bool
}

func (s *Service) SubmitNewProject(ctx context.Context, in SubmitNewProjectInput) (*NewProjectRequest, error) {
	allowance, err := s.deps.Store.GetAllowance(ctx, in.AllowanceID)
	if err != nil {
		return nil, err
	}
	elig, err := IsUserEligibleForAllowance(
		ctx, s.deps.Store, in.PIID, allowance, in.AllocationPeriodID, false)
	if err != nil {
		return nil, err
	}
	if !elig.Eligible {
		return nil, &PreconditionError{Message: elig.Reason}
	}

	var request *NewProjectRequest
	err = s.deps.Store.Transaction(ctx, func(tx Store) error {
		now := s.deps.now()
		project := &projects.Project{
			Name:        in.Name,
			Title:       in.Title,
			Description: in.Description,
			Status:      projects.StatusNew,
			AllowanceID: &in.AllowanceID,
		}
		if err := tx.SaveProject(ctx, project); err != nil {
			return err
		}
		r, err := NewNewProjectRequest(in.RequesterID, in.PIID,
			allowance, in.AllocationPeriodID, project, in.Pool, now)
		if err != nil {
			return err
		}
		if err := tx.SaveNewProjectRequest(ctx, r); err != nil {
			return err
		}
		request = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.deps.Logger.Info("Submitted new project request",
		zap.String("request_id", request.ID.String()),
		zap.String("project", in.Name))
	return request, nil
}

// SubmitSecureDirInput is the submission contract for a secure
// directory.
type SubmitSecureDirInput struct {
	RequesterID     uuid.UUID
	ProjectID       uuid.UUID
	DirectoryName   string
	Department      string
	DataDescription string
}

func (s *Service) SubmitSecureDir(ctx context.Context, in SubmitSecureDirInput) (*SecureDirRequest, error) {
	if in.DirectoryName == "" {
		return nil, &PreconditionError{Message: "a directory name is required"}
	}
	r, err := NewSecureDirRequest(in.RequesterID, in.ProjectID,
		in.DirectoryName, in.Department, in.DataDescription, s.deps.now())
	if err != nil {
		return nil, err
	}
	if err := s.deps.Store.SaveSecureDirRequest(ctx, r); err != nil {
		return nil, err
	}
	s.deps.Logger.Info("Submitted secure directory request",
		zap.String("request_id", r.ID.String()),
		zap.String("directory", in.DirectoryName))
	return r, nil
}

// StepUpdate is one reviewer decision on a named step. For the
// catch-all step only the justification is read; recording it denies
// the request.
type StepUpdate struct {
	Step          string
	Status        string
	Justification string
}

// UpdateRenewalStep records a reviewer decision on a renewal request's
// state and re-derives the stored status. A step update that makes the
// derived status Denied triggers the denial runner.
func (s *Service) UpdateRenewalStep(ctx context.Context, id uuid.UUID, update StepUpdate) (*RenewalRequest, error) {
	var request *RenewalRequest
	err := s.deps.Store.Transaction(ctx, func(tx Store) error {
		req, err := tx.GetRenewalRequestForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if req.Status == StatusComplete {
			return NewNotStatusPreconditionError(StatusComplete)
		}
		state, err := req.RenewalState()
		if err != nil {
			return err
		}
		ts := Timestamp(s.deps.now())
		switch update.Step {
		case "eligibility":
			state.Eligibility = ReviewStep{
				Status:        update.Status,
				Justification: update.Justification,
				Timestamp:     ts,
			}
		case "other":
			state.Other = OtherStep{
				Justification: update.Justification,
				Timestamp:     ts,
			}
		default:
			return &PreconditionError{
				Message: fmt.Sprintf("unknown renewal review step %q", update.Step)}
		}
		if err := req.SetRenewalState(state); err != nil {
			return err
		}
		if err := tx.SaveRenewalRequest(ctx, req); err != nil {
			return err
		}
		request = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return request, s.denyRenewalIfDerived(ctx, request)
}

func (s *Service) denyRenewalIfDerived(ctx context.Context, req *RenewalRequest) error {
	derived, err := DeriveRenewalStatus(ctx, s.deps.Store, req)
	if err != nil {
		return err
	}
	if derived != DerivedDenied || !req.Status.CanTransitionTo(StatusDenied) {
		return nil
	}
	runner, err := NewRenewalDenialRunner(s.deps, req)
	if err != nil {
		return err
	}
	_, err = runner.Run(ctx)
	return err
}

// UpdateNewProjectStep records a reviewer decision on a new-project
// request's state.
func (s *Service) UpdateNewProjectStep(ctx context.Context, id uuid.UUID, update StepUpdate) (*NewProjectRequest, error) {
	var request *NewProjectRequest
	err := s.deps.Store.Transaction(ctx, func(tx Store) error {
		req, err := tx.GetNewProjectRequestForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if req.Status == StatusComplete {
			return NewNotStatusPreconditionError(StatusComplete)
		}
		state, err := req.NewProjectState()
		if err != nil {
			return err
		}
		ts := Timestamp(s.deps.now())
		step := ReviewStep{
			Status:        update.Status,
			Justification: update.Justification,
			Timestamp:     ts,
		}
		switch update.Step {
		case "eligibility":
			state.Eligibility = step
		case "readiness":
			state.Readiness = step
		case "notified":
			if state.Notified == nil {
				return &PreconditionError{
					Message: "request has no notified step"}
			}
			*state.Notified = AcknowledgeStep{Status: update.Status, Timestamp: ts}
		case "memorandum_signed":
			if state.MemorandumSigned == nil {
				return &PreconditionError{
					Message: "request has no memorandum_signed step"}
			}
			*state.MemorandumSigned = AcknowledgeStep{Status: update.Status, Timestamp: ts}
		case "name_change":
			state.Setup.NameChange.FinalName = update.Justification
		case "other":
			state.Other = OtherStep{
				Justification: update.Justification,
				Timestamp:     ts,
			}
		default:
			return &PreconditionError{
				Message: fmt.Sprintf("unknown new-project review step %q", update.Step)}
		}
		if err := req.SetNewProjectState(state); err != nil {
			return err
		}
		if err := tx.SaveNewProjectRequest(ctx, req); err != nil {
			return err
		}
		request = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return request, s.denyNewProjectIfDerived(ctx, request)
}

func (s *Service) denyNewProjectIfDerived(ctx context.Context, req *NewProjectRequest) error {
	state, err := req.NewProjectState()
	if err != nil {
		return err
	}
	if state.Derive() != DerivedDenied || !req.Status.CanTransitionTo(StatusDenied) {
		return nil
	}
	runner, err := NewNewProjectDenialRunner(s.deps, req)
	if err != nil {
		return err
	}
	_, err = runner.Run(ctx)
	return err
}

// UpdateSecureDirStep records a reviewer decision on a secure-directory
// request's state.
func (s *Service) UpdateSecureDirStep(ctx context.Context, id uuid.UUID, update StepUpdate) (*SecureDirRequest, error) {
	var request *SecureDirRequest
	err := s.deps.Store.Transaction(ctx, func(tx Store) error {
		req, err := tx.GetSecureDirRequestForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if req.Status == StatusComplete {
			return NewNotStatusPreconditionError(StatusComplete)
		}
		state, err := req.SecureDirState()
		if err != nil {
			return err
		}
		ts := Timestamp(s.deps.now())
		step := ReviewStep{
			Status:        update.Status,
			Justification: update.Justification,
			Timestamp:     ts,
		}
		switch update.Step {
		case "rdm_consultation":
			state.RDMConsultation = step
		case "notified":
			state.Notified = AcknowledgeStep{Status: update.Status, Timestamp: ts}
		case "mou":
			state.MOU = step
		case "setup":
			state.Setup = step
		case "other":
			state.Other = OtherStep{
				Justification: update.Justification,
				Timestamp:     ts,
			}
		default:
			return &PreconditionError{
				Message: fmt.Sprintf("unknown secure-directory review step %q", update.Step)}
		}
		if err := req.SetSecureDirState(state); err != nil {
			return err
		}
		if err := tx.SaveSecureDirRequest(ctx, req); err != nil {
			return err
		}
		request = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return request, s.denySecureDirIfDerived(ctx, request)
}

func (s *Service) denySecureDirIfDerived(ctx context.Context, req *SecureDirRequest) error {
	state, err := req.SecureDirState()
	if err != nil {
		return err
	}
	if state.Derive() != DerivedDenied || !req.Status.CanTransitionTo(StatusDenied) {
		return nil
	}
	runner, err := NewSecureDirDenialRunner(s.deps, req)
	if err != nil {
		return err
	}
	_, err = runner.Run(ctx)
	return err
}

// ApproveRenewal runs the approval transition.
func (s *Service) ApproveRenewal(ctx context.Context, id uuid.UUID, numServiceUnits decimal.Decimal) (*Outcome, error) {
	req, err := s.deps.Store.GetRenewalRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	runner, err := NewRenewalApprovalRunner(ctx, s.deps, req, numServiceUnits)
	if err != nil {
		return nil, err
	}
	return runner.Run(ctx)
}

// DenyRenewal runs the denial transition. The denial reason is read
// from the review state recorded beforehand.
func (s *Service) DenyRenewal(ctx context.Context, id uuid.UUID) (*Outcome, error) {
	req, err := s.deps.Store.GetRenewalRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	runner, err := NewRenewalDenialRunner(s.deps, req)
	if err != nil {
		return nil, err
	}
	return runner.Run(ctx)
}

// ProcessRenewal runs the processing transition.
func (s *Service) ProcessRenewal(ctx context.Context, id uuid.UUID, numServiceUnits decimal.Decimal) (*Outcome, error) {
	req, err := s.deps.Store.GetRenewalRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	runner, err := NewRenewalProcessingRunner(ctx, s.deps, req, numServiceUnits)
	if err != nil {
		return nil, err
	}
	return runner.Run(ctx)
}

func (s *Service) ApproveNewProject(ctx context.Context, id uuid.UUID, numServiceUnits decimal.Decimal) (*Outcome, error) {
	req, err := s.deps.Store.GetNewProjectRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	runner, err := NewNewProjectApprovalRunner(ctx, s.deps, req, numServiceUnits)
	if err != nil {
		return nil, err
	}
	return runner.Run(ctx)
}

func (s *Service) DenyNewProject(ctx context.Context, id uuid.UUID) (*Outcome, error) {
	req, err := s.deps.Store.GetNewProjectRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	runner, err := NewNewProjectDenialRunner(s.deps, req)
	if err != nil {
		return nil, err
	}
	return runner.Run(ctx)
}

func (s *Service) ProcessNewProject(ctx context.Context, id uuid.UUID, numServiceUnits decimal.Decimal) (*Outcome, error) {
	req, err := s.deps.Store.GetNewProjectRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	runner, err := NewNewProjectProcessingRunner(ctx, s.deps, req, numServiceUnits)
	if err != nil {
		return nil, err
	}
	return runner.Run(ctx)
}

func (s *Service) ApproveSecureDir(ctx context.Context, id uuid.UUID) (*Outcome, error) {
	req, err := s.deps.Store.GetSecureDirRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	runner, err := NewSecureDirApprovalRunner(s.deps, req)
	if err != nil {
		return nil, err
	}
	return runner.Run(ctx)
}

func (s *Service) DenySecureDir(ctx context.Context, id uuid.UUID) (*Outcome, error) {
	req, err := s.deps.Store.GetSecureDirRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	runner, err := NewSecureDirDenialRunner(s.deps, req)
	if err != nil {
		return nil, err
	}
	return runner.Run(ctx)
}

func (s *Service) ProcessSecureDir(ctx context.Context, id uuid.UUID) (*Outcome, error) {
	req, err := s.deps.Store.GetSecureDirRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	runner, err := NewSecureDirProcessingRunner(s.deps, req)
	if err != nil {
		return nil, err
	}
	return runner.Run(ctx)
}

// ListRenewals returns renewal requests, optionally filtered by status.
func (s *Service) ListRenewals(ctx context.Context, statuses ...RequestStatus) ([]*RenewalRequest, error) {
	return s.deps.Store.ListRenewalRequests(ctx, statuses...)
}

func (s *Service) ListNewProjects(ctx context.Context, statuses ...RequestStatus) ([]*NewProjectRequest, error) {
	return s.deps.Store.ListNewProjectRequests(ctx, statuses...)
}

func (s *Service) ListSecureDirs(ctx context.Context, statuses ...RequestStatus) ([]*SecureDirRequest, error) {
	return s.deps.Store.ListSecureDirRequests(ctx, statuses...)
}
