package requests

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"rc-portal/allocation-portal-backend/internal/allowances"
	"rc-portal/allocation-portal-backend/internal/notifications"
	"rc-portal/allocation-portal-backend/internal/projects"
	"rc-portal/allocation-portal-backend/internal/users"
)

// fakeStore is an in-memory Store for runner tests. Transactions run
// against the same maps; rollback is not simulated, so tests assert on
// the pre-commit failure paths instead.
type fakeStore struct {
	renewals    map[uuid.UUID]*RenewalRequest
	newProjects map[uuid.UUID]*NewProjectRequest
	secureDirs  map[uuid.UUID]*SecureDirRequest

	users    map[uuid.UUID]*users.User
	profiles map[uuid.UUID]*users.Profile

	projects     map[uuid.UUID]*projects.Project
	projectUsers []*projects.ProjectUser

	allocations     map[uuid.UUID]*projects.Allocation
	attributes      []*projects.AllocationAttribute
	userValues      map[string]string
	projectTxns     []*projects.ProjectTransaction
	projectUserTxns []*projects.ProjectUserTransaction

	allowances map[uuid.UUID]*allowances.ComputingAllowance
	periods    map[uuid.UUID]*allowances.AllocationPeriod
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		renewals:    map[uuid.UUID]*RenewalRequest{},
		newProjects: map[uuid.UUID]*NewProjectRequest{},
		secureDirs:  map[uuid.UUID]*SecureDirRequest{},
		users:       map[uuid.UUID]*users.User{},
		profiles:    map[uuid.UUID]*users.Profile{},
		projects:    map[uuid.UUID]*projects.Project{},
		allocations: map[uuid.UUID]*projects.Allocation{},
		userValues:  map[string]string{},
		allowances:  map[uuid.UUID]*allowances.ComputingAllowance{},
		periods:     map[uuid.UUID]*allowances.AllocationPeriod{},
	}
}

var errNotFound = errors.New("not found")

func (f *fakeStore) Transaction(ctx context.Context, fn func(Store) error) error {
	return fn(f)
}

func (f *fakeStore) GetRenewalRequest(ctx context.Context, id uuid.UUID) (*RenewalRequest, error) {
	r, ok := f.renewals[id]
	if !ok {
		return nil, fmt.Errorf("renewal request %s: %w", id, errNotFound)
	}
	copied := *r
	return &copied, nil
}

func (f *fakeStore) GetRenewalRequestForUpdate(ctx context.Context, id uuid.UUID) (*RenewalRequest, error) {
	return f.GetRenewalRequest(ctx, id)
}

func (f *fakeStore) SaveRenewalRequest(ctx context.Context, r *RenewalRequest) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	copied := *r
	f.renewals[r.ID] = &copied
	return nil
}

func (f *fakeStore) ListRenewalRequests(ctx context.Context, statuses ...RequestStatus) ([]*RenewalRequest, error) {
	var out []*RenewalRequest
	for _, r := range f.renewals {
		if matchesStatus(r.Status, statuses) {
			copied := *r
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RequestTime.Before(out[j].RequestTime)
	})
	return out, nil
}

func (f *fakeStore) RenewalRequestByNewProjectRequest(ctx context.Context, newProjectRequestID uuid.UUID) (*RenewalRequest, error) {
	for _, r := range f.renewals {
		if r.NewProjectRequestID != nil && *r.NewProjectRequestID == newProjectRequestID {
			copied := *r
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) UnprocessedFutureRenewals(ctx context.Context, exclude uuid.UUID,
	pi, allowance uuid.UUID, after time.Time, notPreProject uuid.UUID) ([]*RenewalRequest, error) {
	var out []*RenewalRequest
	for _, r := range f.renewals {
		if r.ID == exclude || r.PIID != pi || r.AllowanceID != allowance {
			continue
		}
		if r.Status == StatusDenied || r.Status == StatusComplete {
			continue
		}
		period, ok := f.periods[r.AllocationPeriodID]
		if !ok || !period.StartDate.After(after) {
			continue
		}
		if r.PreProjectID != nil && *r.PreProjectID == notPreProject {
			continue
		}
		copied := *r
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RequestTime.Before(out[j].RequestTime)
	})
	return out, nil
}

func (f *fakeStore) HasNonDeniedRenewalRequest(ctx context.Context, pi, allowance, period uuid.UUID) (bool, error) {
	for _, r := range f.renewals {
		if r.PIID == pi && r.AllowanceID == allowance &&
			r.AllocationPeriodID == period && r.Status != StatusDenied {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) GetNewProjectRequest(ctx context.Context, id uuid.UUID) (*NewProjectRequest, error) {
	r, ok := f.newProjects[id]
	if !ok {
		return nil, fmt.Errorf("new project request %s: %w", id, errNotFound)
	}
	copied := *r
	return &copied, nil
}

func (f *fakeStore) GetNewProjectRequestForUpdate(ctx context.Context, id uuid.UUID) (*NewProjectRequest, error) {
	return f.GetNewProjectRequest(ctx, id)
}

func (f *fakeStore) SaveNewProjectRequest(ctx context.Context, r *NewProjectRequest) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	copied := *r
	f.newProjects[r.ID] = &copied
	return nil
}

func (f *fakeStore) ListNewProjectRequests(ctx context.Context, statuses ...RequestStatus) ([]*NewProjectRequest, error) {
	var out []*NewProjectRequest
	for _, r := range f.newProjects {
		if matchesStatus(r.Status, statuses) {
			copied := *r
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeStore) HasNonDeniedNewProjectRequest(ctx context.Context, pi, allowance, period uuid.UUID) (bool, error) {
	for _, r := range f.newProjects {
		if r.PIID == pi && r.AllowanceID == allowance &&
			r.AllocationPeriodID == period && r.Status != StatusDenied {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) GetSecureDirRequest(ctx context.Context, id uuid.UUID) (*SecureDirRequest, error) {
	r, ok := f.secureDirs[id]
	if !ok {
		return nil, fmt.Errorf("secure directory request %s: %w", id, errNotFound)
	}
	copied := *r
	return &copied, nil
}

func (f *fakeStore) GetSecureDirRequestForUpdate(ctx context.Context, id uuid.UUID) (*SecureDirRequest, error) {
	return f.GetSecureDirRequest(ctx, id)
}

func (f *fakeStore) SaveSecureDirRequest(ctx context.Context, r *SecureDirRequest) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	copied := *r
	f.secureDirs[r.ID] = &copied
	return nil
}

func (f *fakeStore) ListSecureDirRequests(ctx context.Context, statuses ...RequestStatus) ([]*SecureDirRequest, error) {
	var out []*SecureDirRequest
	for _, r := range f.secureDirs {
		if matchesStatus(r.Status, statuses) {
			copied := *r
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeStore) GetUser(ctx context.Context, id uuid.UUID) (*users.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, errNotFound)
	}
	return u, nil
}

func (f *fakeStore) GetProfile(ctx context.Context, userID uuid.UUID) (*users.Profile, error) {
	p, ok := f.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("profile for user %s: %w", userID, errNotFound)
	}
	copied := *p
	return &copied, nil
}

func (f *fakeStore) SaveProfile(ctx context.Context, p *users.Profile) error {
	copied := *p
	f.profiles[p.UserID] = &copied
	return nil
}

func (f *fakeStore) GetProject(ctx context.Context, id uuid.UUID) (*projects.Project, error) {
	p, ok := f.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", id, errNotFound)
	}
	copied := *p
	return &copied, nil
}

func (f *fakeStore) SaveProject(ctx context.Context, p *projects.Project) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	copied := *p
	f.projects[p.ID] = &copied
	return nil
}

func (f *fakeStore) ActivePIs(ctx context.Context, projectID uuid.UUID) ([]projects.ProjectUser, error) {
	var out []projects.ProjectUser
	for _, pu := range f.projectUsers {
		if pu.ProjectID == projectID &&
			pu.Role == projects.RolePrincipalInvestigator &&
			pu.Status == projects.UserStatusActive {
			out = append(out, *pu)
		}
	}
	return out, nil
}

func (f *fakeStore) GetProjectUser(ctx context.Context, projectID, userID uuid.UUID) (*projects.ProjectUser, error) {
	for _, pu := range f.projectUsers {
		if pu.ProjectID == projectID && pu.UserID == userID {
			copied := *pu
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) SaveProjectUser(ctx context.Context, pu *projects.ProjectUser) error {
	for i, existing := range f.projectUsers {
		if existing.ID == pu.ID {
			copied := *pu
			f.projectUsers[i] = &copied
			return nil
		}
	}
	return fmt.Errorf("project user %s: %w", pu.ID, errNotFound)
}

func (f *fakeStore) CreateProjectUser(ctx context.Context, pu *projects.ProjectUser) error {
	if pu.ID == uuid.Nil {
		pu.ID = uuid.New()
	}
	copied := *pu
	f.projectUsers = append(f.projectUsers, &copied)
	return nil
}

func (f *fakeStore) ListActiveProjectUsers(ctx context.Context, projectID uuid.UUID) ([]projects.ProjectUser, error) {
	var out []projects.ProjectUser
	for _, pu := range f.projectUsers {
		if pu.ProjectID == projectID && pu.Status == projects.UserStatusActive {
			out = append(out, *pu)
		}
	}
	return out, nil
}

func (f *fakeStore) IsActivePIOfAllowanceProject(ctx context.Context, userID, allowanceID uuid.UUID) (bool, error) {
	for _, pu := range f.projectUsers {
		if pu.UserID != userID ||
			pu.Role != projects.RolePrincipalInvestigator ||
			pu.Status != projects.UserStatusActive {
			continue
		}
		project, ok := f.projects[pu.ProjectID]
		if !ok || project.Status == projects.StatusDenied {
			continue
		}
		if project.AllowanceID != nil && *project.AllowanceID == allowanceID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) GetOrCreateComputeAllocation(ctx context.Context, projectID uuid.UUID) (*projects.Allocation, error) {
	for _, a := range f.allocations {
		if a.ProjectID == projectID {
			copied := *a
			return &copied, nil
		}
	}
	a := &projects.Allocation{
		ID:        uuid.New(),
		ProjectID: projectID,
		Status:    projects.AllocationStatusNew,
	}
	f.allocations[a.ID] = a
	copied := *a
	return &copied, nil
}

func (f *fakeStore) SaveAllocation(ctx context.Context, a *projects.Allocation) error {
	copied := *a
	f.allocations[a.ID] = &copied
	return nil
}

func (f *fakeStore) GetOrCreateAllocationAttribute(ctx context.Context, allocationID uuid.UUID, attrType string) (*projects.AllocationAttribute, error) {
	for _, attr := range f.attributes {
		if attr.AllocationID == allocationID && attr.Type == attrType {
			copied := *attr
			return &copied, nil
		}
	}
	attr := &projects.AllocationAttribute{
		ID:           uuid.New(),
		AllocationID: allocationID,
		Type:         attrType,
	}
	f.attributes = append(f.attributes, attr)
	copied := *attr
	return &copied, nil
}

func (f *fakeStore) SaveAllocationAttribute(ctx context.Context, a *projects.AllocationAttribute) error {
	for i, attr := range f.attributes {
		if attr.ID == a.ID {
			copied := *a
			f.attributes[i] = &copied
			return nil
		}
	}
	return fmt.Errorf("allocation attribute %s: %w", a.ID, errNotFound)
}

func (f *fakeStore) SetUserAllocationValue(ctx context.Context, allocationID, userID uuid.UUID, value string) (bool, error) {
	key := allocationID.String() + "/" + userID.String()
	if f.userValues[key] == value {
		return false, nil
	}
	f.userValues[key] = value
	return true, nil
}

func (f *fakeStore) CreateProjectTransaction(ctx context.Context, t *projects.ProjectTransaction) error {
	copied := *t
	f.projectTxns = append(f.projectTxns, &copied)
	return nil
}

func (f *fakeStore) CreateProjectUserTransaction(ctx context.Context, t *projects.ProjectUserTransaction) error {
	copied := *t
	f.projectUserTxns = append(f.projectUserTxns, &copied)
	return nil
}

func (f *fakeStore) GetAllowance(ctx context.Context, id uuid.UUID) (*allowances.ComputingAllowance, error) {
	a, ok := f.allowances[id]
	if !ok {
		return nil, fmt.Errorf("allowance %s: %w", id, errNotFound)
	}
	return a, nil
}

func (f *fakeStore) GetAllocationPeriod(ctx context.Context, id uuid.UUID) (*allowances.AllocationPeriod, error) {
	p, ok := f.periods[id]
	if !ok {
		return nil, fmt.Errorf("allocation period %s: %w", id, errNotFound)
	}
	return p, nil
}

func (f *fakeStore) CurrentAllowanceYearPeriod(ctx context.Context, date time.Time) (*allowances.AllocationPeriod, error) {
	for _, p := range f.periods {
		if isAllowanceYear(p) && p.Started(date) && !p.Ended(date) {
			return p, nil
		}
	}
	return nil, errNotFound
}

func (f *fakeStore) NextAllowanceYearPeriod(ctx context.Context, date time.Time) (*allowances.AllocationPeriod, error) {
	var next *allowances.AllocationPeriod
	for _, p := range f.periods {
		if !isAllowanceYear(p) || !p.StartDate.After(date) {
			continue
		}
		if next == nil || p.StartDate.Before(next.StartDate) {
			next = p
		}
	}
	if next == nil {
		return nil, errNotFound
	}
	return next, nil
}

func (f *fakeStore) PreviousAllowanceYearPeriod(ctx context.Context, date time.Time) (*allowances.AllocationPeriod, error) {
	var prev *allowances.AllocationPeriod
	for _, p := range f.periods {
		if !isAllowanceYear(p) || !p.EndDate.Before(date) {
			continue
		}
		if prev == nil || p.EndDate.After(prev.EndDate) {
			prev = p
		}
	}
	if prev == nil {
		return nil, errNotFound
	}
	return prev, nil
}

func isAllowanceYear(p *allowances.AllocationPeriod) bool {
	return len(p.Name) >= len(allowances.AllowanceYearPrefix) &&
		p.Name[:len(allowances.AllowanceYearPrefix)] == allowances.AllowanceYearPrefix
}

func matchesStatus(status RequestStatus, statuses []RequestStatus) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

// fakeNotifier records every notice and returns a configurable
// outcome.
type fakeNotifier struct {
	outcome   notifications.Outcome
	approved  []notifications.RequestNotice
	denied    []notifications.RequestNotice
	reasons   []notifications.DenialNotice
	processed []notifications.RequestNotice
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{outcome: notifications.SentOutcome()}
}

func (n *fakeNotifier) SendRequestApproved(ctx context.Context, notice notifications.RequestNotice) notifications.Outcome {
	n.approved = append(n.approved, notice)
	return n.outcome
}

func (n *fakeNotifier) SendRequestDenied(ctx context.Context, notice notifications.RequestNotice, reason notifications.DenialNotice) notifications.Outcome {
	n.denied = append(n.denied, notice)
	n.reasons = append(n.reasons, reason)
	return n.outcome
}

func (n *fakeNotifier) SendRequestProcessed(ctx context.Context, notice notifications.RequestNotice) notifications.Outcome {
	n.processed = append(n.processed, notice)
	return n.outcome
}
