package requests

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rc-portal/allocation-portal-backend/internal/allowances"
	"rc-portal/allocation-portal-backend/internal/projects"
	"rc-portal/allocation-portal-backend/internal/users"
)

// GormStore implements Store on a gorm database handle.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates the store and migrates the request tables.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(
		&users.User{},
		&users.Profile{},
		&allowances.ComputingAllowance{},
		&allowances.AllocationPeriod{},
		&projects.Project{},
		&projects.ProjectUser{},
		&projects.Allocation{},
		&projects.AllocationAttribute{},
		&projects.AllocationUserAttribute{},
		&projects.ProjectTransaction{},
		&projects.ProjectUserTransaction{},
		&RenewalRequest{},
		&NewProjectRequest{},
		&SecureDirRequest{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Transaction(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func (s *GormStore) GetRenewalRequest(ctx context.Context, id uuid.UUID) (*RenewalRequest, error) {
	var r RenewalRequest
	if err := s.db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("get renewal request %s: %w", id, err)
	}
	return &r, nil
}

func (s *GormStore) GetRenewalRequestForUpdate(ctx context.Context, id uuid.UUID) (*RenewalRequest, error) {
	var r RenewalRequest
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&r, "id = ?", id).Error
	if err != nil {
		return nil, fmt.Errorf("lock renewal request %s: %w", id, err)
	}
	return &r, nil
}

func (s *GormStore) SaveRenewalRequest(ctx context.Context, r *RenewalRequest) error {
	if err := s.db.WithContext(ctx).Save(r).Error; err != nil {
		return fmt.Errorf("save renewal request %s: %w", r.ID, err)
	}
	return nil
}

func (s *GormStore) ListRenewalRequests(ctx context.Context, statuses ...RequestStatus) ([]*RenewalRequest, error) {
	var rs []*RenewalRequest
	q := s.db.WithContext(ctx).Order("request_time")
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	if err := q.Find(&rs).Error; err != nil {
		return nil, fmt.Errorf("list renewal requests: %w", err)
	}
	return rs, nil
}

func (s *GormStore) RenewalRequestByNewProjectRequest(ctx context.Context, newProjectRequestID uuid.UUID) (*RenewalRequest, error) {
	var r RenewalRequest
	err := s.db.WithContext(ctx).
		First(&r, "new_project_request_id = ?", newProjectRequestID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf(
			"get renewal request for new-project request %s: %w",
			newProjectRequestID, err)
	}
	return &r, nil
}

func (s *GormStore) UnprocessedFutureRenewals(ctx context.Context, exclude uuid.UUID, pi, allowance uuid.UUID, after time.Time, notPreProject uuid.UUID) ([]*RenewalRequest, error) {
	var rs []*RenewalRequest
	err := s.db.WithContext(ctx).
		Joins("JOIN allocation_periods ON allocation_periods.id = renewal_requests.allocation_period_id").
		Where("renewal_requests.id <> ?", exclude).
		Where("renewal_requests.status NOT IN ?", []RequestStatus{StatusComplete, StatusDenied}).
		Where("renewal_requests.pi_id = ?", pi).
		Where("renewal_requests.allowance_id = ?", allowance).
		Where("allocation_periods.start_date > ?", after).
		Where("renewal_requests.pre_project_id IS DISTINCT FROM ?", notPreProject).
		Find(&rs).Error
	if err != nil {
		return nil, fmt.Errorf("list future-period renewal requests: %w", err)
	}
	return rs, nil
}

func (s *GormStore) HasNonDeniedRenewalRequest(ctx context.Context, pi, allowance, period uuid.UUID) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&RenewalRequest{}).
		Where("pi_id = ? AND allowance_id = ? AND allocation_period_id = ?", pi, allowance, period).
		Where("status <> ?", StatusDenied).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("count renewal requests: %w", err)
	}
	return count > 0, nil
}

func (s *GormStore) GetNewProjectRequest(ctx context.Context, id uuid.UUID) (*NewProjectRequest, error) {
	var r NewProjectRequest
	if err := s.db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("get new-project request %s: %w", id, err)
	}
	return &r, nil
}

func (s *GormStore) GetNewProjectRequestForUpdate(ctx context.Context, id uuid.UUID) (*NewProjectRequest, error) {
	var r NewProjectRequest
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&r, "id = ?", id).Error
	if err != nil {
		return nil, fmt.Errorf("lock new-project request %s: %w", id, err)
	}
	return &r, nil
}

func (s *GormStore) SaveNewProjectRequest(ctx context.Context, r *NewProjectRequest) error {
	if err := s.db.WithContext(ctx).Save(r).Error; err != nil {
		return fmt.Errorf("save new-project request %s: %w", r.ID, err)
	}
	return nil
}

func (s *GormStore) ListNewProjectRequests(ctx context.Context, statuses ...RequestStatus) ([]*NewProjectRequest, error) {
	var rs []*NewProjectRequest
	q := s.db.WithContext(ctx).Order("request_time")
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	if err := q.Find(&rs).Error; err != nil {
		return nil, fmt.Errorf("list new-project requests: %w", err)
	}
	return rs, nil
}

func (s *GormStore) HasNonDeniedNewProjectRequest(ctx context.Context, pi, allowance, period uuid.UUID) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&NewProjectRequest{}).
		Where("pi_id = ? AND allowance_id = ? AND allocation_period_id = ?", pi, allowance, period).
		Where("status <> ?", StatusDenied).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("count new-project requests: %w", err)
	}
	return count > 0, nil
}

func (s *GormStore) GetSecureDirRequest(ctx context.Context, id uuid.UUID) (*SecureDirRequest, error) {
	var r SecureDirRequest
	err := s.db.WithContext(ctx).First(&r, "id = ?", id).Error
	if err != nil {
		return nil, fmt.Errorf("get secure-directory request %s: %w", id, err)
	}
	return &r, nil
}

func (s *GormStore) GetSecureDirRequestForUpdate(ctx context.Context, id uuid.UUID) (*SecureDirRequest, error) {
	var r SecureDirRequest
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&r, "id = ?", id).Error
	if err != nil {
		return nil, fmt.Errorf("lock secure-directory request %s: %w", id, err)
	}
	return &r, nil
}

func (s *GormStore) SaveSecureDirRequest(ctx context.Context, r *SecureDirRequest) error {
	if err := s.db.WithContext(ctx).Save(r).Error; err != nil {
		return fmt.Errorf("save secure-directory request %s: %w", r.ID, err)
	}
	return nil
}

func (s *GormStore) ListSecureDirRequests(ctx context.Context, statuses ...RequestStatus) ([]*SecureDirRequest, error) {
	var rs []*SecureDirRequest
	q := s.db.WithContext(ctx).Order("request_time")
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	if err := q.Find(&rs).Error; err != nil {
		return nil, fmt.Errorf("list secure-directory requests: %w", err)
	}
	return rs, nil
}

func (s *GormStore) GetUser(ctx context.Context, id uuid.UUID) (*users.User, error) {
	var u users.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return &u, nil
}

func (s *GormStore) GetProfile(ctx context.Context, userID uuid.UUID) (*users.Profile, error) {
	var p users.Profile
	err := s.db.WithContext(ctx).
		Where(users.Profile{UserID: userID}).
		FirstOrCreate(&p).Error
	if err != nil {
		return nil, fmt.Errorf("get profile for user %s: %w", userID, err)
	}
	return &p, nil
}

func (s *GormStore) SaveProfile(ctx context.Context, p *users.Profile) error {
	if err := s.db.WithContext(ctx).Save(p).Error; err != nil {
		return fmt.Errorf("save profile %s: %w", p.ID, err)
	}
	return nil
}

func (s *GormStore) GetProject(ctx context.Context, id uuid.UUID) (*projects.Project, error) {
	var p projects.Project
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("get project %s: %w", id, err)
	}
	return &p, nil
}

func (s *GormStore) SaveProject(ctx context.Context, p *projects.Project) error {
	if err := s.db.WithContext(ctx).Save(p).Error; err != nil {
		return fmt.Errorf("save project %s: %w", p.ID, err)
	}
	return nil
}

func (s *GormStore) ActivePIs(ctx context.Context, projectID uuid.UUID) ([]projects.ProjectUser, error) {
	var pus []projects.ProjectUser
	err := s.db.WithContext(ctx).
		Where("project_id = ? AND role = ? AND status = ?",
			projectID, projects.RolePrincipalInvestigator, projects.UserStatusActive).
		Find(&pus).Error
	if err != nil {
		return nil, fmt.Errorf("list PIs of project %s: %w", projectID, err)
	}
	return pus, nil
}

func (s *GormStore) GetProjectUser(ctx context.Context, projectID, userID uuid.UUID) (*projects.ProjectUser, error) {
	var pu projects.ProjectUser
	err := s.db.WithContext(ctx).
		First(&pu, "project_id = ? AND user_id = ?", projectID, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf(
			"get membership of user %s on project %s: %w", userID, projectID, err)
	}
	return &pu, nil
}

func (s *GormStore) SaveProjectUser(ctx context.Context, pu *projects.ProjectUser) error {
	if err := s.db.WithContext(ctx).Save(pu).Error; err != nil {
		return fmt.Errorf("save project user %s: %w", pu.ID, err)
	}
	return nil
}

func (s *GormStore) CreateProjectUser(ctx context.Context, pu *projects.ProjectUser) error {
	if err := s.db.WithContext(ctx).Create(pu).Error; err != nil {
		return fmt.Errorf("create project user: %w", err)
	}
	return nil
}

func (s *GormStore) ListActiveProjectUsers(ctx context.Context, projectID uuid.UUID) ([]projects.ProjectUser, error) {
	var pus []projects.ProjectUser
	err := s.db.WithContext(ctx).
		Where("project_id = ? AND status = ?", projectID, projects.UserStatusActive).
		Find(&pus).Error
	if err != nil {
		return nil, fmt.Errorf("list members of project %s: %w", projectID, err)
	}
	return pus, nil
}

func (s *GormStore) IsActivePIOfAllowanceProject(ctx context.Context, userID, allowanceID uuid.UUID) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&projects.ProjectUser{}).
		Joins("JOIN projects ON projects.id = project_users.project_id").
		Where("project_users.user_id = ?", userID).
		Where("project_users.role = ?", projects.RolePrincipalInvestigator).
		Where("project_users.status = ?", projects.UserStatusActive).
		Where("projects.allowance_id = ?", allowanceID).
		Where("projects.status NOT IN ?", []string{projects.StatusDenied}).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("count PI memberships: %w", err)
	}
	return count > 0, nil
}

func (s *GormStore) GetOrCreateComputeAllocation(ctx context.Context, projectID uuid.UUID) (*projects.Allocation, error) {
	var a projects.Allocation
	err := s.db.WithContext(ctx).
		Where(projects.Allocation{ProjectID: projectID}).
		FirstOrCreate(&a).Error
	if err != nil {
		return nil, fmt.Errorf("get compute allocation of project %s: %w", projectID, err)
	}
	return &a, nil
}

func (s *GormStore) SaveAllocation(ctx context.Context, a *projects.Allocation) error {
	if err := s.db.WithContext(ctx).Save(a).Error; err != nil {
		return fmt.Errorf("save allocation %s: %w", a.ID, err)
	}
	return nil
}

func (s *GormStore) GetOrCreateAllocationAttribute(ctx context.Context, allocationID uuid.UUID, attrType string) (*projects.AllocationAttribute, error) {
	var attr projects.AllocationAttribute
	err := s.db.WithContext(ctx).
		Where(projects.AllocationAttribute{AllocationID: allocationID, Type: attrType}).
		FirstOrCreate(&attr).Error
	if err != nil {
		return nil, fmt.Errorf(
			"get %q attribute of allocation %s: %w", attrType, allocationID, err)
	}
	return &attr, nil
}

func (s *GormStore) SaveAllocationAttribute(ctx context.Context, a *projects.AllocationAttribute) error {
	if err := s.db.WithContext(ctx).Save(a).Error; err != nil {
		return fmt.Errorf("save allocation attribute %s: %w", a.ID, err)
	}
	return nil
}

func (s *GormStore) SetUserAllocationValue(ctx context.Context, allocationID, userID uuid.UUID, value string) (bool, error) {
	var attr projects.AllocationUserAttribute
	err := s.db.WithContext(ctx).
		Where(projects.AllocationUserAttribute{AllocationID: allocationID, UserID: userID}).
		FirstOrCreate(&attr).Error
	if err != nil {
		return false, fmt.Errorf(
			"get user allocation value for user %s: %w", userID, err)
	}
	if attr.Value == value {
		return false, nil
	}
	attr.Value = value
	if err := s.db.WithContext(ctx).Save(&attr).Error; err != nil {
		return false, fmt.Errorf(
			"save user allocation value for user %s: %w", userID, err)
	}
	return true, nil
}

func (s *GormStore) CreateProjectTransaction(ctx context.Context, t *projects.ProjectTransaction) error {
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("create project transaction: %w", err)
	}
	return nil
}

func (s *GormStore) CreateProjectUserTransaction(ctx context.Context, t *projects.ProjectUserTransaction) error {
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("create project user transaction: %w", err)
	}
	return nil
}

func (s *GormStore) GetAllowance(ctx context.Context, id uuid.UUID) (*allowances.ComputingAllowance, error) {
	var a allowances.ComputingAllowance
	if err := s.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("get allowance %s: %w", id, err)
	}
	return &a, nil
}

func (s *GormStore) GetAllocationPeriod(ctx context.Context, id uuid.UUID) (*allowances.AllocationPeriod, error) {
	var p allowances.AllocationPeriod
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("get allocation period %s: %w", id, err)
	}
	return &p, nil
}

func (s *GormStore) CurrentAllowanceYearPeriod(ctx context.Context, date time.Time) (*allowances.AllocationPeriod, error) {
	var p allowances.AllocationPeriod
	err := s.db.WithContext(ctx).
		Where("name LIKE ?", allowances.AllowanceYearPrefix+"%").
		Where("start_date <= ? AND end_date >= ?", date, date).
		First(&p).Error
	if err != nil {
		return nil, fmt.Errorf("get current allowance year: %w", err)
	}
	return &p, nil
}

func (s *GormStore) NextAllowanceYearPeriod(ctx context.Context, date time.Time) (*allowances.AllocationPeriod, error) {
	var p allowances.AllocationPeriod
	err := s.db.WithContext(ctx).
		Where("name LIKE ?", allowances.AllowanceYearPrefix+"%").
		Where("start_date > ?", date).
		Order("start_date").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get next allowance year: %w", err)
	}
	return &p, nil
}

func (s *GormStore) PreviousAllowanceYearPeriod(ctx context.Context, date time.Time) (*allowances.AllocationPeriod, error) {
	var p allowances.AllocationPeriod
	err := s.db.WithContext(ctx).
		Where("name LIKE ?", allowances.AllowanceYearPrefix+"%").
		Where("end_date < ?", date).
		Order("end_date DESC").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get previous allowance year: %w", err)
	}
	return &p, nil
}
