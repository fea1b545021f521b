package documents

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store is the persistence surface for memorandum records.
type Store interface {
	GetByRequest(ctx context.Context, kind RequestKind, requestID uuid.UUID) (*Memorandum, error)
	Create(ctx context.Context, m *Memorandum) error
	Update(ctx context.Context, m *Memorandum) error
	CreateVersion(ctx context.Context, v *MemorandumVersion) error
	ListVersions(ctx context.Context, memorandumID uuid.UUID) ([]MemorandumVersion, error)
	GetVersion(ctx context.Context, memorandumID uuid.UUID, versionNumber int) (*MemorandumVersion, error)
}

type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates the store and migrates the memorandum tables.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&Memorandum{}, &MemorandumVersion{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &GormStore{db: db}, nil
}

// GetByRequest returns the memorandum for a request, or nil when none
// has been uploaded yet.
func (s *GormStore) GetByRequest(ctx context.Context, kind RequestKind, requestID uuid.UUID) (*Memorandum, error) {
	var m Memorandum
	err := s.db.WithContext(ctx).
		Where("request_kind = ? AND request_id = ?", kind, requestID).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *GormStore) Create(ctx context.Context, m *Memorandum) error {
	return s.db.WithContext(ctx).Create(m).Error
}

func (s *GormStore) Update(ctx context.Context, m *Memorandum) error {
	return s.db.WithContext(ctx).Save(m).Error
}

func (s *GormStore) CreateVersion(ctx context.Context, v *MemorandumVersion) error {
	return s.db.WithContext(ctx).Create(v).Error
}

func (s *GormStore) ListVersions(ctx context.Context, memorandumID uuid.UUID) ([]MemorandumVersion, error) {
	var versions []MemorandumVersion
	err := s.db.WithContext(ctx).
		Where("memorandum_id = ?", memorandumID).
		Order("version_number DESC").
		Find(&versions).Error
	return versions, err
}

func (s *GormStore) GetVersion(ctx context.Context, memorandumID uuid.UUID, versionNumber int) (*MemorandumVersion, error) {
	var v MemorandumVersion
	err := s.db.WithContext(ctx).
		Where("memorandum_id = ? AND version_number = ?", memorandumID, versionNumber).
		First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}
