package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Store interface {
	GetByUser(ctx context.Context, userID uuid.UUID) (*UserSettings, error)
	Save(ctx context.Context, s *UserSettings) error
}

type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates the store and migrates the settings table.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&UserSettings{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) GetByUser(ctx context.Context, userID uuid.UUID) (*UserSettings, error) {
	var settings UserSettings
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

func (s *GormStore) Save(ctx context.Context, settings *UserSettings) error {
	return s.db.WithContext(ctx).Save(settings).Error
}
