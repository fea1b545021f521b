package settings

import (
	"context"

	"github.com/google/uuid"
)

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Get returns the user's settings, falling back to defaults when the
// user has never saved any.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*UserSettings, error) {
	settings, err := s.store.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		return defaultSettings(userID), nil
	}
	return settings, nil
}

// UpdateInput carries the mutable settings fields. Pointers distinguish
// "leave unchanged" from an explicit value.
type UpdateInput struct {
	Timezone             *string
	Phone                *string
	NotifyOnStatusChange *bool
	NotifyOnNewRequest   *bool
}

// Update applies the given changes, creating the row on first write.
func (s *Service) Update(ctx context.Context, userID uuid.UUID, in UpdateInput) (*UserSettings, error) {
	settings, err := s.store.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		settings = defaultSettings(userID)
	}
	if in.Timezone != nil {
		settings.Timezone = *in.Timezone
	}
	if in.Phone != nil {
		settings.Phone = *in.Phone
	}
	if in.NotifyOnStatusChange != nil {
		settings.NotifyOnStatusChange = *in.NotifyOnStatusChange
	}
	if in.NotifyOnNewRequest != nil {
		settings.NotifyOnNewRequest = *in.NotifyOnNewRequest
	}
	if err := s.store.Save(ctx, settings); err != nil {
		return nil, err
	}
	return settings, nil
}
