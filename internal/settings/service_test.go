package settings

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	byUser map[uuid.UUID]*UserSettings
}

func (f *fakeStore) GetByUser(ctx context.Context, userID uuid.UUID) (*UserSettings, error) {
	s, ok := f.byUser[userID]
	if !ok {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

func (f *fakeStore) Save(ctx context.Context, s *UserSettings) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	copied := *s
	f.byUser[s.UserID] = &copied
	return nil
}

func TestGetReturnsDefaultsForNewUser(t *testing.T) {
	service := NewService(&fakeStore{byUser: map[uuid.UUID]*UserSettings{}})
	userID := uuid.New()

	settings, err := service.Get(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, "UTC", settings.Timezone)
	assert.True(t, settings.NotifyOnStatusChange)
	assert.True(t, settings.NotifyOnNewRequest)
}

func TestUpdateAppliesOnlyGivenFields(t *testing.T) {
	store := &fakeStore{byUser: map[uuid.UUID]*UserSettings{}}
	service := NewService(store)
	userID := uuid.New()

	tz := "America/Los_Angeles"
	updated, err := service.Update(context.Background(), userID, UpdateInput{
		Timezone: &tz,
	})
	require.NoError(t, err)
	assert.Equal(t, tz, updated.Timezone)
	assert.True(t, updated.NotifyOnStatusChange)

	off := false
	updated, err = service.Update(context.Background(), userID, UpdateInput{
		NotifyOnStatusChange: &off,
	})
	require.NoError(t, err)
	assert.Equal(t, tz, updated.Timezone)
	assert.False(t, updated.NotifyOnStatusChange)
	assert.True(t, updated.NotifyOnNewRequest)
}
