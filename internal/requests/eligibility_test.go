package requests

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rc-portal/allocation-portal-backend/internal/projects"
)

func TestEligibilityEmploymentRestrictionFailsClosed(t *testing.T) {
	f := newFixture(t)
	f.allowance.RequiresInstitutionEmployee = true

	t.Run("missing profile", func(t *testing.T) {
		outsider := f.addUser("outsider", "outsider@example.org")
		delete(f.store.profiles, outsider.ID)
		result, err := IsUserEligibleForAllowance(
			context.Background(), f.store, outsider.ID, f.allowance, f.period.ID, false)
		require.NoError(t, err)
		assert.False(t, result.Eligible)
		assert.Contains(t, result.Reason, "institution employees")
	})

	t.Run("not an employee", func(t *testing.T) {
		result, err := IsUserEligibleForAllowance(
			context.Background(), f.store, f.pi.ID, f.allowance, f.period.ID, false)
		require.NoError(t, err)
		assert.False(t, result.Eligible)
	})

	t.Run("employee", func(t *testing.T) {
		f.store.profiles[f.pi.ID].IsInstitutionEmployee = true
		result, err := IsUserEligibleForAllowance(
			context.Background(), f.store, f.pi.ID, f.allowance, f.period.ID, false)
		require.NoError(t, err)
		assert.True(t, result.Eligible)
	})
}

func TestEligibilityOnePerPIPerPeriod(t *testing.T) {
	f := newFixture(t)
	project := f.addProject("fc_smith", projects.StatusActive)

	t.Run("existing renewal request blocks", func(t *testing.T) {
		f.addRenewal(t, &project.ID, project.ID)
		result, err := IsUserEligibleForAllowance(
			context.Background(), f.store, f.pi.ID, f.allowance, f.period.ID, false)
		require.NoError(t, err)
		assert.False(t, result.Eligible)
		assert.Contains(t, result.Reason, "renewal request")
	})

	t.Run("denied requests do not block", func(t *testing.T) {
		for _, r := range f.store.renewals {
			r.Status = StatusDenied
		}
		result, err := IsUserEligibleForAllowance(
			context.Background(), f.store, f.pi.ID, f.allowance, f.period.ID, false)
		require.NoError(t, err)
		assert.True(t, result.Eligible)
	})

	t.Run("existing new project request blocks", func(t *testing.T) {
		f.addNewProjectRequest(t, project)
		result, err := IsUserEligibleForAllowance(
			context.Background(), f.store, f.pi.ID, f.allowance, f.period.ID, false)
		require.NoError(t, err)
		assert.False(t, result.Eligible)
		assert.Contains(t, result.Reason, "new project request")
	})
}

func TestEligibilityExistingPIRuleSkippedForRenewals(t *testing.T) {
	f := newFixture(t)
	project := f.addProject("fc_smith", projects.StatusActive)
	f.addPI(project, f.pi)

	newRequest, err := IsUserEligibleForAllowance(
		context.Background(), f.store, f.pi.ID, f.allowance, f.period.ID, false)
	require.NoError(t, err)
	assert.False(t, newRequest.Eligible)
	assert.Contains(t, newRequest.Reason, "already a PI")

	renewal, err := IsUserEligibleForAllowance(
		context.Background(), f.store, f.pi.ID, f.allowance, f.period.ID, true)
	require.NoError(t, err)
	assert.True(t, renewal.Eligible)
}

func TestEligibilityUnrestrictedAllowance(t *testing.T) {
	f := newFixture(t)
	f.allowance.OnePerPI = false
	f.allowance.Periodic = false
	project := f.addProject("fc_smith", projects.StatusActive)
	f.addPI(project, f.pi)
	f.addRenewal(t, &project.ID, project.ID)

	result, err := IsUserEligibleForAllowance(
		context.Background(), f.store, f.pi.ID, f.allowance, f.period.ID, false)
	require.NoError(t, err)
	assert.True(t, result.Eligible)
}
